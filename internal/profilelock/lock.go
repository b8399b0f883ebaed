// Package profilelock implements wcbt's ProfileLock: an exclusive,
// cross-process lock keyed by (profile_name, destination_root), acquired
// before any write-side pipeline (backup, restore).
package profilelock

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/wcbt-project/wcbt/internal/clock"
	"github.com/wcbt-project/wcbt/pkg/errclass"
	"github.com/wcbt-project/wcbt/pkg/model"
	"github.com/wcbt-project/wcbt/pkg/uuidutil"
)

// Manager acquires and releases ProfileLocks under a single destination
// root. One Manager instance serializes Acquire/Release across goroutines;
// cross-process exclusion is enforced by O_CREATE|O_EXCL on the lock file.
type Manager struct {
	destinationRoot string
	policy          model.LockPolicy
	clock           clock.Clock
	mu              sync.Mutex
}

// NewManager creates a lock manager rooted at destinationRoot.
func NewManager(destinationRoot string, policy model.LockPolicy, c clock.Clock) *Manager {
	if c == nil {
		c = clock.System{}
	}
	return &Manager{destinationRoot: destinationRoot, policy: policy, clock: c}
}

// Handle is a held lock; callers must Release it when the write-side
// pipeline completes.
type Handle struct {
	ProfileName  string
	HolderNonce  string
	FencingToken int64
}

// Acquire takes the exclusive lock for profileName. Contention with a live
// (non-expired) holder fails fast with errclass.ErrLocked. A lock whose
// lease has expired is NOT automatically reclaimed here — the caller must
// invoke ForceUnlock first; this keeps stale-lock recovery an explicit,
// deliberate operation rather than a side effect of an ordinary Acquire.
func (m *Manager) Acquire(profileName string) (*Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lockPath := m.lockPath(profileName)
	if err := os.MkdirAll(filepath.Dir(lockPath), 0755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}

	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			rec, readErr := m.readLock(lockPath)
			if readErr != nil {
				return nil, errclass.ErrLocked.WithMessagef("profile %s is locked (unreadable lock file: %v)", profileName, readErr)
			}
			if rec.IsExpired(m.clock.Now()) {
				return nil, errclass.ErrLocked.WithMessagef("profile %s lock expired at %s; run ForceUnlock to reclaim", profileName, rec.ExpiresAt)
			}
			return nil, errclass.ErrLocked.WithMessagef("profile %s is locked by pid %d since %s", profileName, rec.OwnerPID, rec.AcquiredAt)
		}
		return nil, fmt.Errorf("create lock: %w", err)
	}
	defer file.Close()

	now := m.clock.Now()
	rec := &model.LockRecord{
		ProfileName:  profileName,
		HolderNonce:  uuidutil.NewV4(),
		OwnerPID:     os.Getpid(),
		AcquiredAt:   now,
		ExpiresAt:    now.Add(m.policy.DefaultLeaseTTL),
		FencingToken: 1,
	}

	if err := m.writeLock(file, rec); err != nil {
		os.Remove(lockPath)
		return nil, err
	}

	return &Handle{ProfileName: profileName, HolderNonce: rec.HolderNonce, FencingToken: rec.FencingToken}, nil
}

// ForceUnlock removes a profile's lock file unconditionally. This is the
// only path by which a stale lock is recovered; it is never invoked
// implicitly by Acquire.
func (m *Manager) ForceUnlock(profileName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	lockPath := m.lockPath(profileName)
	if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("force unlock: %w", err)
	}
	return nil
}

// Release frees the lock if held by the given handle. Releasing a lock not
// held by this holder (or already released) is a no-op, matching a
// best-effort cleanup on shutdown.
func (m *Manager) Release(h *Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	lockPath := m.lockPath(h.ProfileName)
	rec, err := m.readLock(lockPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read lock: %w", err)
	}
	if rec.HolderNonce != h.HolderNonce {
		return nil
	}
	if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove lock: %w", err)
	}
	return nil
}

// Status reports whether a profile is currently locked and, if so, the
// lock record.
func (m *Manager) Status(profileName string) (held bool, rec *model.LockRecord, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lockPath := m.lockPath(profileName)
	rec, err = m.readLock(lockPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil, nil
		}
		return false, nil, fmt.Errorf("read lock: %w", err)
	}
	return !rec.IsExpired(m.clock.Now()), rec, nil
}

func (m *Manager) lockPath(profileName string) string {
	return filepath.Join(m.destinationRoot, ".wcbt_lock", profileName+".json")
}

func (m *Manager) readLock(path string) (*model.LockRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rec model.LockRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse lock: %w", err)
	}
	return &rec, nil
}

func (m *Manager) writeLock(file *os.File, rec *model.LockRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal lock: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		return fmt.Errorf("write lock: %w", err)
	}
	return file.Sync()
}
