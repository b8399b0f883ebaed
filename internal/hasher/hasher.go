// Package hasher implements wcbt's Hasher component: a streaming digest
// over a single file, read in bounded chunks so memory use does not scale
// with file size.
package hasher

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"github.com/wcbt-project/wcbt/pkg/errclass"
	"github.com/wcbt-project/wcbt/pkg/model"
)

const chunkSize = 1 << 20 // 1 MiB

// Result is the outcome of hashing a stream.
type Result struct {
	HashHex   model.HashValue
	SizeBytes int64
}

// HashFile computes the digest and size of the file at path. I/O errors are
// reported as errclass.ErrUnreadable, carrying the originating cause.
func HashFile(path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, errclass.ErrUnreadable.WithMessagef("open %s: %v", path, err)
	}
	defer f.Close()
	return HashReader(f)
}

// HashReader computes the digest and byte count of r, reading in bounded
// chunks.
func HashReader(r io.Reader) (Result, error) {
	h := sha256.New()
	buf := make([]byte, chunkSize)
	var total int64

	for {
		n, err := r.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
			total += int64(n)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return Result{}, errclass.ErrUnreadable.WithMessagef("read stream: %v", err)
		}
	}

	return Result{
		HashHex:   model.HashValue(hex.EncodeToString(h.Sum(nil))),
		SizeBytes: total,
	}, nil
}

// TeeHasher wraps a writer so that bytes written through it are
// simultaneously hashed, used by BackupExecute to hash a copy stream
// without a second read pass.
type TeeHasher struct {
	w     io.Writer
	inner interface {
		io.Writer
		Sum([]byte) []byte
	}
	total int64
}

// NewTeeHasher returns a TeeHasher that writes to w while accumulating a
// digest of everything written.
func NewTeeHasher(w io.Writer) *TeeHasher {
	return &TeeHasher{w: w, inner: sha256.New()}
}

// Write implements io.Writer.
func (t *TeeHasher) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	if n > 0 {
		t.inner.Write(p[:n])
		t.total += int64(n)
	}
	return n, err
}

// Result returns the accumulated digest and byte count.
func (t *TeeHasher) Result() Result {
	return Result{
		HashHex:   model.HashValue(hex.EncodeToString(t.inner.Sum(nil))),
		SizeBytes: t.total,
	}
}
