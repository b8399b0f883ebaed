package cli

import (
	"fmt"
	"os"

	"github.com/wcbt-project/wcbt/pkg/color"
	"github.com/wcbt-project/wcbt/pkg/errclass"
)

// Exit codes, stable across releases: spec.md §6.
const (
	exitSuccess         = 0
	exitInvalidArgs     = 2
	exitLocked          = 3
	exitBackupPartial   = 4
	exitRestoreConflict = 5
	exitVerifyFailed    = 6
	exitFatal           = 7
)

func fmtErr(format string, args ...any) {
	prefix := "wcbt: "
	if color.Enabled() {
		prefix = color.Error("wcbt:") + " "
	}
	fmt.Fprintf(os.Stderr, prefix+format+"\n", args...)
}

// exitCodeFor maps a pipeline error to its stable exit code. A nil error
// maps to exitSuccess only by convention of the caller checking err != nil
// first; exitCodeFor itself always returns a non-zero code for a non-nil
// error.
func exitCodeFor(err error) int {
	werr, ok := err.(*errclass.WCBTError)
	if !ok {
		return exitFatal
	}
	switch werr.Code {
	case errclass.ErrLocked.Code:
		return exitLocked
	case errclass.ErrCrossDeviceStage.Code, errclass.ErrPromotionFailed.Code, errclass.ErrCaseCollision.Code:
		return exitRestoreConflict
	case errclass.ErrSchemaUnsupported.Code, errclass.ErrManifestInvalid.Code, errclass.ErrUnsafePath.Code:
		return exitInvalidArgs
	default:
		return exitFatal
	}
}

func die(code int, format string, args ...any) {
	fmtErr(format, args...)
	os.Exit(code)
}
