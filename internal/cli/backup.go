package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wcbt-project/wcbt/pkg/color"
	"github.com/wcbt-project/wcbt/pkg/model"
	"github.com/wcbt-project/wcbt/pkg/wcbt"
)

var (
	backupSource string
	backupDest   string
	backupDryRun bool
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Copy a source tree into a new timestamped run",
	Long: `backup scans --source, hashes every file, and copies the result into a
new run directory under --dest, writing a manifest that records exactly
what was copied. --dry-run writes a plan instead of touching the
destination's payload.

Examples:
  wcbt backup --source ./project --dest /backups/project
  wcbt backup --source ./project --dest /backups/project --dry-run`,
	Run: func(cmd *cobra.Command, args []string) {
		if backupSource == "" || backupDest == "" {
			die(exitInvalidArgs, "backup: --source and --dest are required")
		}

		counter := newCountingProgress("backup")
		out, err := wcbt.Backup(wcbt.BackupRequest{
			SourceRoot:      backupSource,
			DestinationRoot: backupDest,
			DryRun:          backupDryRun,
			Progress: func(op string, current, total int, message string) {
				counter.Increment()
			},
		})
		counter.Done("done")
		if err != nil {
			if jsonOutput {
				outputJSONOrError(nil, err)
				os.Exit(exitCodeFor(err))
			}
			die(exitCodeFor(err), "backup: %v", err)
		}

		if jsonOutput {
			outputJSON(out)
		} else {
			printBackupSummary(out)
		}

		if out.RunStatus == model.RunStatusPartial {
			os.Exit(exitBackupPartial)
		}
	},
}

func init() {
	backupCmd.Flags().StringVar(&backupSource, "source", "", "source directory to back up")
	backupCmd.Flags().StringVar(&backupDest, "dest", "", "destination root for the run")
	backupCmd.Flags().BoolVar(&backupDryRun, "dry-run", false, "plan the run without copying")
	rootCmd.AddCommand(backupCmd)
}

func printBackupSummary(out *wcbt.BackupOutcome) {
	fmt.Printf("run_id:  %s\n", out.RunID)
	status := string(out.RunStatus)
	if out.RunStatus == model.RunStatusPartial {
		status = color.Warning(status)
	} else {
		status = color.Success(status)
	}
	fmt.Printf("status:  %s\n", status)
	if out.Manifest != nil {
		fmt.Printf("files:   %d\n", len(out.Manifest.Files))
	}
}
