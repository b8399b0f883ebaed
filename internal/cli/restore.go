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
	restoreManifest string
	restoreDest     string
	restoreDryRun   bool
	restoreVerify   string
)

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Stage and promote a run's manifest into a destination",
	Long: `restore resolves --manifest against --dest, copies every file into an
isolated staging tree, optionally verifies the staged copies, then
atomically promotes the staging tree into place. Whatever previously
occupied --dest is preserved as a sibling directory, never deleted.

Examples:
  wcbt restore --manifest /backups/project/2025-06-01T09-00-00Z/manifest.json --dest ./restored
  wcbt restore --manifest .../manifest.json --dest ./restored --verify size
  wcbt restore --manifest .../manifest.json --dest ./restored --dry-run`,
	Run: func(cmd *cobra.Command, args []string) {
		if restoreManifest == "" || restoreDest == "" {
			die(exitInvalidArgs, "restore: --manifest and --dest are required")
		}

		mode, err := parseVerifyMode(restoreVerify)
		if err != nil {
			die(exitInvalidArgs, "restore: %v", err)
		}

		counter := newCountingProgress("restore")
		out, err := wcbt.Restore(wcbt.RestoreRequest{
			ManifestPath: restoreManifest,
			Destination:  restoreDest,
			DryRun:       restoreDryRun,
			VerifyMode:   mode,
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
			die(exitCodeFor(err), "restore: %v", err)
		}

		if jsonOutput {
			outputJSON(out)
			return
		}
		printRestoreSummary(out)
	},
}

func init() {
	restoreCmd.Flags().StringVar(&restoreManifest, "manifest", "", "path to the run's manifest.json")
	restoreCmd.Flags().StringVar(&restoreDest, "dest", "", "destination to restore into")
	restoreCmd.Flags().BoolVar(&restoreDryRun, "dry-run", false, "stage without promoting")
	restoreCmd.Flags().StringVar(&restoreVerify, "verify", "none", "stage verification mode: none|size")
	rootCmd.AddCommand(restoreCmd)
}

func parseVerifyMode(s string) (model.StageVerifyMode, error) {
	switch s {
	case "", "none":
		return model.StageVerifyNone, nil
	case "size":
		return model.StageVerifySize, nil
	default:
		return "", fmt.Errorf("unknown --verify mode %q (want none|size)", s)
	}
}

func printRestoreSummary(out *wcbt.RestoreOutcome) {
	fmt.Printf("run_id:       %s\n", out.RunID)
	fmt.Printf("destination:  %s\n", out.Destination)
	if out.PreservedPrior != "" {
		fmt.Printf("preserved:    %s\n", color.Info(out.PreservedPrior))
	}
	if out.StageSummary != nil {
		fmt.Printf("staged:       %d copied, %d failed, %d skipped\n",
			out.StageSummary.Copied, out.StageSummary.Failed, out.StageSummary.Skipped)
	}
	if out.VerifySummary != nil {
		status := string(out.VerifySummary.Status)
		if out.VerifySummary.Status == model.StageStatusSuccess {
			status = color.Success(status)
		} else {
			status = color.Error(status)
		}
		fmt.Printf("verified:     %s (%d/%d)\n", status, out.VerifySummary.Verified, out.VerifySummary.Total)
	}
}
