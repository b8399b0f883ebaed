package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wcbt-project/wcbt/pkg/color"
	"github.com/wcbt-project/wcbt/pkg/wcbt"
)

var verifyRun string

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check a run's payload against its manifest",
	Long: `verify reads --run's manifest and re-hashes every file it records,
classifying each as ok, missing, unreadable, or hash_mismatch. It always
writes verify_report.jsonl, verify_report.json, and verify_summary.txt into
the run directory, even when the run itself is partial.

Examples:
  wcbt verify --run /backups/project/2025-06-01T09-00-00Z`,
	Run: func(cmd *cobra.Command, args []string) {
		if verifyRun == "" {
			die(exitInvalidArgs, "verify: --run is required")
		}

		out, err := wcbt.Verify(wcbt.VerifyRequest{RunDir: verifyRun})
		if err != nil {
			if jsonOutput {
				outputJSONOrError(nil, err)
				os.Exit(exitCodeFor(err))
			}
			die(exitCodeFor(err), "verify: %v", err)
		}

		if jsonOutput {
			outputJSON(out.Report.Summary)
		} else {
			printVerifySummary(out)
		}

		if !out.Report.Summary.AllOK() {
			os.Exit(exitVerifyFailed)
		}
	},
}

func init() {
	verifyCmd.Flags().StringVar(&verifyRun, "run", "", "path to the run directory")
	rootCmd.AddCommand(verifyCmd)
}

func printVerifySummary(out *wcbt.VerifyOutcome) {
	c := out.Report.Summary.Counts
	fmt.Printf("run_id:        %s\n", out.Report.Summary.RunID)
	fmt.Printf("total:         %d\n", out.Report.Summary.Total)
	fmt.Printf("ok:            %d\n", c.OK)
	fmt.Printf("missing:       %d\n", c.Missing)
	fmt.Printf("unreadable:    %d\n", c.Unreadable)
	fmt.Printf("hash_mismatch: %d\n", c.HashMismatch)
	if out.Report.Summary.AllOK() {
		fmt.Printf("result:        %s\n", color.Success("PASS"))
	} else {
		fmt.Printf("result:        %s\n", color.Error("FAIL"))
	}
}
