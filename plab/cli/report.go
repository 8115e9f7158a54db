package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"personalab/plab/analysis"
)

func newReportCmd() *cobra.Command {
	var contexts bool

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize template performance from the usage log",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			report, err := analysis.BuildReport(a.store.UsageLogPath())
			if err != nil {
				return err
			}
			if report.TotalTrials == 0 {
				fmt.Println("No usage recorded yet.")
				return nil
			}

			fmt.Printf("%d trial(s) recorded", report.TotalTrials)
			if report.Skipped > 0 {
				fmt.Printf(", %d unreadable line(s) skipped", report.Skipped)
			}
			fmt.Println()
			for _, t := range report.Templates {
				fmt.Printf("\n%s: %d trial(s), %.0f%% success, quality %.2f±%.2f, latency %.2fs\n",
					t.TemplateID, t.Trials, t.SuccessRate*100, t.MeanQuality, t.StdDevQuality, t.MeanLatency)
				if contexts {
					for key, count := range t.ContextBuckets {
						if key == "" {
							key = "(empty context)"
						}
						fmt.Printf("    %4d  %s\n", count, key)
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&contexts, "contexts", false, "include per-context-bucket trial counts")
	return cmd
}
