package loadtest

import (
	"fmt"
	"io"
	"time"

	"github.com/ether/easysync/lib/utils"
	"github.com/spf13/cobra"
)

// NewCommand returns the loadtest command.
func NewCommand() *cobra.Command {
	var (
		options Options
		pads    int
		silent  bool
	)

	cmd := &cobra.Command{
		Use:   "loadtest [url]",
		Short: "Put load on a pad server",
		Long: `Connect authors and lurkers to a pad and report how fast the server keeps
up. The url is a server like http://127.0.0.1:9001 or a pad on it. Without
--authors and --lurkers one author and three lurkers join every second.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				options.URL = args[0]
			}
			logger := utils.SetupLogger("warn")
			defer func() {
				_ = logger.Sync()
			}()

			out := cmd.OutOrStdout()
			if pads > 1 {
				fmt.Fprintf(out, "Starting multi-pad load test: %d pads for %s each\n", pads, options.Duration)
				snapshots, err := RunMulti(cmd.Context(), options, pads, logger)
				if err != nil {
					return err
				}
				for _, snapshot := range snapshots {
					fmt.Fprintf(out, "%s: %d appends sent, %d accepted, %d errors\n",
						snapshot.PadId, snapshot.AppendSent, snapshot.AppendAccepted, snapshot.ErrorCount)
				}
				fmt.Fprintln(out, "Multi-pad load test completed successfully")
				return nil
			}

			report := func(snapshot Snapshot) {
				if !silent {
					PrintMetrics(out, snapshot)
				}
			}
			snapshot, err := Run(cmd.Context(), options, logger, 100*time.Millisecond, report)
			if err != nil {
				return fmt.Errorf("load test failed: %w", err)
			}
			fmt.Fprintf(out, "Test duration complete and Load Tests PASS\n%+v\n", snapshot)
			return nil
		},
	}

	cmd.Flags().IntVarP(&options.Authors, "authors", "a", 0, "number of authors")
	cmd.Flags().IntVarP(&options.Lurkers, "lurkers", "l", 0, "number of lurkers")
	cmd.Flags().DurationVarP(&options.Duration, "duration", "d", 0, "duration of the test, unlimited if 0")
	cmd.Flags().BoolVar(&options.UntilFail, "until-fail", false, "stop once the server falls behind")
	cmd.Flags().DurationVar(&options.AppendInterval, "append-interval", 400*time.Millisecond, "time between appends of one author")
	cmd.Flags().IntVar(&pads, "pads", 1, "number of pads to test at the same time")
	cmd.Flags().BoolVar(&silent, "silent", false, "don't print metrics while running")

	return cmd
}

// PrintMetrics clears the terminal and prints snapshot.
func PrintMetrics(w io.Writer, snapshot Snapshot) {
	fmt.Fprint(w, "\033[2J\033[0;0H")
	fmt.Fprintf(w, "Load Test Metrics -- Target Pad %s\n\n", snapshot.PadId)

	if snapshot.NumConnectedUsers > 0 {
		fmt.Fprintf(w, "Total Clients Connected: %d\n", snapshot.NumConnectedUsers)
	}
	fmt.Fprintf(w, "Local Clients Connected: %d\n", snapshot.ClientsConnected)
	fmt.Fprintf(w, "Authors Connected: %d\n", snapshot.AuthorsConnected)
	fmt.Fprintf(w, "Lurkers Connected: %d\n", snapshot.LurkersConnected)
	fmt.Fprintf(w, "Sent Append messages: %d\n", snapshot.AppendSent)
	fmt.Fprintf(w, "Errors: %d\n", snapshot.ErrorCount)
	fmt.Fprintf(w, "Appends accepted by server: %d\n", snapshot.AppendAccepted)
	fmt.Fprintf(w, "Changes sent from Server to Client: %d\n", snapshot.ChangeFromServer)
	fmt.Fprintf(w, "Mean(per second) of Changes sent from Server to Client: %.0f\n", snapshot.Rate())
	if pending := snapshot.Pending(); pending > 5 {
		fmt.Fprintf(w, "Number of appends not yet accepted by the server: %d\n", pending)
	}
	fmt.Fprintf(w, "Seconds test has been running for: %d\n", int(snapshot.Elapsed.Seconds()))
}
