package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dyike/StockAnalyzer/models"
)

func newAnalyzeCmd(st *settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze [TICKER]",
		Short: "Submit an analysis to a running service and wait for the report",
		Long: `Submit an analysis to a running StockAnalyzer service and poll until it finishes.
Example: stockanalyzer analyze AAPL --param period=6mo`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var ticker string
			if len(args) == 1 {
				ticker = normalizeTicker(args[0])
				if err := validateTicker(ticker); err != nil {
					return err
				}
			} else {
				var err error
				if ticker, err = PromptForTicker(); err != nil {
					return err
				}
			}

			raw, _ := cmd.Flags().GetStringToString("param")
			params := models.AnalysisParams{"ticker": ticker}
			for k, v := range raw {
				params[k] = v
			}

			serverURL, _ := cmd.Flags().GetString("server")
			if serverURL == "" {
				serverURL = fmt.Sprintf("http://localhost:%d", st.cfg.ServerPort)
			}
			interval, _ := cmd.Flags().GetDuration("interval")
			timeout, _ := cmd.Flags().GetDuration("timeout")
			noWait, _ := cmd.Flags().GetBool("no-wait")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			return runAnalyze(ctx, cmd, NewClient(serverURL), params, interval, noWait)
		},
	}

	cmd.Flags().String("server", "", "Service base URL (default http://localhost:SERVER_PORT)")
	cmd.Flags().StringToString("param", nil, "Extra analysis parameters as key=value, repeatable")
	cmd.Flags().Duration("interval", 2*time.Second, "Polling interval")
	cmd.Flags().Duration("timeout", 15*time.Minute, "Give up waiting after this long, 0 waits forever")
	cmd.Flags().Bool("no-wait", false, "Print the session id and exit without polling")

	return cmd
}

func runAnalyze(ctx context.Context, cmd *cobra.Command, client *Client, params models.AnalysisParams, interval time.Duration, noWait bool) error {
	out := cmd.OutOrStdout()

	id, err := client.Submit(ctx, params)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "submitted %s\n", id)
	if noWait {
		return nil
	}

	last := models.JobStatus("")
	rec, err := client.Wait(ctx, id, interval, func(r *models.JobRecord) {
		if r.Status != last {
			last = r.Status
			fmt.Fprintln(out, renderStatus(id, r.Status))
		}
	})
	if err != nil {
		return fmt.Errorf("waiting for %s: %w", id, err)
	}

	fmt.Fprintln(out, renderRecord(id, rec))
	if rec.Status == models.StatusFailed {
		return fmt.Errorf("analysis %s failed: %s", id, strings.TrimSpace(rec.Error))
	}
	return nil
}
