package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/livinlefevreloca/cronexec/internal/cron"
)

var (
	nextCount int
	nextFrom  string
	nextTZ    string
)

// NextCmd prints upcoming fire times of an expression
var NextCmd = &cobra.Command{
	Use:   "next EXPR",
	Short: "Print upcoming fire times of a cron expression",
	Long: `Print the next fire times of a six or seven field cron expression
(second minute hour day-of-month month day-of-week [year]).`,
	Example: `  cronexec next "0 */15 * * * *"
  cronexec next "0 0 0 29 2 ?" --count 3 --tz UTC
  cronexec next "0 0 12 * * MON" --from 2025-01-01T00:00:00Z`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		loc := time.Local
		if nextTZ != "" {
			var err error
			if loc, err = time.LoadLocation(nextTZ); err != nil {
				return errors.Wrapf(err, "load timezone %q", nextTZ)
			}
		}

		from := time.Now()
		if nextFrom != "" {
			var err error
			if from, err = time.Parse(time.RFC3339, nextFrom); err != nil {
				return errors.WithHint(errors.Wrap(err, "invalid --from"), "use RFC3339, e.g. 2025-01-01T00:00:00Z")
			}
		}

		return printNext(cmd.OutOrStdout(), args[0], from.In(loc), nextCount)
	},
}

func init() {
	NextCmd.Flags().IntVarP(&nextCount, "count", "n", 5, "Number of fire times to print")
	NextCmd.Flags().StringVar(&nextFrom, "from", "", "Start time in RFC3339 (default now)")
	NextCmd.Flags().StringVar(&nextTZ, "tz", "", "IANA time zone to evaluate in (default local)")
}

func printNext(w io.Writer, expr string, from time.Time, count int) error {
	if count <= 0 {
		return errors.Newf("--count must be positive, got %d", count)
	}

	schedule, err := cron.Parse(expr)
	if err != nil {
		return err
	}

	times, err := schedule.NextN(from, count)
	for _, t := range times {
		fmt.Fprintln(w, t.Format(time.RFC3339))
	}
	if errors.Is(err, cron.ErrNoMatch) {
		fmt.Fprintf(w, "schedule exhausted after %d fire times\n", len(times))
		return nil
	}
	return err
}
