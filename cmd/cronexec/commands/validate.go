package commands

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/livinlefevreloca/cronexec/internal/job"
	"github.com/livinlefevreloca/cronexec/internal/registry"
)

// ValidateCmd checks job definitions without running them
var ValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check every job definition and show its next fire time",
	Long: `Parse every job from the configured source and print either its next fire
time or the reason it would be rejected. Exits non-zero if any job is invalid.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		loc := time.Local
		if cfg.Scheduler.Timezone != "" {
			if loc, err = time.LoadLocation(cfg.Scheduler.Timezone); err != nil {
				return errors.Wrapf(err, "load timezone %q", cfg.Scheduler.Timezone)
			}
		}

		specs, err := loadSpecs(cfg)
		if err != nil {
			return err
		}

		invalid := validateSpecs(cmd.OutOrStdout(), specs, time.Now().In(loc))
		if invalid > 0 {
			return errors.Newf("%d of %d jobs are invalid", invalid, len(specs))
		}
		return nil
	},
}

func init() {
	ValidateCmd.Flags().StringVarP(&jobsPath, "jobs", "j", "", "Path to job file (overrides jobs.path)")
}

// validateSpecs registers each spec into a scratch registry so the checks
// match what the scheduler would do. Returns the number of invalid specs.
func validateSpecs(w io.Writer, specs []job.Spec, now time.Time) int {
	reg := registry.New(nil)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "JOB\tSCHEDULE\tNEXT")

	invalid := 0
	for _, spec := range specs {
		id, err := reg.Register(spec, now)
		if err != nil {
			invalid++
			fmt.Fprintf(tw, "%s\t%s\terror: %v\n", spec.Name, spec.Schedule, err)
			continue
		}
		sj, _ := reg.Get(id)
		fmt.Fprintf(tw, "%s\t%s\t%s\n", spec.Name, spec.Schedule, sj.NextFire.Format(time.RFC3339))
	}

	tw.Flush()
	return invalid
}
