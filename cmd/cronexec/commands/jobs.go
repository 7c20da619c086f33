package commands

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/livinlefevreloca/cronexec/internal/cron"
	"github.com/livinlefevreloca/cronexec/internal/db"
	"github.com/livinlefevreloca/cronexec/internal/jobfile"
)

// JobsCmd groups the job store commands
var JobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Manage job definitions stored in SQLite",
	Long: `Manage the SQLite job store used when jobs.source is "sqlite".
The database is taken from the [database] section of the configuration.`,
}

var jobsImportCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Copy job definitions from a job file into the database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openStore()
		if err != nil {
			return err
		}
		defer database.Close()

		n, err := importJobs(database, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d jobs from %s\n", n, args[0])
		return nil
	},
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored job definitions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openStore()
		if err != nil {
			return err
		}
		defer database.Close()

		return listJobs(cmd.OutOrStdout(), database)
	},
}

func init() {
	JobsCmd.AddCommand(jobsImportCmd)
	JobsCmd.AddCommand(jobsListCmd)
}

func openStore() (*db.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Database.Validate(); err != nil {
		return nil, errors.Wrap(err, "database")
	}
	return db.OpenWithConfig(cfg.Database)
}

// importJobs upserts every job in path. Nothing is written unless every
// job is well formed.
func importJobs(database *db.DB, path string) (int, error) {
	specs, err := jobfile.Load(path)
	if err != nil {
		return 0, err
	}

	for _, spec := range specs {
		if err := spec.Validate(); err != nil {
			return 0, err
		}
		if _, err := cron.Parse(spec.Schedule); err != nil {
			return 0, errors.Wrapf(err, "job %q", spec.Name)
		}
	}

	if err := database.ImportSpecs(specs); err != nil {
		return 0, err
	}
	return len(specs), nil
}

func listJobs(w io.Writer, database *db.DB) error {
	jobs, err := database.GetAllJobs()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSCHEDULE\tENABLED\tPROCESS\tCOMMAND")
	for _, j := range jobs {
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%s\n", j.Name, j.Schedule, j.Enabled, j.Process, j.Command)
	}
	return tw.Flush()
}
