package commands

import (
	"context"
	"io"
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/livinlefevreloca/cronexec/internal/config"
	"github.com/livinlefevreloca/cronexec/internal/executor"
	"github.com/livinlefevreloca/cronexec/internal/job"
	"github.com/livinlefevreloca/cronexec/internal/jobfile"
	"github.com/livinlefevreloca/cronexec/internal/lifecycle"
	"github.com/livinlefevreloca/cronexec/internal/logging"
	"github.com/livinlefevreloca/cronexec/internal/scheduler"
	"github.com/livinlefevreloca/cronexec/internal/stats"
)

// RunCmd starts the scheduler daemon
var RunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scheduler daemon",
	Long: `Load the configuration and job definitions, then run every job on its
schedule until SIGINT or SIGTERM. With jobs.watch enabled the job file is
reloaded whenever it changes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemon(cmd.Context(), cmd.ErrOrStderr())
	},
}

func init() {
	RunCmd.Flags().StringVarP(&jobsPath, "jobs", "j", "", "Path to job file (overrides jobs.path)")
}

func runDaemon(ctx context.Context, console io.Writer) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, closeLog, err := logging.New(cfg.Logging, console)
	if err != nil {
		return errors.Wrap(err, "failed to initialize logger")
	}
	defer closeLog()
	slog.SetDefault(logger)

	logger.Info("starting cronexec",
		"config_file", ConfigPath,
		"jobs_source", cfg.Jobs.Source)

	specs, err := loadSpecs(cfg)
	if err != nil {
		logger.Error("failed to load jobs", "error", err)
		return err
	}

	runner, err := executor.New(cfg.Executor, logger)
	if err != nil {
		logger.Error("failed to create executor", "error", err)
		return err
	}

	var opts []scheduler.Option
	statsDone := make(chan struct{})
	statsCtx, stopStats := context.WithCancel(context.Background())
	if cfg.Stats.Enabled() {
		collector := stats.NewCollector(cfg.Stats, logger)
		opts = append(opts, scheduler.WithResultObserver(collector))
		go func() {
			defer close(statsDone)
			collector.Run(statsCtx)
		}()
	} else {
		close(statsDone)
	}
	// Stats outlive the scheduler so results from draining runs are counted
	defer func() {
		stopStats()
		<-statsDone
	}()

	sched, err := scheduler.New(cfg.Scheduler, cfg.Shutdown, runner, logger, opts...)
	if err != nil {
		logger.Error("failed to create scheduler", "error", err)
		return err
	}
	sched.Register(specs)

	if cfg.Jobs.Watch && cfg.Jobs.Source == config.SourceFile {
		watchCtx, stopWatch := context.WithCancel(ctx)
		defer stopWatch()
		go watchJobs(watchCtx, jobfile.NewWatcher(cfg.Jobs.Path, specs, logger), sched, logger)
	}

	controller := lifecycle.NewController(logger, nil)
	return controller.Run(ctx, sched)
}

func watchJobs(ctx context.Context, w *jobfile.Watcher, sched *scheduler.Scheduler, logger *slog.Logger) {
	err := w.Watch(ctx, func(specs []job.Spec) {
		if err := sched.Reload(ctx, specs); err != nil && ctx.Err() == nil && !errors.Is(err, scheduler.ErrStopped) {
			logger.Error("failed to apply job reload", "error", err)
		}
	})
	if err != nil {
		logger.Error("job file watcher stopped", "error", err)
	}
}
