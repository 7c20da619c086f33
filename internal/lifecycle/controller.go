// Package lifecycle turns process signals into an orderly shutdown of a
// long-running service.
package lifecycle

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Service is a component run under the controller. Run blocks until ctx is
// cancelled and the service has finished its own shutdown.
type Service interface {
	Run(ctx context.Context) error
}

// Notifier reports service state to the init system
type Notifier interface {
	Notify(state string) error
}

// SystemdNotifier sends sd_notify messages. It is a no-op when the process
// is not supervised by systemd.
type SystemdNotifier struct{}

func (SystemdNotifier) Notify(state string) error {
	_, err := daemon.SdNotify(false, state)
	return err
}

// Controller owns the shutdown signal for a service
type Controller struct {
	logger   *slog.Logger
	notifier Notifier
	signals  []os.Signal

	trigger     chan struct{}
	triggerOnce sync.Once
	done        chan struct{}
}

// NewController creates a controller listening for SIGINT and SIGTERM. A nil
// notifier uses SystemdNotifier.
func NewController(logger *slog.Logger, notifier Notifier) *Controller {
	if notifier == nil {
		notifier = SystemdNotifier{}
	}
	return &Controller{
		logger:   logger,
		notifier: notifier,
		signals:  []os.Signal{os.Interrupt, syscall.SIGTERM},
		trigger:  make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Trigger requests shutdown as if a signal had been received
func (c *Controller) Trigger() {
	c.triggerOnce.Do(func() { close(c.trigger) })
}

// Done is closed once the service has fully stopped
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Run starts svc and blocks until it has stopped. The service context is
// cancelled on SIGINT, SIGTERM, Trigger or cancellation of parent.
func (c *Controller) Run(parent context.Context, svc Service) error {
	defer close(c.done)

	ctx, stopSignals := signal.NotifyContext(parent, c.signals...)
	defer stopSignals()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-c.trigger:
			cancel()
		case <-ctx.Done():
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- svc.Run(ctx)
	}()

	c.notify(daemon.SdNotifyReady)

	var err error
	select {
	case <-ctx.Done():
		c.logger.Info("shutdown requested")
		c.notify(daemon.SdNotifyStopping)
		err = <-errCh
	case err = <-errCh:
		c.notify(daemon.SdNotifyStopping)
	}

	if err != nil {
		c.logger.Error("service stopped with error", "error", err)
		return err
	}

	c.logger.Info("shutdown complete")
	return nil
}

func (c *Controller) notify(state string) {
	if err := c.notifier.Notify(state); err != nil {
		c.logger.Warn("failed to notify service manager", "state", state, "error", err)
	}
}
