package app

import (
	"context"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/deskflow-rpa/deskflow/internal/capture"
	"github.com/deskflow-rpa/deskflow/internal/customcommand"
	"github.com/deskflow-rpa/deskflow/internal/hotkey"
	"github.com/deskflow-rpa/deskflow/internal/platform/hostinfo"
	"github.com/deskflow-rpa/deskflow/internal/platform/logger"
	"github.com/deskflow-rpa/deskflow/internal/platform/metrics"
	recmodel "github.com/deskflow-rpa/deskflow/internal/recording/model"
	"github.com/deskflow-rpa/deskflow/internal/replay"
	"github.com/deskflow-rpa/deskflow/internal/scheduler"
	shortcutmodel "github.com/deskflow-rpa/deskflow/internal/shortcut/model"
)

// Service bundles the daemon's long-running components the way
// internal/backup/server.Server bundles an HTTP listener, except here the
// Scheduler, the Hotkey Dispatcher, the metrics listener and the optional
// trigger observers each run on their own goroutine under one suture tree
// (spec.md §5: "the Capture Engine, Scheduler, and Hotkey Dispatcher each
// run on their own dedicated thread"). The Capture Engine is not in the
// tree; it runs its own consumer goroutine for each capture.
type Service struct {
	Store      *Store
	Capture    *capture.Engine
	Replay     *replay.Engine
	Scheduler  *scheduler.Scheduler
	Hotkeys    *hotkey.Dispatcher
	Commands   *customcommand.Runner
	Metrics    *metrics.Metrics
	MetricsAddr string

	fileWatch *scheduler.FileWatchObserver
	idle      *scheduler.IdleObserver

	log logger.Logger

	supervisor *suture.Supervisor
}

// Option configures a Service before it is built.
type Option func(*Service)

func WithFileWatch(o *scheduler.FileWatchObserver) Option {
	return func(s *Service) { s.fileWatch = o }
}

func WithIdleObserver(o *scheduler.IdleObserver) Option {
	return func(s *Service) { s.idle = o }
}

// New assembles a Service. The caller has already constructed its
// collaborators (Store, Capture, Replay, Scheduler, Hotkeys, Commands); New
// wires them under one supervision tree.
func New(store *Store, captureEngine *capture.Engine, replayEngine *replay.Engine,
	sched *scheduler.Scheduler, dispatcher *hotkey.Dispatcher, commands *customcommand.Runner,
	m *metrics.Metrics, metricsAddr string, log logger.Logger, opts ...Option) *Service {
	s := &Service{
		Store: store, Capture: captureEngine, Replay: replayEngine,
		Scheduler: sched, Hotkeys: dispatcher, Commands: commands,
		Metrics: m, MetricsAddr: metricsAddr, log: log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// schedulerService adapts *scheduler.Scheduler.Run to suture.Service.
type schedulerService struct{ s *scheduler.Scheduler }

func (r schedulerService) Serve(ctx context.Context) error {
	r.s.Run(ctx)
	return nil
}

// hotkeyService adapts *hotkey.Dispatcher's Start/Stop pair to suture.Service.
type hotkeyService struct{ d *hotkey.Dispatcher }

func (r hotkeyService) Serve(ctx context.Context) error {
	if err := r.d.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	r.d.Stop()
	return ctx.Err()
}

type fileWatchService struct{ o *scheduler.FileWatchObserver }

func (r fileWatchService) Serve(ctx context.Context) error {
	r.o.Run(ctx)
	return nil
}

type idleService struct{ o *scheduler.IdleObserver }

func (r idleService) Serve(ctx context.Context) error {
	r.o.Run(ctx)
	return nil
}

type metricsService struct {
	m    *metrics.Metrics
	addr string
}

func (r metricsService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- r.m.Serve(r.addr) }()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = r.m.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Run builds the supervision tree and blocks until ctx is cancelled,
// restarting any component that exits with an error (spec.md §5's
// dedicated-thread-per-component model, expressed as a suture tree so a
// crashed Scheduler tick doesn't take down the Hotkey Dispatcher).
func (s *Service) Run(ctx context.Context) error {
	s.supervisor = suture.NewSimple("deskflowd")

	s.supervisor.Add(schedulerService{s.Scheduler})
	s.supervisor.Add(hotkeyService{s.Hotkeys})
	if s.Metrics != nil && s.MetricsAddr != "" {
		s.supervisor.Add(metricsService{s.Metrics, s.MetricsAddr})
	}
	if s.fileWatch != nil {
		s.supervisor.Add(fileWatchService{s.fileWatch})
	}
	if s.idle != nil {
		s.supervisor.Add(idleService{s.idle})
	}

	return s.supervisor.Serve(ctx)
}

// RegisterBuiltinControls binds the three built-in RPAControl chords
// (spec.md §4.4/§4.9) to the Capture Engine's lifecycle methods.
func (s *Service) RegisterBuiltinControls(settings shortcutmodel.ShortcutSettings, recordingName string) error {
	for control, chord := range settings.ControlBindings {
		control := control
		switch control {
		case shortcutmodel.ControlStartStop:
			if err := s.Hotkeys.Register(chord.String(), func() error {
				if s.Capture.State() == capture.EngineIdle {
					info := hostinfo.Collect()
					return s.Capture.Start(context.Background(), recordingName, recmodel.CaptureMetadata{
						Host: info.Host, OSVersion: info.OSVersion,
					})
				}
				_, err := s.Capture.Stop()
				return err
			}); err != nil {
				return err
			}
		case shortcutmodel.ControlPauseResume:
			if err := s.Hotkeys.Register(chord.String(), func() error {
				if s.Capture.State() == capture.EnginePaused {
					return s.Capture.Resume()
				}
				return s.Capture.Pause()
			}); err != nil {
				return err
			}
		case shortcutmodel.ControlEmergencyStop:
			if err := s.Hotkeys.Register(chord.String(), func() error {
				s.Capture.Cancel()
				return nil
			}); err != nil {
				return err
			}
		}
	}
	return nil
}
