// Package app wires the alerting pipeline and runs its lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"polyalert/internal/clock"
	"polyalert/internal/config"
	"polyalert/internal/correlate"
	"polyalert/internal/domain"
	"polyalert/internal/ingest"
	"polyalert/internal/logging"
	"polyalert/internal/notify"
	"polyalert/internal/rules"
	"polyalert/internal/state"
	"polyalert/internal/threshold"
)

// Service owns every runtime component and their shutdown order.
type Service struct {
	src      config.ConfigSource
	cfg      config.Config
	clk      clock.Clock
	logger   *slog.Logger
	closeLog func()

	manager   *Manager
	alerts    *state.AlertStore
	httpSrv   *http.Server
	natsSub   *ingest.NATSSubscriber
	readyFlag atomic.Bool
}

// NewService loads config and builds the full pipeline.
// Params: config source and clock.
// Returns: ready-to-run service or initialization error.
func NewService(src config.ConfigSource, clk clock.Clock) (*Service, error) {
	cfg, err := config.LoadSnapshot(src)
	if err != nil {
		return nil, err
	}

	logger, closeLog, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}
	logger = logger.With("service", cfg.Service.Name)

	alerts := state.NewAlertStore(cfg.Service.HistoryMax, time.Duration(cfg.Service.HistoryAgeHours)*time.Hour)
	if cfg.Service.SnapshotPath != "" {
		if err := alerts.LoadSnapshot(cfg.Service.SnapshotPath); err != nil {
			logger.Warn("alert snapshot restore failed", "path", cfg.Service.SnapshotPath, "error", err.Error())
		}
	}

	dispatcher := notify.NewDispatcher(cfg.Notify, clk, logger)
	detector := correlate.NewDetector(correlate.Config{
		Window:      time.Duration(cfg.Correlation.WindowMin) * time.Minute,
		MinAlerts:   cfg.Correlation.MinAlerts,
		TimelineMax: cfg.Correlation.TimelineMax,
	})
	manager := NewManager(
		clk, logger,
		threshold.NewStore(cfg.Service.WindowCapacity),
		rules.NewRegistry(nil),
		alerts,
		dispatcher,
		detector,
	)

	service := &Service{
		src:      src,
		cfg:      cfg,
		clk:      clk,
		logger:   logger,
		closeLog: closeLog,
		manager:  manager,
		alerts:   alerts,
	}
	service.applyRules(cfg)
	service.httpSrv = service.buildHTTPServer(managerSink{manager: manager})
	return service, nil
}

// applyRules converts configured rules and installs the valid set.
// Rejected rules are logged and skipped.
func (s *Service) applyRules(cfg config.Config) {
	ruleSet, rejected := cfg.DomainRules()
	for _, bad := range rejected {
		s.logger.Error("rule rejected", "rule", bad.Name, "error", bad.Err.Error())
	}
	s.manager.ApplyRules(ruleSet)
}

// Run starts ingest interfaces and periodic loops, then blocks until a
// shutdown signal or fatal error.
// Params: root context for service runtime.
// Returns: terminal run error.
func (s *Service) Run(ctx context.Context) error {
	defer s.closeLog()

	shutdownCtx, shutdownCancel := context.WithCancel(ctx)
	defer shutdownCancel()

	errChan := make(chan error, 1)
	if s.cfg.Ingest.HTTP.Enabled {
		go func() {
			s.logger.Info("http server starting", "listen", s.cfg.Ingest.HTTP.Listen)
			err := s.httpSrv.ListenAndServe()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- fmt.Errorf("http server failed: %w", err)
			}
		}()
	}

	if s.cfg.Ingest.NATS.Enabled {
		sub, err := ingest.NewNATSSubscriber(s.cfg.Ingest.NATS, managerSink{manager: s.manager}, s.logger)
		if err != nil {
			return err
		}
		s.natsSub = sub
		s.logger.Info("nats ingest subscribed",
			"subject", s.cfg.Ingest.NATS.Subject, "group", s.cfg.Ingest.NATS.DeliverGroup)
	}

	s.startLoop(shutdownCtx, time.Duration(s.cfg.Service.EscalationIntervalSec)*time.Second, func() {
		s.manager.Tick(shutdownCtx)
	})
	s.startLoop(shutdownCtx, time.Duration(s.cfg.Service.SnapshotIntervalSec)*time.Second, s.saveSnapshot)
	if s.cfg.Service.ReloadEnabled {
		s.startLoop(shutdownCtx, time.Duration(s.cfg.Service.ReloadIntervalSec)*time.Second, s.reloadRules)
	}

	s.readyFlag.Store(true)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		return s.shutdown()
	case err := <-errChan:
		_ = s.shutdown()
		return err
	case <-sigChan:
		return s.shutdown()
	}
}

// startLoop runs fn on a fixed interval until the context is canceled.
func (s *Service) startLoop(ctx context.Context, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
}

// reloadRules re-reads the config source and swaps the rule set.
// Everything but the rules stays fixed until restart.
func (s *Service) reloadRules() {
	cfg, err := config.LoadSnapshot(s.src)
	if err != nil {
		s.logger.Error("config reload failed", "error", err.Error())
		return
	}
	s.applyRules(cfg)
}

// saveSnapshot persists alert state when a snapshot path is configured.
func (s *Service) saveSnapshot() {
	if s.cfg.Service.SnapshotPath == "" {
		return
	}
	if err := s.alerts.SaveSnapshot(s.cfg.Service.SnapshotPath); err != nil {
		s.logger.Error("alert snapshot save failed", "path", s.cfg.Service.SnapshotPath, "error", err.Error())
	}
}

// shutdown closes runtime resources in dependency order.
// Params: none.
// Returns: first close error.
func (s *Service) shutdown() error {
	s.readyFlag.Store(false)
	s.logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var firstErr error
	markErr := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if s.cfg.Ingest.HTTP.Enabled {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Error("http shutdown failed", "error", err.Error())
			markErr(fmt.Errorf("http shutdown: %w", err))
		}
	}
	if s.natsSub != nil {
		if err := s.natsSub.Close(); err != nil {
			s.logger.Error("nats subscriber close failed", "error", err.Error())
			markErr(fmt.Errorf("nats subscriber close: %w", err))
		}
	}
	s.saveSnapshot()
	return firstErr
}

// managerSink adapts the manager to the ingest sink interface.
type managerSink struct {
	manager *Manager
}

// Push feeds one sample into the evaluation pipeline.
// Params: context and validated sample.
// Returns: always nil; evaluation never rejects valid samples.
func (s managerSink) Push(ctx context.Context, sample domain.Sample) error {
	s.manager.EvaluateMetric(ctx, sample)
	return nil
}
