package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/kozaktomas/pose-guard/internal/config"
	"github.com/kozaktomas/pose-guard/internal/constants"
	"github.com/kozaktomas/pose-guard/internal/database/postgres"
	"github.com/kozaktomas/pose-guard/internal/fingerprint"
	"github.com/kozaktomas/pose-guard/internal/notify"
	"github.com/kozaktomas/pose-guard/internal/pipeline"
	"github.com/kozaktomas/pose-guard/internal/registry"
	"github.com/kozaktomas/pose-guard/internal/sink"
)

const faceServiceTimeout = 30 * time.Second

// guardRuntime is a fully wired pipeline service with its sinks.
type guardRuntime struct {
	service   *pipeline.Service
	publisher *notify.Publisher
	closers   []func() error
	logger    *zap.Logger
}

// newGuardRuntime wires the face service, sinks, optional Postgres store and
// optional MQTT publisher around a pipeline service.
func newGuardRuntime(ctx context.Context, cfg *config.Config, logger *zap.Logger, bell bool) (*guardRuntime, error) {
	rt := &guardRuntime{logger: logger}

	csvLog, err := sink.OpenCSVLog(cfg.Storage.LogDir)
	if err != nil {
		return nil, fmt.Errorf("opening event log: %w", err)
	}
	rt.closers = append(rt.closers, csvLog.Close)
	logs := sink.MultiLog{csvLog}

	deps := pipeline.Deps{
		Faces:     fingerprint.NewClient(cfg.Embedding.URL, faceServiceTimeout),
		Snapshots: sink.NewJPEGSnapshots(cfg.Storage.SnapshotsDir, constants.SnapshotJPEGQuality),
		Logger:    logger,
	}
	if bell {
		deps.Alarm = &pipeline.BellAlarm{W: os.Stdout}
	}

	if cfg.Database.URL != "" {
		pool, err := postgres.Open(ctx, &cfg.Database, logger)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.closers = append(rt.closers, pool.Close)
		logs = append(logs, postgres.NewEventRepository(pool))
		deps.Cache = postgres.NewProfileEmbeddingCache(pool)
		logger.Info("postgres event store enabled")
	}
	deps.Log = logs

	if cfg.MQTT.Broker != "" {
		pub, err := notify.Connect(cfg.MQTT, logger)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.publisher = pub
		rt.closers = append(rt.closers, func() error { pub.Close(); return nil })
	}

	reg := registry.New(registry.NewPersonBook(cfg.Guard.MaxPersons))
	rt.service = pipeline.NewService(pipeline.OptionsFromConfig(cfg), deps, pipeline.WithRegistry(reg))
	return rt, nil
}

// run starts the MQTT forwarder and the pipeline worker; it blocks until ctx is done.
func (rt *guardRuntime) run(ctx context.Context) error {
	if rt.publisher != nil {
		events := rt.service.Subscribe()
		go rt.publisher.Run(ctx, events)
		defer rt.service.Unsubscribe(events)
	}
	return rt.service.Run(ctx)
}

// Close releases sinks and connections in reverse order.
func (rt *guardRuntime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		errs = append(errs, rt.closers[i]())
	}
	rt.closers = nil
	return errors.Join(errs...)
}

// pruneSnapshots removes snapshots past the configured retention.
func pruneSnapshots(cfg *config.Config, logger *zap.Logger) {
	if cfg.Storage.SnapshotRetentionDays <= 0 {
		return
	}
	retention := time.Duration(cfg.Storage.SnapshotRetentionDays) * 24 * time.Hour
	n, err := sink.PruneSnapshots(cfg.Storage.SnapshotsDir, retention, time.Now())
	if err != nil {
		logger.Warn("snapshot pruning failed", zap.Error(err))
		return
	}
	if n > 0 {
		logger.Info("pruned old snapshots", zap.Int("removed", n), zap.Int("retention_days", cfg.Storage.SnapshotRetentionDays))
	}
}
