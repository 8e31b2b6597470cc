package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/ook-receiver/internal/publish"
	"github.com/roman-kulish/ook-receiver/internal/registry"
	"github.com/roman-kulish/ook-receiver/internal/rf"
	"github.com/roman-kulish/ook-receiver/internal/rf/decode"
	"github.com/roman-kulish/ook-receiver/internal/rf/gpioline"
	"github.com/roman-kulish/ook-receiver/internal/storage"
)

const (
	storageDir = "data"

	// readingBatchSize bounds how many readings are buffered before a
	// batch insert. Weather sensors transmit every few seconds at most,
	// so a small batch keeps the database close to live.
	readingBatchSize = 64

	flushTimeout = 5 * time.Second
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	queue, err := rf.NewEdgeQueue(config.Capture.QueueSize)
	if err != nil {
		return fmt.Errorf("creating edge queue: %w", err)
	}

	devices := registry.New()
	options := []func(*decode.Pipeline){decode.WithLogger(logger)}

	var readings *readingBuffer
	if config.Storage.Enabled {
		store, err := createStorage(&config.Storage)
		if err != nil {
			return fmt.Errorf("failed to create storage: %w", err)
		}
		defer closeWithLog(store, "storage", logger)

		sessionID, err := store.CreateSession(ctx, config.Capture.Source, config)
		if err != nil {
			return fmt.Errorf("creating session: %w", err)
		}
		logger.Info("capture session created", "session", sessionID)

		readings = newReadingBuffer(store, sessionID)
		options = append(options, decode.WithSink(readings))
	}

	if config.MQTT.Enabled {
		pub := publish.NewMQTT(config.MQTT, logger)
		if err = pub.Connect(ctx); err != nil {
			return fmt.Errorf("connecting to mqtt broker: %w", err)
		}
		defer closeWithLog(pub, "mqtt publisher", logger)

		options = append(options, decode.WithSink(pub))
	}

	if config.Influx.Enabled {
		writer, err := publish.NewInflux(ctx, config.Influx, logger)
		if err != nil {
			return fmt.Errorf("creating influxdb writer: %w", err)
		}
		defer closeWithLog(writer, "influxdb writer", logger)

		options = append(options, decode.WithSink(writer))
	}

	pipeline, err := decode.New(queue, config.Protocols, devices, options...)
	if err != nil {
		return fmt.Errorf("creating decode pipeline: %w", err)
	}

	defer func() {
		if readings != nil {
			if err := readings.Flush(); err != nil {
				logger.Error("failed to flush readings", "error", err)
			}
		}
		logStats(logger, "session finished", pipeline, queue, nil)
	}()

	if config.Capture.Source == SourceReplay {
		return runReplay(ctx, config, logger, pipeline)
	}
	return runCapture(ctx, config, logger, queue, pipeline)
}

// runCapture spawns the capture subprocess and decodes edges live until
// the context is canceled or the capture fails.
func runCapture(ctx context.Context, config *Config, logger *slog.Logger, queue *rf.EdgeQueue, pipeline *decode.Pipeline) error {
	handler, err := gpioline.New(config.Capture.GPIO)
	if err != nil {
		return fmt.Errorf("creating gpio edge source: %w", err)
	}

	captureOptions := []func(*rf.Capture){rf.WithLogger(logger)}
	if config.Capture.EdgeLog != "" {
		f, err := os.Create(config.Capture.EdgeLog)
		if err != nil {
			return fmt.Errorf("creating edge log: %w", err)
		}
		defer closeWithLog(f, "edge log", logger)

		captureOptions = append(captureOptions, rf.WithEdgeLog(f))
	}

	capture := rf.NewCapture(queue, handler, captureOptions...)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done, err := capture.Start(runCtx)
	if err != nil {
		return fmt.Errorf("starting capture: %w", err)
	}
	logger.Info("capture started", "source", handler.Source())

	pipelineDone := make(chan error, 1)
	go func() {
		pipelineDone <- pipeline.Run(runCtx)
	}()

	ticker := time.NewTicker(config.Settings.StatsInterval)
	defer ticker.Stop()

	var captureErr error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case captureErr = <-done:
			break loop
		case <-ticker.C:
			logStats(logger, "receiver stats", pipeline, queue, capture)
		}
	}

	capture.Stop()
	cancel()
	<-pipelineDone

	if captureErr != nil && !errors.Is(captureErr, context.Canceled) {
		return fmt.Errorf("capture failed: %w", captureErr)
	}
	return nil
}

// runReplay feeds a recorded edge log through the pipeline directly,
// bypassing the queue. Replay is offline, so there is no backpressure
// to manage.
func runReplay(ctx context.Context, config *Config, logger *slog.Logger, pipeline *decode.Pipeline) error {
	f, err := os.Open(config.Capture.ReplayFile)
	if err != nil {
		return fmt.Errorf("opening replay file: %w", err)
	}
	defer closeWithLog(f, "replay file", logger)

	edges, err := rf.ReadEdges(f)
	if err != nil {
		return fmt.Errorf("reading replay file: %w", err)
	}
	logger.Info("replaying edge log", "file", config.Capture.ReplayFile, "edges", humanize.Comma(int64(len(edges))))

	for _, e := range edges {
		if ctx.Err() != nil {
			return nil
		}
		pipeline.Feed(e)
	}
	return nil
}

func logStats(logger *slog.Logger, msg string, pipeline *decode.Pipeline, queue *rf.EdgeQueue, capture *rf.Capture) {
	stats := pipeline.Stats()

	attrs := []any{
		slog.String("queueDrops", humanize.Comma(int64(queue.Drops()))),
		slog.String("framesAssembled", humanize.Comma(int64(stats.FramesAssembled))),
		slog.String("framesValid", humanize.Comma(int64(stats.FramesValid))),
		slog.String("readingsEmitted", humanize.Comma(int64(stats.ReadingsEmitted))),
		slog.String("readingsSuppressed", humanize.Comma(int64(stats.ReadingsSuppressed))),
		slog.String("suspectReadings", humanize.Comma(int64(stats.SuspectReadings))),
	}
	if capture != nil {
		attrs = append(attrs, slog.String("timingFaults", humanize.Comma(int64(capture.TimingFaults()))))
	}
	for proto, n := range stats.Rejects {
		if n > 0 {
			attrs = append(attrs, slog.String("rejects."+proto, humanize.Comma(int64(n))))
		}
	}

	logger.Info(msg, attrs...)
}

func createStorage(config *StorageConfig) (*storage.SqliteStore, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current working directory: %w", err)
	}

	var dbPath string
	if config.DataDirectory != "" {
		dbPath = filepath.Join(wd, config.DataDirectory)
	} else {
		dbPath = filepath.Join(wd, storageDir)
	}

	stat, err := os.Stat(dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("storage directory '%s' does not exist: %w", dbPath, err)
		}
		return nil, fmt.Errorf("inspecting storage directory '%s': %w", dbPath, err)
	}
	if !stat.IsDir() {
		return nil, fmt.Errorf("invalid storage directory '%s'", dbPath)
	}

	dbPath = filepath.Join(dbPath, fmt.Sprintf("ook_session_%s.sqlite", time.Now().UTC().Format("20060102_150405")))
	return storage.NewSqliteStore(dbPath), nil
}

func closeWithLog(cl interface{ Close() error }, name string, logger *slog.Logger) {
	if err := cl.Close(); err != nil {
		logger.Error(fmt.Sprintf("failed to close %s", name), "error", err)
	}
}

// readingBuffer batches readings for insertion so every emitted reading
// does not cost a transaction.
type readingBuffer struct {
	store     storage.Store
	sessionID int64

	mu  sync.Mutex
	buf []rf.Reading
}

func newReadingBuffer(store storage.Store, sessionID int64) *readingBuffer {
	return &readingBuffer{
		store:     store,
		sessionID: sessionID,
		buf:       make([]rf.Reading, 0, readingBatchSize),
	}
}

// Publish implements decode.Sink.
func (b *readingBuffer) Publish(r rf.Reading) error {
	b.mu.Lock()
	b.buf = append(b.buf, r)
	full := len(b.buf) >= readingBatchSize
	b.mu.Unlock()

	if full {
		return b.Flush()
	}
	return nil
}

// Flush writes any buffered readings in a single batch.
func (b *readingBuffer) Flush() error {
	b.mu.Lock()
	batch := b.buf
	b.buf = make([]rf.Reading, 0, readingBatchSize)
	b.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	if err := b.store.StoreReadings(ctx, b.sessionID, batch); err != nil {
		return fmt.Errorf("storing readings: %w", err)
	}
	return nil
}
