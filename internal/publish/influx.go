package publish

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/roman-kulish/ook-receiver/internal/rf"
)

const (
	defaultBatchSize     = 100
	defaultFlushInterval = 10 * time.Second
	pingTimeout          = 5 * time.Second

	readingsMeasurement = "sensor_readings"
)

// InfluxConfig configures the InfluxDB v2 writer.
type InfluxConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batchSize"`
	FlushInterval int    `yaml:"flushIntervalMs"`
}

// InfluxWriter records readings as time-series points. Writes are
// non-blocking: points are batched and sent asynchronously.
type InfluxWriter struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	logger   *slog.Logger
}

// NewInflux creates a writer, verifies connectivity with a ping and starts
// draining async write errors into the log.
func NewInflux(ctx context.Context, cfg InfluxConfig, logger *slog.Logger) (*InfluxWriter, error) {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	flushInterval := time.Duration(cfg.FlushInterval) * time.Millisecond
	if flushInterval <= 0 {
		flushInterval = defaultFlushInterval
	}

	// #nosec G115 -- values validated above to be positive
	client := influxdb2.NewClientWithOptions(
		cfg.URL,
		cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(uint(batchSize)).
			SetFlushInterval(uint(flushInterval.Milliseconds())),
	)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if ok, err := client.Ping(pingCtx); err != nil || !ok {
		client.Close()
		if err == nil {
			err = fmt.Errorf("server not ready")
		}
		return nil, fmt.Errorf("pinging influxdb at %s: %w", cfg.URL, err)
	}

	w := InfluxWriter{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
		logger:   logger,
	}

	go func() {
		for err := range w.writeAPI.Errors() {
			logger.Warn("influxdb async write error", "error", err)
		}
	}()

	return &w, nil
}

// Publish records one reading at its decode timestamp.
func (w *InfluxWriter) Publish(r rf.Reading) error {
	point := write.NewPoint(
		readingsMeasurement,
		map[string]string{
			"protocol":  r.Protocol,
			"device_id": r.DeviceID,
			"metric":    string(r.Metric),
		},
		map[string]interface{}{
			"value":   r.Value,
			"suspect": r.Suspect,
		},
		r.Timestamp,
	)

	w.writeAPI.WritePoint(point)
	return nil
}

// Close flushes buffered points and releases the client.
func (w *InfluxWriter) Close() error {
	w.writeAPI.Flush()
	w.client.Close()
	return nil
}
