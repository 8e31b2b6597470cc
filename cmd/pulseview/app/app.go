package app

import (
	"context"
	"fmt"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/ook-receiver/internal/protocol"
	"github.com/roman-kulish/ook-receiver/internal/rf"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	if _, err := os.Stat(config.EdgeLogPath); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("edge log file '%s' does not exist: %w", config.EdgeLogPath, err)
	}

	f, err := os.Open(config.EdgeLogPath)
	if err != nil {
		return fmt.Errorf("opening edge log: %w", err)
	}
	defer f.Close()

	edges, err := rf.ReadEdges(f)
	if err != nil {
		return fmt.Errorf("reading edge log: %w", err)
	}
	if len(edges) < 2 {
		return fmt.Errorf("edge log '%s' holds no pulses", config.EdgeLogPath)
	}

	var proto *protocol.Protocol
	if config.Protocol != "" {
		if proto = findProtocol(config.Protocol); proto == nil {
			return fmt.Errorf("unknown protocol '%s'", config.Protocol)
		}
	}

	samples, totalUS := buildSamples(edges, proto)

	logger.Info("loaded edge log",
		slog.String("file", config.EdgeLogPath),
		slog.String("edges", humanize.Comma(int64(len(edges)))),
		slog.String("span", humanize.SIWithDigits((time.Duration(totalUS)*time.Microsecond).Seconds(), 3, "s")))

	renderer := NewWaveRenderer(RenderConfig{
		MicrosPerPx: config.MicrosPerPx,
		RowWidth:    config.RowWidth,
	})

	var ann *annotator
	if !config.NoAnnotations {
		if ann, err = newAnnotator(annotatorConfig{
			FontPath: config.FontPath,
			Edges:    len(edges),
			Protocol: config.Protocol,
		}); err != nil {
			return fmt.Errorf("creating annotator: %w", err)
		}
		defer ann.Close()
	}

	logger.Info("rendering waveform",
		slog.Group("image",
			slog.String("destination", config.OutputFile),
			slog.String("format", string(config.Format)),
			slog.Int("rows", renderer.Rows(totalUS)),
		))

	img, err := renderer.Render(samples, totalUS, ann)
	if err != nil {
		return fmt.Errorf("rendering waveform: %w", err)
	}

	out, err := os.Create(config.OutputFile)
	if err != nil {
		return err
	}
	defer out.Close()

	switch config.Format {
	case ImagePNG:
		err = png.Encode(out, img)

	case ImageJPEG:
		err = jpeg.Encode(out, img, &jpeg.Options{
			Quality: 98,
		})
	}
	return err
}

// buildSamples turns an edge list into timeline-positioned pulses,
// classifying each against the selected protocol when one is set.
// Timestamps are normalized so the capture starts at zero.
func buildSamples(edges []rf.Edge, proto *protocol.Protocol) ([]pulseSample, uint64) {
	origin := edges[0].Timestamp
	samples := make([]pulseSample, 0, len(edges)-1)

	for i := 0; i < len(edges)-1; i++ {
		s := pulseSample{
			StartUS:  edges[i].Timestamp - origin,
			Duration: edges[i+1].Timestamp - edges[i].Timestamp,
			Level:    edges[i].Level,
		}
		if proto != nil {
			s.Symbol = proto.Classify(rf.Pulse{Duration: s.Duration, Level: s.Level})
			s.Classified = true
		}
		samples = append(samples, s)
	}

	return samples, edges[len(edges)-1].Timestamp - origin
}

func findProtocol(name string) *protocol.Protocol {
	protocols := protocol.Builtin()
	for i := range protocols {
		if protocols[i].Name == name {
			return &protocols[i]
		}
	}
	return nil
}
