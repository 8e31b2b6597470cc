// Package gpioline adapts a GPIO edge-dump utility (gpiomon-style, attached
// to the receiver's demodulated-data pin) as an rf.Handler. The utility is
// expected to print one "<timestamp_us> <0|1>" line per level transition.
package gpioline

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/roman-kulish/ook-receiver/internal/rf"
)

const (
	// Runtime is the default edge-dump binary looked up on PATH.
	Runtime = "ook-edges"

	// Source identifies this edge source in logs.
	Source = "gpio"
)

// Config describes the GPIO line the capture utility should watch.
type Config struct {
	// Binary overrides the edge-dump utility path. Defaults to Runtime.
	Binary string `yaml:"binary"`

	// Chip is the GPIO chip device, e.g. "gpiochip0".
	Chip string `yaml:"chip"`

	// Line is the GPIO line offset of the demodulated-data pin.
	Line int `yaml:"line"`

	// ExtraArgs are passed to the utility verbatim, after the standard ones.
	ExtraArgs []string `yaml:"extraArgs"`
}

// Validate checks the configuration for obvious mistakes.
func (c *Config) Validate() error {
	if c.Chip == "" {
		return errors.New("gpioline: chip is required")
	}
	if c.Line < 0 {
		return fmt.Errorf("gpioline: invalid line offset %d", c.Line)
	}
	return nil
}

// handler wraps the edge-dump subprocess
type handler struct {
	binPath string
	args    []string
}

// New creates a new GPIO edge source handler
func New(config *Config) (rf.Handler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	runtime := config.Binary
	if runtime == "" {
		runtime = Runtime
	}

	binPath, err := exec.LookPath(runtime)
	if err != nil {
		return nil, fmt.Errorf("error finding runtime: %w", err)
	}

	args := []string{"-c", config.Chip, "-l", strconv.Itoa(config.Line)}
	args = append(args, config.ExtraArgs...)

	return &handler{binPath, args}, nil
}

// Cmd returns an exec.Cmd for the edge-dump utility
func (h handler) Cmd(ctx context.Context) *exec.Cmd {
	return exec.CommandContext(ctx, h.binPath, h.args...)
}

// Parse parses a line of edge-dump output
func (h handler) Parse(line string) (rf.Edge, error) {
	return rf.ParseEdgeLine(line)
}

func (h handler) Source() string {
	return Source
}
