package rf

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
)

const (
	// ParseErrorsThreshold defines the number of consecutive parse errors allowed
	ParseErrorsThreshold = 5
)

var (
	// ErrTooManyParseErrors is returned when the number of consecutive parse errors exceeds the threshold
	ErrTooManyParseErrors = errors.New("too many consecutive parse errors")

	// ErrBrokenPipe is returned when there's an error reading from stdout or stderr
	ErrBrokenPipe = errors.New("broken pipe")
)

// Handler interface defines the methods required for handling an edge source.
// An edge source is typically an external capture utility attached to the
// receiver's demodulated-data GPIO, printing one line per level transition.
type Handler interface {
	Cmd(ctx context.Context) *exec.Cmd
	Parse(line string) (Edge, error)
	Source() string
}

// WithLogger sets the logger for the capture
func WithLogger(logger *slog.Logger) func(c *Capture) {
	return func(c *Capture) {
		c.logger = logger.With(slog.String("source", c.handler.Source()))
	}
}

// WithParseErrorsThreshold sets the threshold for consecutive parse errors
func WithParseErrorsThreshold(threshold uint8) func(c *Capture) {
	return func(c *Capture) {
		c.parseErrorsThreshold = threshold
	}
}

// WithEdgeLog mirrors every captured edge to w, one "<us> <level>" line per
// edge, for offline replay and rendering.
func WithEdgeLog(w io.Writer) func(c *Capture) {
	return func(c *Capture) {
		c.edgeLog = w
	}
}

// Capture runs an edge source and feeds its transitions into the edge queue.
// It is the only component touching raw hardware timing: it validates that
// timestamps are strictly increasing (counting violations as timing faults)
// and enqueues. Everything downstream runs in the decode context.
type Capture struct {
	handler Handler
	queue   *EdgeQueue

	isCapturing atomic.Bool
	cancel      context.CancelFunc
	wg          sync.WaitGroup

	lastTimestamp uint64
	timingFaults  atomic.Uint64

	edgeLog              io.Writer
	parseErrorsThreshold uint8
	logger               *slog.Logger
}

// NewCapture creates a new Capture instance with a discard logger
func NewCapture(queue *EdgeQueue, h Handler, options ...func(c *Capture)) *Capture {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	c := Capture{
		handler:              h,
		queue:                queue,
		logger:               logger,
		parseErrorsThreshold: ParseErrorsThreshold,
	}

	for _, option := range options {
		option(&c)
	}

	return &c
}

// Start launches the edge source and begins feeding the queue. The returned
// channel is closed when capture stops; it carries the terminal error, if any.
func (c *Capture) Start(ctx context.Context) (<-chan error, error) {
	if c.isCapturing.Load() {
		return nil, fmt.Errorf("capture is already running")
	}

	c.isCapturing.Store(true)

	ctx, c.cancel = context.WithCancel(ctx)
	cmd := c.handler.Cmd(ctx)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		c.isCapturing.Store(false) // Reset running state on error
		return nil, fmt.Errorf("error creating stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		c.isCapturing.Store(false) // Reset running state on error
		return nil, fmt.Errorf("error creating stderr pipe: %w", err)
	}

	if err = cmd.Start(); err != nil {
		c.isCapturing.Store(false) // Reset running state on error
		return nil, fmt.Errorf("error starting command: %w", err)
	}

	captureStopped := make(chan error, 1)

	c.wg.Add(1)
	go func() {
		defer close(captureStopped)

		c.logger.Info("starting edge capture...")

		done := make(chan error, 3) // expects three results from three goroutines

		go c.handleStdout(stdout, done)
		go c.handleStderr(stderr, done)
		go c.handleCmdWait(cmd, done)

		var errs []error
		for i := 0; i < cap(done); i++ {
			if err := <-done; err != nil {
				c.cancel() // cancel context on error
				c.logger.Error(err.Error())

				errs = append(errs, err)
			}
		}

		close(done)

		c.logger.Info("edge capture stopped")

		c.isCapturing.Store(false)
		c.wg.Done()

		if len(errs) > 0 {
			captureStopped <- errors.Join(errs...)
		}
	}()

	return captureStopped, nil
}

func (c *Capture) Stop() {
	if !c.isCapturing.Load() {
		return // already stopped
	}

	c.cancel()
	c.wg.Wait()
	c.isCapturing.Store(false)
}

// IsCapturing returns true if the capture is running
func (c *Capture) IsCapturing() bool {
	return c.isCapturing.Load()
}

// TimingFaults returns the number of non-monotonic edges discarded so far.
func (c *Capture) TimingFaults() uint64 {
	return c.timingFaults.Load()
}

// handleStdout reads from stdout, parses and enqueues edges.
func (c *Capture) handleStdout(stdout io.Reader, done chan<- error) {
	var parseErrors uint8

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := scanner.Text()
		line = strings.TrimSpace(line)

		if line == "" {
			continue
		}

		edge, err := c.handler.Parse(line)
		if err != nil {
			parseErrors++
			c.logger.Warn(fmt.Sprintf("error parsing edge: %s", err.Error()), slog.String("line", line))

			if parseErrors >= c.parseErrorsThreshold {
				done <- ErrTooManyParseErrors
				return
			}

			continue
		}

		parseErrors = 0 // reset counter

		// Arrival order is authoritative; a timestamp that does not advance
		// is a hardware fault, counted and skipped.
		if edge.Timestamp <= c.lastTimestamp && c.lastTimestamp != 0 {
			c.timingFaults.Add(1)
			c.logger.Warn("non-monotonic edge timestamp",
				slog.Uint64("timestamp", edge.Timestamp),
				slog.Uint64("last", c.lastTimestamp))
			continue
		}
		c.lastTimestamp = edge.Timestamp

		if c.edgeLog != nil {
			_, _ = fmt.Fprintf(c.edgeLog, "%d %d\n", edge.Timestamp, levelBit(edge.Level))
		}

		c.queue.Push(edge)
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, fs.ErrClosed) {
		done <- fmt.Errorf("%w: error reading stdout: %w", ErrBrokenPipe, err)
		return
	}

	done <- nil
}

// handleStderr reads from stderr and logs errors.
func (c *Capture) handleStderr(stderr io.Reader, done chan<- error) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := scanner.Text()
		line = strings.TrimSpace(line)

		if line == "" {
			continue
		}

		c.logger.Warn(fmt.Sprintf("%s >> %s", c.handler.Source(), line)) // simple logging here
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, fs.ErrClosed) {
		done <- fmt.Errorf("%w: error reading stderr: %w", ErrBrokenPipe, err)
		return
	}

	done <- nil
}

// handleCmdWait waits for the command to exit and sends the error to the error channel
func (c *Capture) handleCmdWait(cmd *exec.Cmd, done chan<- error) {
	if err := cmd.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		done <- fmt.Errorf("command exited with error: %w", err)
		return
	}

	done <- nil
}
