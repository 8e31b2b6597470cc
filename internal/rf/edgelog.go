package rf

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Edge log format: one "<timestamp_us> <0|1>" line per transition. This is
// both the wire contract of the capture utility's stdout and the on-disk
// replay format consumed by tests and the pulseview renderer.

// ParseEdgeLine parses a single edge-log line.
func ParseEdgeLine(line string) (Edge, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return Edge{}, fmt.Errorf("invalid edge line: expected 2 fields, got %d", len(fields))
	}

	ts, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return Edge{}, fmt.Errorf("invalid edge timestamp: %w", err)
	}

	var level Level
	switch fields[1] {
	case "0":
		level = Low
	case "1":
		level = High
	default:
		return Edge{}, fmt.Errorf("invalid edge level %q", fields[1])
	}

	return Edge{Timestamp: ts, Level: level}, nil
}

// ReadEdges reads an entire edge log. Blank lines and lines starting with
// '#' are skipped.
func ReadEdges(r io.Reader) ([]Edge, error) {
	var edges []Edge

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		edge, err := ParseEdgeLine(line)
		if err != nil {
			return nil, err
		}
		edges = append(edges, edge)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading edge log: %w", err)
	}

	return edges, nil
}

// WriteEdge appends a single edge to an edge log.
func WriteEdge(w io.Writer, e Edge) error {
	_, err := fmt.Fprintf(w, "%d %d\n", e.Timestamp, levelBit(e.Level))
	return err
}

func levelBit(l Level) int {
	if l == High {
		return 1
	}
	return 0
}

// Pulses converts a sequence of edges into the pulses between them.
// Each pulse carries the level the line held and for how long. The last
// edge only terminates the final pulse.
func Pulses(edges []Edge) []Pulse {
	if len(edges) < 2 {
		return nil
	}

	pulses := make([]Pulse, 0, len(edges)-1)
	for i := 1; i < len(edges); i++ {
		pulses = append(pulses, Pulse{
			Duration: edges[i].Timestamp - edges[i-1].Timestamp,
			Level:    edges[i-1].Level,
		})
	}
	return pulses
}
