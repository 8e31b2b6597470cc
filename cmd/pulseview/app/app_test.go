package app

import (
	"testing"

	"github.com/roman-kulish/ook-receiver/internal/rf"
)

func TestBuildSamples(t *testing.T) {
	edges := []rf.Edge{
		{Timestamp: 1000, Level: rf.High},
		{Timestamp: 1500, Level: rf.Low},
		{Timestamp: 5500, Level: rf.High},
		{Timestamp: 7000, Level: rf.Low},
	}

	samples, totalUS := buildSamples(edges, nil)
	if totalUS != 6000 {
		t.Errorf("Expected a 6000 us span, got %d", totalUS)
	}
	if len(samples) != 3 {
		t.Fatalf("Expected 3 samples, got %d", len(samples))
	}

	// Timestamps are normalized to the capture start.
	if samples[0].StartUS != 0 || samples[0].Duration != 500 || samples[0].Level != rf.High {
		t.Errorf("Unexpected first sample %+v", samples[0])
	}
	if samples[1].StartUS != 500 || samples[1].Duration != 4000 {
		t.Errorf("Unexpected second sample %+v", samples[1])
	}
	for _, s := range samples {
		if s.Classified {
			t.Error("Expected samples without a protocol to be unclassified")
		}
	}
}

func TestBuildSamples_Classified(t *testing.T) {
	proto := findProtocol("ws-201")
	if proto == nil {
		t.Fatal("Expected ws-201 in the builtin table")
	}

	edges := []rf.Edge{
		{Timestamp: 0, Level: rf.High},    // 500 us carrier: zero
		{Timestamp: 500, Level: rf.Low},   // 4000 us gap: sync
		{Timestamp: 4500, Level: rf.High}, // 1500 us carrier: one
		{Timestamp: 6000, Level: rf.Low},
	}

	samples, _ := buildSamples(edges, proto)
	want := []rf.Symbol{rf.SymbolZero, rf.SymbolSync, rf.SymbolOne}
	for i, sym := range want {
		if !samples[i].Classified {
			t.Fatalf("Sample %d: expected classification", i)
		}
		if samples[i].Symbol != sym {
			t.Errorf("Sample %d: expected %s, got %s", i, sym, samples[i].Symbol)
		}
	}
}

func TestWaveRenderer_Rows(t *testing.T) {
	r := NewWaveRenderer(RenderConfig{MicrosPerPx: 50, RowWidth: 1000})

	// 1000 px per row at 50 us/px covers 50 ms per row.
	if got := r.Rows(25_000); got != 1 {
		t.Errorf("Expected 1 row for 25 ms, got %d", got)
	}
	if got := r.Rows(75_000); got != 2 {
		t.Errorf("Expected 2 rows for 75 ms, got %d", got)
	}
}

func TestWaveRenderer_Render(t *testing.T) {
	r := NewWaveRenderer(RenderConfig{MicrosPerPx: 50, RowWidth: 200})

	samples := []pulseSample{
		{StartUS: 0, Duration: 5000, Level: rf.High},
		{StartUS: 5000, Duration: 4000, Level: rf.Low},
		{StartUS: 9000, Duration: 11_000, Level: rf.High},
	}

	img, err := r.Render(samples, 20_000, nil)
	if err != nil {
		t.Fatalf("Failed to render: %v", err)
	}

	bounds := img.Bounds()
	wantWidth := 200 + defaultLeftBorder + defaultRightBorder
	if bounds.Dx() != wantWidth {
		t.Errorf("Expected image width %d, got %d", wantWidth, bounds.Dx())
	}
	if bounds.Dy() <= defaultTopBorder+defaultBottomBorder {
		t.Errorf("Expected room for waveform rows, got height %d", bounds.Dy())
	}
}
