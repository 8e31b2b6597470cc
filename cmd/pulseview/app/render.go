package app

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/roman-kulish/ook-receiver/internal/rf"
)

const (
	// Waveform row geometry in pixels
	rowHeight = 48
	rowGap    = 16
	waveInset = 4

	// Default border sizes in pixels
	defaultTopBorder    = 20
	defaultLeftBorder   = 80
	defaultBottomBorder = 40
	defaultRightBorder  = 20
)

var (
	colorUnclassified = color.RGBA{A: 0xff}
	colorZero         = color.RGBA{R: 33, G: 118, B: 199, A: 0xff}
	colorOne          = color.RGBA{R: 46, G: 160, B: 67, A: 0xff}
	colorSync         = color.RGBA{R: 219, G: 154, B: 27, A: 0xff}
	colorSeparator    = color.RGBA{R: 150, G: 150, B: 150, A: 0xff}
	colorInvalid      = color.RGBA{R: 207, G: 56, B: 60, A: 0xff}
)

// BorderConfig defines the sizes of white space around the waveform
type BorderConfig struct {
	Top    int
	Left   int // Space for time offsets
	Bottom int // Space for information bar
	Right  int
}

// pulseSample is one pulse positioned on the capture timeline, optionally
// classified against a protocol's pulse templates.
type pulseSample struct {
	StartUS    uint64
	Duration   uint64
	Level      rf.Level
	Symbol     rf.Symbol
	Classified bool
}

// RenderConfig holds the waveform layout options
type RenderConfig struct {
	MicrosPerPx int
	RowWidth    int // Waveform pixels per row
	Borders     BorderConfig
}

// WaveRenderer draws captured pulses as a wrapped strip chart: the
// timeline runs left to right and continues on the next row.
type WaveRenderer struct {
	config RenderConfig
}

// NewWaveRenderer creates a waveform renderer with the given configuration
func NewWaveRenderer(config RenderConfig) *WaveRenderer {
	if config.Borders.Top == 0 {
		config.Borders.Top = defaultTopBorder
	}
	if config.Borders.Left == 0 {
		config.Borders.Left = defaultLeftBorder
	}
	if config.Borders.Bottom == 0 {
		config.Borders.Bottom = defaultBottomBorder
	}
	if config.Borders.Right == 0 {
		config.Borders.Right = defaultRightBorder
	}

	return &WaveRenderer{config: config}
}

// Rows returns how many waveform rows the given capture span occupies.
func (r *WaveRenderer) Rows(totalUS uint64) int {
	totalPx := int(totalUS) / r.config.MicrosPerPx
	rows := totalPx/r.config.RowWidth + 1
	return rows
}

// Render draws the pulse train and returns the image.
func (r *WaveRenderer) Render(samples []pulseSample, totalUS uint64, ann *annotator) (*image.RGBA, error) {
	rows := r.Rows(totalUS)

	fullWidth := r.config.RowWidth + r.config.Borders.Left + r.config.Borders.Right
	fullHeight := rows*(rowHeight+rowGap) + r.config.Borders.Top + r.config.Borders.Bottom
	img := image.NewRGBA(image.Rect(0, 0, fullWidth, fullHeight))

	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	if ann != nil {
		if err := ann.annotate(img, r, rows, totalUS); err != nil {
			return nil, err
		}
	}

	var prevLevel rf.Level
	for i, s := range samples {
		c := sampleColor(s)

		startPx := int(s.StartUS) / r.config.MicrosPerPx
		endPx := int(s.StartUS+s.Duration) / r.config.MicrosPerPx
		if endPx == startPx {
			endPx = startPx + 1 // Sub-pixel pulses still get a mark
		}

		// A pulse may wrap across one or more rows
		for px := startPx; px < endPx; {
			row := px / r.config.RowWidth
			rowEnd := (row + 1) * r.config.RowWidth
			segEnd := min(endPx, rowEnd)

			x0 := r.config.Borders.Left + px - row*r.config.RowWidth
			y := r.rowLevelY(row, s.Level)
			drawHLine(img, x0, x0+segEnd-px, y, c)

			px = segEnd
		}

		// Transition edge at the pulse start
		if i > 0 && prevLevel != s.Level {
			row := startPx / r.config.RowWidth
			x := r.config.Borders.Left + startPx - row*r.config.RowWidth
			drawVLine(img, x, r.rowLevelY(row, rf.High), r.rowLevelY(row, rf.Low), c)
		}
		prevLevel = s.Level
	}

	return img, nil
}

// rowLevelY maps a signal level to its y coordinate within a row.
func (r *WaveRenderer) rowLevelY(row int, level rf.Level) int {
	top := r.config.Borders.Top + row*(rowHeight+rowGap)
	if level == rf.High {
		return top + waveInset
	}
	return top + rowHeight - waveInset
}

func sampleColor(s pulseSample) color.Color {
	if !s.Classified {
		return colorUnclassified
	}

	switch s.Symbol {
	case rf.SymbolZero:
		return colorZero
	case rf.SymbolOne:
		return colorOne
	case rf.SymbolSync:
		return colorSync
	case rf.SymbolSeparator:
		return colorSeparator
	default:
		return colorInvalid
	}
}

func drawHLine(img *image.RGBA, x0, x1, y int, c color.Color) {
	for x := x0; x < x1; x++ {
		img.Set(x, y, c)
	}
}

func drawVLine(img *image.RGBA, x, y0, y1 int, c color.Color) {
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	for y := y0; y <= y1; y++ {
		img.Set(x, y, c)
	}
}
