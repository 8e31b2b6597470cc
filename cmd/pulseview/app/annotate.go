package app

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	dpi      = 120.0
	fontSize = 12.0

	tickMarkWidth = 5
)

type annotatorConfig struct {
	FontPath string
	Edges    int
	Protocol string
}

// annotator draws time offsets and the info bar. It uses a TrueType font
// when one is configured and falls back to the built-in bitmap face.
type annotator struct {
	config   annotatorConfig
	fontFace font.Face
	closer   func() error
}

func newAnnotator(config annotatorConfig) (*annotator, error) {
	a := annotator{
		config:   config,
		fontFace: basicfont.Face7x13,
		closer:   func() error { return nil },
	}

	if config.FontPath != "" {
		data, err := os.ReadFile(config.FontPath)
		if err != nil {
			return nil, fmt.Errorf("reading font: %w", err)
		}

		parsedFont, err := freetype.ParseFont(data)
		if err != nil {
			return nil, fmt.Errorf("parsing font: %w", err)
		}

		face := truetype.NewFace(parsedFont, &truetype.Options{
			Size:    fontSize,
			DPI:     dpi,
			Hinting: font.HintingNone,
		})
		a.fontFace = face
		a.closer = face.Close
	}

	return &a, nil
}

func (a *annotator) Close() error {
	return a.closer()
}

func (a *annotator) annotate(img *image.RGBA, r *WaveRenderer, rows int, totalUS uint64) error {
	a.drawTimeOffsets(img, r, rows)
	a.drawInfoBar(img, r, totalUS)
	return nil
}

// drawTimeOffsets labels each waveform row with its start offset into
// the capture.
func (a *annotator) drawTimeOffsets(img *image.RGBA, r *WaveRenderer, rows int) {
	metrics := a.fontFace.Metrics()
	rowSpanUS := uint64(r.config.RowWidth) * uint64(r.config.MicrosPerPx)

	for row := 0; row < rows; row++ {
		rowTop := r.config.Borders.Top + row*(rowHeight+rowGap)
		midY := rowTop + rowHeight/2

		for x := r.config.Borders.Left - tickMarkWidth; x < r.config.Borders.Left; x++ {
			img.Set(x, midY, color.Black)
		}

		offset := time.Duration(uint64(row)*rowSpanUS) * time.Microsecond
		label := humanize.SIWithDigits(offset.Seconds(), 2, "s")

		textY := midY + metrics.Ascent.Round()/2
		a.drawString(img, 10, textY, label)
	}
}

func (a *annotator) drawInfoBar(img *image.RGBA, r *WaveRenderer, totalUS uint64) {
	span := time.Duration(totalUS) * time.Microsecond
	info := fmt.Sprintf("Edges: %s; Span: %s; 1px = %dus",
		humanize.Comma(int64(a.config.Edges)),
		humanize.SIWithDigits(span.Seconds(), 3, "s"),
		r.config.MicrosPerPx,
	)
	if a.config.Protocol != "" {
		info += fmt.Sprintf("; Classified as: %s", a.config.Protocol)
	}

	metrics := a.fontFace.Metrics()
	fontHeight := (metrics.Ascent + metrics.Descent).Round()
	textY := img.Bounds().Max.Y - (r.config.Borders.Bottom-fontHeight)/2 - metrics.Descent.Round()

	a.drawString(img, r.config.Borders.Left, textY, info)
}

func (a *annotator) drawString(img *image.RGBA, x, y int, label string) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.Black,
		Face: a.fontFace,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(label)
}
