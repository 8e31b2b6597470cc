package app

import (
	"errors"
	"flag"
	"fmt"
	"strings"
)

const (
	ImagePNG  = "png"
	ImageJPEG = "jpeg"
)

type ImageFormat string

type Config struct {
	EdgeLogPath   string
	OutputFile    string
	Format        ImageFormat
	Protocol      string
	MicrosPerPx   int
	RowWidth      int
	FontPath      string
	Verbose       bool
	NoAnnotations bool
}

var validImageFormats = map[ImageFormat]struct{}{
	ImagePNG:  {},
	ImageJPEG: {},
}

func NewConfig() *Config {
	return &Config{
		Format:      ImagePNG,
		MicrosPerPx: 50,
		RowWidth:    1200,
	}
}

func NewConfigFromCLI() (*Config, error) {
	c := NewConfig()

	var imageFormat string
	flag.StringVar(&c.EdgeLogPath, "i", "", "Path to the edge log file")
	flag.StringVar(&c.OutputFile, "o", "", "Path to the output file")
	flag.StringVar(&imageFormat, "f", string(ImagePNG), "Output image format. [png, jpeg]")
	flag.StringVar(&c.Protocol, "p", "", "Color pulses by classifying against this protocol")
	flag.IntVar(&c.MicrosPerPx, "scale", c.MicrosPerPx, "Microseconds per pixel")
	flag.IntVar(&c.RowWidth, "row-width", c.RowWidth, "Waveform row width in pixels")
	flag.StringVar(&c.FontPath, "font", "", "Path to a TrueType font for labels (built-in bitmap font by default)")
	flag.BoolVar(&c.Verbose, "verbose", false, "Enable more verbose output")
	flag.BoolVar(&c.NoAnnotations, "no-annotations", false, "Disable annotations such as time offsets and the info bar")
	flag.Parse()

	imageFormat = strings.ToLower(imageFormat)

	var err error
	if c.EdgeLogPath == "" {
		err = errors.New("edge log path is required")
	} else if c.OutputFile == "" {
		err = errors.New("output file is required")
	} else if c.MicrosPerPx <= 0 {
		err = errors.New("scale must be positive")
	} else if c.RowWidth < 100 {
		err = errors.New("row width must be at least 100 pixels")
	} else if _, ok := validImageFormats[ImageFormat(imageFormat)]; !ok {
		err = fmt.Errorf("invalid image format: %s", imageFormat)
	}

	if err != nil {
		flag.Usage()
		return nil, err
	}

	c.Format = ImageFormat(imageFormat)
	c.OutputFile = fmt.Sprintf("%s.%s", c.OutputFile, c.Format)
	return c, nil
}
