package watermark

import (
	"errors"
	"fmt"
)

// Watermark kind constants.
const (
	KindText  = "text"
	KindImage = "image"
)

// Default values applied by Normalize when an option is absent.
const (
	defaultOpacity = 0.5
	defaultOffset  = 10
)

// ErrUnsupportedInput is returned when caller-supplied bytes are not a
// recognized image representation.
var ErrUnsupportedInput = errors.New("unsupported image input")

// Options is the caller-facing option set for a watermark operation. All
// fields except Type are optional; Normalize fills in defaults and validates
// ranges. ImageData carries the mark bitmap as base64, optionally wrapped in
// a data URL. Text watermarks also use ImageData: the text is rasterized by
// the client and submitted as a bitmap, matching the engine contract.
type Options struct {
	Type         string   `json:"type"`
	Transparency *float64 `json:"transparency,omitempty"`
	Rotate       *float64 `json:"rotate,omitempty"`
	XOffset      *int     `json:"x_offset,omitempty"`
	YOffset      *int     `json:"y_offset,omitempty"`
	Tile         *bool    `json:"tile,omitempty"`
	ImageData    string   `json:"image_data,omitempty"`
	Width        *int     `json:"width,omitempty"`
	Height       *int     `json:"height,omitempty"`
}

// Config is the canonical, validated configuration record handed to the
// engine. Mark holds the decoded mark image bytes. Width and Height of zero
// mean "keep the mark's natural size"; a set Width with zero Height resizes
// proportionally. Negative offsets measure from the far edge.
type Config struct {
	Kind    string
	Opacity float64
	Rotate  float64
	OffsetX int
	OffsetY int
	Tile    bool
	Mark    []byte
	Width   int
	Height  int
}

// Normalize validates o and produces the canonical Config, applying defaults
// for absent fields and decoding the mark bitmap out of its base64 wrapper.
func (o Options) Normalize() (Config, error) {
	if o.Type != KindText && o.Type != KindImage {
		return Config{}, fmt.Errorf("invalid watermark type %q: must be %q or %q", o.Type, KindText, KindImage)
	}

	cfg := Config{
		Kind:    o.Type,
		Opacity: defaultOpacity,
		OffsetX: defaultOffset,
		OffsetY: defaultOffset,
	}

	if o.Transparency != nil {
		if *o.Transparency < 0 || *o.Transparency > 1 {
			return Config{}, fmt.Errorf("transparency must be between 0.0 and 1.0, got %v", *o.Transparency)
		}
		cfg.Opacity = *o.Transparency
	}

	if o.Rotate != nil {
		if *o.Rotate < -360 || *o.Rotate > 360 {
			return Config{}, fmt.Errorf("rotation angle must be between -360 and 360 degrees, got %v", *o.Rotate)
		}
		cfg.Rotate = *o.Rotate
	}

	if o.XOffset != nil {
		cfg.OffsetX = *o.XOffset
	}
	if o.YOffset != nil {
		cfg.OffsetY = *o.YOffset
	}
	if o.Tile != nil {
		cfg.Tile = *o.Tile
	}

	if o.ImageData == "" {
		if o.Type == KindText {
			return Config{}, errors.New("text watermark requires image_data (rendered by client)")
		}
		return Config{}, errors.New("image_data is required")
	}

	mark, err := DecodeDataURL(o.ImageData)
	if err != nil {
		return Config{}, fmt.Errorf("decode image_data: %w", err)
	}
	cfg.Mark = mark

	if o.Width != nil {
		if *o.Width <= 0 {
			return Config{}, errors.New("width must be greater than 0")
		}
		cfg.Width = *o.Width
	}
	if o.Height != nil {
		if *o.Height <= 0 {
			return Config{}, errors.New("height must be greater than 0")
		}
		cfg.Height = *o.Height
	}

	return cfg, nil
}
