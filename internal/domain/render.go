package domain

import (
	"errors"
	"strings"
)

const (
	MinDimension  = 50
	MaxDimension  = 4000
	DefaultWidth  = 800
	DefaultHeight = 600
	DefaultFormat = "png"
)

var ErrInvalidDimensions = errors.New("width and height must be between 50 and 4000 pixels")

type RenderRequest struct {
	Width  int       `json:"width"`
	Height int       `json:"height"`
	Format string    `json:"format"`
	Chart  ChartSpec `json:"chart"`
}

func (r RenderRequest) ValidateDimensions() error {
	if !inRange(r.Width) || !inRange(r.Height) {
		return ErrInvalidDimensions
	}
	return nil
}

// OutputFormat returns the requested format tag, or png when none was given.
// The tag is passed through as-is.
func (r RenderRequest) OutputFormat() string {
	if strings.TrimSpace(r.Format) == "" {
		return DefaultFormat
	}
	return r.Format
}

func inRange(v int) bool {
	return v >= MinDimension && v <= MaxDimension
}
