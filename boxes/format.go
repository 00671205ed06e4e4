// Package boxes - bounding box representations, format conversion and
// intersection-over-union.
package boxes

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Format tags how the four numbers of a Box are to be read. A Box has no
// meaning without its Format.
type Format int

const (
	// FormatLTWH is corner + size: left, top, width, height.
	FormatLTWH Format = iota
	// FormatLTRB is corner + corner: xmin, ymin, xmax, ymax.
	FormatLTRB
	// FormatXYWH is center + size: center x, center y, width, height.
	FormatXYWH

	numFormats
)

var formatNames = [numFormats]string{
	FormatLTWH: "ltwh",
	FormatLTRB: "ltrb",
	FormatXYWH: "xywh",
}

// String returns the lower-case format name.
func (f Format) String() string {
	if !f.Valid() {
		return fmt.Sprintf("Format(%d)", int(f))
	}
	return formatNames[f]
}

// Valid reports whether f is one of the three known formats.
func (f Format) Valid() bool {
	return f >= 0 && f < numFormats
}

// ParseFormat parses a format name as written in configuration files.
// Besides the canonical names it accepts "xyxy" for LTRB and "cxcywh" for XYWH.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ltwh":
		return FormatLTWH, nil
	case "ltrb", "xyxy":
		return FormatLTRB, nil
	case "xywh", "cxcywh":
		return FormatXYWH, nil
	}
	return 0, errors.Errorf("unknown box format %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (f Format) MarshalText() ([]byte, error) {
	if !f.Valid() {
		return nil, errors.Errorf("invalid box format %d", int(f))
	}
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, so formats can be
// written by name in JSON and YAML configuration.
func (f *Format) UnmarshalText(text []byte) error {
	parsed, err := ParseFormat(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// mustValid panics on formats outside the closed set. Passing one is a
// programming error, not a data error.
func (f Format) mustValid() {
	if !f.Valid() {
		panic(fmt.Sprintf("boxes: invalid format %d", int(f)))
	}
}
