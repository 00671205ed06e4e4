package assign

import (
	"math"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-detection/boxes"
)

// GridSpec describes the anchors of one feature-map scale.
type GridSpec struct {
	// Width and Height are the feature map size in cells.
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
	// Stride is the size of one cell in input pixels.
	Stride float64 `json:"stride" yaml:"stride"`
	// Sizes are the anchor side lengths in input pixels.
	Sizes []float64 `json:"sizes" yaml:"sizes"`
	// AspectRatios are width/height ratios. Empty means {1}.
	AspectRatios []float64 `json:"aspectRatios" yaml:"aspectRatios"`
}

// Validate checks that s describes at least one anchor of positive size.
func (s GridSpec) Validate() error {
	if s.Width <= 0 || s.Height <= 0 {
		return errors.Errorf("grid size %dx%d must be positive", s.Width, s.Height)
	}
	if !(s.Stride > 0) {
		return errors.Errorf("grid stride %v must be positive", s.Stride)
	}
	if len(s.Sizes) == 0 {
		return errors.New("grid needs at least one anchor size")
	}
	for _, size := range s.Sizes {
		if !(size > 0) {
			return errors.Errorf("anchor size %v must be positive", size)
		}
	}
	for _, r := range s.AspectRatios {
		if !(r > 0) {
			return errors.Errorf("aspect ratio %v must be positive", r)
		}
	}
	return nil
}

// AnchorsPerCell is the number of anchors centred on each cell.
func (s GridSpec) AnchorsPerCell() int {
	return len(s.Sizes) * max(1, len(s.AspectRatios))
}

// GenerateGrid builds the XYWH anchors of one scale. Anchors are laid out
// row-major over cells, and within a cell by size then aspect ratio, which
// matches a (height, width, anchors, 4) head output flattened.
func GenerateGrid(s GridSpec) ([]boxes.Box, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	ratios := s.AspectRatios
	if len(ratios) == 0 {
		ratios = []float64{1}
	}

	out := make([]boxes.Box, 0, s.Width*s.Height*s.AnchorsPerCell())
	for y := 0; y < s.Height; y++ {
		cy := (float64(y) + 0.5) * s.Stride
		for x := 0; x < s.Width; x++ {
			cx := (float64(x) + 0.5) * s.Stride
			for _, size := range s.Sizes {
				for _, r := range ratios {
					sr := math.Sqrt(r)
					out = append(out, boxes.Box{cx, cy, size * sr, size / sr})
				}
			}
		}
	}
	return out, nil
}

// GenerateGrids builds one anchor grid per spec, in order.
func GenerateGrids(specs ...GridSpec) ([][]boxes.Box, error) {
	grids := make([][]boxes.Box, 0, len(specs))
	for i, s := range specs {
		g, err := GenerateGrid(s)
		if err != nil {
			return nil, errors.Wrapf(err, "grid %d", i)
		}
		grids = append(grids, g)
	}
	return grids, nil
}
