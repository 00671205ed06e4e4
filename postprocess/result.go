// Package postprocess - Postprocessing utilities for detection outputs.
package postprocess

import (
	"fmt"

	"github.com/nvr-ai/go-detection/boxes"
)

// Result represents a single detection result.
type Result struct {
	// The LTRB bounding box of the result.
	Box boxes.Box
	// The confidence score of the result.
	Score float64
	// The predicted class index of the result.
	Class int
}

func (r Result) String() string {
	return fmt.Sprintf("class %d (score %f): (%f, %f), (%f, %f)",
		r.Class, r.Score, r.Box[0], r.Box[1], r.Box[2], r.Box[3])
}
