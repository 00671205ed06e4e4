// Package metrics - Average Precision and mean Average Precision for object detection.
package metrics

import (
	"cmp"
	"fmt"

	"github.com/nvr-ai/go-detection/boxes"
)

// Detection is a box belonging to an image and a class. Predictions carry a
// Confidence; ground-truth boxes use the same type and leave it at zero.
//
// I is the image identifier. It must be ordered so that detections with equal
// confidence can be ranked deterministically. C is the class identifier.
type Detection[I cmp.Ordered, C comparable] struct {
	ImageID    I
	ClassID    C
	Box        boxes.Box // LTRB
	Confidence float64
}

// NewDetection builds a Detection from a box in any format.
//
// Arguments:
//   - image: The image the box belongs to.
//   - class: The class of the box.
//   - box: The box in format.
//   - format: The format of box.
//   - confidence: The prediction score; 0 for ground truth.
//
// Returns:
//   - Detection[I, C]: The detection with its box converted to LTRB.
//
// @example
//
//	d := NewDetection(1, "car", boxes.Box{10, 10, 20, 30}, boxes.FormatLTWH, 0.9)
//	d.Box // {10, 10, 30, 40}
func NewDetection[I cmp.Ordered, C comparable](image I, class C, box boxes.Box, format boxes.Format, confidence float64) Detection[I, C] {
	return Detection[I, C]{
		ImageID:    image,
		ClassID:    class,
		Box:        boxes.Convert(box, format, boxes.FormatLTRB),
		Confidence: confidence,
	}
}

func (d Detection[I, C]) String() string {
	return fmt.Sprintf("Detection(image=%v, class=%v, box=%v, confidence=%v)", d.ImageID, d.ClassID, d.Box, d.Confidence)
}

// compareRank orders detections for matching: higher confidence first, then
// lower image id, then lexicographically smaller box.
func compareRank[I cmp.Ordered, C comparable](a, b Detection[I, C]) int {
	if c := cmp.Compare(b.Confidence, a.Confidence); c != 0 {
		return c
	}
	if c := cmp.Compare(a.ImageID, b.ImageID); c != 0 {
		return c
	}
	for k := range a.Box {
		if c := cmp.Compare(a.Box[k], b.Box[k]); c != 0 {
			return c
		}
	}
	return 0
}
