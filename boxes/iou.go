package boxes

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-detection/util"
)

// ErrLengthMismatch is returned when two batches that are compared
// elementwise have different lengths.
var ErrLengthMismatch = errors.New("boxes: batch lengths differ")

// IoU (Intersection over Union) measures how much two boxes overlap: the
// area both cover divided by the area either covers.
//
//	IoU = Area of Intersection / Area of Union
//
// Both boxes are LTRB. The intersection is spanned by the larger of the two
// top-left corners and the smaller of the two bottom-right corners. When
// either span of that rectangle is negative the boxes are apart and the
// result is exactly 0; it is clamped, not left to cancel out in the
// arithmetic.
//
// A zero union (two zero-area boxes sharing a point or an edge) also yields
// 0, never NaN. Every IoU variant in this package follows the same rule.
//
// Arguments:
//   - a: The first LTRB box.
//   - b: The second LTRB box.
//
// Returns:
//   - float64: A value in [0, 1] for well-formed boxes.
//
// @example
//
//	a := Box{0, 0, 10, 10}
//	b := Box{5, 5, 15, 15}
//	IoU(a, b) // 25 / 175 = 0.142857
func IoU(a, b Box) float64 {
	xdiff := min(a[2], b[2]) - max(a[0], b[0])
	ydiff := min(a[3], b[3]) - max(a[1], b[1])
	if xdiff < 0 || ydiff < 0 {
		return 0
	}

	inter := xdiff * ydiff
	union := (a[2]-a[0])*(a[3]-a[1]) + (b[2]-b[0])*(b[3]-b[1]) - inter
	// !(union > 0) also catches NaN coordinates.
	if !(union > 0) {
		return 0
	}
	return inter / union
}

// PixelIoU is IoU under the discrete pixel convention used by the
// suppression engine: coordinates name inclusive pixel indices, so every
// side is one pixel longer than its coordinate difference,
// (x2 - x1 + 1) * (y2 - y1 + 1).
func PixelIoU(a, b Box) float64 {
	w := max(0, min(a[2], b[2])-max(a[0], b[0])+1)
	h := max(0, min(a[3], b[3])-max(a[1], b[1])+1)
	inter := w * h
	if inter == 0 {
		return 0
	}

	union := PixelArea(a) + PixelArea(b) - inter
	if !(union > 0) {
		return 0
	}
	return inter / union
}

// PixelArea is the area of an LTRB box under the +1 pixel convention.
func PixelArea(b Box) float64 {
	return (b[2] - b[0] + 1) * (b[3] - b[1] + 1)
}

// IoUOneToMany computes the IoU of one box against many. Both sides are
// given in format and converted to LTRB before comparison; the inputs are
// not modified.
//
// Arguments:
//   - box: The reference box.
//   - bs: The candidate boxes.
//   - format: The format of box and bs.
//
// Returns:
//   - []float64: One score per candidate, aligned with bs.
func IoUOneToMany(box Box, bs []Box, format Format) []float64 {
	format.mustValid()
	ref := Convert(box, format, FormatLTRB)
	fn := conversions[format][FormatLTRB]

	out := make([]float64, len(bs))
	util.Parallel(len(bs), func(start, end int) {
		for i := start; i < end; i++ {
			out[i] = IoU(ref, fn(bs[i]))
		}
	})
	return out
}

// IoUBatched computes elementwise IoU between two equal-length LTRB batches.
func IoUBatched(a, b []Box) ([]float64, error) {
	if len(a) != len(b) {
		return nil, errors.Wrapf(ErrLengthMismatch, "%d != %d", len(a), len(b))
	}

	out := make([]float64, len(a))
	util.Parallel(len(a), func(start, end int) {
		for i := start; i < end; i++ {
			out[i] = IoU(a[i], b[i])
		}
	})
	return out, nil
}
