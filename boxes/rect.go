package boxes

import (
	"image"
	"math"
)

// Rect is a lightweight integer bounding box in pixel space.
type Rect struct {
	// X2,Y2 are exclusive (like image.Rectangle).
	X1, Y1, X2, Y2 int
}

// CalculateIoU is IoU over integer rectangles with exclusive far edges.
// Rectangles that only touch, or do not overlap at all, return 0.
//
// Example Usage:
//
//	rect1 := Rect{X1: 0, Y1: 0, X2: 10, Y2: 10}
//	rect2 := Rect{X1: 5, Y1: 5, X2: 15, Y2: 15}
//	CalculateIoU(rect1, rect2) // 25 / 175 = 0.142857
func CalculateIoU(r, o Rect) float64 {
	interW := min(r.X2, o.X2) - max(r.X1, o.X1)
	interH := min(r.Y2, o.Y2) - max(r.Y1, o.Y1)
	if interW <= 0 || interH <= 0 {
		return 0.0
	}
	interArea := interW * interH

	// Inclusion-exclusion: Union(A, B) = Area(A) + Area(B) - Intersection(A, B).
	unionArea := (r.X2-r.X1)*(r.Y2-r.Y1) + (o.X2-o.X1)*(o.Y2-o.Y1) - interArea
	if unionArea <= 0 {
		return 0.0
	}
	return float64(interArea) / float64(unionArea)
}

// Rect rounds an LTRB box to the nearest pixel edges.
func (b Box) Rect() Rect {
	return Rect{
		X1: int(math.Round(b[0])),
		Y1: int(math.Round(b[1])),
		X2: int(math.Round(b[2])),
		Y2: int(math.Round(b[3])),
	}
}

// Rectangle rounds an LTRB box to an image.Rectangle.
func (b Box) Rectangle() image.Rectangle {
	r := b.Rect()
	return image.Rect(r.X1, r.Y1, r.X2, r.Y2)
}

// FromRectangle returns the LTRB box of an image.Rectangle.
func FromRectangle(r image.Rectangle) Box {
	r = r.Canon()
	return Box{float64(r.Min.X), float64(r.Min.Y), float64(r.Max.X), float64(r.Max.Y)}
}
