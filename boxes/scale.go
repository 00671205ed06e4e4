package boxes

import "github.com/pkg/errors"

// Size is an image size in pixels.
type Size struct {
	Width, Height float64
}

// Scale maps a box from an image of size src onto an image of size dst, for
// instance from the network input resolution back to the camera frame.
//
// Every format scales its x-like entries by dst.Width/src.Width and its
// y-like entries by dst.Height/src.Height, so the format only needs to be
// known, not converted.
func Scale(b Box, format Format, src, dst Size) (Box, error) {
	format.mustValid()
	if src.Width <= 0 || src.Height <= 0 {
		return b, errors.Errorf("boxes: invalid source size %vx%v", src.Width, src.Height)
	}
	sw := dst.Width / src.Width
	sh := dst.Height / src.Height
	return Box{b[0] * sw, b[1] * sh, b[2] * sw, b[3] * sh}, nil
}
