package boxes

// Box is four floating point numbers whose meaning depends on a Format.
type Box [4]float64

// converter rewrites one box from one format into another.
type converter func(Box) Box

// conversions is indexed [from][to]. The diagonal holds identities.
var conversions = [numFormats][numFormats]converter{
	FormatLTWH: {
		FormatLTWH: identity,
		FormatLTRB: ltwhToLTRB,
		FormatXYWH: ltwhToXYWH,
	},
	FormatLTRB: {
		FormatLTWH: ltrbToLTWH,
		FormatLTRB: identity,
		FormatXYWH: ltrbToXYWH,
	},
	FormatXYWH: {
		FormatLTWH: xywhToLTWH,
		FormatLTRB: xywhToLTRB,
		FormatXYWH: identity,
	},
}

func identity(b Box) Box { return b }

func ltwhToLTRB(b Box) Box {
	return Box{b[0], b[1], b[0] + b[2], b[1] + b[3]}
}

func ltwhToXYWH(b Box) Box {
	return Box{b[0] + b[2]/2, b[1] + b[3]/2, b[2], b[3]}
}

func ltrbToLTWH(b Box) Box {
	return Box{b[0], b[1], b[2] - b[0], b[3] - b[1]}
}

func ltrbToXYWH(b Box) Box {
	return Box{(b[0] + b[2]) / 2, (b[1] + b[3]) / 2, b[2] - b[0], b[3] - b[1]}
}

func xywhToLTWH(b Box) Box {
	return Box{b[0] - b[2]/2, b[1] - b[3]/2, b[2], b[3]}
}

func xywhToLTRB(b Box) Box {
	hw, hh := b[2]/2, b[3]/2
	return Box{b[0] - hw, b[1] - hh, b[0] + hw, b[1] + hh}
}

// Convert returns b, read as from, rewritten in the to format.
//
// Arguments:
//   - b: The box to convert.
//   - from: The format b is written in.
//   - to: The target format.
//
// Returns:
//   - Box: The converted box. b itself is a value and is never modified.
//
// @example
//
//	ltrb := Convert(Box{10, 20, 30, 40}, FormatLTWH, FormatLTRB) // {10, 20, 40, 60}
func Convert(b Box, from, to Format) Box {
	from.mustValid()
	to.mustValid()
	return conversions[from][to](b)
}

// ConvertAll converts every box into a newly allocated slice. The input
// slice is not modified.
func ConvertAll(bs []Box, from, to Format) []Box {
	from.mustValid()
	to.mustValid()
	if bs == nil {
		return nil
	}
	fn := conversions[from][to]
	out := make([]Box, len(bs))
	for i, b := range bs {
		out[i] = fn(b)
	}
	return out
}

// ConvertInPlace converts every box of bs in place and allocates nothing.
// Callers that still need the original values must copy first.
func ConvertInPlace(bs []Box, from, to Format) {
	from.mustValid()
	to.mustValid()
	if from == to {
		return
	}
	fn := conversions[from][to]
	for i := range bs {
		bs[i] = fn(bs[i])
	}
}

// Width returns the width of an LTRB box.
func (b Box) Width() float64 { return b[2] - b[0] }

// Height returns the height of an LTRB box.
func (b Box) Height() float64 { return b[3] - b[1] }

// Area returns the continuous area of an LTRB box. Malformed boxes with a
// negative side report 0.
func (b Box) Area() float64 {
	w, h := b.Width(), b.Height()
	if w < 0 || h < 0 {
		return 0
	}
	return w * h
}
