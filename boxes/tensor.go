package boxes

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// ErrShape is returned for tensors that cannot hold boxes: the last
// dimension must be 4 and the element type float64.
var ErrShape = errors.New("boxes: tensor must be float64 with last dimension 4")

// backing returns the contiguous float64 data of a (..., 4) tensor.
func backing(t *tensor.Dense) ([]float64, error) {
	if t == nil {
		return nil, errors.Wrap(ErrShape, "nil tensor")
	}
	if t.Dtype() != tensor.Float64 {
		return nil, errors.Wrapf(ErrShape, "dtype %v", t.Dtype())
	}
	shape := t.Shape()
	if len(shape) == 0 || shape[len(shape)-1] != 4 {
		return nil, errors.Wrapf(ErrShape, "shape %v", shape)
	}
	// Sliced and transposed views do not own a contiguous row-major backing.
	if t.IsMaterializable() {
		return nil, errors.Wrap(ErrShape, "tensor is a view, materialize it first")
	}
	data, ok := t.Data().([]float64)
	if !ok {
		return nil, errors.Wrapf(ErrShape, "data of type %T", t.Data())
	}
	return data, nil
}

// ConvertTensor converts every box of a (..., 4) float64 tensor.
//
// When inPlace is true the tensor's own backing is rewritten and t itself is
// returned; nothing is allocated. Otherwise t is left untouched and a new
// tensor of the same shape is returned.
//
// Arguments:
//   - t: A tensor whose last dimension holds the four box numbers.
//   - from: The format of t.
//   - to: The target format.
//   - inPlace: Whether to mutate t.
//
// Returns:
//   - *tensor.Dense: The converted boxes.
//   - error: ErrShape (wrapped) when t cannot hold boxes.
func ConvertTensor(t *tensor.Dense, from, to Format, inPlace bool) (*tensor.Dense, error) {
	from.mustValid()
	to.mustValid()

	if _, err := backing(t); err != nil {
		return nil, err
	}
	if !inPlace {
		t = t.Clone().(*tensor.Dense)
	}
	if from == to {
		return t, nil
	}

	data, err := backing(t)
	if err != nil {
		return nil, err
	}
	fn := conversions[from][to]
	for i := 0; i+4 <= len(data); i += 4 {
		b := fn(Box{data[i], data[i+1], data[i+2], data[i+3]})
		copy(data[i:i+4], b[:])
	}
	return t, nil
}

// FromTensor copies the boxes of a (..., 4) tensor into a slice, flattening
// any leading dimensions.
func FromTensor(t *tensor.Dense) ([]Box, error) {
	data, err := backing(t)
	if err != nil {
		return nil, err
	}
	out := make([]Box, len(data)/4)
	for i := range out {
		copy(out[i][:], data[i*4:i*4+4])
	}
	return out, nil
}

// ToTensor packs boxes into a new (N, 4) float64 tensor. It returns nil for
// an empty slice.
func ToTensor(bs []Box) *tensor.Dense {
	if len(bs) == 0 {
		return nil
	}
	data := make([]float64, 0, len(bs)*4)
	for _, b := range bs {
		data = append(data, b[:]...)
	}
	return tensor.New(tensor.WithShape(len(bs), 4), tensor.WithBacking(data))
}

// IoUTensor is IoUBatched over two LTRB tensors of identical (..., 4) shape.
// The result has the leading shape; a single (4) box pair yields shape (1).
func IoUTensor(a, b *tensor.Dense) (*tensor.Dense, error) {
	da, err := backing(a)
	if err != nil {
		return nil, errors.Wrap(err, "first operand")
	}
	db, err := backing(b)
	if err != nil {
		return nil, errors.Wrap(err, "second operand")
	}
	if !a.Shape().Eq(b.Shape()) {
		return nil, errors.Wrapf(ErrLengthMismatch, "shapes %v and %v", a.Shape(), b.Shape())
	}

	n := len(da) / 4
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		j := i * 4
		out[i] = IoU(
			Box{da[j], da[j+1], da[j+2], da[j+3]},
			Box{db[j], db[j+1], db[j+2], db[j+3]},
		)
	}

	lead := a.Shape()
	lead = lead[:len(lead)-1].Clone()
	if len(lead) == 0 {
		lead = tensor.Shape{1}
	}
	return tensor.New(tensor.WithShape(lead...), tensor.WithBacking(out)), nil
}
