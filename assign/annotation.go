// Package assign - anchor target assignment for training detection heads.
package assign

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-detection/boxes"
)

// LabelFunc extracts the class label from an annotation record.
type LabelFunc[A any] func(ann A) (int, error)

// BoxFunc extracts the ground-truth box from an annotation record, in the
// format named by Config.BoxFormat.
type BoxFunc[A any] func(ann A) (boxes.Box, error)

// MissingFieldError reports an annotation that lacks a field an extractor
// requires. It points at a bug in the data pipeline and is never retried.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("annotation is missing field %q", e.Field)
}

// Record is the generic shape of a decoded JSON annotation.
type Record = map[string]any

// MapLabel returns a LabelFunc reading an integer label from key.
//
// @example
//
//	label := MapLabel("category_id")
//	id, err := label(Record{"category_id": 3}) // 3, nil
func MapLabel(key string) LabelFunc[Record] {
	return func(ann Record) (int, error) {
		v, ok := ann[key]
		if !ok {
			return 0, &MissingFieldError{Field: key}
		}
		switch n := v.(type) {
		case int:
			return n, nil
		case int32:
			return int(n), nil
		case int64:
			return int(n), nil
		case float64:
			if n != float64(int(n)) {
				return 0, errors.Errorf("field %q: label %v is not an integer", key, n)
			}
			return int(n), nil
		default:
			return 0, errors.Errorf("field %q: unsupported label type %T", key, v)
		}
	}
}

// MapBox returns a BoxFunc reading four numbers from key. Decoded JSON
// ([]any of float64), []float64, [4]float64 and boxes.Box are accepted.
func MapBox(key string) BoxFunc[Record] {
	return func(ann Record) (boxes.Box, error) {
		v, ok := ann[key]
		if !ok {
			return boxes.Box{}, &MissingFieldError{Field: key}
		}
		switch b := v.(type) {
		case boxes.Box:
			return b, nil
		case [4]float64:
			return boxes.Box(b), nil
		case []float64:
			if len(b) != 4 {
				return boxes.Box{}, errors.Errorf("field %q: want 4 numbers, got %d", key, len(b))
			}
			return boxes.Box{b[0], b[1], b[2], b[3]}, nil
		case []any:
			if len(b) != 4 {
				return boxes.Box{}, errors.Errorf("field %q: want 4 numbers, got %d", key, len(b))
			}
			var out boxes.Box
			for i, e := range b {
				switch n := e.(type) {
				case float64:
					out[i] = n
				case int:
					out[i] = float64(n)
				default:
					return boxes.Box{}, errors.Errorf("field %q: element %d has type %T", key, i, e)
				}
			}
			return out, nil
		default:
			return boxes.Box{}, errors.Errorf("field %q: unsupported box type %T", key, v)
		}
	}
}
