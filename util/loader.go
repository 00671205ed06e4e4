package util

import (
	"bytes"
	"encoding/json"
	"os"
	"sort"
	"strconv"

	"github.com/pkg/errors"
)

// ImageID identifies the image an annotation belongs to. COCO files use
// integers, other exporters use file names; both decode into an ImageID.
type ImageID string

// UnmarshalJSON accepts either a JSON string or a JSON number.
func (id *ImageID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ImageID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errors.Wrap(err, "image_id must be a string or a number")
	}
	*id = ImageID(n.String())
	return nil
}

// Annotation is one COCO-style record: a ground-truth box, or a detection
// when Score is set.
type Annotation struct {
	// ImageID is the image the box belongs to.
	ImageID ImageID `json:"image_id"`
	// CategoryID is the class label.
	CategoryID int `json:"category_id"`
	// BBox is the box in the file's format (COCO uses left, top, width, height).
	BBox [4]float64 `json:"bbox"`
	// Score is the detection confidence. Nil for ground truth.
	Score *float64 `json:"score,omitempty"`
}

// Record returns the annotation as a generic record keyed the COCO way,
// suitable for map based field extractors.
func (a Annotation) Record() map[string]any {
	rec := map[string]any{
		"image_id":    string(a.ImageID),
		"category_id": a.CategoryID,
		"bbox":        []float64{a.BBox[0], a.BBox[1], a.BBox[2], a.BBox[3]},
	}
	if a.Score != nil {
		rec["score"] = *a.Score
	}
	return rec
}

// dataset is the subset of a COCO dataset file we read.
type dataset struct {
	Annotations []Annotation `json:"annotations"`
}

// LoadAnnotations reads a JSON file holding either a bare array of
// annotations (the COCO results format) or a COCO dataset object with an
// "annotations" array.
//
// Arguments:
//   - path: Path to the JSON file.
//
// Returns:
//   - []Annotation: The annotations, ordered by image id then file order.
//   - error: Error if reading or decoding fails.
func LoadAnnotations(path string) ([]Annotation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	anns, err := DecodeAnnotations(data)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	return anns, nil
}

// DecodeAnnotations decodes annotations from raw JSON. See LoadAnnotations.
func DecodeAnnotations(data []byte) ([]Annotation, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("empty annotation document")
	}

	var anns []Annotation
	switch data[0] {
	case '[':
		if err := json.Unmarshal(data, &anns); err != nil {
			return nil, errors.Wrap(err, "annotation array")
		}
	case '{':
		var ds dataset
		if err := json.Unmarshal(data, &ds); err != nil {
			return nil, errors.Wrap(err, "annotation dataset")
		}
		anns = ds.Annotations
	default:
		return nil, errors.Errorf("unexpected leading byte %q", data[0])
	}

	sort.SliceStable(anns, func(i, j int) bool {
		return lessImageID(anns[i].ImageID, anns[j].ImageID)
	})
	return anns, nil
}

// lessImageID orders numeric ids numerically and everything else lexically,
// with numbers before names.
func lessImageID(a, b ImageID) bool {
	na, errA := strconv.ParseFloat(string(a), 64)
	nb, errB := strconv.ParseFloat(string(b), 64)
	switch {
	case errA == nil && errB == nil:
		return na < nb
	case errA == nil:
		return true
	case errB == nil:
		return false
	default:
		return a < b
	}
}
