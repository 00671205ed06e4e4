// Package labels - class label sets for naming detection classes in reports.
package labels

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Background is the label name of class 0 in sets that reserve it.
const Background = "__background__"

// Class is one entry of a label set.
type Class struct {
	// The integer index used in annotations and model outputs.
	Index int
	// The human-readable label.
	Name string
}

// Set is a named list of classes.
type Set struct {
	name    string
	classes []Class
	byIndex map[int]string
	byName  map[string]int
}

// NewSet builds a set whose class indices start at first and follow the order
// of names.
//
// Arguments:
//   - name: The set identifier, e.g. "coco".
//   - first: The index of names[0].
//   - names: The class names.
//
// Returns:
//   - *Set: The label set.
//
// @example
//
//	s := NewSet("animals", 1, "cat", "dog")
//	s.Name(2) // "dog", true
func NewSet(name string, first int, names ...string) *Set {
	s := &Set{
		name:    name,
		classes: make([]Class, len(names)),
		byIndex: make(map[int]string, len(names)),
		byName:  make(map[string]int, len(names)),
	}
	for i, n := range names {
		idx := first + i
		s.classes[i] = Class{Index: idx, Name: n}
		s.byIndex[idx] = n
		s.byName[n] = idx
	}
	return s
}

// ID returns the set identifier.
func (s *Set) ID() string { return s.name }

// Classes returns a copy of the classes in index order.
func (s *Set) Classes() []Class {
	return append([]Class(nil), s.classes...)
}

// Len returns the number of classes, background included.
func (s *Set) Len() int { return len(s.classes) }

// Name returns the label of class idx.
func (s *Set) Name(idx int) (string, bool) {
	n, ok := s.byIndex[idx]
	return n, ok
}

// Index returns the class index of a label.
func (s *Set) Index(name string) (int, bool) {
	idx, ok := s.byName[name]
	return idx, ok
}

// Format returns the label of class idx, or the bare index when the set does
// not know it. A nil set always returns the index.
func (s *Set) Format(idx int) string {
	if s != nil {
		if n, ok := s.byIndex[idx]; ok {
			return n
		}
	}
	return strconv.Itoa(idx)
}

// Map translates a class index of s into the index of the same label in dst.
func (s *Set) Map(idx int, dst *Set) (int, error) {
	name, ok := s.Name(idx)
	if !ok {
		return -1, errors.Errorf("index %d not in label set %q", idx, s.name)
	}
	to, ok := dst.Index(name)
	if !ok {
		return -1, errors.Errorf("label %q not in label set %q", name, dst.name)
	}
	return to, nil
}

var cocoNames = []string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck",
	"boat", "traffic light", "fire hydrant", "stop sign", "parking meter", "bench",
	"bird", "cat", "dog", "horse", "sheep", "cow", "elephant", "bear", "zebra",
	"giraffe", "backpack", "umbrella", "handbag", "tie", "suitcase", "frisbee",
	"skis", "snowboard", "sports ball", "kite", "baseball bat", "baseball glove",
	"skateboard", "surfboard", "tennis racket", "bottle", "wine glass", "cup",
	"fork", "knife", "spoon", "bowl", "banana", "apple", "sandwich", "orange",
	"broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair", "couch",
	"potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse",
	"remote", "keyboard", "cell phone", "microwave", "oven", "toaster", "sink",
	"refrigerator", "book", "clock", "vase", "scissors", "teddy bear",
	"hair drier", "toothbrush",
}

var vocNames = []string{
	"aeroplane", "bicycle", "bird", "boat", "bottle", "bus", "car", "cat",
	"chair", "cow", "diningtable", "dog", "horse", "motorbike", "person",
	"pottedplant", "sheep", "sofa", "train", "tvmonitor",
}

var (
	// COCO is the 80 COCO classes with background at index 0, matching
	// targets where label 0 means background.
	COCO = NewSet("coco", 0, append([]string{Background}, cocoNames...)...)
	// YOLO is the 80 COCO classes indexed from 0, as YOLO heads emit them.
	YOLO = NewSet("yolo", 0, cocoNames...)
	// VOC is the 20 Pascal VOC classes with background at index 0.
	VOC = NewSet("voc", 0, append([]string{Background}, vocNames...)...)
)

var registry = map[string]*Set{
	COCO.name: COCO,
	YOLO.name: YOLO,
	VOC.name:  VOC,
}

// Lookup returns a built-in set by identifier. The empty identifier returns
// a nil set, which formats classes as numbers.
func Lookup(id string) (*Set, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		return nil, nil
	}
	s, ok := registry[id]
	if !ok {
		return nil, errors.Errorf("unknown label set %q", id)
	}
	return s, nil
}
