package metrics

import (
	"cmp"
	"math"
	"runtime"
	"slices"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/go-detection/boxes"
	"github.com/nvr-ai/go-detection/util"
)

// ErrNoGroundTruth is returned when there is no class to average over.
var ErrNoGroundTruth = errors.New("metrics: no ground-truth boxes")

// ClassResult holds the evaluation of a single class.
type ClassResult[C comparable] struct {
	Class          C
	AP             float64
	NumGroundTruth int
	NumDetections  int
	TruePositives  int
	FalsePositives int
	// Matched flags, per ranked detection, whether it was a true positive.
	Matched []bool
	// Recall and Precision are cumulative over the ranked detections.
	Recall    []float64
	Precision []float64
}

// Report is the result of an evaluation.
type Report[C comparable] struct {
	// Classes in order of first appearance in the ground truth.
	Classes []ClassResult[C]
	// MAP is the unweighted mean of the per-class AP.
	MAP float64
}

// Class returns the result for class c.
func (r *Report[C]) Class(c C) (ClassResult[C], bool) {
	for _, res := range r.Classes {
		if res.Class == c {
			return res, true
		}
	}
	return ClassResult[C]{}, false
}

type options struct {
	log     *logrus.Entry
	workers int
}

// Option configures Evaluate.
type Option func(*options)

// WithLogger logs the AP of every class at debug level.
func WithLogger(log *logrus.Entry) Option {
	return func(o *options) {
		o.log = log
	}
}

// WithWorkers bounds the number of classes evaluated concurrently.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

func buildOptions(opts []Option) options {
	o := options{workers: runtime.NumCPU()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = util.DiscardLogger()
	}
	return o
}

// EvaluateClass computes the AP of one class.
//
// Detections are ranked by confidence (ties: image id, then box). Each one,
// in rank order, is matched to the ground-truth box of its image it overlaps
// most (first on ties). It is a true positive when that IoU exceeds
// iouThreshold and the box was not matched before; otherwise it is a false
// positive. A detection on an image without ground truth is a false positive.
//
// Arguments:
//   - class: The class being evaluated; stored in the result only.
//   - dets: Detections of the class. Not modified.
//   - gts: Ground-truth boxes of the class.
//   - iouThreshold: Minimum IoU, exclusive, for a match.
//
// Returns:
//   - ClassResult[C]: The per-class counts, curve and AP. Without ground
//     truth, recall and AP are 0.
func EvaluateClass[I cmp.Ordered, C comparable](class C, dets, gts []Detection[I, C], iouThreshold float64) ClassResult[C] {
	ranked := slices.Clone(dets)
	slices.SortStableFunc(ranked, compareRank[I, C])

	imageGTs := make(map[I][]boxes.Box)
	for _, g := range gts {
		imageGTs[g.ImageID] = append(imageGTs[g.ImageID], g.Box)
	}
	seen := make(map[I][]bool, len(imageGTs))
	for img, bs := range imageGTs {
		seen[img] = make([]bool, len(bs))
	}

	res := ClassResult[C]{
		Class:          class,
		NumGroundTruth: len(gts),
		NumDetections:  len(ranked),
		Matched:        make([]bool, len(ranked)),
		Recall:         make([]float64, len(ranked)),
		Precision:      make([]float64, len(ranked)),
	}

	for i, d := range ranked {
		best, jMax := 0.0, -1
		for j, g := range imageGTs[d.ImageID] {
			if iou := boxes.IoU(d.Box, g); iou > best {
				best, jMax = iou, j
			}
		}

		if jMax >= 0 && best > iouThreshold && !seen[d.ImageID][jMax] {
			seen[d.ImageID][jMax] = true
			res.Matched[i] = true
			res.TruePositives++
		} else {
			res.FalsePositives++
		}

		if res.NumGroundTruth > 0 {
			res.Recall[i] = float64(res.TruePositives) / float64(res.NumGroundTruth)
		}
		res.Precision[i] = float64(res.TruePositives) / float64(i+1)
	}

	res.AP = AveragePrecision(res.Recall, res.Precision).AP
	if res.NumGroundTruth == 0 {
		res.AP = 0
	}
	return res
}

// Evaluate computes per-class AP and their mean.
//
// Classes come from the ground truth. A class without detections scores 0;
// detections of a class that has no ground truth are ignored. Classes are
// evaluated concurrently.
//
// Arguments:
//   - dets: Predicted boxes with confidences.
//   - gts: Ground-truth boxes.
//   - iouThreshold: Minimum IoU, exclusive, for a match.
//   - opts: Optional logger and worker bound.
//
// Returns:
//   - *Report[C]: Per-class results and the mAP.
//   - error: ErrNoGroundTruth when gts is empty, or an invalid threshold.
func Evaluate[I cmp.Ordered, C comparable](dets, gts []Detection[I, C], iouThreshold float64, opts ...Option) (*Report[C], error) {
	if math.IsNaN(iouThreshold) {
		return nil, errors.New("metrics: iou threshold is NaN")
	}
	o := buildOptions(opts)

	classes, gtGroups := groupByClass(gts)
	if len(classes) == 0 {
		return nil, ErrNoGroundTruth
	}
	_, detGroups := groupByClass(dets)

	report := &Report[C]{Classes: make([]ClassResult[C], len(classes))}
	util.ForEach(len(classes), o.workers, func(k int) {
		c := classes[k]
		report.Classes[k] = EvaluateClass(c, detGroups[c], gtGroups[c], iouThreshold)
	})

	sum := 0.0
	for _, res := range report.Classes {
		sum += res.AP
		o.log.WithFields(logrus.Fields{
			"class":      res.Class,
			"ap":         res.AP,
			"detections": res.NumDetections,
			"gt":         res.NumGroundTruth,
		}).Debug("class evaluated")
	}
	report.MAP = sum / float64(len(report.Classes))
	return report, nil
}

// MeanAveragePrecision returns only the mAP of Evaluate. It returns 0 with
// ErrNoGroundTruth when there is nothing to average.
func MeanAveragePrecision[I cmp.Ordered, C comparable](dets, gts []Detection[I, C], iouThreshold float64, opts ...Option) (float64, error) {
	report, err := Evaluate(dets, gts, iouThreshold, opts...)
	if err != nil {
		return 0, err
	}
	return report.MAP, nil
}

// groupByClass returns the classes in order of first appearance and the
// detections of each.
func groupByClass[I cmp.Ordered, C comparable](ds []Detection[I, C]) ([]C, map[C][]Detection[I, C]) {
	var order []C
	groups := make(map[C][]Detection[I, C])
	for _, d := range ds {
		if _, ok := groups[d.ClassID]; !ok {
			order = append(order, d.ClassID)
		}
		groups[d.ClassID] = append(groups[d.ClassID], d)
	}
	return order, groups
}
