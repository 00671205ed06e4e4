package assign

import (
	"math"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-detection/boxes"
	"github.com/nvr-ai/go-detection/util"
)

// ErrNoAnchors is returned when an assigner is configured without anchors.
var ErrNoAnchors = errors.New("assign: no anchors configured")

// ErrDegenerateBox is returned for ground-truth boxes without a positive
// width and height; their log-size target would be infinite.
var ErrDegenerateBox = errors.New("assign: ground-truth box has no area")

// Policy decides who owns an anchor that several ground-truth boxes claim
// through the positive threshold.
type Policy int

const (
	// LastWriterWins lets the later annotation overwrite an earlier claim,
	// whatever the IoUs. Input order matters.
	LastWriterWins Policy = iota
	// HighestIoUWins keeps a claim unless a later box overlaps the anchor more.
	HighestIoUWins
)

// String returns the policy name used in configuration files.
func (p Policy) String() string {
	switch p {
	case LastWriterWins:
		return "last_writer"
	case HighestIoUWins:
		return "highest_iou"
	}
	return "unknown"
}

// ParsePolicy parses a policy name.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "last_writer":
		return LastWriterWins, nil
	case "highest_iou":
		return HighestIoUWins, nil
	}
	return 0, errors.Errorf("unknown assignment policy %q", s)
}

// Config configures an Assigner for annotation records of type A.
type Config[A any] struct {
	// Grids holds one slice of XYWH anchors per feature-map scale.
	Grids [][]boxes.Box
	// PosThreshold: anchors with IoU strictly above it become positive.
	PosThreshold float64
	// NegThreshold enables the negative mask when > 0. Anchors whose IoU
	// with some ground-truth box reaches it are no longer negative.
	NegThreshold float64
	// BoxFormat is the format Box returns. Defaults to LTWH.
	BoxFormat boxes.Format
	// Policy resolves competing positive claims.
	Policy Policy
	// Label and Box extract fields from an annotation.
	Label LabelFunc[A]
	Box   BoxFunc[A]
	// Logger receives debug output. Optional.
	Logger *logrus.Entry
}

// DefaultConfig returns a config for COCO-style records with the usual 0.5
// positive threshold and no negative mask.
func DefaultConfig(grids ...[]boxes.Box) Config[Record] {
	return Config[Record]{
		Grids:        grids,
		PosThreshold: 0.5,
		BoxFormat:    boxes.FormatLTWH,
		Policy:       LastWriterWins,
		Label:        MapLabel("category_id"),
		Box:          MapBox("bbox"),
	}
}

// Assigner turns ground-truth annotations into per-anchor training targets.
// It holds only immutable configuration and may be shared by concurrent
// callers, provided nobody mutates the anchor grids.
type Assigner[A any] struct {
	cfg   Config[A]
	grids [][]boxes.Box // LTRB copies of cfg.Grids
	log   *logrus.Entry
}

// New validates cfg and builds an Assigner.
//
// Arguments:
//   - cfg: The anchors, thresholds and field extractors.
//
// Returns:
//   - *Assigner[A]: The assigner.
//   - error: ErrNoAnchors, or a description of the invalid setting.
func New[A any](cfg Config[A]) (*Assigner[A], error) {
	if len(cfg.Grids) == 0 {
		return nil, ErrNoAnchors
	}
	if cfg.Label == nil || cfg.Box == nil {
		return nil, errors.New("assign: label and box extractors are required")
	}
	if math.IsNaN(cfg.PosThreshold) || math.IsNaN(cfg.NegThreshold) {
		return nil, errors.New("assign: thresholds must not be NaN")
	}
	if !cfg.BoxFormat.Valid() {
		return nil, errors.Errorf("assign: invalid box format %v", cfg.BoxFormat)
	}
	if cfg.Policy != LastWriterWins && cfg.Policy != HighestIoUWins {
		return nil, errors.Errorf("assign: invalid policy %d", int(cfg.Policy))
	}

	ltrb := make([][]boxes.Box, len(cfg.Grids))
	for g, anchors := range cfg.Grids {
		if len(anchors) == 0 {
			return nil, errors.Wrapf(ErrNoAnchors, "grid %d is empty", g)
		}
		for i, a := range anchors {
			if !(a[2] > 0 && a[3] > 0) {
				return nil, errors.Errorf("assign: grid %d anchor %d has non-positive size %v", g, i, a)
			}
		}
		ltrb[g] = boxes.ConvertAll(anchors, boxes.FormatXYWH, boxes.FormatLTRB)
	}

	log := cfg.Logger
	if log == nil {
		log = util.DiscardLogger()
	}
	return &Assigner[A]{cfg: cfg, grids: ltrb, log: log.WithField("component", "assign")}, nil
}

// GridTargets are the targets of one anchor grid, aligned with its anchors.
type GridTargets struct {
	// Loc holds the encoded regression target; meaningful where Cls != 0.
	Loc []boxes.Box
	// Cls holds the class label; 0 is background.
	Cls []int
	// Neg marks negative anchors. Nil when the negative mask is disabled.
	// Anchors that are neither positive nor negative are ignored by the loss.
	Neg []bool
}

// LocTensor returns Loc as an (anchors, 4) float64 tensor.
func (t GridTargets) LocTensor() *tensor.Dense {
	return boxes.ToTensor(t.Loc)
}

// ClsTensor returns Cls as an (anchors) int tensor.
func (t GridTargets) ClsTensor() *tensor.Dense {
	return tensor.New(tensor.WithShape(len(t.Cls)), tensor.WithBacking(append([]int(nil), t.Cls...)))
}

// NumPositive counts anchors with a foreground label.
func (t GridTargets) NumPositive() int {
	n := 0
	for _, c := range t.Cls {
		if c != 0 {
			n++
		}
	}
	return n
}

// Targets holds the targets of every grid, in grid order.
type Targets struct {
	Grids []GridTargets
}

// Single returns the only grid's targets and true when the assigner was
// configured with exactly one grid. With several grids it returns false and
// callers must read Grids.
func (t *Targets) Single() (GridTargets, bool) {
	if len(t.Grids) != 1 {
		return GridTargets{}, false
	}
	return t.Grids[0], true
}

// Assign computes classification and regression targets for one sample.
//
// Each annotation is processed in input order:
//
//  1. its IoU against every anchor of every grid is computed;
//  2. anchors with IoU > PosThreshold take its label and encoded box
//     (competing claims are resolved by Config.Policy);
//  3. with a negative mask, anchors with IoU >= NegThreshold stop being negative;
//  4. the single anchor with the highest IoU across all grids (first grid,
//     first index on ties) is forced positive, so every box has at least one
//     responsible anchor whatever the threshold. A positive anchor is never negative.
//
// Arguments:
//   - anns: The ground-truth annotations of one sample.
//
// Returns:
//   - *Targets: Fresh targets owned by the caller.
//   - error: A *MissingFieldError (possibly wrapped) for malformed annotations,
//     or ErrDegenerateBox.
func (a *Assigner[A]) Assign(anns []A) (*Targets, error) {
	useNeg := a.cfg.NegThreshold > 0
	targets := &Targets{Grids: make([]GridTargets, len(a.grids))}
	for g, anchors := range a.grids {
		gt := GridTargets{
			Loc: make([]boxes.Box, len(anchors)),
			Cls: make([]int, len(anchors)),
		}
		if useNeg {
			gt.Neg = make([]bool, len(anchors))
			for i := range gt.Neg {
				gt.Neg[i] = true
			}
		}
		targets.Grids[g] = gt
	}

	var claims [][]float64
	if a.cfg.Policy == HighestIoUWins {
		claims = make([][]float64, len(a.grids))
		for g, anchors := range a.grids {
			claims[g] = make([]float64, len(anchors))
			for i := range claims[g] {
				claims[g][i] = -1
			}
		}
	}

	for k, ann := range anns {
		label, err := a.cfg.Label(ann)
		if err != nil {
			return nil, errors.Wrapf(err, "annotation %d", k)
		}
		raw, err := a.cfg.Box(ann)
		if err != nil {
			return nil, errors.Wrapf(err, "annotation %d", k)
		}
		box := boxes.Convert(raw, a.cfg.BoxFormat, boxes.FormatXYWH)
		if !(box[2] > 0 && box[3] > 0) {
			return nil, errors.Wrapf(ErrDegenerateBox, "annotation %d: %v", k, raw)
		}
		ref := boxes.Convert(box, boxes.FormatXYWH, boxes.FormatLTRB)

		bestGrid, bestIdx, bestIoU := 0, 0, math.Inf(-1)
		for g, anchors := range a.grids {
			ious := boxes.IoUOneToMany(ref, anchors, boxes.FormatLTRB)
			out := &targets.Grids[g]
			for i, iou := range ious {
				if iou > bestIoU {
					bestGrid, bestIdx, bestIoU = g, i, iou
				}
				if iou > a.cfg.PosThreshold && claim(claims, g, i, iou) {
					out.Cls[i] = label
					out.Loc[i] = Encode(box, a.cfg.Grids[g][i])
				}
				if useNeg && iou >= a.cfg.NegThreshold {
					out.Neg[i] = false
				}
			}
		}

		out := &targets.Grids[bestGrid]
		out.Cls[bestIdx] = label
		out.Loc[bestIdx] = Encode(box, a.cfg.Grids[bestGrid][bestIdx])
		if useNeg {
			out.Neg[bestIdx] = false
		}
		if claims != nil {
			claims[bestGrid][bestIdx] = bestIoU
		}

		a.log.WithFields(logrus.Fields{
			"annotation": k,
			"label":      label,
			"grid":       bestGrid,
			"anchor":     bestIdx,
			"iou":        bestIoU,
		}).Debug("best anchor")
	}
	return targets, nil
}

// claim records iou as the owner of anchor (g, i) when the policy allows the
// write. A nil claims table means LastWriterWins.
func claim(claims [][]float64, g, i int, iou float64) bool {
	if claims == nil {
		return true
	}
	if iou <= claims[g][i] {
		return false
	}
	claims[g][i] = iou
	return true
}
