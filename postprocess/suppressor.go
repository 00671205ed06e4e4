package postprocess

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-detection/boxes"
)

// Suppressor selects the boxes that survive suppression.
//
// Implementations return indices into bs. They never modify their inputs.
type Suppressor interface {
	Suppress(bs []boxes.Box, scores []float64) ([]int, error)
}

// CheckLengths reports boxes.ErrLengthMismatch when bs and scores are not
// aligned.
func CheckLengths(bs []boxes.Box, scores []float64) error {
	if len(bs) != len(scores) {
		return errors.Wrapf(boxes.ErrLengthMismatch, "%d boxes, %d scores", len(bs), len(scores))
	}
	return nil
}

// HardNMS is greedy suppression, see NonMaxSuppression.
type HardNMS struct {
	IoUThreshold float64
}

// Suppress implements Suppressor.
func (h HardNMS) Suppress(bs []boxes.Box, scores []float64) ([]int, error) {
	if err := CheckLengths(bs, scores); err != nil {
		return nil, err
	}
	return NonMaxSuppression(bs, scores, h.IoUThreshold), nil
}

// SoftNMSSuppressor is score-decay suppression, see SoftNMS.
// A positive ScoreThreshold stops picking once the best decayed score drops
// below it.
type SoftNMSSuppressor struct {
	IoUThreshold   float64
	TopK           int
	ScoreThreshold float64
}

// Suppress implements Suppressor.
func (s SoftNMSSuppressor) Suppress(bs []boxes.Box, scores []float64) ([]int, error) {
	if err := CheckLengths(bs, scores); err != nil {
		return nil, err
	}
	if s.ScoreThreshold > 0 {
		return SoftNMSWithFloor(bs, scores, s.IoUThreshold, s.TopK, s.ScoreThreshold), nil
	}
	return SoftNMS(bs, scores, s.IoUThreshold, s.TopK), nil
}

var (
	_ Suppressor = HardNMS{}
	_ Suppressor = SoftNMSSuppressor{}
)
