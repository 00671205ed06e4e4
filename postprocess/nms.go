package postprocess

import (
	"cmp"
	"math"
	"slices"

	"github.com/nvr-ai/go-detection/boxes"
)

// rankByConfidence returns the indices of confidences ordered by descending
// confidence. Equal confidences keep their input order; NaN ranks last.
func rankByConfidence(confidences []float64) []int {
	order := make([]int, len(confidences))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(confidences[b], confidences[a])
	})
	return order
}

// NonMaxSuppression performs standard greedy Non-Maximum Suppression.
//
// Boxes are ranked by confidence. Walking the ranking, every box that is
// still alive suppresses each later box whose IoU with it exceeds
// iouThreshold. IoU uses the inclusive pixel convention (see
// boxes.PixelIoU), so results match reference implementations that add 1
// to each side.
//
// Arguments:
//   - bs: LTRB boxes.
//   - confidences: One score per box.
//   - iouThreshold: IoU above which a lower-ranked box is suppressed.
//
// Returns:
//   - []int: Indices into bs of the surviving boxes, highest confidence
//     first. Nil when bs is empty.
func NonMaxSuppression(bs []boxes.Box, confidences []float64, iouThreshold float64) []int {
	n := len(bs)
	if n == 0 {
		return nil
	}
	order := rankByConfidence(confidences[:n])

	// suppressed is indexed by rank, not by input index.
	suppressed := make([]bool, n)
	for r := 0; r < n; r++ {
		if suppressed[r] {
			continue
		}
		anchor := bs[order[r]]
		for s := r + 1; s < n; s++ {
			if suppressed[s] {
				continue
			}
			if boxes.PixelIoU(anchor, bs[order[s]]) > iouThreshold {
				suppressed[s] = true
			}
		}
	}

	kept := make([]int, 0, n)
	for r, idx := range order {
		if !suppressed[r] {
			kept = append(kept, idx)
		}
	}
	return kept
}

// SoftNMS performs score-decay suppression.
//
// It repeatedly picks the remaining box with the highest (decayed) score,
// then multiplies the score of every other remaining box by (1 - iou) when
// its IoU with the pick is at least iouThreshold. Decay accumulates across
// iterations. Only picked boxes leave the pool, so a heavily decayed box can
// still be picked later. The caller's confidences are never modified.
//
// The first pick is always the global maximum; later picks are ordered by
// decayed score, so their original confidences need not be sorted. NaN
// confidences rank below every number and are picked last.
//
// Arguments:
//   - bs: LTRB boxes.
//   - confidences: One score per box.
//   - iouThreshold: Minimum IoU for decay to apply.
//   - topK: Number of picks. Values <= 0 or above len(bs) mean len(bs).
//
// Returns:
//   - []int: Indices into bs in pick order.
func SoftNMS(bs []boxes.Box, confidences []float64, iouThreshold float64, topK int) []int {
	return softNMS(bs, confidences, iouThreshold, topK, math.Inf(-1))
}

// SoftNMSWithFloor is SoftNMS that also stops as soon as the best remaining
// decayed score falls below confThreshold.
func SoftNMSWithFloor(bs []boxes.Box, confidences []float64, iouThreshold float64, topK int, confThreshold float64) []int {
	return softNMS(bs, confidences, iouThreshold, topK, confThreshold)
}

func softNMS(bs []boxes.Box, confidences []float64, iouThreshold float64, topK int, floor float64) []int {
	n := len(bs)
	if n == 0 {
		return nil
	}
	if topK <= 0 || topK > n {
		topK = n
	}

	// Working copy; decay never reaches the caller's slice. NaN ranks last,
	// as in NonMaxSuppression.
	scores := make([]float64, n)
	for i, c := range confidences[:n] {
		if math.IsNaN(c) {
			c = math.Inf(-1)
		}
		scores[i] = c
	}
	picked := make([]bool, n)
	kept := make([]int, 0, topK)

	for len(kept) < topK {
		best := -1
		for i, s := range scores {
			if picked[i] {
				continue
			}
			if best < 0 || s > scores[best] {
				best = i
			}
		}
		if scores[best] < floor {
			break
		}
		picked[best] = true
		kept = append(kept, best)
		if len(kept) == topK {
			break
		}

		anchor := bs[best]
		for i := range scores {
			if picked[i] {
				continue
			}
			if math.IsInf(scores[i], -1) {
				continue
			}
			if iou := boxes.PixelIoU(anchor, bs[i]); iou >= iouThreshold {
				scores[i] *= 1 - iou
			}
		}
	}
	return kept
}
