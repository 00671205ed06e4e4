package metrics

// Curve is an interpolated precision/recall curve.
type Curve struct {
	// AP is the area under the interpolated curve.
	AP float64
	// Precision is the monotonic precision envelope, starting at the
	// recall-0 sentinel.
	Precision []float64
	// Recall is the recall axis, starting at the 0 sentinel.
	Recall []float64
	// Steps are the indices into Recall where recall changes.
	Steps []int
}

// AveragePrecision computes the area under a precision/recall curve.
//
// Recall is padded with 0 in front and 1 at the back, precision with 0 at
// both ends. Precision is then replaced by its running maximum from the right,
// which makes it monotonically non-increasing, and the area is summed over
// every step where recall changes:
//
//	AP = sum((r[i] - r[i-1]) * p[i])
//
// Arguments:
//   - recall: Cumulative recall per ranked detection (non-decreasing).
//   - precision: Cumulative precision per ranked detection.
//
// Returns:
//   - Curve: The AP together with the padded curve it was computed from.
func AveragePrecision(recall, precision []float64) Curve {
	n := len(recall) + 2
	mrec := make([]float64, 0, n)
	mrec = append(mrec, 0)
	mrec = append(mrec, recall...)
	mrec = append(mrec, 1)

	mpre := make([]float64, 0, n)
	mpre = append(mpre, 0)
	mpre = append(mpre, precision...)
	mpre = append(mpre, 0)

	for i := len(mpre) - 1; i > 0; i-- {
		mpre[i-1] = max(mpre[i-1], mpre[i])
	}

	curve := Curve{}
	for i := 1; i < len(mrec); i++ {
		if mrec[i] != mrec[i-1] {
			curve.Steps = append(curve.Steps, i)
			curve.AP += (mrec[i] - mrec[i-1]) * mpre[i]
		}
	}
	curve.Precision = mpre[:len(mpre)-1]
	curve.Recall = mrec[:len(mrec)-1]
	return curve
}
