// Package native - OpenCV backed suppression through gocv.
//
// The suppressor here works on integer rectangles and continuous IoU (no +1
// pixel term), so its survivors can differ from postprocess.HardNMS for boxes
// whose overlap sits right at the threshold.
package native

import (
	"image"

	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-detection/boxes"
	"github.com/nvr-ai/go-detection/postprocess"
)

// NMS runs OpenCV's dnn::NMSBoxes.
type NMS struct {
	// IoUThreshold: boxes overlapping a survivor by more are suppressed.
	IoUThreshold float32
	// ScoreThreshold drops boxes scoring below it before suppression.
	ScoreThreshold float32
	// TopK caps the number of survivors when > 0.
	TopK int
}

// New returns an OpenCV suppressor for cfg. OpenCV only does hard
// suppression; the score threshold becomes a pre-filter and TopK a cap.
func New(cfg *postprocess.NMSConfig) NMS {
	return NMS{
		IoUThreshold:   float32(cfg.IoUThreshold),
		ScoreThreshold: float32(cfg.ScoreThreshold),
		TopK:           cfg.TopK,
	}
}

// Suppress implements postprocess.Suppressor. Boxes are LTRB and are rounded
// to the nearest pixel.
func (n NMS) Suppress(bs []boxes.Box, scores []float64) ([]int, error) {
	if err := postprocess.CheckLengths(bs, scores); err != nil {
		return nil, err
	}
	if len(bs) == 0 {
		return nil, nil
	}

	rects := make([]image.Rectangle, len(bs))
	confidences := make([]float32, len(bs))
	for i, b := range bs {
		rects[i] = b.Rectangle()
		confidences[i] = float32(scores[i])
	}

	if n.TopK > 0 {
		return gocv.NMSBoxesWithParams(rects, confidences, n.ScoreThreshold, n.IoUThreshold, 1, n.TopK), nil
	}
	return gocv.NMSBoxes(rects, confidences, n.ScoreThreshold, n.IoUThreshold), nil
}

var _ postprocess.Suppressor = NMS{}
