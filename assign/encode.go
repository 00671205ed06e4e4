package assign

import (
	"math"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-detection/boxes"
)

// Encode expresses a ground-truth box relative to an anchor. Both are XYWH.
//
//	t_xy = (gt_xy - anchor_xy) / anchor_wh
//	t_wh = log(gt_wh / anchor_wh)
//
// Decode is the exact inverse; the detection head is trained against this
// parametrization and decoded with it, so neither side may change alone.
func Encode(gt, anchor boxes.Box) boxes.Box {
	return boxes.Box{
		(gt[0] - anchor[0]) / anchor[2],
		(gt[1] - anchor[1]) / anchor[3],
		math.Log(gt[2] / anchor[2]),
		math.Log(gt[3] / anchor[3]),
	}
}

// Decode turns a regression target back into an XYWH box.
func Decode(t, anchor boxes.Box) boxes.Box {
	return boxes.Box{
		t[0]*anchor[2] + anchor[0],
		t[1]*anchor[3] + anchor[1],
		math.Exp(t[2]) * anchor[2],
		math.Exp(t[3]) * anchor[3],
	}
}

// DecodePredictions decodes a raw float32 regression output of shape
// (len(anchors), 4), as produced by a detection head, into XYWH boxes.
//
// Arguments:
//   - loc: Flattened (tx, ty, tw, th) rows, one per anchor.
//   - anchors: The XYWH anchors the head was trained against.
//
// Returns:
//   - []boxes.Box: One decoded XYWH box per anchor.
//   - error: If loc does not hold exactly four values per anchor.
func DecodePredictions(loc []float32, anchors []boxes.Box) ([]boxes.Box, error) {
	if len(loc) != 4*len(anchors) {
		return nil, errors.Errorf("assign: %d regression values for %d anchors", len(loc), len(anchors))
	}

	out := make([]boxes.Box, len(anchors))
	for i, a := range anchors {
		t := loc[i*4 : i*4+4]
		aw, ah := float32(a[2]), float32(a[3])
		out[i] = boxes.Box{
			float64(t[0]*aw + float32(a[0])),
			float64(t[1]*ah + float32(a[1])),
			float64(math32.Exp(t[2]) * aw),
			float64(math32.Exp(t[3]) * ah),
		}
	}
	return out, nil
}
