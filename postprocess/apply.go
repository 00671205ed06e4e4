package postprocess

import (
	"cmp"
	"math"
	"runtime"
	"slices"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-detection/boxes"
	"github.com/nvr-ai/go-detection/util"
)

// Method selects the suppression algorithm.
type Method string

const (
	// MethodHard is greedy Non-Maximum Suppression.
	MethodHard Method = "hard"
	// MethodSoft is Soft-NMS with linear score decay.
	MethodSoft Method = "soft"
)

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	Method         Method  `json:"method" yaml:"method"`                   // Suppression algorithm.
	IoUThreshold   float64 `json:"iouThreshold" yaml:"iouThreshold"`     // Overlap threshold for suppression.
	TopK           int     `json:"topK" yaml:"topK"`                     // Soft-NMS picks per group; <= 0 keeps all.
	ScoreThreshold float64 `json:"scoreThreshold" yaml:"scoreThreshold"` // Soft-NMS score floor; 0 disables it.
	ClassAware     bool    `json:"classAware" yaml:"classAware"`         // If true, suppress only within same class.
	NumWorkers     int     `json:"numWorkers" yaml:"numWorkers"`         // Goroutines for per-class suppression.
}

// DefaultNMSConfig returns hard, class-aware NMS at IoU 0.5 with one worker
// per CPU.
func DefaultNMSConfig() NMSConfig {
	return NMSConfig{
		Method:         MethodHard,
		IoUThreshold:   0.5,
		TopK:           0,
		ScoreThreshold: 0.01,
		ClassAware:     true,
		NumWorkers:     runtime.NumCPU(),
	}
}

// Validate checks the configuration.
func (c *NMSConfig) Validate() error {
	if c.Method != MethodHard && c.Method != MethodSoft {
		return errors.Errorf("nms: unknown method %q", c.Method)
	}
	if math.IsNaN(c.IoUThreshold) || c.IoUThreshold < 0 || c.IoUThreshold > 1 {
		return errors.Errorf("nms: iou threshold %v out of [0, 1]", c.IoUThreshold)
	}
	if math.IsNaN(c.ScoreThreshold) || c.ScoreThreshold < 0 {
		return errors.Errorf("nms: negative score threshold %v", c.ScoreThreshold)
	}
	return nil
}

// Suppressor builds the Suppressor matching the configured method.
func (c *NMSConfig) Suppressor() (Suppressor, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.Method == MethodSoft {
		return SoftNMSSuppressor{
			IoUThreshold:   c.IoUThreshold,
			TopK:           c.TopK,
			ScoreThreshold: c.ScoreThreshold,
		}, nil
	}
	return HardNMS{IoUThreshold: c.IoUThreshold}, nil
}

// ApplyNMS filters overlapping detections using the configured suppression.
//
// Arguments:
//   - results: Detections in any order. Boxes are LTRB.
//   - config: NMS configuration, nil for DefaultNMSConfig. With ClassAware,
//     each class is suppressed independently and the groups run on up to
//     NumWorkers goroutines. Otherwise all detections form a single group.
//
// Returns:
//   - []Result: The survivors ordered by score (descending), then class, then
//     input position. Nil when no detections are provided.
//   - error: When the config is invalid.
func ApplyNMS(results []Result, config *NMSConfig) ([]Result, error) {
	return ApplyWith(results, config, nil)
}

// ApplyWith is ApplyNMS with an explicit Suppressor, such as an OpenCV backed
// one. A nil suppressor is built from config; a nil config means
// DefaultNMSConfig.
func ApplyWith(results []Result, config *NMSConfig, suppressor Suppressor) ([]Result, error) {
	if config == nil {
		def := DefaultNMSConfig()
		config = &def
	}
	if suppressor == nil {
		var err error
		if suppressor, err = config.Suppressor(); err != nil {
			return nil, err
		}
	}
	if len(results) == 0 {
		return nil, nil
	}

	groups := groupByClass(results, config.ClassAware)

	kept := make([][]int, len(groups))
	errs := make([]error, len(groups))
	util.ForEach(len(groups), config.NumWorkers, func(g int) {
		idx := groups[g]
		bs := make([]boxes.Box, len(idx))
		scores := make([]float64, len(idx))
		for k, i := range idx {
			bs[k] = results[i].Box
			scores[k] = results[i].Score
		}
		sel, err := suppressor.Suppress(bs, scores)
		if err != nil {
			errs[g] = err
			return
		}
		for _, s := range sel {
			kept[g] = append(kept[g], idx[s])
		}
	})
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	var survivors []int
	for _, k := range kept {
		survivors = append(survivors, k...)
	}
	slices.SortFunc(survivors, func(a, b int) int {
		if c := cmp.Compare(results[b].Score, results[a].Score); c != 0 {
			return c
		}
		if c := cmp.Compare(results[a].Class, results[b].Class); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})

	filtered := make([]Result, len(survivors))
	for k, i := range survivors {
		filtered[k] = results[i]
	}
	return filtered, nil
}

// groupByClass returns result indices grouped by class, groups in order of
// first appearance.
func groupByClass(results []Result, classAware bool) [][]int {
	if !classAware {
		all := make([]int, len(results))
		for i := range all {
			all[i] = i
		}
		return [][]int{all}
	}

	pos := make(map[int]int)
	var groups [][]int
	for i, r := range results {
		g, ok := pos[r.Class]
		if !ok {
			g = len(groups)
			pos[r.Class] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], i)
	}
	return groups
}
