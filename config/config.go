// Package config - thresholds and settings for evaluation, suppression and target assignment.
package config

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-detection/assign"
	"github.com/nvr-ai/go-detection/boxes"
	"github.com/nvr-ai/go-detection/labels"
	"github.com/nvr-ai/go-detection/postprocess"
)

// Backend selects the suppression implementation.
type Backend string

const (
	// BackendReference runs the pure Go suppressors.
	BackendReference Backend = "reference"
	// BackendOpenCV runs OpenCV's NMSBoxes through gocv.
	BackendOpenCV Backend = "opencv"
)

// Config is the top-level configuration.
type Config struct {
	Evaluation EvaluationConfig `json:"evaluation" yaml:"evaluation"`
	NMS        NMSConfig        `json:"nms"        yaml:"nms"`
	Assigner   AssignerConfig   `json:"assigner"   yaml:"assigner"`
	Log        LogConfig        `json:"log"        yaml:"log"`
}

// EvaluationConfig configures mAP evaluation.
type EvaluationConfig struct {
	IoUThreshold float64      `json:"iouThreshold" yaml:"iouThreshold"`
	BoxFormat    boxes.Format `json:"boxFormat"    yaml:"boxFormat"`
	NumWorkers   int          `json:"numWorkers"   yaml:"numWorkers"`
	// Labels names a built-in label set (coco, yolo, voc) used in reports.
	Labels string `json:"labels" yaml:"labels"`
}

// NMSConfig configures suppression of detections before evaluation.
type NMSConfig struct {
	Enabled        bool               `json:"enabled"        yaml:"enabled"`
	Backend        Backend            `json:"backend"        yaml:"backend"`
	Method         postprocess.Method `json:"method"         yaml:"method"`
	IoUThreshold   float64            `json:"iouThreshold"   yaml:"iouThreshold"`
	TopK           int                `json:"topK"           yaml:"topK"`
	ScoreThreshold float64            `json:"scoreThreshold" yaml:"scoreThreshold"`
	ClassAware     bool               `json:"classAware"     yaml:"classAware"`
	NumWorkers     int                `json:"numWorkers"     yaml:"numWorkers"`
}

// AssignerConfig configures anchor target assignment.
type AssignerConfig struct {
	PosThreshold float64           `json:"posThreshold" yaml:"posThreshold"`
	NegThreshold float64           `json:"negThreshold" yaml:"negThreshold"`
	BoxFormat    boxes.Format      `json:"boxFormat"    yaml:"boxFormat"`
	Policy       string            `json:"policy"       yaml:"policy"`
	Grids        []assign.GridSpec `json:"grids"        yaml:"grids"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `json:"level" yaml:"level"`
}

// Default returns the default configuration.
func Default() Config {
	nms := postprocess.DefaultNMSConfig()
	return Config{
		Evaluation: EvaluationConfig{
			IoUThreshold: 0.5,
			BoxFormat:    boxes.FormatLTWH,
			NumWorkers:   runtime.NumCPU(),
		},
		NMS: NMSConfig{
			Enabled:        false,
			Backend:        BackendReference,
			Method:         nms.Method,
			IoUThreshold:   nms.IoUThreshold,
			TopK:           nms.TopK,
			ScoreThreshold: nms.ScoreThreshold,
			ClassAware:     nms.ClassAware,
			NumWorkers:     nms.NumWorkers,
		},
		Assigner: AssignerConfig{
			PosThreshold: 0.5,
			BoxFormat:    boxes.FormatLTWH,
			Policy:       assign.LastWriterWins.String(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads a configuration file over the defaults. The format follows the
// extension: .yaml and .yml are YAML, .json is JSON.
//
// Arguments:
//   - path: The configuration file.
//
// Returns:
//   - Config: The validated configuration.
//   - error: An error if the file cannot be read, parsed or validated.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "reading config %s", path)
	}
	cfg, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return Config{}, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

// Parse decodes data over the defaults. ext is a file extension such as
// ".yaml" or ".json".
func Parse(data []byte, ext string) (Config, error) {
	cfg := Default()
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, errors.Wrap(err, "decoding yaml")
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, errors.Wrap(err, "decoding json")
		}
	default:
		return Config{}, errors.Errorf("unsupported config format %q", ext)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := validThreshold("evaluation.iouThreshold", c.Evaluation.IoUThreshold); err != nil {
		return err
	}
	if !c.Evaluation.BoxFormat.Valid() {
		return errors.Errorf("evaluation.boxFormat: invalid format %d", int(c.Evaluation.BoxFormat))
	}
	if _, err := labels.Lookup(c.Evaluation.Labels); err != nil {
		return errors.Wrap(err, "evaluation.labels")
	}

	if c.NMS.Backend != BackendReference && c.NMS.Backend != BackendOpenCV {
		return errors.Errorf("nms.backend: unknown backend %q", c.NMS.Backend)
	}
	// OpenCV only provides hard suppression.
	if c.NMS.Backend == BackendOpenCV && c.NMS.Method == postprocess.MethodSoft {
		return errors.Errorf("nms.method: %q is not supported by the %q backend", c.NMS.Method, c.NMS.Backend)
	}
	nms := c.NMSConfig()
	if err := nms.Validate(); err != nil {
		return errors.Wrap(err, "nms")
	}

	// Above 1 is allowed and makes the threshold unreachable, leaving only
	// forced positives.
	if p := c.Assigner.PosThreshold; math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
		return errors.Errorf("assigner.posThreshold: %v must be finite and non-negative", p)
	}
	if err := validThreshold("assigner.negThreshold", c.Assigner.NegThreshold); err != nil {
		return err
	}
	if !c.Assigner.BoxFormat.Valid() {
		return errors.Errorf("assigner.boxFormat: invalid format %d", int(c.Assigner.BoxFormat))
	}
	if _, err := assign.ParsePolicy(c.Assigner.Policy); err != nil {
		return errors.Wrap(err, "assigner.policy")
	}
	for i, g := range c.Assigner.Grids {
		if err := g.Validate(); err != nil {
			return errors.Wrapf(err, "assigner.grids[%d]", i)
		}
	}

	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, "log.level")
	}
	return nil
}

// NMSConfig returns the suppression settings in the form postprocess expects.
func (c *Config) NMSConfig() postprocess.NMSConfig {
	return postprocess.NMSConfig{
		Method:         c.NMS.Method,
		IoUThreshold:   c.NMS.IoUThreshold,
		TopK:           c.NMS.TopK,
		ScoreThreshold: c.NMS.ScoreThreshold,
		ClassAware:     c.NMS.ClassAware,
		NumWorkers:     c.NMS.NumWorkers,
	}
}

// AssignConfig builds an assigner configuration for COCO-style records from
// the configured grids.
func (c *Config) AssignConfig() (assign.Config[assign.Record], error) {
	if len(c.Assigner.Grids) == 0 {
		return assign.Config[assign.Record]{}, errors.Wrap(assign.ErrNoAnchors, "assigner.grids")
	}
	grids, err := assign.GenerateGrids(c.Assigner.Grids...)
	if err != nil {
		return assign.Config[assign.Record]{}, errors.Wrap(err, "assigner.grids")
	}
	policy, err := assign.ParsePolicy(c.Assigner.Policy)
	if err != nil {
		return assign.Config[assign.Record]{}, errors.Wrap(err, "assigner.policy")
	}

	cfg := assign.DefaultConfig(grids...)
	cfg.PosThreshold = c.Assigner.PosThreshold
	cfg.NegThreshold = c.Assigner.NegThreshold
	cfg.BoxFormat = c.Assigner.BoxFormat
	cfg.Policy = policy
	return cfg, nil
}

func validThreshold(name string, v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return errors.Errorf("%s: %v is outside [0, 1]", name, v)
	}
	return nil
}
