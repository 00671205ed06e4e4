// Command evaluate scores detections against ground truth with per-class AP
// and mAP, optionally suppressing overlapping detections first.
//
//	evaluate -gt instances.json -dets results.json -iou 0.5 -nms
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/go-detection/boxes"
	"github.com/nvr-ai/go-detection/config"
	"github.com/nvr-ai/go-detection/labels"
	"github.com/nvr-ai/go-detection/metrics"
	"github.com/nvr-ai/go-detection/postprocess"
	"github.com/nvr-ai/go-detection/postprocess/native"
	"github.com/nvr-ai/go-detection/util"
)

type detection = metrics.Detection[util.ImageID, int]

// report is the JSON document written by -out.
type report struct {
	RunID        string        `json:"runId"`
	CreatedAt    time.Time     `json:"createdAt"`
	IoUThreshold float64       `json:"iouThreshold"`
	NMS          bool          `json:"nms"`
	MAP          float64       `json:"map"`
	Classes      []classReport `json:"classes"`
}

type classReport struct {
	Class          int     `json:"class"`
	Name           string  `json:"name"`
	AP             float64 `json:"ap"`
	GroundTruth    int     `json:"groundTruth"`
	Detections     int     `json:"detections"`
	TruePositives  int     `json:"truePositives"`
	FalsePositives int     `json:"falsePositives"`
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "evaluate:", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("evaluate", flag.ContinueOnError)
	var (
		gtFile     = fs.String("gt", "", "Path to COCO-style ground-truth annotations")
		detsFile   = fs.String("dets", "", "Path to COCO-style detections with scores")
		configFile = fs.String("config", "", "Path to YAML or JSON configuration file")
		iou        = fs.Float64("iou", 0.5, "IoU threshold for a true positive")
		nms        = fs.Bool("nms", false, "Suppress overlapping detections per image before evaluating")
		backend    = fs.String("backend", string(config.BackendReference), "Suppression backend: reference or opencv")
		format     = fs.String("format", "ltwh", "Box format of both files: ltwh, ltrb or xywh")
		labelSet   = fs.String("labels", "", "Label set for class names: coco, yolo or voc")
		logLevel   = fs.String("log-level", "info", "Log level")
		outFile    = fs.String("out", "", "Optional path for a JSON report")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *gtFile == "" || *detsFile == "" {
		return errors.New("both -gt and -dets are required")
	}

	cfg := config.Default()
	if *configFile != "" {
		var err error
		if cfg, err = config.Load(*configFile); err != nil {
			return err
		}
	}

	// Flags given explicitly override the configuration file.
	var flagErr error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "iou":
			cfg.Evaluation.IoUThreshold = *iou
		case "nms":
			cfg.NMS.Enabled = *nms
		case "backend":
			cfg.NMS.Backend = config.Backend(*backend)
		case "format":
			if err := cfg.Evaluation.BoxFormat.UnmarshalText([]byte(*format)); err != nil {
				flagErr = err
			}
		case "labels":
			cfg.Evaluation.Labels = *labelSet
		case "log-level":
			cfg.Log.Level = *logLevel
		}
	})
	if flagErr != nil {
		return flagErr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := util.NewLogger(cfg.Log.Level)
	if err != nil {
		return err
	}
	names, err := labels.Lookup(cfg.Evaluation.Labels)
	if err != nil {
		return err
	}
	runID := uuid.New()
	log := logger.WithField("run", runID.String())

	gts, err := loadDetections(*gtFile, cfg.Evaluation.BoxFormat, false)
	if err != nil {
		return err
	}
	dets, err := loadDetections(*detsFile, cfg.Evaluation.BoxFormat, true)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"groundTruth": len(gts),
		"detections":  len(dets),
	}).Info("annotations loaded")

	if cfg.NMS.Enabled {
		before := len(dets)
		if dets, err = suppress(dets, &cfg); err != nil {
			return err
		}
		log.WithFields(logrus.Fields{
			"backend": cfg.NMS.Backend,
			"method":  cfg.NMS.Method,
			"kept":    len(dets),
			"dropped": before - len(dets),
		}).Info("suppression applied")
	}

	res, err := metrics.Evaluate(dets, gts, cfg.Evaluation.IoUThreshold,
		metrics.WithLogger(log),
		metrics.WithWorkers(cfg.Evaluation.NumWorkers),
	)
	if err != nil {
		return err
	}

	if err := printReport(stdout, res, names); err != nil {
		return err
	}
	log.WithField("map", res.MAP).Info("evaluation complete")

	if *outFile != "" {
		if err := writeReport(*outFile, runID, &cfg, res, names); err != nil {
			return err
		}
	}
	return nil
}

// loadDetections reads an annotation file. Detections must carry a score.
func loadDetections(path string, format boxes.Format, scored bool) ([]detection, error) {
	anns, err := util.LoadAnnotations(path)
	if err != nil {
		return nil, err
	}

	out := make([]detection, len(anns))
	for i, a := range anns {
		conf := 0.0
		if scored {
			if a.Score == nil {
				return nil, errors.Errorf("%s: annotation %d has no score", path, i)
			}
			conf = *a.Score
		}
		out[i] = metrics.NewDetection(a.ImageID, a.CategoryID, boxes.Box(a.BBox), format, conf)
	}
	return out, nil
}

// suppress runs NMS image by image.
func suppress(dets []detection, cfg *config.Config) ([]detection, error) {
	nmsCfg := cfg.NMSConfig()
	var suppressor postprocess.Suppressor
	if cfg.NMS.Backend == config.BackendOpenCV {
		suppressor = native.New(&nmsCfg)
	}

	var order []util.ImageID
	byImage := make(map[util.ImageID][]postprocess.Result)
	for _, d := range dets {
		if _, ok := byImage[d.ImageID]; !ok {
			order = append(order, d.ImageID)
		}
		byImage[d.ImageID] = append(byImage[d.ImageID], postprocess.Result{
			Box:   d.Box,
			Score: d.Confidence,
			Class: d.ClassID,
		})
	}

	kept := make([]detection, 0, len(dets))
	for _, img := range order {
		survivors, err := postprocess.ApplyWith(byImage[img], &nmsCfg, suppressor)
		if err != nil {
			return nil, errors.Wrapf(err, "image %s", img)
		}
		for _, r := range survivors {
			kept = append(kept, detection{ImageID: img, ClassID: r.Class, Box: r.Box, Confidence: r.Score})
		}
	}
	return kept, nil
}

func printReport(w io.Writer, res *metrics.Report[int], names *labels.Set) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "class\tgt\tdets\ttp\tfp\tAP\t")
	for _, c := range res.Classes {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%.4f\t\n",
			names.Format(c.Class), c.NumGroundTruth, c.NumDetections, c.TruePositives, c.FalsePositives, c.AP)
	}
	fmt.Fprintf(tw, "mAP\t\t\t\t\t%.4f\t\n", res.MAP)
	return tw.Flush()
}

func writeReport(path string, runID uuid.UUID, cfg *config.Config, res *metrics.Report[int], names *labels.Set) error {
	doc := report{
		RunID:        runID.String(),
		CreatedAt:    time.Now().UTC(),
		IoUThreshold: cfg.Evaluation.IoUThreshold,
		NMS:          cfg.NMS.Enabled,
		MAP:          res.MAP,
		Classes:      make([]classReport, len(res.Classes)),
	}
	for i, c := range res.Classes {
		doc.Classes[i] = classReport{
			Class:          c.Class,
			Name:           names.Format(c.Class),
			AP:             c.AP,
			GroundTruth:    c.NumGroundTruth,
			Detections:     c.NumDetections,
			TruePositives:  c.TruePositives,
			FalsePositives: c.FalsePositives,
		}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding report")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "writing report %s", path)
	}
	return nil
}
