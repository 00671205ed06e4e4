// Command assign computes anchor training targets for a COCO-style
// annotation file and prints, per image, how many anchors became positive,
// negative or ignored.
//
//	assign -config anchors.yaml -gt instances.json
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/go-detection/assign"
	"github.com/nvr-ai/go-detection/config"
	"github.com/nvr-ai/go-detection/util"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "assign:", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("assign", flag.ContinueOnError)
	var (
		configFile = fs.String("config", "", "Path to YAML or JSON configuration with assigner grids")
		gtFile     = fs.String("gt", "", "Path to COCO-style ground-truth annotations")
		logLevel   = fs.String("log-level", "", "Log level, overrides the configuration")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *configFile == "" || *gtFile == "" {
		return errors.New("both -config and -gt are required")
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		return err
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	logger, err := util.NewLogger(cfg.Log.Level)
	if err != nil {
		return err
	}

	acfg, err := cfg.AssignConfig()
	if err != nil {
		return err
	}
	acfg.Logger = logrus.NewEntry(logger)
	assigner, err := assign.New(acfg)
	if err != nil {
		return err
	}

	anns, err := util.LoadAnnotations(*gtFile)
	if err != nil {
		return err
	}

	// Annotations arrive ordered by image.
	var (
		images  []util.ImageID
		records = make(map[util.ImageID][]assign.Record)
	)
	for _, a := range anns {
		if _, ok := records[a.ImageID]; !ok {
			images = append(images, a.ImageID)
		}
		records[a.ImageID] = append(records[a.ImageID], a.Record())
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "image\tgrid\tboxes\tpositive\tnegative\tignored\t")
	for _, img := range images {
		targets, err := assigner.Assign(records[img])
		if err != nil {
			return errors.Wrapf(err, "image %s", img)
		}
		for g, t := range targets.Grids {
			pos := t.NumPositive()
			neg := 0
			for _, n := range t.Neg {
				if n {
					neg++
				}
			}
			ignored := 0
			if t.Neg != nil {
				ignored = len(t.Cls) - pos - neg
			}
			fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t\n", img, g, len(records[img]), pos, neg, ignored)
		}
	}
	return tw.Flush()
}
