package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	gtJSON = `{"annotations": [
		{"image_id": 1, "category_id": 1, "bbox": [0, 0, 10, 10]},
		{"image_id": 2, "category_id": 1, "bbox": [20, 20, 10, 10]},
		{"image_id": 2, "category_id": 2, "bbox": [50, 50, 20, 20]}
	]}`
	detsJSON = `[
		{"image_id": 1, "category_id": 1, "bbox": [0, 0, 10, 10], "score": 0.9},
		{"image_id": 1, "category_id": 1, "bbox": [1, 1, 10, 10], "score": 0.8},
		{"image_id": 2, "category_id": 1, "bbox": [20, 20, 10, 10], "score": 0.7},
		{"image_id": 2, "category_id": 2, "bbox": [0, 0, 5, 5], "score": 0.6}
	]`
)

func writeFiles(t *testing.T) (string, string, string) {
	t.Helper()
	dir := t.TempDir()
	gt := filepath.Join(dir, "gt.json")
	dets := filepath.Join(dir, "dets.json")
	require.NoError(t, os.WriteFile(gt, []byte(gtJSON), 0o600))
	require.NoError(t, os.WriteFile(dets, []byte(detsJSON), 0o600))
	return dir, gt, dets
}

func TestRun(t *testing.T) {
	dir, gt, dets := writeFiles(t)
	out := filepath.Join(dir, "report.json")

	var stdout bytes.Buffer
	err := run([]string{"-gt", gt, "-dets", dets, "-labels", "coco", "-log-level", "error", "-out", out}, &stdout)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "mAP")
	assert.Contains(t, stdout.String(), "person")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var doc report
	require.NoError(t, json.Unmarshal(data, &doc))

	assert.NotEmpty(t, doc.RunID)
	assert.False(t, doc.NMS)
	require.Len(t, doc.Classes, 2)
	// Class 1: the duplicate at 0.8 ranks between the two hits.
	assert.Equal(t, 1, doc.Classes[0].Class)
	assert.Equal(t, "person", doc.Classes[0].Name)
	assert.Equal(t, 1, doc.Classes[0].FalsePositives)
	assert.InDelta(t, 0.5+0.5*2.0/3, doc.Classes[0].AP, 1e-9)
	assert.Equal(t, 0.0, doc.Classes[1].AP)
}

func TestRun_NMS(t *testing.T) {
	dir, gt, dets := writeFiles(t)
	out := filepath.Join(dir, "report.json")

	var stdout bytes.Buffer
	err := run([]string{"-gt", gt, "-dets", dets, "-nms", "-log-level", "error", "-out", out}, &stdout)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var doc report
	require.NoError(t, json.Unmarshal(data, &doc))

	assert.True(t, doc.NMS)
	// The duplicate is suppressed, so class 1 is perfect.
	assert.Equal(t, 0, doc.Classes[0].FalsePositives)
	assert.InDelta(t, 1.0, doc.Classes[0].AP, 1e-9)
	assert.InDelta(t, 0.5, doc.MAP, 1e-9)
}

func TestRun_ConfigFile(t *testing.T) {
	dir, gt, dets := writeFiles(t)
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("nms:\n  enabled: true\nlog:\n  level: error\n"), 0o600))

	var stdout bytes.Buffer
	require.NoError(t, run([]string{"-gt", gt, "-dets", dets, "-config", cfgPath}, &stdout))
	assert.Contains(t, stdout.String(), "0.5000")
}

func TestRun_Errors(t *testing.T) {
	dir, gt, dets := writeFiles(t)
	noScore := filepath.Join(dir, "noscore.json")
	require.NoError(t, os.WriteFile(noScore, []byte(`[{"image_id": 1, "category_id": 1, "bbox": [0, 0, 1, 1]}]`), 0o600))
	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte(`[]`), 0o600))
	softCfg := filepath.Join(dir, "soft.yaml")
	require.NoError(t, os.WriteFile(softCfg, []byte("nms:\n  enabled: true\n  method: soft\n"), 0o600))

	tests := []struct {
		name string
		args []string
	}{
		{"missing flags", []string{"-gt", gt}},
		{"bad format", []string{"-gt", gt, "-dets", dets, "-format", "polar"}},
		{"bad iou", []string{"-gt", gt, "-dets", dets, "-iou", "3"}},
		{"bad backend", []string{"-gt", gt, "-dets", dets, "-backend", "cuda"}},
		{"bad labels", []string{"-gt", gt, "-dets", dets, "-labels", "imagenet"}},
		{"soft on opencv", []string{"-gt", gt, "-dets", dets, "-config", softCfg, "-backend", "opencv"}},
		{"missing file", []string{"-gt", filepath.Join(dir, "nope.json"), "-dets", dets}},
		{"missing score", []string{"-gt", gt, "-dets", noScore}},
		{"no ground truth", []string{"-gt", empty, "-dets", dets, "-log-level", "error"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout bytes.Buffer
			assert.Error(t, run(tt.args, &stdout))
		})
	}
}
