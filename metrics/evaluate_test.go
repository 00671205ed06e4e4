package metrics

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-detection/boxes"
)

type fixtureBox struct {
	image int
	box   boxes.Box
	conf  float64
}

// Seven images of one class, LTWH boxes.
var (
	fixtureDetections = []fixtureBox{
		{1, boxes.Box{5, 67, 31, 48}, .88},
		{1, boxes.Box{119, 111, 40, 67}, .70},
		{1, boxes.Box{124, 9, 49, 67}, .80},
		{2, boxes.Box{64, 111, 64, 58}, .71},
		{2, boxes.Box{26, 140, 60, 47}, .54},
		{2, boxes.Box{19, 18, 43, 35}, .74},
		{3, boxes.Box{109, 15, 77, 39}, .18},
		{3, boxes.Box{86, 63, 46, 45}, .67},
		{3, boxes.Box{160, 62, 36, 53}, .38},
		{3, boxes.Box{105, 131, 47, 47}, .91},
		{3, boxes.Box{18, 148, 40, 44}, .44},
		{4, boxes.Box{83, 28, 28, 26}, .35},
		{4, boxes.Box{28, 68, 42, 67}, .78},
		{4, boxes.Box{87, 89, 25, 39}, .45},
		{4, boxes.Box{10, 155, 60, 26}, .14},
		{5, boxes.Box{50, 38, 28, 46}, .62},
		{5, boxes.Box{95, 11, 53, 28}, .44},
		{5, boxes.Box{29, 131, 72, 29}, .95},
		{5, boxes.Box{29, 163, 72, 29}, .23},
		{6, boxes.Box{43, 48, 74, 38}, .45},
		{6, boxes.Box{17, 155, 29, 35}, .84},
		{6, boxes.Box{95, 110, 25, 42}, .43},
		{7, boxes.Box{16, 20, 101, 88}, .48},
		{7, boxes.Box{33, 116, 37, 49}, .95},
	}
	fixtureGroundTruths = []fixtureBox{
		{1, boxes.Box{25, 16, 38, 56}, 0},
		{1, boxes.Box{129, 123, 41, 62}, 0},
		{2, boxes.Box{123, 11, 43, 55}, 0},
		{2, boxes.Box{38, 132, 59, 45}, 0},
		{3, boxes.Box{16, 14, 35, 48}, 0},
		{3, boxes.Box{123, 30, 49, 44}, 0},
		{3, boxes.Box{99, 139, 47, 47}, 0},
		{4, boxes.Box{53, 42, 40, 52}, 0},
		{4, boxes.Box{154, 43, 31, 34}, 0},
		{5, boxes.Box{59, 31, 44, 51}, 0},
		{5, boxes.Box{48, 128, 34, 52}, 0},
		{6, boxes.Box{36, 89, 52, 76}, 0},
		{6, boxes.Box{62, 58, 44, 67}, 0},
		{7, boxes.Box{28, 31, 55, 63}, 0},
		{7, boxes.Box{58, 67, 50, 58}, 0},
	}
)

func toDetections(fs []fixtureBox) []Detection[int, int] {
	out := make([]Detection[int, int], len(fs))
	for i, f := range fs {
		out[i] = NewDetection(f.image, 0, f.box, boxes.FormatLTWH, f.conf)
	}
	return out
}

func TestEvaluate_Fixture(t *testing.T) {
	report, err := Evaluate(toDetections(fixtureDetections), toDetections(fixtureGroundTruths), 0.295)
	require.NoError(t, err)
	require.Len(t, report.Classes, 1)

	res := report.Classes[0]
	assert.InDelta(t, 0.2456867, res.AP, 1e-6)
	assert.InDelta(t, 0.2456867, report.MAP, 1e-6)
	assert.Equal(t, 15, res.NumGroundTruth)
	assert.Equal(t, 24, res.NumDetections)
	assert.Equal(t, 7, res.TruePositives)
	assert.Equal(t, 17, res.FalsePositives)

	tp := []int{1, 0, 1, 0, 0, 0, 0, 0, 0, 1, 0, 1, 1, 1, 0, 0, 0, 0, 0, 0, 0, 0, 1, 0}
	for i, want := range tp {
		assert.Equal(t, want == 1, res.Matched[i], "rank %d", i)
	}
	assert.InDelta(t, 7.0/15, res.Recall[23], 1e-12)
	assert.InDelta(t, 7.0/24, res.Precision[23], 1e-12)
}

func TestEvaluate_ShuffleInvariant(t *testing.T) {
	want, err := MeanAveragePrecision(toDetections(fixtureDetections), toDetections(fixtureGroundTruths), 0.295)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 20; trial++ {
		dets := toDetections(fixtureDetections)
		gts := toDetections(fixtureGroundTruths)
		rng.Shuffle(len(dets), func(i, j int) { dets[i], dets[j] = dets[j], dets[i] })

		got, err := MeanAveragePrecision(dets, gts, 0.295)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestEvaluate_MultiClass(t *testing.T) {
	type D = Detection[string, string]
	gts := []D{
		{ImageID: "a", ClassID: "car", Box: boxes.Box{0, 0, 10, 10}},
		{ImageID: "a", ClassID: "dog", Box: boxes.Box{20, 20, 30, 30}},
		{ImageID: "b", ClassID: "car", Box: boxes.Box{5, 5, 15, 15}},
	}
	dets := []D{
		{ImageID: "a", ClassID: "car", Box: boxes.Box{0, 0, 10, 10}, Confidence: 0.9},
		{ImageID: "b", ClassID: "car", Box: boxes.Box{5, 5, 15, 16}, Confidence: 0.8},
		// No ground truth for cats: ignored.
		{ImageID: "a", ClassID: "cat", Box: boxes.Box{0, 0, 10, 10}, Confidence: 0.99},
	}

	report, err := Evaluate(dets, gts, 0.5, WithWorkers(1))
	require.NoError(t, err)
	require.Len(t, report.Classes, 2)
	assert.Equal(t, "car", report.Classes[0].Class)
	assert.Equal(t, "dog", report.Classes[1].Class)

	car, ok := report.Class("car")
	require.True(t, ok)
	assert.InDelta(t, 1.0, car.AP, 1e-12)

	dog, ok := report.Class("dog")
	require.True(t, ok)
	assert.Equal(t, 0.0, dog.AP)
	assert.Equal(t, 0, dog.NumDetections)

	_, ok = report.Class("cat")
	assert.False(t, ok)
	assert.InDelta(t, 0.5, report.MAP, 1e-12)
}

func TestEvaluate_DuplicateDetection(t *testing.T) {
	gts := []Detection[int, int]{{ImageID: 1, Box: boxes.Box{0, 0, 10, 10}}}
	dets := []Detection[int, int]{
		{ImageID: 1, Box: boxes.Box{0, 0, 10, 10}, Confidence: 0.9},
		{ImageID: 1, Box: boxes.Box{0, 0, 10, 9}, Confidence: 0.8},
		{ImageID: 2, Box: boxes.Box{0, 0, 10, 10}, Confidence: 0.7},
	}

	report, err := Evaluate(dets, gts, 0.5)
	require.NoError(t, err)
	res := report.Classes[0]
	assert.Equal(t, []bool{true, false, false}, res.Matched)
	assert.Equal(t, 1, res.TruePositives)
	assert.Equal(t, 2, res.FalsePositives)
	assert.InDelta(t, 1.0, res.AP, 1e-12)
}

func TestEvaluate_ThresholdIsExclusive(t *testing.T) {
	// IoU is exactly 0.5.
	gts := []Detection[int, int]{{ImageID: 1, Box: boxes.Box{0, 0, 10, 10}}}
	dets := []Detection[int, int]{{ImageID: 1, Box: boxes.Box{0, 0, 10, 5}, Confidence: 1}}

	ap, err := MeanAveragePrecision(dets, gts, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 0.0, ap)

	ap, err = MeanAveragePrecision(dets, gts, 0.49)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, ap, 1e-12)
}

func TestEvaluate_NoGroundTruth(t *testing.T) {
	dets := []Detection[int, int]{{ImageID: 1, Box: boxes.Box{0, 0, 1, 1}, Confidence: 1}}

	report, err := Evaluate(dets, nil, 0.5)
	assert.ErrorIs(t, err, ErrNoGroundTruth)
	assert.Nil(t, report)

	ap, err := MeanAveragePrecision[int, int](nil, nil, 0.5)
	assert.ErrorIs(t, err, ErrNoGroundTruth)
	assert.Equal(t, 0.0, ap)
}

func TestEvaluateClass_NoGroundTruth(t *testing.T) {
	dets := []Detection[int, int]{{ImageID: 1, Box: boxes.Box{0, 0, 1, 1}, Confidence: 1}}
	res := EvaluateClass(0, dets, nil, 0.5)
	assert.Equal(t, 0.0, res.AP)
	assert.Equal(t, 1, res.FalsePositives)
	assert.Equal(t, []float64{0}, res.Recall)
}

func TestEvaluate_NaNThreshold(t *testing.T) {
	_, err := Evaluate(toDetections(fixtureDetections), toDetections(fixtureGroundTruths), nan())
	assert.Error(t, err)
}

func TestAccumulator(t *testing.T) {
	acc := NewAccumulator[int, int](0.295)

	dets := toDetections(fixtureDetections)
	gts := toDetections(fixtureGroundTruths)

	var wg sync.WaitGroup
	for img := 1; img <= 7; img++ {
		wg.Add(1)
		go func(img int) {
			defer wg.Done()
			var d, g []Detection[int, int]
			for _, x := range dets {
				if x.ImageID == img {
					d = append(d, x)
				}
			}
			for _, x := range gts {
				if x.ImageID == img {
					g = append(g, x)
				}
			}
			acc.Update(d, g)
		}(img)
	}
	wg.Wait()

	report, err := acc.Compute()
	require.NoError(t, err)
	assert.InDelta(t, 0.2456867, report.MAP, 1e-6)

	acc.Reset()
	_, err = acc.Compute()
	assert.ErrorIs(t, err, ErrNoGroundTruth)
}

func TestNewDetection(t *testing.T) {
	d := NewDetection(1, "car", boxes.Box{10, 10, 20, 30}, boxes.FormatLTWH, 0.9)
	assert.Equal(t, boxes.Box{10, 10, 30, 40}, d.Box)
	assert.Contains(t, d.String(), "car")

	d = NewDetection(1, "car", boxes.Box{20, 25, 20, 30}, boxes.FormatXYWH, 0.9)
	assert.Equal(t, boxes.Box{10, 10, 30, 40}, d.Box)
}
