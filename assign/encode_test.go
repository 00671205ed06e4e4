package assign

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-detection/boxes"
)

func TestEncode(t *testing.T) {
	anchor := boxes.Box{50, 50, 20, 40}
	gt := boxes.Box{60, 40, 40, 20}

	got := Encode(gt, anchor)
	assert.InDelta(t, 0.5, got[0], 1e-12)
	assert.InDelta(t, -0.25, got[1], 1e-12)
	assert.InDelta(t, math.Log(2), got[2], 1e-12)
	assert.InDelta(t, math.Log(0.5), got[3], 1e-12)

	back := Decode(got, anchor)
	for i := range gt {
		assert.InDelta(t, gt[i], back[i], 1e-9)
	}
}

func TestDecodePredictions(t *testing.T) {
	anchors := []boxes.Box{{50, 50, 20, 40}, {10, 10, 8, 8}}
	gts := []boxes.Box{{60, 40, 40, 20}, {11, 9, 4, 16}}

	loc := make([]float32, 0, 8)
	for i := range anchors {
		e := Encode(gts[i], anchors[i])
		for _, v := range e {
			loc = append(loc, float32(v))
		}
	}

	got, err := DecodePredictions(loc, anchors)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for i := range gts {
		for k := range gts[i] {
			assert.InDelta(t, gts[i][k], got[i][k], 1e-4)
		}
	}

	_, err = DecodePredictions(loc[:7], anchors)
	assert.Error(t, err)
}

func TestGenerateGrid(t *testing.T) {
	grid, err := GenerateGrid(GridSpec{
		Width:        2,
		Height:       1,
		Stride:       8,
		Sizes:        []float64{16},
		AspectRatios: []float64{1, 4},
	})
	require.NoError(t, err)

	assert.Equal(t, []boxes.Box{
		{4, 4, 16, 16},
		{4, 4, 32, 8},
		{12, 4, 16, 16},
		{12, 4, 32, 8},
	}, grid)
}

func TestGenerateGrids(t *testing.T) {
	grids, err := GenerateGrids(
		GridSpec{Width: 4, Height: 4, Stride: 8, Sizes: []float64{16, 24}},
		GridSpec{Width: 2, Height: 2, Stride: 16, Sizes: []float64{48}, AspectRatios: []float64{0.5, 1, 2}},
	)
	require.NoError(t, err)
	require.Len(t, grids, 2)
	assert.Len(t, grids[0], 4*4*2)
	assert.Len(t, grids[1], 2*2*3)

	_, err = GenerateGrids(GridSpec{Width: 1, Height: 1, Stride: 8})
	assert.Error(t, err)
}

func TestGridSpec_Validate(t *testing.T) {
	valid := GridSpec{Width: 1, Height: 1, Stride: 8, Sizes: []float64{8}}
	assert.NoError(t, valid.Validate())
	assert.Equal(t, 1, valid.AnchorsPerCell())

	tests := []struct {
		name string
		mod  func(*GridSpec)
	}{
		{"zero width", func(s *GridSpec) { s.Width = 0 }},
		{"zero stride", func(s *GridSpec) { s.Stride = 0 }},
		{"no sizes", func(s *GridSpec) { s.Sizes = nil }},
		{"negative size", func(s *GridSpec) { s.Sizes = []float64{-1} }},
		{"zero ratio", func(s *GridSpec) { s.AspectRatios = []float64{0} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid
			s.Sizes = append([]float64(nil), valid.Sizes...)
			tt.mod(&s)
			assert.Error(t, s.Validate())
		})
	}
}

func TestMapExtractors(t *testing.T) {
	label := MapLabel("category_id")
	box := MapBox("bbox")

	tests := []struct {
		name      string
		rec       Record
		wantLabel int
		wantBox   boxes.Box
		labelErr  bool
		boxErr    bool
	}{
		{"ints and floats", Record{"category_id": 4, "bbox": []float64{1, 2, 3, 4}}, 4, boxes.Box{1, 2, 3, 4}, false, false},
		{"json numbers", Record{"category_id": 4.0, "bbox": []any{1.0, 2, 3.0, 4.0}}, 4, boxes.Box{1, 2, 3, 4}, false, false},
		{"typed box", Record{"category_id": int64(9), "bbox": boxes.Box{1, 1, 1, 1}}, 9, boxes.Box{1, 1, 1, 1}, false, false},
		{"array box", Record{"category_id": int32(1), "bbox": [4]float64{0, 0, 2, 2}}, 1, boxes.Box{0, 0, 2, 2}, false, false},
		{"fractional label", Record{"category_id": 1.5, "bbox": []float64{1, 2, 3, 4}}, 0, boxes.Box{1, 2, 3, 4}, true, false},
		{"string label", Record{"category_id": "car", "bbox": []float64{1, 2, 3, 4}}, 0, boxes.Box{1, 2, 3, 4}, true, false},
		{"short box", Record{"category_id": 1, "bbox": []float64{1, 2, 3}}, 1, boxes.Box{}, false, true},
		{"short json box", Record{"category_id": 1, "bbox": []any{1.0}}, 1, boxes.Box{}, false, true},
		{"bad element", Record{"category_id": 1, "bbox": []any{1.0, "2", 3.0, 4.0}}, 1, boxes.Box{}, false, true},
		{"bad box type", Record{"category_id": 1, "bbox": "0 0 1 1"}, 1, boxes.Box{}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := label(tt.rec)
			if tt.labelErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantLabel, l)
			}

			b, err := box(tt.rec)
			if tt.boxErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantBox, b)
			}
		})
	}
}
