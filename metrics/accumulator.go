package metrics

import (
	"cmp"
	"sync"
)

// Accumulator collects detections and ground truth across batches and
// evaluates them at the end of an epoch. Update may be called from several
// goroutines.
//
// Image ids must be unique across the whole epoch, not just within a batch.
type Accumulator[I cmp.Ordered, C comparable] struct {
	iouThreshold float64
	opts         []Option

	mu   sync.Mutex
	dets []Detection[I, C]
	gts  []Detection[I, C]
}

// NewAccumulator returns an empty accumulator evaluating at iouThreshold.
func NewAccumulator[I cmp.Ordered, C comparable](iouThreshold float64, opts ...Option) *Accumulator[I, C] {
	return &Accumulator[I, C]{iouThreshold: iouThreshold, opts: opts}
}

// Reset drops everything collected so far.
func (a *Accumulator[I, C]) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dets = nil
	a.gts = nil
}

// Update adds the detections and ground truth of one batch.
func (a *Accumulator[I, C]) Update(dets, gts []Detection[I, C]) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dets = append(a.dets, dets...)
	a.gts = append(a.gts, gts...)
}

// Compute evaluates everything collected since the last Reset.
func (a *Accumulator[I, C]) Compute() (*Report[C], error) {
	a.mu.Lock()
	dets, gts := a.dets, a.gts
	a.mu.Unlock()
	return Evaluate(dets, gts, a.iouThreshold, a.opts...)
}
