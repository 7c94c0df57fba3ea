package engine

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

// ErrMalformedSample is returned for readings that cannot be stored.
var ErrMalformedSample = errors.New("malformed temperature sample")

// Aggregator fuses the latest reading of every weighted source into one reference.
// Not safe for concurrent use; Thermostat serializes access.
type Aggregator struct {
	samples map[string]TemperatureSample
	weights map[string]float64
	order   []string // registration order, keeps summation deterministic
}

// NewAggregator returns an aggregator with no registered sources.
func NewAggregator() *Aggregator {
	return &Aggregator{
		samples: make(map[string]TemperatureSample),
		weights: make(map[string]float64),
	}
}

// SetWeight registers source or updates its weight. A zero weight keeps the
// stored sample but removes the source from the reference.
func (a *Aggregator) SetWeight(source string, weight float64) {
	if _, ok := a.weights[source]; !ok {
		a.order = append(a.order, source)
	}
	a.weights[source] = weight
}

// Sources lists registered sources sorted by id.
func (a *Aggregator) Sources() []WeightedSource {
	out := make([]WeightedSource, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, WeightedSource{ID: id, Weight: a.weights[id]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RecordSample stores the reading as the latest one for source.
// Malformed input is rejected and the previous sample is kept.
func (a *Aggregator) RecordSample(source string, value float64, at time.Time) error {
	switch {
	case source == "":
		return fmt.Errorf("%w: empty source", ErrMalformedSample)
	case math.IsNaN(value) || math.IsInf(value, 0):
		return fmt.Errorf("%w: non-finite value %v from %q", ErrMalformedSample, value, source)
	case at.IsZero():
		return fmt.Errorf("%w: missing timestamp from %q", ErrMalformedSample, source)
	}
	a.samples[source] = TemperatureSample{Value: value, ObservedAt: at}
	return nil
}

// Sample returns the stored reading for source.
func (a *Aggregator) Sample(source string) (TemperatureSample, bool) {
	s, ok := a.samples[source]
	return s, ok
}

// Reference returns the weighted mean of the fresh samples of weighted sources.
// A sample is fresh when now - ObservedAt <= maxAge. Missing and stale samples
// count in neither the numerator nor the denominator. ok is false when nothing
// contributed; the value is then meaningless and must not be read as 0°.
func (a *Aggregator) Reference(now time.Time, maxAge time.Duration) (value float64, ok bool) {
	if maxAge <= 0 {
		maxAge = DefaultMaxSampleAge
	}
	var sum, weightSum float64
	for _, id := range a.order {
		w := a.weights[id]
		if w == 0 {
			continue
		}
		s, found := a.samples[id]
		if !found || now.Sub(s.ObservedAt) > maxAge {
			continue
		}
		sum += s.Value * w
		weightSum += w
	}
	if weightSum == 0 {
		return 0, false
	}
	return sum / weightSum, true
}
