package annealing

import (
	"iter"
	"math"
	"sort"

	"github.com/aristath/valuation/internal/modules/qubo"
	"gonum.org/v1/gonum/stat"
)

// Response holds every sample of a sampler run, ordered by ascending energy.
// Ties keep read order, so the earliest read wins.
type Response struct {
	samples []Sample
	vars    []qubo.Variable

	Seed   uint64  `json:"seed"`
	Sweeps int     `json:"sweeps"`
	TMax   float64 `json:"t_max"`
	TMin   float64 `json:"t_min"`
}

// Stats summarises the energies of a response
type Stats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// AggregatedSample is a distinct assignment together with how often it occurred
type AggregatedSample struct {
	Assignment     qubo.Assignment `json:"assignment"`
	Energy         float64         `json:"energy"`
	NumOccurrences int             `json:"num_occurrences"`
	FirstRead      int             `json:"first_read"`
}

// NewResponse orders samples by energy. Samples are expected in read order.
func NewResponse(samples []Sample, vars []qubo.Variable) *Response {
	ordered := make([]Sample, len(samples))
	copy(ordered, samples)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Energy < ordered[j].Energy
	})
	return &Response{samples: ordered, vars: vars}
}

// Len returns the number of samples
func (r *Response) Len() int {
	return len(r.samples)
}

// Samples returns the samples in ascending energy order
func (r *Response) Samples() []Sample {
	out := make([]Sample, len(r.samples))
	copy(out, r.samples)
	return out
}

// All iterates samples in ascending energy order
func (r *Response) All() iter.Seq2[int, Sample] {
	return func(yield func(int, Sample) bool) {
		for i, s := range r.samples {
			if !yield(i, s) {
				return
			}
		}
	}
}

// Best returns the minimum-energy sample. ok is false for an empty response.
func (r *Response) Best() (best Sample, ok bool) {
	if len(r.samples) == 0 {
		return Sample{}, false
	}
	return r.samples[0], true
}

// Energies returns sample energies in ascending order
func (r *Response) Energies() []float64 {
	energies := make([]float64, len(r.samples))
	for i, s := range r.samples {
		energies[i] = s.Energy
	}
	return energies
}

// Stats computes summary statistics over the sample energies
func (r *Response) Stats() Stats {
	energies := r.Energies()
	if len(energies) == 0 {
		return Stats{}
	}

	mean, std := stat.MeanStdDev(energies, nil)
	if len(energies) < 2 || math.IsNaN(std) {
		std = 0
	}

	return Stats{
		Count:  len(energies),
		Mean:   mean,
		StdDev: std,
		Min:    energies[0],
		Max:    energies[len(energies)-1],
	}
}

// Aggregate collapses identical assignments, keeping energy order
func (r *Response) Aggregate() []AggregatedSample {
	index := make(map[string]int)
	var out []AggregatedSample

	for _, s := range r.samples {
		key := r.key(s.Assignment)
		if i, ok := index[key]; ok {
			out[i].NumOccurrences++
			if s.Read < out[i].FirstRead {
				out[i].FirstRead = s.Read
			}
			continue
		}
		index[key] = len(out)
		out = append(out, AggregatedSample{
			Assignment:     s.Assignment,
			Energy:         s.Energy,
			NumOccurrences: 1,
			FirstRead:      s.Read,
		})
	}

	return out
}

func (r *Response) key(a qubo.Assignment) string {
	buf := make([]byte, len(r.vars))
	for i, v := range r.vars {
		buf[i] = '0' + a.Value(v)
	}
	return string(buf)
}
