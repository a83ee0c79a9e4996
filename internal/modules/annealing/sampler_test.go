package annealing

import (
	"context"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/aristath/valuation/internal/modules/qubo"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frustratedModel() *qubo.Model {
	// Small frustrated triangle with several near-degenerate minima
	m := qubo.NewModel()
	m.AddLinear("a", -1)
	m.AddLinear("b", -1)
	m.AddLinear("c", -1)
	m.AddQuadratic("a", "b", 2)
	m.AddQuadratic("b", "c", 2)
	m.AddQuadratic("a", "c", 2)
	return m
}

func TestParams_Validate(t *testing.T) {
	tests := []struct {
		name    string
		params  Params
		wantErr bool
	}{
		{"defaults", DefaultParams(), false},
		{"explicit range", Params{NumReads: 1, Sweeps: 1, TMax: 10, TMin: 1}, false},
		{"equal bounds", Params{NumReads: 1, Sweeps: 1, TMax: 2, TMin: 2}, false},
		{"zero reads", Params{NumReads: 0, Sweeps: 10}, true},
		{"zero sweeps", Params{NumReads: 1, Sweeps: 0}, true},
		{"only t_max", Params{NumReads: 1, Sweeps: 1, TMax: 10}, true},
		{"inverted range", Params{NumReads: 1, Sweeps: 1, TMax: 1, TMin: 10}, true},
		{"negative temperature", Params{NumReads: 1, Sweeps: 1, TMax: -1, TMin: -2}, true},
		{"negative workers", Params{NumReads: 1, Sweeps: 1, Workers: -1}, true},
		{"max reads", Params{NumReads: MaxNumReads, Sweeps: 1}, false},
		{"max sweeps", Params{NumReads: 1, Sweeps: MaxSweeps}, false},
		{"too many reads", Params{NumReads: MaxNumReads + 1, Sweeps: 1}, true},
		{"too many sweeps", Params{NumReads: 1, Sweeps: MaxSweeps + 1}, true},
		{"huge reads", Params{NumReads: 1 << 62, Sweeps: 1}, true},
		{"huge sweeps", Params{NumReads: 1, Sweeps: 1 << 62}, true},
		{"total budget exceeded", Params{NumReads: MaxNumReads, Sweeps: MaxSweeps}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSampler_RejectsInvalidParams(t *testing.T) {
	sampler := NewSampler(zerolog.Nop())
	resp, err := sampler.Sample(context.Background(), frustratedModel(), Params{NumReads: 0, Sweeps: 1})
	assert.Error(t, err)
	assert.Nil(t, resp)
}

func TestSampler_OrderingAndBest(t *testing.T) {
	sampler := NewSampler(zerolog.Nop())
	params := DefaultParams()
	params.NumReads = 25
	params.Sweeps = 20
	params.Seed = 42

	resp, err := sampler.Sample(context.Background(), frustratedModel(), params)
	require.NoError(t, err)
	require.Equal(t, 25, resp.Len())

	energies := resp.Energies()
	for i := 1; i < len(energies); i++ {
		assert.LessOrEqual(t, energies[i-1], energies[i])
	}

	best, ok := resp.Best()
	require.True(t, ok)
	for _, s := range resp.Samples() {
		assert.GreaterOrEqual(t, s.Energy, best.Energy)
	}

	// Ties are broken by read index
	samples := resp.Samples()
	for i := 1; i < len(samples); i++ {
		if samples[i-1].Energy == samples[i].Energy {
			assert.Less(t, samples[i-1].Read, samples[i].Read)
		}
	}

	seen := make(map[int]bool)
	for _, s := range samples {
		seen[s.Read] = true
	}
	assert.Len(t, seen, 25, "every read is represented exactly once")
}

func TestSampler_ReproducibleWithSeed(t *testing.T) {
	sampler := NewSampler(zerolog.Nop())
	m := randomModel(rand.New(rand.NewPCG(99, 1)), 10)

	run := func(workers int) *Response {
		params := DefaultParams()
		params.Sweeps = 100
		params.Seed = 1234
		params.Workers = workers
		resp, err := sampler.Sample(context.Background(), m, params)
		require.NoError(t, err)
		return resp
	}

	sequential := run(1)
	parallel := run(8)

	assert.Equal(t, sequential.Samples(), parallel.Samples())
	assert.Equal(t, uint64(1234), sequential.Seed)
}

func TestSampler_UsesExplicitTemperatures(t *testing.T) {
	sampler := NewSampler(zerolog.Nop())
	params := Params{NumReads: 2, Sweeps: 5, TMax: 3, TMin: 0.25, Seed: 7}

	resp, err := sampler.Sample(context.Background(), frustratedModel(), params)
	require.NoError(t, err)
	assert.Equal(t, 3.0, resp.TMax)
	assert.Equal(t, 0.25, resp.TMin)
	assert.Equal(t, 5, resp.Sweeps)
}

func TestSampler_EmptyModel(t *testing.T) {
	sampler := NewSampler(zerolog.Nop())
	resp, err := sampler.Sample(context.Background(), qubo.NewModel(), DefaultParams())
	require.NoError(t, err)

	best, ok := resp.Best()
	require.True(t, ok)
	assert.Equal(t, 0.0, best.Energy)
	assert.Empty(t, best.Assignment)
}

func TestSampler_OnSampleHook(t *testing.T) {
	sampler := NewSampler(zerolog.Nop())

	var mu sync.Mutex
	var reads []int
	params := DefaultParams()
	params.Sweeps = 10
	params.Seed = 3
	params.OnSample = func(s Sample) {
		mu.Lock()
		defer mu.Unlock()
		reads = append(reads, s.Read)
	}

	_, err := sampler.Sample(context.Background(), frustratedModel(), params)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, reads)
}

func TestSampler_CancelledContext(t *testing.T) {
	sampler := NewSampler(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp, err := sampler.Sample(ctx, frustratedModel(), DefaultParams())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, resp)
}

func TestResponse_StatsAndAggregate(t *testing.T) {
	vars := []qubo.Variable{"x", "y"}
	samples := []Sample{
		{Read: 0, Assignment: qubo.Assignment{"x": 1, "y": 0}, Energy: -1},
		{Read: 1, Assignment: qubo.Assignment{"x": 0, "y": 0}, Energy: 0},
		{Read: 2, Assignment: qubo.Assignment{"x": 1, "y": 0}, Energy: -1},
		{Read: 3, Assignment: qubo.Assignment{"x": 1, "y": 1}, Energy: -3},
	}
	resp := NewResponse(samples, vars)

	best, ok := resp.Best()
	require.True(t, ok)
	assert.Equal(t, 3, best.Read)

	stats := resp.Stats()
	assert.Equal(t, 4, stats.Count)
	assert.InDelta(t, -1.25, stats.Mean, 1e-12)
	assert.Equal(t, -3.0, stats.Min)
	assert.Equal(t, 0.0, stats.Max)
	assert.Greater(t, stats.StdDev, 0.0)

	agg := resp.Aggregate()
	require.Len(t, agg, 3)
	assert.Equal(t, -3.0, agg[0].Energy)
	assert.Equal(t, 1, agg[0].NumOccurrences)
	assert.Equal(t, 2, agg[1].NumOccurrences)
	assert.Equal(t, 0, agg[1].FirstRead)
	assert.Equal(t, 0.0, agg[2].Energy)

	// Iteration follows energy order
	var order []int
	for _, s := range resp.All() {
		order = append(order, s.Read)
	}
	assert.Equal(t, []int{3, 0, 2, 1}, order)
}

func TestResponse_Empty(t *testing.T) {
	resp := NewResponse(nil, nil)
	_, ok := resp.Best()
	assert.False(t, ok)
	assert.Equal(t, Stats{}, resp.Stats())

	single := NewResponse([]Sample{{Energy: 2}}, nil)
	assert.Equal(t, 0.0, single.Stats().StdDev)
}
