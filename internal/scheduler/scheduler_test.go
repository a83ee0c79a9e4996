package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aristath/valuation/internal/modules/annealing"
	"github.com/aristath/valuation/internal/modules/valuation"
	testutil "github.com/aristath/valuation/internal/testing"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	runs atomic.Int32
	err  error
}

func (j *countingJob) Run() error {
	j.runs.Add(1)
	return j.err
}

func (j *countingJob) Name() string { return "counting" }

func TestScheduler_AddJob(t *testing.T) {
	s := New(zerolog.Nop())

	require.NoError(t, s.AddJob("@every 1s", &countingJob{}))
	require.NoError(t, s.AddJob("0 */5 * * * *", &countingJob{}))
	assert.Equal(t, 2, s.Len())

	assert.Error(t, s.AddJob("not a schedule", &countingJob{}))
	assert.Equal(t, 2, s.Len())
}

func TestScheduler_RunsJobs(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{err: errors.New("failure is logged, not fatal")}
	require.NoError(t, s.AddJob("* * * * * *", job))

	s.Start()
	assert.Eventually(t, func() bool { return job.runs.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
	s.Stop()
}

func TestScheduler_RunNow(t *testing.T) {
	s := New(zerolog.Nop())
	boom := errors.New("boom")

	assert.NoError(t, s.RunNow(&countingJob{}))
	assert.ErrorIs(t, s.RunNow(&countingJob{err: boom}), boom)
}

type fakeValuator struct {
	got valuation.Request
	err error
}

func (f *fakeValuator) Valuate(ctx context.Context, req valuation.Request) (*valuation.Result, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	if _, ok := ctx.Deadline(); !ok {
		return nil, errors.New("expected a deadline")
	}
	return &valuation.Result{RunID: "r1"}, nil
}

func TestValuationJob(t *testing.T) {
	req := valuation.Request{Inputs: valuation.DefaultInputs(), Params: annealing.DefaultParams()}

	t.Run("success", func(t *testing.T) {
		v := &fakeValuator{}
		job := NewValuationJob(v, req, time.Minute, zerolog.Nop())

		assert.Equal(t, "scheduled_valuation", job.Name())
		require.NoError(t, job.Run())
		assert.Equal(t, req.Inputs, v.got.Inputs)
	})

	t.Run("failure", func(t *testing.T) {
		boom := errors.New("boom")
		job := NewValuationJob(&fakeValuator{err: boom}, req, time.Minute, zerolog.Nop())
		assert.ErrorIs(t, job.Run(), boom)
	})
}

func TestValuationJob_StoresRun(t *testing.T) {
	db, cleanup := testutil.NewTestDB(t, "valuation")
	defer cleanup()

	log := zerolog.Nop()
	repo, err := valuation.NewRunRepository(db.Conn(), log)
	require.NoError(t, err)
	svc := valuation.NewService(annealing.NewSampler(log), repo, nil, log)

	params := annealing.DefaultParams()
	params.NumReads = 2
	params.Sweeps = 50
	params.Seed = 3
	job := NewValuationJob(svc, valuation.Request{Inputs: valuation.DefaultInputs(), Params: params}, 0, log)

	require.NoError(t, job.Run())

	runs, err := repo.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestCheckDatabaseJob(t *testing.T) {
	db, cleanup := testutil.NewTestDB(t, "valuation")
	defer cleanup()

	job := NewCheckDatabaseJob(db, zerolog.Nop())
	assert.Equal(t, "check_database", job.Name())
	assert.NoError(t, job.Run())

	require.NoError(t, db.Close())
	assert.Error(t, job.Run())
}

func TestMaintenanceJob(t *testing.T) {
	db, cleanup := testutil.NewTestDB(t, "valuation")
	defer cleanup()

	job := NewMaintenanceJob(db, t.TempDir(), zerolog.Nop())
	assert.Equal(t, "maintenance", job.Name())

	t.Run("enough space", func(t *testing.T) {
		job.usage = func(string) (*disk.UsageStat, error) {
			return &disk.UsageStat{Free: 50e9}, nil
		}
		assert.NoError(t, job.Run())
	})

	t.Run("critically full", func(t *testing.T) {
		job.usage = func(string) (*disk.UsageStat, error) {
			return &disk.UsageStat{Free: 1e8}, nil
		}
		assert.Error(t, job.Run())
	})

	t.Run("stat failure", func(t *testing.T) {
		job.usage = func(string) (*disk.UsageStat, error) {
			return nil, errors.New("no such filesystem")
		}
		assert.Error(t, job.Run())
	})
}
