package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aristath/valuation/internal/modules/annealing"
	"github.com/aristath/valuation/internal/modules/valuation"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

type fakeRuns struct {
	runs map[string]*valuation.Run
	err  error
}

func (f *fakeRuns) Save(_ context.Context, run *valuation.Run) error {
	if f.runs == nil {
		f.runs = map[string]*valuation.Run{}
	}
	f.runs[run.ID] = run
	return nil
}

func (f *fakeRuns) Get(_ context.Context, id string) (*valuation.Run, error) {
	if f.err != nil {
		return nil, f.err
	}
	run, ok := f.runs[id]
	if !ok {
		return nil, valuation.ErrRunNotFound
	}
	return run, nil
}

func (f *fakeRuns) List(_ context.Context, limit int) ([]valuation.Run, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []valuation.Run
	for _, r := range f.runs {
		if len(out) == limit {
			break
		}
		out = append(out, *r)
	}
	return out, nil
}

func testDefaults() valuation.Request {
	params := annealing.DefaultParams()
	params.NumReads = 4
	params.Sweeps = 200
	params.Seed = 42
	return valuation.Request{Inputs: valuation.DefaultInputs(), Params: params}
}

func newTestHandler(runs *fakeRuns, limiter *rate.Limiter) (*Handler, chi.Router) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	svc := valuation.NewService(annealing.NewSampler(log), runs, nil, log)
	h := NewHandler(svc, runs, testDefaults(), limiter, log)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		h.RegisterRoutes(r)
	})
	return h, r
}

type envelope struct {
	Data     json.RawMessage `json:"data"`
	Metadata struct {
		Timestamp string `json:"timestamp"`
	} `json:"metadata"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder, into interface{}) {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.NotEmpty(t, env.Metadata.Timestamp)
	require.NoError(t, json.Unmarshal(env.Data, into))
}

func TestHandleSolve_Defaults(t *testing.T) {
	runs := &fakeRuns{}
	_, router := newTestHandler(runs, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/valuation/solve", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var result valuation.Result
	decodeEnvelope(t, rec, &result)
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, 4, result.NumReads)
	assert.Equal(t, uint64(42), result.Seed)
	assert.InDelta(t, -100160.4, result.Best.Energy, 1e-6)
	assert.Len(t, runs.runs, 1)
}

func TestHandleSolve_Overrides(t *testing.T) {
	_, router := newTestHandler(&fakeRuns{}, nil)

	body := `{"bits": 2, "num_reads": 3, "seed": 7, "revenue": 1000}`
	req := httptest.NewRequest(http.MethodPost, "/api/valuation/solve", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result valuation.Result
	decodeEnvelope(t, rec, &result)
	assert.Equal(t, 2, result.Encoder.Bits)
	assert.Equal(t, 20.0, result.Encoder.ScaledRevenue)
	assert.Equal(t, 3, result.NumReads)
	assert.Equal(t, uint64(7), result.Seed)
}

func TestHandleSolve_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"bits":`},
		{"invalid bits", `{"bits": 0}`},
		{"invalid scale", `{"scale_divisor": -1}`},
		{"invalid reads", `{"num_reads": 0}`},
		{"huge reads", `{"num_reads": 4611686018427387904}`},
		{"huge sweeps", `{"sweeps": 4611686018427387904}`},
		{"reads over limit", `{"num_reads": 10001}`},
		{"inverted temperatures", `{"t_max": 1, "t_min": 2}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs := &fakeRuns{}
			_, router := newTestHandler(runs, nil)

			req := httptest.NewRequest(http.MethodPost, "/api/valuation/solve", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, runs.runs)
		})
	}
}

func TestHandleSolve_RateLimited(t *testing.T) {
	_, router := newTestHandler(&fakeRuns{}, rate.NewLimiter(rate.Every(time.Hour), 1))

	codes := make([]int, 2)
	for i := range codes {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/valuation/solve", nil))
		codes[i] = rec.Code
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestHandleGetQUBO(t *testing.T) {
	_, router := newTestHandler(&fakeRuns{}, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/valuation/qubo?bits=2", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var data struct {
		Variables []string `json:"variables"`
		Entries   []struct {
			U           string  `json:"u"`
			V           string  `json:"v"`
			Coefficient float64 `json:"coefficient"`
		} `json:"entries"`
	}
	decodeEnvelope(t, rec, &data)

	assert.Equal(t, []string{"r_0", "a_0", "l_0", "r_1", "a_1", "l_1"}, data.Variables)
	require.Len(t, data.Entries, 6)
	assert.Equal(t, "r_0", data.Entries[0].U)
	assert.InDelta(t, 10-5000, data.Entries[0].Coefficient, 1e-9)
}

func TestHandleGetQUBO_BadQuery(t *testing.T) {
	_, router := newTestHandler(&fakeRuns{}, nil)

	for _, query := range []string{"bits=abc", "bits=0", "revenue=x", "seed=-1"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/valuation/qubo?"+query, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, query)
	}
}

func TestHandleRuns(t *testing.T) {
	runs := &fakeRuns{runs: map[string]*valuation.Run{
		"abc": {ID: "abc", Valuation: 12.5},
	}}
	_, router := newTestHandler(runs, nil)

	t.Run("list", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/valuation/runs?limit=5", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var list []valuation.Run
		decodeEnvelope(t, rec, &list)
		require.Len(t, list, 1)
		assert.Equal(t, "abc", list[0].ID)
	})

	t.Run("invalid limit", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/valuation/runs?limit=0", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("get", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/valuation/runs/abc", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var run valuation.Run
		decodeEnvelope(t, rec, &run)
		assert.Equal(t, 12.5, run.Valuation)
	})

	t.Run("get unknown", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/valuation/runs/nope", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandleRuns_StoreFailure(t *testing.T) {
	_, router := newTestHandler(&fakeRuns{err: errors.New("db closed")}, nil)

	for _, path := range []string{"/api/valuation/runs", "/api/valuation/runs/abc"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code, path)
	}
}

func TestHandleStream(t *testing.T) {
	_, router := newTestHandler(&fakeRuns{}, nil)
	srv := httptest.NewServer(router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/valuation/stream?num_reads=3&sweeps=50&seed=9"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	var reads []int
	var final *valuation.Result
	for final == nil {
		var msg StreamMessage
		require.NoError(t, wsjson.Read(ctx, conn, &msg))
		switch msg.Type {
		case "sample":
			require.NotNil(t, msg.Sample)
			reads = append(reads, msg.Sample.Read)
		case "result":
			final = msg.Result
		default:
			t.Fatalf("unexpected message %+v", msg)
		}
	}

	assert.ElementsMatch(t, []int{0, 1, 2}, reads)
	require.NotNil(t, final)
	assert.Equal(t, 3, final.NumReads)
	assert.Equal(t, uint64(9), final.Seed)

	_, _, err = conn.Read(ctx)
	assert.Equal(t, websocket.StatusNormalClosure, websocket.CloseStatus(err))
}

func TestHandleStream_BadQuery(t *testing.T) {
	for _, query := range []string{"num_reads=0", "num_reads=4611686018427387904", "sweeps=2000000"} {
		t.Run(query, func(t *testing.T) {
			_, router := newTestHandler(&fakeRuns{}, nil)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/valuation/stream?"+query, nil))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestSolveRequestApply_KeepsUnsetFields(t *testing.T) {
	base := testDefaults()
	bits := 3
	got := SolveRequest{Bits: &bits}.apply(base)

	assert.Equal(t, 3, got.Inputs.Bits)
	assert.Equal(t, base.Inputs.Financials, got.Inputs.Financials)
	assert.Equal(t, base.Params.NumReads, got.Params.NumReads)
	assert.Equal(t, 6, base.Inputs.Bits, "base is not mutated")
}
