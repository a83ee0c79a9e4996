package handlers

import (
	"net/http"

	"github.com/aristath/valuation/internal/modules/annealing"
	"github.com/aristath/valuation/internal/modules/valuation"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// StreamMessage is one frame of the sample stream
type StreamMessage struct {
	Type   string            `json:"type"` // "sample", "result" or "error"
	Sample *annealing.Sample `json:"sample,omitempty"`
	Result *valuation.Result `json:"result,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// HandleStream handles GET /api/valuation/stream.
// Overrides come from query parameters. Every read is sent as it finishes,
// followed by the final result, then the socket is closed normally.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	sr, err := parseQuery(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req := sr.apply(h.defaults)
	if err := validate(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !h.allow(w) {
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to accept websocket")
		return
	}
	defer conn.CloseNow()

	// Cancelled when the client goes away
	ctx := conn.CloseRead(r.Context())

	req, samples, done := setSampleHook(req)

	var (
		result *valuation.Result
		runErr error
	)
	go func() {
		defer done()
		result, runErr = h.service.Valuate(ctx, req)
	}()

	var writeErr error
	for s := range samples {
		if writeErr != nil {
			continue
		}
		writeErr = wsjson.Write(ctx, conn, StreamMessage{Type: "sample", Sample: &s})
	}
	if writeErr != nil {
		h.log.Debug().Err(writeErr).Msg("Stream client went away")
		return
	}

	if runErr != nil {
		h.log.Error().Err(runErr).Msg("Streamed valuation failed")
		_ = wsjson.Write(ctx, conn, StreamMessage{Type: "error", Error: "Valuation failed"})
		conn.Close(websocket.StatusInternalError, "valuation failed")
		return
	}

	if err := wsjson.Write(ctx, conn, StreamMessage{Type: "result", Result: result}); err != nil {
		h.log.Debug().Err(err).Msg("Failed to send stream result")
		return
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

// setSampleHook returns req with OnSample forwarding into a channel buffered
// for every read, so the sampler never blocks on a slow consumer.
func setSampleHook(req valuation.Request) (valuation.Request, <-chan annealing.Sample, func()) {
	samples := make(chan annealing.Sample, req.Params.NumReads)
	req.Params.OnSample = func(s annealing.Sample) {
		samples <- s
	}
	return req, samples, func() { close(samples) }
}
