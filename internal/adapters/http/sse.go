package httpadapter

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// streamProgress bridges the progress subscription onto an SSE response.
// Each event is one "data:" frame; the channel closing after a terminal
// event ends the response body.
func (rt *Router) streamProgress(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "streaming is not supported by response writer",
		})
		return
	}

	id := chi.URLParam(r, "analysis_id")
	events, err := rt.streamer.Subscribe(r.Context(), id)
	if err != nil {
		rt.writeError(w, r, "subscribe progress", err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	rt.metrics.StreamOpened()
	defer rt.metrics.StreamClosed()

	for event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			rt.logger.Error("marshal progress event", "analysis_id", id, "error", err)
			return
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return
		}
		flusher.Flush()
		rt.metrics.RecordStreamEvent(rt.opts.ServiceName, string(event.Type))
	}
}
