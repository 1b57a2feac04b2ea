package httpadapter

import (
	"context"
	"net/http"
	"sync"
	"time"
)

type probeResult struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// systemStatus fans the collaborator health probes out in parallel under one
// bounded timeout. A slow upstream degrades its own entry, never the
// endpoint.
func (rt *Router) systemStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), rt.opts.ProbeTimeout)
	defer cancel()

	results := make(map[string]probeResult, len(rt.probes))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for name, probe := range rt.probes {
		if probe == nil {
			results[name] = probeResult{Status: "not_configured"}
			continue
		}
		name, probe := name, probe
		wg.Add(1)
		go func() {
			defer wg.Done()
			result := probeResult{Status: "healthy"}
			if err := probe.Probe(ctx); err != nil {
				result = probeResult{Status: "error", Error: err.Error()}
			}
			mu.Lock()
			results[name] = result
			mu.Unlock()
		}()
	}
	wg.Wait()

	overall := "operational"
	for _, result := range results {
		if result.Status == "error" {
			overall = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"system":         "PyroGuard Sentinel",
		"version":        "1.0.0",
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"integrations":   results,
		"overall_status": overall,
	})
}
