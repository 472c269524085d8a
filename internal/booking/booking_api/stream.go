package booking_api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// StreamResourceBookings streams booking events for one resource as Server-Sent Events
func (h *Handler) StreamResourceBookings(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrReject(w, r)
	if !ok {
		return
	}
	resourceID := chi.URLParam(r, "resourceId")

	flusher, ok := w.(http.Flusher)
	if !ok || h.Events == nil {
		http.Error(w, "streaming unsupported", http.StatusNotImplemented)
		return
	}

	// streams outlive the server's write timeout
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	setupSSEHeaders(w)

	// Create a context that cancels when the client disconnects
	ctx := r.Context()
	eventChan := h.Events.Subscribe(ctx, actor.TenantID, resourceID)

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"resource_id\":%q}\n\n", resourceID)
	flusher.Flush()

	h.Logger.Info("SSE", fmt.Sprintf("client connected to %s/%s", actor.TenantID, resourceID))

	for {
		select {
		case event, ok := <-eventChan:
			if !ok {
				h.Logger.Debug("SSE", fmt.Sprintf("channel closed for %s/%s", actor.TenantID, resourceID))
				return
			}

			jsonData, err := json.Marshal(event)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("failed to serialize booking event: %v", err))
				continue
			}

			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, jsonData)
			flusher.Flush()

		case <-ctx.Done():
			h.Logger.Debug("SSE", fmt.Sprintf("client disconnected from %s/%s", actor.TenantID, resourceID))
			return
		}
	}
}

func setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.Header().Set("X-Content-Type-Options", "nosniff")
}
