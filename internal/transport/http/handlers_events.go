package httptransport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"lifeline/internal/notify"
	"lifeline/internal/platform/middleware"
)

// presenceTTL is how long a connected donor counts as online without a
// heartbeat. The keepalive interval refreshes it well before it lapses.
const (
	presenceTTL       = 90 * time.Second
	keepaliveInterval = 30 * time.Second
)

// handleEvents streams the caller's notification channel as server-sent
// events. Callers with the ops role additionally receive the operational
// channel. The connection doubles as the donor's presence signal.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	events, cancel := h.events.Subscribe(userID)
	defer cancel()

	var opsEvents <-chan notify.Event
	if middleware.GetRole(ctx) == "ops" {
		ch, cancelOps := h.events.SubscribeOps()
		defer cancelOps()
		opsEvents = ch
	}

	if err := h.presence.MarkOnline(ctx, userID, presenceTTL); err != nil {
		h.logger.WarnContext(ctx, "failed to mark donor online", "error", err)
	}
	defer func() {
		if err := h.presence.MarkOffline(r.Context(), userID); err != nil {
			h.logger.WarnContext(r.Context(), "failed to mark donor offline", "error", err)
		}
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-keepalive.C:
			// SSE comment line keeps proxies from closing the stream and
			// refreshes presence.
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
			if err := h.presence.MarkOnline(ctx, userID, presenceTTL); err != nil {
				h.logger.WarnContext(ctx, "failed to refresh donor presence", "error", err)
			}
		case event, open := <-events:
			if !open {
				return
			}
			if err := writeSSE(w, event); err != nil {
				return
			}
			flusher.Flush()
		case event, open := <-opsEvents:
			if !open {
				return
			}
			if err := writeSSE(w, event); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, event notify.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", event.ID, event.Type, data)
	return err
}
