package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/pixelating-community/web-sub001/internal/perspectives/notify"
)

// heartbeatInterval keeps intermediating proxies from timing out an idle
// stream.
const heartbeatInterval = 25 * time.Second

// handleStream holds one SSE connection open and relays fan-out frames for
// the perspective.  The subscription is torn down the moment the client
// disconnects — a leaked entry would make every later publish fail against
// a dead channel.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	perspectiveID := r.PathValue("id")

	if !s.allow(w, r, "stream", streamLimit, perspectiveID) {
		return
	}
	if !s.readAuthorized(r, perspectiveID) {
		writeNotAuthorized(w)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", "response writer cannot stream")
		return
	}

	sub := notify.NewSubscriber(16)
	s.notifier.Subscribe(perspectiveID, sub)
	defer func() {
		s.notifier.Unsubscribe(perspectiveID, sub)
		sub.Close()
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()

		case frame, open := <-sub.Frames():
			if !open {
				return
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", frame); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
