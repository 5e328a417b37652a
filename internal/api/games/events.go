package games

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/wnf/internal/api/apiutil"
)

// /api/v1/games/{id}/events
//
// Streams the game's bus events as server-sent events until the client
// disconnects, the bus closes the subscription or the server shuts down.
func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	gameID, err := apiutil.PathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	logger := log.Ctx(ctx).With().
		Str("component", "event_stream").
		Int64("game_id", gameID).
		Logger()

	// 404 before opening a stream for a game that does not exist.
	if _, err := h.roster.Roster(ctx, gameID); err != nil {
		writeError(w, r, err)
		return
	}

	sub, err := h.bus.Subscribe(ctx, gameID)
	if err != nil {
		writeError(w, r, apiutil.HandlerError{
			Status:  http.StatusServiceUnavailable,
			Message: "Event stream unavailable",
			Err:     err,
		})
		return
	}
	defer func() {
		if err := sub.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close subscription")
		}
	}()

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprint(w, ": connected\n\n"); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		logger.Warn().Err(err).Msg("Streaming unsupported by response writer")
		return
	}
	logger.Debug().Msg("Event stream opened")

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug().Msg("Event stream closed by client")
			return
		case <-h.streamsDone:
			logger.Debug().Msg("Event stream closed for shutdown")
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		case event, ok := <-sub.Events():
			if !ok {
				logger.Debug().Msg("Event stream closed by bus")
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				logger.Error().Err(err).Str("event_type", string(event.Type)).Msg("Failed to encode event")
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
