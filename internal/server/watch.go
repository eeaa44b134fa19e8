package server

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/hzn-labs/horizonsum/internal/session"
)

// writeTimeout bounds a single WebSocket write so a stalled client cannot
// pin the handler.
const writeTimeout = 10 * time.Second

// watchEvent is the wire format for stage notifications.
type watchEvent struct {
	RunID string `json:"run_id"`
	Stage string `json:"stage"`
	Error string `json:"error,omitempty"`
	At    string `json:"at"`
}

// handleWatch upgrades to a WebSocket and streams stage changes for one run.
// The current stage is sent immediately; the stream closes when the run
// reaches a terminal stage or the client disconnects.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	// Subscribe before reading the current stage so no transition is missed
	// between the snapshot and the event stream. Subscribing to an unknown
	// run just allocates a channel, so this is safe ahead of the lookup.
	events, cancel := s.broadcast.Subscribe(id)
	defer cancel()

	run, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err, "get run")
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.log.Warn("websocket accept", "run_id", run.ID, "error", err)
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	send := func(ev watchEvent) error {
		wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
		defer wcancel()
		return wsjson.Write(wctx, conn, ev)
	}

	if err := send(snapshotEvent(run)); err != nil {
		return
	}
	if run.Stage.Terminal() {
		conn.Close(websocket.StatusNormalClosure, "run finished")
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := send(watchEvent{
				RunID: ev.RunID,
				Stage: string(ev.Stage),
				Error: ev.Error,
				At:    ev.At.UTC().Format(time.RFC3339),
			}); err != nil {
				return
			}
			if ev.Stage.Terminal() {
				conn.Close(websocket.StatusNormalClosure, "run finished")
				return
			}
		}
	}
}

func snapshotEvent(run *session.Run) watchEvent {
	return watchEvent{
		RunID: run.ID,
		Stage: string(run.Stage),
		Error: run.Error,
		At:    run.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
