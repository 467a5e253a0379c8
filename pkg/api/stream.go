package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/cuemby/riskfeed/pkg/events"
)

// sseWriter writes events in text/event-stream framing
type sseWriter struct {
	w       io.Writer
	flusher http.Flusher
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("response writer does not support flushing")
	}
	return &sseWriter{w: w, flusher: flusher}, nil
}

// WriteEvent writes one event as "event: <type>" plus a JSON data line
func (s *sseWriter) WriteEvent(ev *events.Event) error {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", ev.Type, err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// WriteKeepAlive writes an SSE comment line
func (s *sseWriter) WriteKeepAlive() error {
	if _, err := fmt.Fprint(s.w, ": ping\n\n"); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// writeDeadline bounds each stream write. A writer that cannot take
// deadlines is reported once and the stream carries on without them.
type writeDeadline struct {
	rc      *http.ResponseController
	timeout time.Duration
	logger  zerolog.Logger
	failed  bool
}

func (d *writeDeadline) extend() {
	err := d.rc.SetWriteDeadline(time.Now().Add(d.timeout))
	if err == nil || d.failed {
		return
	}
	d.failed = true
	d.logger.Warn().Err(err).Msg("Stream writes are not bounded by a deadline")
}

func setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// handleStream serves /api/stream. The subscriber is removed as soon as the
// client goes away or a write fails.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	sw, err := newSSEWriter(w)
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	sub, err := s.hub.Subscribe()
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to subscribe stream")
		writeError(w, http.StatusServiceUnavailable, "Stream unavailable")
		return
	}
	defer s.hub.Unsubscribe(sub)

	logger := s.logger.With().Str("subscriber_id", sub.ID()).Str("transport", "sse").Logger()
	logger.Debug().Str("remote", r.RemoteAddr).Msg("Stream opened")

	setSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	sw.flusher.Flush()

	deadline := &writeDeadline{
		rc:      http.NewResponseController(w),
		timeout: s.writeTimeout,
		logger:  logger,
	}
	ping := time.NewTicker(s.pingInterval)
	defer ping.Stop()

	for {
		var err error
		select {
		case <-r.Context().Done():
			logger.Debug().Msg("Stream closed by client")
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			deadline.extend()
			err = sw.WriteEvent(ev)
		case <-ping.C:
			deadline.extend()
			err = sw.WriteKeepAlive()
		}
		if err != nil {
			logger.Debug().Err(err).Msg("Stream write failed")
			return
		}
	}
}

// Frame is a WebSocket message
type Frame struct {
	Event events.EventType `json:"event"`
	Data  any              `json:"data"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleWebSocket serves /api/ws with the same events as /api/stream
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sub, err := s.hub.Subscribe()
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to subscribe websocket")
		writeError(w, http.StatusServiceUnavailable, "Stream unavailable")
		return
	}
	defer s.hub.Unsubscribe(sub)

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client
		s.logger.Debug().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer ws.Close()

	logger := s.logger.With().Str("subscriber_id", sub.ID()).Str("transport", "ws").Logger()
	logger.Debug().Str("remote", r.RemoteAddr).Msg("WebSocket opened")

	// Inbound messages are ignored; reading surfaces the close
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(s.pingInterval)
	defer ping.Stop()

	for {
		var err error
		select {
		case <-closed:
			logger.Debug().Msg("WebSocket closed by client")
			return
		case ev, ok := <-sub.Events():
			if !ok {
				_ = ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(s.writeTimeout))
				return
			}
			if err = ws.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err == nil {
				err = ws.WriteJSON(Frame{Event: ev.Type, Data: ev.Data})
			}
		case <-ping.C:
			err = ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.writeTimeout))
		}
		if err != nil {
			logger.Debug().Err(err).Msg("WebSocket write failed")
			return
		}
	}
}
