package web

// ws.go carries the engine's message protocol over a WebSocket. Each text
// frame is one Request; the engine's replies for it are written back to the
// same session in order before the next frame is read, so a session sees a
// strict request/response interleaving. All sessions share the one engine,
// which serializes their requests on its queue.

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/griddle/griddle/internal/engine"
	"github.com/griddle/griddle/internal/logging"
)

const wsWriteTimeout = 10 * time.Second

// handleWS upgrades the connection and runs the session loop.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written its error response
		logging.FromContext(r.Context()).Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(s.cfg.Upload.MaxBytes)

	log := logging.FromContext(r.Context()).With("component", "ws", "remote", r.RemoteAddr)
	log.Info("websocket session opened")
	defer log.Info("websocket session closed")

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived) {
				log.Warn("websocket read failed", "error", err)
			}
			return
		}

		var req engine.Request
		if err := json.Unmarshal(frame, &req); err != nil {
			// A malformed frame fails alone; the session continues
			if !s.writeResponses(conn, log, []engine.Response{{
				Type:  engine.RespError,
				Error: "malformed request frame",
				Code:  engine.CodeBadRequest,
			}}) {
				return
			}
			continue
		}

		rs, err := s.eng.Do(r.Context(), req)
		if err != nil {
			rs = []engine.Response{{
				Type:  engine.RespError,
				Error: err.Error(),
				Code:  engine.CodeInternal,
			}}
		}
		if !s.writeResponses(conn, log, rs) {
			return
		}
	}
}

// writeResponses sends each response as its own frame, in order. Returns
// false when the session is no longer writable.
func (s *Server) writeResponses(conn *websocket.Conn, log *slog.Logger, rs []engine.Response) bool {
	for _, resp := range rs {
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(resp); err != nil {
			log.Warn("websocket write failed", "error", err)
			return false
		}
	}
	return true
}

// checkOrigin enforces the configured origin allowlist. With no
// configuration the browser default applies: same-origin requests and
// non-browser clients (no Origin header) are accepted.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	allowed := s.cfg.Server.AllowedOrigins
	if len(allowed) == 0 {
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(u.Host, r.Host)
	}

	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}
