package server

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"fitroom/internal/room"
)

const wsWriteTimeout = 5 * time.Second

// wsMessage is every server-to-client WebSocket frame.
type wsMessage struct {
	Type     string         `json:"type"` // notice, snapshot or result
	Notice   *room.Notice   `json:"notice,omitempty"`
	Snapshot *room.Snapshot `json:"snapshot,omitempty"`
	Action   string         `json:"action,omitempty"`
	Ref      string         `json:"ref,omitempty"`
	Result   *room.Result   `json:"result,omitempty"`
	Error    *ErrorInfo     `json:"error,omitempty"`
}

// handleWS streams notices and snapshots of a room and accepts actions in
// the same shape as POST /actions. Loads run concurrently so pointer input
// keeps flowing while an asset is fetched.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	rm, err := s.rooms.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err, s.logger)
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: originPatterns(s.cfg.CORSOrigins)})
	if err != nil {
		s.logger.Debug("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	notices, unsubscribe := rm.Subscribe(32)
	defer unsubscribe()

	out := make(chan wsMessage, 32)
	go s.readActions(ctx, cancel, conn, r, rm, out)

	snap := rm.Snapshot()
	last := snap.Revision
	if err := s.writeWS(ctx, conn, wsMessage{Type: "snapshot", Snapshot: &snap}); err != nil {
		return
	}

	ticker := time.NewTicker(s.cfg.SnapshotInterval)
	defer ticker.Stop()
	for {
		var msg wsMessage
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case n, ok := <-notices:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "room closed")
				return
			}
			msg = wsMessage{Type: "notice", Notice: &n}
		case msg = <-out:
		case <-ticker.C:
			if rm.Revision() == last {
				continue
			}
			snap := rm.Snapshot()
			last = snap.Revision
			msg = wsMessage{Type: "snapshot", Snapshot: &snap}
		}
		if err := s.writeWS(ctx, conn, msg); err != nil {
			s.logger.Debug("websocket write failed", zap.String("room", rm.ID), zap.Error(err))
			return
		}
	}
}

func (s *Server) readActions(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, r *http.Request, rm *room.Room, out chan<- wsMessage) {
	defer cancel()
	for {
		var req actionRequest
		if err := wsjson.Read(ctx, conn, &req); err != nil {
			return
		}
		rm.Touch()
		switch req.Action.Action {
		case "loadAvatar", "loadWearable":
			go s.runAction(ctx, r, rm, req, out)
		default:
			s.runAction(ctx, r, rm, req, out)
		}
	}
}

func (s *Server) runAction(ctx context.Context, r *http.Request, rm *room.Room, req actionRequest, out chan<- wsMessage) {
	res, err := s.dispatch(r.WithContext(ctx), rm, req)
	msg := wsMessage{Type: "result", Action: req.Action.Action, Ref: req.Ref}
	if err != nil {
		_, msg.Error = classify(err)
	} else {
		msg.Result = &res
	}
	select {
	case out <- msg:
	case <-ctx.Done():
	}
}

func (s *Server) writeWS(ctx context.Context, conn *websocket.Conn, msg wsMessage) error {
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, msg)
}

// originPatterns turns allowed origins into the host patterns the
// WebSocket handshake checks.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			out = append(out, u.Host)
		} else {
			out = append(out, o)
		}
	}
	return out
}
