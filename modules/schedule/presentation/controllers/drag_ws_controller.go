package controllers

import (
	"context"
	"net/http"
	"net/url"
	"slices"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/3chihiro/evm-tool/modules/schedule/services"
	"github.com/3chihiro/evm-tool/pkg/httpapi"
	"github.com/3chihiro/evm-tool/pkg/logging"
)

// Client messages on the drag socket.
const (
	msgBegin  = "begin"
	msgUpdate = "update"
	msgCommit = "commit"
	msgCancel = "cancel"
)

// Server replies.
const (
	replyStarted   = "started"
	replyPreview   = "preview"
	replyCommitted = "committed"
	replyCancelled = "cancelled"
	replyError     = "error"
)

type dragMessage struct {
	Type    string  `json:"type"`
	TaskIDs []int   `json:"taskIds,omitempty"`
	Mode    string  `json:"mode,omitempty"`
	DeltaPx float64 `json:"deltaPx,omitempty"`
}

type dragReply struct {
	Type    string                    `json:"type"`
	DragID  string                    `json:"dragId,omitempty"`
	Preview *services.DragPreview     `json:"preview,omitempty"`
	Command *services.ScheduleCommand `json:"command,omitempty"`
	Error   *httpapi.ErrorEnvelope    `json:"error,omitempty"`
}

// DragController streams one pointer drag at a time per connection:
// begin, any number of updates, then commit or cancel. Closing the socket
// cancels an open drag.
type DragController struct {
	svc      *services.ScheduleService
	path     string
	upgrader websocket.Upgrader
}

// NewDragController accepts same-origin sockets plus allowedOrigins; "*" allows any origin.
func NewDragController(svc *services.ScheduleService, allowedOrigins []string) *DragController {
	c := &DragController{svc: svc, path: "/api/drag"}
	if len(allowedOrigins) > 0 {
		c.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin) {
				return true
			}
			u, err := url.Parse(origin)
			return err == nil && u.Host == r.Host
		}
	}
	return c
}

func (c *DragController) Key() string {
	return c.path
}

func (c *DragController) Register(r *mux.Router) {
	r.HandleFunc(c.path, c.Serve).Methods(http.MethodGet)
}

func (c *DragController) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		return
	}
	defer conn.Close()

	ctx := r.Context()
	sock := &dragSocket{svc: c.svc}
	defer sock.close(ctx)

	for {
		var msg dragMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				if logger := logging.FromContext(ctx); logger != nil {
					logger.WithError(err).Debug("schedule.drag.socket.closed")
				}
			}
			return
		}
		reply := sock.handle(ctx, msg)
		if err := conn.WriteJSON(reply); err != nil {
			if logger := logging.FromContext(ctx); logger != nil {
				logger.WithFields(logrus.Fields{"type": reply.Type}).WithError(err).Warn("schedule.drag.socket.write_failed")
			}
			return
		}
	}
}

// dragSocket is the per-connection drag state.
type dragSocket struct {
	svc    *services.ScheduleService
	active uuid.UUID
	open   bool
}

func (s *dragSocket) close(ctx context.Context) {
	if s.open {
		_ = s.svc.CancelDrag(ctx, s.active)
		s.open = false
	}
}

func (s *dragSocket) handle(ctx context.Context, msg dragMessage) dragReply {
	switch msg.Type {
	case msgBegin:
		s.close(ctx)
		mode, err := services.ParseDragMode(msg.Mode)
		if err != nil {
			return errorReply(codeInvalidBody, err.Error())
		}
		session, err := s.svc.BeginDrag(ctx, msg.TaskIDs, mode)
		if err != nil {
			return serviceErrorReply(err)
		}
		s.active, s.open = session.ID, true
		return dragReply{Type: replyStarted, DragID: session.ID.String()}

	case msgUpdate:
		if !s.open {
			return errorReply(services.CodeDragNotFound, "no drag in progress")
		}
		preview, err := s.svc.UpdateDrag(s.active, msg.DeltaPx)
		if err != nil {
			return serviceErrorReply(err)
		}
		return dragReply{Type: replyPreview, DragID: s.active.String(), Preview: preview}

	case msgCommit:
		if !s.open {
			return errorReply(services.CodeDragNotFound, "no drag in progress")
		}
		s.open = false
		cmd, err := s.svc.CommitDrag(ctx, s.active)
		if err != nil {
			reply := serviceErrorReply(err)
			reply.DragID = s.active.String()
			return reply
		}
		return dragReply{Type: replyCommitted, DragID: s.active.String(), Command: cmd}

	case msgCancel:
		if !s.open {
			return dragReply{Type: replyCancelled}
		}
		s.open = false
		if err := s.svc.CancelDrag(ctx, s.active); err != nil {
			return serviceErrorReply(err)
		}
		return dragReply{Type: replyCancelled, DragID: s.active.String()}

	default:
		return errorReply(codeInvalidBody, "unknown message type "+msg.Type)
	}
}

func errorReply(code, message string) dragReply {
	return dragReply{Type: replyError, Error: &httpapi.ErrorEnvelope{Code: code, Message: message}}
}

func serviceErrorReply(err error) dragReply {
	_, env := errorEnvelope(err)
	return dragReply{Type: replyError, Error: &env}
}
