package controllers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3chihiro/evm-tool/modules/schedule/services"
)

func dialDrag(t *testing.T, h http.Handler) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/drag", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, msg dragMessage) dragReply {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.WriteJSON(msg))
	var reply dragReply
	require.NoError(t, conn.ReadJSON(&reply))
	return reply
}

func TestDragSocket_CommitLinkedResize(t *testing.T) {
	h, svc := newTestHandler(t, services.Settings{Drag: services.DragOptions{LinkedShifts: true}})
	importPair(t, h)
	conn := dialDrag(t, h)

	started := roundTrip(t, conn, dragMessage{Type: msgBegin, TaskIDs: []int{1}, Mode: "resize-finish"})
	require.Equal(t, replyStarted, started.Type, started.Error)
	require.NotEmpty(t, started.DragID)

	preview := roundTrip(t, conn, dragMessage{Type: msgUpdate, DeltaPx: 5 * 24})
	require.Equal(t, replyPreview, preview.Type)
	require.NotNil(t, preview.Preview)
	assert.Equal(t, 5, preview.Preview.DeltaDays)
	assert.Empty(t, preview.Preview.Violations)
	assert.Equal(t, "2025-01-13", preview.Preview.Plan[2].Start.String())

	committed := roundTrip(t, conn, dragMessage{Type: msgCommit})
	require.Equal(t, replyCommitted, committed.Type)
	require.NotNil(t, committed.Command)
	assert.Equal(t, []int{1, 2}, committed.Command.TaskIDs())
	assert.Equal(t, started.DragID, committed.DragID)

	tasks := svc.Tasks()
	assert.Equal(t, "2025-01-13", tasks[0].Finish.String())
	assert.True(t, svc.CanUndo())
}

func TestDragSocket_RejectedCommit(t *testing.T) {
	h, svc := newTestHandler(t, services.Settings{})
	importPair(t, h)
	conn := dialDrag(t, h)

	require.Equal(t, replyStarted, roundTrip(t, conn, dragMessage{Type: msgBegin, TaskIDs: []int{1}}).Type)
	preview := roundTrip(t, conn, dragMessage{Type: msgUpdate, DeltaPx: 48})
	assert.Equal(t, []int{2}, preview.Preview.Violations)

	reply := roundTrip(t, conn, dragMessage{Type: msgCommit})
	require.Equal(t, replyError, reply.Type)
	require.NotNil(t, reply.Error)
	assert.Equal(t, services.CodeConstraintViolation, reply.Error.Code)
	assert.Equal(t, "2", reply.Error.Meta["task_ids"])
	assert.False(t, svc.CanUndo())
}

func TestDragSocket_ProtocolErrors(t *testing.T) {
	h, _ := newTestHandler(t, services.Settings{})
	importPair(t, h)
	conn := dialDrag(t, h)

	reply := roundTrip(t, conn, dragMessage{Type: msgUpdate, DeltaPx: 24})
	require.Equal(t, replyError, reply.Type)
	assert.Equal(t, services.CodeDragNotFound, reply.Error.Code)

	reply = roundTrip(t, conn, dragMessage{Type: "wiggle"})
	assert.Equal(t, replyError, reply.Type)

	reply = roundTrip(t, conn, dragMessage{Type: msgBegin, TaskIDs: []int{42}})
	require.Equal(t, replyError, reply.Type)
	assert.Equal(t, services.CodeInvalidRequest, reply.Error.Code)

	reply = roundTrip(t, conn, dragMessage{Type: msgBegin, TaskIDs: []int{1}, Mode: "spin"})
	assert.Equal(t, replyError, reply.Type)

	require.Equal(t, replyStarted, roundTrip(t, conn, dragMessage{Type: msgBegin, TaskIDs: []int{1}}).Type)
	cancelled := roundTrip(t, conn, dragMessage{Type: msgCancel})
	assert.Equal(t, replyCancelled, cancelled.Type)
	assert.NotEmpty(t, cancelled.DragID)

	reply = roundTrip(t, conn, dragMessage{Type: msgCommit})
	assert.Equal(t, replyError, reply.Type)
}

func TestDragSocket_RejectsForeignOrigin(t *testing.T) {
	h, _ := newTestHandler(t, services.Settings{})
	ts := httptest.NewServer(h)
	defer ts.Close()

	header := http.Header{"Origin": []string{"http://elsewhere.example"}}
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/drag", header)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestNewDragController_AllowedOrigins(t *testing.T) {
	c := NewDragController(nil, []string{"http://app.example"})
	check := func(origin, host string) bool {
		r := httptest.NewRequest(http.MethodGet, "/api/drag", nil)
		r.Host = host
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return c.upgrader.CheckOrigin(r)
	}
	assert.True(t, check("http://app.example", "localhost:3200"))
	assert.True(t, check("http://localhost:3200", "localhost:3200"))
	assert.True(t, check("", "localhost:3200"))
	assert.False(t, check("http://evil.example", "localhost:3200"))

	assert.Nil(t, NewDragController(nil, nil).upgrader.CheckOrigin)
}
