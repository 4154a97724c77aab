package web

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/DYAI2025/sentiment-analyzer-frontend/internal/annotations"
	"github.com/DYAI2025/sentiment-analyzer-frontend/internal/models"
	"github.com/DYAI2025/sentiment-analyzer-frontend/internal/notify"
	"github.com/DYAI2025/sentiment-analyzer-frontend/internal/status"
)

type wsFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func newHubServer(t *testing.T, svc Service) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub.Start(ctx)

	srv := httptest.NewServer(NewServer(svc, hub, 50*1024*1024, nil).Routes())
	t.Cleanup(srv.Close)
	return hub, srv
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) wsFrame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame wsFrame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return frame
}

func waitCond(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestClientReceivesBroadcastFrames(t *testing.T) {
	hub, srv := newHubServer(t, &fakeService{})
	conn := dialWS(t, srv)

	waitCond(t, func() bool { return hub.ClientCount() == 1 }, "client never registered")

	hub.JobUpdate(status.Snapshot{JobID: "j1", Status: models.StatusProcessing, Progress: 40})

	frame := readFrame(t, conn)
	if frame.Type != FRAME_JOB_UPDATE {
		t.Fatalf("type = %q", frame.Type)
	}
	var snap status.Snapshot
	if err := json.Unmarshal(frame.Data, &snap); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if snap.JobID != "j1" || snap.Progress != 40 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestNotificationFrame(t *testing.T) {
	hub, srv := newHubServer(t, &fakeService{})
	conn := dialWS(t, srv)
	waitCond(t, func() bool { return hub.ClientCount() == 1 }, "client never registered")

	hub.Notify(notify.Warning("Live updates interrupted", "jobs keep processing server-side"))

	frame := readFrame(t, conn)
	if frame.Type != FRAME_NOTIFICATION {
		t.Fatalf("type = %q", frame.Type)
	}
	var n notify.Notification
	if err := json.Unmarshal(frame.Data, &n); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if n.Level != notify.LevelWarning || n.Title != "Live updates interrupted" {
		t.Errorf("notification = %+v", n)
	}
}

func TestAnnotationsFrameShape(t *testing.T) {
	hub, srv := newHubServer(t, &fakeService{})
	conn := dialWS(t, srv)
	waitCond(t, func() bool { return hub.ClientCount() == 1 }, "client never registered")

	hub.Annotations("j1", []annotations.Fragment{{ID: "a1", Text: "hi", Class: "positive"}},
		`<span>hi</span>`, `<pre>doc</pre>`)

	frame := readFrame(t, conn)
	if frame.Type != FRAME_ANNOTATIONS {
		t.Fatalf("type = %q", frame.Type)
	}
	var data annotationsFrame
	if err := json.Unmarshal(frame.Data, &data); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if data.JobID != "j1" || len(data.Fragments) != 1 || data.DocumentHTML == "" {
		t.Errorf("frame = %+v", data)
	}
}

func TestDisconnectUnregistersClient(t *testing.T) {
	hub, srv := newHubServer(t, &fakeService{})
	conn := dialWS(t, srv)
	waitCond(t, func() bool { return hub.ClientCount() == 1 }, "client never registered")

	conn.Close()
	waitCond(t, func() bool { return hub.ClientCount() == 0 }, "client never unregistered")
}

func TestBroadcastReachesAllClients(t *testing.T) {
	hub, srv := newHubServer(t, &fakeService{})
	first := dialWS(t, srv)
	second := dialWS(t, srv)
	waitCond(t, func() bool { return hub.ClientCount() == 2 }, "clients never registered")

	hub.Connection(false)

	for _, conn := range []*websocket.Conn{first, second} {
		frame := readFrame(t, conn)
		if frame.Type != FRAME_CONNECTION {
			t.Errorf("type = %q", frame.Type)
		}
		var data connectionFrame
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			t.Fatalf("unmarshal data: %v", err)
		}
		if data.Connected {
			t.Error("connected = true, want false")
		}
	}
}

func TestNewClientGetsCurrentSnapshot(t *testing.T) {
	svc := &fakeService{
		currentJob:      "j1",
		currentSnapshot: &status.Snapshot{JobID: "j1", Status: models.StatusProcessing, Progress: 70},
	}
	_, srv := newHubServer(t, svc)
	conn := dialWS(t, srv)

	frame := readFrame(t, conn)
	if frame.Type != FRAME_JOB_UPDATE {
		t.Fatalf("type = %q", frame.Type)
	}
	var snap status.Snapshot
	if err := json.Unmarshal(frame.Data, &snap); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if snap.JobID != "j1" || snap.Progress != 70 {
		t.Errorf("snapshot = %+v", snap)
	}
}
