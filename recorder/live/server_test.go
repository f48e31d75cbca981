package live

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esrecorder/esrecorder/recorder/cluster"
	"github.com/esrecorder/esrecorder/recorder/dyno"
)

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(url, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]json.RawMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var frame map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &frame))
	return frame
}

func frameType(t *testing.T, frame map[string]json.RawMessage) string {
	var typ string
	require.NoError(t, json.Unmarshal(frame["type"], &typ))
	return typ
}

func TestServer_WebsocketStreamsDynoAndInstances(t *testing.T) {
	// GIVEN a live server over a store with one sample
	store := dyno.NewStore()
	require.NoError(t, store.Put(100, 1000, dyno.Point{Power: 30, Torque: 200}))
	srv := NewServer(store)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	defer func() { _ = srv.Close(context.Background()) }()

	// WHEN a client connects
	conn := dial(t, ts.URL)

	// THEN it is greeted with the current store
	greeting := readFrame(t, conn)
	assert.Equal(t, FrameDyno, frameType(t, greeting))
	assert.JSONEq(t, `1`, string(greeting["samples"]))

	// AND store writes are streamed
	require.NoError(t, store.Put(100, 1500, dyno.Point{Power: 45, Torque: 210}))
	update := readFrame(t, conn)
	assert.Equal(t, FrameDyno, frameType(t, update))
	var curves []dyno.CurveView
	require.NoError(t, json.Unmarshal(update["curves"], &curves))
	require.Len(t, curves, 1)
	assert.Len(t, curves[0].Samples, 2)

	// AND instance states are streamed
	srv.PublishInstances([]cluster.InstanceView{{ID: 0, PhaseName: "recording", StatusName: "busy", Usable: true}})
	inst := readFrame(t, conn)
	assert.Equal(t, FrameInstances, frameType(t, inst))
	assert.Contains(t, string(inst["instances"]), `"phase":"recording"`)
}

func TestServer_DynoAndHealthEndpoints(t *testing.T) {
	store := dyno.NewStore()
	require.NoError(t, store.Put(0, 2000, dyno.Point{Power: 1, Torque: -5}))
	srv := NewServer(store)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/dyno")
	require.NoError(t, err)
	defer resp.Body.Close()
	var frame DynoFrame
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&frame))
	assert.Equal(t, FrameDyno, frame.Type)
	assert.Equal(t, 1, frame.Samples)
	assert.Equal(t, 2000, frame.Curves[0].Samples[0].RPM)

	resp2, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp2.Body.Close()
	body, _ := io.ReadAll(resp2.Body)
	assert.Equal(t, "ok", string(body))
}

func TestServer_StartAndClose(t *testing.T) {
	srv := NewServer(dyno.NewStore())
	addr, err := srv.Start("127.0.0.1:0")
	require.NoError(t, err)

	resp, err := http.Get("http://" + addr + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Close(ctx))
	// publishing after close never blocks
	srv.PublishDyno(dyno.NewStore().Snapshot())
}
