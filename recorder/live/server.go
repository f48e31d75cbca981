package live

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/esrecorder/esrecorder/recorder/cluster"
	"github.com/esrecorder/esrecorder/recorder/dyno"
)

// Frame types.
const (
	FrameDyno      = "dyno"
	FrameInstances = "instances"
)

// DynoFrame carries the whole dyno store.
type DynoFrame struct {
	Type    string           `json:"type"`
	Samples int              `json:"samples"`
	Curves  []dyno.CurveView `json:"curves"`
}

// InstancesFrame carries the state of every instance.
type InstancesFrame struct {
	Type      string                 `json:"type"`
	Instances []cluster.InstanceView `json:"instances"`
}

// NewDynoFrame encodes a snapshot.
func NewDynoFrame(snap dyno.Snapshot) DynoFrame {
	return DynoFrame{Type: FrameDyno, Samples: snap.Len(), Curves: snap.Curves()}
}

// Server serves /ws, /dyno and /healthz.
//
//	/ws       websocket; a dyno frame on connect, then every published frame
//	/dyno     the current dyno frame as JSON
//	/healthz  "ok"
type Server struct {
	hub   *Hub
	store *dyno.Store

	mu   sync.Mutex
	http *http.Server
}

// NewServer creates a server over store. It publishes a dyno frame on
// every accepted store write.
func NewServer(store *dyno.Store) *Server {
	if store == nil {
		panic("live.NewServer: nil store")
	}
	s := &Server{hub: NewHub(), store: store}
	store.OnChange(s.PublishDyno)
	return s
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		s.hub.serveWS(w, r, func() any { return NewDynoFrame(s.store.Snapshot()) })
	})
	mux.HandleFunc("GET /dyno", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(NewDynoFrame(s.store.Snapshot()))
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// PublishDyno broadcasts a dyno frame.
func (s *Server) PublishDyno(snap dyno.Snapshot) {
	s.hub.BroadcastJSON(NewDynoFrame(snap))
}

// PublishInstances broadcasts an instances frame.
func (s *Server) PublishInstances(views []cluster.InstanceView) {
	s.hub.BroadcastJSON(InstancesFrame{Type: FrameInstances, Instances: views})
}

// Start listens on addr and serves in the background. Returns the bound
// address, useful when addr has port 0.
func (s *Server) Start(addr string) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", err
	}
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	s.mu.Lock()
	s.http = srv
	s.mu.Unlock()
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Errorf("live feed: %v", err)
		}
	}()
	logrus.Infof("live feed on http://%s/ws", ln.Addr())
	return ln.Addr().String(), nil
}

// Close stops the hub and the HTTP server.
func (s *Server) Close(ctx context.Context) error {
	s.hub.Stop()
	s.mu.Lock()
	srv := s.http
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
