// Package stream accepts live poses and point clouds over WebSocket and
// pushes them into the viewer scene.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Faultbox/liteviz/internal/config"
	"github.com/Faultbox/liteviz/internal/engine/mesh"
	"github.com/Faultbox/liteviz/internal/logger"
	"github.com/Faultbox/liteviz/internal/viewer"
	"github.com/Faultbox/liteviz/pkg/math"
)

// Message types.
const (
	TypePose   = "pose"
	TypePoints = "points"
	TypeClear  = "clear"
	TypeAck    = "ack"
	TypeError  = "error"
)

const maxMessageSize = 64 << 20

var (
	ErrUnknownType = errors.New("unknown message type")
	ErrBadMessage  = errors.New("malformed message")
	ErrUnknownItem = errors.New("unknown item")
)

// Message is one client request.
type Message struct {
	Type   string      `json:"type"`
	Name   string      `json:"name"`
	Matrix []float64   `json:"matrix,omitempty"` // 16 values, column-major
	Points [][]float64 `json:"points,omitempty"`
	Colors [][]float32 `json:"colors,omitempty"` // rgb or rgba in [0,1]
}

// Reply answers every message.
type Reply struct {
	Type    string `json:"type"`
	Seq     uint64 `json:"seq,omitempty"`
	Message string `json:"message,omitempty"`
}

// Options sets the colors of streamed geometry.
type Options struct {
	FrustumColor mgl32.Vec4
	PointColor   mgl32.Vec4
}

// Server is the WebSocket endpoint. It implements http.Handler so it can be
// mounted on any mux.
type Server struct {
	cfg      config.StreamConfig
	opts     Options
	scene    *viewer.Scene
	notifier *viewer.Notifier
	log      *zap.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[string]*websocket.Conn
}

// New creates a server feeding scene. Updates wait on notifier while the
// viewer is paused; notifier may be nil.
func New(cfg config.StreamConfig, scene *viewer.Scene, notifier *viewer.Notifier, opts Options) *Server {
	return &Server{
		cfg:      cfg,
		opts:     opts,
		scene:    scene,
		notifier: notifier,
		log:      logger.Named("stream"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 << 10,
			WriteBufferSize: 4 << 10,
			// Local tool: accept any origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: make(map[string]*websocket.Conn),
	}
}

// ListenAndServe serves cfg.Addr + cfg.Path until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("stream server: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done. Open clients get a
// going-away close frame on the way out.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle(s.cfg.Path, s)

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Warn("stream shutdown", zap.Error(err))
		}
		s.closeAll()
	}()

	s.log.Info("stream server listening", zap.String("addr", ln.Addr().String()), zap.String("path", s.cfg.Path))
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("stream server: %w", err)
	}
	return nil
}

// ServeHTTP upgrades the request and handles the connection until the
// client leaves or the request context ends.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	id := uuid.NewString()
	s.track(id, conn)
	defer s.untrack(id)

	log := s.log.With(zap.String("conn", id), zap.String("remote", r.RemoteAddr))
	log.Info("client connected")
	s.handle(r.Context(), conn, log)
	log.Info("client disconnected")
}

func (s *Server) handle(ctx context.Context, conn *websocket.Conn, log *zap.Logger) {
	conn.SetReadLimit(maxMessageSize)

	// Unblock ReadMessage when the server stops. The request context ends
	// before closeAll runs, so the close frame is sent from here.
	stop := context.AfterFunc(ctx, func() { goAway(conn) })
	defer stop()

	var seq uint64
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && ctx.Err() == nil {
				log.Debug("read failed", zap.Error(err))
			}
			return
		}
		seq++

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.reply(conn, log, Reply{Type: TypeError, Seq: seq, Message: fmt.Sprintf("%v: %v", ErrBadMessage, err)})
			continue
		}
		if s.notifier != nil {
			if err := s.notifier.Wait(ctx); err != nil {
				return
			}
		}
		if err := s.Apply(msg); err != nil {
			log.Debug("message rejected", zap.String("type", msg.Type), zap.Error(err))
			s.reply(conn, log, Reply{Type: TypeError, Seq: seq, Message: err.Error()})
			continue
		}
		s.reply(conn, log, Reply{Type: TypeAck, Seq: seq})
	}
}

func (s *Server) reply(conn *websocket.Conn, log *zap.Logger, r Reply) {
	if err := conn.WriteJSON(r); err != nil {
		log.Debug("write failed", zap.Error(err))
	}
}

// Apply performs one message on the scene.
func (s *Server) Apply(msg Message) error {
	if msg.Name == "" {
		return fmt.Errorf("%w: missing name", ErrBadMessage)
	}
	switch msg.Type {
	case TypePose:
		return s.applyPose(msg)
	case TypePoints:
		return s.applyPoints(msg)
	case TypeClear:
		if !s.scene.Remove(msg.Name) {
			return fmt.Errorf("%w: %s", ErrUnknownItem, msg.Name)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, msg.Type)
	}
}

func (s *Server) applyPose(msg Message) error {
	if len(msg.Matrix) != 16 {
		return fmt.Errorf("%w: matrix needs 16 values, got %d", ErrBadMessage, len(msg.Matrix))
	}
	var m mgl64.Mat4
	copy(m[:], msg.Matrix)
	pose, err := math.RigidFromMat4(m)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadMessage, err)
	}

	if !s.scene.SetPose(msg.Name, pose) {
		frustum := mesh.Frustum(1, 0.5, 0.3, 0.2)
		frustum.SetColor(s.opts.FrustumColor)
		s.scene.Put(viewer.Item{Name: msg.Name, Type: viewer.Mesh, Mesh: frustum, Pose: pose})
	}
	s.scene.SetFollow(pose)
	return nil
}

func (s *Server) applyPoints(msg Message) error {
	if len(msg.Colors) != 0 && len(msg.Colors) != len(msg.Points) {
		return fmt.Errorf("%w: %d points, %d colors", ErrBadMessage, len(msg.Points), len(msg.Colors))
	}
	pts := make([]mgl32.Vec3, len(msg.Points))
	for i, p := range msg.Points {
		if len(p) != 3 {
			return fmt.Errorf("%w: point %d has %d components", ErrBadMessage, i, len(p))
		}
		pts[i] = mgl32.Vec3{float32(p[0]), float32(p[1]), float32(p[2])}
	}

	var m *mesh.Mesh
	if len(msg.Colors) == 0 {
		m = mesh.PointCloud(pts, s.opts.PointColor)
	} else {
		colors := make([]mgl32.Vec4, len(msg.Colors))
		for i, c := range msg.Colors {
			if len(c) != 3 && len(c) != 4 {
				return fmt.Errorf("%w: color %d has %d components", ErrBadMessage, i, len(c))
			}
			colors[i] = mgl32.Vec4{1, 1, 1, 1}
			copy(colors[i][:], c)
		}
		var err error
		if m, err = mesh.ColoredPointCloud(pts, colors); err != nil {
			return err
		}
	}
	s.scene.Put(viewer.Item{Name: msg.Name, Type: viewer.PointCloud, Mesh: m})
	return nil
}

func (s *Server) track(id string, c *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[id] = c
}

func (s *Server) untrack(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, id)
}

// Clients returns the number of open connections.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		goAway(c)
	}
}

// goAway sends a going-away close frame and closes c. WriteControl may run
// concurrently with the reply writer; a second call only fails to write.
func goAway(c *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server stopping")
	_ = c.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	c.Close()
}
