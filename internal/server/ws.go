package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/natya/internal/retarget"
	"github.com/ayusman/natya/internal/server/api"
	"github.com/ayusman/natya/pkg/logger"
	"github.com/ayusman/natya/pkg/metrics"
)

const (
	writeWait = 2 * time.Second
	pongWait  = 30 * time.Second
	// clientBuffer is small: clients only ever need the newest pose.
	clientBuffer = 2
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// Poser yields the current engine pose.
type Poser interface {
	Pose() retarget.Snapshot
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// PoseStream broadcasts pose snapshots to WebSocket clients whenever the
// engine pose changes.
type PoseStream struct {
	source   Poser
	interval time.Duration
	log      logger.Logger
	metrics  *metrics.Manager

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

// NewPoseStream creates a PoseStream polling source every interval.
func NewPoseStream(source Poser, interval time.Duration, log logger.Logger, m *metrics.Manager) *PoseStream {
	if log == nil {
		log = logger.Nop()
	}
	return &PoseStream{
		source:   source,
		interval: interval,
		log:      log,
		metrics:  m,
		clients:  make(map[*wsClient]struct{}),
	}
}

// Clients returns the number of connected clients.
func (p *PoseStream) Clients() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.clients)
}

// ServeHTTP upgrades the request and streams poses until the client leaves.
// The current pose is sent immediately on connect.
func (p *PoseStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		p.log.Warn(r.Context(), "websocket upgrade", logger.Error(err))
		return
	}

	c := &wsClient{conn: conn, send: make(chan []byte, clientBuffer)}
	if msg, err := encodePose(p.source.Pose()); err == nil {
		c.send <- msg
	}
	p.add(c)

	done := make(chan struct{})
	go p.writeLoop(c, done)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))
	}

	p.remove(c)
	close(done)
}

func (p *PoseStream) writeLoop(c *wsClient, done <-chan struct{}) {
	ping := time.NewTicker(pongWait / 2)
	defer ping.Stop()
	defer c.conn.Close()

	for {
		select {
		case <-done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ping.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (p *PoseStream) add(c *wsClient) {
	p.mu.Lock()
	p.clients[c] = struct{}{}
	n := len(p.clients)
	p.mu.Unlock()
	p.metrics.SetWebSocketClients(n)
}

func (p *PoseStream) remove(c *wsClient) {
	p.mu.Lock()
	delete(p.clients, c)
	n := len(p.clients)
	p.mu.Unlock()
	p.metrics.SetWebSocketClients(n)
}

// Run polls the engine and fans changed poses out until ctx is done.
func (p *PoseStream) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var lastSeq uint64
	var lastState retarget.State
	var lastRig string

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if p.Clients() == 0 {
			continue
		}

		snap := p.source.Pose()
		if snap.Seq == lastSeq && snap.State == lastState && snap.Rig == lastRig {
			continue
		}
		lastSeq, lastState, lastRig = snap.Seq, snap.State, snap.Rig

		msg, err := encodePose(snap)
		if err != nil {
			p.log.Error(ctx, "encode pose", logger.Error(err))
			continue
		}
		p.broadcast(msg)
	}
}

// broadcast queues msg on every client, replacing a stale queued pose
// rather than blocking on a slow reader.
func (p *PoseStream) broadcast(msg []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for c := range p.clients {
		select {
		case c.send <- msg:
		default:
			select {
			case <-c.send:
			default:
			}
			select {
			case c.send <- msg:
			default:
			}
		}
	}
}

func encodePose(s retarget.Snapshot) ([]byte, error) {
	return json.Marshal(api.NewPoseResponse(s))
}
