package server

import (
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/KinGoSco/chat/internal/stats"
	"github.com/KinGoSco/chat/internal/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 4096

	// maxMalformedFrames is how many consecutive unparseable frames a
	// session may send before it is closed.
	maxMalformedFrames = 5
)

// SessionState tracks a session through its lifecycle. Transitions only
// move forward; Closed is terminal.
type SessionState int32

const (
	StateConnecting SessionState = iota
	StateAuthenticated
	StateActive
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Client is one live connection session. It owns its subscription set
// and its outbound queue; the transport layer creates it on a
// successful handshake and it is destroyed on disconnect.
type Client struct {
	id         uuid.UUID
	conn       *websocket.Conn
	chatServer *ChatServer
	log        *log.Logger
	stats      stats.StatsProvider
	user       types.User

	send      chan *Event
	stop      chan struct{}
	closeOnce sync.Once
	state     atomic.Int32

	topicsLock sync.RWMutex
	topics     map[Topic]struct{}

	// malformed counts consecutive invalid inbound frames. Only the
	// read pump touches it.
	malformed int
}

func NewClient(user types.User, conn *websocket.Conn, cs *ChatServer, l *log.Logger, sp stats.StatsProvider) *Client {
	queueSize := 0
	if cs != nil {
		queueSize = cs.queueSize
	}
	if queueSize <= 0 {
		queueSize = 256
	}

	return &Client{
		id:         uuid.New(),
		conn:       conn,
		chatServer: cs,
		log:        l,
		stats:      sp,
		user:       user,
		send:       make(chan *Event, queueSize),
		stop:       make(chan struct{}),
		topics:     make(map[Topic]struct{}),
	}
}

func (c *Client) Id() uuid.UUID { return c.id }

func (c *Client) UserId() int { return c.user.Id }

func (c *Client) User() types.User { return c.user }

func (c *Client) State() SessionState {
	return SessionState(c.state.Load())
}

func (c *Client) transition(from, to SessionState) bool {
	return c.state.CompareAndSwap(int32(from), int32(to))
}

// Send enqueues an event for delivery to this session's transport. It
// never blocks the caller: when the queue is full the session is a
// slow consumer and is closed instead, and when the session is already
// closed the event is dropped. Returns true if the event was queued.
func (c *Client) Send(ev *Event) bool {
	if c.State() == StateClosed {
		return false
	}

	select {
	case c.send <- ev:
		return true
	default:
		c.log.Printf("session %s (user %d) queue full, closing slow consumer", c.id, c.user.Id)
		c.stats.Incr(StatSlowConsumerCloses)
		c.Close()
		return false
	}
}

// Close tears the session down: the state becomes Closed, pending
// deliveries are cancelled, the transport is closed and the session is
// removed from every topic it held. Safe to call from any goroutine and
// more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		wasActive := c.State() == StateActive
		c.state.Store(int32(StateClosed))
		close(c.stop)

		if c.conn != nil {
			c.conn.Close()
		}

		if c.chatServer != nil {
			c.chatServer.detachClient(c, wasActive)
		}
	})
}

// Write pumps queued events to the websocket and keeps the connection
// alive with pings. Runs as its own goroutine per session.
func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := json.Marshal(ev)
			if err != nil {
				c.log.Println("failed to serialize event:", err)
				continue
			}

			if !c.writeMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			if !c.writeMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

// Read pumps inbound frames off the websocket and dispatches them.
// Runs as its own goroutine per session; returning closes the session.
func (c *Client) Read() {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		var frame ClientFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.log.Println("error parsing frame:", err)
			if !c.frameRejected(-1) {
				break
			}
			continue
		}

		if !c.chatServer.dispatch(c, &frame) {
			if !c.frameRejected(frame.Id) {
				break
			}
			continue
		}

		c.malformed = 0
	}
}

// frameRejected records one malformed frame and answers it with an
// error event. Returns false once the threshold is exceeded and the
// session should be dropped.
func (c *Client) frameRejected(id int) bool {
	c.stats.Incr(StatMalformedFrames)
	c.Send(ErrInvalidFrame(id))

	c.malformed++
	if c.malformed >= maxMalformedFrames {
		c.log.Printf("session %s exceeded malformed frame threshold", c.id)
		return false
	}
	return true
}

func (c *Client) writeMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) addTopic(t Topic) {
	c.topicsLock.Lock()
	defer c.topicsLock.Unlock()

	c.topics[t] = struct{}{}
}

func (c *Client) delTopic(t Topic) {
	c.topicsLock.Lock()
	defer c.topicsLock.Unlock()

	delete(c.topics, t)
}

func (c *Client) holdsTopic(t Topic) bool {
	c.topicsLock.RLock()
	defer c.topicsLock.RUnlock()

	_, ok := c.topics[t]
	return ok
}

// Topics returns a snapshot of the session's subscription set.
func (c *Client) Topics() []Topic {
	c.topicsLock.RLock()
	defer c.topicsLock.RUnlock()

	topics := make([]Topic, 0, len(c.topics))
	for t := range c.topics {
		topics = append(topics, t)
	}
	return topics
}
