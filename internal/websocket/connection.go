package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeBufferSize = 100
	writeWait       = 5 * time.Second
)

// outbound is one queued frame; final frames close the connection once written.
type outbound struct {
	data  []byte
	final bool
}

// Connection implements the interfaces.Connection interface.
// All frame writes go through one writer goroutine; identity is bound once on admission.
type Connection struct {
	conn          *websocket.Conn
	writeCh       chan outbound
	participantID string
	pollID        string
	name          string
	authenticated bool
	ctx           context.Context
	cancel        context.CancelFunc
	closeOnce     sync.Once
	mu            sync.RWMutex
}

// NewConnection wraps conn and starts its writer goroutine.
func NewConnection(conn *websocket.Conn) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		conn:    conn,
		writeCh: make(chan outbound, writeBufferSize),
		ctx:     ctx,
		cancel:  cancel,
	}

	go c.writeLoop()

	return c
}

func (c *Connection) writeLoop() {
	for {
		select {
		case msg := <-c.writeCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				_ = c.Close()
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg.data); err != nil {
				_ = c.Close()
				return
			}
			if msg.final {
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(writeWait))
				_ = c.Close()
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// WriteJSON queues v for delivery.
func (c *Connection) WriteJSON(v interface{}) error {
	return c.enqueue(v, false)
}

// CloseWithMessage delivers v as the last frame and then closes the connection.
func (c *Connection) CloseWithMessage(v interface{}) error {
	return c.enqueue(v, true)
}

func (c *Connection) enqueue(v interface{}, final bool) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	data, err := json.Marshal(v)
	if err != nil {
		return ErrInvalidJSON
	}

	timer := time.NewTimer(writeWait)
	defer timer.Stop()

	select {
	case c.writeCh <- outbound{data: data, final: final}:
		return nil
	case <-timer.C:
		return ErrWriteTimeout
	case <-c.ctx.Done():
		return ErrConnectionClosed
	}
}

// Close cancels the writer and closes the socket. Safe to call more than once.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		if c.conn != nil {
			err = c.conn.Close()
		}
	})
	return err
}

// Done is closed once the connection has been closed.
func (c *Connection) Done() <-chan struct{} {
	return c.ctx.Done()
}

// SetCredentials binds the verified identity to this connection for its lifetime.
func (c *Connection) SetCredentials(participantID, pollID, name string) error {
	if participantID == "" || pollID == "" {
		return ErrInvalidParameters
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.authenticated {
		return ErrAlreadyBound
	}
	c.participantID = participantID
	c.pollID = pollID
	c.name = name
	c.authenticated = true

	return nil
}

func (c *Connection) IsAuthenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authenticated
}

func (c *Connection) GetParticipantID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.participantID
}

func (c *Connection) GetPollID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pollID
}

func (c *Connection) GetName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}
