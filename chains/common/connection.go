package common

import (
	"sync"
	"time"
)

// ConnectionState represents the state of an event subscription
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// ConnectionTracker records the state of one subscription and when it last
// delivered an event.
type ConnectionTracker struct {
	mu          sync.RWMutex
	state       ConnectionState
	lastEventAt time.Time
	reconnects  int
}

func NewConnectionTracker() *ConnectionTracker {
	return &ConnectionTracker{state: StateDisconnected}
}

func (c *ConnectionTracker) SetState(state ConnectionState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if state == StateReconnecting {
		c.reconnects++
	}
	c.state = state
}

func (c *ConnectionTracker) MarkEvent(at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateConnected
	c.lastEventAt = at
}

func (c *ConnectionTracker) State() ConnectionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *ConnectionTracker) IsConnected() bool {
	return c.State() == StateConnected
}

func (c *ConnectionTracker) LastEventAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastEventAt
}

func (c *ConnectionTracker) Reconnects() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.reconnects
}
