package testutil

import (
	"context"
	"errors"
	"sync"

	"fleetpulse/pkg/pushchan"
)

// ScriptedConn is a push-channel connection whose inbound frames are injected
// by the test. Reads block until a frame is injected, the connection is
// closed, or the context ends.
type ScriptedConn struct {
	inbox     chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	mu   sync.Mutex
	Sent [][]byte
}

func NewScriptedConn() *ScriptedConn {
	return &ScriptedConn{inbox: make(chan []byte, 16), closed: make(chan struct{})}
}

// Inject delivers one inbound frame to whoever is reading the connection.
func (c *ScriptedConn) Inject(raw []byte) { c.inbox <- raw }

func (c *ScriptedConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case raw := <-c.inbox:
		return raw, nil
	case <-c.closed:
		return nil, errors.New("scripted connection closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *ScriptedConn) Write(_ context.Context, raw []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Sent = append(c.Sent, raw)
	return nil
}

func (c *ScriptedConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// ScriptedDialer hands out ScriptedConns, optionally failing the first
// FailFirst dials.
type ScriptedDialer struct {
	mu        sync.Mutex
	FailFirst int
	Dials     int
	Conns     []*ScriptedConn
}

func (d *ScriptedDialer) Dial(context.Context, string) (pushchan.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Dials++
	if d.Dials <= d.FailFirst {
		return nil, errors.New("scripted dial failure")
	}
	conn := NewScriptedConn()
	d.Conns = append(d.Conns, conn)
	return conn, nil
}

// Conn returns the i-th established connection, or nil.
func (d *ScriptedDialer) Conn(i int) *ScriptedConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.Conns) {
		return nil
	}
	return d.Conns[i]
}

var _ pushchan.Dialer = (*ScriptedDialer)(nil)
var _ pushchan.Conn = (*ScriptedConn)(nil)
