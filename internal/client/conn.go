package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/danmuck/newswire/internal/protocol"
	"github.com/danmuck/newswire/internal/protocol/frame"
)

var ErrClosed = errors.New("client: connection closed")

// Requester sends one request and waits for its response.
type Requester interface {
	Do(ctx context.Context, req protocol.Request) (protocol.Response, error)
	Close() error
}

// Conn is one client connection to a news server.
type Conn struct {
	conn     net.Conn
	ch       *frame.Channel
	username string
}

// Dial connects to addr and sends the username line.
func Dial(ctx context.Context, addr, username string) (*Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", strings.TrimSpace(addr))
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", addr, err)
	}
	c := &Conn{
		conn:     conn,
		ch:       frame.NewChannel(conn, frame.DefaultLimits()),
		username: strings.TrimSpace(username),
	}
	c.applyDeadline(ctx)
	if err := c.ch.WriteLine(c.username); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("client: send username: %w", err)
	}
	_ = conn.SetDeadline(time.Time{})
	return c, nil
}

func (c *Conn) Username() string   { return c.username }
func (c *Conn) RemoteAddr() string { return c.conn.RemoteAddr().String() }

func (c *Conn) Do(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	c.applyDeadline(ctx)
	defer c.conn.SetDeadline(time.Time{})

	if err := c.ch.Send(req); err != nil {
		return protocol.Response{}, fmt.Errorf("client: send %s: %w", req.Action, err)
	}
	var resp protocol.Response
	if err := c.ch.Receive(&resp); err != nil {
		if errors.Is(err, net.ErrClosed) {
			return protocol.Response{}, ErrClosed
		}
		return protocol.Response{}, fmt.Errorf("client: receive %s: %w", req.Action, err)
	}
	return resp, nil
}

func (c *Conn) Close() error {
	return c.conn.Close()
}

func (c *Conn) applyDeadline(ctx context.Context) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetDeadline(deadline)
	}
}
