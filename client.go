/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	sendBuffer = 64

	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 * 1024
)

// Client is one websocket connection. It is bound to at most one
// (room, player) pair at a time, once it has authenticated.
type Client struct {
	conn    *websocket.Conn
	send    chan any
	limiter *rate.Limiter
	remote  string

	// only touched by the read loop
	claims *Claims

	mu     sync.Mutex
	closed bool
}

func newClient(conn *websocket.Conn, remote string, limiter *rate.Limiter) *Client {
	return &Client{
		conn:    conn,
		send:    make(chan any, sendBuffer),
		limiter: limiter,
		remote:  remote,
	}
}

// deliver queues msg without blocking. It reports false when the client is
// closed or its buffer is full.
func (c *Client) deliver(msg any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) isOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return !c.closed
}

// close marks the client as not open and stops its write pump. Safe to
// call more than once.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Client) readPump(handle func(c *Client, data []byte)) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		handle(c, data)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
