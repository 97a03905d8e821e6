/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import "sync"

type bindingKey struct {
	roomID   string
	playerID string
}

// Binder maps (room, player) to the player's latest live connection. It
// does not own the connections.
type Binder struct {
	mu    sync.Mutex
	conns map[bindingKey]*Client
}

func NewBinder() *Binder {
	return &Binder{conns: make(map[bindingKey]*Client)}
}

// Bind records c as the live connection for the player, replacing any
// earlier one.
func (b *Binder) Bind(roomID, playerID string, c *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.conns[bindingKey{roomID, playerID}] = c
}

func (b *Binder) Lookup(roomID, playerID string) *Client {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.conns[bindingKey{roomID, playerID}]
}

// Release clears every binding among playerIDs in roomID that points at c
// and reports whether anything changed.
func (b *Binder) Release(roomID string, playerIDs []string, c *Client) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	changed := false
	for _, id := range playerIDs {
		key := bindingKey{roomID, id}
		if bound, ok := b.conns[key]; ok && bound == c {
			delete(b.conns, key)
			changed = true
		}
	}

	return changed
}

// Drop removes every binding for the given players and returns the
// connections that were bound.
func (b *Binder) Drop(roomID string, playerIDs []string) []*Client {
	b.mu.Lock()
	defer b.mu.Unlock()

	var dropped []*Client
	for _, id := range playerIDs {
		key := bindingKey{roomID, id}
		if c, ok := b.conns[key]; ok {
			dropped = append(dropped, c)
			delete(b.conns, key)
		}
	}

	return dropped
}

func (b *Binder) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.conns)
}
