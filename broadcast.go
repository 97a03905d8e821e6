/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import "github.com/rs/zerolog/log"

// broadcastLocked queues msg for every player in the room with an open
// connection, in join order. Players without one, or whose buffer is
// full, are skipped; they catch up on the next full snapshot. room.mu must
// be held so every recipient sees the same state.
func (d *Dispatcher) broadcastLocked(room *Room, msg Envelope) int {
	sent := 0

	for _, p := range room.Players {
		c := d.binder.Lookup(room.ID, p.ID)
		if c == nil {
			continue
		}

		if !c.deliver(msg) {
			log.Debug().
				Str("room", room.ID).
				Str("player", p.ID).
				Str("type", msg.Type).
				Msg("skipped delivery to closed or slow connection")
			continue
		}
		sent++
	}

	return sent
}

func (d *Dispatcher) broadcastRoomStateLocked(room *Room) {
	d.broadcastLocked(room, envelope(msgRoomState, room.stateLocked()))
}

// BroadcastRoomState pushes a fresh room_state to everyone in the room.
func (d *Dispatcher) BroadcastRoomState(roomID string) error {
	return d.registry.Do(roomID, func(room *Room) error {
		d.broadcastRoomStateLocked(room)
		return nil
	})
}
