/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog/log"
)

// Dispatcher routes inbound envelopes to the registry and round engine and
// broadcasts the results.
type Dispatcher struct {
	registry *Registry
	binder   *Binder

	clock func() time.Time
	topic func(n int) int
}

func NewDispatcher(registry *Registry, binder *Binder) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		binder:   binder,
		clock:    time.Now,
		topic:    rand.IntN,
	}
}

// Handle processes one inbound frame from c. Unparseable frames are
// dropped; action failures are reported to c alone.
func (d *Dispatcher) Handle(c *Client, data []byte) {
	if c.limiter != nil && !c.limiter.Allow() {
		log.Warn().Str("remote", c.remote).Msg("rate limit exceeded, dropping frame")
		return
	}

	var env inboundEnvelope
	if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
		log.Debug().Str("remote", c.remote).Msg("dropping malformed frame")
		return
	}

	if env.Type == msgAuth {
		d.authenticate(c, env.Payload)
		return
	}

	var err error

	switch env.Type {
	case msgHostAction:
		err = d.requireAuth(c, d.hostAction, env.Payload)
	case msgSubmitPrompt:
		err = d.requireAuth(c, d.submitPrompt, env.Payload)
	case msgSubmitVote:
		err = d.requireAuth(c, d.submitVote, env.Payload)
	default:
		log.Debug().Str("remote", c.remote).Str("type", env.Type).Msg("dropping unknown message type")
		return
	}

	if err != nil {
		log.Info().
			Str("remote", c.remote).
			Str("type", env.Type).
			Err(err).
			Msg("action rejected")
		c.deliver(errorEnvelope(msgError, err))
	}
}

func (d *Dispatcher) requireAuth(c *Client, action func(c *Client, raw json.RawMessage) error, raw json.RawMessage) error {
	if c.claims == nil {
		return authError("not authenticated")
	}
	return action(c, raw)
}

func (d *Dispatcher) authenticate(c *Client, raw json.RawMessage) {
	var p authPayload
	if err := decodePayload(raw, &p); err != nil || p.Token == "" {
		c.deliver(errorEnvelope(msgAuthError, authError("missing token")))
		return
	}

	claims, err := d.registry.tokens.Verify(p.Token)
	if err != nil {
		log.Info().Str("remote", c.remote).Err(err).Msg("auth failed")
		c.deliver(errorEnvelope(msgAuthError, err))
		return
	}

	if prev := c.claims; prev != nil && (prev.RoomID != claims.RoomID || prev.PlayerID != claims.PlayerID) {
		c.claims = nil
		d.release(c, prev.RoomID)
	}

	err = d.registry.Do(claims.RoomID, func(room *Room) error {
		player := room.player(claims.PlayerID)
		if player == nil {
			return authError("player not found")
		}
		if player.IsHost != (claims.Role == RoleHost) {
			return authError("invalid token claims")
		}

		d.binder.Bind(room.ID, player.ID, c)
		c.deliver(envelope(msgAuthOK, AuthOK{PlayerID: player.ID, RoomState: room.stateLocked()}))
		d.broadcastRoomStateLocked(room)

		return nil
	})
	if err != nil {
		log.Info().Str("remote", c.remote).Str("room", claims.RoomID).Err(err).Msg("auth failed")
		c.deliver(errorEnvelope(msgAuthError, err))
		return
	}

	c.claims = claims

	log.Info().
		Str("remote", c.remote).
		Str("room", claims.RoomID).
		Str("player", claims.PlayerID).
		Str("role", string(claims.Role)).
		Msg("connection authenticated")
}

func (d *Dispatcher) hostAction(c *Client, raw json.RawMessage) error {
	if c.claims.Role != RoleHost {
		return unauthorizedError("unauthorized")
	}

	var p hostActionPayload
	if err := decodePayload(raw, &p); err != nil {
		return err
	}

	switch p.Action {
	case actionStartRound:
		return d.startRound(c.claims.RoomID, c.claims.PlayerID)
	default:
		return validationError("unknown host action")
	}
}

func (d *Dispatcher) startRound(roomID, hostID string) error {
	return d.registry.Do(roomID, func(room *Room) error {
		if room.HostPlayerID != hostID {
			return unauthorizedError("unauthorized")
		}

		round, err := room.startRoundLocked(d.clock(), d.topic(len(topics)))
		if err != nil {
			return err
		}

		log.Info().
			Str("room", room.ID).
			Str("round", round.ID).
			Str("actor", round.ActorID).
			Msg("round started")

		d.broadcastLocked(room, envelope(msgRoundStarted, round.started()))
		d.broadcastRoomStateLocked(room)

		return nil
	})
}

func (d *Dispatcher) submitPrompt(c *Client, raw json.RawMessage) error {
	var p submitPromptPayload
	if err := decodePayload(raw, &p); err != nil {
		return err
	}

	return d.registry.Do(c.claims.RoomID, func(room *Room) error {
		outcome, err := room.submitPromptLocked(d.clock(), c.claims.PlayerID, p.Prompt)
		if err != nil {
			return err
		}

		c.deliver(envelope(msgPromptAccepted, Accepted{Success: true}))

		view := room.roundViewLocked()
		d.broadcastLocked(room, envelope(msgPromptsUpdate, view))

		if outcome.GateFlipped {
			log.Info().Str("room", room.ID).Str("round", view.RoundID).Msg("all prompts submitted")
			d.broadcastLocked(room, envelope(msgVotingStarted, view))
		}
		if outcome.Selected != nil {
			d.announceLocked(room, *outcome.Selected)
		}

		return nil
	})
}

func (d *Dispatcher) submitVote(c *Client, raw json.RawMessage) error {
	var p submitVotePayload
	if err := decodePayload(raw, &p); err != nil {
		return err
	}

	return d.registry.Do(c.claims.RoomID, func(room *Room) error {
		outcome, err := room.submitVoteLocked(c.claims.PlayerID, p.PromptPlayerID)
		if err != nil {
			return err
		}

		c.deliver(envelope(msgVoteAccepted, Accepted{Success: true}))
		d.broadcastLocked(room, envelope(msgVoteUpdate, room.roundViewLocked()))

		if outcome.Selected != nil {
			d.announceLocked(room, *outcome.Selected)
		}

		return nil
	})
}

func (d *Dispatcher) announceLocked(room *Room, result TallyResult) {
	log.Info().
		Str("room", room.ID).
		Str("winner", result.PromptPlayerID).
		Int("votes", result.Votes).
		Msg("prompt selected")

	d.broadcastLocked(room, envelope(msgPromptSelected, result))
}

// Disconnect marks c closed and clears its bindings in the room it was
// authenticated for.
func (d *Dispatcher) Disconnect(c *Client) {
	c.close()

	if c.claims == nil {
		return
	}
	d.release(c, c.claims.RoomID)
}

func (d *Dispatcher) release(c *Client, roomID string) {
	_ = d.registry.Do(roomID, func(room *Room) error {
		if d.binder.Release(room.ID, playerIDs(room), c) {
			d.broadcastRoomStateLocked(room)
		}
		return nil
	})
}

// closeRoom disconnects everyone bound to a room that has been removed
// from the registry.
func (d *Dispatcher) closeRoom(room *Room) {
	room.mu.Lock()
	ids := playerIDs(room)
	room.mu.Unlock()

	for _, c := range d.binder.Drop(room.ID, ids) {
		c.close()
	}
}

// Close tears down every room and its connections.
func (d *Dispatcher) Close() {
	for _, room := range d.registry.Close() {
		d.closeRoom(room)
	}
}

func playerIDs(room *Room) []string {
	ids := make([]string, 0, len(room.Players))
	for _, p := range room.Players {
		ids = append(ids, p.ID)
	}
	return ids
}
