/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

const (
	joinCodePrefix   = "PP"
	joinCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	joinCodeLength   = 6

	maxNameLength = 20
)

// Player holds the data we store server-side. The live connection is
// tracked by the Binder, not here.
type Player struct {
	ID     string
	Name   string
	IsHost bool
}

type Room struct {
	mu sync.Mutex

	ID             string
	JoinCode       string
	HostPlayerID   string
	Players        []*Player
	CurrentRound   *Round
	LastActorIndex int

	lastActive time.Time
	removed    bool
}

// PlayerView is the serializable projection of a Player.
type PlayerView struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	IsHost bool   `json:"isHost"`
}

// RoomState is the room_state payload.
type RoomState struct {
	RoomID       string       `json:"roomId"`
	JoinCode     string       `json:"joinCode"`
	Players      []PlayerView `json:"players"`
	CurrentRound *RoundView   `json:"currentRound"`
}

func newRoom(id, joinCode string, host *Player, now time.Time) *Room {
	return &Room{
		ID:             id,
		JoinCode:       joinCode,
		HostPlayerID:   host.ID,
		Players:        []*Player{host},
		LastActorIndex: -1,
		lastActive:     now,
	}
}

func (r *Room) player(id string) *Player {
	for _, p := range r.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (r *Room) playerName(id string) string {
	if p := r.player(id); p != nil {
		return p.Name
	}
	return "Unknown"
}

// eligiblePlayers returns non-host players in join order.
func (r *Room) eligiblePlayers() []*Player {
	eligible := make([]*Player, 0, len(r.Players))
	for _, p := range r.Players {
		if !p.IsHost {
			eligible = append(eligible, p)
		}
	}
	return eligible
}

// stateLocked builds the room_state payload. r.mu must be held.
func (r *Room) stateLocked() RoomState {
	players := make([]PlayerView, 0, len(r.Players))
	for _, p := range r.Players {
		players = append(players, PlayerView{ID: p.ID, Name: p.Name, IsHost: p.IsHost})
	}

	var round *RoundView
	if r.CurrentRound != nil {
		view := r.roundViewLocked()
		round = &view
	}

	return RoomState{
		RoomID:       r.ID,
		JoinCode:     r.JoinCode,
		Players:      players,
		CurrentRound: round,
	}
}

// generateJoinCode returns a random code from a confusable-free alphabet.
// Uniqueness is the caller's responsibility.
func generateJoinCode() (string, error) {
	buf := make([]byte, joinCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}

	out := make([]byte, joinCodeLength)
	for i := range out {
		// 256 is a multiple of 32, so the modulus is unbiased
		out[i] = joinCodeAlphabet[int(buf[i])%len(joinCodeAlphabet)]
	}

	return joinCodePrefix + string(out), nil
}

func normalizeJoinCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func normalizeText(s string, limit int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= limit {
		return s
	}

	return strings.TrimSpace(string([]rune(s)[:limit]))
}

func normalizeName(name string) string {
	return normalizeText(name, maxNameLength)
}
