/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
)

type CreateRoomResult struct {
	RoomID       string `json:"roomId"`
	JoinCode     string `json:"joinCode"`
	HostPlayerID string `json:"hostPlayerId"`
	Token        string `json:"token"`
	JoinURL      string `json:"joinUrl"`
}

type JoinRoomResult struct {
	PlayerID string `json:"playerId"`
	Token    string `json:"token"`
	RoomID   string `json:"roomId"`
	JoinCode string `json:"joinCode"`
}

// Registry owns every live room, indexed by room id and by join code.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	codes map[string]string // joinCode -> roomID

	tokens  *TokenIssuer
	hostURL string

	clock   func() time.Time
	genCode func() (string, error)
}

func NewRegistry(tokens *TokenIssuer, hostURL string) *Registry {
	return &Registry{
		rooms:   make(map[string]*Room),
		codes:   make(map[string]string),
		tokens:  tokens,
		hostURL: hostURL,
		clock:   time.Now,
		genCode: generateJoinCode,
	}
}

func (reg *Registry) CreateRoom(hostName string) (CreateRoomResult, error) {
	hostName = normalizeName(hostName)
	if hostName == "" {
		return CreateRoomResult{}, validationError("hostName required")
	}

	roomID := uuid.NewString()
	host := &Player{ID: uuid.NewString(), Name: hostName, IsHost: true}

	token, err := reg.tokens.Issue(roomID, host.ID, RoleHost)
	if err != nil {
		return CreateRoomResult{}, err
	}

	reg.mu.Lock()
	var code string
	for {
		code, err = reg.genCode()
		if err != nil {
			reg.mu.Unlock()
			return CreateRoomResult{}, err
		}
		if _, exists := reg.codes[code]; !exists {
			break
		}
	}
	reg.rooms[roomID] = newRoom(roomID, code, host, reg.clock())
	reg.codes[code] = roomID
	reg.mu.Unlock()

	return CreateRoomResult{
		RoomID:       roomID,
		JoinCode:     code,
		HostPlayerID: host.ID,
		Token:        token,
		JoinURL:      reg.hostURL + "/join?code=" + url.QueryEscape(code),
	}, nil
}

// JoinRoom admits a new non-host player. The caller is responsible for
// broadcasting the updated room state.
func (reg *Registry) JoinRoom(joinCode, name string) (JoinRoomResult, error) {
	joinCode = normalizeJoinCode(joinCode)
	name = normalizeName(name)
	if joinCode == "" || name == "" {
		return JoinRoomResult{}, validationError("joinCode and name required")
	}

	reg.mu.RLock()
	roomID, ok := reg.codes[joinCode]
	reg.mu.RUnlock()
	if !ok {
		return JoinRoomResult{}, notFoundError("room not found")
	}

	player := &Player{ID: uuid.NewString(), Name: name}

	token, err := reg.tokens.Issue(roomID, player.ID, RolePlayer)
	if err != nil {
		return JoinRoomResult{}, err
	}

	err = reg.Do(roomID, func(room *Room) error {
		room.Players = append(room.Players, player)
		return nil
	})
	if err != nil {
		return JoinRoomResult{}, err
	}

	return JoinRoomResult{
		PlayerID: player.ID,
		Token:    token,
		RoomID:   roomID,
		JoinCode: joinCode,
	}, nil
}

func (reg *Registry) Room(roomID string) (*Room, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	room, ok := reg.rooms[roomID]
	return room, ok
}

// Do runs fn with the room's lock held. All mutations of a room, and every
// snapshot taken for broadcast, go through here.
func (reg *Registry) Do(roomID string, fn func(room *Room) error) error {
	room, ok := reg.Room(roomID)
	if !ok {
		return notFoundError("room not found")
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if room.removed {
		return notFoundError("room not found")
	}
	room.lastActive = reg.clock()

	return fn(room)
}

func (reg *Registry) Snapshot(roomID string) (RoomState, error) {
	var state RoomState

	err := reg.Do(roomID, func(room *Room) error {
		state = room.stateLocked()
		return nil
	})

	return state, err
}

func (reg *Registry) Len() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	return len(reg.rooms)
}

// Reap removes rooms that have been idle since before cutoff and returns
// them so their connections can be closed.
func (reg *Registry) Reap(cutoff time.Time) []*Room {
	return reg.remove(func(room *Room) bool {
		return room.lastActive.Before(cutoff)
	})
}

// Close tears down every room.
func (reg *Registry) Close() []*Room {
	return reg.remove(func(*Room) bool { return true })
}

func (reg *Registry) remove(match func(room *Room) bool) []*Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	var removed []*Room
	for id, room := range reg.rooms {
		room.mu.Lock()
		if match(room) {
			room.removed = true
			delete(reg.rooms, id)
			delete(reg.codes, room.JoinCode)
			removed = append(removed, room)
		}
		room.mu.Unlock()
	}

	return removed
}

const minReapInterval = 500 * time.Millisecond

// reaperLoop periodically removes rooms that have been idle longer than
// idleTimeout and hands each one to onRemove.
func (reg *Registry) reaperLoop(ctx context.Context, idleTimeout time.Duration, onRemove func(room *Room)) {
	ticker := time.NewTicker(max(idleTimeout/2, minReapInterval))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, room := range reg.Reap(reg.clock().Add(-idleTimeout)) {
				onRemove(room)
			}
		}
	}
}
