package main

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var joinCodePattern = regexp.MustCompile(`^PP[ABCDEFGHJKLMNPQRSTUVWXYZ23456789]{6}$`)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(NewTokenIssuer(testSecret, 24*time.Hour), "http://example.test")
}

func TestGenerateJoinCode_Format(t *testing.T) {
	for range 1000 {
		code, err := generateJoinCode()
		require.NoError(t, err)
		assert.Regexp(t, joinCodePattern, code)
	}
}

func TestNormalizeName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"  Alice  ", "Alice"},
		{"", ""},
		{"   ", ""},
		{"abcdefghijklmnopqrstuvwxyz", "abcdefghijklmnopqrst"},
		{"ééééééééééééééééééééé", "éééééééééééééééééééé"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, normalizeName(tc.in), "input %q", tc.in)
	}
}

func TestRegistry_CreateRoom(t *testing.T) {
	reg := newTestRegistry(t)

	res, err := reg.CreateRoom("  Host  ")
	require.NoError(t, err)

	assert.NotEmpty(t, res.RoomID)
	assert.NotEmpty(t, res.HostPlayerID)
	assert.Regexp(t, joinCodePattern, res.JoinCode)
	assert.Equal(t, "http://example.test/join?code="+res.JoinCode, res.JoinURL)

	claims, err := reg.tokens.Verify(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.RoomID, claims.RoomID)
	assert.Equal(t, res.HostPlayerID, claims.PlayerID)
	assert.Equal(t, RoleHost, claims.Role)

	state, err := reg.Snapshot(res.RoomID)
	require.NoError(t, err)
	assert.Equal(t, res.JoinCode, state.JoinCode)
	assert.Equal(t, []PlayerView{{ID: res.HostPlayerID, Name: "Host", IsHost: true}}, state.Players)
	assert.Nil(t, state.CurrentRound)

	room, ok := reg.Room(res.RoomID)
	require.True(t, ok)
	assert.Equal(t, -1, room.LastActorIndex)
	assert.Equal(t, res.HostPlayerID, room.HostPlayerID)
}

func TestRegistry_CreateRoom_RequiresHostName(t *testing.T) {
	reg := newTestRegistry(t)

	_, err := reg.CreateRoom("   ")
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, 0, reg.Len())
}

func TestRegistry_CreateRoom_RetriesCollisions(t *testing.T) {
	reg := newTestRegistry(t)

	codes := []string{"PPAAAAAA", "PPAAAAAA", "PPAAAAAA", "PPBBBBBB"}
	calls := 0
	reg.genCode = func() (string, error) {
		code := codes[calls]
		calls++
		return code, nil
	}

	first, err := reg.CreateRoom("One")
	require.NoError(t, err)
	second, err := reg.CreateRoom("Two")
	require.NoError(t, err)

	assert.Equal(t, "PPAAAAAA", first.JoinCode)
	assert.Equal(t, "PPBBBBBB", second.JoinCode)
	assert.Equal(t, 4, calls)
}

func TestRegistry_CreateRoom_ConcurrentCodesUnique(t *testing.T) {
	reg := newTestRegistry(t)

	const n = 200
	results := make([]CreateRoomResult, n)

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := reg.CreateRoom("Host")
			assert.NoError(t, err)
			results[i] = res
		}()
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for _, res := range results {
		assert.False(t, seen[res.JoinCode], "duplicate join code %s", res.JoinCode)
		seen[res.JoinCode] = true
	}
	assert.Equal(t, n, reg.Len())
}

func TestRegistry_JoinRoom_PreservesOrder(t *testing.T) {
	reg := newTestRegistry(t)

	created, err := reg.CreateRoom("Host")
	require.NoError(t, err)

	alice, err := reg.JoinRoom(created.JoinCode, "Alice")
	require.NoError(t, err)
	bob, err := reg.JoinRoom(created.JoinCode, "Bob")
	require.NoError(t, err)

	assert.Equal(t, created.RoomID, alice.RoomID)
	assert.Equal(t, created.JoinCode, alice.JoinCode)
	assert.NotEqual(t, alice.PlayerID, bob.PlayerID)

	claims, err := reg.tokens.Verify(bob.Token)
	require.NoError(t, err)
	assert.Equal(t, RolePlayer, claims.Role)
	assert.Equal(t, bob.PlayerID, claims.PlayerID)

	state, err := reg.Snapshot(created.RoomID)
	require.NoError(t, err)
	assert.Equal(t, []PlayerView{
		{ID: created.HostPlayerID, Name: "Host", IsHost: true},
		{ID: alice.PlayerID, Name: "Alice"},
		{ID: bob.PlayerID, Name: "Bob"},
	}, state.Players)
}

func TestRegistry_JoinRoom_NormalizesCode(t *testing.T) {
	reg := newTestRegistry(t)

	created, err := reg.CreateRoom("Host")
	require.NoError(t, err)

	res, err := reg.JoinRoom("  "+strings.ToLower(created.JoinCode)+" ", "Alice")
	require.NoError(t, err)
	assert.Equal(t, created.JoinCode, res.JoinCode)
}

func TestRegistry_JoinRoom_Errors(t *testing.T) {
	reg := newTestRegistry(t)

	created, err := reg.CreateRoom("Host")
	require.NoError(t, err)

	_, err = reg.JoinRoom("PPZZZZZZ", "Alice")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = reg.JoinRoom("", "Alice")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = reg.JoinRoom(created.JoinCode, "  ")
	assert.ErrorIs(t, err, ErrValidation)

	state, err := reg.Snapshot(created.RoomID)
	require.NoError(t, err)
	assert.Len(t, state.Players, 1)
}

func TestRegistry_Reap(t *testing.T) {
	reg := newTestRegistry(t)

	now := time.Unix(1_700_000_000, 0)
	reg.clock = func() time.Time { return now }

	stale, err := reg.CreateRoom("Stale")
	require.NoError(t, err)

	now = now.Add(time.Hour)
	fresh, err := reg.CreateRoom("Fresh")
	require.NoError(t, err)

	removed := reg.Reap(now.Add(-30 * time.Minute))
	require.Len(t, removed, 1)
	assert.Equal(t, stale.RoomID, removed[0].ID)

	_, ok := reg.Room(stale.RoomID)
	assert.False(t, ok)
	_, err = reg.JoinRoom(stale.JoinCode, "Late")
	assert.ErrorIs(t, err, ErrNotFound)

	err = reg.Do(stale.RoomID, func(*Room) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = reg.JoinRoom(fresh.JoinCode, "Alice")
	assert.NoError(t, err)
}

func TestRegistry_ReaperLoop_SubSecondTimeout(t *testing.T) {
	reg := newTestRegistry(t)

	now := time.Unix(1_700_000_000, 0)
	reg.clock = func() time.Time { return now }

	stale, err := reg.CreateRoom("Stale")
	require.NoError(t, err)

	later := now.Add(time.Hour)
	reg.clock = func() time.Time { return later }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reaped := make(chan *Room, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		reg.reaperLoop(ctx, time.Nanosecond, func(room *Room) { reaped <- room })
	}()

	select {
	case room := <-reaped:
		assert.Equal(t, stale.RoomID, room.ID)
	case <-time.After(5 * time.Second):
		t.Fatal("idle room was not reaped")
	}

	cancel()
	<-done
}

func TestRegistry_Close(t *testing.T) {
	reg := newTestRegistry(t)

	for range 3 {
		_, err := reg.CreateRoom("Host")
		require.NoError(t, err)
	}

	removed := reg.Close()
	assert.Len(t, removed, 3)
	assert.Equal(t, 0, reg.Len())

	for _, room := range removed {
		assert.True(t, room.removed)
	}
}
