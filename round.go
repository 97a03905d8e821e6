/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"time"

	"github.com/google/uuid"
)

const (
	minCutoffDelay = 30 * time.Second
	maxEndDelay    = 90 * time.Second

	hiddenPromptText = "???"
	maxPromptLength  = 200
)

var topics = []string{
	"A day at the beach",
	"Cooking dinner",
	"Meeting a celebrity",
	"First day at a new job",
	"Lost in a forest",
	"Shopping spree",
	"Winning the lottery",
	"Flying in an airplane",
}

type Phase string

const (
	PhaseIdle              Phase = "idle"
	PhaseCollectingPrompts Phase = "collecting_prompts"
	PhaseVoting            Phase = "voting"
	PhaseResolved          Phase = "resolved"
)

// Round is a single actor/topic cycle. Prompts and votes keep the order in
// which each key was first written; overwrites keep their first position.
type Round struct {
	ID          string
	ActorID     string
	Topic       string
	StartedAt   int64
	MinCutoffAt int64
	MaxEndAt    int64

	prompts     map[string]string // playerID -> text
	promptOrder []string
	votes       map[string]string // voterID -> promptPlayerID
	voteOrder   []string

	AllPromptsSubmitted    bool
	SelectedPromptPlayerID string
}

func newRound(actorID, topic string, now time.Time) *Round {
	startedAt := now.UnixMilli()
	return &Round{
		ID:          uuid.NewString(),
		ActorID:     actorID,
		Topic:       topic,
		StartedAt:   startedAt,
		MinCutoffAt: startedAt + minCutoffDelay.Milliseconds(),
		MaxEndAt:    startedAt + maxEndDelay.Milliseconds(),
		prompts:     make(map[string]string),
		votes:       make(map[string]string),
	}
}

func (rd *Round) phase() Phase {
	switch {
	case rd.SelectedPromptPlayerID != "":
		return PhaseResolved
	case rd.AllPromptsSubmitted:
		return PhaseVoting
	default:
		return PhaseCollectingPrompts
	}
}

func (rd *Round) setPrompt(playerID, text string) {
	if _, ok := rd.prompts[playerID]; !ok {
		rd.promptOrder = append(rd.promptOrder, playerID)
	}
	rd.prompts[playerID] = text
}

func (rd *Round) setVote(voterID, promptPlayerID string) {
	if _, ok := rd.votes[voterID]; !ok {
		rd.voteOrder = append(rd.voteOrder, voterID)
	}
	rd.votes[voterID] = promptPlayerID
}

// voteCounts returns per-owner counts in order of each owner's first vote.
func (rd *Round) voteCounts() []VoteCount {
	counts := make([]VoteCount, 0, len(rd.votes))
	index := make(map[string]int, len(rd.votes))

	for _, voterID := range rd.voteOrder {
		target := rd.votes[voterID]
		i, ok := index[target]
		if !ok {
			i = len(counts)
			index[target] = i
			counts = append(counts, VoteCount{PlayerID: target})
		}
		counts[i].Count++
	}

	return counts
}

// RoundStarted is the round_started payload.
type RoundStarted struct {
	RoundID     string `json:"roundId"`
	ActorID     string `json:"actorId"`
	Topic       string `json:"topic"`
	StartedAt   int64  `json:"startedAt"`
	MinCutoffAt int64  `json:"minCutoffAt"`
	MaxEndAt    int64  `json:"maxEndAt"`
}

type PromptView struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Text       string `json:"text"`
	Revealed   bool   `json:"revealed"`
}

type VoteCount struct {
	PlayerID string `json:"playerId"`
	Count    int    `json:"count"`
}

// RoundView is the client-safe projection of a Round. Prompt text stays
// hidden until every eligible player has submitted.
type RoundView struct {
	RoundID                string       `json:"roundId"`
	ActorID                string       `json:"actorId"`
	Topic                  string       `json:"topic"`
	StartedAt              int64        `json:"startedAt"`
	MinCutoffAt            int64        `json:"minCutoffAt"`
	MaxEndAt               int64        `json:"maxEndAt"`
	Prompts                []PromptView `json:"prompts"`
	AllPromptsSubmitted    bool         `json:"allPromptsSubmitted"`
	VoteResults            []VoteCount  `json:"voteResults"`
	SelectedPromptPlayerID string       `json:"selectedPromptPlayerId,omitempty"`
}

// TallyResult is the prompt_selected payload.
type TallyResult struct {
	PromptPlayerID string `json:"promptPlayerId"`
	PromptText     string `json:"promptText"`
	Votes          int    `json:"votes"`
	PlayerName     string `json:"playerName"`
	ActorID        string `json:"actorId"`
	ActorName      string `json:"actorName"`
	Topic          string `json:"topic"`
}

type PromptOutcome struct {
	GateFlipped bool
	Selected    *TallyResult
}

type VoteOutcome struct {
	Selected *TallyResult
}

func (rd *Round) started() RoundStarted {
	return RoundStarted{
		RoundID:     rd.ID,
		ActorID:     rd.ActorID,
		Topic:       rd.Topic,
		StartedAt:   rd.StartedAt,
		MinCutoffAt: rd.MinCutoffAt,
		MaxEndAt:    rd.MaxEndAt,
	}
}

func (r *Room) phaseLocked() Phase {
	if r.CurrentRound == nil {
		return PhaseIdle
	}
	return r.CurrentRound.phase()
}

// startRoundLocked rotates the actor among non-host players and replaces
// the current round. r.mu must be held.
func (r *Room) startRoundLocked(now time.Time, topicIndex int) (*Round, error) {
	eligible := r.eligiblePlayers()
	if len(eligible) == 0 {
		return nil, invalidStateError("No players available to be actor")
	}

	next := (r.LastActorIndex + 1) % len(eligible)
	if next < 0 {
		next = 0
	}
	actor := eligible[next]

	round := newRound(actor.ID, topics[topicIndex%len(topics)], now)

	r.CurrentRound = round
	r.LastActorIndex = next

	return round, nil
}

// submitPromptLocked records a prompt and flips the gate once every
// non-host, non-actor player has one. r.mu must be held.
func (r *Room) submitPromptLocked(now time.Time, playerID, text string) (PromptOutcome, error) {
	round := r.CurrentRound
	if round == nil {
		return PromptOutcome{}, notFoundError("No active round")
	}

	p := r.player(playerID)
	if p == nil {
		return PromptOutcome{}, notFoundError("player not found")
	}
	if p.IsHost {
		return PromptOutcome{}, invalidStateError("Host cannot submit prompts")
	}
	if playerID == round.ActorID {
		return PromptOutcome{}, invalidStateError("Actor cannot submit prompts")
	}
	if round.SelectedPromptPlayerID != "" || now.UnixMilli() > round.MaxEndAt {
		return PromptOutcome{}, invalidStateError("Round has ended")
	}

	text = normalizeText(text, maxPromptLength)
	if text == "" {
		return PromptOutcome{}, validationError("prompt required")
	}

	round.setPrompt(playerID, text)

	var outcome PromptOutcome

	if !round.AllPromptsSubmitted && r.allSubmittedLocked(round.prompts) {
		round.AllPromptsSubmitted = true
		outcome.GateFlipped = true

		// A lone prompt cannot be voted on by its only eligible voter.
		if len(round.prompts) == 1 {
			result := r.tallyLocked()
			outcome.Selected = &result
		}
	}

	return outcome, nil
}

// submitVoteLocked records a vote and tallies once every eligible voter
// has voted. r.mu must be held.
func (r *Room) submitVoteLocked(voterID, promptPlayerID string) (VoteOutcome, error) {
	round := r.CurrentRound
	if round == nil {
		return VoteOutcome{}, notFoundError("No active round")
	}
	if !round.AllPromptsSubmitted {
		return VoteOutcome{}, invalidStateError("Not all prompts submitted yet")
	}
	if round.SelectedPromptPlayerID != "" {
		return VoteOutcome{}, invalidStateError("Round has ended")
	}

	p := r.player(voterID)
	if p == nil {
		return VoteOutcome{}, notFoundError("player not found")
	}
	if p.IsHost {
		return VoteOutcome{}, invalidStateError("Host cannot vote")
	}
	if voterID == round.ActorID {
		return VoteOutcome{}, invalidStateError("Actor cannot vote")
	}
	if voterID == promptPlayerID {
		return VoteOutcome{}, invalidStateError("Cannot vote for your own prompt")
	}
	if _, ok := round.prompts[promptPlayerID]; !ok {
		return VoteOutcome{}, notFoundError("Invalid prompt")
	}

	round.setVote(voterID, promptPlayerID)

	if !r.allSubmittedLocked(round.votes) {
		return VoteOutcome{}, nil
	}

	result := r.tallyLocked()

	return VoteOutcome{Selected: &result}, nil
}

// allSubmittedLocked reports whether every non-host, non-actor player is a
// key of entries.
func (r *Room) allSubmittedLocked(entries map[string]string) bool {
	for _, p := range r.Players {
		if p.IsHost || p.ID == r.CurrentRound.ActorID {
			continue
		}
		if _, ok := entries[p.ID]; !ok {
			return false
		}
	}
	return true
}

// tallyLocked picks the winning prompt. Votes are scanned in insertion
// order and a prompt only takes the lead by strictly exceeding the best
// count so far, so the earliest prompt to reach the maximum wins ties.
// With no votes the first submitted prompt wins.
func (r *Room) tallyLocked() TallyResult {
	round := r.CurrentRound

	counts := make(map[string]int, len(round.prompts))
	winner, best := "", 0

	for _, voterID := range round.voteOrder {
		target := round.votes[voterID]
		counts[target]++
		if counts[target] > best {
			best = counts[target]
			winner = target
		}
	}

	if winner == "" && len(round.promptOrder) > 0 {
		winner = round.promptOrder[0]
	}

	round.SelectedPromptPlayerID = winner

	return TallyResult{
		PromptPlayerID: winner,
		PromptText:     round.prompts[winner],
		Votes:          best,
		PlayerName:     r.playerName(winner),
		ActorID:        round.ActorID,
		ActorName:      r.playerName(round.ActorID),
		Topic:          round.Topic,
	}
}

// roundViewLocked projects the current round. r.mu must be held and
// r.CurrentRound must be set.
func (r *Room) roundViewLocked() RoundView {
	round := r.CurrentRound

	prompts := make([]PromptView, 0, len(round.promptOrder))
	for _, playerID := range round.promptOrder {
		text := hiddenPromptText
		if round.AllPromptsSubmitted {
			text = round.prompts[playerID]
		}
		prompts = append(prompts, PromptView{
			PlayerID:   playerID,
			PlayerName: r.playerName(playerID),
			Text:       text,
			Revealed:   round.AllPromptsSubmitted,
		})
	}

	voteResults := []VoteCount{}
	if round.AllPromptsSubmitted {
		voteResults = round.voteCounts()
	}

	return RoundView{
		RoundID:                round.ID,
		ActorID:                round.ActorID,
		Topic:                  round.Topic,
		StartedAt:              round.StartedAt,
		MinCutoffAt:            round.MinCutoffAt,
		MaxEndAt:               round.MaxEndAt,
		Prompts:                prompts,
		AllPromptsSubmitted:    round.AllPromptsSubmitted,
		VoteResults:            voteResults,
		SelectedPromptPlayerID: round.SelectedPromptPlayerID,
	}
}
