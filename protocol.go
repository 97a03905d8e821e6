/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import "encoding/json"

// Inbound envelope types.
const (
	msgAuth         = "auth"
	msgHostAction   = "host_action"
	msgSubmitPrompt = "submit_prompt"
	msgSubmitVote   = "submit_vote"
)

// Outbound envelope types.
const (
	msgAuthOK         = "auth_ok"
	msgAuthError      = "auth_error"
	msgRoundStarted   = "round_started"
	msgPromptAccepted = "prompt_accepted"
	msgPromptsUpdate  = "prompts_update"
	msgVotingStarted  = "voting_started"
	msgVoteAccepted   = "vote_accepted"
	msgVoteUpdate     = "vote_update"
	msgPromptSelected = "prompt_selected"
	msgRoomState      = "room_state"
	msgError          = "error"
)

const actionStartRound = "start_round"

// Envelope is every message on the wire, in both directions.
type Envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type inboundEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type authPayload struct {
	Token string `json:"token"`
}

type hostActionPayload struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type submitPromptPayload struct {
	Prompt string `json:"prompt"`
}

type submitVotePayload struct {
	PromptPlayerID string `json:"promptPlayerId"`
}

type AuthOK struct {
	PlayerID  string    `json:"playerId"`
	RoomState RoomState `json:"roomState"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}

type Accepted struct {
	Success bool `json:"success"`
}

func envelope(msgType string, payload any) Envelope {
	return Envelope{Type: msgType, Payload: payload}
}

func errorEnvelope(msgType string, err error) Envelope {
	return envelope(msgType, ErrorPayload{Error: err.Error()})
}

// decodePayload unmarshals an optional payload. A missing payload decodes
// to the zero value.
func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return validationError("invalid payload")
	}
	return nil
}
