/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

// Player is a single participant, visible on the wire in Game.Players.
type Player struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Game is the externally-visible shape of a game; everything here also
// lives in the store under the "game" schema (see keybuilder.go).
type Game struct {
	ID         string   `json:"id"`
	Code       string   `json:"code"`
	HostID     string   `json:"host_id"`
	Players    []Player `json:"players"`
	MaxPlayers int      `json:"max_players"`
	CreatedAt  int64    `json:"created_at"`
}

const maxPlayers = 8

// GameMode names a pluggable game-mode implementation. TeamDraft is the
// only mode this service ships, but the wire type carries a tag so a
// second mode can be added without breaking existing clients.
type GameMode string

const TeamDraftMode GameMode = "TeamDraft"

// TeamDraftTimerReason enumerates every pacing reason TeamDraft can name
// in a HaltTimer, including the ones no transition constructs today.
type TeamDraftTimerReason string

const (
	ReasonWaitingForPoolAndCompetition TeamDraftTimerReason = "WaitingForPoolAndCompetition"
	ReasonYapperStartingDraft          TeamDraftTimerReason = "YapperStartingDraft"
	ReasonDraftPickShowcase            TeamDraftTimerReason = "DraftPickShowcase"
	ReasonWaitingForDraftPick          TeamDraftTimerReason = "WaitingForDraftPick"
	ReasonTransitionToAwarding         TeamDraftTimerReason = "TransitionToAwarding"
	ReasonWaitingForNextRound          TeamDraftTimerReason = "WaitingForNextRound"
)

// TimerReason wraps a mode-specific reason behind a discriminator, so a
// future second mode can add its own HaltTimer reasons.
type TimerReason struct {
	Mode      GameMode             `json:"mode"`
	TeamDraft TeamDraftTimerReason `json:"team_draft,omitempty"`
}

// TeamDraftPhase is the current stage of a round.
type TeamDraftPhase string

const (
	PhaseYapperChoosing TeamDraftPhase = "YapperChoosing"
	PhaseDrafting       TeamDraftPhase = "Drafting"
	PhaseAwarding       TeamDraftPhase = "Awarding"
	PhaseComplete       TeamDraftPhase = "Complete"
)

const defaultTeamSize = 2

// ServerOnlyAuthorized is the sentinel actor id required for
// server-emitted TeamDraft messages; no client auth token matches it.
const ServerOnlyAuthorized = "00000000-0000-0000-0000-000000000000"

// Round is the current round's mutable data.
type Round struct {
	Round             int                 `json:"round"`
	Pool              string              `json:"pool"`
	Competition       string              `json:"competition"`
	TeamSize          int                 `json:"team_size"`
	StartingDrafterID string              `json:"starting_drafter_id"`
	CurrentDrafterID  string              `json:"current_drafter_id"`
	PlayerToPicks     map[string][]string `json:"player_to_picks"`
}

// TeamDraftState is the full durable+public state of one game's TeamDraft
// mode; this is also what GameStarted.InitialTeamDraftState carries.
type TeamDraftState struct {
	YapperID      string         `json:"yapper_id"`
	YapperIndex   int            `json:"yapper_index"`
	MaxRounds     int            `json:"max_rounds"`
	Phase         TeamDraftPhase `json:"phase"`
	RoundData     Round          `json:"round_data"`
	PlayerPoints  map[string]int `json:"player_points"`
}

func newTeamDraftState(yapperID string, yapperIndex, maxRounds int) *TeamDraftState {
	return &TeamDraftState{
		YapperID:    yapperID,
		YapperIndex: yapperIndex,
		MaxRounds:   maxRounds,
		Phase:       PhaseYapperChoosing,
		RoundData: Round{
			Round:         1,
			TeamSize:      defaultTeamSize,
			PlayerToPicks: make(map[string][]string),
		},
		PlayerPoints: make(map[string]int),
	}
}

// TeamDraftMessage is the flattened tagged union of every TeamDraft wire
// message, discriminated by MsgType. Only the fields relevant to a given
// MsgType are populated; the rest are omitted on encode.
type TeamDraftMessage struct {
	MsgType string `json:"msg_type"`

	Pool        string `json:"pool,omitempty"`
	Competition string `json:"competition,omitempty"`

	StartingDrafterID string `json:"starting_drafter_id,omitempty"`

	DrafterID string `json:"drafter_id,omitempty"`
	Pick      string `json:"pick,omitempty"`

	PlayerID string `json:"player_id,omitempty"`

	YapperID    string `json:"yapper_id,omitempty"`
	YapperIndex int    `json:"yapper_index,omitempty"`
	Round       int    `json:"round,omitempty"`
	TeamSize    int    `json:"team_size,omitempty"`

	PlayerPoints map[string]int `json:"player_points,omitempty"`
}

const (
	TDSetPool        = "SetPool"
	TDSetCompetition = "SetCompetition"
	TDStartDraft     = "StartDraft"
	TDDraftPick      = "DraftPick"
	TDNextDrafter    = "NextDrafter"
	TDAwardingPhase  = "AwardingPhase"
	TDAwardPoint     = "AwardPoint"
	TDNextRound      = "NextRound"
	TDCompleteGame   = "CompleteGame"
)

// GameMessage is the flattened tagged union of every outbound game
// event: one struct, one discriminator field, omitempty on everything
// else.
type GameMessage struct {
	Type string `json:"type"`

	Username string `json:"username,omitempty"`
	PlayerID string `json:"player_id,omitempty"`

	GameType              GameMode        `json:"game_type,omitempty"`
	InitialTeamDraftState *TeamDraftState `json:"initial_team_draft_state,omitempty"`

	Message string `json:"message,omitempty"`

	EndTimestampMs int64       `json:"end_timestamp_ms,omitempty"`
	Reason         TimerReason `json:"reason,omitempty"`

	TeamDraft *TeamDraftMessage `json:"team_draft,omitempty"`
}

const (
	MsgPlayerJoined       = "PlayerJoined"
	MsgPlayerLeft         = "PlayerLeft"
	MsgPlayerDisconnected = "PlayerDisconnected"
	MsgGameStarted        = "GameStarted"
	MsgChatMessage        = "ChatMessage"
	MsgHaltTimer          = "HaltTimer"
	MsgBackToLobby        = "BackToLobby"
	MsgTeamDraft          = "TeamDraft"
)

func playerJoined(username, playerID string) GameMessage {
	return GameMessage{Type: MsgPlayerJoined, Username: username, PlayerID: playerID}
}

func playerLeft(username, playerID string) GameMessage {
	return GameMessage{Type: MsgPlayerLeft, Username: username, PlayerID: playerID}
}

func playerDisconnected(username, playerID string) GameMessage {
	return GameMessage{Type: MsgPlayerDisconnected, Username: username, PlayerID: playerID}
}

func chatMessage(username, message string) GameMessage {
	return GameMessage{Type: MsgChatMessage, Username: username, Message: message}
}

func gameStarted(mode GameMode, state *TeamDraftState) GameMessage {
	return GameMessage{Type: MsgGameStarted, GameType: mode, InitialTeamDraftState: state}
}

func haltTimer(endMs int64, reason TeamDraftTimerReason) GameMessage {
	return GameMessage{
		Type:           MsgHaltTimer,
		EndTimestampMs: endMs,
		Reason:         TimerReason{Mode: TeamDraftMode, TeamDraft: reason},
	}
}

func backToLobby() GameMessage {
	return GameMessage{Type: MsgBackToLobby}
}

func teamDraft(inner TeamDraftMessage) GameMessage {
	return GameMessage{Type: MsgTeamDraft, TeamDraft: &inner}
}

// WebSocketMessage is the envelope every inbound/outbound frame is
// wrapped in. AuthToken is stripped before any outbound broadcast.
type WebSocketMessage struct {
	GameID    string      `json:"game_id"`
	PlayerID  string      `json:"player_id"`
	AuthToken string      `json:"auth_token,omitempty"`
	Message   GameMessage `json:"message"`
}

func clientSafe(msg WebSocketMessage) WebSocketMessage {
	msg.AuthToken = ""
	return msg
}

// BroadcastChunk is the unit of cross-node delivery published on
// game_channel::<game_id>.
type BroadcastChunk struct {
	GameID   string        `json:"game_id"`
	PlayerID string        `json:"player_id"`
	Messages []GameMessage `json:"messages"`
}
