/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
	"strconv"
)

// TeamDraftManager is the TeamDraft state machine: durable state lives
// in the store under the team_draft::<game_id>::… schema; the handler
// methods are pure functions of that state plus the input message.
type TeamDraftManager struct {
	store Store
	clock func() int64 // unix millis; overridable in tests
}

func NewTeamDraftManager(store Store, clock func() int64) *TeamDraftManager {
	return &TeamDraftManager{store: store, clock: clock}
}

func (m *TeamDraftManager) ModeType() GameMode {
	return TeamDraftMode
}

func tdKey(gameID string, extension ...string) (string, error) {
	b := key("team_draft").field(gameID)
	for _, e := range extension {
		b = b.field(e)
	}
	return b.finish()
}

func (m *TeamDraftManager) InitState(ctx context.Context, gameID string, host Player) error {
	state := newTeamDraftState(host.ID, 0, maxPlayers)
	return m.writeFullState(ctx, gameID, state)
}

func (m *TeamDraftManager) CleanupState(ctx context.Context, gameID string) error {
	return m.store.DeletePattern(ctx, "team_draft::"+gameID+"::*")
}

func (m *TeamDraftManager) SetGameSettings(ctx context.Context, gameID string, maxRounds int) error {
	k, err := tdKey(gameID, "max_rounds")
	if err != nil {
		return internalError(err.Error())
	}
	if err := m.store.Set(ctx, k, strconv.Itoa(maxRounds)); err != nil {
		return internalError(err.Error())
	}
	return nil
}

func (m *TeamDraftManager) GetCorrectPlayerSourceID(ctx context.Context, gameID string, msg TeamDraftMessage) (string, error) {
	switch msg.MsgType {
	case TDSetPool, TDSetCompetition, TDStartDraft, TDAwardPoint:
		k, err := tdKey(gameID, "yapper_id")
		if err != nil {
			return "", internalError(err.Error())
		}
		v, _, err := m.store.Get(ctx, k)
		if err != nil {
			return "", internalError(err.Error())
		}
		return v, nil
	case TDDraftPick:
		k, err := tdKey(gameID, "round", "current_drafter_id")
		if err != nil {
			return "", internalError(err.Error())
		}
		v, _, err := m.store.Get(ctx, k)
		if err != nil {
			return "", internalError(err.Error())
		}
		return v, nil
	case TDAwardingPhase, TDNextDrafter, TDNextRound, TDCompleteGame:
		return ServerOnlyAuthorized, nil
	default:
		return "", newAppError(ErrInvalidInput, "unknown team draft message type: "+msg.MsgType)
	}
}

func (m *TeamDraftManager) InitialState(ctx context.Context, gameID string) (*TeamDraftState, error) {
	return m.readFullState(ctx, gameID)
}

// readFullState reads every team_draft::<game_id>::* key back into a
// TeamDraftState. Missing yapper_index and max_rounds read as zero; a
// missing round reads as 1, team_size as defaultTeamSize, and phase as
// YapperChoosing.
func (m *TeamDraftManager) readFullState(ctx context.Context, gameID string) (*TeamDraftState, error) {
	get := func(ext ...string) (string, error) {
		k, err := tdKey(gameID, ext...)
		if err != nil {
			return "", err
		}
		v, _, err := m.store.Get(ctx, k)
		return v, err
	}

	yapperID, err := get("yapper_id")
	if err != nil {
		return nil, err
	}
	yapperIndexStr, err := get("yapper_index")
	if err != nil {
		return nil, err
	}
	maxRoundsStr, err := get("max_rounds")
	if err != nil {
		return nil, err
	}
	phase, err := get("phase")
	if err != nil {
		return nil, err
	}

	roundStr, err := get("round", "round")
	if err != nil {
		return nil, err
	}
	pool, err := get("round", "pool")
	if err != nil {
		return nil, err
	}
	competition, err := get("round", "competition")
	if err != nil {
		return nil, err
	}
	teamSizeStr, err := get("round", "team_size")
	if err != nil {
		return nil, err
	}
	startingDrafterID, err := get("round", "starting_drafter_id")
	if err != nil {
		return nil, err
	}
	currentDrafterID, err := get("round", "current_drafter_id")
	if err != nil {
		return nil, err
	}

	picksKey, err := tdKey(gameID, "round", "player_to_picks")
	if err != nil {
		return nil, err
	}
	picksRaw, err := m.store.HGetAll(ctx, picksKey)
	if err != nil {
		return nil, err
	}
	playerToPicks := make(map[string][]string, len(picksRaw))
	for playerID, raw := range picksRaw {
		var picks []string
		_ = json.Unmarshal([]byte(raw), &picks)
		playerToPicks[playerID] = picks
	}

	pointsKey, err := tdKey(gameID, "player_points")
	if err != nil {
		return nil, err
	}
	pointsRaw, err := m.store.HGetAll(ctx, pointsKey)
	if err != nil {
		return nil, err
	}
	playerPoints := make(map[string]int, len(pointsRaw))
	for playerID, raw := range pointsRaw {
		n, _ := strconv.Atoi(raw)
		playerPoints[playerID] = n
	}

	yapperIndex, _ := strconv.Atoi(yapperIndexStr)
	maxRounds, _ := strconv.Atoi(maxRoundsStr)
	round, _ := strconv.Atoi(roundStr)
	teamSize, _ := strconv.Atoi(teamSizeStr)
	if teamSize == 0 {
		teamSize = defaultTeamSize
	}
	if round == 0 {
		round = 1
	}
	if phase == "" {
		phase = string(PhaseYapperChoosing)
	}

	return &TeamDraftState{
		YapperID:    yapperID,
		YapperIndex: yapperIndex,
		MaxRounds:   maxRounds,
		Phase:       TeamDraftPhase(phase),
		RoundData: Round{
			Round:             round,
			Pool:              pool,
			Competition:       competition,
			TeamSize:          teamSize,
			StartingDrafterID: startingDrafterID,
			CurrentDrafterID:  currentDrafterID,
			PlayerToPicks:     playerToPicks,
		},
		PlayerPoints: playerPoints,
	}, nil
}

// writeFullState overwrites every team_draft::<game_id>::* key from a
// freshly-computed TeamDraftState — used on init and on resets.
func (m *TeamDraftManager) writeFullState(ctx context.Context, gameID string, s *TeamDraftState) error {
	set := func(value string, ext ...string) error {
		k, err := tdKey(gameID, ext...)
		if err != nil {
			return err
		}
		return m.store.Set(ctx, k, value)
	}

	if err := set(s.YapperID, "yapper_id"); err != nil {
		return err
	}
	if err := set(strconv.Itoa(s.YapperIndex), "yapper_index"); err != nil {
		return err
	}
	if err := set(strconv.Itoa(s.MaxRounds), "max_rounds"); err != nil {
		return err
	}
	if err := set(string(s.Phase), "phase"); err != nil {
		return err
	}
	if err := set(strconv.Itoa(s.RoundData.Round), "round", "round"); err != nil {
		return err
	}
	if err := set(s.RoundData.Pool, "round", "pool"); err != nil {
		return err
	}
	if err := set(s.RoundData.Competition, "round", "competition"); err != nil {
		return err
	}
	if err := set(strconv.Itoa(s.RoundData.TeamSize), "round", "team_size"); err != nil {
		return err
	}
	if err := set(s.RoundData.StartingDrafterID, "round", "starting_drafter_id"); err != nil {
		return err
	}
	if err := set(s.RoundData.CurrentDrafterID, "round", "current_drafter_id"); err != nil {
		return err
	}

	picksKey, err := tdKey(gameID, "round", "player_to_picks")
	if err != nil {
		return err
	}
	if err := m.store.Del(ctx, picksKey); err != nil {
		return err
	}
	for playerID, picks := range s.RoundData.PlayerToPicks {
		raw, _ := json.Marshal(picks)
		if err := m.store.HSet(ctx, picksKey, playerID, string(raw)); err != nil {
			return err
		}
	}

	pointsKey, err := tdKey(gameID, "player_points")
	if err != nil {
		return err
	}
	if err := m.store.Del(ctx, pointsKey); err != nil {
		return err
	}
	for playerID, points := range s.PlayerPoints {
		if err := m.store.HSet(ctx, pointsKey, playerID, strconv.Itoa(points)); err != nil {
			return err
		}
	}

	return nil
}

func playerIndex(players []Player, id string) int {
	for i, p := range players {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// HandleMessage applies one inbound TeamDraftMessage to the durable
// state and returns the batch of events to broadcast.
func (m *TeamDraftManager) HandleMessage(ctx context.Context, gameID string, players []Player, msg TeamDraftMessage) ([]GameMessage, error) {
	state, err := m.readFullState(ctx, gameID)
	if err != nil {
		return nil, internalError(err.Error())
	}

	switch msg.MsgType {
	case TDSetPool:
		state.RoundData.Pool = msg.Pool
		k, err := tdKey(gameID, "round", "pool")
		if err != nil {
			return nil, internalError(err.Error())
		}
		if err := m.store.Set(ctx, k, msg.Pool); err != nil {
			return nil, internalError(err.Error())
		}
		return []GameMessage{teamDraft(TeamDraftMessage{MsgType: TDSetPool, Pool: msg.Pool})}, nil

	case TDSetCompetition:
		state.RoundData.Competition = msg.Competition
		k, err := tdKey(gameID, "round", "competition")
		if err != nil {
			return nil, internalError(err.Error())
		}
		if err := m.store.Set(ctx, k, msg.Competition); err != nil {
			return nil, internalError(err.Error())
		}
		return []GameMessage{teamDraft(TeamDraftMessage{MsgType: TDSetCompetition, Competition: msg.Competition})}, nil

	case TDStartDraft:
		return m.handleStartDraft(ctx, gameID, players, state, msg)

	case TDDraftPick:
		return m.handleDraftPick(ctx, gameID, players, state, msg)

	case TDAwardPoint:
		return m.handleAwardPoint(ctx, gameID, players, state, msg)

	case TDAwardingPhase, TDCompleteGame, TDNextRound, TDNextDrafter:
		// Server-only outputs, never accepted as inputs; no-op.
		return nil, nil

	default:
		return nil, newAppError(ErrInvalidInput, "unknown team draft message type: "+msg.MsgType)
	}
}

func (m *TeamDraftManager) handleStartDraft(ctx context.Context, gameID string, players []Player, state *TeamDraftState, msg TeamDraftMessage) ([]GameMessage, error) {
	state.Phase = PhaseDrafting
	state.RoundData.StartingDrafterID = msg.StartingDrafterID
	state.RoundData.CurrentDrafterID = msg.StartingDrafterID
	state.RoundData.PlayerToPicks = make(map[string][]string)
	for _, p := range players {
		if p.ID != state.YapperID {
			state.RoundData.PlayerToPicks[p.ID] = []string{}
		}
	}
	if state.PlayerPoints == nil {
		state.PlayerPoints = make(map[string]int)
	}
	for _, p := range players {
		if _, ok := state.PlayerPoints[p.ID]; !ok {
			state.PlayerPoints[p.ID] = 0
		}
	}

	if err := m.writeFullState(ctx, gameID, state); err != nil {
		return nil, internalError(err.Error())
	}

	return []GameMessage{
		haltTimer(m.clock()+3000, ReasonYapperStartingDraft),
		teamDraft(TeamDraftMessage{MsgType: TDStartDraft, StartingDrafterID: msg.StartingDrafterID}),
	}, nil
}

func (m *TeamDraftManager) handleDraftPick(ctx context.Context, gameID string, players []Player, state *TeamDraftState, msg TeamDraftMessage) ([]GameMessage, error) {
	if state.RoundData.PlayerToPicks == nil {
		state.RoundData.PlayerToPicks = make(map[string][]string)
	}
	state.RoundData.PlayerToPicks[msg.DrafterID] = append(state.RoundData.PlayerToPicks[msg.DrafterID], msg.Pick)

	picksKey, err := tdKey(gameID, "round", "player_to_picks")
	if err != nil {
		return nil, internalError(err.Error())
	}
	raw, _ := json.Marshal(state.RoundData.PlayerToPicks[msg.DrafterID])
	if err := m.store.HSet(ctx, picksKey, msg.DrafterID, string(raw)); err != nil {
		return nil, internalError(err.Error())
	}

	messages := []GameMessage{
		teamDraft(TeamDraftMessage{MsgType: TDDraftPick, DrafterID: msg.DrafterID, Pick: msg.Pick}),
	}

	allComplete := true
	for _, p := range players {
		if p.ID == state.YapperID {
			continue
		}
		if len(state.RoundData.PlayerToPicks[p.ID]) < state.RoundData.TeamSize {
			allComplete = false
			break
		}
	}

	if allComplete {
		state.Phase = PhaseAwarding
		if err := m.setPhase(ctx, gameID, state.Phase); err != nil {
			return nil, err
		}
		messages = append(messages,
			haltTimer(m.clock()+3000, ReasonDraftPickShowcase),
			haltTimer(m.clock()+8000, ReasonTransitionToAwarding),
			teamDraft(TeamDraftMessage{MsgType: TDAwardingPhase}),
		)
		return messages, nil
	}

	idx := playerIndex(players, state.RoundData.CurrentDrafterID)
	if idx >= 0 && len(players) > 0 {
		next := (idx + 1) % len(players)
		for players[next].ID == state.YapperID {
			next = (next + 1) % len(players)
		}
		state.RoundData.CurrentDrafterID = players[next].ID
		k, err := tdKey(gameID, "round", "current_drafter_id")
		if err != nil {
			return nil, internalError(err.Error())
		}
		if err := m.store.Set(ctx, k, state.RoundData.CurrentDrafterID); err != nil {
			return nil, internalError(err.Error())
		}

		messages = append(messages,
			haltTimer(m.clock()+3000, ReasonDraftPickShowcase),
			teamDraft(TeamDraftMessage{MsgType: TDNextDrafter, DrafterID: state.RoundData.CurrentDrafterID}),
		)
	}

	return messages, nil
}

func (m *TeamDraftManager) handleAwardPoint(ctx context.Context, gameID string, players []Player, state *TeamDraftState, msg TeamDraftMessage) ([]GameMessage, error) {
	if state.PlayerPoints == nil {
		state.PlayerPoints = make(map[string]int)
	}
	state.PlayerPoints[msg.PlayerID]++

	pointsKey, err := tdKey(gameID, "player_points")
	if err != nil {
		return nil, internalError(err.Error())
	}
	if err := m.store.HSet(ctx, pointsKey, msg.PlayerID, strconv.Itoa(state.PlayerPoints[msg.PlayerID])); err != nil {
		return nil, internalError(err.Error())
	}

	messages := []GameMessage{
		teamDraft(TeamDraftMessage{MsgType: TDAwardPoint, PlayerID: msg.PlayerID}),
	}

	if state.RoundData.Round >= state.MaxRounds {
		finalPoints := make(map[string]int, len(state.PlayerPoints))
		for k, v := range state.PlayerPoints {
			finalPoints[k] = v
		}

		fresh := newTeamDraftState(state.YapperID, state.YapperIndex, state.MaxRounds)
		fresh.Phase = PhaseYapperChoosing
		if err := m.writeFullState(ctx, gameID, fresh); err != nil {
			return nil, internalError(err.Error())
		}

		messages = append(messages, teamDraft(TeamDraftMessage{
			MsgType:      TDCompleteGame,
			PlayerPoints: finalPoints,
		}))
		return messages, nil
	}

	nextYapperIndex := (state.YapperIndex + 1) % len(players)
	nextYapperID := state.YapperID
	if nextYapperIndex < len(players) {
		nextYapperID = players[nextYapperIndex].ID
	}

	state.YapperID = nextYapperID
	state.YapperIndex = nextYapperIndex
	state.Phase = PhaseYapperChoosing
	state.RoundData.Round++
	state.RoundData.Pool = ""
	state.RoundData.Competition = ""
	state.RoundData.TeamSize = defaultTeamSize
	state.RoundData.PlayerToPicks = make(map[string][]string)
	state.RoundData.StartingDrafterID = ""
	state.RoundData.CurrentDrafterID = ""
	state.PlayerPoints = make(map[string]int)

	if err := m.writeFullState(ctx, gameID, state); err != nil {
		return nil, internalError(err.Error())
	}

	messages = append(messages,
		haltTimer(m.clock()+8000, ReasonWaitingForNextRound),
		teamDraft(TeamDraftMessage{
			MsgType:     TDNextRound,
			YapperID:    state.YapperID,
			YapperIndex: state.YapperIndex,
			Round:       state.RoundData.Round,
			TeamSize:    state.RoundData.TeamSize,
		}),
	)
	return messages, nil
}

func (m *TeamDraftManager) setPhase(ctx context.Context, gameID string, phase TeamDraftPhase) error {
	k, err := tdKey(gameID, "phase")
	if err != nil {
		return internalError(err.Error())
	}
	if err := m.store.Set(ctx, k, string(phase)); err != nil {
		return internalError(err.Error())
	}
	return nil
}
