package main

import (
	"context"
	"testing"
)

func fixedClock(ms int64) func() int64 {
	return func() int64 { return ms }
}

func newTestManager(t *testing.T) (*TeamDraftManager, Store) {
	t.Helper()
	store := newMemStore()
	return NewTeamDraftManager(store, fixedClock(1000)), store
}

func TestTeamDraftInitAndInitialState(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	host := Player{ID: "p1", Username: "alice"}
	if err := mgr.InitState(ctx, "g1", host); err != nil {
		t.Fatalf("InitState: %v", err)
	}

	state, err := mgr.InitialState(ctx, "g1")
	if err != nil {
		t.Fatalf("InitialState: %v", err)
	}
	if state.YapperID != "p1" {
		t.Fatalf("expected yapper p1, got %q", state.YapperID)
	}
	if state.Phase != PhaseYapperChoosing {
		t.Fatalf("expected initial phase YapperChoosing, got %q", state.Phase)
	}
	if state.RoundData.Round != 1 {
		t.Fatalf("expected round 1, got %d", state.RoundData.Round)
	}
	if state.RoundData.TeamSize != defaultTeamSize {
		t.Fatalf("expected default team size, got %d", state.RoundData.TeamSize)
	}
}

func TestTeamDraftSetPoolAndCompetition(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()
	players := []Player{{ID: "p1"}, {ID: "p2"}, {ID: "p3"}}
	if err := mgr.InitState(ctx, "g1", players[0]); err != nil {
		t.Fatalf("InitState: %v", err)
	}

	events, err := mgr.HandleMessage(ctx, "g1", players, TeamDraftMessage{MsgType: TDSetPool, Pool: "movies"})
	if err != nil {
		t.Fatalf("SetPool: %v", err)
	}
	if len(events) != 1 || events[0].TeamDraft == nil || events[0].TeamDraft.Pool != "movies" {
		t.Fatalf("unexpected SetPool events: %+v", events)
	}

	events, err = mgr.HandleMessage(ctx, "g1", players, TeamDraftMessage{MsgType: TDSetCompetition, Competition: "best soundtrack"})
	if err != nil {
		t.Fatalf("SetCompetition: %v", err)
	}
	if len(events) != 1 || events[0].TeamDraft.Competition != "best soundtrack" {
		t.Fatalf("unexpected SetCompetition events: %+v", events)
	}

	state, err := mgr.InitialState(ctx, "g1")
	if err != nil {
		t.Fatalf("InitialState: %v", err)
	}
	if state.RoundData.Pool != "movies" || state.RoundData.Competition != "best soundtrack" {
		t.Fatalf("pool/competition did not persist: %+v", state.RoundData)
	}
}

func TestTeamDraftStartDraftEmitsHaltTimer(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()
	players := []Player{{ID: "yapper"}, {ID: "p2"}, {ID: "p3"}}
	if err := mgr.InitState(ctx, "g1", players[0]); err != nil {
		t.Fatalf("InitState: %v", err)
	}

	events, err := mgr.HandleMessage(ctx, "g1", players, TeamDraftMessage{MsgType: TDStartDraft, StartingDrafterID: "p2"})
	if err != nil {
		t.Fatalf("StartDraft: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events (halt timer + start draft), got %d: %+v", len(events), events)
	}
	if events[0].Type != MsgHaltTimer || events[0].Reason.TeamDraft != ReasonYapperStartingDraft {
		t.Fatalf("expected YapperStartingDraft halt timer first, got %+v", events[0])
	}
	if events[0].EndTimestampMs != 1000+3000 {
		t.Fatalf("expected halt timer at +3000ms, got %d", events[0].EndTimestampMs)
	}
	if events[1].TeamDraft == nil || events[1].TeamDraft.MsgType != TDStartDraft {
		t.Fatalf("expected StartDraft echo second, got %+v", events[1])
	}

	state, err := mgr.InitialState(ctx, "g1")
	if err != nil {
		t.Fatalf("InitialState: %v", err)
	}
	if state.Phase != PhaseDrafting {
		t.Fatalf("expected Drafting phase, got %q", state.Phase)
	}
	if state.RoundData.CurrentDrafterID != "p2" {
		t.Fatalf("expected current drafter p2, got %q", state.RoundData.CurrentDrafterID)
	}
	if _, yapperHasPicks := state.RoundData.PlayerToPicks["yapper"]; yapperHasPicks {
		t.Fatalf("yapper should not have a picks slot")
	}
	if _, ok := state.RoundData.PlayerToPicks["p2"]; !ok {
		t.Fatalf("expected p2 to have an empty picks slot")
	}
}

func TestTeamDraftDraftPickRotatesSkippingYapper(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()
	players := []Player{{ID: "yapper"}, {ID: "p2"}, {ID: "p3"}}
	_ = mgr.InitState(ctx, "g1", players[0])
	_, err := mgr.HandleMessage(ctx, "g1", players, TeamDraftMessage{MsgType: TDStartDraft, StartingDrafterID: "p3"})
	if err != nil {
		t.Fatalf("StartDraft: %v", err)
	}

	// p3 is last in turn order; the next slot after p3 is the yapper,
	// who must be skipped, landing on p2.
	events, err := mgr.HandleMessage(ctx, "g1", players, TeamDraftMessage{MsgType: TDDraftPick, DrafterID: "p3", Pick: "alice"})
	if err != nil {
		t.Fatalf("DraftPick: %v", err)
	}

	var sawNextDrafter bool
	for _, e := range events {
		if e.TeamDraft != nil && e.TeamDraft.MsgType == TDNextDrafter {
			sawNextDrafter = true
			if e.TeamDraft.DrafterID != "p2" {
				t.Fatalf("expected rotation to skip yapper straight to p2, got %q", e.TeamDraft.DrafterID)
			}
		}
	}
	if !sawNextDrafter {
		t.Fatalf("expected a NextDrafter event, got %+v", events)
	}
}

func TestTeamDraftCompleteGameResetsState(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()
	players := []Player{{ID: "yapper"}, {ID: "p2"}}
	_ = mgr.InitState(ctx, "g1", players[0])
	if err := mgr.SetGameSettings(ctx, "g1", 1); err != nil {
		t.Fatalf("SetGameSettings: %v", err)
	}

	events, err := mgr.HandleMessage(ctx, "g1", players, TeamDraftMessage{MsgType: TDAwardPoint, PlayerID: "p2"})
	if err != nil {
		t.Fatalf("AwardPoint: %v", err)
	}

	var complete *TeamDraftMessage
	for _, e := range events {
		if e.TeamDraft != nil && e.TeamDraft.MsgType == TDCompleteGame {
			complete = e.TeamDraft
		}
	}
	if complete == nil {
		t.Fatalf("expected CompleteGame event when round >= max_rounds, got %+v", events)
	}
	if complete.PlayerPoints["p2"] != 1 {
		t.Fatalf("expected p2's final score to be 1, got %d", complete.PlayerPoints["p2"])
	}

	state, err := mgr.InitialState(ctx, "g1")
	if err != nil {
		t.Fatalf("InitialState: %v", err)
	}
	if state.Phase != PhaseYapperChoosing {
		t.Fatalf("expected reset to YapperChoosing after completion, got %q", state.Phase)
	}
	if len(state.PlayerPoints) != 0 {
		t.Fatalf("expected player points cleared after completion, got %+v", state.PlayerPoints)
	}
}

func TestTeamDraftAwardPointAdvancesRoundWhenNotComplete(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()
	players := []Player{{ID: "yapper"}, {ID: "p2"}, {ID: "p3"}}
	_ = mgr.InitState(ctx, "g1", players[0])
	if err := mgr.SetGameSettings(ctx, "g1", 3); err != nil {
		t.Fatalf("SetGameSettings: %v", err)
	}

	events, err := mgr.HandleMessage(ctx, "g1", players, TeamDraftMessage{MsgType: TDAwardPoint, PlayerID: "p2"})
	if err != nil {
		t.Fatalf("AwardPoint: %v", err)
	}

	var nextRound *TeamDraftMessage
	for _, e := range events {
		if e.TeamDraft != nil && e.TeamDraft.MsgType == TDNextRound {
			nextRound = e.TeamDraft
		}
	}
	if nextRound == nil {
		t.Fatalf("expected NextRound event, got %+v", events)
	}
	if nextRound.YapperID != "p2" {
		t.Fatalf("expected yapper to rotate to p2, got %q", nextRound.YapperID)
	}
	if nextRound.Round != 2 {
		t.Fatalf("expected round 2, got %d", nextRound.Round)
	}

	state, err := mgr.InitialState(ctx, "g1")
	if err != nil {
		t.Fatalf("InitialState: %v", err)
	}
	if state.YapperID != "p2" || state.YapperIndex != 1 {
		t.Fatalf("expected yapper rotated to index 1 (p2), got id=%q index=%d", state.YapperID, state.YapperIndex)
	}
}

func TestTeamDraftGetCorrectPlayerSourceID(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()
	_ = mgr.InitState(ctx, "g1", Player{ID: "yapper"})

	id, err := mgr.GetCorrectPlayerSourceID(ctx, "g1", TeamDraftMessage{MsgType: TDSetPool})
	if err != nil {
		t.Fatalf("GetCorrectPlayerSourceID(SetPool): %v", err)
	}
	if id != "yapper" {
		t.Fatalf("expected yapper to own SetPool, got %q", id)
	}

	id, err = mgr.GetCorrectPlayerSourceID(ctx, "g1", TeamDraftMessage{MsgType: TDCompleteGame})
	if err != nil {
		t.Fatalf("GetCorrectPlayerSourceID(CompleteGame): %v", err)
	}
	if id != ServerOnlyAuthorized {
		t.Fatalf("expected CompleteGame to be server-only, got %q", id)
	}
}
