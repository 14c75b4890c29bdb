package main

import (
	"context"
	"testing"
)

func newTestRegistry(t *testing.T) (*Registry, Store) {
	t.Helper()
	store := newMemStore()
	mode := NewTeamDraftManager(store, fixedClock(1000))
	router := NewRouter(store, fixedClock(1000))
	registry := NewRegistry(store, mode, router, fixedClock(1000))
	return registry, store
}

func TestCreateGameAssignsHostAndCode(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	game, playerID, authToken, err := registry.CreateGame(ctx, "alice")
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	if game.HostID != playerID {
		t.Fatalf("expected creator to be host, got host=%q player=%q", game.HostID, playerID)
	}
	if len(game.Code) != gameCodeLength {
		t.Fatalf("expected a %d-character code, got %q", gameCodeLength, game.Code)
	}
	if authToken == "" {
		t.Fatalf("expected a non-empty auth token")
	}
	if len(game.Players) != 1 || game.Players[0].Username != "alice" {
		t.Fatalf("unexpected players: %+v", game.Players)
	}

	ok, err := registry.IsAuthorized(ctx, playerID, authToken)
	if err != nil {
		t.Fatalf("IsAuthorized: %v", err)
	}
	if !ok {
		t.Fatalf("expected the issued token to authorize the host")
	}
}

func TestCreateGameRejectsEmptyUsername(t *testing.T) {
	registry, _ := newTestRegistry(t)
	if _, _, _, err := registry.CreateGame(context.Background(), ""); err == nil {
		t.Fatalf("expected an error for an empty username")
	}
}

func TestJoinGameByCode(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	game, _, _, err := registry.CreateGame(ctx, "alice")
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}

	joined, playerID, _, err := registry.JoinGameByCode(ctx, game.Code, "bob")
	if err != nil {
		t.Fatalf("JoinGameByCode: %v", err)
	}
	if len(joined.Players) != 2 {
		t.Fatalf("expected 2 players after join, got %d", len(joined.Players))
	}
	if joined.Players[1].ID != playerID || joined.Players[1].Username != "bob" {
		t.Fatalf("unexpected second player: %+v", joined.Players[1])
	}
}

func TestJoinGameByCodeRejectsUnknownCode(t *testing.T) {
	registry, _ := newTestRegistry(t)
	if _, _, _, err := registry.JoinGameByCode(context.Background(), "NOTREAL", "bob"); err == nil {
		t.Fatalf("expected an error for an unknown game code")
	} else if appErr, ok := err.(*AppError); !ok || appErr.Code != ErrInvalidGameCode {
		t.Fatalf("expected ErrInvalidGameCode, got %v", err)
	}
}

func TestJoinGameByCodeRejectsDuplicateUsername(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()
	game, _, _, _ := registry.CreateGame(ctx, "alice")

	if _, _, _, err := registry.JoinGameByCode(ctx, game.Code, "alice"); err == nil {
		t.Fatalf("expected an error for a duplicate username")
	} else if appErr, ok := err.(*AppError); !ok || appErr.Code != ErrUsernameTaken {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestJoinGameByCodeRejectsFullGame(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()
	game, _, _, _ := registry.CreateGame(ctx, "host")

	for i := 1; i < maxPlayers; i++ {
		if _, _, _, err := registry.JoinGame(ctx, game.ID, "player"+string(rune('a'+i))); err != nil {
			t.Fatalf("JoinGame #%d: %v", i, err)
		}
	}

	if _, _, _, err := registry.JoinGame(ctx, game.ID, "onemore"); err == nil {
		t.Fatalf("expected an error once the game is full")
	} else if appErr, ok := err.(*AppError); !ok || appErr.Code != ErrGameFull {
		t.Fatalf("expected ErrGameFull, got %v", err)
	}
}

func TestRemovePlayerReassignsHost(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()
	game, hostID, _, _ := registry.CreateGame(ctx, "alice")
	_, bobID, _, err := registry.JoinGame(ctx, game.ID, "bob")
	if err != nil {
		t.Fatalf("JoinGame: %v", err)
	}

	updated, err := registry.RemovePlayer(ctx, game.ID, hostID)
	if err != nil {
		t.Fatalf("RemovePlayer: %v", err)
	}
	if updated == nil {
		t.Fatalf("expected a non-nil game with one player remaining")
	}
	if updated.HostID != bobID {
		t.Fatalf("expected host to transfer to remaining player, got %q", updated.HostID)
	}

	final, err := registry.RemovePlayer(ctx, game.ID, bobID)
	if err != nil {
		t.Fatalf("RemovePlayer (last player): %v", err)
	}
	if final != nil {
		t.Fatalf("expected nil once the last player leaves, got %+v", final)
	}
}

func TestGetAllGames(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	g1, _, _, _ := registry.CreateGame(ctx, "alice")
	g2, _, _, _ := registry.CreateGame(ctx, "bob")

	games, err := registry.GetAllGames(ctx)
	if err != nil {
		t.Fatalf("GetAllGames: %v", err)
	}
	if len(games) != 2 {
		t.Fatalf("expected 2 games, got %d", len(games))
	}

	seen := map[string]bool{}
	for _, g := range games {
		seen[g.ID] = true
	}
	if !seen[g1.ID] || !seen[g2.ID] {
		t.Fatalf("expected both created games to be listed, got %+v", games)
	}
}

func TestGetGameNotFound(t *testing.T) {
	registry, _ := newTestRegistry(t)
	if _, err := registry.GetGame(context.Background(), "does-not-exist"); err == nil {
		t.Fatalf("expected an error for a missing game")
	} else if appErr, ok := err.(*AppError); !ok || appErr.Code != ErrGameNotFound {
		t.Fatalf("expected ErrGameNotFound, got %v", err)
	}
}
