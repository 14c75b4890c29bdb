/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import "context"

// GameModeManager is the pluggable mode interface the Serializer
// depends on, rather than a concrete mode. TeamDraftManager is the
// only implementation this service ships.
type GameModeManager interface {
	InitState(ctx context.Context, gameID string, host Player) error
	CleanupState(ctx context.Context, gameID string) error

	SetGameSettings(ctx context.Context, gameID string, maxRounds int) error

	GetCorrectPlayerSourceID(ctx context.Context, gameID string, msg TeamDraftMessage) (string, error)
	HandleMessage(ctx context.Context, gameID string, players []Player, msg TeamDraftMessage) ([]GameMessage, error)

	InitialState(ctx context.Context, gameID string) (*TeamDraftState, error)

	ModeType() GameMode
}
