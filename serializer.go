/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"sync"
)

// serializerQueue bounds each game's inbound queue.
const serializerQueue = 100

// Serializer ensures every inbound message for one game passes through
// exactly one goroutine, so TeamDraft transitions and lobby events
// never race each other.
type Serializer struct {
	gameID string

	registry *Registry
	mode     GameModeManager
	router   *Router

	inbox  chan WebSocketMessage
	cancel context.CancelFunc
	done   chan struct{}
}

func newSerializer(ctx context.Context, gameID string, registry *Registry, mode GameModeManager, router *Router) *Serializer {
	procCtx, cancel := context.WithCancel(ctx)
	s := &Serializer{
		gameID:   gameID,
		registry: registry,
		mode:     mode,
		router:   router,
		inbox:    make(chan WebSocketMessage, serializerQueue),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go s.run(procCtx)
	return s
}

// Enqueue submits msg for processing, dropping it best-effort if the
// queue is saturated.
func (s *Serializer) Enqueue(msg WebSocketMessage) {
	select {
	case s.inbox <- msg:
	default:
	}
}

func (s *Serializer) Stop() {
	s.cancel()
}

func (s *Serializer) run(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-s.inbox:
			s.process(ctx, msg)
		}
	}
}

func (s *Serializer) process(ctx context.Context, ws WebSocketMessage) {
	switch ws.Message.Type {
	case MsgPlayerLeft:
		s.handlePlayerLeft(ctx, ws)
	case MsgBackToLobby:
		s.handleBackToLobby(ctx, ws)
	case MsgGameStarted:
		s.handleGameStarted(ctx, ws)
	case MsgTeamDraft:
		s.handleTeamDraft(ctx, ws)
	default:
		// Unrecognized or server-only message kinds from a client are
		// silently dropped; there is no error reply on the ingress path.
	}
}

func (s *Serializer) publish(ctx context.Context, playerID string, messages []GameMessage) {
	if len(messages) == 0 {
		return
	}
	_ = s.router.Publish(ctx, BroadcastChunk{GameID: s.gameID, PlayerID: playerID, Messages: messages})
}

func (s *Serializer) handlePlayerLeft(ctx context.Context, ws WebSocketMessage) {
	game, err := s.registry.RemovePlayer(ctx, s.gameID, ws.PlayerID)
	if err != nil {
		return
	}
	s.publish(ctx, "", []GameMessage{playerLeft("", ws.PlayerID)})
	if game == nil || len(game.Players) == 0 {
		s.registry.ScheduleCleanup(s.gameID)
	}
}

func (s *Serializer) handleBackToLobby(ctx context.Context, ws WebSocketMessage) {
	game, err := s.registry.GetGame(ctx, s.gameID)
	if err != nil {
		return
	}
	if ws.PlayerID != game.HostID {
		return
	}
	if err := s.mode.CleanupState(ctx, s.gameID); err != nil {
		return
	}
	if err := s.mode.InitState(ctx, s.gameID, Player{ID: game.HostID}); err != nil {
		return
	}
	s.publish(ctx, "", []GameMessage{backToLobby()})
}

func (s *Serializer) handleGameStarted(ctx context.Context, ws WebSocketMessage) {
	game, err := s.registry.GetGame(ctx, s.gameID)
	if err != nil {
		return
	}
	if ws.PlayerID != game.HostID {
		return
	}
	if err := s.mode.SetGameSettings(ctx, s.gameID, len(game.Players)); err != nil {
		return
	}
	state, err := s.mode.InitialState(ctx, s.gameID)
	if err != nil {
		return
	}
	s.publish(ctx, "", []GameMessage{gameStarted(s.mode.ModeType(), state)})
}

func (s *Serializer) handleTeamDraft(ctx context.Context, ws WebSocketMessage) {
	if ws.Message.TeamDraft == nil {
		return
	}

	game, err := s.registry.GetGame(ctx, s.gameID)
	if err != nil {
		return
	}

	authorizedID, err := s.mode.GetCorrectPlayerSourceID(ctx, s.gameID, *ws.Message.TeamDraft)
	if err != nil {
		return
	}
	if authorizedID != ServerOnlyAuthorized && authorizedID != ws.PlayerID {
		return
	}
	if authorizedID == ServerOnlyAuthorized {
		return
	}

	events, err := s.mode.HandleMessage(ctx, s.gameID, game.Players, *ws.Message.TeamDraft)
	if err != nil {
		return
	}
	s.publish(ctx, "", events)
}

// serializerRegistry tracks one Serializer per active game, collapsing
// the sender channel and its owning goroutine's lifecycle into a
// single map+mutex (see DESIGN.md's "in-memory map count" decision).
type serializerRegistry struct {
	mu    sync.RWMutex
	procs map[string]*Serializer
}

func newSerializerRegistry() *serializerRegistry {
	return &serializerRegistry{procs: make(map[string]*Serializer)}
}

func (r *serializerRegistry) get(gameID string) (*Serializer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.procs[gameID]
	return s, ok
}

func (r *serializerRegistry) getOrCreate(ctx context.Context, gameID string, registry *Registry, mode GameModeManager, router *Router) *Serializer {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.procs[gameID]; ok {
		return s
	}
	s := newSerializer(ctx, gameID, registry, mode, router)
	r.procs[gameID] = s
	return s
}

func (r *serializerRegistry) remove(gameID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.procs[gameID]; ok {
		s.Stop()
		delete(r.procs, gameID)
	}
}
