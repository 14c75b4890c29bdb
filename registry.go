/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// gameCodeAlphabet omits O and 0 so a spoken or handwritten code never
// confuses the two, matching the original game code generator.
const gameCodeAlphabet = "ABCDEFGHIJKLMNPQRSTUVWXYZ123456789"

const gameCodeLength = 6

// Registry owns every game's durable state in the Store plus the
// in-process Hub and Serializer each game needs while it has active
// sockets on this node.
type Registry struct {
	store  Store
	mode   GameModeManager
	router *Router
	clock  func() int64

	hubsMu sync.RWMutex
	hubs   map[string]*Hub

	serializers *serializerRegistry
}

func NewRegistry(store Store, mode GameModeManager, router *Router, clock func() int64) *Registry {
	return &Registry{
		store:       store,
		mode:        mode,
		router:      router,
		clock:       clock,
		hubs:        make(map[string]*Hub),
		serializers: newSerializerRegistry(),
	}
}

func gameKey(gameID string, extension ...string) (string, error) {
	b := key("game").field(gameID)
	for _, e := range extension {
		b = b.field(e)
	}
	return b.finish()
}

func (r *Registry) generateGameCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < 100; attempt++ {
		code, err := randomCode(gameCodeLength)
		if err != nil {
			return "", internalError(err.Error())
		}
		k, err := key("game_code").field(code).finish()
		if err != nil {
			return "", internalError(err.Error())
		}
		exists, err := r.store.Exists(ctx, k)
		if err != nil {
			return "", internalError(err.Error())
		}
		if !exists {
			return code, nil
		}
	}
	return "", internalError("could not generate a unique game code")
}

func randomCode(length int) (string, error) {
	out := make([]byte, length)
	max := big.NewInt(int64(len(gameCodeAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = gameCodeAlphabet[n.Int64()]
	}
	return string(out), nil
}

// CreateGame provisions a new game with a single host player. Returns
// the game, the host's player id, and the host's auth token.
func (r *Registry) CreateGame(ctx context.Context, username string) (*Game, string, string, error) {
	if username == "" {
		return nil, "", "", newAppError(ErrInvalidInput, "username must not be empty")
	}

	code, err := r.generateGameCode(ctx)
	if err != nil {
		return nil, "", "", err
	}

	gameID := uuid.NewString()
	playerID := uuid.NewString()
	authToken := uuid.NewString()

	game := &Game{
		ID:         gameID,
		Code:       code,
		HostID:     playerID,
		Players:    []Player{{ID: playerID, Username: username}},
		MaxPlayers: maxPlayers,
		CreatedAt:  r.clock(),
	}

	if err := r.writeGame(ctx, game); err != nil {
		return nil, "", "", err
	}

	codeKey, err := key("game_code").field(code).finish()
	if err != nil {
		return nil, "", "", internalError(err.Error())
	}
	if err := r.store.Set(ctx, codeKey, gameID); err != nil {
		return nil, "", "", internalError(err.Error())
	}

	if err := r.registerPlayer(ctx, gameID, playerID, username, authToken); err != nil {
		return nil, "", "", err
	}

	if err := r.mode.InitState(ctx, gameID, game.Players[0]); err != nil {
		return nil, "", "", internalError(err.Error())
	}

	return game, playerID, authToken, nil
}

// JoinGameByCode resolves a human-facing game code to a game id and
// adds a new player.
func (r *Registry) JoinGameByCode(ctx context.Context, code, username string) (*Game, string, string, error) {
	code = strings.ToUpper(code)
	codeKey, err := key("game_code").field(code).finish()
	if err != nil {
		return nil, "", "", internalError(err.Error())
	}
	gameID, ok, err := r.store.Get(ctx, codeKey)
	if err != nil {
		return nil, "", "", internalError(err.Error())
	}
	if !ok {
		return nil, "", "", newAppError(ErrInvalidGameCode, "no game with that code")
	}
	return r.JoinGame(ctx, gameID, username)
}

// JoinGame adds a new player to an already-resolved game id.
func (r *Registry) JoinGame(ctx context.Context, gameID, username string) (*Game, string, string, error) {
	if username == "" {
		return nil, "", "", newAppError(ErrInvalidInput, "username must not be empty")
	}

	game, err := r.GetGame(ctx, gameID)
	if err != nil {
		return nil, "", "", err
	}

	if len(game.Players) >= game.MaxPlayers {
		return nil, "", "", newAppError(ErrGameFull, "game is full")
	}
	for _, p := range game.Players {
		if p.Username == username {
			return nil, "", "", newAppError(ErrUsernameTaken, "username already in use in this game")
		}
	}

	playerID := uuid.NewString()
	authToken := uuid.NewString()

	game.Players = append(game.Players, Player{ID: playerID, Username: username})

	playersKey, err := gameKey(gameID, "players")
	if err != nil {
		return nil, "", "", internalError(err.Error())
	}
	raw, _ := json.Marshal(game.Players)
	if err := r.store.Set(ctx, playersKey, string(raw)); err != nil {
		return nil, "", "", internalError(err.Error())
	}

	if err := r.registerPlayer(ctx, gameID, playerID, username, authToken); err != nil {
		return nil, "", "", err
	}

	if r.router != nil {
		_ = r.router.Publish(ctx, BroadcastChunk{
			GameID:   gameID,
			Messages: []GameMessage{playerJoined(username, playerID)},
		})
	}

	return game, playerID, authToken, nil
}

func (r *Registry) registerPlayer(ctx context.Context, gameID, playerID, username, authToken string) error {
	mapKey, err := key("player_to_game").field(playerID).finish()
	if err != nil {
		return internalError(err.Error())
	}
	if err := r.store.Set(ctx, mapKey, gameID); err != nil {
		return internalError(err.Error())
	}

	authKey, err := key("player_auth").field(playerID).finish()
	if err != nil {
		return internalError(err.Error())
	}
	if err := r.store.Set(ctx, authKey, authToken); err != nil {
		return internalError(err.Error())
	}

	nameKey, err := key("player_usernames").field(playerID).finish()
	if err != nil {
		return internalError(err.Error())
	}
	if err := r.store.Set(ctx, nameKey, username); err != nil {
		return internalError(err.Error())
	}

	return nil
}

func (r *Registry) writeGame(ctx context.Context, game *Game) error {
	set := func(value string, ext ...string) error {
		k, err := gameKey(game.ID, ext...)
		if err != nil {
			return internalError(err.Error())
		}
		if err := r.store.Set(ctx, k, value); err != nil {
			return internalError(err.Error())
		}
		return nil
	}

	if err := set(game.HostID, "host_id"); err != nil {
		return err
	}
	if err := set(game.Code, "code"); err != nil {
		return err
	}
	raw, _ := json.Marshal(game.Players)
	if err := set(string(raw), "players"); err != nil {
		return err
	}
	if err := set(strconv.Itoa(game.MaxPlayers), "max_players"); err != nil {
		return err
	}
	if err := set(strconv.FormatInt(game.CreatedAt, 10), "created_at"); err != nil {
		return err
	}
	return nil
}

// GetGame reads one game back from the store.
func (r *Registry) GetGame(ctx context.Context, gameID string) (*Game, error) {
	get := func(ext ...string) (string, error) {
		k, err := gameKey(gameID, ext...)
		if err != nil {
			return "", internalError(err.Error())
		}
		v, _, err := r.store.Get(ctx, k)
		if err != nil {
			return "", internalError(err.Error())
		}
		return v, nil
	}

	hostID, err := get("host_id")
	if err != nil {
		return nil, err
	}
	if hostID == "" {
		return nil, newAppError(ErrGameNotFound, "game not found")
	}
	code, err := get("code")
	if err != nil {
		return nil, err
	}
	playersRaw, err := get("players")
	if err != nil {
		return nil, err
	}
	maxPlayersRaw, err := get("max_players")
	if err != nil {
		return nil, err
	}
	createdAtRaw, err := get("created_at")
	if err != nil {
		return nil, err
	}

	var players []Player
	_ = json.Unmarshal([]byte(playersRaw), &players)
	maxP, _ := strconv.Atoi(maxPlayersRaw)
	createdAt, _ := strconv.ParseInt(createdAtRaw, 10, 64)

	return &Game{
		ID:         gameID,
		Code:       code,
		HostID:     hostID,
		Players:    players,
		MaxPlayers: maxP,
		CreatedAt:  createdAt,
	}, nil
}

// GetAllGames enumerates every live game by scanning for its host_id
// key, since every game always has exactly one.
func (r *Registry) GetAllGames(ctx context.Context) ([]*Game, error) {
	ids, err := r.hostIDKeyGameIDs(ctx)
	if err != nil {
		return nil, err
	}

	games := make([]*Game, 0, len(ids))
	for _, id := range ids {
		g, err := r.GetGame(ctx, id)
		if err != nil {
			continue
		}
		games = append(games, g)
	}
	return games, nil
}

func (r *Registry) hostIDKeyGameIDs(ctx context.Context) ([]string, error) {
	keys, err := r.store.ScanKeys(ctx, "game::*::host_id")
	if err != nil {
		return nil, internalError(err.Error())
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		// "game::<id>::host_id"
		const prefix = "game::"
		const suffix = "::host_id"
		if len(k) > len(prefix)+len(suffix) {
			ids = append(ids, k[len(prefix):len(k)-len(suffix)])
		}
	}
	return ids, nil
}

// RemovePlayer removes playerID from gameID, reassigning host if
// necessary. Returns the updated game, or nil if the game is now
// empty.
func (r *Registry) RemovePlayer(ctx context.Context, gameID, playerID string) (*Game, error) {
	game, err := r.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}

	kept := game.Players[:0:0]
	for _, p := range game.Players {
		if p.ID != playerID {
			kept = append(kept, p)
		}
	}
	game.Players = kept

	if game.HostID == playerID && len(game.Players) > 0 {
		game.HostID = game.Players[0].ID
	}

	playersKey, err := gameKey(gameID, "players")
	if err != nil {
		return nil, internalError(err.Error())
	}
	raw, _ := json.Marshal(game.Players)
	if err := r.store.Set(ctx, playersKey, string(raw)); err != nil {
		return nil, internalError(err.Error())
	}
	if game.HostID != "" {
		hostKey, err := gameKey(gameID, "host_id")
		if err != nil {
			return nil, internalError(err.Error())
		}
		if err := r.store.Set(ctx, hostKey, game.HostID); err != nil {
			return nil, internalError(err.Error())
		}
	}

	for _, k := range []func() (string, error){
		func() (string, error) { return key("player_to_game").field(playerID).finish() },
		func() (string, error) { return key("player_auth").field(playerID).finish() },
		func() (string, error) { return key("player_usernames").field(playerID).finish() },
	} {
		kk, err := k()
		if err != nil {
			continue
		}
		_ = r.store.Del(ctx, kk)
	}

	if hub, ok := r.getHub(gameID); ok {
		hub.Remove(playerID)
	}

	if len(game.Players) == 0 {
		return nil, nil
	}
	return game, nil
}

// IsAuthorized reports whether authToken matches the token on record
// for playerID.
func (r *Registry) IsAuthorized(ctx context.Context, playerID, authToken string) (bool, error) {
	k, err := key("player_auth").field(playerID).finish()
	if err != nil {
		return false, internalError(err.Error())
	}
	v, ok, err := r.store.Get(ctx, k)
	if err != nil {
		return false, internalError(err.Error())
	}
	return ok && v == authToken, nil
}

// ScheduleCleanup tears down every trace of a finished/empty game: its
// durable keys, its mode state, its Hub, and its Serializer.
func (r *Registry) ScheduleCleanup(gameID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		game, _ := r.GetGame(ctx, gameID)

		r.serializers.remove(gameID)
		r.router.StopGame(gameID)
		r.removeHub(gameID)

		_ = r.mode.CleanupState(ctx, gameID)
		_ = r.store.DeletePattern(ctx, "game::"+gameID+"::*")

		if game != nil {
			codeKey, err := key("game_code").field(game.Code).finish()
			if err == nil {
				_ = r.store.Del(ctx, codeKey)
			}
		}
	}()
}

func (r *Registry) GetOrCreateHub(gameID string) *Hub {
	r.hubsMu.Lock()
	defer r.hubsMu.Unlock()
	h, ok := r.hubs[gameID]
	if !ok {
		h = newHub(gameID)
		r.hubs[gameID] = h
	}
	return h
}

func (r *Registry) getHub(gameID string) (*Hub, bool) {
	r.hubsMu.RLock()
	defer r.hubsMu.RUnlock()
	h, ok := r.hubs[gameID]
	return h, ok
}

func (r *Registry) removeHub(gameID string) {
	r.hubsMu.Lock()
	defer r.hubsMu.Unlock()
	delete(r.hubs, gameID)
}

func (r *Registry) GetOrCreateSerializer(ctx context.Context, gameID string) *Serializer {
	return r.serializers.getOrCreate(ctx, gameID, r, r.mode, r.router)
}

// DeliverLocal is wired as the Router's deliverFunc: it hands a paced
// message from a remote or local publish off to this node's Hub for
// the game, which fans it out to connected sockets.
func (r *Registry) DeliverLocal(gameID, playerID string, msg GameMessage) {
	hub, ok := r.getHub(gameID)
	if !ok {
		return
	}
	if playerID == "" {
		hub.Broadcast(msg)
		return
	}
	hub.Send(playerID, msg)
}
