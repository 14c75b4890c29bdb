/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

// upgrader is permissive on origin the way a party-game lobby has to
// be: the client is usually a phone on a different network than the
// TV casting the lobby screen.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const socketWriteTimeout = 10 * time.Second

// serveSocket upgrades GET /ws/:game_id/:player_id: validate the
// player's auth token and membership, then run one reader and one
// writer goroutine for the life of the connection.
func serveSocket(cfg *Config, registry *Registry) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		ctx := r.Context()
		gameID := ps.ByName("game_id")
		playerID := ps.ByName("player_id")
		token := r.URL.Query().Get("auth_token")

		authorized, err := registry.IsAuthorized(ctx, playerID, token)
		if err != nil {
			writeAppError(w, cfg, internalError(err.Error()))
			return
		}
		if !authorized {
			writeAppError(w, cfg, newAppError(ErrPlayerNotFound, "invalid player id or auth token"))
			return
		}

		game, err := registry.GetGame(ctx, gameID)
		if err != nil {
			writeAppError(w, cfg, err.(*AppError))
			return
		}
		member := false
		var username string
		for _, p := range game.Players {
			if p.ID == playerID {
				member = true
				username = p.Username
				break
			}
		}
		if !member {
			writeAppError(w, cfg, newAppError(ErrPlayerNotFound, "player is not in this game"))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "websocket upgrade failed for %s/%s: %v", gameID, playerID, err)
			return
		}

		hub := registry.GetOrCreateHub(gameID)
		egress := hub.Subscribe(playerID)
		serializer := registry.GetOrCreateSerializer(context.Background(), gameID)

		session := &socketSession{
			cfg:        cfg,
			conn:       conn,
			hub:        hub,
			egress:     egress,
			gameID:     gameID,
			playerID:   playerID,
			username:   username,
			serializer: serializer,
			registry:   registry,
		}
		session.run()
	}
}

type socketSession struct {
	cfg  *Config
	conn *websocket.Conn

	hub    *Hub
	egress <-chan WebSocketMessage

	gameID   string
	playerID string
	username string

	serializer *Serializer
	registry   *Registry
}

func (s *socketSession) run() {
	done := make(chan struct{})
	go s.writePump(done)
	s.readPump()
	close(done)
}

// readPump blocks decoding inbound frames until the connection closes,
// then unsubscribes and removes the player via the Game Registry.
func (s *socketSession) readPump() {
	defer func() {
		s.hub.Unsubscribe(s.playerID, s.egress)
		s.conn.Close()
		s.removePlayer()
	}()

	s.conn.SetReadLimit(1 << 16)
	_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.socketIdleTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.cfg.socketIdleTimeout))
	})

	for {
		var msg WebSocketMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			return
		}

		msg.GameID = s.gameID
		msg.PlayerID = s.playerID
		s.serializer.Enqueue(msg)
	}
}

// removePlayer removes the disconnecting player from the Game Registry
// (clearing game.players and the player_to_game/player_auth/
// player_usernames keys), announces the disconnect, and schedules the
// game for cleanup if that removal emptied it.
func (s *socketSession) removePlayer() {
	ctx := context.Background()

	game, err := s.registry.RemovePlayer(ctx, s.gameID, s.playerID)
	if err != nil {
		return
	}

	_ = s.registry.router.Publish(ctx, BroadcastChunk{
		GameID: s.gameID,
		Messages: []GameMessage{
			playerDisconnected(s.username, s.playerID),
		},
	})

	if game == nil {
		s.registry.ScheduleCleanup(s.gameID)
	}
}

// writePump drains the Hub mailbox into the socket, and pings on an
// interval so a half-open connection gets reaped by the read deadline
// that cfg.socketIdleTimeout sets in readPump.
func (s *socketSession) writePump(done <-chan struct{}) {
	ticker := time.NewTicker((s.cfg.socketIdleTimeout * 9) / 10)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case msg, ok := <-s.egress:
			if !ok {
				return
			}
			_ = s.conn.SetWriteDeadline(time.Now().Add(socketWriteTimeout))
			if err := s.conn.WriteJSON(clientSafe(msg)); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(socketWriteTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
