/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"
	qrcode "github.com/skip2/go-qrcode"
)

// CreateGameRequest is the body of POST /game/create.
type CreateGameRequest struct {
	Username string `json:"username"`
}

// CreateGameResponse is returned from POST /game/create and
// POST /game/join, carrying the caller's own auth token alongside the
// public game state.
type CreateGameResponse struct {
	Game      *Game  `json:"game"`
	PlayerID  string `json:"player_id"`
	AuthToken string `json:"auth_token"`
}

// JoinGameRequest is the body of POST /game/join.
type JoinGameRequest struct {
	Username string `json:"username"`
	GameCode string `json:"game_code"`
}

func decodeJSONBody(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func handleCreateGame(cfg *Config, registry *Registry) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var req CreateGameRequest
		if err := decodeJSONBody(r, &req); err != nil {
			writeAppError(w, cfg, newAppError(ErrInvalidInput, "malformed request body"))
			return
		}

		game, playerID, authToken, err := registry.CreateGame(r.Context(), req.Username)
		if err != nil {
			writeAppError(w, cfg, err.(*AppError))
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		securityHeaders(cfg, w)
		_ = writeJSON(w, CreateGameResponse{Game: game, PlayerID: playerID, AuthToken: authToken})
	}
}

func handleJoinGame(cfg *Config, registry *Registry) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var req JoinGameRequest
		if err := decodeJSONBody(r, &req); err != nil {
			writeAppError(w, cfg, newAppError(ErrInvalidInput, "malformed request body"))
			return
		}

		game, playerID, authToken, err := registry.JoinGameByCode(r.Context(), req.GameCode, req.Username)
		if err != nil {
			writeAppError(w, cfg, err.(*AppError))
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		securityHeaders(cfg, w)
		_ = writeJSON(w, CreateGameResponse{Game: game, PlayerID: playerID, AuthToken: authToken})
	}
}

// handleGameQR renders a QR code pointing at the game's join page, a
// convenience for casting a lobby code on a TV.
func handleGameQR(cfg *Config, registry *Registry) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		code := ps.ByName("code")

		scheme := "https"
		if r.TLS == nil {
			scheme = "http"
		}
		target := scheme + "://" + r.Host + "/join/" + code

		png, err := qrcode.Encode(target, qrcode.Medium, 256)
		if err != nil {
			writeAppError(w, cfg, internalError(err.Error()))
			return
		}

		w.Header().Set("Content-Type", "image/png")
		securityHeaders(cfg, w)
		_, _ = bytes.NewReader(png).WriteTo(w)
	}
}
