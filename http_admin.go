/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"crypto/subtle"
	"net/http"

	"github.com/julienschmidt/httprouter"
)

// adminHeader carries the shared admin password for the /admin/*
// surface, checked against Config.adminPassword.
const adminHeader = "Yapperbox-Admin"

func requireAdmin(cfg *Config, next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if cfg.adminPassword == "" {
			writeAppError(w, cfg, internalError("admin password is not configured"))
			return
		}

		got := r.Header.Get(adminHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(cfg.adminPassword)) != 1 {
			writeUnauthorized(w, cfg)
			return
		}

		next(w, r, ps)
	}
}

// writeUnauthorized answers a missing or incorrect admin header. This
// sits outside the domain error taxonomy in errors.go, which has no
// "unauthorized" kind of its own.
func writeUnauthorized(w http.ResponseWriter, cfg *Config) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	securityHeaders(cfg, w)
	w.WriteHeader(http.StatusUnauthorized)
	_ = writeJSON(w, ErrorResponse{Error: ErrorCode("Unauthorized"), Message: "missing or incorrect admin credentials"})
}

// GamesListResponse is the body of GET /admin/games.
type GamesListResponse struct {
	Count   int      `json:"count"`
	GameIDs []string `json:"game_ids"`
}

// GameDetailsResponse is the body of GET /admin/game.
type GameDetailsResponse struct {
	Game *Game `json:"game"`
}

func handleAdminListGames(cfg *Config, registry *Registry) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		games, err := registry.GetAllGames(r.Context())
		if err != nil {
			writeAppError(w, cfg, internalError(err.Error()))
			return
		}

		ids := make([]string, 0, len(games))
		for _, g := range games {
			ids = append(ids, g.ID)
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		securityHeaders(cfg, w)
		_ = writeJSON(w, GamesListResponse{Count: len(ids), GameIDs: ids})
	}
}

func handleAdminGetGame(cfg *Config, registry *Registry) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		id := r.URL.Query().Get("id")
		if id == "" {
			writeAppError(w, cfg, newAppError(ErrInvalidInput, "missing id query parameter"))
			return
		}

		game, err := registry.GetGame(r.Context(), id)
		if err != nil {
			writeAppError(w, cfg, err.(*AppError))
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		securityHeaders(cfg, w)
		_ = writeJSON(w, GameDetailsResponse{Game: game})
	}
}
