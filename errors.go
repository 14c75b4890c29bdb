/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"log"
	"net/http"
	"time"
)

func logf(cfg *Config, format string, args ...any) {
	if !cfg.verbose {
		return
	}

	log.Printf("%s | "+format, append([]any{time.Now().Format(logDate)}, args...)...)
}

// ErrorCode is the domain error taxonomy.
type ErrorCode string

const (
	ErrGameNotFound        ErrorCode = "GameNotFound"
	ErrGameFull            ErrorCode = "GameFull"
	ErrPlayerNotFound      ErrorCode = "PlayerNotFound"
	ErrPlayerAlreadyExists ErrorCode = "PlayerAlreadyExists"
	ErrInvalidGameCode     ErrorCode = "InvalidGameCode"
	ErrPlayerAlreadyInGame ErrorCode = "PlayerAlreadyInGame"
	ErrUsernameTaken       ErrorCode = "UsernameTaken"
	ErrInvalidInput        ErrorCode = "InvalidInput"
	ErrInvalidGameMode     ErrorCode = "InvalidGameMode"
	ErrInternalServerError ErrorCode = "InternalServerError"
)

// AppError is the single error type domain code returns; it carries
// enough to map straight onto an HTTP status and JSON body.
type AppError struct {
	Code    ErrorCode
	Message string
}

func (e *AppError) Error() string {
	return e.Message
}

func newAppError(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func internalError(message string) *AppError {
	return &AppError{Code: ErrInternalServerError, Message: message}
}

// httpStatus maps a domain error code onto its HTTP status: domain
// kinds are 4xx, InternalServerError is 500.
func httpStatus(code ErrorCode) int {
	switch code {
	case ErrGameNotFound, ErrPlayerNotFound:
		return http.StatusNotFound
	case ErrGameFull, ErrPlayerAlreadyExists, ErrInvalidGameCode, ErrPlayerAlreadyInGame,
		ErrUsernameTaken, ErrInvalidInput, ErrInvalidGameMode:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// ErrorResponse is the JSON body written on HTTP error paths.
type ErrorResponse struct {
	Error   ErrorCode `json:"error"`
	Message string    `json:"message"`
}

func writeAppError(w http.ResponseWriter, cfg *Config, err *AppError) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	securityHeaders(cfg, w)
	w.WriteHeader(httpStatus(err.Code))
	_ = writeJSON(w, ErrorResponse{Error: err.Code, Message: err.Message})
}
