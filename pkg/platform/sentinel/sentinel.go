package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and remote clients return
// these (optionally wrapped) and services translate them into domain errors.
//
//   - ErrNotFound: form session or record does not exist
//   - ErrExpired: form session outlived its TTL
//   - ErrInvalidState: session is in the wrong phase for the operation
//   - ErrUnavailable: remote collaborator temporarily unavailable
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
