package mtproto

import "errors"

var (
	// ErrFileNotFound mirrors the Python original's FIleNotFound: resolution
	// succeeded at the RPC level but the message carries no streamable media.
	ErrFileNotFound = errors.New("mtproto: file not found")

	// ErrNoClients is returned when the pool has no configured clients.
	ErrNoClients = errors.New("mtproto: no clients configured")

	// ErrSessionUnavailable is returned when a client's session for a DC
	// could not be established after all retries.
	ErrSessionUnavailable = errors.New("mtproto: session unavailable")
)
