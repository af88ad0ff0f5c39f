package session

import "github.com/google/uuid"

// ResolveIdentity fixes the session id and starting mode for the lifetime of
// a session. A supplied external id is adopted verbatim; otherwise a fresh id
// is generated right away so every component keys its state on a stable id.
func ResolveIdentity(externalID string, mode Mode) (string, Mode) {
	if !mode.Valid() {
		mode = ModeFun
	}
	if externalID != "" {
		return externalID, mode
	}
	return uuid.NewString(), mode
}
