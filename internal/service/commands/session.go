package commands

import "sync"

// SessionManager remembers the last parcel each chat user referred to,
// so follow-up commands can omit the parcel name.
type SessionManager struct {
	sessions map[string]string
	mu       sync.RWMutex
}

// NewSessionManager creates a new session manager.
func NewSessionManager() *SessionManager {
	return &SessionManager{sessions: make(map[string]string)}
}

// LastParcel returns the parcel the user last referred to.
func (sm *SessionManager) LastParcel(userID string) (string, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	name, ok := sm.sessions[userID]
	return name, ok
}

// Remember records the parcel the user referred to.
func (sm *SessionManager) Remember(userID, parcel string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.sessions[userID] = parcel
}

// Clear removes a user's session.
func (sm *SessionManager) Clear(userID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.sessions, userID)
}
