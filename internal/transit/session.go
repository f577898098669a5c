package transit

import "sync"

// Session carries the user's credential override. The controller owns it and
// the client reads it on every request, so a key saved mid-session applies to
// the next fetch without restarting anything.
type Session struct {
	mu     sync.RWMutex
	apiKey string
}

func NewSession(apiKey string) *Session {
	return &Session{apiKey: apiKey}
}

func (s *Session) APIKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.apiKey
}

func (s *Session) SetAPIKey(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apiKey = key
}
