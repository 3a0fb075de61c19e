package portal

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
)

// Session cookie and header names
const (
	CookieXSRF = "XSRF-TOKEN"
	HeaderXSRF = "X-XSRF-TOKEN"
)

// ErrNoSession is returned when the session file has not been produced yet
var ErrNoSession = errors.New("no portal session")

// Session holds the cookies and headers captured by the login collaborator
type Session struct {
	Cookies map[string]string `json:"cookies"`
	Headers map[string]string `json:"headers"`
}

// LoadSession reads a session file
func LoadSession(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s does not exist", ErrNoSession, path)
		}
		return nil, fmt.Errorf("failed to read session %s: %w", path, err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse session %s: %w", path, err)
	}
	if s.Cookies == nil {
		s.Cookies = map[string]string{}
	}
	if s.Headers == nil {
		s.Headers = map[string]string{}
	}
	return &s, nil
}

// Save writes the session to path with owner-only permissions
func (s *Session) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Apply sets the session headers and cookies on req. The XSRF header is
// derived from the XSRF cookie when the session does not carry it.
func (s *Session) Apply(req *http.Request) {
	for name, value := range s.Headers {
		req.Header.Set(name, value)
	}
	if req.Header.Get(HeaderXSRF) == "" {
		if token, ok := s.Cookies[CookieXSRF]; ok {
			req.Header.Set(HeaderXSRF, token)
		}
	}
	for name, value := range s.Cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}
}
