// Package identity supplies the authenticated-user contract the sync engine
// consumes: a current user id, or none.
//
// The engine never sees tokens or the sign-in flow. The desktop client
// persists its session tokens to a small JSON file after authenticating;
// SessionProvider reads that file and extracts the user id from the access
// token's subject claim. Verification is the remote store's job — the token
// is sent with every request anyway — so the parse here is deliberately
// unverified.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Provider exposes the current authenticated user.
type Provider interface {
	// CurrentUserID returns the signed-in user id, or ok=false when no
	// session exists.
	CurrentUserID() (id string, ok bool)
}

// DefaultSessionFilename is where the client apps persist session tokens.
const DefaultSessionFilename = ".session.json"

// session mirrors the on-disk session file layout.
type session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// SessionProvider resolves the user id from a persisted session file.
type SessionProvider struct {
	path string
}

// NewSessionProvider returns a provider reading the session file at path.
func NewSessionProvider(path string) *SessionProvider {
	return &SessionProvider{path: path}
}

// CurrentUserID implements Provider. A missing or unreadable session file
// means "not signed in", not an error.
func (p *SessionProvider) CurrentUserID() (string, bool) {
	id, err := p.resolve()
	if err != nil {
		return "", false
	}
	return id, true
}

// Resolve returns the user id or a descriptive error, for callers that want
// to tell "no session" apart from "corrupt session".
func (p *SessionProvider) Resolve() (string, error) {
	return p.resolve()
}

func (p *SessionProvider) resolve() (string, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return "", fmt.Errorf("failed to read session file %s: %w", p.path, err)
	}

	var s session
	if err := json.Unmarshal(data, &s); err != nil {
		return "", fmt.Errorf("failed to parse session file %s: %w", p.path, err)
	}
	if s.AccessToken == "" {
		return "", fmt.Errorf("session file %s has no access token", p.path)
	}

	return SubjectFromToken(s.AccessToken)
}

// SubjectFromToken extracts the subject (user id) claim from a JWT without
// verifying the signature.
func SubjectFromToken(token string) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("failed to parse access token: %w", err)
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("access token has no subject claim")
	}
	return sub, nil
}

// Static is a fixed-identity provider, used in tests and for offline runs.
type Static struct {
	ID string
}

// NewLocal returns a Static provider with a freshly generated user id, for
// running against the in-memory remote without a real account.
func NewLocal() Static {
	return Static{ID: uuid.NewString()}
}

// CurrentUserID implements Provider.
func (s Static) CurrentUserID() (string, bool) {
	return s.ID, s.ID != ""
}

// None is a provider with no signed-in user.
type None struct{}

// CurrentUserID implements Provider.
func (None) CurrentUserID() (string, bool) { return "", false }

// Signal is a one-shot sign-in notification: the auth layer resolves it once
// with the authenticated user id and any number of waiters unblock. It
// replaces poll-until-ready handshakes between sign-in and first sync.
type Signal struct {
	ch   chan struct{}
	once sync.Once
	id   string
}

// NewSignal returns an unresolved signal.
func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{})}
}

// Resolve publishes the signed-in user id. Only the first call has any
// effect.
func (s *Signal) Resolve(userID string) {
	s.once.Do(func() {
		s.id = userID
		close(s.ch)
	})
}

// Wait blocks until the signal is resolved or ctx is cancelled.
func (s *Signal) Wait(ctx context.Context) (string, error) {
	select {
	case <-s.ch:
		return s.id, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// CurrentUserID implements Provider: a resolved signal acts as a provider
// for the id it carries.
func (s *Signal) CurrentUserID() (string, bool) {
	select {
	case <-s.ch:
		return s.id, s.id != ""
	default:
		return "", false
	}
}
