package identity

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, sub string) string {
	t.Helper()
	claims := jwt.MapClaims{}
	if sub != "" {
		claims["sub"] = sub
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func writeSession(t *testing.T, accessToken string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultSessionFilename)
	body := `{"access_token":"` + accessToken + `","refresh_token":"r"}`
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("write session file: %v", err)
	}
	return path
}

func TestSubjectFromToken(t *testing.T) {
	sub, err := SubjectFromToken(signedToken(t, "user-abc"))
	if err != nil {
		t.Fatalf("SubjectFromToken: %v", err)
	}
	if sub != "user-abc" {
		t.Errorf("subject = %q, want user-abc", sub)
	}
}

func TestSubjectFromTokenMissingClaim(t *testing.T) {
	if _, err := SubjectFromToken(signedToken(t, "")); err == nil {
		t.Error("expected error for token without subject")
	}
}

func TestSubjectFromTokenGarbage(t *testing.T) {
	if _, err := SubjectFromToken("not.a.jwt"); err == nil {
		t.Error("expected error for malformed token")
	}
}

func TestSessionProvider(t *testing.T) {
	path := writeSession(t, signedToken(t, "user-abc"))
	p := NewSessionProvider(path)

	id, ok := p.CurrentUserID()
	if !ok || id != "user-abc" {
		t.Errorf("CurrentUserID = (%q, %v), want (user-abc, true)", id, ok)
	}
}

func TestSessionProviderMissingFile(t *testing.T) {
	p := NewSessionProvider(filepath.Join(t.TempDir(), "nope.json"))

	if _, ok := p.CurrentUserID(); ok {
		t.Error("missing session file should mean not signed in")
	}
	if _, err := p.Resolve(); err == nil {
		t.Error("Resolve should return a descriptive error")
	}
}

func TestSessionProviderEmptyToken(t *testing.T) {
	path := writeSession(t, "")
	if _, ok := NewSessionProvider(path).CurrentUserID(); ok {
		t.Error("empty access token should mean not signed in")
	}
}

func TestStatic(t *testing.T) {
	if id, ok := (Static{ID: "x"}).CurrentUserID(); !ok || id != "x" {
		t.Errorf("Static = (%q, %v)", id, ok)
	}
	if _, ok := (Static{}).CurrentUserID(); ok {
		t.Error("empty Static should report not signed in")
	}
	if _, ok := (None{}).CurrentUserID(); ok {
		t.Error("None should report not signed in")
	}
}

func TestNewLocalGeneratesDistinctIDs(t *testing.T) {
	a, b := NewLocal(), NewLocal()
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("NewLocal ids not distinct: %q %q", a.ID, b.ID)
	}
}

func TestSignal(t *testing.T) {
	s := NewSignal()

	if _, ok := s.CurrentUserID(); ok {
		t.Error("unresolved signal should report not signed in")
	}

	done := make(chan string, 1)
	go func() {
		id, err := s.Wait(context.Background())
		if err != nil {
			done <- "error: " + err.Error()
			return
		}
		done <- id
	}()

	s.Resolve("user-abc")
	s.Resolve("ignored") // only the first resolution counts

	select {
	case got := <-done:
		if got != "user-abc" {
			t.Errorf("Wait returned %q, want user-abc", got)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not unblock after Resolve")
	}

	if id, ok := s.CurrentUserID(); !ok || id != "user-abc" {
		t.Errorf("resolved signal = (%q, %v)", id, ok)
	}
}

func TestSignalWaitCancelled(t *testing.T) {
	s := NewSignal()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Wait(ctx); err == nil {
		t.Error("expected context error from cancelled Wait")
	}
}
