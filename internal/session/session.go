// Package session holds the signed-in state of the CLI. A Session is created
// once at startup, handed explicitly to whatever needs it, and torn down on
// logout.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/virail/studio/internal/model"
)

// ErrBusy is returned when a login is attempted while another is in progress.
var ErrBusy = errors.New("session: authentication already in progress")

// Status tags the session state.
type Status int

const (
	Unauthenticated Status = iota
	Authenticating
	Authenticated
)

func (s Status) String() string {
	switch s {
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// State is a snapshot of the session. User is set only when Status is
// Authenticated.
type State struct {
	Status Status
	User   *model.User
}

// Authenticator performs the backend side of signing in and out.
type Authenticator interface {
	Login(ctx context.Context, creds model.Credentials) (*model.AuthResponse, error)
	Register(ctx context.Context, creds model.Credentials) (*model.AuthResponse, error)
	Logout(ctx context.Context) error
}

// stored is the on-disk shape of a session file.
type stored struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at,omitzero"`
	User      model.User `json:"user"`
}

// Session tracks authentication and persists the token between runs.
type Session struct {
	path   string
	logger *zap.Logger
	now    func() time.Time

	mu        sync.Mutex
	status    Status
	token     string
	expiresAt time.Time
	user      model.User
}

// New returns an unauthenticated session persisted at path.
func New(path string, logger *zap.Logger) *Session {
	return &Session{path: path, logger: logger.Named("session"), now: time.Now}
}

// Open restores the session from disk. A missing or expired file leaves the
// session unauthenticated; a corrupt one is reported and ignored.
func (s *Session) Open() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("session: read %s: %w", s.path, err)
	}

	var st stored
	if err := json.Unmarshal(data, &st); err != nil {
		s.logger.Warn("ignoring corrupt session file", zap.String("path", s.path), zap.Error(err))
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if st.Token == "" || s.expired(st.ExpiresAt) {
		return nil
	}
	s.status, s.token, s.expiresAt, s.user = Authenticated, st.Token, st.ExpiresAt, st.User
	return nil
}

// State returns a snapshot of the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == Authenticated && s.expired(s.expiresAt) {
		s.clearLocked()
	}
	st := State{Status: s.status}
	if s.status == Authenticated {
		u := s.user
		st.User = &u
	}
	return st
}

// Token implements studio.TokenSource. It returns "" unless authenticated.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == Authenticated && s.expired(s.expiresAt) {
		s.clearLocked()
	}
	if s.status != Authenticated {
		return ""
	}
	return s.token
}

// Login signs in through auth and persists the resulting token.
func (s *Session) Login(ctx context.Context, auth Authenticator, creds model.Credentials) (*model.User, error) {
	return s.authenticate(ctx, creds, auth.Login)
}

// Register creates an account through auth and signs in as it.
func (s *Session) Register(ctx context.Context, auth Authenticator, creds model.Credentials) (*model.User, error) {
	return s.authenticate(ctx, creds, auth.Register)
}

func (s *Session) authenticate(
	ctx context.Context,
	creds model.Credentials,
	call func(context.Context, model.Credentials) (*model.AuthResponse, error),
) (*model.User, error) {
	s.mu.Lock()
	if s.status == Authenticating {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	s.clearLocked()
	s.status = Authenticating
	s.mu.Unlock()

	resp, err := call(ctx, creds)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.clearLocked()
		return nil, err
	}

	s.status, s.token, s.expiresAt, s.user = Authenticated, resp.Token, resp.ExpiresAt, resp.User
	if err := s.saveLocked(); err != nil {
		s.logger.Warn("session not persisted", zap.Error(err))
	}
	u := s.user
	return &u, nil
}

// Logout ends the session on the backend and locally. The local state is
// cleared even when the backend call fails.
func (s *Session) Logout(ctx context.Context, auth Authenticator) error {
	var remoteErr error
	if s.State().Status == Authenticated {
		remoteErr = auth.Logout(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errors.Join(remoteErr, fmt.Errorf("session: remove %s: %w", s.path, err))
	}
	return remoteErr
}

func (s *Session) expired(at time.Time) bool {
	return !at.IsZero() && !s.now().Before(at)
}

func (s *Session) clearLocked() {
	s.status, s.token, s.expiresAt, s.user = Unauthenticated, "", time.Time{}, model.User{}
}

func (s *Session) saveLocked() error {
	data, err := json.Marshal(stored{Token: s.token, ExpiresAt: s.expiresAt, User: s.user})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}
