package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"sk3-portal/internal/lifecycle"
	"sk3-portal/internal/model"
	"sk3-portal/internal/session"
	"sk3-portal/internal/views"
)

type AuthService struct {
	api      API
	store    *session.Store
	tokens   *session.Tokens
	registry *views.Registry
	log      zerolog.Logger
}

func NewAuthService(api API, store *session.Store, tokens *session.Tokens, registry *views.Registry, log zerolog.Logger) *AuthService {
	return &AuthService{api: api, store: store, tokens: tokens, registry: registry, log: log}
}

type LoginResult struct {
	SessionID string         `json:"-"`
	Token     string         `json:"-"`
	Identity  model.Identity `json:"identity"`
	Views     []views.ViewID `json:"views,omitempty"`
}

// Login authenticates against the API and binds the identity to a fresh
// session. Any session the browser held before is cleared.
func (s *AuthService) Login(ctx context.Context, role model.Role, previousSID string, creds model.Credentials) (*LoginResult, error) {
	verr := lifecycle.NewValidationError()
	if creds.Username == "" {
		verr.Add("username", "Username is required")
	}
	if creds.Password == "" {
		verr.Add("password", "Password is required")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	var identity model.Identity
	switch role {
	case model.RoleCommuter:
		commuter, err := s.api.LoginCommuter(ctx, creds)
		if err != nil {
			return nil, fmt.Errorf("commuter login: %w", err)
		}
		if !commuter.Verified {
			return nil, &lifecycle.AuthorizationError{Role: string(model.RoleCommuter)}
		}
		identity = model.CommuterIdentity(*commuter)
	case model.RoleAdmin:
		admin, err := s.api.LoginAdmin(ctx, creds)
		if err != nil {
			return nil, fmt.Errorf("admin login: %w", err)
		}
		identity = model.AdminIdentity(*admin)
	case model.RolePersonnel:
		personnel, err := s.api.LoginPersonnel(ctx, creds)
		if err != nil {
			return nil, fmt.Errorf("personnel login: %w", err)
		}
		identity = model.PersonnelIdentity(*personnel)
	default:
		return nil, ErrInvalidInput
	}

	if previousSID != "" {
		if err := s.Logout(ctx, previousSID); err != nil {
			s.log.Warn().Err(err).Msg("failed to clear previous session")
		}
	}

	sid := session.NewSessionID()
	if err := s.store.For(sid).Set(ctx, identity); err != nil {
		if errors.Is(err, session.ErrUnverified) {
			return nil, &lifecycle.AuthorizationError{Role: string(model.RoleCommuter)}
		}
		return nil, err
	}
	token, err := s.tokens.Issue(sid, role)
	if err != nil {
		return nil, fmt.Errorf("issue session token: %w", err)
	}

	result := &LoginResult{SessionID: sid, Token: token, Identity: identity, Views: views.ViewsFor(role)}
	if len(result.Views) > 0 {
		if _, err := s.registry.Mount(sid, identity); err != nil {
			return nil, err
		}
	}
	s.log.Info().Str("role", string(role)).Int64("user_id", identity.ID()).Msg("login")
	return result, nil
}

// Logout stops the session's dashboard and clears its identity.
func (s *AuthService) Logout(ctx context.Context, sid string) error {
	s.registry.Unmount(sid)
	return s.store.For(sid).Clear(ctx)
}

// Authenticate resolves a session cookie into the actor it belongs to. The
// role in the token must match the identity stored for the session.
func (s *AuthService) Authenticate(ctx context.Context, token string) (Actor, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return Actor{}, &lifecycle.AuthorizationError{}
	}
	identity, err := s.store.For(claims.SessionID).Get(ctx)
	if err != nil {
		return Actor{}, err
	}
	if identity == nil || identity.Role != claims.Role {
		return Actor{}, &lifecycle.AuthorizationError{Role: string(claims.Role)}
	}
	return Actor{SessionID: claims.SessionID, Identity: *identity}, nil
}

// SessionID extracts the session id from a cookie value without checking that
// the session still exists.
func (s *AuthService) SessionID(token string) string {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return ""
	}
	return claims.SessionID
}
