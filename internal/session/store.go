// Package session holds the one identity a browser session is logged in as.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"sk3-portal/internal/model"
)

// Field names under which each role's login payload is stored.
const (
	FieldCommuter  = "commuter"
	FieldAdmin     = "admin"
	FieldPersonnel = "personnel"
)

var (
	ErrUnverified      = errors.New("commuter account is not verified")
	ErrInvalidIdentity = errors.New("identity payload does not match its role")
)

type Store struct {
	backend Backend
	ttl     time.Duration
	log     zerolog.Logger
}

func NewStore(backend Backend, ttl time.Duration, log zerolog.Logger) *Store {
	return &Store{backend: backend, ttl: ttl, log: log}
}

func NewSessionID() string {
	return uuid.NewString()
}

// For binds a Context to sid. Binding is free; nothing is read until Get.
func (s *Store) For(sid string) *Context {
	return &Context{sid: sid, store: s}
}

// Context is the session of one browser. Only login writes it and only logout
// clears it; every other caller reads.
type Context struct {
	sid   string
	store *Store
}

func (c *Context) ID() string {
	return c.sid
}

// Get returns the stored identity or nil when the session holds none. An
// unverified commuter found in the session is destroyed and reported as absent.
func (c *Context) Get(ctx context.Context) (*model.Identity, error) {
	fields, err := c.store.backend.Fields(ctx, c.sid)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	if raw, ok := fields[FieldPersonnel]; ok {
		var p model.Personnel
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, c.discard(ctx, FieldPersonnel, err)
		}
		id := model.PersonnelIdentity(p)
		return &id, nil
	}
	if raw, ok := fields[FieldAdmin]; ok {
		var a model.Admin
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			return nil, c.discard(ctx, FieldAdmin, err)
		}
		id := model.AdminIdentity(a)
		return &id, nil
	}
	if raw, ok := fields[FieldCommuter]; ok {
		var cm model.Commuter
		if err := json.Unmarshal([]byte(raw), &cm); err != nil {
			return nil, c.discard(ctx, FieldCommuter, err)
		}
		if !cm.Verified {
			c.store.log.Info().Str("sid", c.sid).Int64("commuter_id", cm.ID).Msg("destroying unverified commuter session")
			return nil, c.Clear(ctx)
		}
		id := model.CommuterIdentity(cm)
		return &id, nil
	}
	return nil, nil
}

func (c *Context) discard(ctx context.Context, field string, cause error) error {
	c.store.log.Warn().Err(cause).Str("sid", c.sid).Str("field", field).Msg("dropping unreadable session")
	return c.Clear(ctx)
}

// Set stores id as the only identity of the session.
func (c *Context) Set(ctx context.Context, id model.Identity) error {
	var (
		field   string
		payload interface{}
	)
	switch {
	case id.IsCommuter():
		if !id.Commuter.Verified {
			return ErrUnverified
		}
		field, payload = FieldCommuter, id.Commuter
	case id.IsAdmin():
		field, payload = FieldAdmin, id.Admin
	case id.IsPersonnel():
		field, payload = FieldPersonnel, id.Personnel
	default:
		return ErrInvalidIdentity
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if err := c.store.backend.Replace(ctx, c.sid, field, string(raw), c.store.ttl); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (c *Context) Clear(ctx context.Context) error {
	if err := c.store.backend.Delete(ctx, c.sid); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
