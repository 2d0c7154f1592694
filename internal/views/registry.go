package views

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"sk3-portal/internal/config"
	"sk3-portal/internal/model"
	"sk3-portal/internal/poller"
)

var ErrNoViews = errors.New("role has no dashboard")

// Registry maps session ids to their mounted workspaces.
type Registry struct {
	src     Source
	polls   config.PollConfig
	idleTTL time.Duration
	log     zerolog.Logger
	now     func() time.Time

	mu         sync.Mutex
	workspaces map[string]*Workspace
}

func NewRegistry(src Source, polls config.PollConfig, idleTTL time.Duration, log zerolog.Logger) *Registry {
	return &Registry{
		src:        src,
		polls:      polls,
		idleTTL:    idleTTL,
		log:        log,
		now:        time.Now,
		workspaces: make(map[string]*Workspace),
	}
}

// Mount returns the workspace of sid, starting one when none is mounted or the
// mounted one belongs to another identity.
func (r *Registry) Mount(sid string, owner model.Identity) (*Workspace, error) {
	if len(ViewsFor(owner.Role)) == 0 {
		return nil, ErrNoViews
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if w, ok := r.workspaces[sid]; ok {
		if w.owner.Role == owner.Role && w.owner.ID() == owner.ID() {
			w.touch(r.now())
			return w, nil
		}
		w.stop()
		delete(r.workspaces, sid)
	}

	w := newWorkspace(owner, r.src, r.polls, r.log.With().Str("sid", sid).Logger())
	w.start()
	w.touch(r.now())
	r.workspaces[sid] = w
	r.log.Info().Str("sid", sid).Str("role", string(owner.Role)).Msg("workspace mounted")
	return w, nil
}

func (r *Registry) Get(sid string) (*Workspace, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workspaces[sid]
	if ok {
		w.touch(r.now())
	}
	return w, ok
}

func (r *Registry) Unmount(sid string) {
	r.mu.Lock()
	w, ok := r.workspaces[sid]
	delete(r.workspaces, sid)
	r.mu.Unlock()

	if ok {
		w.stop()
		r.log.Info().Str("sid", sid).Msg("workspace unmounted")
	}
}

// Reap stops every workspace idle for longer than the idle TTL and returns how
// many it stopped.
func (r *Registry) Reap() int {
	if r.idleTTL <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.idleTTL)

	r.mu.Lock()
	var idle []*Workspace
	for sid, w := range r.workspaces {
		if w.idleSince().Before(cutoff) {
			idle = append(idle, w)
			delete(r.workspaces, sid)
		}
	}
	r.mu.Unlock()

	for _, w := range idle {
		w.stop()
	}
	if len(idle) > 0 {
		r.log.Info().Int("count", len(idle)).Msg("reaped idle workspaces")
	}
	return len(idle)
}

// Run reaps idle workspaces until ctx ends.
func (r *Registry) Run(ctx context.Context) (stop func()) {
	every := r.idleTTL / 2
	if every < time.Second {
		every = time.Second
	}
	return poller.Every(ctx, every, func(context.Context) { r.Reap() })
}

// Close unmounts every workspace.
func (r *Registry) Close() {
	r.mu.Lock()
	all := r.workspaces
	r.workspaces = make(map[string]*Workspace)
	r.mu.Unlock()

	for _, w := range all {
		w.stop()
	}
}
