package memory

import (
	"context"
	"strings"

	"github.com/Shivanand-hulikatti/event-attendance/internal/errdef"
	"github.com/Shivanand-hulikatti/event-attendance/internal/model"
)

type ActorRepository struct {
	s *Store
}

func (r *ActorRepository) Create(_ context.Context, actor model.Actor, passwordHash string) error {
	email := strings.ToLower(actor.Email)

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.byEmail[email]; ok {
		return errdef.NewDuplicateIdentity("email %s is already registered", email)
	}
	if _, ok := r.s.actors[actor.ID]; ok {
		return errdef.NewDuplicateIdentity("actor %s already exists", actor.ID)
	}
	r.s.actors[actor.ID] = actorEntry{actor: actor, passwordHash: passwordHash}
	r.s.byEmail[email] = actor.ID
	return nil
}

func (r *ActorRepository) GetByID(_ context.Context, id string) (model.Actor, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.actors[id]
	if !ok {
		return model.Actor{}, errdef.NewNotFound("actor %s not found", id)
	}
	return a.actor, nil
}

// GetByEmail returns the actor and its password hash.
func (r *ActorRepository) GetByEmail(_ context.Context, email string) (model.Actor, string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	id, ok := r.s.byEmail[strings.ToLower(email)]
	if !ok {
		return model.Actor{}, "", errdef.NewNotFound("actor with email %s not found", email)
	}
	a := r.s.actors[id]
	return a.actor, a.passwordHash, nil
}
