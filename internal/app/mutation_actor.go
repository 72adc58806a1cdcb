package app

import (
	"context"
	"strings"
	"time"

	"github.com/g3/tornado/internal/domain"
)

// MutationActor carries caller identity for change-event attribution.
type MutationActor struct {
	ActorID        string
	ImpersonatorID string
}

// WithMutationActor attaches normalized mutation-actor metadata to context.
func WithMutationActor(ctx context.Context, actor MutationActor) context.Context {
	actor = normalizeMutationActor(actor)
	return context.WithValue(ctx, mutationActorContextKey{}, actor)
}

// MutationActorFromContext returns normalized mutation-actor metadata when present.
func MutationActorFromContext(ctx context.Context) (MutationActor, bool) {
	raw := ctx.Value(mutationActorContextKey{})
	actor, ok := raw.(MutationActor)
	if !ok {
		return MutationActor{}, false
	}
	actor = normalizeMutationActor(actor)
	if actor.ActorID == "" {
		return MutationActor{}, false
	}
	return actor, true
}

// mutationActorContextKey stores context keys for mutation actor metadata.
type mutationActorContextKey struct{}

func normalizeMutationActor(actor MutationActor) MutationActor {
	actor.ActorID = strings.TrimSpace(actor.ActorID)
	actor.ImpersonatorID = strings.TrimSpace(actor.ImpersonatorID)
	return actor
}

// withActor stamps the acting user onto ctx before repository writes.
func withActor(ctx context.Context, actor domain.ActorContext) context.Context {
	return WithMutationActor(ctx, MutationActor{
		ActorID:        actor.UserID,
		ImpersonatorID: actor.ImpersonatorID,
	})
}

// SystemActorID attributes ledger writes made without a mutation actor.
const SystemActorID = "tornado-system"

// LedgerEvent builds a change event for task attributed to the context's
// mutation actor. Impersonated writes record the admin in metadata.
func LedgerEvent(ctx context.Context, task domain.Task, op domain.ChangeOperation, metadata map[string]string, at time.Time) domain.ChangeEvent {
	if metadata == nil {
		metadata = map[string]string{}
	}
	actorID := SystemActorID
	if actor, ok := MutationActorFromContext(ctx); ok {
		actorID = actor.ActorID
		if actor.ImpersonatorID != "" {
			metadata["impersonator_id"] = actor.ImpersonatorID
		}
	}
	if at.IsZero() {
		at = time.Now()
	}
	return domain.ChangeEvent{
		ProjectID:  task.ProjectID,
		TaskID:     task.ID,
		Operation:  op,
		ActorID:    actorID,
		Metadata:   metadata,
		OccurredAt: at.UTC(),
	}
}
