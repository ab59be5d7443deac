package auditcontext

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActorFromContextFallsBackToUnknown(t *testing.T) {
	assert.Equal(t, UnknownActor, ActorFromContext(context.Background()))
	assert.Equal(t, UnknownActor, ActorFromContext(WithActor(context.Background(), "  ", RoleStaff)))
}

func TestWithActorNormalizesRole(t *testing.T) {
	ctx := WithActor(context.Background(), " Maria Santos ", " Admin ")

	assert.Equal(t, "Maria Santos", ActorFromContext(ctx))
	assert.Equal(t, RoleAdmin, RoleFromContext(ctx))
}
