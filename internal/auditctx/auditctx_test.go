package auditctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestActorRoundTrip(t *testing.T) {
	ctx := WithActor(context.Background(), Actor{UserID: "u1", Email: "bar@example.com", RequestID: "req-1"})

	actor, ok := FromContext(ctx)
	require.True(t, ok)
	require.Equal(t, Actor{UserID: "u1", Email: "bar@example.com", RequestID: "req-1"}, actor)

	_, ok = FromContext(context.Background())
	require.False(t, ok)

	//nolint:staticcheck // nil context is tolerated
	actor, ok = FromContext(WithActor(nil, System))
	require.True(t, ok)
	require.Equal(t, "system", actor.Email)
	require.Empty(t, actor.UserID)
}
