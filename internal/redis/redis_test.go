package redis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_EmptyURLDisablesRedis(t *testing.T) {
	t.Parallel()

	client, err := New(context.Background(), "")
	require.NoError(t, err)
	require.Nil(t, client)
}

func TestNew_RejectsMalformedURL(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), "http://not-redis")
	require.Error(t, err)
}
