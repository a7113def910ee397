package fallback

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failing(name string, calls *[]string) Strategy[string, string] {
	return &Func[string, string]{ID: name, Fn: func(context.Context, string) (string, error) {
		*calls = append(*calls, name)
		return "", errors.Errorf("%s is down", name)
	}}
}

func succeeding(name string, calls *[]string) Strategy[string, string] {
	return &Func[string, string]{ID: name, Fn: func(_ context.Context, input string) (string, error) {
		*calls = append(*calls, name)
		return name + ":" + input, nil
	}}
}

func TestChainStopsAtFirstSuccess(t *testing.T) {
	var calls []string
	chain := NewChain[string, string](zerolog.Nop(),
		failing("primary", &calls),
		nil,
		succeeding("secondary", &calls),
		succeeding("public", &calls),
	)
	require.Equal(t, 3, chain.Len())

	out, name, err := chain.Attempt(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "secondary:hi", out)
	assert.Equal(t, "secondary", name)
	assert.Equal(t, []string{"primary", "secondary"}, calls)
}

func TestChainReturnsLastError(t *testing.T) {
	var calls []string
	chain := NewChain(zerolog.Nop(), failing("a", &calls), failing("b", &calls))

	_, _, err := chain.Attempt(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b is down")
	assert.Equal(t, []string{"a", "b"}, calls)
}

func TestChainEmpty(t *testing.T) {
	_, _, err := NewChain[string, string](zerolog.Nop()).Attempt(context.Background(), "hi")
	assert.Error(t, err)
}

func TestChainCancelled(t *testing.T) {
	var calls []string
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := NewChain(zerolog.Nop(), succeeding("a", &calls)).Attempt(ctx, "hi")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, calls)
}
