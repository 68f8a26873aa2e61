package bus

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestInMemoryBusRoutesByTopic(t *testing.T) {
	t.Parallel()

	b := NewInMemoryBus(zaptest.NewLogger(t))

	var gotA, gotB [][]byte
	b.Subscribe("topic-a", func(_ context.Context, payload []byte) error {
		gotA = append(gotA, payload)
		return nil
	})
	b.Subscribe("topic-b", func(_ context.Context, payload []byte) error {
		gotB = append(gotB, payload)
		return nil
	})

	require.NoError(t, b.Publish(context.Background(), "m1", "topic-a", []byte("one")))
	require.NoError(t, b.Publish(context.Background(), "m2", "topic-a", []byte("two")))

	assert.Len(t, gotA, 2)
	assert.Empty(t, gotB)
}

func TestInMemoryBusNoSubscribers(t *testing.T) {
	t.Parallel()

	b := NewInMemoryBus(zaptest.NewLogger(t))

	err := b.Publish(context.Background(), "m1", "nowhere", []byte("x"))
	assert.Error(t, err)
}

func TestInMemoryBusPropagatesHandlerError(t *testing.T) {
	t.Parallel()

	b := NewInMemoryBus(zaptest.NewLogger(t))
	handlerErr := errors.New("boom")
	b.Subscribe("topic", func(context.Context, []byte) error { return handlerErr })

	err := b.Publish(context.Background(), "m1", "topic", []byte("x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, handlerErr)
}
