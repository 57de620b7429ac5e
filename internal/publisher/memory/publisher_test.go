package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/company-signals/internal/publisher"
)

func TestPublisherStoresMessages(t *testing.T) {
	t.Parallel()

	pub := New()
	id1, err := pub.Publish(context.Background(), publisher.EventRunCompleted, publisher.RunCompleted{RunID: "a"})
	require.NoError(t, err)
	assert.Equal(t, "memory-1", id1)
	id2, err := pub.Publish(context.Background(), publisher.EventRunCompleted, publisher.RunCompleted{RunID: "b"})
	require.NoError(t, err)
	assert.Equal(t, "memory-2", id2)

	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "b", msgs[1].Payload.(publisher.RunCompleted).RunID)

	msgs[0].Topic = "modified"
	assert.Equal(t, publisher.EventRunCompleted, pub.Messages()[0].Topic)
}

func TestPublisherInjectedError(t *testing.T) {
	t.Parallel()

	pub := New()
	pub.Err = assert.AnError
	_, err := pub.Publish(context.Background(), publisher.EventRunCompleted, nil)
	require.ErrorIs(t, err, assert.AnError)
	assert.Empty(t, pub.Messages())
}
