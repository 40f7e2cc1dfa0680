package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/posebridge/internal/core"
)

func TestFIFOOrder(t *testing.T) {
	tx, rx := New[int](4)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		require.NoError(t, tx.Send(ctx, i))
	}
	for i := 1; i <= 4; i++ {
		v, ok := rx.TryRecv()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
	_, ok := rx.TryRecv()
	assert.False(t, ok)
}

func TestDefaultCapacity(t *testing.T) {
	tx, _ := New[int](0)
	assert.Equal(t, DefaultCapacity, tx.Cap())
}

func TestSendBlocksWhenFull(t *testing.T) {
	const k = 3
	tx, rx := New[int](k)
	ctx := context.Background()

	for i := 0; i < k; i++ {
		require.NoError(t, tx.Send(ctx, i))
	}

	sent := make(chan error, 1)
	go func() { sent <- tx.Send(ctx, k) }()

	select {
	case <-sent:
		t.Fatal("send on a full queue must block")
	case <-time.After(50 * time.Millisecond):
	}

	v, ok := rx.TryRecv()
	require.True(t, ok)
	assert.Equal(t, 0, v)

	select {
	case err := <-sent:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("send did not resume after a dequeue")
	}
	assert.Equal(t, k, rx.Len())
}

func TestReceiverGoneUnblocksSender(t *testing.T) {
	tx, rx := New[int](1)
	ctx := context.Background()
	require.NoError(t, tx.Send(ctx, 1))

	sent := make(chan error, 1)
	go func() { sent <- tx.Send(ctx, 2) }()

	rx.Close()
	select {
	case err := <-sent:
		assert.ErrorIs(t, err, core.ErrReceiverGone)
	case <-time.After(time.Second):
		t.Fatal("blocked send not released by receiver close")
	}

	assert.ErrorIs(t, tx.Send(ctx, 3), core.ErrReceiverGone)
	rx.Close() // idempotent
}

func TestSendHonoursContext(t *testing.T) {
	tx, _ := New[int](1)
	require.NoError(t, tx.Send(context.Background(), 1))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, tx.Send(ctx, 2), context.DeadlineExceeded)
}

func TestSenderCloseDrainsThenEnds(t *testing.T) {
	tx, rx := New[string](2)
	ctx := context.Background()
	require.NoError(t, tx.Send(ctx, "a"))
	assert.False(t, rx.Closed())
	tx.Close()
	tx.Close()
	assert.False(t, rx.Closed(), "an item is still pending")

	v, ok := rx.Recv(ctx)
	require.True(t, ok)
	assert.Equal(t, "a", v)
	assert.True(t, rx.Closed())

	_, ok = rx.Recv(ctx)
	assert.False(t, ok)
	_, ok = rx.TryRecv()
	assert.False(t, ok)
}
