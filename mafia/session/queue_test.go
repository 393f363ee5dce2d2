package session_test

import (
	"context"
	"testing"
	"time"

	"mafserver/mafia/game"
	"mafserver/mafia/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	q := session.NewQueue()
	q.Put(game.Event{Kind: game.EvPlayerFinished, Name: "a"})
	q.Put(game.Event{Kind: game.EvPlayerFinished, Name: "b"})
	q.Put(game.Event{Kind: game.EvPhaseFinished})

	ctx := context.Background()
	for _, want := range []string{"a", "b"} {
		ev, err := q.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, ev.Name)
	}
	ev, err := q.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, game.EvPhaseFinished, ev.Kind)
}

func TestQueueGetBlocksUntilPut(t *testing.T) {
	q := session.NewQueue()

	got := make(chan game.Event, 1)
	go func() {
		ev, err := q.Get(context.Background())
		if err == nil {
			got <- ev
		}
	}()

	select {
	case <-got:
		t.Fatal("Get returned before Put")
	case <-time.After(20 * time.Millisecond):
	}

	q.Put(game.Event{Kind: game.EvPhaseStart})
	select {
	case ev := <-got:
		assert.Equal(t, game.EvPhaseStart, ev.Kind)
	case <-time.After(time.Second):
		t.Fatal("Get did not observe Put")
	}
}

func TestQueueGetHonorsContext(t *testing.T) {
	q := session.NewQueue()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Get(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueueCloseWakesGetter(t *testing.T) {
	q := session.NewQueue()

	errc := make(chan error, 1)
	go func() {
		_, err := q.Get(context.Background())
		errc <- err
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, session.ErrQueueClosed)
	case <-time.After(time.Second):
		t.Fatal("Get did not observe Close")
	}
}

func TestQueueDrainsAfterClose(t *testing.T) {
	q := session.NewQueue()
	q.Put(game.Event{Kind: game.EvPhaseStart})
	q.Close()

	ev, err := q.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, game.EvPhaseStart, ev.Kind)

	_, err = q.Get(context.Background())
	assert.ErrorIs(t, err, session.ErrQueueClosed)
}

func TestGroupFanOut(t *testing.T) {
	grp := session.NewGroup([]string{"a", "b", "c"})
	grp.Put(game.Event{Kind: game.EvPhaseStart})

	for _, name := range []string{"a", "b", "c"} {
		ev, err := grp.Queue(name).Get(context.Background())
		require.NoError(t, err)
		assert.Equal(t, game.EvPhaseStart, ev.Kind)
	}

	assert.Nil(t, grp.Queue("d"))
}
