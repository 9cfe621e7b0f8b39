package app

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/authsession/pkg/slogx"
	"github.com/aussiebroadwan/authsession/pkg/tokenstore"
	"github.com/stretchr/testify/require"
)

type countingSweeper struct {
	calls atomic.Int32
}

func (s *countingSweeper) Sweep(context.Context) int {
	s.calls.Add(1)
	return 0
}

func TestHousekeepingSweepsOnStartAndOnTick(t *testing.T) {
	t.Parallel()

	s := &countingSweeper{}
	h := NewHousekeeping(s, slogx.Nop(), 10*time.Millisecond)
	h.Start()

	require.Eventually(t, func() bool { return s.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	h.Stop()

	after := s.calls.Load()
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, after, s.calls.Load(), "no sweeps after Stop")
}

func TestHousekeepingDefaultInterval(t *testing.T) {
	t.Parallel()

	h := NewHousekeeping(&countingSweeper{}, slogx.Nop(), 0)
	require.Equal(t, 15*time.Minute, h.Interval)
}

func TestHousekeepingRemovesExpiredFlows(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := tokenstore.New(tokenstore.NewMemory(), tokenstore.WithLogger(slogx.Nop()))
	store.PutFlow(ctx, tokenstore.Flow{State: "stale"}, time.Millisecond)
	store.PutFlow(ctx, tokenstore.Flow{State: "live"}, time.Hour)
	time.Sleep(5 * time.Millisecond)

	h := NewHousekeeping(store, slogx.Nop(), time.Hour)
	require.Equal(t, 1, h.cleanup())

	_, ok := store.TakeFlow(ctx, "live")
	require.True(t, ok)
}
