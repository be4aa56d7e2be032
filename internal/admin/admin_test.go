package admin

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/labtasker/labtasker/internal/clock"
	"github.com/labtasker/labtasker/internal/engine"
	"github.com/labtasker/labtasker/internal/eventbus"
	"github.com/labtasker/labtasker/internal/store/redisdoc"
)

func newTestAdmin(t *testing.T) (*Admin, *clock.Fake) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := redisdoc.NewFromClient(rdb)
	clk := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	eng := engine.New(s, eventbus.New(16), clk, engine.DefaultConfig())
	return New(s, eng, clk), clk
}

func mustCreateQueue(t *testing.T, a *Admin, name, password string) {
	t.Helper()
	_, err := a.CreateQueue(context.Background(), name, password, nil)
	require.NoError(t, err)
}
