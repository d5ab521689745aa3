package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partsmarket/internal/service/relay"
	"partsmarket/internal/testutil"
)

func TestRunOutboxStopsCleanlyOnCancel(t *testing.T) {
	d := relay.NewDispatcher(testutil.DB(t), slog.New(slog.NewTextHandler(io.Discard, nil)), relay.Options{Interval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runOutbox(ctx, d, false, io.Discard) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not stop after cancel")
	}
}

func TestRunOutboxOnce(t *testing.T) {
	d := relay.NewDispatcher(testutil.DB(t), slog.New(slog.NewTextHandler(io.Discard, nil)), relay.Options{})

	var out bytes.Buffer
	require.NoError(t, runOutbox(context.Background(), d, true, &out))
	assert.Equal(t, "Dispatched 0 message(s)\n", out.String())
}
