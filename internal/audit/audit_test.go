package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NoOpSink{})
	require.Nil(t, d)

	d.Emit(context.Background(), Event{Type: TypeLogin})
	require.NoError(t, d.Close(context.Background()))
	require.Zero(t, d.Dropped())
}

func TestDispatcherDeliversInOrder(t *testing.T) {
	sink := NewChannelSink(16)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 16}, sink)

	for _, typ := range []string{TypeLogin, TypeMFAVerify, TypeRefresh} {
		d.Emit(context.Background(), Event{Type: typ, Success: true})
	}
	require.NoError(t, d.Close(context.Background()))
	require.Equal(t, uint64(3), d.Delivered())

	var got []string
	for i := 0; i < 3; i++ {
		got = append(got, (<-sink.Events()).Type)
	}
	require.Equal(t, []string{TypeLogin, TypeMFAVerify, TypeRefresh}, got)
}

type blockingSink struct {
	release chan struct{}
	once    sync.Once
	started chan struct{}
}

func (s *blockingSink) Emit(context.Context, Event) {
	s.once.Do(func() { close(s.started) })
	<-s.release
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{}), started: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	d.Emit(context.Background(), Event{Type: TypeLogin})
	<-sink.started

	d.Emit(context.Background(), Event{Type: TypeLogin})
	d.Emit(context.Background(), Event{Type: TypeLogin})
	require.Equal(t, uint64(1), d.Dropped())

	close(sink.release)
	require.NoError(t, d.Close(context.Background()))
	require.Equal(t, uint64(2), d.Delivered())
}

func TestDispatcherCloseHonorsContext(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{}), started: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, sink)

	d.Emit(context.Background(), Event{Type: TypeLogin})
	<-sink.started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, d.Close(ctx), context.DeadlineExceeded)

	close(sink.release)
	require.NoError(t, d.Close(context.Background()))
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), Event{Type: TypeLogout, UserID: "u-1", Success: true})
	sink.Emit(context.Background(), Event{Type: TypeLogin, Reason: "invalid_credentials"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first Event
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.Equal(t, TypeLogout, first.Type)
	require.Equal(t, "u-1", first.UserID)
	require.Contains(t, lines[1], `"reason":"invalid_credentials"`)
}

func TestLogSinkLevels(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(zerolog.New(&buf))

	sink.Emit(context.Background(), Event{Type: TypeLogin, Success: true, UserID: "u-1"})
	sink.Emit(context.Background(), Event{Type: TypeAuthenticate, Reason: "revoked", IP: "10.0.0.1"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], `"level":"info"`)
	require.Contains(t, lines[0], `"user_id":"u-1"`)
	require.Contains(t, lines[1], `"level":"warn"`)
	require.Contains(t, lines[1], `"reason":"revoked"`)
	require.Contains(t, lines[1], `"component":"audit"`)
}
