package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type blockingSink struct {
	release chan struct{}
	mu      sync.Mutex
	events  []Event
}

func (s *blockingSink) Emit(_ context.Context, e Event) {
	<-s.release
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
}

func (s *blockingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestDispatcherDisabledIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NoOpSink{}, nil)
	require.Nil(t, d)

	d.Emit(context.Background(), Event{EventType: "x"})
	d.Close()
	assert.Zero(t, d.Dropped())
}

func TestDispatcherDrainsOnClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	sink := NewChannelSink(16)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 16}, sink, nil)
	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: "signup"})
	}
	d.Close()

	assert.Equal(t, uint64(10), d.Delivered())
	assert.Len(t, sink.Events(), 10)
}

func TestDispatcherDropIfFull(t *testing.T) {
	defer goleak.VerifyNone(t)

	sink := &blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink, nil)

	for i := 0; i < 20; i++ {
		d.Emit(context.Background(), Event{EventType: "login"})
	}
	require.Greater(t, d.Dropped(), uint64(0))

	close(sink.release)
	d.Close()
	assert.Equal(t, uint64(20), d.Dropped()+d.Delivered())
	assert.Equal(t, int(d.Delivered()), sink.count())
}

func TestDispatcherEmitAfterCloseIgnored(t *testing.T) {
	sink := NewChannelSink(4)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, sink, nil)
	d.Close()
	d.Emit(context.Background(), Event{EventType: "late"})
	assert.Len(t, sink.Events(), 0)
}

type panicSink struct{}

func (panicSink) Emit(context.Context, Event) { panic("sink exploded") }

type deadlineSink struct {
	deadlines chan bool
}

func (s deadlineSink) Emit(ctx context.Context, _ Event) {
	_, ok := ctx.Deadline()
	s.deadlines <- ok
}

func TestDispatcherSurvivesPanickingSink(t *testing.T) {
	defer goleak.VerifyNone(t)

	core, logs := observer.New(zapcore.ErrorLevel)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, panicSink{}, zap.New(core))
	d.Emit(context.Background(), Event{EventType: "login"})
	d.Emit(context.Background(), Event{EventType: "logout"})
	d.Close()

	assert.Equal(t, uint64(2), d.Failed())
	assert.Zero(t, d.Delivered())
	require.Len(t, logs.All(), 2)
	assert.Equal(t, "logout", logs.All()[1].ContextMap()["event_type"])
}

func TestDispatcherAppliesSinkTimeout(t *testing.T) {
	defer goleak.VerifyNone(t)

	sink := deadlineSink{deadlines: make(chan bool, 2)}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 2, SinkTimeout: time.Second}, sink, nil)
	d.Emit(context.Background(), Event{EventType: "signup"})
	d.Close()
	assert.True(t, <-sink.deadlines)

	plain := NewDispatcher(Config{Enabled: true, BufferSize: 2}, sink, nil)
	plain.Emit(context.Background(), Event{EventType: "signup"})
	plain.Close()
	assert.False(t, <-sink.deadlines)
}

func TestDispatcherStampsMissingTimestamp(t *testing.T) {
	sink := NewChannelSink(1)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, sink, nil)
	d.Emit(context.Background(), Event{EventType: "verify_otp"})
	d.Close()

	require.Len(t, sink.Events(), 1)
	ev := <-sink.Events()
	assert.False(t, ev.Timestamp.IsZero())
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), Event{EventType: "verify_otp", AccountID: "a1", Success: true})
	sink.Emit(context.Background(), Event{EventType: "login", Error: "invalid credentials"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first Event
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "verify_otp", first.EventType)
	assert.Equal(t, "a1", first.AccountID)
}

func TestZapSinkLevels(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sink := NewZapSink(zap.New(core))

	sink.Emit(context.Background(), Event{EventType: "signup", AccountID: "a1", Success: true, Timestamp: time.Now()})
	sink.Emit(context.Background(), Event{EventType: "login", Error: "invalid credentials", Metadata: map[string]string{"reason": "password"}})

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "password", entries[1].ContextMap()["meta.reason"])
	assert.Equal(t, "audit", entries[0].LoggerName)
}
