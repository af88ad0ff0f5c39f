package session

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/musekit/muse-bridge/internal/assistant"
)

type fakeResponder struct {
	calls int64
	reply string
	err   error
	delay time.Duration
}

func (f *fakeResponder) Ask(ctx context.Context, req assistant.AskRequest) (*assistant.AskResponse, error) {
	atomic.AddInt64(&f.calls, 1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &assistant.AskResponse{Response: f.reply, Mode: req.Mode, Intent: "chat"}, nil
}

func (f *fakeResponder) count() int64 { return atomic.LoadInt64(&f.calls) }

func testOptions() Options {
	return Options{
		RevealInterval: time.Millisecond,
		DedupeWindow:   5 * time.Second,
	}
}

func lastMessage(snap Snapshot) MessageView {
	return snap.Messages[len(snap.Messages)-1]
}

func TestSessionAdoptsExternalID(t *testing.T) {
	s := New("chat-42", ModeMentor, &fakeResponder{}, testOptions())
	defer s.Close()

	assert.Equal(t, "chat-42", s.ID())
	assert.Equal(t, ModeMentor, s.Mode())
}

func TestSessionGeneratesIDWhenMissing(t *testing.T) {
	s := New("", "", &fakeResponder{}, testOptions())
	defer s.Close()

	assert.NotEmpty(t, s.ID())
	assert.Equal(t, ModeFun, s.Mode())
}

func TestHandleSendRevealsReply(t *testing.T) {
	resp := &fakeResponder{reply: "Hi"}
	s := New("s1", ModeFun, resp, testOptions())
	defer s.Close()

	require.True(t, s.HandleSend("hello", "u1"))

	require.Eventually(t, func() bool {
		last := lastMessage(s.Snapshot())
		return last.Sender == SenderBot && last.Complete && last.Content == "Hi"
	}, time.Second, time.Millisecond)

	snap := s.Snapshot()
	require.Len(t, snap.Messages, 3)
	assert.Equal(t, "hello", snap.Messages[1].Content)
	assert.False(t, snap.InFlight)
	assert.EqualValues(t, 1, resp.count())
}

func TestHandleSendDuplicateProducesOneRequest(t *testing.T) {
	resp := &fakeResponder{reply: "ok", delay: 20 * time.Millisecond}
	s := New("s1", ModeFun, resp, testOptions())
	defer s.Close()

	require.True(t, s.HandleSend("same text", "u1"))
	assert.False(t, s.HandleSend("same text", "u1"))

	require.Eventually(t, func() bool {
		return !s.Snapshot().InFlight
	}, time.Second, time.Millisecond)

	assert.EqualValues(t, 1, resp.count())
	assert.Len(t, s.Snapshot().Messages, 3)
}

func TestHandleSendBlankIsNoOp(t *testing.T) {
	resp := &fakeResponder{reply: "ok"}
	s := New("s1", ModeFun, resp, testOptions())
	defer s.Close()

	assert.False(t, s.HandleSend("   ", "u1"))
	assert.EqualValues(t, 0, resp.count())
	assert.Len(t, s.Snapshot().Messages, 1)
}

func TestHandleSendFailureAppendsErrorReply(t *testing.T) {
	resp := &fakeResponder{err: errors.New("backend down")}
	s := New("s1", ModeFun, resp, testOptions())
	defer s.Close()

	require.True(t, s.HandleSend("hello", "u1"))

	require.Eventually(t, func() bool {
		last := lastMessage(s.Snapshot())
		return last.Sender == SenderBot && last.Content == ErrorReply
	}, time.Second, time.Millisecond)

	snap := s.Snapshot()
	assert.True(t, lastMessage(snap).Complete)
	assert.False(t, snap.InFlight)
}

func TestCloseDropsInFlightCompletion(t *testing.T) {
	resp := &fakeResponder{reply: "late", delay: 20 * time.Millisecond}
	s := New("s1", ModeFun, resp, testOptions())

	require.True(t, s.HandleSend("hello", "u1"))
	s.Close()

	time.Sleep(60 * time.Millisecond)

	snap := s.Snapshot()
	require.Len(t, snap.Messages, 2, "late reply must not mutate a closed session")
	assert.Equal(t, "hello", lastMessage(snap).Content)
}

func TestCloseCancelsRevealTicks(t *testing.T) {
	resp := &fakeResponder{reply: "a long answer that keeps typing"}
	s := New("s1", ModeFun, resp, Options{
		RevealInterval: 5 * time.Millisecond,
		DedupeWindow:   5 * time.Second,
	})

	require.True(t, s.HandleSend("hello", "u1"))
	require.Eventually(t, func() bool {
		last := lastMessage(s.Snapshot())
		return last.Sender == SenderBot && !last.Complete
	}, time.Second, time.Millisecond)

	s.Close()
	frozen := lastMessage(s.Snapshot()).Content

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, frozen, lastMessage(s.Snapshot()).Content)
}

func TestSubscribeStreamsRevealFrames(t *testing.T) {
	resp := &fakeResponder{reply: "Hi"}
	s := New("s1", ModeFun, resp, testOptions())
	defer s.Close()

	frames := make(chan Frame, 64)
	cancel := s.Subscribe(func(f Frame) { frames <- f })
	defer cancel()

	require.True(t, s.HandleSend("hello", "u1"))

	var prefixes []string
	deadline := time.After(time.Second)
	for len(prefixes) == 0 || prefixes[len(prefixes)-1] != "Hi" {
		select {
		case f := <-frames:
			if f.Type == "reveal" {
				prefixes = append(prefixes, f.Prefix)
			}
		case <-deadline:
			t.Fatalf("timed out, got prefixes %v", prefixes)
		}
	}
	assert.Equal(t, []string{"H", "Hi"}, prefixes)
}

func TestLoadHistoryReplacesLog(t *testing.T) {
	s := New("s1", ModeFun, &fakeResponder{}, testOptions())
	defer s.Close()

	records := []assistant.HistoryRecord{
		{Query: "Q1", Response: "A1", Mode: "buddy", CreatedAt: base},
	}
	s.LoadHistory(records)
	s.LoadHistory(records)

	snap := s.Snapshot()
	require.Len(t, snap.Messages, 3)
	assert.Equal(t, ModeBuddy, snap.Mode)
	assert.Equal(t, "A1", lastMessage(snap).Content)
	assert.True(t, lastMessage(snap).Complete)
}

func TestLoadHistoryEmptyIsIgnored(t *testing.T) {
	s := New("s1", ModeFun, &fakeResponder{}, testOptions())
	defer s.Close()

	s.LoadHistory(nil)

	snap := s.Snapshot()
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, Greeting, snap.Messages[0].Content)
}
