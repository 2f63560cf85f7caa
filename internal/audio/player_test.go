package audio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/user/discord-voicekit/internal/voice"
)

type stubEncoder struct {
	calls int
	err   error
}

func (e *stubEncoder) Encode(pcm []int16) ([]byte, error) {
	if e.err != nil {
		return nil, e.err
	}
	e.calls++
	return []byte{byte(e.calls)}, nil
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func noopSpeaking(bool) error { return nil }

func drainEvents(t *testing.T, p *Player) []voice.PlayerEvent {
	t.Helper()
	var events []voice.PlayerEvent
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-p.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("player event stream never closed")
		}
	}
}

func statusSequence(events []voice.PlayerEvent) []voice.PlayerStatus {
	var statuses []voice.PlayerStatus
	for _, ev := range events {
		if ev.Err == nil {
			statuses = append(statuses, ev.Status)
		}
	}
	return statuses
}

func TestPlayerStreamsResourceToSink(t *testing.T) {
	resource, err := NewResource(bytes.NewReader(make([]byte, frameBytes*2)), 1)
	if err != nil {
		t.Fatalf("NewResource failed: %v", err)
	}

	player := NewPlayer(&stubEncoder{})
	sink := make(chan []byte, 8)

	player.Play(resource)
	player.Attach(sink, noopSpeaking)

	events := drainEvents(t, player)

	want := []voice.PlayerStatus{voice.PlayerBuffering, voice.PlayerPlaying, voice.PlayerIdle}
	got := statusSequence(events)
	if len(got) != len(want) {
		t.Fatalf("expected transitions %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected transitions %v, got %v", want, got)
		}
	}

	if len(sink) != 2 {
		t.Fatalf("expected 2 encoded frames, got %d", len(sink))
	}
	first, second := <-sink, <-sink
	if first[0] != 1 || second[0] != 2 {
		t.Errorf("frames out of order: %v %v", first, second)
	}
}

func TestPlayerPauseResume(t *testing.T) {
	reader, writer := io.Pipe()
	resource, err := NewResource(reader, 1)
	if err != nil {
		t.Fatalf("NewResource failed: %v", err)
	}

	player := NewPlayer(&stubEncoder{})
	sink := make(chan []byte, 8)
	ctx := testContext(t)

	player.Play(resource)
	player.Attach(sink, noopSpeaking)

	if err := player.AwaitStatus(ctx, voice.PlayerPlaying); err != nil {
		t.Fatalf("player never started: %v", err)
	}

	player.Pause()
	if err := player.AwaitStatus(ctx, voice.PlayerPaused); err != nil {
		t.Fatalf("player never paused: %v", err)
	}
	if player.Status() != voice.PlayerPaused {
		t.Fatalf("expected paused, got %s", player.Status())
	}

	player.Unpause()
	if err := player.AwaitStatus(ctx, voice.PlayerPlaying); err != nil {
		t.Fatalf("player never resumed: %v", err)
	}

	// The stream position is intact: the next written frame flows out.
	go writer.Write(pcmBytes(constFrame(100)))
	select {
	case <-sink:
	case <-time.After(2 * time.Second):
		t.Fatal("no frame delivered after resume")
	}

	writer.Close()
	if err := player.AwaitStatus(ctx, voice.PlayerIdle); err != nil {
		t.Fatalf("player never went idle: %v", err)
	}
}

func TestPlayerPauseWhileBuffering(t *testing.T) {
	resource, err := NewResource(bytes.NewReader(make([]byte, frameBytes*2)), 1)
	if err != nil {
		t.Fatalf("NewResource failed: %v", err)
	}

	player := NewPlayer(&stubEncoder{})
	ctx := testContext(t)

	// Pause lands before any connection subscribes, while the player is
	// still buffering.
	player.Play(resource)
	player.Pause()
	if err := player.AwaitStatus(ctx, voice.PlayerPaused); err != nil {
		t.Fatalf("pause while buffering was not honored: %v", err)
	}

	sink := make(chan []byte, 8)
	player.Attach(sink, noopSpeaking)

	select {
	case <-sink:
		t.Fatal("frame delivered while paused")
	case <-time.After(100 * time.Millisecond):
	}
	if player.Status() != voice.PlayerPaused {
		t.Fatalf("expected paused after attach, got %s", player.Status())
	}

	player.Unpause()
	if err := player.AwaitStatus(ctx, voice.PlayerIdle); err != nil {
		t.Fatalf("player never drained after unpause: %v", err)
	}
	if len(sink) != 2 {
		t.Fatalf("expected 2 frames after unpause, got %d", len(sink))
	}
}

func TestPlayerStopDuringPlayback(t *testing.T) {
	resource, err := NewResource(bytes.NewReader(make([]byte, frameBytes*100)), 1)
	if err != nil {
		t.Fatalf("NewResource failed: %v", err)
	}

	player := NewPlayer(&stubEncoder{})
	sink := make(chan []byte) // unbuffered: the loop blocks between frames
	ctx := testContext(t)

	player.Play(resource)
	player.Attach(sink, noopSpeaking)

	select {
	case <-sink:
	case <-time.After(2 * time.Second):
		t.Fatal("no frame delivered")
	}

	player.Stop()
	if err := player.AwaitStatus(ctx, voice.PlayerIdle); err != nil {
		t.Fatalf("player never went idle after Stop: %v", err)
	}

	events := drainEvents(t, player)
	statuses := statusSequence(events)
	if statuses[len(statuses)-1] != voice.PlayerIdle {
		t.Errorf("expected terminal idle, got %v", statuses)
	}
}

func TestPlayerStopBeforeAttach(t *testing.T) {
	resource, err := NewResource(bytes.NewReader(make([]byte, frameBytes)), 1)
	if err != nil {
		t.Fatalf("NewResource failed: %v", err)
	}

	player := NewPlayer(&stubEncoder{})
	player.Play(resource)
	player.Stop()

	events := drainEvents(t, player)
	statuses := statusSequence(events)
	if len(statuses) == 0 || statuses[len(statuses)-1] != voice.PlayerIdle {
		t.Errorf("expected terminal idle without a sink, got %v", statuses)
	}
	for _, status := range statuses {
		if status == voice.PlayerPlaying {
			t.Error("player reported playing without an attached sink")
		}
	}
}

func TestPlayerEncoderError(t *testing.T) {
	resource, err := NewResource(bytes.NewReader(make([]byte, frameBytes)), 1)
	if err != nil {
		t.Fatalf("NewResource failed: %v", err)
	}

	player := NewPlayer(&stubEncoder{err: errors.New("codec broke")})
	sink := make(chan []byte, 8)

	player.Play(resource)
	player.Attach(sink, noopSpeaking)

	events := drainEvents(t, player)

	var gotErr error
	for _, ev := range events {
		if ev.Err != nil {
			gotErr = ev.Err
		}
	}
	if gotErr == nil {
		t.Fatal("encoder error was not surfaced")
	}

	statuses := statusSequence(events)
	if statuses[len(statuses)-1] != voice.PlayerIdle {
		t.Errorf("player did not settle idle after error: %v", statuses)
	}
}

func TestPlayerRejectsForeignResource(t *testing.T) {
	player := NewPlayer(&stubEncoder{})
	player.Play(foreignResource{})

	events := drainEvents(t, player)
	if len(events) != 1 || events[0].Err == nil {
		t.Fatalf("expected a single error event, got %v", events)
	}
}

type foreignResource struct{}

func (foreignResource) Volume() float64   { return 1 }
func (foreignResource) SetVolume(float64) {}
