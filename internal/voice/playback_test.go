package voice

import (
	"errors"
	"testing"
	"time"
)

func waitFired(t *testing.T, ch <-chan struct{}, name string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatalf("%s never fired", name)
	}
}

func TestPlaybackFiresEachTransitionOnce(t *testing.T) {
	player := newFakePlayer()
	playback := newPlayback(player)

	player.events <- PlayerEvent{Status: PlayerBuffering}
	player.events <- PlayerEvent{Status: PlayerPlaying}
	// A pause/unpause cycle re-reports playing; the surface must not
	// fire a second time.
	player.events <- PlayerEvent{Status: PlayerPaused}
	player.events <- PlayerEvent{Status: PlayerPlaying}
	player.events <- PlayerEvent{Status: PlayerIdle}
	close(player.events)

	waitFired(t, playback.Playing(), "playing")
	waitFired(t, playback.Idle(), "idle")

	select {
	case err := <-playback.Err():
		t.Fatalf("unexpected playback error: %v", err)
	default:
	}
}

func TestPlaybackDeliversFirstError(t *testing.T) {
	player := newFakePlayer()
	playback := newPlayback(player)

	player.events <- PlayerEvent{Status: PlayerPlaying}
	player.events <- PlayerEvent{Err: errors.New("stream died")}
	player.events <- PlayerEvent{Err: errors.New("second failure")}
	close(player.events)

	select {
	case err := <-playback.Err():
		if err.Error() != "stream died" {
			t.Errorf("expected the first error, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("no error delivered")
	}

	// No duplicate delivery.
	select {
	case err := <-playback.Err():
		t.Fatalf("second error delivered: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPlaybackWithoutTransitions(t *testing.T) {
	player := newFakePlayer()
	playback := newPlayback(player)
	close(player.events)

	select {
	case <-playback.Playing():
		t.Fatal("playing fired without a transition")
	case <-playback.Idle():
		t.Fatal("idle fired without a transition")
	case <-time.After(50 * time.Millisecond):
	}
}
