package bot

import (
	"context"
	"io"
	"sync"

	"github.com/user/discord-voicekit/internal/voice"
)

// guildPlayback is one guild's voice session plus what it is currently
// playing. Command handlers run on separate goroutines, and the session
// requires callers to serialize, so every session call and every
// track/cleanup access goes through the mutex.
type guildPlayback struct {
	session *voice.Session

	mutex   sync.Mutex
	track   string
	cleanup func()
}

func newGuildPlayback(session *voice.Session) *guildPlayback {
	return &guildPlayback{session: session}
}

func (gp *guildPlayback) join(ctx context.Context, maxStatusWaiters int) error {
	gp.mutex.Lock()
	defer gp.mutex.Unlock()
	return gp.session.Join(ctx, maxStatusWaiters)
}

// play starts the stream and takes ownership of its cleanup, releasing
// whatever source was playing before.
func (gp *guildPlayback) play(stream io.Reader, volume float64, track string, cleanup func()) (*voice.Playback, error) {
	gp.mutex.Lock()
	defer gp.mutex.Unlock()

	playback, err := gp.session.Play(stream, volume)
	if err != nil {
		return nil, err
	}

	if gp.cleanup != nil {
		gp.cleanup()
	}
	gp.track = track
	gp.cleanup = cleanup
	return playback, nil
}

func (gp *guildPlayback) pause(ctx context.Context) error {
	gp.mutex.Lock()
	defer gp.mutex.Unlock()
	return gp.session.Pause(ctx, true)
}

func (gp *guildPlayback) resume(ctx context.Context) error {
	gp.mutex.Lock()
	defer gp.mutex.Unlock()
	return gp.session.Unpause(ctx, true)
}

func (gp *guildPlayback) volume() (float64, error) {
	gp.mutex.Lock()
	defer gp.mutex.Unlock()
	return gp.session.Volume()
}

func (gp *guildPlayback) setVolume(v float64) error {
	gp.mutex.Lock()
	defer gp.mutex.Unlock()
	return gp.session.SetVolume(v)
}

// nowPlaying reports the current track and whether it is paused. An
// empty track means nothing is playing.
func (gp *guildPlayback) nowPlaying() (string, bool, error) {
	gp.mutex.Lock()
	defer gp.mutex.Unlock()

	if gp.track == "" {
		return "", false, nil
	}
	paused, err := gp.session.IsPaused()
	return gp.track, paused, err
}

// finish clears the track state once its playback ended. A newer track
// that already replaced it is left alone.
func (gp *guildPlayback) finish(track string) {
	gp.mutex.Lock()
	defer gp.mutex.Unlock()

	if gp.track == track {
		gp.track = ""
		gp.cleanup = nil
	}
}

// destroy releases the audio source and tears down the voice connection.
func (gp *guildPlayback) destroy(ctx context.Context) error {
	gp.mutex.Lock()
	defer gp.mutex.Unlock()

	if gp.cleanup != nil {
		gp.cleanup()
		gp.cleanup = nil
		gp.track = ""
	}
	return gp.session.Destroy(ctx)
}
