package voice

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Playback is the event surface returned by Play. Each channel fires at
// most once for the playback it belongs to: Playing and Idle are closed
// on the first matching transition, Err delivers the first player error.
type Playback struct {
	id      uuid.UUID
	playing chan struct{}
	idle    chan struct{}
	errc    chan error
}

func newPlayback(p Player) *Playback {
	pb := &Playback{
		id:      uuid.New(),
		playing: make(chan struct{}),
		idle:    make(chan struct{}),
		errc:    make(chan error, 1),
	}
	go pb.watch(p)
	return pb
}

// ID identifies the playback in logs.
func (pb *Playback) ID() uuid.UUID {
	return pb.id
}

// Playing is closed when the player first transitions to playing.
func (pb *Playback) Playing() <-chan struct{} {
	return pb.playing
}

// Idle is closed when the player first transitions to idle.
func (pb *Playback) Idle() <-chan struct{} {
	return pb.idle
}

// Err delivers the first player error, if any.
func (pb *Playback) Err() <-chan error {
	return pb.errc
}

// watch drains the player's event stream and fires each surface channel
// at most once.
func (pb *Playback) watch(p Player) {
	var playingFired, idleFired, errFired bool

	for ev := range p.Events() {
		switch {
		case ev.Err != nil:
			if !errFired {
				errFired = true
				pb.errc <- ev.Err
				log.Warn().
					Str("playback_id", pb.id.String()).
					Err(ev.Err).
					Msg("Playback error")
			}
		case ev.Status == PlayerPlaying:
			if !playingFired {
				playingFired = true
				close(pb.playing)
			}
		case ev.Status == PlayerIdle:
			if !idleFired {
				idleFired = true
				close(pb.idle)
			}
		}
	}

	log.Debug().Str("playback_id", pb.id.String()).Msg("Playback event stream closed")
}
