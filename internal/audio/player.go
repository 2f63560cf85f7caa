package audio

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/user/discord-voicekit/internal/voice"
)

// frameSendTimeout bounds one frame send into the connection's opus
// channel. A stalled connection fails the playback instead of wedging it.
const frameSendTimeout = 1 * time.Second

// Player is a single-use playback state machine: one Play call, then end
// of stream or Stop. It encodes resource frames to opus and pushes them
// into the sink a connection attaches via Subscribe. Pausing gates the
// loop without losing the stream position.
type Player struct {
	encoder Encoder

	mutex    sync.Mutex
	status   voice.PlayerStatus
	changed  chan struct{} // closed and replaced on every status change
	resource *Resource
	sink     chan<- []byte
	speaking func(bool) error

	attached chan struct{}
	stop     chan struct{}
	stopOnce sync.Once

	events       chan voice.PlayerEvent
	eventsClosed bool
}

// NewPlayer creates an idle player. A nil encoder means the player builds
// its own opus encoder when playback starts.
func NewPlayer(encoder Encoder) *Player {
	return &Player{
		encoder:  encoder,
		status:   voice.PlayerIdle,
		changed:  make(chan struct{}),
		attached: make(chan struct{}),
		stop:     make(chan struct{}),
		events:   make(chan voice.PlayerEvent, 16),
	}
}

// Play starts the playback goroutine for the given resource. Frames flow
// once a connection attaches a sink.
func (p *Player) Play(res voice.Resource) {
	resource, ok := res.(*Resource)
	if !ok {
		p.emit(voice.PlayerEvent{Err: fmt.Errorf("resource %T was not created by this library", res)})
		p.closeEvents()
		return
	}

	p.mutex.Lock()
	p.resource = resource
	p.mutex.Unlock()

	p.setStatus(voice.PlayerBuffering)
	go p.run()
}

// Pause moves a playing or still-buffering player to paused. No-op in
// any other state.
func (p *Player) Pause() {
	if !p.transition(voice.PlayerPlaying, voice.PlayerPaused) {
		p.transition(voice.PlayerBuffering, voice.PlayerPaused)
	}
}

// Unpause moves a paused player back to playing. No-op in any other state.
func (p *Player) Unpause() {
	p.transition(voice.PlayerPaused, voice.PlayerPlaying)
}

// Stop ends the playback permanently.
func (p *Player) Stop() {
	p.stopOnce.Do(func() {
		close(p.stop)
	})
}

// Status returns the current playback status.
func (p *Player) Status() voice.PlayerStatus {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.status
}

// AwaitStatus blocks until the player reports want or ctx is done.
func (p *Player) AwaitStatus(ctx context.Context, want voice.PlayerStatus) error {
	for {
		p.mutex.Lock()
		status := p.status
		changed := p.changed
		p.mutex.Unlock()

		if status == want {
			return nil
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Events streams status transitions and errors. Closed once the player
// reaches its terminal idle state.
func (p *Player) Events() <-chan voice.PlayerEvent {
	return p.events
}

// Attach hands the player its output sink and speaking toggle. Called by
// the connection on Subscribe; later calls are ignored.
func (p *Player) Attach(sink chan<- []byte, speaking func(bool) error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.sink != nil {
		return
	}
	p.sink = sink
	p.speaking = speaking
	close(p.attached)
}

func (p *Player) run() {
	defer p.closeEvents()

	// Buffer until a connection subscribes.
	select {
	case <-p.attached:
	case <-p.stop:
		p.setStatus(voice.PlayerIdle)
		return
	}

	if p.encoder == nil {
		encoder, err := NewOpusEncoder()
		if err != nil {
			p.fail(err)
			return
		}
		p.encoder = encoder
	}

	if err := p.speaking(true); err != nil {
		log.Warn().Err(err).Msg("Failed to set speaking state")
	}
	defer func() {
		if err := p.speaking(false); err != nil {
			log.Debug().Err(err).Msg("Failed to clear speaking state")
		}
	}()

	// A pause that landed while buffering wins; the loop's pause gate
	// below parks until Unpause.
	p.transition(voice.PlayerBuffering, voice.PlayerPlaying)

	for {
		select {
		case <-p.stop:
			p.setStatus(voice.PlayerIdle)
			return
		default:
		}

		if !p.waitWhilePaused() {
			p.setStatus(voice.PlayerIdle)
			return
		}

		frame, err := p.resource.ReadFrame()
		if err == io.EOF {
			p.setStatus(voice.PlayerIdle)
			return
		}
		if err != nil {
			p.fail(err)
			return
		}

		packet, err := p.encoder.Encode(frame)
		if err != nil {
			p.fail(err)
			return
		}

		select {
		case p.sink <- packet:
		case <-p.stop:
			p.setStatus(voice.PlayerIdle)
			return
		case <-time.After(frameSendTimeout):
			p.fail(fmt.Errorf("timeout sending opus frame"))
			return
		}
	}
}

// waitWhilePaused blocks between frames while the player is paused. It
// returns false when the player was stopped instead of resumed.
func (p *Player) waitWhilePaused() bool {
	for {
		p.mutex.Lock()
		status := p.status
		changed := p.changed
		p.mutex.Unlock()

		if status != voice.PlayerPaused {
			return true
		}

		select {
		case <-changed:
		case <-p.stop:
			return false
		}
	}
}

// transition moves the player from one status to another only when the
// first is current, reporting whether it applied.
func (p *Player) transition(from, to voice.PlayerStatus) bool {
	p.mutex.Lock()
	if p.status != from {
		p.mutex.Unlock()
		return false
	}
	p.status = to
	close(p.changed)
	p.changed = make(chan struct{})
	p.mutex.Unlock()

	p.emit(voice.PlayerEvent{Status: to})
	return true
}

func (p *Player) setStatus(to voice.PlayerStatus) {
	p.mutex.Lock()
	if p.status == to {
		p.mutex.Unlock()
		return
	}
	p.status = to
	close(p.changed)
	p.changed = make(chan struct{})
	p.mutex.Unlock()

	p.emit(voice.PlayerEvent{Status: to})
}

// fail emits the error followed by the terminal idle transition.
func (p *Player) fail(err error) {
	p.emit(voice.PlayerEvent{Err: err})
	p.setStatus(voice.PlayerIdle)
}

// emit delivers a player event without blocking the playback loop. A
// transition racing the terminal close is dropped rather than sent on a
// closed channel.
func (p *Player) emit(ev voice.PlayerEvent) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.eventsClosed {
		return
	}

	select {
	case p.events <- ev:
	default:
		log.Warn().
			Str("status", ev.Status.String()).
			Msg("Player event dropped (channel full)")
	}
}

func (p *Player) closeEvents() {
	p.mutex.Lock()
	p.eventsClosed = true
	close(p.events)
	p.mutex.Unlock()
}
