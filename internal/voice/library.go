package voice

import (
	"context"
	"io"
)

// ConnectionStatus mirrors the connection lifecycle reported by the
// wrapped voice library.
type ConnectionStatus int

const (
	ConnectionSignalling ConnectionStatus = iota
	ConnectionConnecting
	ConnectionReady
	ConnectionDisconnected
	ConnectionDestroyed
)

func (s ConnectionStatus) String() string {
	switch s {
	case ConnectionSignalling:
		return "signalling"
	case ConnectionConnecting:
		return "connecting"
	case ConnectionReady:
		return "ready"
	case ConnectionDisconnected:
		return "disconnected"
	case ConnectionDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// PlayerStatus mirrors the playback lifecycle reported by the wrapped
// voice library.
type PlayerStatus int

const (
	PlayerIdle PlayerStatus = iota
	PlayerBuffering
	PlayerPlaying
	PlayerPaused
)

func (s PlayerStatus) String() string {
	switch s {
	case PlayerIdle:
		return "idle"
	case PlayerBuffering:
		return "buffering"
	case PlayerPlaying:
		return "playing"
	case PlayerPaused:
		return "paused"
	default:
		return "unknown"
	}
}

// Permissions is the subset of channel permission bits the session checks
// before joining.
type Permissions int64

const (
	PermissionViewChannel Permissions = 1 << iota
	PermissionConnect
	PermissionSpeak
)

// Has reports whether all bits of want are set.
func (p Permissions) Has(want Permissions) bool {
	return p&want == want
}

// Channel is a resolved voice channel.
type Channel struct {
	ID      string
	GuildID string
	Name    string
}

// Directory resolves channels and permission sets. Implemented by the
// Discord client adapter.
type Directory interface {
	Channel(id string) (*Channel, error)
	SelfPermissions(guildID, channelID string) (Permissions, error)
}

// JoinOptions tunes a single join request.
type JoinOptions struct {
	// MaxStatusWaiters caps the number of concurrent status waiters the
	// connection will accept. Zero means no cap.
	MaxStatusWaiters int
}

// Library is the voice client library the session delegates to. The
// connection registry the library keeps per guild is exposed here
// explicitly rather than consulted as ambient global state.
type Library interface {
	GetConnection(guildID string) (Connection, bool)
	JoinChannel(guildID, channelID string, opts JoinOptions) (Connection, error)
	NewPlayer() Player
	NewResource(stream io.Reader, volume float64) (Resource, error)
}

// Connection is a live voice channel link for one guild, owned by the
// wrapped library.
type Connection interface {
	GuildID() string
	ChannelID() string
	Status() ConnectionStatus

	// AwaitStatus blocks until the connection reports want or ctx is done.
	// It returns immediately when want is the current status. The wait is
	// unbounded unless the caller's context carries a deadline.
	AwaitStatus(ctx context.Context, want ConnectionStatus) error

	// Subscribe routes the player's output into this connection.
	Subscribe(p Player)

	Destroy()
}

// PlayerEvent is one status transition or terminal error from a player.
type PlayerEvent struct {
	Status PlayerStatus
	Err    error
}

// Player is the wrapped library's audio playback state machine. A player
// is single use: one Play, then Stop or end of stream.
type Player interface {
	Status() PlayerStatus
	Play(r Resource)
	Pause()
	Unpause()
	Stop()

	// AwaitStatus blocks until the player reports want or ctx is done.
	AwaitStatus(ctx context.Context, want PlayerStatus) error

	// Events streams status transitions and errors in order. The channel
	// is closed once the player reaches its terminal idle state.
	Events() <-chan PlayerEvent
}

// Resource is a playable audio stream with an attached volume control.
type Resource interface {
	Volume() float64
	SetVolume(v float64)
}
