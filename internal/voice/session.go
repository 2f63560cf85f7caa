// Package voice wraps a Discord voice client library behind a small
// session type with guarded join/playback operations and a tagged error
// type. The session owns no protocol or playback state machine of its
// own; it only gates on the status the wrapped library reports.
package voice

import (
	"context"
	"io"

	"github.com/rs/zerolog/log"
)

// Session drives one voice channel through the wrapped library. A session
// holds the target channel ID from construction and learns its guild ID
// on the first successful Join. The current player and resource handles
// are replaced wholesale on every Play.
//
// Session operations are not safe for concurrent use; callers serialize
// per session.
type Session struct {
	lib Library
	dir Directory

	channelID string
	guildID   string

	player   Player
	resource Resource
}

// NewSession creates a session for the given voice channel. The library
// and directory are the wrapped collaborators every operation delegates
// to.
func NewSession(lib Library, dir Directory, channelID string) *Session {
	return &Session{
		lib:       lib,
		dir:       dir,
		channelID: channelID,
	}
}

// ChannelID returns the channel the session was created for.
func (s *Session) ChannelID() string {
	return s.channelID
}

// GuildID returns the guild resolved on the first successful Join, or the
// empty string before that.
func (s *Session) GuildID() string {
	return s.guildID
}

// Join connects the session's channel and blocks until the wrapped
// library reports the connection ready. Joining is idempotent: when a
// ready connection for the resolved guild already exists the call returns
// immediately. maxStatusWaiters caps concurrent status waiters on the new
// connection; zero means no cap.
func (s *Session) Join(ctx context.Context, maxStatusWaiters int) error {
	channel, err := s.dir.Channel(s.channelID)
	if err != nil {
		return newError(CodeNoChannel, "failed to resolve channel %s: %v", s.channelID, err)
	}
	s.guildID = channel.GuildID

	if conn, ok := s.lib.GetConnection(s.guildID); ok && conn.Status() == ConnectionReady {
		log.Debug().
			Str("guild_id", s.guildID).
			Str("channel_id", s.channelID).
			Msg("Reusing ready voice connection")
		return nil
	}

	perms, err := s.dir.SelfPermissions(s.guildID, s.channelID)
	if err != nil {
		return newError(CodeMissingPermissions, "failed to fetch permissions for channel %s: %v", s.channelID, err)
	}
	if !perms.Has(PermissionViewChannel | PermissionConnect | PermissionSpeak) {
		return newError(CodeMissingPermissions, "missing view/connect/speak permissions in channel %s", s.channelID)
	}

	conn, err := s.lib.JoinChannel(s.guildID, s.channelID, JoinOptions{MaxStatusWaiters: maxStatusWaiters})
	if err != nil {
		return newError(CodeNoConnection, "failed to join channel %s: %v", s.channelID, err)
	}
	if err := conn.AwaitStatus(ctx, ConnectionReady); err != nil {
		return newError(CodeNoConnection, "connection to channel %s never became ready: %v", s.channelID, err)
	}

	log.Info().
		Str("guild_id", s.guildID).
		Str("channel_id", s.channelID).
		Msg("Voice connection established")
	return nil
}

// Destroy tears down the guild's connection and blocks until the wrapped
// library confirms it destroyed.
func (s *Session) Destroy(ctx context.Context) error {
	conn, ok := s.lib.GetConnection(s.guildID)
	if !ok {
		return newError(CodeNoConnection, "no active voice connection for guild %q", s.guildID)
	}

	conn.Destroy()
	if err := conn.AwaitStatus(ctx, ConnectionDestroyed); err != nil {
		return newError(CodeNoConnection, "connection for guild %s did not confirm teardown: %v", s.guildID, err)
	}

	log.Info().
		Str("guild_id", s.guildID).
		Str("channel_id", s.channelID).
		Msg("Voice connection destroyed")
	return nil
}

// Play starts playback of the given s16le PCM stream at the given volume.
// A fresh resource and player replace whatever the session held before,
// and the connection is subscribed to the new player. The returned
// Playback surface fires playing, idle and error each at most once.
func (s *Session) Play(stream io.Reader, volume float64) (*Playback, error) {
	conn, err := s.readyConnection()
	if err != nil {
		return nil, err
	}

	resource, err := s.lib.NewResource(stream, volume)
	if err != nil {
		return nil, newError(CodeNoResource, "failed to create audio resource: %v", err)
	}
	player := s.lib.NewPlayer()

	s.player = player
	s.resource = resource

	player.Play(resource)
	conn.Subscribe(player)

	playback := newPlayback(player)
	log.Info().
		Str("guild_id", s.guildID).
		Str("channel_id", s.channelID).
		Str("playback_id", playback.ID().String()).
		Float64("volume", resource.Volume()).
		Msg("Playback started")
	return playback, nil
}

// Pause pauses the current playback and blocks until the library confirms
// it paused. When the player is already paused the call fails with
// PLAYER_ALREADY_PAUSED, unless rejectIfAlreadyPaused is false in which
// case it is a no-op.
func (s *Session) Pause(ctx context.Context, rejectIfAlreadyPaused bool) error {
	if _, err := s.readyConnection(); err != nil {
		return err
	}
	if s.player == nil {
		return newError(CodeNoResource, "no playback to pause; call Play first")
	}

	if s.player.Status() == PlayerPaused {
		if rejectIfAlreadyPaused {
			return newError(CodePlayerAlreadyPaused, "player is already paused")
		}
		return nil
	}

	s.player.Pause()
	return s.player.AwaitStatus(ctx, PlayerPaused)
}

// Unpause resumes the current playback and blocks until the library
// confirms it playing. When the player is not paused the call fails with
// PLAYER_NOT_PAUSED, unless rejectIfNotPaused is false in which case it
// is a no-op.
func (s *Session) Unpause(ctx context.Context, rejectIfNotPaused bool) error {
	if _, err := s.readyConnection(); err != nil {
		return err
	}
	if s.player == nil {
		return newError(CodeNoResource, "no playback to unpause; call Play first")
	}

	if s.player.Status() != PlayerPaused {
		if rejectIfNotPaused {
			return newError(CodePlayerNotPaused, "player is not paused")
		}
		return nil
	}

	s.player.Unpause()
	return s.player.AwaitStatus(ctx, PlayerPlaying)
}

// IsPaused reports whether the current player is paused. A session with
// no player yet reports false.
func (s *Session) IsPaused() (bool, error) {
	if _, err := s.readyConnection(); err != nil {
		return false, err
	}
	if s.player == nil {
		return false, nil
	}
	return s.player.Status() == PlayerPaused, nil
}

// Volume returns the volume of the current resource.
func (s *Session) Volume() (float64, error) {
	if _, err := s.readyConnection(); err != nil {
		return 0, err
	}
	if s.resource == nil {
		return 0, newError(CodeNoResource, "no audio resource; call Play first")
	}
	return s.resource.Volume(), nil
}

// SetVolume adjusts the volume of the current resource.
func (s *Session) SetVolume(v float64) error {
	if _, err := s.readyConnection(); err != nil {
		return err
	}
	if s.resource == nil {
		return newError(CodeNoResource, "no audio resource; call Play first")
	}
	s.resource.SetVolume(v)
	return nil
}

func (s *Session) readyConnection() (Connection, error) {
	conn, ok := s.lib.GetConnection(s.guildID)
	if !ok || conn.Status() != ConnectionReady {
		return nil, newError(CodeConnectionNotReady, "voice connection for guild %q is not ready", s.guildID)
	}
	return conn, nil
}
