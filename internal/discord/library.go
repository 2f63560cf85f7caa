package discord

import (
	"fmt"
	"io"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
	"github.com/user/discord-voicekit/internal/audio"
	"github.com/user/discord-voicekit/internal/voice"
)

// Library implements voice.Library over discordgo. It keeps an explicit
// per-guild connection registry so sessions never consult discordgo's
// connection map directly.
type Library struct {
	session *discordgo.Session

	mutex       sync.Mutex
	connections map[string]*Connection
}

func NewLibrary(session *discordgo.Session) *Library {
	return &Library{
		session:     session,
		connections: make(map[string]*Connection),
	}
}

// GetConnection returns the registered connection for a guild, if any.
func (l *Library) GetConnection(guildID string) (voice.Connection, bool) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	conn, ok := l.connections[guildID]
	if !ok {
		return nil, false
	}
	return conn, true
}

// JoinChannel joins a voice channel deafened (the bot only sends audio)
// and registers the resulting connection for its guild, replacing any
// previous one.
func (l *Library) JoinChannel(guildID, channelID string, opts voice.JoinOptions) (voice.Connection, error) {
	vc, err := l.session.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return nil, fmt.Errorf("failed to join voice channel %s: %w", channelID, err)
	}

	conn := newConnection(vc, opts.MaxStatusWaiters)

	l.mutex.Lock()
	l.connections[guildID] = conn
	l.mutex.Unlock()

	log.Debug().
		Str("guild_id", guildID).
		Str("channel_id", channelID).
		Msg("Registered voice connection")
	return conn, nil
}

// NewPlayer creates a fresh opus player.
func (l *Library) NewPlayer() voice.Player {
	return audio.NewPlayer(nil)
}

// NewResource creates a volume-controlled resource from a PCM stream.
func (l *Library) NewResource(stream io.Reader, volume float64) (voice.Resource, error) {
	return audio.NewResource(stream, volume)
}
