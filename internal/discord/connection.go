package discord

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
	"github.com/user/discord-voicekit/internal/audio"
	"github.com/user/discord-voicekit/internal/voice"
)

// statusPollInterval is how often AwaitStatus re-checks the underlying
// discordgo connection, which exposes a Ready flag rather than events.
const statusPollInterval = 10 * time.Millisecond

// ErrTooManyWaiters is returned when a connection's status waiter cap is
// exhausted.
var ErrTooManyWaiters = fmt.Errorf("too many status waiters on voice connection")

// Connection wraps a discordgo voice connection behind voice.Connection.
type Connection struct {
	vc *discordgo.VoiceConnection

	mutex      sync.Mutex
	waiters    int
	maxWaiters int
	player     *audio.Player
	destroyed  bool
}

func newConnection(vc *discordgo.VoiceConnection, maxWaiters int) *Connection {
	return &Connection{
		vc:         vc,
		maxWaiters: maxWaiters,
	}
}

func (c *Connection) GuildID() string {
	return c.vc.GuildID
}

func (c *Connection) ChannelID() string {
	return c.vc.ChannelID
}

func (c *Connection) Status() voice.ConnectionStatus {
	c.mutex.Lock()
	destroyed := c.destroyed
	c.mutex.Unlock()

	if destroyed {
		return voice.ConnectionDestroyed
	}

	c.vc.RLock()
	ready := c.vc.Ready
	c.vc.RUnlock()

	if ready {
		return voice.ConnectionReady
	}
	return voice.ConnectionConnecting
}

// AwaitStatus polls the underlying connection until it reports want or
// ctx is done. The wait is unbounded unless ctx carries a deadline.
func (c *Connection) AwaitStatus(ctx context.Context, want voice.ConnectionStatus) error {
	if c.Status() == want {
		return nil
	}

	if err := c.addWaiter(); err != nil {
		return err
	}
	defer c.removeWaiter()

	ticker := time.NewTicker(statusPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if c.Status() == want {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Subscribe attaches the player's output to this connection's opus
// channel and speaking toggle. A previously subscribed player is stopped;
// the connection carries one player at a time.
func (c *Connection) Subscribe(p voice.Player) {
	player, ok := p.(*audio.Player)
	if !ok {
		log.Warn().
			Str("guild_id", c.vc.GuildID).
			Msgf("Cannot subscribe player of type %T", p)
		return
	}

	c.mutex.Lock()
	previous := c.player
	c.player = player
	c.mutex.Unlock()

	if previous != nil && previous != player {
		previous.Stop()
	}
	player.Attach(c.vc.OpusSend, c.vc.Speaking)
}

// Destroy disconnects the underlying voice connection. Safe to call more
// than once.
func (c *Connection) Destroy() {
	c.mutex.Lock()
	if c.destroyed {
		c.mutex.Unlock()
		return
	}
	c.destroyed = true
	player := c.player
	c.player = nil
	c.mutex.Unlock()

	if player != nil {
		player.Stop()
	}

	if err := c.vc.Disconnect(); err != nil {
		log.Warn().
			Str("guild_id", c.vc.GuildID).
			Err(err).
			Msg("Failed to disconnect voice connection")
	}
}

func (c *Connection) addWaiter() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.maxWaiters > 0 && c.waiters >= c.maxWaiters {
		return ErrTooManyWaiters
	}
	c.waiters++
	return nil
}

func (c *Connection) removeWaiter() {
	c.mutex.Lock()
	c.waiters--
	c.mutex.Unlock()
}
