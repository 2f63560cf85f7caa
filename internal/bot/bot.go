package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
	"github.com/user/discord-voicekit/internal/audio"
	"github.com/user/discord-voicekit/internal/config"
	"github.com/user/discord-voicekit/internal/discord"
	"github.com/user/discord-voicekit/internal/voice"
	"golang.org/x/sync/errgroup"
)

// commandTimeout bounds the blocking session operations a command handler
// performs. Handlers run on discordgo's event goroutines and must not
// wedge on a connection that never confirms a transition.
const commandTimeout = 10 * time.Second

type Bot struct {
	config    *config.Config
	session   *discordgo.Session
	library   *discord.Library
	directory *discord.Directory

	// Active playback per guild
	guilds map[string]*guildPlayback
	mutex  sync.RWMutex
}

func NewBot(cfg *config.Config) (*Bot, error) {
	// Create Discord session
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	// Set intents
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsMessageContent

	bot := &Bot{
		config:    cfg,
		session:   session,
		library:   discord.NewLibrary(session),
		directory: discord.NewDirectory(session),
		guilds:    make(map[string]*guildPlayback),
	}

	// Register handlers
	session.AddHandler(bot.onReady)
	session.AddHandler(bot.onMessageCreate)

	return bot, nil
}

func (b *Bot) Start() error {
	// Open connection
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}

	log.Info().Msg("Discord bot started")
	return nil
}

func (b *Bot) Stop(ctx context.Context) error {
	// Destroy all active sessions
	b.mutex.Lock()
	guilds := b.guilds
	b.guilds = make(map[string]*guildPlayback)
	b.mutex.Unlock()

	group, ctx := errgroup.WithContext(ctx)
	for guildID, gp := range guilds {
		guildID, gp := guildID, gp
		group.Go(func() error {
			if err := gp.destroy(ctx); err != nil {
				return fmt.Errorf("failed to destroy session for guild %s: %w", guildID, err)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		log.Warn().Err(err).Msg("Not all voice sessions shut down cleanly")
	}

	// Close Discord session
	if err := b.session.Close(); err != nil {
		return fmt.Errorf("failed to close Discord session: %w", err)
	}

	log.Info().Msg("Discord bot stopped")
	return nil
}

func (b *Bot) onReady(s *discordgo.Session, event *discordgo.Ready) {
	log.Info().
		Str("username", event.User.Username).
		Int("guilds", len(event.Guilds)).
		Msg("Bot is ready")
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	// Ignore bot messages
	if m.Author.Bot {
		return
	}

	content := strings.TrimSpace(m.Content)
	if !strings.HasPrefix(content, b.config.CommandPrefix) {
		return
	}

	command, args, _ := strings.Cut(strings.TrimPrefix(content, b.config.CommandPrefix), " ")
	args = strings.TrimSpace(args)

	switch command {
	case "join":
		b.handleJoin(s, m)
	case "leave":
		b.handleLeave(s, m)
	case "play":
		b.handlePlay(s, m, args)
	case "pause":
		b.handlePause(s, m)
	case "resume":
		b.handleResume(s, m)
	case "volume":
		b.handleVolume(s, m, args)
	case "np":
		b.handleNowPlaying(s, m)
	}
}

func (b *Bot) handleJoin(s *discordgo.Session, m *discordgo.MessageCreate) {
	gp, err := b.joinInvokerChannel(m)
	if err != nil {
		b.sendError(s, m.ChannelID, b.friendlyError(err))
		return
	}

	s.ChannelMessageSend(m.ChannelID, fmt.Sprintf("🔊 Joined <#%s>.", gp.session.ChannelID()))
}

func (b *Bot) handleLeave(s *discordgo.Session, m *discordgo.MessageCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	found, err := b.leaveGuild(ctx, m.GuildID)
	if !found {
		b.sendError(s, m.ChannelID, "Not in a voice channel in this server")
		return
	}
	if err != nil {
		b.sendError(s, m.ChannelID, b.friendlyError(err))
		return
	}

	s.ChannelMessageSend(m.ChannelID, "👋 Left the voice channel.")
}

// leaveGuild destroys the guild's session and forgets it only once the
// teardown was confirmed. A failed destroy keeps the entry so the
// connection stays managed and the command can be retried.
func (b *Bot) leaveGuild(ctx context.Context, guildID string) (bool, error) {
	gp, ok := b.lookupGuild(guildID)
	if !ok {
		return false, nil
	}

	if err := gp.destroy(ctx); err != nil {
		return true, err
	}

	b.mutex.Lock()
	delete(b.guilds, guildID)
	b.mutex.Unlock()
	return true, nil
}

func (b *Bot) handlePlay(s *discordgo.Session, m *discordgo.MessageCreate, input string) {
	if input == "" {
		b.sendError(s, m.ChannelID, "Usage: "+b.config.CommandPrefix+"play <url or file>")
		return
	}

	gp, err := b.joinInvokerChannel(m)
	if err != nil {
		b.sendError(s, m.ChannelID, b.friendlyError(err))
		return
	}

	stream, cleanup, err := audio.OpenFFmpeg(context.Background(), b.config.FFmpegPath, input)
	if err != nil {
		b.sendError(s, m.ChannelID, "Failed to open audio source")
		log.Warn().Err(err).Str("input", input).Msg("Failed to start ffmpeg")
		return
	}

	playback, err := gp.play(stream, b.config.DefaultVolume, input, cleanup)
	if err != nil {
		cleanup()
		b.sendError(s, m.ChannelID, b.friendlyError(err))
		return
	}

	go b.watchPlayback(s, m.ChannelID, gp, input, playback, cleanup)
}

// watchPlayback announces the playback's one-shot transitions and tears
// down the source once it ends.
func (b *Bot) watchPlayback(s *discordgo.Session, channelID string, gp *guildPlayback, track string, playback *voice.Playback, cleanup func()) {
	select {
	case <-playback.Playing():
		s.ChannelMessageSend(channelID, fmt.Sprintf("▶️ Now playing: %s", track))
	case err := <-playback.Err():
		cleanup()
		gp.finish(track)
		b.sendError(s, channelID, fmt.Sprintf("Playback failed: %v", err))
		return
	}

	select {
	case <-playback.Idle():
		s.ChannelMessageSend(channelID, fmt.Sprintf("⏹ Finished: %s", track))
	case err := <-playback.Err():
		b.sendError(s, channelID, fmt.Sprintf("Playback failed: %v", err))
	}
	cleanup()
	gp.finish(track)

	log.Info().
		Str("playback_id", playback.ID().String()).
		Str("track", track).
		Msg("Playback ended")
}

func (b *Bot) handlePause(s *discordgo.Session, m *discordgo.MessageCreate) {
	gp, ok := b.lookupGuild(m.GuildID)
	if !ok {
		b.sendError(s, m.ChannelID, "Nothing is playing in this server")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if err := gp.pause(ctx); err != nil {
		b.sendError(s, m.ChannelID, b.friendlyError(err))
		return
	}
	s.ChannelMessageSend(m.ChannelID, "⏸ Paused.")
}

func (b *Bot) handleResume(s *discordgo.Session, m *discordgo.MessageCreate) {
	gp, ok := b.lookupGuild(m.GuildID)
	if !ok {
		b.sendError(s, m.ChannelID, "Nothing is playing in this server")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if err := gp.resume(ctx); err != nil {
		b.sendError(s, m.ChannelID, b.friendlyError(err))
		return
	}
	s.ChannelMessageSend(m.ChannelID, "▶️ Resumed.")
}

func (b *Bot) handleVolume(s *discordgo.Session, m *discordgo.MessageCreate, args string) {
	gp, ok := b.lookupGuild(m.GuildID)
	if !ok {
		b.sendError(s, m.ChannelID, "Nothing is playing in this server")
		return
	}

	if args == "" {
		volume, err := gp.volume()
		if err != nil {
			b.sendError(s, m.ChannelID, b.friendlyError(err))
			return
		}
		s.ChannelMessageSend(m.ChannelID, fmt.Sprintf("🔉 Volume: %d%%", int(volume*100)))
		return
	}

	percent, err := strconv.Atoi(args)
	if err != nil || percent < 0 || percent > 200 {
		b.sendError(s, m.ChannelID, "Volume must be a number between 0 and 200")
		return
	}

	if err := gp.setVolume(float64(percent) / 100); err != nil {
		b.sendError(s, m.ChannelID, b.friendlyError(err))
		return
	}
	s.ChannelMessageSend(m.ChannelID, fmt.Sprintf("🔉 Volume set to %d%%", percent))
}

func (b *Bot) handleNowPlaying(s *discordgo.Session, m *discordgo.MessageCreate) {
	gp, ok := b.lookupGuild(m.GuildID)
	if !ok {
		s.ChannelMessageSend(m.ChannelID, "Nothing is playing.")
		return
	}

	track, paused, err := gp.nowPlaying()
	if err != nil {
		b.sendError(s, m.ChannelID, b.friendlyError(err))
		return
	}
	if track == "" {
		s.ChannelMessageSend(m.ChannelID, "Nothing is playing.")
		return
	}

	state := "▶️"
	if paused {
		state = "⏸"
	}
	s.ChannelMessageSend(m.ChannelID, fmt.Sprintf("%s %s", state, track))
}

// joinInvokerChannel returns the guild's playback state, creating a
// session for the invoker's current voice channel when none exists yet.
// Join is idempotent, so re-joining an already connected channel is
// cheap. Creation and registration happen under the bot mutex so
// concurrent commands share one session per guild.
func (b *Bot) joinInvokerChannel(m *discordgo.MessageCreate) (*guildPlayback, error) {
	b.mutex.Lock()
	gp, ok := b.guilds[m.GuildID]
	if !ok {
		channelID, err := b.findUserVoiceChannel(m.GuildID, m.Author.ID)
		if err != nil {
			b.mutex.Unlock()
			return nil, err
		}
		gp = newGuildPlayback(voice.NewSession(b.library, b.directory, channelID))
		b.guilds[m.GuildID] = gp
	}
	b.mutex.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if err := gp.join(ctx, b.config.MaxStatusWaiters); err != nil {
		return nil, err
	}
	return gp, nil
}

// findUserVoiceChannel locates the voice channel a user currently sits in.
func (b *Bot) findUserVoiceChannel(guildID, userID string) (string, error) {
	guild, err := b.session.State.Guild(guildID)
	if err != nil {
		return "", fmt.Errorf("failed to get guild %s: %w", guildID, err)
	}

	for _, voiceState := range guild.VoiceStates {
		if voiceState.UserID == userID {
			return voiceState.ChannelID, nil
		}
	}
	return "", fmt.Errorf("you need to be in a voice channel")
}

func (b *Bot) lookupGuild(guildID string) (*guildPlayback, bool) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	gp, ok := b.guilds[guildID]
	return gp, ok
}

// friendlyError maps session error codes to user-facing messages.
func (b *Bot) friendlyError(err error) string {
	switch voice.CodeOf(err) {
	case voice.CodeNoChannel:
		return "That voice channel does not exist"
	case voice.CodeMissingPermissions:
		return "I need view, connect and speak permissions for that channel"
	case voice.CodeNoConnection:
		return "No active voice connection"
	case voice.CodeConnectionNotReady:
		return "The voice connection is not ready yet"
	case voice.CodeNoResource:
		return "Nothing has been played yet"
	case voice.CodePlayerAlreadyPaused:
		return "Playback is already paused"
	case voice.CodePlayerNotPaused:
		return "Playback is not paused"
	default:
		return err.Error()
	}
}

func (b *Bot) sendError(s *discordgo.Session, channelID, message string) {
	s.ChannelMessageSend(channelID, "❌ "+message)
	log.Warn().Str("channel_id", channelID).Str("error", message).Msg("Sent error message")
}
