// Package discord adapts bwmarrin/discordgo to the collaborator
// interfaces the voice session drives: channel/permission lookups, the
// per-guild connection registry, and the audio player factory.
package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/user/discord-voicekit/internal/voice"
)

// Directory resolves channels and permission sets through a discordgo
// session, state first with a REST fallback.
type Directory struct {
	session *discordgo.Session
}

func NewDirectory(session *discordgo.Session) *Directory {
	return &Directory{session: session}
}

func (d *Directory) Channel(id string) (*voice.Channel, error) {
	channel, err := d.session.State.Channel(id)
	if err != nil {
		channel, err = d.session.Channel(id)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve channel %s: %w", id, err)
		}
	}

	if channel.Type != discordgo.ChannelTypeGuildVoice && channel.Type != discordgo.ChannelTypeGuildStageVoice {
		return nil, fmt.Errorf("channel %s is not a voice channel", id)
	}

	return &voice.Channel{
		ID:      channel.ID,
		GuildID: channel.GuildID,
		Name:    channel.Name,
	}, nil
}

func (d *Directory) SelfPermissions(guildID, channelID string) (voice.Permissions, error) {
	perms, err := d.session.UserChannelPermissions(d.session.State.User.ID, channelID)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch permissions for channel %s: %w", channelID, err)
	}

	var out voice.Permissions
	if perms&discordgo.PermissionViewChannel != 0 {
		out |= voice.PermissionViewChannel
	}
	if perms&discordgo.PermissionVoiceConnect != 0 {
		out |= voice.PermissionConnect
	}
	if perms&discordgo.PermissionVoiceSpeak != 0 {
		out |= voice.PermissionSpeak
	}
	return out, nil
}
