package dgctx

import (
	"github.com/bwmarrin/discordgo"
)

// PartialMessage references a message by IDs only. Most gateway events only
// carry IDs, so the context holds a partial and lets the caller fetch the
// full message when it actually needs one.
type PartialMessage struct {
	ID        string
	ChannelID string
	GuildID   string
}

// PartialFromMessage builds a partial reference from a full message.
func PartialFromMessage(m *discordgo.Message) *PartialMessage {
	if m == nil {
		return nil
	}
	return &PartialMessage{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		GuildID:   m.GuildID,
	}
}

// Fetch resolves the partial into a full message through the REST API.
func (p *PartialMessage) Fetch(s *discordgo.Session) (*discordgo.Message, error) {
	return s.ChannelMessage(p.ChannelID, p.ID)
}

// MemberUser is the user in scope for an event. User is always present;
// Member is non-nil when the user could be resolved to a member of the
// guild in scope.
type MemberUser struct {
	*discordgo.User
	Member *discordgo.Member
}

// CommandContext describes the application command an interaction event
// put in scope.
type CommandContext struct {
	Interaction *discordgo.Interaction
	Name        string
	Options     []*discordgo.ApplicationCommandInteractionDataOption
}
