package main

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/dgraph-io/badger"
	"go.uber.org/zap"

	"github.com/dgctx/dgctx"
	"github.com/dgctx/dgctx/database"
	"github.com/dgctx/dgctx/store"
	"github.com/dgctx/dgctx/uploader"
)

type bot struct {
	client *dgctx.Client
	db     database.DB
	store  *store.Store
	up     *uploader.Client
	logger *zap.Logger
}

func newBot(client *dgctx.Client, db database.DB, st *store.Store, up *uploader.Client, logger *zap.Logger) *bot {
	b := &bot{
		client: client,
		db:     db,
		store:  st,
		up:     up,
		logger: logger,
	}
	client.AddHandler(b.onEvent)
	return b
}

// onEvent is the only handler the bot registers. Everything it needs about
// who/where comes off the event context; typed payloads are only consulted
// for data no context slot carries (bulk-delete id lists, edit content).
func (b *bot) onEvent(ctx context.Context, evt interface{}) {
	name, err := dgctx.Event(ctx)
	if err != nil {
		return
	}

	switch name {
	case "READY":
		b.logger.Info("logged in")
	case "DISCONNECT":
		b.logger.Info("disconnected")
	case "GUILD_CREATE":
		b.guildCreate(ctx, evt)
	case "GUILD_MEMBER_ADD":
		b.memberAdd(ctx)
	case "GUILD_MEMBER_REMOVE":
		b.memberRemove(ctx)
	case "GUILD_BAN_ADD":
		b.banAdd(ctx)
	case "GUILD_BAN_REMOVE":
		b.banRemove(ctx)
	case "MESSAGE_DELETE":
		b.messageDelete(ctx)
	case "MESSAGE_DELETE_BULK":
		b.messageDeleteBulk(ctx, evt)
	case "MESSAGE_UPDATE":
		b.messageUpdate(ctx, evt)
	}
}

// guildConfig returns the settings row for the guild in scope, creating it
// on first sight.
func (b *bot) guildConfig(ctx context.Context) (*database.Guild, *discordgo.Guild) {
	g, err := dgctx.Guild(ctx)
	if err != nil || g == nil {
		return nil, nil
	}
	gc, err := b.db.GetGuild(g.ID)
	if err != nil {
		if err := b.db.CreateGuild(g.ID); err != nil {
			b.logger.Error("failed to create guild config", zap.Error(err))
			return nil, g
		}
		gc, err = b.db.GetGuild(g.ID)
		if err != nil {
			return nil, g
		}
	}
	return gc, g
}

func (b *bot) guildCreate(ctx context.Context, evt interface{}) {
	b.guildConfig(ctx)

	g, ok := evt.(*discordgo.GuildCreate)
	if !ok {
		return
	}
	if len(g.Members) != g.MemberCount {
		ec, err := dgctx.FromContext(ctx)
		if err != nil {
			return
		}
		if err := ec.Session().RequestGuildMembers(g.ID, "", 0, "", false); err != nil {
			b.logger.Error("failed to request guild members", zap.Error(err))
		}
	}
}

func (b *bot) memberAdd(ctx context.Context) {
	gc, g := b.guildConfig(ctx)
	if gc == nil || gc.JoinLog == "" {
		return
	}
	user, err := dgctx.User(ctx)
	if err != nil || user == nil {
		return
	}

	embed := NewLogEmbed(GuildJoinType, g)
	SetEmbedThumbnail(embed, user.AvatarURL("256"))
	AddEmbedField(embed, "User", fmt.Sprintf("%v\n%v", user.Mention(), user.String()), false)
	AddEmbedField(embed, "Creation date", fmt.Sprintf("<t:%v:R>", dgctx.IDToTimestamp(user.ID).Unix()), false)
	AddEmbedField(embed, "ID", user.ID, false)

	b.send(ctx, gc.JoinLog, &discordgo.MessageSend{Embed: embed})
}

func (b *bot) memberRemove(ctx context.Context) {
	gc, g := b.guildConfig(ctx)
	if gc == nil || gc.LeaveLog == "" {
		return
	}
	user, err := dgctx.User(ctx)
	if err != nil || user == nil {
		return
	}

	embed := NewLogEmbed(GuildLeaveType, g)
	SetEmbedThumbnail(embed, user.AvatarURL("256"))
	AddEmbedField(embed, "User", fmt.Sprintf("%v\n%v", user.Mention(), user.String()), false)
	AddEmbedField(embed, "ID", user.ID, false)
	AddEmbedField(embed, "Roles", roleList(user.Member), false)

	b.send(ctx, gc.LeaveLog, &discordgo.MessageSend{Embed: embed})
}

// roleList renders a member's roles, truncated to fit an embed field.
func roleList(mem *discordgo.Member) string {
	if mem == nil || len(mem.Roles) == 0 {
		return "None"
	}

	var roles []string
	for _, r := range mem.Roles {
		roles = append(roles, fmt.Sprintf("<@&%v>", r))
	}

	var shown []string
	for _, r := range roles {
		if len(strings.Join(append(shown, r), ", ")) > 760 {
			break
		}
		shown = append(shown, r)
	}

	out := strings.Join(shown, ", ")
	if len(shown) != len(roles) {
		out += fmt.Sprintf(" and %v more", len(roles)-len(shown))
	}
	return out
}

func (b *bot) banAdd(ctx context.Context) {
	gc, g := b.guildConfig(ctx)
	if gc == nil || gc.BanLog == "" {
		return
	}
	user, err := dgctx.User(ctx)
	if err != nil || user == nil {
		return
	}

	embed := NewLogEmbed(GuildBanType, g)
	SetEmbedThumbnail(embed, user.AvatarURL("256"))
	AddEmbedField(embed, "User", fmt.Sprintf("%v\n%v", user.Mention(), user.String()), false)
	AddEmbedField(embed, "ID", user.ID, false)

	if _, err := b.store.GetMember(g.ID, user.ID); err != nil {
		if err != badger.ErrKeyNotFound {
			b.logger.Error("failed to get member", zap.Error(err))
		}
		// banned without ever being seen in the guild
		embed.Title += " - Hackban"
		b.send(ctx, gc.BanLog, &discordgo.MessageSend{Embed: embed})
		return
	}

	messages, err := b.store.GetMessageLog(g.ID, user.ID)
	if err != nil {
		b.logger.Error("failed to get message log", zap.Error(err))
	}

	reply := &discordgo.MessageSend{}
	if len(messages) > 0 {
		text := strings.Builder{}
		for _, msg := range messages {
			ch, err := b.client.Channel(msg.Message.ChannelID)
			if err != nil {
				continue
			}
			ts := dgctx.IDToTimestamp(msg.Message.ID).Format(time.DateTime)
			text.WriteString(fmt.Sprintf("\nChannel: %v (%v)\nTimestamp: %v\nContent: %v\n", ch.Name, ch.ID, ts, msg.Message.Content))
			if len(msg.Attachments) > 0 {
				text.WriteString("Message had attachment\n")
			}
		}

		AddEmbedField(embed, "Total messages", fmt.Sprint(len(messages)), false)
		if b.up != nil {
			link, err := b.up.Upload(text.String())
			if err != nil {
				b.logger.Error("failed to upload message log", zap.Error(err))
				AddEmbedField(embed, "24h message log", "Error getting link", false)
			} else {
				AddEmbedField(embed, "24h message log", link, false)
			}
		} else {
			AddMessageFileString(reply, fmt.Sprintf("24h_ban_log_%v_%v.txt", user.ID, time.Now().Unix()), text.String())
		}
	}

	reply.Embed = embed
	b.send(ctx, gc.BanLog, reply)
}

func (b *bot) banRemove(ctx context.Context) {
	gc, g := b.guildConfig(ctx)
	if gc == nil || gc.UnbanLog == "" {
		return
	}
	user, err := dgctx.User(ctx)
	if err != nil || user == nil {
		return
	}

	embed := NewLogEmbed(GuildUnbanType, g)
	SetEmbedThumbnail(embed, user.AvatarURL("256"))
	AddEmbedField(embed, "User", fmt.Sprintf("%v\n%v", user.Mention(), user.String()), false)
	AddEmbedField(embed, "ID", user.ID, false)

	b.send(ctx, gc.UnbanLog, &discordgo.MessageSend{Embed: embed})
}

func (b *bot) messageDelete(ctx context.Context) {
	gc, g := b.guildConfig(ctx)
	if gc == nil || gc.MsgDeleteLog == "" {
		return
	}
	partial, err := dgctx.Message(ctx)
	if err != nil || partial == nil {
		return
	}

	msg, err := b.store.GetMessage(g.ID, partial.ChannelID, partial.ID)
	if err != nil {
		return
	}

	embed := NewLogEmbed(MsgDeleteType, g)
	AddEmbedField(embed, "User", fmt.Sprintf("%v\n%v\n%v", msg.Message.Author.Mention(), msg.Message.Author.String(), msg.Message.Author.ID), true)
	AddEmbedField(embed, "Channel", fmt.Sprintf("<#%v> (%v)", partial.ChannelID, partial.ChannelID), false)
	embed.Footer = &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Message ID: %v", partial.ID)}

	reply := &discordgo.MessageSend{}
	if msg.Message.Content != "" {
		desc := msg.Message.Content
		if len(desc) > 1024 {
			desc = "Content too long, so it's put in the attached .txt file"
			AddMessageFileString(reply, "deleted_content.txt", msg.Message.Content)
		}
		embed.Description = desc
	} else {
		embed.Description = "No content"
	}

	if len(msg.Attachments) > 0 {
		AddEmbedField(embed, "Total fetched attachments", fmt.Sprint(len(msg.Attachments)), false)
		embed.Description += "\n**Disclaimer:** Only attachments smaller than 10mb may be fetched"
	}
	for _, a := range msg.Attachments {
		reply.Files = append(reply.Files, &discordgo.File{
			Name:        a.Filename,
			ContentType: "application/octet-stream",
			Reader:      bytes.NewReader(a.Data),
		})
	}

	reply.Embed = embed
	b.send(ctx, gc.MsgDeleteLog, reply)
}

func (b *bot) messageDeleteBulk(ctx context.Context, evt interface{}) {
	gc, g := b.guildConfig(ctx)
	if gc == nil || gc.MsgDeleteLog == "" {
		return
	}
	d, ok := evt.(*discordgo.MessageDeleteBulk)
	if !ok {
		return
	}

	embed := NewLogEmbed(MsgDeleteType, g)
	embed.Title = fmt.Sprintf("Bulk message delete - (%v) messages", len(d.Messages))
	AddEmbedField(embed, "Channel", fmt.Sprintf("<#%v>", d.ChannelID), true)

	var messages []*store.DiscordMessage
	for _, mid := range d.Messages {
		msg, err := b.store.GetMessage(g.ID, d.ChannelID, mid)
		if err != nil {
			continue
		}
		messages = append(messages, msg)
	}

	sort.Slice(messages, func(i, j int) bool {
		return messages[i].Message.ID < messages[j].Message.ID
	})

	text := strings.Builder{}
	for _, msg := range messages {
		text.WriteString(fmt.Sprintf("\nUser: %v (%v)\nContent: %v\n", msg.Message.Author.String(), msg.Message.Author.ID, msg.Message.Content))
		if len(msg.Attachments) > 0 {
			text.WriteString("Message had attachment\n")
		}
	}

	reply := &discordgo.MessageSend{Embed: embed}
	AddMessageFileString(reply, fmt.Sprintf("deleted_%v_%v.txt", d.ChannelID, time.Now().Unix()), text.String())
	b.send(ctx, gc.MsgDeleteLog, reply)
}

func (b *bot) messageUpdate(ctx context.Context, evt interface{}) {
	gc, g := b.guildConfig(ctx)
	if gc == nil || gc.MsgEditLog == "" {
		return
	}
	d, ok := evt.(*discordgo.MessageUpdate)
	if !ok {
		return
	}
	// content-less updates are embed or attachment changes, not edits
	if d.Content == "" {
		return
	}

	user, err := dgctx.User(ctx)
	if err != nil || user == nil || user.Bot {
		return
	}

	oldMsg, err := b.store.GetMessage(g.ID, d.ChannelID, d.ID)
	if err != nil || oldMsg.Message.Content == d.Content {
		return
	}

	embed := NewLogEmbed(MsgEditType, g)
	AddEmbedField(embed, "User", fmt.Sprintf("%v\n%v\n%v", user.Mention(), user.String(), user.ID), true)
	AddEmbedField(embed, "Channel", fmt.Sprintf("<#%v> (%v)", d.ChannelID, d.ChannelID), false)
	embed.Footer = &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Message ID: %v", d.ID)}

	reply := &discordgo.MessageSend{}
	if len(oldMsg.Message.Content) > 1024 {
		AddEmbedField(embed, "Old content", "Content too long, so it's put in the attached .txt file", false)
		AddMessageFileString(reply, "old_content.txt", oldMsg.Message.Content)
	} else {
		AddEmbedField(embed, "Old content", oldMsg.Message.Content, false)
	}
	if len(d.Content) > 1024 {
		AddEmbedField(embed, "New content", "Content too long, so it's put in the attached .txt file", false)
		AddMessageFileString(reply, "new_content.txt", d.Content)
	} else {
		AddEmbedField(embed, "New content", d.Content, false)
	}

	reply.Embed = embed
	b.send(ctx, gc.MsgEditLog, reply)

	oldMsg.Message.Content = d.Content
	if err := b.store.SetMessage(oldMsg); err != nil {
		b.logger.Error("failed to refresh cached message", zap.Error(err))
	}
}

func (b *bot) send(ctx context.Context, channelID string, reply *discordgo.MessageSend) {
	ec, err := dgctx.FromContext(ctx)
	if err != nil {
		return
	}
	if _, err := ec.Session().ChannelMessageSendComplex(channelID, reply); err != nil {
		b.logger.Error("failed to send log message", zap.String("channel", channelID), zap.Error(err))
	}
}
