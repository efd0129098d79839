package dgctx

import (
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/dgctx/dgctx/store"
)

// HookFunc populates the event context from a concrete gateway event
// payload before user handlers run.
type HookFunc func(c *Client, ec *EventContext, evt interface{})

// attachments larger than this are not cached
const maxAttachmentSize = 10 << 20

var (
	hookMu sync.RWMutex
	hooks  = make(map[string]HookFunc)
)

// RegisterHook sets the hook for a gateway event name. The last
// registration wins, so built-in hooks can be replaced.
func RegisterHook(event string, h HookFunc) {
	hookMu.Lock()
	defer hookMu.Unlock()
	hooks[event] = h
}

func lookupHook(event string) HookFunc {
	hookMu.RLock()
	defer hookMu.RUnlock()
	return hooks[event]
}

func init() {
	RegisterHook("MESSAGE_CREATE", messageCreateHook)
	RegisterHook("MESSAGE_UPDATE", messageUpdateHook)
	RegisterHook("MESSAGE_DELETE", messageDeleteHook)
	RegisterHook("MESSAGE_DELETE_BULK", messageDeleteBulkHook)
	RegisterHook("MESSAGE_REACTION_ADD", reactionHook)
	RegisterHook("MESSAGE_REACTION_REMOVE", reactionHook)
	RegisterHook("MESSAGE_REACTION_REMOVE_ALL", reactionClearHook)
	RegisterHook("TYPING_START", typingHook)
	RegisterHook("CHANNEL_CREATE", channelHook)
	RegisterHook("CHANNEL_UPDATE", channelHook)
	RegisterHook("CHANNEL_DELETE", channelHook)
	RegisterHook("CHANNEL_PINS_UPDATE", channelPinsHook)
	RegisterHook("WEBHOOKS_UPDATE", webhooksHook)
	RegisterHook("GUILD_CREATE", guildCreateHook)
	RegisterHook("GUILD_UPDATE", guildHook)
	RegisterHook("GUILD_DELETE", guildHook)
	RegisterHook("GUILD_EMOJIS_UPDATE", guildEmojisHook)
	RegisterHook("GUILD_INTEGRATIONS_UPDATE", guildIntegrationsHook)
	RegisterHook("GUILD_MEMBER_ADD", memberHook)
	RegisterHook("GUILD_MEMBER_UPDATE", memberHook)
	RegisterHook("GUILD_MEMBER_REMOVE", memberHook)
	RegisterHook("GUILD_MEMBERS_CHUNK", membersChunkHook)
	RegisterHook("GUILD_ROLE_CREATE", roleHook)
	RegisterHook("GUILD_ROLE_UPDATE", roleHook)
	RegisterHook("GUILD_ROLE_DELETE", roleDeleteHook)
	RegisterHook("GUILD_BAN_ADD", banHook)
	RegisterHook("GUILD_BAN_REMOVE", banHook)
	RegisterHook("INTERACTION_CREATE", interactionHook)
}

// eventName maps the event structs the built-in hooks know to their
// gateway event names. Events not named here still dispatch, under the
// name fallbackEventName derives.
func eventName(evt interface{}) string {
	switch evt.(type) {
	case *discordgo.MessageCreate:
		return "MESSAGE_CREATE"
	case *discordgo.MessageUpdate:
		return "MESSAGE_UPDATE"
	case *discordgo.MessageDelete:
		return "MESSAGE_DELETE"
	case *discordgo.MessageDeleteBulk:
		return "MESSAGE_DELETE_BULK"
	case *discordgo.MessageReactionAdd:
		return "MESSAGE_REACTION_ADD"
	case *discordgo.MessageReactionRemove:
		return "MESSAGE_REACTION_REMOVE"
	case *discordgo.MessageReactionRemoveAll:
		return "MESSAGE_REACTION_REMOVE_ALL"
	case *discordgo.TypingStart:
		return "TYPING_START"
	case *discordgo.ChannelCreate:
		return "CHANNEL_CREATE"
	case *discordgo.ChannelUpdate:
		return "CHANNEL_UPDATE"
	case *discordgo.ChannelDelete:
		return "CHANNEL_DELETE"
	case *discordgo.ChannelPinsUpdate:
		return "CHANNEL_PINS_UPDATE"
	case *discordgo.WebhooksUpdate:
		return "WEBHOOKS_UPDATE"
	case *discordgo.GuildCreate:
		return "GUILD_CREATE"
	case *discordgo.GuildUpdate:
		return "GUILD_UPDATE"
	case *discordgo.GuildDelete:
		return "GUILD_DELETE"
	case *discordgo.GuildEmojisUpdate:
		return "GUILD_EMOJIS_UPDATE"
	case *discordgo.GuildIntegrationsUpdate:
		return "GUILD_INTEGRATIONS_UPDATE"
	case *discordgo.GuildMemberAdd:
		return "GUILD_MEMBER_ADD"
	case *discordgo.GuildMemberUpdate:
		return "GUILD_MEMBER_UPDATE"
	case *discordgo.GuildMemberRemove:
		return "GUILD_MEMBER_REMOVE"
	case *discordgo.GuildMembersChunk:
		return "GUILD_MEMBERS_CHUNK"
	case *discordgo.GuildRoleCreate:
		return "GUILD_ROLE_CREATE"
	case *discordgo.GuildRoleUpdate:
		return "GUILD_ROLE_UPDATE"
	case *discordgo.GuildRoleDelete:
		return "GUILD_ROLE_DELETE"
	case *discordgo.GuildBanAdd:
		return "GUILD_BAN_ADD"
	case *discordgo.GuildBanRemove:
		return "GUILD_BAN_REMOVE"
	case *discordgo.InteractionCreate:
		return "INTERACTION_CREATE"
	case *discordgo.Ready:
		return "READY"
	case *discordgo.Resumed:
		return "RESUMED"
	case *discordgo.Connect:
		return "CONNECT"
	case *discordgo.Disconnect:
		return "DISCONNECT"
	}
	return ""
}

// fallbackEventName names events eventName does not know. Raw events carry
// their gateway name already; other discordgo payloads dispatch under the
// name derived from their type, so VoiceStateUpdate becomes
// VOICE_STATE_UPDATE. Every event reaches handlers with at least an event
// name in scope this way.
func fallbackEventName(evt interface{}) string {
	if e, ok := evt.(*discordgo.Event); ok {
		return e.Type
	}

	t := reflect.TypeOf(evt)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct || t.PkgPath() != "github.com/bwmarrin/discordgo" {
		return ""
	}

	var b strings.Builder
	for i, r := range t.Name() {
		if i > 0 && unicode.IsUpper(r) {
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

func messageCreateHook(c *Client, ec *EventContext, evt interface{}) {
	m, ok := evt.(*discordgo.MessageCreate)
	if !ok {
		return
	}

	ec.apply(Values{
		Message: PartialFromMessage(m.Message),
		User:    c.EnsureMember(m.Author, m.GuildID),
		Channel: c.channelInScope(m.ChannelID),
		Guild:   c.guildInScope(m.GuildID),
	}, false)

	if c.store != nil && m.Author != nil && !m.Author.Bot {
		// attachment downloads must not stall the dispatch loop
		msg := m.Message
		c.pool.Submit(func() {
			if err := c.store.SetMessage(store.NewDiscordMessage(msg, maxAttachmentSize)); err != nil {
				c.logger.Error("failed to cache message", zap.Error(err))
			}
		})
	}
}

// messageUpdateHook populates the context from the cached copy when one is
// available; payloads for edits can be sparse.
func messageUpdateHook(c *Client, ec *EventContext, evt interface{}) {
	m, ok := evt.(*discordgo.MessageUpdate)
	if !ok {
		return
	}

	v := Values{
		Message: PartialFromMessage(m.Message),
		Channel: c.channelInScope(m.ChannelID),
		Guild:   c.guildInScope(m.GuildID),
	}
	if m.Author != nil {
		v.User = c.EnsureMember(m.Author, m.GuildID)
	} else if cached := c.cachedMessage(m.GuildID, m.ChannelID, m.ID); cached != nil {
		v.User = c.EnsureMember(cached.Author, m.GuildID)
	} else {
		v.Nil |= SlotUser
	}
	ec.apply(v, false)
}

// messageDeleteHook only gets IDs from the gateway. The author comes from
// the state or kv cache when the message was seen before; otherwise the
// user slot is explicitly nil, matching how uncached deletions behave.
func messageDeleteHook(c *Client, ec *EventContext, evt interface{}) {
	m, ok := evt.(*discordgo.MessageDelete)
	if !ok {
		return
	}

	v := Values{
		Message: &PartialMessage{ID: m.ID, ChannelID: m.ChannelID, GuildID: m.GuildID},
		Channel: c.channelInScope(m.ChannelID),
		Guild:   c.guildInScope(m.GuildID),
	}

	cached := m.BeforeDelete
	if cached == nil {
		cached = c.cachedMessage(m.GuildID, m.ChannelID, m.ID)
	}
	if cached != nil && cached.Author != nil {
		v.User = c.EnsureMember(cached.Author, m.GuildID)
	} else {
		v.Nil |= SlotUser
	}
	ec.apply(v, false)
}

func messageDeleteBulkHook(c *Client, ec *EventContext, evt interface{}) {
	m, ok := evt.(*discordgo.MessageDeleteBulk)
	if !ok {
		return
	}
	ec.apply(Values{
		Channel: c.channelInScope(m.ChannelID),
		Guild:   c.guildInScope(m.GuildID),
	}, false)
}

func reactionHook(c *Client, ec *EventContext, evt interface{}) {
	var r *discordgo.MessageReaction
	var member *discordgo.Member
	switch e := evt.(type) {
	case *discordgo.MessageReactionAdd:
		r, member = e.MessageReaction, e.Member
	case *discordgo.MessageReactionRemove:
		r = e.MessageReaction
	default:
		return
	}

	user := c.EnsureMemberID(r.UserID, r.GuildID)
	if member != nil {
		// guild reaction adds ship the full member
		if user == nil && member.User != nil {
			user = &MemberUser{User: member.User}
		}
		if user != nil {
			user.Member = member
		}
	}

	v := Values{
		Message: &PartialMessage{ID: r.MessageID, ChannelID: r.ChannelID, GuildID: r.GuildID},
		Emoji:   &r.Emoji,
		Channel: c.channelInScope(r.ChannelID),
		Guild:   c.guildInScope(r.GuildID),
	}
	if user != nil {
		v.User = user
	} else {
		v.Nil |= SlotUser
	}
	ec.apply(v, false)
}

func reactionClearHook(c *Client, ec *EventContext, evt interface{}) {
	e, ok := evt.(*discordgo.MessageReactionRemoveAll)
	if !ok {
		return
	}
	r := e.MessageReaction
	ec.apply(Values{
		Message: &PartialMessage{ID: r.MessageID, ChannelID: r.ChannelID, GuildID: r.GuildID},
		Channel: c.channelInScope(r.ChannelID),
		Guild:   c.guildInScope(r.GuildID),
	}, false)
}

func typingHook(c *Client, ec *EventContext, evt interface{}) {
	t, ok := evt.(*discordgo.TypingStart)
	if !ok {
		return
	}
	v := Values{
		Channel: c.channelInScope(t.ChannelID),
		Guild:   c.guildInScope(t.GuildID),
	}
	if user := c.EnsureMemberID(t.UserID, t.GuildID); user != nil {
		v.User = user
	} else {
		v.Nil |= SlotUser
	}
	ec.apply(v, false)
}

func channelHook(c *Client, ec *EventContext, evt interface{}) {
	var ch *discordgo.Channel
	switch e := evt.(type) {
	case *discordgo.ChannelCreate:
		ch = e.Channel
	case *discordgo.ChannelUpdate:
		ch = e.Channel
	case *discordgo.ChannelDelete:
		ch = e.Channel
	default:
		return
	}
	ec.apply(Values{
		Channel: ch,
		Guild:   c.guildInScope(ch.GuildID),
	}, false)
}

func channelPinsHook(c *Client, ec *EventContext, evt interface{}) {
	e, ok := evt.(*discordgo.ChannelPinsUpdate)
	if !ok {
		return
	}
	ec.apply(Values{
		Channel: c.channelInScope(e.ChannelID),
		Guild:   c.guildInScope(e.GuildID),
	}, false)
}

func webhooksHook(c *Client, ec *EventContext, evt interface{}) {
	e, ok := evt.(*discordgo.WebhooksUpdate)
	if !ok {
		return
	}
	ec.apply(Values{
		Channel: c.channelInScope(e.ChannelID),
		Guild:   c.guildInScope(e.GuildID),
	}, false)
}

func guildHook(c *Client, ec *EventContext, evt interface{}) {
	var g *discordgo.Guild
	switch e := evt.(type) {
	case *discordgo.GuildUpdate:
		g = e.Guild
	case *discordgo.GuildDelete:
		g = e.Guild
		if e.BeforeDelete != nil {
			g = e.BeforeDelete
		}
	default:
		return
	}
	ec.apply(Values{Guild: g}, false)
}

func guildCreateHook(c *Client, ec *EventContext, evt interface{}) {
	g, ok := evt.(*discordgo.GuildCreate)
	if !ok {
		return
	}
	ec.apply(Values{Guild: g.Guild}, false)

	if c.store == nil {
		return
	}
	for _, mem := range g.Members {
		if err := c.store.SetMember(mem); err != nil {
			c.logger.Error("failed to cache member", zap.Error(err))
		}
	}
}

func guildEmojisHook(c *Client, ec *EventContext, evt interface{}) {
	e, ok := evt.(*discordgo.GuildEmojisUpdate)
	if !ok {
		return
	}
	ec.apply(Values{Guild: c.guildInScope(e.GuildID)}, false)
}

func guildIntegrationsHook(c *Client, ec *EventContext, evt interface{}) {
	e, ok := evt.(*discordgo.GuildIntegrationsUpdate)
	if !ok {
		return
	}
	ec.apply(Values{Guild: c.guildInScope(e.GuildID)}, false)
}

func memberHook(c *Client, ec *EventContext, evt interface{}) {
	var mem *discordgo.Member
	switch e := evt.(type) {
	case *discordgo.GuildMemberAdd:
		mem = e.Member
	case *discordgo.GuildMemberUpdate:
		mem = e.Member
	case *discordgo.GuildMemberRemove:
		mem = e.Member
	default:
		return
	}
	if mem == nil || mem.User == nil {
		return
	}

	user := &MemberUser{User: mem.User, Member: mem}

	if _, gone := evt.(*discordgo.GuildMemberRemove); gone {
		// remove payloads carry no roles; the cached copy is the last
		// full view of the member, so surface it before evicting
		if c.store != nil {
			if cached, err := c.store.GetMember(mem.GuildID, mem.User.ID); err == nil {
				user.Member = cached
			}
			if err := c.store.DeleteMember(mem.GuildID, mem.User.ID); err != nil {
				c.logger.Error("failed to evict member", zap.Error(err))
			}
		}
	} else if c.store != nil {
		if err := c.store.SetMember(mem); err != nil {
			c.logger.Error("failed to cache member", zap.Error(err))
		}
	}

	ec.apply(Values{
		User:  user,
		Guild: c.guildInScope(mem.GuildID),
	}, false)
}

func membersChunkHook(c *Client, ec *EventContext, evt interface{}) {
	e, ok := evt.(*discordgo.GuildMembersChunk)
	if !ok {
		return
	}
	ec.apply(Values{Guild: c.guildInScope(e.GuildID)}, false)

	if c.store == nil {
		return
	}
	for _, mem := range e.Members {
		if err := c.store.SetMember(mem); err != nil {
			c.logger.Error("failed to cache member", zap.Error(err))
		}
	}
}

func roleHook(c *Client, ec *EventContext, evt interface{}) {
	var gid string
	switch e := evt.(type) {
	case *discordgo.GuildRoleCreate:
		gid = e.GuildID
	case *discordgo.GuildRoleUpdate:
		gid = e.GuildID
	default:
		return
	}
	ec.apply(Values{Guild: c.guildInScope(gid)}, false)
}

func roleDeleteHook(c *Client, ec *EventContext, evt interface{}) {
	e, ok := evt.(*discordgo.GuildRoleDelete)
	if !ok {
		return
	}
	ec.apply(Values{Guild: c.guildInScope(e.GuildID)}, false)
}

func banHook(c *Client, ec *EventContext, evt interface{}) {
	var user *discordgo.User
	var gid string
	switch e := evt.(type) {
	case *discordgo.GuildBanAdd:
		user, gid = e.User, e.GuildID
	case *discordgo.GuildBanRemove:
		user, gid = e.User, e.GuildID
	default:
		return
	}
	ec.apply(Values{
		User:  c.EnsureMember(user, gid),
		Guild: c.guildInScope(gid),
	}, false)
}

func interactionHook(c *Client, ec *EventContext, evt interface{}) {
	i, ok := evt.(*discordgo.InteractionCreate)
	if !ok {
		return
	}

	v := Values{
		Channel: c.channelInScope(i.ChannelID),
		Guild:   c.guildInScope(i.GuildID),
	}

	switch {
	case i.Member != nil && i.Member.User != nil:
		member := i.Member
		if member.GuildID == "" {
			member.GuildID = i.GuildID
		}
		v.User = &MemberUser{User: member.User, Member: member}
	case i.User != nil:
		v.User = &MemberUser{User: i.User}
	}

	if i.Message != nil {
		v.Message = PartialFromMessage(i.Message)
	}

	if i.Type == discordgo.InteractionApplicationCommand {
		data := i.ApplicationCommandData()
		v.Command = &CommandContext{
			Interaction: i.Interaction,
			Name:        data.Name,
			Options:     data.Options,
		}
	}
	ec.apply(v, false)
}

// cachedMessage looks for a previously seen copy of a message, first in
// session state, then in the kv cache.
func (c *Client) cachedMessage(gid, cid, mid string) *discordgo.Message {
	for _, s := range c.sessions {
		ch, err := s.State.Channel(cid)
		if err != nil {
			continue
		}
		for _, m := range ch.Messages {
			if m.ID == mid {
				return m
			}
		}
	}
	if c.store != nil {
		if msg, err := c.store.GetMessage(gid, cid, mid); err == nil {
			return msg.Message
		}
	}
	return nil
}
