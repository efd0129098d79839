package dgctx

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext(t *testing.T) {
	_, err := FromContext(context.Background())
	assert.ErrorIs(t, err, ErrNoContext)

	ec := &EventContext{event: "MESSAGE_CREATE"}
	got, err := FromContext(NewContext(context.Background(), ec))
	require.NoError(t, err)
	assert.Same(t, ec, got)
}

func TestAccessorsUnset(t *testing.T) {
	ec := &EventContext{event: "TYPING_START"}

	_, err := ec.Message()
	assert.ErrorIs(t, err, ErrNotSet)

	var nse *NotSetError
	require.ErrorAs(t, err, &nse)
	assert.Equal(t, "TYPING_START", nse.Event)
	assert.Equal(t, "message", nse.Slot)
	assert.Equal(t, "event 'TYPING_START' does not set a value for `message`", err.Error())

	_, err = ec.Emoji()
	assert.ErrorIs(t, err, ErrNotSet)
	_, err = ec.User()
	assert.ErrorIs(t, err, ErrNotSet)
	_, err = ec.Channel()
	assert.ErrorIs(t, err, ErrNotSet)
	_, err = ec.Guild()
	assert.ErrorIs(t, err, ErrNotSet)
	_, err = ec.Command()
	assert.ErrorIs(t, err, ErrNotSet)
}

func TestAccessorsSet(t *testing.T) {
	guild := &discordgo.Guild{ID: "1", Name: "guild"}
	channel := &discordgo.Channel{ID: "2", Name: "general"}
	msg := &PartialMessage{ID: "3", ChannelID: "2", GuildID: "1"}
	user := &MemberUser{User: &discordgo.User{ID: "4", Username: "jeff"}}

	ec := &EventContext{event: "MESSAGE_CREATE"}
	ec.apply(Values{Message: msg, User: user, Channel: channel, Guild: guild}, false)

	gotMsg, err := ec.Message()
	require.NoError(t, err)
	assert.Equal(t, msg, gotMsg)

	gotUser, err := ec.User()
	require.NoError(t, err)
	assert.Equal(t, user, gotUser)

	gotChannel, err := ec.Channel()
	require.NoError(t, err)
	assert.Equal(t, channel, gotChannel)

	gotGuild, err := ec.Guild()
	require.NoError(t, err)
	assert.Equal(t, guild, gotGuild)

	evt, err := ec.Event()
	require.NoError(t, err)
	assert.Equal(t, "MESSAGE_CREATE", evt)
}

func TestExplicitNilSlot(t *testing.T) {
	// a slot marked nil is set: reading it yields nil without an error
	ec := &EventContext{event: "MESSAGE_DELETE"}
	ec.apply(Values{Nil: SlotUser}, false)

	user, err := ec.User()
	require.NoError(t, err)
	assert.Nil(t, user)

	_, err = ec.Guild()
	assert.ErrorIs(t, err, ErrNotSet)
}

func TestWithValuesOverrides(t *testing.T) {
	guild := &discordgo.Guild{ID: "1", Name: "original"}
	ec := &EventContext{event: "GUILD_UPDATE"}
	ec.apply(Values{Guild: guild}, false)
	ctx := NewContext(context.Background(), ec)

	override := &discordgo.Guild{ID: "9", Name: "override"}
	derived := WithValues(ctx, Values{Guild: override})

	got, err := Guild(derived)
	require.NoError(t, err)
	assert.Equal(t, override, got)

	// parent scope is untouched
	got, err = Guild(ctx)
	require.NoError(t, err)
	assert.Equal(t, guild, got)
}

func TestWithDefaultsFillsOnlyUnset(t *testing.T) {
	guild := &discordgo.Guild{ID: "1", Name: "original"}
	ec := &EventContext{event: "GUILD_UPDATE"}
	ec.apply(Values{Guild: guild}, false)
	ctx := NewContext(context.Background(), ec)

	fallback := &discordgo.Guild{ID: "9"}
	channel := &discordgo.Channel{ID: "5"}
	derived := WithDefaults(ctx, Values{Guild: fallback, Channel: channel})

	got, err := Guild(derived)
	require.NoError(t, err)
	assert.Equal(t, guild, got, "set slot must keep its value")

	gotCh, err := Channel(derived)
	require.NoError(t, err)
	assert.Equal(t, channel, gotCh, "unset slot must take the default")
}

func TestWithValuesOnBareContext(t *testing.T) {
	channel := &discordgo.Channel{ID: "5"}
	ctx := WithValues(context.Background(), Values{Channel: channel})

	got, err := Channel(ctx)
	require.NoError(t, err)
	assert.Equal(t, channel, got)

	_, err = Event(ctx)
	assert.ErrorIs(t, err, ErrNotSet)
}

func TestCloneIsolation(t *testing.T) {
	ec := &EventContext{event: "MESSAGE_CREATE"}
	ec.apply(Values{Guild: &discordgo.Guild{ID: "1"}}, false)

	dup := ec.clone()
	dup.apply(Values{Guild: &discordgo.Guild{ID: "2"}}, false)

	g, err := ec.Guild()
	require.NoError(t, err)
	assert.Equal(t, "1", g.ID)
}

func TestString(t *testing.T) {
	ec := &EventContext{event: "MESSAGE_REACTION_ADD"}
	ec.apply(Values{
		Message: &PartialMessage{ID: "3"},
		Emoji:   &discordgo.Emoji{Name: "thumbsup"},
		User:    &MemberUser{User: &discordgo.User{Username: "jeff", Discriminator: "0"}},
		Channel: &discordgo.Channel{Name: "general"},
		Guild:   &discordgo.Guild{Name: "guild"},
	}, false)

	s := ec.String()
	assert.Contains(t, s, "event='MESSAGE_REACTION_ADD'")
	assert.Contains(t, s, "message=3")
	assert.Contains(t, s, "emoji='thumbsup'")
	assert.Contains(t, s, "channel='general'")
	assert.Contains(t, s, "guild='guild'")
}

func TestStringMemberWithoutUser(t *testing.T) {
	ec := &EventContext{event: "GUILD_MEMBER_ADD"}
	ec.apply(Values{User: &MemberUser{Member: &discordgo.Member{GuildID: "g1"}}}, false)

	assert.NotPanics(t, func() { _ = ec.String() })
	assert.Contains(t, ec.String(), "event='GUILD_MEMBER_ADD'")
}

func TestPackageAccessorsNoContext(t *testing.T) {
	for _, fn := range []func(context.Context) error{
		func(ctx context.Context) error { _, err := Message(ctx); return err },
		func(ctx context.Context) error { _, err := Emoji(ctx); return err },
		func(ctx context.Context) error { _, err := User(ctx); return err },
		func(ctx context.Context) error { _, err := Channel(ctx); return err },
		func(ctx context.Context) error { _, err := Guild(ctx); return err },
		func(ctx context.Context) error { _, err := Command(ctx); return err },
		func(ctx context.Context) error { _, err := Event(ctx); return err },
	} {
		err := fn(context.Background())
		if !errors.Is(err, ErrNoContext) {
			t.Errorf("expected ErrNoContext, got %v", err)
		}
	}
}

func TestNotSetErrorNoEvent(t *testing.T) {
	_, err := (&EventContext{}).Event()
	require.Error(t, err)
	assert.Equal(t, "event context has no origin event, `event` was never set", err.Error())
}
