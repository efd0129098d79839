package dgctx

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchBuildsContext(t *testing.T) {
	c := newTestClient(t)

	type result struct {
		evt  interface{}
		name string
		user *MemberUser
	}
	done := make(chan result, 1)

	c.AddHandler(func(ctx context.Context, evt interface{}) {
		name, err := Event(ctx)
		require.NoError(t, err)
		user, err := User(ctx)
		require.NoError(t, err)
		done <- result{evt: evt, name: name, user: user}
	})

	evt := &discordgo.MessageCreate{Message: &discordgo.Message{
		ID:        "m1",
		ChannelID: "c1",
		GuildID:   "g1",
		Author:    &discordgo.User{ID: "u1", Username: "jeff"},
	}}
	c.dispatch(evt)

	select {
	case got := <-done:
		assert.Same(t, evt, got.evt)
		assert.Equal(t, "MESSAGE_CREATE", got.name)
		require.NotNil(t, got.user)
		assert.Equal(t, "u1", got.user.ID)
	case <-time.After(time.Second):
		t.Fatal("handler was not called")
	}
}

func TestDispatchRawEvent(t *testing.T) {
	c := newTestClient(t)

	done := make(chan string, 1)
	c.AddHandler(func(ctx context.Context, evt interface{}) {
		name, err := Event(ctx)
		require.NoError(t, err)
		done <- name
	})

	c.dispatch(&discordgo.Event{Type: "SOMETHING_ELSE"})

	select {
	case name := <-done:
		assert.Equal(t, "SOMETHING_ELSE", name)
	case <-time.After(time.Second):
		t.Fatal("raw event was not dispatched")
	}
}

func TestDispatchUnmappedEvent(t *testing.T) {
	c := newTestClient(t)

	done := make(chan string, 1)
	c.AddHandler(func(ctx context.Context, evt interface{}) {
		name, err := Event(ctx)
		require.NoError(t, err)
		_, msgErr := Message(ctx)
		assert.ErrorIs(t, msgErr, ErrNotSet)
		done <- name
	})

	c.dispatch(&discordgo.VoiceStateUpdate{VoiceState: &discordgo.VoiceState{UserID: "u1", GuildID: "g1"}})

	select {
	case name := <-done:
		assert.Equal(t, "VOICE_STATE_UPDATE", name)
	case <-time.After(time.Second):
		t.Fatal("unmapped event was not dispatched")
	}
}

func TestDispatchSkipsNamelessEvents(t *testing.T) {
	c := newTestClient(t)

	called := make(chan struct{}, 2)
	c.AddHandler(func(ctx context.Context, evt interface{}) {
		called <- struct{}{}
	})

	c.dispatch(&discordgo.Event{})
	c.dispatch("not an event")

	select {
	case <-called:
		t.Fatal("nameless event should not be dispatched")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDispatchRecoversHandlerPanic(t *testing.T) {
	c := newTestClient(t)

	done := make(chan struct{}, 2)
	c.AddHandler(func(ctx context.Context, evt interface{}) {
		done <- struct{}{}
		panic("boom")
	})

	evt := &discordgo.TypingStart{UserID: "u1", ChannelID: "c1", GuildID: "g1"}
	c.dispatch(evt)
	c.dispatch(evt)

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("dispatcher died after handler panic")
		}
	}
}

func TestDispatchEventWithoutHookStillHasName(t *testing.T) {
	c := newTestClient(t)

	done := make(chan string, 1)
	c.AddHandler(func(ctx context.Context, evt interface{}) {
		name, err := Event(ctx)
		require.NoError(t, err)
		_, msgErr := Message(ctx)
		assert.ErrorIs(t, msgErr, ErrNotSet)
		done <- name
	})

	c.dispatch(&discordgo.Ready{})

	select {
	case name := <-done:
		assert.Equal(t, "READY", name)
	case <-time.After(time.Second):
		t.Fatal("handler was not called")
	}
}

func TestDispatchContextsAreDisjoint(t *testing.T) {
	c := newTestClient(t)

	type seen struct {
		name  string
		msgID string
	}
	done := make(chan seen, 2)
	c.AddHandler(func(ctx context.Context, evt interface{}) {
		name, err := Event(ctx)
		require.NoError(t, err)
		var id string
		if msg, err := Message(ctx); err == nil && msg != nil {
			id = msg.ID
		}
		done <- seen{name: name, msgID: id}
	})

	events := []interface{}{
		&discordgo.MessageCreate{Message: &discordgo.Message{
			ID: "m1", ChannelID: "c1", GuildID: "g1",
			Author: &discordgo.User{ID: "u1", Username: "jeff"},
		}},
		&discordgo.MessageDelete{Message: &discordgo.Message{
			ID: "m2", ChannelID: "c1", GuildID: "g1",
		}},
	}

	var wg sync.WaitGroup
	for _, evt := range events {
		evt := evt
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.dispatch(evt)
		}()
	}
	wg.Wait()

	got := make(map[string]string)
	for i := 0; i < len(events); i++ {
		select {
		case s := <-done:
			got[s.name] = s.msgID
		case <-time.After(time.Second):
			t.Fatal("handler was not called for every event")
		}
	}
	assert.Equal(t, "m1", got["MESSAGE_CREATE"])
	assert.Equal(t, "m2", got["MESSAGE_DELETE"])
}

func TestCloseIdempotent(t *testing.T) {
	c := newTestClient(t)
	c.Close()
	assert.NotPanics(t, func() { c.Close() })
}

func TestStateLookupFallback(t *testing.T) {
	c := newTestClient(t)

	g, err := c.Guild("g1")
	require.NoError(t, err)
	assert.Equal(t, "guild", g.Name)

	_, err = c.Guild("nope")
	assert.ErrorIs(t, err, discordgo.ErrStateNotFound)

	ch, err := c.Channel("c1")
	require.NoError(t, err)
	assert.Equal(t, "general", ch.Name)

	mem, err := c.Member("g1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "jeff", mem.User.Username)

	_, err = c.Member("g1", "nope")
	assert.ErrorIs(t, err, discordgo.ErrStateNotFound)
}

func TestGuildInScope(t *testing.T) {
	c := newTestClient(t)

	assert.Nil(t, c.guildInScope(""))
	assert.Equal(t, "guild", c.guildInScope("g1").Name)
	assert.Equal(t, "unseen", c.guildInScope("unseen").ID)
}
