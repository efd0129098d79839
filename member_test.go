package dgctx

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureMemberWithGuild(t *testing.T) {
	c := newTestClient(t)
	user := &discordgo.User{ID: "u1", Username: "jeff"}

	got := c.EnsureMember(user, "g1")
	require.NotNil(t, got)
	assert.Equal(t, "u1", got.ID)
	require.NotNil(t, got.Member)
	assert.Equal(t, "g1", got.Member.GuildID)
}

func TestEnsureMemberUnknownGuild(t *testing.T) {
	c := newTestClient(t)
	user := &discordgo.User{ID: "u1", Username: "jeff"}

	got := c.EnsureMember(user, "unseen")
	require.NotNil(t, got)
	assert.Equal(t, "u1", got.ID)
	assert.Nil(t, got.Member, "unknown guild leaves the user bare")
}

func TestEnsureMemberNoGuildSingleInstance(t *testing.T) {
	c := newTestClient(t)
	user := &discordgo.User{ID: "u1", Username: "jeff"}

	got := c.EnsureMember(user, "")
	require.NotNil(t, got)
	require.NotNil(t, got.Member, "sole membership resolves without a guild hint")
	assert.Equal(t, "g1", got.Member.GuildID)
}

func TestEnsureMemberNoGuildAmbiguous(t *testing.T) {
	c := newTestClient(t)
	s := c.Session()
	require.NoError(t, s.State.GuildAdd(&discordgo.Guild{ID: "g2", Name: "other"}))
	require.NoError(t, s.State.MemberAdd(&discordgo.Member{GuildID: "g2", User: &discordgo.User{ID: "u1", Username: "jeff"}}))

	got := c.EnsureMember(&discordgo.User{ID: "u1", Username: "jeff"}, "")
	require.NotNil(t, got)
	assert.Nil(t, got.Member, "membership in several guilds stays unresolved")
}

func TestEnsureMemberNil(t *testing.T) {
	c := newTestClient(t)
	assert.Nil(t, c.EnsureMember(nil, "g1"))
}

func TestEnsureMemberID(t *testing.T) {
	c := newTestClient(t)

	got := c.EnsureMemberID("u1", "g1")
	require.NotNil(t, got)
	assert.Equal(t, "jeff", got.Username)
	require.NotNil(t, got.Member)

	assert.Nil(t, c.EnsureMemberID("stranger", "g1"))
	assert.Nil(t, c.EnsureMemberID("", "g1"))
}

func TestEnsureMemberIDWithoutGuild(t *testing.T) {
	c := newTestClient(t)

	got := c.EnsureMemberID("u1", "")
	require.NotNil(t, got, "sole membership resolves from id alone")
	assert.Equal(t, "g1", got.Member.GuildID)
}
