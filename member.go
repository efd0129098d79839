package dgctx

import (
	"github.com/bwmarrin/discordgo"
)

// EnsureMember upgrades a bare user to a guild member when one can be
// resolved. With a guild id it checks session state and the kv cache; with
// no guild it scans state for member instances and resolves only when the
// user is a member of exactly one known guild. The user is returned as-is
// when no member can be found.
func (c *Client) EnsureMember(user *discordgo.User, guildID string) *MemberUser {
	if user == nil {
		return nil
	}

	if guildID != "" {
		if mem := c.lookupMember(guildID, user.ID); mem != nil {
			return &MemberUser{User: user, Member: mem}
		}
		return &MemberUser{User: user}
	}

	instances := c.memberInstances(user.ID)
	if len(instances) == 1 {
		return &MemberUser{User: user, Member: instances[0]}
	}
	return &MemberUser{User: user}
}

// EnsureMemberID resolves a user id the way EnsureMember does. Events such
// as reactions and typing only carry ids. Returns nil when nothing is
// known about the user.
func (c *Client) EnsureMemberID(userID, guildID string) *MemberUser {
	if userID == "" {
		return nil
	}

	if guildID != "" {
		if mem := c.lookupMember(guildID, userID); mem != nil {
			return &MemberUser{User: mem.User, Member: mem}
		}
	}

	instances := c.memberInstances(userID)
	if len(instances) == 1 {
		return &MemberUser{User: instances[0].User, Member: instances[0]}
	}
	return nil
}

// lookupMember checks session state first, then the kv cache.
func (c *Client) lookupMember(guildID, userID string) *discordgo.Member {
	if mem, err := c.Member(guildID, userID); err == nil {
		return mem
	}
	if c.store != nil {
		if mem, err := c.store.GetMember(guildID, userID); err == nil {
			return mem
		}
	}
	return nil
}

// memberInstances collects the member objects a user has across all guilds
// in state.
func (c *Client) memberInstances(userID string) []*discordgo.Member {
	var instances []*discordgo.Member
	for _, s := range c.sessions {
		for _, g := range s.State.Guilds {
			if mem, err := s.State.Member(g.ID, userID); err == nil {
				instances = append(instances, mem)
			}
		}
	}
	return instances
}
