// Package dgctx propagates per-event contextual values (message, user,
// channel, guild, emoji, command) through discordgo event handlers using
// context.Context instead of explicit parameter threading.
package dgctx

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// ErrNotSet is returned when a context slot is accessed before any hook
// populated it for the current event. Match it with errors.Is.
var ErrNotSet = errors.New("value not set in event context")

// ErrNoContext is returned by FromContext when the given context does not
// carry an event context.
var ErrNoContext = errors.New("no event context in current call stack")

// NotSetError reports which slot was missing and which event produced the
// current context.
type NotSetError struct {
	Event string
	Slot  string
}

func (e *NotSetError) Error() string {
	if e.Event == "" {
		return fmt.Sprintf("event context has no origin event, `%v` was never set", e.Slot)
	}
	return fmt.Sprintf("event '%v' does not set a value for `%v`", e.Event, e.Slot)
}

func (e *NotSetError) Unwrap() error {
	return ErrNotSet
}

// Slots identifies one or more value slots of an EventContext.
type Slots uint8

const (
	SlotMessage Slots = 1 << iota
	SlotEmoji
	SlotUser
	SlotChannel
	SlotGuild
	SlotCommand
)

// Values carries slot values for WithValues and WithDefaults. A nil field
// means the slot is not provided. To explicitly set a slot to nil, name it
// in Nil; a slot that is set-but-nil no longer produces ErrNotSet.
type Values struct {
	Message *PartialMessage
	Emoji   *discordgo.Emoji
	User    *MemberUser
	Channel *discordgo.Channel
	Guild   *discordgo.Guild
	Command *CommandContext

	Nil Slots
}

// EventContext holds the values a gateway event put in scope. It is built
// by the client's dispatcher before user handlers run, and read through its
// accessors. Deriving contexts with WithValues or WithDefaults never
// mutates the parent scope.
type EventContext struct {
	event   string
	client  *Client
	session *discordgo.Session

	message *PartialMessage
	emoji   *discordgo.Emoji
	user    *MemberUser
	channel *discordgo.Channel
	guild   *discordgo.Guild
	command *CommandContext

	set Slots
}

type ctxKey struct{}

// NewContext returns a context carrying ec.
func NewContext(parent context.Context, ec *EventContext) context.Context {
	return context.WithValue(parent, ctxKey{}, ec)
}

// FromContext extracts the event context placed by the dispatcher.
func FromContext(ctx context.Context) (*EventContext, error) {
	ec, ok := ctx.Value(ctxKey{}).(*EventContext)
	if !ok {
		return nil, ErrNoContext
	}
	return ec, nil
}

// WithValues derives a context whose event context has the given values
// applied on top of the current ones. The parent scope is left untouched,
// so the override ends where the derived context stops being passed along.
func WithValues(ctx context.Context, v Values) context.Context {
	ec, err := FromContext(ctx)
	if err != nil {
		ec = &EventContext{}
	}
	next := ec.clone()
	next.apply(v, false)
	return NewContext(ctx, next)
}

// WithDefaults derives a context where the given values fill only the slots
// the current event never set. Already-set slots keep their values.
func WithDefaults(ctx context.Context, v Values) context.Context {
	ec, err := FromContext(ctx)
	if err != nil {
		ec = &EventContext{}
	}
	next := ec.clone()
	next.apply(v, true)
	return NewContext(ctx, next)
}

func (ec *EventContext) clone() *EventContext {
	dup := *ec
	return &dup
}

// apply writes the provided values into ec. With defaults set, only slots
// that are currently unset are written.
func (ec *EventContext) apply(v Values, defaults bool) {
	writable := func(s Slots) bool {
		return !defaults || ec.set&s == 0
	}

	if v.Message != nil && writable(SlotMessage) {
		ec.message = v.Message
		ec.set |= SlotMessage
	}
	if v.Emoji != nil && writable(SlotEmoji) {
		ec.emoji = v.Emoji
		ec.set |= SlotEmoji
	}
	if v.User != nil && writable(SlotUser) {
		ec.user = v.User
		ec.set |= SlotUser
	}
	if v.Channel != nil && writable(SlotChannel) {
		ec.channel = v.Channel
		ec.set |= SlotChannel
	}
	if v.Guild != nil && writable(SlotGuild) {
		ec.guild = v.Guild
		ec.set |= SlotGuild
	}
	if v.Command != nil && writable(SlotCommand) {
		ec.command = v.Command
		ec.set |= SlotCommand
	}

	for _, s := range []Slots{SlotMessage, SlotEmoji, SlotUser, SlotChannel, SlotGuild, SlotCommand} {
		if v.Nil&s == 0 || !writable(s) {
			continue
		}
		switch s {
		case SlotMessage:
			ec.message = nil
		case SlotEmoji:
			ec.emoji = nil
		case SlotUser:
			ec.user = nil
		case SlotChannel:
			ec.channel = nil
		case SlotGuild:
			ec.guild = nil
		case SlotCommand:
			ec.command = nil
		}
		ec.set |= s
	}
}

// Event returns the gateway event name that produced this context.
func (ec *EventContext) Event() (string, error) {
	if ec.event == "" {
		return "", &NotSetError{Slot: "event"}
	}
	return ec.event, nil
}

// Message returns the message in scope, usually a partial reference that
// can be fetched when the full message is needed.
func (ec *EventContext) Message() (*PartialMessage, error) {
	if ec.set&SlotMessage == 0 {
		return nil, &NotSetError{Event: ec.event, Slot: "message"}
	}
	return ec.message, nil
}

// Emoji returns the emoji in scope. Only reaction events set it.
func (ec *EventContext) Emoji() (*discordgo.Emoji, error) {
	if ec.set&SlotEmoji == 0 {
		return nil, &NotSetError{Event: ec.event, Slot: "emoji"}
	}
	return ec.emoji, nil
}

// User returns the user in scope, upgraded to a guild member when the
// client could resolve one.
func (ec *EventContext) User() (*MemberUser, error) {
	if ec.set&SlotUser == 0 {
		return nil, &NotSetError{Event: ec.event, Slot: "user"}
	}
	return ec.user, nil
}

// Channel returns the channel in scope.
func (ec *EventContext) Channel() (*discordgo.Channel, error) {
	if ec.set&SlotChannel == 0 {
		return nil, &NotSetError{Event: ec.event, Slot: "channel"}
	}
	return ec.channel, nil
}

// Guild returns the guild in scope. DM events leave it unset.
func (ec *EventContext) Guild() (*discordgo.Guild, error) {
	if ec.set&SlotGuild == 0 {
		return nil, &NotSetError{Event: ec.event, Slot: "guild"}
	}
	return ec.guild, nil
}

// Command returns the application command in scope. Only interaction
// events set it.
func (ec *EventContext) Command() (*CommandContext, error) {
	if ec.set&SlotCommand == 0 {
		return nil, &NotSetError{Event: ec.event, Slot: "command"}
	}
	return ec.command, nil
}

// Session returns the discordgo session the event arrived on.
func (ec *EventContext) Session() *discordgo.Session {
	return ec.session
}

// Client returns the client that dispatched the event.
func (ec *EventContext) Client() *Client {
	return ec.client
}

// String renders a compact preview of whatever the context has in scope.
func (ec *EventContext) String() string {
	var parts []string
	if ec.event != "" {
		parts = append(parts, fmt.Sprintf("event='%v'", ec.event))
	}
	if ec.set&SlotMessage != 0 && ec.message != nil {
		parts = append(parts, fmt.Sprintf("message=%v", ec.message.ID))
	}
	if ec.set&SlotEmoji != 0 && ec.emoji != nil {
		parts = append(parts, fmt.Sprintf("emoji='%v'", ec.emoji.Name))
	}
	if ec.set&SlotUser != 0 && ec.user != nil && ec.user.User != nil {
		parts = append(parts, fmt.Sprintf("user='%v'", ec.user.User.String()))
	}
	if ec.set&SlotChannel != 0 && ec.channel != nil {
		parts = append(parts, fmt.Sprintf("channel='%v'", ec.channel.Name))
	}
	if ec.set&SlotGuild != 0 && ec.guild != nil {
		parts = append(parts, fmt.Sprintf("guild='%v'", ec.guild.Name))
	}
	if ec.set&SlotCommand != 0 && ec.command != nil {
		parts = append(parts, fmt.Sprintf("command='%v'", ec.command.Name))
	}
	return fmt.Sprintf("<EventContext %v>", strings.Join(parts, ", "))
}

// Package-level accessors for reading straight off a context.Context.

// Event returns the event name carried by ctx.
func Event(ctx context.Context) (string, error) {
	ec, err := FromContext(ctx)
	if err != nil {
		return "", err
	}
	return ec.Event()
}

// Message returns the message carried by ctx.
func Message(ctx context.Context) (*PartialMessage, error) {
	ec, err := FromContext(ctx)
	if err != nil {
		return nil, err
	}
	return ec.Message()
}

// Emoji returns the emoji carried by ctx.
func Emoji(ctx context.Context) (*discordgo.Emoji, error) {
	ec, err := FromContext(ctx)
	if err != nil {
		return nil, err
	}
	return ec.Emoji()
}

// User returns the user carried by ctx.
func User(ctx context.Context) (*MemberUser, error) {
	ec, err := FromContext(ctx)
	if err != nil {
		return nil, err
	}
	return ec.User()
}

// Channel returns the channel carried by ctx.
func Channel(ctx context.Context) (*discordgo.Channel, error) {
	ec, err := FromContext(ctx)
	if err != nil {
		return nil, err
	}
	return ec.Channel()
}

// Guild returns the guild carried by ctx.
func Guild(ctx context.Context) (*discordgo.Guild, error) {
	ec, err := FromContext(ctx)
	if err != nil {
		return nil, err
	}
	return ec.Guild()
}

// Command returns the application command carried by ctx.
func Command(ctx context.Context) (*CommandContext, error) {
	ec, err := FromContext(ctx)
	if err != nil {
		return nil, err
	}
	return ec.Command()
}
