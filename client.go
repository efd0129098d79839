package dgctx

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/gammazero/workerpool"
	"go.uber.org/zap"

	"github.com/dgctx/dgctx/store"
)

// HandlerFunc is a generic event handler. The context carries the
// EventContext the hooks populated for evt.
type HandlerFunc func(ctx context.Context, evt interface{})

// Client wraps one or more sharded discordgo sessions and funnels every
// dispatched gateway event through the hook registry before handing it to
// the registered handlers.
type Client struct {
	token    string
	sessions []*discordgo.Session
	logger   *zap.Logger
	store    *store.Store
	pool     *workerpool.WorkerPool
	events   chan interface{}
	quit     chan struct{}
	quitOnce sync.Once

	mu       sync.RWMutex
	handlers []HandlerFunc

	shardCount int
	workers    int
	intents    discordgo.Intent
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger. Defaults to zap.NewNop.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithStore attaches a member/message cache. The built-in hooks keep it
// warm and fall back to it when the gateway payload only carries IDs.
func WithStore(s *store.Store) Option {
	return func(c *Client) { c.store = s }
}

// WithShardCount overrides the shard count. Without it the client asks the
// gateway for the recommended count.
func WithShardCount(n int) Option {
	return func(c *Client) { c.shardCount = n }
}

// WithWorkers bounds the number of concurrently running handlers.
func WithWorkers(n int) Option {
	return func(c *Client) { c.workers = n }
}

// WithIntents overrides the gateway intents.
func WithIntents(i discordgo.Intent) Option {
	return func(c *Client) { c.intents = i }
}

// New creates a client and its sessions. No connection is opened until
// Open is called.
func New(token string, opts ...Option) (*Client, error) {
	c := &Client{
		token:   token,
		events:  make(chan interface{}, 256),
		quit:    make(chan struct{}),
		workers: 16,
		intents: discordgo.MakeIntent(discordgo.IntentsAllWithoutPrivileged | discordgo.IntentsGuildMembers | discordgo.IntentMessageContent),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}

	if c.shardCount <= 0 {
		shards, err := recommendedShards(c.token)
		if err != nil {
			return nil, err
		}
		c.shardCount = shards
	}

	for i := 0; i < c.shardCount; i++ {
		s, err := discordgo.New("Bot " + c.token)
		if err != nil {
			return nil, err
		}

		s.State.TrackVoice = false
		s.State.TrackPresences = false
		s.ShardCount = c.shardCount
		s.ShardID = i
		s.Identify.Intents = c.intents
		s.AddHandler(c.onEvent)

		c.sessions = append(c.sessions, s)
		c.logger.Info("created session", zap.Int("shard", i))
	}

	c.pool = workerpool.New(c.workers)
	return c, nil
}

func (c *Client) onEvent(s *discordgo.Session, evt interface{}) {
	select {
	case c.events <- evt:
	case <-c.quit:
	}
}

// AddHandler registers a handler for every dispatched event.
func (c *Client) AddHandler(h HandlerFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, h)
}

// Session returns the main session.
func (c *Client) Session() *discordgo.Session {
	return c.sessions[0]
}

// Open starts the dispatcher and opens all sessions.
func (c *Client) Open() error {
	go c.listen()
	for _, s := range c.sessions {
		if err := s.Open(); err != nil {
			return err
		}
	}
	return nil
}

// Close stops the dispatcher, waits for running handlers, then closes the
// sessions. Safe to call more than once.
func (c *Client) Close() {
	c.quitOnce.Do(func() { close(c.quit) })
	c.pool.StopWait()
	for _, s := range c.sessions {
		if err := s.Close(); err != nil {
			c.logger.Error("failed to close session", zap.Int("shard", s.ShardID), zap.Error(err))
		}
	}
}

func (c *Client) listen() {
	for {
		select {
		case evt := <-c.events:
			c.dispatch(evt)
		case <-c.quit:
			return
		}
	}
}

// dispatch names the event, builds its context through the hook registry
// and fans it out to the handlers on the worker pool. Events with no hook
// still reach handlers with an event-name-only context.
func (c *Client) dispatch(evt interface{}) {
	name := eventName(evt)
	if name == "" {
		name = fallbackEventName(evt)
	}
	if name == "" {
		return
	}

	ec := &EventContext{
		event:   name,
		client:  c,
		session: c.Session(),
	}
	if hook := lookupHook(name); hook != nil {
		hook(c, ec, evt)
	}
	ctx := NewContext(context.Background(), ec)

	c.mu.RLock()
	handlers := make([]HandlerFunc, len(c.handlers))
	copy(handlers, c.handlers)
	c.mu.RUnlock()

	for _, h := range handlers {
		h := h
		c.pool.Submit(func() {
			defer func() {
				if r := recover(); r != nil {
					c.logger.Error("handler panicked", zap.String("event", name), zap.Any("panic", r))
				}
			}()
			h(ctx, evt)
		})
	}
}

// Guild looks up a guild in state, falling back across shards.
func (c *Client) Guild(gid string) (*discordgo.Guild, error) {
	for _, s := range c.sessions {
		if g, err := s.State.Guild(gid); err == nil {
			return g, nil
		}
	}
	return nil, discordgo.ErrStateNotFound
}

// Member looks up a guild member in state, falling back across shards.
func (c *Client) Member(gid, uid string) (*discordgo.Member, error) {
	for _, s := range c.sessions {
		if m, err := s.State.Member(gid, uid); err == nil {
			return m, nil
		}
	}
	return nil, discordgo.ErrStateNotFound
}

// Channel looks up a channel in state, falling back across shards.
func (c *Client) Channel(cid string) (*discordgo.Channel, error) {
	for _, s := range c.sessions {
		if ch, err := s.State.Channel(cid); err == nil {
			return ch, nil
		}
	}
	return nil, discordgo.ErrStateNotFound
}

// UserChannelPermissions computes a user's permissions in a channel from
// state, falling back across shards.
func (c *Client) UserChannelPermissions(uid, cid string) (int64, error) {
	for _, s := range c.sessions {
		if p, err := s.State.UserChannelPermissions(uid, cid); err == nil {
			return p, nil
		}
	}
	return -1, discordgo.ErrStateNotFound
}

// Store returns the attached cache, or nil.
func (c *Client) Store() *store.Store {
	return c.store
}

// guildInScope resolves a guild id to a state guild, or a stub carrying
// only the id when state has nothing. Events from guilds the client never
// saw still get a guild slot this way.
func (c *Client) guildInScope(gid string) *discordgo.Guild {
	if gid == "" {
		return nil
	}
	if g, err := c.Guild(gid); err == nil {
		return g
	}
	return &discordgo.Guild{ID: gid}
}

// channelInScope resolves a channel id the same way guildInScope does.
func (c *Client) channelInScope(cid string) *discordgo.Channel {
	if cid == "" {
		return nil
	}
	if ch, err := c.Channel(cid); err == nil {
		return ch
	}
	return &discordgo.Channel{ID: cid}
}

// recommendedShards asks discord for the recommended shard count for the
// bot given the token.
func recommendedShards(token string) (int, error) {
	req, _ := http.NewRequest("GET", "https://discord.com/api/v8/gateway/bot", nil)
	req.Header.Add("Authorization", "Bot "+token)
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return -1, err
	}
	defer res.Body.Close()

	resp := &discordgo.GatewayBotResponse{}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return -1, err
	}
	return resp.Shards, nil
}
