// Package store is a badger-backed cache for members and messages. It
// backs the context hooks when a gateway payload only carries ids: deleted
// or edited messages, reactions from members who already left, and ban
// events for users with no state entry.
package store

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/dgraph-io/badger"
	"github.com/dgraph-io/badger/options"
	"go.uber.org/zap"
)

const messageTTL = 24 * time.Hour

type Store struct {
	db     *badger.DB
	logger *zap.Logger
	quit   chan struct{}
}

func NewStore(path string, logger *zap.Logger) (*Store, error) {
	s := &Store{
		logger: logger.Named("kvstore"),
		quit:   make(chan struct{}),
	}

	opts := badger.DefaultOptions(path)
	opts.Truncate = true
	opts.ValueLogLoadingMode = options.FileIO
	opts.NumVersionsToKeep = 1
	opts.Logger = &badgerLogger{logger.Named("badger").Sugar()}

	db, err := badger.Open(opts)
	if err != nil {
		s.logger.Error("failed to open badger", zap.Error(err))
		return nil, err
	}
	s.db = db

	go s.runGC()

	return s, nil
}

func (s *Store) Close() error {
	close(s.quit)
	return s.db.Close()
}

func encodeGob(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(v)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func (s *Store) SetMember(m *discordgo.Member) error {
	enc, err := encodeGob(m)
	if err != nil {
		s.logger.Error("failed to encode member", zap.Error(err))
		return err
	}

	key := fmt.Sprintf("member:%v:%v", m.GuildID, m.User.ID)
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), enc)
	})
}

func (s *Store) GetMember(gid, uid string) (*discordgo.Member, error) {
	var member discordgo.Member
	key := fmt.Sprintf("member:%v:%v", gid, uid)
	if err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return decodeGob(value, &member)
	}); err != nil {
		if err != badger.ErrKeyNotFound {
			s.logger.Error("failed to read member", zap.Error(err))
		}
		return nil, err
	}
	return &member, nil
}

func (s *Store) DeleteMember(gid, uid string) error {
	key := fmt.Sprintf("member:%v:%v", gid, uid)
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// SetMessage caches a message for a day, along with an author index entry
// so GetMessageLog can walk a user's recent messages in a guild.
func (s *Store) SetMessage(msg *DiscordMessage) error {
	enc, err := encodeGob(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	messageKey := fmt.Sprintf("message:%v:%v:%v", msg.Message.GuildID, msg.Message.ChannelID, msg.Message.ID)
	indexKey := fmt.Sprintf("index:%v:%v:%v:%v", msg.Message.GuildID, msg.Message.Author.ID, msg.Message.Timestamp.Unix(), msg.Message.ID)

	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(messageKey), enc).WithTTL(messageTTL)
		if err := txn.SetEntry(entry); err != nil {
			return err
		}
		indexEntry := badger.NewEntry([]byte(indexKey), []byte(messageKey)).WithTTL(messageTTL)
		return txn.SetEntry(indexEntry)
	})
}

func (s *Store) GetMessage(gid, cid, mid string) (*DiscordMessage, error) {
	var message DiscordMessage
	key := fmt.Sprintf("message:%v:%v:%v", gid, cid, mid)
	if err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return decodeGob(value, &message)
	}); err != nil {
		if err != badger.ErrKeyNotFound {
			s.logger.Error("failed to read message", zap.Error(err))
		}
		return nil, err
	}
	return &message, nil
}

// GetMessageLog returns the cached messages a user sent in a guild within
// the cache TTL, oldest first.
func (s *Store) GetMessageLog(gid, uid string) ([]*DiscordMessage, error) {
	prefix := []byte(fmt.Sprintf("index:%v:%v:", gid, uid))
	var messages []*DiscordMessage
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			value, err := it.Item().ValueCopy(nil)
			if err != nil {
				s.logger.Error("failed to read index entry", zap.Error(err))
				continue
			}

			item, err := txn.Get(value)
			if err != nil {
				continue
			}
			enc, err := item.ValueCopy(nil)
			if err != nil {
				s.logger.Error("failed to read message", zap.Error(err))
				continue
			}

			var message DiscordMessage
			if err := decodeGob(enc, &message); err != nil {
				s.logger.Error("failed to decode message", zap.Error(err))
				continue
			}
			messages = append(messages, &message)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (s *Store) runGC() {
	gcTicker := time.NewTicker(time.Hour)
	defer gcTicker.Stop()
	for {
		select {
		case <-gcTicker.C:
			for {
				if err := s.db.RunValueLogGC(0.7); err != nil {
					break
				}
			}
		case <-s.quit:
			return
		}
	}
}

// badgerLogger adapts zap to badger.Logger.
type badgerLogger struct {
	log *zap.SugaredLogger
}

func (b *badgerLogger) Errorf(template string, args ...interface{}) {
	b.log.Errorf(template, args...)
}

func (b *badgerLogger) Warningf(template string, args ...interface{}) {
	b.log.Warnf(template, args...)
}

func (b *badgerLogger) Infof(template string, args ...interface{}) {
	b.log.Infof(template, args...)
}

func (b *badgerLogger) Debugf(template string, args ...interface{}) {
	b.log.Debugf(template, args...)
}
