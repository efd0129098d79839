// Package database holds the per-guild audit settings: which channel each
// event family logs to. A guild with an empty channel id has that log
// disabled.
package database

import (
	"encoding/json"
	"errors"
	"os"
	"sync"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type DB interface {
	GetConn() *sqlx.DB
	Close() error

	CreateGuild(gid string) error
	UpdateGuild(gid string, gc *Guild) error
	GetGuild(gid string) (*Guild, error)
}

type Config struct {
	Log     *zap.Logger
	ConnStr string
}

type Guild struct {
	ID           string `json:"id" db:"id"`
	MsgEditLog   string `json:"msg_edit_log" db:"msg_edit_log"`
	MsgDeleteLog string `json:"msg_delete_log" db:"msg_delete_log"`
	BanLog       string `json:"ban_log" db:"ban_log"`
	UnbanLog     string `json:"unban_log" db:"unban_log"`
	JoinLog      string `json:"join_log" db:"join_log"`
	LeaveLog     string `json:"leave_log" db:"leave_log"`
}

//
// JSON implementation DB
//

type JsonDB struct {
	path  string
	state *state
}

type state struct {
	sync.Mutex
	Guilds map[string]*Guild `json:"guilds"`
}

func NewJsonDatabase(path string) (*JsonDB, error) {
	db := &JsonDB{
		path: path,
		state: &state{
			Guilds: make(map[string]*Guild),
		},
	}
	err := db.load(path)
	return db, err
}

func (j *JsonDB) Close() error {
	return j.save()
}

func (j *JsonDB) load(path string) error {
	if _, err := os.Stat(path); err != nil {
		// no data file yet, start empty
		return nil
	}

	d, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	state := &state{}
	if err := json.Unmarshal(d, &state); err != nil {
		return err
	}

	j.state = state
	return nil
}

func (j *JsonDB) save() error {
	j.state.Lock()
	defer j.state.Unlock()

	d, err := json.Marshal(j.state)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(j.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(d)
	return err
}

func (j *JsonDB) GetConn() *sqlx.DB {
	return nil
}

func (j *JsonDB) CreateGuild(gid string) error {
	j.state.Lock()
	defer j.state.Unlock()
	if _, ok := j.state.Guilds[gid]; ok {
		return errors.New("key already exists")
	}
	j.state.Guilds[gid] = &Guild{ID: gid}
	return nil
}

func (j *JsonDB) UpdateGuild(gid string, gc *Guild) error {
	j.state.Lock()
	defer j.state.Unlock()
	if _, ok := j.state.Guilds[gid]; !ok {
		return errors.New("key does not exist")
	}
	j.state.Guilds[gid] = gc
	return nil
}

func (j *JsonDB) GetGuild(gid string) (*Guild, error) {
	j.state.Lock()
	defer j.state.Unlock()
	if v, ok := j.state.Guilds[gid]; ok {
		return v, nil
	}
	return nil, errors.New("key does not exist")
}
