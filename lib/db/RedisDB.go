package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/ether/easysync/lib/models/db"
	redis "github.com/redis/go-redis/v9"
)

const padIdsKey = "pads"

func padKey(padID string) string {
	return "pad:" + padID
}

func revisionKey(padID string, rev int) string {
	return "pad:" + padID + ":revs:" + strconv.Itoa(rev)
}

// RedisDB keeps every pad and revision as a JSON value under its own key.
type RedisDB struct {
	rdb     *redis.Client
	timeout time.Duration
}

type RedisOptions struct {
	// URL takes precedence over Addr when set, e.g. redis://:pw@host:6379/0.
	URL      string
	Addr     string
	Password string
	DB       int
}

func (r RedisDB) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), r.timeout)
}

func (r RedisDB) CreatePad(padID string, padDB db.PadDB) error {
	ctx, cancel := r.ctx()
	defer cancel()

	existing, err := r.GetPad(padID)
	switch {
	case err == nil:
		padDB.CreatedAt = existing.CreatedAt
	case !errors.Is(err, ErrPadNotFound):
		return err
	case padDB.CreatedAt.IsZero():
		padDB.CreatedAt = time.Now()
	}
	now := time.Now()
	padDB.ID = padID
	padDB.UpdatedAt = &now

	marshalled, err := json.Marshal(padDB)
	if err != nil {
		return fmt.Errorf("error marshaling pad: %w", err)
	}

	tx := r.rdb.TxPipeline()
	tx.Set(ctx, padKey(padID), marshalled, 0)
	tx.SAdd(ctx, padIdsKey, padID)
	_, err = tx.Exec(ctx)
	return err
}

func (r RedisDB) GetPad(padID string) (*db.PadDB, error) {
	ctx, cancel := r.ctx()
	defer cancel()

	raw, err := r.rdb.Get(ctx, padKey(padID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrPadNotFound
	}
	if err != nil {
		return nil, err
	}

	var padDB db.PadDB
	if err := json.Unmarshal(raw, &padDB); err != nil {
		return nil, fmt.Errorf("error unmarshaling pad: %w", err)
	}
	return &padDB, nil
}

func (r RedisDB) DoesPadExist(padID string) (*bool, error) {
	ctx, cancel := r.ctx()
	defer cancel()

	count, err := r.rdb.Exists(ctx, padKey(padID)).Result()
	if err != nil {
		return nil, err
	}
	exists := count > 0
	return &exists, nil
}

func (r RedisDB) RemovePad(padID string) error {
	padDB, err := r.GetPad(padID)
	if err != nil {
		if errors.Is(err, ErrPadNotFound) {
			return nil
		}
		return err
	}

	ctx, cancel := r.ctx()
	defer cancel()

	keys := make([]string, 0, padDB.Head+2)
	keys = append(keys, padKey(padID))
	for rev := 0; rev <= padDB.Head; rev++ {
		keys = append(keys, revisionKey(padID, rev))
	}

	tx := r.rdb.TxPipeline()
	tx.Del(ctx, keys...)
	tx.SRem(ctx, padIdsKey, padID)
	_, err = tx.Exec(ctx)
	return err
}

func (r RedisDB) GetPadIds() (*[]string, error) {
	ctx, cancel := r.ctx()
	defer cancel()

	padIds, err := r.rdb.SMembers(ctx, padIdsKey).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(padIds)
	return &padIds, nil
}

func (r RedisDB) SaveRevision(padID string, rev db.RevisionDB) error {
	ctx, cancel := r.ctx()
	defer cancel()

	rev.PadId = padID
	marshalled, err := json.Marshal(rev)
	if err != nil {
		return fmt.Errorf("error marshaling revision: %w", err)
	}
	// SETNX keeps the first write of a revision
	return r.rdb.SetNX(ctx, revisionKey(padID, rev.RevNum), marshalled, 0).Err()
}

func (r RedisDB) GetRevision(padID string, rev int) (*db.RevisionDB, error) {
	ctx, cancel := r.ctx()
	defer cancel()

	raw, err := r.rdb.Get(ctx, revisionKey(padID, rev)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrRevisionNotFound
	}
	if err != nil {
		return nil, err
	}

	var revisionDB db.RevisionDB
	if err := json.Unmarshal(raw, &revisionDB); err != nil {
		return nil, fmt.Errorf("error deserializing revision: %w", err)
	}
	return &revisionDB, nil
}

func (r RedisDB) GetRevisions(padID string, startRev int, endRev int) (*[]db.RevisionDB, error) {
	revisions := make([]db.RevisionDB, 0)
	if startRev > endRev {
		return &revisions, nil
	}

	ctx, cancel := r.ctx()
	defer cancel()

	keys := make([]string, 0, endRev-startRev+1)
	for rev := startRev; rev <= endRev; rev++ {
		keys = append(keys, revisionKey(padID, rev))
	}
	values, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	for _, value := range values {
		raw, ok := value.(string)
		if !ok {
			return nil, ErrRevisionNotFound
		}
		var revisionDB db.RevisionDB
		if err := json.Unmarshal([]byte(raw), &revisionDB); err != nil {
			return nil, fmt.Errorf("error deserializing revision: %w", err)
		}
		revisions = append(revisions, revisionDB)
	}
	return &revisions, nil
}

func (r RedisDB) Close() error {
	return r.rdb.Close()
}

// NewRedisDB connects to redis and fails if the server does not answer.
func NewRedisDB(options RedisOptions) (*RedisDB, error) {
	var clientOptions *redis.Options
	if options.URL != "" {
		parsed, err := redis.ParseURL(options.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		clientOptions = parsed
	} else {
		clientOptions = &redis.Options{
			Addr:     options.Addr,
			Password: options.Password,
			DB:       options.DB,
		}
	}

	rdb := redis.NewClient(clientOptions)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		rdb.Close()
		return nil, err
	}
	return &RedisDB{rdb: rdb, timeout: 5 * time.Second}, nil
}

var _ DataStore = (*RedisDB)(nil)
