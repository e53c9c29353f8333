package liveboard2sqlite

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/pkg/errors"
)

// BoardCache keeps the most recent successful ingestion result per station in
// Redis so the read surface can answer without touching upstream. It is
// optional: a nil *BoardCache disables caching, and cache failures degrade to
// warnings rather than failing the ingestion that produced the snapshot.
type BoardCache struct {
	Pool *redis.Pool
	TTL  time.Duration
}

func NewRedisPool(addr string) *redis.Pool {
	return &redis.Pool{
		Dial: func() (redis.Conn, error) {
			return redis.Dial("tcp", addr)
		},
		MaxIdle:     3,
		IdleTimeout: 240 * time.Second,
	}
}

func NewBoardCache(addr string, ttl time.Duration) *BoardCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &BoardCache{Pool: NewRedisPool(addr), TTL: ttl}
}

func boardKey(station string) string {
	return "board:" + strings.ToLower(station)
}

// PutBoard stores the snapshot with the configured TTL.
func (bc *BoardCache) PutBoard(station string, result Result) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return errors.Wrap(err, "cannot marshal board snapshot")
	}

	conn := bc.Pool.Get()
	defer func() { _ = conn.Close() }()

	_, err = conn.Do("SET", boardKey(station), payload, "EX", int(bc.TTL.Seconds()))
	if err != nil {
		return errors.Wrapf(err, "cannot cache board snapshot for %s", station)
	}
	return nil
}

// LatestBoard returns the cached snapshot for a station, reporting whether
// one was present.
func (bc *BoardCache) LatestBoard(station string) (Result, bool, error) {
	conn := bc.Pool.Get()
	defer func() { _ = conn.Close() }()

	payload, err := redis.Bytes(conn.Do("GET", boardKey(station)))
	if errors.Is(err, redis.ErrNil) {
		return Result{}, false, nil
	}
	if err != nil {
		return Result{}, false, errors.Wrapf(err, "cannot read board snapshot for %s", station)
	}

	var result Result
	if err := json.Unmarshal(payload, &result); err != nil {
		return Result{}, false, errors.Wrap(err, "cannot unmarshal board snapshot")
	}
	return result, true, nil
}

func (bc *BoardCache) Close() error {
	return bc.Pool.Close()
}
