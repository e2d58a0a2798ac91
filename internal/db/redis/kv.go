package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/kidlock/internal/db"
)

// waitAOFTimeoutMs bounds how long WAITAOF may block the durable retry.
const waitAOFTimeoutMs = 1000

// Get retrieves a value by key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	cmd := s.b().Get().Key(key).Build()
	data, err := s.do(ctx, cmd).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, db.ErrKeyNotFound
		}
		return nil, &db.Error{Op: db.OpGet, Err: err}
	}
	return data, nil
}

// Set stores a value at the given key.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	cmd := s.b().Set().Key(key).Value(string(value)).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpSet, Err: err}
	}
	return nil
}

// SetSync pipelines SET and WAITAOF 1 0 so the write is fsynced locally before returning.
// Fails when appendonly is disabled on the server.
func (s *Store) SetSync(ctx context.Context, key string, value []byte) error {
	set := s.b().Set().Key(key).Value(string(value)).Build()
	wait := s.b().Arbitrary("WAITAOF").
		Args("1", "0", strconv.Itoa(waitAOFTimeoutMs)).
		Build()

	res := s.client.DoMulti(ctx, set, wait)
	if err := res[0].Error(); err != nil {
		return &db.Error{Op: db.OpSet, Err: err}
	}
	acks, err := res[1].ToArray()
	if err != nil {
		return &db.Error{Op: db.OpWaitAOF, Err: err}
	}
	if len(acks) == 0 {
		return &db.Error{Op: db.OpWaitAOF, Err: fmt.Errorf("empty reply")}
	}
	local, err := acks[0].AsInt64()
	if err != nil {
		return &db.Error{Op: db.OpWaitAOF, Err: err}
	}
	if local < 1 {
		return &db.Error{Op: db.OpWaitAOF, Err: db.ErrNotDurable}
	}
	return nil
}

// Del removes a key. Missing keys are not an error.
func (s *Store) Del(ctx context.Context, key string) error {
	cmd := s.b().Del().Key(key).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpDel, Err: err}
	}
	return nil
}
