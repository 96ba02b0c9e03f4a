package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	redisKeyPrefix     = "docstore:"
	redisChannelPrefix = "docstore:changes:"
	redisMaxTxRetries  = 10
)

// RedisStore keeps one hash per collection (field = document id, value = JSON) and
// announces every write on a per-collection pub/sub channel.
type RedisStore struct {
	client redis.UniversalClient
	log    zerolog.Logger
}

func NewRedisStore(client redis.UniversalClient, logger zerolog.Logger) *RedisStore {
	return &RedisStore{client: client, log: logger.With().Str("component", "docstore.redis").Logger()}
}

func redisKey(coll string) string     { return redisKeyPrefix + coll }
func redisChannel(coll string) string { return redisChannelPrefix + coll }

func (s *RedisStore) Set(ctx context.Context, docPath string, fields map[string]any, opts ...SetOption) error {
	coll, id, err := SplitDoc(docPath)
	if err != nil {
		return err
	}
	if applySetOptions(opts).merge {
		return s.merge(ctx, coll, id, fields, false)
	}

	data, err := json.Marshal(fields)
	if err != nil {
		return errors.Join(ErrInvalidArgument, err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, redisKey(coll), id, data)
		pipe.Publish(ctx, redisChannel(coll), id)
		return nil
	})
	return redisErr(err)
}

func (s *RedisStore) Update(ctx context.Context, docPath string, fields map[string]any) error {
	coll, id, err := SplitDoc(docPath)
	if err != nil {
		return err
	}
	return s.merge(ctx, coll, id, fields, true)
}

func (s *RedisStore) Delete(ctx context.Context, docPath string) error {
	coll, id, err := SplitDoc(docPath)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, redisKey(coll), id)
		pipe.Publish(ctx, redisChannel(coll), id)
		return nil
	})
	return redisErr(err)
}

// merge does a read-modify-write under WATCH, retrying when another writer wins.
func (s *RedisStore) merge(ctx context.Context, coll, id string, fields map[string]any, mustExist bool) error {
	incoming, err := Normalize(fields)
	if err != nil {
		return err
	}
	key := redisKey(coll)

	txf := func(tx *redis.Tx) error {
		existing := map[string]any{}
		raw, err := tx.HGet(ctx, key, id).Result()
		switch {
		case errors.Is(err, redis.Nil):
			if mustExist {
				return ErrNotFound
			}
		case err != nil:
			return err
		default:
			if err := json.Unmarshal([]byte(raw), &existing); err != nil {
				return fmt.Errorf("decode %s/%s: %w", coll, id, err)
			}
		}

		data, err := json.Marshal(mergeFields(existing, incoming))
		if err != nil {
			return errors.Join(ErrInvalidArgument, err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, id, data)
			pipe.Publish(ctx, redisChannel(coll), id)
			return nil
		})
		return err
	}

	for i := 0; i < redisMaxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return redisErr(err)
	}
	return fmt.Errorf("%w: too many concurrent writers on %s/%s", ErrUnavailable, coll, id)
}

func (s *RedisStore) SubscribeCollection(ctx context.Context, collPath string, onNext QueryHandler, onErr ErrorHandler) error {
	coll, err := CleanCollection(collPath)
	if err != nil {
		return err
	}
	return s.listen(ctx, coll, func() error {
		docs, err := s.readCollection(ctx, coll)
		if err != nil {
			return err
		}
		onNext(QuerySnapshot{Path: coll, Docs: docs})
		return nil
	}, onErr)
}

func (s *RedisStore) SubscribeDoc(ctx context.Context, docPath string, onNext DocHandler, onErr ErrorHandler) error {
	coll, id, err := SplitDoc(docPath)
	if err != nil {
		return err
	}
	path := Join(coll, id)
	return s.listen(ctx, coll, func() error {
		snap := DocSnapshot{Path: path, ID: id}
		raw, err := s.client.HGet(ctx, redisKey(coll), id).Result()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return redisErr(err)
		default:
			fields := map[string]any{}
			if err := json.Unmarshal([]byte(raw), &fields); err != nil {
				return fmt.Errorf("decode %s: %w", path, err)
			}
			snap.Exists = true
			snap.Fields = fields
		}
		onNext(snap)
		return nil
	}, onErr)
}

// listen subscribes to the collection channel before the first read so no write
// between the initial snapshot and the subscription is missed.
func (s *RedisStore) listen(ctx context.Context, coll string, deliver func() error, onErr ErrorHandler) error {
	pubsub := s.client.Subscribe(ctx, redisChannel(coll))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return redisErr(err)
	}

	go func() {
		defer pubsub.Close()

		if err := deliver(); err != nil {
			s.report(coll, err, onErr)
			return
		}

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					s.report(coll, ErrUnavailable, onErr)
					return
				}
				if err := deliver(); err != nil {
					if ctx.Err() != nil {
						return
					}
					s.report(coll, err, onErr)
					return
				}
			}
		}
	}()
	return nil
}

func (s *RedisStore) report(coll string, err error, onErr ErrorHandler) {
	s.log.Debug().Err(err).Str("path", coll).Msg("subscription stopped")
	if onErr != nil {
		onErr(err)
	}
}

func (s *RedisStore) readCollection(ctx context.Context, coll string) ([]Document, error) {
	all, err := s.client.HGetAll(ctx, redisKey(coll)).Result()
	if err != nil {
		return nil, redisErr(err)
	}
	ids := make([]string, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	docs := make([]Document, 0, len(ids))
	for _, id := range ids {
		fields := map[string]any{}
		if err := json.Unmarshal([]byte(all[id]), &fields); err != nil {
			s.log.Warn().Err(err).Str("path", Join(coll, id)).Msg("skipping undecodable document")
			continue
		}
		docs = append(docs, Document{ID: id, Fields: fields})
	}
	return docs, nil
}

func redisErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return errors.Join(ErrUnavailable, err)
}
