package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sifan077/SnapLink/internal/app/model"
)

const scanBatch = 200

// RedisStore keeps each link head in a string key written with MSETNX (so a
// batch of codes is claimed all at once or not at all) and its clicks in a
// list appended with RPUSH, which fixes click order at the server.
type RedisStore struct {
	client *redis.Client
	prefix string
}

type redisHead struct {
	Code        string    `json:"shortcode"`
	OriginalURL string    `json:"originalUrl"`
	CreatedAt   time.Time `json:"createdAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

type redisClick struct {
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source,omitempty"`
	Location  string    `json:"location,omitempty"`
}

// NewRedisStore returns a LinkStore using client with keys under prefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "snaplink"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) linkKey(code string) string   { return s.prefix + ":link:" + code }
func (s *RedisStore) clicksKey(code string) string { return s.prefix + ":clicks:" + code }

func (s *RedisStore) Insert(ctx context.Context, record model.LinkRecord) (bool, error) {
	taken, err := s.InsertAll(ctx, []model.LinkRecord{record})
	if err != nil {
		return false, err
	}
	return len(taken) == 0, nil
}

func (s *RedisStore) InsertAll(ctx context.Context, records []model.LinkRecord) ([]string, error) {
	if len(records) == 0 {
		return nil, nil
	}
	if repeated := repeatedCodes(records); len(repeated) > 0 {
		return repeated, nil
	}

	pairs := make([]interface{}, 0, len(records)*2)
	keys := make([]string, 0, len(records))
	for _, rec := range records {
		data, err := json.Marshal(redisHead{
			Code:        rec.Code,
			OriginalURL: rec.OriginalURL,
			CreatedAt:   rec.CreatedAt,
			ExpiresAt:   rec.ExpiresAt,
		})
		if err != nil {
			return nil, fmt.Errorf("encode link %s: %w", rec.Code, err)
		}
		pairs = append(pairs, s.linkKey(rec.Code), data)
		keys = append(keys, s.linkKey(rec.Code))
	}

	ok, err := s.client.MSetNX(ctx, pairs...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis msetnx: %w", err)
	}
	if !ok {
		vals, err := s.client.MGet(ctx, keys...).Result()
		if err != nil {
			return nil, fmt.Errorf("redis mget: %w", err)
		}
		var taken []string
		for i, v := range vals {
			if v != nil {
				taken = append(taken, records[i].Code)
			}
		}
		if len(taken) == 0 {
			return nil, errors.New("redis msetnx refused but no code is taken")
		}
		return taken, nil
	}

	pipe := s.client.Pipeline()
	queued := 0
	for _, rec := range records {
		if len(rec.Clicks) == 0 {
			continue
		}
		encoded := make([]interface{}, 0, len(rec.Clicks))
		for _, c := range rec.Clicks {
			data, err := encodeClick(c)
			if err != nil {
				return nil, err
			}
			encoded = append(encoded, data)
		}
		pipe.RPush(ctx, s.clicksKey(rec.Code), encoded...)
		queued++
	}
	if queued > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("redis store clicks: %w", err)
		}
	}
	return nil, nil
}

func (s *RedisStore) Exists(ctx context.Context, code string) (bool, error) {
	n, err := s.client.Exists(ctx, s.linkKey(code)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisStore) Lookup(ctx context.Context, code string) (*model.LinkRecord, error) {
	pipe := s.client.Pipeline()
	headCmd := pipe.Get(ctx, s.linkKey(code))
	clicksCmd := pipe.LRange(ctx, s.clicksKey(code), 0, -1)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	raw, err := headCmd.Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}

	var head redisHead
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("decode link %s: %w", code, err)
	}

	link := &model.LinkRecord{
		Code:        head.Code,
		OriginalURL: head.OriginalURL,
		CreatedAt:   head.CreatedAt,
		ExpiresAt:   head.ExpiresAt,
		Clicks:      []model.ClickEvent{},
	}
	for _, item := range clicksCmd.Val() {
		var c redisClick
		if err := json.Unmarshal([]byte(item), &c); err != nil {
			return nil, fmt.Errorf("decode click for %s: %w", code, err)
		}
		link.Clicks = append(link.Clicks, model.ClickEvent{
			LinkCode:  code,
			Timestamp: c.Timestamp,
			Source:    c.Source,
			Location:  c.Location,
		})
	}
	return link, nil
}

func (s *RedisStore) AppendClick(ctx context.Context, code string, event model.ClickEvent) error {
	// Links are never deleted, so an existing key cannot vanish before the push.
	exists, err := s.Exists(ctx, code)
	if err != nil {
		return err
	}
	if !exists {
		return ErrLinkNotFound
	}

	data, err := encodeClick(event)
	if err != nil {
		return err
	}
	return s.client.RPush(ctx, s.clicksKey(code), data).Err()
}

func (s *RedisStore) ListAll(ctx context.Context) ([]model.LinkRecord, error) {
	linkPrefix := s.linkKey("")
	var codes []string
	iter := s.client.Scan(ctx, 0, linkPrefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		codes = append(codes, strings.TrimPrefix(iter.Val(), linkPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}

	result := make([]model.LinkRecord, 0, len(codes))
	for _, code := range codes {
		link, err := s.Lookup(ctx, code)
		if err != nil {
			return nil, err
		}
		result = append(result, *link)
	}

	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].Code < result[j].Code
	})
	return result, nil
}

func encodeClick(c model.ClickEvent) ([]byte, error) {
	data, err := json.Marshal(redisClick{
		Timestamp: c.Timestamp,
		Source:    c.Source,
		Location:  c.Location,
	})
	if err != nil {
		return nil, fmt.Errorf("encode click: %w", err)
	}
	return data, nil
}

var _ LinkStore = (*RedisStore)(nil)
