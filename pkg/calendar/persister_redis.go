package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// RedisPersister stores the collection as one JSON array under a single key.
type RedisPersister struct {
	client redis.Cmdable
	key    string
}

func NewRedisPersister(client redis.Cmdable, key string) *RedisPersister {
	return &RedisPersister{client: client, key: key}
}

func (p *RedisPersister) LoadAll(ctx context.Context) []Record {
	data, err := p.client.Get(ctx, p.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			log.Infof("Redis key %s not found, starting with an empty calendar", p.key)
		} else {
			log.Warnf("could not read redis key %s: %v", p.key, err)
		}
		return []Record{}
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		log.Warnf("redis key %s holds corrupt data, starting with an empty calendar: %v", p.key, err)
		return []Record{}
	}
	if records == nil {
		records = []Record{}
	}
	return records
}

func (p *RedisPersister) SaveAll(ctx context.Context, records []Record) error {
	if records == nil {
		records = []Record{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to encode events: %w", err)
	}
	if err := p.client.Set(ctx, p.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write redis key %s: %w", p.key, err)
	}
	return nil
}
