// Package redis holds the Redis-backed SMS dedup cache.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dvloznov/budgenudge/internal/domain"
	"github.com/dvloznov/budgenudge/internal/sms"
)

// DefaultTTL keeps keys long enough to cover any timezone's calendar day.
const DefaultTTL = 48 * time.Hour

// Deduper claims (phone, template, day) keys with SET NX.
type Deduper struct {
	client redis.Cmdable
	ttl    time.Duration
}

var _ sms.Deduper = (*Deduper)(nil)

// NewClient connects to addr and pings it.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("NewClient: ping %s: %w", addr, err)
	}
	return client, nil
}

// NewDeduper wraps client. A non-positive ttl uses DefaultTTL.
func NewDeduper(client redis.Cmdable, ttl time.Duration) *Deduper {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Deduper{client: client, ttl: ttl}
}

// CanSend implements sms.Deduper.
func (d *Deduper) CanSend(ctx context.Context, phone string, template domain.TemplateType, day string) (bool, error) {
	n, err := d.client.Exists(ctx, sms.Key(phone, template, day)).Result()
	if err != nil {
		return false, fmt.Errorf("CanSend: %w", err)
	}
	return n == 0, nil
}

// Record implements sms.Deduper. The entry is stored as the key's value.
func (d *Deduper) Record(ctx context.Context, e domain.SMSLogEntry) (bool, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return false, fmt.Errorf("Record: marshal: %w", err)
	}
	ok, err := d.client.SetNX(ctx, sms.Key(e.PhoneNumber, e.TemplateType, e.SendDate), payload, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("Record: %w", err)
	}
	return ok, nil
}
