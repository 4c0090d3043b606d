package journal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"ykjam/cardpay/pkg"
)

type redisJournal struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisJournal connects to redisURL and stores each entry as JSON under
// prefix + attempt id, expiring after ttl.
func NewRedisJournal(redisURL, prefix string, ttl time.Duration) (Journal, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid redis url")
	}

	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "error connecting to redis")
	}
	return newRedisJournal(client, prefix, ttl), nil
}

func newRedisJournal(client *redis.Client, prefix string, ttl time.Duration) *redisJournal {
	return &redisJournal{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (j *redisJournal) key(attemptID string) string {
	return j.prefix + attemptID
}

func (j *redisJournal) Record(ctx context.Context, attemptID string, result pkg.PaymentResult) error {
	raw, err := json.Marshal(Entry{AttemptID: attemptID, Result: result, UpdatedAt: time.Now()})
	if err != nil {
		return errors.Wrap(err, "error encoding journal entry")
	}
	if err := j.client.Set(ctx, j.key(attemptID), raw, j.ttl).Err(); err != nil {
		log.WithError(err).WithField("attempt-id", attemptID).Error("error writing journal entry")
		return errors.Wrap(err, "error writing journal entry")
	}
	return nil
}

func (j *redisJournal) Lookup(ctx context.Context, attemptID string) (Entry, error) {
	raw, err := j.client.Get(ctx, j.key(attemptID)).Bytes()
	if err == redis.Nil {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, errors.Wrap(err, "error reading journal entry")
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry{}, errors.Wrap(err, "error decoding journal entry")
	}
	return e, nil
}
