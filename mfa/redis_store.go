package mfa

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	challengeKeyPrefix     = "mfc:"
	challengeRecordVersion = 1
	maxConsumeRetries      = 4
)

// RedisStore keeps challenges in Redis. Consume uses WATCH/MULTI so the
// check-and-mark step is atomic across processes.
type RedisStore struct {
	redis redis.UniversalClient
	now   func() time.Time
}

// NewRedisStore wraps client. now may be nil.
func NewRedisStore(client redis.UniversalClient, now func() time.Time) *RedisStore {
	if now == nil {
		now = time.Now
	}
	return &RedisStore{redis: client, now: now}
}

func (s *RedisStore) key(id string) string {
	return challengeKeyPrefix + id
}

func (s *RedisStore) Save(ctx context.Context, c *Challenge, retention time.Duration) error {
	encoded, err := encodeChallenge(c)
	if err != nil {
		return err
	}
	ttl := c.ExpiresAt.Add(retention).Sub(s.now())
	if ttl <= 0 {
		return fmt.Errorf("mfa: challenge %s already past retention", c.ID)
	}
	if err := s.redis.Set(ctx, s.key(c.ID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Challenge, error) {
	data, err := s.redis.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrChallengeNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	c, err := decodeChallenge(data)
	if err != nil {
		return nil, err
	}
	c.ID = id
	return c, nil
}

func (s *RedisStore) Consume(ctx context.Context, id string, now time.Time, maxAttempts int, check func(*Challenge) error) (*Challenge, error) {
	key := s.key(id)

	for i := 0; i < maxConsumeRetries; i++ {
		var out *Challenge
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}
			c, err := decodeChallenge(data)
			if err != nil {
				return err
			}
			c.ID = id

			if err := gate(c, now, maxAttempts); err != nil {
				return err
			}

			changed, outcome := settle(c, check(c), maxAttempts)
			if changed {
				updated, err := encodeChallenge(c)
				if err != nil {
					return err
				}
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Set(ctx, key, updated, redis.KeepTTL)
					return nil
				})
				if err != nil {
					return err
				}
			}
			if outcome == nil {
				out = c
			}
			return outcome
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, redis.Nil):
				return nil, ErrChallengeNotFound
			case errors.Is(err, ErrChallengeAlreadyUsed),
				errors.Is(err, ErrChallengeExpired),
				errors.Is(err, ErrChallengeAttemptsExceeded),
				errors.Is(err, ErrChallengeCodeMismatch),
				errors.Is(err, errCorruptRecord):
				return nil, err
			}
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return out, nil
	}

	return nil, fmt.Errorf("%w: challenge contention", ErrUnavailable)
}

var errCorruptRecord = errors.New("mfa: corrupt challenge record")

func encodeChallenge(c *Challenge) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(challengeRecordVersion)

	var flags byte
	if c.Used {
		flags |= 1
	}
	buf.WriteByte(flags)

	if c.Attempts < 0 || c.Attempts > 0xFFFF {
		return nil, errors.New("mfa: attempts out of range")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(c.Attempts)); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, c.ExpiresAt.UnixNano()); err != nil {
		return nil, err
	}

	for _, field := range []string{string(c.Method), c.UserID, c.Email, c.CodeHash} {
		if len(field) > 0xFFFF {
			return nil, errors.New("mfa: challenge field too long")
		}
		if err := binary.Write(&buf, binary.BigEndian, uint16(len(field))); err != nil {
			return nil, err
		}
		buf.WriteString(field)
	}

	return buf.Bytes(), nil
}

func decodeChallenge(data []byte) (*Challenge, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil || version != challengeRecordVersion {
		return nil, errCorruptRecord
	}
	flags, err := reader.ReadByte()
	if err != nil {
		return nil, errCorruptRecord
	}

	var attempts uint16
	if err := binary.Read(reader, binary.BigEndian, &attempts); err != nil {
		return nil, errCorruptRecord
	}
	var expiresAt int64
	if err := binary.Read(reader, binary.BigEndian, &expiresAt); err != nil {
		return nil, errCorruptRecord
	}

	var fields [4]string
	for i := range fields {
		var n uint16
		if err := binary.Read(reader, binary.BigEndian, &n); err != nil {
			return nil, errCorruptRecord
		}
		raw := make([]byte, n)
		if _, err := io.ReadFull(reader, raw); err != nil {
			return nil, errCorruptRecord
		}
		fields[i] = string(raw)
	}

	return &Challenge{
		Method:    Method(fields[0]),
		UserID:    fields[1],
		Email:     fields[2],
		CodeHash:  fields[3],
		ExpiresAt: time.Unix(0, expiresAt),
		Used:      flags&1 != 0,
		Attempts:  int(attempts),
	}, nil
}
