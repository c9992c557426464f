package live

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/kartikgopal01/coedit/internal/delta"
	"github.com/kartikgopal01/coedit/internal/domain"
	"github.com/redis/go-redis/v9"
)

// RedisChannel stores live bodies in Redis under "<prefix><documentId>" and
// publishes every replacement on "<prefix>updates", so all replicas see
// rollbacks applied by any of them.
type RedisChannel struct {
	client *redis.Client
	prefix string
	source string
}

// NewRedisChannel creates a Redis-backed live channel. Prefix may be empty.
func NewRedisChannel(client *redis.Client, prefix string) *RedisChannel {
	if prefix == "" {
		prefix = "live:"
	}
	return &RedisChannel{client: client, prefix: prefix, source: uuid.NewString()}
}

func (r *RedisChannel) key(documentID string) string {
	return r.prefix + documentID
}

func (r *RedisChannel) topic() string {
	return r.prefix + "updates"
}

// Source identifies this replica in published updates.
func (r *RedisChannel) Source() string {
	return r.source
}

func (r *RedisChannel) GetCurrentContent(ctx context.Context, documentID string) (delta.Delta, error) {
	const op = "live.RedisChannel.GetCurrentContent"
	b, err := r.client.Get(ctx, r.key(documentID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return delta.Delta{Ops: []delta.Op{}}, nil
		}
		return delta.Delta{}, domain.E(domain.KindLiveChannelUnavailable, op, err)
	}
	return delta.Decode(b)
}

func (r *RedisChannel) ReplaceContent(ctx context.Context, documentID string, content delta.Delta, origin Origin) error {
	const op = "live.RedisChannel.ReplaceContent"
	body, err := delta.Encode(content)
	if err != nil {
		return err
	}
	msg, err := json.Marshal(Update{DocumentID: documentID, Origin: origin, Content: content, Source: r.source})
	if err != nil {
		return domain.E(domain.KindInternal, op, err)
	}
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, r.key(documentID), body, 0)
		p.Publish(ctx, r.topic(), msg)
		return nil
	})
	if err != nil {
		return domain.E(domain.KindLiveChannelUnavailable, op, err)
	}
	return nil
}

// Subscribe delivers updates published by any replica until ctx is done.
// Malformed messages are skipped.
func (r *RedisChannel) Subscribe(ctx context.Context) (<-chan Update, error) {
	ps := r.client.Subscribe(ctx, r.topic())
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, domain.E(domain.KindLiveChannelUnavailable, "live.RedisChannel.Subscribe", err)
	}
	out := make(chan Update, 64)
	go func() {
		defer close(out)
		defer ps.Close()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				var u Update
				if err := json.Unmarshal([]byte(m.Payload), &u); err != nil {
					continue
				}
				select {
				case out <- u:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
