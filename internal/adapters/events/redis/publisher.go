package redis

import (
	"context"

	"github.com/cockroachdb/errors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/core/job"
)

// DefaultChannelPrefix は求人ごとのチャンネル名の接頭辞です。
const DefaultChannelPrefix = "job:"

type publishClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *goredis.IntCmd
}

// Publisher は求人の変更通知を Redis Pub/Sub に発行します。
type Publisher struct {
	client publishClient
	prefix string
}

var _ job.Publisher = (*Publisher)(nil)

// NewPublisher は Publisher を生成します。prefix が空の場合は DefaultChannelPrefix を使います。
func NewPublisher(client publishClient, prefix string) *Publisher {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	return &Publisher{client: client, prefix: prefix}
}

// Publish は ev を求人のチャンネルへ JSON で発行します。
func (p *Publisher) Publish(ctx context.Context, ev job.Event) error {
	payload, err := job.EncodeEvent(ev)
	if err != nil {
		return errors.Wrap(err, "redis: encode event")
	}
	if err := p.client.Publish(ctx, ChannelName(p.prefix, ev.JobID), payload).Err(); err != nil {
		return job.MarkRemote(err, "redis: publish")
	}
	return nil
}

// ChannelName は求人 ID に対応するチャンネル名を返します。
func ChannelName(prefix, jobID string) string {
	return prefix + jobID
}
