package redis

import (
	"context"
	"sync"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/core/job"
)

const defaultBufferSize = 16

type subscribeClient interface {
	Subscribe(ctx context.Context, channels ...string) *goredis.PubSub
}

// Watcher は求人のチャンネルを購読し、変更通知を Subscription として返します。
type Watcher struct {
	client     subscribeClient
	prefix     string
	bufferSize int
	logger     *zap.Logger
}

var _ job.Watcher = (*Watcher)(nil)

// NewWatcher は Watcher を生成します。
func NewWatcher(client subscribeClient, prefix string, bufferSize int, logger *zap.Logger) *Watcher {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{client: client, prefix: prefix, bufferSize: bufferSize, logger: logger}
}

// Watch は jobID のチャンネルを購読します。購読は Close または ctx の終了で解除されます。
func (w *Watcher) Watch(ctx context.Context, jobID string) (job.Subscription, error) {
	ps := w.client.Subscribe(ctx, ChannelName(w.prefix, jobID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, job.MarkRemote(err, "redis: subscribe")
	}

	logger := w.logger.With(zap.String("job_id", jobID))
	return newSubscription(ctx, ps.Channel(goredis.WithChannelSize(w.bufferSize)), ps.Close, w.bufferSize, logger), nil
}

type subscription struct {
	events    chan job.Event
	cancel    context.CancelFunc
	closeFn   func() error
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func newSubscription(parent context.Context, messages <-chan *goredis.Message, closeFn func() error, bufferSize int, logger *zap.Logger) *subscription {
	ctx, cancel := context.WithCancel(parent)
	s := &subscription{
		events:  make(chan job.Event, bufferSize),
		cancel:  cancel,
		closeFn: closeFn,
		done:    make(chan struct{}),
	}
	go s.pump(ctx, messages, logger)
	return s
}

// Events は変更通知のチャンネルを返します。購読が終わると閉じられます。
func (s *subscription) Events() <-chan job.Event {
	return s.events
}

// Close は購読を解除し、配信ゴルーチンの終了を待ちます。複数回呼び出しても安全です。
func (s *subscription) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		if s.closeFn != nil {
			s.closeErr = s.closeFn()
		}
		<-s.done
	})
	return s.closeErr
}

func (s *subscription) pump(ctx context.Context, messages <-chan *goredis.Message, logger *zap.Logger) {
	defer close(s.done)
	defer close(s.events)

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			ev, err := job.DecodeEvent([]byte(msg.Payload))
			if err != nil {
				logger.Warn("drop malformed event", zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			select {
			case s.events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}
