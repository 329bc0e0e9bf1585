package realtime

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/thesis-workflow-api/internal/docpath"
	"github.com/noah-isme/thesis-workflow-api/internal/dto"
	"github.com/noah-isme/thesis-workflow-api/internal/models"
	appErrors "github.com/noah-isme/thesis-workflow-api/pkg/errors"
)

// snapshotSource re-queries the current state after a change notification.
// Subscribers always receive full snapshots, never deltas, so a missed
// notification costs freshness but not correctness.
type snapshotSource interface {
	ListSets(ctx context.Context, pctx docpath.Context) ([]models.ProposalSet, error)
	ReviewerQueue(ctx context.Context, stage models.ReviewStage) ([]dto.QueueItem, error)
}

type subscriberMetrics interface {
	SubscriberOpened(kind string)
	SubscriberClosed(kind string)
}

// GroupHandler receives group proposal snapshots.
type GroupHandler func(sets []models.ProposalSet)

// QueueHandler receives reviewer queue snapshots.
type QueueHandler func(items []dto.QueueItem)

// ErrorHandler receives snapshot or transport errors. Optional; when absent
// errors are logged and the subscription stays alive.
type ErrorHandler func(err error)

// Broker fans proposal change notifications out over Redis pub/sub. Every
// mutation publishes to the affected group channel and, when queues change,
// to the per-stage queue channels.
type Broker struct {
	client  *redis.Client
	source  snapshotSource
	prefix  string
	logger  *zap.Logger
	metrics subscriberMetrics
}

// NewBroker constructs a broker. The snapshot source is attached separately
// because broker and proposal service reference each other.
func NewBroker(client *redis.Client, prefix string, logger *zap.Logger) *Broker {
	if prefix == "" {
		prefix = "proposals"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broker{client: client, prefix: prefix, logger: logger}
}

// SetSource attaches the snapshot provider. Must be called before Subscribe.
func (b *Broker) SetSource(source snapshotSource) {
	b.source = source
}

// SetMetrics attaches the subscriber gauge instrumentation.
func (b *Broker) SetMetrics(metrics subscriberMetrics) {
	b.metrics = metrics
}

// NotifyGroup publishes a change notification for one group's proposals.
func (b *Broker) NotifyGroup(ctx context.Context, groupPath string) error {
	return b.client.Publish(ctx, b.groupChannel(groupPath), "changed").Err()
}

// NotifyQueue publishes a change notification for one reviewer stage queue.
func (b *Broker) NotifyQueue(ctx context.Context, stage models.ReviewStage) error {
	return b.client.Publish(ctx, b.queueChannel(stage), "changed").Err()
}

// SubscribeGroup streams full snapshots of a group's proposal sets. The
// handler fires once with the current state and again after every change
// notification. The returned cancel func is idempotent.
func (b *Broker) SubscribeGroup(ctx context.Context, pctx docpath.Context, handler GroupHandler, errHandler ErrorHandler) (func(), error) {
	if b.source == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "broker snapshot source not attached")
	}
	channel := b.groupChannel(docpath.GroupPath(pctx))
	refresh := func(ctx context.Context) {
		sets, err := b.source.ListSets(ctx, pctx)
		if err != nil {
			b.reportError(errHandler, err)
			return
		}
		handler(sets)
	}
	return b.subscribe(ctx, channel, "group", refresh, errHandler)
}

// SubscribeQueue streams full snapshots of one reviewer stage queue.
func (b *Broker) SubscribeQueue(ctx context.Context, stage models.ReviewStage, handler QueueHandler, errHandler ErrorHandler) (func(), error) {
	if b.source == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "broker snapshot source not attached")
	}
	channel := b.queueChannel(stage)
	refresh := func(ctx context.Context) {
		items, err := b.source.ReviewerQueue(ctx, stage)
		if err != nil {
			b.reportError(errHandler, err)
			return
		}
		handler(items)
	}
	return b.subscribe(ctx, channel, "queue", refresh, errHandler)
}

func (b *Broker) subscribe(ctx context.Context, channel, kind string, refresh func(context.Context), errHandler ErrorHandler) (func(), error) {
	pubsub := b.client.Subscribe(ctx, channel)
	// Force the SUBSCRIBE round trip so transport errors surface here
	// instead of inside the listen goroutine.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to subscribe to change channel")
	}

	subCtx, cancelCtx := context.WithCancel(ctx)
	if b.metrics != nil {
		b.metrics.SubscriberOpened(kind)
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			cancelCtx()
			if err := pubsub.Close(); err != nil {
				b.logger.Warn("failed to close pubsub", zap.String("channel", channel), zap.Error(err))
			}
			if b.metrics != nil {
				b.metrics.SubscriberClosed(kind)
			}
		})
	}

	refresh(subCtx)

	go func() {
		messages := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case _, ok := <-messages:
				if !ok {
					return
				}
				refresh(subCtx)
			}
		}
	}()

	return cancel, nil
}

func (b *Broker) reportError(errHandler ErrorHandler, err error) {
	if errHandler != nil {
		errHandler(err)
		return
	}
	b.logger.Warn("snapshot refresh failed", zap.Error(err))
}

func (b *Broker) groupChannel(groupPath string) string {
	return b.prefix + ":" + groupPath
}

func (b *Broker) queueChannel(stage models.ReviewStage) string {
	return b.prefix + ":queue:" + string(stage)
}
