package indexer

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/spacesedan/trendlens/internal/clients/kafka_client"
	"github.com/spacesedan/trendlens/internal/models"
	"github.com/spacesedan/trendlens/internal/utils"
)

type Committer interface {
	Commit(msg *kafka.Message) error
}

// Consumer feeds content-items messages into the Indexer in batches and
// commits each message once its item is indexed.
type Consumer struct {
	indexer      *Indexer
	buffer       *utils.BatchBuffer[models.ContentItem]
	tracker      *utils.MessageTracker[*kafka.Message]
	batchSize    int
	batchTimeout time.Duration
	// healthy gates flushing; nil means always healthy.
	healthy *atomic.Bool
}

const (
	defaultBatchSize    = 50
	defaultBatchTimeout = 5 * time.Second
)

func NewConsumer(ix *Indexer, batchSize int, batchTimeout time.Duration, healthy *atomic.Bool) *Consumer {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if batchTimeout <= 0 {
		batchTimeout = defaultBatchTimeout
	}
	return &Consumer{
		indexer:      ix,
		buffer:       utils.NewBatchBuffer[models.ContentItem](batchSize),
		tracker:      utils.NewMessageTracker[*kafka.Message](),
		batchSize:    batchSize,
		batchTimeout: batchTimeout,
		healthy:      healthy,
	}
}

// Run reads until ctx is done. Its signature matches
// kafka_client.StartConsumer.
func (c *Consumer) Run(ctx context.Context, consumer *kafka.Consumer) {
	iterator := kafka_client.NewKafkaMessageIterator(ctx, consumer)
	committer := kafka_client.NewCommitHandler(ctx, consumer)

	slog.Info("[IndexerConsumer] Listening for messages...")

	ticker := time.NewTicker(c.batchTimeout)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Warn("[IndexerConsumer] Stopping consumer...")
			return
		case <-ticker.C:
			c.flush(ctx, committer)
		default:
			if c.buffer.Size() >= c.batchSize && !c.isHealthy() {
				// hold off reading until the vector index is back
				time.Sleep(kafka_client.POLL_TIMEOUT)
				continue
			}

			msg, err := iterator.Next()
			if err != nil {
				kafka_client.HandleConsumerError(err)
				continue
			}
			if msg == nil {
				continue
			}

			c.handle(msg, committer)

			if c.buffer.Size() >= c.batchSize {
				c.flush(ctx, committer)
			}
		}
	}
}

func (c *Consumer) isHealthy() bool {
	return c.healthy == nil || c.healthy.Load()
}

// handle buffers a message's item. Messages that can never be indexed are
// committed straight away so they are not redelivered.
func (c *Consumer) handle(msg *kafka.Message, committer Committer) {
	var item models.ContentItem
	if err := json.Unmarshal(msg.Value, &item); err != nil || item.ID == "" {
		slog.Warn("[IndexerConsumer] Skipping unreadable content message",
			slog.String("offset", msg.TopicPartition.Offset.String()))
		if err := committer.Commit(msg); err != nil {
			slog.Warn("[IndexerConsumer] Failed to commit offset",
				slog.String("error", err.Error()))
		}
		return
	}

	c.tracker.Track(item.ID, msg)
	c.buffer.Add(item)
}

func (c *Consumer) flush(ctx context.Context, committer Committer) {
	if c.buffer.Size() == 0 {
		return
	}
	if !c.isHealthy() {
		slog.Warn("[IndexerConsumer] Vector index unhealthy, holding batch",
			slog.Int("buffered", c.buffer.Size()))
		return
	}

	batch := c.buffer.GetAndClear()
	indexed, err := c.indexer.IndexBatch(ctx, batch)
	if err != nil {
		slog.Error("[IndexerConsumer] Batch indexing incomplete",
			slog.Int("batch_size", len(batch)),
			slog.Int("indexed", len(indexed)),
			slog.String("error", err.Error()))
	}

	for _, id := range indexed {
		trackedMsg, found := c.tracker.Take(id)
		if !found {
			continue
		}
		if err := committer.Commit(trackedMsg); err != nil {
			slog.Warn("[IndexerConsumer] Failed to commit offset",
				slog.String("content_id", id),
				slog.String("error", err.Error()))
		}
	}

	// Failed items are left to the next backfill.
	for _, item := range batch {
		c.tracker.Take(item.ID)
	}
}
