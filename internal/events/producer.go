package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"

	"github.com/imgpress/imgpress/internal/config"
	"github.com/imgpress/imgpress/internal/model"
)

// BatchEvent is the message published after a batch finishes.
type BatchEvent struct {
	BatchID     string         `json:"batch_id"`
	Total       int            `json:"total"`
	Completed   int            `json:"completed"`
	Unsupported int            `json:"unsupported"`
	Failed      int            `json:"failed"`
	Items       []model.Result `json:"items"`
	FinishedAt  time.Time      `json:"finished_at"`
}

// Producer publishes batch completion events to Kafka.
type Producer struct {
	Client   *wbfkafka.Producer
	strategy retry.Strategy
}

// New creates a Producer.
// - cfg: Kafka configuration struct
// - s: retry strategy for sends
func New(cfg *config.Kafka, s retry.Strategy) *Producer {
	producer := wbfkafka.NewProducer(cfg.Brokers, cfg.Topic)

	return &Producer{
		Client:   producer,
		strategy: s,
	}
}

// BatchCompleted serializes a summary of the finished batch and sends it to
// Kafka. The batch ID is used as the message key for partitioning.
func (p *Producer) BatchCompleted(ctx context.Context, batchID uuid.UUID, results []model.Result) error {
	ev := BatchEvent{
		BatchID:    batchID.String(),
		Total:      len(results),
		Items:      results,
		FinishedAt: time.Now().UTC(),
	}
	for _, res := range results {
		switch res.Status {
		case model.StatusCompleted:
			ev.Completed++
		case model.StatusUnsupported:
			ev.Unsupported++
		case model.StatusError:
			ev.Failed++
		}
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal batch event: %v", err)
	}

	if err = p.Client.SendWithRetry(ctx, p.strategy, []byte(ev.BatchID), data); err != nil {
		return fmt.Errorf("failed to send batch event: %v", err)
	}

	return nil
}
