package convert

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"

	"github.com/imgpress/imgpress/internal/archive"
	"github.com/imgpress/imgpress/internal/model"
	"github.com/imgpress/imgpress/internal/store"
)

// ErrNoFiles is returned when a batch is submitted with zero items.
var ErrNoFiles = errors.New("no files provided")

// worker converts a single batch item, capturing every failure in the result.
type worker interface {
	Convert(ctx context.Context, req model.Request) (model.Result, []byte)
}

// resultStore holds converted outputs between the batch call and download.
type resultStore interface {
	Clear()
	Put(name string, data []byte)
	TakeOne(name string) ([]byte, bool)
	Entries() []store.Entry
}

// History records finished batches for later inspection. Optional.
type History interface {
	SaveBatch(ctx context.Context, batchID uuid.UUID, results []model.Result) error
}

// EventProducer publishes a summary event after each batch. Optional.
type EventProducer interface {
	BatchCompleted(ctx context.Context, batchID uuid.UUID, results []model.Result) error
}

// Service runs conversion batches and serves their outputs.
type Service struct {
	worker  worker
	store   resultStore
	history History
	events  EventProducer
	timeout time.Duration // per-item; 0 = unbounded
}

// NewService creates a Service. history and events may be nil.
func NewService(w worker, s resultStore, h History, e EventProducer, timeout time.Duration) *Service {
	return &Service{
		worker:  w,
		store:   s,
		history: h,
		events:  e,
		timeout: timeout,
	}
}

// RunBatch converts all requests concurrently and publishes the successful
// outputs into the result store. The returned slice matches the input order
// index-for-index, and a per-item failure never cancels or delays its
// siblings.
//
// Starting a batch first clears the store, so every output still held from
// the previous batch becomes unretrievable. The store is shared between all
// clients; concurrent batches race on it.
func (s *Service) RunBatch(ctx context.Context, reqs []model.Request) ([]model.Result, error) {
	if len(reqs) == 0 {
		return nil, ErrNoFiles
	}

	s.store.Clear()

	results := make([]model.Result, len(reqs))
	payloads := make([][]byte, len(reqs))

	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func(i int, req model.Request) {
			defer wg.Done()

			itemCtx := ctx
			if s.timeout > 0 {
				var cancel context.CancelFunc
				itemCtx, cancel = context.WithTimeout(ctx, s.timeout)
				defer cancel()
			}

			results[i], payloads[i] = s.worker.Convert(itemCtx, req)
		}(i, req)
	}
	wg.Wait()

	// Single-writer section: publish after the join, in input order. Output
	// name collisions within the batch are last-write-wins.
	for i, res := range results {
		if res.Status == model.StatusCompleted {
			s.store.Put(res.OutputName, payloads[i])
		}
	}

	s.record(ctx, results)

	return results, nil
}

// TakeOne hands back one stored output and removes it, so a repeated download
// of the same name misses.
func (s *Service) TakeOne(name string) ([]byte, bool) {
	return s.store.TakeOne(name)
}

// WriteArchive streams every currently held output into w as a single ZIP.
// Entries stay in the store, so the archive can be rebuilt until the next
// batch clears it.
func (s *Service) WriteArchive(w io.Writer) error {
	return archive.Write(w, s.store.Entries())
}

// record persists the batch report and publishes the completion event.
// Both are best-effort: a failure is logged and never surfaces to the caller.
func (s *Service) record(ctx context.Context, results []model.Result) {
	if s.history == nil && s.events == nil {
		return
	}

	batchID := uuid.New()

	if s.history != nil {
		if err := s.history.SaveBatch(ctx, batchID, results); err != nil {
			zlog.Logger.Err(err).Str("batch_id", batchID.String()).Msg("failed to record batch history")
		}
	}

	if s.events != nil {
		if err := s.events.BatchCompleted(ctx, batchID, results); err != nil {
			zlog.Logger.Err(err).Str("batch_id", batchID.String()).Msg("failed to publish batch event")
		}
	}
}
