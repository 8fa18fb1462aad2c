package telegram

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultWorkers     = 4
	defaultPollTimeout = 30 * time.Second
	pollErrorBackoff   = 5 * time.Second
	offsetSaveTimeout  = 5 * time.Second
)

// OffsetStore persists the polling offset across restarts.
type OffsetStore interface {
	GetOffset(ctx context.Context) (int64, error)
	SaveOffset(ctx context.Context, offset int64) error
}

// UpdateHandler processes one update.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update *Update) error
}

// UpdateSource is the long-poll side of the Bot API.
type UpdateSource interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error)
	DeleteWebhook(ctx context.Context) error
}

// PollerConfig tunes the poll loop.
type PollerConfig struct {
	Workers     int
	PollTimeout time.Duration
}

// Poller long-polls for updates and hands them to the handler.
// Updates from one sender always land on the same worker, so one sender's messages are handled in order.
type Poller struct {
	source      UpdateSource
	handler     UpdateHandler
	offsets     OffsetStore
	logger      *zap.Logger
	workers     int
	pollTimeout time.Duration

	mu        sync.Mutex
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	lastID    int64
	watermark int64
}

// NewPoller builds a poller. offsets may be nil to keep the offset in memory only.
func NewPoller(source UpdateSource, handler UpdateHandler, offsets OffsetStore, logger *zap.Logger, cfg PollerConfig) *Poller {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = defaultPollTimeout
	}
	return &Poller{
		source:      source,
		handler:     handler,
		offsets:     offsets,
		logger:      logger,
		workers:     cfg.Workers,
		pollTimeout: cfg.PollTimeout,
	}
}

// Start launches the poll loop. Calling Start on a running poller is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.mu.Unlock()

	if p.offsets != nil {
		saved, err := p.offsets.GetOffset(ctx)
		if err != nil {
			p.logger.Warn("failed to load polling offset, starting from 0", zap.Error(err))
		} else if saved > 0 {
			p.mu.Lock()
			p.lastID = saved
			p.watermark = saved
			p.mu.Unlock()
			p.logger.Info("loaded polling offset", zap.Int64("offset", saved))
		}
	}

	if err := p.source.DeleteWebhook(ctx); err != nil {
		p.logger.Warn("failed to delete webhook before polling", zap.Error(err))
	}

	p.logger.Info("starting telegram polling",
		zap.Duration("timeout", p.pollTimeout),
		zap.Int("workers", p.workers),
	)

	p.wg.Add(1)
	go p.loop(pollCtx)
}

// Stop interrupts the pending long poll and waits until every update of the
// current batch has been handled and its offset saved.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.cancel()
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("telegram polling stopped")
}

func (p *Poller) loop(ctx context.Context) {
	defer p.wg.Done()
	for ctx.Err() == nil {
		p.poll(ctx)
	}
}

func (p *Poller) poll(ctx context.Context) {
	offset := int64(0)
	if p.lastID > 0 {
		offset = p.lastID + 1
	}

	updates, err := p.source.GetUpdates(ctx, offset, p.pollTimeout)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.logger.Error("failed to get updates", zap.Error(err))
		select {
		case <-ctx.Done():
		case <-time.After(pollErrorBackoff):
		}
		return
	}
	if len(updates) == 0 {
		return
	}

	maxID := p.lastID
	buckets := make([][]Update, p.workers)
	for _, u := range updates {
		if u.UpdateID > maxID {
			maxID = u.UpdateID
		}
		if u.UpdateID <= p.watermark {
			continue
		}
		idx := p.affinity(&u)
		buckets[idx] = append(buckets[idx], u)
	}

	// Stop only interrupts GetUpdates; a fetched batch always runs to completion.
	unitCtx := context.WithoutCancel(ctx)
	var batch sync.WaitGroup
	for i, bucket := range buckets {
		if len(bucket) == 0 {
			continue
		}
		batch.Add(1)
		go p.processBatch(unitCtx, &batch, i, bucket)
	}
	batch.Wait()

	// Commit the offset only after the batch ran so a crash mid-batch replays it.
	p.mu.Lock()
	p.lastID = maxID
	p.watermark = maxID
	p.mu.Unlock()
	if p.offsets != nil {
		saveCtx, cancel := context.WithTimeout(context.Background(), offsetSaveTimeout)
		defer cancel()
		if err := p.offsets.SaveOffset(saveCtx, maxID); err != nil {
			p.logger.Warn("failed to save polling offset", zap.Error(err))
		}
	}
}

func (p *Poller) processBatch(ctx context.Context, wg *sync.WaitGroup, worker int, updates []Update) {
	defer wg.Done()
	for i := range updates {
		p.handle(ctx, worker, &updates[i])
	}
}

func (p *Poller) handle(ctx context.Context, worker int, u *Update) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("panic recovered in update handler",
				zap.Int("worker", worker),
				zap.Int64("update_id", u.UpdateID),
				zap.String("panic", fmt.Sprintf("%v", r)),
			)
		}
	}()

	if err := p.handler.HandleUpdate(ctx, u); err != nil {
		p.logger.Error("failed to handle update",
			zap.Int("worker", worker),
			zap.Int64("update_id", u.UpdateID),
			zap.Error(err),
		)
	}
}

func (p *Poller) affinity(u *Update) int {
	var key int64
	switch {
	case u.Message != nil && u.Message.From != nil:
		key = u.Message.From.ID
	case u.MyChatMember != nil:
		key = u.MyChatMember.Chat.ID
	default:
		key = u.UpdateID
	}
	idx := int(key % int64(p.workers))
	if idx < 0 {
		idx += p.workers
	}
	return idx
}

// Offset returns the last committed update id.
func (p *Poller) Offset() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastID
}
