package service

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/ticket-relay/internal/domain"
	"github.com/spec-kit/ticket-relay/internal/observability"
	"github.com/spec-kit/ticket-relay/internal/repository"
	apperrors "github.com/spec-kit/ticket-relay/pkg/util/errorutil"
)

// SweeperConfig configures inactivity closing.
type SweeperConfig struct {
	// Threshold <= 0 disables the sweeper.
	Threshold         time.Duration
	NotifyConcurrency int
	NotifyTimeout     time.Duration
}

// SweepReport summarizes one run.
type SweepReport struct {
	Candidates     int
	Closed         int
	Failed         int
	NoticeFailures int
}

// Sweeper closes tickets nobody touched for longer than the threshold.
type Sweeper struct {
	store     repository.Store
	lifecycle *Lifecycle
	messenger Messenger
	metrics   *observability.Metrics
	logger    *zap.Logger
	cfg       SweeperConfig
}

// NewSweeper constructs the sweeper.
func NewSweeper(store repository.Store, lifecycle *Lifecycle, messenger Messenger, metrics *observability.Metrics, logger *zap.Logger, cfg SweeperConfig) *Sweeper {
	if cfg.NotifyConcurrency <= 0 {
		cfg.NotifyConcurrency = 4
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 10 * time.Second
	}
	return &Sweeper{
		store:     store,
		lifecycle: lifecycle,
		messenger: messenger,
		metrics:   metrics,
		logger:    logger.Named("sweeper"),
		cfg:       cfg,
	}
}

// Enabled reports whether the sweeper has a positive threshold.
func (s *Sweeper) Enabled() bool {
	return s.cfg.Threshold > 0
}

// Sweep closes every inactive ticket and notifies both sides. A failure on one
// ticket or notice never stops the others. Cancelling ctx stops the run after
// the ticket currently being closed.
func (s *Sweeper) Sweep(ctx context.Context) (SweepReport, error) {
	var report SweepReport
	if !s.Enabled() {
		return report, nil
	}

	candidates, err := s.store.Tickets().ListInactive(ctx, s.cfg.Threshold)
	if err != nil {
		s.logger.Error("list inactive tickets", zap.Error(err))
		return report, err
	}
	report.Candidates = len(candidates)

	var noticeFailures atomic.Int64
	notices := new(errgroup.Group)
	notices.SetLimit(s.cfg.NotifyConcurrency)
	// in-flight work finishes even when the sweep is cancelled
	detached := context.WithoutCancel(ctx)

	for i, candidate := range candidates {
		if ctx.Err() != nil {
			s.logger.Info("sweep interrupted", zap.Int("remaining", len(candidates)-i))
			break
		}

		tr, err := s.lifecycle.CloseInactive(detached, candidate.ID, s.cfg.Threshold)
		if err != nil {
			report.Failed++
			s.logger.Error("close inactive ticket", zap.Int64("ticket_id", candidate.ID), zap.Error(err))
			continue
		}
		if !tr.Changed() {
			continue
		}
		report.Closed++
		s.logger.Info("ticket closed for inactivity", zap.Int64("ticket_id", tr.TicketID))

		ticket := tr.Ticket
		notices.Go(func() error {
			if err := s.notifyRequester(detached, ticket); err != nil {
				noticeFailures.Add(1)
				s.noticeFailed(domain.SideRequester, ticket.ID, err)
			}
			return nil
		})
		if ticket.GroupMessageID != nil && ticket.ChatID != nil {
			notices.Go(func() error {
				if err := s.notifyGroup(detached, ticket); err != nil {
					noticeFailures.Add(1)
					s.noticeFailed(domain.SideGroup, ticket.ID, err)
				}
				return nil
			})
		}
	}

	_ = notices.Wait()
	report.NoticeFailures = int(noticeFailures.Load())
	s.metrics.RecordSweep(report.Closed)
	if report.Closed > 0 || report.Failed > 0 {
		s.logger.Info("sweep finished",
			zap.Int("candidates", report.Candidates),
			zap.Int("closed", report.Closed),
			zap.Int("failed", report.Failed),
			zap.Int("notice_failures", report.NoticeFailures))
	}
	return report, nil
}

// noticeFailed logs a failed auto-close notice. Send failures are counted per
// reason; lookup failures are store errors.
func (s *Sweeper) noticeFailed(side domain.Side, ticketID int64, err error) {
	logger := s.logger.With(zap.String("side", string(side)), zap.Int64("ticket_id", ticketID))
	if !apperrors.IsDeliveryFailure(err) {
		logger.Error("auto-close notice lookup failed", zap.Error(err))
		return
	}
	s.metrics.RecordDeliveryFailure(string(side), DeliveryReason(err))
	logger.Warn("auto-close notice not delivered", deliveryFields(err)...)
}

func (s *Sweeper) notifyRequester(ctx context.Context, ticket *domain.Ticket) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.NotifyTimeout)
	defer cancel()

	requester, err := s.store.Users().GetByID(ctx, ticket.RequesterID)
	if err != nil {
		return err
	}
	if requester.PlatformID == nil {
		return nil
	}
	if _, err := s.messenger.Send(ctx, domain.OutboundMessage{
		ConversationID:   *requester.PlatformID,
		Text:             autoClosedNotice(ticket),
		ReplyToMessageID: ticket.RequesterMessageID,
	}); err != nil {
		return apperrors.NewDeliveryFailure(err)
	}
	return nil
}

func (s *Sweeper) notifyGroup(ctx context.Context, ticket *domain.Ticket) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.NotifyTimeout)
	defer cancel()

	chat, err := s.store.Chats().GetByID(ctx, *ticket.ChatID)
	if err != nil {
		return err
	}
	if _, err := s.messenger.Send(ctx, domain.OutboundMessage{
		ConversationID:   chat.PlatformChatID,
		Text:             autoClosedNotice(ticket),
		ReplyToMessageID: ticket.GroupMessageID,
	}); err != nil {
		return apperrors.NewDeliveryFailure(err)
	}
	return nil
}
