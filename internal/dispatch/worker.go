package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hireline/recruiting-core/internal/messaging"
	"github.com/hireline/recruiting-core/internal/metrics"
	"github.com/hireline/recruiting-core/internal/model"
	"github.com/hireline/recruiting-core/internal/repository"
)

// Config пула доставки.
type Config struct {
	// Сколько воркеров опрашивают outbox. Пропускную способность задаёт
	// общий rate limiter, а не количество воркеров.
	Workers int
	// Пауза воркера, когда очередь пуста.
	PollInterval time.Duration
	// Параметры повторов.
	RetryBase   time.Duration
	RetryCap    time.Duration
	MaxAttempts int

	// Аренда захвата: in_flight-запись старше этого срока считается
	// брошенной упавшим воркером и забирается заново.
	ClaimLease time.Duration
}

func (c *Config) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.RetryBase <= 0 {
		c.RetryBase = 30 * time.Second
	}
	if c.RetryCap <= 0 {
		c.RetryCap = time.Hour
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 8
	}
	if c.ClaimLease <= 0 {
		c.ClaimLease = 5 * time.Minute
	}
}

// Pool — воркеры доставки: забирают записи outbox, прогоняют через общий
// токен-бакет и отправляют во внешнюю точку. Исход фиксируется в outbox,
// успех дополнительно — в журнале дедупликации.
type Pool struct {
	cfg     Config
	outbox  repository.OutboxRepository
	logRepo repository.NotificationLogRepository
	sender  messaging.Sender
	limiter *rate.Limiter
	health  *Health
	logger  *zap.Logger
}

func NewPool(
	cfg Config,
	outbox repository.OutboxRepository,
	logRepo repository.NotificationLogRepository,
	sender messaging.Sender,
	limiter *rate.Limiter,
	health *Health,
	logger *zap.Logger,
) *Pool {
	cfg.applyDefaults()
	return &Pool{
		cfg:     cfg,
		outbox:  outbox,
		logRepo: logRepo,
		sender:  sender,
		limiter: limiter,
		health:  health,
		logger:  logger,
	}
}

// Run запускает воркеров и блокируется до отмены ctx.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.worker(ctx, id)
		}(i)
	}
	wg.Wait()
}

func (p *Pool) worker(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		now := time.Now().UTC()
		p.health.RecordPoll(now)

		n, err := p.outbox.ClaimNext(ctx, now, p.cfg.ClaimLease)
		if err != nil {
			p.logger.Error("outbox claim failed", zap.Int("worker", id), zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if n == nil {
			p.updateBacklogGauge(ctx)
			p.sleep(ctx)
			continue
		}

		p.deliver(ctx, n)
	}
}

func (p *Pool) deliver(ctx context.Context, n *model.OutboxNotification) {
	// Ожидание токена — ограниченная пауза, не busy loop.
	if err := p.limiter.Wait(ctx); err != nil {
		// Контекст отменён на выключении: вернём запись в очередь немедленно.
		_ = p.outbox.MarkRetry(context.Background(), n.ID.String(), n.Attempts, time.Now().UTC(), "shutdown during rate wait")
		return
	}

	err := p.sender.Send(ctx, n.ChatID, n.Payload)
	attempts := n.Attempts + 1

	switch {
	case err == nil:
		if markErr := p.outbox.MarkSent(ctx, n.ID.String(), attempts); markErr != nil {
			p.logger.Error("mark sent failed", zap.String("id", n.ID.String()), zap.Error(markErr))
			return
		}
		// Отметка дедупликации: для записей планировщика она уже есть
		// (конфликт = no-op), для записей движка появляется здесь.
		if logErr := p.logRepo.Insert(ctx, &model.NotificationLog{
			Type:      n.Type,
			BookingID: n.BookingID,
			ChatID:    n.ChatID,
		}); logErr != nil {
			p.logger.Error("dedup log insert failed", zap.String("id", n.ID.String()), zap.Error(logErr))
		}
		p.health.RecordSent()
		metrics.NotificationsSentTotal.WithLabelValues(string(n.Type)).Inc()
		p.logger.Info("notification delivered",
			zap.String("id", n.ID.String()),
			zap.String("type", string(n.Type)),
			zap.Int64("chat_id", n.ChatID),
			zap.Int("attempts", attempts),
		)

	case messaging.IsFatal(err):
		// Окончательный отказ: в fatal сразу, без добора бюджета повторов,
		// и процесс-флаг остановки доставки для оператора.
		if markErr := p.outbox.MarkFatal(ctx, n.ID.String(), attempts, err.Error()); markErr != nil {
			p.logger.Error("mark fatal failed", zap.String("id", n.ID.String()), zap.Error(markErr))
		}
		p.health.Halt(err.Error())
		metrics.NotificationsFatalTotal.WithLabelValues(string(n.Type), "permanent").Inc()
		p.logger.Error("notification permanently rejected",
			zap.String("id", n.ID.String()),
			zap.Int64("chat_id", n.ChatID),
			zap.Error(err),
		)

	case attempts >= p.cfg.MaxAttempts:
		if markErr := p.outbox.MarkFatal(ctx, n.ID.String(), attempts, fmt.Sprintf("retry budget exhausted: %v", err)); markErr != nil {
			p.logger.Error("mark fatal failed", zap.String("id", n.ID.String()), zap.Error(markErr))
		}
		metrics.NotificationsFatalTotal.WithLabelValues(string(n.Type), "exhausted").Inc()
		p.logger.Error("notification retry budget exhausted",
			zap.String("id", n.ID.String()),
			zap.Int("attempts", attempts),
			zap.Error(err),
		)

	default:
		next := time.Now().UTC().Add(Backoff(p.cfg.RetryBase, p.cfg.RetryCap, attempts))
		if markErr := p.outbox.MarkRetry(ctx, n.ID.String(), attempts, next, err.Error()); markErr != nil {
			p.logger.Error("mark retry failed", zap.String("id", n.ID.String()), zap.Error(markErr))
		}
		p.health.RecordRetry()
		metrics.NotificationRetriesTotal.WithLabelValues(string(n.Type)).Inc()
		p.logger.Warn("notification delivery failed, will retry",
			zap.String("id", n.ID.String()),
			zap.Int("attempts", attempts),
			zap.Time("next_retry_at", next),
			zap.Error(err),
		)
	}
}

func (p *Pool) updateBacklogGauge(ctx context.Context) {
	backlog, err := p.outbox.Backlog(ctx)
	if err != nil {
		return
	}
	metrics.OutboxBacklog.Set(float64(backlog))
}

func (p *Pool) sleep(ctx context.Context) {
	t := time.NewTimer(p.cfg.PollInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
