// Package historian drains the card-action queue into the action log and
// periodically marks idle games abandoned.
package historian

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jason-s-yu/songdecks/internal/apperr"
	"github.com/jason-s-yu/songdecks/internal/cache"
	"github.com/jason-s-yu/songdecks/internal/models"
	"github.com/jason-s-yu/songdecks/internal/store"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Popper is the slice of the Redis client the historian reads with.
type Popper interface {
	BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
}

type Config struct {
	Queue         string
	BatchSize     int
	FlushInterval time.Duration
	// Inactivity is how long an in-progress game may go without an action.
	Inactivity    time.Duration
	SweepSchedule string
}

// maxPendingBatches bounds how many failed batches are kept for retry.
const maxPendingBatches = 50

type Service struct {
	src    Popper
	store  store.Store
	cfg    Config
	logger logrus.FieldLogger
	now    func() time.Time

	batch []models.CardAction
}

func New(src Popper, s store.Store, cfg Config, logger logrus.FieldLogger) *Service {
	if cfg.Queue == "" {
		cfg.Queue = cache.DefaultQueueName
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 500 * time.Millisecond
	}
	return &Service{
		src:    src,
		store:  s,
		cfg:    cfg,
		logger: logger.WithField("component", "historian"),
		now:    time.Now,
		batch:  make([]models.CardAction, 0, cfg.BatchSize),
	}
}

// Run consumes the queue until ctx is done, then flushes what it holds. The
// sweep runs on its cron schedule alongside.
func (s *Service) Run(ctx context.Context) error {
	if s.cfg.SweepSchedule != "" {
		c := cron.New()
		if _, err := c.AddFunc(s.cfg.SweepSchedule, func() { s.Sweep(ctx) }); err != nil {
			return err
		}
		c.Start()
		defer c.Stop()
	}

	s.logger.WithField("queue", s.cfg.Queue).Info("historian started")
	lastFlush := s.now()
	for {
		if ctx.Err() != nil {
			// ctx is gone; give the final write its own deadline
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			s.Flush(flushCtx)
			cancel()
			s.logger.Info("historian stopped")
			return nil
		}

		s.pop(ctx)
		if len(s.batch) >= s.cfg.BatchSize || s.now().Sub(lastFlush) >= s.cfg.FlushInterval {
			s.Flush(ctx)
			lastFlush = s.now()
		}
	}
}

// pop waits up to one flush interval for a record and appends it to the batch.
func (s *Service) pop(ctx context.Context) {
	res, err := s.src.BLPop(ctx, s.cfg.FlushInterval, s.cfg.Queue).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			s.logger.WithError(err).Error("BLPop failed")
			// keep a dead connection from spinning
			select {
			case <-ctx.Done():
			case <-time.After(s.cfg.FlushInterval):
			}
		}
		return
	}
	if len(res) < 2 {
		return
	}
	// res[0] is the queue name, res[1] the record
	action, err := cache.DecodeAction([]byte(res[1]))
	if err != nil {
		s.logger.WithError(err).Warn("dropping unreadable action record")
		return
	}
	s.batch = append(s.batch, action)
}

// Flush writes the held batch in one transaction. A batch the log refuses
// outright is written one record at a time and the records refused again are
// dropped. Any other failure keeps the batch for the next flush; the log
// ignores records it already has.
func (s *Service) Flush(ctx context.Context) {
	if len(s.batch) == 0 {
		return
	}
	count := len(s.batch)
	err := s.write(ctx, s.batch)
	if err != nil && permanent(err) {
		err = s.writeEach(ctx)
	}
	if err != nil {
		s.logger.WithError(err).WithField("count", len(s.batch)).Error("flushing card actions")
		if limit := maxPendingBatches * s.cfg.BatchSize; len(s.batch) > limit {
			s.batch = s.batch[len(s.batch)-limit:]
		}
		return
	}
	s.logger.WithField("count", count).Debug("flushed card actions")
	s.batch = make([]models.CardAction, 0, s.cfg.BatchSize)
}

func (s *Service) write(ctx context.Context, actions []models.CardAction) error {
	return s.store.WithTx(ctx, func(tx store.Tx) error {
		return tx.AppendCardActions(ctx, actions)
	})
}

// writeEach writes the batch record by record. It drops the records the log
// refuses and keeps the ones that failed for any other reason.
func (s *Service) writeEach(ctx context.Context) error {
	kept := make([]models.CardAction, 0, s.cfg.BatchSize)
	var last error
	for _, a := range s.batch {
		err := s.write(ctx, []models.CardAction{a})
		switch {
		case err == nil:
		case permanent(err):
			s.logger.WithError(err).WithFields(logrus.Fields{
				"game_id":      a.GameID,
				"action_index": a.ActionIndex,
			}).Warn("dropping card action the log refuses")
		default:
			kept = append(kept, a)
			last = err
		}
	}
	s.batch = kept
	return last
}

// permanent reports whether writing the same records again is bound to fail:
// a classified store error, or a Postgres data or integrity violation.
func permanent(err error) bool {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound, apperr.KindValidation, apperr.KindConflict:
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		class := pgErr.Code[:min(2, len(pgErr.Code))]
		return class == "22" || class == "23"
	}
	return false
}

// Pending is the number of records waiting to be written.
func (s *Service) Pending() int { return len(s.batch) }

// Sweep abandons in-progress games idle for longer than the inactivity timeout.
func (s *Service) Sweep(ctx context.Context) []int64 {
	if s.cfg.Inactivity <= 0 {
		return nil
	}
	cutoff := s.now().Add(-s.cfg.Inactivity)
	var ids []int64
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		ids, err = tx.AbandonStaleGames(ctx, cutoff)
		return err
	})
	if err != nil {
		s.logger.WithError(err).Error("sweeping stale games")
		return nil
	}
	for _, id := range ids {
		s.logger.WithField("game_id", id).Info("marked game abandoned due to inactivity")
	}
	return ids
}
