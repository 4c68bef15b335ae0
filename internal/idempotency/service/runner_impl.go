package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/pazarlabs/pazar/internal/clock"
	"github.com/pazarlabs/pazar/internal/config"
	"github.com/pazarlabs/pazar/internal/idempotency/domain"
	"github.com/pazarlabs/pazar/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Cfg   config.Config
	Repo  domain.Repository
}

type Runner struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      domain.Repository
	staleness time.Duration
}

func NewRunner(p Params) domain.Runner {
	stale := time.Duration(p.Cfg.Settlement.LockStaleMinutes) * time.Minute
	if stale <= 0 {
		stale = 15 * time.Minute
	}
	return &Runner{
		db:        p.DB,
		log:       p.Log.Named("idempotency"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		staleness: stale,
	}
}

// RunOnce claims the record for op.Key and runs fn inside the claiming
// transaction. A committed SUCCEEDED record short-circuits with
// ErrAlreadySucceeded; a fresh STARTED record fails with ErrAlreadyRunning;
// a stale STARTED or FAILED record is taken over. On fn failure the business
// writes roll back and a FAILED marker is committed separately so the attempt
// leaves a durable trail.
func (r *Runner) RunOnce(ctx context.Context, op domain.Op, fn func(tx *gorm.DB) error) error {
	key := strings.TrimSpace(op.Key)
	if key == "" {
		return domain.ErrInvalidKey
	}

	claimedAt := r.clock.Now()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.claim(ctx, tx, op, key, claimedAt); err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			return err
		}
		return r.markSucceeded(ctx, tx, key)
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrAlreadyRunning) || errors.Is(err, domain.ErrAlreadySucceeded) {
		return err
	}

	if markErr := r.markFailed(ctx, op, key, claimedAt, err); markErr != nil {
		r.log.Error("failed to persist failure marker",
			zap.String("key", key),
			zap.Error(markErr),
		)
	}
	return err
}

func (r *Runner) claim(ctx context.Context, tx *gorm.DB, op domain.Op, key string, now time.Time) error {
	record, err := r.repo.FindByKey(ctx, tx, key)
	if err != nil {
		return err
	}

	if record == nil {
		record = &domain.Record{
			ID:       r.genID.Generate(),
			Key:      key,
			Scope:    op.Scope,
			TenantID: op.TenantID,
			Status:   domain.StatusStarted,
			LockedAt: now,
		}
		if insertErr := r.repo.Insert(ctx, tx, record); insertErr != nil {
			// Insert race on the unique key: somebody else just claimed it.
			if db.IsDuplicateKeyErr(insertErr) {
				return domain.ErrAlreadyRunning
			}
			return insertErr
		}
		return nil
	}

	switch record.Status {
	case domain.StatusSucceeded:
		return domain.ErrAlreadySucceeded
	case domain.StatusStarted:
		if record.LockedAt.After(now.Add(-r.staleness)) {
			return domain.ErrAlreadyRunning
		}
		// Stale lock from a crashed worker: take over.
	case domain.StatusFailed:
		// Failed attempts never block a retry.
	}

	record.Status = domain.StatusStarted
	record.TenantID = op.TenantID
	record.LockedAt = now
	record.CompletedAt = nil
	record.LastError = ""
	return r.repo.Update(ctx, tx, record)
}

func (r *Runner) markSucceeded(ctx context.Context, tx *gorm.DB, key string) error {
	record, err := r.repo.FindByKey(ctx, tx, key)
	if err != nil {
		return err
	}
	if record == nil {
		return gorm.ErrRecordNotFound
	}
	now := r.clock.Now()
	record.Status = domain.StatusSucceeded
	record.CompletedAt = &now
	return r.repo.Update(ctx, tx, record)
}

// markFailed runs in its own transaction because the claiming transaction has
// already rolled back by the time we get here. In the window between the
// rollback and this commit another worker may have legitimately claimed the
// key; a record locked after our claim belongs to that worker and is left
// untouched.
func (r *Runner) markFailed(ctx context.Context, op domain.Op, key string, claimedAt time.Time, cause error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := r.clock.Now()
		record, err := r.repo.FindByKey(ctx, tx, key)
		if err != nil {
			return err
		}
		message := cause.Error()
		if len(message) > 1024 {
			message = message[:1024]
		}
		if record == nil {
			record = &domain.Record{
				ID:        r.genID.Generate(),
				Key:       key,
				Scope:     op.Scope,
				TenantID:  op.TenantID,
				Status:    domain.StatusFailed,
				LockedAt:  now,
				LastError: message,
			}
			record.CompletedAt = &now
			if insertErr := r.repo.Insert(ctx, tx, record); insertErr != nil {
				if db.IsDuplicateKeyErr(insertErr) {
					return nil
				}
				return insertErr
			}
			return nil
		}
		if record.LockedAt.After(claimedAt) {
			return nil
		}
		record.Status = domain.StatusFailed
		record.CompletedAt = &now
		record.LastError = message
		return r.repo.Update(ctx, tx, record)
	})
}
