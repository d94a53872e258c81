package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/finrisk_backend/config"
)

var ErrBatchAlreadyRunning = errors.New("batch already running")

type BatchLocker interface {
	// WithLock runs fn while holding name, or returns ErrBatchAlreadyRunning without running it.
	WithLock(ctx context.Context, name string, fn func(ctx context.Context) error) error
}

// DistributedBatchLocker prefers Redis and falls back to a MySQL advisory lock
// when Redis is not connected.
type DistributedBatchLocker struct {
	DB     *gorm.DB
	Redis  func() *redislock.Client
	TTL    time.Duration
	Logger *logrus.Logger
}

func NewDistributedBatchLocker(db *gorm.DB, logger *logrus.Logger) *DistributedBatchLocker {
	return &DistributedBatchLocker{
		DB:     db,
		Redis:  config.GetRedisLock,
		TTL:    config.BatchLockTTL(),
		Logger: logger,
	}
}

func batchLockKey(name string) string {
	return fmt.Sprintf("lock:summary-batch:%s", name)
}

func (l *DistributedBatchLocker) WithLock(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	if l.Redis != nil {
		if locker := l.Redis(); locker != nil {
			return l.withRedisLock(ctx, locker, name, fn)
		}
	}
	if l.DB == nil {
		return errors.New("no lock backend available")
	}
	return l.withMySQLLock(ctx, name, fn)
}

func (l *DistributedBatchLocker) withRedisLock(ctx context.Context, locker *redislock.Client, name string, fn func(ctx context.Context) error) error {
	ttl := l.TTL
	if ttl <= 0 {
		ttl = config.BatchLockTTL()
	}
	lock, err := locker.Obtain(ctx, batchLockKey(name), ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return ErrBatchAlreadyRunning
	} else if err != nil {
		return fmt.Errorf("obtain batch lock %s: %w", name, err)
	}
	defer func() {
		l.logReleaseError(name, lock.Release(context.Background()))
	}()

	// keep the lock alive for runs longer than the TTL
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(ttl / 2)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := lock.Refresh(ctx, ttl, nil); err != nil && l.Logger != nil {
					l.Logger.WithField("lock", name).WithError(err).Warn("batch lock refresh failed")
				}
			}
		}
	}()

	return fn(ctx)
}

// withMySQLLock pins one pooled connection: GET_LOCK is connection-scoped.
func (l *DistributedBatchLocker) withMySQLLock(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	lockName := batchLockKey(name)
	return l.DB.WithContext(ctx).Connection(func(conn *gorm.DB) error {
		var ok *int
		if err := conn.Raw("SELECT GET_LOCK(?, 0)", lockName).Scan(&ok).Error; err != nil {
			return fmt.Errorf("obtain batch lock %s: %w", name, err)
		}
		if ok == nil || *ok != 1 {
			return ErrBatchAlreadyRunning
		}
		defer func() {
			var released *int
			err := conn.WithContext(context.Background()).Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&released).Error
			if err == nil && (released == nil || *released != 1) {
				err = fmt.Errorf("RELEASE_LOCK(%s) did not release", lockName)
			}
			l.logReleaseError(name, err)
		}()
		return fn(ctx)
	})
}

// logReleaseError surfaces a lock that may stay held until its TTL or connection ends.
func (l *DistributedBatchLocker) logReleaseError(name string, err error) {
	if err == nil || l.Logger == nil {
		return
	}
	l.Logger.WithField("lock", name).WithError(err).Warn("batch lock release failed")
}
