package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/edirooss/scriptd/internal/host"
	"github.com/edirooss/scriptd/internal/redis"
)

// ExitService lists recent exit records: from Redis when a repository is
// configured, otherwise from the host's in-memory history.
type ExitService struct {
	log  *zap.Logger
	repo *redis.ExitRepository
	sys  *host.System
}

func NewExitService(log *zap.Logger, repo *redis.ExitRepository, sys *host.System) *ExitService {
	return &ExitService{log: log.Named("exit_service"), repo: repo, sys: sys}
}

// Recent returns up to n records, newest first.
func (s *ExitService) Recent(ctx context.Context, n int64) ([]host.ExitRecord, error) {
	if s.repo != nil {
		recs, err := s.repo.Recent(ctx, n)
		if err == nil {
			return recs, nil
		}
		if s.sys == nil {
			return nil, err
		}
		s.log.Warn("redis exit history unavailable; serving memory", zap.Error(err))
	}
	if s.sys == nil {
		return []host.ExitRecord{}, nil
	}
	return s.sys.RecentExits(int(n)), nil
}

// Persistent reports whether records come from Redis.
func (s *ExitService) Persistent() bool { return s.repo != nil }
