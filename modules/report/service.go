package report

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	domain "github.com/example/task-tracker/domain/report"
	"github.com/example/task-tracker/modules/team"
	"github.com/example/task-tracker/pkg/apperr"
	"github.com/go-monolith/mono/pkg/types"
	"golang.org/x/sync/singleflight"
)

// DefaultBuildTimeout bounds a shared report computation.
const DefaultBuildTimeout = 30 * time.Second

// Service builds team reports.
type Service interface {
	GetByTeam(ctx context.Context, req *ReportRequest) (domain.Report, error)
	// Invalidate discards cached reports after the underlying tasks changed.
	Invalidate(ctx context.Context)
}

// AggregatorService resolves team members and aggregates their tasks.
// Concurrent identical requests share one computation.
type AggregatorService struct {
	repo         domain.Repository
	teams        team.TeamPort
	cache        Cache
	group        singleflight.Group
	generation   atomic.Uint64
	buildTimeout time.Duration
	logger       types.Logger
}

var _ Service = (*AggregatorService)(nil)

// Option configures an AggregatorService.
type Option func(*AggregatorService)

// WithBuildTimeout overrides DefaultBuildTimeout.
func WithBuildTimeout(d time.Duration) Option {
	return func(s *AggregatorService) {
		if d > 0 {
			s.buildTimeout = d
		}
	}
}

// NewService creates the aggregator. cache may be nil.
func NewService(repo domain.Repository, teams team.TeamPort, cache Cache, logger types.Logger, opts ...Option) *AggregatorService {
	s := &AggregatorService{
		repo:         repo,
		teams:        teams,
		cache:        cache,
		buildTimeout: DefaultBuildTimeout,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetByTeam returns the report for the team's current members over the request window.
// Identical requests share one computation; each caller still returns as soon as its own
// ctx is done.
func (s *AggregatorService) GetByTeam(ctx context.Context, req *ReportRequest) (domain.Report, error) {
	if err := validateRequest(req); err != nil {
		return domain.Report{}, err
	}
	window := domain.Window{Start: *req.StartDate, End: *req.EndDate}
	key := cacheKey(*req.TeamID, window)

	// Requests made after an invalidation never join a computation started before it.
	gen := s.generation.Load()
	flight := strconv.FormatUint(gen, 10) + "/" + key

	ch := s.group.DoChan(flight, func() (any, error) {
		buildCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.buildTimeout)
		defer cancel()
		return s.build(buildCtx, key, gen, *req.TeamID, window)
	})

	select {
	case <-ctx.Done():
		return domain.Report{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return domain.Report{}, res.Err
		}
		return res.Val.(domain.Report), nil
	}
}

// Invalidate drops cached reports. Computations already running finish for their
// callers but do not write their result back.
func (s *AggregatorService) Invalidate(ctx context.Context) {
	s.generation.Add(1)
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("Report cache invalidation failed", "error", err)
	}
}

func validateRequest(req *ReportRequest) error {
	switch {
	case req == nil:
		return apperr.Validation("report request is required")
	case req.TeamID == nil:
		return apperr.Validation("team id is required")
	case req.StartDate == nil:
		return apperr.Validation("start date is required")
	case req.EndDate == nil:
		return apperr.Validation("end date is required")
	case req.StartDate.After(*req.EndDate):
		return apperr.Validation("start date must not be after end date")
	}
	return nil
}

func (s *AggregatorService) build(ctx context.Context, key string, gen uint64, teamID int64, window domain.Window) (domain.Report, error) {
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.Warn("Report cache read failed", "key", key, "error", err)
		} else if ok {
			return cached, nil
		}
	}

	members, err := s.teams.MembersOf(ctx, teamID)
	if err != nil {
		return domain.Report{}, apperr.AsDependency(err, "team lookup")
	}
	memberIDs := team.MemberIDs(members)

	var row *domain.Row
	if len(memberIDs) > 0 {
		row, err = s.repo.AggregateReport(ctx, memberIDs, window)
		if err != nil {
			return domain.Report{}, apperr.AsDependency(err, "report aggregation")
		}
	}
	if row == nil {
		return domain.Report{}, apperr.Validation("no data found for member set %s", formatMemberSet(memberIDs))
	}

	r := domain.FromRow(*row)
	if s.cache != nil && s.generation.Load() == gen {
		if err := s.cache.Set(ctx, key, r); err != nil {
			s.logger.Warn("Report cache write failed", "key", key, "error", err)
		} else if s.generation.Load() != gen {
			// An invalidation raced the write.
			if err := s.cache.Invalidate(ctx); err != nil {
				s.logger.Warn("Report cache invalidation failed", "error", err)
			}
		}
	}
	return r, nil
}

func cacheKey(teamID int64, window domain.Window) string {
	return fmt.Sprintf("%d:%s:%s", teamID, window.Start, window.End)
}

// formatMemberSet renders ids as {2, 5}.
func formatMemberSet(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
