package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ProcSummary is one row of the process listing.
type ProcSummary struct {
	PID    int64  `json:"pid"`
	IPID   int64  `json:"ipid"`
	Name   string `json:"name"`
	State  string `json:"state"`
	Reason string `json:"reason,omitempty"`
	Cycles int64  `json:"cycles"`
}

type SummaryOptions struct {
	// TTL controls how long the in-memory snapshot is served; default 250ms.
	TTL time.Duration
}

func (o *SummaryOptions) setDefaults() {
	if o.TTL <= 0 {
		o.TTL = 250 * time.Millisecond
	}
}

// SummaryResult lets the handler set headers.
type SummaryResult struct {
	Data        []ProcSummary
	CacheHit    bool
	GeneratedAt time.Time // snapshot timestamp
}

// SummaryService caches the process listing so polling clients do not
// contend with the driver for the scheduler lock.
type SummaryService struct {
	log    *zap.Logger
	interp *InterpService

	mu      sync.RWMutex
	cache   []ProcSummary
	expires time.Time
	genAt   time.Time

	opts SummaryOptions
	now  func() time.Time

	sg singleflight.Group
}

func NewSummaryService(log *zap.Logger, interp *InterpService, opts SummaryOptions) *SummaryService {
	opts.setDefaults()
	return &SummaryService{
		log:    log.Named("summary_service"),
		interp: interp,
		opts:   opts,
		now:    time.Now,
	}
}

// Get returns the cached snapshot or refreshes it when expired.
// Concurrent refreshes are coalesced.
func (s *SummaryService) Get(ctx context.Context) (SummaryResult, error) {
	if res, ok := s.fresh(); ok {
		return res, nil
	}

	v, err, _ := s.sg.Do("summary-refresh", func() (any, error) {
		// Double-check freshness after winning the flight
		if res, ok := s.fresh(); ok {
			return res, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := s.now()
		data := s.refresh()

		s.mu.Lock()
		s.cache = data
		s.expires = s.now().Add(s.opts.TTL)
		s.genAt = start
		s.mu.Unlock()

		return SummaryResult{Data: cloneSummaries(data), CacheHit: false, GeneratedAt: start}, nil
	})
	if err != nil {
		return SummaryResult{}, err
	}
	return v.(SummaryResult), nil
}

func (s *SummaryService) fresh() (SummaryResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cache != nil && s.now().Before(s.expires) {
		return SummaryResult{Data: cloneSummaries(s.cache), CacheHit: true, GeneratedAt: s.genAt}, true
	}
	return SummaryResult{}, false
}

// Invalidate drops the snapshot; the next Get refreshes.
func (s *SummaryService) Invalidate() {
	s.mu.Lock()
	s.cache = nil
	s.expires = time.Time{}
	s.genAt = time.Time{}
	s.mu.Unlock()
}

func (s *SummaryService) refresh() []ProcSummary {
	infos := s.interp.List()
	out := make([]ProcSummary, 0, len(infos))
	for _, in := range infos {
		out = append(out, ProcSummary{
			PID:    in.PID,
			IPID:   in.IPID,
			Name:   in.Name,
			State:  in.Status.State.Kind.String(),
			Reason: in.Status.State.Reason,
			Cycles: in.Status.Cycles,
		})
	}
	return out
}

func cloneSummaries(in []ProcSummary) []ProcSummary {
	out := make([]ProcSummary, len(in))
	copy(out, in)
	return out
}
