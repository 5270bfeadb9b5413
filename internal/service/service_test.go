package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/edirooss/scriptd/internal/bytecode"
	"github.com/edirooss/scriptd/internal/host"
	"github.com/edirooss/scriptd/internal/infrastructure/processmgr"
	"github.com/edirooss/scriptd/internal/redis"
)

func newInterp(t *testing.T, cfg processmgr.Config) (*InterpService, *host.System) {
	t.Helper()
	log := zaptest.NewLogger(t)
	sys := host.NewSystem(log, nil)
	t.Cleanup(sys.Close)
	sched := processmgr.New(log, sys, cfg)
	return NewInterpService(log, sched, sys.Outputs(), 5), sys
}

func startDriver(t *testing.T, s *InterpService) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.ErrorIs(t, <-done, context.Canceled)
	})
}

func gone(s *InterpService, pid int64) func() bool {
	return func() bool { return s.Status(pid).State.Kind == processmgr.Gone }
}

func TestInterpExecRunsToCompletion(t *testing.T) {
	s, sys := newInterp(t, processmgr.DefaultConfig)
	startDriver(t, s)

	pid, err := s.Exec(ExecRequest{Source: `
main:
	print "hello"
	wait 5
	print "world"
	text "ok"
	halt
`, Name: "greeter"})
	require.NoError(t, err)

	require.Eventually(t, gone(s, pid), 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"world", "hello"}, s.Output(pid, 0))

	exits := sys.RecentExits(1)
	require.Len(t, exits, 1)
	assert.Equal(t, "ok", exits[0].Text)
	assert.Equal(t, "Halted", exits[0].State)
}

func TestInterpExecErrors(t *testing.T) {
	s, _ := newInterp(t, processmgr.Config{MaxProcs: 1})

	_, err := s.Exec(ExecRequest{Source: "frobnicate"})
	assert.ErrorIs(t, err, ErrInvalidProgram)
	var se *bytecode.SyntaxError
	assert.True(t, errors.As(err, &se))

	_, err = s.Exec(ExecRequest{Source: "halt", Entry: "nope"})
	assert.ErrorIs(t, err, ErrInvalidProgram)
	assert.ErrorIs(t, err, bytecode.ErrUnknownEntry)

	_, err = s.Exec(ExecRequest{Source: "sleep"})
	require.NoError(t, err)
	_, err = s.Exec(ExecRequest{Source: "sleep"})
	assert.ErrorIs(t, err, processmgr.ErrTooManyProcesses)
	assert.NotErrorIs(t, err, ErrInvalidProgram)
}

func TestInterpWakeAndKill(t *testing.T) {
	s, _ := newInterp(t, processmgr.DefaultConfig)
	startDriver(t, s)

	sleeper, err := s.Exec(ExecRequest{Source: "sleep\ntext \"up\"\nhalt"})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return s.Status(sleeper).State.Kind == processmgr.Sleeping
	}, 2*time.Second, 5*time.Millisecond)

	s.Wake(sleeper)
	require.Eventually(t, gone(s, sleeper), 2*time.Second, 5*time.Millisecond)

	spinner, err := s.Exec(ExecRequest{Source: "loop:\nyield\njmp loop"})
	require.NoError(t, err)
	require.NoError(t, s.Kill(spinner, "test"))
	require.Eventually(t, gone(s, spinner), 2*time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, s.Kill(spinner, "again"), ErrNotFound)
	assert.Empty(t, s.List())
}

func TestSummaryCaches(t *testing.T) {
	s, _ := newInterp(t, processmgr.DefaultConfig)
	sum := NewSummaryService(zaptest.NewLogger(t), s, SummaryOptions{TTL: time.Minute})

	now := time.Unix(1000, 0)
	sum.now = func() time.Time { return now }

	res, err := sum.Get(context.Background())
	require.NoError(t, err)
	assert.False(t, res.CacheHit)
	assert.Empty(t, res.Data)

	pid, err := s.Exec(ExecRequest{Source: "sleep", Name: "idle"})
	require.NoError(t, err)

	res, err = sum.Get(context.Background())
	require.NoError(t, err)
	assert.True(t, res.CacheHit)
	assert.Empty(t, res.Data)

	now = now.Add(2 * time.Minute)
	res, err = sum.Get(context.Background())
	require.NoError(t, err)
	assert.False(t, res.CacheHit)
	require.Len(t, res.Data, 1)
	assert.Equal(t, ProcSummary{PID: pid, IPID: 1, Name: "idle", State: "Running"}, res.Data[0])

	sum.Invalidate()
	res, err = sum.Get(context.Background())
	require.NoError(t, err)
	assert.False(t, res.CacheHit)
}

func TestExitServiceMemoryFallback(t *testing.T) {
	log := zaptest.NewLogger(t)
	sys := host.NewSystem(log, nil)
	defer sys.Close()

	sys.Finished(1, processmgr.ProcessState{Kind: processmgr.Halted}, nil, "a")
	sys.Finished(2, processmgr.ProcessState{Kind: processmgr.Halted}, nil, "b")

	svc := NewExitService(log, nil, sys)
	assert.False(t, svc.Persistent())

	recs, err := svc.Recent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "b", recs[0].Text)

	empty := NewExitService(log, nil, nil)
	recs, err = empty.Recent(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestExitServiceRedis(t *testing.T) {
	log := zaptest.NewLogger(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(mr.Addr(), 0, log)
	defer rdb.Close()
	repo := redis.NewExitRepository(log, rdb, 10, time.Hour)

	sys := host.NewSystem(log, nil)
	defer sys.Close()
	sys.Finished(1, processmgr.ProcessState{Kind: processmgr.Halted}, nil, "mem")

	ctx := context.Background()
	rec := host.NewExitRecord(7, processmgr.ProcessState{Kind: processmgr.Halted}, []float64{1}, "stored")
	require.NoError(t, repo.Record(ctx, rec))

	svc := NewExitService(log, repo, sys)
	assert.True(t, svc.Persistent())
	recs, err := svc.Recent(ctx, 5)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "stored", recs[0].Text)

	// Redis down: memory history is served instead.
	mr.Close()
	recs, err = svc.Recent(ctx, 5)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "mem", recs[0].Text)

	_, err = NewExitService(log, repo, nil).Recent(ctx, 5)
	assert.Error(t, err)
}
