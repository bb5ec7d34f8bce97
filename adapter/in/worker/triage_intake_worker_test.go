package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"complaint_triage/adapter/out/messaging"
	"complaint_triage/core/domain"
	"complaint_triage/core/port/in"
	"complaint_triage/pkg/apperr"
)

type fakeSource struct {
	mu        sync.Mutex
	stale     []*messaging.IntakeMessage
	fresh     []*messaging.IntakeMessage
	readAsked []int
	acked     []string
	dead      map[string]string
	readErr   error
}

func (s *fakeSource) Read(_ context.Context, count int) ([]*messaging.IntakeMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readAsked = append(s.readAsked, count)
	if s.readErr != nil {
		return nil, s.readErr
	}
	n := count
	if n > len(s.fresh) {
		n = len(s.fresh)
	}
	got := s.fresh[:n]
	s.fresh = s.fresh[n:]
	return got, nil
}

func (s *fakeSource) ClaimStale(_ context.Context, count int) ([]*messaging.IntakeMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := count
	if n > len(s.stale) {
		n = len(s.stale)
	}
	got := s.stale[:n]
	s.stale = s.stale[n:]
	return got, nil
}

func (s *fakeSource) Ack(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acked = append(s.acked, id)
	return nil
}

func (s *fakeSource) DeadLetter(_ context.Context, id, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dead == nil {
		s.dead = make(map[string]string)
	}
	s.dead[id] = reason
	return nil
}

type fakeTriage struct {
	mu      sync.Mutex
	results map[string]*in.TriageResult
	errs    map[string]error
	calls   []string
	hook    func(ctx context.Context)
	ctxErrs []error
}

func (f *fakeTriage) ClassifyAndRoute(ctx context.Context, sub *domain.Submission) (*in.TriageResult, error) {
	if f.hook != nil {
		f.hook(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, sub.Key)
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	if err := f.errs[sub.Key]; err != nil {
		return nil, err
	}
	if res := f.results[sub.Key]; res != nil {
		return res, nil
	}
	return &in.TriageResult{Complaint: &domain.Complaint{Key: sub.Key}}, nil
}

func (f *fakeTriage) Reclassify(context.Context, int64) (*in.TriageResult, error) {
	return nil, errors.New("not used")
}

func messages(prefix string, n int) []*messaging.IntakeMessage {
	msgs := make([]*messaging.IntakeMessage, n)
	for i := range msgs {
		key := fmt.Sprintf("%s-%d", prefix, i)
		msgs[i] = &messaging.IntakeMessage{
			ID:         "1-" + key,
			Stream:     messaging.StreamIntake,
			Submission: &domain.Submission{Key: key},
			Deliveries: 1,
		}
	}
	return msgs
}

func testConfig(max, workers int) IntakeConfig {
	return IntakeConfig{MaxPerCycle: max, Workers: workers, JobTimeout: time.Second, IdleBackoff: 10 * time.Millisecond}
}

func TestRunCycle_OutcomesDecideAck(t *testing.T) {
	src := &fakeSource{fresh: messages("k", 4)}
	triage := &fakeTriage{
		results: map[string]*in.TriageResult{
			"k-1": {AlreadyProcessed: true},
			"k-0": {
				Classification: &domain.ClassificationOutcome{Source: domain.SourceFallback, Reason: domain.FallbackParseFailure},
				Notification:   &domain.NotificationOutcome{TeamEmailSent: true},
			},
		},
		errs: map[string]error{
			"k-2": apperr.MissingField("body"),
			"k-3": apperr.DatabaseError("insert complaint", errors.New("connection reset")),
		},
	}
	w := NewIntakeWorker(src, triage, testConfig(10, 3), zerolog.Nop())

	stats, err := w.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, stats.Read)
	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 1, stats.Duplicates)
	assert.Equal(t, 1, stats.DeadLettered)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Fallbacks)
	assert.Equal(t, 1, stats.Notifications)

	assert.ElementsMatch(t, []string{"1-k-0", "1-k-1"}, src.acked)
	assert.Contains(t, src.dead, "1-k-2")
	assert.NotContains(t, src.dead, "1-k-3")
}

func TestRunCycle_BoundedPerCycle(t *testing.T) {
	src := &fakeSource{stale: messages("old", 2), fresh: messages("new", 10)}
	triage := &fakeTriage{}
	w := NewIntakeWorker(src, triage, testConfig(5, 2), zerolog.Nop())

	stats, err := w.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, stats.Read)
	assert.Equal(t, []int{3}, src.readAsked)
	assert.Len(t, triage.calls, 5)
	assert.Len(t, src.fresh, 7)
}

func TestRunCycle_CancelledBeforeSubmit(t *testing.T) {
	src := &fakeSource{stale: messages("old", 3), fresh: messages("new", 3)}
	triage := &fakeTriage{}
	w := NewIntakeWorker(src, triage, testConfig(10, 2), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats, err := w.RunCycle(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Skipped)
	assert.Empty(t, triage.calls)
	assert.Empty(t, src.acked)
	assert.Empty(t, src.readAsked)
}

func TestRunCycle_InFlightSurvivesCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := &fakeSource{fresh: messages("k", 3)}
	triage := &fakeTriage{hook: func(context.Context) { cancel() }}
	w := NewIntakeWorker(src, triage, testConfig(10, 1), zerolog.Nop())

	stats, err := w.RunCycle(ctx)
	require.NoError(t, err)

	require.NotEmpty(t, triage.calls)
	for _, e := range triage.ctxErrs {
		assert.NoError(t, e)
	}
	assert.Equal(t, len(triage.calls), stats.Processed)
	assert.Equal(t, 3, stats.Processed+stats.Skipped)
}

func TestRunCycle_PanicStaysPending(t *testing.T) {
	src := &fakeSource{fresh: messages("k", 1)}
	triage := &fakeTriage{hook: func(context.Context) { panic("boom") }}
	w := NewIntakeWorker(src, triage, testConfig(10, 1), zerolog.Nop())

	stats, err := w.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Failed)
	assert.Empty(t, src.acked)
	assert.Empty(t, src.dead)
}

func TestRunCycle_ReadError(t *testing.T) {
	boom := errors.New("redis down")
	w := NewIntakeWorker(&fakeSource{readErr: boom}, &fakeTriage{}, testConfig(10, 1), zerolog.Nop())

	_, err := w.RunCycle(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestRun_StopsOnCancel(t *testing.T) {
	src := &fakeSource{fresh: messages("k", 2)}
	triage := &fakeTriage{}
	w := NewIntakeWorker(src, triage, testConfig(10, 2), zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := w.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, src.acked, 2)
}

func TestIntakeConfig_Defaults(t *testing.T) {
	cfg := IntakeConfig{MaxPerCycle: 3, Workers: 8}.withDefaults()
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 2*time.Minute, cfg.JobTimeout)
}
