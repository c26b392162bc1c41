package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/linkmint/linkmint/internal/app/model"
	"github.com/linkmint/linkmint/internal/app/repository"
	"go.uber.org/zap"
)

const recordTimeout = 10 * time.Second

// RecorderSink is the in-process AccessSink used when no broker is
// configured: each event is recorded on its own goroutine with a detached
// context so the redirect response never waits on the stat transaction.
type RecorderSink struct {
	recorder repository.AccessRecorder
	logger   *zap.Logger
	wg       sync.WaitGroup
}

// NewRecorderSink wraps an AccessRecorder into an asynchronous sink.
func NewRecorderSink(recorder repository.AccessRecorder, logger *zap.Logger) *RecorderSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecorderSink{recorder: recorder, logger: logger}
}

// Submit schedules the event for recording and returns immediately.
func (s *RecorderSink) Submit(_ context.Context, ev model.AccessEvent) error {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()

		if err := s.recorder.Record(ctx, ev); err != nil {
			if errors.Is(err, repository.ErrLinkNotFound) {
				// Link deleted under the hit; nothing to count against.
				return
			}
			s.logger.Error("failed to record access",
				zap.String("code", ev.ShortCode), zap.Error(err))
		}
	}()
	return nil
}

// Drain blocks until in-flight recordings finish, for shutdown and tests.
func (s *RecorderSink) Drain() {
	s.wg.Wait()
}
