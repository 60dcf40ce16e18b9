package fp

import (
	"time"

	"github.com/dbehnke/dect-nwk/pkg/database"
	"github.com/dbehnke/dect-nwk/pkg/logger"
)

// CallLogger writes finished calls to the call log
type CallLogger struct {
	repo   *database.CallRecordRepository
	logger *logger.Logger
}

// NewCallLogger creates a new call logger
func NewCallLogger(repo *database.CallRecordRepository, log *logger.Logger) *CallLogger {
	if log == nil {
		log = logger.Nop()
	}
	return &CallLogger{repo: repo, logger: log}
}

// Prune drops entries older than maxAge
func (l *CallLogger) Prune(maxAge time.Duration, now time.Time) {
	n, err := l.repo.Prune(maxAge, now)
	if err != nil {
		l.logger.Warn("Failed to prune call log", logger.Error(err))
		return
	}
	if n > 0 {
		l.logger.Info("Pruned call log", logger.Int64("records", n))
	}
}

// Record saves a call that ended at end. Duration counts from the answer,
// so calls never answered are stored with zero duration.
func (l *CallLogger) Record(cl *call, end time.Time) {
	rec := &database.CallRecord{
		CallerIPUI:    cl.callerIPUI.String(),
		Called:        cl.called,
		Answered:      !cl.answered.IsZero(),
		ReleaseReason: cl.reason.String(),
		StartTime:     cl.started,
		EndTime:       end,
	}
	if cl.caller == nil {
		rec.CallerIPUI = ""
	}
	if cl.callee != nil {
		rec.CalleeIPUI = cl.calleeIPUI.String()
	}
	if rec.Answered {
		rec.Duration = end.Sub(cl.answered).Seconds()
	}

	if err := l.repo.Create(rec); err != nil {
		l.logger.Error("Failed to save call record",
			logger.Error(err),
			logger.Uint64("call", cl.id))
		return
	}
	l.logger.Debug("Saved call record",
		logger.Uint64("call", cl.id),
		logger.String("caller", rec.CallerIPUI),
		logger.String("called", rec.Called),
		logger.Bool("answered", rec.Answered),
		logger.Any("duration", rec.Duration))
}
