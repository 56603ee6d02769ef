package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"StockPipeline/internal/model"
	"StockPipeline/internal/notifier"

	"github.com/robfig/cron/v3"
)

// ErrRunInProgress is returned when a batch is requested while another runs.
var ErrRunInProgress = errors.New("a batch run is already in progress")

// Trigger names recorded with each run.
const (
	TriggerCron     = "cron"
	TriggerStartup  = "startup"
	TriggerManual   = "manual"
	TriggerTelegram = "telegram"
)

const notifyRetries = 3

// Runner executes one batch.
type Runner interface {
	Run(ctx context.Context) (*model.BatchSummary, error)
}

// RunRecorder persists the outcome of a batch.
type RunRecorder interface {
	RecordRun(ctx context.Context, summary *model.BatchSummary, runErr error) error
}

// Notifier delivers run reports.
type Notifier interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Calendar decides whether scheduled runs happen on a given day.
type Calendar interface {
	IsTradingDay(t time.Time) bool
}

// RunResult is the outcome of the most recent batch.
type RunResult struct {
	Trigger string              `json:"trigger"`
	Summary *model.BatchSummary `json:"summary,omitempty"`
	Err     error               `json:"-"`
	Error   string              `json:"error,omitempty"`
}

// Scheduler owns the cron trigger and guarantees one batch at a time.
type Scheduler struct {
	Cron     *cron.Cron
	Runner   Runner
	Recorder RunRecorder
	Notifier Notifier // optional
	Calendar Calendar // optional; scheduled runs are skipped on closed days
	Ctx      context.Context
	Now      func() time.Time

	running  sync.Mutex
	inFlight atomic.Bool
	pending  sync.WaitGroup // background runs started by Trigger
	mu       sync.RWMutex
	latest   *RunResult
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, runner Runner, rec RunRecorder) *Scheduler {
	return &Scheduler{
		Cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
		),
		Runner:   runner,
		Recorder: rec,
		Ctx:      ctx,
		Now:      time.Now,
	}
}

// Register adds the ingestion job under a six-field cron expression.
func (s *Scheduler) Register(expr string) error {
	if _, err := s.Cron.AddFunc(expr, s.scheduledTask); err != nil {
		return fmt.Errorf("register ingest task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler and waits for running batches, scheduled or
// triggered, to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.pending.Wait()
	log.Println("[INFO] scheduler stopped")
}

// RunNow executes a batch synchronously.
func (s *Scheduler) RunNow(ctx context.Context, trigger string) (*model.BatchSummary, error) {
	if !s.acquire() {
		return nil, ErrRunInProgress
	}
	defer s.release()
	return s.execute(ctx, trigger)
}

// Trigger starts a batch in the background.
func (s *Scheduler) Trigger(trigger string) error {
	if !s.acquire() {
		return ErrRunInProgress
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		defer s.release()
		_, _ = s.execute(s.Ctx, trigger)
	}()
	return nil
}

// Latest returns the most recent batch result, if any.
func (s *Scheduler) Latest() (RunResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return RunResult{}, false
	}
	return *s.latest, true
}

// Running reports whether a batch is in progress.
func (s *Scheduler) Running() bool {
	return s.inFlight.Load()
}

func (s *Scheduler) acquire() bool {
	if !s.running.TryLock() {
		return false
	}
	s.inFlight.Store(true)
	return true
}

func (s *Scheduler) release() {
	s.inFlight.Store(false)
	s.running.Unlock()
}

// HandleCommand processes a chat command and returns a reply.
func (s *Scheduler) HandleCommand(_ context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return notifier.FormatHelp()
	}
	switch strings.ToLower(fields[0]) {
	case "/run":
		if err := s.Trigger(TriggerTelegram); err != nil {
			return "⏳ " + err.Error()
		}
		return "🚀 batch started"
	case "/status":
		res, ok := s.Latest()
		if !ok {
			return "No batch has run yet."
		}
		return notifier.FormatRunSummary(res.Summary, res.Err)
	default:
		return notifier.FormatHelp()
	}
}

func (s *Scheduler) scheduledTask() {
	if s.Calendar != nil && !s.Calendar.IsTradingDay(s.Now()) {
		log.Println("[INFO] market closed today, skipping scheduled run")
		return
	}
	if _, err := s.RunNow(s.Ctx, TriggerCron); errors.Is(err, ErrRunInProgress) {
		log.Println("[WARN] scheduled run skipped: previous batch still running")
	}
}

func (s *Scheduler) execute(ctx context.Context, trigger string) (*model.BatchSummary, error) {
	log.Printf("[INFO] running ingest batch (trigger=%s)", trigger)
	summary, err := s.Runner.Run(ctx)
	if err != nil {
		log.Printf("[ERROR] ingest batch: %v", err)
	}

	s.mu.Lock()
	s.latest = &RunResult{Trigger: trigger, Summary: summary, Err: err}
	if err != nil {
		s.latest.Error = err.Error()
	}
	s.mu.Unlock()

	// Audit and report even when shutdown cancelled the run.
	bg := context.WithoutCancel(ctx)
	if summary != nil && s.Recorder != nil {
		if recErr := s.Recorder.RecordRun(bg, summary, err); recErr != nil {
			log.Printf("[ERROR] record run: %v", recErr)
		}
	}
	s.trySend(bg, notifier.FormatRunSummary(summary, err))
	return summary, err
}

func (s *Scheduler) trySend(ctx context.Context, text string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.SendWithRetry(ctx, text, notifyRetries); err != nil {
		log.Printf("[ERROR] send notification: %v", err)
	}
}
