package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"babcia/internal/events"
	"babcia/internal/logger"

	"github.com/go-co-op/gocron"
	"github.com/google/uuid"
)

type Schedule int

const (
	Hourly Schedule = iota
	Daily           // Start at 02:00 UTC every day
)

const (
	wakeTag           = "background_wake"
	reminderTagPrefix = "reminder:"
	minimumLeadTime   = time.Second
)

// Job represents a scheduled task that can be executed by the scheduler
type Job interface {
	// Name returns a human-readable name for the job
	Name() string

	// Execute runs the job with the given context
	// Context can be used for cancellation and timeout handling
	Execute(ctx context.Context) error
	Schedule() Schedule
}

// WakeHandler runs when the background wake fires and reports whether any
// room was actually scanned
type WakeHandler func(ctx context.Context) bool

// Reminder is a user-facing nudge to scan a room by hand
type Reminder struct {
	ID     string    `json:"id"`
	RoomID uuid.UUID `json:"roomId"`
	Title  string    `json:"title"`
	Body   string    `json:"body"`
	At     time.Time `json:"at"`
}

// ScanHost is the platform side of scheduling: one background wake slot and
// any number of reminders
type ScanHost interface {
	RegisterBackgroundHandler(handler WakeHandler)
	ScheduleBackgroundWake(at time.Time) error
	CancelBackgroundWake()
	RequestNotificationPermission(ctx context.Context) bool
	ScheduleReminder(ctx context.Context, reminder Reminder) error
	CancelAllReminders(ctx context.Context)
}

type SchedulerService struct {
	scheduler  *gocron.Scheduler
	jobs       []Job
	publisher  events.Publisher
	wake       WakeHandler
	wakeAt     *time.Time
	wakeBudget time.Duration
	wakeMu     sync.Mutex
	reminders  map[string]Reminder
	log        logger.Logger
	started    bool
	mu         sync.Mutex
	ctx        context.Context
	cancel     context.CancelFunc
	now        func() time.Time
}

func NewSchedulerService(publisher events.Publisher, wakeBudget time.Duration) *SchedulerService {
	// Create scheduler in UTC timezone
	scheduler := gocron.NewScheduler(time.UTC)

	// Create cancellable context for job execution
	ctx, cancel := context.WithCancel(context.Background())

	if wakeBudget <= 0 {
		wakeBudget = 2 * time.Minute
	}

	return &SchedulerService{
		scheduler:  scheduler,
		jobs:       make([]Job, 0),
		publisher:  publisher,
		wakeBudget: wakeBudget,
		reminders:  make(map[string]Reminder),
		log:        logger.New("scheduler"),
		started:    false,
		ctx:        ctx,
		cancel:     cancel,
		now:        time.Now,
	}
}

func (s *SchedulerService) executeJob(job Job, log logger.Logger) {
	log.Info("Executing scheduled job", "job", job.Name())
	if err := job.Execute(s.ctx); err != nil {
		_ = log.Err("Job execution failed", err, "job", job.Name())
	} else {
		log.Info("Job execution completed successfully", "job", job.Name())
	}
}

// AddJob registers a recurring job with the scheduler
func (s *SchedulerService) AddJob(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.log.Function("AddJob")

	var err error
	switch job.Schedule() {
	case Daily:
		_, err = s.scheduler.Every(1).Day().At("02:00").Tag(job.Name()).Do(func() {
			s.executeJob(job, log)
		})
	case Hourly:
		_, err = s.scheduler.Every(1).Hour().Tag(job.Name()).Do(func() {
			s.executeJob(job, log)
		})
	default:
		err = fmt.Errorf("unknown schedule %d", job.Schedule())
	}

	if err != nil {
		return log.Err("failed to register job with scheduler", err, "job", job.Name())
	}

	s.jobs = append(s.jobs, job)
	log.Info("Job registered successfully", "job", job.Name())

	return nil
}

func (s *SchedulerService) RegisterBackgroundHandler(handler WakeHandler) {
	s.wakeMu.Lock()
	defer s.wakeMu.Unlock()
	s.wake = handler
}

// ScheduleBackgroundWake arms the single background wake, replacing any wake
// already armed. Times in the past fire as soon as possible.
func (s *SchedulerService) ScheduleBackgroundWake(at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.log.Function("ScheduleBackgroundWake")

	_ = s.scheduler.RemoveByTag(wakeTag)
	s.wakeAt = nil

	at = s.clamp(at)
	_, err := s.scheduler.Every(1).Day().StartAt(at).LimitRunsTo(1).Tag(wakeTag).Do(s.runWake)
	if err != nil {
		return log.Err("failed to arm background wake", err, "at", at)
	}

	s.wakeAt = &at
	log.Info("Background wake armed", "at", at)
	return nil
}

func (s *SchedulerService) CancelBackgroundWake() {
	s.mu.Lock()
	defer s.mu.Unlock()

	_ = s.scheduler.RemoveByTag(wakeTag)
	s.wakeAt = nil
}

// RequestNotificationPermission reports whether reminders can be delivered.
// Reminders travel over the event bus, so a bus is all that is needed.
func (s *SchedulerService) RequestNotificationPermission(ctx context.Context) bool {
	return s.publisher != nil
}

func (s *SchedulerService) ScheduleReminder(ctx context.Context, reminder Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.log.Function("ScheduleReminder")

	if reminder.ID == "" {
		reminder.ID = uuid.NewString()
	}
	tag := reminderTagPrefix + reminder.ID
	_ = s.scheduler.RemoveByTag(tag)

	at := s.clamp(reminder.At)
	_, err := s.scheduler.Every(1).Day().StartAt(at).LimitRunsTo(1).Tag(tag).Do(func() {
		s.deliverReminder(reminder)
	})
	if err != nil {
		return log.Err("failed to schedule reminder", err, "reminderID", reminder.ID, "roomID", reminder.RoomID)
	}

	s.reminders[reminder.ID] = reminder
	log.Debug("Reminder scheduled", "reminderID", reminder.ID, "roomID", reminder.RoomID, "at", at)
	return nil
}

func (s *SchedulerService) CancelAllReminders(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range s.reminders {
		_ = s.scheduler.RemoveByTag(reminderTagPrefix + id)
	}
	s.reminders = make(map[string]Reminder)
}

func (s *SchedulerService) deliverReminder(reminder Reminder) {
	log := s.log.Function("deliverReminder")

	s.mu.Lock()
	delete(s.reminders, reminder.ID)
	s.mu.Unlock()

	if s.publisher == nil {
		log.Warn("No event bus, dropping reminder", "reminderID", reminder.ID)
		return
	}

	roomID := reminder.RoomID
	err := s.publisher.Publish(events.REMINDERS_CHANNEL, events.Event{
		Type:   events.SCAN_REMINDER,
		RoomID: &roomID,
		Data: map[string]any{
			"reminderId": reminder.ID,
			"title":      reminder.Title,
			"body":       reminder.Body,
			"at":         reminder.At,
		},
	})
	if err != nil {
		log.Er("failed to publish reminder", err, "reminderID", reminder.ID)
		return
	}
	log.Info("Reminder delivered", "reminderID", reminder.ID, "roomID", reminder.RoomID)
}

func (s *SchedulerService) runWake() {
	s.mu.Lock()
	s.wakeAt = nil
	s.mu.Unlock()

	s.RunWakeNow(s.ctx)
}

// RunWakeNow runs the registered wake handler under the wake budget. Wakes
// never overlap: a wake that starts while another is running waits for it.
func (s *SchedulerService) RunWakeNow(ctx context.Context) bool {
	log := s.log.Function("RunWakeNow")

	s.wakeMu.Lock()
	defer s.wakeMu.Unlock()

	if s.wake == nil {
		log.Warn("Background wake fired with no handler registered")
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, s.wakeBudget)
	defer cancel()

	done := log.Timer("Background wake")
	scanned := s.wake(ctx)
	done()

	log.Info("Background wake finished", "scanned", scanned, "expired", ctx.Err() != nil)
	return scanned
}

func (s *SchedulerService) clamp(at time.Time) time.Time {
	earliest := s.now().Add(minimumLeadTime)
	if at.Before(earliest) {
		return earliest
	}
	return at
}

// Start begins the scheduler
func (s *SchedulerService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.log.Function("Start")

	if s.started {
		log.Info("Scheduler already started")
		return nil
	}

	log.Info("Starting scheduler", "jobCount", len(s.jobs))
	s.scheduler.StartAsync()
	s.started = true

	for _, job := range s.scheduler.Jobs() {
		log.Info("Job scheduled", "tags", job.Tags(), "nextRun", job.NextRun())
	}

	log.Info("Scheduler started successfully")
	return nil
}

// Stop gracefully shuts down the scheduler
func (s *SchedulerService) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.log.Function("Stop")

	if !s.started {
		log.Info("Scheduler not started, nothing to stop")
		return nil
	}

	log.Info("Stopping scheduler")

	// Cancel the context to signal running jobs to stop
	if s.cancel != nil {
		s.cancel()
	}

	s.scheduler.Stop()
	s.started = false

	log.Info("Scheduler stopped successfully")
	return nil
}

// IsRunning returns whether the scheduler is currently running
func (s *SchedulerService) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// GetJobCount returns the number of registered recurring jobs
func (s *SchedulerService) GetJobCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// NextWake returns the armed background wake time, if any
func (s *SchedulerService) NextWake() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.wakeAt == nil {
		return nil
	}
	at := *s.wakeAt
	return &at
}

// PendingReminders lists scheduled reminders ordered by time
func (s *SchedulerService) PendingReminders() []Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()

	reminders := make([]Reminder, 0, len(s.reminders))
	for _, reminder := range s.reminders {
		reminders = append(reminders, reminder)
	}
	sort.Slice(reminders, func(i, j int) bool {
		return reminders[i].At.Before(reminders[j].At)
	})
	return reminders
}

// TriggerJobByName manually executes a registered job by name
func (s *SchedulerService) TriggerJobByName(ctx context.Context, jobName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.log.Function("TriggerJobByName")

	var targetJob Job
	for _, job := range s.jobs {
		if job.Name() == jobName {
			targetJob = job
			break
		}
	}

	if targetJob == nil {
		return log.Error("job not found", "job", jobName)
	}

	go func() {
		log.Info("Manually triggering job", "job", jobName)
		if err := targetJob.Execute(ctx); err != nil {
			_ = log.Err("Manual job execution failed", err, "job", jobName)
		} else {
			log.Info("Manual job execution completed", "job", jobName)
		}
	}()

	return nil
}
