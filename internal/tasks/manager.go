// Package tasks runs generation jobs in the background: a FIFO queue
// drained by a bounded worker pool, with cooperative cancellation and
// periodic cleanup of finished jobs.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"soulmedia/internal/entity/dto"
)

// State is the lifecycle state of a background task.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

func (s State) terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Type identifies what a task does.
type Type string

const (
	TypeVariantGeneration  Type = "variant_generation"
	TypeLocationGeneration Type = "location_generation"
)

// ParseType validates a task type string.
func ParseType(raw string) (Type, error) {
	switch Type(raw) {
	case TypeVariantGeneration, TypeLocationGeneration:
		return Type(raw), nil
	default:
		return "", fmt.Errorf("unknown task type %q", raw)
	}
}

// Runner executes the work a task wraps. The delivery engine satisfies
// this.
type Runner interface {
	RequestVariantWithProgress(ctx context.Context, req dto.VariantRequest, report func(int)) (*dto.VariantResponse, error)
	RequestLocationVariantWithProgress(ctx context.Context, req dto.LocationVariantRequest, report func(int)) (*dto.LocationVariantResponse, error)
}

type task struct {
	id          string
	taskType    Type
	params      map[string]string
	state       State
	progress    int
	result      interface{}
	err         string
	createdAt   time.Time
	startedAt   time.Time
	completedAt time.Time
	cancel      context.CancelFunc
}

// Options tune the manager.
type Options struct {
	Concurrency   int64
	Retention     time.Duration
	SweepInterval time.Duration
	QueueSize     int
}

const (
	defaultConcurrency   = 3
	defaultRetention     = time.Hour
	defaultSweepInterval = 5 * time.Minute
	defaultQueueSize     = 256
)

// Manager owns the task table, the queue, and the worker pool.
type Manager struct {
	runner Runner

	mu    sync.Mutex
	tasks map[string]*task

	queue chan string
	sem   *semaphore.Weighted

	retention time.Duration
	sweep     time.Duration

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager creates a manager and starts its dispatcher and sweeper.
func NewManager(runner Runner, opts Options) *Manager {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.Retention <= 0 {
		opts.Retention = defaultRetention
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = defaultSweepInterval
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}

	ctx, stop := context.WithCancel(context.Background())
	m := &Manager{
		runner:    runner,
		tasks:     make(map[string]*task),
		queue:     make(chan string, opts.QueueSize),
		sem:       semaphore.NewWeighted(opts.Concurrency),
		retention: opts.Retention,
		sweep:     opts.SweepInterval,
		baseCtx:   ctx,
		stop:      stop,
	}

	m.wg.Add(2)
	go m.dispatchLoop()
	go m.sweepLoop()
	return m
}

// Close stops the dispatcher and sweeper and waits for in-flight tasks.
func (m *Manager) Close() {
	m.stop()
	m.wg.Wait()
}

// Create registers a new pending task and returns its ID. The task does
// not run until Start is called.
func (m *Manager) Create(taskType Type, params map[string]string) (string, error) {
	if _, err := ParseType(string(taskType)); err != nil {
		return "", err
	}
	if params == nil {
		params = map[string]string{}
	}

	id := uuid.NewString()
	m.mu.Lock()
	m.tasks[id] = &task{
		id:        id,
		taskType:  taskType,
		params:    params,
		state:     StatePending,
		createdAt: time.Now(),
	}
	m.mu.Unlock()
	return id, nil
}

// Start enqueues a pending task for execution.
func (m *Manager) Start(id string) error {
	m.mu.Lock()
	t, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("task %q not found", id)
	}
	if t.state != StatePending {
		m.mu.Unlock()
		return fmt.Errorf("task %q is %s, not pending", id, t.state)
	}
	m.mu.Unlock()

	select {
	case m.queue <- id:
		logrus.WithFields(logrus.Fields{
			"task_id": id,
			"queued":  len(m.queue),
		}).Info("task queued")
		return nil
	default:
		return errors.New("task queue is full")
	}
}

// Submit creates and enqueues a task in one step.
func (m *Manager) Submit(taskType Type, params map[string]string) (string, error) {
	id, err := m.Create(taskType, params)
	if err != nil {
		return "", err
	}
	if err := m.Start(id); err != nil {
		return "", err
	}
	return id, nil
}

// Cancel requests cancellation. It returns false when the task is
// unknown or already finished. A running task is interrupted through
// its context; a pending one never starts.
func (m *Manager) Cancel(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok || t.state.terminal() {
		return false
	}

	t.state = StateCancelled
	t.completedAt = time.Now()
	if t.cancel != nil {
		t.cancel()
	}
	logrus.WithField("task_id", id).Info("task cancelled")
	return true
}

// Get returns the client view of one task.
func (m *Manager) Get(id string) (*dto.TaskStatusResponse, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		return nil, false
	}
	return t.toStatus(), true
}

// List returns all tasks, newest first. An empty state filters nothing.
func (m *Manager) List(state State) []dto.TaskStatusResponse {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]dto.TaskStatusResponse, 0, len(m.tasks))
	for _, t := range m.tasks {
		if state != "" && t.state != state {
			continue
		}
		out = append(out, *t.toStatus())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt > out[j].CreatedAt
	})
	return out
}

func (m *Manager) dispatchLoop() {
	defer m.wg.Done()
	for {
		select {
		case <-m.baseCtx.Done():
			return
		case id := <-m.queue:
			// Admission stays FIFO: the next task is not pulled off
			// the queue until a worker slot frees up.
			if err := m.sem.Acquire(m.baseCtx, 1); err != nil {
				return
			}
			m.wg.Add(1)
			go func(id string) {
				defer m.wg.Done()
				defer m.sem.Release(1)
				m.run(id)
			}(id)
		}
	}
}

func (m *Manager) run(id string) {
	m.mu.Lock()
	t, ok := m.tasks[id]
	if !ok || t.state != StatePending {
		// Cancelled (or swept) while waiting in the queue.
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(m.baseCtx)
	t.state = StateRunning
	t.startedAt = time.Now()
	t.cancel = cancel
	taskType := t.taskType
	params := t.params
	m.mu.Unlock()
	defer cancel()

	report := func(p int) { m.setProgress(id, p) }

	var result interface{}
	var err error
	switch taskType {
	case TypeVariantGeneration:
		result, err = m.runner.RequestVariantWithProgress(ctx, dto.VariantRequest{
			PersonaID: params["persona_id"],
			Cue:       params["cue"],
			UserID:    params["user_id"],
			Kind:      params["kind"],
			IdemKey:   params["idem_key"],
		}, report)
	case TypeLocationGeneration:
		result, err = m.runner.RequestLocationVariantWithProgress(ctx, dto.LocationVariantRequest{
			PersonaID: params["persona_id"],
			Group:     params["group"],
			Mood:      params["mood"],
			UserID:    params["user_id"],
			Kind:      params["kind"],
			IdemKey:   params["idem_key"],
		}, report)
	default:
		err = fmt.Errorf("unknown task type %q", taskType)
	}

	m.finish(id, result, err)
}

func (m *Manager) finish(id string, result interface{}, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		return
	}
	if t.state == StateCancelled {
		// Cancel already closed the task; keep its state.
		return
	}
	t.completedAt = time.Now()
	switch {
	case err == nil:
		t.state = StateCompleted
		t.progress = 100
		t.result = result
		logrus.WithField("task_id", id).Info("task completed")
	case errors.Is(err, context.Canceled):
		t.state = StateCancelled
		logrus.WithField("task_id", id).Info("task cancelled mid-run")
	default:
		t.state = StateFailed
		t.err = err.Error()
		logrus.WithFields(logrus.Fields{
			"task_id": id,
			"error":   err,
		}).Warn("task failed")
	}
}

func (m *Manager) setProgress(id string, progress int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tasks[id]; ok && t.state == StateRunning {
		t.progress = progress
	}
}

func (m *Manager) sweepLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.sweep)
	defer ticker.Stop()
	for {
		select {
		case <-m.baseCtx.Done():
			return
		case <-ticker.C:
			if removed := m.sweepOnce(time.Now()); removed > 0 {
				logrus.WithField("removed", removed).Info("swept finished tasks")
			}
		}
	}
}

// sweepOnce drops terminal tasks whose completion is older than the
// retention window.
func (m *Manager) sweepOnce(now time.Time) int {
	cutoff := now.Add(-m.retention)
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, t := range m.tasks {
		if t.state.terminal() && !t.completedAt.IsZero() && t.completedAt.Before(cutoff) {
			delete(m.tasks, id)
			removed++
		}
	}
	return removed
}

func (t *task) toStatus() *dto.TaskStatusResponse {
	status := &dto.TaskStatusResponse{
		TaskID:    t.id,
		Type:      string(t.taskType),
		State:     string(t.state),
		Progress:  t.progress,
		Params:    t.params,
		Result:    t.result,
		Error:     t.err,
		CreatedAt: t.createdAt.Format(time.RFC3339Nano),
	}
	if !t.startedAt.IsZero() {
		status.StartedAt = t.startedAt.Format(time.RFC3339Nano)
	}
	if !t.completedAt.IsZero() {
		status.CompletedAt = t.completedAt.Format(time.RFC3339Nano)
	}
	return status
}
