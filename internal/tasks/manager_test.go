package tasks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"soulmedia/internal/entity/dto"
)

// stubRunner blocks each call until released, so tests can observe
// intermediate states.
type stubRunner struct {
	mu         sync.Mutex
	active     int
	maxActive  int
	started    chan string
	release    chan struct{}
	variantErr error
}

func newStubRunner() *stubRunner {
	return &stubRunner{
		started: make(chan string, 16),
		release: make(chan struct{}),
	}
}

func (s *stubRunner) enter(id string) {
	s.mu.Lock()
	s.active++
	if s.active > s.maxActive {
		s.maxActive = s.active
	}
	s.mu.Unlock()
	s.started <- id
}

func (s *stubRunner) exit() {
	s.mu.Lock()
	s.active--
	s.mu.Unlock()
}

func (s *stubRunner) RequestVariantWithProgress(ctx context.Context, req dto.VariantRequest, report func(int)) (*dto.VariantResponse, error) {
	s.enter(req.Cue)
	defer s.exit()
	report(50)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.release:
	}
	if s.variantErr != nil {
		return nil, s.variantErr
	}
	return &dto.VariantResponse{VariantID: "v-" + req.Cue, AssetURL: "/files/x.png"}, nil
}

func (s *stubRunner) RequestLocationVariantWithProgress(ctx context.Context, req dto.LocationVariantRequest, report func(int)) (*dto.LocationVariantResponse, error) {
	s.enter(req.Group)
	defer s.exit()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.release:
	}
	return &dto.LocationVariantResponse{VariantID: "loc-" + req.Group, SelectedLocation: "eiffel_tower"}, nil
}

func waitForState(t *testing.T, m *Manager, id string, want State) *dto.TaskStatusResponse {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		status, ok := m.Get(id)
		if ok && status.State == string(want) {
			return status
		}
		select {
		case <-deadline:
			t.Fatalf("task %s never reached %s (last: %+v)", id, want, status)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestSubmitRunsVariantTask(t *testing.T) {
	runner := newStubRunner()
	m := NewManager(runner, Options{Concurrency: 1})
	defer m.Close()

	id, err := m.Submit(TypeVariantGeneration, map[string]string{
		"persona_id": "nova",
		"cue":        "penguin",
		"user_id":    "u1",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	<-runner.started
	waitForState(t, m, id, StateRunning)
	deadline := time.After(5 * time.Second)
	for {
		status, _ := m.Get(id)
		if status.Progress == 50 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("progress never reached 50, last %d", status.Progress)
		case <-time.After(5 * time.Millisecond):
		}
	}

	close(runner.release)
	status := waitForState(t, m, id, StateCompleted)
	if status.Progress != 100 {
		t.Errorf("completed progress = %d, want 100", status.Progress)
	}
	resp, ok := status.Result.(*dto.VariantResponse)
	if !ok || resp.VariantID != "v-penguin" {
		t.Errorf("result = %+v", status.Result)
	}
	if status.StartedAt == "" || status.CompletedAt == "" {
		t.Error("timestamps missing on finished task")
	}
}

func TestTaskFailureRecordsError(t *testing.T) {
	runner := newStubRunner()
	runner.variantErr = errors.New("backend exploded")
	m := NewManager(runner, Options{Concurrency: 1})
	defer m.Close()

	id, err := m.Submit(TypeVariantGeneration, map[string]string{"cue": "x"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	<-runner.started
	close(runner.release)

	status := waitForState(t, m, id, StateFailed)
	if status.Error != "backend exploded" {
		t.Errorf("error = %q", status.Error)
	}
}

func TestCancelPendingTaskNeverRuns(t *testing.T) {
	runner := newStubRunner()
	m := NewManager(runner, Options{Concurrency: 1})
	defer m.Close()

	id, err := m.Create(TypeVariantGeneration, map[string]string{"cue": "x"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !m.Cancel(id) {
		t.Fatal("cancel of a pending task should succeed")
	}
	if err := m.Start(id); err == nil {
		t.Error("starting a cancelled task should fail")
	}

	status, _ := m.Get(id)
	if status.State != string(StateCancelled) {
		t.Errorf("state = %s, want cancelled", status.State)
	}
	if runner.maxActive != 0 {
		t.Error("cancelled task still executed")
	}
}

func TestCancelRunningTaskInterrupts(t *testing.T) {
	runner := newStubRunner()
	m := NewManager(runner, Options{Concurrency: 1})
	defer m.Close()

	id, err := m.Submit(TypeLocationGeneration, map[string]string{"group": "paris"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	<-runner.started

	if !m.Cancel(id) {
		t.Fatal("cancel of a running task should succeed")
	}
	status := waitForState(t, m, id, StateCancelled)
	if status.Result != nil {
		t.Error("cancelled task should carry no result")
	}

	// A second cancel is a no-op on a terminal task.
	if m.Cancel(id) {
		t.Error("cancel of a finished task should return false")
	}
}

func TestConcurrencyCap(t *testing.T) {
	runner := newStubRunner()
	m := NewManager(runner, Options{Concurrency: 2})
	defer m.Close()

	for i := 0; i < 4; i++ {
		if _, err := m.Submit(TypeVariantGeneration, map[string]string{"cue": string(rune('a' + i))}); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}

	<-runner.started
	<-runner.started
	// Give the dispatcher a chance to overshoot if it were going to.
	time.Sleep(50 * time.Millisecond)

	runner.mu.Lock()
	max := runner.maxActive
	runner.mu.Unlock()
	if max > 2 {
		t.Errorf("max concurrent = %d, want <= 2", max)
	}

	close(runner.release)
	for _, status := range m.List("") {
		waitForState(t, m, status.TaskID, StateCompleted)
	}
}

func TestCreateRejectsUnknownType(t *testing.T) {
	m := NewManager(newStubRunner(), Options{})
	defer m.Close()

	if _, err := m.Create(Type("teleportation"), nil); err == nil {
		t.Error("expected error for unknown task type")
	}
	if _, err := m.Submit(Type(""), nil); err == nil {
		t.Error("expected error for empty task type")
	}
}

func TestGetUnknownTask(t *testing.T) {
	m := NewManager(newStubRunner(), Options{})
	defer m.Close()

	if _, ok := m.Get("nope"); ok {
		t.Error("expected miss for unknown task id")
	}
}

func TestSweepDropsOldFinishedTasks(t *testing.T) {
	m := NewManager(newStubRunner(), Options{Retention: time.Hour})
	defer m.Close()

	oldID, _ := m.Create(TypeVariantGeneration, nil)
	freshID, _ := m.Create(TypeVariantGeneration, nil)
	runningID, _ := m.Create(TypeVariantGeneration, nil)

	now := time.Now()
	m.mu.Lock()
	m.tasks[oldID].state = StateCompleted
	m.tasks[oldID].completedAt = now.Add(-2 * time.Hour)
	m.tasks[freshID].state = StateCompleted
	m.tasks[freshID].completedAt = now.Add(-time.Minute)
	m.tasks[runningID].state = StateRunning
	m.mu.Unlock()

	if removed := m.sweepOnce(now); removed != 1 {
		t.Errorf("swept %d tasks, want 1", removed)
	}
	if _, ok := m.Get(oldID); ok {
		t.Error("expired task survived the sweep")
	}
	if _, ok := m.Get(freshID); !ok {
		t.Error("fresh task was swept")
	}
	if _, ok := m.Get(runningID); !ok {
		t.Error("running task was swept")
	}
}

func TestListFiltersAndOrders(t *testing.T) {
	m := NewManager(newStubRunner(), Options{})
	defer m.Close()

	first, _ := m.Create(TypeVariantGeneration, nil)
	second, _ := m.Create(TypeLocationGeneration, nil)

	m.mu.Lock()
	m.tasks[first].createdAt = time.Now().Add(-time.Minute)
	m.tasks[second].state = StateCancelled
	m.mu.Unlock()

	all := m.List("")
	if len(all) != 2 {
		t.Fatalf("list len = %d, want 2", len(all))
	}
	if all[0].TaskID != second {
		t.Error("list not ordered newest first")
	}

	cancelled := m.List(StateCancelled)
	if len(cancelled) != 1 || cancelled[0].TaskID != second {
		t.Errorf("filtered list = %+v", cancelled)
	}
}
