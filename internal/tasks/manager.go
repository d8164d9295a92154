// Package tasks runs named background jobs, either on an interval or on demand.
package tasks

import (
	"slices"
	"strings"
	"sync"
	"time"
)

const (
	MaxLogsPerTask = 1000

	// DefaultTimeout bounds a single run unless the task sets its own.
	DefaultTimeout = 5 * time.Minute
)

type Manager struct {
	tasks sync.Map
}

func NewManager() *Manager {
	return &Manager{}
}

// Register adds a task. With a positive interval the task is scheduled until it is
// unregistered.
func (m *Manager) Register(name string, interval, timeout time.Duration, fn TaskFunc) error {
	task := &RunnableTask{
		Name:         name,
		Interval:     interval,
		Timeout:      timeout,
		Handler:      fn,
		registeredAt: time.Now(),
		stop:         make(chan struct{}),
		logs:         make([]LogEntry, 0),
	}
	if _, loaded := m.tasks.LoadOrStore(name, task); loaded {
		return TaskExistsError{Name: name}
	}

	if interval > 0 {
		go m.scheduler(task)
	}
	return nil
}

// Unregister stops the scheduler of a task and forgets it. A run in progress completes.
func (m *Manager) Unregister(name string) error {
	t, ok := m.tasks.LoadAndDelete(name)
	if !ok {
		return TaskNotFoundError{Name: name}
	}
	t.(*RunnableTask).halt()
	return nil
}

// UnregisterPrefix removes every task whose name starts with prefix.
func (m *Manager) UnregisterPrefix(prefix string) int {
	var n int
	m.tasks.Range(func(key, _ any) bool {
		if name := key.(string); strings.HasPrefix(name, prefix) {
			if m.Unregister(name) == nil {
				n++
			}
		}
		return true
	})
	return n
}

// Trigger starts a run in the background.
func (m *Manager) Trigger(name string) error {
	t, ok := m.tasks.Load(name)
	if !ok {
		return TaskNotFoundError{Name: name}
	}
	task := t.(*RunnableTask)
	go task.Run()
	return nil
}

func (m *Manager) ListStatus() []TaskStatus {
	list := make([]TaskStatus, 0)
	m.tasks.Range(func(_, value any) bool {
		list = append(list, value.(*RunnableTask).Status())
		return true
	})
	slices.SortFunc(list, func(a, b TaskStatus) int {
		return strings.Compare(a.Name, b.Name)
	})
	return list
}

func (m *Manager) GetStatus(name string) (TaskStatus, error) {
	t, ok := m.tasks.Load(name)
	if !ok {
		return TaskStatus{}, TaskNotFoundError{Name: name}
	}
	return t.(*RunnableTask).Status(), nil
}

func (m *Manager) GetLogs(name string) ([]LogEntry, error) {
	t, ok := m.tasks.Load(name)
	if !ok {
		return nil, TaskNotFoundError{Name: name}
	}
	return t.(*RunnableTask).GetLogs(), nil
}

// Close stops all schedulers.
func (m *Manager) Close() {
	m.tasks.Range(func(key, value any) bool {
		m.tasks.Delete(key)
		value.(*RunnableTask).halt()
		return true
	})
}

func (m *Manager) scheduler(task *RunnableTask) {
	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-task.stop:
			return
		case <-ticker.C:
			task.Run()
		}
	}
}
