// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu            sync.RWMutex
	conversations map[string]*ConversationState // keyed by conversation ID
	memory        map[string]*CustomerMemory    // keyed by "projectID:customerID"
	jobs          map[string]*JobRecord         // keyed by job ID

	// MemoryTTL mirrors the SQLite store option; zero means DefaultMemoryTTL.
	MemoryTTL time.Duration
	// Now replaces time.Now when set.
	Now func() time.Time

	// PutErr, when set, is returned by PutConversation.
	PutErr error
	// PutCount counts successful PutConversation calls.
	PutCount int
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		conversations: make(map[string]*ConversationState),
		memory:        make(map[string]*CustomerMemory),
		jobs:          make(map[string]*JobRecord),
	}
}

func (m *MockStore) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func memoryKey(projectID, customerID string) string {
	return projectID + ":" + customerID
}

// GetConversation returns a copy of the stored state.
func (m *MockStore) GetConversation(ctx context.Context, id string) (*ConversationState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

// PutConversation stores a copy of state.
func (m *MockStore) PutConversation(ctx context.Context, state *ConversationState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.PutErr != nil {
		return m.PutErr
	}
	if state.ConversationID == "" {
		return errors.New("conversation_id is required")
	}
	state.UpdatedAt = m.now().UTC()
	m.conversations[state.ConversationID] = state.Clone()
	m.PutCount++
	return nil
}

// GetMemory returns a filtered copy of the customer's memory.
func (m *MockStore) GetMemory(ctx context.Context, projectID, customerID string) (*CustomerMemory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	mem, ok := m.memory[memoryKey(projectID, customerID)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := copyMemory(mem)
	ttl := m.MemoryTTL
	if ttl == 0 {
		ttl = DefaultMemoryTTL
	}
	filterExpired(cp, ttl, m.now())
	return cp, nil
}

// UpsertMemory replaces the customer's data, keeping timestamps of unchanged keys.
func (m *MockStore) UpsertMemory(ctx context.Context, projectID, customerID string, data map[string]string) (*CustomerMemory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := memoryKey(projectID, customerID)
	var prevData map[string]string
	var prevTS map[string]time.Time
	if prev, ok := m.memory[key]; ok {
		prevData, prevTS = prev.Data, prev.KeyUpdatedAt
	}

	now := m.now().UTC()
	mem := &CustomerMemory{
		ProjectID:    projectID,
		CustomerID:   customerID,
		Data:         maps.Clone(data),
		KeyUpdatedAt: mergeKeyTimestamps(prevData, prevTS, data, now),
		UpdatedAt:    now,
	}
	if mem.Data == nil {
		mem.Data = map[string]string{}
	}
	m.memory[key] = mem
	return copyMemory(mem), nil
}

// SetMemory stores a record verbatim, for tests that need old timestamps.
func (m *MockStore) SetMemory(mem *CustomerMemory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.memory[memoryKey(mem.ProjectID, mem.CustomerID)] = copyMemory(mem)
}

// DeleteMemory removes the customer's memory.
func (m *MockStore) DeleteMemory(ctx context.Context, projectID, customerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.memory, memoryKey(projectID, customerID))
	return nil
}

func copyMemory(mem *CustomerMemory) *CustomerMemory {
	cp := *mem
	cp.Data = maps.Clone(mem.Data)
	cp.KeyUpdatedAt = maps.Clone(mem.KeyUpdatedAt)
	if cp.Data == nil {
		cp.Data = map[string]string{}
	}
	if cp.KeyUpdatedAt == nil {
		cp.KeyUpdatedAt = map[string]time.Time{}
	}
	return &cp
}

// CreateJob stores a new pending job.
func (m *MockStore) CreateJob(ctx context.Context, job *JobRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if job.JobID == "" {
		return errors.New("job_id is required")
	}
	if _, exists := m.jobs[job.JobID]; exists {
		return fmt.Errorf("job %s already exists", job.JobID)
	}
	if job.Status == "" {
		job.Status = JobPending
	}
	if job.Status != JobPending {
		return fmt.Errorf("%w: jobs are created pending, got %s", ErrInvalidTransition, job.Status)
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = m.now().UTC()
	}
	job.UpdatedAt = job.CreatedAt

	j := *job
	m.jobs[j.JobID] = &j
	return nil
}

// GetJob returns a copy of the job.
func (m *MockStore) GetJob(ctx context.Context, id string) (*JobRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	result := *j
	return &result, nil
}

// TransitionJob applies update when the job is currently in status from.
func (m *MockStore) TransitionJob(ctx context.Context, id string, from JobStatus, update JobUpdate) (*JobRecord, error) {
	if err := update.validate(from); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	if j.Status != from {
		return nil, ErrInvalidTransition
	}
	j.Status = update.Status
	j.ResponseText = update.ResponseText
	j.ErrorText = update.ErrorText
	j.UpdatedAt = m.now().UTC()

	result := *j
	return &result, nil
}

// Close is a no-op.
func (m *MockStore) Close() error {
	return nil
}

var _ Store = (*MockStore)(nil)
