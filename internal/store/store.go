// ABOUTME: Store interfaces and data types for conversation persistence
// ABOUTME: Defines ConversationState, CustomerMemory, JobRecord and the keyed store contracts

package store

import (
	"context"
	"errors"
	"maps"
	"time"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("not found")

// ErrInvalidTransition is returned when a job status change is not allowed
// from the record's current status, or when the record moved on concurrently.
var ErrInvalidTransition = errors.New("invalid job status transition")

// Role identifies the author of a conversation message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single entry in a conversation's append-only history
type Message struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Well-known customer memory keys.
const (
	MemoryKeyLastOrderID    = "last_order_id"
	MemoryKeyLastTrackingID = "last_tracking_id"
	MemoryKeyCustomerName   = "customer_name"
)

// ExpiringMemoryKeys are evicted on read once older than the memory TTL.
var ExpiringMemoryKeys = []string{MemoryKeyLastOrderID, MemoryKeyLastTrackingID}

// DefaultMemoryTTL is how long expiring memory keys survive without being rewritten.
const DefaultMemoryTTL = 30 * 24 * time.Hour

// ConversationState is the durable state of one conversation, keyed by
// ConversationID (e.g. "whatsapp:+549..." or "web:<id>"). It is written
// back whole after every turn.
type ConversationState struct {
	ConversationID string    `json:"conversation_id"`
	CustomerID     string    `json:"customer_id,omitempty"`
	CustomerName   string    `json:"customer_name,omitempty"`
	Messages       []Message `json:"messages"`

	// RoutedDomain is the sticky domain tag chosen by the router.
	RoutedDomain string `json:"routed_domain,omitempty"`

	// Domain scratch fields
	RequestedBookingDate  string `json:"requested_booking_date,omitempty"`
	RequestedBookingStart string `json:"requested_booking_start,omitempty"`
	RequestedBookingEnd   string `json:"requested_booking_end,omitempty"`
	LastOrderID           string `json:"last_order_id,omitempty"`
	LastTrackingID        string `json:"last_tracking_id,omitempty"`
	LastBookingID         string `json:"last_booking_id,omitempty"`
	LastClaimID           string `json:"last_claim_id,omitempty"`

	// PendingMenu holds the domain tags of the last menu shown, in display order.
	PendingMenu []string `json:"pending_menu,omitempty"`

	CustomerMemory    map[string]string `json:"customer_memory,omitempty"`
	ProcessedEventIDs []string          `json:"processed_event_ids,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// NewConversationState returns an empty state for the given id
func NewConversationState(conversationID string) *ConversationState {
	return &ConversationState{
		ConversationID: conversationID,
		Messages:       []Message{},
		CustomerMemory: map[string]string{},
	}
}

// Clone returns a deep copy so callers can mutate it without touching the original.
func (s *ConversationState) Clone() *ConversationState {
	cp := *s
	cp.Messages = append([]Message(nil), s.Messages...)
	cp.PendingMenu = append([]string(nil), s.PendingMenu...)
	cp.ProcessedEventIDs = append([]string(nil), s.ProcessedEventIDs...)
	cp.CustomerMemory = maps.Clone(s.CustomerMemory)
	if cp.CustomerMemory == nil {
		cp.CustomerMemory = map[string]string{}
	}
	return &cp
}

// AppendMessage adds a message to the end of the history
func (s *ConversationState) AppendMessage(role Role, text string, at time.Time) {
	s.Messages = append(s.Messages, Message{Role: role, Text: text, CreatedAt: at})
}

// LastAssistantText returns the text of the most recent assistant message.
func (s *ConversationState) LastAssistantText() (string, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleAssistant {
			return s.Messages[i].Text, true
		}
	}
	return "", false
}

// CustomerMemory is the long-lived slot memory for one (project, customer) pair.
type CustomerMemory struct {
	ProjectID    string
	CustomerID   string
	Data         map[string]string
	KeyUpdatedAt map[string]time.Time // zero value means missing or unparsable
	UpdatedAt    time.Time
}

// filterExpired drops expiring keys whose last update is older than ttl.
// Keys without a per-key timestamp fall back to the record timestamp.
func filterExpired(mem *CustomerMemory, ttl time.Duration, now time.Time) {
	if ttl <= 0 {
		return
	}
	for _, key := range ExpiringMemoryKeys {
		if _, ok := mem.Data[key]; !ok {
			continue
		}
		ts, ok := mem.KeyUpdatedAt[key]
		if !ok {
			ts = mem.UpdatedAt
		}
		if ts.IsZero() || now.Sub(ts) > ttl {
			delete(mem.Data, key)
			delete(mem.KeyUpdatedAt, key)
		}
	}
}

// mergeKeyTimestamps computes per-key timestamps for a new payload. Values
// that did not change keep their previous timestamp.
func mergeKeyTimestamps(prevData map[string]string, prevTS map[string]time.Time, data map[string]string, now time.Time) map[string]time.Time {
	out := make(map[string]time.Time, len(data))
	for k, v := range data {
		if old, ok := prevData[k]; ok && old == v {
			if ts, ok := prevTS[k]; ok && !ts.IsZero() {
				out[k] = ts
				continue
			}
		}
		out[k] = now
	}
	return out
}

// JobStatus is the lifecycle state of an asynchronous turn
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Terminal reports whether no further transitions are possible
func (s JobStatus) Terminal() bool {
	return s == JobSucceeded || s == JobFailed
}

// CanTransition reports whether a job may move from one status to another.
// pending->failed covers jobs rejected by the worker pool before running.
func CanTransition(from, to JobStatus) bool {
	switch from {
	case JobPending:
		return to == JobRunning || to == JobFailed
	case JobRunning:
		return to == JobSucceeded || to == JobFailed
	default:
		return false
	}
}

// JobRecord tracks one scheduled turn
type JobRecord struct {
	JobID          string
	Status         JobStatus
	ConversationID string
	MessageID      string
	ResponseText   string
	ErrorText      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// JobUpdate describes a status transition and its result payload.
type JobUpdate struct {
	Status       JobStatus
	ResponseText string
	ErrorText    string
}

func (u JobUpdate) validate(from JobStatus) error {
	if !CanTransition(from, u.Status) {
		return ErrInvalidTransition
	}
	if u.ResponseText != "" && u.Status != JobSucceeded {
		return errors.New("response_text is only valid for succeeded jobs")
	}
	if u.ErrorText != "" && u.Status != JobFailed {
		return errors.New("error_text is only valid for failed jobs")
	}
	return nil
}

// ConversationStore persists ConversationState keyed by conversation id
type ConversationStore interface {
	// GetConversation returns ErrNotFound when no state exists for id.
	GetConversation(ctx context.Context, id string) (*ConversationState, error)
	// PutConversation overwrites the whole state.
	PutConversation(ctx context.Context, state *ConversationState) error
}

// MemoryStore persists CustomerMemory keyed by (project, customer)
type MemoryStore interface {
	// GetMemory returns ErrNotFound when nothing is stored. Expiring keys
	// older than the configured TTL are filtered out of the result.
	GetMemory(ctx context.Context, projectID, customerID string) (*CustomerMemory, error)
	UpsertMemory(ctx context.Context, projectID, customerID string, data map[string]string) (*CustomerMemory, error)
	DeleteMemory(ctx context.Context, projectID, customerID string) error
}

// JobStore persists JobRecords keyed by job id
type JobStore interface {
	CreateJob(ctx context.Context, job *JobRecord) error
	GetJob(ctx context.Context, id string) (*JobRecord, error)
	// TransitionJob applies update only if the job is currently in status from.
	TransitionJob(ctx context.Context, id string, from JobStatus, update JobUpdate) (*JobRecord, error)
}

// Store combines every store contract; SQLiteStore and MockStore implement it.
type Store interface {
	ConversationStore
	MemoryStore
	JobStore
	Close() error
}
