// ABOUTME: Unit tests for MockStore to ensure behavior matches SQLiteStore
// ABOUTME: Focuses on copy semantics and memory timestamp handling

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockStore_ConversationIsCopied(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()

	state := NewConversationState("web:1")
	state.AppendMessage(RoleUser, "hola", time.Now())
	require.NoError(t, store.PutConversation(ctx, state))

	// Mutating the caller's value must not change the stored one.
	state.AppendMessage(RoleAssistant, "hola!", time.Now())

	got, err := store.GetConversation(ctx, "web:1")
	require.NoError(t, err)
	assert.Len(t, got.Messages, 1)
	assert.Equal(t, 1, store.PutCount)
}

func TestMockStore_PutErr(t *testing.T) {
	store := NewMockStore()
	store.PutErr = errors.New("disk full")

	err := store.PutConversation(context.Background(), NewConversationState("web:1"))
	require.Error(t, err)
	_, err = store.GetConversation(context.Background(), "web:1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMockStore_MemoryTTL(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	store := NewMockStore()
	store.Now = func() time.Time { return now }
	ctx := context.Background()

	store.SetMemory(&CustomerMemory{
		ProjectID:  "p1",
		CustomerID: "c1",
		Data: map[string]string{
			MemoryKeyLastOrderID:  "ORDER-1001",
			MemoryKeyCustomerName: "Ana",
		},
		KeyUpdatedAt: map[string]time.Time{
			MemoryKeyLastOrderID: now.Add(-31 * 24 * time.Hour),
		},
		UpdatedAt: now.Add(-31 * 24 * time.Hour),
	})

	got, err := store.GetMemory(ctx, "p1", "c1")
	require.NoError(t, err)
	assert.NotContains(t, got.Data, MemoryKeyLastOrderID)
	assert.Equal(t, "Ana", got.Data[MemoryKeyCustomerName])
}

func TestMockStore_UpsertKeepsUnchangedTimestamps(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	store := NewMockStore()
	store.Now = func() time.Time { return now }
	ctx := context.Background()

	first, err := store.UpsertMemory(ctx, "p1", "c1", map[string]string{MemoryKeyLastOrderID: "ORDER-1"})
	require.NoError(t, err)

	now = now.Add(time.Hour)
	second, err := store.UpsertMemory(ctx, "p1", "c1", map[string]string{
		MemoryKeyLastOrderID:    "ORDER-1",
		MemoryKeyLastTrackingID: "TRACK-1",
	})
	require.NoError(t, err)

	assert.Equal(t, first.KeyUpdatedAt[MemoryKeyLastOrderID], second.KeyUpdatedAt[MemoryKeyLastOrderID])
	assert.Equal(t, now, second.KeyUpdatedAt[MemoryKeyLastTrackingID])
}

func TestMockStore_JobTransitions(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()

	require.NoError(t, store.CreateJob(ctx, &JobRecord{JobID: "j1", ConversationID: "web:1"}))
	assert.Error(t, store.CreateJob(ctx, &JobRecord{JobID: "j1", ConversationID: "web:1"}))

	_, err := store.TransitionJob(ctx, "j1", JobRunning, JobUpdate{Status: JobSucceeded})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = store.TransitionJob(ctx, "j1", JobPending, JobUpdate{Status: JobRunning})
	require.NoError(t, err)
	got, err := store.TransitionJob(ctx, "j1", JobRunning, JobUpdate{Status: JobFailed, ErrorText: "boom"})
	require.NoError(t, err)
	assert.Equal(t, JobFailed, got.Status)
	assert.True(t, got.Status.Terminal())
}
