// ABOUTME: Tests for the bounded event id set.
// ABOUTME: Validates membership, FIFO eviction and persistence order.

package dedupe

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet_MarkAndContains(t *testing.T) {
	s := New(10)
	assert.False(t, s.Contains("evt-1"))

	s.Mark("evt-1")
	s.Mark("evt-1")
	assert.True(t, s.Contains("evt-1"))
	assert.Equal(t, 1, s.Len())
}

func TestSet_EmptyIDIgnored(t *testing.T) {
	s := New(10)
	s.Mark("")
	assert.Equal(t, 0, s.Len())
}

func TestSet_EvictsOldestWhenFull(t *testing.T) {
	s := New(3)
	s.Mark("a")
	s.Mark("b")
	s.Mark("c")
	s.Mark("d")

	assert.False(t, s.Contains("a"), "oldest entry should be evicted")
	assert.True(t, s.Contains("d"))
	assert.Equal(t, []string{"b", "c", "d"}, s.IDs())
}

func TestSet_RemarkKeepsPosition(t *testing.T) {
	s := New(2)
	s.Mark("a")
	s.Mark("b")
	s.Mark("a")
	s.Mark("c")

	assert.Equal(t, []string{"b", "c"}, s.IDs())
}

func TestFromIDs_KeepsNewest(t *testing.T) {
	ids := make([]string, 0, 250)
	for i := range 250 {
		ids = append(ids, fmt.Sprintf("evt-%d", i))
	}

	s := FromIDs(ids, 0)
	assert.Equal(t, DefaultMaxIDs, s.Len())
	assert.False(t, s.Contains("evt-0"))
	assert.True(t, s.Contains("evt-249"))
	assert.Equal(t, "evt-50", s.IDs()[0])
}
