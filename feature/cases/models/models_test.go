package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSyncState(t *testing.T) {
	for _, valid := range []string{"synced", "pending", "conflict"} {
		state, err := ParseSyncState(valid)
		require.NoError(t, err)
		assert.Equal(t, SyncState(valid), state)
	}

	_, err := ParseSyncState("SYNCED")
	assert.Error(t, err)
	_, err = ParseSyncState("")
	assert.Error(t, err)
}

func TestFieldValueRender(t *testing.T) {
	assert.Equal(t, "hello", TextValue("hello").Render())
	assert.Equal(t, "3.5", NumberValue(3.5).Render())
	assert.Equal(t, "42", NumberValue(42).Render())
	assert.Equal(t, "true", BoolValue(true).Render())
	assert.Equal(t, "Login cases", LinkFieldValue("Login cases", []string{"rec2", "rec1"}).Render())
	assert.Equal(t, "rec1, rec2", LinkFieldValue("", []string{"rec2", "rec1"}).Render())
}

func TestFieldValueEqual(t *testing.T) {
	assert.True(t, TextValue("a").Equal(TextValue("a")))
	assert.False(t, TextValue("a").Equal(TextValue("b")))
	assert.False(t, TextValue("1").Equal(NumberValue(1)))

	// Link id order does not matter: ids are stored sorted.
	a := LinkFieldValue("x", []string{"rec2", "rec1"})
	b := LinkFieldValue("x", []string{"rec1", "rec2"})
	assert.True(t, a.Equal(b))

	c := LinkFieldValue("x", []string{"rec1"})
	assert.False(t, a.Equal(c))
}

func TestFieldMapSortedNames(t *testing.T) {
	m := FieldMap{
		"Title":    TextValue("t"),
		"Assignee": TextValue("a"),
		"Priority": NumberValue(1),
	}
	assert.Equal(t, []string{"Assignee", "Priority", "Title"}, m.SortedNames())
}

func TestFieldMapClone(t *testing.T) {
	m := FieldMap{"Link": LinkFieldValue("d", []string{"rec1"})}
	clone := m.Clone()

	clone["Link"].Link.RemoteIDs[0] = "mutated"
	assert.Equal(t, "rec1", m["Link"].Link.RemoteIDs[0])
}
