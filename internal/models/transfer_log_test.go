package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkSending(t *testing.T) {
	entry := &TransferLog{Status: StatusPending}
	require.NoError(t, entry.MarkSending())
	assert.Equal(t, StatusSending, entry.Status)

	// Only pending entries may start sending.
	assert.Error(t, entry.MarkSending())

	done := &TransferLog{Status: StatusSuccess}
	assert.Error(t, done.MarkSending())
}

func TestMarkCompletedStampsCompletion(t *testing.T) {
	entry := &TransferLog{Status: StatusSending, CreatedAt: time.Now().UTC()}
	require.Nil(t, entry.CompletedAt)
	require.Nil(t, entry.Duration())

	require.NoError(t, entry.MarkCompleted(StatusSuccess, "", nil))
	assert.Equal(t, StatusSuccess, entry.Status)
	require.NotNil(t, entry.CompletedAt)
	require.NotNil(t, entry.Duration())
	assert.Empty(t, entry.ErrorMessage)
}

func TestMarkCompletedRejectsNonTerminalStatus(t *testing.T) {
	entry := &TransferLog{Status: StatusSending}
	assert.Error(t, entry.MarkCompleted(StatusPending, "", nil))
	assert.Error(t, entry.MarkCompleted(StatusSending, "", nil))
	assert.Nil(t, entry.CompletedAt)
}

func TestMarkCompletedOnlyOnce(t *testing.T) {
	entry := &TransferLog{Status: StatusSending}
	require.NoError(t, entry.MarkCompleted(StatusFailed, "association refused", nil))
	first := entry.CompletedAt

	assert.Error(t, entry.MarkCompleted(StatusSuccess, "", nil))
	assert.Equal(t, StatusFailed, entry.Status)
	assert.Equal(t, first, entry.CompletedAt)
	assert.Equal(t, "association refused", entry.ErrorMessage)
}

func TestMarkCompletedMergesDetails(t *testing.T) {
	entry := &TransferLog{
		Status: StatusSending,
		Details: JSONMap{
			"series_id": "abc_1.2.3",
			"files":     []string{"/tmp/a.dcm"},
		},
	}

	require.NoError(t, entry.MarkCompleted(StatusSuccess, "", JSONMap{
		"files":             []string{"/tmp/a.dcm", "/tmp/b.dcm"},
		"files_transferred": 2,
	}))

	// Existing keys survive, colliding keys take the newer value.
	assert.Equal(t, "abc_1.2.3", entry.Details["series_id"])
	assert.Equal(t, []string{"/tmp/a.dcm", "/tmp/b.dcm"}, entry.Details["files"])
	assert.Equal(t, 2, entry.Details["files_transferred"])
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, (&TransferLog{Status: StatusPending}).IsTerminal())
	assert.False(t, (&TransferLog{Status: StatusSending}).IsTerminal())
	assert.True(t, (&TransferLog{Status: StatusSuccess}).IsTerminal())
	assert.True(t, (&TransferLog{Status: StatusFailed}).IsTerminal())
}

func TestAsMapRoundTrip(t *testing.T) {
	m := AsMap(SendDetails{
		SeriesID: "s1",
		Files:    []string{"/tmp/a.dcm"},
	})
	assert.Equal(t, "s1", m["series_id"])
	// Omitted optional fields stay out of the bag entirely.
	assert.NotContains(t, m, "storescu_output")
	assert.NotContains(t, m, "files_transferred")
}
