package collections

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestChannelReporter_DropsWhenFull(t *testing.T) {
	r := NewChannelReporter(1)
	owner := uuid.New()

	r.Report(newReport(owner, OpAddGame, errors.New("first")))
	r.Report(newReport(owner, OpAddGame, errors.New("second")))

	rep := <-r.Reports()
	assert.EqualError(t, rep.Err, "first")
	assert.Equal(t, "Failed to add game to collection", rep.Message)
	assert.Empty(t, r.Reports())
}

func TestLogReporter(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	r := NewLogReporter(zap.New(core))
	owner := uuid.New()

	r.Report(newReport(owner, OpDelete, ErrStore))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "Failed to delete collection", entry.Message)
	assert.Equal(t, owner.String(), entry.ContextMap()["owner_id"])
	assert.Equal(t, "delete_collection", entry.ContextMap()["op"])
}

func TestMultiReporter(t *testing.T) {
	a := NewChannelReporter(1)
	b := NewChannelReporter(1)

	MultiReporter{a, b}.Report(newReport(uuid.New(), OpRename, ErrInvalidName))

	assert.Len(t, a.Reports(), 1)
	assert.Len(t, b.Reports(), 1)
}
