package collections

import (
	"time"

	"github.com/dimitrije/gamevault-api/internal/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Op string

const (
	OpCreate     Op = "create_collection"
	OpRename     Op = "rename_collection"
	OpUpdate     Op = "update_collection"
	OpDelete     Op = "delete_collection"
	OpAddGame    Op = "add_game"
	OpRemoveGame Op = "remove_game"
)

var opMessages = map[Op]string{
	OpCreate:     "Failed to create collection",
	OpRename:     "Failed to rename collection",
	OpUpdate:     "Failed to update collection",
	OpDelete:     "Failed to delete collection",
	OpAddGame:    "Failed to add game to collection",
	OpRemoveGame: "Failed to remove game from collection",
}

// Report is one failed mutation, phrased for display to the user.
type Report struct {
	OwnerID uuid.UUID
	Op      Op
	Message string
	Err     error
	At      time.Time
}

func newReport(ownerID uuid.UUID, op Op, err error) Report {
	msg, ok := opMessages[op]
	if !ok {
		msg = "Collection operation failed"
	}
	return Report{OwnerID: ownerID, Op: op, Message: msg, Err: err, At: time.Now()}
}

// Reporter receives every failed mutation. Implementations must not block.
type Reporter interface {
	Report(r Report)
}

type nopReporter struct{}

func (nopReporter) Report(Report) {}

// ChannelReporter delivers reports on a buffered channel and drops them when
// nobody keeps up.
type ChannelReporter struct {
	ch chan Report
}

func NewChannelReporter(size int) *ChannelReporter {
	return &ChannelReporter{ch: make(chan Report, size)}
}

func (r *ChannelReporter) Report(rep Report) {
	select {
	case r.ch <- rep:
	default:
	}
}

func (r *ChannelReporter) Reports() <-chan Report {
	return r.ch
}

// LogReporter logs reports and counts them per operation.
type LogReporter struct {
	logger *zap.Logger
}

func NewLogReporter(logger *zap.Logger) *LogReporter {
	return &LogReporter{logger: logger}
}

func (r *LogReporter) Report(rep Report) {
	metrics.MutationErrors.WithLabelValues(string(rep.Op)).Inc()
	r.logger.Warn(rep.Message,
		zap.String("owner_id", rep.OwnerID.String()),
		zap.String("op", string(rep.Op)),
		zap.Error(rep.Err),
	)
}

// MultiReporter fans a report out to several reporters.
type MultiReporter []Reporter

func (m MultiReporter) Report(rep Report) {
	for _, r := range m {
		r.Report(rep)
	}
}
