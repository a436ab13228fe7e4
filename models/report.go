package models

import (
	"fmt"
	"strings"
	"time"
)

// TargetKind names the kind of content a vote, deletion or report acts on.
type TargetKind string

const (
	KindThread TargetKind = "thread"
	KindReply  TargetKind = "reply"
)

// ParseTargetKind validates a kind coming from external input.
func ParseTargetKind(s string) (TargetKind, error) {
	switch TargetKind(strings.ToLower(s)) {
	case KindThread:
		return KindThread, nil
	case KindReply:
		return KindReply, nil
	}
	return "", fmt.Errorf("%w: unknown target kind %q", ErrInvalidTarget, s)
}

// Target is either a thread or a reply, never both and never neither.
// The zero value is invalid.
type Target struct {
	kind TargetKind
	id   int64
}

// ThreadTarget references a thread.
func ThreadTarget(id int64) Target { return Target{kind: KindThread, id: id} }

// ReplyTarget references a reply.
func ReplyTarget(id int64) Target { return Target{kind: KindReply, id: id} }

// NewTarget builds a target from a kind and an id.
func NewTarget(kind TargetKind, id int64) (Target, error) {
	if id <= 0 {
		return Target{}, fmt.Errorf("%w: id %d", ErrInvalidTarget, id)
	}
	switch kind {
	case KindThread, KindReply:
		return Target{kind: kind, id: id}, nil
	}
	return Target{}, fmt.Errorf("%w: unknown target kind %q", ErrInvalidTarget, kind)
}

// TargetFromRefs rebuilds a target from the two nullable references a
// relational row carries. Zero means unset; exactly one must be set.
func TargetFromRefs(threadID, replyID int64) (Target, error) {
	switch {
	case threadID > 0 && replyID > 0:
		return Target{}, fmt.Errorf("%w: both thread %d and reply %d set", ErrInvalidTarget, threadID, replyID)
	case threadID > 0:
		return ThreadTarget(threadID), nil
	case replyID > 0:
		return ReplyTarget(replyID), nil
	}
	return Target{}, fmt.Errorf("%w: neither thread nor reply set", ErrInvalidTarget)
}

func (t Target) Kind() TargetKind { return t.kind }
func (t Target) ID() int64        { return t.id }

// Valid reports whether the target was built by one of the constructors.
func (t Target) Valid() bool {
	return (t.kind == KindThread || t.kind == KindReply) && t.id > 0
}

// Refs splits the target into (threadID, replyID) with zero for the unset side.
func (t Target) Refs() (threadID, replyID int64) {
	if t.kind == KindThread {
		return t.id, 0
	}
	return 0, t.id
}

// Key is a stable string form used for lock maps and log lines.
func (t Target) Key() string {
	return fmt.Sprintf("%s:%d", t.kind, t.id)
}

func (t Target) String() string { return t.Key() }

// ReportStatus is PENDING until staff resolves the report.
type ReportStatus string

const (
	ReportPending  ReportStatus = "PENDING"
	ReportResolved ReportStatus = "RESOLVED"
)

// Rank orders statuses for the moderation queue: pending first.
func (s ReportStatus) Rank() int {
	if s == ReportPending {
		return 0
	}
	return 1
}

// Report is a user complaint about a thread or reply.
type Report struct {
	ID         string       `db:"id"`
	ReporterID int64        `db:"reporter_id"`
	Target     Target       // immutable once created
	Reason     string       `db:"reason"`
	Status     ReportStatus `db:"status"`
	CreatedAt  time.Time    `db:"created_at"`
}

// NewReport validates and builds a pending report.
func NewReport(id string, reporterID int64, target Target, reason string, now time.Time) (Report, error) {
	if !target.Valid() {
		return Report{}, fmt.Errorf("%w: %v", ErrInvalidTarget, target)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Report{}, fmt.Errorf("%w: report reason is empty", ErrInvalidFilter)
	}
	return Report{
		ID:         id,
		ReporterID: reporterID,
		Target:     target,
		Reason:     reason,
		Status:     ReportPending,
		CreatedAt:  now,
	}, nil
}
