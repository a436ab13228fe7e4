package models

import "time"

// Category groups threads; listings are always scoped to one category.
type Category struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
	Slug string `db:"slug"`
}

// Thread represents a forum thread as stored in the database.
type Thread struct {
	ID          int64     `db:"id"`
	CategoryID  int64     `db:"category_id"`
	Title       string    `db:"title"`
	RawContent  string    `db:"raw_content"`
	Content     string    `db:"content"` // rendered body
	AuthorID    int64     `db:"author_id"`
	CreatedAt   time.Time `db:"created_at"`
	UpvoteCount int       `db:"upvote_count"`
	IsLocked    bool      `db:"is_locked"`
	IsDeleted   bool      `db:"is_deleted"`
	Tags        []string  // tag display names, e.g. "#exams"
	CourseIDs   []int64   // tagged courses
}

// Reply is an answer posted under a thread.
type Reply struct {
	ID          int64     `db:"id"`
	ThreadID    int64     `db:"thread_id"`
	AuthorID    int64     `db:"author_id"`
	RawContent  string    `db:"raw_content"`
	Content     string    `db:"content"`
	CreatedAt   time.Time `db:"created_at"`
	UpvoteCount int       `db:"upvote_count"`
	IsDeleted   bool      `db:"is_deleted"`
}

// Tag is a label attached to threads. Names are unique and start with '#'.
type Tag struct {
	ID    int64  `db:"id"`
	Name  string `db:"name"`
	Color string `db:"color"`
}

// TagUsage is a tag together with the number of threads carrying it.
type TagUsage struct {
	Tag
	Threads int
}

// NewThread holds the fields supplied when a thread is submitted.
type NewThread struct {
	CategoryID int64
	AuthorID   int64
	Title      string
	RawContent string
	Content    string
	Tags       []string
	CourseIDs  []int64
	CreatedAt  time.Time
}

// NewReply holds the fields supplied when a reply is submitted.
type NewReply struct {
	ThreadID   int64
	AuthorID   int64
	RawContent string
	Content    string
	CreatedAt  time.Time
}

// ThreadState is the moderation view of a thread or reply.
type ThreadState string

const (
	StateActive  ThreadState = "ACTIVE"
	StateLocked  ThreadState = "LOCKED"
	StateDeleted ThreadState = "DELETED"
)

// State derives the moderation state. Deletion dominates locking.
func (t Thread) State() ThreadState {
	switch {
	case t.IsDeleted:
		return StateDeleted
	case t.IsLocked:
		return StateLocked
	default:
		return StateActive
	}
}

// State derives the moderation state of a reply.
func (r Reply) State() ThreadState {
	if r.IsDeleted {
		return StateDeleted
	}
	return StateActive
}
