// Package forum exposes the thread, reply, tag, search, vote and
// moderation operations behind one facade.
package forum

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"studydeck/listing"
	"studydeck/models"
	"studydeck/moderation"
	"studydeck/utils"
	"studydeck/votes"
)

// Store is the content storage used by the facade.
type Store interface {
	CreateThread(ctx context.Context, nt models.NewThread) (models.Thread, error)
	UpdateThread(ctx context.Context, id int64, title, rawContent, content string, tags []string) (models.Thread, error)
	GetThread(ctx context.Context, id int64) (models.Thread, error)
	HardDeleteThread(ctx context.Context, id int64) error
	CreateReply(ctx context.Context, nr models.NewReply) (models.Reply, error)
	GetReply(ctx context.Context, id int64) (models.Reply, error)
	UpdateReply(ctx context.Context, id int64, rawContent, content string) (models.Reply, error)
	ListReplies(ctx context.Context, threadID int64, sort models.SortKey) ([]models.Reply, error)
	CreateTags(ctx context.Context, tags []models.Tag) (int, error)
	PopularTags(ctx context.Context) ([]models.TagUsage, error)
}

// Indexer keeps thread titles searchable.
type Indexer interface {
	Index(ctx context.Context, threadID int64, title string) error
	Deindex(ctx context.Context, threadID int64) error
}

type Forum struct {
	store   Store
	index   Indexer
	listing *listing.Pipeline
	votes   *votes.Counter
	mod     *moderation.Service
	now     func() time.Time
}

func New(store Store, index Indexer, pipeline *listing.Pipeline, counter *votes.Counter, mod *moderation.Service) *Forum {
	return &Forum{store: store, index: index, listing: pipeline, votes: counter, mod: mod, now: time.Now}
}

// CreateThread stores a thread and indexes its title. An indexing failure
// is logged; the scheduled rebuild picks the thread up later.
func (f *Forum) CreateThread(ctx context.Context, actor models.Actor, nt models.NewThread) (models.Thread, error) {
	nt.Title = strings.TrimSpace(nt.Title)
	if nt.Title == "" {
		return models.Thread{}, fmt.Errorf("%w: thread title is empty", models.ErrInvalidInput)
	}
	nt.AuthorID = actor.ID
	if nt.CreatedAt.IsZero() {
		nt.CreatedAt = f.now()
	}

	t, err := f.store.CreateThread(ctx, nt)
	if err != nil {
		return models.Thread{}, err
	}
	if err := f.index.Index(ctx, t.ID, t.Title); err != nil {
		utils.Error("forum", "create_thread", fmt.Sprintf("thread %d stored but not indexed: %v", t.ID, err))
	}
	return t, nil
}

// EditThread lets the author change a thread. A nil tags slice keeps the
// current tags.
func (f *Forum) EditThread(ctx context.Context, actor models.Actor, id int64, title, rawContent, content string, tags []string) (models.Thread, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return models.Thread{}, fmt.Errorf("%w: thread title is empty", models.ErrInvalidInput)
	}
	current, err := f.store.GetThread(ctx, id)
	if err != nil {
		return models.Thread{}, err
	}
	if current.IsDeleted {
		return models.Thread{}, fmt.Errorf("%w: thread %d", models.ErrNotFound, id)
	}
	if current.AuthorID != actor.ID {
		return models.Thread{}, fmt.Errorf("%w: user %d is not the author of thread %d", models.ErrForbidden, actor.ID, id)
	}

	t, err := f.store.UpdateThread(ctx, id, title, rawContent, content, tags)
	if err != nil {
		return models.Thread{}, err
	}
	if t.Title != current.Title {
		if err := f.index.Index(ctx, t.ID, t.Title); err != nil {
			utils.Error("forum", "edit_thread", fmt.Sprintf("thread %d updated but not reindexed: %v", t.ID, err))
		}
	}
	return t, nil
}

// PurgeThread physically removes a thread. Staff only.
func (f *Forum) PurgeThread(ctx context.Context, actor models.Actor, id int64) error {
	if !actor.IsStaff {
		return fmt.Errorf("%w: user %d cannot purge threads", models.ErrForbidden, actor.ID)
	}
	if err := f.store.HardDeleteThread(ctx, id); err != nil {
		return err
	}
	if err := f.index.Deindex(ctx, id); err != nil {
		utils.Warn("forum", "purge_thread", fmt.Sprintf("thread %d removed, shingles left for the orphan purge: %v", id, err))
	}
	utils.Info("forum", "purge_thread", fmt.Sprintf("thread %d purged by user %d", id, actor.ID))
	return nil
}

// CreateReply posts under a thread. Locked or deleted threads reject it
// with ErrThreadLocked or ErrNotFound.
func (f *Forum) CreateReply(ctx context.Context, actor models.Actor, threadID int64, rawContent, content string) (models.Reply, error) {
	if strings.TrimSpace(rawContent) == "" {
		return models.Reply{}, fmt.Errorf("%w: reply is empty", models.ErrInvalidInput)
	}
	return f.store.CreateReply(ctx, models.NewReply{
		ThreadID:   threadID,
		AuthorID:   actor.ID,
		RawContent: rawContent,
		Content:    content,
		CreatedAt:  f.now(),
	})
}

// EditReply lets the author change a reply.
func (f *Forum) EditReply(ctx context.Context, actor models.Actor, id int64, rawContent, content string) (models.Reply, error) {
	if strings.TrimSpace(rawContent) == "" {
		return models.Reply{}, fmt.Errorf("%w: reply is empty", models.ErrInvalidInput)
	}
	current, err := f.store.GetReply(ctx, id)
	if err != nil {
		return models.Reply{}, err
	}
	if current.IsDeleted {
		return models.Reply{}, fmt.Errorf("%w: reply %d", models.ErrNotFound, id)
	}
	if current.AuthorID != actor.ID {
		return models.Reply{}, fmt.Errorf("%w: user %d is not the author of reply %d", models.ErrForbidden, actor.ID, id)
	}
	return f.store.UpdateReply(ctx, id, rawContent, content)
}

// Replies lists the visible replies of a thread.
func (f *Forum) Replies(ctx context.Context, threadID int64, sortKey string) ([]models.Reply, error) {
	key, err := models.ParseSortKey(sortKey)
	if err != nil {
		return nil, err
	}
	return f.store.ListReplies(ctx, threadID, key)
}

// CreateTags creates one tag per space separated word of raw, named '#'
// plus the lowercased word with a random color. Existing names are left
// alone. It returns how many tags were new.
func (f *Forum) CreateTags(ctx context.Context, raw string) (int, error) {
	var tags []models.Tag
	for _, word := range strings.Split(raw, " ") {
		if word == "" {
			continue
		}
		tags = append(tags, models.Tag{Name: TagName(word), Color: randomColor()})
	}
	if len(tags) == 0 {
		return 0, nil
	}
	return f.store.CreateTags(ctx, tags)
}

// PopularTags returns tags in use, most used first.
func (f *Forum) PopularTags(ctx context.Context) ([]models.TagUsage, error) {
	return f.store.PopularTags(ctx)
}

// TagName normalizes a word into a tag name.
func TagName(word string) string {
	return "#" + strings.ToLower(word)
}

func randomColor() string {
	return fmt.Sprintf("#%06x", rand.IntN(0x1000000))
}

// Search lists a category's threads, optionally ranked by query and
// filtered by tags, in the order named by sortKey.
func (f *Forum) Search(ctx context.Context, categoryID int64, query string, tags []string, sortKey string) (*listing.Sequence, error) {
	key, err := models.ParseSortKey(sortKey)
	if err != nil {
		return nil, err
	}
	return f.listing.List(ctx, listing.Request{CategoryID: categoryID, Query: query, Tags: tags, Sort: key})
}

func (f *Forum) ToggleUpvote(ctx context.Context, kind models.TargetKind, targetID, voterID int64) (int, error) {
	target, err := models.NewTarget(kind, targetID)
	if err != nil {
		return 0, err
	}
	return f.votes.ToggleUpvote(ctx, target, voterID)
}

func (f *Forum) SoftDelete(ctx context.Context, actor models.Actor, kind models.TargetKind, targetID int64) error {
	target, err := models.NewTarget(kind, targetID)
	if err != nil {
		return err
	}
	return f.mod.SoftDelete(ctx, actor, target)
}

func (f *Forum) Lock(ctx context.Context, actor models.Actor, threadID int64) error {
	return f.mod.Lock(ctx, actor, threadID)
}

func (f *Forum) Unlock(ctx context.Context, actor models.Actor, threadID int64) error {
	return f.mod.Unlock(ctx, actor, threadID)
}

// FileReport returns the new report's ID.
func (f *Forum) FileReport(ctx context.Context, reporter models.Actor, kind models.TargetKind, targetID int64, reason string) (string, error) {
	target, err := models.NewTarget(kind, targetID)
	if err != nil {
		return "", err
	}
	r, err := f.mod.FileReport(ctx, reporter, target, reason)
	if err != nil {
		return "", err
	}
	return r.ID, nil
}

func (f *Forum) ResolveReport(ctx context.Context, actor models.Actor, reportID string) error {
	_, err := f.mod.ResolveReport(ctx, actor, reportID)
	return err
}

func (f *Forum) Reports(ctx context.Context, actor models.Actor, limit, offset int) ([]models.Report, error) {
	return f.mod.Reports(ctx, actor, limit, offset)
}
