package forum

import (
	"context"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"studydeck/database"
	"studydeck/listing"
	"studydeck/models"
	"studydeck/moderation"
	"studydeck/notify"
	"studydeck/search"
	"studydeck/trigram"
	"studydeck/votes"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = models.Actor{ID: 1}
	bob   = models.Actor{ID: 2}
	mod   = models.Actor{ID: 99, IsStaff: true}
)

type env struct {
	forum *Forum
	db    *database.DB
	index *trigram.Index
	cat   models.Category
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(filepath.Join(t.TempDir(), "forum.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cat, err := db.CreateCategory(ctx, "Computer Science", "cs")
	require.NoError(t, err)

	idx := trigram.NewIndex(db)
	engine := search.NewEngine(idx, search.DefaultMinScore)
	svc := moderation.NewService(db, notify.LogNotifier{}, moderation.Options{})
	f := New(db, idx, listing.NewPipeline(db, engine), votes.NewCounter(db), svc)
	return &env{forum: f, db: db, index: idx, cat: cat}
}

func (e *env) thread(t *testing.T, author models.Actor, title string, created time.Time, tags ...string) models.Thread {
	t.Helper()
	th, err := e.forum.CreateThread(context.Background(), author, models.NewThread{
		CategoryID: e.cat.ID,
		Title:      title,
		RawContent: "body",
		Tags:       tags,
		CreatedAt:  created,
	})
	require.NoError(t, err)
	return th
}

func (e *env) search(t *testing.T, query string, tags []string, sortKey string) []int64 {
	t.Helper()
	seq, err := e.forum.Search(context.Background(), e.cat.ID, query, tags, sortKey)
	require.NoError(t, err)
	ids := seq.Take(100)
	require.NoError(t, seq.Err())
	return ids
}

func TestSearchFindsTypos(t *testing.T) {
	e := newEnv(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	dsa := e.thread(t, alice, "Data Structures & Algorithms", base)
	paper := e.thread(t, bob, "Algorithms midsem paper", base.Add(time.Hour))
	mess := e.thread(t, bob, "Hostel mess menu", base.Add(2*time.Hour))

	assert.Equal(t, []int64{paper.ID, dsa.ID}, e.search(t, "algorithn", nil, "newest"))
	assert.Empty(t, e.search(t, "xyz", nil, "newest"))
	assert.Equal(t, []int64{mess.ID, paper.ID, dsa.ID}, e.search(t, "", nil, "newest"))
	assert.Equal(t, []int64{mess.ID, paper.ID, dsa.ID}, e.search(t, "", nil, "-created_at"))

	_, err := e.forum.Search(context.Background(), e.cat.ID, "", nil, "upvote_count")
	assert.ErrorIs(t, err, models.ErrInvalidOrderKey)
	assert.ErrorIs(t, err, models.ErrInvalidFilter)
}

func TestSearchByTagsAndVotes(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	_, err := e.forum.CreateTags(ctx, "Exams DSA")
	require.NoError(t, err)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := e.thread(t, alice, "Graph algorithms", base, "#dsa")
	b := e.thread(t, alice, "Exam timetable", base.Add(time.Hour), "#exams")
	c := e.thread(t, alice, "Canteen", base.Add(2*time.Hour))

	for _, voter := range []int64{10, 11} {
		_, err := e.forum.ToggleUpvote(ctx, models.KindThread, a.ID, voter)
		require.NoError(t, err)
	}
	n, err := e.forum.ToggleUpvote(ctx, models.KindThread, b.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, []int64{a.ID, b.ID, c.ID}, e.search(t, "", nil, "most_upvoted"))
	assert.Equal(t, []int64{b.ID, a.ID}, e.search(t, "", []string{"#dsa", "#exams"}, "newest"))
	assert.Equal(t, []int64{a.ID}, e.search(t, "algorithms", []string{"#dsa"}, "newest"))

	_, err = e.forum.ToggleUpvote(ctx, models.TargetKind("post"), a.ID, 10)
	assert.ErrorIs(t, err, models.ErrInvalidTarget)

	usage, err := e.forum.PopularTags(ctx)
	require.NoError(t, err)
	require.Len(t, usage, 2)
}

func TestCreateTags(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	n, err := e.forum.CreateTags(ctx, "Exams  DSA exams")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = e.forum.CreateTags(ctx, "dsa")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = e.forum.CreateTags(ctx, "   ")
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.Equal(t, "#exams", TagName("Exams"))
	assert.Regexp(t, regexp.MustCompile(`^#[0-9a-f]{6}$`), randomColor())
}

func TestEditThreadReindexes(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	th := e.thread(t, alice, "Algorithms notes", time.Now())

	_, err := e.forum.EditThread(ctx, bob, th.ID, "Mine now", "x", "x", nil)
	assert.ErrorIs(t, err, models.ErrForbidden)

	_, err = e.forum.EditThread(ctx, alice, th.ID, "  ", "x", "x", nil)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	edited, err := e.forum.EditThread(ctx, alice, th.ID, "Operating systems notes", "x", "x", nil)
	require.NoError(t, err)
	assert.Equal(t, "Operating systems notes", edited.Title)

	assert.Empty(t, e.search(t, "algorithms", nil, "newest"))
	assert.Equal(t, []int64{th.ID}, e.search(t, "operating", nil, "newest"))
	assert.ElementsMatch(t, trigram.Shingles("Operating systems notes"), e.index.Entries(th.ID))
}

func TestDeletedAndPurgedThreads(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	keep := e.thread(t, alice, "Compiler design", time.Now())
	gone := e.thread(t, alice, "Compiler tools", time.Now())

	require.NoError(t, e.forum.SoftDelete(ctx, alice, models.KindThread, gone.ID))
	require.NoError(t, e.forum.SoftDelete(ctx, alice, models.KindThread, gone.ID))
	assert.Equal(t, []int64{keep.ID}, e.search(t, "compiler", nil, "newest"))
	assert.NotEmpty(t, e.index.Entries(gone.ID), "soft-deleted titles stay indexed")

	_, err := e.forum.EditThread(ctx, alice, gone.ID, "again", "x", "x", nil)
	assert.ErrorIs(t, err, models.ErrNotFound)

	assert.ErrorIs(t, e.forum.PurgeThread(ctx, alice, gone.ID), models.ErrForbidden)
	require.NoError(t, e.forum.PurgeThread(ctx, mod, gone.ID))
	assert.Empty(t, e.index.Entries(gone.ID))
	_, err = e.db.GetThread(ctx, gone.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.ErrorIs(t, e.forum.PurgeThread(ctx, mod, gone.ID), models.ErrNotFound)
}

func TestRepliesAndLocking(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	th := e.thread(t, alice, "Lab schedule", time.Now())

	r, err := e.forum.CreateReply(ctx, bob, th.ID, "Monday 2pm", "<p>Monday 2pm</p>")
	require.NoError(t, err)
	_, err = e.forum.CreateReply(ctx, bob, th.ID, " ", "")
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = e.forum.EditReply(ctx, alice, r.ID, "hijack", "hijack")
	assert.ErrorIs(t, err, models.ErrForbidden)
	edited, err := e.forum.EditReply(ctx, bob, r.ID, "Tuesday 2pm", "<p>Tuesday 2pm</p>")
	require.NoError(t, err)
	assert.Equal(t, "Tuesday 2pm", edited.RawContent)

	assert.ErrorIs(t, e.forum.Lock(ctx, alice, th.ID), models.ErrForbidden)
	require.NoError(t, e.forum.Lock(ctx, mod, th.ID))
	_, err = e.forum.CreateReply(ctx, bob, th.ID, "late", "late")
	assert.ErrorIs(t, err, models.ErrThreadLocked)
	require.NoError(t, e.forum.Unlock(ctx, mod, th.ID))

	second, err := e.forum.CreateReply(ctx, alice, th.ID, "thanks", "thanks")
	require.NoError(t, err)
	require.NoError(t, e.forum.SoftDelete(ctx, mod, models.KindReply, r.ID))

	replies, err := e.forum.Replies(ctx, th.ID, "newest")
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, second.ID, replies[0].ID)

	_, err = e.forum.Replies(ctx, th.ID, "oldest")
	assert.ErrorIs(t, err, models.ErrInvalidOrderKey)
}

func TestReportFlow(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	th := e.thread(t, alice, "Selling notes", time.Now())

	id, err := e.forum.FileReport(ctx, bob, models.KindThread, th.ID, "commercial spam")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	_, err = e.forum.FileReport(ctx, bob, models.KindReply, 0, "bad")
	assert.ErrorIs(t, err, models.ErrInvalidTarget)

	queue, err := e.forum.Reports(ctx, mod, 10, 0)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, id, queue[0].ID)

	require.NoError(t, e.forum.ResolveReport(ctx, mod, id))
	assert.ErrorIs(t, e.forum.ResolveReport(ctx, mod, id), models.ErrInvalidTransition)
}
