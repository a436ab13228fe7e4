package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"studydeck/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "forum.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedThread(t *testing.T, db *DB, categoryID int64, title string, created time.Time, tags ...string) models.Thread {
	t.Helper()
	th, err := db.CreateThread(context.Background(), models.NewThread{
		CategoryID: categoryID,
		AuthorID:   1,
		Title:      title,
		RawContent: "body",
		Content:    "<p>body</p>",
		Tags:       tags,
		CreatedAt:  created,
	})
	require.NoError(t, err)
	return th
}

func TestOpenCreatesSchemaTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "forum.db")
	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	assert.Equal(t, path, db.Path())
	require.NoError(t, db.Close())
}

func TestThreadLifecycle(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	cat, err := db.CreateCategory(ctx, "Academics", "academics")
	require.NoError(t, err)
	again, err := db.CreateCategory(ctx, "Academics", "academics")
	require.NoError(t, err)
	assert.Equal(t, cat.ID, again.ID)

	_, err = db.CreateTags(ctx, []models.Tag{{Name: "#exams", Color: "#ff0000"}, {Name: "#labs", Color: "#00ff00"}})
	require.NoError(t, err)

	th, err := db.CreateThread(ctx, models.NewThread{
		CategoryID: cat.ID,
		AuthorID:   42,
		Title:      "Compre syllabus",
		Tags:       []string{"#exams", "#unknown"},
		CourseIDs:  []int64{7, 3},
		CreatedAt:  time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"#exams"}, th.Tags)
	assert.Equal(t, []int64{3, 7}, th.CourseIDs)
	assert.Equal(t, models.StateActive, th.State())

	updated, err := db.UpdateThread(ctx, th.ID, "Compre syllabus 2024", "raw", "html", []string{"#labs"})
	require.NoError(t, err)
	assert.Equal(t, "Compre syllabus 2024", updated.Title)
	assert.Equal(t, []string{"#labs"}, updated.Tags)

	changed, err := db.SetThreadLocked(ctx, th.ID, true)
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = db.SetThreadLocked(ctx, th.ID, true)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = db.SetDeleted(ctx, models.ThreadTarget(th.ID))
	require.NoError(t, err)
	assert.True(t, changed)

	got, err := db.GetThread(ctx, th.ID)
	require.NoError(t, err)
	assert.True(t, got.IsLocked)
	assert.Equal(t, models.StateDeleted, got.State())

	listed, err := db.ThreadsInCategory(ctx, cat.ID)
	require.NoError(t, err)
	assert.Empty(t, listed)

	_, err = db.GetThread(ctx, 999)
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = db.SetThreadLocked(ctx, 999, true)
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = db.CreateThread(ctx, models.NewThread{CategoryID: 999, Title: "x"})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestThreadsInCategoryLoadsTags(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	cat, err := db.CreateCategory(ctx, "General", "general")
	require.NoError(t, err)
	other, err := db.CreateCategory(ctx, "Other", "other")
	require.NoError(t, err)
	_, err = db.CreateTags(ctx, []models.Tag{{Name: "#a"}, {Name: "#b"}})
	require.NoError(t, err)

	now := time.Now()
	a := seedThread(t, db, cat.ID, "first", now, "#b", "#a")
	seedThread(t, db, cat.ID, "second", now)
	seedThread(t, db, other.ID, "elsewhere", now, "#a")

	threads, err := db.ThreadsInCategory(ctx, cat.ID)
	require.NoError(t, err)
	require.Len(t, threads, 2)
	for _, th := range threads {
		if th.ID == a.ID {
			assert.Equal(t, []string{"#a", "#b"}, th.Tags)
		} else {
			assert.Empty(t, th.Tags)
		}
	}

	usage, err := db.PopularTags(ctx)
	require.NoError(t, err)
	require.Len(t, usage, 2)
	assert.Equal(t, "#a", usage[0].Name)
	assert.Equal(t, 2, usage[0].Threads)
}

func TestCreateTagsIgnoresDuplicates(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	n, err := db.CreateTags(ctx, []models.Tag{{Name: "#dsa"}, {Name: "#oop"}})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = db.CreateTags(ctx, []models.Tag{{Name: "#dsa"}, {Name: "#dbms"}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestReplies(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	cat, err := db.CreateCategory(ctx, "General", "general")
	require.NoError(t, err)
	th := seedThread(t, db, cat.ID, "help", time.Now())

	base := time.Now()
	r1, err := db.CreateReply(ctx, models.NewReply{ThreadID: th.ID, AuthorID: 2, RawContent: "one", CreatedAt: base})
	require.NoError(t, err)
	r2, err := db.CreateReply(ctx, models.NewReply{ThreadID: th.ID, AuthorID: 3, RawContent: "two", CreatedAt: base.Add(time.Second)})
	require.NoError(t, err)

	_, err = db.ToggleVote(ctx, models.ReplyTarget(r1.ID), 9)
	require.NoError(t, err)

	newest, err := db.ListReplies(ctx, th.ID, models.SortNewest)
	require.NoError(t, err)
	require.Len(t, newest, 2)
	assert.Equal(t, r2.ID, newest[0].ID)

	top, err := db.ListReplies(ctx, th.ID, models.SortMostUpvoted)
	require.NoError(t, err)
	assert.Equal(t, r1.ID, top[0].ID)

	_, err = db.ListReplies(ctx, th.ID, "upvote_count")
	assert.ErrorIs(t, err, models.ErrInvalidOrderKey)

	edited, err := db.UpdateReply(ctx, r1.ID, "uno", "<p>uno</p>")
	require.NoError(t, err)
	assert.Equal(t, "uno", edited.RawContent)

	_, err = db.SetThreadLocked(ctx, th.ID, true)
	require.NoError(t, err)
	_, err = db.CreateReply(ctx, models.NewReply{ThreadID: th.ID, AuthorID: 2, CreatedAt: time.Now()})
	assert.ErrorIs(t, err, models.ErrThreadLocked)

	_, err = db.CreateReply(ctx, models.NewReply{ThreadID: 404, AuthorID: 2, CreatedAt: time.Now()})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestFindByShingles(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	require.NoError(t, db.ReplaceShingles(ctx, 1, []string{" aa", "aaa", "aaa", "aa "}))
	require.NoError(t, db.ReplaceShingles(ctx, 2, []string{" ab", "ab "}))

	scores, err := db.FindByShingles(ctx, []string{"aaa", "aaa", " ab"})
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{1: 2, 2: 1}, scores)

	require.NoError(t, db.ReplaceShingles(ctx, 1, []string{"zzz"}))
	scores, err = db.FindByShingles(ctx, []string{"aaa"})
	require.NoError(t, err)
	assert.Empty(t, scores)

	var loaded = map[int64][]string{}
	require.NoError(t, db.LoadShingles(ctx, func(id int64, sh []string) error {
		loaded[id] = sh
		return nil
	}))
	assert.Equal(t, map[int64][]string{1: {"zzz"}, 2: {" ab", "ab "}}, loaded)

	require.NoError(t, db.DeleteShingles(ctx, 2))
	scores, err = db.FindByShingles(ctx, []string{" ab"})
	require.NoError(t, err)
	assert.Empty(t, scores)

	scores, err = db.FindByShingles(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, scores)
}

func TestPurgeOrphanShingles(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	cat, err := db.CreateCategory(ctx, "General", "general")
	require.NoError(t, err)
	th := seedThread(t, db, cat.ID, "kept", time.Now())
	gone := seedThread(t, db, cat.ID, "gone", time.Now())

	require.NoError(t, db.ReplaceShingles(ctx, th.ID, []string{" ke"}))
	require.NoError(t, db.ReplaceShingles(ctx, gone.ID, []string{" go", "gon"}))
	require.NoError(t, db.HardDeleteThread(ctx, gone.ID))

	n, err := db.PurgeOrphanShingles(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	titles, err := db.ThreadTitles(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[int64]string{th.ID: "kept"}, titles)

	assert.ErrorIs(t, db.HardDeleteThread(ctx, gone.ID), models.ErrNotFound)
}

func TestToggleVote(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	cat, err := db.CreateCategory(ctx, "General", "general")
	require.NoError(t, err)
	th := seedThread(t, db, cat.ID, "vote me", time.Now())
	target := models.ThreadTarget(th.ID)

	n, err := db.ToggleVote(ctx, target, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = db.ToggleVote(ctx, target, 6)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = db.ToggleVote(ctx, target, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	voters, err := db.Voters(ctx, target)
	require.NoError(t, err)
	assert.Equal(t, []int64{6}, voters)

	_, err = db.ToggleVote(ctx, models.ReplyTarget(77), 5)
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = db.ToggleVote(ctx, models.Target{}, 5)
	assert.ErrorIs(t, err, models.ErrInvalidTarget)
}

func TestReportsRateLimitAndResolve(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	cat, err := db.CreateCategory(ctx, "General", "general")
	require.NoError(t, err)
	th := seedThread(t, db, cat.ID, "spam", time.Now())

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	ids := []string{"r1", "r2", "r3"}
	for i, id := range ids {
		rep, err := models.NewReport(id, 8, models.ThreadTarget(th.ID), "spam", base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
		require.NoError(t, db.InsertReportLimited(ctx, rep, rep.CreatedAt.Add(-5*time.Minute), 3))
	}

	fourth, err := models.NewReport("r4", 8, models.ThreadTarget(th.ID), "spam", base.Add(3*time.Minute))
	require.NoError(t, err)
	err = db.InsertReportLimited(ctx, fourth, fourth.CreatedAt.Add(-5*time.Minute), 3)
	assert.ErrorIs(t, err, models.ErrRateLimited)

	missing, err := models.NewReport("r5", 9, models.ReplyTarget(123), "spam", base)
	require.NoError(t, err)
	err = db.InsertReportLimited(ctx, missing, base.Add(-5*time.Minute), 3)
	assert.ErrorIs(t, err, models.ErrNotFound)

	resolved, err := db.ResolveReport(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, models.ReportResolved, resolved.Status)
	assert.Equal(t, models.ThreadTarget(th.ID), resolved.Target)

	_, err = db.ResolveReport(ctx, "r1")
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	_, err = db.ResolveReport(ctx, "nope")
	assert.ErrorIs(t, err, models.ErrNotFound)

	queue, err := db.ListReports(ctx, 0, 0)
	require.NoError(t, err)
	got := make([]string, len(queue))
	for i, r := range queue {
		got[i] = r.ID
	}
	assert.Equal(t, []string{"r3", "r2", "r1"}, got)

	page, err := db.ListReports(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "r2", page[0].ID)
}

func TestReportTargetConstraint(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	cat, err := db.CreateCategory(ctx, "General", "general")
	require.NoError(t, err)
	th := seedThread(t, db, cat.ID, "t", time.Now())
	r, err := db.CreateReply(ctx, models.NewReply{ThreadID: th.ID, AuthorID: 1, CreatedAt: time.Now()})
	require.NoError(t, err)

	_, err = db.db.ExecContext(ctx, `INSERT INTO reports (id, reporter_id, thread_id, reply_id, reason, created_at)
        VALUES ('both', 1, ?, ?, 'x', 0)`, th.ID, r.ID)
	assert.Error(t, err)

	_, err = db.db.ExecContext(ctx, `INSERT INTO reports (id, reporter_id, reason, created_at)
        VALUES ('neither', 1, 'x', 0)`)
	assert.Error(t, err)
}
