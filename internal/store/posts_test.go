package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"postboard/internal/models"
)

func openTestStore(t *testing.T, opts Options) *Store {
	t.Helper()
	st, err := OpenWithOptions(filepath.Join(t.TempDir(), "posts.db"), opts)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestCreatePostStartsAtZeroScore(t *testing.T) {
	st := openTestStore(t, Options{})
	ctx := context.Background()

	created, err := st.CreatePost(ctx, &models.Post{Title: "  Hello  ", Body: "first post"})
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	if created.ID <= 0 {
		t.Fatalf("expected positive id, got %d", created.ID)
	}
	if created.Score != 0 {
		t.Fatalf("expected score 0, got %d", created.Score)
	}
	if created.Title != "Hello" {
		t.Fatalf("expected trimmed title, got %q", created.Title)
	}
	if created.Author != models.DefaultAuthor {
		t.Fatalf("expected default author, got %q", created.Author)
	}
	if created.HasImage() {
		t.Fatalf("expected no image, got %q", created.ImageKey)
	}

	got, err := st.GetPost(ctx, created.ID)
	if err != nil {
		t.Fatalf("get post: %v", err)
	}
	if diff := cmp.Diff(created, got); diff != "" {
		t.Fatalf("stored post mismatch (-created +got):\n%s", diff)
	}
}

func TestCreatePostKeepsImageKey(t *testing.T) {
	st := openTestStore(t, Options{})
	key := "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"

	created, err := st.CreatePost(context.Background(), &models.Post{
		Title:    "with image",
		Body:     "see attached",
		Author:   "ana",
		ImageKey: key,
	})
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	if created.ImageKey != key || created.Author != "ana" {
		t.Fatalf("unexpected post: %+v", created)
	}
}

func TestCreatePostRejectsInvalidInput(t *testing.T) {
	st := openTestStore(t, Options{})
	ctx := context.Background()

	cases := []struct {
		name  string
		post  models.Post
		field string
	}{
		{name: "empty title", post: models.Post{Title: "   ", Body: "b"}, field: "title"},
		{name: "long title", post: models.Post{Title: longTitle(101), Body: "b"}, field: "title"},
		{name: "empty body", post: models.Post{Title: "t", Body: " \n"}, field: "body"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			post := tc.post
			_, err := st.CreatePost(ctx, &post)
			var verr *models.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if verr.Field != tc.field {
				t.Fatalf("expected field %q, got %q", tc.field, verr.Field)
			}
		})
	}

	posts, err := st.ListPosts(ctx)
	if err != nil {
		t.Fatalf("list posts: %v", err)
	}
	if len(posts) != 0 {
		t.Fatalf("expected no rows after rejected creates, got %d", len(posts))
	}
}

func longTitle(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = 'x'
	}
	return string(b)
}

func TestCreatePostAcceptsMaxLengthTitle(t *testing.T) {
	st := openTestStore(t, Options{})
	if _, err := st.CreatePost(context.Background(), &models.Post{Title: longTitle(models.TitleMaxLength), Body: "b"}); err != nil {
		t.Fatalf("create post: %v", err)
	}
}

func TestListPostsEmpty(t *testing.T) {
	st := openTestStore(t, Options{})
	posts, err := st.ListPosts(context.Background())
	if err != nil {
		t.Fatalf("list posts: %v", err)
	}
	if posts == nil || len(posts) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", posts)
	}
}

func TestListPostsContainsEachCreatedPostOnce(t *testing.T) {
	st := openTestStore(t, Options{})
	ctx := context.Background()

	inputs := []models.Post{
		{Title: "alpha", Body: "one"},
		{Title: "beta", Body: "two", Author: "bo"},
		{Title: "alpha", Body: "one"},
	}
	var created []models.Post
	for i := range inputs {
		post, err := st.CreatePost(ctx, &inputs[i])
		if err != nil {
			t.Fatalf("create post %d: %v", i, err)
		}
		created = append(created, *post)

		listed, err := st.ListPosts(ctx)
		if err != nil {
			t.Fatalf("list posts: %v", err)
		}
		matches := 0
		for _, p := range listed {
			if p.ID == post.ID {
				matches++
				if p.Title != inputs[i].Title || p.Body != inputs[i].Body || p.Score != 0 {
					t.Fatalf("listed post mismatch: %+v", p)
				}
			}
		}
		if matches != 1 {
			t.Fatalf("expected post %d listed once, got %d", post.ID, matches)
		}
	}

	listed, err := st.ListPosts(ctx)
	if err != nil {
		t.Fatalf("list posts: %v", err)
	}
	if diff := cmp.Diff(created, listed); diff != "" {
		t.Fatalf("list mismatch (-created +listed):\n%s", diff)
	}
}

func TestGetPostMissingReturnsNil(t *testing.T) {
	st := openTestStore(t, Options{})
	post, err := st.GetPost(context.Background(), 42)
	if err != nil {
		t.Fatalf("get post: %v", err)
	}
	if post != nil {
		t.Fatalf("expected nil post, got %+v", post)
	}
}

func TestAdjustScoreRoundTrip(t *testing.T) {
	st := openTestStore(t, Options{})
	ctx := context.Background()

	created, err := st.CreatePost(ctx, &models.Post{Title: "vote me", Body: "please"})
	if err != nil {
		t.Fatalf("create post: %v", err)
	}

	up, err := st.AdjustScore(ctx, created.ID, models.VoteUp.Delta())
	if err != nil {
		t.Fatalf("vote up: %v", err)
	}
	if up.Score != 1 {
		t.Fatalf("expected score 1, got %d", up.Score)
	}
	down, err := st.AdjustScore(ctx, created.ID, models.VoteDown.Delta())
	if err != nil {
		t.Fatalf("vote down: %v", err)
	}
	if down.Score != 0 {
		t.Fatalf("expected score 0, got %d", down.Score)
	}
	if _, err := st.AdjustScore(ctx, created.ID, -1); err != nil {
		t.Fatalf("vote down: %v", err)
	}

	got, err := st.GetPost(ctx, created.ID)
	if err != nil {
		t.Fatalf("get post: %v", err)
	}
	if got.Score != -1 {
		t.Fatalf("expected negative score -1, got %d", got.Score)
	}
	if got.Title != created.Title || got.Body != created.Body || !got.CreatedAt.Equal(created.CreatedAt) {
		t.Fatalf("vote changed other fields: %+v", got)
	}
}

func TestAdjustScoreMissingPostCreatesNothing(t *testing.T) {
	st := openTestStore(t, Options{})
	ctx := context.Background()

	post, err := st.AdjustScore(ctx, 999, 1)
	if err != nil {
		t.Fatalf("adjust score: %v", err)
	}
	if post != nil {
		t.Fatalf("expected nil post, got %+v", post)
	}
	posts, err := st.ListPosts(ctx)
	if err != nil {
		t.Fatalf("list posts: %v", err)
	}
	if len(posts) != 0 {
		t.Fatalf("expected no posts, got %d", len(posts))
	}
}

func TestAdjustScoreRejectsOtherDeltas(t *testing.T) {
	st := openTestStore(t, Options{})
	ctx := context.Background()
	created, err := st.CreatePost(ctx, &models.Post{Title: "t", Body: "b"})
	if err != nil {
		t.Fatalf("create post: %v", err)
	}

	for _, delta := range []int{0, 2, -5} {
		_, err := st.AdjustScore(ctx, created.ID, delta)
		var verr *models.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("delta %d: expected validation error, got %v", delta, err)
		}
	}
	got, err := st.GetPost(ctx, created.ID)
	if err != nil {
		t.Fatalf("get post: %v", err)
	}
	if got.Score != 0 {
		t.Fatalf("expected score unchanged, got %d", got.Score)
	}
}

func TestAdjustScoreConcurrentVotesAreNotLost(t *testing.T) {
	st := openTestStore(t, Options{MaxOpenConns: 4})
	ctx := context.Background()
	created, err := st.CreatePost(ctx, &models.Post{Title: "busy", Body: "many voters"})
	if err != nil {
		t.Fatalf("create post: %v", err)
	}

	const ups, downs = 40, 15
	var wg sync.WaitGroup
	errs := make(chan error, ups+downs)
	vote := func(delta int) {
		defer wg.Done()
		if _, err := st.AdjustScore(ctx, created.ID, delta); err != nil {
			errs <- err
		}
	}
	for i := 0; i < ups; i++ {
		wg.Add(1)
		go vote(1)
	}
	for i := 0; i < downs; i++ {
		wg.Add(1)
		go vote(-1)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent vote: %v", err)
	}

	got, err := st.GetPost(ctx, created.ID)
	if err != nil {
		t.Fatalf("get post: %v", err)
	}
	if got.Score != ups-downs {
		t.Fatalf("expected score %d, got %d", ups-downs, got.Score)
	}
}

// Voters queue behind a transaction holding the write lock. Each UPDATE must
// apply on top of the committed score rather than a value read earlier.
func TestAdjustScoreWaitsForWriteLock(t *testing.T) {
	const voters = 8
	st := openTestStore(t, Options{MaxOpenConns: voters + 2})
	ctx := context.Background()
	created, err := st.CreatePost(ctx, &models.Post{Title: "locked", Body: "queued voters"})
	if err != nil {
		t.Fatalf("create post: %v", err)
	}

	holder, err := st.db.Conn(ctx)
	if err != nil {
		t.Fatalf("open holder conn: %v", err)
	}
	defer holder.Close()
	if _, err := holder.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		t.Fatalf("begin immediate: %v", err)
	}
	if _, err := holder.ExecContext(ctx, "UPDATE posts SET score = score + 100 WHERE id = ?", created.ID); err != nil {
		t.Fatalf("update under lock: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, voters)
	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := st.AdjustScore(ctx, created.ID, 1); err != nil {
				errs <- err
			}
		}()
	}

	// Let every voter reach the busy handler before the lock is released.
	time.Sleep(200 * time.Millisecond)
	got, err := st.GetPost(ctx, created.ID)
	if err != nil {
		t.Fatalf("get post under lock: %v", err)
	}
	if got.Score != 0 {
		t.Fatalf("readers should see the committed score 0 while the lock is held, got %d", got.Score)
	}

	if _, err := holder.ExecContext(ctx, "COMMIT"); err != nil {
		t.Fatalf("commit: %v", err)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("queued vote: %v", err)
	}

	got, err = st.GetPost(ctx, created.ID)
	if err != nil {
		t.Fatalf("get post: %v", err)
	}
	if want := int64(100 + voters); got.Score != want {
		t.Fatalf("expected score %d, got %d", want, got.Score)
	}
}

func TestStoreInfoCountsPostsAndScore(t *testing.T) {
	st := openTestStore(t, Options{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		post, err := st.CreatePost(ctx, &models.Post{Title: "p", Body: "b"})
		if err != nil {
			t.Fatalf("create post: %v", err)
		}
		if _, err := st.AdjustScore(ctx, post.ID, 1); err != nil {
			t.Fatalf("vote: %v", err)
		}
	}

	info, err := st.StoreInfo(ctx)
	if err != nil {
		t.Fatalf("store info: %v", err)
	}
	want := StoreInfo{Driver: DriverSQLite, SchemaVersion: 2, TotalPosts: 3, TotalScore: 3}
	if diff := cmp.Diff(want, info); diff != "" {
		t.Fatalf("info mismatch (-want +got):\n%s", diff)
	}
}

func TestStoreMigrationPlanUpToDate(t *testing.T) {
	st := openTestStore(t, Options{})
	plan, err := st.MigrationPlan(context.Background())
	if err != nil {
		t.Fatalf("migration plan: %v", err)
	}
	if plan.CurrentVersion != plan.AvailableVersion || len(plan.Pending) != 0 {
		t.Fatalf("expected no pending migrations, got %+v", plan)
	}
}

func TestCanceledContextFailsQueries(t *testing.T) {
	st := openTestStore(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := st.ListPosts(ctx); err == nil {
		t.Fatal("expected error for canceled context")
	}
}
