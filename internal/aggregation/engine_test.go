package aggregation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"testing"

	"github.com/galaxynn/MDMS/internal/domain"
	"github.com/galaxynn/MDMS/internal/repository"
	"github.com/galaxynn/MDMS/internal/store"
	"github.com/galaxynn/MDMS/internal/testdb"
)

type testEnv struct {
	ctx    context.Context
	db     *testdb.DB
	store  *store.Store
	repo   *repository.Repository
	engine *Engine
}

func newTestEnv(t testing.TB) *testEnv {
	t.Helper()
	db := testdb.New(t, "mdms_aggregation_test")
	logger := log.New(io.Discard, "", 0)
	return &testEnv{
		ctx:    context.Background(),
		db:     db,
		store:  store.NewWithPool(db.Pool, logger),
		repo:   repository.New(db.Pool),
		engine: NewEngine(logger),
	}
}

func (env *testEnv) movie(t testing.TB, title string) domain.Movie {
	t.Helper()
	movie, err := env.repo.Movies.Create(env.ctx, repository.MovieCreateParams{Title: title})
	if err != nil {
		t.Fatalf("create movie %q: %v", title, err)
	}
	return movie
}

func (env *testEnv) user(t testing.TB, name string) domain.User {
	t.Helper()
	user, err := env.repo.Users.Create(env.ctx, repository.UserCreateParams{
		Username: name,
		Email:    name + "@test.com",
	})
	if err != nil {
		t.Fatalf("create user %q: %v", name, err)
	}
	return user
}

func (env *testEnv) create(t testing.TB, userID, movieID string, rating int) domain.Review {
	t.Helper()
	var review domain.Review
	err := env.store.RunInTx(env.ctx, func(tx store.DBTX) error {
		var err error
		review, err = env.engine.CreateReview(env.ctx, tx, CreateReviewParams{
			UserID:  userID,
			MovieID: movieID,
			Rating:  rating,
		})
		return err
	})
	if err != nil {
		t.Fatalf("create review (%s, %s, %d): %v", userID, movieID, rating, err)
	}
	return review
}

// assertStats checks the stored movie row against both the expected values
// and a fresh aggregate over its reviews.
func (env *testEnv) assertStats(t testing.TB, movieID string, wantCount int64, wantAvg float64) {
	t.Helper()
	movie, err := env.repo.Movies.GetByID(env.ctx, movieID)
	if err != nil {
		t.Fatalf("get movie: %v", err)
	}
	if movie.RatingCount != wantCount || movie.AverageRating != wantAvg {
		t.Fatalf("movie stats = %d/%.2f, want %d/%.2f", movie.RatingCount, movie.AverageRating, wantCount, wantAvg)
	}
	agg, err := env.repo.Reviews.Aggregate(env.ctx, movieID)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if agg.Count != movie.RatingCount || agg.Average != movie.AverageRating {
		t.Fatalf("stored stats %d/%.2f drifted from reviews %d/%.2f",
			movie.RatingCount, movie.AverageRating, agg.Count, agg.Average)
	}
}

func TestEngine_Scenarios(t *testing.T) {
	env := newTestEnv(t)
	m1 := env.movie(t, "Movie One")
	u1 := env.user(t, "u1")
	u2 := env.user(t, "u2")

	// A: no reviews.
	err := env.store.RunInTx(env.ctx, func(tx store.DBTX) error {
		summary, err := env.engine.Recompute(env.ctx, tx, m1.ID)
		if err != nil {
			return err
		}
		if summary.Count != 0 || summary.Average != 0 {
			return fmt.Errorf("summary = %+v, want zero", summary)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("scenario A: %v", err)
	}
	env.assertStats(t, m1.ID, 0, 0)

	// B: first review.
	r1 := env.create(t, u1.ID, m1.ID, 8)
	env.assertStats(t, m1.ID, 1, 8.00)

	// C: second review.
	r2 := env.create(t, u2.ID, m1.ID, 6)
	env.assertStats(t, m1.ID, 2, 7.00)

	// D: u1 raises the rating to 10.
	err = env.store.RunInTx(env.ctx, func(tx store.DBTX) error {
		updated, err := env.engine.UpdateReview(env.ctx, tx, r1.ID, 10, nil)
		if err != nil {
			return err
		}
		if updated.Rating != 10 || updated.MovieID != m1.ID || updated.UserID != u1.ID {
			return fmt.Errorf("updated review = %+v", updated)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("scenario D: %v", err)
	}
	env.assertStats(t, m1.ID, 2, 8.00)

	// E: delete u2's review.
	err = env.store.RunInTx(env.ctx, func(tx store.DBTX) error {
		deleted, err := env.engine.DeleteReview(env.ctx, tx, r2.ID)
		if err != nil {
			return err
		}
		if !deleted {
			return errors.New("expected review to be deleted")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("scenario E: %v", err)
	}
	env.assertStats(t, m1.ID, 1, 10.00)

	// F: u1 tries a second review.
	err = env.store.RunInTx(env.ctx, func(tx store.DBTX) error {
		_, err := env.engine.CreateReview(env.ctx, tx, CreateReviewParams{UserID: u1.ID, MovieID: m1.ID, Rating: 3})
		return err
	})
	if !errors.Is(err, ErrDuplicateReview) {
		t.Fatalf("scenario F: expected ErrDuplicateReview, got %v", err)
	}
	env.assertStats(t, m1.ID, 1, 10.00)
}

func TestEngine_RecomputeIdempotent(t *testing.T) {
	env := newTestEnv(t)
	m := env.movie(t, "Idempotent")
	env.create(t, env.user(t, "a").ID, m.ID, 9)
	env.create(t, env.user(t, "b").ID, m.ID, 4)

	var first, second domain.RatingSummary
	err := env.store.RunInTx(env.ctx, func(tx store.DBTX) error {
		var err error
		if first, err = env.engine.Recompute(env.ctx, tx, m.ID); err != nil {
			return err
		}
		second, err = env.engine.Recompute(env.ctx, tx, m.ID)
		return err
	})
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if first != second {
		t.Fatalf("recompute not idempotent: %+v then %+v", first, second)
	}
	env.assertStats(t, m.ID, 2, 6.50)
}

func TestEngine_DeleteIdempotent(t *testing.T) {
	env := newTestEnv(t)
	m := env.movie(t, "Delete")
	u := env.user(t, "deleter")
	review := env.create(t, u.ID, m.ID, 7)

	for i, want := range []bool{true, false} {
		var deleted bool
		err := env.store.RunInTx(env.ctx, func(tx store.DBTX) error {
			var err error
			deleted, err = env.engine.DeleteReview(env.ctx, tx, review.ID)
			return err
		})
		if err != nil {
			t.Fatalf("delete #%d: %v", i+1, err)
		}
		if deleted != want {
			t.Fatalf("delete #%d reported %v, want %v", i+1, deleted, want)
		}
		env.assertStats(t, m.ID, 0, 0)
	}
}

func TestEngine_CreateValidation(t *testing.T) {
	env := newTestEnv(t)
	m := env.movie(t, "Validation")
	u := env.user(t, "validator")

	tests := []struct {
		name    string
		params  CreateReviewParams
		wantErr error
	}{
		{"rating too low", CreateReviewParams{UserID: u.ID, MovieID: m.ID, Rating: 0}, ErrInvalidRating},
		{"rating too high", CreateReviewParams{UserID: u.ID, MovieID: m.ID, Rating: 11}, ErrInvalidRating},
		{"unknown movie", CreateReviewParams{UserID: u.ID, MovieID: "missing-movie", Rating: 5}, ErrMovieNotFound},
		{"unknown user", CreateReviewParams{UserID: "missing-user", MovieID: m.ID, Rating: 5}, ErrUserNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := env.store.RunInTx(env.ctx, func(tx store.DBTX) error {
				_, err := env.engine.CreateReview(env.ctx, tx, tc.params)
				return err
			})
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			env.assertStats(t, m.ID, 0, 0)
		})
	}
}

func TestEngine_UpdateErrors(t *testing.T) {
	env := newTestEnv(t)
	m := env.movie(t, "Update errors")
	review := env.create(t, env.user(t, "upd").ID, m.ID, 5)

	err := env.store.RunInTx(env.ctx, func(tx store.DBTX) error {
		_, err := env.engine.UpdateReview(env.ctx, tx, "missing-review", 5, nil)
		return err
	})
	if !errors.Is(err, ErrReviewNotFound) {
		t.Fatalf("expected ErrReviewNotFound, got %v", err)
	}

	err = env.store.RunInTx(env.ctx, func(tx store.DBTX) error {
		_, err := env.engine.UpdateReview(env.ctx, tx, review.ID, 42, nil)
		return err
	})
	if !errors.Is(err, ErrInvalidRating) {
		t.Fatalf("expected ErrInvalidRating, got %v", err)
	}
	env.assertStats(t, m.ID, 1, 5.00)
}

func TestEngine_Rounding(t *testing.T) {
	tests := []struct {
		name    string
		ratings []int
		want    float64
	}{
		{"half rounds away from zero", []int{1, 1, 1, 1, 1, 1, 1, 2}, 1.13},
		{"repeating third", []int{8, 6, 6}, 6.67},
		{"repeating two thirds down", []int{1, 1, 2}, 1.33},
		{"exact", []int{10, 9}, 9.50},
	}

	env := newTestEnv(t)
	for i, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := env.movie(t, tc.name)
			for j, rating := range tc.ratings {
				u := env.user(t, fmt.Sprintf("round-%d-%d", i, j))
				env.create(t, u.ID, m.ID, rating)
			}
			env.assertStats(t, m.ID, int64(len(tc.ratings)), tc.want)
		})
	}
}

func TestEngine_RecomputeMissingMovie(t *testing.T) {
	env := newTestEnv(t)
	err := env.store.RunInTx(env.ctx, func(tx store.DBTX) error {
		_, err := env.engine.Recompute(env.ctx, tx, "no-such-movie")
		return err
	})
	if !errors.Is(err, ErrMovieNotFound) {
		t.Fatalf("expected ErrMovieNotFound, got %v", err)
	}
}

func TestEngine_RollbackDiscardsMutationAndStats(t *testing.T) {
	env := newTestEnv(t)
	m := env.movie(t, "Rollback")
	u := env.user(t, "rollback")

	boom := errors.New("boom")
	err := env.store.RunInTx(env.ctx, func(tx store.DBTX) error {
		if _, err := env.engine.CreateReview(env.ctx, tx, CreateReviewParams{UserID: u.ID, MovieID: m.ID, Rating: 9}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	env.assertStats(t, m.ID, 0, 0)

	if _, err := env.repo.Reviews.GetByUserAndMovie(env.ctx, u.ID, m.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected review to be rolled back, got %v", err)
	}
}

func TestEngine_ConcurrentCreates(t *testing.T) {
	env := newTestEnv(t)
	m := env.movie(t, "Concurrent")

	const writers = 12
	users := make([]domain.User, writers)
	for i := range users {
		users[i] = env.user(t, fmt.Sprintf("writer-%d", i))
	}

	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i, u := range users {
		wg.Add(1)
		go func(userID string, rating int) {
			defer wg.Done()
			errs <- env.store.RunInTx(env.ctx, func(tx store.DBTX) error {
				_, err := env.engine.CreateReview(env.ctx, tx, CreateReviewParams{
					UserID:  userID,
					MovieID: m.ID,
					Rating:  rating,
				})
				return err
			})
		}(u.ID, i%10+1)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent create: %v", err)
		}
	}

	// ratings 1..10 then 1, 2: sum 58 over 12.
	env.assertStats(t, m.ID, writers, 4.83)
}

func TestEngine_ConcurrentDuplicate(t *testing.T) {
	env := newTestEnv(t)
	m := env.movie(t, "Race")
	u := env.user(t, "racer")

	const attempts = 6
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- env.store.RunInTx(env.ctx, func(tx store.DBTX) error {
				_, err := env.engine.CreateReview(env.ctx, tx, CreateReviewParams{UserID: u.ID, MovieID: m.ID, Rating: 6})
				return err
			})
		}()
	}
	wg.Wait()
	close(errs)

	var ok, dup int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrDuplicateReview):
			dup++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || dup != attempts-1 {
		t.Fatalf("ok=%d dup=%d, want 1/%d", ok, dup, attempts-1)
	}
	env.assertStats(t, m.ID, 1, 6.00)
}
