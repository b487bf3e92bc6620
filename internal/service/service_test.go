package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/kindred/internal/embedding"
	"github.com/hyperjump/kindred/internal/index"
	"github.com/hyperjump/kindred/internal/match"
	"github.com/hyperjump/kindred/internal/models"
	"github.com/hyperjump/kindred/internal/profile"
	"github.com/hyperjump/kindred/internal/storage"
	"github.com/hyperjump/kindred/internal/vector"
)

// memStore is an in-memory SubmissionStore whose delete can be made to fail.
type memStore struct {
	mu         sync.Mutex
	subs       map[string]*models.Submission
	next       int
	failDelete bool
	closed     bool
}

func newMemStore() *memStore {
	return &memStore{subs: make(map[string]*models.Submission)}
}

func (m *memStore) CreateSubmission(_ context.Context, sub *models.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	sub.ID = fmt.Sprintf("sub-%d", m.next)
	m.subs[sub.ID] = sub
	return nil
}

func (m *memStore) GetSubmission(_ context.Context, id string) (*models.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[id]
	if !ok {
		return nil, storage.ErrSubmissionNotFound
	}
	return sub, nil
}

func (m *memStore) GetSubmissionsByUser(_ context.Context, userID string) ([]*models.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Submission
	for _, s := range m.subs {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) DeleteSubmission(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDelete {
		return errors.New("disk on fire")
	}
	delete(m.subs, id)
	return nil
}

func (m *memStore) CountSubmissions(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.subs)), nil
}

func (m *memStore) CountByPartition(context.Context) (map[models.Partition]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[models.Partition]int64)
	for _, s := range m.subs {
		out[s.Partition]++
	}
	return out, nil
}

func (m *memStore) Close() error {
	m.closed = true
	return nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func newService(t *testing.T, embedDim, indexDim int, opts ...Option) *Service {
	t.Helper()
	idx, err := index.NewPartitionedIndex(indexDim)
	require.NoError(t, err)
	b := profile.NewBuilder(embedding.NewMockEmbedder(embedDim), profile.WithExcluded("q4"))
	return New(b, idx, match.NewEngine(idx), opts...)
}

var survey = map[string]string{"q1": "I love hiking", "q2": "Pizza", "q3": "Night owl", "q4": "male"}

func TestService_RegisterAndMatch(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	s := newService(t, 16, 16, WithStore(store, ""))

	require.NoError(t, s.Register(ctx, "A", survey, models.PartitionMale))
	require.NoError(t, s.Register(ctx, "B", survey, models.PartitionFemale))

	matches, err := s.FindMatches(ctx, "A", 5, nil)
	require.NoError(t, err)
	assert.Equal(t, []models.Match{{UserID: "B", Similarity: 100}}, matches)

	n, _ := store.CountSubmissions(ctx)
	assert.Equal(t, int64(2), n)
}

func TestService_RegisterDuplicate(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	s := newService(t, 8, 8, WithStore(store, ""))

	require.NoError(t, s.Register(ctx, "A", survey, models.PartitionMale))
	err := s.Register(ctx, "A", survey, models.PartitionFemale)
	assert.ErrorIs(t, err, index.ErrDuplicateUser)

	n, _ := store.CountSubmissions(ctx)
	assert.Equal(t, int64(1), n)
}

func TestService_RegisterValidation(t *testing.T) {
	ctx := context.Background()
	s := newService(t, 8, 8)

	assert.ErrorIs(t, s.Register(ctx, "  ", survey, models.PartitionMale), models.ErrInvalidRequest)
	assert.ErrorIs(t, s.Register(ctx, "A", survey, models.Partition("other")), models.ErrInvalidPartition)
	assert.ErrorIs(t, s.Register(ctx, "A", map[string]string{"q4": "male"}, models.PartitionMale), profile.ErrEmptyProfile)
}

func TestService_RollbackOnIndexFailure(t *testing.T) {
	store := newMemStore()
	s := newService(t, 8, 4, WithStore(store, ""))

	err := s.Register(context.Background(), "A", survey, models.PartitionMale)
	var dm *vector.DimensionMismatchError
	require.True(t, errors.As(err, &dm))

	n, _ := store.CountSubmissions(context.Background())
	assert.Zero(t, n, "submission must be rolled back")
	assert.False(t, s.index.Contains("A"))
}

func TestService_PartialRegistration(t *testing.T) {
	store := newMemStore()
	store.failDelete = true
	s := newService(t, 8, 4, WithStore(store, ""))

	err := s.Register(context.Background(), "A", survey, models.PartitionMale)
	var partial *PartialRegistrationError
	require.True(t, errors.As(err, &partial))
	assert.Equal(t, "A", partial.UserID)
	assert.NotEmpty(t, partial.SubmissionID)

	var dm *vector.DimensionMismatchError
	assert.True(t, errors.As(err, &dm))
}

func TestService_ConcurrentDuplicateRegistration(t *testing.T) {
	s := newService(t, 8, 8, WithStore(newMemStore(), ""))
	var ok atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Register(context.Background(), "same", survey, models.PartitionFemale); err == nil {
				ok.Add(1)
			} else {
				assert.ErrorIs(t, err, index.ErrDuplicateUser)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), ok.Load())

	n, _ := s.store.CountSubmissions(context.Background())
	assert.Equal(t, int64(1), n)
}

func TestService_FindMatchesThreshold(t *testing.T) {
	ctx := context.Background()
	s := newService(t, 8, 8)
	require.NoError(t, s.Register(ctx, "A", survey, models.PartitionMale))
	require.NoError(t, s.Register(ctx, "B", survey, models.PartitionFemale))

	bad := 120.0
	_, err := s.FindMatches(ctx, "A", 5, &bad)
	assert.ErrorIs(t, err, match.ErrInvalidThreshold)

	_, err = s.FindMatches(ctx, "nobody", 5, nil)
	assert.ErrorIs(t, err, index.ErrUserNotFound)
}

func TestService_StatusWithSQLite(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "kindred.db")
	store, err := storage.NewSQLiteStorage(dbPath)
	require.NoError(t, err)

	closed := false
	s := newService(t, 8, 8,
		WithStore(store, dbPath),
		WithModelName("mock"),
		WithCloser(closerFunc(func() error { closed = true; return nil })))

	require.NoError(t, s.Register(ctx, "A", survey, models.PartitionMale))

	st, err := s.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Index.Sizes[models.PartitionMale])
	assert.Equal(t, 0, st.Index.Sizes[models.PartitionFemale])
	assert.Equal(t, int64(1), st.Submissions)
	assert.Equal(t, map[models.Partition]int64{models.PartitionMale: 1}, st.SubmissionsByPartition)
	assert.Positive(t, st.StorageBytes)
	assert.Equal(t, 50, st.DefaultTopK)
	assert.Equal(t, "mock", st.EmbeddingModel)

	require.NoError(t, s.Close())
	assert.True(t, closed)
}

func TestService_Submissions(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	s := newService(t, 8, 8, WithStore(store, ""))
	require.NoError(t, s.Register(ctx, "A", survey, models.PartitionFemale))

	subs, err := s.Submissions(ctx, " A ")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, models.PartitionFemale, subs[0].Partition)

	sub, err := s.Submission(ctx, subs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "A", sub.UserID)

	_, err = s.Submission(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrSubmissionNotFound)

	subs, err = s.Submissions(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, subs)
	assert.Empty(t, subs)

	_, err = s.Submissions(ctx, "  ")
	assert.ErrorIs(t, err, models.ErrInvalidRequest)
}

func TestService_SubmissionsWithoutStore(t *testing.T) {
	s := newService(t, 8, 8)
	_, err := s.Submissions(context.Background(), "A")
	assert.ErrorIs(t, err, ErrStoreDisabled)
	_, err = s.Submission(context.Background(), "sub-1")
	assert.ErrorIs(t, err, ErrStoreDisabled)
}
