// Package storagetest is a behavioural test suite shared by every
// checkpoint store driver.
package storagetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/stretchr/testify/suite"

	"secevents/internal/domain"
)

type Store interface {
	Get(ctx context.Context, name string) (*domain.Checkpoint, error)
	Commit(ctx context.Context, cp *domain.Checkpoint) error
	Delete(ctx context.Context, name string) error
	Close() error
}

// CheckpointStoreSuite runs against the store returned by NewStore, which is
// called once per test.
type CheckpointStoreSuite struct {
	suite.Suite
	NewStore func() Store

	ctx   context.Context
	store Store
}

func (s *CheckpointStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.NewStore()
}

func (s *CheckpointStoreSuite) TearDownTest() {
	s.NoError(s.store.Close())
}

func (s *CheckpointStoreSuite) ts(v string) *domain.Timestamp {
	t, err := domain.TimestampFromString(v)
	s.Require().NoError(err)
	return &t
}

func (s *CheckpointStoreSuite) TestGet_AbsentIsNotAnError() {
	cp, err := s.store.Get(s.ctx, "never-written")
	s.NoError(err)
	s.False(cp.Exists())
	s.NotNil(cp.Boundary)
	s.Empty(cp.Boundary)
}

func (s *CheckpointStoreSuite) TestCommitAndGet() {
	s.NoError(s.store.Commit(s.ctx, &domain.Checkpoint{
		Name:      "audit",
		Watermark: s.ts("1606151606.239647"),
		Boundary:  []domain.Fingerprint{"aa", "bb"},
	}))

	cp, err := s.store.Get(s.ctx, "audit")
	s.NoError(err)
	s.Equal("audit", cp.Name)
	s.True(cp.Watermark.Equal(*s.ts("1606151606.239647")), "got %s", cp.Watermark)
	s.ElementsMatch([]domain.Fingerprint{"aa", "bb"}, cp.Boundary)
	s.False(cp.UpdatedAt.IsZero())
}

func (s *CheckpointStoreSuite) TestCommit_ReplacesWholeRecord() {
	s.NoError(s.store.Commit(s.ctx, &domain.Checkpoint{Name: "c", Watermark: s.ts("100"), Boundary: []domain.Fingerprint{"a", "b"}}))
	s.NoError(s.store.Commit(s.ctx, &domain.Checkpoint{Name: "c", Watermark: s.ts("105"), Boundary: []domain.Fingerprint{"c"}}))

	cp, err := s.store.Get(s.ctx, "c")
	s.NoError(err)
	s.True(cp.Watermark.Equal(*s.ts("105")))
	s.Equal([]domain.Fingerprint{"c"}, cp.Boundary)
}

func (s *CheckpointStoreSuite) TestCommit_SameWatermarkGrowsBoundary() {
	s.NoError(s.store.Commit(s.ctx, &domain.Checkpoint{Name: "c", Watermark: s.ts("100"), Boundary: []domain.Fingerprint{"a"}}))
	s.NoError(s.store.Commit(s.ctx, &domain.Checkpoint{Name: "c", Watermark: s.ts("100"), Boundary: []domain.Fingerprint{"a", "b"}}))

	cp, err := s.store.Get(s.ctx, "c")
	s.NoError(err)
	s.Equal([]domain.Fingerprint{"a", "b"}, cp.Boundary)
}

func (s *CheckpointStoreSuite) TestCommit_RejectsRegression() {
	s.NoError(s.store.Commit(s.ctx, &domain.Checkpoint{Name: "c", Watermark: s.ts("105"), Boundary: []domain.Fingerprint{"c"}}))

	err := s.store.Commit(s.ctx, &domain.Checkpoint{Name: "c", Watermark: s.ts("100"), Boundary: []domain.Fingerprint{"a"}})
	s.ErrorIs(err, domain.ErrWatermarkRegression)
	s.ErrorIs(err, domain.ErrPersistence)

	cp, err := s.store.Get(s.ctx, "c")
	s.NoError(err)
	s.True(cp.Watermark.Equal(*s.ts("105")))
	s.Equal([]domain.Fingerprint{"c"}, cp.Boundary)
}

func (s *CheckpointStoreSuite) TestCommit_RequiresWatermark() {
	err := s.store.Commit(s.ctx, &domain.Checkpoint{Name: "c"})
	s.ErrorIs(err, domain.ErrPersistence)
}

func (s *CheckpointStoreSuite) TestDelete() {
	s.NoError(s.store.Commit(s.ctx, &domain.Checkpoint{Name: "c", Watermark: s.ts("1"), Boundary: []domain.Fingerprint{"x"}}))

	s.NoError(s.store.Delete(s.ctx, "c"))

	cp, err := s.store.Get(s.ctx, "c")
	s.NoError(err)
	s.False(cp.Exists())
	s.Empty(cp.Boundary)
}

func (s *CheckpointStoreSuite) TestDelete_Idempotent() {
	s.NoError(s.store.Delete(s.ctx, "missing"))
	s.NoError(s.store.Delete(s.ctx, "missing"))
}

func (s *CheckpointStoreSuite) TestNamesWithSeparators() {
	name := "alerts/high severity"
	s.NoError(s.store.Commit(s.ctx, &domain.Checkpoint{Name: name, Watermark: s.ts("7"), Boundary: []domain.Fingerprint{"z"}}))

	cp, err := s.store.Get(s.ctx, name)
	s.NoError(err)
	s.Equal(name, cp.Name)
	s.True(cp.Watermark.Equal(*s.ts("7")))
}

func (s *CheckpointStoreSuite) TestConcurrentNamesDoNotInterfere() {
	const names = 8
	const commits = 20

	var wg sync.WaitGroup
	errs := make(chan error, names*commits)
	for n := 0; n < names; n++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			name := fmt.Sprintf("cp-%d", n)
			for i := 1; i <= commits; i++ {
				wm, _ := domain.TimestampFromString(fmt.Sprintf("%d", i*(n+1)))
				errs <- s.store.Commit(s.ctx, &domain.Checkpoint{
					Name:      name,
					Watermark: &wm,
					Boundary:  []domain.Fingerprint{domain.Fingerprint(fmt.Sprintf("%s-%d", name, i))},
				})
			}
		}(n)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.NoError(err)
	}

	for n := 0; n < names; n++ {
		name := fmt.Sprintf("cp-%d", n)
		cp, err := s.store.Get(s.ctx, name)
		s.NoError(err)
		s.True(cp.Watermark.Equal(*s.ts(fmt.Sprintf("%d", commits*(n+1)))))
		s.Equal([]domain.Fingerprint{domain.Fingerprint(fmt.Sprintf("%s-%d", name, commits))}, cp.Boundary)
	}
}
