package repos_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/floralens/identify/internal/adapters/repos"
	"github.com/floralens/identify/internal/config"
	"github.com/floralens/identify/internal/domain/model"
	"github.com/floralens/identify/internal/infrastructure"
	"github.com/floralens/identify/pkg/logger"
	"github.com/stretchr/testify/suite"
)

type LockRepositoryTestSuite struct {
	suite.Suite
	miniRedis   *miniredis.Miniredis
	keydbClient *infrastructure.KeydbClient
	repo        *repos.LockRepository
}

func TestLockRepositoryTestSuite(t *testing.T) {
	t.Parallel()
	suite.Run(t, new(LockRepositoryTestSuite))
}

func (s *LockRepositoryTestSuite) SetupTest() {
	var err error
	s.miniRedis, err = miniredis.Run()
	s.Require().NoError(err)

	cfg := config.Cache{
		Address:      s.miniRedis.Addr(),
		Password:     "",
		DB:           0,
		PoolSize:     5,
		DialTimeout:  time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	}

	s.keydbClient = infrastructure.NewKeyDBClient(cfg, logger.NewTestLogger())
	s.repo, err = repos.NewLockRepository(s.keydbClient)
	s.Require().NoError(err)
}

func (s *LockRepositoryTestSuite) TearDownTest() {
	if s.keydbClient != nil {
		s.keydbClient.Close()
	}
	if s.miniRedis != nil {
		s.miniRedis.Close()
	}
}

func (s *LockRepositoryTestSuite) TestAcquire() {
	ctx := context.Background()
	opts := model.IdentificationOptions{}

	token, acquired, err := s.repo.Acquire(ctx, "abc123", opts, time.Minute)
	s.Require().NoError(err)
	s.Require().True(acquired)
	s.Require().NotEmpty(token)

	s.Require().True(s.miniRedis.Exists("abc123|none|v1|lock"))
}

func (s *LockRepositoryTestSuite) TestAcquireBusy() {
	ctx := context.Background()
	opts := model.IdentificationOptions{}

	_, acquired, err := s.repo.Acquire(ctx, "abc123", opts, time.Minute)
	s.Require().NoError(err)
	s.Require().True(acquired)

	token, acquired, err := s.repo.Acquire(ctx, "abc123", opts, time.Minute)
	s.Require().NoError(err)
	s.Require().False(acquired)
	s.Require().Empty(token)
}

func (s *LockRepositoryTestSuite) TestOptionsIsolateLocks() {
	ctx := context.Background()

	_, acquired, err := s.repo.Acquire(ctx, "abc123", model.IdentificationOptions{}, time.Minute)
	s.Require().NoError(err)
	s.Require().True(acquired)

	// Same image, different options: an independent lock.
	_, acquired, err = s.repo.Acquire(ctx, "abc123", model.IdentificationOptions{IncludeDiseases: true}, time.Minute)
	s.Require().NoError(err)
	s.Require().True(acquired)
}

func (s *LockRepositoryTestSuite) TestRelease() {
	ctx := context.Background()
	opts := model.IdentificationOptions{}

	token, acquired, err := s.repo.Acquire(ctx, "abc123", opts, time.Minute)
	s.Require().NoError(err)
	s.Require().True(acquired)

	released, err := s.repo.Release(ctx, "abc123", opts, token)
	s.Require().NoError(err)
	s.Require().True(released)

	_, acquired, err = s.repo.Acquire(ctx, "abc123", opts, time.Minute)
	s.Require().NoError(err)
	s.Require().True(acquired)
}

func (s *LockRepositoryTestSuite) TestReleaseWithStaleToken() {
	ctx := context.Background()
	opts := model.IdentificationOptions{}

	_, acquired, err := s.repo.Acquire(ctx, "abc123", opts, time.Minute)
	s.Require().NoError(err)
	s.Require().True(acquired)

	// A token from an expired hold must not free the current holder's lock.
	released, err := s.repo.Release(ctx, "abc123", opts, "stale-token")
	s.Require().NoError(err)
	s.Require().False(released)

	s.Require().True(s.miniRedis.Exists("abc123|none|v1|lock"))
}

func (s *LockRepositoryTestSuite) TestRenew() {
	ctx := context.Background()
	opts := model.IdentificationOptions{}

	token, acquired, err := s.repo.Acquire(ctx, "abc123", opts, time.Second)
	s.Require().NoError(err)
	s.Require().True(acquired)

	renewed, err := s.repo.Renew(ctx, "abc123", opts, token, time.Minute)
	s.Require().NoError(err)
	s.Require().True(renewed)

	s.miniRedis.FastForward(2 * time.Second)
	s.Require().True(s.miniRedis.Exists("abc123|none|v1|lock"))
}

func (s *LockRepositoryTestSuite) TestRenewWithStaleToken() {
	ctx := context.Background()
	opts := model.IdentificationOptions{}

	_, acquired, err := s.repo.Acquire(ctx, "abc123", opts, time.Minute)
	s.Require().NoError(err)
	s.Require().True(acquired)

	renewed, err := s.repo.Renew(ctx, "abc123", opts, "stale-token", time.Minute)
	s.Require().NoError(err)
	s.Require().False(renewed)
}

func (s *LockRepositoryTestSuite) TestExpiredLockCanBeReacquired() {
	ctx := context.Background()
	opts := model.IdentificationOptions{}

	_, acquired, err := s.repo.Acquire(ctx, "abc123", opts, time.Second)
	s.Require().NoError(err)
	s.Require().True(acquired)

	s.miniRedis.FastForward(2 * time.Second)

	_, acquired, err = s.repo.Acquire(ctx, "abc123", opts, time.Minute)
	s.Require().NoError(err)
	s.Require().True(acquired)
}
