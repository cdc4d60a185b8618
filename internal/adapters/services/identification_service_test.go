package services_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/floralens/identify/internal/adapters/repos"
	"github.com/floralens/identify/internal/adapters/services"
	"github.com/floralens/identify/internal/config"
	"github.com/floralens/identify/internal/domain/model"
	"github.com/floralens/identify/internal/infrastructure"
	"github.com/floralens/identify/internal/ports"
	"github.com/floralens/identify/pkg/fingerprint"
	"github.com/floralens/identify/pkg/logger"
	"github.com/floralens/identify/pkg/workerpool"
	"github.com/stretchr/testify/suite"
)

type fakeProvider struct {
	name   string
	calls  atomic.Int64
	delay  time.Duration
	result *model.ProviderResult
	err    error
}

func (p *fakeProvider) Name() string {
	return p.name
}

func (p *fakeProvider) BreakerState() string {
	return "closed"
}

func (p *fakeProvider) Identify(ctx context.Context, _ model.IdentificationRequest) (*model.ProviderResult, error) {
	p.calls.Add(1)

	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, model.ErrProviderTimeout
		}
	}

	if p.err != nil {
		return nil, p.err
	}

	return p.result, nil
}

type IdentificationServiceTestSuite struct {
	suite.Suite
	miniRedis   *miniredis.Miniredis
	keydbClient *infrastructure.KeydbClient
	cache       *repos.ResultCacheRepository
	locks       *repos.LockRepository
	pool        *workerpool.Pool
	plantID     *fakeProvider
	plantNet    *fakeProvider
}

func TestIdentificationServiceTestSuite(t *testing.T) {
	t.Parallel()
	suite.Run(t, new(IdentificationServiceTestSuite))
}

func (s *IdentificationServiceTestSuite) SetupTest() {
	var err error
	s.miniRedis, err = miniredis.Run()
	s.Require().NoError(err)

	cfg := config.Cache{
		Address:      s.miniRedis.Addr(),
		PoolSize:     10,
		DialTimeout:  time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	}

	s.keydbClient = infrastructure.NewKeyDBClient(cfg, logger.NewTestLogger())

	s.cache, err = repos.NewResultCacheRepository(s.keydbClient)
	s.Require().NoError(err)

	s.locks, err = repos.NewLockRepository(s.keydbClient)
	s.Require().NoError(err)

	s.pool = workerpool.New(20, 2)

	s.plantID = &fakeProvider{
		name: "plantid",
		result: &model.ProviderResult{
			Provider: "plantid",
			Candidates: []model.SpeciesCandidate{
				{ScientificName: "Rosa canina", Confidence: 0.61, Provider: "plantid"},
			},
		},
	}
	s.plantNet = &fakeProvider{
		name: "plantnet",
		result: &model.ProviderResult{
			Provider: "plantnet",
			Candidates: []model.SpeciesCandidate{
				{ScientificName: "Rosa rubiginosa", Confidence: 0.84, Provider: "plantnet"},
			},
		},
	}
}

func (s *IdentificationServiceTestSuite) TearDownTest() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_ = s.pool.Shutdown(ctx)

	if s.keydbClient != nil {
		s.keydbClient.Close()
	}
	if s.miniRedis != nil {
		s.miniRedis.Close()
	}
}

func (s *IdentificationServiceTestSuite) newService(providers ...ports.ProviderClient) *services.IdentificationService {
	return services.NewIdentificationService(
		providers,
		s.cache,
		s.locks,
		s.pool,
		config.Lock{
			TTL:           30 * time.Second,
			RenewInterval: 10 * time.Second,
			MaxWait:       2 * time.Second,
			PollInterval:  20 * time.Millisecond,
		},
		config.Identification{
			RequestDeadline: 5 * time.Second,
			MergedCacheTTL:  time.Hour,
		},
		logger.NewTestLogger(),
	)
}

func (s *IdentificationServiceTestSuite) TestIdentify_MergesProviders() {
	svc := s.newService(s.plantID, s.plantNet)
	req := model.NewIdentificationRequest([]byte("leaf photo"), model.IdentificationOptions{}, "corr-1")

	merged, err := svc.Identify(context.Background(), req)
	s.Require().NoError(err)
	s.Require().Len(merged.Candidates, 2)
	s.Require().Equal("Rosa rubiginosa", merged.Candidates[0].ScientificName)
	s.Require().ElementsMatch([]string{"plantid", "plantnet"}, merged.ContributingProviders())

	// The merged result lands in the cache under the canonical key.
	s.Require().True(s.miniRedis.Exists(req.Fingerprint + "|none|v1|merged"))
}

func (s *IdentificationServiceTestSuite) TestIdentify_SecondCallServedFromCache() {
	svc := s.newService(s.plantID, s.plantNet)
	req := model.NewIdentificationRequest([]byte("leaf photo"), model.IdentificationOptions{}, "corr-1")

	_, err := svc.Identify(context.Background(), req)
	s.Require().NoError(err)

	merged, err := svc.Identify(context.Background(), req)
	s.Require().NoError(err)
	s.Require().Len(merged.Candidates, 2)

	s.Require().Equal(int64(1), s.plantID.calls.Load())
	s.Require().Equal(int64(1), s.plantNet.calls.Load())
}

func (s *IdentificationServiceTestSuite) TestIdentify_ConcurrentCallersComputeOnce() {
	s.plantID.delay = 50 * time.Millisecond
	s.plantNet.delay = 50 * time.Millisecond

	svc := s.newService(s.plantID, s.plantNet)
	image := []byte("the very same leaf")

	const callers = 20

	var wg sync.WaitGroup
	results := make([]*model.MergedResult, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			req := model.NewIdentificationRequest(image, model.IdentificationOptions{}, "corr")
			results[i], errs[i] = svc.Identify(context.Background(), req)
		}(i)
	}

	wg.Wait()

	for i := 0; i < callers; i++ {
		s.Require().NoError(errs[i])
		s.Require().NotNil(results[i])
		s.Require().Len(results[i].Candidates, 2)
	}

	// Twenty concurrent callers, one computation per provider.
	s.Require().Equal(int64(1), s.plantID.calls.Load())
	s.Require().Equal(int64(1), s.plantNet.calls.Load())
}

func (s *IdentificationServiceTestSuite) TestIdentify_PartialFailure() {
	s.plantID.err = model.ErrProviderTimeout

	svc := s.newService(s.plantID, s.plantNet)
	req := model.NewIdentificationRequest([]byte("leaf photo"), model.IdentificationOptions{}, "corr-1")

	merged, err := svc.Identify(context.Background(), req)
	s.Require().NoError(err)
	s.Require().Len(merged.Candidates, 1)
	s.Require().Equal([]string{"plantnet"}, merged.ContributingProviders())

	// Partial results are still worth caching.
	s.Require().True(s.miniRedis.Exists(req.Fingerprint + "|none|v1|merged"))
}

func (s *IdentificationServiceTestSuite) TestIdentify_AllProvidersFailed() {
	s.plantID.err = model.ErrProviderTimeout
	s.plantNet.err = model.ErrProviderUnavailable

	svc := s.newService(s.plantID, s.plantNet)
	req := model.NewIdentificationRequest([]byte("leaf photo"), model.IdentificationOptions{}, "corr-1")

	merged, err := svc.Identify(context.Background(), req)
	s.Require().ErrorIs(err, model.ErrAllProvidersFailed)
	s.Require().Nil(merged)

	// Failures are never cached.
	s.Require().False(s.miniRedis.Exists(req.Fingerprint + "|none|v1|merged"))

	// The lock is released so the next caller retries immediately.
	_, acquired, lockErr := s.locks.Acquire(context.Background(), req.Fingerprint, req.Options, time.Minute)
	s.Require().NoError(lockErr)
	s.Require().True(acquired)
}

func (s *IdentificationServiceTestSuite) TestIdentify_FailureThenSuccessRecomputes() {
	s.plantID.err = model.ErrProviderTimeout
	s.plantNet.err = model.ErrProviderUnavailable

	svc := s.newService(s.plantID, s.plantNet)
	req := model.NewIdentificationRequest([]byte("leaf photo"), model.IdentificationOptions{}, "corr-1")

	_, err := svc.Identify(context.Background(), req)
	s.Require().ErrorIs(err, model.ErrAllProvidersFailed)

	s.plantID.err = nil
	s.plantNet.err = nil

	merged, err := svc.Identify(context.Background(), req)
	s.Require().NoError(err)
	s.Require().Len(merged.Candidates, 2)
}

func (s *IdentificationServiceTestSuite) TestIdentify_OptionsComputeSeparately() {
	svc := s.newService(s.plantID, s.plantNet)
	image := []byte("leaf photo")

	_, err := svc.Identify(context.Background(), model.NewIdentificationRequest(image, model.IdentificationOptions{}, "corr-1"))
	s.Require().NoError(err)

	_, err = svc.Identify(context.Background(), model.NewIdentificationRequest(image, model.IdentificationOptions{IncludeDiseases: true}, "corr-2"))
	s.Require().NoError(err)

	// Same image, different options: two computations.
	s.Require().Equal(int64(2), s.plantID.calls.Load())
	s.Require().Equal(int64(2), s.plantNet.calls.Load())
}

func (s *IdentificationServiceTestSuite) TestIdentify_NoImage() {
	svc := s.newService(s.plantID, s.plantNet)

	_, err := svc.Identify(context.Background(), model.IdentificationRequest{Fingerprint: fingerprint.Derive(nil)})
	s.Require().ErrorIs(err, model.ErrNoImage)
}

func (s *IdentificationServiceTestSuite) TestIdentify_DegradesWhenCacheDown() {
	// An unreachable cache and lock backend must not fail the request.
	s.miniRedis.Close()

	svc := s.newService(s.plantID, s.plantNet)
	req := model.NewIdentificationRequest([]byte("leaf photo"), model.IdentificationOptions{}, "corr-1")

	merged, err := svc.Identify(context.Background(), req)
	s.Require().NoError(err)
	s.Require().Len(merged.Candidates, 2)
	s.Require().Equal(int64(1), s.plantID.calls.Load())
}
