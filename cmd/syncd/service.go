package main

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/packfinderz-mobile/internal/syncer"
	"github.com/angelmondragon/packfinderz-mobile/pkg/cache"
	"github.com/angelmondragon/packfinderz-mobile/pkg/config"
	"github.com/angelmondragon/packfinderz-mobile/pkg/connectivity"
	"github.com/angelmondragon/packfinderz-mobile/pkg/logger"
	"github.com/angelmondragon/packfinderz-mobile/pkg/remote"
	"github.com/angelmondragon/packfinderz-mobile/pkg/tasks"
)

const (
	defaultPassInterval = 30 * time.Second
	defaultBackoffBase  = 2 * time.Second
	defaultBackoffCap   = 5 * time.Minute
)

type ServiceParams struct {
	Config      *config.Config
	Logger      *logger.Logger
	Cache       *cache.Client
	Remote      *remote.Client
	Monitor     *connectivity.Monitor
	Pool        *tasks.Pool
	Coordinator syncer.Service
}

// Service drives the background half of the client: the connectivity
// monitor, the detached-push worker pool, and periodic reconciliation
// passes. Passes are triggered by reconnect events and a steady interval,
// and retried with capped exponential backoff while failures look
// connectivity-related.
type Service struct {
	cfg          *config.Config
	logg         *logger.Logger
	cache        *cache.Client
	monitor      *connectivity.Monitor
	pool         *tasks.Pool
	coordinator  syncer.Service
	passInterval time.Duration
	backoffBase  time.Duration
	backoffCap   time.Duration
	maxRetries   uint64

	triggers chan string
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Cache == nil {
		return nil, errors.New("cache client is required")
	}
	if params.Monitor == nil {
		return nil, errors.New("connectivity monitor is required")
	}
	if params.Pool == nil {
		return nil, errors.New("task pool is required")
	}
	if params.Coordinator == nil {
		return nil, errors.New("sync coordinator is required")
	}

	passInterval := params.Config.Sync.PassInterval
	if passInterval <= 0 {
		passInterval = defaultPassInterval
	}
	backoffBase := params.Config.Sync.BackoffBase
	if backoffBase <= 0 {
		backoffBase = defaultBackoffBase
	}
	backoffCap := params.Config.Sync.BackoffCap
	if backoffCap <= 0 {
		backoffCap = defaultBackoffCap
	}

	return &Service{
		cfg:          params.Config,
		logg:         params.Logger,
		cache:        params.Cache,
		monitor:      params.Monitor,
		pool:         params.Pool,
		coordinator:  params.Coordinator,
		passInterval: passInterval,
		backoffBase:  backoffBase,
		backoffCap:   backoffCap,
		maxRetries:   params.Config.Sync.MaxRetries,
		triggers:     make(chan string, 1),
	}, nil
}

// ensureReadiness verifies the local cache. An unreachable network is a
// normal operating condition for this daemon, so remote dependencies are
// not part of readiness.
func (s *Service) ensureReadiness(ctx context.Context) error {
	if err := s.cache.Ping(ctx); err != nil {
		s.logg.Error(ctx, "local cache ping failed", err)
		return err
	}
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	s.monitor.OnChange(func(reachable bool) {
		if reachable {
			s.trigger("reconnect")
		}
	})

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return s.monitor.Run(ctx)
	})
	group.Go(func() error {
		return s.pool.Run(ctx)
	})
	group.Go(func() error {
		return s.loop(ctx)
	})
	return group.Wait()
}

// trigger requests a pass without blocking. A trigger arriving while one is
// already queued coalesces with it.
func (s *Service) trigger(reason string) {
	select {
	case s.triggers <- reason:
	default:
	}
}

func (s *Service) loop(ctx context.Context) error {
	ticker := time.NewTicker(s.passInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "sync loop context canceled")
			return ctx.Err()
		case <-ticker.C:
			s.trigger("interval")
		case reason := <-s.triggers:
			s.runPass(ctx, reason)
		}
	}
}

// runPass drains the dirty set for one trigger, retrying with capped
// exponential backoff while every failure is connectivity-related. Entities
// that stay dirty once retries are exhausted wait for the next trigger; there is
// no terminal failure state.
func (s *Service) runPass(ctx context.Context, reason string) {
	ctx = s.logg.WithField(ctx, "trigger", reason)

	backoff := retry.WithMaxRetries(s.maxRetries,
		retry.WithCappedDuration(s.backoffCap,
			retry.NewExponential(s.backoffBase)))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		summary, err := s.coordinator.Pass(ctx)
		if err != nil {
			return err
		}
		if summary.Retryable() && s.monitor.Reachable() {
			return retry.RetryableError(summary.Err())
		}
		if summary.Dirty() {
			s.logg.Warn(s.logg.WithField(ctx, "failed", len(summary.Failures)),
				"pass left entities dirty, deferring to next trigger")
		}
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logg.Error(ctx, "sync pass gave up for this trigger", err)
	}
}
