package main

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/settlement-engine/pkg/config"
	"github.com/angelmondragon/settlement-engine/pkg/logger"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type runner interface {
	Run(ctx context.Context) error
}

type ServiceParams struct {
	Config *config.Config
	Logger *logger.Logger
	// Dependencies are pinged in order before any consumer starts.
	Dependencies []namedDependency
	Consumers    map[string]runner
}

type namedDependency struct {
	name string
	dep  pinger
}

type Service struct {
	cfg       *config.Config
	logg      *logger.Logger
	deps      []namedDependency
	consumers map[string]runner
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if len(params.Consumers) == 0 {
		return nil, errors.New("at least one consumer is required")
	}
	for name, c := range params.Consumers {
		if c == nil {
			return nil, fmt.Errorf("consumer %s is nil", name)
		}
	}
	return &Service{
		cfg:       params.Config,
		logg:      params.Logger,
		deps:      params.Dependencies,
		consumers: params.Consumers,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	for _, d := range s.deps {
		if err := pingDependency(ctx, s.logg, d.name, d.dep.Ping); err != nil {
			return err
		}
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

// Run blocks until ctx is canceled or any consumer stops. One consumer
// failing cancels the others.
func (s *Service) Run(ctx context.Context) error {
	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for name, c := range s.consumers {
		name, c := name, c
		g.Go(func() error {
			s.logg.Info(s.logg.WithField(gctx, "consumer", name), "consumer started")
			if err := c.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("%s consumer: %w", name, err)
			}
			return nil
		})
	}

	err := g.Wait()
	if err != nil {
		s.logg.Error(ctx, "consumer stopped unexpectedly", err)
		return err
	}
	s.logg.Info(ctx, "worker context canceled")
	return ctx.Err()
}
