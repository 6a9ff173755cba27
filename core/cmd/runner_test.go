package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/sensorbridge/core/config"
)

type appFunc func(ctx context.Context) error

func (f appFunc) Run(ctx context.Context) error { return f(ctx) }

func TestRunUsesConfigPathFromEnv(t *testing.T) {
	t.Setenv("SENSORBRIDGE_CONFIG", "/etc/custom.yaml")

	var gotPath string
	ran := false
	shutdown := 0
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Run(Options{
		ConfigEnvVar:      "SENSORBRIDGE_CONFIG",
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (*coreconfig.Config, error) {
			gotPath = path
			return &coreconfig.Config{}, nil
		},
		Bootstrap: func(*coreconfig.Config) (App, error) {
			return appFunc(func(ctx context.Context) error {
				ran = true
				<-ctx.Done()
				return ctx.Err()
			}), nil
		},
		ShutdownLogger: func() error { shutdown++; return nil },
		Context:        ctx,
	})
	require.NoError(t, err)
	assert.Equal(t, "/etc/custom.yaml", gotPath)
	assert.True(t, ran)
	assert.Equal(t, 1, shutdown)
}

func TestRunPropagatesFailures(t *testing.T) {
	boom := errors.New("boom")
	load := func(string) (*coreconfig.Config, error) { return &coreconfig.Config{}, nil }
	noop := func() error { return nil }

	err := Run(Options{
		LoadConfig:     func(string) (*coreconfig.Config, error) { return nil, boom },
		Bootstrap:      func(*coreconfig.Config) (App, error) { return nil, nil },
		ShutdownLogger: noop,
	})
	assert.ErrorIs(t, err, boom)

	err = Run(Options{
		LoadConfig:     load,
		Bootstrap:      func(*coreconfig.Config) (App, error) { return nil, boom },
		ShutdownLogger: noop,
	})
	assert.ErrorIs(t, err, boom)

	err = Run(Options{
		LoadConfig: load,
		Bootstrap: func(*coreconfig.Config) (App, error) {
			return appFunc(func(context.Context) error { return boom }), nil
		},
		ShutdownLogger: noop,
		Context:        context.Background(),
	})
	assert.ErrorIs(t, err, boom)
}

func TestRunRequiresBootstrap(t *testing.T) {
	assert.Error(t, Run(Options{}))
}
