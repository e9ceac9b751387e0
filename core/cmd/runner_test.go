package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/tlcclub/tlcbot/core/config"
	coretelegram "github.com/tlcclub/tlcbot/core/telegram"
)

type carrier struct{ cfg *coreconfig.Config }

func (c carrier) CoreConfig() *coreconfig.Config { return c.cfg }

type fakeApp struct {
	services []Service
	closed   bool
}

func (a *fakeApp) TelegramRunOptions() (coretelegram.RunOptions, error) {
	return coretelegram.RunOptions{}, nil
}

func (a *fakeApp) Services() []Service { return a.services }

func (a *fakeApp) Close() error { a.closed = true; return nil }

func TestResolveConfigPath(t *testing.T) {
	t.Setenv("TLC_CONFIG", "from-env.yaml")

	p, err := ResolveConfigPath(Options{ConfigPath: "flag.yaml", ConfigEnvVar: "TLC_CONFIG"})
	require.NoError(t, err)
	assert.Equal(t, "flag.yaml", p)

	p, err = ResolveConfigPath(Options{ConfigEnvVar: "TLC_CONFIG", DefaultConfigPath: "config.yaml"})
	require.NoError(t, err)
	assert.Equal(t, "from-env.yaml", p)

	p, err = ResolveConfigPath(Options{ConfigEnvVar: "TLC_UNSET", DefaultConfigPath: "config.yaml"})
	require.NoError(t, err)
	assert.Equal(t, "config.yaml", p)

	_, err = ResolveConfigPath(Options{ConfigEnvVar: "TLC_UNSET"})
	assert.Error(t, err)
}

func baseOptions(app *fakeApp, run func(context.Context, coretelegram.RunOptions) error) Options {
	return Options{
		ConfigPath: "config.yaml",
		LoadConfig: func(string) (ConfigCarrier, error) {
			return carrier{cfg: &coreconfig.Config{}}, nil
		},
		Bootstrap:      func(ConfigCarrier) (TelegramApp, error) { return app, nil },
		ShutdownLogger: func() error { return nil },
		RunTelegram:    run,
		Context:        context.Background(),
	}
}

func TestRunStopsServicesWhenBotExits(t *testing.T) {
	stopped := make(chan struct{})
	app := &fakeApp{services: []Service{func(ctx context.Context) error {
		<-ctx.Done()
		close(stopped)
		return nil
	}}}

	err := Run(baseOptions(app, func(context.Context, coretelegram.RunOptions) error { return nil }))
	require.NoError(t, err)
	<-stopped
	assert.True(t, app.closed)
}

func TestRunServiceFailureCancelsBot(t *testing.T) {
	boom := errors.New("listen: address in use")
	app := &fakeApp{services: []Service{func(context.Context) error { return boom }}}

	err := Run(baseOptions(app, func(ctx context.Context, _ coretelegram.RunOptions) error {
		<-ctx.Done()
		return nil
	}))
	assert.ErrorIs(t, err, boom)
}

func TestRunRequiresHooks(t *testing.T) {
	assert.Error(t, Run(Options{}))
	assert.Error(t, Run(Options{LoadConfig: func(string) (ConfigCarrier, error) { return nil, nil }}))

	err := Run(Options{
		ConfigPath: "x.yaml",
		LoadConfig: func(string) (ConfigCarrier, error) { return nil, errors.New("missing") },
		Bootstrap:  func(ConfigCarrier) (TelegramApp, error) { return nil, nil },
	})
	assert.ErrorContains(t, err, "failed to load config")
}
