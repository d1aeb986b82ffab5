package vantage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantagecompute/vantage-cli/internal/config"
)

func TestNew(t *testing.T) {
	settings := config.DefaultSettings()
	settings.APIBaseURL = "https://apis.example.com"
	opts := &Options{Profile: "staging", JSON: true}

	ctx := New(context.Background(), &settings, opts)

	got, err := Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://apis.example.com", got.APIBaseURL)
	assert.Same(t, &settings, MustSettings(ctx))
	assert.Same(t, opts, OutputOptions(ctx))
}

func TestSettings_Missing(t *testing.T) {
	_, err := Settings(context.Background())
	assert.ErrorIs(t, err, ErrNoSettings)

	_, err = Settings(WithSettings(context.Background(), nil))
	assert.ErrorIs(t, err, ErrNoSettings)

	assert.Panics(t, func() { MustSettings(context.Background()) })
}

func TestOutputOptions_Default(t *testing.T) {
	opts := OutputOptions(context.Background())
	assert.Equal(t, config.DefaultProfile, opts.Profile)
	assert.False(t, opts.JSON)

	opts = OutputOptions(WithOptions(context.Background(), &Options{Profile: "dev", Verbose: true}))
	assert.Equal(t, "dev", opts.Profile)
	assert.True(t, opts.Verbose)
}
