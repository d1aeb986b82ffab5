package vantage

import (
	"context"
	"errors"

	"github.com/vantagecompute/vantage-cli/internal/config"
)

// contextKey is an unexported type for context keys to prevent collisions
type contextKey int

const (
	settingsKey contextKey = iota
	optionsKey
)

// ErrNoSettings is returned when profile settings are not found in context
var ErrNoSettings = errors.New("profile settings not found in context")

// Options carries the global command line flags down to the commands
type Options struct {
	Profile string
	JSON    bool
	Verbose bool
}

// Context wraps the standard context with vantage-specific values
type Context struct {
	context.Context
}

// New creates a new vantage context with the given settings and options
func New(parent context.Context, settings *config.Settings, opts *Options) Context {
	return Context{WithOptions(WithSettings(parent, settings), opts)}
}

// WithSettings returns a new context with the profile settings set
func WithSettings(parent context.Context, settings *config.Settings) context.Context {
	return context.WithValue(parent, settingsKey, settings)
}

// WithOptions returns a new context with the output options set
func WithOptions(parent context.Context, opts *Options) context.Context {
	return context.WithValue(parent, optionsKey, opts)
}

// Settings returns the profile settings from the context
func Settings(ctx context.Context) (*config.Settings, error) {
	v := ctx.Value(settingsKey)
	if v == nil {
		return nil, ErrNoSettings
	}
	settings, ok := v.(*config.Settings)
	if !ok || settings == nil {
		return nil, ErrNoSettings
	}
	return settings, nil
}

// MustSettings returns the settings or panics if not found
func MustSettings(ctx context.Context) *config.Settings {
	settings, err := Settings(ctx)
	if err != nil {
		panic(err)
	}
	return settings
}

// OutputOptions returns the output options from the context, or the zero
// value when none were attached.
func OutputOptions(ctx context.Context) *Options {
	v, ok := ctx.Value(optionsKey).(*Options)
	if !ok || v == nil {
		return &Options{Profile: config.DefaultProfile}
	}
	return v
}
