package process

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecRunner_Run(t *testing.T) {
	runner := NewExecRunner()

	result, err := runner.Run(context.Background(), Command{
		Name:  "cat",
		Stdin: strings.NewReader("#cloud-config\n"),
	})
	require.NoError(t, err)
	assert.Equal(t, "#cloud-config\n", result.Stdout)
}

func TestExecRunner_ExitError(t *testing.T) {
	runner := NewExecRunner()

	_, err := runner.Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "echo boom >&2; exit 3"},
	})

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 3, exitErr.ExitCode)
	assert.Equal(t, "sh exited with code 3: boom", exitErr.Error())
}

func TestCheckAll(t *testing.T) {
	runner := NewFakeRunner()
	runner.Missing["juju"] = true
	runner.On("multipass version", FakeResponse{Stdout: "multipass   1.14.0\nmultipassd  1.14.0\n"})
	runner.On("lxd --version", FakeResponse{Err: errors.New("permission denied")})

	prereqs := []Prerequisite{
		{Name: "Multipass", Command: "multipass", VersionCommand: []string{"version"}, Required: true},
		{Name: "Juju", Command: "juju", InstallHint: "Install with: sudo snap install juju", Required: true},
		{Name: "LXD", Command: "lxd", VersionCommand: []string{"--version"}},
	}

	results, err := CheckAll(context.Background(), runner, prereqs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Juju (Command not found. Install with: sudo snap install juju)")
	assert.NotContains(t, err.Error(), "LXD")

	require.Len(t, results, 3)
	assert.Equal(t, StatusAvailable, results[0].Status)
	assert.Equal(t, "multipass 1.14.0", results[0].Version)
	assert.Equal(t, StatusMissing, results[1].Status)
	assert.Equal(t, StatusError, results[2].Status)
}

func TestCleanMessage(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "collapses whitespace", in: "  a\n\tb  c ", want: "a b c"},
		{name: "short message untouched", in: "ok", want: "ok"},
		{name: "truncated", in: strings.Repeat("x", 150), want: strings.Repeat("x", 97) + "..."},
		{name: "truncated on rune boundary", in: "x" + strings.Repeat("é", 120), want: "x" + strings.Repeat("é", 96) + "..."},
		{name: "multibyte under limit", in: strings.Repeat("日", 90), want: strings.Repeat("日", 90)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanMessage(tt.in))
		})
	}
}

func TestFakeRunner_Sequence(t *testing.T) {
	runner := NewFakeRunner()
	runner.On("juju status", FakeResponse{Sequence: []string{"first", "second"}, Stdout: "rest"})

	for _, want := range []string{"first", "second", "rest"} {
		out, err := runner.Run(context.Background(), Command{Name: "juju", Args: []string{"status"}})
		require.NoError(t, err)
		assert.Equal(t, want, out.Stdout)
	}
	assert.Len(t, runner.Lines(), 3)
}
