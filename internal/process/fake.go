package process

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// FakeRunner records commands and answers them from canned responses keyed
// by the command line prefix. Used by tests across packages.
type FakeRunner struct {
	mu        sync.Mutex
	Commands  []Command
	Stdins    []string
	Responses map[string]FakeResponse
	Missing   map[string]bool
}

// FakeResponse is the canned outcome of a command
type FakeResponse struct {
	Stdout string
	Err    error
	// Sequence, when set, is consumed one entry per call before Stdout is used
	Sequence []string
}

func NewFakeRunner() *FakeRunner {
	return &FakeRunner{
		Responses: map[string]FakeResponse{},
		Missing:   map[string]bool{},
	}
}

// On registers a response for commands whose line starts with prefix
func (f *FakeRunner) On(prefix string, resp FakeResponse) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Responses[prefix] = resp
	return f
}

func (f *FakeRunner) LookPath(name string) (string, error) {
	if f.Missing[name] {
		return "", fmt.Errorf("exec: %q: executable file not found in $PATH", name)
	}
	return "/usr/bin/" + name, nil
}

func (f *FakeRunner) Run(_ context.Context, cmd Command) (*Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Commands = append(f.Commands, cmd)
	stdin := ""
	if cmd.Stdin != nil {
		data, _ := io.ReadAll(cmd.Stdin)
		stdin = string(data)
	}
	f.Stdins = append(f.Stdins, stdin)

	line := cmd.String()
	best := ""
	for prefix := range f.Responses {
		if strings.HasPrefix(line, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return &Result{}, nil
	}

	resp := f.Responses[best]
	out := resp.Stdout
	if len(resp.Sequence) > 0 {
		out = resp.Sequence[0]
		resp.Sequence = resp.Sequence[1:]
		f.Responses[best] = resp
	}
	return &Result{Stdout: out}, resp.Err
}

// Lines returns every recorded command line
func (f *FakeRunner) Lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	lines := make([]string, len(f.Commands))
	for i, c := range f.Commands {
		lines[i] = c.String()
	}
	return lines
}
