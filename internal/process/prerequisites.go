package process

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// CheckTimeout bounds each version probe
const CheckTimeout = 10 * time.Second

const maxMessageLength = 100

// Status of a prerequisite check
type Status string

const (
	StatusAvailable Status = "available"
	StatusMissing   Status = "missing"
	StatusError     Status = "error"
)

// Prerequisite is an external tool an app needs on the host
type Prerequisite struct {
	Name           string
	Command        string
	VersionCommand []string
	InstallHint    string
	Required       bool
}

// CheckResult is the outcome of probing one prerequisite
type CheckResult struct {
	Prerequisite Prerequisite
	Status       Status
	Version      string
	Message      string
}

// Check probes a single prerequisite
func Check(ctx context.Context, runner Runner, p Prerequisite) CheckResult {
	result := CheckResult{Prerequisite: p}

	if _, err := runner.LookPath(p.Command); err != nil {
		result.Status = StatusMissing
		result.Message = "Command not found"
		if p.InstallHint != "" {
			result.Message += ". " + p.InstallHint
		}
		return result
	}

	if len(p.VersionCommand) == 0 {
		result.Status = StatusAvailable
		return result
	}

	out, err := runner.Run(ctx, Command{
		Name:    p.Command,
		Args:    p.VersionCommand,
		Timeout: CheckTimeout,
	})
	if err != nil {
		result.Status = StatusError
		if errors.Is(err, exec.ErrNotFound) {
			result.Status = StatusMissing
		}
		result.Message = CleanMessage(err.Error())
		return result
	}

	result.Status = StatusAvailable
	result.Version = CleanMessage(firstLine(out.Stdout))
	return result
}

// CheckAll probes prerequisites concurrently and returns results in input
// order. The error lists every required prerequisite that is not available.
func CheckAll(ctx context.Context, runner Runner, prereqs []Prerequisite) ([]CheckResult, error) {
	results := make([]CheckResult, len(prereqs))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range prereqs {
		g.Go(func() error {
			results[i] = Check(gctx, runner, p)
			return nil
		})
	}
	_ = g.Wait()

	var failed []string
	for _, r := range results {
		if r.Prerequisite.Required && r.Status != StatusAvailable {
			failed = append(failed, fmt.Sprintf("%s (%s)", r.Prerequisite.Name, r.Message))
		}
	}
	if len(failed) > 0 {
		return results, fmt.Errorf("missing prerequisites: %s", strings.Join(failed, ", "))
	}

	return results, nil
}

// CleanMessage flattens command output to a single line of bounded length
func CleanMessage(msg string) string {
	msg = strings.Join(strings.Fields(msg), " ")
	if runes := []rune(msg); len(runes) > maxMessageLength {
		return string(runes[:maxMessageLength-3]) + "..."
	}
	return msg
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
