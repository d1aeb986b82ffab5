package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vantagecompute/vantage-cli/internal/vantage"
)

func (s *state) interactive() bool {
	f, ok := s.in.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// confirm asks before a destructive action. Without a terminal the action
// needs --force.
func (s *state) confirm(cmd *cobra.Command, force bool, format string, args ...interface{}) error {
	if force {
		return nil
	}

	question := fmt.Sprintf(format, args...)
	if !s.interactive() {
		return vantage.Abortf("CONFIRMATION REQUIRED", "%s Re-run with --force to confirm in a non-interactive session.", question)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "%s [y/N]: ", question)
	answer, err := bufio.NewReader(s.in).ReadString('\n')
	if err != nil && answer == "" {
		return err
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return nil
	}
	return &vantage.Abort{Subject: "CANCELLED", Message: "Operation cancelled.", WarnOnly: true}
}
