package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/vantagecompute/vantage-cli/internal/vantage"
	"github.com/vantagecompute/vantage-cli/pkg/api"
)

var (
	errorStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("9")).
			Padding(0, 1)
	warnStyle = errorStyle.BorderForeground(lipgloss.Color("11"))

	errorTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	warnTitle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
)

// asAbort converts well known failures into aborts
func asAbort(err error) *vantage.Abort {
	var abort *vantage.Abort
	if errors.As(err, &abort) {
		return abort
	}

	switch {
	case api.IsUnauthorized(err), errors.Is(err, vantage.ErrNotLoggedIn):
		return vantage.AuthAbort(err)
	case errors.Is(err, vantage.ErrNotFound):
		return &vantage.Abort{Subject: "NOT FOUND", Message: err.Error(), Err: err}
	case errors.Is(err, vantage.ErrAlreadyExists):
		return &vantage.Abort{Subject: "ALREADY EXISTS", Message: err.Error(), Err: err}
	}

	return &vantage.Abort{Subject: "ERROR", Message: err.Error(), Err: err}
}

// RenderError prints err as a panel on w and returns the exit code
func RenderError(w io.Writer, err error) int {
	if err == nil {
		return 0
	}

	abort := asAbort(err)
	if abort.LogMessage != "" {
		log.Debug(abort.LogMessage)
	}

	style, title, code := errorStyle, errorTitle, 1
	if abort.WarnOnly {
		style, title, code = warnStyle, warnTitle, 0
	}

	subject := abort.Subject
	if subject == "" {
		subject = "ERROR"
	}

	fmt.Fprintln(w, style.Render(title.Render(subject)+"\n"+abort.Message))
	return code
}
