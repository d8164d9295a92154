package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"

	"github.com/darmiel/insurelink/pkg/client"
)

var (
	greenCheck = color.GreenString("✔")
	redCross   = color.RedString("✘")

	bold  = color.New(color.Bold).SprintFunc()
	faint = color.New(color.Faint).SprintFunc()
)

// BeQuietError is returned by commands that already reported their failure.
type BeQuietError struct{}

func (BeQuietError) Error() string { return "command failed" }

func logSuccess(format string, args ...any) {
	log.Info().Msgf("%s %s", greenCheck, fmt.Sprintf(format, args...))
}

// logError reports err with the correlation id of the failed request and returns a
// BeQuietError so that Execute does not log it again.
func logError(err error, correlation, msg string) error {
	ev := log.Error()
	if correlation != "" {
		ev = ev.Str("correlation", correlation)
	}
	var apiErr client.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Kind != "" {
			ev = ev.Str("kind", string(apiErr.Kind))
		}
		if apiErr.Provider != "" {
			ev = ev.Str("provider", apiErr.Provider)
		}
		ev.Msgf("%s %s: %s", redCross, msg, apiErr.Message)
		return BeQuietError{}
	}
	ev.Err(err).Msgf("%s %s", redCross, msg)
	return BeQuietError{}
}

func applyTableFormat(t table.Writer) {
	t.SetStyle(table.StyleLight)
	t.Style().Format.Header = 0
	t.Style().Color.Header = table.StyleColorsBright.Header
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

func yesNo(b bool) string {
	if b {
		return color.GreenString("yes")
	}
	return color.RedString("no")
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return faint("n/a")
	}
	return t.Local().Format(time.RFC3339)
}
