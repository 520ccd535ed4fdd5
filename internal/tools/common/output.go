package common

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/campusmarket/accountkit/internal/config"
	"github.com/campusmarket/accountkit/internal/identity"
	"github.com/campusmarket/accountkit/internal/observability"
)

type CIResult struct {
	OK      bool     `json:"ok"`
	Title   string   `json:"title"`
	Details []string `json:"details,omitempty"`
	Code    string   `json:"code,omitempty"`
	Error   string   `json:"error,omitempty"`
}

func PrintCIResult(ok bool, title string, details []string, err error) {
	WriteCIResult(os.Stdout, ok, title, details, err)
}

// WriteCIResult writes one indented JSON result. Failures carry the
// classified error code next to the user facing message.
func WriteCIResult(w io.Writer, ok bool, title string, details []string, err error) {
	result := CIResult{OK: ok, Title: title, Details: details}
	if err != nil {
		result.Code = string(identity.CodeOf(err))
		result.Error = identity.Message(err)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)
}

// FormatError renders err for a terminal: the message, then the code.
func FormatError(err error) string {
	return fmt.Sprintf("%s (%s)", identity.Message(err), identity.CodeOf(err))
}

// LoadConfig reads envFile (if present) and the process environment.
func LoadConfig(envFile string) (*config.Config, error) {
	if err := config.LoadEnvFile(envFile); err != nil {
		return nil, err
	}
	return config.Load()
}

// Record reports one tool command run with its outcome.
func Record(ctx context.Context, tool, command string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	observability.RecordToolCommandRun(ctx, tool, command, outcome, time.Since(start))
}
