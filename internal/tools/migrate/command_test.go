package migrate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/campusmarket/accountkit/internal/config"
	"github.com/campusmarket/accountkit/internal/database"
	"github.com/campusmarket/accountkit/internal/di"
	"github.com/campusmarket/accountkit/internal/tools/common"
)

func sqliteOpener(t *testing.T) func() (Runner, error) {
	t.Helper()
	cfg := &config.Config{
		DatabaseDriver: "sqlite",
		DatabaseURL:    "file:" + filepath.Join(t.TempDir(), "migrate.db"),
	}
	return func() (Runner, error) {
		db, err := database.Open(cfg)
		if err != nil {
			return nil, err
		}
		return di.NewMigrationRunner(cfg, db), nil
	}
}

func runCI(t *testing.T, open func() (Runner, error), args ...string) (common.CIResult, error) {
	t.Helper()
	cmd := newRootCommand(&options{open: open})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--ci", "--env-file", ""}, args...))
	err := cmd.ExecuteContext(context.Background())
	var res common.CIResult
	if decodeErr := json.Unmarshal(out.Bytes(), &res); decodeErr != nil {
		t.Fatalf("decode %q: %v", out.String(), decodeErr)
	}
	return res, err
}

func TestStatusPlanUp(t *testing.T) {
	open := sqliteOpener(t)

	res, err := runCI(t, open, "status")
	if err != nil || !res.OK {
		t.Fatalf("status: %+v err=%v", res, err)
	}
	if res.Details[2] != "migrations: pending" {
		t.Fatalf("expected pending migrations, got %q", res.Details)
	}

	res, err = runCI(t, open, "plan")
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if !strings.HasPrefix(res.Details[0], "would create table ") {
		t.Fatalf("expected create plan, got %q", res.Details)
	}

	if res, err = runCI(t, open, "up"); err != nil || !res.OK {
		t.Fatalf("up: %+v err=%v", res, err)
	}

	res, err = runCI(t, open, "status")
	if err != nil || res.Details[2] != "migrations: up to date" {
		t.Fatalf("expected up to date, got %q err=%v", res.Details, err)
	}
	for _, line := range res.Details[3:] {
		if !strings.HasSuffix(line, ": ok") {
			t.Fatalf("expected every table ok, got %q", line)
		}
	}

	res, err = runCI(t, open, "plan")
	if err != nil || res.Details[0] != "nothing to apply" {
		t.Fatalf("expected empty plan, got %q err=%v", res.Details, err)
	}
}

func TestOpenFailureExitsWithBackendCode(t *testing.T) {
	res, err := runCI(t, func() (Runner, error) { return nil, errors.New("dial tcp: refused") }, "up")
	if common.ExitCode(err) != common.ExitBackend {
		t.Fatalf("expected backend exit, got %d", common.ExitCode(err))
	}
	if res.OK || res.Error != "dial tcp: refused" {
		t.Fatalf("unexpected result %+v", res)
	}
}
