package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"bioreader/internal/app"
	"bioreader/internal/config"
	"bioreader/internal/daemon"
	"bioreader/internal/logging"
	"bioreader/internal/testsupport"
	"bioreader/internal/workflow"
)

type cliResult struct {
	stdout string
	stderr string
	err    error
}

func writeTestConfig(t *testing.T, cfg *config.Config) string {
	t.Helper()
	t.Setenv("SUPABASE_URL", "")
	t.Setenv("SUPABASE_SERVICE_ROLE_KEY", "")
	t.Setenv("IDBIO_PORT", "")

	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(t.TempDir(), "bioreader.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCLI(t *testing.T, configPath string, args ...string) cliResult {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCommand()
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.ExecuteContext(context.Background())
	return cliResult{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func decodeOutcome(t *testing.T, raw string) workflow.Outcome {
	t.Helper()
	var out workflow.Outcome
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		t.Fatalf("decode outcome %q: %v", raw, err)
	}
	return out
}

func TestValidateEnrollsThenVerifies(t *testing.T) {
	path := writeTestConfig(t, testsupport.NewConfig(t))

	first := runCLI(t, path, "--json", "validate", "--user", "alice")
	if first.err != nil {
		t.Fatalf("enroll: %v (stderr %s)", first.err, first.stderr)
	}
	enrolled := decodeOutcome(t, first.stdout)
	if !enrolled.Success || !enrolled.Enrolled || enrolled.Quality == nil || *enrolled.Quality != 95 {
		t.Fatalf("enroll outcome = %s", first.stdout)
	}
	if !strings.Contains(first.stderr, "place finger (1/3)") {
		t.Fatalf("expected operator prompts on stderr, got %q", first.stderr)
	}

	second := runCLI(t, path, "validate", "--user", "alice")
	if second.err != nil {
		t.Fatalf("verify: %v", second.err)
	}
	if !strings.Contains(second.stdout, "Verified alice: 100% match (score 20000)") {
		t.Fatalf("verify output = %q", second.stdout)
	}
}

func TestValidateRequiresUser(t *testing.T) {
	path := writeTestConfig(t, testsupport.NewConfig(t))
	res := runCLI(t, path, "validate")
	if res.err == nil || !strings.Contains(res.err.Error(), "user") {
		t.Fatalf("expected missing user error, got %v", res.err)
	}
}

func TestValidateMinPercentFlagReachesRequest(t *testing.T) {
	path := writeTestConfig(t, testsupport.NewConfig(t))
	res := runCLI(t, path, "--json", "validate", "--user", "alice", "--min-percent", "101")

	var exit *exitError
	if !errors.As(res.err, &exit) || exit.code != 1 {
		t.Fatalf("expected exit status 1, got %v", res.err)
	}
	var body map[string]any
	if err := json.Unmarshal([]byte(res.stdout), &body); err != nil {
		t.Fatalf("decode error body %q: %v", res.stdout, err)
	}
	if body["kind"] != "validation" || !strings.Contains(fmt.Sprint(body["error"]), "min_percent") {
		t.Fatalf("error body = %v", body)
	}
}

func TestValidateUnconfiguredStoreReportsJSONError(t *testing.T) {
	path := writeTestConfig(t, testsupport.NewConfig(t, testsupport.WithRESTStore("", "")))
	res := runCLI(t, path, "--json", "validate", "--user", "alice")

	var exit *exitError
	if !errors.As(res.err, &exit) || exit.code != 1 {
		t.Fatalf("expected exit status 1, got %v", res.err)
	}
	var body map[string]any
	if err := json.Unmarshal([]byte(res.stdout), &body); err != nil {
		t.Fatalf("decode error body %q: %v", res.stdout, err)
	}
	if body["kind"] != "configuration" {
		t.Fatalf("error body = %v", body)
	}
}

func TestTestConnectionReportsCapture(t *testing.T) {
	path := writeTestConfig(t, testsupport.NewConfig(t))
	res := runCLI(t, path, "--json", "test-connection")
	if res.err != nil {
		t.Fatalf("test-connection: %v", res.err)
	}
	var report workflow.ConnectionReport
	if err := json.Unmarshal([]byte(res.stdout), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if !report.Success || report.Quality != 95 {
		t.Fatalf("report = %+v", report)
	}
}

func TestReinitPrintsSession(t *testing.T) {
	path := writeTestConfig(t, testsupport.NewConfig(t))
	res := runCLI(t, path, "reinit")
	if res.err != nil {
		t.Fatalf("reinit: %v", res.err)
	}
	if !strings.Contains(res.stdout, "[OK] ready") {
		t.Fatalf("reinit output = %q", res.stdout)
	}
}

func TestStatusWithoutDaemon(t *testing.T) {
	path := writeTestConfig(t, testsupport.NewConfig(t))
	res := runCLI(t, path, "status")
	if res.err != nil {
		t.Fatalf("status: %v", res.err)
	}
	for _, want := range []string{"not running", "uninitialized", "== Host =="} {
		if !strings.Contains(res.stdout, want) {
			t.Fatalf("status output missing %q:\n%s", want, res.stdout)
		}
	}
}

func TestCommandsFallBackToDaemonWhenLocked(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithDirectories(), testsupport.WithAPIToken("secret"))
	rt, err := app.Build(context.Background(), cfg, logging.NewNop(), app.Options{})
	if err != nil {
		t.Fatalf("app.Build: %v", err)
	}
	d, err := daemon.New(cfg, rt, "test")
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon start: %v", err)
	}

	cliCfg := *cfg
	cliCfg.API.Bind = d.Addr()
	path := writeTestConfig(t, &cliCfg)

	res := runCLI(t, path, "--json", "validate", "--user", "bob")
	if res.err != nil {
		t.Fatalf("validate via daemon: %v (stderr %s)", res.err, res.stderr)
	}
	if out := decodeOutcome(t, res.stdout); !out.Enrolled {
		t.Fatalf("outcome = %s", res.stdout)
	}

	status := runCLI(t, path, "status")
	if status.err != nil {
		t.Fatalf("status via daemon: %v", status.err)
	}
	if !strings.Contains(status.stdout, "running (pid") || !strings.Contains(status.stdout, "ready") {
		t.Fatalf("status output = %q", status.stdout)
	}
}

func TestConfigInitRefusesOverwrite(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "bioreader.toml")
	path := writeTestConfig(t, testsupport.NewConfig(t))

	first := runCLI(t, path, "config", "init", "--path", target)
	if first.err != nil {
		t.Fatalf("config init: %v", first.err)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample not written: %v", err)
	}
	second := runCLI(t, path, "config", "init", "--path", target)
	if second.err == nil || !strings.Contains(second.err.Error(), "already exists") {
		t.Fatalf("expected overwrite refusal, got %v", second.err)
	}
	third := runCLI(t, path, "config", "init", "--path", target, "--overwrite")
	if third.err != nil {
		t.Fatalf("config init --overwrite: %v", third.err)
	}
}

func TestConfigShowMasksSecrets(t *testing.T) {
	path := writeTestConfig(t, testsupport.NewConfig(t, testsupport.WithAPIToken("t0ken-value")))
	res := runCLI(t, path, "config", "show")
	if res.err != nil {
		t.Fatalf("config show: %v", res.err)
	}
	if strings.Contains(res.stdout, "t0ken-value") || !strings.Contains(res.stdout, "********") {
		t.Fatalf("config show output = %q", res.stdout)
	}
}

func TestSDKSyncInstallsLibrary(t *testing.T) {
	src := filepath.Join(t.TempDir(), "libcidbio.so")
	if err := os.WriteFile(src, []byte("library"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	dest := t.TempDir()
	path := writeTestConfig(t, testsupport.NewConfig(t))

	first := runCLI(t, path, "sdk", "sync", src, "--dest", dest)
	if first.err != nil || !strings.Contains(first.stdout, "Installed") {
		t.Fatalf("sync: %v %q", first.err, first.stdout)
	}
	second := runCLI(t, path, "sdk", "sync", src, "--dest", dest)
	if second.err != nil || !strings.Contains(second.stdout, "already up to date") {
		t.Fatalf("resync: %v %q", second.err, second.stdout)
	}
}

func TestDescribeOutcome(t *testing.T) {
	pct, score, q := 88, 17600, 95
	tests := []struct {
		name string
		in   workflow.Outcome
		want string
	}{
		{"enrolled", workflow.Outcome{Success: true, Enrolled: true, Quality: &q}, "Enrolled u (quality 95)"},
		{"verified", workflow.Outcome{Success: true, Score: &score, Percent: &pct}, "Verified u: 88% match (score 17600)"},
		{"failed", workflow.Outcome{Reason: "score 88% below minimum 90%"}, "Not verified: score 88% below minimum 90%"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := describeOutcome("u", tt.in); got != tt.want {
				t.Fatalf("describeOutcome = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLogsReadsFileWhenDaemonDown(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithDirectories())
	if err := os.WriteFile(filepath.Join(cfg.Paths.LogDir, "bioreader-20260101.log"), []byte("one\ntwo\nthree\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	path := writeTestConfig(t, cfg)

	res := runCLI(t, path, "logs", "-n", "2")
	if res.err != nil {
		t.Fatalf("logs: %v", res.err)
	}
	if res.stdout != "two\nthree\n" {
		t.Fatalf("logs output = %q", res.stdout)
	}
}
