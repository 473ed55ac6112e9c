package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/adbshell/adapter"
)

// testApp runs the commands with captured output and without os.Exit.
func testApp(stdin string) (*cli.App, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	app := &cli.App{
		Name:           "adbshell",
		Reader:         strings.NewReader(stdin),
		Writer:         &stdout,
		ErrWriter:      &stderr,
		ExitErrHandler: func(*cli.Context, error) {},
		Commands: []*cli.Command{
			FrameCommand(),
			ReplayCommand(),
			ViewCommand(),
			EncodingsCommand(),
			VersionCommand("abc123"),
		},
	}
	return app, &stdout, &stderr
}

func runApp(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	app, stdout, stderr := testApp(stdin)
	err := app.Run(append([]string{"adbshell"}, args...))
	return stdout.String(), stderr.String(), err
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	if err == nil {
		return 0
	}
	var ec cli.ExitCoder
	if !errors.As(err, &ec) {
		t.Fatalf("expected cli.ExitCoder, got %T: %v", err, err)
	}
	return ec.ExitCode()
}

func TestReadOnlyFlags_IncludesTUI(t *testing.T) {
	hasTUI := false
	for _, f := range ReadOnlyFlags() {
		if f.Names()[0] == "tui" {
			hasTUI = true
			break
		}
	}
	if !hasTUI {
		t.Error("ReadOnlyFlags should include --tui flag for explicit error handling")
	}
}

func TestIsStderrTTY(_ *testing.T) {
	// Actual TTY behavior depends on runtime environment.
	_ = isStderrTTY()
}

func TestFrame_LinesJSON(t *testing.T) {
	out, stderr, err := runApp(t, "hello\r\nworld\rlast", "frame", "--format", "json")
	if err != nil {
		t.Fatalf("frame failed: %v\n%s", err, stderr)
	}

	var lines []string
	if err := json.Unmarshal([]byte(out), &lines); err != nil {
		t.Fatalf("invalid JSON output %q: %v", out, err)
	}
	if strings.Join(lines, "|") != "hello|world|last" {
		t.Errorf("lines = %q", lines)
	}
	if !strings.Contains(stderr, "outcome=success") {
		t.Errorf("summary missing from stderr:\n%s", stderr)
	}
}

func TestFrame_BytesReceiver(t *testing.T) {
	out, _, err := runApp(t, "# prompt\nline1\n\nline2\n", "frame", "--receiver", "bytes", "--chunk-size", "3")
	if err != nil {
		t.Fatalf("frame failed: %v", err)
	}
	if out != "line1\nline2" {
		t.Errorf("output = %q, want %q", out, "line1\nline2")
	}
}

func TestFrame_NoSentinels(t *testing.T) {
	out, _, err := runApp(t, "# prompt\nline1\n", "frame", "--receiver", "bytes", "--no-sentinels")
	if err != nil {
		t.Fatalf("frame failed: %v", err)
	}
	if out != "# prompt\nline1" {
		t.Errorf("output = %q", out)
	}
}

func TestFrame_Quiet(t *testing.T) {
	out, stderr, err := runApp(t, "a\nb\n", "frame", "--quiet", "--log-level", "error")
	if err != nil {
		t.Fatalf("frame failed: %v", err)
	}
	if out != "" || stderr != "" {
		t.Errorf("expected no output, got stdout=%q stderr=%q", out, stderr)
	}
}

func TestFrame_ExitCodes(t *testing.T) {
	tests := []struct {
		name  string
		stdin string
		args  []string
		want  int
	}{
		{"success", "ok\n", nil, 0},
		{"failure signature", "sh: frobnicate: not found\n", []string{"--sense-errors"}, 1},
		{"failure ignored without sensing", "sh: frobnicate: not found\n", nil, 0},
		{"decode error", "ok\n\xff\n", nil, 2},
		{"invalid receiver", "", []string{"--receiver", "nope"}, 3},
		{"unknown encoding", "", []string{"--encoding", "klingon-8"}, 3},
		{"invalid log level", "", []string{"--log-level", "loud"}, 3},
		{"install failure", "Failure [INSTALL_FAILED_OLDER_SDK]\n", []string{"--receiver", "install"}, 1},
		{"install success", "Performing Streamed Install\nSuccess\n", []string{"--receiver", "install"}, 0},
		{"adapter without url", "", []string{"--adapter", "webhook"}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"frame", "--format", "json"}, tt.args...)
			_, _, err := runApp(t, tt.stdin, args...)
			if got := exitCode(t, err); got != tt.want {
				t.Errorf("exit code = %d, want %d (err: %v)", got, tt.want, err)
			}
		})
	}
}

func TestFrame_GetProp(t *testing.T) {
	stdin := "[ro.product.model]: [Pixel 7]\n[ro.build.version.sdk]: [34]\n"
	out, _, err := runApp(t, stdin, "frame", "--receiver", "getprop", "--format", "json")
	if err != nil {
		t.Fatalf("frame failed: %v", err)
	}
	var props map[string]string
	if err := json.Unmarshal([]byte(out), &props); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if props["ro.product.model"] != "Pixel 7" || props["ro.build.version.sdk"] != "34" {
		t.Errorf("props = %v", props)
	}
}

func TestFrame_VersionInfo(t *testing.T) {
	stdin := "Packages:\n  Package [com.example] (41a9f5c8):\n    versionCode=42 targetSdk=34\n    versionName=1.2.3\n"
	out, _, err := runApp(t, stdin, "frame", "--receiver", "versioninfo", "--format", "json")
	if err != nil {
		t.Fatalf("frame failed: %v", err)
	}
	var info struct {
		Code int    `json:"version_code"`
		Name string `json:"version_name"`
	}
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if info.Code != 42 || info.Name != "1.2.3" {
		t.Errorf("info = %+v", info)
	}
}

func TestFrame_Windows1252(t *testing.T) {
	out, _, err := runApp(t, "caf\xe9\n", "frame", "--encoding", "windows-1252", "--format", "json")
	if err != nil {
		t.Fatalf("frame failed: %v", err)
	}
	if !strings.Contains(out, "café") {
		t.Errorf("output = %q", out)
	}
}

func TestFrame_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "adbshell.yaml")
	cfg := "receiver: bytes\nsentinels: []\nlog_level: error\n"
	if err := os.WriteFile(path, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}

	out, _, err := runApp(t, "$ id\nuid=2000\n", "frame", "--config", path)
	if err != nil {
		t.Fatalf("frame failed: %v", err)
	}
	if out != "$ id\nuid=2000" {
		t.Errorf("output = %q", out)
	}

	// Flags override the file.
	out, _, err = runApp(t, "$ id\nuid=2000\n", "frame", "--config", path, "--receiver", "lines", "--format", "json")
	if err != nil {
		t.Fatalf("frame failed: %v", err)
	}
	if !strings.HasPrefix(strings.TrimSpace(out), "[") {
		t.Errorf("expected JSON lines, got %q", out)
	}
}

func TestFrame_RecordReplayView(t *testing.T) {
	capPath := filepath.Join(t.TempDir(), "out.cap")
	stdin := "line one\r\nsh: x: not found\npartial"

	first, _, err := runApp(t, stdin, "frame", "--record", capPath, "--chunk-size", "4",
		"--serial", "emulator-5554", "--command", "x", "--format", "json")
	if err != nil {
		t.Fatalf("frame failed: %v", err)
	}

	replayed, _, err := runApp(t, "", "replay", capPath, "--format", "json")
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if replayed != first {
		t.Errorf("replay output differs:\nframe:  %q\nreplay: %q", first, replayed)
	}

	_, _, err = runApp(t, "", "replay", capPath, "--sense-errors")
	if got := exitCode(t, err); got != 1 {
		t.Errorf("replay --sense-errors exit = %d, want 1", got)
	}

	out, _, err := runApp(t, "", "view", capPath, "--format", "json", "--sense-errors")
	if err != nil {
		t.Fatalf("view failed: %v", err)
	}
	var resp ViewResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp.Serial != "emulator-5554" || resp.Command != "x" || resp.EndReason != "eof" {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Outcome != "command_failed" || resp.FailureKind != "not_found" {
		t.Errorf("outcome = %s, failure_kind = %s", resp.Outcome, resp.FailureKind)
	}
	if strings.Join(resp.Lines, "|") != "line one|sh: x: not found|partial" {
		t.Errorf("lines = %q", resp.Lines)
	}

	out, _, err = runApp(t, "", "view", capPath, "--format", "json", "--summary")
	if err != nil {
		t.Fatalf("view --summary failed: %v", err)
	}
	if !strings.Contains(out, `"lines_emitted": 3`) {
		t.Errorf("summary = %s", out)
	}
}

func TestReplay_Errors(t *testing.T) {
	if _, _, err := runApp(t, "", "replay"); exitCode(t, err) != 3 {
		t.Errorf("expected exit 3 without a capture, got %v", err)
	}
	notCapture := filepath.Join(t.TempDir(), "plain.txt")
	if err := os.WriteFile(notCapture, []byte("not a capture"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := runApp(t, "", "replay", notCapture); exitCode(t, err) != 3 {
		t.Errorf("expected exit 3 for invalid capture, got %v", err)
	}
}

func TestFrame_ArchiveFS(t *testing.T) {
	root := t.TempDir()
	_, _, err := runApp(t, "# prompt\nhello\n", "frame", "--receiver", "lines", "--format", "json",
		"--serial", "R58M123", "--archive-path", root)
	if err != nil {
		t.Fatalf("frame failed: %v", err)
	}

	matches, err := filepath.Glob(filepath.Join(root, "serial=R58M123", "day=*", "invocation_id=*", "output.bin"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("expected one archived object, got %v (%v)", matches, err)
	}
	data, _ := os.ReadFile(matches[0])
	// The archive copy keeps prompt lines.
	if string(data) != "# prompt\nhello" {
		t.Errorf("archived = %q", data)
	}
}

func TestFrame_WebhookAdapter(t *testing.T) {
	prev := adapter.BaseBackoff
	adapter.BaseBackoff = time.Millisecond
	t.Cleanup(func() { adapter.BaseBackoff = prev })

	var mu sync.Mutex
	var got adapter.InvocationCompletedEvent
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		_ = json.Unmarshal(body, &got)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	_, _, err := runApp(t, "sh: x: not found\n", "frame", "--sense-errors", "--quiet",
		"--adapter", "webhook", "--adapter-url", ts.URL, "--command", "x")
	if exitCode(t, err) != 1 {
		t.Fatalf("expected exit 1, got %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if got.EventType != adapter.EventType || got.Outcome != "command_failed" {
		t.Errorf("event = %+v", got)
	}
	if got.FailureKind != "not_found" || got.FailureLine != "sh: x: not found" || got.Lines != 1 {
		t.Errorf("event failure = %+v", got)
	}
}

func TestEncodings(t *testing.T) {
	out, _, err := runApp(t, "", "encodings", "--format", "json", "utf-8", "windows-1252", "klingon-8")
	if err != nil {
		t.Fatalf("encodings failed: %v", err)
	}
	var infos []EncodingInfo
	if err := json.Unmarshal([]byte(out), &infos); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(infos) != 3 {
		t.Fatalf("got %d entries", len(infos))
	}
	if !infos[0].Supported || !infos[0].Default || infos[0].Canonical != "UTF-8" {
		t.Errorf("utf-8 = %+v", infos[0])
	}
	if !infos[1].Supported || infos[1].Default {
		t.Errorf("windows-1252 = %+v", infos[1])
	}
	if infos[2].Supported || infos[2].Error == "" {
		t.Errorf("klingon-8 = %+v", infos[2])
	}
}

func TestEncodings_DefaultListResolves(t *testing.T) {
	for _, info := range resolveEncodings(commonEncodings) {
		if !info.Supported {
			t.Errorf("%s not supported: %s", info.Name, info.Error)
		}
	}
}

func TestVersion(t *testing.T) {
	out, _, err := runApp(t, "", "version", "--format", "json")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	var resp VersionResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp.Commit != "abc123" || resp.Version == "" {
		t.Errorf("resp = %+v", resp)
	}

	if _, _, err := runApp(t, "", "version", "--tui"); exitCode(t, err) != 3 {
		t.Errorf("expected exit 3 for --tui, got %v", err)
	}
}

func TestParseHeaders(t *testing.T) {
	h, err := parseHeaders([]string{"Authorization=Bearer a=b", " X-Lab =1"})
	if err != nil {
		t.Fatalf("parseHeaders failed: %v", err)
	}
	if h["Authorization"] != "Bearer a=b" || h["X-Lab"] != "1" {
		t.Errorf("headers = %v", h)
	}
	if _, err := parseHeaders([]string{"novalue"}); err == nil {
		t.Error("expected error for header without '='")
	}
}
