package commands

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/haivivi/voxmemo/cmd/voxmemo/internal/config"
	"github.com/haivivi/voxmemo/pkg/cli"
	"github.com/haivivi/voxmemo/pkg/history"
	"github.com/haivivi/voxmemo/pkg/memo"
	"github.com/haivivi/voxmemo/pkg/storage"
)

func TestVersion(t *testing.T) {
	home := setupTestEnv(t, &fakeBackend{})
	stdout, _, code := runCmd(t, home, "version")
	if code != 0 || !strings.HasPrefix(stdout, "voxmemo ") {
		t.Errorf("version = %q, exit %d", stdout, code)
	}

	stdout, _, code = runCmd(t, home, "version", "-o", "json")
	if code != 0 || !strings.Contains(stdout, `"version"`) {
		t.Errorf("version -o json = %q, exit %d", stdout, code)
	}
}

func TestConfigSetGet(t *testing.T) {
	home := setupTestEnv(t, &fakeBackend{})

	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantOut  string
	}{
		{"default language", []string{"config", "get", "default_language"}, 0, "sv\n"},
		{"set language", []string{"config", "set", "default_language", "en"}, 0, ""},
		{"get changed language", []string{"config", "get", "default_language"}, 0, "en\n"},
		{"unsupported language", []string{"config", "set", "default_language", "xx"}, 1, ""},
		{"unknown key", []string{"config", "get", "colour"}, 1, ""},
		{"set model", []string{"config", "set", "model", "kb_whisper-small"}, 0, ""},
		{"get model", []string{"config", "get", "model"}, 0, "kb_whisper-small\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, stderr, code := runCmd(t, home, tt.args...)
			if code != tt.wantCode {
				t.Fatalf("exit = %d, want %d; stderr=%s", code, tt.wantCode, stderr)
			}
			if tt.wantOut != "" && stdout != tt.wantOut {
				t.Errorf("stdout = %q, want %q", stdout, tt.wantOut)
			}
		})
	}

	if _, err := os.Stat(filepath.Join(home, "config", "voxmemo", "settings.yaml")); err != nil {
		t.Errorf("settings file: %v", err)
	}
}

func TestConfigService(t *testing.T) {
	home := setupTestEnv(t, &fakeBackend{})
	if _, stderr, code := runCmd(t, home, "config", "service", "set", "openai", "api_key", "sk-1234567890abcd"); code != 0 {
		t.Fatalf("set: %s", stderr)
	}
	stdout, _, code := runCmd(t, home, "config", "service", "show", "openai")
	if code != 0 {
		t.Fatal("show failed")
	}
	if strings.Contains(stdout, "sk-1234567890abcd") || !strings.Contains(stdout, "sk-1") {
		t.Errorf("show did not mask the key: %q", stdout)
	}
}

func TestTranscribeAndHistory(t *testing.T) {
	backend := &fakeBackend{text: "hej världen"}
	home := setupTestEnv(t, backend)
	file := writeWAV(t, t.TempDir(), 3*time.Second)

	stdout, stderr, code := runCmd(t, home, "transcribe", file)
	if code != 0 {
		t.Fatalf("transcribe exit %d: %s", code, stderr)
	}
	if stdout != "hej världen\n" {
		t.Errorf("transcribe stdout = %q", stdout)
	}
	if len(backend.loads) != 1 || backend.loads[0] != "kb_whisper-base" {
		t.Errorf("loads = %v", backend.loads)
	}
	if backend.langs[0] != "sv" {
		t.Errorf("language hint = %q, want sv", backend.langs[0])
	}
	if _, err := os.Stat(file); err != nil {
		t.Errorf("source removed: %v", err)
	}

	stdout, _, code = runCmd(t, home, "history", "list", "-o", "json")
	if code != 0 {
		t.Fatal("history list failed")
	}
	var entries []history.Entry
	if err := json.Unmarshal([]byte(stdout), &entries); err != nil {
		t.Fatalf("list output %q: %v", stdout, err)
	}
	if len(entries) != 1 || entries[0].Preview != "hej världen" || entries[0].Duration != "0:03" {
		t.Fatalf("entries = %+v", entries)
	}
	id := entries[0].ID

	stdout, _, _ = runCmd(t, home, "history", "show", id, "-o", "json")
	var res memo.Result
	if err := json.Unmarshal([]byte(stdout), &res); err != nil {
		t.Fatalf("show output %q: %v", stdout, err)
	}
	if res.ID != id || res.Language != "sv" || len(res.Segments) != 1 {
		t.Errorf("show = %+v", res)
	}

	stdout, _, _ = runCmd(t, home, "history", "search", "VÄRLDEN", "--query", ".[].id", "-o", "raw")
	if !strings.Contains(stdout, id) {
		t.Errorf("search = %q", stdout)
	}
	stdout, _, _ = runCmd(t, home, "history", "search", "budget")
	if !strings.Contains(stdout, "no transcriptions") {
		t.Errorf("empty search = %q", stdout)
	}

	stdout, _, code = runCmd(t, home, "history", "export", id, "--format", "srt")
	if code != 0 || !strings.HasPrefix(stdout, "1\n00:00:00,000 --> 00:00:01,000\nhej världen") {
		t.Errorf("export srt = %q", stdout)
	}
	if _, _, code := runCmd(t, home, "history", "export", id, "--format", "pdf"); code != 1 {
		t.Error("unknown export format accepted")
	}

	if _, _, code := runCmd(t, home, "history", "delete", id); code != 0 {
		t.Fatal("delete failed")
	}
	_, stderr, code = runCmd(t, home, "history", "show", id)
	if code != 1 || !strings.Contains(stderr, memo.Message(memo.ErrNotFound, "sv")) {
		t.Errorf("show deleted: exit %d, stderr %q", code, stderr)
	}
}

func TestTranscribeRequestFile(t *testing.T) {
	backend := &fakeBackend{text: "hello"}
	home := setupTestEnv(t, backend)
	dir := t.TempDir()
	file := writeWAV(t, dir, time.Second)
	req := filepath.Join(dir, "req.yaml")
	body := "file: " + file + "\nlanguage: auto\nmodel: openai_whisper-base\n"
	if err := os.WriteFile(req, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	stdout, stderr, code := runCmd(t, home, "transcribe", "-f", req, "--no-save", "-o", "json")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, stderr)
	}
	var res memo.Result
	if err := json.Unmarshal([]byte(stdout), &res); err != nil {
		t.Fatal(err)
	}
	if res.Model != "openai_whisper-base" || res.Language != "en" {
		t.Errorf("result = %+v", res)
	}
	if backend.langs[0] != "" {
		t.Errorf("auto language sent hint %q", backend.langs[0])
	}
	stdout, _, _ = runCmd(t, home, "history", "list")
	if !strings.Contains(stdout, "no transcriptions") {
		t.Errorf("--no-save saved: %q", stdout)
	}
}

func TestTranscribeErrors(t *testing.T) {
	home := setupTestEnv(t, &fakeBackend{text: "x"})
	file := writeWAV(t, t.TempDir(), time.Second)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no file", []string{"transcribe"}, "no audio file"},
		{"missing file", []string{"transcribe", filepath.Join(t.TempDir(), "nope.wav")}, memo.Message(memo.ErrExtractionFailed, "sv")},
		{"unknown model", []string{"transcribe", file, "--model", "tiny"}, "unknown model"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, stderr, code := runCmd(t, home, tt.args...)
			if code != 1 || !strings.Contains(stderr, tt.want) {
				t.Errorf("exit %d, stderr %q, want %q", code, stderr, tt.want)
			}
		})
	}
}

func TestRecord(t *testing.T) {
	backend := &fakeBackend{text: "inspelat"}
	home := setupTestEnv(t, backend)

	stdout, stderr, code := runCmd(t, home, "record", "--duration", "150ms")
	if code != 0 {
		t.Fatalf("record exit %d: %s", code, stderr)
	}
	if stdout != "inspelat\n" {
		t.Errorf("stdout = %q", stdout)
	}
	recordings := filepath.Join(home, "data", "voxmemo", "recordings")
	left, _ := filepath.Glob(filepath.Join(recordings, "*"))
	if len(left) != 0 {
		t.Errorf("recordings left after transcription: %v", left)
	}

	stdout, _, _ = runCmd(t, home, "history", "list", "-o", "json")
	if !strings.Contains(stdout, "inspelat") {
		t.Errorf("history = %q", stdout)
	}
}

func TestSaveFailureKeepsTranscript(t *testing.T) {
	home := setupTestEnv(t, &fakeBackend{text: "dyr transkription"})
	testHistory = brokenHistory{}
	file := writeWAV(t, t.TempDir(), time.Second)

	t.Run("transcribe", func(t *testing.T) {
		stdout, stderr, code := runCmd(t, home, "transcribe", file)
		if code != 1 || !strings.Contains(stderr, memo.Message(memo.ErrPersistenceFailure, "sv")) {
			t.Errorf("exit %d, stderr %q", code, stderr)
		}
		if stdout != "dyr transkription\n" {
			t.Errorf("stdout = %q", stdout)
		}
	})

	t.Run("record", func(t *testing.T) {
		stdout, stderr, code := runCmd(t, home, "record", "--duration", "100ms")
		if code != 1 || !strings.Contains(stderr, "recording kept") {
			t.Errorf("exit %d, stderr %q", code, stderr)
		}
		if stdout != "dyr transkription\n" {
			t.Errorf("stdout = %q", stdout)
		}
		left, _ := filepath.Glob(filepath.Join(home, "data", "voxmemo", "recordings", "*.wav"))
		if len(left) != 1 {
			t.Errorf("recordings = %v, want the one kept", left)
		}
	})
}

func TestWriteErrorHidesDetail(t *testing.T) {
	settings = config.Defaults()
	err := fmt.Errorf("history: open /home/anna/.voxmemo/db: %w", memo.ErrPersistenceFailure)

	tests := []struct {
		name    string
		verbose bool
		detail  bool
	}{
		{"quiet", false, false},
		{"verbose", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verbose = tt.verbose
			defer func() { verbose = false }()

			w := httptest.NewRecorder()
			writeError(w, err)
			if w.Code != http.StatusInternalServerError {
				t.Errorf("status = %d", w.Code)
			}
			var body errorBody
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if body.Error != memo.Message(memo.ErrPersistenceFailure, "sv") {
				t.Errorf("error = %q", body.Error)
			}
			if strings.Contains(body.Error, "/home/anna") || (body.Detail != "") != tt.detail {
				t.Errorf("body = %+v", body)
			}
		})
	}
}

func TestRecordOnly(t *testing.T) {
	backend := &fakeBackend{}
	home := setupTestEnv(t, backend)

	stdout, stderr, code := runCmd(t, home, "record", "--duration", "100ms", "--no-transcribe", "-o", "json")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, stderr)
	}
	var src memo.AudioSource
	if err := json.Unmarshal([]byte(stdout), &src); err != nil {
		t.Fatalf("output %q: %v", stdout, err)
	}
	if filepath.Ext(src.Path) != ".wav" || src.Duration <= 0 {
		t.Errorf("source = %+v", src)
	}
	if _, err := os.Stat(src.Path); err != nil {
		t.Error(err)
	}
	if len(backend.loads) != 0 {
		t.Error("backend used with --no-transcribe")
	}
}

func TestModels(t *testing.T) {
	home := setupTestEnv(t, &fakeBackend{})
	models := filepath.Join(home, "data", "voxmemo", "models")
	if err := os.MkdirAll(models, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(models, "ggml-kb_whisper-small.bin"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	stdout, _, code := runCmd(t, home, "models", "-o", "json")
	if code != 0 {
		t.Fatal("models failed")
	}
	var rows []modelRow
	if err := json.Unmarshal([]byte(stdout), &rows); err != nil {
		t.Fatal(err)
	}
	byID := map[string]modelRow{}
	for _, r := range rows {
		byID[r.ID] = r
	}
	if !byID["kb_whisper-base"].Selected || byID["kb_whisper-base"].Installed {
		t.Errorf("kb_whisper-base = %+v", byID["kb_whisper-base"])
	}
	if !byID["kb_whisper-small"].Installed {
		t.Errorf("kb_whisper-small = %+v", byID["kb_whisper-small"])
	}
	if byID["openai_whisper-base"].Language != "multi" {
		t.Errorf("openai_whisper-base = %+v", byID["openai_whisper-base"])
	}

	stdout, _, _ = runCmd(t, home, "models")
	if !strings.Contains(stdout, "kb_whisper-base") || !strings.Contains(stdout, "installed") {
		t.Errorf("table = %q", stdout)
	}
}

func TestServe(t *testing.T) {
	backend := &fakeBackend{text: "från servern"}
	home := setupTestEnv(t, backend)
	paths = cli.RootedPaths(appName, home)
	settings = config.Defaults()
	logger = slog.Default()
	store := newMemoryHistory(t)
	testHistory = store

	dev, release, err := openDevice()
	if err != nil {
		t.Fatal(err)
	}
	defer release()
	rec, err := newRecorder(dev, logger)
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(newServeMux(rec))
	defer srv.Close()

	post := func(path string) (*http.Response, map[string]any) {
		t.Helper()
		resp, err := http.Post(srv.URL+path, "application/json", nil)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		var body map[string]any
		json.NewDecoder(resp.Body).Decode(&body)
		return resp, body
	}

	if resp, body := post("/stop"); resp.StatusCode != http.StatusConflict {
		t.Errorf("stop while idle = %d %v", resp.StatusCode, body)
	}
	if resp, body := post("/start"); resp.StatusCode != http.StatusOK || body["state"] != "recording" {
		t.Fatalf("start = %d %v", resp.StatusCode, body)
	}
	if resp, _ := post("/start"); resp.StatusCode != http.StatusConflict {
		t.Errorf("second start = %d", resp.StatusCode)
	}
	if resp, body := post("/pause"); resp.StatusCode != http.StatusOK || body["state"] != "paused" {
		t.Errorf("pause = %d %v", resp.StatusCode, body)
	}
	if resp, body := post("/resume"); resp.StatusCode != http.StatusOK || body["state"] != "recording" {
		t.Errorf("resume = %d %v", resp.StatusCode, body)
	}
	time.Sleep(50 * time.Millisecond)

	resp, body := post("/stop")
	if resp.StatusCode != http.StatusOK || body["text"] != "från servern" {
		t.Fatalf("stop = %d %v", resp.StatusCode, body)
	}
	saved, err := store.Get(t.Context(), body["id"].(string))
	if err != nil || saved.Text != "från servern" {
		t.Errorf("saved = %+v, %v", saved, err)
	}

	if body["warning"] != nil {
		t.Errorf("warning after a clean save: %v", body["warning"])
	}

	testHistory = brokenHistory{}
	if resp, body := post("/start"); resp.StatusCode != http.StatusOK {
		t.Fatalf("restart = %d %v", resp.StatusCode, body)
	}
	time.Sleep(50 * time.Millisecond)
	resp, body = post("/stop")
	if resp.StatusCode != http.StatusOK || body["text"] != "från servern" {
		t.Fatalf("stop with failing history = %d %v", resp.StatusCode, body)
	}
	if body["warning"] != memo.Message(memo.ErrPersistenceFailure, "sv") {
		t.Errorf("warning = %v", body["warning"])
	}

	state, err := http.Get(srv.URL + "/state")
	if err != nil {
		t.Fatal(err)
	}
	defer state.Body.Close()
	var snap map[string]any
	json.NewDecoder(state.Body).Decode(&snap)
	if snap["state"] != "stopped" {
		t.Errorf("state = %v", snap)
	}
}

func newMemoryHistory(t *testing.T) history.Store {
	t.Helper()
	fs, err := storage.NewDir(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return history.NewFiles(fs, slog.Default())
}
