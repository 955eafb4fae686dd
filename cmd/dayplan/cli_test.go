package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ldi/dayplan/internal/config"
	"github.com/ldi/dayplan/internal/taskstore"
)

// setupProject creates a project directory with a fast bcrypt cost.
func setupProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	cfg := config.Default(root)
	cfg.JWTSecret = "cli-test-secret"
	cfg.BcryptCost = 4
	cfg.LogLevel = "error"
	if err := config.Save(root, cfg); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}
	return root
}

func run(t *testing.T, root string, args ...string) string {
	t.Helper()
	var stdout, stderr bytes.Buffer
	if err := execute(append([]string{"--root", root}, args...), &stdout, &stderr); err != nil {
		t.Fatalf("%v failed: %v\nstderr: %s", args, err, stderr.String())
	}
	return stdout.String()
}

func taskIDFrom(t *testing.T, output string) string {
	t.Helper()
	start := strings.LastIndex(output, "(")
	end := strings.LastIndex(output, ")")
	if start == -1 || end <= start {
		t.Fatalf("no task id in output: %s", output)
	}
	return output[start+1 : end]
}

func TestSignUpAndTasks(t *testing.T) {
	root := setupProject(t)
	creds := []string{"--email", "alice@example.com", "--password", "secret1"}

	out := run(t, root, append([]string{"signup"}, creds...)...)
	if !strings.Contains(out, "Registered alice@example.com") {
		t.Errorf("unexpected signup output: %s", out)
	}

	out = run(t, root, append([]string{"tasks", "--add", "Write report", "--slot", "Monday 9am-10am", "--sub", "Outline", "--sub", "Draft"}, creds...)...)
	if !strings.Contains(out, "Created task Write report") {
		t.Fatalf("unexpected add output: %s", out)
	}
	id := taskIDFrom(t, strings.SplitN(out, "\n", 2)[0])

	out = run(t, root, append([]string{"tasks"}, creds...)...)
	if !strings.Contains(out, "Write report") || !strings.Contains(out, "- Outline") || !strings.Contains(out, "- Draft") {
		t.Errorf("expected task with sub-tasks in listing: %s", out)
	}
	if strings.Index(out, "- Outline") > strings.Index(out, "- Draft") {
		t.Errorf("expected sub-tasks in submitted order: %s", out)
	}

	out = run(t, root, append([]string{"tasks", "--complete", id}, creds...)...)
	if !strings.Contains(out, "[x]") {
		t.Errorf("expected completed task in listing: %s", out)
	}

	out = run(t, root, append([]string{"tasks", "--delete", id}, creds...)...)
	if strings.Contains(out, "Write report  ") || strings.Contains(out, "[x]") {
		t.Errorf("expected task to be gone: %s", out)
	}
	run(t, root, append([]string{"tasks", "--delete", id}, creds...)...)
}

func TestTasksWithWrongPassword(t *testing.T) {
	root := setupProject(t)
	run(t, root, "signup", "--email", "bob@example.com", "--password", "secret1")

	var stdout, stderr bytes.Buffer
	err := execute([]string{"--root", root, "tasks", "--email", "bob@example.com", "--password", "wrong-one"}, &stdout, &stderr)
	if err == nil {
		t.Fatal("expected sign-in failure")
	}
	if !strings.Contains(err.Error(), "password is invalid") {
		t.Errorf("expected provider message, got: %v", err)
	}
}

func TestTasksWatch(t *testing.T) {
	root := setupProject(t)
	run(t, root, "signup", "--email", "carol@example.com", "--password", "secret1")

	original := runWatch
	t.Cleanup(func() { runWatch = original })

	var got taskstore.Snapshot
	runWatch = func(sub *taskstore.SnapshotSubscription) error {
		defer sub.Close()
		got = <-sub.C()
		return nil
	}

	run(t, root, "tasks", "--email", "carol@example.com", "--password", "secret1", "--add", "Watched", "--slot", "Now", "--watch")
	if len(got.Tasks) != 1 || got.Tasks[0].Name != "Watched" {
		t.Errorf("expected first snapshot with the created task, got %+v", got)
	}
}

func TestStatus(t *testing.T) {
	root := setupProject(t)
	run(t, root, "signup", "--email", "dave@example.com", "--password", "secret1")
	run(t, root, "tasks", "--email", "dave@example.com", "--password", "secret1", "--add", "One", "--slot", "Now")

	out := run(t, root, "status")
	if !strings.Contains(out, "Users:           1") {
		t.Errorf("output missing user count: %s", out)
	}
	if !strings.Contains(out, "Total Tasks:     1") {
		t.Errorf("output missing total tasks count: %s", out)
	}
}

func TestExportImport(t *testing.T) {
	root := setupProject(t)
	run(t, root, "signup", "--email", "erin@example.com", "--password", "secret1")
	run(t, root, "tasks", "--email", "erin@example.com", "--password", "secret1", "--add", "Backup me", "--slot", "Now")

	path := filepath.Join(t.TempDir(), "backup.jsonl")
	out := run(t, root, "export", path)
	if !strings.Contains(out, "Exported snapshot") {
		t.Errorf("unexpected export output: %s", out)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read snapshot: %v", err)
	}
	if !strings.Contains(string(data), "Backup me") {
		t.Errorf("snapshot missing task: %s", data)
	}

	other := setupProject(t)
	out = run(t, other, "import", path)
	if !strings.Contains(out, "Imported 1 documents") {
		t.Errorf("unexpected import output: %s", out)
	}
	out = run(t, other, "status")
	if !strings.Contains(out, "Total Tasks:     1") {
		t.Errorf("expected imported task in status: %s", out)
	}
}
