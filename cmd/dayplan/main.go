package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/ldi/dayplan/internal/config"
	"github.com/ldi/dayplan/internal/db"
	"github.com/ldi/dayplan/internal/mcp"
	"github.com/ldi/dayplan/internal/server"
	"github.com/ldi/dayplan/internal/session"
	"github.com/ldi/dayplan/internal/taskstore"
	"github.com/ldi/dayplan/internal/ui"
	"github.com/ldi/dayplan/pkg/models"
)

const shutdownTimeout = 10 * time.Second

// Replaced in tests.
var (
	runMenu  = ui.RunMenu
	runWatch = ui.RunWatch
)

func main() {
	if err := execute(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globals are the flags accepted before the command name.
type globals struct {
	root         string
	dbPath       string
	snapshotPath string
	logLevel     string
	verbose      bool
}

func execute(args []string, stdout, stderr io.Writer) error {
	var g globals
	fs := flag.NewFlagSet("dayplan", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&g.root, "root", ".", "Project directory containing .dayplan/")
	fs.StringVar(&g.dbPath, "db-path", "", "Path to database file (default .dayplan/dayplan.db)")
	fs.StringVar(&g.snapshotPath, "snapshot-path", "", "Path to snapshot file (default .dayplan/snapshot.jsonl)")
	fs.StringVar(&g.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	fs.BoolVar(&g.verbose, "verbose", false, "Shorthand for -log-level debug")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: dayplan [flags] <command> [arguments]")
		fmt.Fprintln(stderr, "\nCommands:")
		fmt.Fprintln(stderr, "  init      Create .dayplan/ with a config and database")
		fmt.Fprintln(stderr, "  serve     Run the HTTP API")
		fmt.Fprintln(stderr, "  mcp       Run the MCP server on stdio")
		fmt.Fprintln(stderr, "  signup    Register an account")
		fmt.Fprintln(stderr, "  tasks     List, add, complete or delete tasks")
		fmt.Fprintln(stderr, "  export    Write a JSONL snapshot of all tasks")
		fmt.Fprintln(stderr, "  import    Load a JSONL snapshot")
		fmt.Fprintln(stderr, "  status    Show backend statistics")
		fmt.Fprintln(stderr, "\nRunning `dayplan` with no command opens an interactive menu.")
		fmt.Fprintln(stderr, "\nFlags:")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	var command string
	var rest []string
	if fs.NArg() == 0 {
		selected, err := runMenu()
		if err != nil {
			return fmt.Errorf("failed to run menu: %w", err)
		}
		if selected == "" {
			return nil
		}
		command = selected
	} else {
		command = fs.Arg(0)
		rest = fs.Args()[1:]
	}

	// init creates the config, so it must not require one.
	if command == "init" {
		return runInit(g, rest, stdout)
	}

	cfg, err := loadConfig(g)
	if err != nil {
		return err
	}

	switch command {
	case "serve":
		return runServe(cfg, rest, stderr)
	case "mcp":
		return runMCP(cfg, stderr)
	case "signup":
		return runSignUp(cfg, rest, stdout, stderr)
	case "tasks":
		return runTasks(cfg, rest, stdout, stderr)
	case "export":
		return runExport(cfg, rest, stdout)
	case "import":
		return runImport(cfg, rest, stdout)
	case "status":
		return runStatus(cfg, stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

func loadConfig(g globals) (config.Config, error) {
	cfg, err := config.Load(g.root)
	if err != nil {
		return cfg, err
	}
	if g.dbPath != "" {
		cfg.DBPath = g.dbPath
	}
	if g.snapshotPath != "" {
		cfg.SnapshotPath = g.snapshotPath
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	if g.verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

func newSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func runInit(g globals, args []string, stdout io.Writer) error {
	root := g.root
	if len(args) > 0 {
		root = args[0]
	}

	stateDir := filepath.Join(root, config.Dir)
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", config.Dir, err)
	}
	fmt.Fprintf(stdout, "✓ Created %s/ directory\n", config.Dir)

	gitignorePath := filepath.Join(stateDir, ".gitignore")
	if err := os.WriteFile(gitignorePath, []byte("dayplan.db*\nconfig.json\n"), 0644); err != nil {
		return fmt.Errorf("failed to create .gitignore: %w", err)
	}
	fmt.Fprintf(stdout, "✓ Created %s/.gitignore\n", config.Dir)

	cfg, err := config.Load(root)
	if err != nil {
		return err
	}
	if g.dbPath != "" {
		cfg.DBPath = g.dbPath
	}
	if g.snapshotPath != "" {
		cfg.SnapshotPath = g.snapshotPath
	}

	if _, err := os.Stat(config.Path(root)); errors.Is(err, os.ErrNotExist) {
		if cfg.JWTSecret == "" {
			if cfg.JWTSecret, err = newSecret(); err != nil {
				return fmt.Errorf("failed to generate jwt secret: %w", err)
			}
		}
		if err := config.Save(root, cfg); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "✓ Wrote %s\n", config.Path(root))
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	ctx := context.Background()
	if err := database.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	fmt.Fprintf(stdout, "✓ Initialized database at %s\n", cfg.DBPath)

	if _, err := os.Stat(cfg.SnapshotPath); err == nil {
		n, err := database.ImportSnapshot(ctx, cfg.SnapshotPath)
		if err != nil {
			return fmt.Errorf("failed to import snapshot: %w", err)
		}
		fmt.Fprintf(stdout, "✓ Imported %d documents from %s\n", n, cfg.SnapshotPath)
	}

	fmt.Fprintln(stdout, "✓ Dayplan initialized successfully")
	return nil
}

func runServe(cfg config.Config, args []string, stderr io.Writer) error {
	serveFlags := flag.NewFlagSet("serve", flag.ContinueOnError)
	serveFlags.SetOutput(stderr)
	addr := serveFlags.String("addr", cfg.Addr, "Address to listen on")
	if err := serveFlags.Parse(args); err != nil {
		return err
	}

	logger, err := cfg.NewLogger(stderr)
	if err != nil {
		return err
	}

	a, err := openApp(context.Background(), cfg, logger)
	if err != nil {
		return err
	}
	a.enableAutoSnapshot()

	srv := server.NewServer(a.provider, a.tasks, logger)
	go func() {
		if err := srv.Start(*addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"http-server": func(ctx context.Context) error {
				logger.Info("graceful shutdown initiated")
				return srv.Shutdown(ctx)
			},
		},
	)

	exitCode := <-wait
	if err := a.Close(); err != nil {
		logger.Warn("failed to close database", "error", err)
	}
	if exitCode != 0 {
		return fmt.Errorf("shutdown finished with exit code %d", exitCode)
	}
	return nil
}

func runMCP(cfg config.Config, stderr io.Writer) error {
	logger, err := cfg.NewLogger(stderr)
	if err != nil {
		return err
	}

	a, err := openApp(context.Background(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	a.enableAutoSnapshot()

	sess := session.New(a.provider, logger)
	defer sess.Close()

	s := mcp.NewServer(sess, taskstore.ForSession(a.tasks, sess))
	return mcp.Serve(s)
}

func runSignUp(cfg config.Config, args []string, stdout, stderr io.Writer) error {
	signUpFlags := flag.NewFlagSet("signup", flag.ContinueOnError)
	signUpFlags.SetOutput(stderr)
	email := signUpFlags.String("email", "", "Account email")
	password := signUpFlags.String("password", os.Getenv("DAYPLAN_PASSWORD"), "Account password (or DAYPLAN_PASSWORD)")
	if err := signUpFlags.Parse(args); err != nil {
		return err
	}

	logger, err := cfg.NewLogger(stderr)
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := openApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	creds, err := a.provider.SignUp(ctx, *email, *password)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "✓ Registered %s (user id %s)\n", creds.Identity.Email, creds.Identity.UserID)
	return nil
}

type subTaskFlag []string

func (f *subTaskFlag) String() string {
	return strings.Join(*f, ",")
}

func (f *subTaskFlag) Set(v string) error {
	*f = append(*f, v)
	return nil
}

func runTasks(cfg config.Config, args []string, stdout, stderr io.Writer) error {
	taskFlags := flag.NewFlagSet("tasks", flag.ContinueOnError)
	taskFlags.SetOutput(stderr)
	email := taskFlags.String("email", os.Getenv("DAYPLAN_EMAIL"), "Account email (or DAYPLAN_EMAIL)")
	password := taskFlags.String("password", os.Getenv("DAYPLAN_PASSWORD"), "Account password (or DAYPLAN_PASSWORD)")
	add := taskFlags.String("add", "", "Create a task with this name")
	slot := taskFlags.String("slot", "", "Time slot for -add")
	var subTasks subTaskFlag
	taskFlags.Var(&subTasks, "sub", "Sub-task for -add (repeatable)")
	complete := taskFlags.String("complete", "", "Mark the task with this id completed")
	reopen := taskFlags.String("reopen", "", "Mark the task with this id not completed")
	remove := taskFlags.String("delete", "", "Delete the task with this id")
	watch := taskFlags.Bool("watch", false, "Follow the task list live")
	if err := taskFlags.Parse(args); err != nil {
		return err
	}

	logger, err := cfg.NewLogger(stderr)
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := openApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	sess := session.New(a.provider, logger)
	defer sess.Close()
	if _, err := sess.SignIn(ctx, *email, *password); err != nil {
		return err
	}
	defer sess.SignOut(ctx)

	tasks := taskstore.ForSession(a.tasks, sess)

	switch {
	case *add != "":
		var draft taskstore.Draft
		draft.SetName(*add)
		draft.SetTimeSlot(*slot)
		for _, st := range subTasks {
			draft.AddSubTask(st)
		}
		t, err := draft.Build()
		if err != nil {
			return err
		}
		created, err := tasks.Add(ctx, t)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "✓ Created task %s (%s)\n", created.Name, created.ID)
	case *complete != "", *reopen != "":
		id, done := *complete, true
		if id == "" {
			id, done = *reopen, false
		}
		t, err := findTask(ctx, tasks, id)
		if err != nil {
			return err
		}
		if err := tasks.SetCompleted(ctx, t, done); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "✓ Updated task %s\n", t.Name)
	case *remove != "":
		if err := tasks.Delete(ctx, *remove); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "✓ Deleted task %s\n", *remove)
	}

	if *watch {
		sub, err := tasks.List(ctx)
		if err != nil {
			return err
		}
		return runWatch(sub)
	}

	list, err := currentTasks(ctx, tasks)
	if err != nil {
		return err
	}
	printTasks(stdout, list)
	return nil
}

func currentTasks(ctx context.Context, tasks *taskstore.SessionClient) ([]models.Task, error) {
	sub, err := tasks.List(ctx)
	if err != nil {
		return nil, err
	}
	defer sub.Close()

	snap, ok := <-sub.C()
	if !ok {
		return nil, errors.New("task listing ended before the first snapshot")
	}
	return snap.Tasks, snap.Err
}

func findTask(ctx context.Context, tasks *taskstore.SessionClient, id string) (models.Task, error) {
	list, err := currentTasks(ctx, tasks)
	if err != nil {
		return models.Task{}, err
	}
	for _, t := range list {
		if t.ID == id {
			return t, nil
		}
	}
	return models.Task{}, &taskstore.NotFoundError{ID: id}
}

func printTasks(w io.Writer, tasks []models.Task) {
	fmt.Fprintf(w, "%-22s %-4s %-30s %-20s\n", "ID", "DONE", "NAME", "TIME SLOT")
	fmt.Fprintln(w, "------------------------------------------------------------------------------")
	for _, t := range tasks {
		done := " "
		if t.IsCompleted {
			done = "x"
		}
		fmt.Fprintf(w, "%-22s [%s]  %-30s %-20s\n", t.ID, done, t.Name, t.TimeSlot)
		for _, st := range t.SubTasks {
			fmt.Fprintf(w, "%-22s      - %s\n", "", st.Name)
		}
	}
}

func snapshotArg(cfg config.Config, args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return cfg.SnapshotPath
}

func runExport(cfg config.Config, args []string, stdout io.Writer) error {
	path := snapshotArg(cfg, args)

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	ctx := context.Background()
	if err := database.Init(ctx); err != nil {
		return err
	}
	if err := database.ExportSnapshot(ctx, path); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "✓ Exported snapshot to %s\n", path)
	return nil
}

func runImport(cfg config.Config, args []string, stdout io.Writer) error {
	path := snapshotArg(cfg, args)

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	ctx := context.Background()
	if err := database.Init(ctx); err != nil {
		return err
	}
	n, err := database.ImportSnapshot(ctx, path)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "✓ Imported %d documents from %s\n", n, path)
	return nil
}

func runStatus(cfg config.Config, stdout io.Writer) error {
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	ctx := context.Background()
	if err := database.Init(ctx); err != nil {
		return err
	}
	stats, err := database.Stats(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(stdout, "Dayplan Status")
	fmt.Fprintln(stdout, "==============")
	fmt.Fprintf(stdout, "Database:        %s\n", cfg.DBPath)
	fmt.Fprintf(stdout, "Users:           %d\n", stats.Users)
	fmt.Fprintf(stdout, "Task Lists:      %d\n", stats.Collections)
	fmt.Fprintf(stdout, "Total Tasks:     %d\n", stats.Documents)
	return nil
}
