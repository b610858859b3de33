package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/lasersoldier/Turtle-Soup/internal/config"
	"github.com/lasersoldier/Turtle-Soup/internal/database"
	"github.com/lasersoldier/Turtle-Soup/internal/engine"
	"github.com/lasersoldier/Turtle-Soup/internal/importer"
	"github.com/lasersoldier/Turtle-Soup/internal/logging"
	"github.com/lasersoldier/Turtle-Soup/internal/metrics"
	"github.com/lasersoldier/Turtle-Soup/internal/models"
	"github.com/lasersoldier/Turtle-Soup/internal/oracle"
	"github.com/lasersoldier/Turtle-Soup/internal/server"
	"github.com/lasersoldier/Turtle-Soup/internal/store"
	"github.com/lasersoldier/Turtle-Soup/internal/tui"
)

const usage = `usage: turtlesoup [command]

commands:
  play                    play in the terminal (default)
  serve                   run the HTTP API
  import [-lang zh] FILE  import puzzles from a pipe-delimited text file or .xlsx workbook
`

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	cmd := "play"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}
	switch cmd {
	case "play", "serve", "import":
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}

	// The terminal UI owns stdout, so it always logs to a file.
	logFile := cfg.LogFile
	if cmd == "play" && logFile == "" {
		logFile = filepath.Join(cfg.SaveDir, "turtlesoup.log")
	}
	logger, closer := logging.New(stdout, cfg.LogLevel, logFile)
	defer closer.Close()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	switch cmd {
	case "play":
		return play(ctx, cfg, logger, st)
	case "serve":
		return serve(ctx, cfg, logger, st)
	default:
		return importFile(ctx, args, cfg, logger, st, stdout)
	}
}

// backend is whichever store STORE selected, plus the database handle when
// there is one.
type backend struct {
	puzzles   store.PuzzleStore
	snapshots store.SnapshotStore
	db        *sql.DB
}

func (b backend) close() {
	if b.db != nil {
		b.db.Close()
	}
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (backend, error) {
	var b backend
	switch cfg.Store {
	case "memory":
		mem := store.NewMemory()
		b.puzzles, b.snapshots = mem, mem
	case "file":
		f, err := store.NewFile(cfg.SaveDir)
		if err != nil {
			return b, fmt.Errorf("opening save dir: %w", err)
		}
		b.puzzles, b.snapshots = f, f
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return b, fmt.Errorf("creating database dir: %w", err)
		}
		db, err := database.Open(ctx, cfg.DBPath)
		if err != nil {
			return b, fmt.Errorf("connecting to sqlite: %w", err)
		}
		ds, err := store.NewDocStore(ctx, db)
		if err != nil {
			db.Close()
			return b, fmt.Errorf("preparing sqlite schema: %w", err)
		}
		b.puzzles, b.snapshots, b.db = ds, ds, db
		logger.Info("connected to sqlite", "path", cfg.DBPath)
	}

	if err := store.SeedDemo(ctx, logger, b.puzzles); err != nil {
		b.close()
		return b, fmt.Errorf("seeding demo puzzles: %w", err)
	}
	return b, nil
}

func newManager(ctx context.Context, cfg *config.Config, logger *slog.Logger, b backend, opts ...engine.ManagerOption) (*engine.Manager, func(), error) {
	o, err := oracle.New(ctx, cfg.Oracle())
	if err != nil {
		return nil, nil, fmt.Errorf("creating oracle: %w", err)
	}
	logger.Info("oracle ready", "provider", cfg.OracleProvider)
	cleanup := func() {
		if err := oracle.Close(o); err != nil {
			logger.Warn("closing oracle", "err", err)
		}
	}
	return engine.NewManager(b.puzzles, b.snapshots, o, logger, opts...), cleanup, nil
}

func play(ctx context.Context, cfg *config.Config, logger *slog.Logger, b backend) error {
	games, cleanup, err := newManager(ctx, cfg, logger, b)
	if err != nil {
		return err
	}
	defer cleanup()

	return tui.Run(games, b.puzzles, cfg.PuzzleLanguage())
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger, b backend) error {
	metrics.Init()

	broker := server.NewBroker()
	games, cleanup, err := newManager(ctx, cfg, logger, b, engine.WithPublisher(broker))
	if err != nil {
		return err
	}
	defer cleanup()

	srv := server.New(cfg.HTTPAddr, logger, server.Deps{
		Puzzles: b.puzzles,
		Games:   games,
		Broker:  broker,
		DB:      b.db,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	return g.Wait()
}

func importFile(ctx context.Context, args []string, cfg *config.Config, logger *slog.Logger, b backend, stdout io.Writer) error {
	fset := flag.NewFlagSet("import", flag.ContinueOnError)
	langFlag := fset.String("lang", cfg.Language, "puzzle language (en or zh)")
	if err := fset.Parse(args); err != nil {
		return err
	}
	if fset.NArg() != 1 {
		return fmt.Errorf("import needs exactly one file\n%s", usage)
	}
	lang, ok := models.ParseLanguage(*langFlag)
	if !ok {
		return fmt.Errorf("unsupported language %q", *langFlag)
	}

	path := fset.Arg(0)
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var res importer.Result
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		res, err = importer.ImportWorkbook(f, lang)
	} else {
		res, err = importer.Import(f, lang)
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	for _, p := range res.Puzzles {
		if err := b.puzzles.Upsert(ctx, lang, p); err != nil {
			return fmt.Errorf("saving %q: %w", p.Title, err)
		}
	}
	for _, fail := range res.Failures {
		fmt.Fprintf(stdout, "line %d: %v\n", fail.Line, fail.Err)
	}
	fmt.Fprintf(stdout, "imported %d puzzles into %s (%d skipped, %d failed)\n",
		res.Imported(), lang, res.Skipped, len(res.Failures))

	logger.Info("puzzles imported", "language", lang, "imported", res.Imported(), "skipped", res.Skipped, "failed", len(res.Failures))
	return nil
}
