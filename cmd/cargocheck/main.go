package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"

	"github.com/erazemk/cargocheck/internal/api"
	"github.com/erazemk/cargocheck/internal/config"
	"github.com/erazemk/cargocheck/internal/db"
	"github.com/erazemk/cargocheck/internal/export"
	"github.com/erazemk/cargocheck/internal/filter"
	"github.com/erazemk/cargocheck/internal/model"
	"github.com/erazemk/cargocheck/internal/report"
	"github.com/erazemk/cargocheck/internal/share"
	"github.com/erazemk/cargocheck/internal/stats"
	"github.com/erazemk/cargocheck/internal/store"
	"github.com/erazemk/cargocheck/internal/web"
)

const usage = `Usage: cargocheck [command] [flags]

Commands:
  serve           run the web interface and API (default)
  export          export inspections to the export directory
  list            list inspections
  stats           print dashboard statistics
  import          import inspections from a JSON file (-f <path>)

Common flags:
  -c, -config <dir>       directory containing config.yaml (default: .)
  -d, -db <path>          SQLite database path (overrides storage.path)
  -l, -log <path>         log file path (default: no file, stdout/stderr only)
  -h, -help               show this help and exit

serve:
  -a, -addr <host:port>   listen address (overrides server.addr)

export:
  -ids <id,id,...>        export only these records (default: all)
  -layout <name>          organized or flat (default: organized)
  -photos                 include photos (organized layout only)
  -sink <name>            device, email, messaging or cloud (default: device)
  -to <recipient>         email address or phone number
  -provider <name>        cloud provider named in the instructions

list:
  -q <text>               search invoice, material and inspector
  -category <name>        all, compliant, non-compliant, recent, exported, not-exported
`

// levelRouter is a slog.Handler that routes records below ERROR to stdout and
// ERROR+ to stderr.
type levelRouter struct {
	min    slog.Level
	stdout slog.Handler
	stderr slog.Handler
}

func (lr *levelRouter) Enabled(_ context.Context, level slog.Level) bool {
	return level >= lr.min
}

func (lr *levelRouter) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		return lr.stderr.Handle(ctx, r)
	}
	return lr.stdout.Handle(ctx, r)
}

func (lr *levelRouter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelRouter{
		min:    lr.min,
		stdout: lr.stdout.WithAttrs(attrs),
		stderr: lr.stderr.WithAttrs(attrs),
	}
}

func (lr *levelRouter) WithGroup(name string) slog.Handler {
	return &levelRouter{
		min:    lr.min,
		stdout: lr.stdout.WithGroup(name),
		stderr: lr.stderr.WithGroup(name),
	}
}

// setupLogger configures structured logging. Records below ERROR go to
// stdout, ERROR goes to stderr. If logPath is non-empty, all levels are also
// written to that file. Returns a cleanup function that closes the log file
// (if opened).
func setupLogger(logPath string, level slog.Level) (func(), error) {
	opts := &slog.HandlerOptions{Level: level}

	var cleanup func()

	stdoutW := io.Writer(os.Stdout)
	stderrW := io.Writer(os.Stderr)

	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		cleanup = func() { f.Close() }
		stdoutW = io.MultiWriter(os.Stdout, f)
		stderrW = io.MultiWriter(os.Stderr, f)
	}

	handler := &levelRouter{
		min:    level,
		stdout: slog.NewTextHandler(stdoutW, opts),
		stderr: slog.NewTextHandler(stderrW, opts),
	}
	slog.SetDefault(slog.New(handler))
	return cleanup, nil
}

// commonFlags are accepted by every command.
type commonFlags struct {
	configDir string
	dbPath    string
	logPath   string
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configDir, "config", ".", "")
	fs.StringVar(&c.configDir, "c", ".", "")
	fs.StringVar(&c.dbPath, "db", "", "")
	fs.StringVar(&c.dbPath, "d", "", "")
	fs.StringVar(&c.logPath, "log", "", "")
	fs.StringVar(&c.logPath, "l", "", "")
}

func main() {
	args := os.Args[1:]
	cmd := "serve"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "serve":
		err = cmdServe(args)
	case "export":
		err = cmdExport(args)
	case "list":
		err = cmdList(args)
	case "stats":
		err = cmdStats(args)
	case "import":
		err = cmdImport(args)
	case "help":
		fmt.Fprint(os.Stdout, usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newFlagSet(name string, common *commonFlags) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.Usage = func() { fmt.Fprint(os.Stdout, usage) }
	common.register(fs)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		fs.Usage()
		return fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}
	return nil
}

// app holds the opened stores of one command invocation.
type app struct {
	cfg     config.Config
	db      *sql.DB
	docs    store.Documents
	records *store.RecordStore
	closers []func() error
}

// openApp loads configuration, sets up logging and opens the stores.
func openApp(common commonFlags) (*app, error) {
	cfg, err := config.Load(afero.NewOsFs(), common.configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if common.dbPath != "" {
		cfg.Storage.Path = common.dbPath
	}
	if common.logPath != "" {
		cfg.Log.File = common.logPath
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	closeLog, err := setupLogger(cfg.Log.File, level)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}
	if closeLog != nil {
		a.closers = append(a.closers, func() error { closeLog(); return nil })
	}

	// SQLite always holds settings, share-link revocations and export
	// history; Badger can take over the document collections.
	database, err := db.Open(cfg.Storage.Path)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("opening database: %w", err)
	}
	a.db = database
	a.closers = append(a.closers, database.Close)

	if err := db.EnsureSchema(database); err != nil {
		a.Close()
		return nil, fmt.Errorf("ensuring database schema: %w", err)
	}
	if n, err := (store.ShareRevocations{DB: database}).Prune(context.Background()); err != nil {
		slog.Warn("pruning share revocations", "error", err)
	} else if n > 0 {
		slog.Info("pruned expired share revocations", "count", n)
	}

	switch cfg.Storage.Driver {
	case config.DriverBadger:
		bd, err := store.OpenBadger(cfg.Storage.BadgerDir)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.docs = bd
		a.closers = append(a.closers, bd.Close)
		slog.Info("document store ready", "driver", config.DriverBadger, "path", cfg.Storage.BadgerDir)
	default:
		a.docs = &store.SQLiteDocuments{DB: database}
		slog.Info("document store ready", "driver", config.DriverSQLite, "path", cfg.Storage.Path)
	}

	a.records = store.NewRecordStore(a.docs)
	return a, nil
}

// Close releases everything openApp opened, in reverse order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Error("closing", "error", err)
		}
	}
}

// exporter builds the export orchestrator from configuration.
func (a *app) exporter(ctx context.Context, progress func(export.Progress)) (*export.Orchestrator, *share.Issuer, error) {
	secret, err := store.GetShareSecret(ctx, a.db)
	if err != nil {
		return nil, nil, fmt.Errorf("loading share secret: %w", err)
	}
	issuer := share.NewIssuer(secret, a.cfg.Share.BaseURL, a.cfg.Share.TTL)

	fs := afero.NewOsFs()
	opts := []export.Option{
		export.WithFilesystem(fs),
		export.WithDirectory(a.cfg.Export.Dir),
		export.WithPrefix(a.cfg.Export.Prefix),
		export.WithFullTimestamp(a.cfg.Export.Timestamp == config.TimestampFull),
		export.WithSpreadsheet(a.cfg.Export.Spreadsheet),
		export.WithAttachmentLimit(a.cfg.Export.EmailAttachmentLimit),
		export.WithSharer(&share.LinkSharer{Issuer: issuer, Dir: a.cfg.Export.Dir}),
		export.WithMailer(&export.OutboxMailer{FS: fs, Dir: a.cfg.Export.OutboxDir}),
		export.WithLinkOpener(&export.SchemeOpener{Allowed: a.cfg.Links.AllowedSchemes}),
		export.WithHistory(store.ExportHistory{DB: a.db}),
	}
	if progress != nil {
		opts = append(opts, export.WithProgress(progress))
	}
	return export.New(a.records, opts...), issuer, nil
}

func cmdServe(args []string) error {
	var common commonFlags
	fs := newFlagSet("serve", &common)
	var addr string
	fs.StringVar(&addr, "addr", "", "")
	fs.StringVar(&addr, "a", "", "")
	if err := parse(fs, args); err != nil {
		return err
	}

	a, err := openApp(common)
	if err != nil {
		return err
	}
	defer a.Close()
	if addr == "" {
		addr = a.cfg.Server.Addr
	}

	hub := api.NewHub(a.cfg.Server.AllowedOrigins)
	exporter, issuer, err := a.exporter(context.Background(), hub.PublishProgress)
	if err != nil {
		return err
	}

	// Set up routers.
	apiRouter := api.NewRouter(api.Deps{
		Records:        a.records,
		Docs:           a.docs,
		DB:             a.db,
		Exporter:       exporter,
		Links:          issuer,
		Hub:            hub,
		AllowedOrigins: a.cfg.Server.AllowedOrigins,
	})
	webRouter, err := web.NewRouter(a.records, a.docs, nil)
	if err != nil {
		return fmt.Errorf("setting up web router: %w", err)
	}

	// Combine: API routes take priority, web routes handle the rest.
	mux := http.NewServeMux()
	mux.Handle("/api/", apiRouter)
	mux.Handle("/", webRouter)

	handler := api.LoggingMiddleware(mux)

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Exports run within the request.
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-quit
		slog.Info("shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %w", err)
	}

	slog.Info("server stopped, closing database")
	return nil
}

func cmdExport(args []string) error {
	var common commonFlags
	fs := newFlagSet("export", &common)
	ids := fs.String("ids", "", "")
	layout := fs.String("layout", string(model.LayoutOrganized), "")
	photos := fs.Bool("photos", false, "")
	sink := fs.String("sink", string(model.SinkDevice), "")
	to := fs.String("to", "", "")
	provider := fs.String("provider", "", "")
	if err := parse(fs, args); err != nil {
		return err
	}

	a, err := openApp(common)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exporter, _, err := a.exporter(ctx, func(p export.Progress) {
		slog.Debug("export progress", "state", p.State, "fraction", p.Fraction, "message", p.Message)
	})
	if err != nil {
		return err
	}

	opts := model.ExportOptions{
		Scope:         model.Scope{All: *ids == ""},
		Layout:        model.Layout(*layout),
		IncludePhotos: *photos,
		Sink:          model.SinkKind(*sink),
		Recipient:     *to,
		Provider:      *provider,
	}
	if *ids != "" {
		for _, id := range strings.Split(*ids, ",") {
			if id = strings.TrimSpace(id); id != "" {
				opts.Scope.IDs = append(opts.Scope.IDs, id)
			}
		}
	}

	res, err := exporter.Run(ctx, opts)
	if err != nil {
		return err
	}
	printResult(exporter.Filesystem(), res)
	return nil
}

// printResult prints a finished export run to stdout.
func printResult(fs afero.Fs, res *export.Result) {
	var size uint64
	for _, f := range res.Files {
		if info, err := fs.Stat(filepath.Join(res.Root, filepath.FromSlash(f))); err == nil {
			size += uint64(info.Size())
		}
	}

	fmt.Printf("Exported %d inspection(s) to %s\n", res.Run.RecordCount, res.Root)
	fmt.Printf("  Files: %d (%s)\n", len(res.Files), humanize.Bytes(size))
	if res.SkippedPhotos > 0 {
		fmt.Printf("  Skipped photos: %d\n", res.SkippedPhotos)
	}
	if res.ShareURL != "" {
		fmt.Printf("  Share link: %s\n", res.ShareURL)
	}
	if res.MessageURL != "" {
		fmt.Printf("  Message link: %s\n", res.MessageURL)
	}
	if res.BodyOnly {
		fmt.Println("  Attachments could not be added; the email carries the summary only.")
	}
	if res.Instructions != "" {
		fmt.Println()
		fmt.Println(res.Instructions)
	}
}

func cmdList(args []string) error {
	var common commonFlags
	fs := newFlagSet("list", &common)
	query := fs.String("q", "", "")
	categoryName := fs.String("category", "", "")
	if err := parse(fs, args); err != nil {
		return err
	}
	category, ok := model.ParseCategory(*categoryName)
	if !ok {
		return fmt.Errorf("unknown category: %s", *categoryName)
	}

	a, err := openApp(common)
	if err != nil {
		return err
	}
	defer a.Close()

	records, err := a.records.List(context.Background())
	if err != nil {
		return err
	}
	now := time.Now()
	matched := filter.Apply(records, *query, category, now)
	for _, r := range matched {
		status := "OK"
		if r.NonConforming {
			status = "NC " + report.HumanizeKey(r.NonConformanceType)
		}
		exported := ""
		if r.Exported {
			exported = " [exported]"
		}
		fmt.Printf("%-20s %-24s %-16s %-24s %s%s\n",
			r.InvoiceNumber, r.MaterialType, r.QualityInspector, status, humanize.Time(r.InspectionDate), exported)
	}
	fmt.Printf("%d of %d inspection(s)\n", len(matched), len(records))
	return nil
}

func cmdStats(args []string) error {
	var common commonFlags
	fs := newFlagSet("stats", &common)
	if err := parse(fs, args); err != nil {
		return err
	}

	a, err := openApp(common)
	if err != nil {
		return err
	}
	defer a.Close()

	records, err := a.records.List(context.Background())
	if err != nil {
		return err
	}
	s := stats.Summarize(records, time.Now())

	fmt.Printf("Inspections:      %s\n", humanize.Comma(int64(s.TotalInspections)))
	fmt.Printf("Compliant:        %s\n", humanize.Comma(int64(s.CompliantCount)))
	fmt.Printf("Non-compliant:    %s\n", humanize.Comma(int64(s.NonCompliantCount)))
	fmt.Printf("Compliance rate:  %s\n", report.FormatRate(s.ComplianceRate))
	fmt.Printf("Last 7 days:      %s\n", humanize.Comma(int64(s.RecentCount)))
	printBreakdown("Material types", s.MaterialTypeBreakdown, func(k string) string { return k })
	printBreakdown("Non-conformance types", s.NonConformanceTypeBreakdown, report.HumanizeKey)
	return nil
}

func printBreakdown(title string, buckets []model.Breakdown, label func(string) string) {
	if len(buckets) == 0 {
		return
	}
	fmt.Printf("\n%s:\n", title)
	for _, b := range buckets {
		fmt.Printf("  %-28s %d\n", label(b.Name), b.Count)
	}
}

func cmdImport(args []string) error {
	var common commonFlags
	fs := newFlagSet("import", &common)
	var file string
	fs.StringVar(&file, "file", "", "")
	fs.StringVar(&file, "f", "", "")
	if err := parse(fs, args); err != nil {
		return err
	}
	if file == "" {
		return errors.New("import: -file is required")
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("reading %s: %w", file, err)
	}
	incoming, err := store.DecodeInspections(data)
	if err != nil {
		return err
	}

	a, err := openApp(common)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.records.Import(context.Background(), incoming)
	if err != nil {
		return err
	}
	fmt.Printf("Imported %s: %d created, %d updated, %d skipped\n", file, res.Created, res.Updated, len(res.Skipped))
	for _, id := range res.Skipped {
		fmt.Printf("  skipped %s\n", id)
	}
	return nil
}
