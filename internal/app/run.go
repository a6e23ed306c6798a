package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"luki-produkttexte/internal/catalog"
	"luki-produkttexte/internal/config"
	"luki-produkttexte/internal/discovery"
	"luki-produkttexte/internal/llm"
	"luki-produkttexte/internal/logging"
	"luki-produkttexte/internal/output"
	"luki-produkttexte/internal/session"
)

type Options struct {
	Input      string
	ConfigPath string
	OutputDir  string
	Provider   string
	Model      string
	MaxRetries int
	RowErrors  string
	SessionKey string
	LogFile    string
	Verbose    bool
	CWD        string
	Stdout     io.Writer
	Now        func() time.Time
}

type Result struct {
	RunID      string
	Input      string
	State      RunState
	Rows       int
	Pending    int
	Skipped    int
	Invalid    int
	Generated  int
	Failed     int
	Tokens     int
	OutputFile string
	ElapsedMS  int64
}

// env is the resolved configuration shared by all commands.
type env struct {
	cwd    string
	cfg    *config.Config
	paths  *config.Paths
	logger *logging.Logger
	closer io.Closer
	now    func() time.Time
}

func (e *env) close() {
	e.logger.Sync()
	if e.closer != nil {
		_ = e.closer.Close()
	}
}

func prepare(opts Options) (*env, error) {
	cwd := strings.TrimSpace(opts.CWD)
	if cwd == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("aktuelles Verzeichnis nicht lesbar: %w", err)
		}
		cwd = wd
	}
	cfg, paths, err := config.Load(opts.ConfigPath, cwd)
	if err != nil {
		return nil, err
	}
	overrideConfig(cfg, opts)

	stdout := opts.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	logger, closer, err := logging.New(stdout, opts.LogFile, opts.Verbose)
	if err != nil {
		return nil, fmt.Errorf("Logger initialisieren fehlgeschlagen: %w", err)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &env{cwd: cwd, cfg: cfg, paths: paths, logger: logger, closer: closer, now: now}, nil
}

func overrideConfig(cfg *config.Config, opts Options) {
	if strings.TrimSpace(opts.Provider) != "" {
		cfg.SetProvider(opts.Provider)
	}
	if strings.TrimSpace(opts.Model) != "" {
		p := cfg.Providers[cfg.Provider]
		p.Model = strings.TrimSpace(opts.Model)
		cfg.Providers[cfg.Provider] = p
	}
	if opts.MaxRetries > 0 {
		cfg.MaxRetries = opts.MaxRetries
	}
	switch strings.ToLower(strings.TrimSpace(opts.RowErrors)) {
	case config.RowErrorsAbort:
		cfg.RowErrors = config.RowErrorsAbort
	case config.RowErrorsContinue:
		cfg.RowErrors = config.RowErrorsContinue
	}
	if strings.TrimSpace(opts.OutputDir) != "" {
		cfg.Output.Dir = opts.OutputDir
	}
	if strings.TrimSpace(opts.SessionKey) != "" {
		cfg.Session.Key = strings.TrimSpace(opts.SessionKey)
	}
}

func (e *env) outputDir() string {
	dir := e.cfg.Output.Dir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(e.cwd, dir)
	}
	return dir
}

// loaded is an input file read, filtered and recorded in the session.
type loaded struct {
	path  string
	table catalog.Table
	sel   catalog.Selection
	acc   *session.Accumulator
	store *session.Store
}

func (e *env) loadInput(ctx context.Context, input string) (*loaded, error) {
	path, err := discovery.Resolve(e.cwd, input)
	if err != nil {
		return nil, err
	}
	table, err := catalog.ReadFile(path)
	if err != nil {
		return nil, err
	}
	e.logger.Emit(logging.Event{Event: "input_loaded", Input: table.Name, Count: len(table.Rows)})

	store, err := session.Open(e.paths.ResolvedSession)
	if err != nil {
		return nil, err
	}
	acc, err := store.Load(ctx, e.cfg.Session.Key)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	// A file that fails validation leaves the session untouched.
	sel, err := catalog.Select(table)
	if err != nil && !errors.Is(err, catalog.ErrNothingToDo) {
		_ = store.Close()
		return nil, err
	}
	previous := acc.FileName
	if acc.Observe(table.Name) {
		if previous != "" {
			e.logger.Emit(logging.Event{Event: "session_reset", Input: table.Name})
		}
		if err := store.Save(ctx, acc); err != nil {
			_ = store.Close()
			return nil, err
		}
	}
	e.logger.Emit(logging.Event{Event: "rows_selected", Input: table.Name, Count: len(sel.Pending)})
	if len(sel.Done) > 0 {
		e.logger.Emit(logging.Event{Event: "rows_skipped", Input: table.Name, Count: len(sel.Done)})
	}
	if len(sel.Invalid) > 0 {
		e.logger.Emit(logging.Event{Level: "warn", Event: "rows_invalid", Input: table.Name, Count: len(sel.Invalid)})
	}
	return &loaded{path: path, table: table, sel: sel, acc: acc, store: store}, err
}

func (l *loaded) result() Result {
	return Result{
		Input:   l.table.Name,
		Rows:    len(l.table.Rows),
		Pending: len(l.sel.Pending),
		Skipped: len(l.sel.Done),
		Invalid: len(l.sel.Invalid),
	}
}

// Run loads the input, generates a text for every pending row, publishes the
// result table to the session and exports it.
func Run(ctx context.Context, opts Options) (Result, error) {
	e, err := prepare(opts)
	if err != nil {
		return Result{}, err
	}
	defer e.close()
	start := time.Now()

	providerCfg, ok := e.cfg.Providers[e.cfg.Provider]
	if !ok {
		return Result{}, fmt.Errorf("Provider nicht konfiguriert: %s", e.cfg.Provider)
	}
	apiKey, err := config.ResolveAPIKey(e.paths.EnvPath, e.cfg.APIKeyEnv)
	if err != nil {
		return Result{}, err
	}
	instruction, err := config.ReadPrompt(e.paths.ResolvedPromptPath)
	if err != nil {
		return Result{}, err
	}
	e.logger.Emit(logging.Event{Event: "startup", Provider: e.cfg.Provider, Model: providerCfg.Model})

	in, err := e.loadInput(ctx, opts.Input)
	if err != nil {
		if in != nil {
			_ = in.store.Close()
			res := in.result()
			res.State = StateIdle
			return res, err
		}
		return Result{}, err
	}
	defer in.store.Close()

	res := in.result()
	res.RunID = uuid.NewString()

	client := llm.NewClient(time.Duration(e.cfg.RequestTimeoutSec) * time.Second)
	defer client.Close()

	gen, err := generate(ctx, generationOptions{
		Rows:        in.sel.Pending,
		Instruction: instruction,
		Provider:    e.cfg.Provider,
		ProviderCfg: providerCfg,
		APIKey:      apiKey,
		RowErrors:   e.cfg.RowErrors,
		MaxRetries:  e.cfg.MaxRetries,
		Limiter:     newLimiter(e.cfg.RequestsPerMinute),
		Client:      client,
		Logger:      e.logger,
		RunID:       res.RunID,
	})
	res.State = gen.State
	res.ElapsedMS = time.Since(start).Milliseconds()
	if err != nil {
		e.logger.Emit(logging.Event{Level: "error", Event: "run_failed", RunID: res.RunID, Error: err.Error()})
		return res, err
	}
	res.Generated = len(gen.Table) - gen.Failed
	res.Failed = gen.Failed
	res.Tokens = gen.Tokens
	e.logger.Emit(logging.Event{Event: "run_completed", RunID: res.RunID, Count: res.Generated, Tokens: res.Tokens})

	in.acc.Publish(res.RunID, gen.Table, e.now())
	if err := in.store.Save(ctx, in.acc); err != nil {
		return res, err
	}

	path, err := output.Save(e.outputDir(), e.now(), gen.Table, e.cfg.Location())
	if err != nil {
		return res, err
	}
	res.OutputFile = path
	res.ElapsedMS = time.Since(start).Milliseconds()
	e.logger.Emit(logging.Event{Event: "export_ok", RunID: res.RunID, OutputFile: path})
	return res, nil
}

// Load reads and filters the input and records its name in the session
// without generating anything.
func Load(ctx context.Context, opts Options) (Result, error) {
	e, err := prepare(opts)
	if err != nil {
		return Result{}, err
	}
	defer e.close()

	in, err := e.loadInput(ctx, opts.Input)
	if in == nil {
		return Result{}, err
	}
	defer in.store.Close()
	res := in.result()
	res.State = StateIdle
	return res, err
}

// Export writes the table of the last completed run for the current file.
func Export(ctx context.Context, opts Options) (Result, error) {
	e, err := prepare(opts)
	if err != nil {
		return Result{}, err
	}
	defer e.close()

	store, err := session.Open(e.paths.ResolvedSession)
	if err != nil {
		return Result{}, err
	}
	defer store.Close()
	acc, err := store.Load(ctx, e.cfg.Session.Key)
	if err != nil {
		return Result{}, err
	}
	table, ok := acc.Exportable()
	if !ok {
		return Result{}, ErrNothingToExport
	}
	path, err := output.Save(e.outputDir(), e.now(), table, e.cfg.Location())
	if err != nil {
		return Result{}, err
	}
	e.logger.Emit(logging.Event{Event: "export_ok", RunID: acc.RunID, OutputFile: path})
	return Result{
		RunID:      acc.RunID,
		Input:      acc.FileName,
		State:      StateCompleted,
		Generated:  len(table) - table.Failures(),
		Failed:     table.Failures(),
		OutputFile: path,
	}, nil
}

// ErrNothingToExport is returned by Export when no run completed for the
// current file.
var ErrNothingToExport = errors.New("keine abgeschlossene Generierung für die aktuelle Datei vorhanden")

type Status struct {
	SessionKey  string
	SessionPath string
	ConfigPath  string
	FileName    string
	Generated   bool
	RunID       string
	CompletedAt time.Time
	Records     int
	Failures    int
}

// ReadStatus reports the session state without changing it.
func ReadStatus(ctx context.Context, opts Options) (Status, error) {
	e, err := prepare(opts)
	if err != nil {
		return Status{}, err
	}
	defer e.close()

	store, err := session.Open(e.paths.ResolvedSession)
	if err != nil {
		return Status{}, err
	}
	defer store.Close()
	acc, err := store.Load(ctx, e.cfg.Session.Key)
	if err != nil {
		return Status{}, err
	}
	retained := acc.Retained()
	return Status{
		SessionKey:  acc.Key,
		SessionPath: e.paths.ResolvedSession,
		ConfigPath:  e.paths.ConfigPath,
		FileName:    acc.FileName,
		Generated:   acc.Generated,
		RunID:       acc.RunID,
		CompletedAt: acc.CompletedAt,
		Records:     len(retained),
		Failures:    retained.Failures(),
	}, nil
}
