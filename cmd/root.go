package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"luki-produkttexte/internal/app"
	"luki-produkttexte/internal/catalog"
	"luki-produkttexte/internal/config"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

type genFlags struct {
	configArg     string
	outputDirArg  string
	providerArg   string
	modelArg      string
	maxRetriesArg int
	rowErrorsArg  string
	sessionArg    string
	logFileArg    string
	verboseArg    bool
}

func (f *genFlags) options(stdout io.Writer, cwd, input string) app.Options {
	return app.Options{
		Input:      input,
		ConfigPath: f.configArg,
		OutputDir:  f.outputDirArg,
		Provider:   f.providerArg,
		Model:      f.modelArg,
		MaxRetries: f.maxRetriesArg,
		RowErrors:  f.rowErrorsArg,
		SessionKey: f.sessionArg,
		LogFile:    f.logFileArg,
		Verbose:    f.verboseArg,
		CWD:        cwd,
		Stdout:     stdout,
	}
}

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	root := NewRootCmd(os.Stdout, os.Stderr)
	root.SetArgs(normalizeArgs(os.Args[1:]))
	return root.ExecuteContext(ctx)
}

func NewRootCmd(stdout, stderr io.Writer) *cobra.Command {
	flags := &genFlags{}
	showVersion := false

	root := &cobra.Command{
		Use:           "luki-produkttexte [datei]",
		Short:         "Erzeugt Produkttexte für Schuhe aus einer CSV- oder Excel-Liste",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				printVersion(stdout)
				return nil
			}
			return cmd.Help()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.CompletionOptions.HiddenDefaultCmd = true
	bindFlags(root, flags)
	root.Flags().BoolVarP(&showVersion, "version", "v", false, "Version anzeigen")

	root.AddCommand(&cobra.Command{
		Use:           "gen <datei>",
		Short:         "Produkttexte für alle Zeilen ohne Produkttext erzeugen und exportieren",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runGen(stdout, flags),
	})
	root.AddCommand(&cobra.Command{
		Use:           "load <datei>",
		Short:         "Datei einlesen und prüfen, ohne Texte zu erzeugen",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runLoad(stdout, flags),
	})
	root.AddCommand(&cobra.Command{
		Use:           "export",
		Short:         "Ergebnis der letzten Generierung erneut als Excel exportieren",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runExport(stdout, flags),
	})
	root.AddCommand(&cobra.Command{
		Use:           "status",
		Short:         "Sitzungsstatus anzeigen",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runStatus(stdout, flags),
	})
	root.AddCommand(newSetCmd(stdout, flags))
	root.AddCommand(&cobra.Command{
		Use:           "version",
		Short:         "Version anzeigen",
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, args []string) {
			printVersion(stdout)
		},
	})
	return root
}

func bindFlags(cmd *cobra.Command, flags *genFlags) {
	cmd.PersistentFlags().StringVar(&flags.configArg, "config", "", "Konfigurationsdatei, Standard ~/.luki-produkttexte/config.yaml")
	cmd.PersistentFlags().StringVarP(&flags.outputDirArg, "out", "o", "", "Ausgabeverzeichnis, Standard aktuelles Verzeichnis")
	cmd.PersistentFlags().StringVar(&flags.providerArg, "provider", "", "Provider aus der Konfiguration überschreiben (openai, deepseek)")
	cmd.PersistentFlags().StringVar(&flags.modelArg, "model", "", "Modell überschreiben")
	cmd.PersistentFlags().IntVar(&flags.maxRetriesArg, "max-retries", 0, "Wiederholungen pro Zeile bei Fehlern")
	cmd.PersistentFlags().StringVar(&flags.rowErrorsArg, "row-errors", "", "Verhalten bei Fehlern: abort oder continue")
	cmd.PersistentFlags().StringVar(&flags.sessionArg, "session", "", "Sitzungsname")
	cmd.PersistentFlags().StringVar(&flags.logFileArg, "log-file", "", "NDJSON-Logdatei")
	cmd.PersistentFlags().BoolVar(&flags.verboseArg, "verbose", false, "Ausführliche NDJSON-Ausgabe")
}

func runGen(stdout io.Writer, flags *genFlags) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("aktuelles Verzeichnis nicht lesbar: %w", err)
		}
		res, err := app.Run(cmd.Context(), flags.options(stdout, cwd, args[0]))
		if err != nil {
			return err
		}
		if !flags.verboseArg {
			fmt.Fprintf(stdout, "Fertig: %d Texte, %d Fehler, %d übersprungen, Dauer %s\nDatei: %s\n",
				res.Generated, res.Failed, res.Skipped+res.Invalid, formatDurationMS(res.ElapsedMS), res.OutputFile)
		}
		if res.Failed > 0 {
			return fmt.Errorf("%d Zeilen ohne Produkttext, siehe Spalte Fehler", res.Failed)
		}
		return nil
	}
}

func runLoad(stdout io.Writer, flags *genFlags) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("aktuelles Verzeichnis nicht lesbar: %w", err)
		}
		res, err := app.Load(cmd.Context(), flags.options(stdout, cwd, args[0]))
		if err != nil && !errors.Is(err, catalog.ErrNothingToDo) {
			return err
		}
		fmt.Fprintf(stdout, "Datei: %s\nZeilen: %d\nZu generieren: %d\nMit Produkttext: %d\nOhne Modellnr: %d\n",
			res.Input, res.Rows, res.Pending, res.Skipped, res.Invalid)
		if err != nil {
			fmt.Fprintln(stdout, err.Error())
		}
		return nil
	}
}

func runExport(stdout io.Writer, flags *genFlags) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("aktuelles Verzeichnis nicht lesbar: %w", err)
		}
		res, err := app.Export(cmd.Context(), flags.options(stdout, cwd, ""))
		if err != nil {
			return err
		}
		if !flags.verboseArg {
			fmt.Fprintf(stdout, "Datei: %s\n", res.OutputFile)
		}
		return nil
	}
}

func runStatus(stdout io.Writer, flags *genFlags) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("aktuelles Verzeichnis nicht lesbar: %w", err)
		}
		st, err := app.ReadStatus(cmd.Context(), flags.options(io.Discard, cwd, ""))
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Konfiguration: %s\n", st.ConfigPath)
		fmt.Fprintf(stdout, "Sitzung: %s (%s)\n", st.SessionKey, st.SessionPath)
		fmt.Fprintf(stdout, "Datei: %s\n", fallback(st.FileName, "-"))
		fmt.Fprintf(stdout, "Exportierbar: %s\n", yesNo(st.Generated))
		if st.RunID != "" {
			fmt.Fprintf(stdout, "Letzter Lauf: %s (%s)\n", st.RunID, st.CompletedAt.Local().Format("02.01.2006 15:04:05"))
		}
		fmt.Fprintf(stdout, "Ergebnisse: %d (Fehler: %d)\n", st.Records, st.Failures)
		return nil
	}
}

func newSetCmd(stdout io.Writer, flags *genFlags) *cobra.Command {
	setCmd := &cobra.Command{
		Use:           "set",
		Short:         "Einstellungen setzen",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	setCmd.AddCommand(&cobra.Command{
		Use:           "key <api_key>",
		Short:         "API-Key in ~/.luki-produkttexte/.env speichern",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			key := strings.TrimSpace(args[0])
			if key == "" {
				return fmt.Errorf("API-Key darf nicht leer sein")
			}
			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("aktuelles Verzeichnis nicht lesbar: %w", err)
			}
			cfg, paths, err := config.Load(flags.configArg, cwd)
			if err != nil {
				return err
			}
			if strings.TrimSpace(flags.providerArg) != "" {
				cfg.SetProvider(flags.providerArg)
			}
			if err := config.UpsertEnvVar(paths.EnvPath, cfg.APIKeyEnv, key); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "%s gespeichert in %s\n", cfg.APIKeyEnv, paths.EnvPath)
			return nil
		},
	})
	return setCmd
}

func versionText() string {
	return fmt.Sprintf("luki-produkttexte %s (commit %s, gebaut %s)", Version, Commit, BuildTime)
}

func printVersion(w io.Writer) {
	fmt.Fprintln(w, versionText())
}

func formatDurationMS(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	if ms < 60_000 {
		return fmt.Sprintf("%.2fs", float64(ms)/1000.0)
	}
	minutes := ms / 60_000
	remainMS := ms % 60_000
	if remainMS == 0 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dm%.1fs", minutes, float64(remainMS)/1000.0)
}

func yesNo(v bool) string {
	if v {
		return "ja"
	}
	return "nein"
}

func fallback(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

var valueFlags = []string{"--config", "--out", "-o", "--provider", "--model", "--max-retries", "--row-errors", "--session", "--log-file"}

var subcommands = map[string]bool{
	"gen": true, "load": true, "export": true, "status": true, "set": true,
	"help": true, "completion": true, "version": true,
}

func normalizeArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}
	switch args[0] {
	case "-h", "--help", "-v", "--version":
		return args
	}
	first, ok := firstPositional(args)
	if !ok || subcommands[first] {
		return args
	}
	return append([]string{"gen"}, args...)
}

// firstPositional returns the first argument that is neither a flag nor a
// flag value. Anything after "--" is positional.
func firstPositional(args []string) (string, bool) {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			if i+1 < len(args) {
				return "", true
			}
			return "", false
		}
		if isValueFlag(arg) {
			i++
			continue
		}
		if strings.HasPrefix(arg, "-") {
			continue
		}
		return arg, true
	}
	return "", false
}

func isValueFlag(arg string) bool {
	for _, f := range valueFlags {
		if arg == f {
			return true
		}
	}
	return false
}
