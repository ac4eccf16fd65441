// Package main provides the CLI entry point for the tdata profile reader.
package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/postalsys/tdata-reader/internal/config"
	"github.com/postalsys/tdata-reader/internal/filekey"
	"github.com/postalsys/tdata-reader/internal/logging"
	"github.com/postalsys/tdata-reader/internal/metrics"
	"github.com/postalsys/tdata-reader/internal/profile"
	"github.com/postalsys/tdata-reader/internal/settings"
	"github.com/postalsys/tdata-reader/internal/sysinfo"
	"github.com/postalsys/tdata-reader/internal/theme"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	// Version is set at build time via ldflags.
	// When "dev", we use sysinfo.Version which has enhanced dev version info.
	Version = "dev"
)

func init() {
	if Version == "dev" {
		Version = sysinfo.Version
	} else {
		sysinfo.Version = Version
	}
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "tdata-reader",
		Short: "tdata-reader - Read-only extractor for tdata profile directories",
		Long: `tdata-reader opens an existing tdata profile directory and recovers
its decrypted structural contents: the local auth key, per-account
indexes, the application settings stream, and referenced theme
bundles.

It never writes to the profile and never touches the network.`,
		Version: Version,
	}

	rootCmd.AddGroup(&cobra.Group{ID: "read", Title: "Reading Profiles:"})
	rootCmd.AddGroup(&cobra.Group{ID: "admin", Title: "Administration:"})

	for _, c := range []*cobra.Command{dumpCmd(), settingsCmd(), accountsCmd(), themeCmd()} {
		c.GroupID = "read"
		rootCmd.AddCommand(c)
	}

	initC := initCmd()
	initC.GroupID = "admin"
	rootCmd.AddCommand(initC)

	versionC := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("tdata-reader %s (%s)\n", Version, sysinfo.Platform())
		},
	}
	versionC.GroupID = "admin"
	rootCmd.AddCommand(versionC)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// readFlags are the options shared by every reading command.
type readFlags struct {
	configPath string
	dataDir    string
	profileArg string
	debug      bool
	logLevel   string
	logFormat  string
	metricsAt  string
}

func (f *readFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "Path to YAML configuration file")
	cmd.Flags().StringVarP(&f.dataDir, "data-dir", "d", "", "Profile root directory (containing tdata/)")
	cmd.Flags().StringVarP(&f.profileArg, "profile", "p", "", "Logical profile name (default: data)")
	cmd.Flags().BoolVar(&f.debug, "debug", false, "Use the developer default working directory")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	cmd.Flags().StringVar(&f.logFormat, "log-format", "", "Log format: text, json")
	cmd.Flags().StringVar(&f.metricsAt, "metrics-listen", "", "Serve Prometheus metrics on this address during the run")
}

// load merges the config file with flag overrides.
func (f *readFlags) load() (*config.Config, error) {
	cfg := config.Default()
	if f.configPath != "" {
		loaded, err := config.Load(f.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if f.dataDir != "" {
		cfg.WorkingDir = f.dataDir
	}
	if f.profileArg != "" {
		cfg.Profile = f.profileArg
	}
	if f.debug {
		cfg.Debug = true
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.logFormat != "" {
		cfg.Log.Format = f.logFormat
	}
	if f.metricsAt != "" {
		cfg.Metrics.Listen = f.metricsAt
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// open builds the profile reader and, when configured, starts the
// metrics listener.
func (f *readFlags) open() (*profile.Profile, *config.Config, error) {
	cfg, err := f.load()
	if err != nil {
		return nil, nil, err
	}
	log := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)

	tdataDir, err := cfg.TDataDir()
	if err != nil {
		return nil, nil, err
	}

	if cfg.Metrics.Listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			if err := http.ListenAndServe(cfg.Metrics.Listen, mux); err != nil {
				log.Error("metrics listener failed", logging.KeyError, err)
			}
		}()
		log.Info("serving metrics", "address", cfg.Metrics.Listen)
	}

	log.Debug("profile resolved", logging.KeyPath, tdataDir, "profile", cfg.Profile)
	return profile.New(cfg.Profile, tdataDir, log, metrics.Default()), cfg, nil
}

// passcodeFlags are the options of commands that unlock the modern key
// file.
type passcodeFlags struct {
	passcode string
	ask      bool
}

func (f *passcodeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.passcode, "passcode", "", "Local passcode (empty for profiles without one)")
	cmd.Flags().BoolVar(&f.ask, "ask-passcode", false, "Prompt for the passcode without echo")
}

func (f *passcodeFlags) resolve() ([]byte, error) {
	if f.ask {
		fmt.Fprint(os.Stderr, "Passcode: ")
		entered, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return nil, fmt.Errorf("reading passcode: %w", err)
		}
		return entered, nil
	}
	return []byte(f.passcode), nil
}

func dumpCmd() *cobra.Command {
	var flags readFlags
	var pass passcodeFlags
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Run the full boot sequence and print everything recovered",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, err := flags.open()
			if err != nil {
				return err
			}
			passcode, err := pass.resolve()
			if err != nil {
				return err
			}
			if err := p.Read(passcode); err != nil {
				return err
			}
			if asJSON {
				return printJSON(buildReport(p))
			}
			printProfile(p)
			return nil
		},
	}
	flags.register(cmd)
	pass.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print machine-readable JSON")
	return cmd
}

func settingsCmd() *cobra.Command {
	var flags readFlags
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read only the global settings file and its theme",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, err := flags.open()
			if err != nil {
				return err
			}
			if err := p.ReadLocalStorage(); err != nil {
				return err
			}
			if asJSON {
				return printJSON(buildReport(p))
			}
			printProfile(p)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print machine-readable JSON")
	return cmd
}

func accountsCmd() *cobra.Command {
	var flags readFlags
	var pass passcodeFlags
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Unlock the key file and read every account",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, err := flags.open()
			if err != nil {
				return err
			}
			passcode, err := pass.resolve()
			if err != nil {
				return err
			}
			if err := p.ReadModern(passcode); err != nil {
				return err
			}
			if asJSON {
				return printJSON(buildReport(p))
			}
			printProfile(p)
			return nil
		},
	}
	flags.register(cmd)
	pass.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print machine-readable JSON")
	return cmd
}

func themeCmd() *cobra.Command {
	var flags readFlags
	var keyPart string

	cmd := &cobra.Command{
		Use:   "theme",
		Short: "Decode one theme bundle by file key",
		Long: `Decode a single theme bundle. The key is the 16-character file name
as it appears in the tdata directory (without the trailing 's'). The
theme is decrypted with the legacy settings key, so the settings file
must be present.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, err := flags.open()
			if err != nil {
				return err
			}
			key, err := filekey.ParseFilePart(keyPart)
			if err != nil {
				return err
			}
			// The legacy key falls out of reading local storage; do that
			// first, then read the requested theme regardless of which
			// theme the settings select.
			if err := p.ReadLocalStorage(); err != nil {
				return err
			}
			saved, err := p.ReadThemeByKey(key)
			if err != nil {
				return err
			}
			printTheme(saved)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&keyPart, "key", "k", "", "16-character theme file key (required)")
	cmd.MarkFlagRequired("key")
	return cmd
}

func initCmd() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(outPath); err == nil {
				return fmt.Errorf("%s already exists", outPath)
			}
			starter := `# tdata-reader configuration
# Profile root directory (the one containing tdata/). Empty resolves
# the host application's default location.
working_dir: ""

# Logical profile name; selects key_<name> inside tdata/.
profile: "data"

log:
  level: "info"
  format: "text"

metrics:
  # Address for a Prometheus /metrics listener, e.g. "127.0.0.1:9090".
  listen: ""
`
			if err := os.WriteFile(outPath, []byte(starter), 0644); err != nil {
				return fmt.Errorf("writing %s: %w", outPath, err)
			}
			fmt.Printf("Wrote %s\n", outPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "output", "o", "tdata-reader.yaml", "Output path")
	return cmd
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	labelStyle = lipgloss.NewStyle().Faint(true).Width(18)
	warnStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3"))
)

func row(label, value string) string {
	return labelStyle.Render(label) + " " + value
}

func printProfile(p *profile.Profile) {
	if s := p.GlobalSettings; s != nil {
		fmt.Println(titleStyle.Render("Global settings"))
		fmt.Println(row("version", fmt.Sprintf("%d", p.GlobalSettingsVersion)))
		fmt.Println(row("parsed/skipped", fmt.Sprintf("%d/%d", s.Parsed, s.Skipped)))
		printSettings(s)
		fmt.Println()
	}
	if p.Theme != nil {
		fmt.Println(titleStyle.Render("Theme"))
		printTheme(p.Theme)
		fmt.Println()
	}
	if len(p.Accounts) > 0 {
		fmt.Println(titleStyle.Render(fmt.Sprintf("Accounts (%d)", len(p.Accounts))))
		for index := 0; index < profile.MaxAccounts; index++ {
			a, ok := p.Accounts[index]
			if !ok {
				continue
			}
			fmt.Println(row("account", fmt.Sprintf("%d (%s)", a.Index, a.Key.FilePart())))
			fmt.Println(row("  settings key", a.Map.SettingsKey.FilePart()))
			if a.Map.Drafts > 0 || a.Map.DraftPositions > 0 {
				fmt.Println(row("  drafts", fmt.Sprintf("%d (+%d positions)", a.Map.Drafts, a.Map.DraftPositions)))
			}
			if a.Map.LegacyMedia > 0 {
				fmt.Println(row("  legacy media", fmt.Sprintf("%d", a.Map.LegacyMedia)))
			}
			if a.Settings != nil {
				printSettings(a.Settings)
			}
		}
	}
}

func printSettings(s *settings.Settings) {
	if s.User != nil {
		fmt.Println(row("user", fmt.Sprintf("%d (dc %d)", s.User.UserID, s.User.DcID)))
	}
	for _, b := range []struct {
		name  string
		value *bool
	}{
		{"auto start", s.AutoStart},
		{"start minimized", s.StartMinimized},
		{"auto update", s.AutoUpdate},
		{"send to menu", s.SendToMenu},
		{"ext. video player", s.UseExternalVideoPlayer},
		{"animations off", s.AnimationsDisabled},
	} {
		if b.value != nil {
			fmt.Println(row(b.name, fmt.Sprintf("%t", *b.value)))
		}
	}
	if s.ScalePercent != nil {
		fmt.Println(row("scale", fmt.Sprintf("%d%%", *s.ScalePercent)))
	}
	if s.ThemeKeys != nil {
		mode := "day"
		if s.ThemeKeys.NightMode {
			mode = "night"
		}
		fmt.Println(row("theme keys", fmt.Sprintf("day %s / night %s (%s)",
			s.ThemeKeys.Day.FilePart(), s.ThemeKeys.Night.FilePart(), mode)))
	}
	if s.BackgroundKeys != nil {
		fmt.Println(row("background keys", fmt.Sprintf("day %s / night %s",
			s.BackgroundKeys.Day.FilePart(), s.BackgroundKeys.Night.FilePart())))
	}
	if s.LangPackKey != nil {
		fmt.Println(row("lang pack key", s.LangPackKey.FilePart()))
	}
	if len(s.MtpAuthorization) > 0 {
		fmt.Println(row("authorization", humanize.Bytes(uint64(len(s.MtpAuthorization)))+" (opaque)"))
	}
	if len(s.SessionSettings) > 0 {
		fmt.Println(row("session settings", humanize.Bytes(uint64(len(s.SessionSettings)))+" (opaque)"))
	}
	if len(s.ApplicationSettings) > 0 {
		fmt.Println(row("app settings", humanize.Bytes(uint64(len(s.ApplicationSettings)))+" (opaque)"))
	}
	if len(s.RecentStickers) > 0 {
		fmt.Println(row("recent stickers", fmt.Sprintf("%d", len(s.RecentStickers))))
	}
}

func printTheme(t *theme.Saved) {
	if t.IsCloud() {
		fmt.Println(row("cloud theme", fmt.Sprintf("%q (slug %s)", t.Object.Cloud.Title, t.Object.Cloud.Slug)))
		fmt.Println(row("  id", fmt.Sprintf("%d (document %d)", t.Object.Cloud.ID, t.Object.Cloud.DocumentID)))
		if t.Object.Cloud.CreatedBy != 0 {
			fmt.Println(row("  created by", fmt.Sprintf("%d", t.Object.Cloud.CreatedBy)))
		}
	} else {
		path := t.Object.PathRelative
		if path == "" {
			path = t.Object.PathAbsolute
		}
		fmt.Println(row("local theme", path))
	}
	fmt.Println(row("content", humanize.Bytes(uint64(len(t.Object.Content)))))
	if len(t.Cache.Colors) > 0 {
		tiled := ""
		if t.Cache.Tiled {
			tiled = ", tiled"
		}
		fmt.Println(row("cache", fmt.Sprintf("%s colors, %s background%s",
			humanize.Bytes(uint64(len(t.Cache.Colors))),
			humanize.Bytes(uint64(len(t.Cache.Background))), tiled)))
	} else {
		fmt.Println(row("cache", warnStyle.Render("dropped (content diverged)")))
	}
}

// report is the JSON output shape.
type report struct {
	SettingsVersion int32            `json:"settings_version,omitempty"`
	Settings        *settingsReport  `json:"settings,omitempty"`
	Theme           *themeReport     `json:"theme,omitempty"`
	Accounts        []*accountReport `json:"accounts,omitempty"`
}

type settingsReport struct {
	Parsed  int `json:"parsed"`
	Skipped int `json:"skipped"`

	User           *settings.UserInfo `json:"user,omitempty"`
	ThemeDay       string             `json:"theme_day,omitempty"`
	ThemeNight     string             `json:"theme_night,omitempty"`
	NightMode      bool               `json:"night_mode,omitempty"`
	ScalePercent   *int32             `json:"scale_percent,omitempty"`
	Authorization  int                `json:"mtp_authorization_bytes,omitempty"`
	Session        int                `json:"session_settings_bytes,omitempty"`
	Application    int                `json:"application_settings_bytes,omitempty"`
	RecentStickers int                `json:"recent_stickers,omitempty"`
}

type themeReport struct {
	Cloud        bool   `json:"cloud"`
	Title        string `json:"title,omitempty"`
	Slug         string `json:"slug,omitempty"`
	PathRelative string `json:"path_relative,omitempty"`
	PathAbsolute string `json:"path_absolute,omitempty"`
	ContentBytes int    `json:"content_bytes"`
	CacheDropped bool   `json:"cache_dropped"`
	Tiled        bool   `json:"tiled"`
}

type accountReport struct {
	Index       int             `json:"index"`
	Directory   string          `json:"directory"`
	SettingsKey string          `json:"settings_key"`
	Drafts      int             `json:"drafts"`
	LegacyMedia int             `json:"legacy_media"`
	Settings    *settingsReport `json:"settings,omitempty"`
}

func buildReport(p *profile.Profile) *report {
	out := &report{SettingsVersion: p.GlobalSettingsVersion}
	if p.GlobalSettings != nil {
		out.Settings = buildSettingsReport(p.GlobalSettings)
	}
	if p.Theme != nil {
		out.Theme = &themeReport{
			Cloud:        p.Theme.IsCloud(),
			Title:        p.Theme.Object.Cloud.Title,
			Slug:         p.Theme.Object.Cloud.Slug,
			PathRelative: p.Theme.Object.PathRelative,
			PathAbsolute: p.Theme.Object.PathAbsolute,
			ContentBytes: len(p.Theme.Object.Content),
			CacheDropped: len(p.Theme.Cache.Colors) == 0,
			Tiled:        p.Theme.Cache.Tiled,
		}
	}
	for index := 0; index < profile.MaxAccounts; index++ {
		a, ok := p.Accounts[index]
		if !ok {
			continue
		}
		ar := &accountReport{
			Index:       a.Index,
			Directory:   a.Key.FilePart(),
			SettingsKey: a.Map.SettingsKey.FilePart(),
			Drafts:      a.Map.Drafts,
			LegacyMedia: a.Map.LegacyMedia,
		}
		if a.Settings != nil {
			ar.Settings = buildSettingsReport(a.Settings)
		}
		out.Accounts = append(out.Accounts, ar)
	}
	return out
}

func buildSettingsReport(s *settings.Settings) *settingsReport {
	sr := &settingsReport{
		Parsed:         s.Parsed,
		Skipped:        s.Skipped,
		User:           s.User,
		ScalePercent:   s.ScalePercent,
		Authorization:  len(s.MtpAuthorization),
		Session:        len(s.SessionSettings),
		Application:    len(s.ApplicationSettings),
		RecentStickers: len(s.RecentStickers),
	}
	if s.ThemeKeys != nil {
		sr.ThemeDay = s.ThemeKeys.Day.FilePart()
		sr.ThemeNight = s.ThemeKeys.Night.FilePart()
		sr.NightMode = s.ThemeKeys.NightMode
	}
	return sr
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return nil
}
