// Package profile orchestrates the boot sequence over one profile
// directory: the global settings file, the modern key file, the account
// info block, and each account's map and settings, in that order.
//
// Every read is fail-fast: the first parse, length, signature or tag
// failure aborts the read and its error is returned. Results already
// stored on the Profile before the failing step (the global settings when
// the theme read fails, the local key or earlier accounts when a later
// step of ReadModern fails) are left in place and are not cleared.
package profile

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/postalsys/tdata-reader/internal/authkey"
	"github.com/postalsys/tdata-reader/internal/filekey"
	"github.com/postalsys/tdata-reader/internal/metrics"
	"github.com/postalsys/tdata-reader/internal/settings"
	"github.com/postalsys/tdata-reader/internal/tdf"
	"github.com/postalsys/tdata-reader/internal/theme"
)

// MaxAccounts is the highest number of account slots a profile can hold.
const MaxAccounts = 3

var (
	// ErrBadAccountCount is returned when the info block declares an
	// account count outside [1, MaxAccounts].
	ErrBadAccountCount = errors.New("bad accounts count")
)

// Profile reads one profile directory. Construct with New, then call
// ReadLocalStorage and ReadModern; results accumulate on the struct.
type Profile struct {
	// DataName is the logical profile name ("data" by default).
	DataName string

	// GlobalSettings is the decoded application-wide settings stream.
	GlobalSettings *settings.Settings

	// GlobalSettingsVersion is the envelope version of the settings
	// file.
	GlobalSettingsVersion int32

	// Theme is the decoded theme referenced by the global settings, nil
	// when no theme key is present.
	Theme *theme.Saved

	// Accounts maps account index to its reader, populated by
	// ReadModern.
	Accounts map[int]*Account

	// LocalKey is the session auth key recovered from the key file.
	LocalKey *authkey.Key

	tdataDir    string
	settingsKey *authkey.Key
	log         *slog.Logger
	met         *metrics.Metrics
}

// New creates a Profile reader rooted at a tdata directory.
func New(dataName, tdataDir string, log *slog.Logger, met *metrics.Metrics) *Profile {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if met == nil {
		met = metrics.Default()
	}
	return &Profile{
		DataName: dataName,
		Accounts: make(map[int]*Account),
		tdataDir: tdataDir,
		log:      log,
		met:      met,
	}
}

// TDataDir returns the directory the profile reads from.
func (p *Profile) TDataDir() string { return p.tdataDir }

// ReadLocalStorage opens the legacy-keyed global settings file, parses
// the settings stream, and follows its theme key when one is present.
func (p *Profile) ReadLocalStorage() error {
	desc, err := tdf.Open("settings", p.tdataDir)
	if err != nil {
		p.met.EnvelopeFailures.WithLabelValues("settings").Inc()
		return err
	}
	p.met.EnvelopesOpened.Inc()
	p.met.EnvelopeBytes.Add(float64(desc.Stream().Len()))
	p.GlobalSettingsVersion = desc.Version()
	s := desc.Stream()

	salt, err := s.ReadBytes()
	if err != nil {
		return fmt.Errorf("reading settings salt: %w", err)
	}
	settingsEncrypted, err := s.ReadBytes()
	if err != nil {
		return fmt.Errorf("reading encrypted settings: %w", err)
	}
	if err := s.ShouldBeDone(); err != nil {
		return fmt.Errorf("reading settings data: %w", err)
	}

	settingsKey, err := authkey.CreateLegacyLocal(nil, salt)
	if err != nil {
		return fmt.Errorf("bad salt in settings file: %w", err)
	}
	p.settingsKey = settingsKey
	p.met.KeysDerived.WithLabelValues("legacy").Inc()

	r, err := tdf.DecryptLocal(settingsEncrypted, settingsKey)
	if err != nil {
		p.met.DecryptFailures.WithLabelValues("settings").Inc()
		return fmt.Errorf("decrypting settings: %w", err)
	}
	p.met.BlocksDecrypted.Inc()

	parsed, err := settings.ReadAll(r.WithLogger(p.log), p.log)
	if err != nil {
		return fmt.Errorf("parsing settings: %w", err)
	}
	p.GlobalSettings = parsed
	p.met.SettingsParsed.Add(float64(parsed.Parsed))
	p.met.SettingsSkipped.Add(float64(parsed.Skipped))
	p.log.Info("global settings read",
		"version", p.GlobalSettingsVersion,
		"parsed", parsed.Parsed,
		"skipped", parsed.Skipped)

	if keys := parsed.ThemeKeys; keys != nil {
		active := keys.Active()
		p.log.Debug("reading theme", "file", active.FilePart(), "night_mode", keys.NightMode)
		saved, err := theme.Read(active, p.tdataDir, settingsKey, p.log)
		if err != nil {
			return fmt.Errorf("reading theme %s: %w", active.FilePart(), err)
		}
		p.Theme = saved
		p.met.ThemesRead.Inc()
	}

	return nil
}

// ReadThemeByKey decodes one theme bundle with the legacy settings key.
// ReadLocalStorage must have run first to derive that key.
func (p *Profile) ReadThemeByKey(key filekey.Key) (*theme.Saved, error) {
	if p.settingsKey == nil {
		return nil, errors.New("settings key not derived; read local storage first")
	}
	saved, err := theme.Read(key, p.tdataDir, p.settingsKey, p.log)
	if err != nil {
		return nil, err
	}
	p.met.ThemesRead.Inc()
	return saved, nil
}

// ReadModern opens the modern key file with the given passcode, recovers
// the session local key, then instantiates and reads every account the
// info block names.
func (p *Profile) ReadModern(passcode []byte) error {
	desc, err := tdf.Open(keyFileName(p.DataName), p.tdataDir)
	if err != nil {
		p.met.EnvelopeFailures.WithLabelValues("key").Inc()
		return err
	}
	p.met.EnvelopesOpened.Inc()
	p.met.EnvelopeBytes.Add(float64(desc.Stream().Len()))
	s := desc.Stream()

	salt, err := s.ReadBytes()
	if err != nil {
		return fmt.Errorf("reading key salt: %w", err)
	}
	keyEncrypted, err := s.ReadBytes()
	if err != nil {
		return fmt.Errorf("reading encrypted key: %w", err)
	}
	infoEncrypted, err := s.ReadBytes()
	if err != nil {
		return fmt.Errorf("reading encrypted info: %w", err)
	}
	if err := s.ShouldBeDone(); err != nil {
		return fmt.Errorf("reading key data: %w", err)
	}

	passcodeKey, err := authkey.CreateLocal(passcode, salt)
	if err != nil {
		return fmt.Errorf("bad salt in key file: %w", err)
	}
	p.met.KeysDerived.WithLabelValues("modern").Inc()

	keyInner, err := tdf.DecryptLocal(keyEncrypted, passcodeKey)
	if err != nil {
		p.met.DecryptFailures.WithLabelValues("key").Inc()
		return fmt.Errorf("decrypting key data: %w", err)
	}
	p.met.BlocksDecrypted.Inc()
	rawKey, err := keyInner.ReadRaw(authkey.Size)
	if err != nil {
		return fmt.Errorf("reading local key: %w", err)
	}
	localKey, err := authkey.FromBytes(rawKey)
	if err != nil {
		return err
	}
	if err := keyInner.ShouldBeDone(); err != nil {
		return fmt.Errorf("reading key inner data: %w", err)
	}
	p.LocalKey = localKey

	info, err := tdf.DecryptLocal(infoEncrypted, localKey)
	if err != nil {
		p.met.DecryptFailures.WithLabelValues("info").Inc()
		return fmt.Errorf("decrypting info: %w", err)
	}
	p.met.BlocksDecrypted.Inc()

	count, err := info.ReadInt32()
	if err != nil {
		return fmt.Errorf("reading accounts count: %w", err)
	}
	if count <= 0 || count > MaxAccounts {
		return fmt.Errorf("%w: %d", ErrBadAccountCount, count)
	}

	tried := make(map[int]bool)
	for i := int32(0); i < count; i++ {
		index32, err := info.ReadInt32()
		if err != nil {
			return fmt.Errorf("reading account index: %w", err)
		}
		index := int(index32)
		if index < 0 || index >= MaxAccounts || tried[index] {
			continue
		}
		tried[index] = true

		account := newAccount(p.DataName, index, p.tdataDir, p.log)
		if err := account.start(localKey); err != nil {
			return err
		}
		if err := account.readMap(); err != nil {
			return fmt.Errorf("account %d map: %w", index, err)
		}
		p.met.EnvelopesOpened.Inc()
		p.met.MapRecords.Add(float64(account.Map.Drafts + account.Map.DraftPositions + account.Map.LegacyMedia))
		if err := account.readSettings(); err != nil {
			return fmt.Errorf("account %d settings: %w", index, err)
		}
		p.met.EnvelopesOpened.Inc()
		p.met.SettingsParsed.Add(float64(account.Settings.Parsed))
		p.met.SettingsSkipped.Add(float64(account.Settings.Skipped))
		p.Accounts[index] = account
		p.log.Info("account read", "account", index, "dir", account.Key.FilePart())
	}
	p.met.AccountsRead.Set(float64(len(p.Accounts)))

	return nil
}

// Read runs the full boot sequence: local storage first, then the modern
// profile.
func (p *Profile) Read(passcode []byte) error {
	if err := p.ReadLocalStorage(); err != nil {
		return fmt.Errorf("local storage: %w", err)
	}
	if err := p.ReadModern(passcode); err != nil {
		return fmt.Errorf("modern profile: %w", err)
	}
	return nil
}
