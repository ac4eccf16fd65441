package profile

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/postalsys/tdata-reader/internal/accountmap"
	"github.com/postalsys/tdata-reader/internal/authkey"
	"github.com/postalsys/tdata-reader/internal/filekey"
	"github.com/postalsys/tdata-reader/internal/settings"
	"github.com/postalsys/tdata-reader/internal/tdf"
)

var (
	// ErrStateReentry is returned when an account lifecycle step runs
	// twice. Every transition is one-shot.
	ErrStateReentry = errors.New("account state transition repeated")

	// ErrNoSettingsKey is returned when an account map carries no
	// settings key, leaving nothing to read the account settings from.
	ErrNoSettingsKey = errors.New("account map has no settings key")
)

// accountState tracks the one-shot lifecycle of an Account:
// new → started → map read → settings read.
type accountState int

const (
	stateNew accountState = iota
	stateStarted
	stateMapRead
	stateSettingsRead
)

func (s accountState) String() string {
	switch s {
	case stateNew:
		return "new"
	case stateStarted:
		return "started"
	case stateMapRead:
		return "map_read"
	case stateSettingsRead:
		return "settings_read"
	default:
		return "invalid"
	}
}

// Account is the per-account storage reader. Its directory name is
// derived from the composed data string of the profile name and account
// index.
type Account struct {
	// DataName is the composed data string for this account.
	DataName string

	// Index is the account slot, in [0, 3).
	Index int

	// Key names the account subdirectory.
	Key filekey.Key

	// Map is the decoded account index, set by ReadMap.
	Map *accountmap.Map

	// Settings is the decoded per-account settings stream, set by
	// ReadSettings.
	Settings *settings.Settings

	basePath string
	localKey *authkey.Key
	state    accountState
	log      *slog.Logger
}

// newAccount derives the account directory from the profile name and
// index.
func newAccount(dataName string, index int, tdataDir string, log *slog.Logger) *Account {
	composed := ComposeDataString(dataName, index)
	key := filekey.Compute(composed)
	return &Account{
		DataName: composed,
		Index:    index,
		Key:      key,
		basePath: filepath.Join(tdataDir, key.FilePart()),
		log:      log.With("account", index),
	}
}

// start hands the account the session's local key. One-shot.
func (a *Account) start(localKey *authkey.Key) error {
	if a.state != stateNew {
		return fmt.Errorf("%w: start in state %s", ErrStateReentry, a.state)
	}
	a.localKey = localKey
	a.state = stateStarted
	return nil
}

// readMap decodes the account's map file. One-shot; requires start.
func (a *Account) readMap() error {
	if a.state != stateStarted {
		return fmt.Errorf("%w: read map in state %s", ErrStateReentry, a.state)
	}
	m, err := accountmap.Read(a.basePath, a.localKey, a.log)
	if err != nil {
		return err
	}
	a.Map = m
	a.state = stateMapRead
	a.log.Debug("account map read",
		"settings_key", m.SettingsKey.FilePart(),
		"drafts", m.Drafts,
		"draft_positions", m.DraftPositions,
		"legacy_media", m.LegacyMedia)
	return nil
}

// readSettings decodes the account settings file named by the map's
// settings key. One-shot; requires readMap.
func (a *Account) readSettings() error {
	if a.state != stateMapRead {
		return fmt.Errorf("%w: read settings in state %s", ErrStateReentry, a.state)
	}
	if a.Map.SettingsKey.IsZero() {
		return ErrNoSettingsKey
	}

	desc, err := tdf.Open(a.Map.SettingsKey.FilePart(), a.basePath)
	if err != nil {
		return err
	}
	encrypted, err := desc.Stream().ReadBytes()
	if err != nil {
		return fmt.Errorf("reading encrypted account settings: %w", err)
	}
	r, err := tdf.DecryptLocal(encrypted, a.localKey)
	if err != nil {
		return fmt.Errorf("decrypting account settings: %w", err)
	}
	parsed, err := settings.ReadAll(r.WithLogger(a.log), a.log)
	if err != nil {
		return fmt.Errorf("parsing account settings: %w", err)
	}
	a.Settings = parsed
	a.state = stateSettingsRead
	return nil
}

// ComposeDataString builds the per-account data name: the profile name
// with '#' stripped, plus "#<index+1>" for secondary accounts.
func ComposeDataString(dataName string, index int) string {
	result := strings.ReplaceAll(dataName, "#", "")
	if index > 0 {
		result += "#" + strconv.Itoa(index+1)
	}
	return result
}

// keyFileName computes the key envelope name for a profile.
func keyFileName(dataName string) string {
	return "key_" + dataName
}
