package profile

import (
	"crypto/md5"
	"crypto/rand"
	"crypto/sha1"
	"encoding/binary"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"unicode/utf16"

	"github.com/postalsys/tdata-reader/internal/authkey"
	"github.com/postalsys/tdata-reader/internal/filekey"
	"github.com/postalsys/tdata-reader/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

func nop() *slog.Logger { return slog.New(slog.DiscardHandler) }

func testMetrics() *metrics.Metrics {
	return metrics.NewMetricsWithRegistry(prometheus.NewRegistry())
}

// ---- fixture builders ----

func appendBytes(buf, payload []byte) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(payload)))
	return append(buf, payload...)
}

func appendString(buf []byte, s string) []byte {
	units := utf16.Encode([]rune(s))
	payload := make([]byte, 2*len(units))
	for i, u := range units {
		binary.BigEndian.PutUint16(payload[2*i:], u)
	}
	return appendBytes(buf, payload)
}

// encryptStream wraps content into an encrypted block for key.
func encryptStream(t *testing.T, key *authkey.Key, content []byte) []byte {
	t.Helper()
	declared := 4 + len(content)
	plainLen := (declared + 15) / 16 * 16
	if plainLen < 16 {
		plainLen = 16
	}
	plain := make([]byte, plainLen)
	binary.LittleEndian.PutUint32(plain, uint32(declared))
	copy(plain[4:], content)
	sum := sha1.Sum(plain)
	msgKey := [authkey.MsgKeySize]byte(sum[:authkey.MsgKeySize])
	encrypted, err := authkey.EncryptLocal(plain, key, msgKey)
	if err != nil {
		t.Fatal(err)
	}
	return append(msgKey[:], encrypted...)
}

// writeEnvelope writes the modern file variant for name under dir.
func writeEnvelope(t *testing.T, dir, name string, body []byte) {
	t.Helper()
	var raw []byte
	raw = append(raw, 'T', 'D', 'F', '$')
	raw = binary.LittleEndian.AppendUint32(raw, 1)
	raw = append(raw, body...)
	h := md5.New()
	h.Write(body)
	var le [4]byte
	binary.LittleEndian.PutUint32(le[:], uint32(len(body)))
	h.Write(le[:])
	binary.LittleEndian.PutUint32(le[:], 1)
	h.Write(le[:])
	h.Write([]byte("TDF$"))
	raw = h.Sum(raw)
	if err := os.WriteFile(filepath.Join(dir, name+"s"), raw, 0644); err != nil {
		t.Fatal(err)
	}
}

// fixture owns a synthetic tdata directory.
type fixture struct {
	t        *testing.T
	dir      string
	salt     []byte
	rawKey   []byte
	localKey *authkey.Key
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	salt := make([]byte, authkey.SaltSize)
	if _, err := rand.Read(salt); err != nil {
		t.Fatal(err)
	}
	rawKey := make([]byte, authkey.Size)
	if _, err := rand.Read(rawKey); err != nil {
		t.Fatal(err)
	}
	localKey, err := authkey.FromBytes(rawKey)
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{t: t, dir: t.TempDir(), salt: salt, rawKey: rawKey, localKey: localKey}
}

// writeSettings writes the global settings file with the given stream
// content, keyed by the legacy empty-passcode key over the fixture salt.
func (f *fixture) writeSettings(content []byte) *authkey.Key {
	f.t.Helper()
	settingsKey, err := authkey.CreateLegacyLocal(nil, f.salt)
	if err != nil {
		f.t.Fatal(err)
	}
	var body []byte
	body = appendBytes(body, f.salt)
	body = appendBytes(body, encryptStream(f.t, settingsKey, content))
	writeEnvelope(f.t, f.dir, "settings", body)
	return settingsKey
}

// writeKeyData writes the modern key file: passcode-encrypted local key
// plus the account info block.
func (f *fixture) writeKeyData(passcode []byte, info []byte) {
	f.t.Helper()
	passcodeKey, err := authkey.CreateLocal(passcode, f.salt)
	if err != nil {
		f.t.Fatal(err)
	}
	var body []byte
	body = appendBytes(body, f.salt)
	body = appendBytes(body, encryptStream(f.t, passcodeKey, f.rawKey))
	body = appendBytes(body, encryptStream(f.t, f.localKey, info))
	writeEnvelope(f.t, f.dir, "key_data", body)
}

// writeAccount writes an account directory: the map plus a settings
// file holding content.
func (f *fixture) writeAccount(index int, settingsKey filekey.Key, content []byte) {
	f.t.Helper()
	composed := ComposeDataString("data", index)
	dirKey := filekey.Compute(composed)
	accountDir := filepath.Join(f.dir, dirKey.FilePart())
	if err := os.MkdirAll(accountDir, 0755); err != nil {
		f.t.Fatal(err)
	}

	var records []byte
	records = binary.BigEndian.AppendUint32(records, 0x09) // UserSettings
	records = binary.BigEndian.AppendUint64(records, uint64(settingsKey))

	var mapBody []byte
	mapBody = appendBytes(mapBody, nil)
	mapBody = appendBytes(mapBody, nil)
	mapBody = appendBytes(mapBody, encryptStream(f.t, f.localKey, records))
	writeEnvelope(f.t, accountDir, "map", mapBody)

	settingsBody := appendBytes(nil, encryptStream(f.t, f.localKey, content))
	writeEnvelope(f.t, accountDir, settingsKey.FilePart(), settingsBody)
}

// ---- tests ----

func TestComposeDataString(t *testing.T) {
	tests := []struct {
		name  string
		index int
		want  string
	}{
		{"data", 0, "data"},
		{"data", 1, "data#2"},
		{"data", 2, "data#3"},
		{"da#ta", 2, "data#3"},
		{"d#a#t#a", 0, "data"},
	}
	for _, tt := range tests {
		if got := ComposeDataString(tt.name, tt.index); got != tt.want {
			t.Errorf("ComposeDataString(%q, %d) = %q, want %q", tt.name, tt.index, got, tt.want)
		}
	}
}

func TestReadLocalStorage(t *testing.T) {
	f := newFixture(t)

	var content []byte
	content = binary.BigEndian.AppendUint32(content, 0x06) // AutoStart
	content = binary.BigEndian.AppendUint32(content, 1)
	content = binary.BigEndian.AppendUint32(content, 0x58) // ScalePercent
	content = binary.BigEndian.AppendUint32(content, 125)
	f.writeSettings(content)

	p := New("data", f.dir, nop(), testMetrics())
	if err := p.ReadLocalStorage(); err != nil {
		t.Fatalf("ReadLocalStorage() error = %v", err)
	}
	if p.GlobalSettings == nil || p.GlobalSettings.AutoStart == nil || !*p.GlobalSettings.AutoStart {
		t.Error("AutoStart not recovered")
	}
	if p.GlobalSettings.ScalePercent == nil || *p.GlobalSettings.ScalePercent != 125 {
		t.Error("ScalePercent not recovered")
	}
	if p.Theme != nil {
		t.Error("no theme key was present, Theme should be nil")
	}
}

func TestReadLocalStorage_ThemeFollowed(t *testing.T) {
	f := newFixture(t)

	themeKey := filekey.Key(0xBEEF)
	var content []byte
	content = binary.BigEndian.AppendUint32(content, 0x54) // ThemeKey
	content = binary.BigEndian.AppendUint64(content, uint64(themeKey))
	content = binary.BigEndian.AppendUint64(content, uint64(themeKey))
	content = binary.BigEndian.AppendUint32(content, 1) // night mode
	settingsKey := f.writeSettings(content)

	// The theme record: embedded cloud theme, no filesystem touch.
	var tb []byte
	tb = appendBytes(tb, []byte("palette"))
	tb = appendString(tb, "special://new_tag")
	tb = appendString(tb, "/abs")
	tb = appendString(tb, "rel")
	tb = binary.BigEndian.AppendUint64(tb, 1) // cloud id
	tb = binary.BigEndian.AppendUint64(tb, 2) // access hash
	tb = appendString(tb, "slug")
	tb = appendString(tb, "title")
	tb = binary.BigEndian.AppendUint64(tb, 3) // document
	tb = binary.BigEndian.AppendUint32(tb, 0) // field1
	tb = binary.BigEndian.AppendUint32(tb, 1) // palette checksum
	tb = binary.BigEndian.AppendUint32(tb, 2) // content checksum
	tb = appendBytes(tb, []byte{1})
	tb = appendBytes(tb, nil)
	tb = binary.BigEndian.AppendUint32(tb, 0) // field2
	themeBody := appendBytes(nil, encryptStream(t, settingsKey, tb))
	writeEnvelope(t, f.dir, themeKey.FilePart(), themeBody)

	p := New("data", f.dir, nop(), testMetrics())
	if err := p.ReadLocalStorage(); err != nil {
		t.Fatalf("ReadLocalStorage() error = %v", err)
	}
	if p.Theme == nil {
		t.Fatal("theme not followed")
	}
	if !p.Theme.IsCloud() || p.Theme.Object.Cloud.Slug != "slug" {
		t.Errorf("Theme = %+v", p.Theme.Object.Cloud)
	}
}

func TestReadModern(t *testing.T) {
	f := newFixture(t)

	var info []byte
	info = binary.BigEndian.AppendUint32(info, 2) // count
	info = binary.BigEndian.AppendUint32(info, 0)
	info = binary.BigEndian.AppendUint32(info, 1)
	f.writeKeyData(nil, info)

	var acctSettings []byte
	acctSettings = binary.BigEndian.AppendUint32(acctSettings, 0x06) // AutoStart
	acctSettings = binary.BigEndian.AppendUint32(acctSettings, 1)
	f.writeAccount(0, 0x42, acctSettings)
	f.writeAccount(1, 0x43, acctSettings)

	p := New("data", f.dir, nop(), testMetrics())
	if err := p.ReadModern(nil); err != nil {
		t.Fatalf("ReadModern() error = %v", err)
	}
	if len(p.Accounts) != 2 {
		t.Fatalf("Accounts = %d, want 2", len(p.Accounts))
	}
	for _, index := range []int{0, 1} {
		a := p.Accounts[index]
		if a == nil {
			t.Fatalf("account %d missing", index)
		}
		if a.Map.SettingsKey != filekey.Key(0x42+index) {
			t.Errorf("account %d settings key = %#x", index, uint64(a.Map.SettingsKey))
		}
		if a.Settings == nil || a.Settings.AutoStart == nil {
			t.Errorf("account %d settings not parsed", index)
		}
	}
	if p.LocalKey == nil || p.LocalKey.IsZero() {
		t.Error("local key not recovered")
	}
}

func TestReadModern_WithPasscode(t *testing.T) {
	f := newFixture(t)

	var info []byte
	info = binary.BigEndian.AppendUint32(info, 1)
	info = binary.BigEndian.AppendUint32(info, 0)
	f.writeKeyData([]byte("hunter2"), info)

	var acctSettings []byte
	acctSettings = binary.BigEndian.AppendUint32(acctSettings, 0x06)
	acctSettings = binary.BigEndian.AppendUint32(acctSettings, 1)
	f.writeAccount(0, 0x42, acctSettings)

	p := New("data", f.dir, nop(), testMetrics())
	err := p.ReadModern([]byte("wrong"))
	if err == nil {
		t.Fatal("ReadModern() with wrong passcode succeeded")
	}

	p = New("data", f.dir, nop(), testMetrics())
	if err := p.ReadModern([]byte("hunter2")); err != nil {
		t.Fatalf("ReadModern() error = %v", err)
	}
	if len(p.Accounts) != 1 {
		t.Errorf("Accounts = %d, want 1", len(p.Accounts))
	}
}

func TestReadModern_AccountIndexes(t *testing.T) {
	f := newFixture(t)

	// Duplicate and out-of-range indexes are skipped, not fatal.
	var info []byte
	info = binary.BigEndian.AppendUint32(info, 3)
	info = binary.BigEndian.AppendUint32(info, 0)
	info = binary.BigEndian.AppendUint32(info, 0)          // duplicate
	info = binary.BigEndian.AppendUint32(info, 0xFFFFFFFF) // -1
	f.writeKeyData(nil, info)

	var acctSettings []byte
	acctSettings = binary.BigEndian.AppendUint32(acctSettings, 0x06)
	acctSettings = binary.BigEndian.AppendUint32(acctSettings, 1)
	f.writeAccount(0, 0x42, acctSettings)

	p := New("data", f.dir, nop(), testMetrics())
	if err := p.ReadModern(nil); err != nil {
		t.Fatalf("ReadModern() error = %v", err)
	}
	if len(p.Accounts) != 1 {
		t.Errorf("Accounts = %d, want 1", len(p.Accounts))
	}
	for index := range p.Accounts {
		if index < 0 || index >= MaxAccounts {
			t.Errorf("account index %d out of range", index)
		}
	}
}

func TestReadModern_BadAccountCount(t *testing.T) {
	for _, count := range []uint32{0, 4, 0x80000000} {
		f := newFixture(t)
		info := binary.BigEndian.AppendUint32(nil, count)
		f.writeKeyData(nil, info)

		p := New("data", f.dir, nop(), testMetrics())
		if err := p.ReadModern(nil); !errors.Is(err, ErrBadAccountCount) {
			t.Errorf("count %d: error = %v, want ErrBadAccountCount", count, err)
		}
	}
}

func TestAccount_StateMachine(t *testing.T) {
	f := newFixture(t)

	var info []byte
	info = binary.BigEndian.AppendUint32(info, 1)
	info = binary.BigEndian.AppendUint32(info, 0)
	f.writeKeyData(nil, info)

	var acctSettings []byte
	acctSettings = binary.BigEndian.AppendUint32(acctSettings, 0x06)
	acctSettings = binary.BigEndian.AppendUint32(acctSettings, 1)
	f.writeAccount(0, 0x42, acctSettings)

	p := New("data", f.dir, nop(), testMetrics())
	if err := p.ReadModern(nil); err != nil {
		t.Fatal(err)
	}

	a := p.Accounts[0]
	if err := a.start(f.localKey); !errors.Is(err, ErrStateReentry) {
		t.Errorf("start() again: error = %v, want ErrStateReentry", err)
	}
	if err := a.readMap(); !errors.Is(err, ErrStateReentry) {
		t.Errorf("readMap() again: error = %v, want ErrStateReentry", err)
	}
	if err := a.readSettings(); !errors.Is(err, ErrStateReentry) {
		t.Errorf("readSettings() again: error = %v, want ErrStateReentry", err)
	}
}

func TestRead_FullBoot(t *testing.T) {
	f := newFixture(t)

	var content []byte
	content = binary.BigEndian.AppendUint32(content, 0x06)
	content = binary.BigEndian.AppendUint32(content, 1)
	f.writeSettings(content)

	var info []byte
	info = binary.BigEndian.AppendUint32(info, 1)
	info = binary.BigEndian.AppendUint32(info, 0)
	f.writeKeyData(nil, info)

	var acctSettings []byte
	acctSettings = binary.BigEndian.AppendUint32(acctSettings, 0x01) // User
	acctSettings = binary.BigEndian.AppendUint32(acctSettings, 12345)
	acctSettings = binary.BigEndian.AppendUint32(acctSettings, 2)
	f.writeAccount(0, 0x42, acctSettings)

	p := New("data", f.dir, nop(), testMetrics())
	if err := p.Read(nil); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if p.GlobalSettings == nil || len(p.Accounts) != 1 {
		t.Fatal("boot did not recover all state")
	}
	if u := p.Accounts[0].Settings.User; u == nil || u.UserID != 12345 || u.DcID != 2 {
		t.Errorf("account user = %+v", p.Accounts[0].Settings.User)
	}
}

func TestReadModern_MissingKeyFile(t *testing.T) {
	p := New("data", t.TempDir(), nop(), testMetrics())
	if err := p.ReadModern(nil); err == nil {
		t.Error("ReadModern() succeeded without a key file")
	}
}
