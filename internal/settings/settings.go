// Package settings reads the keyed settings stream found in the global
// settings file and in per-account settings files.
//
// The stream is a flat sequence of records, each a uint32 kind tag
// followed by a kind-specific payload, running to end of stream. A small
// set of kinds is parsed into Settings; every other recognised kind is
// skipped with its exact payload shape; unknown kinds are fatal because
// their payload size cannot be known.
package settings

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/postalsys/tdata-reader/internal/filekey"
	"github.com/postalsys/tdata-reader/internal/stream"
)

var (
	// ErrUnknownKind is returned for tags outside the closed set.
	ErrUnknownKind = errors.New("unknown setting kind")

	// ErrUnsupportedKind is returned for recognised tags whose payload
	// belongs to an out-of-scope storage generation.
	ErrUnsupportedKind = errors.New("unsupported setting kind")
)

// UserInfo is the payload of the User record.
type UserInfo struct {
	UserID int32
	DcID   uint32
}

// ThemeKeys selects day and night theme files.
type ThemeKeys struct {
	Day       filekey.Key
	Night     filekey.Key
	NightMode bool
}

// Active returns the theme key selected by the night-mode flag.
func (t ThemeKeys) Active() filekey.Key {
	if t.NightMode {
		return t.Night
	}
	return t.Day
}

// BackgroundKeys selects day and night background files.
type BackgroundKeys struct {
	Day   filekey.Key
	Night filekey.Key
}

// TileBackgroundState carries the day/night background tiling flags.
type TileBackgroundState struct {
	Day   int32
	Night int32
}

// RecentSticker is one entry of the recent stickers list.
type RecentSticker struct {
	ID   uint64
	Rank uint16
}

// CacheLimits is the payload of the CacheSettings record.
type CacheLimits struct {
	Size    int64
	Time    int32
	SizeBig int64
	TimeBig int32
}

// Settings accumulates the parsed records of one stream. Pointer fields
// are nil when the record never appeared. Payloads the reader treats as
// opaque (MtpAuthorization, SessionSettings, ApplicationSettings,
// FallbackProductionConfig) are surfaced as raw bytes.
type Settings struct {
	AutoStart              *bool
	StartMinimized         *bool
	SeenTrayTooltip        *bool
	AutoUpdate             *bool
	SendToMenu             *bool
	UseExternalVideoPlayer *bool
	AnimationsDisabled     *bool

	LastUpdateCheck *int32
	DefaultAttach   *int32
	ScalePercent    *int32

	User *UserInfo

	DialogLastPath           []byte
	MtpAuthorization         []byte
	SessionSettings          []byte
	ApplicationSettings      []byte
	FallbackProductionConfig []byte

	RecentStickers []RecentSticker
	Cache          *CacheLimits

	ThemeKeys      *ThemeKeys
	BackgroundKeys *BackgroundKeys
	TileBackground *TileBackgroundState

	LangPackKey  *filekey.Key
	LanguagesKey *filekey.Key

	// Parsed counts records decoded into fields above; Skipped counts
	// recognised legacy records passed over.
	Parsed  int
	Skipped int
}

// ReadAll consumes the stream until end of data, accumulating parsed
// records and skipping recognised legacy ones.
func ReadAll(r *stream.Reader, log *slog.Logger) (*Settings, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	out := &Settings{}
	for !r.IsDone() {
		tag, err := r.ReadUint32()
		if err != nil {
			return nil, err
		}
		kind := Kind(tag)
		if err := out.readRecord(r, kind, log); err != nil {
			return nil, fmt.Errorf("setting %s (0x%02x): %w", kind, tag, err)
		}
	}
	return out, nil
}

func (s *Settings) readRecord(r *stream.Reader, kind Kind, log *slog.Logger) error {
	parsed := true
	switch kind {
	case KindAutoStart:
		v, err := readBool(r)
		if err != nil {
			return err
		}
		s.AutoStart = &v
	case KindStartMinimized:
		v, err := readBool(r)
		if err != nil {
			return err
		}
		s.StartMinimized = &v
	case KindSeenTrayTooltip:
		v, err := readBool(r)
		if err != nil {
			return err
		}
		s.SeenTrayTooltip = &v
	case KindAutoUpdate:
		v, err := readBool(r)
		if err != nil {
			return err
		}
		s.AutoUpdate = &v
	case KindSendToMenu:
		v, err := readBool(r)
		if err != nil {
			return err
		}
		s.SendToMenu = &v
	case KindUseExternalVideoPlayer:
		v, err := readBool(r)
		if err != nil {
			return err
		}
		s.UseExternalVideoPlayer = &v
	case KindAnimationsDisabled:
		v, err := readBool(r)
		if err != nil {
			return err
		}
		s.AnimationsDisabled = &v

	case KindLastUpdateCheck:
		v, err := r.ReadInt32()
		if err != nil {
			return err
		}
		s.LastUpdateCheck = &v
	case KindDefaultAttach:
		v, err := r.ReadInt32()
		if err != nil {
			return err
		}
		s.DefaultAttach = &v
	case KindScalePercent:
		v, err := r.ReadInt32()
		if err != nil {
			return err
		}
		s.ScalePercent = &v

	case KindUser:
		var u UserInfo
		var err error
		if u.UserID, err = r.ReadInt32(); err != nil {
			return err
		}
		if u.DcID, err = r.ReadUint32(); err != nil {
			return err
		}
		s.User = &u

	case KindDialogLastPath:
		b, err := r.ReadBytes()
		if err != nil {
			return err
		}
		s.DialogLastPath = b
	case KindMtpAuthorization:
		b, err := r.ReadBytes()
		if err != nil {
			return err
		}
		s.MtpAuthorization = b
	case KindSessionSettings:
		b, err := r.ReadBytes()
		if err != nil {
			return err
		}
		s.SessionSettings = b
	case KindApplicationSettings:
		b, err := r.ReadBytes()
		if err != nil {
			return err
		}
		s.ApplicationSettings = b
	case KindFallbackProductionConfig:
		b, err := r.ReadBytes()
		if err != nil {
			return err
		}
		s.FallbackProductionConfig = b

	case KindRecentStickers:
		count, err := r.ReadVecLen()
		if err != nil {
			return err
		}
		list := make([]RecentSticker, 0, count)
		for i := 0; i < count; i++ {
			var e RecentSticker
			if e.ID, err = r.ReadUint64(); err != nil {
				return err
			}
			if e.Rank, err = r.ReadUint16(); err != nil {
				return err
			}
			list = append(list, e)
		}
		s.RecentStickers = list

	case KindCacheSettings:
		var c CacheLimits
		var err error
		if c.Size, err = r.ReadInt64(); err != nil {
			return err
		}
		if c.Time, err = r.ReadInt32(); err != nil {
			return err
		}
		if c.SizeBig, err = r.ReadInt64(); err != nil {
			return err
		}
		if c.TimeBig, err = r.ReadInt32(); err != nil {
			return err
		}
		s.Cache = &c

	case KindThemeKey:
		var t ThemeKeys
		day, err := r.ReadUint64()
		if err != nil {
			return err
		}
		night, err := r.ReadUint64()
		if err != nil {
			return err
		}
		mode, err := r.ReadUint32()
		if err != nil {
			return err
		}
		t.Day, t.Night, t.NightMode = filekey.Key(day), filekey.Key(night), mode == 1
		s.ThemeKeys = &t

	case KindBackgroundKey:
		day, err := r.ReadUint64()
		if err != nil {
			return err
		}
		night, err := r.ReadUint64()
		if err != nil {
			return err
		}
		s.BackgroundKeys = &BackgroundKeys{Day: filekey.Key(day), Night: filekey.Key(night)}

	case KindTileBackground:
		day, err := r.ReadInt32()
		if err != nil {
			return err
		}
		night, err := r.ReadInt32()
		if err != nil {
			return err
		}
		s.TileBackground = &TileBackgroundState{Day: day, Night: night}

	case KindLangPackKey:
		v, err := r.ReadUint64()
		if err != nil {
			return err
		}
		k := filekey.Key(v)
		s.LangPackKey = &k
	case KindLanguagesKey:
		v, err := r.ReadUint64()
		if err != nil {
			return err
		}
		k := filekey.Key(v)
		s.LanguagesKey = &k

	case KindKey, KindEncryptedWithSalt, KindEncrypted, KindVersion:
		// Pre-magic storage generation.
		return ErrUnsupportedKind

	default:
		if !kind.known() {
			return ErrUnknownKind
		}
		if err := skipLegacy(r, kind); err != nil {
			return err
		}
		log.Debug("skipped legacy setting", "kind", kind.String())
		parsed = false
	}

	if parsed {
		s.Parsed++
	} else {
		s.Skipped++
	}
	return nil
}

// readBool reads the int32 boolean convention: on is exactly 1.
func readBool(r *stream.Reader) (bool, error) {
	v, err := r.ReadInt32()
	if err != nil {
		return false, err
	}
	return v == 1, nil
}

// skipLegacy advances past a recognised legacy record. Shapes follow the
// host application's writers for each block.
func skipLegacy(r *stream.Reader, kind Kind) error {
	switch kind {
	case KindChatSizeMaxOld, KindSendKeyOld, KindSoundFlashBounceNotify,
		KindWorkModeOld, KindDesktopNotifyOld, KindCatsAndDogsOld,
		KindReplaceEmojiOld, KindAskDownloadPathOld, KindScaleOld,
		KindEmojiTabOld, KindNotifyViewOld, KindCompressPastedImageOld,
		KindLangOld, KindTileBackgroundOld, KindAutoLockOld,
		KindTryIPv6Old, KindSongVolumeOld, KindWindowsNotificationsOld,
		KindIncludeMutedOld, KindMegagroupSizeMaxOld, KindSavedGifsLimitOld,
		KindShowingSavedGifsOld, KindAutoPlayOld, KindAdaptiveForWideOld,
		KindModerateModeOld, KindVideoVolumeOld, KindStickersRecentLimitOld,
		KindNativeNotificationsOld, KindNotificationsCountOld,
		KindNotificationsCornerOld, KindDialogsWidthRatioOld,
		KindLastSeenWarningSeenOld, KindStickersFavedLimitOld,
		KindSuggestStickersByEmoji, KindSuggestEmojiOld,
		KindPlaybackSpeedOld, KindDialogsFiltersOld:
		return r.SkipInt32()

	case KindMutePeerOld, KindThemeKeyOld:
		return r.SkipUint64()

	case KindWindowPositionOld:
		return r.SkipInt32s(6)

	case KindDialogsModeOld:
		return r.SkipInt32s(2)

	case KindCacheSettingsOld:
		if err := r.SkipInt64(); err != nil {
			return err
		}
		return r.SkipInt32()

	case KindDownloadPathOldOld, KindLangFileOld, KindLoggedPhoneNumberOld,
		KindTxtDomainStringOldOld, KindTxtDomainStringOld:
		return r.SkipString()

	case KindDcOptionsOld, KindCallSettingsOld:
		return r.SkipBytes()

	case KindDownloadPathOld:
		// Path plus a platform bookmark blob.
		if err := r.SkipString(); err != nil {
			return err
		}
		return r.SkipBytes()

	case KindDcOptionOldOld:
		// dcId, host, ip, port.
		if err := r.SkipUint32(); err != nil {
			return err
		}
		if err := r.SkipString(); err != nil {
			return err
		}
		if err := r.SkipString(); err != nil {
			return err
		}
		return r.SkipUint32()

	case KindDcOptionOld:
		// dcIdWithShift, flags, ip, port.
		if err := r.SkipUint32(); err != nil {
			return err
		}
		if err := r.SkipInt32(); err != nil {
			return err
		}
		if err := r.SkipString(); err != nil {
			return err
		}
		return r.SkipUint32()

	case KindConnectionTypeOldOld, KindConnectionTypeOld:
		return skipConnectionType(r)

	case KindAutoDownloadOld:
		// photo, audio, gif.
		return r.SkipInt32s(3)

	case KindRecentEmojiOldOldOld:
		return r.SkipVec(func(r *stream.Reader) error {
			if err := r.SkipUint32(); err != nil {
				return err
			}
			return r.SkipUint16()
		})

	case KindRecentEmojiOldOld:
		return r.SkipVec(func(r *stream.Reader) error {
			if err := r.SkipUint64(); err != nil {
				return err
			}
			return r.SkipUint16()
		})

	case KindRecentEmojiOld:
		return r.SkipVec(func(r *stream.Reader) error {
			if err := r.SkipString(); err != nil {
				return err
			}
			return r.SkipUint16()
		})

	case KindEmojiVariantsOldOld:
		return r.SkipVec(func(r *stream.Reader) error {
			if err := r.SkipUint32(); err != nil {
				return err
			}
			return r.SkipUint64()
		})

	case KindEmojiVariantsOld:
		return r.SkipVec(func(r *stream.Reader) error {
			if err := r.SkipString(); err != nil {
				return err
			}
			return r.SkipInt32()
		})

	case KindMutedPeersOld:
		return r.SkipVec((*stream.Reader).SkipUint64)

	case KindHiddenPinnedMessagesOld:
		return r.SkipVec(func(r *stream.Reader) error {
			if err := r.SkipUint64(); err != nil {
				return err
			}
			return r.SkipInt32()
		})

	default:
		return ErrUnknownKind
	}
}

// skipConnectionType skips a connection-type record: a mode int32,
// followed by proxy credentials when the mode selects a manual proxy.
func skipConnectionType(r *stream.Reader) error {
	mode, err := r.ReadInt32()
	if err != nil {
		return err
	}
	const (
		httpProxy = 2
		tcpProxy  = 3
	)
	if mode == httpProxy || mode == tcpProxy {
		if err := r.SkipString(); err != nil { // host
			return err
		}
		if err := r.SkipInt32(); err != nil { // port
			return err
		}
		if err := r.SkipString(); err != nil { // user
			return err
		}
		if err := r.SkipString(); err != nil { // password
			return err
		}
	}
	return nil
}
