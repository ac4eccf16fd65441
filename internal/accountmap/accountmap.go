// Package accountmap reads the per-account "map" file: a tagged-record
// index of file keys grouped by category.
package accountmap

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/postalsys/tdata-reader/internal/authkey"
	"github.com/postalsys/tdata-reader/internal/filekey"
	"github.com/postalsys/tdata-reader/internal/stream"
	"github.com/postalsys/tdata-reader/internal/tdf"
)

// Category tags one record in the map. The set is closed; payload sizes
// are category-dependent, so an unknown tag cannot be skipped and is
// fatal.
type Category uint32

// Known categories.
const (
	CategoryUserMap               Category = 0x00
	CategoryDraft                 Category = 0x01
	CategoryDraftPosition         Category = 0x02
	CategoryLegacyImages          Category = 0x03
	CategoryLocations             Category = 0x04
	CategoryLegacyStickerImages   Category = 0x05
	CategoryLegacyAudios          Category = 0x06
	CategoryRecentStickersOld     Category = 0x07
	CategoryBackgroundOldOld      Category = 0x08
	CategoryUserSettings          Category = 0x09
	CategoryRecentHashtagsAndBots Category = 0x0a
	CategoryStickersOld           Category = 0x0b
	CategorySavedPeersOld         Category = 0x0c
	CategoryReportSpamStatusesOld Category = 0x0d
	CategorySavedGifsOld          Category = 0x0e
	CategorySavedGifs             Category = 0x0f
	CategoryStickersKeys          Category = 0x10
	CategoryTrustedBots           Category = 0x11
	CategoryFavedStickers         Category = 0x12
	CategoryExportSettings        Category = 0x13
	CategoryBackgroundOld         Category = 0x14
	CategorySelfSerialized        Category = 0x15
	CategoryMasksKeys             Category = 0x16
)

var (
	// ErrUnknownCategory is returned for tags outside the closed set.
	ErrUnknownCategory = errors.New("unknown key type in encrypted map")

	// ErrUserMap is returned for the UserMap tag, which belongs to an
	// older storage generation and never appears in maps this reader
	// supports.
	ErrUserMap = errors.New("unsupported: UserMap entry")
)

// Map is the decoded account index. Only the settings key is needed for
// further reads; the counts are observable totals for reporting.
type Map struct {
	// SettingsKey names the per-account settings file.
	SettingsKey filekey.Key

	// Drafts counts draft records.
	Drafts int

	// DraftPositions counts draft cursor records.
	DraftPositions int

	// LegacyMedia counts entries across the three legacy media
	// categories.
	LegacyMedia int
}

// Read opens and decodes the map file in an account directory using the
// session's local key.
func Read(basePath string, localKey *authkey.Key, log *slog.Logger) (*Map, error) {
	desc, err := tdf.Open("map", basePath)
	if err != nil {
		return nil, err
	}
	s := desc.Stream()

	if err := s.SkipBytes(); err != nil {
		return nil, fmt.Errorf("reading legacy salt: %w", err)
	}
	if err := s.SkipBytes(); err != nil {
		return nil, fmt.Errorf("reading legacy key: %w", err)
	}
	mapEncrypted, err := s.ReadBytes()
	if err != nil {
		return nil, fmt.Errorf("reading encrypted map: %w", err)
	}
	if err := s.ShouldBeDone(); err != nil {
		return nil, fmt.Errorf("reading map data: %w", err)
	}

	m, err := tdf.DecryptLocal(mapEncrypted, localKey)
	if err != nil {
		return nil, fmt.Errorf("decrypting map: %w", err)
	}
	return decode(m.WithLogger(log))
}

func decode(m *stream.Reader) (*Map, error) {
	out := &Map{}
	for !m.IsDone() {
		tag, err := m.ReadUint32()
		if err != nil {
			return nil, err
		}
		cat := Category(tag)
		switch cat {
		case CategoryDraft, CategoryDraftPosition:
			count, err := m.ReadVecLen()
			if err != nil {
				return nil, err
			}
			for i := 0; i < count; i++ {
				if err := m.SkipUint64(); err != nil { // file key
					return nil, err
				}
				if err := m.SkipUint64(); err != nil { // serialized peer
					return nil, err
				}
			}
			if cat == CategoryDraft {
				out.Drafts += count
			} else {
				out.DraftPositions += count
			}

		case CategoryLegacyImages, CategoryLegacyStickerImages, CategoryLegacyAudios:
			count, err := m.ReadVecLen()
			if err != nil {
				return nil, err
			}
			for i := 0; i < count; i++ {
				if err := m.SkipUint64s(3); err != nil { // key, first, second
					return nil, err
				}
				if err := m.SkipUint32(); err != nil { // size
					return nil, err
				}
			}
			out.LegacyMedia += count

		case CategoryUserSettings:
			v, err := m.ReadUint64()
			if err != nil {
				return nil, err
			}
			out.SettingsKey = filekey.Key(v)

		case CategorySelfSerialized:
			if err := m.SkipBytes(); err != nil {
				return nil, err
			}

		case CategoryLocations, CategoryRecentStickersOld, CategoryBackgroundOldOld,
			CategoryRecentHashtagsAndBots, CategoryStickersOld, CategorySavedPeersOld,
			CategoryReportSpamStatusesOld, CategorySavedGifsOld, CategorySavedGifs,
			CategoryTrustedBots, CategoryFavedStickers, CategoryExportSettings:
			if err := m.SkipUint64(); err != nil {
				return nil, err
			}

		case CategoryBackgroundOld:
			if err := m.SkipUint64s(2); err != nil {
				return nil, err
			}

		case CategoryStickersKeys:
			if err := m.SkipUint64s(4); err != nil {
				return nil, err
			}

		case CategoryMasksKeys:
			if err := m.SkipUint64s(3); err != nil {
				return nil, err
			}

		case CategoryUserMap:
			return nil, ErrUserMap

		default:
			return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownCategory, tag)
		}
	}
	return out, nil
}
