// Package theme decodes saved theme bundles: the encrypted record layered
// over the value stream, plus the referenced palette file on disk.
package theme

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/postalsys/tdata-reader/internal/authkey"
	"github.com/postalsys/tdata-reader/internal/filekey"
	"github.com/postalsys/tdata-reader/internal/tdf"
)

// newPathRelativeTag marks a cloud-theme record: it sits where a local
// record keeps its relative path.
const newPathRelativeTag = "special://new_tag"

// FileSizeLimit caps referenced theme files. A file of exactly this size
// is already too large.
const FileSizeLimit = 5 * 1024 * 1024

// ErrFileTooLarge is returned when a referenced theme file breaches
// FileSizeLimit.
var ErrFileTooLarge = errors.New("theme file too large")

// Cloud carries the server-side identity of a cloud theme.
type Cloud struct {
	ID         uint64
	AccessHash uint64
	Slug       string
	Title      string
	DocumentID uint64
	CreatedBy  uint64
	UsersCount int32
}

// Object is the theme body: palette content and its file paths, plus the
// cloud identity when present.
type Object struct {
	PathRelative string
	PathAbsolute string
	Content      []byte
	Cloud        Cloud
}

// Cache holds the precomputed palette state. It is dropped when the
// on-disk file no longer matches the embedded content.
type Cache struct {
	Colors          []byte
	Background      []byte
	Tiled           bool
	PaletteChecksum int32
	ContentChecksum int32
}

// Saved is one decoded theme record.
type Saved struct {
	Object Object
	Cache  Cache
}

// IsCloud reports whether the record carried a cloud identity.
func (s *Saved) IsCloud() bool { return s.Object.Cloud.ID != 0 }

// Read opens the theme file named by key under basePath, decrypts it with
// the session key and decodes the record. For local themes the referenced
// palette file is loaded from disk, preferring the relative path when it
// exists.
func Read(key filekey.Key, basePath string, authKey *authkey.Key, log *slog.Logger) (*Saved, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	desc, err := tdf.Open(key.FilePart(), basePath)
	if err != nil {
		return nil, err
	}
	encrypted, err := desc.Stream().ReadBytes()
	if err != nil {
		return nil, fmt.Errorf("reading encrypted theme: %w", err)
	}
	r, err := tdf.DecryptLocal(encrypted, authKey)
	if err != nil {
		return nil, fmt.Errorf("decrypting theme: %w", err)
	}

	result := &Saved{}
	object, cache := &result.Object, &result.Cache

	if object.Content, err = r.ReadBytes(); err != nil {
		return nil, fmt.Errorf("reading theme content: %w", err)
	}
	tag, err := r.ReadString()
	if err != nil {
		return nil, fmt.Errorf("reading theme tag: %w", err)
	}
	if object.PathAbsolute, err = r.ReadString(); err != nil {
		return nil, fmt.Errorf("reading absolute path: %w", err)
	}

	var field1 int32
	isNewTag := tag == newPathRelativeTag
	if isNewTag {
		if object.PathRelative, err = r.ReadString(); err != nil {
			return nil, err
		}
		if object.Cloud.ID, err = r.ReadUint64(); err != nil {
			return nil, err
		}
		if object.Cloud.AccessHash, err = r.ReadUint64(); err != nil {
			return nil, err
		}
		if object.Cloud.Slug, err = r.ReadString(); err != nil {
			return nil, err
		}
		if object.Cloud.Title, err = r.ReadString(); err != nil {
			return nil, err
		}
		if object.Cloud.DocumentID, err = r.ReadUint64(); err != nil {
			return nil, err
		}
		if field1, err = r.ReadInt32(); err != nil {
			return nil, err
		}
	} else {
		object.PathRelative = tag
	}

	ignoreCache := false
	if object.Cloud.ID == 0 {
		path := object.PathAbsolute
		if rel := object.PathRelative; rel != "" {
			if _, statErr := os.Stat(rel); statErr == nil {
				path = rel
			}
		}
		fileContent, err := loadFile(path)
		if err != nil {
			return nil, err
		}
		if !bytes.Equal(object.Content, fileContent) {
			log.Debug("theme file diverged from embedded copy", "path", path)
			object.Content = fileContent
			ignoreCache = true
		}
	}

	paletteChecksum, err := r.ReadInt32()
	if err != nil {
		return nil, err
	}
	contentChecksum, err := r.ReadInt32()
	if err != nil {
		return nil, err
	}
	colors, err := r.ReadBytes()
	if err != nil {
		return nil, err
	}
	background, err := r.ReadBytes()
	if err != nil {
		return nil, err
	}
	field2, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}

	if !ignoreCache {
		*cache = Cache{
			PaletteChecksum: paletteChecksum,
			ContentChecksum: contentChecksum,
			Colors:          colors,
			Background:      background,
			Tiled:           field2&0xFF == 1,
		}
	}

	if isNewTag {
		// field1 is signed on the wire; the low half sign-extends before
		// the flags word is folded into the upper half.
		object.Cloud.CreatedBy = (uint64(field2)>>8)<<32 | uint64(int64(field1))
	}

	return result, nil
}

// loadFile reads a referenced palette file, enforcing the size cap.
func loadFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening theme file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("reading theme file size: %w", err)
	}
	if info.Size() >= FileSizeLimit {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrFileTooLarge, path, info.Size())
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading theme file: %w", err)
	}
	return content, nil
}
