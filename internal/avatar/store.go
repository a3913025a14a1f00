package avatar

import (
	"fmt"
	"os"
	"path/filepath"
)

// Store persists generated avatars as files addressed by username.
//
// WRITE-THEN-RENAME:
// A request referencing an avatar must never observe a half-written file.
// We write to a temp file in the same directory, flush it, and then
// os.Rename it into place — rename within one directory is atomic on every
// platform we care about, so readers see either no file or the whole file.
//
// Once published, an avatar is never re-generated: repeated requests return
// byte-identical content even though generation itself is randomised.
type Store struct {
	dir string
	gen *Generator
}

// NewStore creates the avatar directory if needed and returns a Store.
func NewStore(dir string, gen *Generator) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("avatar: creating directory %s: %w", dir, err)
	}
	return &Store{dir: dir, gen: gen}, nil
}

// Path returns the file path an avatar for username lives at (whether or
// not it exists yet).
func (s *Store) Path(username string) string {
	return filepath.Join(s.dir, username+".png")
}

// Ensure returns the avatar file path for username, generating and
// publishing the image on first call. The initial is the glyph to render —
// callers pass the first rune of the username.
func (s *Store) Ensure(username string, initial rune) (string, error) {
	path := s.Path(username)

	// Already published — stable from here on.
	if _, err := os.Stat(path); err == nil {
		return path, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("avatar: checking %s: %w", path, err)
	}

	data, err := s.gen.Render(initial)
	if err != nil {
		return "", err
	}

	if err := s.publish(path, data); err != nil {
		return "", err
	}

	return path, nil
}

// publish writes data to a temp file and renames it into place.
func (s *Store) publish(path string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, ".avatar-*.tmp")
	if err != nil {
		return fmt.Errorf("avatar: creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	// On any failure below, remove the temp file so the directory doesn't
	// accumulate junk. Remove after a successful rename fails silently,
	// which is fine.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("avatar: writing temp file: %w", err)
	}
	// Sync before rename: the publish must be durable before any response
	// references the path.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("avatar: syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("avatar: closing temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("avatar: publishing %s: %w", path, err)
	}

	return nil
}
