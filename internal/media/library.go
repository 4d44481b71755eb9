// Package media manages the on-disk song library and the external song
// acquisition collaborator. The gateway only hands out locators into the
// library; it never streams media itself.
package media

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// audioExtensions are the file types counted as songs by library scans.
var audioExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".flac": true,
	".m4a":  true,
	".ogg":  true,
}

// Library resolves song titles to files under a single root directory.
type Library struct {
	root string
}

// NewLibrary creates a library rooted at dir, creating it if needed.
func NewLibrary(dir string) (*Library, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create songs dir %s: %w", dir, err)
	}
	return &Library{root: dir}, nil
}

// Root returns the library directory.
func (l *Library) Root() string {
	return l.root
}

// SongPath resolves "Title - Artist.mp3" under the library root. The name
// is sanitised so a crafted title cannot escape the root.
func (l *Library) SongPath(title, artist string) string {
	name := Sanitize(title+" - "+artist) + ".mp3"
	return filepath.Join(l.root, name)
}

// Exists reports whether the song file is already on disk.
func (l *Library) Exists(title, artist string) bool {
	info, err := os.Stat(l.SongPath(title, artist))
	return err == nil && info.Mode().IsRegular()
}

// Count returns the number of audio files in the library.
func (l *Library) Count() (int, error) {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		return 0, fmt.Errorf("scan songs dir: %w", err)
	}
	n := 0
	for _, e := range entries {
		if e.Type().IsRegular() && audioExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			n++
		}
	}
	return n, nil
}

// Sanitize strips characters that are path separators or otherwise unsafe
// in filenames, collapsing them to nothing the way the upstream clients
// expect ("AC/DC" resolves the same file as "ACDC").
func Sanitize(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', 0:
			// dropped
		default:
			if r >= 0x20 {
				b.WriteRune(r)
			}
		}
	}
	return strings.TrimSpace(strings.Trim(b.String(), "."))
}
