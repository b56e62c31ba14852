package linker

import "os"

// File is a raw input buffer plus the path it came from. The core never
// re-opens or re-reads it once loaded (spec §5: "file reads happen once
// up front, producing buffers the core treats as immutable").
type File struct {
	Name     string
	Contents []byte
}

// ReadFile loads path into memory. The CLI collaborator is expected to
// have already resolved -L/-l style library-name lookups into absolute
// paths (spec §6.3); the core only ever opens paths it is handed
// directly.
func ReadFile(path string) (*File, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, newError(IoError, path, err)
	}
	return &File{Name: path, Contents: contents}, nil
}
