package archive

import (
	"context"
	"errors"
	"os"
	"path/filepath"
)

// FileSink writes objects beneath a root directory.
type FileSink struct {
	root string
}

// NewFileSink creates a sink rooted at dir. The directory is created on the
// first Put.
func NewFileSink(dir string) (*FileSink, error) {
	if dir == "" {
		return nil, errors.New("archive: file sink requires a directory")
	}
	return &FileSink{root: dir}, nil
}

// Root returns the sink's root directory.
func (s *FileSink) Root() string {
	return s.root
}

// Put writes data to root/key, replacing any existing object atomically.
func (s *FileSink) Put(ctx context.Context, key string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dest := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", wrapError(err, "put", dest)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".output-*")
	if err != nil {
		return "", wrapError(err, "put", dest)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", wrapError(err, "put", dest)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", wrapError(err, "put", dest)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		_ = os.Remove(tmpName)
		return "", wrapError(err, "put", dest)
	}
	return dest, nil
}
