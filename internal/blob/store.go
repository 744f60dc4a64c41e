package blob

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var ErrInvalidName = errors.New("invalid blob name")

// FSStore keeps label documents on local disk and serves them under
// PublicPath.
type FSStore struct {
	Dir           string
	PublicBaseURL string
}

const PublicPath = "/files/labels"

func NewFSStore(dir, publicBaseURL string) *FSStore {
	return &FSStore{Dir: dir, PublicBaseURL: strings.TrimRight(publicBaseURL, "/")}
}

func (s *FSStore) Upload(ctx context.Context, name string, data []byte, contentType string) error {
	if err := validName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create blob dir: %w", err)
	}

	// readers must never see a partial file
	tmp := filepath.Join(s.Dir, "."+name+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write blob %s: %w", name, err)
	}
	if err := os.Rename(tmp, filepath.Join(s.Dir, name)); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to store blob %s: %w", name, err)
	}
	return nil
}

// PublicURL resolves the reference handed to operators. The blob must exist.
func (s *FSStore) PublicURL(ctx context.Context, name string) (string, error) {
	if err := validName(name); err != nil {
		return "", err
	}
	if _, err := os.Stat(filepath.Join(s.Dir, name)); err != nil {
		return "", fmt.Errorf("failed to resolve blob %s: %w", name, err)
	}
	return s.PublicBaseURL + PublicPath + "/" + name, nil
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
