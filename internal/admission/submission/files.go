package submission

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"parent-portal/internal/models"
)

// FileOpener reads the bytes behind a picked document.
type FileOpener interface {
	Open(ctx context.Context, ref models.FileRef) (io.ReadCloser, error)
}

// LocalFileOpener opens file:// URIs and plain paths. Relative paths are
// resolved against Root.
type LocalFileOpener struct {
	Root string
}

func (o LocalFileOpener) Open(_ context.Context, ref models.FileRef) (io.ReadCloser, error) {
	p, err := o.resolve(ref.URI)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", ref.Name, err)
	}
	return f, nil
}

func (o LocalFileOpener) resolve(uri string) (string, error) {
	if uri == "" {
		return "", fmt.Errorf("file has no location")
	}
	if strings.Contains(uri, "://") {
		u, err := url.Parse(uri)
		if err != nil {
			return "", fmt.Errorf("invalid file uri: %w", err)
		}
		if u.Scheme != "file" {
			return "", fmt.Errorf("unsupported file uri scheme %q", u.Scheme)
		}
		return u.Path, nil
	}
	if filepath.IsAbs(uri) || o.Root == "" {
		return uri, nil
	}
	return filepath.Join(o.Root, uri), nil
}
