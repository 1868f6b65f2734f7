package gateway

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
)

// FilesClient keeps payment screenshots on local disk under dir.
type FilesClient struct {
	dir string
}

func NewFilesClient(dir string) FilesClient {
	if dir == "" {
		panic("missing upload dir")
	}

	return FilesClient{dir: dir}
}

// Put stores content under name and returns the reference to keep on the payment proof.
func (c FilesClient) Put(ctx context.Context, name string, content []byte) (string, error) {
	if filepath.Base(name) != name {
		return "", fmt.Errorf("invalid file name %q", name)
	}

	if err := os.MkdirAll(c.dir, 0o750); err != nil {
		return "", fmt.Errorf("could not create upload dir: %w", err)
	}

	path := filepath.Join(c.dir, name)
	if err := os.WriteFile(path, content, 0o640); err != nil {
		return "", fmt.Errorf("could not write file %s: %w", name, err)
	}

	log.FromContext(ctx).WithField("file", name).Debug("Stored file")

	return name, nil
}

func (c FilesClient) Get(ctx context.Context, ref string) ([]byte, error) {
	if filepath.Base(ref) != ref {
		return nil, fmt.Errorf("invalid file reference %q", ref)
	}

	content, err := os.ReadFile(filepath.Join(c.dir, ref))
	if err != nil {
		return nil, fmt.Errorf("could not read file %s: %w", ref, err)
	}

	return content, nil
}
