package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// DiskStore 写本地目录，由 HTTP 静态路由对外提供
type DiskStore struct {
	Dir     string
	BaseURL string // 如 /uploads
}

func NewDiskStore(dir, baseURL string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &DiskStore{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (d *DiskStore) Store(ctx context.Context, u Upload) (Stored, error) {
	ext, err := imageExt(u.Filename)
	if err != nil {
		return Stored{}, err
	}
	if err := ctx.Err(); err != nil {
		return Stored{}, err
	}
	name := uuid.NewString() + ext
	f, err := os.OpenFile(filepath.Join(d.Dir, name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return Stored{}, fmt.Errorf("create media file: %w", err)
	}
	if _, err := io.Copy(f, u.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return Stored{}, fmt.Errorf("write media file: %w", err)
	}
	if err := f.Close(); err != nil {
		return Stored{}, fmt.Errorf("close media file: %w", err)
	}
	return Stored{URL: d.BaseURL + "/" + name, Handle: name}, nil
}

func (d *DiskStore) Delete(_ context.Context, handle string) error {
	if handle == "" || filepath.Base(handle) != handle {
		return fmt.Errorf("media: bad handle %q", handle)
	}
	err := os.Remove(filepath.Join(d.Dir, handle))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
