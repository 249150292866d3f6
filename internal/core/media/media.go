// Package media 房源图片的外部存储：上传返回 URL + 可删除的 handle。
package media

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
)

var ErrUnsupportedType = errors.New("media: unsupported image type")

// Upload 待上传的文件
type Upload struct {
	Filename string
	Body     io.Reader
}

type Stored struct {
	URL    string
	Handle string
}

type Store interface {
	Store(ctx context.Context, u Upload) (Stored, error)
	// Delete 尽力删除，调用方不应因失败中断主流程
	Delete(ctx context.Context, handle string) error
}

var allowedExt = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".webp": {},
}

func imageExt(name string) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := allowedExt[ext]; !ok {
		return "", ErrUnsupportedType
	}
	return ext, nil
}
