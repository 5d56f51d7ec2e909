package storage

import (
	"context"
	"fmt"
	"strings"

	"soulmedia/internal/config"
)

const (
	// TypeLocal stores files on the local filesystem.
	TypeLocal = "local"
	// TypeS3 targets Amazon S3 or a compatible backend.
	TypeS3 = "s3"
	// TypeOSS targets Aliyun OSS.
	TypeOSS = "oss"
	// TypeCOS targets Tencent COS.
	TypeCOS = "cos"
	// TypeR2 targets Cloudflare R2.
	TypeR2 = "r2"
)

// SaveOptions controls how a backend persists a payload.
//
// Key, when set, is the exact object key to store under; Category and
// BaseName are ignored in that case. Without a Key the backend builds a
// dated path from Category/BaseName/Extension.
type SaveOptions struct {
	Key          string
	Category     string
	Extension    string
	BaseName     string
	SkipIfExists bool
}

// Storage persists binary data and returns the backend-specific object
// key (for local storage, a relative path).
type Storage interface {
	Save(ctx context.Context, data []byte, opts SaveOptions) (string, error)
}

// LocalBaseDirProvider is implemented by backends exposing a local
// directory that can be served over HTTP directly.
type LocalBaseDirProvider interface {
	LocalBaseDir() string
}

// NewStorage instantiates the storage backend from configuration.
func NewStorage(cfg config.Config) (Storage, error) {
	typeName := strings.ToLower(strings.TrimSpace(cfg.StorageType))
	switch typeName {
	case "", TypeLocal:
		return NewLocalStorage(cfg.StorageLocalDir)
	case TypeS3:
		return NewS3Storage(cfg)
	case TypeOSS:
		return NewOSSStorage(cfg)
	case TypeCOS:
		return NewCOSStorage(cfg)
	case TypeR2:
		return NewR2Storage(cfg)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.StorageType)
	}
}
