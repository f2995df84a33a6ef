package blob

import (
	"context"
	"fmt"

	"trackrecon/internal/blob/core"
)

// Options selects and configures a backend.
type Options struct {
	Driver string
	// Root is the filesystem driver's directory.
	Root string
	// MetaRoot holds the filesystem driver's sidecars; empty means <Root>/.meta.
	MetaRoot string
	S3   S3Config
}

// Open constructs the Store named by opts.Driver (default fs).
func Open(ctx context.Context, opts Options) (Store, error) {
	driver, err := core.ParseDriver(opts.Driver)
	if err != nil {
		return nil, err
	}
	switch driver {
	case DriverS3:
		return NewS3(ctx, opts.S3)
	case DriverMemory:
		return NewMemory(), nil
	default:
		if opts.Root == "" {
			return nil, fmt.Errorf("fs blob driver requires a root directory")
		}
		return NewFilesystem(opts.Root, opts.MetaRoot)
	}
}
