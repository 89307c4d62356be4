package blob

import (
	"context"
	"fmt"

	"github.com/benbjohnson/clock"

	"charsheet/internal/config"
	"charsheet/internal/infra/blob/fs"
	"charsheet/internal/infra/blob/memory"
	"charsheet/internal/infra/blob/s3"
)

// Open selects a Store implementation from cfg. S3 credentials come from the
// default AWS chain (environment, shared config, instance role).
func Open(ctx context.Context, cfg config.BlobConfig) (Store, error) {
	switch Driver(cfg.Driver) {
	case "", DriverFilesystem:
		return fs.New(cfg.FSRoot)
	case DriverS3:
		return s3.New(ctx, s3.Config{
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
		})
	case DriverMemory:
		return memory.New(clock.New()), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", cfg.Driver)
	}
}
