package cron

import (
	"context"

	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// itemRecorder counts rows a job touched in one run.
type itemRecorder interface {
	AddProcessed(job string, count int)
}
