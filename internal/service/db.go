package service

import (
	"MediaVault/config"
	"MediaVault/internal/repo"
	"context"

	"gorm.io/gorm"
)

// dbFor returns tx bound to ctx, or the shared connection when tx is nil.
func dbFor(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx.WithContext(ctx)
	}
	return repo.Db.WithContext(ctx)
}

func mediaPolicy() config.MediaPolicy {
	p := config.AppConfig.Media
	d := config.DefaultMediaPolicy()
	if p.ImageMaxBytes == 0 {
		p.ImageMaxBytes = d.ImageMaxBytes
	}
	if p.VideoMaxBytes == 0 {
		p.VideoMaxBytes = d.VideoMaxBytes
	}
	if len(p.ImageMIMETypes) == 0 {
		p.ImageMIMETypes = d.ImageMIMETypes
	}
	if len(p.VideoMIMETypes) == 0 {
		p.VideoMIMETypes = d.VideoMIMETypes
	}
	if p.UploadConcurrency <= 0 {
		p.UploadConcurrency = d.UploadConcurrency
	}
	if p.DefaultQuotaBytes == 0 {
		p.DefaultQuotaBytes = d.DefaultQuotaBytes
	}
	return p
}
