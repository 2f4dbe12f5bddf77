// Package archive складывает снапшоты завершённых задач в S3-совместимое
// объектное хранилище перед их вытеснением из леджера.
package archive

import (
	"bytes"
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/ilkoid/toolchain/pkg/config"
	"github.com/ilkoid/toolchain/pkg/ledger"
	"github.com/ilkoid/toolchain/pkg/utils"
)

// Sink пишет JSON-снапшоты задач в bucket под ключом <prefix><reference>.json.
//
// # Thread Safety
//
// minio.Client потокобезопасен, Sink не держит мутабельного состояния.
type Sink struct {
	api    *minio.Client
	bucket string
	prefix string
}

// New создает sink, используя наш конфиг.
func New(cfg config.ArchiveConfig) (*Sink, error) {
	cfg = cfg.GetDefaults()

	minioClient, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create archive client: %w", err)
	}

	return &Sink{
		api:    minioClient,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// Store загружает снапшот задачи в хранилище.
//
// Правило 11: context пробрасывается до сетевого вызова, загрузку можно
// отменить вместе с janitor'ом.
func (s *Sink) Store(ctx context.Context, reference string, data []byte) error {
	key := s.prefix + reference + ".json"

	_, err := s.api.PutObject(ctx, s.bucket, key,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("failed to archive task '%s': %w", reference, err)
	}

	utils.Debug("Task archived", "reference", reference, "key", key, "size", len(data))
	return nil
}

// Ensure Sink implements ledger.ArchiveSink
var _ ledger.ArchiveSink = (*Sink)(nil)
