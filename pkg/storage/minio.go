// Package storage 保存剧本内容快照。后台任务只携带快照的对象键，处理时按键读取内容。
package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"scribe-eye-go/internal/config"
	apperrors "scribe-eye-go/pkg/errors"
	"scribe-eye-go/pkg/log"
)

// SnapshotStore 按 (scriptID, version) 保存和读取内容快照。
type SnapshotStore interface {
	Put(ctx context.Context, scriptID string, version uint, content string) (string, error)
	Get(ctx context.Context, objectKey string) (string, error)
	DeleteScript(ctx context.Context, scriptID string) error
}

// SnapshotKey 返回快照的对象键。
func SnapshotKey(scriptID string, version uint) string {
	return fmt.Sprintf("scripts/%s/%d.txt", scriptID, version)
}

func scriptPrefix(scriptID string) string {
	return "scripts/" + scriptID + "/"
}

// MinioStore 是基于 MinIO 的 SnapshotStore。
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore 初始化 MinIO 客户端并确保指定的存储桶存在。
func NewMinioStore(ctx context.Context, cfg config.MinIOConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 MinIO 客户端失败: %w", err)
	}
	log.Info("MinIO 客户端初始化成功")

	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("检查 MinIO 存储桶失败: %w", err)
	}
	if !exists {
		log.Infof("存储桶 '%s' 不存在，正在创建...", cfg.BucketName)
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("创建 MinIO 存储桶失败: %w", err)
		}
		log.Infof("存储桶 '%s' 创建成功", cfg.BucketName)
	}
	return &MinioStore{client: client, bucket: cfg.BucketName}, nil
}

func (s *MinioStore) Put(ctx context.Context, scriptID string, version uint, content string) (string, error) {
	key := SnapshotKey(scriptID, version)
	_, err := s.client.PutObject(ctx, s.bucket, key, strings.NewReader(content), int64(len(content)),
		minio.PutObjectOptions{ContentType: "text/plain; charset=utf-8"})
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrSnapshot, err, "put snapshot "+key)
	}
	return key, nil
}

func (s *MinioStore) Get(ctx context.Context, objectKey string) (string, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrSnapshot, err, "get snapshot "+objectKey)
	}
	defer obj.Close()

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(obj); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return "", apperrors.Wrap(apperrors.ErrNotFound, err, "snapshot "+objectKey+" does not exist")
		}
		return "", apperrors.Wrap(apperrors.ErrSnapshot, err, "read snapshot "+objectKey)
	}
	return buf.String(), nil
}

// DeleteScript 删除剧本的所有版本快照。
func (s *MinioStore) DeleteScript(ctx context.Context, scriptID string) error {
	objects := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    scriptPrefix(scriptID),
		Recursive: true,
	})
	for err := range s.client.RemoveObjects(ctx, s.bucket, objects, minio.RemoveObjectsOptions{}) {
		if err.Err != nil {
			return apperrors.Wrap(apperrors.ErrSnapshot, err.Err, "remove snapshot "+err.ObjectName)
		}
	}
	return nil
}
