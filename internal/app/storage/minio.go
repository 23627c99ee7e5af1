package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"
)

type MinIOClient struct {
	client     *minio.Client
	bucketName string
}

// NewMinIOClient создает клиент для MinIO
func NewMinIOClient(ctx context.Context, endpoint, accessKey, secretKey, bucketName string, useSSL bool) (*MinIOClient, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	// Создаем bucket если не существует
	exists, err := client.BucketExists(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}

	if !exists {
		err = client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
		logrus.Infof("Bucket %s created successfully", bucketName)
	}

	return &MinIOClient{
		client:     client,
		bucketName: bucketName,
	}, nil
}

// ContentTypeFor определяет content type по расширению файла
func ContentTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "application/pdf"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

// ObjectKey ключ объекта: <подписка>/<тип>_<uuid><ext>
func ObjectKey(subscriptionID, docType, originalFilename string) string {
	ext := strings.ToLower(filepath.Ext(originalFilename))
	return path.Join(subscriptionID, fmt.Sprintf("%s_%s%s", docType, uuid.New().String()[:8], ext))
}

// UploadFile загружает документ в MinIO под указанным ключом
func (m *MinIOClient) UploadFile(ctx context.Context, key string, fileData []byte, contentType string) error {
	reader := bytes.NewReader(fileData)
	_, err := m.client.PutObject(ctx, m.bucketName, key, reader, int64(len(fileData)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload file: %w", err)
	}

	logrus.Infof("File %s uploaded successfully", key)
	return nil
}

// DeleteFile удаляет файл из MinIO
func (m *MinIOClient) DeleteFile(ctx context.Context, key string) error {
	err := m.client.RemoveObject(ctx, m.bucketName, key, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	logrus.Infof("File %s deleted successfully", key)
	return nil
}

// GetFileURL возвращает временный URL для скачивания (1 час)
func (m *MinIOClient) GetFileURL(ctx context.Context, key string) (string, error) {
	url, err := m.client.PresignedGetObject(ctx, m.bucketName, key, time.Hour, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return url.String(), nil
}

// DownloadFile скачивает файл из MinIO
func (m *MinIOClient) DownloadFile(ctx context.Context, key string) ([]byte, error) {
	object, err := m.client.GetObject(ctx, m.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		return nil, fmt.Errorf("failed to read object: %w", err)
	}

	return data, nil
}

// Ping проверяет доступность bucket
func (m *MinIOClient) Ping(ctx context.Context) error {
	_, err := m.client.BucketExists(ctx, m.bucketName)
	return err
}
