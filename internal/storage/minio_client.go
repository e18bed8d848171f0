// Package storage реализует доступ к объектному хранилищу архивов сохранений.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Тип содержимого загружаемых архивов.
const zipContentType = "application/zip"

// BlobStorage определяет интерфейс для взаимодействия с объектным хранилищем.
type BlobStorage interface {
	// Upload загружает архив по ключу objectKey. Ключи версий генерируются
	// заново для каждой загрузки, поэтому занятый ключ — ошибка (ErrObjectExists),
	// а не повод для перезаписи.
	Upload(ctx context.Context, objectKey string, reader io.Reader, size int64) error
	// Download скачивает архив по ключу. Возвращает io.ReadCloser,
	// который нужно закрыть после использования.
	Download(ctx context.Context, objectKey string) (io.ReadCloser, error)
}

// MinioClient реализует BlobStorage для MinIO/S3-совместимого хранилища.
type MinioClient struct {
	client     *minio.Client
	bucketName string
}

// MinioConfig содержит параметры подключения к объектному хранилищу.
type MinioConfig struct {
	Endpoint        string // Адрес хранилища (например, "localhost:9000")
	AccessKeyID     string // Логин
	SecretAccessKey string // Пароль
	UseSSL          bool   // Использовать SSL
	BucketName      string // Имя бакета с архивами сохранений
	Region          string // Регион (для MinIO обычно не требуется)
}

// NewMinioClient создает новый клиент объектного хранилища.
// Проверяет существование бакета и создает его при необходимости.
func NewMinioClient(cfg MinioConfig) (*MinioClient, error) {
	log.Printf("[Storage] Инициализация клиента хранилища для эндпоинта %s...", cfg.Endpoint)

	minioClient, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации клиента хранилища: %w", err)
	}

	ctx := context.Background()
	exists, err := minioClient.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("ошибка проверки существования бакета '%s': %w", cfg.BucketName, err)
	}
	if !exists {
		log.Printf("[Storage] Бакет '%s' не найден, попытка создания...", cfg.BucketName)
		err = minioClient.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{Region: cfg.Region})
		if err != nil {
			return nil, fmt.Errorf("ошибка создания бакета '%s': %w", cfg.BucketName, err)
		}
		log.Printf("[Storage] Бакет '%s' успешно создан.", cfg.BucketName)
	}

	log.Printf("[Storage] Клиент хранилища инициализирован для бакета '%s'.", cfg.BucketName)
	return &MinioClient{
		client:     minioClient,
		bucketName: cfg.BucketName,
	}, nil
}

// Upload загружает архив сохранения в хранилище без перезаписи.
// Условие If-None-Match: * заставляет хранилище атомарно отклонить
// запись по занятому ключу, без предварительной проверки.
func (c *MinioClient) Upload(ctx context.Context, objectKey string, reader io.Reader, size int64) error {
	log.Printf("[Storage] Загрузка объекта '%s' в бакет '%s'...", objectKey, c.bucketName)

	opts := minio.PutObjectOptions{ContentType: zipContentType}
	opts.SetMatchETagExcept("*")

	uploadInfo, err := c.client.PutObject(ctx, c.bucketName, objectKey, reader, size, opts)
	if err != nil {
		// Ключ формируется из свежесгенерированного идентификатора версии,
		// поэтому занятый ключ означает коллизию, а не повторную загрузку.
		var minioErr minio.ErrorResponse
		if errors.As(err, &minioErr) && minioErr.Code == "PreconditionFailed" {
			log.Printf("[Storage] Объект '%s' уже существует, загрузка отклонена", objectKey)
			return fmt.Errorf("объект '%s' уже существует: %w", objectKey, ErrObjectExists)
		}
		log.Printf("[Storage] Ошибка загрузки объекта '%s': %v", objectKey, err)
		return fmt.Errorf("ошибка загрузки объекта в хранилище: %w", err)
	}

	log.Printf("[Storage] Объект '%s' загружен, размер: %d, ETag: %s",
		objectKey, uploadInfo.Size, uploadInfo.ETag)
	return nil
}

// Download скачивает архив сохранения из хранилища.
func (c *MinioClient) Download(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	log.Printf("[Storage] Скачивание объекта '%s' из бакета '%s'...", objectKey, c.bucketName)

	object, err := c.client.GetObject(ctx, c.bucketName, objectKey, minio.GetObjectOptions{})
	if err != nil {
		var minioErr minio.ErrorResponse
		if errors.As(err, &minioErr) && minioErr.Code == "NoSuchKey" {
			log.Printf("[Storage] Объект '%s' не найден в бакете '%s'", objectKey, c.bucketName)
			return nil, ErrObjectNotFound
		}
		log.Printf("[Storage] Ошибка получения объекта '%s': %v", objectKey, err)
		return nil, fmt.Errorf("ошибка получения объекта из хранилища: %w", err)
	}

	// GetObject ленив: убеждаемся, что объект действительно существует,
	// иначе ошибка всплывет только при первом чтении.
	if _, err = object.Stat(); err != nil {
		_ = object.Close()
		var minioErr minio.ErrorResponse
		if errors.As(err, &minioErr) && minioErr.Code == "NoSuchKey" {
			log.Printf("[Storage] Объект '%s' не найден в бакете '%s'", objectKey, c.bucketName)
			return nil, ErrObjectNotFound
		}
		log.Printf("[Storage] Ошибка получения метаданных объекта '%s': %v", objectKey, err)
		return nil, fmt.Errorf("ошибка получения метаданных объекта: %w", err)
	}

	log.Printf("[Storage] Объект '%s' успешно получен для скачивания", objectKey)
	return object, nil
}

// Кастомные ошибки хранилища.
var (
	ErrObjectNotFound = errors.New("объект не найден в хранилище")
	ErrObjectExists   = errors.New("объект уже существует в хранилище")
)
