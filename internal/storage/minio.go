package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"pixelCV/internal/config"
)

// Client 封装 MinIO：内部 endpoint 负责读写，公网 endpoint 只用于签发下载链接。
type Client struct {
	internalClient *minio.Client
	publicClient   *minio.Client
	bucketName     string
}

func bucketLookup(mode string) (minio.BucketLookupType, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "auto":
		return minio.BucketLookupAuto, nil
	case "dns":
		return minio.BucketLookupDNS, nil
	case "path":
		return minio.BucketLookupPath, nil
	}
	return minio.BucketLookupAuto, fmt.Errorf("invalid minio bucket lookup %q", mode)
}

// NewClient 根据配置初始化 MinIO 客户端，并确保目标 Bucket 存在。
func NewClient(cfg config.MinIOConfig) (*Client, error) {
	lookup, err := bucketLookup(cfg.BucketLookup)
	if err != nil {
		return nil, err
	}
	creds := credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, "")

	internalClient, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:        creds,
		Secure:       cfg.UseSSL,
		Region:       cfg.Region,
		BucketLookup: lookup,
	})
	if err != nil {
		return nil, fmt.Errorf("init internal minio client: %w", err)
	}

	public, err := url.Parse(cfg.PublicEndpoint)
	if err != nil {
		return nil, fmt.Errorf("parse minio public endpoint: %w", err)
	}
	if public.Host == "" {
		return nil, fmt.Errorf("invalid minio public endpoint %q, host missing", cfg.PublicEndpoint)
	}
	publicClient, err := minio.New(public.Host, &minio.Options{
		Creds:        creds,
		Secure:       public.Scheme == "https",
		Region:       cfg.Region,
		BucketLookup: lookup,
	})
	if err != nil {
		return nil, fmt.Errorf("init public minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exists, err := internalClient.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %q: %w", cfg.Bucket, err)
	}
	if !exists {
		if !cfg.AutoCreateBucket {
			return nil, fmt.Errorf("bucket %q does not exist (auto create disabled)", cfg.Bucket)
		}
		if err := internalClient.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("make bucket %q: %w", cfg.Bucket, err)
		}
	}

	return &Client{
		internalClient: internalClient,
		publicClient:   publicClient,
		bucketName:     cfg.Bucket,
	}, nil
}

// UploadFile 将对象上传到私有 Bucket。
func (c *Client) UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (*minio.UploadInfo, error) {
	info, err := c.internalClient.PutObject(ctx, c.bucketName, objectName, reader, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return nil, fmt.Errorf("put object %q: %w", objectName, err)
	}
	return &info, nil
}

// UploadBytes is UploadFile for in-memory payloads such as rendered PDFs.
func (c *Client) UploadBytes(ctx context.Context, objectName string, data []byte, contentType string) error {
	_, err := c.UploadFile(ctx, objectName, bytes.NewReader(data), int64(len(data)), contentType)
	return err
}

// GeneratePresignedURL 生成对象的限时下载链接。
func (c *Client) GeneratePresignedURL(ctx context.Context, objectKey string, duration time.Duration) (string, error) {
	u, err := c.publicClient.PresignedGetObject(ctx, c.bucketName, objectKey, duration, nil)
	if err != nil {
		return "", fmt.Errorf("generate presigned url for %q: %w", objectKey, err)
	}
	return u.String(), nil
}

// GenerateDownloadURL 生成带 Content-Disposition 的下载链接，浏览器会按 filename 保存。
func (c *Client) GenerateDownloadURL(ctx context.Context, objectKey, filename string, duration time.Duration) (string, error) {
	params := url.Values{}
	params.Set("response-content-disposition", ContentDisposition(filename))
	u, err := c.publicClient.PresignedGetObject(ctx, c.bucketName, objectKey, duration, params)
	if err != nil {
		return "", fmt.Errorf("generate download url for %q: %w", objectKey, err)
	}
	return u.String(), nil
}

// DeleteObject 删除指定对象；对象不存在视为成功。
func (c *Client) DeleteObject(ctx context.Context, objectKey string) error {
	objectKey = strings.TrimSpace(objectKey)
	if objectKey == "" {
		return nil
	}
	if err := c.internalClient.RemoveObject(ctx, c.bucketName, objectKey, minio.RemoveObjectOptions{}); err != nil {
		if IsNoSuchKey(err) {
			return nil
		}
		return fmt.Errorf("remove object %q: %w", objectKey, err)
	}
	return nil
}

// DeletePrefix 删除前缀下的全部对象，例如某次批量生成的所有产物。
func (c *Client) DeletePrefix(ctx context.Context, prefix string) error {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return nil
	}

	objCh := c.internalClient.ListObjects(ctx, c.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})

	failed := 0
	var firstErr error
	for object := range objCh {
		if object.Err != nil {
			return fmt.Errorf("list objects under %q: %w", prefix, object.Err)
		}
		if err := c.DeleteObject(ctx, object.Key); err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	switch failed {
	case 0:
		return nil
	case 1:
		return firstErr
	}
	slog.Default().Error("delete minio objects under prefix failed",
		slog.String("prefix", prefix),
		slog.Int("failed_count", failed),
	)
	return fmt.Errorf("delete objects under %q: %d errors: %w", prefix, failed, firstErr)
}
