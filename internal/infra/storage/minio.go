package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	domain "github.com/bryanwahyu/knit-tagger/internal/domain/tagging"
)

type Store struct {
	client     *minio.Client
	bucketName string
	region     string
	prefix     string
}

// Options for connecting to MinIO / S3.
type Options struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Prefix    string
}

// New buat koneksi MinIO
func New(ctx context.Context, opts Options) (*Store, error) {
	cli, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, err
	}

	// pastikan bucket ada
	exists, err := cli.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := cli.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{Region: opts.Region}); err != nil {
			return nil, err
		}
	}

	return &Store{client: cli, bucketName: opts.Bucket, region: opts.Region, prefix: strings.Trim(opts.Prefix, "/")}, nil
}

func (s *Store) Name() string { return "minio" }

// Replicate writes one JSON object per record
func (s *Store) Replicate(ctx context.Context, key string, rec domain.Record) error {
	body, err := json.Marshal(domain.KeyedRecord{Key: key, Record: rec})
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, s.bucketName, RecordObjectKey(s.prefix, key), bytes.NewReader(body), int64(len(body)),
		minio.PutObjectOptions{ContentType: "application/json"})
	return err
}

// Upload copies a local file (the whole result store, typically) under the prefix and returns its URL
func (s *Store) Upload(ctx context.Context, localPath string) (string, error) {
	key := joinKey(s.prefix, filepath.Base(localPath))

	// mimeType sederhana
	contentType := "application/octet-stream"
	switch filepath.Ext(localPath) {
	case ".json":
		contentType = "application/json"
	case ".xlsx":
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".csv":
		contentType = "text/csv"
	}

	_, err := s.client.FPutObject(ctx, s.bucketName, key, localPath, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}

	// URL publik (jika bucket public), kalau private harus generate presigned URL
	url := fmt.Sprintf("%s/%s/%s", s.client.EndpointURL().String(), s.bucketName, key)
	return url, nil
}

// RecordObjectKey is where Replicate puts the record for an item key. The key's
// directories are kept so equal base names in different folders do not collide.
func RecordObjectKey(prefix, key string) string {
	clean := filepath.ToSlash(filepath.Clean(key))
	clean = strings.TrimPrefix(clean, filepath.VolumeName(key))
	var segs []string
	for _, seg := range strings.Split(clean, "/") {
		if seg == "" || seg == "." || seg == ".." {
			continue
		}
		segs = append(segs, seg)
	}
	name := strings.Join(segs, "/")
	name = strings.TrimSuffix(name, path.Ext(name)) + ".json"
	return joinKey(prefix, "records", name)
}

func joinKey(parts ...string) string {
	var kept []string
	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "/")
}
