package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/OFFIS-RIT/graphrag/pkg/common"
	"github.com/OFFIS-RIT/graphrag/pkg/loader"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"golang.org/x/sync/singleflight"
)

// ObjectAPI is the subset of *s3.Client used by the loaders.
type ObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3GraphFileLoader is a GraphFileLoader implementation that loads file
// contents from an S3 bucket (or an S3 compatible store such as MinIO).
type S3GraphFileLoader struct {
	bucket string
	client ObjectAPI

	cache   map[string][]byte
	cacheMu sync.RWMutex
	group   singleflight.Group
}

// NewS3GraphFileLoader creates a loader reading from bucket through client.
func NewS3GraphFileLoader(bucket string, client ObjectAPI) *S3GraphFileLoader {
	return &S3GraphFileLoader{
		bucket: bucket,
		client: client,
		cache:  make(map[string][]byte),
	}
}

// GetFileText retrieves the object at file.FilePath. Results are cached.
func (l *S3GraphFileLoader) GetFileText(ctx context.Context, file loader.GraphFile) ([]byte, error) {
	cacheKey := loader.CacheKey(file)

	l.cacheMu.RLock()
	if cached, ok := l.cache[cacheKey]; ok {
		l.cacheMu.RUnlock()
		return cached, nil
	}
	l.cacheMu.RUnlock()

	result, err, _ := l.group.Do(cacheKey, func() (any, error) {
		data, err := getObject(ctx, l.client, l.bucket, file.FilePath)
		if err != nil {
			return nil, err
		}

		l.cacheMu.Lock()
		l.cache[cacheKey] = data
		l.cacheMu.Unlock()

		return data, nil
	})
	if err != nil {
		return nil, err
	}

	return result.([]byte), nil
}

func getObject(ctx context.Context, client ObjectAPI, bucket, key string) ([]byte, error) {
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, common.NewNotFoundError("s3.GetObject", "object %s does not exist", key)
		}
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	defer out.Body.Close()

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, out.Body); err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", key, err)
	}
	return buf.Bytes(), nil
}

// S3SeriesSource stores series as chunks_<series>/chunk_NNNNNN.txt objects.
type S3SeriesSource struct {
	bucket string
	prefix string
	client ObjectAPI
}

// NewS3SeriesSource creates a series source below prefix in bucket.
func NewS3SeriesSource(bucket, prefix string, client ObjectAPI) *S3SeriesSource {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &S3SeriesSource{bucket: bucket, prefix: prefix, client: client}
}

func (s *S3SeriesSource) seriesPrefix(seriesID string) string {
	return s.prefix + loader.SeriesDir(seriesID) + "/"
}

// LoadSeries reads every .txt object of the series in key order.
func (s *S3SeriesSource) LoadSeries(ctx context.Context, seriesID string) ([]string, error) {
	if !loader.ValidSeriesID(seriesID) {
		return nil, common.NewConfigurationError("series.Load", "invalid series id %q", seriesID)
	}
	prefix := s.seriesPrefix(seriesID)

	var keys []string
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list series %s: %w", seriesID, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, ".txt") {
				keys = append(keys, key)
			}
		}
	}
	if len(keys) == 0 {
		return nil, common.NewNotFoundError("series.Load", "no chunks found under %s", prefix)
	}
	sort.Strings(keys)

	texts := make([]string, 0, len(keys))
	for _, key := range keys {
		data, err := getObject(ctx, s.client, s.bucket, key)
		if err != nil {
			return nil, err
		}
		texts = append(texts, string(data))
	}
	return texts, nil
}

// SaveSeries uploads one object per chunk and returns the object keys.
func (s *S3SeriesSource) SaveSeries(ctx context.Context, seriesID string, chunks []string) ([]string, error) {
	if !loader.ValidSeriesID(seriesID) {
		return nil, common.NewConfigurationError("series.Save", "invalid series id %q", seriesID)
	}
	keys := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		key := s.prefix + loader.ChunkPath(seriesID, i+1)
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(key),
			Body:        strings.NewReader(chunk),
			ContentType: aws.String("text/plain; charset=utf-8"),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to upload chunk %s: %w", key, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// ListSeries returns the ids of all series below the prefix.
func (s *S3SeriesSource) ListSeries(ctx context.Context) ([]string, error) {
	var ids []string
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(s.prefix + "chunks_"),
		Delimiter: aws.String("/"),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list series: %w", err)
		}
		for _, cp := range page.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), s.prefix), "/")
			if id, ok := strings.CutPrefix(name, "chunks_"); ok && id != "" {
				ids = append(ids, id)
			}
		}
	}
	sort.Strings(ids)
	return ids, nil
}
