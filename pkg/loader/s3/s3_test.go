package s3

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/OFFIS-RIT/graphrag/pkg/common"
	"github.com/OFFIS-RIT/graphrag/pkg/loader"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	gets    int
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{objects: map[string][]byte{}}
}

func (f *fakeBucket) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(string(data)))}, nil
}

func (f *fakeBucket) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeBucket) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := aws.ToString(in.Prefix)
	delim := aws.ToString(in.Delimiter)

	out := &s3.ListObjectsV2Output{}
	seen := map[string]bool{}
	keys := make([]string, 0, len(f.objects))
	for k := range f.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if delim != "" {
			rest := strings.TrimPrefix(k, prefix)
			if i := strings.Index(rest, delim); i >= 0 {
				cp := prefix + rest[:i+1]
				if !seen[cp] {
					seen[cp] = true
					out.CommonPrefixes = append(out.CommonPrefixes, types.CommonPrefix{Prefix: aws.String(cp)})
				}
				continue
			}
		}
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func TestS3SeriesSourceRoundTrip(t *testing.T) {
	ctx := context.Background()
	bucket := newFakeBucket()
	src := NewS3SeriesSource("graphrag", "/data/", bucket)

	keys, err := src.SaveSeries(ctx, "s1", []string{"one", "two", "three"})
	require.NoError(t, err)
	assert.Equal(t, "data/chunks_s1/chunk_000001.txt", keys[0])

	_, err = src.SaveSeries(ctx, "s2", []string{"x"})
	require.NoError(t, err)

	texts, err := src.LoadSeries(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three"}, texts)

	ids, err := src.ListSeries(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2"}, ids)
}

func TestS3SeriesSourceMissing(t *testing.T) {
	src := NewS3SeriesSource("graphrag", "", newFakeBucket())
	_, err := src.LoadSeries(context.Background(), "missing")
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestS3GraphFileLoader(t *testing.T) {
	bucket := newFakeBucket()
	bucket.objects["extracted/doc.txt"] = []byte("Le projet Al Abrar est situé à Mediouna.")
	l := NewS3GraphFileLoader("graphrag", bucket)

	file := loader.GraphFile{ID: "doc", FilePath: "extracted/doc.txt", Loader: l}
	for range 3 {
		text, err := file.GetText(context.Background())
		require.NoError(t, err)
		assert.Contains(t, string(text), "Al Abrar")
	}
	assert.Equal(t, 1, bucket.gets)

	_, err := l.GetFileText(context.Background(), loader.GraphFile{FilePath: "nope.txt"})
	assert.True(t, errors.Is(err, common.ErrNotFound))
}
