package source

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franz/sparkify-etl/internal/util"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLocalFindRecursesAndFiltersByPattern(t *testing.T) {
	tmpDir := t.TempDir()

	wanted := []string{
		filepath.Join(tmpDir, "A", "A", "A", "TRAAAAW128F429D538.json"),
		filepath.Join(tmpDir, "A", "B", "TRABBAM128F429D223.json"),
		filepath.Join(tmpDir, "top.json"),
	}
	for _, p := range wanted {
		writeFile(t, p, "{}")
	}
	writeFile(t, filepath.Join(tmpDir, "A", "README.txt"), "ignored")
	writeFile(t, filepath.Join(tmpDir, "A", "notes.json.bak"), "ignored")
	require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, "dir.json"), 0755))

	local := &Local{Pattern: DefaultPattern}
	files, err := local.Find(context.Background(), tmpDir)
	require.NoError(t, err)

	for _, f := range files {
		assert.True(t, filepath.IsAbs(f), "%s should be absolute", f)
	}
	sort.Strings(files)
	sort.Strings(wanted)
	assert.Equal(t, wanted, files)
}

func TestLocalFindReturnsAbsolutePathsForRelativeRoot(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, "log_data", "2018", "11", "2018-11-01-events.json"), "")

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(tmpDir))
	t.Cleanup(func() { os.Chdir(wd) })

	files, err := (&Local{}).Find(context.Background(), "log_data")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.True(t, filepath.IsAbs(files[0]))
	assert.True(t, strings.HasSuffix(files[0], filepath.Join("log_data", "2018", "11", "2018-11-01-events.json")))
}

func TestLocalFindEmptyAndMissingRoots(t *testing.T) {
	files, err := (&Local{}).Find(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.NotNil(t, files)
	assert.Empty(t, files)

	_, err = (&Local{}).Find(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestLocalFindHonorsCancellation(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, "a.json"), "{}")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := (&Local{}).Find(ctx, tmpDir)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewValidatesPattern(t *testing.T) {
	_, err := New(Options{Pattern: "[json"})
	assert.ErrorIs(t, err, util.ErrInvalidConfig)

	_, err = New(Options{Pattern: "*/x.json"})
	assert.ErrorIs(t, err, util.ErrInvalidConfig)

	m, err := New(Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultPattern, m.local.Pattern)
}

func TestMuxOpensLocalFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "song.json")
	writeFile(t, path, `{"song_id":"S1"}`)

	m, err := New(Options{})
	require.NoError(t, err)

	rc, err := m.Open(context.Background(), path)
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, `{"song_id":"S1"}`, string(data))
}

func TestParseS3URI(t *testing.T) {
	bucket, key, err := ParseS3URI("s3://udacity-dend/song_data/A")
	require.NoError(t, err)
	assert.Equal(t, "udacity-dend", bucket)
	assert.Equal(t, "song_data/A", key)

	bucket, key, err = ParseS3URI("s3://bucket")
	require.NoError(t, err)
	assert.Equal(t, "bucket", bucket)
	assert.Empty(t, key)

	_, _, err = ParseS3URI("s3:///prefix")
	assert.ErrorIs(t, err, util.ErrInvalidConfig)

	_, _, err = ParseS3URI("/data/song_data")
	assert.ErrorIs(t, err, util.ErrUnsupported)
}

// fakeS3 serves a fixed key set in pages of two
type fakeS3 struct {
	keys    []string
	objects map[string]string
	lists   []s3.ListObjectsV2Input
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.lists = append(f.lists, *in)

	var matching []string
	for _, k := range f.keys {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			matching = append(matching, k)
		}
	}

	start := 0
	if in.ContinuationToken != nil {
		for i, k := range matching {
			if k == *in.ContinuationToken {
				start = i
			}
		}
	}
	end := min(start+2, len(matching))

	out := &s3.ListObjectsV2Output{}
	for _, k := range matching[start:end] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	if end < len(matching) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(matching[end])
	}
	return out, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestS3FindPagesAndFilters(t *testing.T) {
	fake := &fakeS3{keys: []string{
		"log_data/",
		"log_data/2018/11/2018-11-01-events.json",
		"log_data/2018/11/2018-11-02-events.json",
		"log_data/2018/11/manifest.csv",
		"log_data/2018/11/2018-11-03-events.json",
		"song_data/A/A/A/TRAAAAW128F429D538.json",
	}}

	src := NewS3WithClient(fake, "")
	files, err := src.Find(context.Background(), "s3://udacity-dend/log_data")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"s3://udacity-dend/log_data/2018/11/2018-11-01-events.json",
		"s3://udacity-dend/log_data/2018/11/2018-11-02-events.json",
		"s3://udacity-dend/log_data/2018/11/2018-11-03-events.json",
	}, files)
	assert.Greater(t, len(fake.lists), 1, "listing should span several pages")
	assert.Equal(t, "udacity-dend", aws.ToString(fake.lists[0].Bucket))
}

func TestS3Open(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{"song_data/a.json": `{"song_id":"S1"}`}}
	src := NewS3WithClient(fake, "")

	rc, err := src.Open(context.Background(), "s3://bucket/song_data/a.json")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	rc.Close()
	assert.Equal(t, `{"song_id":"S1"}`, string(data))

	_, err = src.Open(context.Background(), "s3://bucket/missing.json")
	assert.Error(t, err)
}
