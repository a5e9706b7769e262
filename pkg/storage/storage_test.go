package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/synthdesk/internal/config"
)

// fakeS3 is an in-memory object store behind S3API.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(v))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	raw, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = raw
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func backends(t *testing.T) map[string]Store {
	t.Helper()

	file, err := NewFile(filepath.Join(t.TempDir(), "state", "synthdesk.json"))
	require.NoError(t, err)

	db, err := OpenSQLite(filepath.Join(t.TempDir(), "synthdesk.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return map[string]Store{
		"memory": NewMemory(),
		"file":   file,
		"sqlite": db,
		"s3":     NewS3(newFakeS3(), "bucket", "synthdesk/"),
	}
}

func TestStoreConformance(t *testing.T) {
	ctx := context.Background()

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(ctx, "missing")
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Set(ctx, KeyAuthToken, []byte("tok-1")))
			v, err := s.Get(ctx, KeyAuthToken)
			require.NoError(t, err)
			assert.Equal(t, "tok-1", string(v))

			require.NoError(t, s.Set(ctx, KeyAuthToken, []byte("tok-2")))
			v, err = s.Get(ctx, KeyAuthToken)
			require.NoError(t, err)
			assert.Equal(t, "tok-2", string(v))

			require.NoError(t, s.Delete(ctx, KeyAuthToken))
			_, err = s.Get(ctx, KeyAuthToken)
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Delete(ctx, KeyAuthToken), "deleting a missing key")
		})
	}
}

func TestTokens(t *testing.T) {
	ctx := context.Background()

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			tokens, err := LoadTokens(ctx, s)
			require.NoError(t, err)
			assert.Equal(t, Tokens{}, tokens)

			require.NoError(t, SaveTokens(ctx, s, Tokens{Access: "a1", Refresh: "r1"}))
			require.NoError(t, SaveTokens(ctx, s, Tokens{Access: "a2"}))

			tokens, err = LoadTokens(ctx, s)
			require.NoError(t, err)
			assert.Equal(t, Tokens{Access: "a2", Refresh: "r1"}, tokens)

			require.NoError(t, ClearTokens(ctx, s))
			tokens, err = LoadTokens(ctx, s)
			require.NoError(t, err)
			assert.Equal(t, Tokens{}, tokens)
		})
	}
}

func TestUsageSnapshot(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	_, _, ok, err := LoadUsage(ctx, s, now)
	require.NoError(t, err)
	assert.False(t, ok, "nothing cached yet")

	snap := UsageSnapshot{
		Used:        750,
		Limit:       1000,
		Plan:        "team",
		RenewalDate: now.Add(24 * time.Hour),
		FetchedAt:   now,
	}
	require.NoError(t, SaveUsage(ctx, s, snap))

	got, stale, ok, err := LoadUsage(ctx, s, now)
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, stale)
	assert.Equal(t, int64(250), got.Remaining())
	assert.True(t, got.RenewalDate.Equal(snap.RenewalDate))

	_, stale, _, err = LoadUsage(ctx, s, snap.RenewalDate)
	require.NoError(t, err)
	assert.True(t, stale, "snapshot is stale once the renewal date arrives")

	require.NoError(t, s.Set(ctx, KeyTokenUsage, []byte("{broken")))
	_, _, _, err = LoadUsage(ctx, s, now)
	assert.Error(t, err)
}

func TestFileSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")

	f, err := NewFile(path)
	require.NoError(t, err)
	require.NoError(t, f.Set(ctx, KeyRefreshToken, []byte("r-9")))

	reopened, err := NewFile(path)
	require.NoError(t, err)
	v, err := reopened.Get(ctx, KeyRefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "r-9", string(v))

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")
}

func TestFileRejectsCorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))

	_, err := NewFile(path)
	assert.Error(t, err)
}

func TestS3Prefix(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	s := NewS3(fake, "bucket", "tenants/a/")

	require.NoError(t, s.Set(ctx, KeyAuthToken, []byte("x")))
	_, ok := fake.objects["bucket/tenants/a/auth_token"]
	assert.True(t, ok, "object should live under the prefix")
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		cfg     config.StorageConfig
		want    any
		wantErr bool
	}{
		{config.StorageConfig{Backend: config.BackendMemory}, &Memory{}, false},
		{config.StorageConfig{Backend: config.BackendFile, Path: filepath.Join(dir, "s.json")}, &File{}, false},
		{config.StorageConfig{Backend: config.BackendSQLite, Path: filepath.Join(dir, "s.db")}, &SQLite{}, false},
		{config.StorageConfig{Backend: config.BackendS3, Bucket: "b", Region: "eu-west-1"}, &S3{}, false},
		{config.StorageConfig{Backend: "redis"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.cfg.Backend, func(t *testing.T) {
			s, err := Open(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, s)
			if c, ok := s.(*SQLite); ok {
				c.Close()
			}
		})
	}
}
