package backend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		cfg  *Config
		want BackendType
	}{
		{"nil config", nil, BackendNone},
		{"empty type", &Config{}, BackendNone},
		{"local", &Config{Type: BackendLocal, Location: dir}, BackendLocal},
		{"s3", &Config{Type: BackendS3, S3Bucket: "bucket", S3Prefix: "team/"}, BackendS3},
		{"dropbox", &Config{Type: BackendDropbox, DropboxAppKey: "key"}, BackendDropbox},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := New(tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, b.Type())
		})
	}
}

func TestNew_Errors(t *testing.T) {
	_, err := New(&Config{Type: "ftp"})
	assert.Error(t, err)

	_, err = New(&Config{Type: BackendLocal, Location: "relative"})
	assert.Error(t, err)
}

func TestParseType(t *testing.T) {
	for in, want := range map[string]BackendType{
		"":        BackendNone,
		"none":    BackendNone,
		"local":   BackendLocal,
		"s3":      BackendS3,
		"dropbox": BackendDropbox,
	} {
		got, err := ParseType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseType("gdrive")
	assert.Error(t, err)
}

func TestNoneBackend(t *testing.T) {
	ctx := context.Background()
	b := NewNoneBackend()

	assert.NoError(t, b.Init(ctx))
	assert.ErrorIs(t, b.Write(ctx, testSnapshot()), ErrNotConfigured)
	_, err := b.Read(ctx)
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.False(t, b.Exists(ctx))
	assert.Empty(t, b.GetLocation())
}

func TestS3Backend_Location(t *testing.T) {
	b := NewS3Backend("", "", "")
	assert.Empty(t, b.GetLocation())

	require.NoError(t, b.SetLocation("s3://my-bucket/some/prefix/"))
	assert.Equal(t, "my-bucket", b.GetBucket())
	assert.Equal(t, "some/prefix", b.GetPrefix())
	assert.Equal(t, "s3://my-bucket/some/prefix", b.GetLocation())
	assert.Equal(t, "some/prefix/"+S3ObjectKey, b.objectKey())

	require.NoError(t, b.SetLocation("plain"))
	assert.Equal(t, "s3://plain", b.GetLocation())
	assert.Equal(t, S3ObjectKey, b.objectKey())

	assert.Error(t, b.SetLocation("s3:///prefix"))
}

func TestS3Backend_NotConfigured(t *testing.T) {
	ctx := context.Background()
	b := NewS3Backend("", "", "")
	assert.ErrorIs(t, b.Init(ctx), ErrNotConfigured)
	assert.ErrorIs(t, b.Write(ctx, testSnapshot()), ErrNotConfigured)
}
