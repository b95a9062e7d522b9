package files

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), "http://localhost:8080/api/")
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2024, 7, 3, 10, 0, 0, 0, time.UTC) }
	return s
}

func TestStore_PutAndOpen(t *testing.T) {
	s := newTestStore(t)

	info, err := s.Put(context.Background(), "../../Beach Photo.JPG", strings.NewReader("jpeg bytes"))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(info.Path, "2024/07/"))
	assert.True(t, strings.HasSuffix(info.Path, ".jpg"))
	assert.NotContains(t, info.Path, "Beach")
	assert.Equal(t, int64(10), info.Size)
	assert.Equal(t, "http://localhost:8080/api/files/"+info.Path, info.URL)

	f, err := s.Open(info.Path)
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes", string(data))
}

func TestStore_PutRejectsOversized(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Put(context.Background(), "big.bin", bytes.NewReader(make([]byte, MaxUploadSize+1)))
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestStore_PutHonorsCancellation(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Put(ctx, "a.png", strings.NewReader("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStore_Open(t *testing.T) {
	s := newTestStore(t)

	tests := []struct {
		name string
		path string
		want error
	}{
		{"missing", "2024/07/nope.png", ErrFileNotFound},
		{"traversal", "../../etc/passwd", ErrInvalidPath},
		{"directory", "2024", ErrFileNotFound},
	}
	_, err := s.Put(context.Background(), "x.png", strings.NewReader("x"))
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Open(tt.path)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAccessor_URL(t *testing.T) {
	a := NewAccessor("https://cdn.example.com/")

	assert.Equal(t, "", a.URL(""))
	assert.Equal(t, "https://cdn.example.com/files/2024/07/a.png", a.URL("/2024/07/a.png"))
	assert.Equal(t, []string{"https://cdn.example.com/files/a", "https://cdn.example.com/files/b"}, a.URLs([]string{"a", "b"}))
}
