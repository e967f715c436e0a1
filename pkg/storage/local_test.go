package storage

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_WriteReadDelete(t *testing.T) {
	s, err := NewLocalStorage(LocalConfig{BasePath: t.TempDir()})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, "transcripts/owner/room.json", strings.NewReader(`{"a":1}`), -1, "application/json"))

	ok, err := s.Exists(ctx, "transcripts/owner/room.json")
	require.NoError(t, err)
	assert.True(t, ok)

	rc, err := s.Read(ctx, "transcripts/owner/room.json")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(data))

	url, err := s.GetURL(ctx, "transcripts/owner/room.json", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "/transcripts/owner/room.json", url)

	require.NoError(t, s.Delete(ctx, "transcripts/owner/room.json"))
	_, err = s.Read(ctx, "transcripts/owner/room.json")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStorage_TraversalStaysInsideBase(t *testing.T) {
	base := t.TempDir()
	s, err := NewLocalStorage(LocalConfig{BasePath: base})
	require.NoError(t, err)

	path, err := s.fullPath("../../etc/passwd")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(path, s.basePath))
}

func TestNew_Drivers(t *testing.T) {
	s, err := New(context.Background(), Config{Driver: "none"})
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = New(context.Background(), Config{Driver: "local", Local: LocalConfig{BasePath: t.TempDir()}})
	require.NoError(t, err)
	assert.NotNil(t, s)

	_, err = New(context.Background(), Config{Driver: "ftp"})
	assert.Error(t, err)
}
