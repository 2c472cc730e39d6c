package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveRecording(t *testing.T) {
	dir := t.TempDir()
	b, err := NewBlobStore(dir)
	require.NoError(t, err)

	name, err := b.SaveRecording([]byte("webm-bytes"), "webm")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(name, "recording-"), "name should carry the recording prefix")
	assert.True(t, strings.HasSuffix(name, ".webm"))

	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	assert.Equal(t, "webm-bytes", string(data))
}

func TestSaveRecordingDefaultExtension(t *testing.T) {
	b, err := NewBlobStore(t.TempDir())
	require.NoError(t, err)

	name, err := b.SaveRecording([]byte("x"), "")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(name, ".webm"), "empty extension defaults to webm")

	name, err = b.SaveRecording([]byte("x"), ".mp3")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(name, ".mp3"), "leading dot is trimmed")
}
