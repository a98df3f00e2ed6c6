package capture

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"meeting-recorder/pkg/apperr"
)

func TestBuildConcatList(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		filepath.Join(dir, "segment-000.m4a"),
		filepath.Join(dir, "it's-001.m4a"),
	}

	list, err := buildConcatList(paths)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(list), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "file '"+paths[0]+"'", lines[0])
	assert.Contains(t, lines[1], `it'\''s-001.m4a`)
}

func TestFFmpegMicrophone_MissingBinary(t *testing.T) {
	mic := NewFFmpegMicrophone(FFmpegConfig{Path: filepath.Join(t.TempDir(), "no-ffmpeg-here")})

	stream, err := mic.Acquire(context.Background(), filepath.Join(t.TempDir(), "a.m4a"), Options{})
	require.ErrorIs(t, err, apperr.ErrCaptureUnavailable)
	assert.Nil(t, stream)
}

func TestFFmpegMicrophone_Defaults(t *testing.T) {
	mic := NewFFmpegMicrophone(FFmpegConfig{})
	assert.Equal(t, "ffmpeg", mic.path)
	assert.Equal(t, defaultBitrate, mic.bitrate)
	assert.NotEmpty(t, mic.format)
	assert.NotEmpty(t, mic.device)

	mic = NewFFmpegMicrophone(FFmpegConfig{Format: "alsa", Device: "hw:0"})
	assert.Equal(t, "alsa", mic.format)
	assert.Equal(t, "hw:0", mic.device)
}

func TestFFmpegStream_SegmentArgs(t *testing.T) {
	st := &ffmpegStream{
		mic:  NewFFmpegMicrophone(FFmpegConfig{Format: "pulse", Device: "default"}),
		opts: Options{SampleRate: 16000, Channels: 1},
	}
	args := strings.Join(st.segmentArgs("out.m4a"), " ")
	assert.Contains(t, args, "-f pulse -i default")
	assert.Contains(t, args, "-ar 16000")
	assert.True(t, strings.HasSuffix(args, "-y out.m4a"))
}
