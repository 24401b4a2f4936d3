package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"song-fingerprint/internal/fingerprint"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleFingerprint() *fingerprint.SongFingerprint {
	return &fingerprint.SongFingerprint{
		SampleRate: 8,
		WindowSize: 4,
		Bands: []fingerprint.FrequencyBand{
			{Lower: 0, Length: 2},
			{Lower: 2, Length: 2},
		},
		Frames: []fingerprint.Frame{
			{Timestamp: 0, Peaks: []int{1, 2}},
			{Timestamp: 0.5, Peaks: []int{0, fingerprint.NoPeak}},
			{Timestamp: 1, Peaks: []int{1, 3}},
		},
	}
}

func TestTextSink(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewTextSink(&buf).Write(sampleFingerprint()))

	assert.Equal(t, "0 [1, 2]\n0.5 [0, -1]\n1 [1, 3]\n", buf.String())
}

func TestFormatTimestamp(t *testing.T) {
	assert.Equal(t, "0", FormatTimestamp(0))
	assert.Equal(t, "0.37151927437641724", FormatTimestamp(16384.0/44100.0))
	assert.Equal(t, "12", FormatTimestamp(12))
}

func TestFormatPeaks(t *testing.T) {
	assert.Equal(t, "[]", FormatPeaks(nil))
	assert.Equal(t, "[40]", FormatPeaks([]int{40}))
	assert.Equal(t, "[40, 81, -1]", FormatPeaks([]int{40, 81, -1}))
}

func TestJSONSink(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONSink(&buf).Write(sampleFingerprint()))

	var doc jsonFingerprint
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))

	assert.Equal(t, 8, doc.SampleRate)
	assert.Equal(t, 4, doc.WindowSize)
	assert.Equal(t, 0.5, doc.FrameDuration)
	require.Len(t, doc.Bands, 2)
	assert.Equal(t, jsonBand{LowerBin: 2, UpperBin: 4, LowerHz: 4, UpperHz: 8}, doc.Bands[1])

	require.Len(t, doc.Frames, 3)
	assert.Equal(t, []int{0, -1}, doc.Frames[1].Peaks)
	require.NotNil(t, doc.Frames[1].PeakHz[0])
	assert.Equal(t, 0.0, *doc.Frames[1].PeakHz[0])
	assert.Nil(t, doc.Frames[1].PeakHz[1])
	// 频点3在奈奎斯特以上，镜像为频点1
	assert.Equal(t, 2.0, *doc.Frames[2].PeakHz[1])
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("磁盘已满") }

func TestSinkWriteFailure(t *testing.T) {
	for _, format := range []Format{FormatText, FormatJSON} {
		sink, err := NewSink(format, failingWriter{})
		require.NoError(t, err)
		assert.ErrorIs(t, sink.Write(sampleFingerprint()), ErrWrite)
	}
}

func TestNewSinkUnknownFormat(t *testing.T) {
	_, err := NewSink("csv", &bytes.Buffer{})
	assert.Error(t, err)
}

func TestFormatExtension(t *testing.T) {
	assert.Equal(t, ".fp.txt", FormatText.Extension())
	assert.Equal(t, ".fp.json", FormatJSON.Extension())
}
