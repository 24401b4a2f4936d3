package decoder

import (
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"song-fingerprint/internal/types"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
)

const mp3ReadFrames = 4096

// MP3Decoder MP3格式解码器
type MP3Decoder struct{}

// MP3File MP3文件实现
type MP3File struct {
	streamer   beep.StreamSeekCloser
	buf        [][2]float64
	queue      sampleQueue
	sampleRate int
	bitDepth   int
	channels   int
	channel    int
	maxVal     float64
	duration   time.Duration
}

// SupportedFormats 返回支持的格式
func (d *MP3Decoder) SupportedFormats() []string {
	return []string{"mp3"}
}

// Decode 解码MP3文件
func (d *MP3Decoder) Decode(filePath string, channel int) (types.AudioFile, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("打开MP3文件失败: %w", err)
	}

	// 解码器接管文件，streamer.Close 时关闭
	streamer, format, err := mp3.Decode(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("解析MP3文件失败: %w", err)
	}

	if err := checkChannel(channel, format.NumChannels); err != nil {
		streamer.Close()
		return nil, err
	}

	bitDepth := format.Precision * 8
	return &MP3File{
		streamer:   streamer,
		buf:        make([][2]float64, mp3ReadFrames),
		sampleRate: int(format.SampleRate),
		bitDepth:   bitDepth,
		channels:   format.NumChannels,
		channel:    channel,
		maxVal:     float64(int(1) << uint(bitDepth-1)),
		duration:   format.SampleRate.D(streamer.Len()),
	}, nil
}

// GetFormat 获取格式名称
func (m *MP3File) GetFormat() string {
	return "MP3"
}

// GetSampleRate 获取采样率
func (m *MP3File) GetSampleRate() int {
	return m.sampleRate
}

// GetBitDepth 获取位深度
func (m *MP3File) GetBitDepth() int {
	return m.bitDepth
}

// GetChannels 获取声道数
func (m *MP3File) GetChannels() int {
	return m.channels
}

// GetDuration 获取时长
func (m *MP3File) GetDuration() time.Duration {
	return m.duration
}

// ReadSamples 读取所选声道的采样
func (m *MP3File) ReadSamples(dst []int) (int, error) {
	return readQueued(&m.queue, dst, m.fill)
}

// fill 解码下一块并把 [-1, 1] 的浮点采样还原为整数幅度
func (m *MP3File) fill() error {
	n, ok := m.streamer.Stream(m.buf)
	if !ok || n == 0 {
		if err := m.streamer.Err(); err != nil {
			return fmt.Errorf("解码MP3数据失败: %w", err)
		}
		return io.EOF
	}

	samples := m.queue.buf[:0]
	for i := 0; i < n; i++ {
		samples = append(samples, scaleSample(m.buf[i][m.channel], m.maxVal))
	}
	m.queue.buf = samples
	m.queue.pos = 0
	return nil
}

// scaleSample 把 [-1, 1] 的浮点采样换算为 [-maxVal, maxVal-1] 的整数
func scaleSample(v, maxVal float64) int {
	if math.IsNaN(v) {
		return 0
	}
	v = math.Round(v * maxVal)
	return int(math.Max(-maxVal, math.Min(maxVal-1, v)))
}

// GetMetadata 获取元数据
func (m *MP3File) GetMetadata() types.AudioMetadata {
	return types.AudioMetadata{
		Duration: m.duration.String(),
	}
}

// Close 关闭文件
func (m *MP3File) Close() error {
	if m.streamer != nil {
		return m.streamer.Close()
	}
	return nil
}
