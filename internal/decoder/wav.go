package decoder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"song-fingerprint/internal/types"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// wavReadFrames 每次从WAV读取的帧数
const wavReadFrames = 4096

// WAVDecoder WAV格式解码器
type WAVDecoder struct{}

// WAVFile WAV文件实现
type WAVFile struct {
	decoder    *wav.Decoder
	file       *os.File
	buf        *audio.IntBuffer
	queue      sampleQueue
	sampleRate int
	bitDepth   int
	channels   int
	channel    int
	offset     int
	duration   time.Duration
}

// SupportedFormats 返回支持的格式
func (d *WAVDecoder) SupportedFormats() []string {
	return []string{"wav"}
}

// Decode 解码WAV文件
func (d *WAVDecoder) Decode(filePath string, channel int) (types.AudioFile, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("打开WAV文件失败: %w", err)
	}

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		file.Close()
		return nil, fmt.Errorf("无效的WAV文件: %s", filePath)
	}

	channels := int(decoder.NumChans)
	sampleRate := int(decoder.SampleRate)
	bitDepth := int(decoder.BitDepth)
	if err := checkChannel(channel, channels); err != nil {
		file.Close()
		return nil, err
	}
	if sampleRate <= 0 || bitDepth <= 0 {
		file.Close()
		return nil, fmt.Errorf("WAV元数据无效: 采样率 %d, 位深度 %d", sampleRate, bitDepth)
	}

	// 定位到PCM数据块，PCMLen 之后才有效
	if err := decoder.FwdToPCM(); err != nil {
		file.Close()
		return nil, fmt.Errorf("定位WAV数据块失败: %w", err)
	}

	frameBytes := int64(channels * ((bitDepth + 7) / 8))
	frames := decoder.PCMLen() / frameBytes
	duration := time.Duration(float64(frames) / float64(sampleRate) * float64(time.Second))

	wavFile := &WAVFile{
		decoder:    decoder,
		file:       file,
		sampleRate: sampleRate,
		bitDepth:   bitDepth,
		channels:   channels,
		channel:    channel,
		offset:     pcmOffset(bitDepth),
		duration:   duration,
		buf: &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: channels,
				SampleRate:  sampleRate,
			},
			Data:           make([]int, wavReadFrames*channels),
			SourceBitDepth: bitDepth,
		},
	}

	return wavFile, nil
}

// pcmOffset 8位WAV为无符号采样，减去中点转换为有符号幅度
func pcmOffset(bitDepth int) int {
	if bitDepth == 8 {
		return 1 << (bitDepth - 1)
	}
	return 0
}

// GetFormat 获取格式名称
func (w *WAVFile) GetFormat() string {
	return "WAV"
}

// GetSampleRate 获取采样率
func (w *WAVFile) GetSampleRate() int {
	return w.sampleRate
}

// GetBitDepth 获取位深度
func (w *WAVFile) GetBitDepth() int {
	return w.bitDepth
}

// GetChannels 获取声道数
func (w *WAVFile) GetChannels() int {
	return w.channels
}

// GetDuration 获取时长
func (w *WAVFile) GetDuration() time.Duration {
	return w.duration
}

// ReadSamples 读取所选声道的采样
func (w *WAVFile) ReadSamples(dst []int) (int, error) {
	return readQueued(&w.queue, dst, w.fill)
}

// fill 解码下一块交错数据并取出所选声道
func (w *WAVFile) fill() error {
	n, err := w.decoder.PCMBuffer(w.buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("读取WAV数据失败: %w", err)
	}
	if n == 0 {
		return io.EOF
	}

	frames := n / w.channels
	samples := w.queue.buf[:0]
	for i := 0; i < frames; i++ {
		samples = append(samples, w.buf.Data[i*w.channels+w.channel]-w.offset)
	}
	w.queue.buf = samples
	w.queue.pos = 0
	return nil
}

// GetMetadata 获取元数据
func (w *WAVFile) GetMetadata() types.AudioMetadata {
	// WAV文件的元数据支持有限，这里返回基本信息
	return types.AudioMetadata{
		Duration: w.duration.String(),
	}
}

// Close 关闭文件
func (w *WAVFile) Close() error {
	if w.file != nil {
		return w.file.Close()
	}
	return nil
}
