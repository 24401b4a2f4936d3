package decoder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"song-fingerprint/internal/types"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/meta"
)

// FLACDecoder FLAC格式解码器
type FLACDecoder struct{}

// FLACFile FLAC文件实现
type FLACFile struct {
	stream     *flac.Stream
	file       *os.File
	queue      sampleQueue
	sampleRate int
	bitDepth   int
	channels   int
	channel    int
	duration   time.Duration
	metadata   types.AudioMetadata
}

// SupportedFormats 返回支持的格式
func (d *FLACDecoder) SupportedFormats() []string {
	return []string{"flac"}
}

// Decode 解码FLAC文件
func (d *FLACDecoder) Decode(filePath string, channel int) (types.AudioFile, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("打开FLAC文件失败: %w", err)
	}

	// Parse 会读取全部元数据块，包括Vorbis注释
	stream, err := flac.Parse(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("解析FLAC文件失败: %w", err)
	}

	info := stream.Info
	if info == nil || info.SampleRate == 0 {
		file.Close()
		return nil, fmt.Errorf("无法读取FLAC信息: %s", filePath)
	}
	if err := checkChannel(channel, int(info.NChannels)); err != nil {
		file.Close()
		return nil, err
	}

	// 计算时长
	duration := time.Duration(float64(info.NSamples) / float64(info.SampleRate) * float64(time.Second))

	flacFile := &FLACFile{
		stream:     stream,
		file:       file,
		sampleRate: int(info.SampleRate),
		bitDepth:   int(info.BitsPerSample),
		channels:   int(info.NChannels),
		channel:    channel,
		duration:   duration,
	}

	// 解析元数据
	flacFile.parseMetadata()

	return flacFile, nil
}

// parseMetadata 解析FLAC元数据
func (f *FLACFile) parseMetadata() {
	f.metadata = types.AudioMetadata{Duration: f.duration.String()}
	for _, block := range f.stream.Blocks {
		if block.Header.Type == meta.TypeVorbisComment {
			if comment, ok := block.Body.(*meta.VorbisComment); ok {
				f.metadata = types.AudioMetadata{
					Title:    getVorbisTag(comment, "TITLE"),
					Artist:   getVorbisTag(comment, "ARTIST"),
					Album:    getVorbisTag(comment, "ALBUM"),
					Year:     getVorbisTag(comment, "DATE"),
					Genre:    getVorbisTag(comment, "GENRE"),
					Duration: f.duration.String(),
				}
			}
		}
	}
}

// getVorbisTag 获取Vorbis注释标签
func getVorbisTag(comment *meta.VorbisComment, tag string) string {
	for _, field := range comment.Tags {
		if field[0] == tag {
			return field[1]
		}
	}
	return ""
}

// GetFormat 获取格式名称
func (f *FLACFile) GetFormat() string {
	return "FLAC"
}

// GetSampleRate 获取采样率
func (f *FLACFile) GetSampleRate() int {
	return f.sampleRate
}

// GetBitDepth 获取位深度
func (f *FLACFile) GetBitDepth() int {
	return f.bitDepth
}

// GetChannels 获取声道数
func (f *FLACFile) GetChannels() int {
	return f.channels
}

// GetDuration 获取时长
func (f *FLACFile) GetDuration() time.Duration {
	return f.duration
}

// ReadSamples 读取所选声道的采样
func (f *FLACFile) ReadSamples(dst []int) (int, error) {
	return readQueued(&f.queue, dst, f.fill)
}

// fill 解码下一个音频帧
func (f *FLACFile) fill() error {
	frame, err := f.stream.ParseNext()
	if errors.Is(err, io.EOF) {
		return io.EOF
	}
	if err != nil {
		return fmt.Errorf("解码FLAC帧失败: %w", err)
	}

	subframe := frame.Subframes[f.channel]
	samples := f.queue.buf[:0]
	for _, s := range subframe.Samples {
		samples = append(samples, int(s))
	}
	f.queue.buf = samples
	f.queue.pos = 0
	return nil
}

// GetMetadata 获取元数据
func (f *FLACFile) GetMetadata() types.AudioMetadata {
	return f.metadata
}

// Close 关闭文件
func (f *FLACFile) Close() error {
	if f.file != nil {
		return f.file.Close()
	}
	return nil
}
