package decoder

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"song-fingerprint/internal/types"
)

// AudioDecoder 音频解码器接口
type AudioDecoder interface {
	// Decode 打开文件，之后只读取 channel 声道的采样
	Decode(filePath string, channel int) (types.AudioFile, error)
	SupportedFormats() []string
}

// DecoderRegistry 解码器注册表
type DecoderRegistry struct {
	decoders map[string]AudioDecoder
}

// NewDecoderRegistry 创建新的解码器注册表
func NewDecoderRegistry() *DecoderRegistry {
	registry := &DecoderRegistry{
		decoders: make(map[string]AudioDecoder),
	}

	// 注册支持的解码器
	registry.Register(&WAVDecoder{})
	registry.Register(&FLACDecoder{})
	registry.Register(&MP3Decoder{})

	return registry
}

// Register 注册解码器
func (r *DecoderRegistry) Register(decoder AudioDecoder) {
	for _, format := range decoder.SupportedFormats() {
		r.decoders[strings.ToLower(format)] = decoder
	}
}

// Supports 判断文件扩展名是否有对应的解码器
func (r *DecoderRegistry) Supports(filePath string) bool {
	_, err := r.GetDecoder(filePath)
	return err == nil
}

// GetDecoder 根据文件扩展名获取解码器
func (r *DecoderRegistry) GetDecoder(filePath string) (AudioDecoder, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	if ext == "" {
		return nil, fmt.Errorf("无法确定文件格式: %s", filePath)
	}

	// 移除点号
	ext = ext[1:]

	decoder, exists := r.decoders[ext]
	if !exists {
		return nil, fmt.Errorf("不支持的音频格式: %s", ext)
	}

	return decoder, nil
}

// DecodeFile 解码音频文件
func (r *DecoderRegistry) DecodeFile(filePath string, channel int) (types.AudioFile, error) {
	decoder, err := r.GetDecoder(filePath)
	if err != nil {
		return nil, err
	}

	return decoder.Decode(filePath, channel)
}

// checkChannel 校验声道序号
func checkChannel(channel, channels int) error {
	if channels < 1 {
		return fmt.Errorf("无效的声道数: %d", channels)
	}
	if channel < 0 || channel >= channels {
		return fmt.Errorf("声道 %d 不存在 (共 %d 个声道)", channel, channels)
	}
	return nil
}

// sampleQueue 已解码但尚未读出的单声道采样
type sampleQueue struct {
	buf []int
	pos int
}

func (q *sampleQueue) empty() bool {
	return q.pos >= len(q.buf)
}

func (q *sampleQueue) drain(dst []int) int {
	n := copy(dst, q.buf[q.pos:])
	q.pos += n
	return n
}

// readQueued 从队列读取采样，队列为空时调用 fill 解码下一块
//
// fill 在流结束时返回 io.EOF。
func readQueued(q *sampleQueue, dst []int, fill func() error) (int, error) {
	total := 0
	for total < len(dst) {
		if q.empty() {
			if err := fill(); err != nil {
				if errors.Is(err, io.EOF) && total > 0 {
					return total, nil
				}
				return total, err
			}
			continue
		}
		total += q.drain(dst[total:])
	}
	return total, nil
}
