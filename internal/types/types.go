package types

import (
	"time"

	"song-fingerprint/internal/fingerprint"
)

// AnalyzerConfig 分析器配置
type AnalyzerConfig struct {
	Fingerprint fingerprint.Config // 指纹提取参数
	Channel     int                // 使用的声道
	OutputDir   string             // 输出目录，"-" 表示标准输出
	Format      string             // 输出格式: text, json
	Concurrency int                // 并发处理文件数量
	Quiet       bool               // 静默模式
}

// AudioMetadata 音频元数据
type AudioMetadata struct {
	Title    string `json:"title,omitempty"`
	Artist   string `json:"artist,omitempty"`
	Album    string `json:"album,omitempty"`
	Year     string `json:"year,omitempty"`
	Genre    string `json:"genre,omitempty"`
	Duration string `json:"duration,omitempty"`
}

// StreamDetails 音频流信息及指纹概况
type StreamDetails struct {
	SampleRate int     `json:"sampleRate"`
	BitDepth   int     `json:"bitDepth"`
	Channels   int     `json:"channels"`
	Channel    int     `json:"channel"`
	Duration   float64 `json:"duration"`
	WindowSize int     `json:"windowSize"`
	Frames     int     `json:"frames"`
}

// AnalysisResult 单个文件的处理结果
type AnalysisResult struct {
	FilePath   string        `json:"filePath"`
	Format     string        `json:"format"`
	Metadata   AudioMetadata `json:"metadata"`
	Status     string        `json:"status"` // "OK", "ERROR"
	Stream     StreamDetails `json:"stream"`
	OutputPath string        `json:"outputPath,omitempty"`
	Error      string        `json:"error,omitempty"`

	Fingerprint *fingerprint.SongFingerprint `json:"-"`
}

// AudioFile 已打开的音频文件，按顺序读出一个声道的采样
type AudioFile interface {
	GetFormat() string
	GetSampleRate() int
	GetBitDepth() int
	GetChannels() int
	GetDuration() time.Duration
	GetMetadata() AudioMetadata
	// ReadSamples 读取所选声道的下一批采样，结束时返回 io.EOF
	ReadSamples(dst []int) (int, error)
	Close() error
}
