package output

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"song-fingerprint/internal/fingerprint"
)

// ErrWrite 写入指纹失败
var ErrWrite = errors.New("写入指纹失败")

// Format 输出格式
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Extension 返回格式对应的文件扩展名
func (f Format) Extension() string {
	switch f {
	case FormatJSON:
		return ".fp.json"
	default:
		return ".fp.txt"
	}
}

// Sink 指纹输出接口
type Sink interface {
	Write(fp *fingerprint.SongFingerprint) error
}

// NewSink 根据格式创建输出
func NewSink(format Format, w io.Writer) (Sink, error) {
	switch format {
	case FormatText, "":
		return NewTextSink(w), nil
	case FormatJSON:
		return NewJSONSink(w), nil
	default:
		return nil, fmt.Errorf("不支持的输出格式: %s", format)
	}
}

// TextSink 每帧一行: "<timestamp> [p1, p2, ...]"
type TextSink struct {
	w io.Writer
}

// NewTextSink 创建文本输出
func NewTextSink(w io.Writer) *TextSink {
	return &TextSink{w: w}
}

// Write 按帧顺序写出全部帧
func (s *TextSink) Write(fp *fingerprint.SongFingerprint) error {
	bw := bufio.NewWriter(s.w)
	for _, frame := range fp.Frames {
		if _, err := fmt.Fprintf(bw, "%s %s\n", FormatTimestamp(frame.Timestamp), FormatPeaks(frame.Peaks)); err != nil {
			return fmt.Errorf("%w: %v", ErrWrite, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	return nil
}

// FormatTimestamp 最短的十进制表示
func FormatTimestamp(ts float64) string {
	return strconv.FormatFloat(ts, 'f', -1, 64)
}

// FormatPeaks 格式化为 "[40, 81, 130]"
func FormatPeaks(peaks []int) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, p := range peaks {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(strconv.Itoa(p))
	}
	sb.WriteByte(']')
	return sb.String()
}

// JSONSink 输出单个JSON文档
type JSONSink struct {
	w io.Writer
}

// NewJSONSink 创建JSON输出
func NewJSONSink(w io.Writer) *JSONSink {
	return &JSONSink{w: w}
}

type jsonBand struct {
	LowerBin int     `json:"lowerBin"`
	UpperBin int     `json:"upperBin"`
	LowerHz  float64 `json:"lowerHz"`
	UpperHz  float64 `json:"upperHz"`
}

type jsonFrame struct {
	Timestamp float64    `json:"timestamp"`
	Peaks     []int      `json:"peaks"`
	PeakHz    []*float64 `json:"peakHz"`
}

type jsonFingerprint struct {
	SampleRate    int         `json:"sampleRate"`
	WindowSize    int         `json:"windowSize"`
	FrameDuration float64     `json:"frameDuration"`
	Bands         []jsonBand  `json:"bands"`
	Frames        []jsonFrame `json:"frames"`
}

// edgeHz 频带边界对应的频率，不做镜像
func edgeHz(bin int, fp *fingerprint.SongFingerprint) float64 {
	return float64(bin) * float64(fp.SampleRate) / float64(fp.WindowSize)
}

// Write 写出整个指纹
func (s *JSONSink) Write(fp *fingerprint.SongFingerprint) error {
	doc := jsonFingerprint{
		SampleRate:    fp.SampleRate,
		WindowSize:    fp.WindowSize,
		FrameDuration: fp.FrameDuration(),
		Bands:         make([]jsonBand, len(fp.Bands)),
		Frames:        make([]jsonFrame, len(fp.Frames)),
	}

	for i, b := range fp.Bands {
		doc.Bands[i] = jsonBand{
			LowerBin: b.Lower,
			UpperBin: b.Upper(),
			LowerHz:  edgeHz(b.Lower, fp),
			UpperHz:  edgeHz(b.Upper(), fp),
		}
	}

	for i, frame := range fp.Frames {
		hz := make([]*float64, len(frame.Peaks))
		for j, p := range frame.Peaks {
			if p == fingerprint.NoPeak {
				continue
			}
			f := fingerprint.BinFrequency(p, fp.SampleRate, fp.WindowSize)
			hz[j] = &f
		}
		doc.Frames[i] = jsonFrame{Timestamp: frame.Timestamp, Peaks: frame.Peaks, PeakHz: hz}
	}

	enc := json.NewEncoder(s.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	return nil
}
