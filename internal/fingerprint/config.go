package fingerprint

import (
	"errors"
	"fmt"
)

// DefaultWindowSize 默认分析窗口大小 (采样数)
const DefaultWindowSize = 16 * 1024

var (
	// ErrInvalidConfig 配置错误，在读取任何采样之前返回
	ErrInvalidConfig = errors.New("无效的指纹配置")
	// ErrInvalidBand 频带超出 [0, N) 或长度非法
	ErrInvalidBand = errors.New("无效的频带定义")
	// ErrSourceRead 采样源读取失败，整个处理过程中止
	ErrSourceRead = errors.New("读取音频采样失败")
)

// Backend FFT实现
type Backend string

const (
	BackendGoDSP Backend = "go-dsp"
	BackendGonum Backend = "gonum"
)

// Config 指纹提取配置
type Config struct {
	WindowSize int           // 分析窗口大小 N
	Bands      []BandSpec    // 频带定义，按输出顺序排列
	Magnitude  MagnitudeMode // 幅度评分方式
	Backend    Backend       // FFT实现
	Workers    int           // 并行处理窗口的协程数，<=1 表示顺序处理
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		WindowSize: DefaultWindowSize,
		Bands:      DefaultBandSpecs(),
		Magnitude:  MagnitudeModulus,
		Backend:    BackendGoDSP,
		Workers:    1,
	}
}

// withDefaults 填充未设置的字段
func (c Config) withDefaults() Config {
	if len(c.Bands) == 0 {
		c.Bands = DefaultBandSpecs()
	}
	if c.Magnitude == "" {
		c.Magnitude = MagnitudeModulus
	}
	if c.Backend == "" {
		c.Backend = BackendGoDSP
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	return c
}

// Validate 校验配置，sampleRate 为音频流的采样率
func (c Config) Validate(sampleRate int) error {
	c = c.withDefaults()

	if c.WindowSize <= 0 {
		return fmt.Errorf("%w: 窗口大小必须为正数 (%d)", ErrInvalidConfig, c.WindowSize)
	}
	if sampleRate <= 0 {
		return fmt.Errorf("%w: 采样率必须为正数 (%d)", ErrInvalidConfig, sampleRate)
	}
	if _, err := ScoreFuncFor(c.Magnitude); err != nil {
		return err
	}
	switch c.Backend {
	case BackendGoDSP, BackendGonum:
	default:
		return fmt.Errorf("%w: 不支持的FFT实现 %q", ErrInvalidConfig, c.Backend)
	}

	_, err := ResolveBands(c.Bands, c.WindowSize, sampleRate)
	return err
}
