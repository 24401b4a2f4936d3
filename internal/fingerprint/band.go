package fingerprint

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// NoPeak 频带内没有找到峰值时 PeakAt 的取值，不是任何合法的频点索引
const NoPeak = -1

// BandUnit 频带定义所用的单位
type BandUnit string

const (
	UnitBin BandUnit = "bin" // 频点索引，结果依赖采样率和窗口大小
	UnitHz  BandUnit = "hz"  // 赫兹，按流的采样率换算成频点
)

// BandSpec 频带的静态描述: 半开区间 [Lower, Lower+Length)
type BandSpec struct {
	Lower  float64
	Length float64
	Unit   BandUnit
}

// DefaultBandSpecs 返回五个默认频带 (频点单位)
func DefaultBandSpecs() []BandSpec {
	return []BandSpec{
		{Lower: 40, Length: 40, Unit: UnitBin},
		{Lower: 80, Length: 40, Unit: UnitBin},
		{Lower: 120, Length: 60, Unit: UnitBin},
		{Lower: 180, Length: 80, Unit: UnitBin},
		{Lower: 260, Length: 140, Unit: UnitBin},
	}
}

// ParseBandSpecs 解析 "lower:length,lower:length" 格式的频带列表
func ParseBandSpecs(s string, unit BandUnit) ([]BandSpec, error) {
	switch unit {
	case UnitBin, UnitHz:
	default:
		return nil, fmt.Errorf("%w: 未知的频带单位 %q", ErrInvalidBand, unit)
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	var specs []BandSpec
	for _, part := range strings.Split(s, ",") {
		fields := strings.Split(strings.TrimSpace(part), ":")
		if len(fields) != 2 {
			return nil, fmt.Errorf("%w: 频带格式应为 lower:length，得到 %q", ErrInvalidBand, part)
		}

		lower, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: 下界 %q: %v", ErrInvalidBand, fields[0], err)
		}
		length, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: 长度 %q: %v", ErrInvalidBand, fields[1], err)
		}

		specs = append(specs, BandSpec{Lower: lower, Length: length, Unit: unit})
	}

	return specs, nil
}

// FrequencyBand 频带及其每个窗口的工作状态
type FrequencyBand struct {
	Lower         int     // 起始频点 (包含)
	Length        int     // 频点数量
	PeakAt        int     // 当前窗口中幅度最大的频点，未找到时为 NoPeak
	PeakMagnitude float64 // PeakAt 处的幅度评分
}

// Upper 返回结束频点 (不包含)
func (b *FrequencyBand) Upper() int {
	return b.Lower + b.Length
}

// Contains 判断频点是否落在频带内
func (b *FrequencyBand) Contains(bin int) bool {
	return bin >= b.Lower && bin < b.Lower+b.Length
}

// Reset 清空峰值状态，每个窗口分析前调用
func (b *FrequencyBand) Reset() {
	b.PeakAt = NoPeak
	b.PeakMagnitude = MinScore
}

// Found 当前窗口是否找到了峰值
func (b *FrequencyBand) Found() bool {
	return b.PeakAt != NoPeak
}

// ResolveBands 把频带描述换算成频点区间并校验其位于 [0, windowSize) 内
func ResolveBands(specs []BandSpec, windowSize, sampleRate int) ([]FrequencyBand, error) {
	if windowSize <= 0 {
		return nil, fmt.Errorf("%w: 窗口大小必须为正数 (%d)", ErrInvalidConfig, windowSize)
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: 至少需要一个频带", ErrInvalidBand)
	}

	bands := make([]FrequencyBand, 0, len(specs))
	for i, spec := range specs {
		if spec.Lower < 0 || spec.Length <= 0 || math.IsNaN(spec.Lower) || math.IsNaN(spec.Length) {
			return nil, fmt.Errorf("%w: 第%d个频带 [%g, %g+%g)", ErrInvalidBand, i, spec.Lower, spec.Lower, spec.Length)
		}

		var lower, length int
		switch spec.Unit {
		case UnitBin, "":
			// 先在浮点范围内检查，避免转换成 int 时溢出
			if spec.Lower > float64(windowSize) || spec.Length > float64(windowSize) {
				return nil, outOfRange(i, spec.Lower, spec.Lower+spec.Length, windowSize)
			}
			lower = int(spec.Lower)
			length = int(spec.Length)
			if float64(lower) != spec.Lower || float64(length) != spec.Length {
				return nil, fmt.Errorf("%w: 第%d个频带的频点必须为整数", ErrInvalidBand, i)
			}
		case UnitHz:
			if sampleRate <= 0 {
				return nil, fmt.Errorf("%w: 采样率必须为正数 (%d)", ErrInvalidConfig, sampleRate)
			}
			lowerBin := math.Round(spec.Lower * float64(windowSize) / float64(sampleRate))
			upperBin := math.Round((spec.Lower + spec.Length) * float64(windowSize) / float64(sampleRate))
			if math.IsInf(upperBin, 0) || upperBin > float64(windowSize) {
				return nil, outOfRange(i, lowerBin, upperBin, windowSize)
			}
			lower = int(lowerBin)
			length = max(int(upperBin)-lower, 1)
		default:
			return nil, fmt.Errorf("%w: 未知的频带单位 %q", ErrInvalidBand, spec.Unit)
		}

		if lower < 0 || length <= 0 || length > windowSize-lower {
			return nil, outOfRange(i, float64(lower), float64(lower)+float64(length), windowSize)
		}

		band := FrequencyBand{Lower: lower, Length: length}
		band.Reset()
		bands = append(bands, band)
	}

	return bands, nil
}

func outOfRange(i int, lower, upper float64, windowSize int) error {
	return fmt.Errorf("%w: 第%d个频带 [%g, %g) 超出频点范围 [0, %d)", ErrInvalidBand, i, lower, upper, windowSize)
}

// BinFrequency 返回频点对应的频率 (Hz)，奈奎斯特频点以上镜像
func BinFrequency(bin, sampleRate, windowSize int) float64 {
	if bin > windowSize/2 {
		bin = windowSize - bin
	}
	return float64(bin) * float64(sampleRate) / float64(windowSize)
}
