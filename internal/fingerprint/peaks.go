package fingerprint

import (
	"fmt"
	"math"
	"math/cmplx"
)

// MinScore 零幅度、负幅度或非有限值的评分，低于任何有效评分
const MinScore = -math.MaxFloat64

// MagnitudeMode 幅度评分方式
type MagnitudeMode string

const (
	// MagnitudeModulus ln(sqrt(re^2 + im^2))
	MagnitudeModulus MagnitudeMode = "modulus"
	// MagnitudeReal ln(re)，只使用实部，re <= 0 的频点没有有效评分
	MagnitudeReal MagnitudeMode = "real"
)

// ScoreFunc 计算单个频点的幅度评分
type ScoreFunc func(c complex128) float64

// ScoreFuncFor 返回评分方式对应的函数
func ScoreFuncFor(mode MagnitudeMode) (ScoreFunc, error) {
	switch mode {
	case MagnitudeModulus, "":
		return ModulusScore, nil
	case MagnitudeReal:
		return RealScore, nil
	default:
		return nil, fmt.Errorf("%w: 未知的幅度评分方式 %q", ErrInvalidConfig, mode)
	}
}

// ModulusScore 复数模的对数
func ModulusScore(c complex128) float64 {
	return logScore(cmplx.Abs(c))
}

// RealScore 实部的对数
func RealScore(c complex128) float64 {
	return logScore(real(c))
}

func logScore(magnitude float64) float64 {
	if !(magnitude > 0) {
		return MinScore
	}
	score := math.Log(magnitude)
	if math.IsInf(score, 1) {
		return math.MaxFloat64
	}
	if math.IsInf(score, -1) || math.IsNaN(score) {
		return MinScore
	}
	return score
}

// ExtractPeaks 在频谱中查找每个频带幅度评分最大的频点
//
// 每个频点只计算一次评分；评分严格大于当前峰值才会替换，
// 所以评分相同时保留索引较小的频点。频带之间互不影响，
// 重叠的频带会各自更新。
func ExtractPeaks(spectrum []complex128, bands []FrequencyBand, score ScoreFunc) {
	for i := range bands {
		bands[i].Reset()
	}

	for bin, coefficient := range spectrum {
		s := score(coefficient)
		for i := range bands {
			band := &bands[i]
			if band.Contains(bin) && s > band.PeakMagnitude {
				band.PeakAt = bin
				band.PeakMagnitude = s
			}
		}
	}
}
