package fingerprint

import (
	"fmt"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/dsp/fourier"
)

// Transformer 把一个窗口变换成同样长度的复数频谱
//
// 输入长度与变换大小不一致属于程序错误，会直接panic。
// dst 在实现支持时会被复用，可以为nil。
type Transformer interface {
	Transform(dst []complex128, window []float64) []complex128
}

// NewTransformer 创建指定实现的正向DFT
//
// 返回的 Transformer 不能在多个协程之间共享。
func NewTransformer(backend Backend, size int) (Transformer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: 变换大小必须为正数 (%d)", ErrInvalidConfig, size)
	}

	switch backend {
	case BackendGoDSP, "":
		return &goDSPTransformer{size: size}, nil
	case BackendGonum:
		return &gonumTransformer{
			fft: fourier.NewCmplxFFT(size),
			buf: make([]complex128, size),
		}, nil
	default:
		return nil, fmt.Errorf("%w: 不支持的FFT实现 %q", ErrInvalidConfig, backend)
	}
}

// goDSPTransformer 基于 mjibson/go-dsp，支持任意长度
type goDSPTransformer struct {
	size int
}

func (t *goDSPTransformer) Transform(_ []complex128, window []float64) []complex128 {
	if len(window) != t.size {
		panic(fmt.Sprintf("fingerprint: 窗口长度 %d 与变换大小 %d 不一致", len(window), t.size))
	}
	return fft.FFTReal(window)
}

// gonumTransformer 基于 gonum 的复数FFT，复用工作缓冲区
type gonumTransformer struct {
	fft *fourier.CmplxFFT
	buf []complex128
}

func (t *gonumTransformer) Transform(dst []complex128, window []float64) []complex128 {
	if len(window) != len(t.buf) {
		panic(fmt.Sprintf("fingerprint: 窗口长度 %d 与变换大小 %d 不一致", len(window), len(t.buf)))
	}
	for i, v := range window {
		t.buf[i] = complex(v, 0)
	}
	if len(dst) != len(t.buf) {
		dst = nil
	}
	return t.fft.Coefficients(dst, t.buf)
}
