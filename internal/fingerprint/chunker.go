package fingerprint

import (
	"errors"
	"fmt"
	"io"
)

// maxEmptyReads 连续返回 (0, nil) 的次数上限
const maxEmptyReads = 100

// SampleSource 单声道采样源，只能向前读取一次
//
// ReadSamples 读取到末尾时返回 io.EOF，可以同时返回 n > 0。
type SampleSource interface {
	ReadSamples(dst []int) (int, error)
}

// Window 一个分析窗口
type Window struct {
	Index   int       // 在流中的序号，从0开始
	Samples []float64 // 长度恒为窗口大小，不足部分补零
	Filled  int       // 来自采样源的采样数
}

// Chunker 把采样流切分成固定大小的窗口
type Chunker struct {
	src   SampleSource
	size  int
	buf   []int
	index int
	done  bool
}

// NewChunker 创建切分器
func NewChunker(src SampleSource, size int) *Chunker {
	return &Chunker{
		src:  src,
		size: size,
		buf:  make([]int, size),
	}
}

// Next 返回下一个窗口；采样源耗尽后 ok 为 false
func (c *Chunker) Next() (w Window, ok bool, err error) {
	if c.done {
		return Window{}, false, nil
	}

	filled, err := c.fill()
	if err != nil {
		c.done = true
		return Window{}, false, err
	}
	if filled == 0 {
		return Window{}, false, nil
	}

	samples := make([]float64, c.size)
	for i := 0; i < filled; i++ {
		samples[i] = float64(c.buf[i])
	}

	w = Window{Index: c.index, Samples: samples, Filled: filled}
	c.index++
	return w, true, nil
}

// fill 尽量填满缓冲区，返回实际读取的采样数
func (c *Chunker) fill() (int, error) {
	filled := 0
	empty := 0

	for filled < c.size {
		n, err := c.src.ReadSamples(c.buf[filled:])
		filled += n

		if errors.Is(err, io.EOF) {
			c.done = true
			return filled, nil
		}
		if err != nil {
			return 0, fmt.Errorf("%w: 第%d个窗口: %v", ErrSourceRead, c.index, err)
		}

		if n == 0 {
			empty++
			if empty >= maxEmptyReads {
				return 0, fmt.Errorf("%w: %v", ErrSourceRead, io.ErrNoProgress)
			}
			continue
		}
		empty = 0
	}

	return filled, nil
}
