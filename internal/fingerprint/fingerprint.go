// Package fingerprint 把PCM采样流转换成按时间排列的频谱指纹:
// 每个固定大小的窗口中，各频带幅度最大的频点。
package fingerprint

import (
	"context"
	"slices"
	"sync"

	"song-fingerprint/internal/log"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Frame 一个窗口的指纹
type Frame struct {
	Timestamp float64 // 窗口起始时间 (秒)
	Peaks     []int   // 按频带顺序排列的峰值频点，未找到为 NoPeak
}

// SongFingerprint 整个音频流的指纹，帧按时间顺序排列
type SongFingerprint struct {
	SampleRate int
	WindowSize int
	Bands      []FrequencyBand
	Frames     []Frame
}

// FrameDuration 每帧对应的时长 (秒)
func (fp *SongFingerprint) FrameDuration() float64 {
	return float64(fp.WindowSize) / float64(fp.SampleRate)
}

// Append 追加一帧
func (fp *SongFingerprint) Append(frame Frame) {
	fp.Frames = append(fp.Frames, frame)
}

// Assemble 读取各频带的峰值，与时间戳组成一帧
func Assemble(bands []FrequencyBand, timestamp float64) Frame {
	peaks := make([]int, len(bands))
	for i := range bands {
		peaks[i] = bands[i].PeakAt
	}
	return Frame{Timestamp: timestamp, Peaks: peaks}
}

// Fingerprinter 指纹提取流水线
type Fingerprinter struct {
	config     Config
	sampleRate int
	bands      []FrequencyBand
	score      ScoreFunc
}

// New 校验配置并创建流水线
func New(config Config, sampleRate int) (*Fingerprinter, error) {
	config = config.withDefaults()
	if err := config.Validate(sampleRate); err != nil {
		return nil, err
	}

	bands, err := ResolveBands(config.Bands, config.WindowSize, sampleRate)
	if err != nil {
		return nil, err
	}
	score, err := ScoreFuncFor(config.Magnitude)
	if err != nil {
		return nil, err
	}

	return &Fingerprinter{
		config:     config,
		sampleRate: sampleRate,
		bands:      bands,
		score:      score,
	}, nil
}

// Bands 返回换算后的频带 (副本)
func (f *Fingerprinter) Bands() []FrequencyBand {
	return slices.Clone(f.bands)
}

// Timestamp 返回第 index 个窗口的起始时间
func (f *Fingerprinter) Timestamp(index int) float64 {
	return float64(index) * float64(f.config.WindowSize) / float64(f.sampleRate)
}

// Run 处理整个采样流
//
// 任何读取错误都会中止处理并且不返回指纹。
func (f *Fingerprinter) Run(ctx context.Context, src SampleSource) (*SongFingerprint, error) {
	var (
		frames []Frame
		err    error
	)
	if f.config.Workers > 1 {
		frames, err = f.runParallel(ctx, src)
	} else {
		frames, err = f.runSequential(ctx, src)
	}
	if err != nil {
		return nil, err
	}

	return &SongFingerprint{
		SampleRate: f.sampleRate,
		WindowSize: f.config.WindowSize,
		Bands:      f.Bands(),
		Frames:     frames,
	}, nil
}

// worker 单个协程的变换器和频带状态
type worker struct {
	f         *Fingerprinter
	transform Transformer
	bands     []FrequencyBand
	spectrum  []complex128
}

func (f *Fingerprinter) newWorker() (*worker, error) {
	t, err := NewTransformer(f.config.Backend, f.config.WindowSize)
	if err != nil {
		return nil, err
	}
	return &worker{f: f, transform: t, bands: f.Bands()}, nil
}

// process 变换一个窗口、查找峰值并生成帧
func (w *worker) process(win Window) Frame {
	timestamp := w.f.Timestamp(win.Index)
	log.Logger.WithFields(logrus.Fields{
		"window":    win.Index,
		"timestamp": timestamp,
	}).Debug("分析窗口")

	w.spectrum = w.transform.Transform(w.spectrum, win.Samples)
	ExtractPeaks(w.spectrum, w.bands, w.f.score)
	return Assemble(w.bands, timestamp)
}

func (f *Fingerprinter) runSequential(ctx context.Context, src SampleSource) ([]Frame, error) {
	w, err := f.newWorker()
	if err != nil {
		return nil, err
	}

	chunker := NewChunker(src, f.config.WindowSize)
	var frames []Frame
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		win, ok, err := chunker.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return frames, nil
		}

		frames = append(frames, w.process(win))
	}
}

type indexedFrame struct {
	index int
	frame Frame
}

// runParallel 多个协程并行处理窗口，按窗口序号重新排序
func (f *Fingerprinter) runParallel(ctx context.Context, src SampleSource) ([]Frame, error) {
	workers := make([]*worker, f.config.Workers)
	for i := range workers {
		w, err := f.newWorker()
		if err != nil {
			return nil, err
		}
		workers[i] = w
	}

	g, gctx := errgroup.WithContext(ctx)
	windows := make(chan Window, len(workers))
	results := make(chan indexedFrame, len(workers))

	// 采样源只能顺序读取
	g.Go(func() error {
		defer close(windows)
		chunker := NewChunker(src, f.config.WindowSize)
		for {
			win, ok, err := chunker.Next()
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			select {
			case windows <- win:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	var wg sync.WaitGroup
	for _, w := range workers {
		w := w
		wg.Add(1)
		g.Go(func() error {
			defer wg.Done()
			for win := range windows {
				results <- indexedFrame{index: win.Index, frame: w.process(win)}
			}
			return nil
		})
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var collected []indexedFrame
	for r := range results {
		collected = append(collected, r)
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	slices.SortFunc(collected, func(a, b indexedFrame) int {
		return a.index - b.index
	})

	frames := make([]Frame, len(collected))
	for i, r := range collected {
		frames[i] = r.frame
	}
	return frames, nil
}
