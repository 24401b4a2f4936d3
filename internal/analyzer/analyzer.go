package analyzer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"song-fingerprint/internal/decoder"
	"song-fingerprint/internal/fingerprint"
	"song-fingerprint/internal/log"
	"song-fingerprint/internal/output"
	"song-fingerprint/internal/types"

	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
)

const (
	StatusOK    = "OK"
	StatusError = "ERROR"
)

// Analyzer 批量生成音频指纹
type Analyzer struct {
	config          *types.AnalyzerConfig
	decoderRegistry *decoder.DecoderRegistry
}

// NewAnalyzer 创建新的分析器
func NewAnalyzer(config *types.AnalyzerConfig) *Analyzer {
	return &Analyzer{
		config:          config,
		decoderRegistry: decoder.NewDecoderRegistry(),
	}
}

// Registry 返回解码器注册表
func (a *Analyzer) Registry() *decoder.DecoderRegistry {
	return a.decoderRegistry
}

// AnalyzeFiles 为多个音频文件生成指纹，任一文件失败时返回错误
func (a *Analyzer) AnalyzeFiles(ctx context.Context, filePaths []string) ([]*types.AnalysisResult, error) {
	// 创建进度条
	var bar *progressbar.ProgressBar
	if !a.config.Quiet && len(filePaths) > 1 {
		bar = progressbar.NewOptions(len(filePaths),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("生成音频指纹"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(50),
			progressbar.OptionShowIts(),
		)
	}

	concurrency := a.config.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	// 创建工作通道
	jobs := make(chan string, len(filePaths))
	results := make(chan *types.AnalysisResult, len(filePaths))

	// 启动工作协程
	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for filePath := range jobs {
				result := a.analyzeFile(ctx, filePath)
				results <- result
				if bar != nil {
					bar.Add(1)
				}
			}
		}()
	}

	// 发送任务
	go func() {
		for _, filePath := range filePaths {
			jobs <- filePath
		}
		close(jobs)
	}()

	// 等待所有任务完成
	go func() {
		wg.Wait()
		close(results)
	}()

	// 收集结果，输出在这里串行写出
	var allResults []*types.AnalysisResult
	for result := range results {
		if result.Status == StatusOK {
			if err := a.writeOutput(result); err != nil {
				result.Status = StatusError
				result.Error = err.Error()
			}
		}
		result.Fingerprint = nil
		allResults = append(allResults, result)
		a.reportResult(result)
	}

	if bar != nil {
		bar.Finish()
		fmt.Fprintln(os.Stderr)
	}

	failed := 0
	for _, result := range allResults {
		if result.Status == StatusError {
			failed++
		}
	}

	if !a.config.Quiet && len(allResults) > 1 {
		a.printSummary(allResults)
	}

	if failed > 0 {
		return allResults, fmt.Errorf("%d 个文件处理失败", failed)
	}
	return allResults, nil
}

// analyzeFile 为单个音频文件生成指纹
func (a *Analyzer) analyzeFile(ctx context.Context, filePath string) *types.AnalysisResult {
	result := &types.AnalysisResult{
		FilePath: filePath,
		Status:   StatusError,
	}

	// 解码音频文件
	audioFile, err := a.decoderRegistry.DecodeFile(filePath, a.config.Channel)
	if err != nil {
		result.Error = fmt.Sprintf("解码失败: %v", err)
		return result
	}
	defer audioFile.Close()

	// 填充基本信息
	result.Format = audioFile.GetFormat()
	result.Metadata = audioFile.GetMetadata()
	result.Stream = types.StreamDetails{
		SampleRate: audioFile.GetSampleRate(),
		BitDepth:   audioFile.GetBitDepth(),
		Channels:   audioFile.GetChannels(),
		Channel:    a.config.Channel,
		Duration:   audioFile.GetDuration().Seconds(),
		WindowSize: a.config.Fingerprint.WindowSize,
	}

	fp, err := FingerprintFile(ctx, audioFile, a.config.Fingerprint)
	if err != nil {
		result.Error = fmt.Sprintf("指纹提取失败: %v", err)
		return result
	}

	result.Stream.Frames = len(fp.Frames)
	result.Fingerprint = fp
	result.Status = StatusOK
	return result
}

// FingerprintFile 对已打开的音频文件运行指纹流水线
func FingerprintFile(ctx context.Context, audioFile types.AudioFile, config fingerprint.Config) (*fingerprint.SongFingerprint, error) {
	fingerprinter, err := fingerprint.New(config, audioFile.GetSampleRate())
	if err != nil {
		return nil, err
	}

	fp, err := fingerprinter.Run(ctx, audioFile)
	if err != nil {
		return nil, err
	}

	log.Logger.WithFields(logrus.Fields{
		"channels":        audioFile.GetChannels(),
		"sample_rate":     audioFile.GetSampleRate(),
		"bits_per_sample": audioFile.GetBitDepth(),
		"duration":        audioFile.GetDuration().Seconds(),
		"frames":          len(fp.Frames),
	}).Info("指纹生成完成")

	return fp, nil
}

// OutputPath 返回音频文件对应的指纹输出路径，输出到标准输出时为空
func (a *Analyzer) OutputPath(filePath string) string {
	if a.config.OutputDir == "" || a.config.OutputDir == "-" {
		return ""
	}
	base := strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
	return filepath.Join(a.config.OutputDir, base+output.Format(a.config.Format).Extension())
}

// writeOutput 写出指纹，失败时不保留不完整的文件
func (a *Analyzer) writeOutput(result *types.AnalysisResult) error {
	path := a.OutputPath(result.FilePath)
	if path == "" {
		sink, err := output.NewSink(output.Format(a.config.Format), os.Stdout)
		if err != nil {
			return err
		}
		return sink.Write(result.Fingerprint)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".fp-*")
	if err != nil {
		return fmt.Errorf("创建输出文件失败: %w", err)
	}
	defer os.Remove(tmp.Name())

	sink, err := output.NewSink(output.Format(a.config.Format), tmp)
	if err != nil {
		tmp.Close()
		return err
	}
	if err := sink.Write(result.Fingerprint); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", output.ErrWrite, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: %v", output.ErrWrite, err)
	}

	result.OutputPath = path
	return nil
}

// reportResult 报告单个文件的处理结果
func (a *Analyzer) reportResult(result *types.AnalysisResult) {
	entry := log.Logger.WithFields(logrus.Fields{
		"file":   filepath.Base(result.FilePath),
		"format": result.Format,
		"status": result.Status,
	})

	if result.Status == StatusError {
		entry.Error(result.Error)
		return
	}
	if a.config.Quiet {
		return
	}

	entry = entry.WithField("frames", result.Stream.Frames)
	if result.OutputPath != "" {
		entry = entry.WithField("output", result.OutputPath)
	}
	if result.Metadata.Title != "" {
		entry = entry.WithField("title", result.Metadata.Title)
	}
	if result.Metadata.Artist != "" {
		entry = entry.WithField("artist", result.Metadata.Artist)
	}
	entry.Info("已写出指纹")
}

// printSummary 打印统计摘要
func (a *Analyzer) printSummary(results []*types.AnalysisResult) {
	total := len(results)
	ok := 0
	errors := 0
	frames := 0

	for _, result := range results {
		switch result.Status {
		case StatusOK:
			ok++
			frames += result.Stream.Frames
		case StatusError:
			errors++
		}
	}

	fmt.Fprintf(os.Stderr, "\n=== 指纹统计 ===\n")
	fmt.Fprintf(os.Stderr, "总文件数: %d\n", total)
	fmt.Fprintf(os.Stderr, "成功: %d\n", ok)
	fmt.Fprintf(os.Stderr, "总帧数: %d\n", frames)
	if errors > 0 {
		fmt.Fprintf(os.Stderr, "失败: %d\n", errors)
	}
}
