package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"song-fingerprint/internal/analyzer"
	"song-fingerprint/internal/fingerprint"
	"song-fingerprint/internal/log"
	"song-fingerprint/internal/types"

	"github.com/spf13/cobra"
)

var (
	configFile  string
	logLevel    string
	quiet       bool
	windowSize  int
	bands       string
	bandUnit    string
	magnitude   string
	backend     string
	workers     int
	channel     int
	outputDir   string
	format      string
	concurrency int
	version     = "0.3.0"
)

var rootCmd = &cobra.Command{
	Use:   "song-fingerprint [path]",
	Short: "生成音频文件的频谱指纹",
	Long: `Song Fingerprint 把音频切分成固定大小的窗口，对每个窗口做FFT，
记录每个频带中幅度最大的频点，输出按时间排列的指纹序列。
当前支持 WAV, FLAC, MP3 格式。

每帧输出一行: <时间戳> [频点, 频点, ...]`,
	Args: cobra.ExactArgs(1),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initializeConfig(cmd); err != nil {
			return err
		}
		return log.SetLevel(logLevel)
	},
	RunE: runFingerprint,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "配置文件 (默认 ./song-fingerprint.yaml 或 $HOME/.config/song-fingerprint/)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "日志级别 (debug, info, warn, error)")

	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "静默模式，只输出错误")
	rootCmd.Flags().IntVarP(&windowSize, "window-size", "w", fingerprint.DefaultWindowSize, "分析窗口大小 (采样数)")
	rootCmd.Flags().StringVar(&bands, "bands", "", "频带列表 lower:length,... (默认 40:40,80:40,120:60,180:80,260:140)")
	rootCmd.Flags().StringVar(&bandUnit, "band-unit", string(fingerprint.UnitBin), "--bands 的单位 (bin, hz)，默认频带固定为 bin")
	rootCmd.Flags().StringVar(&magnitude, "magnitude", string(fingerprint.MagnitudeModulus), "幅度评分 (modulus, real)")
	rootCmd.Flags().StringVar(&backend, "backend", string(fingerprint.BackendGoDSP), "FFT实现 (go-dsp, gonum)")
	rootCmd.Flags().IntVar(&workers, "workers", 1, "每个文件并行处理窗口的协程数")
	rootCmd.Flags().IntVarP(&channel, "channel", "c", 0, "使用的声道 (从0开始)")
	rootCmd.Flags().StringVarP(&outputDir, "output", "o", "-", "输出目录，- 表示标准输出")
	rootCmd.Flags().StringVarP(&format, "format", "f", "text", "输出格式 (text, json)")
	rootCmd.Flags().IntVarP(&concurrency, "concurrency", "j", runtime.NumCPU(), "并发处理文件数量")
	rootCmd.Flags().BoolP("version", "v", false, "显示版本信息")

	rootCmd.SetVersionTemplate("song-fingerprint version {{.Version}}\n")
	rootCmd.Version = version
}

func runFingerprint(cmd *cobra.Command, args []string) error {
	targetPath := args[0]

	// 检查路径是否存在
	if _, err := os.Stat(targetPath); os.IsNotExist(err) {
		return fmt.Errorf("路径不存在: %s", targetPath)
	}

	config, err := buildConfig()
	if err != nil {
		return err
	}

	fingerprinter := analyzer.NewAnalyzer(config)

	// 收集音频文件
	files, err := collectAudioFiles(targetPath, fingerprinter)
	if err != nil {
		return fmt.Errorf("收集音频文件失败: %w", err)
	}

	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "未找到支持的音频文件")
		return nil
	}
	if len(files) > 1 && config.OutputDir == "-" {
		return fmt.Errorf("处理多个文件时需要用 --output 指定输出目录")
	}

	_, err = fingerprinter.AnalyzeFiles(context.Background(), files)
	return err
}

// buildConfig 把命令行参数转换成分析器配置
func buildConfig() (*types.AnalyzerConfig, error) {
	specs, err := fingerprint.ParseBandSpecs(bands, fingerprint.BandUnit(bandUnit))
	if err != nil {
		return nil, err
	}

	fpConfig := fingerprint.DefaultConfig()
	fpConfig.WindowSize = windowSize
	if len(specs) > 0 {
		fpConfig.Bands = specs
	} else if fingerprint.BandUnit(bandUnit) != fingerprint.UnitBin {
		// 默认频带以频点为单位，不能换算成其他单位
		return nil, fmt.Errorf("%w: --band-unit %s 需要同时用 --bands 指定频带", fingerprint.ErrInvalidBand, bandUnit)
	}
	fpConfig.Magnitude = fingerprint.MagnitudeMode(magnitude)
	fpConfig.Backend = fingerprint.Backend(backend)
	fpConfig.Workers = workers

	// 与采样率无关的部分在读取文件前校验
	if fpConfig.WindowSize <= 0 {
		return nil, fmt.Errorf("%w: 窗口大小必须为正数 (%d)", fingerprint.ErrInvalidConfig, fpConfig.WindowSize)
	}
	if _, err := fingerprint.ScoreFuncFor(fpConfig.Magnitude); err != nil {
		return nil, err
	}
	if _, err := fingerprint.NewTransformer(fpConfig.Backend, 1); err != nil {
		return nil, err
	}
	switch format {
	case "text", "json":
	default:
		return nil, fmt.Errorf("不支持的输出格式: %s", format)
	}

	return &types.AnalyzerConfig{
		Fingerprint: fpConfig,
		Channel:     channel,
		OutputDir:   outputDir,
		Format:      format,
		Concurrency: concurrency,
		Quiet:       quiet,
	}, nil
}

func collectAudioFiles(path string, a *analyzer.Analyzer) ([]string, error) {
	var files []string

	err := filepath.Walk(path, func(filePath string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			return nil
		}

		if a.Registry().Supports(filePath) {
			files = append(files, filePath)
		}

		return nil
	})

	return files, err
}
