package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/weaming/raw2mono-go/colorspace"
	"github.com/weaming/raw2mono-go/output"
	"github.com/weaming/raw2mono-go/processor"
	"github.com/weaming/raw2mono-go/raw"
)

func main() {
	config, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
	if config == nil {
		return
	}

	if err := run(config); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

// parseFlags 返回 nil config 表示只打印版本或帮助
func parseFlags(args []string) (*output.Config, error) {
	config := output.DefaultConfig()
	fs := flag.NewFlagSet("raw2mono", flag.ContinueOnError)

	var (
		weights     = fs.String("weights", "rec709", "亮度系数: rec709, rec601, rec2020 或 r,g,b")
		pattern     = fs.String("pattern", "RGGB", "Bayer 排列: RGGB, BGGR, GRBG, GBRG")
		photometric = fs.String("photometric", "minisblack", "TIFF 光度解释: minisblack, miniswhite")
		bits        = fs.Uint("bits", uint(processor.MaxBitDepth), "输出位深 (1-16)")
		version     = fs.Bool("version", false, "打印版本")
	)

	fs.StringVar(&config.Input, "input", "", "输入 RAW 文件 (必需)")
	fs.StringVar(&config.Output, "output", "", "输出文件 .dng / .tif (必需)")
	fs.StringVar(&config.Format, "format", "", "输出格式: dng, tiff (默认按扩展名)")
	fs.Float64Var(&config.Gain, "gain", processor.DefaultGain, "量化增益")
	fs.BoolVar(&config.TrimOdd, "trim-odd", false, "奇数尺寸时丢弃最后一行/列")
	fs.IntVar(&config.Workers, "workers", config.Workers, "降采样 worker 数")
	fs.IntVar(&config.TileSize, "tile", 0, "tile 边长 (16 的倍数)，0 = DNG 单 tile / TIFF strip")
	fs.IntVar(&config.RowsPerStrip, "rows-per-strip", 0, "TIFF 每个 strip 的行数，0 = 单 strip")
	fs.StringVar(&config.Make, "make", "", "Make 标签 (默认取自输入文件)")
	fs.StringVar(&config.Model, "model", "", "Model 标签 (默认取自输入文件)")
	fs.BoolVar(&config.NoExif, "no-exif", false, "不调用 exiftool 复制元数据")
	fs.StringVar(&config.ExifTool, "exiftool", "", "exiftool 路径 (默认在 PATH 中查找)")
	fs.BoolVar(&config.Verbose, "v", false, "详细输出")
	fs.BoolVar(&config.DumpMeta, "meta", false, "写入后输出标签到 <输出文件>.meta")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "raw2mono version %s\n", raw.Version)
		fmt.Fprintf(os.Stderr, "\n把 Bayer RAW 转换为单通道 16-bit DNG / TIFF\n\n")
		fmt.Fprintf(os.Stderr, "用法: raw2mono --input <RAW> --output <输出.dng|.tif> [选项]\n\n")
		fmt.Fprintf(os.Stderr, "选项:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\n支持的输入: %s\n", strings.Join(raw.SupportedExtensions(), " "))
		fmt.Fprintf(os.Stderr, "\n示例:\n")
		fmt.Fprintf(os.Stderr, "  raw2mono --input IMG_0001.CR2 --output mono.dng\n")
		fmt.Fprintf(os.Stderr, "  raw2mono --input frame.fits --output mono.tif -pattern GRBG -gain 2\n")
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, nil
		}
		return nil, err
	}
	if *version {
		fmt.Printf("raw2mono %s\n", raw.Version)
		return nil, nil
	}

	if config.Input == "" {
		return nil, fmt.Errorf("必须指定输入文件 (--input)")
	}
	if config.Output == "" {
		return nil, fmt.Errorf("必须指定输出文件 (--output)")
	}
	if _, err := os.Stat(config.Input); err != nil {
		return nil, fmt.Errorf("输入文件不存在: %s", config.Input)
	}

	var err error
	if config.Weights, err = colorspace.ParseLumaWeights(*weights); err != nil {
		return nil, err
	}
	if config.Pattern, err = processor.ParsePattern(*pattern); err != nil {
		return nil, err
	}
	if config.Photometric, err = output.ParsePhotometric(*photometric); err != nil {
		return nil, err
	}
	if *bits == 0 || *bits > processor.MaxBitDepth {
		return nil, &processor.InvalidBitDepthError{BitDepth: uint8(min(*bits, 255))}
	}
	config.BitDepth = uint8(*bits)
	if _, err := config.OutputFormat(); err != nil {
		return nil, err
	}
	return &config, nil
}

func run(config *output.Config) error {
	logger := raw.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var hook output.PostWriteHook
	if !config.NoExif {
		if config.ExifTool == "" && output.FindExifTool() == "" {
			logger.Warn("未找到 exiftool，跳过元数据复制")
		} else {
			hook = output.ExifToolHook(config.ExifTool)
		}
	}

	res, err := output.Convert(ctx, *config, hook, logger)
	if err != nil {
		return err
	}
	if config.Verbose {
		logger.Info("输出: %s (%s, %dx%d, %d bit)", res.Output, res.Format, res.Width, res.Height, res.BitDepth)
	}

	if config.DumpMeta {
		if err := dumpMetadata(config); err != nil {
			return err
		}
	}

	logger.Total()
	return nil
}
