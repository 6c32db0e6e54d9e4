package output

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/weaming/raw2mono-go/colorspace"
	"github.com/weaming/raw2mono-go/processor"
	"github.com/weaming/raw2mono-go/raw"
)

type Config struct {
	Input  string
	Output string
	// Format 为空时按输出扩展名判断
	Format       string
	Pattern      processor.Pattern
	Weights      colorspace.LumaWeights
	Gain         float64
	BitDepth     uint8
	TrimOdd      bool
	Workers      int
	TileSize     int // DNG/TIFF tile 边长，0 = 单 tile (DNG) 或 strip (TIFF)
	RowsPerStrip int
	Photometric  Photometric
	Make         string
	Model        string
	NoExif       bool   // 不调用元数据复制 hook
	ExifTool     string // exiftool 路径，为空时在 PATH 中查找
	Verbose      bool
	DumpMeta     bool
}

// DefaultConfig RGGB、Rec.709、增益 4、16 bit
func DefaultConfig() Config {
	return Config{
		Pattern:  processor.RGGB,
		Weights:  colorspace.Rec709,
		Gain:     processor.DefaultGain,
		BitDepth: processor.MaxBitDepth,
		Workers:  runtime.NumCPU(),
	}
}

// OutputFormat 返回实际使用的容器格式
func (c Config) OutputFormat() (Format, error) {
	if c.Format != "" {
		return ParseFormat(c.Format)
	}
	return FormatFromPath(c.Output)
}

func (c Config) writeOptions(format Format) WriteOptions {
	return WriteOptions{
		Format:       format,
		Photometric:  c.Photometric,
		TileWidth:    c.TileSize,
		TileLength:   c.TileSize,
		RowsPerStrip: c.RowsPerStrip,
	}
}

// Result 一次转换的摘要
type Result struct {
	Output    string
	Format    Format
	Width     int
	Height    int
	BitDepth  uint8
	Source    raw.Info
	Luma      processor.Stats
	Quantized processor.Stats
	// HookErr 元数据复制失败的原因，不影响转换结果
	HookErr error
}

// Convert 解码 → 降采样 → 量化 → 写入 → 元数据 hook
// hook 为 nil 时跳过元数据复制
func Convert(ctx context.Context, cfg Config, hook PostWriteHook, logger *raw.Logger) (*Result, error) {
	if logger == nil {
		logger = raw.NewNopLogger()
	}
	format, err := cfg.OutputFormat()
	if err != nil {
		return nil, err
	}
	if err := processor.ValidateBitDepth(cfg.BitDepth); err != nil {
		return nil, err
	}

	luma, info, err := decodeAndReduce(cfg, logger)
	if err != nil {
		return nil, err
	}
	res := &Result{Output: cfg.Output, Format: format, Source: info}
	if cfg.Verbose {
		res.Luma = luma.Stats()
		logger.Info("亮度: %s", res.Luma)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 量化
	logger.Step("量化", fmt.Sprintf("增益=%g, %d bit", cfg.Gain, cfg.BitDepth))
	quantized, err := processor.Quantize(luma, cfg.BitDepth, cfg.Gain)
	if err != nil {
		logger.Fail(err)
		return nil, err
	}
	res.Width, res.Height, res.BitDepth = quantized.Width, quantized.Height, quantized.BitDepth
	res.Quantized = quantized.Stats()
	if res.Quantized.Clipped > 0 {
		logger.Done(fmt.Sprintf("%d 个样本钳位到 %d", res.Quantized.Clipped, quantized.MaxValue()))
	} else {
		logger.Done("完成")
	}
	if cfg.Verbose {
		logger.Info("量化: %s", res.Quantized)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 写入
	logger.Step("写入 "+format.String(), filepath.Base(cfg.Output))
	if err := Write(quantized, cfg.tags(info), cfg.Output, cfg.writeOptions(format)); err != nil {
		logger.Fail(err)
		return nil, err
	}
	logger.Done(fmt.Sprintf("%dx%d", quantized.Width, quantized.Height))

	// 元数据
	if hook != nil && !cfg.NoExif {
		logger.Step("复制元数据")
		if err := hook(ctx, cfg.Input, cfg.Output); err != nil {
			res.HookErr = err
			logger.Done("跳过")
			logger.Warn("元数据复制失败: %v", err)
		} else {
			logger.Done("完成")
		}
	}
	return res, nil
}

// decodeAndReduce 解码句柄只在降采样期间存在
func decodeAndReduce(cfg Config, logger *raw.Logger) (*processor.LumaRaster, raw.Info, error) {
	logger.Step("打开文件", filepath.Base(cfg.Input))
	src, err := raw.Open(cfg.Input)
	if err != nil {
		logger.Fail(err)
		return nil, raw.Info{}, err
	}
	defer src.Close()

	info := src.Info()
	grid := src.Grid()
	logger.Done(fmt.Sprintf("%s %dx%d %d bit", info.Format, grid.Width, grid.Height, info.BitDepth))

	if info.CFAPattern != "" && info.CFAPattern != cfg.Pattern.String() {
		logger.Warn("文件声明的 CFA 排列为 %s，按配置使用 %s", info.CFAPattern, cfg.Pattern)
	}
	if info.Make != "" || info.Model != "" {
		debug("Convert: 相机 %s %s", info.Make, info.Model)
	}

	logger.Step("Bayer 降采样", fmt.Sprintf("%s, %s", cfg.Pattern, cfg.Weights))
	luma, err := processor.Reduce(grid, processor.ReduceOptions{
		Pattern: cfg.Pattern,
		Weights: cfg.Weights,
		Workers: cfg.Workers,
		TrimOdd: cfg.TrimOdd,
	})
	if err != nil {
		logger.Fail(err)
		return nil, info, err
	}
	logger.Done(fmt.Sprintf("%dx%d", luma.Width, luma.Height))
	return luma, info, nil
}

// tags 调用方标签：设备信息和描述，结构标签由 Write 补齐
func (c Config) tags(info raw.Info) *TagSet {
	set := NewTagSet()
	if mk := firstNonEmpty(c.Make, info.Make); mk != "" {
		set.SetASCII(TagMake, mk)
	}
	if model := firstNonEmpty(c.Model, info.Model); model != "" {
		set.SetASCII(TagModel, model)
	}
	set.SetASCII(TagImageDescription, fmt.Sprintf("monochrome %s luma, %s, gain %g, from %s",
		c.Weights, c.Pattern, c.Gain, filepath.Base(c.Input)))
	return set
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
