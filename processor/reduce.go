package processor

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/weaming/raw2mono-go/colorspace"
	"github.com/weaming/raw2mono-go/raw"
)

// LumaRaster 每个 Bayer 2x2 块对应一个浮点亮度值
type LumaRaster struct {
	Width  int
	Height int
	Pix    []float64 // 行主序
}

// At 返回 (x, y) 处的亮度
func (l *LumaRaster) At(x, y int) float64 {
	return l.Pix[y*l.Width+x]
}

// ReduceOptions Bayer 降采样选项
type ReduceOptions struct {
	Pattern Pattern
	Weights colorspace.LumaWeights // 零值表示 Rec.709
	Workers int                    // <= 0 表示 runtime.NumCPU()
	// TrimOdd 为 true 时丢弃奇数尺寸的最后一行/列，否则返回 ShapeError
	TrimOdd bool
}

// DefaultReduceOptions RGGB + Rec.709
func DefaultReduceOptions() ReduceOptions {
	return ReduceOptions{
		Pattern: RGGB,
		Weights: colorspace.Rec709,
	}
}

// ShapeError 网格尺寸不满足 Bayer 2x2 假设
type ShapeError struct {
	Width  int
	Height int
	Reason string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("网格尺寸 %dx%d 无效: %s", e.Width, e.Height, e.Reason)
}

// Reduce 把每个 2x2 Bayer 块合成为一个亮度值:
//
//	L = R*wR + (G1+G2)/2*wG + B*wB
//
// 输出尺寸为 (W/2) x (H/2)。各 worker 写入互不重叠的输出行，无需加锁。
func Reduce(grid *raw.Grid, opts ReduceOptions) (*LumaRaster, error) {
	if grid == nil {
		return nil, &ShapeError{Reason: "网格为空"}
	}
	if grid.Width <= 0 || grid.Height <= 0 {
		return nil, &ShapeError{Width: grid.Width, Height: grid.Height, Reason: "尺寸为 0"}
	}
	if len(grid.Pix) != grid.Width*grid.Height {
		return nil, &ShapeError{Width: grid.Width, Height: grid.Height,
			Reason: fmt.Sprintf("样本数 %d 与尺寸不符", len(grid.Pix))}
	}

	width, height := grid.Width, grid.Height
	if width%2 != 0 || height%2 != 0 {
		if !opts.TrimOdd {
			return nil, &ShapeError{Width: width, Height: height, Reason: "宽和高必须为偶数"}
		}
		width &^= 1
		height &^= 1
		if width == 0 || height == 0 {
			return nil, &ShapeError{Width: grid.Width, Height: grid.Height, Reason: "裁剪后尺寸为 0"}
		}
		debug("Reduce: 裁剪奇数尺寸 %dx%d → %dx%d", grid.Width, grid.Height, width, height)
	}

	weights := opts.Weights
	if weights == (colorspace.LumaWeights{}) {
		weights = colorspace.Rec709
	}
	if err := weights.Validate(); err != nil {
		return nil, err
	}

	outW, outH := width/2, height/2
	out := &LumaRaster{
		Width:  outW,
		Height: outH,
		Pix:    make([]float64, outW*outH),
	}

	ir, ig1, ig2, ib := opts.Pattern.quad()
	stride := grid.Width

	reduceRows := func(startY, endY int) {
		var q [4]float64
		for y := startY; y < endY; y++ {
			top := grid.Pix[2*y*stride:]
			bottom := grid.Pix[(2*y+1)*stride:]
			dst := out.Pix[y*outW : (y+1)*outW]
			for x := range dst {
				q[0] = float64(top[2*x])
				q[1] = float64(top[2*x+1])
				q[2] = float64(bottom[2*x])
				q[3] = float64(bottom[2*x+1])
				// 显式转换阻止 FMA 融合，保证各架构结果一致
				dst[x] = float64(q[ir]*weights.R) + float64((q[ig1]+q[ig2])/2*weights.G) + float64(q[ib]*weights.B)
			}
		}
	}

	numWorkers := opts.Workers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if numWorkers > outH {
		numWorkers = outH
	}
	if numWorkers == 1 {
		reduceRows(0, outH)
		return out, nil
	}

	rowsPerWorker := outH / numWorkers
	var wg sync.WaitGroup

	for workerID := 0; workerID < numWorkers; workerID++ {
		wg.Add(1)

		startRow := workerID * rowsPerWorker
		endRow := startRow + rowsPerWorker
		if workerID == numWorkers-1 {
			endRow = outH
		}

		go func(startY, endY int) {
			defer wg.Done()
			reduceRows(startY, endY)
		}(startRow, endRow)
	}
	wg.Wait()

	return out, nil
}
