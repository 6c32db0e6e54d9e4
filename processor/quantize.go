package processor

import (
	"fmt"
	"image"
	"math"
)

// DefaultGain 默认亮度增益
//
// 四个样本加权平均后动态范围偏低，乘以 4 把结果推回接近满量程。
// 这只是经验值，不是校准过的曝光模型。
const DefaultGain = 4.0

// MaxBitDepth QuantizedRaster 的存储位宽
const MaxBitDepth = 16

// QuantizedRaster 定点无符号单通道栅格
// 所有样本都在 [0, 2^BitDepth-1] 内
type QuantizedRaster struct {
	Width    int
	Height   int
	BitDepth uint8
	Pix      []uint16 // 行主序
}

// NewQuantizedRaster 分配全零栅格
func NewQuantizedRaster(width, height int, bitDepth uint8) *QuantizedRaster {
	return &QuantizedRaster{
		Width:    width,
		Height:   height,
		BitDepth: bitDepth,
		Pix:      make([]uint16, width*height),
	}
}

// At 返回 (x, y) 处的样本
func (q *QuantizedRaster) At(x, y int) uint16 {
	return q.Pix[y*q.Width+x]
}

// MaxValue 2^BitDepth-1
func (q *QuantizedRaster) MaxValue() uint16 {
	return maxSampleValue(q.BitDepth)
}

// Gray16 转换为 image.Gray16（大端 Pix）
func (q *QuantizedRaster) Gray16() *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, q.Width, q.Height))
	for i, v := range q.Pix {
		img.Pix[i*2] = uint8(v >> 8)
		img.Pix[i*2+1] = uint8(v)
	}
	return img
}

// InvalidBitDepthError 位深为 0 或超过存储位宽
type InvalidBitDepthError struct {
	BitDepth uint8
}

func (e *InvalidBitDepthError) Error() string {
	return fmt.Sprintf("无效位深 %d (有效范围 1-%d)", e.BitDepth, MaxBitDepth)
}

// InvalidGainError 增益为负数、NaN 或无穷大
type InvalidGainError struct {
	Gain float64
}

func (e *InvalidGainError) Error() string {
	return fmt.Sprintf("无效增益 %v", e.Gain)
}

func maxSampleValue(bitDepth uint8) uint16 {
	return uint16(uint32(1)<<bitDepth - 1)
}

// ValidateBitDepth 检查位深是否在 [1, 16]
func ValidateBitDepth(bitDepth uint8) error {
	if bitDepth == 0 || bitDepth > MaxBitDepth {
		return &InvalidBitDepthError{BitDepth: bitDepth}
	}
	return nil
}

// Quantize 每个样本 = floor(luma*gain)，然后钳位到 [0, 2^bitDepth-1]
// 溢出必须钳位而不是回绕，否则高光会变成接近黑色
func Quantize(luma *LumaRaster, bitDepth uint8, gain float64) (*QuantizedRaster, error) {
	if err := ValidateBitDepth(bitDepth); err != nil {
		return nil, err
	}
	if gain < 0 || math.IsNaN(gain) || math.IsInf(gain, 0) {
		return nil, &InvalidGainError{Gain: gain}
	}
	if luma == nil || len(luma.Pix) != luma.Width*luma.Height {
		return nil, fmt.Errorf("亮度栅格无效")
	}

	out := NewQuantizedRaster(luma.Width, luma.Height, bitDepth)
	maxOut := float64(maxSampleValue(bitDepth))

	for i, l := range luma.Pix {
		out.Pix[i] = quantizeSample(l*gain, maxOut)
	}
	return out, nil
}

func quantizeSample(v, maxOut float64) uint16 {
	v = math.Floor(v)
	switch {
	case !(v > 0): // 负数和 NaN
		return 0
	case v >= maxOut:
		return uint16(maxOut)
	default:
		return uint16(v)
	}
}
