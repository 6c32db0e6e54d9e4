package processor

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Stats 栅格摘要，用于详细日志
type Stats struct {
	Min, Max     float64
	Mean, StdDev float64
	Clipped      int // 量化后等于最大值的样本数
}

func (s Stats) String() string {
	if s.Clipped > 0 {
		return fmt.Sprintf("min=%.1f max=%.1f mean=%.1f σ=%.1f 钳位=%d", s.Min, s.Max, s.Mean, s.StdDev, s.Clipped)
	}
	return fmt.Sprintf("min=%.1f max=%.1f mean=%.1f σ=%.1f", s.Min, s.Max, s.Mean, s.StdDev)
}

// Stats 计算亮度统计
func (l *LumaRaster) Stats() Stats {
	if len(l.Pix) == 0 {
		return Stats{}
	}
	mean, std := stat.MeanStdDev(l.Pix, nil)
	return Stats{
		Min:    floats.Min(l.Pix),
		Max:    floats.Max(l.Pix),
		Mean:   mean,
		StdDev: std,
	}
}

// Stats 计算量化样本统计，Clipped 为饱和样本数
func (q *QuantizedRaster) Stats() Stats {
	if len(q.Pix) == 0 {
		return Stats{}
	}
	vals := make([]float64, len(q.Pix))
	maxVal := q.MaxValue()
	clipped := 0
	for i, v := range q.Pix {
		vals[i] = float64(v)
		if v == maxVal {
			clipped++
		}
	}
	mean, std := stat.MeanStdDev(vals, nil)
	return Stats{
		Min:     floats.Min(vals),
		Max:     floats.Max(vals),
		Mean:    mean,
		StdDev:  std,
		Clipped: clipped,
	}
}
