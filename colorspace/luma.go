package colorspace

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// LumaWeights 亮度合成系数，Y = R*R + G*G + B*B
type LumaWeights struct {
	R, G, B float64
}

// 标准亮度系数
var (
	// Rec709 即 sRGB → XYZ 矩阵的 Y 行 (D65)
	Rec709 = LumaWeights{R: 0.2126, G: 0.7152, B: 0.0722}
	// Rec601 SDTV / JPEG 使用的系数
	Rec601 = LumaWeights{R: 0.299, G: 0.587, B: 0.114}
	// Rec2020 UHDTV
	Rec2020 = LumaWeights{R: 0.2627, G: 0.6780, B: 0.0593}
)

var presets = map[string]LumaWeights{
	"rec709":  Rec709,
	"bt709":   Rec709,
	"srgb":    Rec709,
	"rec601":  Rec601,
	"bt601":   Rec601,
	"rec2020": Rec2020,
	"bt2020":  Rec2020,
}

// Sum 返回系数之和，标准预设均为 1
func (w LumaWeights) Sum() float64 {
	return floats.Sum([]float64{w.R, w.G, w.B})
}

// Normalized 缩放系数使其和为 1
func (w LumaWeights) Normalized() LumaWeights {
	s := w.Sum()
	if s == 0 {
		return w
	}
	return LumaWeights{R: w.R / s, G: w.G / s, B: w.B / s}
}

// Validate 拒绝负数、NaN 和全零系数
func (w LumaWeights) Validate() error {
	for _, v := range []float64{w.R, w.G, w.B} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("亮度系数无效: %v", w)
		}
	}
	if w.Sum() == 0 {
		return fmt.Errorf("亮度系数全为 0")
	}
	return nil
}

func (w LumaWeights) String() string {
	for _, name := range []string{"rec709", "rec601", "rec2020"} {
		if presets[name] == w {
			return name
		}
	}
	return fmt.Sprintf("%g,%g,%g", w.R, w.G, w.B)
}

// ParseLumaWeights 解析预设名 (rec709, rec601, rec2020) 或 "r,g,b"
func ParseLumaWeights(s string) (LumaWeights, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.ReplaceAll(key, ".", "")
	key = strings.ReplaceAll(key, "-", "")
	if w, ok := presets[key]; ok {
		return w, nil
	}

	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return LumaWeights{}, fmt.Errorf("无法识别的亮度系数 %q (可用: rec709, rec601, rec2020 或 r,g,b)", s)
	}
	var vals [3]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return LumaWeights{}, fmt.Errorf("亮度系数 %q: %w", p, err)
		}
		vals[i] = v
	}
	w := LumaWeights{R: vals[0], G: vals[1], B: vals[2]}
	if err := w.Validate(); err != nil {
		return LumaWeights{}, err
	}
	return w, nil
}
