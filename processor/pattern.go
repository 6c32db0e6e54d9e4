package processor

import (
	"fmt"
	"strings"
)

// Pattern 2x2 Bayer 滤色片排列，按行主序命名（左上、右上、左下、右下）
type Pattern int

const (
	RGGB Pattern = iota
	BGGR
	GRBG
	GBRG
)

var patternNames = [...]string{"RGGB", "BGGR", "GRBG", "GBRG"}

func (p Pattern) String() string {
	if p < 0 || int(p) >= len(patternNames) {
		return fmt.Sprintf("Pattern(%d)", int(p))
	}
	return patternNames[p]
}

// quad 返回 R、G1、G2、B 在 2x2 块中的下标
// 下标 0..3 依次对应 (0,0) (0,1) (1,0) (1,1)
func (p Pattern) quad() (r, g1, g2, b int) {
	switch p {
	case BGGR:
		return 3, 1, 2, 0
	case GRBG:
		return 1, 0, 3, 2
	case GBRG:
		return 2, 0, 3, 1
	default:
		return 0, 1, 2, 3
	}
}

// ParsePattern 解析 "RGGB" 等名称，不区分大小写
func ParsePattern(s string) (Pattern, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for i, n := range patternNames {
		if n == name {
			return Pattern(i), nil
		}
	}
	return RGGB, fmt.Errorf("不支持的 Bayer 排列 %q (可用: %s)", s, strings.Join(patternNames[:], ", "))
}
