//go:build gocv

package raw

import (
	"fmt"

	"gocv.io/x/gocv"
)

func init() {
	fallbackOpener = openOpenCV
}

// openOpenCV 读取 OpenCV 能识别的其他单通道格式（保持原始位深）
func openOpenCV(path string) (Source, error) {
	src := gocv.IMRead(path, gocv.IMReadUnchanged)
	if src.Empty() {
		return nil, fmt.Errorf("could not load image: %s", path)
	}
	defer src.Close()

	if src.Channels() != 1 {
		return nil, fmt.Errorf("需要单通道 mosaic，实际 %d 通道", src.Channels())
	}
	if !src.IsContinuous() {
		cont := src.Clone()
		defer cont.Close()
		src = cont
	}

	w, h := src.Cols(), src.Rows()
	var grid *Grid
	switch src.Type() {
	case gocv.MatTypeCV16UC1:
		data, err := src.DataPtrUint16()
		if err != nil {
			return nil, err
		}
		grid = NewGrid(w, h, 16)
		copy(grid.Pix, data[:w*h])
	case gocv.MatTypeCV8UC1:
		data, err := src.DataPtrUint8()
		if err != nil {
			return nil, err
		}
		grid = NewGrid(w, h, 8)
		for i, v := range data[:w*h] {
			grid.Pix[i] = uint16(v)
		}
	default:
		return nil, fmt.Errorf("不支持的 Mat 类型: %v", src.Type())
	}

	return NewMemSource(grid, Info{Format: "opencv", BitDepth: grid.BitDepth}), nil
}
