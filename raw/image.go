package raw

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/tiff"
)

// openImage 读取单通道 16/8-bit TIFF 或 PNG mosaic（例如 dcraw -D -4 -T 的输出）
func openImage(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var img image.Image
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	switch format {
	case "png":
		img, err = png.Decode(f)
	default:
		format = "tiff"
		img, err = tiff.Decode(f)
	}
	if err != nil {
		return nil, fmt.Errorf("%s 解码失败: %w", format, err)
	}

	grid, err := gridFromImage(img)
	if err != nil {
		return nil, err
	}
	return NewMemSource(grid, Info{Format: format, BitDepth: grid.BitDepth}), nil
}

// gridFromImage 只接受灰度图像，彩色图像已经过去马赛克，不再是 CFA 数据
func gridFromImage(img image.Image) (*Grid, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("图像为空")
	}

	switch m := img.(type) {
	case *image.Gray16:
		grid := NewGrid(w, h, 16)
		for y := 0; y < h; y++ {
			row := m.Pix[y*m.Stride : y*m.Stride+w*2]
			for x := 0; x < w; x++ {
				grid.Pix[y*w+x] = uint16(row[x*2])<<8 | uint16(row[x*2+1])
			}
		}
		return grid, nil
	case *image.Gray:
		grid := NewGrid(w, h, 8)
		for y := 0; y < h; y++ {
			row := m.Pix[y*m.Stride : y*m.Stride+w]
			for x := 0; x < w; x++ {
				grid.Pix[y*w+x] = uint16(row[x])
			}
		}
		return grid, nil
	default:
		return nil, fmt.Errorf("需要单通道 mosaic，实际颜色模型为 %T", img.ColorModel())
	}
}
