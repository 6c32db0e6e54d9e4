package raw

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type opener func(path string) (Source, error)

// 按扩展名分派的解码器，libraw 等 cgo 解码器通过 build tag 在 init 中注册
var openers = map[string]opener{
	".tif":  openImage,
	".tiff": openImage,
	".png":  openImage,
	".fit":  openFITS,
	".fits": openFITS,
	".fts":  openFITS,
}

// 未匹配扩展名时使用（gocv build tag 下为 OpenCV）
var fallbackOpener opener

// Open 打开并解码一个 RAW mosaic 文件
// 返回的 Source 必须由调用方 Close
func Open(path string) (Source, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}

	ext := strings.ToLower(filepath.Ext(path))
	open, ok := openers[ext]
	if !ok {
		open = fallbackOpener
	}
	if open == nil {
		return nil, &DecodeError{
			Path: path,
			Err:  fmt.Errorf("不支持的输入格式 %q (支持: %s)", ext, strings.Join(SupportedExtensions(), " ")),
		}
	}

	src, err := open(path)
	if err != nil {
		var de *DecodeError
		if errors.As(err, &de) {
			return nil, err
		}
		return nil, &DecodeError{Path: path, Err: err}
	}
	debug("raw.Open: %s → %+v", path, src.Info())
	return src, nil
}

// SupportedExtensions 列出当前构建可识别的扩展名
func SupportedExtensions() []string {
	exts := make([]string, 0, len(openers))
	for ext := range openers {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
