package output

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// PostWriteHook 在容器写入成功后调用，用于把 src 的元数据复制到 dst
type PostWriteHook func(ctx context.Context, src, dst string) error

// FindExifTool 查找 exiftool，找不到返回空字符串
func FindExifTool() string {
	if path, err := exec.LookPath("exiftool"); err == nil {
		return path
	}
	return ""
}

// ExifToolHook 用 exiftool 复制全部可写标签
// path 为空时在 PATH 中查找
func ExifToolHook(path string) PostWriteHook {
	return func(ctx context.Context, src, dst string) error {
		bin := path
		if bin == "" {
			bin = FindExifTool()
		}
		if bin == "" {
			return fmt.Errorf("未找到 exiftool")
		}

		cmd := exec.CommandContext(ctx, bin,
			"-overwrite_original",
			"-tagsfromfile", src,
			"-all:all",
			dst,
		)
		out, err := cmd.CombinedOutput()
		if err != nil {
			return fmt.Errorf("exiftool 失败: %w: %s", err, bytes.TrimSpace(out))
		}
		debug("exiftool: %s", bytes.TrimSpace(out))
		return nil
	}
}
