package main

import (
	"fmt"
	"io"
	"os"

	"github.com/weaming/raw2mono-go/output"
)

func dumpMetadata(config *output.Config) error {
	tags, err := output.ReadFile(config.Output)
	if err != nil {
		return fmt.Errorf("无法读取输出文件标签: %w", err)
	}

	outputPath := config.Output + ".meta"
	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("无法创建元数据文件: %w", err)
	}
	defer f.Close()

	fmt.Fprintf(f, "BEGIN: IFD0 of %s\n\n", config.Output)
	writeTags(f, tags)
	fmt.Fprintf(f, "\nEND: IFD0\n")

	fmt.Printf("   : Dump META DATA to %s\n", outputPath)
	return nil
}

func writeTags(w io.Writer, tags *output.TagSet) {
	for _, e := range tags.Entries() {
		fmt.Fprintf(w, "  %5d %-26s type=%-2d count=%-6d %s\n",
			e.Tag, output.TagName(e.Tag), e.Type, e.Count, tagValue(e))
	}
}

// tagValue 长数组只显示前几个值
func tagValue(e *output.TagEntry) string {
	switch e.Type {
	case output.TypeASCII:
		return fmt.Sprintf("%q", e.String())
	case output.TypeRational, output.TypeSRational:
		if len(e.Data) >= 2 {
			return fmt.Sprintf("%d/%d", e.Data[0], e.Data[1])
		}
	}
	const maxShown = 8
	if len(e.Data) > maxShown {
		return fmt.Sprintf("%v ... (%d)", e.Data[:maxShown], len(e.Data))
	}
	return fmt.Sprint(e.Data)
}
