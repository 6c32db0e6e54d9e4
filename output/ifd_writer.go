package output

import (
	"encoding/binary"
	"io"
)

const ifdEntryLen = 12

// IFDWriter 把 TagSet 序列化为一个 IFD
// 借鉴 chai2010/tiff 的设计:
// 1. 统一的数据存储格式
// 2. 自动判断内联(<= 4 字节)
// 3. 超出部分写入紧跟 IFD 的 pointer area，按字对齐
type IFDWriter struct {
	entries  []*TagEntry
	startPos uint32
	next     uint32
}

// NewIFDWriter 创建写入器，startPos 为 IFD 在文件中的偏移
func NewIFDWriter(tags *TagSet, startPos uint32) *IFDWriter {
	return &IFDWriter{
		entries:  tags.Entries(),
		startPos: startPos,
	}
}

// SetNextIFD 设置下一个 IFD 的偏移（默认 0 = 没有更多 IFD）
func (w *IFDWriter) SetNextIFD(offset uint32) {
	w.next = offset
}

// pareaLen 外部数据长度，补齐到偶数
func pareaLen(e *TagEntry) int {
	n := e.byteLen()
	if n <= 4 {
		return 0
	}
	return n + n&1
}

// Size IFD 加上 pointer area 的总字节数
func (w *IFDWriter) Size() uint32 {
	size := 2 + len(w.entries)*ifdEntryLen + 4
	for _, e := range w.entries {
		size += pareaLen(e)
	}
	return uint32(size)
}

// End IFD 写完后的文件位置
func (w *IFDWriter) End() uint32 {
	return w.startPos + w.Size()
}

// putData 将 uint32 数组写入字节缓冲区
func (e *TagEntry) putData(p []byte) {
	for _, d := range e.Data {
		switch e.Type {
		case TypeByte, TypeASCII, TypeSByte, TypeUndefined:
			p[0] = byte(d)
			p = p[1:]
		case TypeShort, TypeSShort:
			binary.LittleEndian.PutUint16(p, uint16(d))
			p = p[2:]
		default:
			binary.LittleEndian.PutUint32(p, d)
			p = p[4:]
		}
	}
}

// WriteTo 写入 IFD 和所有数据
func (w *IFDWriter) WriteTo(out io.Writer) (int64, error) {
	numEntries := len(w.entries)
	ifd := make([]byte, 2+numEntries*ifdEntryLen+4)
	parea := make([]byte, 0, int(w.Size())-len(ifd))
	pareaOffset := w.startPos + uint32(len(ifd))

	binary.LittleEndian.PutUint16(ifd[0:2], uint16(numEntries))

	for i, entry := range w.entries {
		buf := ifd[2+i*ifdEntryLen : 2+(i+1)*ifdEntryLen]
		binary.LittleEndian.PutUint16(buf[0:2], entry.Tag)
		binary.LittleEndian.PutUint16(buf[2:4], entry.Type)
		binary.LittleEndian.PutUint32(buf[4:8], entry.Count)

		if entry.byteLen() <= 4 {
			// 内联: 直接写入 value 字段
			entry.putData(buf[8:12])
			continue
		}

		// 外部: 写入指针
		binary.LittleEndian.PutUint32(buf[8:12], pareaOffset+uint32(len(parea)))
		start := len(parea)
		parea = append(parea, make([]byte, pareaLen(entry))...)
		entry.putData(parea[start:])
	}

	// Next IFD offset
	binary.LittleEndian.PutUint32(ifd[len(ifd)-4:], w.next)

	n, err := out.Write(ifd)
	if err != nil {
		return int64(n), err
	}
	m, err := out.Write(parea)
	return int64(n + m), err
}
