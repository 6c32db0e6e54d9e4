package output

import (
	"fmt"
	"sort"
	"strings"
)

// TagEntry IFD 标签条目(统一格式)
type TagEntry struct {
	Tag   uint16
	Type  uint16
	Count uint32
	Data  []uint32 // 统一用 uint32 数组存储(RATIONAL = 2个uint32)
}

// byteSizeForType 返回每个数据类型的字节大小
func byteSizeForType(typ uint16) int {
	switch typ {
	case TypeByte, TypeASCII, TypeSByte, TypeUndefined:
		return 1
	case TypeShort, TypeSShort:
		return 2
	case TypeLong, TypeSLong, TypeFloat:
		return 4
	case TypeRational, TypeSRational, TypeDouble:
		return 8
	default:
		return 0
	}
}

// byteLen 数据区总字节数
func (e *TagEntry) byteLen() int {
	return int(e.Count) * byteSizeForType(e.Type)
}

// Uint 返回第一个值
func (e *TagEntry) Uint() uint32 {
	if len(e.Data) == 0 {
		return 0
	}
	return e.Data[0]
}

// String 返回 ASCII 值（去掉结尾的 NUL）
func (e *TagEntry) String() string {
	if e.Type != TypeASCII {
		return fmt.Sprint(e.Data)
	}
	b := make([]byte, len(e.Data))
	for i, d := range e.Data {
		b[i] = byte(d)
	}
	return strings.TrimRight(string(b), "\x00")
}

// Bytes 返回 BYTE/UNDEFINED 值
func (e *TagEntry) Bytes() []byte {
	b := make([]byte, len(e.Data))
	for i, d := range e.Data {
		b[i] = byte(d)
	}
	return b
}

// TagSet 标签 ID → 值的映射，写出时按 tag 升序
// 重复设置同一个 tag 会覆盖之前的值
type TagSet struct {
	entries map[uint16]*TagEntry
}

// NewTagSet 创建空集合
func NewTagSet() *TagSet {
	return &TagSet{entries: make(map[uint16]*TagEntry)}
}

func (s *TagSet) set(e *TagEntry) {
	if s.entries == nil {
		s.entries = make(map[uint16]*TagEntry)
	}
	s.entries[e.Tag] = e
}

// Get 查找标签
func (s *TagSet) Get(tag uint16) (*TagEntry, bool) {
	if s == nil {
		return nil, false
	}
	e, ok := s.entries[tag]
	return e, ok
}

// Has 是否包含标签
func (s *TagSet) Has(tag uint16) bool {
	_, ok := s.Get(tag)
	return ok
}

// Delete 删除标签
func (s *TagSet) Delete(tag uint16) {
	delete(s.entries, tag)
}

// Len 标签数量
func (s *TagSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

// Entries 按 tag 升序返回所有条目
func (s *TagSet) Entries() []*TagEntry {
	if s == nil {
		return nil
	}
	out := make([]*TagEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Tag < out[j].Tag
	})
	return out
}

// Clone 深拷贝
func (s *TagSet) Clone() *TagSet {
	c := NewTagSet()
	if s == nil {
		return c
	}
	for tag, e := range s.entries {
		data := make([]uint32, len(e.Data))
		copy(data, e.Data)
		c.entries[tag] = &TagEntry{Tag: e.Tag, Type: e.Type, Count: e.Count, Data: data}
	}
	return c
}

// SetShort 添加 SHORT 类型标签
func (s *TagSet) SetShort(tag uint16, value uint16) {
	s.set(&TagEntry{
		Tag:   tag,
		Type:  TypeShort,
		Count: 1,
		Data:  []uint32{uint32(value)},
	})
}

// SetShorts 添加 SHORT 数组
func (s *TagSet) SetShorts(tag uint16, values []uint16) {
	data := make([]uint32, len(values))
	for i, v := range values {
		data[i] = uint32(v)
	}
	s.set(&TagEntry{
		Tag:   tag,
		Type:  TypeShort,
		Count: uint32(len(values)),
		Data:  data,
	})
}

// SetLong 添加 LONG 类型标签
func (s *TagSet) SetLong(tag uint16, value uint32) {
	s.set(&TagEntry{
		Tag:   tag,
		Type:  TypeLong,
		Count: 1,
		Data:  []uint32{value},
	})
}

// SetLongs 添加 LONG 数组
func (s *TagSet) SetLongs(tag uint16, values []uint32) {
	data := make([]uint32, len(values))
	copy(data, values)
	s.set(&TagEntry{
		Tag:   tag,
		Type:  TypeLong,
		Count: uint32(len(values)),
		Data:  data,
	})
}

// SetBytes 添加 BYTE 数组（DNGVersion 等）
func (s *TagSet) SetBytes(tag uint16, values []byte) {
	data := make([]uint32, len(values))
	for i, b := range values {
		data[i] = uint32(b)
	}
	s.set(&TagEntry{
		Tag:   tag,
		Type:  TypeByte,
		Count: uint32(len(values)),
		Data:  data,
	})
}

// SetASCII 添加以 NUL 结尾的 ASCII 字符串
func (s *TagSet) SetASCII(tag uint16, str string) {
	data := make([]uint32, len(str)+1)
	for i := 0; i < len(str); i++ {
		data[i] = uint32(str[i])
	}
	s.set(&TagEntry{
		Tag:   tag,
		Type:  TypeASCII,
		Count: uint32(len(data)),
		Data:  data,
	})
}

// SetRational 添加 RATIONAL(2个 uint32: 分子/分母)
func (s *TagSet) SetRational(tag uint16, numerator, denominator uint32) {
	s.set(&TagEntry{
		Tag:   tag,
		Type:  TypeRational,
		Count: 1,
		Data:  []uint32{numerator, denominator},
	})
}

// SetSRational 添加 SRATIONAL(signed)
func (s *TagSet) SetSRational(tag uint16, numerator, denominator int32) {
	s.set(&TagEntry{
		Tag:   tag,
		Type:  TypeSRational,
		Count: 1,
		Data:  []uint32{uint32(numerator), uint32(denominator)},
	})
}

// SetUndefined 添加 UNDEFINED 类型数据
func (s *TagSet) SetUndefined(tag uint16, data []byte) {
	uintData := make([]uint32, len(data))
	for i, b := range data {
		uintData[i] = uint32(b)
	}
	s.set(&TagEntry{
		Tag:   tag,
		Type:  TypeUndefined,
		Count: uint32(len(data)),
		Data:  uintData,
	})
}
