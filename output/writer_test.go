package output

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weaming/raw2mono-go/processor"
)

func testRaster(w, h int, bitDepth uint8) *processor.QuantizedRaster {
	r := processor.NewQuantizedRaster(w, h, bitDepth)
	maxVal := int(r.MaxValue())
	for i := range r.Pix {
		r.Pix[i] = uint16((i * 977) % (maxVal + 1))
	}
	return r
}

func TestWrite_RoundTrip(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		file     string
		w, h     int
		bitDepth uint8
		opts     WriteOptions
	}{
		{"dng single tile", "a.dng", 37, 21, 16, WriteOptions{Format: FormatDNG}},
		{"dng 1x1", "a1.dng", 1, 1, 16, WriteOptions{Format: FormatDNG}},
		{"dng 2x2", "a2.dng", 2, 2, 16, WriteOptions{Format: FormatDNG}},
		{"dng 20x3", "a3.dng", 20, 3, 16, WriteOptions{Format: FormatDNG}},
		{"dng 3x20", "a4.dng", 3, 20, 16, WriteOptions{Format: FormatDNG}},
		{"dng exact 16", "a5.dng", 16, 32, 16, WriteOptions{Format: FormatDNG}},
		{"dng 12 bit", "b.dng", 8, 8, 12, WriteOptions{Format: FormatDNG}},
		{"dng tiled with padding", "c.dng", 50, 35, 16, WriteOptions{Format: FormatDNG, TileWidth: 16, TileLength: 32}},
		{"tiff single strip", "d.tif", 37, 21, 16, WriteOptions{Format: FormatTIFF}},
		{"tiff strips", "e.tif", 40, 23, 14, WriteOptions{Format: FormatTIFF, RowsPerStrip: 5}},
		{"tiff tiled", "f.tiff", 33, 17, 16, WriteOptions{Format: FormatTIFF, TileWidth: 16}},
		{"tiff miniswhite", "g.tif", 9, 7, 16, WriteOptions{Format: FormatTIFF, Photometric: PhotometricMinIsWhite}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), tc.file)
			want := testRaster(tc.w, tc.h, tc.bitDepth)

			require.NoError(t, Write(want, nil, path, tc.opts))

			got, err := ReadRaster(path)
			require.NoError(t, err)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestWrite_VariantHelpers(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	r := testRaster(6, 4, 16)

	dng := filepath.Join(dir, "out.dng")
	require.NoError(t, WriteRawContainer(r, nil, dng, WriteOptions{Format: FormatTIFF}))
	tags, err := ReadFile(dng)
	require.NoError(t, err)
	assert.True(t, tags.Has(TagDNGVersion))
	assert.True(t, tags.Has(TagTileOffsets))

	tif := filepath.Join(dir, "out.tif")
	require.NoError(t, WriteGenericContainer(r, PhotometricMinIsBlack, tif, WriteOptions{}))
	tags, err = ReadFile(tif)
	require.NoError(t, err)
	assert.False(t, tags.Has(TagDNGVersion))
	assert.True(t, tags.Has(TagStripOffsets))
}

func TestEncode_Deterministic(t *testing.T) {
	t.Parallel()

	r := testRaster(20, 12, 16)
	for _, format := range []Format{FormatDNG, FormatTIFF} {
		var a, b bytes.Buffer
		require.NoError(t, Encode(&a, r, nil, WriteOptions{Format: format}))
		require.NoError(t, Encode(&b, r, nil, WriteOptions{Format: format}))
		assert.True(t, bytes.Equal(a.Bytes(), b.Bytes()), format.String())

	}

	// TIFF single strip: header + IFD + data, data is the last W*H*2 bytes
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, r, nil, WriteOptions{Format: FormatTIFF}))
	data := buf.Bytes()[buf.Len()-r.Width*r.Height*2:]
	for i, v := range r.Pix {
		require.Equal(t, v, binary.LittleEndian.Uint16(data[i*2:]))
	}

	dir := t.TempDir()
	p1, p2 := filepath.Join(dir, "1.dng"), filepath.Join(dir, "2.dng")
	require.NoError(t, Write(r, nil, p1, WriteOptions{}))
	require.NoError(t, Write(r, nil, p2, WriteOptions{}))
	b1, err := os.ReadFile(p1)
	require.NoError(t, err)
	b2, err := os.ReadFile(p2)
	require.NoError(t, err)
	assert.Equal(t, b1, b2)
}

func TestWrite_MatchesEncode(t *testing.T) {
	t.Parallel()

	r := testRaster(21, 13, 14)
	tags := NewTagSet()
	tags.SetASCII(TagMake, "Acme")
	for _, opts := range []WriteOptions{{Format: FormatDNG}, {Format: FormatTIFF, RowsPerStrip: 4}} {
		var want bytes.Buffer
		require.NoError(t, Encode(&want, r, tags, opts))

		path := filepath.Join(t.TempDir(), "o."+opts.Format.String())
		require.NoError(t, Write(r, tags, path, opts))
		got, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, want.Bytes(), got, opts.Format.String())
	}
}

func TestDNGSingleTileIsPadded(t *testing.T) {
	t.Parallel()

	cases := []struct{ w, h, tw, tl int }{
		{1, 1, 16, 16},
		{2, 2, 16, 16},
		{20, 3, 32, 16},
		{16, 17, 16, 32},
	}
	for _, tc := range cases {
		layout, err := newBlockLayout(&processor.QuantizedRaster{Width: tc.w, Height: tc.h}, WriteOptions{Format: FormatDNG})
		require.NoError(t, err)
		assert.Equal(t, 1, layout.count(), "%dx%d", tc.w, tc.h)
		assert.Equal(t, tc.tw, layout.blockW, "%dx%d", tc.w, tc.h)
		assert.Equal(t, tc.tl, layout.blockH, "%dx%d", tc.w, tc.h)
		assert.Equal(t, []uint32{uint32(tc.tw * tc.tl * 2)}, layout.byteCounts())
	}
}

func TestCheckFileSize(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		w, h int
		opts WriteOptions
		ok   bool
	}{
		{"small dng", 4000, 3000, WriteOptions{Format: FormatDNG}, true},
		{"huge dng tile", 70000, 70000, WriteOptions{Format: FormatDNG}, false},
		{"huge tiff strip", 50000, 50000, WriteOptions{Format: FormatTIFF}, false},
		{"just under", 32768, 32767, WriteOptions{Format: FormatTIFF}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			layout, err := newBlockLayout(&processor.QuantizedRaster{Width: tc.w, Height: tc.h}, tc.opts)
			require.NoError(t, err)
			set := NewTagSet()
			layout.addTags(set)
			err = checkFileSize(set, layout)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestEncode_TagsAscending(t *testing.T) {
	t.Parallel()

	tags := NewTagSet()
	tags.SetASCII(TagCopyright, "test")
	tags.SetASCII(TagArtist, "someone")

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, testRaster(4, 4, 16), tags, WriteOptions{}))
	b := buf.Bytes()

	require.Equal(t, "II", string(b[0:2]))
	require.Equal(t, uint16(42), binary.LittleEndian.Uint16(b[2:4]))
	off := binary.LittleEndian.Uint32(b[4:8])
	n := int(binary.LittleEndian.Uint16(b[off:]))
	require.Greater(t, n, 10)

	prev := -1
	for i := 0; i < n; i++ {
		tag := int(binary.LittleEndian.Uint16(b[int(off)+2+i*ifdEntryLen:]))
		assert.Greater(t, tag, prev, "entry %d", i)
		prev = tag
	}
}

func TestWrite_StructuralTagsWin(t *testing.T) {
	t.Parallel()

	r := testRaster(8, 6, 12)
	caller := NewTagSet()
	caller.SetLong(TagImageWidth, 9999)
	caller.SetShort(TagBitsPerSample, 8)
	caller.SetShort(TagCompression, 5)
	caller.SetLongs(TagWhiteLevel, []uint32{1})
	caller.SetASCII(TagMake, "Acme")
	caller.SetASCII(TagArtist, "kept")

	path := filepath.Join(t.TempDir(), "o.dng")
	require.NoError(t, Write(r, caller, path, WriteOptions{}))

	tags, err := ReadFile(path)
	require.NoError(t, err)
	get := func(tag uint16) *TagEntry {
		e, ok := tags.Get(tag)
		require.True(t, ok, TagName(tag))
		return e
	}
	assert.Equal(t, uint32(8), get(TagImageWidth).Uint())
	assert.Equal(t, uint32(16), get(TagBitsPerSample).Uint())
	assert.Equal(t, uint32(CompressionNone), get(TagCompression).Uint())
	assert.Equal(t, uint32(4095), get(TagWhiteLevel).Uint())
	assert.Equal(t, "Acme", get(TagMake).String())
	assert.Equal(t, "kept", get(TagArtist).String())

	// caller set is not modified
	e, _ := caller.Get(TagImageWidth)
	assert.Equal(t, uint32(9999), e.Uint())
}

func TestWrite_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	var we *WriteError

	t.Run("missing directory", func(t *testing.T) {
		path := filepath.Join(dir, "nope", "out.dng")
		err := Write(testRaster(4, 4, 16), nil, path, WriteOptions{})
		require.ErrorAs(t, err, &we)
		assert.Equal(t, path, we.Path)
		assert.NoFileExists(t, path)
	})

	t.Run("zero dimensions", func(t *testing.T) {
		path := filepath.Join(dir, "zero.dng")
		err := Write(processor.NewQuantizedRaster(0, 4, 16), nil, path, WriteOptions{})
		require.ErrorAs(t, err, &we)
		assert.NoFileExists(t, path)
	})

	t.Run("inconsistent buffer", func(t *testing.T) {
		r := testRaster(4, 4, 16)
		r.Pix = r.Pix[:5]
		err := Write(r, nil, filepath.Join(dir, "short.tif"), WriteOptions{Format: FormatTIFF})
		assert.ErrorAs(t, err, &we)
	})

	t.Run("bad bit depth", func(t *testing.T) {
		r := testRaster(4, 4, 16)
		r.BitDepth = 0
		err := Write(r, nil, filepath.Join(dir, "bd.tif"), WriteOptions{Format: FormatTIFF})
		require.ErrorAs(t, err, &we)
		var be *processor.InvalidBitDepthError
		assert.ErrorAs(t, err, &be)
	})

	t.Run("tile not multiple of 16", func(t *testing.T) {
		err := Write(testRaster(40, 40, 16), nil, filepath.Join(dir, "tile.dng"), WriteOptions{TileWidth: 20})
		assert.ErrorAs(t, err, &we)
	})

	t.Run("dng miniswhite", func(t *testing.T) {
		err := Write(testRaster(4, 4, 16), nil, filepath.Join(dir, "mw.dng"),
			WriteOptions{Format: FormatDNG, Photometric: PhotometricMinIsWhite})
		assert.ErrorAs(t, err, &we)
	})

	t.Run("stale output removed", func(t *testing.T) {
		path := filepath.Join(dir, "stale.dng")
		require.NoError(t, Write(testRaster(4, 4, 16), nil, path, WriteOptions{}))
		require.FileExists(t, path)

		err := Write(testRaster(40, 40, 16), nil, path, WriteOptions{TileWidth: 20})
		require.ErrorAs(t, err, &we)
		assert.NoFileExists(t, path)

		require.NoError(t, Write(testRaster(4, 4, 16), nil, path, WriteOptions{}))
		r := testRaster(4, 4, 16)
		r.Pix = r.Pix[:3]
		require.Error(t, Write(r, nil, path, WriteOptions{}))
		assert.NoFileExists(t, path)
	})

	t.Run("no temp files left", func(t *testing.T) {
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		for _, e := range entries {
			assert.NotContains(t, e.Name(), ".tmp")
		}
	})
}

func TestWrite_ReplacesExisting(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "o.tif")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))
	r := testRaster(4, 2, 16)
	require.NoError(t, Write(r, nil, path, WriteOptions{Format: FormatTIFF}))

	got, err := ReadRaster(path)
	require.NoError(t, err)
	assert.Equal(t, r.Pix, got.Pix)
}

func TestFormatFromPath(t *testing.T) {
	t.Parallel()

	cases := map[string]Format{"a.dng": FormatDNG, "b.DNG": FormatDNG, "c.tif": FormatTIFF, "d.tiff": FormatTIFF}
	for path, want := range cases {
		got, err := FormatFromPath(path)
		require.NoError(t, err, path)
		assert.Equal(t, want, got, path)
	}
	for _, bad := range []string{"x.jpg", "noext"} {
		_, err := FormatFromPath(bad)
		assert.Error(t, err, bad)
	}
}
