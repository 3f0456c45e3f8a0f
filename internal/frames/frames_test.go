package frames

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"

	"github.com/banshee-data/ghostframe/internal/fsutil"
	"github.com/banshee-data/ghostframe/internal/testutil"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestOpenDir_OrdersAndFilters(t *testing.T) {
	t.Parallel()

	mfs := fsutil.NewMemoryFileSystem()
	frame := testutil.UniformFrame(8, 6, 90)
	require.NoError(t, mfs.WriteFile("/in/frame_000001.png", encodePNG(t, frame), 0o644))
	require.NoError(t, mfs.WriteFile("/in/frame_000000.png", encodePNG(t, frame), 0o644))
	require.NoError(t, mfs.WriteFile("/in/notes.txt", []byte("skip me"), 0o644))

	var bmpBuf bytes.Buffer
	require.NoError(t, bmp.Encode(&bmpBuf, frame))
	require.NoError(t, mfs.WriteFile("/in/frame_000002.BMP", bmpBuf.Bytes(), 0o644))

	src, err := OpenDir(mfs, "/in")
	require.NoError(t, err)
	require.Equal(t, 3, src.Len())
	assert.Equal(t, "frame_000000.png", src.Name(0))
	assert.Equal(t, "frame_000002.BMP", src.Name(2))

	for i := 0; i < src.Len(); i++ {
		img, err := src.Frame(i)
		require.NoError(t, err)
		assert.Equal(t, image.Rect(0, 0, 8, 6), img.Bounds())
		assert.Equal(t, color.RGBA{90, 90, 90, 255}, img.RGBAAt(3, 3))
	}

	_, err = src.Frame(3)
	assert.Error(t, err)
}

func TestOpenDir_Errors(t *testing.T) {
	t.Parallel()

	mfs := fsutil.NewMemoryFileSystem()
	_, err := OpenDir(mfs, "/missing")
	assert.ErrorIs(t, err, ErrInputNotFound)

	require.NoError(t, mfs.WriteFile("/file.png", nil, 0o644))
	_, err = OpenDir(mfs, "/file.png")
	assert.ErrorIs(t, err, ErrInputNotFound)

	require.NoError(t, mfs.MkdirAll("/empty", 0o755))
	_, err = OpenDir(mfs, "/empty")
	assert.ErrorIs(t, err, ErrNoFrames)

	require.NoError(t, mfs.WriteFile("/broken/frame.png", []byte("not a png"), 0o644))
	src, err := OpenDir(mfs, "/broken")
	require.NoError(t, err)
	_, err = src.Frame(0)
	assert.Error(t, err)
}

func TestDirSink_RoundTrip(t *testing.T) {
	t.Parallel()

	mfs := fsutil.NewMemoryFileSystem()
	sink, err := NewDirSink(mfs, "/out")
	require.NoError(t, err)

	want := testutil.NoiseFrame(10, 10, 0, 255, 5)
	require.NoError(t, sink.Write(7, want))

	src, err := OpenDir(mfs, "/out")
	require.NoError(t, err)
	assert.Equal(t, FrameName(7), src.Name(0))
	got, err := src.Frame(0)
	require.NoError(t, err)
	assert.Equal(t, want.Pix, got.Pix, "PNG is lossless")
}

func TestDirSource_JPEG(t *testing.T) {
	t.Parallel()

	mfs := fsutil.NewMemoryFileSystem()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, testutil.UniformFrame(16, 16, 128), &jpeg.Options{Quality: 95}))
	require.NoError(t, mfs.WriteFile("/j/a.jpg", buf.Bytes(), 0o644))

	src, err := OpenDir(mfs, "/j")
	require.NoError(t, err)
	img, err := src.Frame(0)
	require.NoError(t, err)
	assert.InDelta(t, 128, int(img.RGBAAt(8, 8).R), 2)
}

func TestToRGBA_ShiftsOrigin(t *testing.T) {
	t.Parallel()

	base := testutil.GradientFrame(10, 4, 0, 90)
	sub := base.SubImage(image.Rect(5, 1, 10, 4))
	out := ToRGBA(sub)
	assert.Equal(t, image.Rect(0, 0, 5, 3), out.Bounds())
	assert.Equal(t, base.RGBAAt(5, 1), out.RGBAAt(0, 0))
}

func TestSample(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		n, limit int
		want     []int
	}{
		{"all frames", 5, 200, []int{0, 1, 2, 3, 4}},
		{"strided", 10, 3, []int{0, 4, 8}},
		{"tail spanned", 7, 5, []int{0, 2, 4, 6}},
		{"exact multiple", 8, 4, []int{0, 2, 4, 6}},
		{"no limit", 3, 0, []int{0, 1, 2}},
		{"empty", 0, 10, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, Sample(tc.n, tc.limit))
		})
	}
	assert.Len(t, Sample(1000, 200), 200)
	assert.Len(t, Sample(250, 200), 125)
}

func TestPasses_CoverEveryFrameOnce(t *testing.T) {
	t.Parallel()

	first, rest := Passes(5, 0)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, first)
	assert.Empty(t, rest)

	first, rest = Passes(10, 3)
	assert.Equal(t, []int{0, 4, 8}, first)
	assert.Equal(t, []int{1, 2, 3, 5, 6, 7, 9}, rest)

	for _, tc := range [][2]int{{1000, 200}, {250, 200}, {399, 200}, {7, 7}} {
		first, rest := Passes(tc[0], tc[1])
		seen := make(map[int]int, tc[0])
		for _, i := range append(append([]int{}, first...), rest...) {
			seen[i]++
		}
		assert.Len(t, seen, tc[0], "n=%d limit=%d", tc[0], tc[1])
		for i, c := range seen {
			assert.Equal(t, 1, c, "frame %d", i)
		}
		assert.LessOrEqual(t, len(first), tc[1])
	}
}
