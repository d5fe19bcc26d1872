package composite

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampler_Sample_ByteNormalization(t *testing.T) {
	t.Parallel()

	s := NewSampler(Nearest)
	for v := 0; v <= 255; v++ {
		grid, err := s.Sample(NewByteMask(1, 1, []byte{byte(v)}), 1, 1)
		require.NoError(t, err)
		require.Len(t, grid.Values, 1)

		got := grid.Values[0]
		assert.Equal(t, float32(v)/255, got, "value %d", v)
		assert.GreaterOrEqual(t, got, float32(0))
		assert.LessOrEqual(t, got, float32(1))
	}
}

func TestSampler_Sample_DirectLookup(t *testing.T) {
	t.Parallel()

	grid, err := NewSampler(Bilinear).Sample(NewByteMask(2, 2, []byte{0, 255, 0, 255}), 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1, 0, 1}, grid.Values)
	assert.Equal(t, 2, grid.Width)
	assert.Equal(t, 2, grid.Height)
}

func TestSampler_Sample_FloatMaskUnclamped(t *testing.T) {
	t.Parallel()

	grid, err := NewSampler(Nearest).Sample(NewFloatMask(3, 1, []float32{0.25, 1.5, -0.5}), 3, 1)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, 1.5, -0.5}, grid.Values)
}

func TestSampler_Sample_SingleSampleUpscale(t *testing.T) {
	t.Parallel()

	for _, mode := range []Sampling{Nearest, Bilinear} {
		t.Run(mode.String(), func(t *testing.T) {
			t.Parallel()

			grid, err := NewSampler(mode).Sample(NewByteMask(1, 1, []byte{200}), 4, 4)
			require.NoError(t, err)
			require.Len(t, grid.Values, 16)
			for i, v := range grid.Values {
				assert.InDelta(t, float32(200)/255, v, 1e-6, "index %d", i)
			}
		})
	}
}

func TestSampler_Sample_TruncatedBuffer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		mask *Mask
	}{
		{name: "byte", mask: NewByteMask(4, 4, []byte{255, 255})},
		{name: "float", mask: &Mask{Width: 2, Height: 2, Encoding: FloatGrid, Data: make([]byte, 12)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			for _, mode := range []Sampling{Nearest, Bilinear} {
				grid, err := NewSampler(mode).Sample(tt.mask, 4, 4)
				require.NoError(t, err)
				require.Len(t, grid.Values, 16)
				for _, v := range grid.Values {
					assert.Zero(t, v)
				}
			}
		})
	}
}

func TestSampler_Sample_NearestMapping(t *testing.T) {
	t.Parallel()

	// 2x2 -> 4x4: srcX = x*2/4
	grid, err := NewSampler(Nearest).Sample(NewByteMask(2, 2, []byte{0, 255, 51, 102}), 4, 4)
	require.NoError(t, err)

	want := []float32{
		0, 0, 1, 1,
		0, 0, 1, 1,
		0.2, 0.2, 0.4, 0.4,
		0.2, 0.2, 0.4, 0.4,
	}
	assert.InDeltaSlice(t, want, grid.Values, 1e-6)
}

func TestSampler_Sample_NearestDownscale(t *testing.T) {
	t.Parallel()

	// 4x1 -> 2x1: srcX = x*4/2 -> 0, 2
	grid, err := NewSampler(Nearest).Sample(NewByteMask(4, 1, []byte{255, 0, 0, 255}), 2, 1)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, grid.Values)
}

func TestSampler_Sample_Bilinear(t *testing.T) {
	t.Parallel()

	grid, err := NewSampler(Bilinear).Sample(NewByteMask(2, 1, []byte{0, 255}), 4, 1)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0, 0.5, 1, 1}, grid.Values, 1e-6)
}

func TestSampler_Sample_LongerBufferUsesMapping(t *testing.T) {
	t.Parallel()

	// 多余的尾部字节被忽略
	grid, err := NewSampler(Nearest).Sample(NewByteMask(2, 1, []byte{255, 0, 255}), 2, 1)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, grid.Values)
}

func TestSampler_Sample_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mask    *Mask
		w, h    int
		wantErr error
	}{
		{name: "nil mask", mask: nil, w: 2, h: 2, wantErr: ErrMalformedMask},
		{name: "zero width", mask: NewByteMask(0, 4, nil), w: 2, h: 2, wantErr: ErrMalformedMask},
		{name: "negative height", mask: NewByteMask(4, -1, nil), w: 2, h: 2, wantErr: ErrMalformedMask},
		{name: "unknown encoding", mask: &Mask{Width: 1, Height: 1, Encoding: Encoding(9), Data: []byte{1}}, w: 1, h: 1, wantErr: ErrMalformedMask},
		{name: "zero target", mask: NewByteMask(1, 1, []byte{1}), w: 0, h: 2, wantErr: ErrInvalidTarget},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			grid, err := NewSampler(Nearest).Sample(tt.mask, tt.w, tt.h)
			assert.Nil(t, grid)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestParseEncoding(t *testing.T) {
	t.Parallel()

	e, err := ParseEncoding("float")
	require.NoError(t, err)
	assert.Equal(t, FloatGrid, e)

	e, err = ParseEncoding("")
	require.NoError(t, err)
	assert.Equal(t, ByteGrid, e)

	_, err = ParseEncoding("rgba")
	assert.ErrorIs(t, err, ErrMalformedMask)
}

func TestMask_At_NaN(t *testing.T) {
	t.Parallel()

	m := NewFloatMask(1, 1, []float32{float32(math.NaN())})
	assert.True(t, math.IsNaN(float64(m.at(0))))
	assert.Zero(t, m.at(1))
	assert.Zero(t, m.at(-1))
}
