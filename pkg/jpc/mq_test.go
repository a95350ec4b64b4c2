package jpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResetContexts(t *testing.T) {
	cx := NewContexts()
	require.Len(t, cx, NumContexts)

	assert.Equal(t, uint8(4), cx[CtxZero].Index)
	assert.Equal(t, uint8(3), cx[CtxRunLength].Index)
	assert.Equal(t, uint8(46), cx[CtxUniform].Index)
	for i, c := range cx {
		assert.Equal(t, uint8(0), c.MPS, "context %d MPS", i)
		if i != CtxZero && i != CtxRunLength && i != CtxUniform {
			assert.Equal(t, uint8(0), c.Index, "context %d index", i)
		}
	}

	// Dirty the states and reset again.
	cx[5] = MQContext{Index: 20, MPS: 1}
	ResetContexts(cx)
	assert.Equal(t, MQContext{}, cx[5])
	assert.Equal(t, uint8(46), cx[CtxUniform].Index)
}

func TestMQRunOfOnes(t *testing.T) {
	// Encode 100 one-bits on context 0, decode them back.
	var enc MQEncoder
	enc.Init()
	encCx := NewContexts()
	for i := 0; i < 100; i++ {
		enc.Encode(&encCx[0], 1)
	}
	compressed := enc.Flush()
	require.NotEmpty(t, compressed)

	var dec MQDecoder
	dec.Init(compressed)
	decCx := NewContexts()
	for i := 0; i < 100; i++ {
		require.Equal(t, 1, dec.Decode(&decCx[0]), "bit %d", i)
	}
}

func TestMQRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		bits func() ([]int, []int) // bit values, context plan
	}{
		{
			name: "all zeros one context",
			bits: func() ([]int, []int) {
				bits := make([]int, 200)
				plan := make([]int, 200)
				return bits, plan
			},
		},
		{
			name: "all ones one context",
			bits: func() ([]int, []int) {
				bits := make([]int, 200)
				plan := make([]int, 200)
				for i := range bits {
					bits[i] = 1
				}
				return bits, plan
			},
		},
		{
			name: "alternating bits",
			bits: func() ([]int, []int) {
				bits := make([]int, 333)
				plan := make([]int, 333)
				for i := range bits {
					bits[i] = i & 1
				}
				return bits, plan
			},
		},
		{
			name: "pseudorandom bits over all contexts",
			bits: func() ([]int, []int) {
				bits := make([]int, 10000)
				plan := make([]int, 10000)
				state := uint32(42)
				for i := range bits {
					state = state*1103515245 + 12345
					bits[i] = int(state >> 16 & 1)
					plan[i] = int(state>>17) % NumContexts
				}
				return bits, plan
			},
		},
		{
			name: "uniform context bursts",
			bits: func() ([]int, []int) {
				bits := make([]int, 500)
				plan := make([]int, 500)
				for i := range bits {
					bits[i] = (i / 7) & 1
					plan[i] = CtxUniform
				}
				return bits, plan
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bits, plan := tt.bits()

			var enc MQEncoder
			enc.Init()
			encCx := NewContexts()
			for i, b := range bits {
				enc.Encode(&encCx[plan[i]], b)
			}
			compressed := enc.Flush()
			require.NotEmpty(t, compressed)

			var dec MQDecoder
			dec.Init(compressed)
			decCx := NewContexts()
			for i, want := range bits {
				require.Equal(t, want, dec.Decode(&decCx[plan[i]]), "bit %d", i)
			}
		})
	}
}

// TestMQReferenceVector pins the decoder to a known compressed stream:
// the context plan and expected decisions come from decoding a packet
// header produced by OpenJPEG.
func TestMQReferenceVector(t *testing.T) {
	compressed := []byte{0x01, 0x8F, 0x0D, 0xC8, 0x75, 0x5D}
	plan := []int{
		17, 18, 18, 9, 3, 3, 10, 3, 10, 15, 0, 9, 4, 10, 15, 15, 15,
		16, 15, 16, 16, 16, 16, 16, 16, 16, 16, 16, 16, 16, 16, 16, 16, 16,
	}
	want := []int{
		1, 1, 1, 1, 0, 1, 0, 1, 0, 0, 1, 1, 1, 0, 1, 0, 1,
		0, 0, 0, 1, 1, 0, 0, 1, 1, 1, 0, 1, 0, 0, 0, 0, 1,
	}
	require.Len(t, want, len(plan))

	var dec MQDecoder
	dec.Init(compressed)
	cx := NewContexts()
	for i, ctx := range plan {
		assert.Equal(t, want[i], dec.Decode(&cx[ctx]), "decision %d (context %d)", i, ctx)
	}
}

func TestMQEncoderReuse(t *testing.T) {
	var enc MQEncoder

	encode := func(bits []int) []byte {
		enc.Init()
		cx := NewContexts()
		for _, b := range bits {
			enc.Encode(&cx[0], b)
		}
		out := enc.Flush()
		cp := make([]byte, len(out))
		copy(cp, out)
		return cp
	}

	bits := []int{1, 0, 1, 1, 0, 0, 1, 0, 1, 1, 1, 0}
	first := encode(bits)
	second := encode(bits)
	assert.Equal(t, first, second, "Init must fully reset the session")
}

func TestMQDecoderPastEnd(t *testing.T) {
	// Decoding past the compressed data must not panic: the decoder
	// feeds 1-bits forever.
	var enc MQEncoder
	enc.Init()
	encCx := NewContexts()
	for i := 0; i < 16; i++ {
		enc.Encode(&encCx[0], 0)
	}
	compressed := enc.Flush()

	var dec MQDecoder
	dec.Init(compressed)
	decCx := NewContexts()
	for i := 0; i < 1000; i++ {
		bit := dec.Decode(&decCx[0])
		assert.True(t, bit == 0 || bit == 1)
	}
}
