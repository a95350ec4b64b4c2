package jpc

// MQ arithmetic entropy coder, ITU-T T.800 Annex C (software
// conventions). Encoder and decoder share the probability estimation
// table and the per-context (index, MPS) state; all register
// arithmetic is fixed-width unsigned 32-bit with wrap-around.

// mqRow is one row of the probability estimation state table
// (Table C.2): the Qe probability estimate, the next states on MPS and
// LPS renormalization, and whether an LPS flips the MPS sense.
type mqRow struct {
	qe   uint16
	nmps uint8
	nlps uint8
	sw   bool
}

var mqTable = [47]mqRow{
	{0x5601, 1, 1, true},
	{0x3401, 2, 6, false},
	{0x1801, 3, 9, false},
	{0x0AC1, 4, 12, false},
	{0x0521, 5, 29, false},
	{0x0221, 38, 33, false},
	{0x5601, 7, 6, true},
	{0x5401, 8, 14, false},
	{0x4801, 9, 14, false},
	{0x3801, 10, 14, false},
	{0x3001, 11, 17, false},
	{0x2401, 12, 18, false},
	{0x1C01, 13, 20, false},
	{0x1601, 29, 21, false},
	{0x5601, 15, 14, true},
	{0x5401, 16, 14, false},
	{0x5101, 17, 15, false},
	{0x4801, 18, 16, false},
	{0x3801, 19, 17, false},
	{0x3401, 20, 18, false},
	{0x3001, 21, 19, false},
	{0x2801, 22, 19, false},
	{0x2401, 23, 20, false},
	{0x2201, 24, 21, false},
	{0x1C01, 25, 22, false},
	{0x1801, 26, 23, false},
	{0x1601, 27, 24, false},
	{0x1401, 28, 25, false},
	{0x1201, 29, 26, false},
	{0x1101, 30, 27, false},
	{0x0AC1, 31, 28, false},
	{0x09C1, 32, 29, false},
	{0x08A1, 33, 30, false},
	{0x0521, 34, 31, false},
	{0x0441, 35, 32, false},
	{0x02A1, 36, 33, false},
	{0x0221, 37, 34, false},
	{0x0141, 38, 35, false},
	{0x0111, 39, 36, false},
	{0x0085, 40, 37, false},
	{0x0049, 41, 38, false},
	{0x0025, 42, 39, false},
	{0x0015, 43, 40, false},
	{0x0009, 44, 41, false},
	{0x0005, 45, 42, false},
	{0x0001, 45, 43, false},
	{0x5601, 46, 46, false},
}

// MQContext is the adaptive state of one coding context.
type MQContext struct {
	Index uint8 // row in the probability estimation table
	MPS   uint8 // most probable symbol, 0 or 1
}

// Context labels for the 19 contexts packet and coefficient coding
// use, with their Table D.7 initial table rows.
const (
	NumContexts = 19

	CtxZero      = 0  // zero coding, all-zero neighbourhood
	CtxRunLength = 17 // run-length context
	CtxUniform   = 18 // uniform context

	initialZero      = 4
	initialRunLength = 3
	initialUniform   = 46
)

// NewContexts returns the 19 contexts in their initial states.
func NewContexts() []MQContext {
	cx := make([]MQContext, NumContexts)
	ResetContexts(cx)
	return cx
}

// ResetContexts restores every context to its Table D.7 initial state:
// all contexts at row 0 with MPS 0, except the uniform, run-length and
// all-zero-neighbour contexts.
func ResetContexts(cx []MQContext) {
	for i := range cx {
		cx[i] = MQContext{}
	}
	if len(cx) > CtxZero {
		cx[CtxZero].Index = initialZero
	}
	if len(cx) > CtxRunLength {
		cx[CtxRunLength].Index = initialRunLength
	}
	if len(cx) > CtxUniform {
		cx[CtxUniform].Index = initialUniform
	}
}

// MQEncoder is the Annex C arithmetic encoder. The zero value is not
// ready for use; call Init first. Not safe for concurrent use.
type MQEncoder struct {
	a  uint32
	c  uint32
	ct int
	// buf[0] is the sentinel byte standing in for the byte before the
	// output stream; Flush discards it.
	buf []byte
}

// Init prepares the encoder for a new coding session (INITENC).
func (e *MQEncoder) Init() {
	e.a = 0x8000
	e.c = 0
	e.ct = 12
	if cap(e.buf) == 0 {
		e.buf = make([]byte, 0, 64)
	}
	e.buf = append(e.buf[:0], 0)
}

// Encode codes decision d (0 or 1) in context cx.
func (e *MQEncoder) Encode(cx *MQContext, d int) {
	if uint8(d) == cx.MPS {
		e.codeMPS(cx)
	} else {
		e.codeLPS(cx)
	}
}

func (e *MQEncoder) codeMPS(cx *MQContext) {
	row := &mqTable[cx.Index]
	qe := uint32(row.qe)
	e.a -= qe
	if e.a&0x8000 == 0 {
		// Conditional exchange: the MPS interval has become the
		// smaller one.
		if e.a < qe {
			e.a = qe
		} else {
			e.c += qe
		}
		cx.Index = row.nmps
		e.renorm()
	} else {
		e.c += qe
	}
}

func (e *MQEncoder) codeLPS(cx *MQContext) {
	row := &mqTable[cx.Index]
	qe := uint32(row.qe)
	e.a -= qe
	if e.a < qe {
		e.c += qe
	} else {
		e.a = qe
	}
	if row.sw {
		cx.MPS ^= 1
	}
	cx.Index = row.nlps
	e.renorm()
}

func (e *MQEncoder) renorm() {
	for {
		e.a <<= 1
		e.c <<= 1
		e.ct--
		if e.ct == 0 {
			e.byteOut()
		}
		if e.a&0x8000 != 0 {
			break
		}
	}
}

func (e *MQEncoder) byteOut() {
	last := len(e.buf) - 1
	if e.buf[last] == 0xFF {
		// Stuffing after an 0xFF: only seven data bits next round.
		e.buf = append(e.buf, byte(e.c>>20))
		e.c &= 0xFFFFF
		e.ct = 7
		return
	}
	if e.c < 0x8000000 {
		e.buf = append(e.buf, byte(e.c>>19))
		e.c &= 0x7FFFF
		e.ct = 8
		return
	}
	// Carry in bit 27 propagates into the already emitted byte.
	e.buf[last]++
	if e.buf[last] == 0xFF {
		e.c &= 0x7FFFFFF
		e.buf = append(e.buf, byte(e.c>>20))
		e.c &= 0xFFFFF
		e.ct = 7
	} else {
		e.buf = append(e.buf, byte(e.c>>19))
		e.c &= 0x7FFFF
		e.ct = 8
	}
}

// Flush terminates the coding session (FLUSH) and returns the
// compressed bytes. The returned slice aliases the encoder's buffer
// and is valid until the next Init.
func (e *MQEncoder) Flush() []byte {
	// SETBITS: force as many 1-bits as possible into the tail.
	tempc := e.c + e.a - 1
	e.c |= 0xFFFF
	if e.c >= tempc {
		e.c -= 0x8000
	}

	e.c <<= uint(e.ct)
	e.byteOut()
	e.c <<= uint(e.ct)
	e.byteOut()

	out := e.buf[1:] // drop the sentinel
	if n := len(out); n > 0 && out[n-1] == 0xFF {
		out = out[:n-1]
	}
	return out
}

// MQDecoder is the Annex C arithmetic decoder. Past the end of the
// compressed data it feeds 1-bits, as the standard prescribes.
type MQDecoder struct {
	data []byte
	bp   int // index of the current byte B
	a    uint32
	c    uint32
	ct   int
}

// Init points the decoder at a compressed byte stream (INITDEC).
func (d *MQDecoder) Init(data []byte) {
	d.data = data
	d.bp = 0
	d.c = uint32(d.byteAt(0)) << 16
	d.ct = 0
	d.byteIn()
	d.c <<= 7
	d.ct -= 7
	d.a = 0x8000
}

// byteAt reads the stream with the standard's end-of-data behaviour:
// past the end every byte looks like 0xFF, which byteIn turns into an
// endless supply of 1-bits.
func (d *MQDecoder) byteAt(i int) byte {
	if i < len(d.data) {
		return d.data[i]
	}
	return 0xFF
}

// byteIn refills the code register (BYTEIN). A 0xFF followed by a
// value above 0x8F is a marker terminating the compressed data; the
// buffer pointer stays on the 0xFF and 1-bits are fed instead.
func (d *MQDecoder) byteIn() {
	if d.byteAt(d.bp) == 0xFF {
		if d.byteAt(d.bp+1) > 0x8F {
			d.c += 0xFF00
			d.ct = 8
		} else {
			d.bp++
			d.c += uint32(d.byteAt(d.bp)) << 9
			d.ct = 7
		}
	} else {
		d.bp++
		d.c += uint32(d.byteAt(d.bp)) << 8
		d.ct = 8
	}
}

// Decode returns the next decision for context cx.
func (d *MQDecoder) Decode(cx *MQContext) int {
	row := &mqTable[cx.Index]
	qe := uint32(row.qe)
	d.a -= qe

	var bit uint8
	if d.c>>16 < qe {
		bit = d.lpsExchange(cx, row, qe)
		d.renorm()
	} else {
		d.c -= qe << 16
		if d.a&0x8000 == 0 {
			bit = d.mpsExchange(cx, row)
			d.renorm()
		} else {
			bit = cx.MPS
		}
	}
	return int(bit)
}

func (d *MQDecoder) mpsExchange(cx *MQContext, row *mqRow) uint8 {
	if d.a < uint32(row.qe) {
		bit := 1 - cx.MPS
		if row.sw {
			cx.MPS ^= 1
		}
		cx.Index = row.nlps
		return bit
	}
	cx.Index = row.nmps
	return cx.MPS
}

func (d *MQDecoder) lpsExchange(cx *MQContext, row *mqRow, qe uint32) uint8 {
	if d.a < qe {
		d.a = qe
		cx.Index = row.nmps
		return cx.MPS
	}
	d.a = qe
	bit := 1 - cx.MPS
	if row.sw {
		cx.MPS ^= 1
	}
	cx.Index = row.nlps
	return bit
}

func (d *MQDecoder) renorm() {
	for {
		if d.ct == 0 {
			d.byteIn()
		}
		d.a <<= 1
		d.c <<= 1
		d.ct--
		if d.a&0x8000 != 0 {
			break
		}
	}
}
