package jpc

import (
	"io"
	"log/slog"
)

// Header is the decoded main header: the required SIZ/COD/QCD segments
// plus every optional segment the grammar admits there.
type Header struct {
	SIZ  *SIZ
	COD  *COD
	COCs []*COC
	QCD  *QCD
	QCCs []*QCC
	RGNs []*RGN
	POC  *POC
	TLM  *TLM
	CRG  *CRG
	PPMs []*PPM
	PLMs []*PLM
	COMs []*COM
}

// COCFor returns the per-component coding style override, or nil.
func (h *Header) COCFor(component uint16) *COC {
	for _, c := range h.COCs {
		if c.Component == component {
			return c
		}
	}
	return nil
}

// TileHeader is one decoded tile-part header.
type TileHeader struct {
	SOT  SOT
	COD  *COD
	COCs []*COC
	QCD  *QCD
	QCCs []*QCC
	RGNs []*RGN
	POC  *POC
	PPTs []*PPT
	PLTs []*PLT
	COMs []*COM
}

// Tile is one tile-part: its header and the opaque entropy-coded
// region between SOD and the next SOT or EOC. Packet bodies are not
// decoded here.
type Tile struct {
	Header TileHeader
	// BodyOffset is the file offset of the first byte after SOD.
	BodyOffset int64
	Body       []byte
	// SOPCount and EPHCount tally the in-bit-stream markers seen while
	// scanning the body.
	SOPCount int
	EPHCount int
}

// Codestream is a decoded contiguous codestream.
type Codestream struct {
	// Offset is where the SOC marker was found; Size the number of
	// bytes consumed through EOC.
	Offset int64
	Size   int64
	Header Header
	Tiles  []*Tile
}

// parser states: the mutual recursion between the marker dispatch and
// the header loops is flattened into one explicit tag.
type parseState int

const (
	stateMain parseState = iota
	stateTile
	stateBitstream
	stateDone
)

// Decoder walks a codestream from the current reader position. Not
// safe for concurrent use.
type Decoder struct {
	r   io.ReadSeeker
	log *slog.Logger
}

// NewDecoder returns a Decoder over r logging through slog.Default().
func NewDecoder(r io.ReadSeeker) *Decoder {
	return &Decoder{r: r, log: slog.Default()}
}

// SetLogger replaces the injected log sink.
func (d *Decoder) SetLogger(log *slog.Logger) { d.log = log }

// Decode parses a codestream from the current position.
func Decode(r io.ReadSeeker) (*Codestream, error) {
	return NewDecoder(r).Decode()
}

// Decode runs the marker state machine: main header, then tile-part
// headers and their bit-stream regions, through EOC. The reader is
// left positioned past EOC (or at EOF when the last tile-part ends
// with the input).
func (d *Decoder) Decode() (*Codestream, error) {
	cs := &Codestream{Offset: position(d.r)}

	if err := d.decodeMainHeader(cs); err != nil {
		return nil, err
	}

	state := stateTile
	for state != stateDone {
		var err error
		switch state {
		case stateTile:
			state, err = d.decodeTileHeader(cs)
		case stateBitstream:
			state, err = d.scanBitstream(cs)
		}
		if err != nil {
			return nil, err
		}
	}

	cs.Size = position(d.r) - cs.Offset
	return cs, nil
}

// decodeMainHeader enforces the main header grammar: SOC, then SIZ,
// then functional and pointer segments in any order until the first
// SOT. COD and QCD are required before the transition; COC, QCC and
// RGN are bounded to one per component.
func (d *Decoder) decodeMainHeader(cs *Codestream) error {
	m, _, err := ReadMarker(d.r)
	if err != nil {
		return err
	}
	if m != MarkerSOC {
		return &MarkerMissingError{Marker: MarkerSOC}
	}

	if m, _, err = ReadMarker(d.r); err != nil {
		return err
	}
	if m != MarkerSIZ {
		return &MarkerMissingError{Marker: MarkerSIZ}
	}
	if cs.Header.SIZ, err = parseSIZ(d.r); err != nil {
		return err
	}
	csiz := cs.Header.SIZ.Csiz()
	d.log.Debug("SIZ", "grid", []uint32{cs.Header.SIZ.XSiz, cs.Header.SIZ.YSiz}, "components", csiz)

	hdr := &cs.Header
	seenCOC := make(map[uint16]bool)
	seenQCC := make(map[uint16]bool)
	seenRGN := make(map[uint16]bool)

	for {
		m, offset, err := ReadMarker(d.r)
		if err != nil {
			return err
		}

		switch m {
		case MarkerCOD:
			if hdr.COD != nil {
				return &MarkerUnexpectedError{Marker: m, Offset: offset}
			}
			if hdr.COD, err = parseCOD(d.r); err != nil {
				return err
			}

		case MarkerCOC:
			coc, err := parseCOC(d.r, csiz)
			if err != nil {
				return err
			}
			if seenCOC[coc.Component] {
				return &MarkerUnexpectedError{Marker: m, Offset: offset}
			}
			seenCOC[coc.Component] = true
			hdr.COCs = append(hdr.COCs, coc)

		case MarkerQCD:
			if hdr.QCD != nil {
				return &MarkerUnexpectedError{Marker: m, Offset: offset}
			}
			// The subband count derives from COD; a QCD ahead of COD
			// cannot be framed.
			if hdr.COD == nil {
				return &MarkerUnexpectedError{Marker: m, Offset: offset}
			}
			if hdr.QCD, err = parseQCD(d.r, hdr.COD.Style.NumSubbands()); err != nil {
				return err
			}

		case MarkerQCC:
			if hdr.COD == nil {
				return &MarkerUnexpectedError{Marker: m, Offset: offset}
			}
			qcc, err := parseQCC(d.r, csiz, func(component uint16) int {
				if coc := hdr.COCFor(component); coc != nil {
					return coc.Style.NumSubbands()
				}
				return hdr.COD.Style.NumSubbands()
			})
			if err != nil {
				return err
			}
			if seenQCC[qcc.Component] {
				return &MarkerUnexpectedError{Marker: m, Offset: offset}
			}
			seenQCC[qcc.Component] = true
			hdr.QCCs = append(hdr.QCCs, qcc)

		case MarkerRGN:
			rgn, err := parseRGN(d.r, csiz)
			if err != nil {
				return err
			}
			if seenRGN[rgn.Component] {
				return &MarkerUnexpectedError{Marker: m, Offset: offset}
			}
			seenRGN[rgn.Component] = true
			hdr.RGNs = append(hdr.RGNs, rgn)

		case MarkerPOC:
			if hdr.POC != nil {
				return &MarkerUnexpectedError{Marker: m, Offset: offset}
			}
			if hdr.POC, err = parsePOC(d.r, csiz); err != nil {
				return err
			}

		case MarkerTLM:
			if hdr.TLM != nil {
				return &MarkerUnexpectedError{Marker: m, Offset: offset}
			}
			if hdr.TLM, err = parseTLM(d.r); err != nil {
				return err
			}

		case MarkerCRG:
			if hdr.CRG != nil {
				return &MarkerUnexpectedError{Marker: m, Offset: offset}
			}
			if hdr.CRG, err = parseCRG(d.r, csiz); err != nil {
				return err
			}

		case MarkerPPM:
			ppm, err := parsePPM(d.r)
			if err != nil {
				return err
			}
			hdr.PPMs = append(hdr.PPMs, ppm)

		case MarkerPLM:
			plm, err := parsePLM(d.r)
			if err != nil {
				return err
			}
			hdr.PLMs = append(hdr.PLMs, plm)

		case MarkerCOM:
			com, err := parseCOM(d.r)
			if err != nil {
				return err
			}
			hdr.COMs = append(hdr.COMs, com)

		case MarkerSOT:
			if hdr.COD == nil {
				return &MarkerMissingError{Marker: MarkerCOD}
			}
			if hdr.QCD == nil {
				return &MarkerMissingError{Marker: MarkerQCD}
			}
			// Hand the SOT back to the tile-part state machine.
			if _, err := d.r.Seek(-2, io.SeekCurrent); err != nil {
				return err
			}
			return nil

		default:
			return &MarkerUnexpectedError{Marker: m, Offset: offset}
		}
	}
}

// decodeTileHeader parses one tile-part header from SOT through SOD.
func (d *Decoder) decodeTileHeader(cs *Codestream) (parseState, error) {
	m, _, err := ReadMarker(d.r)
	if err != nil {
		return stateDone, err
	}
	if m != MarkerSOT {
		return stateDone, &MarkerMissingError{Marker: MarkerSOT}
	}

	sot, err := parseSOT(d.r)
	if err != nil {
		return stateDone, err
	}
	tile := &Tile{Header: TileHeader{SOT: *sot}}
	th := &tile.Header
	d.log.Debug("SOT", "tile", sot.TileIndex, "part", sot.TilePartIndex)

	csiz := cs.Header.SIZ.Csiz()
	seenCOC := make(map[uint16]bool)
	seenQCC := make(map[uint16]bool)
	seenRGN := make(map[uint16]bool)

	// Decomposition levels for a component, honouring tile-part
	// overrides ahead of the main header defaults.
	numSubbands := func(component uint16) int {
		for _, c := range th.COCs {
			if c.Component == component {
				return c.Style.NumSubbands()
			}
		}
		if th.COD != nil {
			return th.COD.Style.NumSubbands()
		}
		if coc := cs.Header.COCFor(component); coc != nil {
			return coc.Style.NumSubbands()
		}
		return cs.Header.COD.Style.NumSubbands()
	}

	for {
		m, offset, err := ReadMarker(d.r)
		if err != nil {
			return stateDone, err
		}

		switch m {
		case MarkerSOD:
			cs.Tiles = append(cs.Tiles, tile)
			tile.BodyOffset = position(d.r)
			return stateBitstream, nil

		case MarkerCOD:
			if th.COD != nil {
				return stateDone, &MarkerUnexpectedError{Marker: m, Offset: offset}
			}
			if th.COD, err = parseCOD(d.r); err != nil {
				return stateDone, err
			}

		case MarkerCOC:
			coc, err := parseCOC(d.r, csiz)
			if err != nil {
				return stateDone, err
			}
			if seenCOC[coc.Component] {
				return stateDone, &MarkerUnexpectedError{Marker: m, Offset: offset}
			}
			seenCOC[coc.Component] = true
			th.COCs = append(th.COCs, coc)

		case MarkerQCD:
			if th.QCD != nil {
				return stateDone, &MarkerUnexpectedError{Marker: m, Offset: offset}
			}
			if th.QCD, err = parseQCD(d.r, numSubbands(0)); err != nil {
				return stateDone, err
			}

		case MarkerQCC:
			qcc, err := parseQCC(d.r, csiz, numSubbands)
			if err != nil {
				return stateDone, err
			}
			if seenQCC[qcc.Component] {
				return stateDone, &MarkerUnexpectedError{Marker: m, Offset: offset}
			}
			seenQCC[qcc.Component] = true
			th.QCCs = append(th.QCCs, qcc)

		case MarkerRGN:
			rgn, err := parseRGN(d.r, csiz)
			if err != nil {
				return stateDone, err
			}
			if seenRGN[rgn.Component] {
				return stateDone, &MarkerUnexpectedError{Marker: m, Offset: offset}
			}
			seenRGN[rgn.Component] = true
			th.RGNs = append(th.RGNs, rgn)

		case MarkerPOC:
			if th.POC != nil {
				return stateDone, &MarkerUnexpectedError{Marker: m, Offset: offset}
			}
			if th.POC, err = parsePOC(d.r, csiz); err != nil {
				return stateDone, err
			}

		case MarkerPPT:
			// Packed packet headers live in the main header or the
			// tile-part headers, never both.
			if len(cs.Header.PPMs) > 0 {
				return stateDone, &MarkerUnexpectedError{Marker: m, Offset: offset}
			}
			ppt, err := parsePPT(d.r)
			if err != nil {
				return stateDone, err
			}
			th.PPTs = append(th.PPTs, ppt)

		case MarkerPLT:
			plt, err := parsePLT(d.r)
			if err != nil {
				return stateDone, err
			}
			th.PLTs = append(th.PLTs, plt)

		case MarkerCOM:
			com, err := parseCOM(d.r)
			if err != nil {
				return stateDone, err
			}
			th.COMs = append(th.COMs, com)

		default:
			return stateDone, &MarkerUnexpectedError{Marker: m, Offset: offset}
		}
	}
}

// scanBitstream walks the opaque entropy-coded region after SOD,
// watching only for in-bit-stream markers. Everything below 0xFF90 is
// data (0xFF bytes inside coded data are followed by a stuffed byte
// < 0x90 by construction).
func (d *Decoder) scanBitstream(cs *Codestream) (parseState, error) {
	tile := cs.Tiles[len(cs.Tiles)-1]
	cod := cs.Header.COD
	if tile.Header.COD != nil {
		cod = tile.Header.COD
	}
	packedHeaders := len(cs.Header.PPMs) > 0 || len(tile.Header.PPTs) > 0

	var one [1]byte
	for {
		if _, err := io.ReadFull(d.r, one[:]); err != nil {
			if err == io.EOF {
				// Input exhausted without EOC: accept as the end of the
				// last tile-part.
				d.log.Warn("codestream ends without EOC")
				return stateDone, nil
			}
			return stateDone, err
		}
		if one[0] != 0xFF {
			tile.Body = append(tile.Body, one[0])
			continue
		}

		if _, err := io.ReadFull(d.r, one[:]); err != nil {
			if err == io.EOF {
				tile.Body = append(tile.Body, 0xFF)
				d.log.Warn("codestream ends without EOC")
				return stateDone, nil
			}
			return stateDone, err
		}
		if one[0] < 0x90 {
			// Stuffed byte: still coded data.
			tile.Body = append(tile.Body, 0xFF, one[0])
			continue
		}

		m := Marker(0xFF00 | uint16(one[0]))
		offset := position(d.r) - 2
		switch m {
		case MarkerSOP:
			if !cod.UsesSOP() {
				return stateDone, &MarkerUnexpectedError{Marker: m, Offset: offset}
			}
			// Lsop is fixed: 2 length bytes plus the 2-byte packet
			// sequence number.
			var trailer [4]byte
			if _, err := io.ReadFull(d.r, trailer[:]); err != nil {
				return stateDone, segTruncated(err, MarkerSOP)
			}
			tile.SOPCount++

		case MarkerEPH:
			if !cod.UsesEPH() {
				return stateDone, &MarkerUnexpectedError{Marker: m, Offset: offset}
			}
			if packedHeaders {
				return stateDone, &MarkerUnexpectedError{Marker: m, Offset: offset}
			}
			tile.EPHCount++

		case MarkerEOC:
			return stateDone, nil

		case MarkerSOT:
			if _, err := d.r.Seek(-2, io.SeekCurrent); err != nil {
				return stateDone, err
			}
			return stateTile, nil

		default:
			// Reserved in-bit-stream codes pass through as data, the
			// packet decoder owns them.
			tile.Body = append(tile.Body, 0xFF, one[0])
		}
	}
}
