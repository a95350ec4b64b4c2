package jp2

import (
	"io"
	"log/slog"
)

type logger = *slog.Logger

// File is the decoded JP2 box tree. Field order mirrors the required
// box order on disk: Signature, FileType, Header, then codestreams and
// metadata boxes.
type File struct {
	// Size is the reader position where the walk ended: the file length,
	// or the offset just past the header of an unknown top-level box that
	// stopped the walk.
	Size int64

	Signature   *SignatureBox
	FileType    *FileTypeBox
	Header      *HeaderBox
	Codestreams []*CodestreamBox
	IPR         *IPRBox
	XML         []*XMLBox
	UUID        []*UUIDBox
	UUIDInfos   []*UUIDInfoBox
}

// Decoder walks the box structure of a JP2 file. The reader must
// support both sequential reads and absolute seeks; the decoder is not
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

// Decode reads r from the current position to the end of the file and
// returns the populated box tree.
func Decode(r io.ReadSeeker) (*File, error) {
	return NewDecoder(r).Decode()
}

// Decode parses the whole file. The reader is left positioned past the
// last box.
func (d *Decoder) Decode() (*File, error) {
	f := &File{}

	// The Signature box shall be the first box in the file.
	h, err := ReadBoxHeader(d.r)
	if err != nil {
		return nil, err
	}
	if h.Type != TypeSignature {
		return nil, &BoxUnexpectedError{Type: h.Type, Offset: position(d.r)}
	}
	if f.Signature, err = parseSignatureBox(d.r, h); err != nil {
		return nil, err
	}
	d.log.Debug("signature box", "offset", f.Signature.Offset())

	// The File Type box shall immediately follow the Signature box.
	if h, err = ReadBoxHeader(d.r); err != nil {
		return nil, err
	}
	if h.Type != TypeFileType {
		return nil, &BoxUnexpectedError{Type: h.Type, Offset: position(d.r)}
	}
	if f.FileType, err = parseFileTypeBox(d.r, h); err != nil {
		return nil, err
	}
	d.log.Debug("file type box", "brand", f.FileType.Brand.String())

	var currentInfo *UUIDInfoBox
	closeInfo := func() {
		if currentInfo != nil {
			f.UUIDInfos = append(f.UUIDInfos, currentInfo)
			currentInfo = nil
		}
	}

walk:
	for {
		h, err := ReadBoxHeader(d.r)
		if err == io.EOF {
			// Clean end of file terminates the top-level walk.
			break
		}
		if err != nil {
			return nil, err
		}

		switch h.Type {
		case TypeHeader:
			if f.Header != nil {
				// Readers shall use the first JP2 Header box.
				d.log.Warn("duplicate jp2h box ignored", "offset", position(d.r))
				if _, err := d.r.Seek(int64(h.Length), io.SeekCurrent); err != nil {
					return nil, err
				}
				continue
			}
			if f.Header, err = d.decodeHeaderBox(h); err != nil {
				return nil, err
			}

		case TypeCodestream:
			// The Header box shall precede any Contiguous Codestream box.
			if f.Header == nil {
				return nil, &BoxUnexpectedError{Type: h.Type, Offset: position(d.r)}
			}
			cs := &CodestreamBox{boxInfo: newBoxInfo(TypeCodestream, h, position(d.r))}
			if h.ToEOF {
				end, err := d.r.Seek(0, io.SeekEnd)
				if err != nil {
					return nil, err
				}
				cs.length = uint64(end - cs.offset)
			} else if _, err := d.r.Seek(int64(h.Length), io.SeekCurrent); err != nil {
				return nil, err
			}
			f.Codestreams = append(f.Codestreams, cs)

		case TypeIPR:
			if f.IPR != nil {
				return nil, &BoxDuplicateError{Type: TypeIPR, Offset: position(d.r)}
			}
			ipr := &IPRBox{boxInfo: newBoxInfo(TypeIPR, h, position(d.r))}
			if ipr.Data, err = readBytes(d.r, h.Length); err != nil {
				return nil, truncated(err, TypeIPR, ipr.offset)
			}
			f.IPR = ipr

		case TypeXML:
			xb := &XMLBox{boxInfo: newBoxInfo(TypeXML, h, position(d.r))}
			if xb.Data, err = readBytes(d.r, h.Length); err != nil {
				return nil, truncated(err, TypeXML, xb.offset)
			}
			f.XML = append(f.XML, xb)

		case TypeUUID:
			ub, err := parseUUIDBox(d.r, h)
			if err != nil {
				return nil, err
			}
			f.UUID = append(f.UUID, ub)

		case TypeUUIDInfo:
			closeInfo()
			currentInfo = &UUIDInfoBox{boxInfo: newBoxInfo(TypeUUIDInfo, h, position(d.r))}

		case TypeUUIDList:
			if currentInfo == nil {
				return nil, &BoxMissingError{Type: TypeUUIDInfo}
			}
			if currentInfo.List != nil {
				return nil, &BoxDuplicateError{Type: TypeUUIDList, Offset: position(d.r)}
			}
			if currentInfo.List, err = parseUUIDListBox(d.r, h); err != nil {
				return nil, err
			}

		case TypeURL:
			if currentInfo == nil {
				return nil, &BoxMissingError{Type: TypeUUIDInfo}
			}
			if currentInfo.URL != nil {
				return nil, &BoxDuplicateError{Type: TypeURL, Offset: position(d.r)}
			}
			if currentInfo.URL, err = parseDataEntryURLBox(d.r, h); err != nil {
				return nil, err
			}

		default:
			d.log.Warn("unknown top-level box, stopping",
				"type", h.Type.String(), "offset", position(d.r))
			break walk
		}
	}
	closeInfo()

	if f.Header == nil {
		return nil, &BoxMissingError{Type: TypeHeader}
	}

	f.Size = position(d.r)
	return f, nil
}

// decodeHeaderBox walks the children of a jp2h super-box. The Image
// Header box shall be the first child; sibling order after it is free
// but each optional box may appear at most once.
func (d *Decoder) decodeHeaderBox(h BoxHeader) (*HeaderBox, error) {
	hb := &HeaderBox{boxInfo: newBoxInfo(TypeHeader, h, position(d.r))}

	ch, err := ReadBoxHeader(d.r)
	if err != nil {
		return nil, err
	}
	if ch.Type != TypeImageHeader {
		return nil, &BoxUnexpectedError{Type: ch.Type, Offset: position(d.r)}
	}
	if hb.ImageHeader, err = parseImageHeaderBox(d.r, ch); err != nil {
		return nil, err
	}

children:
	for {
		ch, err := ReadBoxHeader(d.r)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch ch.Type {
		case TypeImageHeader:
			// Instances of the Image Header box in other places shall
			// be ignored.
			d.log.Warn("extra ihdr box ignored", "offset", position(d.r))
			if _, err := d.r.Seek(int64(ch.Length), io.SeekCurrent); err != nil {
				return nil, err
			}

		case TypeColourSpec:
			colr, err := parseColourSpecificationBox(d.r, ch, d.log)
			if err != nil {
				return nil, err
			}
			hb.ColourSpecs = append(hb.ColourSpecs, colr)

		case TypeBitsPerComp:
			if hb.BitsPerComponent != nil {
				return nil, &BoxDuplicateError{Type: TypeBitsPerComp, Offset: position(d.r)}
			}
			if hb.BitsPerComponent, err = parseBitsPerComponentBox(d.r, ch, hb.ImageHeader.NumComponents); err != nil {
				return nil, err
			}

		case TypePalette:
			if hb.Palette != nil {
				return nil, &BoxDuplicateError{Type: TypePalette, Offset: position(d.r)}
			}
			if hb.Palette, err = parsePaletteBox(d.r, ch); err != nil {
				return nil, err
			}

		case TypeCompMapping:
			if hb.ComponentMapping != nil {
				return nil, &BoxDuplicateError{Type: TypeCompMapping, Offset: position(d.r)}
			}
			if hb.ComponentMapping, err = parseComponentMappingBox(d.r, ch); err != nil {
				return nil, err
			}

		case TypeChannelDef:
			if hb.ChannelDef != nil {
				return nil, &BoxDuplicateError{Type: TypeChannelDef, Offset: position(d.r)}
			}
			if hb.ChannelDef, err = parseChannelDefinitionBox(d.r, ch); err != nil {
				return nil, err
			}

		case TypeResolution:
			if hb.Resolution != nil {
				return nil, &BoxDuplicateError{Type: TypeResolution, Offset: position(d.r)}
			}
			if hb.Resolution, err = d.decodeResolutionBox(ch); err != nil {
				return nil, err
			}

		case TypeSignature, TypeFileType, TypeHeader, TypeCodestream,
			TypeIPR, TypeXML, TypeUUID, TypeUUIDInfo, TypeUUIDList, TypeURL:
			// End of the header children: a recognised top-level type.
			// Rewind its header and hand it back to the outer walk.
			if _, err := d.r.Seek(-int64(ch.HeaderSize), io.SeekCurrent); err != nil {
				return nil, err
			}
			break children

		default:
			d.log.Warn("unknown box inside jp2h, stopping",
				"type", ch.Type.String(), "offset", position(d.r))
			break children
		}
	}

	// At least one Colour Specification box is required.
	if len(hb.ColourSpecs) == 0 {
		return nil, &BoxMissingError{Type: TypeColourSpec}
	}
	// bpcc is present exactly when the ihdr depth byte says the
	// components vary.
	if hb.ImageHeader.BPC == BPCVaries && hb.BitsPerComponent == nil {
		return nil, &BoxMissingError{Type: TypeBitsPerComp}
	}
	if hb.ImageHeader.BPC != BPCVaries && hb.BitsPerComponent != nil {
		return nil, &BoxUnexpectedError{Type: TypeBitsPerComp, Offset: hb.BitsPerComponent.Offset()}
	}
	// A Palette box and a Component Mapping box imply each other.
	if hb.Palette != nil && hb.ComponentMapping == nil {
		return nil, &BoxMissingError{Type: TypeCompMapping}
	}
	if hb.Palette == nil && hb.ComponentMapping != nil {
		return nil, &BoxMissingError{Type: TypePalette}
	}

	return hb, nil
}

// decodeResolutionBox walks the children of a 'res ' super-box, which
// shall contain a capture resolution, a display resolution, or both.
func (d *Decoder) decodeResolutionBox(h BoxHeader) (*ResolutionBox, error) {
	rb := &ResolutionBox{boxInfo: newBoxInfo(TypeResolution, h, position(d.r))}
	end := rb.offset + int64(h.Length)

	for position(d.r) < end {
		ch, err := ReadBoxHeader(d.r)
		if err != nil {
			return nil, err
		}
		switch ch.Type {
		case TypeCaptureRes:
			if rb.Capture != nil {
				return nil, &BoxUnexpectedError{Type: TypeCaptureRes, Offset: position(d.r)}
			}
			if rb.Capture, err = parseResolution(d.r, TypeCaptureRes, ch); err != nil {
				return nil, err
			}
		case TypeDisplayRes:
			if rb.Display != nil {
				return nil, &BoxUnexpectedError{Type: TypeDisplayRes, Offset: position(d.r)}
			}
			if rb.Display, err = parseResolution(d.r, TypeDisplayRes, ch); err != nil {
				return nil, err
			}
		default:
			return nil, &BoxUnexpectedError{Type: ch.Type, Offset: position(d.r)}
		}
	}

	if rb.Capture == nil && rb.Display == nil {
		return nil, &BoxMalformedError{Type: TypeResolution, Offset: rb.offset}
	}
	return rb, nil
}
