package jpc

import "fmt"

// MarkerMissingError reports a required marker segment that was not
// present where the codestream grammar demands it.
type MarkerMissingError struct {
	Marker Marker
}

func (e *MarkerMissingError) Error() string {
	return fmt.Sprintf("missing marker %s", e.Marker)
}

// MarkerUnexpectedError reports a marker at a position where the
// codestream grammar does not allow it.
type MarkerUnexpectedError struct {
	Marker Marker
	Offset int64
}

func (e *MarkerUnexpectedError) Error() string {
	return fmt.Sprintf("unexpected marker %s at offset %d", e.Marker, e.Offset)
}

// MarkerDataError reports a marker segment whose payload violates its
// own framing or value constraints.
type MarkerDataError struct {
	Marker      Marker
	Description string
}

func (e *MarkerDataError) Error() string {
	return fmt.Sprintf("marker %s: %s", e.Marker, e.Description)
}

// TileGridOffsetOverflowError reports SIZ tile offsets beyond the
// image offsets: XTOsiz <= XOsiz and YTOsiz <= YOsiz must hold.
type TileGridOffsetOverflowError struct {
	XTOsiz, YTOsiz uint32
	XOsiz, YOsiz   uint32
}

func (e *TileGridOffsetOverflowError) Error() string {
	return fmt.Sprintf("tile grid offset (%d, %d) exceeds image offset (%d, %d)",
		e.XTOsiz, e.YTOsiz, e.XOsiz, e.YOsiz)
}

// TileSizeOverflowError reports SIZ tile sizes that leave the first
// tile outside the image area: XTsiz+XTOsiz > XOsiz and
// YTsiz+YTOsiz > YOsiz must hold.
type TileSizeOverflowError struct {
	XTsiz, YTsiz   uint32
	XTOsiz, YTOsiz uint32
	XOsiz, YOsiz   uint32
}

func (e *TileSizeOverflowError) Error() string {
	return fmt.Sprintf("first tile (%d+%d, %d+%d) does not reach image offset (%d, %d)",
		e.XTsiz, e.XTOsiz, e.YTsiz, e.YTOsiz, e.XOsiz, e.YOsiz)
}
