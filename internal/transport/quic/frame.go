package quic

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

const frameHeaderSize = 4

var ErrFrameTooLarge = errors.New("frame exceeds size limit")

// writeFrame writes data prefixed with its big-endian uint32 length.
func writeFrame(w io.Writer, data []byte) error {
	buf := make([]byte, frameHeaderSize+len(data))
	binary.BigEndian.PutUint32(buf, uint32(len(data)))
	copy(buf[frameHeaderSize:], data)
	if _, err := w.Write(buf); err != nil {
		return errors.Wrap(err, "failed to write frame")
	}
	return nil
}

// readFrame reads one length-prefixed frame. A zero limit disables the check.
func readFrame(r io.Reader, limit uint32) ([]byte, error) {
	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, errors.Wrap(err, "failed to read frame header")
	}
	n := binary.BigEndian.Uint32(header[:])
	if limit > 0 && n > limit {
		return nil, errors.Wrapf(ErrFrameTooLarge, "%d > %d", n, limit)
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, errors.Wrap(err, "failed to read frame body")
	}
	return data, nil
}
