// Package pluginstate reads and writes unit state files. A file is a fixed
// header followed by the unit's own state blob:
//
//	magic      12 bytes  "PLUGHOSTSTAT"
//	version    int32 LE  currently 0
//	id length  int32 LE
//	id         id length bytes, the identifier of the unit that wrote it
//	state      whatever the unit writes, until the end of the stream
//
// Loading checks the header and the identifier before the unit sees a single
// byte of its state.
package pluginstate

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/Xenakios/AudioPluginHost-II-sub001"
)

const (
	Magic   = "PLUGHOSTSTAT"
	Version = 0

	// MaxIDLength bounds the identifier length read from a file, so that a
	// corrupt header cannot make us allocate gigabytes.
	MaxIDLength = 4096
)

// Header is the part of a state file that precedes the unit's blob.
type Header struct {
	Version int32
	ID      string
}

func WriteHeader(w io.Writer, id string) error {
	if len(id) > MaxIDLength {
		return plughost.ConfigErrorf("unit id is %d bytes, longer than %d", len(id), MaxIDLength)
	}
	buf := make([]byte, 0, len(Magic)+8+len(id))
	buf = append(buf, Magic...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(Version))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(id)))
	buf = append(buf, id...)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("could not write state header: %w", err)
	}
	return nil
}

// ReadHeader reads and validates a header, leaving r at the first byte of
// the unit's blob.
func ReadHeader(r io.Reader) (Header, error) {
	var fixed [len(Magic) + 8]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Header{}, plughost.ProtocolErrorf("state file is truncated")
		}
		return Header{}, fmt.Errorf("could not read state header: %w", err)
	}
	if string(fixed[:len(Magic)]) != Magic {
		return Header{}, plughost.ProtocolErrorf("not a state file: bad magic %q", fixed[:len(Magic)])
	}
	h := Header{Version: int32(binary.LittleEndian.Uint32(fixed[len(Magic):]))}
	if h.Version != Version {
		return h, plughost.ProtocolErrorf("unsupported state file version %d", h.Version)
	}
	n := int32(binary.LittleEndian.Uint32(fixed[len(Magic)+4:]))
	if n < 0 || n > MaxIDLength {
		return h, plughost.ProtocolErrorf("invalid unit id length %d", n)
	}
	id := make([]byte, n)
	if _, err := io.ReadFull(r, id); err != nil {
		return h, plughost.ProtocolErrorf("state file is truncated in unit id")
	}
	h.ID = string(id)
	return h, nil
}

// Save writes a complete state file for u.
func Save(w io.Writer, u plughost.StatefulUnit) error {
	bw := bufio.NewWriter(w)
	if err := WriteHeader(bw, u.ID()); err != nil {
		return err
	}
	if err := u.SaveState(bw); err != nil {
		return fmt.Errorf("unit %s could not save its state: %w", u.ID(), err)
	}
	return bw.Flush()
}

// Load reads a state file into u. The file must have been written by a unit
// with the same identifier.
func Load(r io.Reader, u plughost.StatefulUnit) error {
	h, err := ReadHeader(r)
	if err != nil {
		return err
	}
	if h.ID != u.ID() {
		return plughost.ProtocolErrorf("state file belongs to unit %q, not %q", h.ID, u.ID())
	}
	if err := u.LoadState(r); err != nil {
		return fmt.Errorf("unit %s could not load its state: %w", u.ID(), err)
	}
	return nil
}
