package socketcan

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// SocketCAN flag bits and masks for the can_id word, same values as
// <linux/can.h>. Kept here (instead of pulling golang.org/x/sys/unix) so the
// frame model builds on every platform.
const (
	// EFFFlag marks a frame using the 29 bit extended identifier format.
	EFFFlag = 0x80000000
	// RTRFlag marks a remote transmission request.
	RTRFlag = 0x40000000
	// ErrFlag marks an error message frame synthesized by the controller.
	ErrFlag = 0x20000000

	// SFFMask covers the valid bits of a standard 11 bit identifier.
	SFFMask = 0x000007FF
	// EFFMask covers the valid bits of an extended 29 bit identifier.
	EFFMask = 0x1FFFFFFF
	// ErrMask covers the valid bits of an error class code.
	ErrMask = 0x1FFFFFFF
)

// FrameLen is the size of the classic CAN wire transfer unit
// (struct can_frame): 4 byte id word, 1 byte length, 3 bytes of
// padding/reserved space, 8 data bytes.
const FrameLen = 16

// MaxDataLen is the payload limit of a classic CAN frame.
const MaxDataLen = 8

// Frame construction errors.
var (
	ErrIDTooLarge  = errors.New("socketcan: identifier exceeds 29 bits")
	ErrTooMuchData = errors.New("socketcan: payload exceeds 8 bytes")
)

// Frame is a single classic CAN frame in the kernel's can_frame shape: the id
// word carries the EFF/RTR/ERR flags in its upper bits, and only the first
// Len() bytes of the data buffer are meaningful.
//
// Frames are plain values. Construct them with NewFrame (send path) or
// UnmarshalBinary (receive path) and copy them freely; there is no shared
// state behind a Frame.
type Frame struct {
	id   uint32
	dlc  uint8
	data [MaxDataLen]byte
}

// NewFrame builds a frame from an identifier and payload. The extended frame
// format bit is derived from the identifier value: anything above the 11 bit
// range is sent as an extended frame. Callers cannot force a small id into
// the extended format.
//
// Fails with ErrIDTooLarge for identifiers beyond 29 bits and ErrTooMuchData
// for payloads longer than 8 bytes.
func NewFrame(id uint32, data []byte, rtr, errFrame bool) (Frame, error) {
	if id > EFFMask {
		return Frame{}, fmt.Errorf("%w: 0x%X", ErrIDTooLarge, id)
	}
	if len(data) > MaxDataLen {
		return Frame{}, fmt.Errorf("%w: %d", ErrTooMuchData, len(data))
	}
	word := id
	if id > SFFMask {
		word |= EFFFlag
	}
	if rtr {
		word |= RTRFlag
	}
	if errFrame {
		word |= ErrFlag
	}
	f := Frame{id: word, dlc: uint8(len(data))}
	copy(f.data[:], data)
	return f, nil
}

// ID returns the identifier without any flag bits, masked to 11 or 29 bits
// depending on the frame format.
func (f Frame) ID() uint32 {
	if f.IsExtended() {
		return f.id & EFFMask
	}
	return f.id & SFFMask
}

// IsExtended reports whether the frame uses the 29 bit identifier format.
func (f Frame) IsExtended() bool { return f.id&EFFFlag != 0 }

// IsRTR reports whether the frame is a remote transmission request.
func (f Frame) IsRTR() bool { return f.id&RTRFlag != 0 }

// IsError reports whether the frame is an error message frame.
func (f Frame) IsError() bool { return f.id&ErrFlag != 0 }

// Len returns the declared payload length (0..8).
func (f Frame) Len() int { return int(f.dlc) }

// Data returns a view of the meaningful payload bytes, never longer than 8.
func (f Frame) Data() []byte { return f.data[:f.dlc] }

// ErrorClass returns the error class code carried in the id word of an error
// frame. The value is only meaningful when IsError is true; check that first.
func (f Frame) ErrorClass() uint32 { return f.id & ErrMask }

// MarshalBinary encodes the frame into the 16 byte can_frame wire layout.
// The id word is written little-endian, matching the host byte order of the
// kernel ABI on the architectures Linux SocketCAN runs on here.
func (f Frame) MarshalBinary() ([]byte, error) {
	buf := make([]byte, FrameLen)
	binary.LittleEndian.PutUint32(buf[0:4], f.id)
	buf[4] = f.dlc
	copy(buf[8:], f.data[:])
	return buf, nil
}

// UnmarshalBinary decodes a frame from the 16 byte can_frame wire layout.
// Buffers of any other length are rejected; a short transfer never yields a
// partial frame.
func (f *Frame) UnmarshalBinary(buf []byte) error {
	if len(buf) != FrameLen {
		return fmt.Errorf("socketcan: frame must be %d bytes, got %d", FrameLen, len(buf))
	}
	dlc := buf[4]
	if dlc > MaxDataLen {
		return fmt.Errorf("socketcan: invalid frame length %d", dlc)
	}
	f.id = binary.LittleEndian.Uint32(buf[0:4])
	f.dlc = dlc
	copy(f.data[:], buf[8:])
	return nil
}

// String renders the frame in the compact ID#BYTES form used by the
// can-utils tools, e.g. "7B#DEADBEEF".
func (f Frame) String() string { return f.format("") }

// Dump renders the frame like String but with the payload bytes separated by
// spaces, e.g. "7B#DE AD BE EF". Meant for logs and interactive dumps.
func (f Frame) Dump() string { return f.format(" ") }

func (f Frame) format(sep string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%X#", f.ID())
	for i, c := range f.Data() {
		if i > 0 {
			b.WriteString(sep)
		}
		fmt.Fprintf(&b, "%02X", c)
	}
	return b.String()
}

// ParseFrame parses the textual ID#BYTES form produced by String. An id of
// more than 3 hex digits is taken as a request for the extended format, so
// "00000100#" round-trips as extended while "100#" stays standard only if
// the value fits; the value itself still decides when it exceeds 11 bits.
// A trailing "#R" marks a remote transmission request.
func ParseFrame(s string) (Frame, error) {
	idPart, dataPart, ok := strings.Cut(s, "#")
	if !ok {
		return Frame{}, fmt.Errorf("socketcan: %q: missing '#' separator", s)
	}
	id, err := strconv.ParseUint(idPart, 16, 32)
	if err != nil {
		return Frame{}, fmt.Errorf("socketcan: bad identifier %q: %w", idPart, err)
	}
	rtr := false
	if dataPart == "R" || dataPart == "r" {
		rtr = true
		dataPart = ""
	}
	dataPart = strings.ReplaceAll(dataPart, " ", "")
	if len(dataPart)%2 != 0 {
		return Frame{}, fmt.Errorf("socketcan: %q: odd number of payload digits", s)
	}
	data := make([]byte, 0, MaxDataLen)
	for i := 0; i < len(dataPart); i += 2 {
		c, err := strconv.ParseUint(dataPart[i:i+2], 16, 8)
		if err != nil {
			return Frame{}, fmt.Errorf("socketcan: bad payload byte %q: %w", dataPart[i:i+2], err)
		}
		data = append(data, byte(c))
	}
	f, err := NewFrame(uint32(id), data, rtr, false)
	if err != nil {
		return Frame{}, err
	}
	// More than 3 id digits forces the extended format, can-utils style.
	if len(idPart) > 3 && !f.IsExtended() {
		f.id |= EFFFlag
	}
	return f, nil
}
