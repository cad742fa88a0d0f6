package socketcan

import (
	"errors"
	"fmt"
)

// Error class codes carried in the id word of an error frame, from
// <linux/can/error.h>. Exactly one bit is set per frame.
const (
	classTxTimeout   = 0x00000001
	classLostArb     = 0x00000002
	classController  = 0x00000004
	classProtocol    = 0x00000008
	classTransceiver = 0x00000010
	classNoAck       = 0x00000020
	classBusOff      = 0x00000040
	classBusError    = 0x00000080
	classRestarted   = 0x00000100
)

// Decoding failures. Each names the exact step that failed; decoding never
// substitutes a default for an unrecognized byte.
var (
	// ErrNotErrorFrame is returned when the frame's error bit is unset.
	ErrNotErrorFrame = errors.New("socketcan: frame is not an error frame")

	// ErrInvalidControllerProblem marks an unmapped controller status byte.
	ErrInvalidControllerProblem = errors.New("socketcan: invalid controller problem code")
	// ErrInvalidViolationType marks an unmapped protocol violation byte.
	ErrInvalidViolationType = errors.New("socketcan: invalid protocol violation code")
	// ErrInvalidLocation marks an unmapped violation location byte.
	ErrInvalidLocation = errors.New("socketcan: invalid violation location code")
	// ErrInvalidTransceiverStatus marks an unmapped transceiver status byte.
	ErrInvalidTransceiverStatus = errors.New("socketcan: invalid transceiver status code")
)

// UnknownErrorClassError reports an error frame whose class code matches none
// of the known single-bit values.
type UnknownErrorClassError struct {
	Class uint32
}

func (e *UnknownErrorClassError) Error() string {
	return fmt.Sprintf("socketcan: unknown error class 0x%X", e.Class)
}

// NotEnoughDataError reports an error frame whose class requires a
// sub-classification byte beyond the declared payload length.
type NotEnoughDataError struct {
	Index uint8
}

func (e *NotEnoughDataError) Error() string {
	return fmt.Sprintf("socketcan: error frame payload too short, need byte %d", e.Index)
}

// BusError is a decoded bus fault report. The set of implementations is
// closed: TransmitTimeout, LostArbitration, ControllerProblemError,
// ProtocolViolation, TransceiverFault, NoAck, BusOff, BusFault and
// Restarted. Every implementation is also an error carrying a
// human-diagnosable message.
type BusError interface {
	error
	busError()
}

// TransmitTimeout reports a TX timeout by the netdevice driver.
type TransmitTimeout struct{}

// LostArbitration reports lost arbitration, with the bit position at which
// arbitration was lost (0 if unspecified).
type LostArbitration struct{ Bit uint8 }

// ControllerProblemError reports a controller status condition.
type ControllerProblemError struct{ Problem ControllerProblem }

// ProtocolViolation reports a protocol violation and where in the frame
// it occurred.
type ProtocolViolation struct {
	Type     ViolationType
	Location Location
}

// TransceiverFault reports a transceiver level fault. The detailed status is
// carried in payload byte 4; see DecodeTransceiverStatus.
type TransceiverFault struct{}

// NoAck reports that no ACK was received for a transmitted frame.
type NoAck struct{}

// BusOff reports that the controller went bus-off after too many errors.
type BusOff struct{}

// BusFault reports a raw bus error.
type BusFault struct{}

// Restarted reports that the controller was successfully restarted.
type Restarted struct{}

func (TransmitTimeout) busError()        {}
func (LostArbitration) busError()        {}
func (ControllerProblemError) busError() {}
func (ProtocolViolation) busError()      {}
func (TransceiverFault) busError()       {}
func (NoAck) busError()                  {}
func (BusOff) busError()                 {}
func (BusFault) busError()               {}
func (Restarted) busError()              {}

func (TransmitTimeout) Error() string { return "transmission timeout" }

func (e LostArbitration) Error() string {
	return fmt.Sprintf("arbitration lost after %d bits", e.Bit)
}

func (e ControllerProblemError) Error() string {
	return fmt.Sprintf("controller problem: %s", e.Problem)
}

func (e ProtocolViolation) Error() string {
	return fmt.Sprintf("protocol violation at %s: %s", e.Location, e.Type)
}

func (TransceiverFault) Error() string { return "transceiver error" }
func (NoAck) Error() string            { return "no ack" }
func (BusOff) Error() string           { return "bus off" }
func (BusFault) Error() string         { return "bus error" }
func (Restarted) Error() string        { return "restarted" }

// ControllerProblem is the controller status sub-classification from payload
// byte 1 of a controller error frame. Values match <linux/can/error.h>.
type ControllerProblem uint8

const (
	CtrlUnspecified      ControllerProblem = 0x00
	CtrlRxBufferOverflow ControllerProblem = 0x01
	CtrlTxBufferOverflow ControllerProblem = 0x02
	CtrlRxErrorWarning   ControllerProblem = 0x04
	CtrlTxErrorWarning   ControllerProblem = 0x08
	CtrlRxErrorPassive   ControllerProblem = 0x10
	CtrlTxErrorPassive   ControllerProblem = 0x20
	CtrlActive           ControllerProblem = 0x40
)

func (p ControllerProblem) String() string {
	switch p {
	case CtrlUnspecified:
		return "unspecified controller problem"
	case CtrlRxBufferOverflow:
		return "receive buffer overflow"
	case CtrlTxBufferOverflow:
		return "transmit buffer overflow"
	case CtrlRxErrorWarning:
		return "ERROR WARNING (receive)"
	case CtrlTxErrorWarning:
		return "ERROR WARNING (transmit)"
	case CtrlRxErrorPassive:
		return "ERROR PASSIVE (receive)"
	case CtrlTxErrorPassive:
		return "ERROR PASSIVE (transmit)"
	case CtrlActive:
		return "ERROR ACTIVE"
	}
	return fmt.Sprintf("ControllerProblem(0x%02X)", uint8(p))
}

// DecodeControllerProblem maps a controller status byte to its
// ControllerProblem, failing with ErrInvalidControllerProblem for bytes
// outside the fixed table.
func DecodeControllerProblem(b byte) (ControllerProblem, error) {
	switch p := ControllerProblem(b); p {
	case CtrlUnspecified, CtrlRxBufferOverflow, CtrlTxBufferOverflow,
		CtrlRxErrorWarning, CtrlTxErrorWarning,
		CtrlRxErrorPassive, CtrlTxErrorPassive, CtrlActive:
		return p, nil
	}
	return 0, fmt.Errorf("%w: 0x%02X", ErrInvalidControllerProblem, b)
}

// ViolationType is the protocol violation sub-classification from payload
// byte 2 of a protocol error frame.
type ViolationType uint8

const (
	ViolationUnspecified      ViolationType = 0x00
	ViolationSingleBit        ViolationType = 0x01
	ViolationFrameFormat      ViolationType = 0x02
	ViolationBitStuffing      ViolationType = 0x04
	ViolationDominantBitSend  ViolationType = 0x08
	ViolationRecessiveBitSend ViolationType = 0x10
	ViolationBusOverload      ViolationType = 0x20
	ViolationActive           ViolationType = 0x40
	ViolationTransmission     ViolationType = 0x80
)

func (v ViolationType) String() string {
	switch v {
	case ViolationUnspecified:
		return "unspecified"
	case ViolationSingleBit:
		return "single bit error"
	case ViolationFrameFormat:
		return "frame format error"
	case ViolationBitStuffing:
		return "bit stuffing error"
	case ViolationDominantBitSend:
		return "unable to send dominant bit"
	case ViolationRecessiveBitSend:
		return "unable to send recessive bit"
	case ViolationBusOverload:
		return "bus overload"
	case ViolationActive:
		return "active"
	case ViolationTransmission:
		return "transmission error"
	}
	return fmt.Sprintf("ViolationType(0x%02X)", uint8(v))
}

// DecodeViolationType maps a protocol violation byte to its ViolationType,
// failing with ErrInvalidViolationType for bytes outside the fixed table.
func DecodeViolationType(b byte) (ViolationType, error) {
	switch v := ViolationType(b); v {
	case ViolationUnspecified, ViolationSingleBit, ViolationFrameFormat,
		ViolationBitStuffing, ViolationDominantBitSend, ViolationRecessiveBitSend,
		ViolationBusOverload, ViolationActive, ViolationTransmission:
		return v, nil
	}
	return 0, fmt.Errorf("%w: 0x%02X", ErrInvalidViolationType, b)
}

// Location names the section of a frame in which a protocol violation
// occurred, from payload byte 3 of a protocol error frame. The code points
// are not contiguous; they come straight from the bus error reporting spec.
type Location uint8

const (
	LocUnspecified    Location = 0x00
	LocStartOfFrame   Location = 0x03
	LocID2821         Location = 0x02
	LocID2018         Location = 0x06
	LocSubstituteRTR  Location = 0x04
	LocIDExtension    Location = 0x05
	LocID1713         Location = 0x07
	LocID1205         Location = 0x0F
	LocID0400         Location = 0x0E
	LocRTR            Location = 0x0C
	LocReserved1      Location = 0x0D
	LocReserved0      Location = 0x09
	LocDataLengthCode Location = 0x0B
	LocDataSection    Location = 0x0A
	LocCRCSequence    Location = 0x08
	LocCRCDelimiter   Location = 0x18
	LocAckSlot        Location = 0x19
	LocAckDelimiter   Location = 0x1B
	LocEndOfFrame     Location = 0x1A
	LocIntermission   Location = 0x12
)

func (l Location) String() string {
	switch l {
	case LocUnspecified:
		return "unspecified location"
	case LocStartOfFrame:
		return "start of frame"
	case LocID2821:
		return "ID, bits 28-21"
	case LocID2018:
		return "ID, bits 20-18"
	case LocSubstituteRTR:
		return "substitute RTR bit"
	case LocIDExtension:
		return "ID, extension"
	case LocID1713:
		return "ID, bits 17-13"
	case LocID1205:
		return "ID, bits 12-05"
	case LocID0400:
		return "ID, bits 04-00"
	case LocRTR:
		return "RTR bit"
	case LocReserved1:
		return "reserved bit 1"
	case LocReserved0:
		return "reserved bit 0"
	case LocDataLengthCode:
		return "data length code"
	case LocDataSection:
		return "data section"
	case LocCRCSequence:
		return "CRC sequence"
	case LocCRCDelimiter:
		return "CRC delimiter"
	case LocAckSlot:
		return "ACK slot"
	case LocAckDelimiter:
		return "ACK delimiter"
	case LocEndOfFrame:
		return "end of frame"
	case LocIntermission:
		return "intermission"
	}
	return fmt.Sprintf("Location(0x%02X)", uint8(l))
}

// DecodeLocation maps a violation location byte to its Location, failing
// with ErrInvalidLocation for bytes outside the fixed table.
func DecodeLocation(b byte) (Location, error) {
	switch l := Location(b); l {
	case LocUnspecified, LocStartOfFrame, LocID2821, LocID2018,
		LocSubstituteRTR, LocIDExtension, LocID1713, LocID1205, LocID0400,
		LocRTR, LocReserved1, LocReserved0, LocDataLengthCode, LocDataSection,
		LocCRCSequence, LocCRCDelimiter, LocAckSlot, LocAckDelimiter,
		LocEndOfFrame, LocIntermission:
		return l, nil
	}
	return 0, fmt.Errorf("%w: 0x%02X", ErrInvalidLocation, b)
}

// TransceiverStatus is the transceiver sub-classification from payload
// byte 4 of a transceiver error frame.
type TransceiverStatus uint8

const (
	TrxUnspecified    TransceiverStatus = 0x00
	TrxHighNoWire     TransceiverStatus = 0x04
	TrxHighShortToBat TransceiverStatus = 0x05
	TrxHighShortToVcc TransceiverStatus = 0x06
	TrxHighShortToGnd TransceiverStatus = 0x07
	TrxLowNoWire      TransceiverStatus = 0x40
	TrxLowShortToBat  TransceiverStatus = 0x50
	TrxLowShortToVcc  TransceiverStatus = 0x60
	TrxLowShortToGnd  TransceiverStatus = 0x70
	TrxLowShortToHigh TransceiverStatus = 0x80
)

func (t TransceiverStatus) String() string {
	switch t {
	case TrxUnspecified:
		return "Unspecified"
	case TrxHighNoWire:
		return "CANbus High Wire Open"
	case TrxHighShortToBat:
		return "CANbus High Short to Battery"
	case TrxHighShortToVcc:
		return "CANbus High Short to VCC"
	case TrxHighShortToGnd:
		return "CANbus High Short to Ground"
	case TrxLowNoWire:
		return "CANbus Low Wire Open"
	case TrxLowShortToBat:
		return "CANbus Low Short to Battery"
	case TrxLowShortToVcc:
		return "CANbus Low Short to VCC"
	case TrxLowShortToGnd:
		return "CANbus Low Short to Ground"
	case TrxLowShortToHigh:
		return "CANbus Low and High Shorted"
	}
	return fmt.Sprintf("TransceiverStatus(0x%02X)", uint8(t))
}

// DecodeTransceiverStatus maps a transceiver status byte to its
// TransceiverStatus, failing with ErrInvalidTransceiverStatus for bytes
// outside the fixed table.
func DecodeTransceiverStatus(b byte) (TransceiverStatus, error) {
	switch t := TransceiverStatus(b); t {
	case TrxUnspecified, TrxHighNoWire, TrxHighShortToBat, TrxHighShortToVcc,
		TrxHighShortToGnd, TrxLowNoWire, TrxLowShortToBat, TrxLowShortToVcc,
		TrxLowShortToGnd, TrxLowShortToHigh:
		return t, nil
	}
	return 0, fmt.Errorf("%w: 0x%02X", ErrInvalidTransceiverStatus, b)
}

// DecodeError classifies an error frame into a BusError. The frame must have
// its error bit set; anything else fails with ErrNotErrorFrame. Classes that
// carry sub-classification read the documented payload byte and fail with
// *NotEnoughDataError when the declared payload is too short, or with the
// matching ErrInvalid* sentinel when the byte is outside its table.
//
// Decoding is pure: it never mutates the frame and repeated calls yield
// identical results.
func DecodeError(f Frame) (BusError, error) {
	if !f.IsError() {
		return nil, ErrNotErrorFrame
	}
	switch class := f.ErrorClass(); class {
	case classTxTimeout:
		return TransmitTimeout{}, nil
	case classLostArb:
		b, err := payloadByte(f, 0)
		if err != nil {
			return nil, err
		}
		return LostArbitration{Bit: b}, nil
	case classController:
		b, err := payloadByte(f, 1)
		if err != nil {
			return nil, err
		}
		p, err := DecodeControllerProblem(b)
		if err != nil {
			return nil, err
		}
		return ControllerProblemError{Problem: p}, nil
	case classProtocol:
		tb, err := payloadByte(f, 2)
		if err != nil {
			return nil, err
		}
		vt, err := DecodeViolationType(tb)
		if err != nil {
			return nil, err
		}
		lb, err := payloadByte(f, 3)
		if err != nil {
			return nil, err
		}
		loc, err := DecodeLocation(lb)
		if err != nil {
			return nil, err
		}
		return ProtocolViolation{Type: vt, Location: loc}, nil
	case classTransceiver:
		return TransceiverFault{}, nil
	case classNoAck:
		return NoAck{}, nil
	case classBusOff:
		return BusOff{}, nil
	case classBusError:
		return BusFault{}, nil
	case classRestarted:
		return Restarted{}, nil
	default:
		return nil, &UnknownErrorClassError{Class: class}
	}
}

// ControllerSpecificData returns the controller specific bytes (payload
// bytes 5..7) of an error frame, or nil when the frame does not carry a full
// 8 byte error payload.
func ControllerSpecificData(f Frame) []byte {
	if !f.IsError() || f.Len() != MaxDataLen {
		return nil
	}
	return f.Data()[5:]
}

func payloadByte(f Frame, idx uint8) (byte, error) {
	data := f.Data()
	if int(idx) >= len(data) {
		return 0, &NotEnoughDataError{Index: idx}
	}
	return data[idx], nil
}
