package socketcan

import (
	"bytes"
	"errors"
	"testing"
)

// errFrame builds an error frame with the given class code and payload,
// bypassing none of the construction invariants.
func errFrame(t *testing.T, class uint32, data []byte) Frame {
	t.Helper()
	f, err := NewFrame(class, data, false, true)
	if err != nil {
		t.Fatalf("errFrame(0x%X): %v", class, err)
	}
	return f
}

func TestDecodeError_NotAnError(t *testing.T) {
	f, err := NewFrame(0x2, []byte{5}, false, false)
	if err != nil {
		t.Fatal(err)
	}
	if _, derr := DecodeError(f); !errors.Is(derr, ErrNotErrorFrame) {
		t.Fatalf("got %v, want ErrNotErrorFrame", derr)
	}
}

func TestDecodeError_Classes(t *testing.T) {
	pad := make([]byte, 8)
	cases := []struct {
		name  string
		class uint32
		data  []byte
		want  BusError
	}{
		{"transmit timeout", 0x1, pad, TransmitTimeout{}},
		{"lost arbitration", 0x2, []byte{5}, LostArbitration{Bit: 5}},
		{"lost arbitration unspecified", 0x2, pad, LostArbitration{Bit: 0}},
		{"controller tx warning", 0x4, []byte{0, 0x08}, ControllerProblemError{Problem: CtrlTxErrorWarning}},
		{"controller rx overflow", 0x4, []byte{0, 0x01}, ControllerProblemError{Problem: CtrlRxBufferOverflow}},
		{"protocol violation", 0x8, []byte{0, 0, 0x01, 0x03}, ProtocolViolation{Type: ViolationSingleBit, Location: LocStartOfFrame}},
		{"protocol violation unspecified", 0x8, pad, ProtocolViolation{Type: ViolationUnspecified, Location: LocUnspecified}},
		{"transceiver", 0x10, pad, TransceiverFault{}},
		{"no ack", 0x20, pad, NoAck{}},
		{"bus off", 0x40, pad, BusOff{}},
		{"bus error", 0x80, pad, BusFault{}},
		{"restarted", 0x100, pad, Restarted{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeError(errFrame(t, tc.class, tc.data))
			if err != nil {
				t.Fatal(err)
			}
			if got != tc.want {
				t.Fatalf("got %#v, want %#v", got, tc.want)
			}
		})
	}
}

func TestDecodeError_UnknownClass(t *testing.T) {
	for _, class := range []uint32{0x200, 0x3, 0x1000, 0x1FFFFFFF} {
		_, err := DecodeError(errFrame(t, class, make([]byte, 8)))
		var uerr *UnknownErrorClassError
		if !errors.As(err, &uerr) {
			t.Fatalf("class 0x%X: got %v, want UnknownErrorClassError", class, err)
		}
		if uerr.Class != class {
			t.Fatalf("class 0x%X: error carries 0x%X", class, uerr.Class)
		}
	}
}

func TestDecodeError_NotEnoughData(t *testing.T) {
	cases := []struct {
		name    string
		class   uint32
		data    []byte
		wantIdx uint8
	}{
		{"lost arbitration empty", 0x2, nil, 0},
		{"controller short", 0x4, []byte{0}, 1},
		{"protocol missing type", 0x8, []byte{0, 0}, 2},
		{"protocol missing location", 0x8, []byte{0, 0, 0x01}, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeError(errFrame(t, tc.class, tc.data))
			var nerr *NotEnoughDataError
			if !errors.As(err, &nerr) {
				t.Fatalf("got %v, want NotEnoughDataError", err)
			}
			if nerr.Index != tc.wantIdx {
				t.Fatalf("index %d, want %d", nerr.Index, tc.wantIdx)
			}
		})
	}
}

func TestDecodeError_InvalidSubCodes(t *testing.T) {
	cases := []struct {
		name  string
		class uint32
		data  []byte
		want  error
	}{
		{"controller 0xFF", 0x4, []byte{0, 0xFF}, ErrInvalidControllerProblem},
		{"controller 0x03", 0x4, []byte{0, 0x03}, ErrInvalidControllerProblem},
		{"violation type 0x03", 0x8, []byte{0, 0, 0x03, 0x00}, ErrInvalidViolationType},
		{"location 0x01", 0x8, []byte{0, 0, 0x01, 0x01}, ErrInvalidLocation},
		{"location 0xFF", 0x8, []byte{0, 0, 0x00, 0xFF}, ErrInvalidLocation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeError(errFrame(t, tc.class, tc.data))
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestDecodeError_Idempotent(t *testing.T) {
	f := errFrame(t, 0x8, []byte{0, 0, 0x04, 0x08})
	first, err := DecodeError(f)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		again, err := DecodeError(f)
		if err != nil || again != first {
			t.Fatalf("decode %d: got %v (%v), want %v", i, again, err, first)
		}
	}
}

func TestDecodeControllerProblem_Table(t *testing.T) {
	valid := map[byte]ControllerProblem{
		0x00: CtrlUnspecified,
		0x01: CtrlRxBufferOverflow,
		0x02: CtrlTxBufferOverflow,
		0x04: CtrlRxErrorWarning,
		0x08: CtrlTxErrorWarning,
		0x10: CtrlRxErrorPassive,
		0x20: CtrlTxErrorPassive,
		0x40: CtrlActive,
	}
	for b := 0; b < 256; b++ {
		got, err := DecodeControllerProblem(byte(b))
		want, ok := valid[byte(b)]
		if ok {
			if err != nil || got != want {
				t.Errorf("byte 0x%02X: got %v (%v), want %v", b, got, err, want)
			}
		} else if !errors.Is(err, ErrInvalidControllerProblem) {
			t.Errorf("byte 0x%02X: got %v, want ErrInvalidControllerProblem", b, err)
		}
	}
}

func TestDecodeViolationType_Table(t *testing.T) {
	valid := map[byte]ViolationType{
		0x00: ViolationUnspecified,
		0x01: ViolationSingleBit,
		0x02: ViolationFrameFormat,
		0x04: ViolationBitStuffing,
		0x08: ViolationDominantBitSend,
		0x10: ViolationRecessiveBitSend,
		0x20: ViolationBusOverload,
		0x40: ViolationActive,
		0x80: ViolationTransmission,
	}
	for b := 0; b < 256; b++ {
		got, err := DecodeViolationType(byte(b))
		want, ok := valid[byte(b)]
		if ok {
			if err != nil || got != want {
				t.Errorf("byte 0x%02X: got %v (%v), want %v", b, got, err, want)
			}
		} else if !errors.Is(err, ErrInvalidViolationType) {
			t.Errorf("byte 0x%02X: got %v, want ErrInvalidViolationType", b, err)
		}
	}
}

func TestDecodeLocation_Table(t *testing.T) {
	valid := map[byte]Location{
		0x00: LocUnspecified,
		0x03: LocStartOfFrame,
		0x02: LocID2821,
		0x06: LocID2018,
		0x04: LocSubstituteRTR,
		0x05: LocIDExtension,
		0x07: LocID1713,
		0x0F: LocID1205,
		0x0E: LocID0400,
		0x0C: LocRTR,
		0x0D: LocReserved1,
		0x09: LocReserved0,
		0x0B: LocDataLengthCode,
		0x0A: LocDataSection,
		0x08: LocCRCSequence,
		0x18: LocCRCDelimiter,
		0x19: LocAckSlot,
		0x1B: LocAckDelimiter,
		0x1A: LocEndOfFrame,
		0x12: LocIntermission,
	}
	for b := 0; b < 256; b++ {
		got, err := DecodeLocation(byte(b))
		want, ok := valid[byte(b)]
		if ok {
			if err != nil || got != want {
				t.Errorf("byte 0x%02X: got %v (%v), want %v", b, got, err, want)
			}
		} else if !errors.Is(err, ErrInvalidLocation) {
			t.Errorf("byte 0x%02X: got %v, want ErrInvalidLocation", b, err)
		}
	}
}

func TestDecodeTransceiverStatus_Table(t *testing.T) {
	valid := map[byte]TransceiverStatus{
		0x00: TrxUnspecified,
		0x04: TrxHighNoWire,
		0x05: TrxHighShortToBat,
		0x06: TrxHighShortToVcc,
		0x07: TrxHighShortToGnd,
		0x40: TrxLowNoWire,
		0x50: TrxLowShortToBat,
		0x60: TrxLowShortToVcc,
		0x70: TrxLowShortToGnd,
		0x80: TrxLowShortToHigh,
	}
	for b := 0; b < 256; b++ {
		got, err := DecodeTransceiverStatus(byte(b))
		want, ok := valid[byte(b)]
		if ok {
			if err != nil || got != want {
				t.Errorf("byte 0x%02X: got %v (%v), want %v", b, got, err, want)
			}
		} else if !errors.Is(err, ErrInvalidTransceiverStatus) {
			t.Errorf("byte 0x%02X: got %v, want ErrInvalidTransceiverStatus", b, err)
		}
	}
}

func TestBusError_Messages(t *testing.T) {
	cases := []struct {
		e    BusError
		want string
	}{
		{TransmitTimeout{}, "transmission timeout"},
		{LostArbitration{Bit: 5}, "arbitration lost after 5 bits"},
		{ControllerProblemError{Problem: CtrlTxErrorWarning}, "controller problem: ERROR WARNING (transmit)"},
		{ProtocolViolation{Type: ViolationSingleBit, Location: LocStartOfFrame}, "protocol violation at start of frame: single bit error"},
		{TransceiverFault{}, "transceiver error"},
		{NoAck{}, "no ack"},
		{BusOff{}, "bus off"},
		{BusFault{}, "bus error"},
		{Restarted{}, "restarted"},
	}
	for _, tc := range cases {
		if got := tc.e.Error(); got != tc.want {
			t.Errorf("%T: %q, want %q", tc.e, got, tc.want)
		}
	}
}

func TestControllerSpecificData(t *testing.T) {
	full := errFrame(t, 0x4, []byte{0, 0x01, 0, 0, 0, 0xA, 0xB, 0xC})
	if got := ControllerSpecificData(full); !bytes.Equal(got, []byte{0xA, 0xB, 0xC}) {
		t.Fatalf("got %v", got)
	}
	short := errFrame(t, 0x4, []byte{0, 0x01})
	if got := ControllerSpecificData(short); got != nil {
		t.Fatalf("short frame: got %v, want nil", got)
	}
	plain, err := NewFrame(0x1, make([]byte, 8), false, false)
	if err != nil {
		t.Fatal(err)
	}
	if got := ControllerSpecificData(plain); got != nil {
		t.Fatalf("non-error frame: got %v, want nil", got)
	}
}
