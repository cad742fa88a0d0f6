// Package socketcan provides structured access to Linux SocketCAN, the
// kernel's network-like exposure of a CAN bus.
//
// The Linux kernel makes CAN devices available as regular network
// interfaces (see https://www.kernel.org/doc/Documentation/networking/can.txt).
// Opening an interface delivers every frame received on that bus; a device
// can be opened by multiple sockets at once and each receives all traffic.
//
// # Frames
//
// A CAN frame is an identifier plus up to 8 payload bytes. Identifiers come
// in a standard 11 bit and an extended 29 bit flavor, and lower identifiers
// win bus arbitration. Frame mirrors the kernel's can_frame binary layout so
// frames move between user space and the kernel as a single 16 byte copy:
//
//	f, err := socketcan.NewFrame(0x7B, []byte{0xDE, 0xAD, 0xBE, 0xEF}, false, false)
//
// # Sockets
//
//	s, err := socketcan.Open("can0")
//	if err != nil { ... }
//	defer s.Close()
//
//	frame, ts, err := s.Read()
//	err = s.Write(frame)
//
// Reads and writes are blocking syscalls. Timeouts (SetReadTimeout,
// SetWriteTimeout) and non-blocking mode surface as retryable errors,
// classified by ShouldRetry; WriteRetry loops over exactly that class.
// Acceptance filters, the error mask and the loopback behaviors are
// per-socket kernel options set once after opening.
//
// # Error frames
//
// With a non-zero error mask the kernel synthesizes error frames describing
// bus faults. DecodeError turns such a frame into a typed BusError report:
//
//	if frame.IsError() {
//		report, err := socketcan.DecodeError(frame)
//		...
//	}
//
// The transport compiles on Linux only; the frame model and error decoding
// are portable.
package socketcan
