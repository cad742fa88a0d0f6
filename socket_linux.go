//go:build linux

package socketcan

import (
	"errors"
	"fmt"
	"net"
	"runtime"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ErrClosed is returned by operations on a socket that was already closed.
var ErrClosed = errors.New("socketcan: socket closed")

// InterfaceLookupError reports that a named CAN interface could not be
// resolved to a kernel interface index. It is distinct from syscall level
// failures so callers can tell a bad device name from a system problem.
type InterfaceLookupError struct {
	Name string
	Err  error
}

func (e *InterfaceLookupError) Error() string {
	return fmt.Sprintf("socketcan: CAN device %q not found: %v", e.Name, e.Err)
}

func (e *InterfaceLookupError) Unwrap() error { return e.Err }

// Socket is a raw CAN_RAW socket bound to one bus interface. It is the sole
// owner of its file descriptor; Close releases it exactly once, and an
// unclosed Socket releases it when garbage collected.
//
// A Socket is safe for one concurrent reader plus one concurrent writer.
// Anything beyond that must be serialized by the caller.
type Socket struct {
	fd int
}

// Open opens a CAN device by interface name, such as "can0" or "vcan0".
func Open(ifname string) (*Socket, error) {
	ifi, err := net.InterfaceByName(ifname)
	if err != nil {
		return nil, &InterfaceLookupError{Name: ifname, Err: err}
	}
	return OpenInterface(ifi.Index)
}

// OpenInterface opens a CAN device by kernel interface index, skipping name
// resolution. Index 0 binds to all CAN interfaces.
func OpenInterface(index int) (*Socket, error) {
	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return nil, fmt.Errorf("socket(AF_CAN): %w", err)
	}
	// Classic CAN only; older kernels may not know the option.
	if err := unix.SetsockoptInt(fd, unix.SOL_CAN_RAW, unix.CAN_RAW_FD_FRAMES, 0); err != nil {
		if err != unix.ENOPROTOOPT {
			_ = unix.Close(fd)
			return nil, fmt.Errorf("disable CAN FD: %w", err)
		}
	}
	sa := &unix.SockaddrCAN{Ifindex: index}
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("bind(can@%d): %w", index, err)
	}
	s := &Socket{fd: fd}
	runtime.SetFinalizer(s, (*Socket).Close)
	return s, nil
}

// Close releases the socket's file descriptor. The first call wins; any
// further call returns ErrClosed.
func (s *Socket) Close() error {
	if s.fd < 0 {
		return ErrClosed
	}
	runtime.SetFinalizer(s, nil)
	err := unix.Close(s.fd)
	s.fd = -1
	return err
}

// FD exposes the raw file descriptor, for callers that need to poll or pass
// it along. The Socket keeps ownership; do not close it.
func (s *Socket) FD() int { return s.fd }

// Read blocks for a single frame and returns it together with its kernel
// receive timestamp. The frame transfer and the timestamp ioctl are two
// consecutive syscalls; if either fails the whole call fails.
//
// The timestamp comes from the SIOCGSTAMPNS ioctl, so it carries nanosecond
// resolution where the kernel clock provides it.
func (s *Socket) Read() (Frame, time.Time, error) {
	var buf [FrameLen]byte
	n, err := unix.Read(s.fd, buf[:])
	if err != nil {
		return Frame{}, time.Time{}, fmt.Errorf("socketcan read: %w", err)
	}
	if n != FrameLen {
		return Frame{}, time.Time{}, fmt.Errorf("socketcan read: short transfer (%d of %d bytes)", n, FrameLen)
	}
	var f Frame
	if err := f.UnmarshalBinary(buf[:]); err != nil {
		return Frame{}, time.Time{}, err
	}
	ts, err := s.timestamp()
	if err != nil {
		return Frame{}, time.Time{}, err
	}
	return f, ts, nil
}

func (s *Socket) timestamp() (time.Time, error) {
	var ts unix.Timespec
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(s.fd), uintptr(unix.SIOCGSTAMPNS), uintptr(unsafe.Pointer(&ts)))
	if errno != 0 {
		return time.Time{}, fmt.Errorf("socketcan timestamp: %w", errno)
	}
	return time.Unix(ts.Unix()), nil
}

// Write transmits a single frame. The transfer must cover the full wire
// layout; anything shorter is an error. Write does not retry: on a busy or
// non-blocking socket it can fail with a retryable error, see ShouldRetry
// and WriteRetry.
func (s *Socket) Write(f Frame) error {
	buf, err := f.MarshalBinary()
	if err != nil {
		return err
	}
	n, err := unix.Write(s.fd, buf)
	if err != nil {
		return fmt.Errorf("socketcan write: %w", err)
	}
	if n != FrameLen {
		return fmt.Errorf("socketcan write: short transfer (%d of %d bytes)", n, FrameLen)
	}
	return nil
}

// WriteRetry transmits a frame, retrying as long as the failure is
// retryable. The loop is unbounded with no backoff: without a write timeout
// on the socket it can spin on a saturated bus forever. Set one with
// SetWriteTimeout so the underlying transfer eventually fails for real.
func (s *Socket) WriteRetry(f Frame) error {
	return writeRetry(func() error { return s.Write(f) })
}

func writeRetry(write func() error) error {
	for {
		err := write()
		if err == nil || !ShouldRetry(err) {
			return err
		}
	}
}

// SetNonblocking toggles the O_NONBLOCK mode of the descriptor. In
// non-blocking mode reads and writes fail with a retryable error instead of
// stalling.
func (s *Socket) SetNonblocking(enabled bool) error {
	return unix.SetNonblock(s.fd, enabled)
}

// SetReadTimeout bounds how long a blocking Read may wait before failing
// with a retryable timeout error. Zero disables the timeout.
func (s *Socket) SetReadTimeout(d time.Duration) error {
	return s.setTimeout(unix.SO_RCVTIMEO, d)
}

// SetWriteTimeout bounds how long a blocking Write may wait before failing
// with a retryable timeout error. Zero disables the timeout.
func (s *Socket) SetWriteTimeout(d time.Duration) error {
	return s.setTimeout(unix.SO_SNDTIMEO, d)
}

func (s *Socket) setTimeout(opt int, d time.Duration) error {
	tv := unix.NsecToTimeval(d.Nanoseconds())
	return unix.SetsockoptTimeval(s.fd, unix.SOL_SOCKET, opt, &tv)
}

// SetFilters replaces the socket's acceptance filter list. The kernel applies
// the new list atomically to subsequent deliveries. An empty list is a valid
// configuration that accepts nothing, which is not the same as never having
// installed filters (the default single filter accepts everything).
func (s *Socket) SetFilters(filters []Filter) error {
	kf := make([]unix.CanFilter, len(filters))
	for i, f := range filters {
		kf[i] = unix.CanFilter{Id: f.ID, Mask: f.Mask}
	}
	return unix.SetsockoptCanRawFilter(s.fd, unix.SOL_CAN_RAW, unix.CAN_RAW_FILTER, kf)
}

// SetErrorMask selects which error conditions the kernel delivers as error
// frames on this socket. The default is ErrorMaskNone: no error reporting.
func (s *Socket) SetErrorMask(mask uint32) error {
	return unix.SetsockoptInt(s.fd, unix.SOL_CAN_RAW, unix.CAN_RAW_ERR_FILTER, int(mask))
}

// SetLoopback toggles local loopback of sent frames to other sockets on the
// same host. Enabled by default.
func (s *Socket) SetLoopback(enabled bool) error {
	return s.setBoolOpt(unix.CAN_RAW_LOOPBACK, enabled)
}

// SetRecvOwnMsgs toggles whether this socket receives the frames it sent
// itself (only effective while loopback is enabled). Disabled by default.
func (s *Socket) SetRecvOwnMsgs(enabled bool) error {
	return s.setBoolOpt(unix.CAN_RAW_RECV_OWN_MSGS, enabled)
}

// SetJoinFilters switches filter acceptance from any-match to all-match:
// with join filters enabled a frame must match every installed filter.
// Disabled by default.
func (s *Socket) SetJoinFilters(enabled bool) error {
	return s.setBoolOpt(unix.CAN_RAW_JOIN_FILTERS, enabled)
}

func (s *Socket) setBoolOpt(opt int, enabled bool) error {
	v := 0
	if enabled {
		v = 1
	}
	return unix.SetsockoptInt(s.fd, unix.SOL_CAN_RAW, opt, v)
}

// ShouldRetry reports whether an I/O error is a transient condition worth
// retrying: a timeout or would-block on a socket with a read/write timeout
// or in non-blocking mode, an interrupted syscall, or an operation still in
// progress. Everything else (device gone, permission denied, closed socket)
// is fatal and should propagate.
func ShouldRetry(err error) bool {
	return errors.Is(err, unix.EAGAIN) ||
		errors.Is(err, unix.EWOULDBLOCK) ||
		errors.Is(err, unix.EINPROGRESS) ||
		errors.Is(err, unix.EINTR)
}
