//go:build !linux

package socketcan

import (
	"errors"
	"time"
)

// ErrNotSupported is returned on platforms without SocketCAN. The frame and
// error-frame model still work everywhere; only the transport is Linux only.
var ErrNotSupported = errors.New("socketcan: not supported on this platform")

// ErrClosed is provided for non-linux builds so callers can compile.
var ErrClosed = errors.New("socketcan: socket closed")

// InterfaceLookupError mirrors the linux build so error handling code
// compiles everywhere.
type InterfaceLookupError struct {
	Name string
	Err  error
}

func (e *InterfaceLookupError) Error() string { return "socketcan: CAN device not found" }
func (e *InterfaceLookupError) Unwrap() error { return e.Err }

// Socket is a stub on non-linux platforms; Open and OpenInterface always
// fail with ErrNotSupported.
type Socket struct{}

func Open(ifname string) (*Socket, error)      { return nil, ErrNotSupported }
func OpenInterface(index int) (*Socket, error) { return nil, ErrNotSupported }

func (s *Socket) Close() error                          { return ErrNotSupported }
func (s *Socket) FD() int                               { return -1 }
func (s *Socket) Read() (Frame, time.Time, error)       { return Frame{}, time.Time{}, ErrNotSupported }
func (s *Socket) Write(f Frame) error                   { return ErrNotSupported }
func (s *Socket) WriteRetry(f Frame) error              { return ErrNotSupported }
func (s *Socket) SetNonblocking(enabled bool) error     { return ErrNotSupported }
func (s *Socket) SetReadTimeout(d time.Duration) error  { return ErrNotSupported }
func (s *Socket) SetWriteTimeout(d time.Duration) error { return ErrNotSupported }
func (s *Socket) SetFilters(filters []Filter) error     { return ErrNotSupported }
func (s *Socket) SetErrorMask(mask uint32) error        { return ErrNotSupported }
func (s *Socket) SetLoopback(enabled bool) error        { return ErrNotSupported }
func (s *Socket) SetRecvOwnMsgs(enabled bool) error     { return ErrNotSupported }
func (s *Socket) SetJoinFilters(enabled bool) error     { return ErrNotSupported }

// ShouldRetry always reports false where no transport exists.
func ShouldRetry(err error) bool { return false }
