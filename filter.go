package socketcan

// Error mask values for Socket.SetErrorMask.
const (
	// ErrorMaskNone suppresses all error frames (the kernel default).
	ErrorMaskNone = 0
	// ErrorMaskAll requests error frames for every known error condition.
	ErrorMaskAll = ErrMask
)

// Filter is a kernel acceptance rule for received frames: a frame matches
// when its identifier bits, masked, equal the filter's id bits under the
// same mask. A socket's filter list accepts a frame if any filter matches,
// or if all match when join-filters mode is enabled.
type Filter struct {
	ID   uint32
	Mask uint32
}

// Matches reports whether the rule accepts the given identifier word. This
// mirrors the kernel side check and is mainly useful for tests and for
// user-space refiltering.
func (f Filter) Matches(id uint32) bool {
	return id&f.Mask == f.ID&f.Mask
}
