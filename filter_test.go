package socketcan

import "testing"

func TestFilter_Matches(t *testing.T) {
	cases := []struct {
		name   string
		filter Filter
		id     uint32
		want   bool
	}{
		{"exact match", Filter{ID: 0x100, Mask: 0x7FF}, 0x100, true},
		{"mismatch", Filter{ID: 0x100, Mask: 0x7FF}, 0x200, false},
		{"mask ignores low bits", Filter{ID: 0x100, Mask: 0x700}, 0x123, true},
		{"zero mask matches all", Filter{ID: 0x100, Mask: 0}, 0x7FF, true},
		{"extended id", Filter{ID: 0x12345, Mask: EFFMask}, 0x12345, true},
		{"extended mismatch", Filter{ID: 0x12345, Mask: EFFMask}, 0x12344, false},
		{"filter id also masked", Filter{ID: 0x1FF, Mask: 0x100}, 0x100, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.filter.Matches(tc.id); got != tc.want {
				t.Fatalf("Matches(0x%X) = %v, want %v", tc.id, got, tc.want)
			}
		})
	}
}
