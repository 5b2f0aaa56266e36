package collector

import "testing"

func TestComposeLocation(t *testing.T) {
	tests := []struct {
		parts []string
		want  string
	}{
		{[]string{"A", "", "B", "C"}, "A, B, C"},
		{[]string{"Nguyễn Huệ", "Bến Nghé", "Quận 1", "Tp Hồ Chí Minh"}, "Nguyễn Huệ, Bến Nghé, Quận 1, Tp Hồ Chí Minh"},
		{[]string{"", "", "", ""}, "Unknown"},
		{[]string{"  ", "Ward 5 ", "", ""}, "Ward 5"},
		{nil, "Unknown"},
	}
	for _, tt := range tests {
		if got := ComposeLocation(tt.parts...); got != tt.want {
			t.Errorf("ComposeLocation(%q) = %q; want %q", tt.parts, got, tt.want)
		}
	}
}
