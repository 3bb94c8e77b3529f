package viewport

import "testing"

func TestComputeScrollAdjustment(t *testing.T) {
	tests := []struct {
		name                            string
		oldHeight, newHeight, scrollTop int
		want                            int
	}{
		{"prepend grows content", 1000, 1400, 0, 400},
		{"prepend while mid-scroll", 1000, 1400, 250, 650},
		{"no growth", 1000, 1000, 120, 120},
		{"shrink keeps offset", 1000, 800, 120, 120},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComputeScrollAdjustment(tt.oldHeight, tt.newHeight, tt.scrollTop); got != tt.want {
				t.Errorf("ComputeScrollAdjustment(%d, %d, %d) = %d, want %d",
					tt.oldHeight, tt.newHeight, tt.scrollTop, got, tt.want)
			}
		})
	}
}

func TestAtBottom(t *testing.T) {
	if !AtBottom(0, 50, 40, 0) {
		t.Error("short content must count as bottom")
	}
	if !AtBottom(60, 40, 100, 0) {
		t.Error("offset+view == content is bottom")
	}
	if AtBottom(30, 40, 100, 0) {
		t.Error("mid-scroll is not bottom")
	}
	if !AtBottom(58, 40, 100, 2) {
		t.Error("slack not honored")
	}
}

func TestAtTop(t *testing.T) {
	if !AtTop(0, 0) || !AtTop(2, 3) {
		t.Error("top detection failed")
	}
	if AtTop(10, 3) {
		t.Error("mid-scroll reported as top")
	}
}
