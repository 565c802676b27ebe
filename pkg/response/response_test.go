package response

import "testing"

func TestNewPagination(t *testing.T) {
	tests := []struct {
		total    int64
		page     int
		size     int
		wantPage int
	}{
		{0, 1, 50, 0},
		{50, 1, 50, 1},
		{51, 2, 50, 2},
		{10, 1, 0, 0},
	}
	for _, tt := range tests {
		p := NewPagination(tt.total, tt.page, tt.size)
		if p.TotalPages != tt.wantPage {
			t.Errorf("NewPagination(%d,%d,%d).TotalPages = %d, 期望 %d", tt.total, tt.page, tt.size, p.TotalPages, tt.wantPage)
		}
	}
}
