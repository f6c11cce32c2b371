package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromRequest(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		page    int
		perPage int
		offset  int
	}{
		{"defaults", "", 1, 20, 0},
		{"custom values", "?page=3&per_page=50", 3, 50, 100},
		{"negative page", "?page=-1", 1, 20, 0},
		{"zero page", "?page=0", 1, 20, 0},
		{"non numeric page", "?page=abc", 1, 20, 0},
		{"per page above cap", "?per_page=200", 1, 20, 0},
		{"per page at cap", "?page=2&per_page=100", 2, 100, 100},
		{"zero per page", "?per_page=0", 1, 20, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/users"+tt.query, nil)
			p := FromRequest(req)

			assert.Equal(t, tt.page, p.Page)
			assert.Equal(t, tt.perPage, p.PerPage)
			assert.Equal(t, tt.offset, p.Offset)
		})
	}
}
