package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func paramsFor(query string) Params {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/"+query, nil)
	return FromContext(e.NewContext(req, httptest.NewRecorder()))
}

func TestFromContext(t *testing.T) {
	tests := []struct {
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"", DefaultLimit, 0},
		{"?limit=5&offset=10", 5, 10},
		{"?limit=500", MaxLimit, 0},
		{"?limit=-3&offset=-1", DefaultLimit, 0},
		{"?limit=abc", DefaultLimit, 0},
	}
	for _, tt := range tests {
		p := paramsFor(tt.query)
		if p.Limit != tt.wantLimit || p.Offset != tt.wantOffset {
			t.Errorf("%q: expected %d/%d, got %d/%d", tt.query, tt.wantLimit, tt.wantOffset, p.Limit, p.Offset)
		}
	}
}

func TestNewResponse(t *testing.T) {
	r := NewResponse([]int{1, 2}, 10, 2, 0)
	if !r.HasMore {
		t.Error("expected has_more when more items remain")
	}
	r = NewResponse([]int{9, 10}, 10, 2, 8)
	if r.HasMore {
		t.Error("expected no more items on the last page")
	}
}

func TestPage(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}
	tests := []struct {
		p    Params
		want int
	}{
		{Params{Limit: 2, Offset: 0}, 2},
		{Params{Limit: 2, Offset: 4}, 1},
		{Params{Limit: 2, Offset: 5}, 0},
		{Params{Limit: 20, Offset: 0}, 5},
	}
	for _, tt := range tests {
		if got := Page(items, tt.p); len(got) != tt.want {
			t.Errorf("%+v: expected %d items, got %d", tt.p, tt.want, len(got))
		}
	}
	if got := Page(items, Params{Limit: 2, Offset: 2}); got[0] != "c" {
		t.Errorf("expected page to start at c, got %v", got)
	}
}
