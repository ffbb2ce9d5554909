package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func paramsFor(target string) Params {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	return FromContext(e.NewContext(req, rec))
}

func TestFromContext(t *testing.T) {
	cases := []struct {
		target string
		want   Params
	}{
		{"/", Params{Limit: DefaultLimit, Offset: 0}},
		{"/?limit=5&offset=10", Params{Limit: 5, Offset: 10}},
		{"/?limit=1000", Params{Limit: MaxLimit, Offset: 0}},
		{"/?limit=-3&offset=-1", Params{Limit: DefaultLimit, Offset: 0}},
		{"/?limit=abc&offset=xyz", Params{Limit: DefaultLimit, Offset: 0}},
	}
	for _, tc := range cases {
		if got := paramsFor(tc.target); got != tc.want {
			t.Errorf("%s: expected %+v, got %+v", tc.target, tc.want, got)
		}
	}
}

func TestPage(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}

	first := Page(items, Params{Limit: 2, Offset: 0})
	if len(first.Data) != 2 || first.Data[0] != "a" || !first.HasMore || first.Total != 5 {
		t.Errorf("unexpected first page: %+v", first)
	}

	last := Page(items, Params{Limit: 2, Offset: 4})
	if len(last.Data) != 1 || last.Data[0] != "e" || last.HasMore {
		t.Errorf("unexpected last page: %+v", last)
	}

	beyond := Page(items, Params{Limit: 2, Offset: 10})
	if beyond.Data == nil || len(beyond.Data) != 0 {
		t.Errorf("expected empty non-nil data, got %#v", beyond.Data)
	}

	empty := Page([]string(nil), Params{Limit: DefaultLimit})
	if empty.Data == nil || empty.Total != 0 {
		t.Errorf("unexpected empty page: %+v", empty)
	}
}

func TestPage_DoesNotAliasInput(t *testing.T) {
	items := []int{1, 2, 3}
	page := Page(items, Params{Limit: 3})
	page.Data[0] = 99
	if items[0] != 1 {
		t.Error("page data aliases the input slice")
	}
}

func TestParams_Offsets(t *testing.T) {
	p := Params{Limit: 10, Offset: 5}
	if p.NextOffset() != 15 {
		t.Errorf("expected 15, got %d", p.NextOffset())
	}
	if p.PreviousOffset() != 0 {
		t.Errorf("expected 0, got %d", p.PreviousOffset())
	}
	if !p.HasPrevious() {
		t.Error("expected HasPrevious at offset 5")
	}
	if p.HasNext(15) {
		t.Error("expected no next page at the end")
	}
}

func linkMap(links []Link) map[string]string {
	m := make(map[string]string, len(links))
	for _, l := range links {
		m[l.Relation] = l.URL
	}
	return m
}

func TestParams_Links(t *testing.T) {
	base := "/api/v1/patients/p-1/sections/past_history/visits"

	first := linkMap(Params{Limit: 10}.Links(base, 25))
	if first["self"] != base+"?offset=0&limit=10" {
		t.Errorf("unexpected self link %q", first["self"])
	}
	if first["next"] != base+"?offset=10&limit=10" {
		t.Errorf("unexpected next link %q", first["next"])
	}
	if _, ok := first["previous"]; ok {
		t.Error("did not expect previous link on first page")
	}

	last := linkMap(Params{Limit: 10, Offset: 20}.Links(base, 25))
	if _, ok := last["next"]; ok {
		t.Error("did not expect next link on last page")
	}
	if last["previous"] != base+"?offset=10&limit=10" {
		t.Errorf("unexpected previous link %q", last["previous"])
	}
}

func TestResponse_WithLinks(t *testing.T) {
	r := Page([]int{1, 2, 3}, Params{Limit: 2}).WithLinks("/x")
	if len(r.Links) != 2 {
		t.Fatalf("expected self and next links, got %+v", r.Links)
	}
}
