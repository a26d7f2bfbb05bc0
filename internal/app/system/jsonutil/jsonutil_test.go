// internal/app/system/jsonutil/jsonutil_test.go

package jsonutil

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOK_Envelope(t *testing.T) {
	rec := httptest.NewRecorder()
	OK(rec, "fetched", map[string]string{"name": "Ada"})

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var env struct {
		Success   bool              `json:"success"`
		Message   string            `json:"message"`
		Data      map[string]string `json:"data"`
		Timestamp string            `json:"timestamp"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !env.Success || env.Message != "fetched" || env.Data["name"] != "Ada" {
		t.Errorf("envelope = %+v", env)
	}
	if env.Timestamp == "" {
		t.Error("timestamp missing")
	}
}

func TestFail_Envelope(t *testing.T) {
	rec := httptest.NewRecorder()
	Unauthorized(rec, "missing token")

	if rec.Code != 401 {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	var env Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Success || env.Message != "missing token" {
		t.Errorf("envelope = %+v", env)
	}
	if strings.Contains(rec.Body.String(), `"data"`) {
		t.Error("failure envelope should omit data")
	}
}

func TestNewPagination(t *testing.T) {
	tests := []struct {
		name       string
		page       int
		limit      int
		total      int64
		totalPages int
		hasNext    bool
		hasPrev    bool
	}{
		{"first of three", 1, 10, 25, 3, true, false},
		{"middle", 2, 10, 25, 3, true, true},
		{"last", 3, 10, 25, 3, false, true},
		{"empty", 1, 10, 0, 0, false, false},
		{"exact fit", 2, 10, 20, 2, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPagination(tt.page, tt.limit, tt.total)
			if p.TotalPages != tt.totalPages {
				t.Errorf("TotalPages = %d, want %d", p.TotalPages, tt.totalPages)
			}
			if p.HasNextPage != tt.hasNext || p.HasPrevPage != tt.hasPrev {
				t.Errorf("hasNext=%v hasPrev=%v, want %v/%v", p.HasNextPage, p.HasPrevPage, tt.hasNext, tt.hasPrev)
			}
			if tt.hasNext && (p.NextPage == nil || *p.NextPage != tt.page+1) {
				t.Errorf("NextPage = %v", p.NextPage)
			}
			if !tt.hasPrev && p.PrevPage != nil {
				t.Errorf("PrevPage = %v, want nil", p.PrevPage)
			}
		})
	}
}

func TestPagination_WireFormat(t *testing.T) {
	b, err := json.Marshal(NewPagination(1, 10, 25))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(b)
	for _, key := range []string{`"page"`, `"limit"`, `"totalPages"`, `"hasNextPage"`, `"hasPrevPage"`} {
		if !strings.Contains(s, key) {
			t.Errorf("missing %s in %s", key, s)
		}
	}
	if strings.Contains(s, `"Total"`) {
		t.Errorf("untagged Total key leaked into wire format: %s", s)
	}

	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if string(m["total"]) != "25" {
		t.Errorf("total = %s, want 25", m["total"])
	}
}

func TestDecodeBody_RejectsUnknownAndTrailing(t *testing.T) {
	type in struct {
		Name string `json:"name"`
	}

	var v in
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"a","bogus":1}`))
	if err := DecodeBody(req, &v); err == nil {
		t.Error("unknown field accepted")
	}

	req = httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"a"} {"name":"b"}`))
	if err := DecodeBody(req, &v); err == nil {
		t.Error("trailing JSON accepted")
	}

	req = httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"a"}`))
	if err := DecodeBody(req, &v); err != nil || v.Name != "a" {
		t.Errorf("valid body: err=%v name=%q", err, v.Name)
	}
}
