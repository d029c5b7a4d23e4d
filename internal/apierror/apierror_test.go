package apierror

import "testing"

func TestNewPopulatesStandardFields(t *testing.T) {
	r := New(404, "no such session", "/v4/sessions/abc")
	if r.Status != 404 {
		t.Fatalf("expected status 404, got %d", r.Status)
	}
	if r.Error != "Not Found" {
		t.Fatalf("expected error text 'Not Found', got %q", r.Error)
	}
	if r.Path != "/v4/sessions/abc" {
		t.Fatalf("unexpected path %q", r.Path)
	}
	if r.Timestamp == 0 {
		t.Fatal("expected a non-zero timestamp")
	}
}

func TestAPIErrorSatisfiesErrorInterface(t *testing.T) {
	var err error = NotFound("missing")
	if err.Error() != "missing" {
		t.Fatalf("unexpected message: %s", err.Error())
	}
}
