package id

import "testing"

func TestNew(t *testing.T) {
	a, b := New(), New()
	if a == b {
		t.Fatalf("expected distinct ids, got %s twice", a)
	}
	if !Valid(a) {
		t.Fatalf("expected %s to be valid", a)
	}
	for _, bad := range []string{"", "job-1", "../etc/passwd", "{" + a + "}"} {
		if Valid(bad) {
			t.Fatalf("expected %q to be invalid", bad)
		}
	}
}
