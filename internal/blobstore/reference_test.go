package blobstore

import "testing"

func TestReferenceRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		ref  Reference
		wire string
	}{
		{"local", NewLocal("/tmp/sift/job-1/frame-0001.jpg"), "/tmp/sift/job-1/frame-0001.jpg"},
		{"s3", NewS3("frames", "jobs/1/batch-0.json"), "s3://frames/jobs/1/batch-0.json"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.ref.String(); got != tc.wire {
				t.Fatalf("String() = %q, want %q", got, tc.wire)
			}
			parsed, err := Parse(tc.wire)
			if err != nil {
				t.Fatalf("Parse(%q): %v", tc.wire, err)
			}
			if parsed != tc.ref {
				t.Fatalf("Parse(%q) = %+v, want %+v", tc.wire, parsed, tc.ref)
			}
		})
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, wire := range []string{"", "  ", "s3://", "s3://bucket", "s3://bucket/"} {
		if _, err := Parse(wire); err == nil {
			t.Fatalf("expected error for %q", wire)
		}
	}
}

func TestIsZero(t *testing.T) {
	if !(Reference{}).IsZero() {
		t.Fatal("zero reference should report IsZero")
	}
	if NewLocal("/x").IsZero() {
		t.Fatal("local reference should not report IsZero")
	}
}
