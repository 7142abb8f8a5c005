package archive

import (
	"context"
	"testing"
	"time"
)

func TestObjectName(t *testing.T) {
	at := time.Date(2026, 10, 16, 23, 30, 0, 0, time.FixedZone("EST", -5*3600))
	got := ObjectName("plaid", at, "abc")
	if want := "webhooks/plaid/2026/10/17/abc.json"; got != want {
		t.Errorf("ObjectName = %q, want %q", got, want)
	}
}

func TestParseURI(t *testing.T) {
	tests := []struct {
		uri        string
		bucket     string
		object     string
		wantErrors bool
	}{
		{"gs://archive/webhooks/plaid/x.json", "archive", "webhooks/plaid/x.json", false},
		{"gs://archive/x.json", "archive", "x.json", false},
		{"s3://archive/x.json", "", "", true},
		{"gs://archive", "", "", true},
		{"gs:///x.json", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, object, err := ParseURI(tt.uri)
			if (err != nil) != tt.wantErrors {
				t.Fatalf("ParseURI(%q) err = %v, wantErrors %v", tt.uri, err, tt.wantErrors)
			}
			if bucket != tt.bucket || object != tt.object {
				t.Errorf("ParseURI(%q) = %q, %q; want %q, %q", tt.uri, bucket, object, tt.bucket, tt.object)
			}
		})
	}
}

func TestNop(t *testing.T) {
	var a Archiver = Nop{}
	uri, err := a.Put(context.Background(), "slicktext", []byte(`{}`))
	if err != nil || uri != "" {
		t.Errorf("Put = %q, %v; want empty, nil", uri, err)
	}
	if _, err := a.Fetch(context.Background(), "gs://b/o"); err == nil {
		t.Error("Fetch on Nop should fail")
	}
}
