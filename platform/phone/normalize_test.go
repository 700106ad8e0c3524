package phone

import "testing"

func TestWhatsAppID(t *testing.T) {
	cases := []struct {
		in     string
		region string
		want   string
	}{
		{in: "573001234567", region: "CO", want: "573001234567"},
		{in: "+57 300 123 4567", region: "", want: "573001234567"},
		{in: "300 123 4567", region: "CO", want: "573001234567"},
		{in: "", region: "CO", want: ""},
	}
	for _, tc := range cases {
		if got := WhatsAppID(tc.in, tc.region); got != tc.want {
			t.Fatalf("WhatsAppID(%q): want %q, got %q", tc.in, tc.want, got)
		}
	}
}

func TestNormalizeE164KeepsUnparseableInput(t *testing.T) {
	if got := NormalizeE164("  not-a-number ", "CO"); got != "not-a-number" {
		t.Fatalf("expected trimmed input back, got %q", got)
	}
}
