package mpwebhook

import "testing"

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"type":"payment","data":{"id":"123"}}`)
	secret := "whsec_test"
	valid := Sign(body, secret)

	cases := []struct {
		name   string
		header string
		secret string
		want   bool
	}{
		{"valid", valid, secret, true},
		{"valid with timestamp", "ts=1700000000, " + valid, secret, true},
		{"padded parts", " ts=1 ,  " + valid + " ", secret, true},
		{"wrong secret", valid, "other", false},
		{"tampered hash", "v1=deadbeef", secret, false},
		{"non hex", "v1=zz", secret, false},
		{"only other versions", "v0=" + valid[3:], secret, false},
		{"empty header", "", secret, false},
		{"empty secret", valid, "", false},
	}
	for _, tc := range cases {
		if got := VerifySignature(body, tc.header, tc.secret); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}

	if VerifySignature([]byte(`{"type":"payment"}`), valid, secret) {
		t.Fatal("expected modified body to fail verification")
	}
}
