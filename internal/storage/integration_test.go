package storage

import (
	"strings"
	"testing"
)

func TestGenerateEnrollmentToken(t *testing.T) {
	token, prefix, hash, err := GenerateEnrollmentToken()
	if err != nil {
		t.Fatalf("GenerateEnrollmentToken: %v", err)
	}

	if !strings.HasPrefix(token, TokenPrefix) {
		t.Errorf("token %q missing %q prefix", token, TokenPrefix)
	}
	if !strings.HasPrefix(token, prefix) {
		t.Errorf("prefix %q is not a prefix of token %q", prefix, token)
	}
	if len(prefix) != tokenPrefixLength {
		t.Errorf("prefix length = %d, want %d", len(prefix), tokenPrefixLength)
	}

	if !ValidateTokenHash(token, hash) {
		t.Error("generated token does not validate against its own hash")
	}
	if ValidateTokenHash(token+"x", hash) {
		t.Error("tampered token validated")
	}
}

func TestGenerateEnrollmentTokenUnique(t *testing.T) {
	a, _, _, err := GenerateEnrollmentToken()
	if err != nil {
		t.Fatal(err)
	}
	b, _, _, err := GenerateEnrollmentToken()
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("two generated tokens are identical")
	}
}

func TestIPAllowed(t *testing.T) {
	tests := []struct {
		name  string
		ip    string
		cidrs []string
		want  bool
	}{
		{"inside range", "10.1.2.3", []string{"10.0.0.0/8"}, true},
		{"outside range", "192.168.1.1", []string{"10.0.0.0/8"}, false},
		{"second range matches", "192.168.1.1", []string{"10.0.0.0/8", "192.168.0.0/16"}, true},
		{"exact host", "203.0.113.7", []string{"203.0.113.7/32"}, true},
		{"garbage cidr skipped", "10.1.2.3", []string{"not-a-cidr", "10.0.0.0/8"}, true},
		{"garbage ip", "not-an-ip", []string{"10.0.0.0/8"}, false},
		{"empty list", "10.1.2.3", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ipAllowed(tt.ip, tt.cidrs); got != tt.want {
				t.Errorf("ipAllowed(%q, %v) = %v, want %v", tt.ip, tt.cidrs, got, tt.want)
			}
		})
	}
}

func TestDecodeStringArray(t *testing.T) {
	got, err := decodeStringArray([]byte(`["10.0.0.0/8","192.168.0.0/16"]`))
	if err != nil {
		t.Fatalf("decodeStringArray: %v", err)
	}
	if len(got) != 2 || got[0] != "10.0.0.0/8" {
		t.Errorf("decoded = %v", got)
	}

	empty, err := decodeStringArray(nil)
	if err != nil {
		t.Fatalf("decodeStringArray(nil): %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("decoded nil = %v, want empty", empty)
	}
}
