package crypto

import "testing"

func TestRandomString_Length(t *testing.T) {
	s := RandomString(32, alphanumericAlphabet)
	if len(s) != 32 {
		t.Fatalf("expected length 32, got %d", len(s))
	}
}

func TestRandomString_Alphabet(t *testing.T) {
	s := RandomString(200, "ab")
	for _, c := range s {
		if c != 'a' && c != 'b' {
			t.Fatalf("unexpected character %q outside alphabet", c)
		}
	}
}

func TestOauth2State_Length(t *testing.T) {
	if got := len(Oauth2State()); got != Oauth2StateLength {
		t.Fatalf("expected length %d, got %d", Oauth2StateLength, got)
	}
}

func TestGenerateSecureToken_Unique(t *testing.T) {
	a := GenerateSecureToken(16)
	b := GenerateSecureToken(16)
	if a == "" || b == "" {
		t.Fatal("expected non-empty tokens")
	}
	if a == b {
		t.Fatal("expected distinct tokens across calls")
	}
}
