package utils

import "testing"

func TestCheckPasswordPlain(t *testing.T) {
	if !CheckPassword("secret", "secret", false) {
		t.Fatalf("verbatim password rejected")
	}
	if CheckPassword("secret", "Secret", false) {
		t.Fatalf("comparison must be exact")
	}
}

func TestCheckPasswordPlainLooksLikeHash(t *testing.T) {
	if !CheckPassword("$2secret", "$2secret", false) {
		t.Fatalf("verbatim password with a bcrypt-like prefix rejected")
	}
}

func TestCheckPasswordBcrypt(t *testing.T) {
	h, err := HashPassword("secret", 4)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !CheckPassword(h, "secret", true) || CheckPassword(h, "other", true) {
		t.Fatalf("bcrypt comparison wrong")
	}
	if CheckPassword(h, "secret", false) {
		t.Fatalf("hash matched verbatim with hashing off")
	}
}

func TestCheckPasswordBcryptFallsBackToVerbatim(t *testing.T) {
	if !CheckPassword("$2secret", "$2secret", true) {
		t.Fatalf("unparseable stored value not compared verbatim")
	}
	if CheckPassword("$2secret", "other", true) {
		t.Fatalf("fallback accepted a wrong password")
	}
}
