package auth

import "testing"

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !CheckPasswordHash("correct horse battery staple", hash) {
		t.Error("correct password rejected")
	}
	if CheckPasswordHash("wrong password", hash) {
		t.Error("wrong password accepted")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	SetJWTSecret("test-secret")

	token, err := GenerateToken("alice")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.Username != "alice" {
		t.Errorf("username = %q, want %q", claims.Username, "alice")
	}
}

func TestValidateTokenRejectsTampered(t *testing.T) {
	SetJWTSecret("test-secret")

	token, err := GenerateToken("alice")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := ValidateToken(token + "x"); err == nil {
		t.Error("tampered token accepted")
	}
	if _, err := ValidateToken("not-a-token"); err == nil {
		t.Error("garbage token accepted")
	}
}
