package web

import "testing"

func TestAuthenticatorVerify(t *testing.T) {
	a, err := newAuthenticator("correct horse")
	if err != nil {
		t.Fatalf("new authenticator: %v", err)
	}

	if !a.verify("correct horse") {
		t.Error("expected matching password to verify")
	}
	if a.verify("battery staple") {
		t.Error("expected wrong password to fail")
	}
	if a.verify("") {
		t.Error("expected empty password to fail")
	}
}

func TestAuthenticatorDisabled(t *testing.T) {
	a, err := newAuthenticator("")
	if err != nil {
		t.Fatalf("new authenticator: %v", err)
	}
	if a != nil {
		t.Fatal("expected nil authenticator for empty password")
	}
	if !a.verify("anything") {
		t.Error("nil authenticator must accept everything")
	}
}

func TestDigestsDifferPerSalt(t *testing.T) {
	a1, _ := newAuthenticator("same")
	a2, _ := newAuthenticator("same")
	if string(a1.digest) == string(a2.digest) {
		t.Error("expected different digests for different salts")
	}
}
