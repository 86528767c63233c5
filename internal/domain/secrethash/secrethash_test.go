package secrethash

import "testing"

func TestHashAndVerifyArgon2id(t *testing.T) {
	hash, err := Hash("s3cret-client-secret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	ok, err := Verify("s3cret-client-secret", hash)
	if err != nil || !ok {
		t.Fatalf("expected match, got ok=%v err=%v", ok, err)
	}

	ok, err = Verify("wrong-secret", hash)
	if err != nil || ok {
		t.Fatalf("expected mismatch, got ok=%v err=%v", ok, err)
	}
}

func TestVerifySHA256Legacy(t *testing.T) {
	hash := HashSHA256("legacy-secret")

	ok, err := Verify("legacy-secret", hash)
	if err != nil || !ok {
		t.Fatalf("expected match, got ok=%v err=%v", ok, err)
	}

	ok, err = Verify("legacy-secret", "sha256:"+hash)
	if err != nil || !ok {
		t.Fatalf("expected match with prefixed form, got ok=%v err=%v", ok, err)
	}
}

func TestVerifyUnknownHashType(t *testing.T) {
	_, err := Verify("secret", "not-a-recognized-hash")
	if err != ErrUnknownHashType {
		t.Fatalf("expected ErrUnknownHashType, got %v", err)
	}
}

func TestVerifyMalformedArgon2idDoesNotPanic(t *testing.T) {
	_, err := Verify("secret", "$argon2id$v=19$m=0,t=0,p=0$c2FsdA$aGFzaA")
	if err == nil {
		t.Fatalf("expected an error for malformed argon2id parameters")
	}
}
