package crypto

import (
	"bytes"
	"testing"
)

func TestBoxRoundTrip(t *testing.T) {
	alice, err := GenerateBoxKeyPair()
	if err != nil {
		t.Fatalf("GenerateBoxKeyPair() error = %v", err)
	}
	bob, err := GenerateBoxKeyPair()
	if err != nil {
		t.Fatalf("GenerateBoxKeyPair() error = %v", err)
	}

	plaintext := []byte("the quick brown fox")

	ciphertext, err := BoxEncrypt(plaintext, &bob.PublicKey, &alice.PrivateKey)
	if err != nil {
		t.Fatalf("BoxEncrypt() error = %v", err)
	}

	if bytes.Contains(ciphertext, plaintext) {
		t.Error("ciphertext contains plaintext")
	}

	decrypted, err := BoxDecrypt(ciphertext, &alice.PublicKey, &bob.PrivateKey)
	if err != nil {
		t.Fatalf("BoxDecrypt() error = %v", err)
	}

	if !bytes.Equal(decrypted, plaintext) {
		t.Errorf("decrypted = %q, want %q", decrypted, plaintext)
	}
}

func TestBoxDecryptWrongKey(t *testing.T) {
	alice, _ := GenerateBoxKeyPair()
	bob, _ := GenerateBoxKeyPair()
	eve, _ := GenerateBoxKeyPair()

	ciphertext, err := BoxEncrypt([]byte("secret"), &bob.PublicKey, &alice.PrivateKey)
	if err != nil {
		t.Fatalf("BoxEncrypt() error = %v", err)
	}

	if _, err := BoxDecrypt(ciphertext, &alice.PublicKey, &eve.PrivateKey); err == nil {
		t.Error("BoxDecrypt() with wrong key should fail")
	}
}

func TestBoxDecryptTooShort(t *testing.T) {
	alice, _ := GenerateBoxKeyPair()
	bob, _ := GenerateBoxKeyPair()

	if _, err := BoxDecrypt([]byte{1, 2, 3}, &alice.PublicKey, &bob.PrivateKey); err == nil {
		t.Error("BoxDecrypt() on truncated input should fail")
	}
}

func TestSymmetricRoundTrip(t *testing.T) {
	key, err := GenerateSymmetricKey()
	if err != nil {
		t.Fatalf("GenerateSymmetricKey() error = %v", err)
	}

	tests := []struct {
		name      string
		plaintext []byte
	}{
		{"short", []byte("hi")},
		{"empty", []byte{}},
		{"binary", bytes.Repeat([]byte{0x00, 0xFF}, 512)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ciphertext, err := SymmetricEncrypt(tt.plaintext, key)
			if err != nil {
				t.Fatalf("SymmetricEncrypt() error = %v", err)
			}

			decrypted, err := SymmetricDecrypt(ciphertext, key)
			if err != nil {
				t.Fatalf("SymmetricDecrypt() error = %v", err)
			}

			if !bytes.Equal(decrypted, tt.plaintext) {
				t.Errorf("round trip mismatch: got %v, want %v", decrypted, tt.plaintext)
			}
		})
	}
}

func TestSymmetricDecryptWrongKey(t *testing.T) {
	key1, _ := GenerateSymmetricKey()
	key2, _ := GenerateSymmetricKey()

	ciphertext, err := SymmetricEncrypt([]byte("secret"), key1)
	if err != nil {
		t.Fatalf("SymmetricEncrypt() error = %v", err)
	}

	if _, err := SymmetricDecrypt(ciphertext, key2); err == nil {
		t.Error("SymmetricDecrypt() with wrong key should fail")
	}
}

func TestSymmetricDecryptCorrupted(t *testing.T) {
	key, _ := GenerateSymmetricKey()

	ciphertext, err := SymmetricEncrypt([]byte("payload"), key)
	if err != nil {
		t.Fatalf("SymmetricEncrypt() error = %v", err)
	}

	ciphertext[len(ciphertext)-1] ^= 0xFF

	if _, err := SymmetricDecrypt(ciphertext, key); err == nil {
		t.Error("SymmetricDecrypt() on corrupted ciphertext should fail")
	}
}

func TestKeyHexRoundTrip(t *testing.T) {
	pair, err := GenerateBoxKeyPair()
	if err != nil {
		t.Fatalf("GenerateBoxKeyPair() error = %v", err)
	}

	exported := ExportKeyHex(pair.PublicKey[:])
	imported, err := ImportKeyHex(exported)
	if err != nil {
		t.Fatalf("ImportKeyHex() error = %v", err)
	}

	if *imported != pair.PublicKey {
		t.Error("hex round trip mismatch")
	}
}

func TestImportKeyHexInvalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not hex", "zzzz"},
		{"wrong length", "abcd"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ImportKeyHex(tt.input); err == nil {
				t.Errorf("ImportKeyHex(%q) expected error", tt.input)
			}
		})
	}
}

func TestHashFieldsBoundaries(t *testing.T) {
	// Shifting bytes between fields must change the digest.
	a := HashFields([]byte("ab"), []byte("c"))
	b := HashFields([]byte("a"), []byte("bc"))

	if a == b {
		t.Error("HashFields() collides across field boundaries")
	}
}

func TestHashDeterministic(t *testing.T) {
	if Hash([]byte("data")) != Hash([]byte("data")) {
		t.Error("Hash() is not deterministic")
	}
	if Hash([]byte("data")) == Hash([]byte("Data")) {
		t.Error("Hash() collides on different input")
	}
}
