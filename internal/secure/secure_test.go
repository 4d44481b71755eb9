package secure

import (
	"bytes"
	"encoding/base64"
	"errors"
	"testing"
)

func testKey(t *testing.T) Key {
	t.Helper()
	k, err := NewKey()
	if err != nil {
		t.Fatalf("NewKey: %v", err)
	}
	return k
}

func TestNewKey(t *testing.T) {
	k1 := testKey(t)
	k2 := testKey(t)
	if len(k1) != KeySize {
		t.Errorf("key length = %d, want %d", len(k1), KeySize)
	}
	if bytes.Equal(k1, k2) {
		t.Error("two generated keys are identical")
	}
}

func TestRoundTrip(t *testing.T) {
	key := testKey(t)
	plaintexts := [][]byte{
		[]byte(`{"action":"login","username":"u","password":"p"}`),
		[]byte(""),
		[]byte("x"),
		bytes.Repeat([]byte("a"), 16),  // exactly one block
		bytes.Repeat([]byte("b"), 17),  // one block + 1
		bytes.Repeat([]byte{0}, 1024),  // binary zeros
		{0xff, 0x00, 0x10, 0x10, 0x10}, // bytes that look like padding
	}
	for _, p := range plaintexts {
		env, err := Encrypt(p, key)
		if err != nil {
			t.Fatalf("Encrypt(%q): %v", p, err)
		}
		got, err := Decrypt(env, key)
		if err != nil {
			t.Fatalf("Decrypt(%q): %v", p, err)
		}
		if !bytes.Equal(got, p) {
			t.Errorf("round trip: got %q, want %q", got, p)
		}
	}
}

func TestIVUniqueness(t *testing.T) {
	key := testKey(t)
	plaintext := []byte(`{"action":"heartbeat"}`)

	a, err := Encrypt(plaintext, key)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Encrypt(plaintext, key)
	if err != nil {
		t.Fatal(err)
	}
	if a.IV == b.IV {
		t.Error("two envelopes share an IV")
	}
	if a.Data == b.Data {
		t.Error("same plaintext produced identical ciphertext")
	}
}

func TestDecryptWrongKey(t *testing.T) {
	env, err := Encrypt([]byte("secret"), testKey(t))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Decrypt(env, testKey(t)); !errors.Is(err, ErrDecrypt) {
		t.Errorf("wrong key: err = %v, want ErrDecrypt", err)
	}
}

func TestDecryptTampered(t *testing.T) {
	key := testKey(t)
	env, err := Encrypt([]byte(`{"action":"login"}`), key)
	if err != nil {
		t.Fatal(err)
	}

	flipBit := func(s string) string {
		raw, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			t.Fatal(err)
		}
		raw[len(raw)-1] ^= 0x01
		return base64.StdEncoding.EncodeToString(raw)
	}

	tampered := env
	tampered.Data = flipBit(env.Data)
	// A bit flip garbles the final block; it must never come back as the
	// original plaintext, and in practice the padding check rejects it.
	if got, err := Decrypt(tampered, key); err == nil && bytes.Equal(got, []byte(`{"action":"login"}`)) {
		t.Errorf("tampered data decrypted to original plaintext %q", got)
	}

	tampered = env
	tampered.IV = flipBit(env.IV)
	got, err := Decrypt(tampered, key)
	if err == nil && bytes.Equal(got, []byte(`{"action":"login"}`)) {
		t.Error("tampered IV returned the original plaintext")
	}
}

func TestDecryptMalformed(t *testing.T) {
	key := testKey(t)
	tests := []struct {
		name string
		env  Envelope
	}{
		{"bad base64 iv", Envelope{IV: "!!!", Data: "AAAAAAAAAAAAAAAAAAAAAA=="}},
		{"bad base64 data", Envelope{IV: "AAAAAAAAAAAAAAAAAAAAAA==", Data: "%%%"}},
		{"short iv", Envelope{IV: base64.StdEncoding.EncodeToString([]byte("short")), Data: "AAAAAAAAAAAAAAAAAAAAAA=="}},
		{"empty data", Envelope{IV: base64.StdEncoding.EncodeToString(make([]byte, 16)), Data: ""}},
		{"ragged data", Envelope{IV: base64.StdEncoding.EncodeToString(make([]byte, 16)), Data: base64.StdEncoding.EncodeToString(make([]byte, 15))}},
	}
	for _, tt := range tests {
		if _, err := Decrypt(tt.env, key); !errors.Is(err, ErrDecrypt) {
			t.Errorf("%s: err = %v, want ErrDecrypt", tt.name, err)
		}
	}
}

func TestZero(t *testing.T) {
	key := testKey(t)
	key.Zero()
	for i, b := range key {
		if b != 0 {
			t.Fatalf("key[%d] = %x after Zero", i, b)
		}
	}
}
