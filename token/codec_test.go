package token

import (
	"bytes"
	"encoding/base64"
	"errors"
	"reflect"
	"strings"
	"testing"
)

type payload struct {
	UserID  string   `json:"user_id"`
	Speaker *string  `json:"speaker_id"`
	At      float64  `json:"created_at"`
	Tags    []string `json:"tags,omitempty"`
}

func testKey(b byte) []byte {
	return bytes.Repeat([]byte{b}, KeySize)
}

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec(testKey(7))
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return c
}

func TestNewCodecRejectsWrongKeySizes(t *testing.T) {
	for _, n := range []int{0, 16, 31, 33, 64} {
		if _, err := NewCodec(make([]byte, n)); !errors.Is(err, ErrKeySize) {
			t.Fatalf("key of %d bytes: err=%v, want ErrKeySize", n, err)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	c := newTestCodec(t)
	speaker := "television"
	cases := []payload{
		{UserID: "u-1", At: 1700000000.25},
		{UserID: "u-2", Speaker: &speaker, At: 0},
		{UserID: strings.Repeat("x", 15), Tags: []string{"a", "b"}},
		{UserID: strings.Repeat("y", 16)},
	}
	for _, in := range cases {
		tok, err := c.Encrypt(in)
		if err != nil {
			t.Fatalf("Encrypt: %v", err)
		}
		var out payload
		if err := c.Decrypt(tok, &out); err != nil {
			t.Fatalf("Decrypt: %v", err)
		}
		if !reflect.DeepEqual(in, out) {
			t.Fatalf("round trip mismatch: in=%+v out=%+v", in, out)
		}

		var again payload
		if err := c.Decrypt(tok, &again); err != nil || !reflect.DeepEqual(out, again) {
			t.Fatalf("second decode differs: %+v vs %+v (err=%v)", out, again, err)
		}
	}
}

func TestEncryptUsesFreshIV(t *testing.T) {
	c := newTestCodec(t)
	in := payload{UserID: "same"}
	a, err := c.Encrypt(in)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	b, err := c.Encrypt(in)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if a == b {
		t.Fatal("two encryptions of the same payload produced the same token")
	}
}

func TestWireLayoutPrefixesIV(t *testing.T) {
	c := newTestCodec(t)
	iv := bytes.Repeat([]byte{0xAB}, ivSize)
	c.rand = bytes.NewReader(iv)

	tok, err := c.Encrypt(payload{UserID: "u"})
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	raw, err := base64.URLEncoding.DecodeString(tok)
	if err != nil {
		t.Fatalf("token is not padded base64url: %v", err)
	}
	if !bytes.Equal(raw[:ivSize], iv) {
		t.Fatalf("token does not start with IV: %x", raw[:ivSize])
	}
	if (len(raw)-ivSize)%16 != 0 {
		t.Fatalf("ciphertext length %d not block aligned", len(raw)-ivSize)
	}
}

func TestDecryptFailuresCollapse(t *testing.T) {
	c := newTestCodec(t)
	good, err := c.Encrypt(payload{UserID: "u"})
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	other, err := NewCodec(testKey(9))
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	var out payload
	if err := other.Decrypt(good, &out); err != nil && !errors.Is(err, ErrDecrypt) {
		t.Fatalf("wrong key: err=%v", err)
	}

	short := base64.URLEncoding.EncodeToString(make([]byte, ivSize))
	notJSON, err := c.Encrypt("plain")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	for name, tok := range map[string]string{
		"empty":      "",
		"bad base64": "!!!not-base64!!!",
		"iv only":    short,
		"misaligned": base64.URLEncoding.EncodeToString(make([]byte, ivSize+5)),
		"not object": notJSON,
	} {
		var p payload
		if err := c.Decrypt(tok, &p); !errors.Is(err, ErrDecrypt) {
			t.Fatalf("%s: err=%v, want ErrDecrypt", name, err)
		}
	}
}

func TestTamperedCiphertextNeverPanics(t *testing.T) {
	c := newTestCodec(t)
	tok, err := c.Encrypt(payload{UserID: "user-abc", At: 1})
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	raw, err := base64.URLEncoding.DecodeString(tok)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	for i := ivSize; i < len(raw); i++ {
		mut := append([]byte(nil), raw...)
		mut[i] ^= 0x01
		var out payload
		err := c.Decrypt(base64.URLEncoding.EncodeToString(mut), &out)
		if err != nil && !errors.Is(err, ErrDecrypt) {
			t.Fatalf("byte %d: unexpected error %v", i, err)
		}
	}
}

func TestDecryptRejectsAlternateSpellings(t *testing.T) {
	c := newTestCodec(t)
	var tok string
	// want a token that ends in padding so the stripped form differs
	for i := 0; i < 64 && !strings.HasSuffix(tok, "="); i++ {
		var err error
		tok, err = c.Encrypt(payload{UserID: strings.Repeat("u", i+1)})
		if err != nil {
			t.Fatalf("Encrypt: %v", err)
		}
	}
	if !strings.HasSuffix(tok, "=") {
		t.Fatal("no padded token produced")
	}

	var out payload
	if err := c.Decrypt(tok, &out); err != nil {
		t.Fatalf("canonical token: %v", err)
	}
	for name, alias := range map[string]string{
		"stripped padding": strings.TrimRight(tok, "="),
		"extra padding":    tok + "=",
		"trailing newline": tok + "\n",
		"leading newline":  "\n" + tok,
		"embedded crlf":    tok[:8] + "\r\n" + tok[8:],
	} {
		if err := c.Decrypt(alias, &out); !errors.Is(err, ErrDecrypt) {
			t.Fatalf("%s: err=%v, want ErrDecrypt", name, err)
		}
	}
}

func TestPKCS7(t *testing.T) {
	for n := 0; n <= 32; n++ {
		in := bytes.Repeat([]byte{'a'}, n)
		padded := pkcs7Pad(in, 16)
		if len(padded)%16 != 0 || len(padded) <= n {
			t.Fatalf("pad(%d) produced %d bytes", n, len(padded))
		}
		out, ok := pkcs7Unpad(padded, 16)
		if !ok || !bytes.Equal(out, in) {
			t.Fatalf("unpad(%d) failed", n)
		}
	}
	if _, ok := pkcs7Unpad(append(bytes.Repeat([]byte{1}, 15), 0), 16); ok {
		t.Fatal("zero pad byte must be rejected")
	}
	if _, ok := pkcs7Unpad(append(bytes.Repeat([]byte{1}, 14), 3, 2), 16); ok {
		t.Fatal("inconsistent pad must be rejected")
	}
}
