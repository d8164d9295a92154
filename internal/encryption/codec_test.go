package encryption

import (
	"bytes"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/darmiel/insurelink/internal/core"
)

type envelope struct {
	Operation string `json:"operation"`
	Amount    int    `json:"amount"`
}

func TestAESGCM_SealsAndOpens(t *testing.T) {
	codec, err := NewAESGCM(bytes.Repeat([]byte{7}, 32))
	if err != nil {
		t.Fatal(err)
	}

	data, err := codec.Encode(envelope{Operation: "claims.submit", Amount: 50})
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(data, []byte("claims.submit")) {
		t.Fatalf("ciphertext leaks plaintext")
	}

	var got envelope
	if err := codec.Decode(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Operation != "claims.submit" || got.Amount != 50 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestAESGCM_TamperedCiphertext(t *testing.T) {
	codec, _ := NewAESGCM(bytes.Repeat([]byte{1}, 16))
	data, _ := codec.Encode(envelope{Operation: "x"})
	data[len(data)-1] ^= 0xff

	var got envelope
	err := codec.Decode(data, &got)
	if !errors.Is(err, core.ErrEncryption) {
		t.Fatalf("got %v, want EncryptionError", err)
	}

	if err := codec.Decode([]byte{1, 2}, &got); !errors.Is(err, core.ErrEncryption) {
		t.Fatalf("short ciphertext: got %v, want EncryptionError", err)
	}
}

func TestFromConfig(t *testing.T) {
	key := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{3}, 32))
	t.Setenv("INSURELINK_TEST_KEY", key)

	tests := []struct {
		name    string
		cfg     core.EncryptionConfig
		wantErr bool
	}{
		{name: "Default Plain", cfg: core.EncryptionConfig{}},
		{name: "AES Inline Key", cfg: core.EncryptionConfig{Type: TypeAESGCM, Config: map[string]any{"key": key}}},
		{name: "AES Env Key", cfg: core.EncryptionConfig{Type: TypeAESGCM, Config: map[string]any{"key_env": "INSURELINK_TEST_KEY"}}},
		{name: "AES Missing Key", cfg: core.EncryptionConfig{Type: TypeAESGCM}, wantErr: true},
		{name: "AES Bad Key Size", cfg: core.EncryptionConfig{Type: TypeAESGCM, Config: map[string]any{"key": "AAAA"}}, wantErr: true},
		{name: "Unknown", cfg: core.EncryptionConfig{Type: "rot13"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromConfig(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("FromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
