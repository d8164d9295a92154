// Package encryption provides the codecs used to seal request envelopes before they are
// handed to a transport, and to open the responses.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/mitchellh/mapstructure"

	"github.com/darmiel/insurelink/internal/core"
)

const (
	TypePlain  = "plain"
	TypeAESGCM = "aes-gcm"
)

var (
	_ core.Codec = (*Plain)(nil)
	_ core.Codec = (*AESGCM)(nil)
)

// Plain encodes envelopes as JSON without sealing them.
// It relies on the transport (TLS) for confidentiality.
type Plain struct{}

func (Plain) Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, core.WrapError(core.KindEncryptionError, err, "encoding payload")
	}
	return data, nil
}

func (Plain) Decode(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return core.WrapError(core.KindEncryptionError, err, "decoding payload")
	}
	return nil
}

// AESGCM seals JSON envelopes with AES-GCM. The nonce is prepended to the ciphertext.
type AESGCM struct {
	aead cipher.AEAD
}

// NewAESGCM creates an AESGCM codec from a 16, 24 or 32 byte key.
func NewAESGCM(key []byte) (*AESGCM, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, core.WrapError(core.KindEncryptionError, err, "creating cipher")
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, core.WrapError(core.KindEncryptionError, err, "creating gcm")
	}
	return &AESGCM{aead: aead}, nil
}

func (c *AESGCM) Encode(v any) ([]byte, error) {
	plain, err := json.Marshal(v)
	if err != nil {
		return nil, core.WrapError(core.KindEncryptionError, err, "encoding payload")
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, core.WrapError(core.KindEncryptionError, err, "generating nonce")
	}
	return c.aead.Seal(nonce, nonce, plain, nil), nil
}

func (c *AESGCM) Decode(data []byte, v any) error {
	size := c.aead.NonceSize()
	if len(data) < size {
		return core.NewError(core.KindEncryptionError, "ciphertext too short (%d bytes)", len(data))
	}
	plain, err := c.aead.Open(nil, data[:size], data[size:], nil)
	if err != nil {
		return core.WrapError(core.KindEncryptionError, err, "opening ciphertext")
	}
	if err := json.Unmarshal(plain, v); err != nil {
		return core.WrapError(core.KindEncryptionError, err, "decoding payload")
	}
	return nil
}

// AESGCMConfig holds the options of the aes-gcm codec.
type AESGCMConfig struct {
	// Key is the base64 encoded key.
	Key string `mapstructure:"key"`

	// KeyEnv names an environment variable holding the base64 encoded key.
	KeyEnv string `mapstructure:"key_env"`
}

// FromConfig builds the codec configured for a provider. An empty type selects Plain.
func FromConfig(cfg core.EncryptionConfig) (core.Codec, error) {
	switch cfg.Type {
	case "", TypePlain:
		return Plain{}, nil
	case TypeAESGCM:
		var conf AESGCMConfig
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Metadata: nil,
			Result:   &conf,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create decoder for %s codec: %w", TypeAESGCM, err)
		}
		if err := decoder.Decode(cfg.Config); err != nil {
			return nil, fmt.Errorf("failed to decode %s codec config: %w", TypeAESGCM, err)
		}

		encoded := conf.Key
		if conf.KeyEnv != "" {
			encoded = os.Getenv(conf.KeyEnv)
		}
		if encoded == "" {
			return nil, fmt.Errorf("%s codec requires 'key' or 'key_env'", TypeAESGCM)
		}
		key, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("decoding %s key: %w", TypeAESGCM, err)
		}
		return NewAESGCM(key)
	default:
		return nil, fmt.Errorf("unknown encryption type %q", cfg.Type)
	}
}
