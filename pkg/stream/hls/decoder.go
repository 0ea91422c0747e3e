package hls

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"github.com/RyanBlaney/hls-fetch/pkg/stream/common"
)

// Decoder turns raw cached segment bytes into playable bytes
type Decoder interface {
	Decode(data []byte) ([]byte, error)
}

// IdentityDecoder returns segments unchanged
type IdentityDecoder struct{}

// Decode returns data as is
func (IdentityDecoder) Decode(data []byte) ([]byte, error) {
	return data, nil
}

// AESDecoder decrypts whole segments with AES-128-CBC. Each call starts from the
// configured IV, so one instance can decode any segment in any order.
type AESDecoder struct {
	block cipher.Block
	iv    []byte
}

// NewAESDecoder creates a decoder from a 16-byte key and 16-byte IV
func NewAESDecoder(key, iv []byte) (*AESDecoder, error) {
	if len(key) != BlockSize {
		return nil, common.NewCryptoError("", fmt.Sprintf("invalid AES-128 key length %d", len(key)), nil)
	}
	if len(iv) != BlockSize {
		return nil, common.NewCryptoError("", fmt.Sprintf("invalid AES-128 IV length %d", len(iv)), nil)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, common.NewCryptoError("", "failed to create AES cipher", err)
	}

	return &AESDecoder{
		block: block,
		iv:    append([]byte(nil), iv...),
	}, nil
}

// Decode decrypts data. No padding is removed.
func (d *AESDecoder) Decode(data []byte) ([]byte, error) {
	if len(data)%BlockSize != 0 {
		return nil, common.NewCryptoError("",
			fmt.Sprintf("segment length %d is not a multiple of the AES block size", len(data)), nil)
	}

	out := make([]byte, len(data))
	cipher.NewCBCDecrypter(d.block, d.iv).CryptBlocks(out, data)
	return out, nil
}

// NewDecoder selects the decoder for a playlist's encryption descriptor. An AES-128
// descriptor without a valid key and IV is rejected here, before any segment work.
func NewDecoder(enc *EncryptionDescriptor) (Decoder, error) {
	if enc == nil || enc.Method != MethodAES128 {
		return IdentityDecoder{}, nil
	}

	if err := enc.Validate(); err != nil {
		return nil, err
	}

	return NewAESDecoder(enc.Key, enc.IV)
}
