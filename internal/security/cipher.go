package security

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"
)

// BlockSize is the AES block size in bytes.
const BlockSize = 16

var (
	ErrNoKey     = errors.New("security: cipher key not set")
	ErrBlockSize = errors.New("security: wrong block size")
)

// BlockCipher encrypts single blocks with AES-128 in ECB mode. Hardware
// backends wait for the peripheral inside Process and report a failed or
// pre-empted operation as an error.
type BlockCipher interface {
	SetKey(key []byte) error
	Process(in, out []byte) error
}

type aesCipher struct {
	block cipher.Block
}

// NewAESCipher returns a software BlockCipher.
func NewAESCipher() BlockCipher {
	return &aesCipher{}
}

func (c *aesCipher) SetKey(key []byte) error {
	if len(key) != KeySize {
		return fmt.Errorf("%w: key of %d bytes", ErrBlockSize, len(key))
	}
	b, err := aes.NewCipher(key)
	if err != nil {
		return err
	}
	c.block = b
	return nil
}

func (c *aesCipher) Process(in, out []byte) error {
	if c.block == nil {
		return ErrNoKey
	}
	if len(in) != BlockSize || len(out) != BlockSize {
		return fmt.Errorf("%w: in %d, out %d", ErrBlockSize, len(in), len(out))
	}
	c.block.Encrypt(out, in)
	return nil
}
