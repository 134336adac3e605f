package session

import (
	"crypto/cipher"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"admin-console/core/utils"
)

var ErrSealedRecord = errors.New("sealed session record is invalid")

// Sealer encrypts persisted records so tokens never sit in storage in clear.
// A nil Sealer stores plain JSON.
type Sealer struct {
	aead cipher.AEAD
}

func NewSealer(secret, namespace string) (*Sealer, error) {
	if secret == "" {
		return nil, fmt.Errorf("session seal secret is empty")
	}
	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("console-session:"+namespace))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &Sealer{aead: aead}, nil
}

func (s *Sealer) Seal(state State) ([]byte, error) {
	plain, err := json.Marshal(state)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return plain, nil
	}
	nonce, err := utils.RandBytes(s.aead.NonceSize())
	if err != nil {
		return nil, err
	}
	return s.aead.Seal(nonce, nonce, plain, nil), nil
}

func (s *Sealer) Open(blob []byte) (State, error) {
	var state State
	plain := blob
	if s != nil {
		ns := s.aead.NonceSize()
		if len(blob) < ns+s.aead.Overhead() {
			return state, ErrSealedRecord
		}
		var err error
		plain, err = s.aead.Open(nil, blob[:ns], blob[ns:], nil)
		if err != nil {
			return state, ErrSealedRecord
		}
	}
	if err := json.Unmarshal(plain, &state); err != nil {
		return State{}, fmt.Errorf("%w: %v", ErrSealedRecord, err)
	}
	return state, nil
}
