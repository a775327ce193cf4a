package qr

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"eventify/internal/models"

	"github.com/skip2/go-qrcode"
)

var ErrInvalidPass = errors.New("invalid ticket pass")

type QRGenerator struct {
	secret []byte
}

func NewQRGenerator(secret string) *QRGenerator {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	return &QRGenerator{secret: hashed[:]}
}

// GeneratePassCode seals the pass into the text a QR code carries.
func (q *QRGenerator) GeneratePassCode(pass models.TicketPass) (string, error) {
	data, err := json.Marshal(pass)
	if err != nil {
		return "", err
	}
	return encryptAES(data, q.secret)
}

// GenerateEncryptedQR renders the sealed pass as a 256px PNG.
func (q *QRGenerator) GenerateEncryptedQR(pass models.TicketPass) ([]byte, error) {
	code, err := q.GeneratePassCode(pass)
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(code, qrcode.Medium, 256)
}

// DecryptPass opens a code produced by GeneratePassCode with the same secret.
func (q *QRGenerator) DecryptPass(code string) (models.TicketPass, error) {
	var pass models.TicketPass
	data, err := decryptAES(code, q.secret)
	if err != nil {
		return pass, fmt.Errorf("%w: %v", ErrInvalidPass, err)
	}
	if err := json.Unmarshal(data, &pass); err != nil {
		return pass, fmt.Errorf("%w: %v", ErrInvalidPass, err)
	}
	return pass, nil
}

func encryptAES(data []byte, key []byte) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nonce, nonce, data, nil)
	return base64.URLEncoding.EncodeToString(sealed), nil
}

func decryptAES(code string, key []byte) ([]byte, error) {
	raw, err := base64.URLEncoding.DecodeString(code)
	if err != nil {
		return nil, err
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(raw) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, ciphertext := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
