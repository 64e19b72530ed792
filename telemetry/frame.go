package telemetry

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"

	"github.com/hardenmqtt/harden-mqtt-go/errs"
)

const (
	ivSize     = 16
	nonceSize  = 16
	headerSize = ivSize + nonceSize
)

// Encrypt produces an EncryptedFrame: IV(16) ‖ Nonce(16) ‖ Ciphertext.
// The nonce is never fed into AES-CBC; it only diversifies otherwise
// identical plaintext/IV pairs at the transport level.
func Encrypt(key []byte, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errs.Warnf("telemetry.Encrypt: invalid AES key: %s", err)
	}

	frame := make([]byte, headerSize)
	if _, err := rand.Read(frame[:ivSize]); err != nil {
		return nil, errs.Warnf("telemetry.Encrypt: unable to generate IV: %s", err)
	}
	if _, err := rand.Read(frame[ivSize:headerSize]); err != nil {
		return nil, errs.Warnf("telemetry.Encrypt: unable to generate nonce: %s", err)
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, frame[:ivSize]).CryptBlocks(ciphertext, padded)

	return append(frame, ciphertext...), nil
}

// Decrypt is the mirror of Encrypt. It enforces the structural guards
// the receive path requires: the frame must exceed the 32-byte header
// and the remaining ciphertext must be non-empty and block-aligned.
func Decrypt(key []byte, frame []byte) ([]byte, error) {
	if len(frame) <= headerSize {
		return nil, errs.Warnf("telemetry.Decrypt: frame of %d bytes does not exceed the %d byte header", len(frame), headerSize)
	}
	iv := frame[:ivSize]
	ciphertext := frame[headerSize:]
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, errs.Warnf("telemetry.Decrypt: ciphertext of %d bytes is not a non-empty multiple of the block size", len(ciphertext))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errs.Warnf("telemetry.Decrypt: invalid AES key: %s", err)
	}
	padded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(padded, ciphertext)

	return pkcs7Unpad(padded)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padding := bytes.Repeat([]byte{byte(padLen)}, padLen)
	return append(append([]byte{}, data...), padding...)
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errs.Warnf("telemetry: cannot unpad empty plaintext")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > len(data) || padLen > aes.BlockSize {
		return nil, errs.Warnf("telemetry: invalid PKCS#7 padding length %d", padLen)
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, errs.Warnf("telemetry: malformed PKCS#7 padding")
		}
	}
	return data[:len(data)-padLen], nil
}
