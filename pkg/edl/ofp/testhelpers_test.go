package ofp

import (
	"crypto/aes"
	"crypto/cipher"
)

func encryptOZIPForTest(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(ozipKey[:])
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(plaintext))
	for off := 0; off < len(plaintext); off += aes.BlockSize {
		block.Encrypt(out[off:off+aes.BlockSize], plaintext[off:off+aes.BlockSize])
	}
	return out, nil
}

func encryptCFBForTest(key, iv, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(plaintext))
	cipher.NewCFBEncrypter(block, iv).XORKeyStream(out, plaintext)
	return out, nil
}

func encryptOPSForTest(key, header, body []byte) []byte {
	block, err := aes.NewCipher(key)
	if err != nil {
		panic(err)
	}
	out := make([]byte, len(body))
	for off := 0; off < len(body); off += aes.BlockSize {
		block.Encrypt(out[off:off+aes.BlockSize], body[off:off+aes.BlockSize])
	}
	return append(append([]byte(nil), header...), out...)
}
