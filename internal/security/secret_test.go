package security

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundtrip(t *testing.T) {
	ciphertext, err := EncryptSecret("sk-live-abcdef123456")
	require.NoError(t, err)
	require.NotEmpty(t, ciphertext)

	plain, err := DecryptSecret(ciphertext)
	require.NoError(t, err)
	require.Equal(t, "sk-live-abcdef123456", plain)
}

func TestEncryptSecretUsesRandomNonce(t *testing.T) {
	first, err := EncryptSecret("same-secret")
	require.NoError(t, err)
	second, err := EncryptSecret("same-secret")
	require.NoError(t, err)
	require.NotEqual(t, first, second, "相同明文每次加密应产生不同密文")
}

func TestEncryptSecretRejectsEmpty(t *testing.T) {
	_, err := EncryptSecret("   ")
	require.Error(t, err)
}

func TestDecryptSecretRejectsTamperedCiphertext(t *testing.T) {
	ciphertext, err := EncryptSecret("sk-live-abcdef123456")
	require.NoError(t, err)

	ciphertext[len(ciphertext)-1] ^= 0xFF
	_, err = DecryptSecret(ciphertext)
	require.Error(t, err, "篡改后的密文必须解密失败")

	_, err = DecryptSecret(nil)
	require.Error(t, err)
}
