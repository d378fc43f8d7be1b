package encryption

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"

	"github.com/mattysabby19/taskly-api/internal/config"
)

var (
	ErrEncryptionFailed = errors.New("encryption failed")
	ErrKMSDisabled      = errors.New("kms is not enabled")
)

// EncryptedPayload is an envelope-encrypted blob: AES-GCM over the data,
// the data key itself wrapped by KMS.
type EncryptedPayload struct {
	Ciphertext   string    `json:"ciphertext"`
	EncryptedDEK string    `json:"encrypted_dek"`
	KeyID        string    `json:"key_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// Manager wraps GDPR export payloads with KMS envelope encryption.
type Manager struct {
	kmsClient *kms.Client
	cfg       config.KMSConfig
}

func NewManager(cfg config.KMSConfig, kmsClient *kms.Client) *Manager {
	return &Manager{kmsClient: kmsClient, cfg: cfg}
}

func (m *Manager) Enabled() bool {
	return m.cfg.Enabled && m.kmsClient != nil
}

// Encrypt generates a fresh data key via KMS and seals the plaintext with
// AES-256-GCM. The plaintext key is discarded after use.
func (m *Manager) Encrypt(ctx context.Context, plaintext []byte) (*EncryptedPayload, error) {
	if !m.Enabled() {
		return nil, ErrKMSDisabled
	}

	out, err := m.kmsClient.GenerateDataKey(ctx, &kms.GenerateDataKeyInput{
		KeyId:   aws.String(m.cfg.KeyID),
		KeySpec: types.DataKeySpecAes256,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate data key: %w", err)
	}

	block, err := aes.NewCipher(out.Plaintext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}

	sealed := gcm.Seal(nonce, nonce, plaintext, nil)

	return &EncryptedPayload{
		Ciphertext:   base64.StdEncoding.EncodeToString(sealed),
		EncryptedDEK: base64.StdEncoding.EncodeToString(out.CiphertextBlob),
		KeyID:        aws.ToString(out.KeyId),
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// Decrypt unwraps the data key via KMS and opens the AES-GCM envelope.
func (m *Manager) Decrypt(ctx context.Context, payload *EncryptedPayload) ([]byte, error) {
	if !m.Enabled() {
		return nil, ErrKMSDisabled
	}

	dek, err := base64.StdEncoding.DecodeString(payload.EncryptedDEK)
	if err != nil {
		return nil, fmt.Errorf("invalid encrypted dek: %w", err)
	}
	sealed, err := base64.StdEncoding.DecodeString(payload.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("invalid ciphertext: %w", err)
	}

	out, err := m.kmsClient.Decrypt(ctx, &kms.DecryptInput{
		CiphertextBlob: dek,
		KeyId:          aws.String(payload.KeyID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt data key: %w", err)
	}

	block, err := aes.NewCipher(out.Plaintext)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	return gcm.Open(nil, sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():], nil)
}
