package pass

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
	"time"

	"ms-booking/internal/booking"
	"ms-booking/internal/models"

	"github.com/skip2/go-qrcode"
)

// ErrInactive is returned for bookings that no longer hold their slot
var ErrInactive = errors.New("pass: booking is not active")

// Payload is what the front desk reads back from a scanned pass
type Payload struct {
	BookingID  string    `json:"booking_id"`
	TenantID   string    `json:"tenant_id"`
	ResourceID string    `json:"resource_id"`
	StartAt    time.Time `json:"start_at"`
	EndAt      time.Time `json:"end_at"`
	BookingTZ  string    `json:"booking_tz"`
}

type Generator struct {
	secret []byte
}

func NewGenerator(secret string) *Generator {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	return &Generator{secret: hashed[:]}
}

// Token encrypts the booking reference into a URL-safe string
func (g *Generator) Token(b models.Booking) (string, error) {
	if !booking.IsActive(b.Status) {
		return "", ErrInactive
	}
	data, err := json.Marshal(Payload{
		BookingID:  b.ID,
		TenantID:   b.TenantID,
		ResourceID: b.ResourceID,
		StartAt:    b.StartAt.UTC(),
		EndAt:      b.EndAt.UTC(),
		BookingTZ:  b.BookingTZ,
	})
	if err != nil {
		return "", err
	}
	return encryptAES(data, g.secret)
}

// PNG renders the pass token as a QR code
func (g *Generator) PNG(b models.Booking) ([]byte, error) {
	token, err := g.Token(b)
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(token, qrcode.Medium, 256)
}

// Open decrypts a scanned token
func (g *Generator) Open(token string) (Payload, error) {
	data, err := decryptAES(token, g.secret)
	if err != nil {
		return Payload{}, err
	}
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Payload{}, fmt.Errorf("pass: malformed token: %w", err)
	}
	if p.BookingID == "" {
		return Payload{}, errors.New("pass: token without booking id")
	}
	return p, nil
}

func encryptAES(data []byte, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	ciphertext := make([]byte, aes.BlockSize+len(data))
	iv := ciphertext[:aes.BlockSize]

	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", err
	}

	stream := cipher.NewCFBEncrypter(block, iv)
	stream.XORKeyStream(ciphertext[aes.BlockSize:], data)

	return base64.URLEncoding.EncodeToString(ciphertext), nil
}

func decryptAES(token string, key []byte) ([]byte, error) {
	ciphertext, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("pass: bad encoding: %w", err)
	}
	if len(ciphertext) <= aes.BlockSize {
		return nil, errors.New("pass: token too short")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	iv := ciphertext[:aes.BlockSize]
	data := make([]byte, len(ciphertext)-aes.BlockSize)
	stream := cipher.NewCFBDecrypter(block, iv)
	stream.XORKeyStream(data, ciphertext[aes.BlockSize:])
	return data, nil
}
