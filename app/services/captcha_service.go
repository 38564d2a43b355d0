package services

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wenlng/go-captcha/v2/rotate"
)

// CaptchaService issues and checks the rotate challenge shown on the signup form.
// The client rotates the thumb until it lines up with the master image and submits the angle.
type CaptchaService interface {
	Generate(ctx context.Context) (*CaptchaChallenge, error)
	// Verify consumes the challenge whether or not the angle matches
	Verify(ctx context.Context, challengeID string, angle float64) bool
}

type CaptchaChallenge struct {
	ID                string
	MasterImageBase64 string
	ThumbImageBase64  string
	ExpiresAt         time.Time
}

type captchaServiceImpl struct {
	rotator rotate.Captcha
	ttl     time.Duration
	padding int

	mu         sync.Mutex
	challenges map[string]pendingChallenge
}

type pendingChallenge struct {
	angle     int
	expiresAt time.Time
}

// NewCaptchaService builds a rotate captcha with generated backgrounds.
// padding is the accepted angle difference in degrees.
func NewCaptchaService(ttl time.Duration, padding int) CaptchaService {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	if padding <= 0 {
		padding = 8
	}

	const size = 220
	builder := rotate.NewBuilder(rotate.WithImageSquareSize(size))
	builder.SetResources(rotate.WithImages(backgrounds(3, size)))

	return &captchaServiceImpl{
		rotator:    builder.Make(),
		ttl:        ttl,
		padding:    padding,
		challenges: make(map[string]pendingChallenge),
	}
}

func (s *captchaServiceImpl) Generate(ctx context.Context) (*CaptchaChallenge, error) {
	captData, err := s.rotator.Generate()
	if err != nil {
		return nil, err
	}

	block := captData.GetData()
	if block == nil {
		return nil, errors.New("captcha generator returned no data")
	}

	master, err := captData.GetMasterImage().ToBase64()
	if err != nil {
		return nil, err
	}
	thumb, err := captData.GetThumbImage().ToBase64()
	if err != nil {
		return nil, err
	}

	challenge := &CaptchaChallenge{
		ID:                uuid.New().String(),
		MasterImageBase64: master,
		ThumbImageBase64:  thumb,
		ExpiresAt:         time.Now().Add(s.ttl),
	}

	s.mu.Lock()
	s.pruneLocked(time.Now())
	s.challenges[challenge.ID] = pendingChallenge{angle: block.Angle, expiresAt: challenge.ExpiresAt}
	s.mu.Unlock()

	return challenge, nil
}

func (s *captchaServiceImpl) Verify(ctx context.Context, challengeID string, angle float64) bool {
	s.mu.Lock()
	pending, ok := s.challenges[challengeID]
	delete(s.challenges, challengeID)
	s.mu.Unlock()

	if !ok || time.Now().After(pending.expiresAt) {
		return false
	}
	return rotate.Validate(int(math.Round(angle)), pending.angle, s.padding)
}

func (s *captchaServiceImpl) pruneLocked(now time.Time) {
	for id, c := range s.challenges {
		if now.After(c.expiresAt) {
			delete(s.challenges, id)
		}
	}
}

func backgrounds(n, size int) []image.Image {
	imgs := make([]image.Image, 0, n)
	for i := 0; i < n; i++ {
		imgs = append(imgs, gradientImage(size))
	}
	return imgs
}

// gradientImage draws a noisy radial gradient so no two backgrounds match exactly
func gradientImage(size int) image.Image {
	rgba := image.NewRGBA(image.Rect(0, 0, size, size))
	half := float64(size / 2)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dist := math.Hypot(float64(x)-half, float64(y)-half) / half
			if dist > 1 {
				dist = 1
			}
			base := uint8(200 - int(150*dist))
			noise := uint8(rand.Intn(30))
			rgba.Set(x, y, color.RGBA{R: base + noise/3, G: base, B: 255 - base/2, A: 255})
		}
	}
	band := image.Rect(size/2, size/3, size/2+size/3, size/3+size/10)
	draw.Draw(rgba, band, &image.Uniform{C: color.RGBA{A: 24}}, image.Point{}, draw.Over)
	return rgba
}
