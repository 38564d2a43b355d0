package businessflow

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"net/url"
	"regexp"
	"strings"

	"github.com/amirphl/shortlink/utils"
	"github.com/go-playground/validator/v10"
)

const shortCodeAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

var (
	customSlugPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,50}$`)

	// Paths owned by the application itself; a slug with one of these names would be unreachable
	reservedSlugs = map[string]struct{}{
		"api":         {},
		"auth":        {},
		"dashboard":   {},
		"link":        {},
		"metrics":     {},
		"swagger":     {},
		"static":      {},
		"assets":      {},
		"health":      {},
		"favicon.ico": {},
		"robots.txt":  {},
		"index.html":  {},
	}

	urlValidator = validator.New()
)

// GenerateShortCode returns a random lowercase base36 token
func GenerateShortCode(length int) (string, error) {
	if length <= 0 {
		length = utils.DefaultShortCodeLength
	}

	alphabetLen := big.NewInt(int64(len(shortCodeAlphabet)))
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", fmt.Errorf("failed to read entropy: %w", err)
		}
		b.WriteByte(shortCodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// ValidateCustomSlug checks a user supplied short code
func ValidateCustomSlug(slug string) error {
	if !customSlugPattern.MatchString(slug) {
		return ErrInvalidCustomSlug
	}
	if IsReservedSlug(slug) {
		return ErrReservedCustomSlug
	}
	return nil
}

// IsReservedSlug reports whether the path segment belongs to the application
func IsReservedSlug(slug string) bool {
	_, ok := reservedSlugs[strings.ToLower(slug)]
	return ok
}

// ValidateOriginalURL accepts absolute http(s) URLs with a host, up to maxLen bytes.
// It returns the trimmed URL.
func ValidateOriginalURL(raw string, maxLen int) (string, error) {
	if maxLen <= 0 {
		maxLen = utils.DefaultMaxURLLength
	}

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrInvalidOriginalURL
	}
	if len(trimmed) > maxLen {
		return "", ErrOriginalURLTooLong
	}
	if err := urlValidator.Var(trimmed, "http_url"); err != nil {
		return "", ErrInvalidOriginalURL
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", ErrInvalidOriginalURL
	}
	scheme := strings.ToLower(parsed.Scheme)
	if (scheme != "http" && scheme != "https") || parsed.Hostname() == "" {
		return "", ErrInvalidOriginalURL
	}

	return trimmed, nil
}
