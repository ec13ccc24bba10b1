package sheetsync

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
)

const (
	tokenGrantType  = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	defaultTokenURL = "https://oauth2.googleapis.com/token"
	defaultScope    = "https://www.googleapis.com/auth/spreadsheets"
	tokenLifetime   = time.Hour
)

var ErrInvalidKeyFormat = errors.New("invalid private key format")

// TokenProvider exchanges a signed service-account assertion for a
// short-lived bearer token. It caches nothing: every sync session fetches a
// fresh token, which keeps the provider stateless at the cost of one extra
// round trip per run.
type TokenProvider struct {
	Email      string
	PrivateKey string
	TokenURL   string
	Scope      string
	HTTP       *http.Client
}

// NewTokenProviderFromEnv builds a provider from SHEETS_SA_EMAIL and
// SHEETS_SA_PRIVATE_KEY. Missing secrets are a fatal configuration error for
// the operation, never a silent default.
func NewTokenProviderFromEnv() (*TokenProvider, error) {
	email := strings.TrimSpace(os.Getenv("SHEETS_SA_EMAIL"))
	if email == "" {
		return nil, errors.New("SHEETS_SA_EMAIL is required")
	}
	key := os.Getenv("SHEETS_SA_PRIVATE_KEY")
	if strings.TrimSpace(key) == "" {
		return nil, errors.New("SHEETS_SA_PRIVATE_KEY is required")
	}
	tokenURL := strings.TrimSpace(os.Getenv("SHEETS_TOKEN_URL"))
	if tokenURL == "" {
		tokenURL = defaultTokenURL
	}
	return &TokenProvider{
		Email:      email,
		PrivateKey: key,
		TokenURL:   tokenURL,
		Scope:      defaultScope,
		HTTP:       &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// NormalizePrivateKey accepts the key encodings seen across deployment
// environments and reduces them to one canonical PEM. Detectors run in
// order: JSON-wrapped, escaped-newline PEM, raw PEM, bare base64 body.
// Anything else falls through to ErrInvalidKeyFormat.
func NormalizePrivateKey(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", ErrInvalidKeyFormat
	}

	// JSON-wrapped: the whole service-account file, or {"private_key": ...}.
	if strings.HasPrefix(value, "{") {
		var wrapper struct {
			PrivateKey string `json:"private_key"`
		}
		if err := json.Unmarshal([]byte(value), &wrapper); err != nil || strings.TrimSpace(wrapper.PrivateKey) == "" {
			return "", ErrInvalidKeyFormat
		}
		return NormalizePrivateKey(wrapper.PrivateKey)
	}

	// Escaped-newline PEM, common when the key is pasted into an env var.
	if strings.Contains(value, `\n`) {
		value = strings.ReplaceAll(value, `\n`, "\n")
		value = strings.TrimSpace(value)
	}

	if strings.Contains(value, "-----BEGIN") {
		block, _ := pem.Decode([]byte(value + "\n"))
		if block == nil {
			return "", ErrInvalidKeyFormat
		}
		return value + "\n", nil
	}

	// Bare base64 body: re-wrap as an unlabeled PKCS#8 PEM.
	compact := strings.Join(strings.Fields(value), "")
	der, err := base64.StdEncoding.DecodeString(compact)
	if err != nil || len(der) == 0 {
		return "", ErrInvalidKeyFormat
	}
	var b strings.Builder
	if err := pem.Encode(&b, &pem.Block{Type: "PRIVATE KEY", Bytes: der}); err != nil {
		return "", ErrInvalidKeyFormat
	}
	return b.String(), nil
}

func (p *TokenProvider) signAssertion(now time.Time) (string, error) {
	pemKey, err := NormalizePrivateKey(p.PrivateKey)
	if err != nil {
		return "", err
	}
	rsaKey, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(pemKey))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidKeyFormat, err)
	}

	scope := p.Scope
	if scope == "" {
		scope = defaultScope
	}
	claims := jwt.MapClaims{
		"iss":   p.Email,
		"scope": scope,
		"aud":   p.TokenURL,
		"iat":   now.Unix(),
		"exp":   now.Add(tokenLifetime).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(rsaKey)
}

// FetchToken builds and signs the assertion, then exchanges it at the token
// endpoint. Any non-2xx response is a credentials/configuration error and is
// surfaced with the response body; it is not retryable without a human fix.
func (p *TokenProvider) FetchToken(ctx context.Context) (string, error) {
	assertion, err := p.signAssertion(time.Now())
	if err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("grant_type", tokenGrantType)
	form.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := p.HTTP
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("token endpoint error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", err
	}
	if parsed.AccessToken == "" {
		return "", errors.New("token endpoint returned no access_token")
	}
	return parsed.AccessToken, nil
}
