package sheetsync

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
)

func testKeyPEM(t *testing.T) (string, *rsa.PublicKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	var b strings.Builder
	if err := pem.Encode(&b, &pem.Block{Type: "PRIVATE KEY", Bytes: der}); err != nil {
		t.Fatalf("encode pem: %v", err)
	}
	return b.String(), &key.PublicKey
}

func TestNormalizePrivateKeyFormats(t *testing.T) {
	pemKey, _ := testKeyPEM(t)

	block, _ := pem.Decode([]byte(pemKey))
	bareBody := base64.StdEncoding.EncodeToString(block.Bytes)

	wrapped, err := json.Marshal(map[string]string{
		"type":        "service_account",
		"private_key": pemKey,
	})
	if err != nil {
		t.Fatalf("marshal wrapper: %v", err)
	}

	cases := []struct {
		name string
		in   string
	}{
		{"raw pem", pemKey},
		{"escaped newlines", strings.ReplaceAll(pemKey, "\n", `\n`)},
		{"json wrapped", string(wrapped)},
		{"bare base64 body", bareBody},
	}
	for _, c := range cases {
		normalized, err := NormalizePrivateKey(c.in)
		if err != nil {
			t.Fatalf("%s: NormalizePrivateKey failed: %v", c.name, err)
		}
		if _, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(normalized)); err != nil {
			t.Fatalf("%s: normalized key does not parse: %v", c.name, err)
		}
	}
}

func TestNormalizePrivateKeyRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "   ", "not a key", `{"private_key":""}`, "{broken json"} {
		if _, err := NormalizePrivateKey(in); !errors.Is(err, ErrInvalidKeyFormat) {
			t.Fatalf("NormalizePrivateKey(%q) err = %v, want ErrInvalidKeyFormat", in, err)
		}
	}
}

func TestSignAssertionClaims(t *testing.T) {
	pemKey, pub := testKeyPEM(t)
	provider := &TokenProvider{
		Email:      "sync@fleet.example",
		PrivateKey: pemKey,
		TokenURL:   "https://token.example/exchange",
	}
	assertion, err := provider.signAssertion(time.Now())
	if err != nil {
		t.Fatalf("signAssertion failed: %v", err)
	}

	token, err := jwt.Parse(assertion, func(tok *jwt.Token) (interface{}, error) {
		if tok.Method != jwt.SigningMethodRS256 {
			return nil, errors.New("unexpected signing method")
		}
		return pub, nil
	})
	if err != nil || !token.Valid {
		t.Fatalf("assertion does not verify: %v", err)
	}
	claims := token.Claims.(jwt.MapClaims)
	if claims["iss"] != "sync@fleet.example" || claims["aud"] != "https://token.example/exchange" {
		t.Fatalf("unexpected claims: %v", claims)
	}
	if claims["scope"] != defaultScope {
		t.Fatalf("scope = %v, want default spreadsheet scope", claims["scope"])
	}
	iat, exp := int64(claims["iat"].(float64)), int64(claims["exp"].(float64))
	if exp-iat != int64(tokenLifetime.Seconds()) {
		t.Fatalf("lifetime = %ds, want %v", exp-iat, tokenLifetime)
	}
}

func TestFetchToken(t *testing.T) {
	pemKey, _ := testKeyPEM(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != tokenGrantType {
			t.Errorf("grant_type = %q", got)
		}
		if r.PostForm.Get("assertion") == "" {
			t.Error("assertion missing from token request")
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "ya29.test-token"})
	}))
	defer srv.Close()

	provider := &TokenProvider{
		Email:      "sync@fleet.example",
		PrivateKey: pemKey,
		TokenURL:   srv.URL,
		HTTP:       srv.Client(),
	}
	token, err := provider.FetchToken(context.Background())
	if err != nil {
		t.Fatalf("FetchToken failed: %v", err)
	}
	if token != "ya29.test-token" {
		t.Fatalf("token = %q", token)
	}
}

func TestFetchTokenErrorSurfacesBody(t *testing.T) {
	pemKey, _ := testKeyPEM(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer srv.Close()

	provider := &TokenProvider{Email: "sync@fleet.example", PrivateKey: pemKey, TokenURL: srv.URL, HTTP: srv.Client()}
	_, err := provider.FetchToken(context.Background())
	if err == nil || !strings.Contains(err.Error(), "invalid_grant") {
		t.Fatalf("err = %v, want token endpoint body surfaced", err)
	}
}
