package session

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Codec seals cookie values so the browser can neither read nor forge them.
type Codec interface {
	Seal(plaintext string) (string, error)
	Open(sealed string) (string, error)
}

// CookieStore is a Store backed by the cookies of one request/response pair.
// Values written during the request are visible to later reads in the same request.
type CookieStore struct {
	w      http.ResponseWriter
	r      *http.Request
	codec  Codec
	secure bool

	mu sync.Mutex
	// pending holds values written in this request; nil marks a deletion.
	pending map[string]*string
}

func NewCookieStore(w http.ResponseWriter, r *http.Request, codec Codec, secure bool) *CookieStore {
	return &CookieStore{
		w:       w,
		r:       r,
		codec:   codec,
		secure:  secure,
		pending: map[string]*string{},
	}
}

func (s *CookieStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if value, ok := s.pending[key]; ok {
		if value == nil {
			return "", false, nil
		}
		return *value, true, nil
	}

	cookie, err := s.r.Cookie(key)
	if err != nil || cookie.Value == "" {
		return "", false, nil
	}

	value, err := s.codec.Open(cookie.Value)
	if err != nil {
		return "", false, fmt.Errorf("failed to open cookie %s: %w", key, err)
	}
	return value, true, nil
}

func (s *CookieStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	sealed, err := s.codec.Seal(value)
	if err != nil {
		return fmt.Errorf("failed to seal cookie %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cookie := s.cookie(key, sealed)
	if ttl > 0 {
		cookie.MaxAge = int(ttl / time.Second)
	}
	s.write(cookie)
	s.pending[key] = &value
	return nil
}

func (s *CookieStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if value, ok := s.pending[key]; ok && value == nil {
		return nil
	}

	cookie := s.cookie(key, "")
	cookie.MaxAge = -1
	s.write(cookie)
	s.pending[key] = nil
	return nil
}

func (s *CookieStore) cookie(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// write replaces any Set-Cookie for the same name already added to this response.
func (s *CookieStore) write(cookie *http.Cookie) {
	header := s.w.Header()
	prefix := cookie.Name + "="
	var kept []string
	for _, v := range header.Values("Set-Cookie") {
		if !strings.HasPrefix(v, prefix) {
			kept = append(kept, v)
		}
	}
	header.Del("Set-Cookie")
	for _, v := range kept {
		header.Add("Set-Cookie", v)
	}
	http.SetCookie(s.w, cookie)
}
