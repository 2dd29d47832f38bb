package blob

import (
	"errors"
	"fmt"
	"mime"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// TypeWAV is the media type of generated clips.
const TypeWAV = "audio/wav"

// URLPrefix starts every object URL minted by a Store.
const URLPrefix = "blob:tunegen/"

var (
	ErrEmpty     = errors.New("blob: empty payload")
	ErrMalformed = errors.New("blob: payload does not match declared type")
	ErrRevoked   = errors.New("blob: object URL revoked or unknown")
)

// Blob is an immutable typed byte payload.
type Blob struct {
	data []byte
	typ  string
}

// New wraps data as a blob of the given media type. The payload is copied and
// sniffed: a declared audio type whose bytes do not look like that type is
// rejected with ErrMalformed.
func New(data []byte, mediaType string) (*Blob, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	typ, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return nil, fmt.Errorf("blob: media type %q: %w", mediaType, err)
	}

	if strings.HasPrefix(typ, "audio/") {
		detected := mimetype.Detect(data)
		if !detected.Is(typ) {
			return nil, fmt.Errorf("%w: want %s, sniffed %s", ErrMalformed, typ, detected.String())
		}
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	return &Blob{data: buf, typ: typ}, nil
}

// Bytes returns the payload. Callers must not modify it.
func (b *Blob) Bytes() []byte { return b.data }

// Type returns the media type.
func (b *Blob) Type() string { return b.typ }

// Size returns the payload length in bytes.
func (b *Blob) Size() int { return len(b.data) }

// Store maps object URLs to blobs for the lifetime of a process. URLs stay
// dereferenceable until revoked.
type Store struct {
	mu   sync.RWMutex
	urls map[string]*Blob
}

// NewStore creates an empty object URL store.
func NewStore() *Store {
	return &Store{urls: make(map[string]*Blob)}
}

// CreateObjectURL registers b and returns a fresh URL for it.
func (s *Store) CreateObjectURL(b *Blob) string {
	u := URLPrefix + uuid.NewString()
	s.mu.Lock()
	s.urls[u] = b
	s.mu.Unlock()
	return u
}

// RevokeObjectURL releases u. Revoking an unknown URL is a no-op.
func (s *Store) RevokeObjectURL(u string) {
	s.mu.Lock()
	delete(s.urls, u)
	s.mu.Unlock()
}

// Resolve returns the blob behind u.
func (s *Store) Resolve(u string) (*Blob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.urls[u]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRevoked, u)
	}
	return b, nil
}

// Len returns the number of live URLs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.urls)
}
