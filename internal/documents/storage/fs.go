package storage

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// FSStore keeps document bytes on the local filesystem. Download URLs are
// HMAC-signed so the file handler can verify them without any state.
type FSStore struct {
	dir     string
	baseURL string
	secret  []byte
	now     func() time.Time
}

func NewFSStore(dir, baseURL, secret string) *FSStore {
	return &FSStore{
		dir:     dir,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		secret:  []byte(secret),
		now:     time.Now,
	}
}

func (s *FSStore) path(key string) string {
	// Keys are opaque ids minted by us; Base strips anything path-like that
	// could escape the storage directory.
	return filepath.Join(s.dir, filepath.Base(key))
}

func (s *FSStore) Put(_ context.Context, key, contentType string, body io.Reader) (int64, error) {
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return 0, fmt.Errorf("create storage dir: %w", err)
	}
	file, err := os.Create(s.path(key))
	if err != nil {
		return 0, fmt.Errorf("create object %s: %w", key, err)
	}
	defer file.Close()

	size, err := io.Copy(file, body)
	if err != nil {
		os.Remove(file.Name())
		return 0, fmt.Errorf("write object %s: %w", key, err)
	}
	_ = contentType
	return size, nil
}

func (s *FSStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	file, err := os.Open(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open object %s: %w", key, err)
	}
	return file, nil
}

// PresignDownload returns a signed download URL valid until now+ttl.
func (s *FSStore) PresignDownload(_ context.Context, key string, ttl time.Duration) (string, error) {
	if _, err := os.Stat(s.path(key)); errors.Is(err, fs.ErrNotExist) {
		return "", ErrObjectNotFound
	} else if err != nil {
		return "", fmt.Errorf("stat object %s: %w", key, err)
	}

	expires := s.now().Add(ttl).Unix()
	query := url.Values{
		"expires": {strconv.FormatInt(expires, 10)},
		"sig":     {s.sign(key, expires)},
	}
	return fmt.Sprintf("%s/documents/download/%s?%s", s.baseURL, url.PathEscape(key), query.Encode()), nil
}

// VerifySignature checks a download request produced by PresignDownload.
func (s *FSStore) VerifySignature(key, expiresStr, signature string) error {
	expires, err := strconv.ParseInt(expiresStr, 10, 64)
	if err != nil {
		return errors.New("malformed expiry")
	}
	if s.now().Unix() > expires {
		return errors.New("download link expired")
	}
	if !hmac.Equal([]byte(s.sign(key, expires)), []byte(signature)) {
		return errors.New("bad signature")
	}
	return nil
}

func (s *FSStore) Delete(_ context.Context, key string) error {
	err := os.Remove(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrObjectNotFound
	}
	return err
}

func (s *FSStore) sign(key string, expires int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s:%d", key, expires)
	return hex.EncodeToString(mac.Sum(nil))
}
