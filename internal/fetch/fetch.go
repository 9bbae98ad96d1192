// Package fetch downloads files with a primary and a fallback strategy.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/born-ml/probe/internal/logger"
)

// DefaultUserAgent identifies primary requests.
const DefaultUserAgent = "probe/1.0"

// Downloader fetches a URL to a local file.
//
// Both attempts stream into a temporary file next to the destination and
// rename it into place, so a failed download never leaves a partial file.
// The primary attempt sends a User-Agent; if it fails for any reason other
// than context cancellation, a plain GET is tried. When both fail the two
// errors are joined.
type Downloader struct {
	Client    *http.Client // primary; http.DefaultClient when nil
	Fallback  *http.Client // fallback; http.DefaultClient when nil
	UserAgent string
	Log       logger.Logger
}

// New returns a Downloader with default clients.
func New(log logger.Logger) *Downloader {
	return &Downloader{UserAgent: DefaultUserAgent, Log: log}
}

// Download saves rawURL to dest.
func (d *Downloader) Download(ctx context.Context, rawURL, dest string) error {
	log := d.log().With("url", rawURL, "dest", dest)

	primaryErr := d.primary(ctx, rawURL, dest)
	if primaryErr == nil {
		log.Debug("download complete", "strategy", "primary")
		return nil
	}
	if errors.Is(primaryErr, context.Canceled) || errors.Is(primaryErr, context.DeadlineExceeded) {
		return fmt.Errorf("download %s: %w", rawURL, primaryErr)
	}

	log.Warn("primary download failed, trying fallback", "err", primaryErr)
	fallbackErr := d.fallback(ctx, rawURL, dest)
	if fallbackErr == nil {
		log.Debug("download complete", "strategy", "fallback")
		return nil
	}
	return fmt.Errorf("download %s: %w", rawURL, errors.Join(primaryErr, fallbackErr))
}

// Cached returns the path of rawURL's file inside dir, downloading it first
// when it is not there yet.
func (d *Downloader) Cached(ctx context.Context, rawURL, dir string) (string, error) {
	name, err := FileName(rawURL)
	if err != nil {
		return "", err
	}
	dest := filepath.Join(dir, name)
	if st, err := os.Stat(dest); err == nil && st.Size() > 0 {
		d.log().Debug("cache hit", "path", dest)
		return dest, nil
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create cache dir: %w", err)
	}
	if err := d.Download(ctx, rawURL, dest); err != nil {
		return "", err
	}
	return dest, nil
}

// FileName returns the last path element of rawURL.
func FileName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "", fmt.Errorf("url %q has no file name", rawURL)
	}
	return name, nil
}

func (d *Downloader) primary(ctx context.Context, rawURL, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("primary: %w", err)
	}
	if d.UserAgent != "" {
		req.Header.Set("User-Agent", d.UserAgent)
	}
	resp, err := client(d.Client).Do(req)
	if err != nil {
		return fmt.Errorf("primary: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("primary: unexpected status %s", resp.Status)
	}

	if err := save(resp.Body, dest); err != nil {
		return fmt.Errorf("primary: %w", err)
	}
	return nil
}

func (d *Downloader) fallback(ctx context.Context, rawURL, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("fallback: %w", err)
	}
	resp, err := client(d.Fallback).Do(req)
	if err != nil {
		return fmt.Errorf("fallback: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fallback: unexpected status %s", resp.Status)
	}

	if err := save(resp.Body, dest); err != nil {
		return fmt.Errorf("fallback: %w", err)
	}
	return nil
}

// save streams r into a temporary file next to dest and renames it into
// place. On error nothing is left at dest or beside it.
func save(r io.Reader, dest string) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.partial")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = io.Copy(tmp, r); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dest)
}

func (d *Downloader) log() logger.Logger {
	if d.Log == nil {
		return logger.Nop()
	}
	return d.Log
}

func client(c *http.Client) *http.Client {
	if c == nil {
		return http.DefaultClient
	}
	return c
}
