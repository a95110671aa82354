// Package webdav implements the remote store contract against a WebDAV
// endpoint such as Nextcloud's files API. Outbound paths are transport-
// escaped here; everywhere else in the program paths stay unescaped.
package webdav

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/code1997/nextcloud-filename-sanitizer/internal/retry"
	"github.com/code1997/nextcloud-filename-sanitizer/internal/store"
)

// Client talks to one WebDAV endpoint. All paths passed to its methods are
// slash-separated and relative to the configured base URL.
type Client struct {
	base      *url.URL
	username  string
	password  string
	userAgent string

	httpClient  *http.Client
	retryConfig retry.Config
}

var _ store.Store = (*Client)(nil)

// ErrDestinationExists accompanies the Collision move outcome.
var ErrDestinationExists = errors.New("destination already exists")

// Config holds client configuration. BaseURL is the DAV root every path is
// resolved against; for Nextcloud compose it with DavURL.
type Config struct {
	BaseURL   string
	Username  string
	Password  string
	Timeout   time.Duration
	Insecure  bool // skip TLS verification (self-signed instances)
	Retry     retry.Config
	UserAgent string
}

// New creates a client for the given DAV root.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL %q: %w", cfg.BaseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base URL %q must be absolute", cfg.BaseURL)
	}
	base.Path = strings.TrimSuffix(base.Path, "/")
	base.RawPath = ""

	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry.Attempts == 0 {
		cfg.Retry = retry.DefaultConfig()
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "nextcloud-sanitize"
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	if cfg.Insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Client{
		base:      base,
		username:  cfg.Username,
		password:  cfg.Password,
		userAgent: cfg.UserAgent,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		retryConfig: cfg.Retry,
	}, nil
}

// DavURL composes the Nextcloud WebDAV root for a user's files.
func DavURL(server, username string) string {
	return strings.TrimRight(server, "/") + "/remote.php/dav/files/" + url.PathEscape(username)
}

// List returns the direct children of dir via a Depth 1 PROPFIND. Transient
// transport failures are retried; listing is read-only.
func (c *Client) List(ctx context.Context, dir string) ([]store.Entry, error) {
	return retry.DoWithResult(ctx, c.retryConfig, func() ([]store.Entry, error) {
		return c.propfindList(ctx, dir)
	})
}

func (c *Client) propfindList(ctx context.Context, dir string) ([]store.Entry, error) {
	req, err := c.newRequest(ctx, "PROPFIND", dir, strings.NewReader(propfindBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Depth", "1")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, retry.Retryable(fmt.Errorf("list %s: %w", dir, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMultiStatus {
		return nil, c.statusError("list", dir, resp)
	}

	ms, err := parseMultistatus(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	self := normalizePath(path.Join(c.base.Path, dir))
	entries := make([]store.Entry, 0, len(ms.Responses))
	for _, r := range ms.Responses {
		u, err := url.Parse(r.Href)
		if err != nil {
			return nil, fmt.Errorf("list %s: malformed href %q: %w", dir, r.Href, err)
		}
		p := normalizePath(u.Path)
		if p == self {
			continue
		}
		kind := store.KindFile
		if r.isCollection() {
			kind = store.KindDir
		}
		entries = append(entries, store.Entry{Name: path.Base(p), Kind: kind})
	}
	return entries, nil
}

// Move renames src to dst without overwriting: the server reports an
// existing destination as 412, surfaced as the Collision outcome. Moves are
// not idempotent and are never retried.
func (c *Client) Move(ctx context.Context, src, dst string, recursive bool) (store.MoveStatus, error) {
	req, err := c.newRequest(ctx, "MOVE", src, nil)
	if err != nil {
		return store.Failed, err
	}
	req.Header.Set("Destination", c.urlFor(dst))
	req.Header.Set("Overwrite", "F")
	if recursive {
		req.Header.Set("Depth", "infinity")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return store.Failed, fmt.Errorf("move %s: %w", src, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusCreated, http.StatusNoContent:
		return store.Moved, nil
	case http.StatusPreconditionFailed:
		return store.Collision, fmt.Errorf("move %s to %s: %w", src, dst, ErrDestinationExists)
	default:
		return store.Failed, fmt.Errorf("move %s to %s: server returned %s", src, dst, resp.Status)
	}
}

// Delete removes the entry at p. Like Move it is issued exactly once.
func (c *Client) Delete(ctx context.Context, p string) error {
	req, err := c.newRequest(ctx, "DELETE", p, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete %s: %w", p, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return c.statusError("delete", p, resp)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// Exists reports whether an entry exists at p, via a Depth 0 PROPFIND.
func (c *Client) Exists(ctx context.Context, p string) (bool, error) {
	return retry.DoWithResult(ctx, c.retryConfig, func() (bool, error) {
		req, err := c.newRequest(ctx, "PROPFIND", p, strings.NewReader(propfindBody))
		if err != nil {
			return false, err
		}
		req.Header.Set("Depth", "0")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return false, retry.Retryable(fmt.Errorf("stat %s: %w", p, err))
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)

		switch resp.StatusCode {
		case http.StatusMultiStatus, http.StatusOK:
			return true, nil
		case http.StatusNotFound:
			return false, nil
		default:
			return false, c.statusError("stat", p, resp)
		}
	})
}

func (c *Client) newRequest(ctx context.Context, method, p string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.urlFor(p), body)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/xml; charset=utf-8")
	}
	return req, nil
}

// urlFor returns the absolute, transport-escaped URL for an unescaped path.
func (c *Client) urlFor(p string) string {
	u := *c.base
	u.Path = path.Join(c.base.Path, p)
	u.RawPath = ""
	return u.String()
}

// statusError maps an unexpected response to an error; 5xx responses are
// marked retryable for the read paths that go through the retry loop.
func (c *Client) statusError(op, p string, resp *http.Response) error {
	io.Copy(io.Discard, resp.Body)
	var err error
	if resp.StatusCode == http.StatusUnauthorized {
		err = fmt.Errorf("%s %s: authentication failed (%s)", op, p, resp.Status)
	} else {
		err = fmt.Errorf("%s %s: server returned %s", op, p, resp.Status)
	}
	if resp.StatusCode >= 500 {
		return retry.Retryable(err)
	}
	return err
}

// normalizePath strips a trailing slash and cleans the path so hrefs and
// locally joined paths compare equal.
func normalizePath(p string) string {
	p = strings.TrimSuffix(p, "/")
	if p == "" {
		return "/"
	}
	return path.Clean(p)
}
