package webdav

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/net/webdav"

	"github.com/code1997/nextcloud-filename-sanitizer/internal/retry"
	"github.com/code1997/nextcloud-filename-sanitizer/internal/store"
)

const (
	testUser = "alice"
	testPass = "secret"
)

// newTestServer starts an in-memory DAV server guarded by basic auth and
// returns a client pointed at it plus the backing filesystem for seeding.
func newTestServer(t *testing.T) (*Client, webdav.FileSystem) {
	t.Helper()

	fs := webdav.NewMemFS()
	dav := &webdav.Handler{FileSystem: fs, LockSystem: webdav.NewMemLS()}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != testUser || pass != testPass {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		dav.ServeHTTP(w, r)
	}))
	t.Cleanup(ts.Close)

	c, err := New(Config{
		BaseURL:  ts.URL,
		Username: testUser,
		Password: testPass,
		Retry:    retry.Config{Attempts: 1},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, fs
}

func mkdir(t *testing.T, fs webdav.FileSystem, p string) {
	t.Helper()
	if err := fs.Mkdir(context.Background(), p, 0755); err != nil {
		t.Fatalf("mkdir %s: %v", p, err)
	}
}

func mkfile(t *testing.T, fs webdav.FileSystem, p string) {
	t.Helper()
	f, err := fs.OpenFile(context.Background(), p, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		t.Fatalf("create %s: %v", p, err)
	}
	if _, err := f.Write([]byte("x")); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	f.Close()
}

func TestList(t *testing.T) {
	c, fs := newTestServer(t)
	mkdir(t, fs, "/docs")
	mkdir(t, fs, "/docs/sub")
	mkfile(t, fs, "/docs/a.txt")
	mkfile(t, fs, "/docs/we?ird na*me")

	entries, err := c.List(context.Background(), "/docs")
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	want := map[string]store.Kind{
		"sub":          store.KindDir,
		"a.txt":        store.KindFile,
		"we?ird na*me": store.KindFile,
	}
	if len(entries) != len(want) {
		t.Fatalf("List returned %d entries, want %d: %v", len(entries), len(want), entries)
	}
	for _, e := range entries {
		kind, ok := want[e.Name]
		if !ok {
			t.Errorf("List returned unexpected entry %q", e.Name)
			continue
		}
		if e.Kind != kind {
			t.Errorf("entry %q kind = %v, want %v", e.Name, e.Kind, kind)
		}
	}
}

func TestListRootExcludesSelf(t *testing.T) {
	c, fs := newTestServer(t)
	mkdir(t, fs, "/docs")

	entries, err := c.List(context.Background(), "/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "docs" || entries[0].Kind != store.KindDir {
		t.Errorf("List(/) = %v, want only the docs directory", entries)
	}
}

func TestListEmptyDirectory(t *testing.T) {
	c, fs := newTestServer(t)
	mkdir(t, fs, "/empty")

	entries, err := c.List(context.Background(), "/empty")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("List(/empty) = %v, want no entries", entries)
	}
}

func TestListMissingDirectory(t *testing.T) {
	c, _ := newTestServer(t)

	if _, err := c.List(context.Background(), "/nope"); err == nil {
		t.Error("List of a missing directory should fail")
	}
}

func TestMoveFile(t *testing.T) {
	c, fs := newTestServer(t)
	mkdir(t, fs, "/docs")
	mkfile(t, fs, "/docs/old.txt")

	status, err := c.Move(context.Background(), "/docs/old.txt", "/docs/new.txt", false)
	if status != store.Moved || err != nil {
		t.Fatalf("Move = %v, %v, want Moved, nil", status, err)
	}

	if ok, _ := c.Exists(context.Background(), "/docs/old.txt"); ok {
		t.Error("source still exists after move")
	}
	if ok, _ := c.Exists(context.Background(), "/docs/new.txt"); !ok {
		t.Error("destination missing after move")
	}
}

func TestMoveDirectoryKeepsSubtree(t *testing.T) {
	c, fs := newTestServer(t)
	mkdir(t, fs, "/d1")
	mkdir(t, fs, "/d1/inner")
	mkfile(t, fs, "/d1/inner/file.txt")

	status, err := c.Move(context.Background(), "/d1", "/d2", true)
	if status != store.Moved || err != nil {
		t.Fatalf("Move = %v, %v, want Moved, nil", status, err)
	}

	if ok, _ := c.Exists(context.Background(), "/d2/inner/file.txt"); !ok {
		t.Error("subtree did not travel with the renamed directory")
	}
}

func TestMoveCollision(t *testing.T) {
	c, fs := newTestServer(t)
	mkfile(t, fs, "/a")
	mkfile(t, fs, "/b")

	status, err := c.Move(context.Background(), "/a", "/b", false)
	if status != store.Collision {
		t.Fatalf("Move = %v, %v, want Collision", status, err)
	}
	if !errors.Is(err, ErrDestinationExists) {
		t.Errorf("collision error = %v, want ErrDestinationExists", err)
	}

	// Nothing may have changed.
	if ok, _ := c.Exists(context.Background(), "/a"); !ok {
		t.Error("source vanished on a collision")
	}
}

func TestMoveMissingSource(t *testing.T) {
	c, _ := newTestServer(t)

	status, err := c.Move(context.Background(), "/ghost", "/ghost2", false)
	if status != store.Failed || err == nil {
		t.Errorf("Move = %v, %v, want Failed with error", status, err)
	}
}

func TestDelete(t *testing.T) {
	c, fs := newTestServer(t)
	mkfile(t, fs, "/victim")

	if err := c.Delete(context.Background(), "/victim"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ok, _ := c.Exists(context.Background(), "/victim"); ok {
		t.Error("entry still exists after delete")
	}

	if err := c.Delete(context.Background(), "/victim"); err == nil {
		t.Error("deleting a missing entry should fail")
	}
}

func TestExists(t *testing.T) {
	c, fs := newTestServer(t)
	mkdir(t, fs, "/dir")
	mkfile(t, fs, "/dir/file.txt")

	tests := []struct {
		path string
		want bool
	}{
		{"/", true},
		{"/dir", true},
		{"/dir/file.txt", true},
		{"/dir/missing.txt", false},
		{"/other", false},
	}
	for _, tt := range tests {
		got, err := c.Exists(context.Background(), tt.path)
		if err != nil {
			t.Errorf("Exists(%q): %v", tt.path, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Exists(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestEscapedPathsRoundTrip(t *testing.T) {
	c, fs := newTestServer(t)
	mkdir(t, fs, "/sp ace")
	mkfile(t, fs, "/sp ace/q?.txt")

	entries, err := c.List(context.Background(), "/sp ace")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "q?.txt" {
		t.Fatalf("List(/sp ace) = %v, want the q?.txt file", entries)
	}

	status, err := c.Move(context.Background(), "/sp ace/q?.txt", "/sp ace/q_.txt", false)
	if status != store.Moved || err != nil {
		t.Fatalf("Move = %v, %v, want Moved, nil", status, err)
	}
	if ok, _ := c.Exists(context.Background(), "/sp ace/q_.txt"); !ok {
		t.Error("escaped destination missing after move")
	}
}

func TestAuthenticationFailure(t *testing.T) {
	c, _ := newTestServer(t)
	bad, err := New(Config{
		BaseURL:  c.base.String(),
		Username: testUser,
		Password: "wrong",
		Retry:    retry.Config{Attempts: 1},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = bad.List(context.Background(), "/")
	if err == nil || !strings.Contains(err.Error(), "authentication failed") {
		t.Errorf("List with bad credentials = %v, want authentication failure", err)
	}
}

func TestListRetriesTransientErrors(t *testing.T) {
	fs := webdav.NewMemFS()
	dav := &webdav.Handler{FileSystem: fs, LockSystem: webdav.NewMemLS()}

	var failures atomic.Int32
	failures.Store(2)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failures.Add(-1) >= 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		dav.ServeHTTP(w, r)
	}))
	t.Cleanup(ts.Close)

	c, err := New(Config{
		BaseURL: ts.URL,
		Retry:   retry.Config{Attempts: 3, BaseWait: time.Millisecond, Multiplier: 2.0},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := c.List(context.Background(), "/"); err != nil {
		t.Errorf("List should succeed once the server recovers, got %v", err)
	}
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	tests := []string{
		"cloud.example.com", // no scheme
		"://cloud",          // unparseable
		"/remote.php/dav",   // no host
	}
	for _, base := range tests {
		if _, err := New(Config{BaseURL: base}); err == nil {
			t.Errorf("New(%q) should fail", base)
		}
	}
}

func TestDavURL(t *testing.T) {
	tests := []struct {
		server, username string
		want             string
	}{
		{"https://cloud.example.com", "alice", "https://cloud.example.com/remote.php/dav/files/alice"},
		{"https://cloud.example.com/", "alice", "https://cloud.example.com/remote.php/dav/files/alice"},
		{"https://host/nextcloud", "bob", "https://host/nextcloud/remote.php/dav/files/bob"},
		{"https://cloud.example.com", "al ice", "https://cloud.example.com/remote.php/dav/files/al%20ice"},
	}
	for _, tt := range tests {
		if got := DavURL(tt.server, tt.username); got != tt.want {
			t.Errorf("DavURL(%q, %q) = %q, want %q", tt.server, tt.username, got, tt.want)
		}
	}
}
