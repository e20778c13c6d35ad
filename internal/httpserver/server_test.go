package httpserver

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/together/internal/auth"
	"github.com/MrSnakeDoc/together/internal/gallery"
	"github.com/MrSnakeDoc/together/internal/httpserver/deps"
	"github.com/MrSnakeDoc/together/internal/journal"
	"github.com/MrSnakeDoc/together/internal/logger"
	"github.com/MrSnakeDoc/together/internal/profile"
	filestore "github.com/MrSnakeDoc/together/internal/store/file"
)

const testPassword = "s3cret"

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 120)...)

func newTestDeps(t *testing.T) deps.Deps {
	t.Helper()
	dir := t.TempDir()

	prof := profile.Default()
	prof.Partners = []string{"Ana", "Ben"}
	loc, err := prof.Location()
	require.NoError(t, err)
	now := time.Date(2023, 3, 20, 9, 0, 0, 0, loc)
	cal, err := prof.Calendar(func() time.Time { return now })
	require.NoError(t, err)

	password, err := auth.NewPassword("", testPassword)
	require.NoError(t, err)
	sessions, err := auth.NewSessions("0123456789abcdef0123456789abcdef", time.Hour)
	require.NoError(t, err)

	log := logger.NewNop()
	return deps.Deps{
		Logger:    log,
		StartTime: now,
		Version:   "test",
		Profile:   prof,
		Calendar:  cal,
		Journal: journal.NewStore(journal.Options{
			Secondary: filestore.NewJournalFile(filepath.Join(dir, "journal.json")),
			Clock:     cal.Now,
			Logger:    log,
		}),
		Gallery: gallery.NewStore(gallery.Options{
			Backend:  gallery.NewLocal(filepath.Join(dir, "images")),
			MaxBytes: 1 << 10,
			Logger:   log,
		}),
		Sessions:        sessions,
		Password:        password,
		LoginRateLimit:  5,
		LoginRateWindow: time.Minute,
	}
}

// client replays the cookies it receives, like a browser.
type client struct {
	t       *testing.T
	h       http.Handler
	cookies map[string]*http.Cookie
}

func newClient(t *testing.T, d deps.Deps) *client {
	return &client{t: t, h: NewRouter(d), cookies: map[string]*http.Cookie{}}
}

func (c *client) do(r *http.Request) *httptest.ResponseRecorder {
	c.t.Helper()
	for _, ck := range c.cookies {
		r.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	c.h.ServeHTTP(rec, r)
	for _, ck := range rec.Result().Cookies() {
		if ck.MaxAge < 0 {
			delete(c.cookies, ck.Name)
			continue
		}
		c.cookies[ck.Name] = ck
	}
	return rec
}

func (c *client) get(path string) *httptest.ResponseRecorder {
	return c.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (c *client) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(r)
}

func (c *client) upload(path, filename string, body []byte) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("image", filename)
	require.NoError(c.t, err)
	_, err = fw.Write(body)
	require.NoError(c.t, err)
	require.NoError(c.t, mw.Close())

	r := httptest.NewRequest(http.MethodPost, path, &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return c.do(r)
}

// flash reads the pending flash message without consuming it.
func (c *client) flash() string {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if ck, ok := c.cookies[auth.FlashCookieName]; ok {
		r.AddCookie(ck)
	}
	return auth.PopFlash(httptest.NewRecorder(), r)
}

func (c *client) login() {
	c.t.Helper()
	rec := c.postForm("/login", url.Values{"password": {testPassword}})
	require.Equal(c.t, http.StatusSeeOther, rec.Code)
	require.Contains(c.t, c.cookies, auth.SessionCookieName)
}

func TestAnonymousIsRedirected(t *testing.T) {
	c := newClient(t, newTestDeps(t))

	for _, path := range []string{"/", "/journal", "/gallery", "/view/x", "/images/01.png", "/api/status"} {
		rec := c.get(path)
		assert.Equal(t, http.StatusSeeOther, rec.Code, path)
		assert.Equal(t, "/login", rec.Header().Get("Location"), path)
	}

	rec := c.postForm("/add_entry", url.Values{"title": {"t"}, "content": {"c"}, "author": {"a"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
}

func TestLogin(t *testing.T) {
	c := newClient(t, newTestDeps(t))

	rec := c.get("/login")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = c.postForm("/login", url.Values{"password": {"wrong"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Wrong password")
	assert.NotContains(t, c.cookies, auth.SessionCookieName)

	c.login()
	rec = c.get("/")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "101 days")
	assert.Contains(t, body, "200 day anniversary (2023-06-28)")
	assert.Contains(t, body, "Ana &amp; Ben")

	rec = c.get("/login")
	assert.Equal(t, http.StatusSeeOther, rec.Code, "logged in users skip the form")

	rec = c.get("/logout")
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	assert.Equal(t, "You have been logged out", c.flash())
	assert.Equal(t, http.StatusSeeOther, c.get("/").Code)
}

func TestLoginRateLimit(t *testing.T) {
	d := newTestDeps(t)
	d.LoginRateLimit = 2
	c := newClient(t, d)

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusUnauthorized, c.postForm("/login", url.Values{"password": {"nope"}}).Code)
	}
	rec := c.postForm("/login", url.Values{"password": {testPassword}})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.NotContains(t, c.cookies, auth.SessionCookieName)

	assert.Equal(t, http.StatusOK, c.get("/login").Code, "only POST is limited")
}

func TestJournalFlow(t *testing.T) {
	c := newClient(t, newTestDeps(t))
	c.login()

	rec := c.postForm("/add_entry", url.Values{"title": {" "}, "content": {"x"}, "author": {"y"}})
	assert.Equal(t, "/add_entry", rec.Header().Get("Location"))
	assert.Equal(t, "please fill in all required fields", c.flash())

	rec = c.postForm("/add_entry", url.Values{
		"title":   {"First date"},
		"content": {"**Hotpot** <script>alert(1)</script>"},
		"author":  {"Ana"},
	})
	assert.Equal(t, "/journal", rec.Header().Get("Location"))
	assert.Equal(t, "Entry added", c.flash())

	rec = c.get("/journal")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "First date")
	assert.Empty(t, c.flash(), "rendering a page consumes the flash")

	entries := listEntries(t, c)
	require.Len(t, entries, 1)
	id := entries[0]

	rec = c.get("/view/" + id)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<strong>Hotpot</strong>")
	assert.NotContains(t, body, "<script>alert(1)</script>")

	assert.Equal(t, http.StatusOK, c.get("/edit/"+id).Code)

	rec = c.postForm("/update/"+id, url.Values{"title": {"First date!"}, "content": {"updated"}, "author": {"Ana"}})
	assert.Equal(t, "/view/"+id, rec.Header().Get("Location"))
	assert.Equal(t, "Entry updated", c.flash())
	assert.Contains(t, c.get("/view/"+id).Body.String(), "First date!")

	rec = c.postForm("/update/"+id, url.Values{"title": {""}, "content": {"x"}, "author": {"y"}})
	assert.Equal(t, "/edit/"+id, rec.Header().Get("Location"))

	rec = c.postForm("/delete_entry", url.Values{"entry_id": {id}})
	assert.Equal(t, "/journal", rec.Header().Get("Location"))
	assert.Equal(t, "Entry deleted", c.flash())

	rec = c.get("/view/" + id)
	assert.Equal(t, "/journal", rec.Header().Get("Location"))
	assert.Equal(t, "Entry not found", c.flash())
}

// listEntries scrapes entry ids from the journal page.
func listEntries(t *testing.T, c *client) []string {
	t.Helper()
	body := c.get("/journal?sort=oldest").Body.String()
	var ids []string
	for _, part := range strings.Split(body, `href="/view/`)[1:] {
		end := strings.IndexByte(part, '"')
		require.Positive(t, end)
		ids = append(ids, part[:end])
	}
	return ids
}

func TestGalleryFlow(t *testing.T) {
	c := newClient(t, newTestDeps(t))
	c.login()

	rec := c.upload("/upload", "holiday.jpg", pngBytes)
	assert.Equal(t, "/gallery", rec.Header().Get("Location"))
	assert.Equal(t, "Photo uploaded", c.flash())

	rec = c.get("/gallery")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `src="/images/01.png"`)

	rec = c.get("/images/01.png")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, pngBytes, rec.Body.Bytes())

	assert.Equal(t, http.StatusNotFound, c.get("/images/99.png").Code)

	rec = c.postForm("/delete", url.Values{"image": {"01.png"}})
	assert.Equal(t, "/gallery", rec.Header().Get("Location"))
	assert.Equal(t, "Photo deleted", c.flash())
	assert.NotContains(t, c.get("/gallery").Body.String(), "/images/01.png")

	c.postForm("/delete", url.Values{"image": {"01.png"}})
	assert.Equal(t, "Photo not found", c.flash())
}

func TestUploadRejected(t *testing.T) {
	c := newClient(t, newTestDeps(t))
	c.login()

	tests := []struct {
		name     string
		filename string
		body     []byte
		contains string
	}{
		{"not an image", "notes.jpg", []byte("hello, this is text"), "invalid image file format"},
		{"disallowed extension", "script.exe", pngBytes, "file type not allowed"},
		{"too large", "big.png", append(bytes.Clone(pngBytes), bytes.Repeat([]byte{1}, 2<<10)...), "exceeds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := c.upload("/upload", tt.filename, tt.body)
			assert.Equal(t, "/gallery", rec.Header().Get("Location"))
			assert.Contains(t, c.flash(), tt.contains)
		})
	}

	rec := c.postForm("/upload", url.Values{})
	assert.Equal(t, "/gallery", rec.Header().Get("Location"))
	assert.Equal(t, "No file selected", c.flash())
}

func TestAPI(t *testing.T) {
	c := newClient(t, newTestDeps(t))

	rec := c.get("/api/health")
	require.Equal(t, http.StatusOK, rec.Code)
	var health map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["status"])

	assert.Equal(t, http.StatusOK, c.get("/readyz").Code)

	c.login()
	rec = c.get("/api/status")
	require.Equal(t, http.StatusOK, rec.Code)
	var status struct {
		Mode         string `json:"mode"`
		EntriesCount *int   `json:"entries_count"`
		Components   map[string]struct {
			OK    bool   `json:"ok"`
			State string `json:"state"`
		} `json:"components"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "optimal", status.Mode)
	require.NotNil(t, status.EntriesCount)
	assert.Equal(t, 0, *status.EntriesCount)
	assert.Equal(t, "unconfigured", status.Components["journal_primary"].State)
	assert.True(t, status.Components["gallery"].OK)
}

func TestStatusCIDR(t *testing.T) {
	d := newTestDeps(t)
	d.AllowedCIDRS = []string{"10.0.0.0/8"}
	c := newClient(t, d)
	c.login()

	r := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	r.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, http.StatusForbidden, c.do(r).Code)

	r = httptest.NewRequest(http.MethodGet, "/api/status", nil)
	r.RemoteAddr = "10.1.2.3:1234"
	assert.Equal(t, http.StatusOK, c.do(r).Code)
}

func TestEnforceHost(t *testing.T) {
	d := newTestDeps(t)
	d.AllowedHosts = []string{"together.example.com"}
	c := newClient(t, d)

	r := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	r.Host = "evil.test"
	assert.Equal(t, http.StatusMisdirectedRequest, c.do(r).Code)

	r = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	r.Host = "together.example.com:8080"
	assert.Equal(t, http.StatusOK, c.do(r).Code)
}
