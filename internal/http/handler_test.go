package http

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"image-drop/internal/repository/sqlite"
	"image-drop/internal/service"
	"image-drop/internal/storage"
)

const (
	testUser     = "alice"
	testPassword = "correct horse battery"
)

var (
	jpegBytes = append([]byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}, bytes.Repeat([]byte{0x42}, 64)...)
	pngBytes  = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0x00}, 64)...)
)

type testApp struct {
	server    *httptest.Server
	client    *http.Client
	uploadDir string
	staticDir string
}

func newTestApp(t *testing.T, configure ...func(*Config)) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	repos, err := sqlite.NewRepositories(ctx, db)
	require.NoError(t, err)

	users := service.NewUserService(repos.Users)
	_, err = users.Register(ctx, testUser, testPassword)
	require.NoError(t, err)

	uploadDir := filepath.Join(t.TempDir(), "uploads")
	uploads, err := storage.NewLocal(uploadDir)
	require.NoError(t, err)
	staticDir := filepath.Join(t.TempDir(), "static")
	static, err := storage.NewLocal(staticDir)
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := Config{
		Sessions:       service.NewSessionService(users, repos.Sessions, time.Hour),
		Uploads:        uploads,
		Static:         static,
		Logger:         logger,
		Secret:         []byte("test-secret"),
		SessionTTL:     time.Hour,
		MaxUploadBytes: 1 << 20,
		PublicFetch:    true,
	}
	for _, fn := range configure {
		fn(&cfg)
	}

	router := gin.New()
	require.NoError(t, NewHandler(cfg).RegisterRoutes(router))

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &testApp{
		server: srv,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		uploadDir: uploadDir,
		staticDir: staticDir,
	}
}

func (a *testApp) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := a.client.Get(a.server.URL + path)
	require.NoError(t, err)
	return resp, readBody(t, resp)
}

// csrfToken returns the token held in the jar, rendering the login page
// first when no token has been issued yet.
func (a *testApp) csrfToken(t *testing.T) string {
	t.Helper()
	u, err := url.Parse(a.server.URL)
	require.NoError(t, err)
	for _, c := range a.client.Jar.Cookies(u) {
		if c.Name == csrfCookieName {
			return c.Value
		}
	}
	resp, body := a.get(t, "/login")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	for _, c := range a.client.Jar.Cookies(u) {
		if c.Name == csrfCookieName {
			require.Contains(t, body, `name="csrf_token" value="`+c.Value+`"`)
			return c.Value
		}
	}
	t.Fatal("no csrf cookie issued")
	return ""
}

func (a *testApp) login(t *testing.T, username, password string) (*http.Response, string) {
	t.Helper()
	return a.loginWithToken(t, username, password, a.csrfToken(t))
}

func (a *testApp) loginWithToken(t *testing.T, username, password, token string) (*http.Response, string) {
	t.Helper()
	resp, err := a.client.PostForm(a.server.URL+"/login", url.Values{
		"username":   {username},
		"password":   {password},
		"csrf_token": {token},
	})
	require.NoError(t, err)
	return resp, readBody(t, resp)
}

func (a *testApp) upload(t *testing.T, filename string, content []byte) (*http.Response, string) {
	t.Helper()
	return a.uploadWithToken(t, filename, content, a.csrfToken(t))
}

func (a *testApp) uploadWithToken(t *testing.T, filename string, content []byte, token string) (*http.Response, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if token != "" {
		require.NoError(t, w.WriteField("csrf_token", token))
	}
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	} else {
		require.NoError(t, w.WriteField("note", "no file"))
	}
	require.NoError(t, w.Close())

	resp, err := a.client.Post(a.server.URL+"/upload", w.FormDataContentType(), &body)
	require.NoError(t, err)
	return resp, readBody(t, resp)
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

func requireRedirect(t *testing.T, resp *http.Response, location string) {
	t.Helper()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, location, resp.Header.Get("Location"))
}

func hasCookie(resp *http.Response, name string) bool {
	for _, c := range resp.Cookies() {
		if c.Name == name && c.Value != "" {
			return true
		}
	}
	return false
}

func TestPublicPages(t *testing.T) {
	app := newTestApp(t, func(c *Config) { c.AboutName = "Ada" })

	resp, body := app.get(t, "/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, "Login")

	resp, body = app.get(t, "/about/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, "maintained by Ada")
}

func TestResponseHeadersOnEveryResponse(t *testing.T) {
	app := newTestApp(t)

	for _, path := range []string{"/", "/login", "/files", "/does-not-exist"} {
		resp, _ := app.get(t, path)
		require.Equal(t, "IE=Edge,chrome=1", resp.Header.Get("X-UA-Compatible"), path)
		require.Equal(t, "public, max-age=0", resp.Header.Get("Cache-Control"), path)
		require.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"), path)
	}
}

func TestNotFound(t *testing.T) {
	app := newTestApp(t)

	resp, body := app.get(t, "/nope")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Contains(t, body, "Page not found")

	resp, _ = app.get(t, "/uploads/missing.png")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = app.get(t, "/uploads/..%2F..%2Fetc%2Fpasswd")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLogin_FailuresLookAlike(t *testing.T) {
	app := newTestApp(t)

	unknownResp, unknownBody := app.login(t, "mallory", testPassword)
	wrongResp, wrongBody := app.login(t, testUser, "not the password")

	for _, resp := range []*http.Response{unknownResp, wrongResp} {
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.False(t, hasCookie(resp, sessionCookieName))
	}
	require.Contains(t, unknownBody, invalidCredentialsMessage)
	require.Contains(t, wrongBody, invalidCredentialsMessage)
}

func TestLogin_RequiresCSRFToken(t *testing.T) {
	app := newTestApp(t)
	app.csrfToken(t)

	for name, token := range map[string]string{"missing": "", "wrong": "forged-token"} {
		resp, body := app.loginWithToken(t, testUser, testPassword, token)
		require.Equal(t, http.StatusForbidden, resp.StatusCode, name)
		require.Contains(t, body, csrfFailed, name)
		require.False(t, hasCookie(resp, sessionCookieName), name)
	}

	resp, _ := app.get(t, "/files")
	requireRedirect(t, resp, "/login")
}

func TestLogin_RejectsTokenWithoutCookie(t *testing.T) {
	app := newTestApp(t)

	// a token copied from another browser is useless without its cookie
	other := newTestApp(t)
	token := other.csrfToken(t)

	resp, _ := app.loginWithToken(t, testUser, testPassword, token)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestUpload_RequiresCSRFToken(t *testing.T) {
	app := newTestApp(t)
	app.login(t, testUser, testPassword)

	for name, token := range map[string]string{"missing": "", "wrong": "forged-token"} {
		resp, body := app.uploadWithToken(t, "cat.png", pngBytes, token)
		require.Equal(t, http.StatusForbidden, resp.StatusCode, name)
		require.Contains(t, body, csrfFailed, name)
	}

	entries, err := os.ReadDir(app.uploadDir)
	require.NoError(t, err)
	for _, e := range entries {
		require.True(t, e.IsDir(), "unexpected file %s", e.Name())
	}
}

func TestUploadedFile_ServedWithExtensionType(t *testing.T) {
	app := newTestApp(t)
	app.login(t, testUser, testPassword)

	payload := []byte("<html><body><script>alert(document.domain)</script></body></html>")
	resp, _ := app.upload(t, "evil.png", payload)
	requireRedirect(t, resp, "/upload")

	resp, body := app.get(t, "/uploads/evil.png")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	require.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	require.Equal(t, string(payload), body)
}

func TestUploadedFile_UnknownExtensionNotServed(t *testing.T) {
	app := newTestApp(t)
	require.NoError(t, os.WriteFile(filepath.Join(app.uploadDir, "page.html"), []byte("<html></html>"), 0o644))

	resp, _ := app.get(t, "/uploads/page.html")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLogin_MissingFields(t *testing.T) {
	app := newTestApp(t)

	resp, body := app.login(t, "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, "Error in the Username field - This field is required.")
	require.Contains(t, body, "Error in the Password field - This field is required.")
}

func TestGatedPagesRedirectToLogin(t *testing.T) {
	app := newTestApp(t)

	for _, path := range []string{"/upload", "/files", "/logout"} {
		resp, _ := app.get(t, path)
		requireRedirect(t, resp, "/login")
	}

	_, body := app.get(t, "/login")
	require.Contains(t, body, "Please log in to access this page.")
}

func TestForgedSessionCookieIsIgnored(t *testing.T) {
	app := newTestApp(t)

	u, err := url.Parse(app.server.URL)
	require.NoError(t, err)
	app.client.Jar.SetCookies(u, []*http.Cookie{{Name: sessionCookieName, Value: "not-a-jwt", Path: "/"}})

	resp, _ := app.get(t, "/files")
	requireRedirect(t, resp, "/login")
}

func TestUploadFlow(t *testing.T) {
	app := newTestApp(t)

	resp, _ := app.login(t, testUser, testPassword)
	requireRedirect(t, resp, "/upload")
	require.True(t, hasCookie(resp, sessionCookieName))

	resp, body := app.get(t, "/upload")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, "You have successfully logged in!")

	resp, _ = app.upload(t, "cat.jpg", jpegBytes)
	requireRedirect(t, resp, "/upload")

	_, body = app.get(t, "/upload")
	require.Contains(t, body, "File Saved")
	require.NotContains(t, body, "You have successfully logged in!")

	resp, _ = app.upload(t, "cat.jpg", jpegBytes)
	requireRedirect(t, resp, "/upload")

	resp, body = app.get(t, "/files")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, `src="/uploads/cat.jpg"`)
	require.Contains(t, body, `src="/uploads/cat_1.jpg"`)

	resp, body = app.get(t, "/uploads/cat.jpg")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))
	require.Equal(t, string(jpegBytes), body)
}

func TestUpload_SanitizesName(t *testing.T) {
	app := newTestApp(t)
	app.login(t, testUser, testPassword)

	resp, _ := app.upload(t, "../../My Holiday Photo.PNG", pngBytes)
	requireRedirect(t, resp, "/upload")

	entries, err := os.ReadDir(app.uploadDir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	require.Equal(t, []string{"My_Holiday_Photo.PNG"}, names)
}

func TestUpload_Rejections(t *testing.T) {
	cases := []struct {
		name     string
		filename string
		content  []byte
		status   int
		message  string
	}{
		{
			name:     "wrong extension",
			filename: "cat.gif",
			content:  []byte("GIF89a"),
			status:   http.StatusBadRequest,
			message:  "File must be a JPG or PNG image.",
		},
		{
			name:     "no extension",
			filename: "cat",
			content:  jpegBytes,
			status:   http.StatusBadRequest,
			message:  "File must be a JPG or PNG image.",
		},
		{
			name:    "missing file",
			status:  http.StatusBadRequest,
			message: "Error in the Upload File field - This field is required.",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newTestApp(t)
			app.login(t, testUser, testPassword)

			resp, body := app.upload(t, tc.filename, tc.content)
			require.Equal(t, tc.status, resp.StatusCode)
			require.Contains(t, body, tc.message)

			entries, err := os.ReadDir(app.uploadDir)
			require.NoError(t, err)
			for _, e := range entries {
				require.True(t, e.IsDir(), "unexpected file %s", e.Name())
			}
		})
	}
}

func TestUpload_TooLarge(t *testing.T) {
	app := newTestApp(t, func(c *Config) { c.MaxUploadBytes = 1024 })
	app.login(t, testUser, testPassword)

	resp, body := app.upload(t, "big.png", append(pngBytes, bytes.Repeat([]byte{1}, 8<<10)...))
	require.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	require.Contains(t, body, "too large")
}

func TestUpload_SniffContent(t *testing.T) {
	app := newTestApp(t, func(c *Config) { c.SniffContent = true })
	app.login(t, testUser, testPassword)

	resp, body := app.upload(t, "fake.png", []byte("just some text pretending to be a picture"))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, body, "File must be a JPG or PNG image.")

	resp, _ = app.upload(t, "real.png", pngBytes)
	requireRedirect(t, resp, "/upload")

	resp, body = app.get(t, "/uploads/real.png")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, string(pngBytes), body)
}

type recordingMirror struct {
	names []string
	data  [][]byte
}

func (m *recordingMirror) Mirror(_ context.Context, name string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.names = append(m.names, name)
	m.data = append(m.data, data)
	return "mem://" + name, nil
}

func TestUpload_Mirrors(t *testing.T) {
	mirror := &recordingMirror{}
	app := newTestApp(t, func(c *Config) { c.Mirror = mirror })
	app.login(t, testUser, testPassword)

	resp, _ := app.upload(t, "cat.png", pngBytes)
	requireRedirect(t, resp, "/upload")

	require.Equal(t, []string{"cat.png"}, mirror.names)
	require.Equal(t, pngBytes, mirror.data[0])
}

func TestLogout(t *testing.T) {
	app := newTestApp(t)
	app.login(t, testUser, testPassword)

	resp, _ := app.get(t, "/files")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = app.get(t, "/logout")
	requireRedirect(t, resp, "/")

	_, body := app.get(t, "/")
	require.Contains(t, body, "You have been logged out successfully.")

	resp, _ = app.get(t, "/files")
	requireRedirect(t, resp, "/login")
}

func TestUploadedFile_PrivateWhenConfigured(t *testing.T) {
	app := newTestApp(t, func(c *Config) { c.PublicFetch = false })
	require.NoError(t, os.WriteFile(filepath.Join(app.uploadDir, "cat.png"), pngBytes, 0o644))

	resp, _ := app.get(t, "/uploads/cat.png")
	requireRedirect(t, resp, "/login")

	app.login(t, testUser, testPassword)
	resp, body := app.get(t, "/uploads/cat.png")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, string(pngBytes), body)
}

func TestTextAssets(t *testing.T) {
	app := newTestApp(t)
	require.NoError(t, os.WriteFile(filepath.Join(app.staticDir, "robots.txt"), []byte("User-agent: *\n"), 0o644))

	resp, body := app.get(t, "/robots.txt")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/plain; charset=utf-8", resp.Header.Get("Content-Type"))
	require.Equal(t, "User-agent: *\n", body)

	resp, _ = app.get(t, "/humans.txt")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = app.get(t, "/nested/robots.txt")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	app := newTestApp(t)
	app.get(t, "/")

	resp, body := app.get(t, "/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, "imagedrop_http_requests_total")
}

func TestTextAssetName(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		name string
		ok   bool
	}{
		"/robots.txt":      {"robots.txt", true},
		"/humans.txt":      {"humans.txt", true},
		"/.txt":            {"", false},
		"/a/b.txt":         {"", false},
		"/robots.txt.html": {"", false},
		"robots.txt":       {"", false},
	}
	for path, want := range cases {
		name, ok := textAssetName(path)
		require.Equal(t, want.ok, ok, path)
		require.Equal(t, want.name, name, path)
	}
}
