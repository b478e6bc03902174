package canvas_test

import (
	"bytes"
	"errors"
	"html"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/fbcanvas/pkg/facebook"
	"github.com/mind-engage/fbcanvas/pkg/facebook/canvas"
)

/* ---------------- fake RequestContext ---------------- */

type fakeResponse struct {
	contentType string
	body        bytes.Buffer
}

func (f *fakeResponse) SetContentType(ct string) { f.contentType = ct }
func (f *fakeResponse) Write(p []byte) (int, error) { return f.body.Write(p) }

type fakeRequest struct {
	params url.Values
	path   string
	resp   *fakeResponse
}

func (f *fakeRequest) Params() url.Values { return f.params }
func (f *fakeRequest) Path() string { return f.path }
func (f *fakeRequest) Response() canvas.ResponseWriter {
	if f.resp == nil {
		return nil
	}
	return f.resp
}

func newRequest(path string) *fakeRequest {
	return &fakeRequest{params: url.Values{}, path: path, resp: &fakeResponse{}}
}

func appSettings() *facebook.ApplicationSettings {
	return &facebook.ApplicationSettings{AppID: "123456", AppSecret: "shh"}
}

func canvasSettings() *facebook.CanvasSettings {
	return &facebook.CanvasSettings{
		CanvasPage:      "https://apps.facebook.com/myapp/",
		CanvasURL:       "http://myapp.example.com/canvas/",
		SecureCanvasURL: "https://myapp.example.com/canvas/",
	}
}

/* ---------------- construction ---------------- */

func TestNewCanvasAuthorizer_Preconditions(t *testing.T) {
	cases := []struct {
		name   string
		app    *facebook.ApplicationSettings
		canvas *facebook.CanvasSettings
		req    canvas.RequestContext
		want   error
	}{
		{"nil app", nil, canvasSettings(), newRequest("/"), facebook.ErrNilSettings},
		{"empty app id", &facebook.ApplicationSettings{AppSecret: "s"}, canvasSettings(), newRequest("/"), facebook.ErrMissingAppID},
		{"empty secret", &facebook.ApplicationSettings{AppID: "1"}, canvasSettings(), newRequest("/"), facebook.ErrMissingAppSecret},
		{"nil canvas", appSettings(), nil, newRequest("/"), facebook.ErrNilSettings},
		{"nil request", appSettings(), canvasSettings(), nil, canvas.ErrNilRequestContext},
		{"nil params", appSettings(), canvasSettings(), &fakeRequest{resp: &fakeResponse{}}, canvas.ErrNilParams},
		{"nil response", appSettings(), canvasSettings(), &fakeRequest{params: url.Values{}}, canvas.ErrNilResponse},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			az, err := canvas.NewCanvasAuthorizer(tc.app, tc.canvas, tc.req)
			assert.Nil(t, az)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestNewCanvasAuthorizer_KeepsCanvasSettings(t *testing.T) {
	cs := canvasSettings()
	app := appSettings()
	req := newRequest("/canvas/")

	az, err := canvas.NewCanvasAuthorizer(app, cs, req)
	require.NoError(t, err)
	assert.Same(t, cs, az.CanvasSettings())
	assert.Same(t, app, az.FacebookSettings())
	assert.Equal(t, canvas.DisplayPage, az.LoginDisplayMode())
}

/* ---------------- login URL ---------------- */

func loginQuery(t *testing.T, az *canvas.CanvasAuthorizer, extra canvas.Parameters) url.Values {
	t.Helper()
	u, err := az.LoginURL(extra)
	require.NoError(t, err)
	require.NotNil(t, u)
	return u.Query()
}

func TestLoginURL_PageWithEmailScope(t *testing.T) {
	az, err := canvas.NewCanvasAuthorizer(appSettings(), canvasSettings(), newRequest("/canvas/"),
		canvas.WithLoginDisplayMode("page"), canvas.WithPerms("email"), canvas.WithState("st-1"))
	require.NoError(t, err)

	q := loginQuery(t, az, nil)
	assert.Equal(t, "page", q.Get("display"))
	assert.Equal(t, "email", q.Get("scope"))
	assert.Equal(t, "123456", q.Get("client_id"))
	assert.Equal(t, "st-1", q.Get("state"))
	assert.Equal(t, "code", q.Get("response_type"))
}

func TestLoginURL_PopupWithoutPerms(t *testing.T) {
	az, err := canvas.NewCanvasAuthorizer(appSettings(), canvasSettings(), newRequest("/canvas/"),
		canvas.WithLoginDisplayMode("popup"), canvas.WithPerms(""))
	require.NoError(t, err)

	q := loginQuery(t, az, nil)
	assert.Equal(t, "popup", q.Get("display"))
	_, hasScope := q["scope"]
	assert.False(t, hasScope)
}

func TestLoginURL_MultiplePerms(t *testing.T) {
	az, err := canvas.NewCanvasAuthorizer(appSettings(), canvasSettings(), newRequest("/canvas/"),
		canvas.WithPerms("email,public_profile"))
	require.NoError(t, err)

	q := loginQuery(t, az, nil)
	assert.Equal(t, "email,public_profile", q.Get("scope"))
	assert.Equal(t, "page", q.Get("display"))
}

func TestLoginURL_ExtraParametersOverrideDefaults(t *testing.T) {
	az, err := canvas.NewCanvasAuthorizer(appSettings(), canvasSettings(), newRequest("/canvas/"),
		canvas.WithPerms("email"))
	require.NoError(t, err)

	q := loginQuery(t, az, canvas.Parameters{"display": "popup", "auth_type": "rerequest", "max_age": 5})
	assert.Equal(t, "popup", q.Get("display"))
	assert.Equal(t, "email", q.Get("scope"))
	assert.Equal(t, "rerequest", q.Get("auth_type"))
	assert.Equal(t, "5", q.Get("max_age"))
}

func TestLoginURL_RedirectURI(t *testing.T) {
	t.Run("configured return path", func(t *testing.T) {
		az, err := canvas.NewCanvasAuthorizer(appSettings(), canvasSettings(), newRequest("/canvas/other"),
			canvas.WithReturnURLPath("/welcome"))
		require.NoError(t, err)
		q := loginQuery(t, az, nil)
		assert.Equal(t, "https://apps.facebook.com/myapp/welcome", q.Get("redirect_uri"))
	})
	t.Run("current canvas path", func(t *testing.T) {
		az, err := canvas.NewCanvasAuthorizer(appSettings(), canvasSettings(), newRequest("/canvas/photos/1"))
		require.NoError(t, err)
		q := loginQuery(t, az, nil)
		assert.Equal(t, "https://apps.facebook.com/myapp/photos/1", q.Get("redirect_uri"))
	})
}

func TestLoginURL_DialogOverride(t *testing.T) {
	az, err := canvas.NewCanvasAuthorizer(appSettings(), canvasSettings(), newRequest("/canvas/"),
		canvas.WithDialogURL("https://www.facebook.com/v19.0/dialog/oauth"))
	require.NoError(t, err)

	u, err := az.LoginURL(nil)
	require.NoError(t, err)
	assert.Equal(t, "www.facebook.com", u.Host)
	assert.Equal(t, "/v19.0/dialog/oauth", u.Path)
}

type stubStates struct {
	gotReturn string
	err       error
}

func (s *stubStates) Issue(returnPath string) (string, error) {
	s.gotReturn = returnPath
	return "issued-state", s.err
}

func TestLoginURL_StateIssuer(t *testing.T) {
	st := &stubStates{}
	az, err := canvas.NewCanvasAuthorizer(appSettings(), canvasSettings(), newRequest("/canvas/games"),
		canvas.WithState("ignored"), canvas.WithStateIssuer(st))
	require.NoError(t, err)

	q := loginQuery(t, az, nil)
	assert.Equal(t, "issued-state", q.Get("state"))
	assert.Equal(t, "games", st.gotReturn)

	st.err = errors.New("boom")
	_, err = az.LoginURL(nil)
	assert.EqualError(t, err, "boom")
}

func TestLoginURL_InvalidCanvasPage(t *testing.T) {
	az, err := canvas.NewCanvasAuthorizer(appSettings(), &facebook.CanvasSettings{}, newRequest("/"))
	require.NoError(t, err)

	_, err = az.LoginURL(nil)
	assert.ErrorIs(t, err, facebook.ErrMissingCanvasPage)
}

/* ---------------- responses ---------------- */

func TestHandleUnauthorizedRequest_WritesRedirect(t *testing.T) {
	req := newRequest("/canvas/")
	az, err := canvas.NewCanvasAuthorizer(appSettings(), canvasSettings(), req,
		canvas.WithPerms("email"), canvas.WithState("abc"))
	require.NoError(t, err)

	require.NoError(t, az.HandleUnauthorizedRequest())

	loginURL, err := az.LoginURL(nil)
	require.NoError(t, err)

	body := req.resp.body.String()
	assert.Equal(t, "text/html", req.resp.contentType)
	assert.NotEmpty(t, body)
	assert.Contains(t, body, "window.top.location")
	assert.Contains(t, html.UnescapeString(body), loginURL.String())
}

func TestHandleCancelledRequest(t *testing.T) {
	req := newRequest("/canvas/")
	az, err := canvas.NewCanvasAuthorizer(appSettings(), canvasSettings(), req,
		canvas.WithCancelURLPath("declined"))
	require.NoError(t, err)

	require.NoError(t, az.HandleCancelledRequest())
	assert.Equal(t, "text/html", req.resp.contentType)
	assert.Contains(t, html.UnescapeString(req.resp.body.String()), "https://apps.facebook.com/myapp/declined")
}

func TestIsAuthorized(t *testing.T) {
	now := time.Unix(1700000000, 0)
	clock := func() time.Time { return now }

	az, err := canvas.NewCanvasAuthorizer(appSettings(), canvasSettings(), newRequest("/"), canvas.WithClock(clock))
	require.NoError(t, err)
	assert.False(t, az.IsAuthorized())

	az, err = canvas.NewCanvasAuthorizer(appSettings(), canvasSettings(), newRequest("/"), canvas.WithClock(clock),
		canvas.WithSignedRequest(&facebook.SignedRequest{UserID: "1", OAuthToken: "t", Expires: now.Unix() + 10}))
	require.NoError(t, err)
	assert.True(t, az.IsAuthorized())
}

func TestLoginURL_BuilderKeysCannotBeOverridden(t *testing.T) {
	az, err := canvas.NewCanvasAuthorizer(appSettings(), canvasSettings(), newRequest("/canvas/"),
		canvas.WithReturnURLPath("home"), canvas.WithStateIssuer(&stubStates{}))
	require.NoError(t, err)

	q := loginQuery(t, az, canvas.Parameters{
		"client_id":     "999",
		"redirect_uri":  "https://evil.example/cb",
		"response_type": "token",
		"state":         "attacker",
		"display":       "popup",
	})
	assert.Equal(t, "123456", q.Get("client_id"))
	assert.Equal(t, "https://apps.facebook.com/myapp/home", q.Get("redirect_uri"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "issued-state", q.Get("state"))
	assert.Equal(t, "popup", q.Get("display"))
}

func TestURLBuilder_CurrentCanvasPath(t *testing.T) {
	cases := []struct {
		name   string
		canvas *facebook.CanvasSettings
		path   string
		want   string
	}{
		{"secure canvas url", canvasSettings(), "/canvas/photos/1", "photos/1"},
		{"canvas root", canvasSettings(), "/canvas", ""},
		{"falls back to http canvas url",
			&facebook.CanvasSettings{CanvasURL: "http://myapp.example.com/fb/"}, "/fb/games", "games"},
		{"root canvas url keeps whole path",
			&facebook.CanvasSettings{SecureCanvasURL: "https://myapp.example.com/", CanvasURL: "http://myapp.example.com/fb/"},
			"/fb/games", "fb/games"},
		{"outside canvas url", canvasSettings(), "/other/page", "other/page"},
		{"nil canvas settings", nil, "/canvas/x", "canvas/x"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := canvas.NewURLBuilder(tc.canvas, newRequest(tc.path))
			assert.Equal(t, tc.want, b.CurrentCanvasPath())
		})
	}
}
