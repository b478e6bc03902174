// pkg/facebook/settings.go
package facebook

import (
	"errors"
	"net/url"
	"strings"
)

var (
	ErrMissingAppID      = errors.New("facebook: app id is required")
	ErrMissingAppSecret  = errors.New("facebook: app secret is required")
	ErrMissingCanvasPage = errors.New("facebook: canvas page is required")
	ErrInvalidCanvasPage = errors.New("facebook: canvas page must be an absolute http(s) url")
	ErrNilSettings       = errors.New("facebook: settings are required")
)

// ApplicationSettings identifies a Facebook application.
type ApplicationSettings struct {
	AppID     string
	AppSecret string
}

// Validate reports whether both the app id and secret are present.
func (s *ApplicationSettings) Validate() error {
	if s == nil {
		return ErrNilSettings
	}
	if strings.TrimSpace(s.AppID) == "" {
		return ErrMissingAppID
	}
	if strings.TrimSpace(s.AppSecret) == "" {
		return ErrMissingAppSecret
	}
	return nil
}

// CanvasSettings describes where the app is embedded inside Facebook.
//
//	CanvasPage:      https://apps.facebook.com/myapp/   (what the user sees)
//	CanvasURL:       http://myapp.example.com/canvas/   (what Facebook loads in the iframe)
//	SecureCanvasURL: https://myapp.example.com/canvas/
type CanvasSettings struct {
	CanvasPage      string
	CanvasURL       string
	SecureCanvasURL string
}

// Validate requires CanvasPage to be an absolute http(s) URL.
func (s *CanvasSettings) Validate() error {
	if s == nil {
		return ErrNilSettings
	}
	if strings.TrimSpace(s.CanvasPage) == "" {
		return ErrMissingCanvasPage
	}
	u, err := url.Parse(s.CanvasPage)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidCanvasPage
	}
	return nil
}
