package config

import (
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/mind-engage/fbcanvas/pkg/facebook"
)

type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	DBDriver string `env:"DB_DRIVER" envDefault:"sqlite"`
	DBDSN    string `env:"DB_DSN"`

	// memory|sql
	StateStore string        `env:"STATE_STORE" envDefault:"sql"`
	StateTTL   time.Duration `env:"STATE_TTL"   envDefault:"10m"`

	CORSOrigins []string `env:"CORS_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`

	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"` // text|json

	Facebook Facebook `envPrefix:"FB_"`
}

// Facebook app + canvas registration.
type Facebook struct {
	AppID           string `env:"APP_ID"`
	AppSecret       string `env:"APP_SECRET"`
	CanvasPage      string `env:"CANVAS_PAGE"`
	CanvasURL       string `env:"CANVAS_URL"`
	SecureCanvasURL string `env:"SECURE_CANVAS_URL"`

	Perms         string `env:"PERMS"`
	LoginDisplay  string `env:"LOGIN_DISPLAY"   envDefault:"page"`
	ReturnURLPath string `env:"RETURN_URL_PATH"`
	CancelURLPath string `env:"CANCEL_URL_PATH"`
	DialogURL     string `env:"DIALOG_URL"`
}

// FromEnv parses the process environment.
func FromEnv() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, err
	}
	cfg.Facebook.Perms = normalizePerms(cfg.Facebook.Perms)
	return cfg, nil
}

func (f Facebook) Application() *facebook.ApplicationSettings {
	return &facebook.ApplicationSettings{AppID: f.AppID, AppSecret: f.AppSecret}
}

func (f Facebook) Canvas() *facebook.CanvasSettings {
	return &facebook.CanvasSettings{
		CanvasPage:      f.CanvasPage,
		CanvasURL:       f.CanvasURL,
		SecureCanvasURL: f.SecureCanvasURL,
	}
}

// normalizePerms trims "email, public_profile ," to "email,public_profile".
func normalizePerms(v string) string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, ",")
}
