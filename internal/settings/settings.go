// Package settings persists the credential and theme between runs.
package settings

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
	"github.com/zalando/go-keyring"
	"go.uber.org/zap"
)

const (
	// FileName is the settings file inside the user config directory.
	FileName = "settings.json"
	// EnvAPIKey supplies the credential when none is stored.
	EnvAPIKey = "GEMINI_API_KEY"

	appDir         = "codecomment"
	keyAPIKey      = "api_key"
	keyTheme       = "theme"
	keyringService = "codecomment"
	keyringUser    = "api_key"
)

// Theme is the display palette.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// DefaultTheme applies when nothing is stored.
const DefaultTheme = ThemeLight

// ErrUnknownTheme is returned by ParseTheme for values other than light or dark.
var ErrUnknownTheme = errors.New("unknown theme")

// ParseTheme resolves a theme name case-insensitively.
func ParseTheme(raw string) (Theme, error) {
	switch Theme(strings.ToLower(strings.TrimSpace(raw))) {
	case "":
		return DefaultTheme, nil
	case ThemeLight:
		return ThemeLight, nil
	case ThemeDark:
		return ThemeDark, nil
	}
	return "", errors.Wrapf(ErrUnknownTheme, "%q", raw)
}

// Toggle flips between light and dark.
func (t Theme) Toggle() Theme {
	if t == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}

// Settings is the persisted record.
type Settings struct {
	Credential string
	Theme      Theme
}

// Defaults returns the settings used when no file exists.
func Defaults() Settings {
	return Settings{Theme: DefaultTheme}
}

// APIKey returns the stored credential, falling back to the environment.
func (s Settings) APIKey() string {
	if s.Credential != "" {
		return s.Credential
	}
	return strings.TrimSpace(os.Getenv(EnvAPIKey))
}

// DefaultPath returns settings.json under the user config directory, or the
// working directory when that cannot be determined.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return FileName
	}
	return filepath.Join(dir, appDir, FileName)
}

// Store reads and writes Settings. Nothing is cached between calls; every
// mutation is a Load, change and Save.
type Store struct {
	Path string
	// UseKeyring keeps the credential in the OS keyring instead of the file.
	UseKeyring bool
	Logger     *zap.SugaredLogger
}

// NewStore returns a Store for path, or DefaultPath when path is empty.
func NewStore(path string, useKeyring bool, logger *zap.SugaredLogger) *Store {
	if path == "" {
		path = DefaultPath()
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Store{Path: path, UseKeyring: useKeyring, Logger: logger}
}

// Load reads the settings file. A missing file yields Defaults.
func (s *Store) Load() (Settings, error) {
	v := viper.New()
	v.SetDefault(keyAPIKey, "")
	v.SetDefault(keyTheme, string(DefaultTheme))

	_, statErr := os.Stat(s.Path)
	switch {
	case statErr == nil:
		v.SetConfigFile(s.Path)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, errors.Wrapf(err, "read settings %s", s.Path)
		}
		s.logger().Debugw("loaded settings", "path", s.Path)
	case errors.Is(statErr, os.ErrNotExist):
		s.logger().Debugw("no settings file, using defaults", "path", s.Path)
	default:
		return Settings{}, errors.Wrapf(statErr, "stat settings %s", s.Path)
	}

	theme, err := ParseTheme(v.GetString(keyTheme))
	if err != nil {
		s.logger().Warnw("ignoring stored theme", "error", err)
		theme = DefaultTheme
	}
	out := Settings{Credential: v.GetString(keyAPIKey), Theme: theme}

	if s.UseKeyring {
		secret, err := keyring.Get(keyringService, keyringUser)
		switch {
		case err == nil:
			out.Credential = secret
		case errors.Is(err, keyring.ErrNotFound):
		default:
			return Settings{}, errors.Wrap(err, "read credential from keyring")
		}
	}
	return out, nil
}

// Save writes the settings file, creating its directory when needed.
func (s *Store) Save(st Settings) error {
	theme, err := ParseTheme(string(st.Theme))
	if err != nil {
		return err
	}

	v := viper.New()
	v.SetConfigType("json")
	v.SetConfigPermissions(0o600)
	v.Set(keyTheme, string(theme))
	if s.UseKeyring {
		if err := s.storeSecret(st.Credential); err != nil {
			return err
		}
		v.Set(keyAPIKey, "")
	} else {
		v.Set(keyAPIKey, st.Credential)
	}

	if dir := filepath.Dir(s.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return errors.Wrapf(err, "create settings dir %s", dir)
		}
	}
	if err := v.WriteConfigAs(s.Path); err != nil {
		return errors.Wrapf(err, "write settings %s", s.Path)
	}
	s.logger().Debugw("saved settings", "path", s.Path, "theme", string(theme), "keyring", s.UseKeyring)
	return nil
}

// SetCredential stores a new credential and returns the updated settings.
func (s *Store) SetCredential(key string) (Settings, error) {
	st, err := s.Load()
	if err != nil {
		return Settings{}, err
	}
	st.Credential = strings.TrimSpace(key)
	return st, s.Save(st)
}

// ClearCredential removes the stored credential.
func (s *Store) ClearCredential() (Settings, error) {
	return s.SetCredential("")
}

// ToggleTheme flips the stored theme and returns the updated settings.
func (s *Store) ToggleTheme() (Settings, error) {
	st, err := s.Load()
	if err != nil {
		return Settings{}, err
	}
	st.Theme = st.Theme.Toggle()
	return st, s.Save(st)
}

func (s *Store) storeSecret(secret string) error {
	if secret == "" {
		err := keyring.Delete(keyringService, keyringUser)
		if err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return errors.Wrap(err, "delete credential from keyring")
		}
		return nil
	}
	if err := keyring.Set(keyringService, keyringUser, secret); err != nil {
		return errors.Wrap(err, "store credential in keyring")
	}
	return nil
}

func (s *Store) logger() *zap.SugaredLogger {
	if s.Logger == nil {
		return zap.NewNop().Sugar()
	}
	return s.Logger
}
