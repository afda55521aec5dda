package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	appDirName        = ".diario"
	defaultUserID     = "local"
	defaultServerAddr = ":8080"
)

type Config struct {
	Storage StorageConfig `toml:"storage"`
	User    UserConfig    `toml:"user"`
	Voice   VoiceConfig   `toml:"voice"`
	Server  ServerConfig  `toml:"server"`
	Logging LoggingConfig `toml:"logging"`
}

type StorageConfig struct {
	Path string `toml:"path"`
}

type UserConfig struct {
	ID    string `toml:"id"`
	Name  string `toml:"name"`
	Email string `toml:"email"`
}

type VoiceConfig struct {
	InactivityTimeoutMS int    `toml:"inactivity_timeout_ms"`
	PlaybackPauseMS     int    `toml:"playback_pause_ms"`
	GreetingDelayMS     int    `toml:"greeting_delay_ms"`
	TTSCommand          string `toml:"tts_command"`
	PlayerCommand       string `toml:"player_command"`
}

type ServerConfig struct {
	Address           string  `toml:"address"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Burst             int     `toml:"burst"`
}

type LoggingConfig struct {
	Level string `toml:"level"`
}

func Default() Config {
	return Config{
		User: UserConfig{ID: defaultUserID},
		Voice: VoiceConfig{
			InactivityTimeoutMS: 4000,
			PlaybackPauseMS:     1000,
		},
		Server: ServerConfig{
			Address:           defaultServerAddr,
			RequestsPerSecond: 5,
			Burst:             10,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// DataDir returns the base data directory
func DataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, appDirName), nil
}

// Path returns the default config file location
func Path() (string, error) {
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "config.toml"), nil
}

// Load reads the config at path, or the default location when path is
// empty. A missing or blank file yields the defaults.
func Load(path string) (Config, error) {
	if strings.TrimSpace(path) == "" {
		p, err := Path()
		if err != nil {
			return Config{}, err
		}
		path = p
	}
	cfg := Default()
	if err := readTOML(path, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) DBPath() (string, error) {
	path := strings.TrimSpace(c.Storage.Path)
	if path == "" {
		dataDir, err := DataDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dataDir, "diario.db"), nil
	}
	return resolvePath(path)
}

func (c Config) UserID() string {
	id := strings.TrimSpace(c.User.ID)
	if id == "" {
		return defaultUserID
	}
	return id
}

func (c Config) InactivityTimeout() time.Duration {
	return millis(c.Voice.InactivityTimeoutMS, 4*time.Second)
}

func (c Config) PlaybackPause() time.Duration {
	return millis(c.Voice.PlaybackPauseMS, time.Second)
}

func (c Config) GreetingDelay() time.Duration {
	if c.Voice.GreetingDelayMS <= 0 {
		return 0
	}
	return time.Duration(c.Voice.GreetingDelayMS) * time.Millisecond
}

func (c Config) ServerAddress() string {
	addr := strings.TrimSpace(c.Server.Address)
	if addr == "" {
		return defaultServerAddr
	}
	return addr
}

func (c Config) LogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.Logging.Level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func millis(ms int, fallback time.Duration) time.Duration {
	if ms <= 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}

func readTOML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	return toml.Unmarshal(data, out)
}

func resolvePath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[2:]), nil
	}
	if filepath.IsAbs(path) {
		return path, nil
	}
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, path), nil
}
