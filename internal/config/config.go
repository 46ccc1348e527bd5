package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration written as "30s" or "10m" in config files.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("config: duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// LogConfig selects the log level, format and outputs.
type LogConfig struct {
	Level            string   `json:"level" yaml:"level"`   // debug, info, warn, error
	Format           string   `json:"format" yaml:"format"` // json or console
	OutputPaths      []string `json:"output_paths" yaml:"output_paths"`
	EnableCaller     bool     `json:"enable_caller" yaml:"enable_caller"`
	EnableStacktrace bool     `json:"enable_stacktrace" yaml:"enable_stacktrace"`
}

// Config holds all configurable paths, server and render settings.
type Config struct {
	// Paths
	BaseDir     string `json:"base_dir" yaml:"base_dir"`
	AssetDir    string `json:"asset_dir" yaml:"asset_dir"`
	DataDir     string `json:"data_dir" yaml:"data_dir"`
	CatalogFile string `json:"catalog_file" yaml:"catalog_file"`
	OutputDir   string `json:"output_dir" yaml:"output_dir"`

	// Server
	Listen         string   `json:"listen" yaml:"listen"`
	FrameRate      int      `json:"frame_rate" yaml:"frame_rate"`
	SpinGain       float64  `json:"spin_gain" yaml:"spin_gain"`
	RoomIdleTTL    Duration `json:"room_idle_ttl" yaml:"room_idle_ttl"`
	MaxRooms       int      `json:"max_rooms" yaml:"max_rooms"`
	CORSOrigins    []string `json:"cors_origins" yaml:"cors_origins"`
	AuthRateLimit  float64  `json:"auth_rate_limit" yaml:"auth_rate_limit"`
	AuthRateBurst  int      `json:"auth_rate_burst" yaml:"auth_rate_burst"`
	UploadMaxBytes int64    `json:"upload_max_bytes" yaml:"upload_max_bytes"`

	// Loading
	FetchTimeout           Duration `json:"fetch_timeout" yaml:"fetch_timeout"`
	MaxAssetBytes          int64    `json:"max_asset_bytes" yaml:"max_asset_bytes"`
	LegacyTiltAssets       []string `json:"legacy_tilt_assets" yaml:"legacy_tilt_assets"`
	RequireRiggedWearables bool     `json:"require_rigged_wearables" yaml:"require_rigged_wearables"`

	// Accounts
	JWTSecret string   `json:"jwt_secret" yaml:"jwt_secret"`
	TokenTTL  Duration `json:"token_ttl" yaml:"token_ttl"`

	// Render settings
	RenderSize   int  `json:"render_size" yaml:"render_size"`
	Supersample  int  `json:"supersample" yaml:"supersample"`
	Workers      int  `json:"workers" yaml:"workers"`
	SkipExisting bool `json:"skip_existing" yaml:"skip_existing"`

	Log LogConfig `json:"log" yaml:"log"`
}

// Load reads a config file and returns Config. Files ending in .json are
// parsed as JSON, anything else as YAML. Fields not set in the file keep
// their zero values.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &cfg)
	} else {
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return cfg, nil
}

// Flags holds CLI flag values that override config file settings.
type Flags struct {
	BaseDir   string
	AssetDir  string
	Listen    string
	OutputDir string
	Workers   int
	LogLevel  string
}

// Resolve fills in any empty fields with auto-detected defaults.
// CLI flags take priority when non-zero/non-empty.
func (c *Config) Resolve(flags Flags) {
	// CLI flags override config file
	if flags.BaseDir != "" {
		c.BaseDir = flags.BaseDir
	}
	if flags.AssetDir != "" {
		c.AssetDir = flags.AssetDir
	}
	if flags.Listen != "" {
		c.Listen = flags.Listen
	}
	if flags.OutputDir != "" {
		c.OutputDir = flags.OutputDir
	}
	if flags.Workers > 0 {
		c.Workers = flags.Workers
	}
	if flags.LogLevel != "" {
		c.Log.Level = flags.LogLevel
	}

	// Auto-detect base dir if still empty
	if c.BaseDir == "" {
		c.BaseDir = detectBaseDir()
	}

	// Resolve relative paths against base dir
	c.AssetDir = under(c.BaseDir, c.AssetDir, "assets")
	c.DataDir = under(c.BaseDir, c.DataDir, "data")
	c.OutputDir = under(c.BaseDir, c.OutputDir, filepath.Join("assets", "previews"))
	if c.CatalogFile == "" {
		c.CatalogFile = findCatalog(c.AssetDir)
	} else if !filepath.IsAbs(c.CatalogFile) {
		c.CatalogFile = filepath.Join(c.BaseDir, c.CatalogFile)
	}

	// Server defaults
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	if c.FrameRate <= 0 {
		c.FrameRate = 60
	}
	if c.SpinGain <= 0 {
		c.SpinGain = 2.5
	}
	if c.RoomIdleTTL.Duration <= 0 {
		c.RoomIdleTTL.Duration = 30 * time.Minute
	}
	if c.MaxRooms <= 0 {
		c.MaxRooms = 64
	}
	if c.AuthRateLimit <= 0 {
		c.AuthRateLimit = 1
	}
	if c.AuthRateBurst <= 0 {
		c.AuthRateBurst = 5
	}
	if c.UploadMaxBytes <= 0 {
		c.UploadMaxBytes = 50 << 20
	}
	if c.FetchTimeout.Duration <= 0 {
		c.FetchTimeout.Duration = 30 * time.Second
	}
	if c.MaxAssetBytes <= 0 {
		c.MaxAssetBytes = 64 << 20
	}
	if c.LegacyTiltAssets == nil {
		c.LegacyTiltAssets = []string{"default_avatar.glb"}
	}
	if c.JWTSecret == "" {
		c.JWTSecret = os.Getenv("FITROOM_JWT_SECRET")
	}
	if c.TokenTTL.Duration <= 0 {
		c.TokenTTL.Duration = 24 * time.Hour
	}

	// Defaults for render settings
	if c.RenderSize <= 0 {
		c.RenderSize = 256
	}
	if c.Supersample <= 0 {
		c.Supersample = 2
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

// FrameInterval is the tick period for the configured frame rate.
func (c Config) FrameInterval() time.Duration {
	return time.Second / time.Duration(c.FrameRate)
}

func under(base, p, def string) string {
	switch {
	case p == "":
		return filepath.Join(base, def)
	case filepath.IsAbs(p):
		return p
	default:
		return filepath.Join(base, p)
	}
}

func detectBaseDir() string {
	// Try relative to executable
	exe, _ := os.Executable()
	if exe != "" {
		dir := filepath.Dir(exe)
		for _, base := range []string{dir, filepath.Dir(dir), filepath.Join(dir, "..", "..")} {
			if _, err := os.Stat(filepath.Join(base, "assets")); err == nil {
				return base
			}
		}
	}

	cwd, _ := os.Getwd()
	return cwd
}

func findCatalog(assetDir string) string {
	candidates := []string{
		filepath.Join(assetDir, "catalog.yaml"),
		filepath.Join(assetDir, "catalog.yml"),
		filepath.Join(assetDir, "catalog.json"),
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return candidates[0]
}
