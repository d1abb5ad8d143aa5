package config

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	DefaultAPIURL       = "http://127.0.0.1:7333"
	DefaultLogLevel     = "debug"
	DefaultDBFileName   = ".postboard.db"
	DefaultBlobDirName  = ".postboard-blobs"
	DefaultS3Region     = "us-east-1"
	DefaultS3Bucket     = "postboard"
	DefaultPGMaxConns   = 10
	configFileName      = ".postboard.toml"
	DriverSQLite        = "sqlite"
	DriverPostgres      = "postgres"
	BlobBackendLocal    = "local"
	BlobBackendS3       = "s3"
	envPrefix           = "POSTBOARD_"
	configDirEnvKey     = envPrefix + "CONFIG_DIR"
	allowedTypesEnvKey  = envPrefix + "IMAGE_ALLOWED_MEDIA_TYPES"
	imageMaxBytesEnvKey = envPrefix + "IMAGE_MAX_BYTES"

	DefaultImageMaxUploadBytes  int64 = 10 * 1024 * 1024
	DefaultImageMultipartMemory int64 = 8 * 1024 * 1024

	trustProjectConfigEnvKey = envPrefix + "TRUST_PROJECT_CONFIG"
)

// DatabaseConfig selects and configures the post repository.
type DatabaseConfig struct {
	Driver   string `toml:"driver"`
	Path     string `toml:"path"`
	URL      string `toml:"url"`
	MaxConns int    `toml:"max_conns"`
}

// S3Config configures the S3-compatible blob backend.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	Prefix         string `toml:"prefix"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	ForcePathStyle bool   `toml:"force_path_style"`
	DisableSSL     bool   `toml:"disable_ssl"`
}

// BlobConfig selects and configures the image blob store.
type BlobConfig struct {
	Backend string   `toml:"backend"`
	Root    string   `toml:"root"`
	S3      S3Config `toml:"s3"`
}

// ImageConfig defines runtime limits for image uploads.
type ImageConfig struct {
	MaxUploadBytes     int64    `toml:"max_upload_bytes"`
	MultipartMaxMemory int64    `toml:"multipart_max_memory"`
	AllowedMediaTypes  []string `toml:"allowed_media_types"`
}

// Config defines runtime configuration for postboard.
type Config struct {
	APIURL                   string         `toml:"api_url"`
	LogLevel                 string         `toml:"log_level"`
	Database                 DatabaseConfig `toml:"database"`
	Blobs                    BlobConfig     `toml:"blobs"`
	Images                   ImageConfig    `toml:"images"`
	TrustedProjectConfigPath string         `toml:"-"`
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		APIURL:   DefaultAPIURL,
		LogLevel: DefaultLogLevel,
		Database: DatabaseConfig{
			Driver:   DriverSQLite,
			MaxConns: DefaultPGMaxConns,
		},
		Blobs: BlobConfig{
			Backend: BlobBackendLocal,
			S3: S3Config{
				Region:         DefaultS3Region,
				Bucket:         DefaultS3Bucket,
				ForcePathStyle: true,
			},
		},
		Images: ImageConfig{
			MaxUploadBytes:     DefaultImageMaxUploadBytes,
			MultipartMaxMemory: DefaultImageMultipartMemory,
		},
	}
}

func loadFile(path string, cfg *Config) error {
	_, err := loadFileIfExists(path, cfg)
	return err
}

func loadFileIfExists(path string, cfg *Config) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if info.IsDir() {
		return false, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return false, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return true, nil
}

func overrideConfigPath() (string, bool) {
	dir := strings.TrimSpace(os.Getenv(configDirEnvKey))
	if dir == "" {
		return "", false
	}
	return filepath.Join(dir, configFileName), true
}

func trustProjectConfig() bool {
	raw := strings.TrimSpace(os.Getenv(trustProjectConfigEnvKey))
	if raw == "" {
		return false
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false
	}
	return value
}

var allowedKeys = []string{
	"api_url",
	"log_level",
	"database.driver",
	"database.path",
	"database.url",
	"database.max_conns",
	"blobs.backend",
	"blobs.root",
	"blobs.s3.endpoint",
	"blobs.s3.region",
	"blobs.s3.bucket",
	"blobs.s3.prefix",
	"blobs.s3.access_key",
	"blobs.s3.secret_key",
	"blobs.s3.force_path_style",
	"blobs.s3.disable_ssl",
	"images.max_upload_bytes",
	"images.multipart_max_memory",
	"images.allowed_media_types",
}

// AllowedKeys returns the set of valid config keys.
func AllowedKeys() []string {
	return allowedKeys
}

// IsAllowedKey checks if a key is a valid config key.
func IsAllowedKey(key string) bool {
	for _, k := range allowedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Get returns the value of a config key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "api_url":
		return c.APIURL, nil
	case "log_level":
		return c.LogLevel, nil
	case "database.driver":
		return c.Database.Driver, nil
	case "database.path":
		return c.Database.Path, nil
	case "database.url":
		return c.Database.URL, nil
	case "database.max_conns":
		return strconv.Itoa(c.Database.MaxConns), nil
	case "blobs.backend":
		return c.Blobs.Backend, nil
	case "blobs.root":
		return c.Blobs.Root, nil
	case "blobs.s3.endpoint":
		return c.Blobs.S3.Endpoint, nil
	case "blobs.s3.region":
		return c.Blobs.S3.Region, nil
	case "blobs.s3.bucket":
		return c.Blobs.S3.Bucket, nil
	case "blobs.s3.prefix":
		return c.Blobs.S3.Prefix, nil
	case "blobs.s3.access_key":
		return c.Blobs.S3.AccessKey, nil
	case "blobs.s3.secret_key":
		return c.Blobs.S3.SecretKey, nil
	case "blobs.s3.force_path_style":
		return strconv.FormatBool(c.Blobs.S3.ForcePathStyle), nil
	case "blobs.s3.disable_ssl":
		return strconv.FormatBool(c.Blobs.S3.DisableSSL), nil
	case "images.max_upload_bytes":
		return strconv.FormatInt(c.Images.MaxUploadBytes, 10), nil
	case "images.multipart_max_memory":
		return strconv.FormatInt(c.Images.MultipartMaxMemory, 10), nil
	case "images.allowed_media_types":
		return strings.Join(c.Images.AllowedMediaTypes, ","), nil
	default:
		return "", fmt.Errorf("unknown key: %s", key)
	}
}

// GlobalPath returns the path to the global config file.
func GlobalPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configFileName), nil
}

// ProjectPath returns the path to the project config file.
func ProjectPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, configFileName), nil
}

// SetKey reads the TOML file at path, sets key=value, and writes it back.
func SetKey(path, key, value string) error {
	if !IsAllowedKey(key) {
		return fmt.Errorf("unknown key: %s", key)
	}

	data := make(map[string]any)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &data); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	parsedValue, err := parseSetValue(key, value)
	if err != nil {
		return err
	}
	if err := setNestedKey(data, strings.Split(key, "."), parsedValue); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	// The file may hold S3 credentials.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(data)
}

// Load reads config from trusted files and applies env overrides.
func Load() (*Config, error) {
	cfg := Default()

	if overridePath, ok := overrideConfigPath(); ok {
		if err := loadFile(overridePath, &cfg); err != nil {
			return nil, err
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			if err := loadFile(filepath.Join(home, configFileName), &cfg); err != nil {
				return nil, err
			}
		}

		if trustProjectConfig() {
			if cwd, err := os.Getwd(); err == nil {
				projectPath := filepath.Join(cwd, configFileName)
				info, statErr := os.Stat(projectPath)
				switch {
				case statErr == nil && !info.IsDir():
					if err := loadFile(projectPath, &cfg); err != nil {
						return nil, err
					}
					cfg.TrustedProjectConfigPath = projectPath
				case statErr != nil && !os.IsNotExist(statErr):
					return nil, statErr
				}
			}
		}
	}

	cfg.applyEnv()
	cfg.normalizeDefaults()

	return &cfg, nil
}

// applyEnv overlays POSTBOARD_* variables. The log level is resolved by the CLI
// so it can tell an env value from a config value.
func (c *Config) applyEnv() {
	stringEnv := map[string]*string{
		"API_URL":       &c.APIURL,
		"DB_DRIVER":     &c.Database.Driver,
		"DB":            &c.Database.Path,
		"DATABASE_URL":  &c.Database.URL,
		"BLOB_BACKEND":  &c.Blobs.Backend,
		"BLOB_ROOT":     &c.Blobs.Root,
		"S3_ENDPOINT":   &c.Blobs.S3.Endpoint,
		"S3_REGION":     &c.Blobs.S3.Region,
		"S3_BUCKET":     &c.Blobs.S3.Bucket,
		"S3_PREFIX":     &c.Blobs.S3.Prefix,
		"S3_ACCESS_KEY": &c.Blobs.S3.AccessKey,
		"S3_SECRET_KEY": &c.Blobs.S3.SecretKey,
	}
	for suffix, dst := range stringEnv {
		if value := strings.TrimSpace(os.Getenv(envPrefix + suffix)); value != "" {
			*dst = value
		}
	}

	boolEnv := map[string]*bool{
		"S3_FORCE_PATH_STYLE": &c.Blobs.S3.ForcePathStyle,
		"S3_DISABLE_SSL":      &c.Blobs.S3.DisableSSL,
	}
	for suffix, dst := range boolEnv {
		if raw := strings.TrimSpace(os.Getenv(envPrefix + suffix)); raw != "" {
			if parsed, err := strconv.ParseBool(raw); err == nil {
				*dst = parsed
			}
		}
	}

	if raw := strings.TrimSpace(os.Getenv(imageMaxBytesEnvKey)); raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil && parsed > 0 {
			c.Images.MaxUploadBytes = parsed
		}
	}
	if raw := strings.TrimSpace(os.Getenv(allowedTypesEnvKey)); raw != "" {
		c.Images.AllowedMediaTypes = splitCSV(raw)
	}
}

// Validate rejects settings no backend can run with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if strings.TrimSpace(c.Database.Path) == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	case DriverPostgres:
		if strings.TrimSpace(c.Database.URL) == "" {
			return fmt.Errorf("database.url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown database.driver %q (expected %s or %s)", c.Database.Driver, DriverSQLite, DriverPostgres)
	}

	switch c.Blobs.Backend {
	case BlobBackendLocal:
		if strings.TrimSpace(c.Blobs.Root) == "" {
			return fmt.Errorf("blobs.root is required for the local backend")
		}
	case BlobBackendS3:
		if strings.TrimSpace(c.Blobs.S3.Bucket) == "" {
			return fmt.Errorf("blobs.s3.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown blobs.backend %q (expected %s or %s)", c.Blobs.Backend, BlobBackendLocal, BlobBackendS3)
	}
	return nil
}

// IsValidLogLevel reports whether value names a supported log level.
func IsValidLogLevel(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug", "info", "warn", "warning", "error":
		return true
	default:
		return false
	}
}

func parseSetValue(key, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch key {
	case "images.max_upload_bytes", "images.multipart_max_memory":
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	case "database.max_conns":
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	case "blobs.s3.force_path_style", "blobs.s3.disable_ssl":
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%s must be true or false", key)
		}
		return parsed, nil
	case "images.allowed_media_types":
		return splitCSV(value), nil
	case "database.driver":
		if value != DriverSQLite && value != DriverPostgres {
			return nil, fmt.Errorf("%s must be %s or %s", key, DriverSQLite, DriverPostgres)
		}
		return value, nil
	case "blobs.backend":
		if value != BlobBackendLocal && value != BlobBackendS3 {
			return nil, fmt.Errorf("%s must be %s or %s", key, BlobBackendLocal, BlobBackendS3)
		}
		return value, nil
	case "log_level":
		if !IsValidLogLevel(value) {
			return nil, fmt.Errorf("%s must be one of debug, info, warn, error", key)
		}
		return strings.ToLower(value), nil
	default:
		return value, nil
	}
}

func setNestedKey(data map[string]any, parts []string, value any) error {
	if len(parts) == 0 {
		return fmt.Errorf("invalid config key")
	}
	if len(parts) == 1 {
		data[parts[0]] = value
		return nil
	}
	childRaw, ok := data[parts[0]]
	if !ok {
		child := map[string]any{}
		data[parts[0]] = child
		return setNestedKey(child, parts[1:], value)
	}
	child, ok := childRaw.(map[string]any)
	if !ok {
		return fmt.Errorf("cannot set nested key %q", strings.Join(parts, "."))
	}
	return setNestedKey(child, parts[1:], value)
}

func splitCSV(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

func (c *Config) normalizeDefaults() {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	if c.Database.Driver == "" {
		c.Database.Driver = DriverSQLite
	}
	if c.Database.MaxConns <= 0 {
		c.Database.MaxConns = DefaultPGMaxConns
	}
	c.Blobs.Backend = strings.ToLower(strings.TrimSpace(c.Blobs.Backend))
	if c.Blobs.Backend == "" {
		c.Blobs.Backend = BlobBackendLocal
	}
	if cwd, err := os.Getwd(); err == nil {
		if c.Database.Path == "" {
			c.Database.Path = filepath.Join(cwd, DefaultDBFileName)
		}
		if c.Blobs.Root == "" {
			c.Blobs.Root = filepath.Join(cwd, DefaultBlobDirName)
		}
	}
	if c.Images.MaxUploadBytes <= 0 {
		c.Images.MaxUploadBytes = DefaultImageMaxUploadBytes
	}
	if c.Images.MultipartMaxMemory <= 0 {
		c.Images.MultipartMaxMemory = DefaultImageMultipartMemory
	}
	c.Images.AllowedMediaTypes = normalizeConfiguredMediaTypes(c.Images.AllowedMediaTypes)
}

func normalizeConfiguredMediaTypes(rawValues []string) []string {
	if len(rawValues) == 0 {
		return nil
	}
	out := make([]string, 0, len(rawValues))
	seen := map[string]struct{}{}
	for _, raw := range rawValues {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		parsed, _, err := mime.ParseMediaType(raw)
		if err != nil {
			continue
		}
		normalized := strings.ToLower(strings.TrimSpace(parsed))
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	sort.Strings(out)
	if len(out) == 0 {
		return nil
	}
	return out
}
