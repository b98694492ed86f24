package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"center/service"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Env variable names.
const (
	envConfigPath = "CONFIG_PATH"
	envGRPCPort   = "SERVICE_PORT_GRPC"
	envHTTPPort   = "SERVICE_PORT_HTTP"
	envJWTSecret  = "JWT_SECRET"
	envRedisAddr  = "REDIS_ADDR"
)

// Certificate store kinds.
const (
	certStoreFile  = "file"
	certStoreRedis = "redis"
)

// Config is the broker configuration: defaults, then the YAML file, then environment overrides.
type Config struct {
	GRPCPort         int
	HTTPPort         int
	CertPath         string
	KeyPath          string
	SignMethod       string
	CertStore        string
	RedisAddr        string
	AuthTick         time.Duration
	AuthTimeoutTicks int
	CallTimeout      time.Duration
	SignatureMaxSkew time.Duration
	JWTSecret        []byte
	// ImportCerts copies every certificate under CertPath into Redis and exits.
	ImportCerts bool
}

// yamlConfig is the root of the YAML file. Pointers tell "absent" from zero.
type yamlConfig struct {
	GRPCPort         *int    `yaml:"grpc_port"`
	HTTPPort         *int    `yaml:"http_port"`
	CertPath         *string `yaml:"cert_path"`
	Key              *string `yaml:"key"`
	SignMethod       *string `yaml:"sign_method"`
	CertStore        *string `yaml:"cert_store"`
	RedisAddr        *string `yaml:"redis_addr"`
	AuthTickMs       *int    `yaml:"auth_tick_ms"`
	AuthTimeoutTicks *int    `yaml:"auth_timeout_ticks"`
	CallTimeoutMs    *int    `yaml:"call_timeout_ms"`
	MaxSkewMs        *int    `yaml:"signature_max_skew_ms"`
	JWTSecret        *string `yaml:"jwt_secret"`
}

func defaultConfig() *Config {
	return &Config{
		GRPCPort:         11800,
		CertPath:         "/etc/ge-center/auth/",
		KeyPath:          "/etc/ge-center/private.key",
		SignMethod:       service.SignMethodRSASHA256,
		CertStore:        certStoreFile,
		RedisAddr:        "redis://localhost:6379",
		AuthTick:         time.Second,
		AuthTimeoutTicks: 5,
		CallTimeout:      30 * time.Second,
	}
}

// loadYAMLConfig reads the YAML file at path.
//
// Called only from LoadConfig.
func loadYAMLConfig(path string) (*yamlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out yamlConfig
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LoadConfig builds the configuration from command line args (without the program name), the YAML file
// named by -c/--config or CONFIG_PATH, and the SERVICE_PORT_GRPC, SERVICE_PORT_HTTP, JWT_SECRET and
// REDIS_ADDR environment variables. cert_path and key values starting with "." are taken relative to the
// directory of the config file; both end up absolute.
//
// Returns: (*Config, nil); (nil, pflag.ErrHelp) for -h; (nil, error) on bad flags, an unreadable or
// invalid file, or values out of range.
//
// Called only from main at startup.
func LoadConfig(args []string) (*Config, error) {
	flags := pflag.NewFlagSet("center", pflag.ContinueOnError)
	configPath := flags.StringP("config", "c", "", "path to the YAML configuration file")
	importCerts := flags.Bool("import-certs", false, "copy the certificates under cert_path into Redis and exit")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	cfg.ImportCerts = *importCerts

	path := strings.TrimSpace(*configPath)
	if path == "" {
		path = strings.TrimSpace(os.Getenv(envConfigPath))
	}
	if path != "" {
		raw, err := loadYAMLConfig(path)
		if err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
		applyYAML(cfg, raw, filepath.Dir(path))
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	var err error
	if cfg.CertPath, err = filepath.Abs(cfg.CertPath); err != nil {
		return nil, err
	}
	if cfg.KeyPath, err = filepath.Abs(cfg.KeyPath); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyYAML(cfg *Config, raw *yamlConfig, dir string) {
	if raw.GRPCPort != nil {
		cfg.GRPCPort = *raw.GRPCPort
	}
	if raw.HTTPPort != nil {
		cfg.HTTPPort = *raw.HTTPPort
	}
	if raw.CertPath != nil && *raw.CertPath != "" {
		cfg.CertPath = relativeTo(dir, *raw.CertPath)
	}
	if raw.Key != nil && *raw.Key != "" {
		cfg.KeyPath = relativeTo(dir, *raw.Key)
	}
	if raw.SignMethod != nil {
		cfg.SignMethod = strings.TrimSpace(*raw.SignMethod)
	}
	if raw.CertStore != nil {
		cfg.CertStore = strings.TrimSpace(*raw.CertStore)
	}
	if raw.RedisAddr != nil {
		cfg.RedisAddr = strings.TrimSpace(*raw.RedisAddr)
	}
	if raw.AuthTickMs != nil {
		cfg.AuthTick = time.Duration(*raw.AuthTickMs) * time.Millisecond
	}
	if raw.AuthTimeoutTicks != nil {
		cfg.AuthTimeoutTicks = *raw.AuthTimeoutTicks
	}
	if raw.CallTimeoutMs != nil {
		cfg.CallTimeout = time.Duration(*raw.CallTimeoutMs) * time.Millisecond
	}
	if raw.MaxSkewMs != nil {
		cfg.SignatureMaxSkew = time.Duration(*raw.MaxSkewMs) * time.Millisecond
	}
	if raw.JWTSecret != nil {
		cfg.JWTSecret = []byte(strings.TrimSpace(*raw.JWTSecret))
	}
}

func applyEnv(cfg *Config) error {
	if v := strings.TrimSpace(os.Getenv(envGRPCPort)); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", envGRPCPort, err)
		}
		cfg.GRPCPort = port
	}
	if v := strings.TrimSpace(os.Getenv(envHTTPPort)); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", envHTTPPort, err)
		}
		cfg.HTTPPort = port
	}
	if v := strings.TrimSpace(os.Getenv(envJWTSecret)); v != "" {
		cfg.JWTSecret = []byte(v)
	}
	if v := strings.TrimSpace(os.Getenv(envRedisAddr)); v != "" {
		cfg.RedisAddr = v
	}
	return nil
}

// relativeTo joins p to dir when p starts with ".", the way the file's own paths are written.
func relativeTo(dir, p string) string {
	if strings.HasPrefix(p, ".") {
		return filepath.Join(dir, p)
	}
	return p
}

func (c *Config) validate() error {
	var errs []error
	if c.GRPCPort < 0 || c.GRPCPort > 65535 {
		errs = append(errs, fmt.Errorf("grpc_port must be 0-65535, got %d", c.GRPCPort))
	}
	if c.HTTPPort < 0 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("http_port must be 0-65535, got %d", c.HTTPPort))
	}
	if !service.ValidSignMethod(c.SignMethod) {
		errs = append(errs, fmt.Errorf("sign_method must be %s|%s, got %q", service.SignMethodRSASHA256, service.SignMethodEd25519, c.SignMethod))
	}
	switch c.CertStore {
	case certStoreFile:
	case certStoreRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("redis_addr is required when cert_store is redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("cert_store must be %s|%s, got %q", certStoreFile, certStoreRedis, c.CertStore))
	}
	if c.ImportCerts && c.RedisAddr == "" {
		errs = append(errs, errors.New("redis_addr is required for --import-certs"))
	}
	if c.AuthTick <= 0 {
		errs = append(errs, errors.New("auth_tick_ms must be positive"))
	}
	if c.AuthTimeoutTicks <= 0 {
		errs = append(errs, errors.New("auth_timeout_ticks must be positive"))
	}
	if c.CallTimeout < 0 {
		errs = append(errs, errors.New("call_timeout_ms must not be negative"))
	}
	if c.SignatureMaxSkew < 0 {
		errs = append(errs, errors.New("signature_max_skew_ms must not be negative"))
	}
	return errors.Join(errs...)
}
