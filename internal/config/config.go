// Package config provides functionality for managing configuration options
// for the application using command-line flags, an optional JSON config file,
// .env files and environment variables.
package config

import (
	"encoding/json"
	"flag"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Options holds the configuration values for the application.
type Options struct {
	// Port defines the server's listening address (ip:port).
	Port string `json:"server_address"`

	// ResultHostname is the base URL used for short and digital link results.
	ResultHostname string `json:"base_url"`

	// DatabaseDSN holds the Postgres connection string. Empty selects the
	// in-memory store.
	DatabaseDSN string `json:"database_dsn"`

	// MediaDir is the directory binary media objects are written to.
	MediaDir string `json:"media_dir"`

	// LogLevel is a zap level name.
	LogLevel string `json:"log_level"`

	// JWTSecret signs and verifies bearer tokens.
	JWTSecret string `json:"jwt_secret"`

	// ShortCodeLength is the length of generated short codes.
	ShortCodeLength int `json:"short_code_length"`

	// TrustedSubnet is the CIDR of proxies whose X-Real-IP and
	// X-Country headers are believed. Empty trusts nobody.
	TrustedSubnet string `json:"trusted_subnet"`

	// EnablePprof indicates whether to enable pprof for performance profiling.
	EnablePprof bool `json:"enable_pprof"`

	// EnableHTTPS indicates whether to enable https.
	EnableHTTPS bool `json:"enable_https"`

	// Config is the path to a JSON config file.
	Config string `json:"-"`
}

// flagOptions holds the values bound to command-line flags.
var flagOptions = &Options{}

// init initializes command-line flags and sets default values.
func init() {
	flag.StringVar(&flagOptions.Port, "a", "localhost:8080", "run on ip:port server")
	flag.StringVar(&flagOptions.ResultHostname, "b", "http://localhost:8080", "result base url")
	flag.StringVar(&flagOptions.DatabaseDSN, "d", "", "db address")
	flag.StringVar(&flagOptions.MediaDir, "m", "uploads/media", "media storage directory")
	flag.StringVar(&flagOptions.LogLevel, "l", "info", "log level")
	flag.StringVar(&flagOptions.JWTSecret, "j", "supersecretkey", "jwt signing secret")
	flag.IntVar(&flagOptions.ShortCodeLength, "n", 6, "generated short code length")
	flag.StringVar(&flagOptions.TrustedSubnet, "t", "", "trusted proxy subnet (CIDR)")
	flag.BoolVar(&flagOptions.EnablePprof, "p", false, "enable pprof")
	flag.BoolVar(&flagOptions.EnableHTTPS, "s", false, "enable https")
	flag.StringVar(&flagOptions.Config, "c", "config.json", "path to json config")
}

// Parse parses the command-line flags, the JSON config file and environment
// variables. Precedence from lowest to highest: flag defaults and values,
// config file, environment (including variables loaded from .env).
func Parse() *Options {
	if !flag.Parsed() {
		flag.Parse()
	}

	// .env is optional
	_ = godotenv.Load()

	options := *flagOptions

	if cfg := os.Getenv("CONFIG"); cfg != "" {
		options.Config = cfg
	}

	if options.Config != "" {
		applyFile(&options, options.Config)
	}

	applyEnv(&options)

	return &options
}

// applyFile overlays non-zero values from a JSON config file. A missing or
// malformed file leaves the options untouched.
func applyFile(options *Options, path string) {
	content, err := os.ReadFile(path)
	if err != nil {
		return
	}

	var fromFile Options
	if err := json.Unmarshal(content, &fromFile); err != nil {
		return
	}

	if fromFile.Port != "" {
		options.Port = fromFile.Port
	}
	if fromFile.ResultHostname != "" {
		options.ResultHostname = fromFile.ResultHostname
	}
	if fromFile.DatabaseDSN != "" {
		options.DatabaseDSN = fromFile.DatabaseDSN
	}
	if fromFile.MediaDir != "" {
		options.MediaDir = fromFile.MediaDir
	}
	if fromFile.LogLevel != "" {
		options.LogLevel = fromFile.LogLevel
	}
	if fromFile.JWTSecret != "" {
		options.JWTSecret = fromFile.JWTSecret
	}
	if fromFile.TrustedSubnet != "" {
		options.TrustedSubnet = fromFile.TrustedSubnet
	}
	if fromFile.ShortCodeLength > 0 {
		options.ShortCodeLength = fromFile.ShortCodeLength
	}
	options.EnablePprof = options.EnablePprof || fromFile.EnablePprof
	options.EnableHTTPS = options.EnableHTTPS || fromFile.EnableHTTPS
}

func applyEnv(options *Options) {
	if serverAddress := os.Getenv("SERVER_ADDRESS"); serverAddress != "" {
		options.Port = serverAddress
	}

	if baseURL := os.Getenv("BASE_URL"); baseURL != "" {
		options.ResultHostname = baseURL
	}

	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		options.DatabaseDSN = dsn
	}

	if mediaDir := os.Getenv("MEDIA_DIR"); mediaDir != "" {
		options.MediaDir = mediaDir
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		options.LogLevel = level
	}

	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		options.JWTSecret = secret
	}

	if subnet := os.Getenv("TRUSTED_SUBNET"); subnet != "" {
		options.TrustedSubnet = subnet
	}

	if length := os.Getenv("SHORT_CODE_LENGTH"); length != "" {
		if n, err := strconv.Atoi(length); err == nil && n > 0 {
			options.ShortCodeLength = n
		}
	}

	if enableHTTPS := os.Getenv("ENABLE_HTTPS"); enableHTTPS != "" {
		httpMode, err := strconv.ParseBool(enableHTTPS)
		if err != nil {
			httpMode = false
		}

		options.EnableHTTPS = httpMode
	}
}
