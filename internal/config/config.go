package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr string
	}
	Database struct {
		Path string
	}
	Upload struct {
		Dir          string
		MaxBytes     int64
		PublicFetch  bool
		SniffContent bool
	}
	Static struct {
		Dir string
	}
	Templates struct {
		Dir string
	}
	Site struct {
		AboutName string
	}
	Auth struct {
		Secret               string
		SessionTTLMinutes    int
		PurgeIntervalMinutes int
		CookieSecure         bool
	}
	Storage struct {
		Bucket    string
		KeyPrefix string
		Region    string
		Endpoint  string
	}
	AWS struct {
		Profile string
	}
	Log struct {
		Level string
	}
}

// SessionTTL returns the fixed lifetime of a login session.
func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.Auth.SessionTTLMinutes) * time.Minute
}

// PurgeInterval returns how often expired sessions are swept.
func (c Config) PurgeInterval() time.Duration {
	return time.Duration(c.Auth.PurgeIntervalMinutes) * time.Minute
}

// Validate reports settings the server cannot start without.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Auth.Secret) == "" {
		return fmt.Errorf("auth secret is required")
	}
	if c.Auth.SessionTTLMinutes <= 0 {
		return fmt.Errorf("auth session ttl must be positive")
	}
	if strings.TrimSpace(c.Upload.Dir) == "" {
		return fmt.Errorf("upload dir is required")
	}
	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("upload max bytes must be positive")
	}
	return nil
}

// Load reads configuration from environment variables and optional config files.
func Load() (Config, error) {
	loadDotEnv(".env")

	v := viper.New()
	v.SetEnvPrefix("IMAGEDROP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("database.path", "data/imagedrop.db")
	v.SetDefault("upload.dir", "data/uploads")
	v.SetDefault("upload.maxbytes", 10<<20)
	v.SetDefault("upload.publicfetch", true)
	v.SetDefault("upload.sniffcontent", false)
	v.SetDefault("static.dir", "static")
	v.SetDefault("templates.dir", "")
	v.SetDefault("site.aboutname", "Mary Jane")
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.sessionttlminutes", 24*60)
	v.SetDefault("auth.purgeintervalminutes", 30)
	v.SetDefault("auth.cookiesecure", false)
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.keyprefix", "uploads")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("aws.profile", "")
	v.SetDefault("log.level", "info")
}

func loadDotEnv(path string) {
	file, err := os.Open(path)
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		partsIndex := strings.Index(line, "=")
		if partsIndex <= 0 {
			continue
		}

		key := strings.TrimSpace(line[:partsIndex])
		value := strings.TrimSpace(line[partsIndex+1:])
		value = strings.Trim(value, `"'`)
		if key == "" {
			continue
		}

		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, value)
		}
	}
}
