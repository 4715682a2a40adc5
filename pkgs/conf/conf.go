package conf

import (
	"bufio"
	"context"
	"os"
	"strings"
	"time"

	"hrhelp/messenger-relay/pkgs/utils"

	"github.com/juju/errors"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	BaseConfig      BaseConfig
	MessengerConfig MessengerConfig
	GraphConfig     GraphConfig
	RedisConfig     RedisConfig
}

type BaseConfig struct {
	Port        int    `env:"PORT,required" validate:"required,min=1,max=65535"`
	Environment string `env:"ENVIRONMENT,default=development" validate:"oneof=development production test"`
	LogLevel    string `env:"LOG_LEVEL,default=info" validate:"oneof=debug info warn error"`
	PublicDir   string `env:"PUBLIC_DIR,default=public"`
}

// MessengerConfig holds the app credentials issued by the Facebook developer console.
type MessengerConfig struct {
	AppID       string `env:"APP_ID,required" validate:"required"`
	AppSecret   string `env:"APP_SECRET,required" validate:"required"`
	VerifyToken string `env:"VERIFY_TOKEN,required" validate:"required"`
	AccessToken string `env:"ACCESS_TOKEN,required" validate:"required"`
	GroupID     string `env:"GROUP_ID,required" validate:"required"`
}

type GraphConfig struct {
	BaseURL string        `env:"GRAPH_API_BASE,default=https://graph.facebook.com/v2.10" validate:"required,url"`
	Timeout time.Duration `env:"GRAPH_TIMEOUT,default=30s" validate:"gt=0"`
}

// RedisConfig is optional. An empty URL disables the redelivery guard.
type RedisConfig struct {
	URL           string        `env:"REDIS_URL"`
	RedeliveryTTL time.Duration `env:"REDELIVERY_TTL,default=24h" validate:"gt=0"`
}

// Source is one place configuration values come from.
type Source interface {
	envconfig.Lookuper
	Name() string
}

type envSource struct{}

// Environment reads the process environment. An exported but empty variable
// counts as unset, so a later source can still supply it.
func Environment() Source {
	return envSource{}
}

func (envSource) Name() string {
	return "environment"
}

func (envSource) Lookup(key string) (string, bool) {
	value := os.Getenv(key)
	return value, value != ""
}

// Values is a fixed set of configuration values.
type Values map[string]string

func (v Values) Name() string {
	return "values"
}

func (v Values) Lookup(key string) (string, bool) {
	return envconfig.MapLookuper(v).Lookup(key)
}

type dotEnvSource struct {
	path   string
	values Values
}

// DotEnv reads KEY=VALUE lines from path. Blank lines, comments and an
// "export " prefix are allowed, and one pair of surrounding quotes is
// stripped from values. A missing file provides nothing.
func DotEnv(path string) Source {
	src := &dotEnvSource{path: path, values: Values{}}
	f, err := os.Open(path)
	if err != nil {
		return src
	}
	defer f.Close() // nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		key, value, ok := strings.Cut(strings.TrimPrefix(line, "export "), "=")
		if !ok {
			continue
		}
		src.values[strings.TrimSpace(key)] = unquote(strings.TrimSpace(value))
	}
	return src
}

func (d *dotEnvSource) Name() string {
	return "dotenv(" + d.path + ")"
}

func (d *dotEnvSource) Lookup(key string) (string, bool) {
	return d.values.Lookup(key)
}

func unquote(value string) string {
	if len(value) < 2 {
		return value
	}
	if q := value[0]; (q == '"' || q == '\'') && value[len(value)-1] == q {
		return value[1 : len(value)-1]
	}
	return value
}

// LoadFrom builds the configuration from sources. Earlier sources win.
func LoadFrom(ctx context.Context, sources ...Source) (*Config, error) {
	lookupers := make([]envconfig.Lookuper, len(sources))
	names := make([]string, len(sources))
	for i, src := range sources {
		lookupers[i] = src
		names[i] = src.Name()
	}

	cfg := &Config{}
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   cfg,
		Lookuper: envconfig.MultiLookuper(lookupers...),
	}); err != nil {
		return nil, errors.Annotatef(err, "failed to process configuration from %s", strings.Join(names, ", "))
	}

	if err := utils.ValidateStruct(cfg); err != nil {
		return nil, errors.Annotate(err, "invalid configuration")
	}
	return cfg, nil
}

// Load builds the configuration from the environment. Outside of production a
// .env file in the working directory fills in whatever the environment lacks.
func Load(ctx context.Context) (*Config, error) {
	sources := []Source{Environment()}
	if os.Getenv("ENVIRONMENT") != "production" {
		sources = append(sources, DotEnv(".env"))
	}
	return LoadFrom(ctx, sources...)
}

// RedeliveryGuardEnabled reports whether a Redis URL was configured.
func (c *Config) RedeliveryGuardEnabled() bool {
	return c.RedisConfig.URL != ""
}
