// Package config loads goIdentity binary settings from a YAML file and command-line
// flags.
//
// Values resolve in order: built-in defaults, then the file, then flags the user
// set explicitly.
package config

import (
	"os"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/MrEthical07/goIdentity/internal/logging"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// DatabaseURLEnv is consulted when no postgres DSN is configured.
const DatabaseURLEnv = "DATABASE_URL"

// Settings is everything a goIdentity binary needs beyond its arguments.
type Settings struct {
	Identity goIdentity.Config `koanf:"identity"`
	Redis    Redis             `koanf:"redis"`
	Postgres Postgres          `koanf:"postgres"`
	Log      logging.Config    `koanf:"log"`
}

// Redis locates the cache server.
type Redis struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// Postgres locates the durable store.
type Postgres struct {
	DSN string `koanf:"dsn"`
}

// Default returns Settings with engine defaults and a local redis address.
func Default() Settings {
	return Settings{
		Identity: goIdentity.DefaultConfig(),
		Redis:    Redis{Addr: "localhost:6379"},
		Log:      logging.Config{Level: "info"},
	}
}

// RegisterFlags adds the overridable settings to fs. Flag names are the koanf key
// paths, so "redis.addr" overrides redis.addr from the file.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("redis.addr", d.Redis.Addr, "redis address")
	fs.String("redis.password", d.Redis.Password, "redis password")
	fs.Int("redis.db", d.Redis.DB, "redis database number")
	fs.String("postgres.dsn", d.Postgres.DSN, "postgres connection string (default $"+DatabaseURLEnv+")")
	fs.String("log.level", d.Log.Level, "log level: debug, info, warn, error")
	fs.Bool("log.dev", d.Log.Dev, "human-readable console logs")
	fs.String("identity.jwt.secret", d.Identity.JWT.Secret, "HS256 signing secret")
	fs.String("identity.jwt.issuer", d.Identity.JWT.Issuer, "token issuer")
	fs.String("identity.cache.namespace", d.Identity.Cache.Namespace, "cache key namespace")
}

// Load resolves Settings from path (optional) and flags (optional).
func Load(path string, flags *pflag.FlagSet) (Settings, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Settings{}, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}
	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return Settings{}, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	out := Default()
	if err := k.UnmarshalWithConf("", &out, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Settings{}, oops.Code("CONFIG_DECODE_FAILED").With("path", path).Wrap(err)
	}
	if out.Postgres.DSN == "" {
		out.Postgres.DSN = os.Getenv(DatabaseURLEnv)
	}
	return out, nil
}
