// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package config

import (
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cardinalhq/settingsdb/settingsdb"
)

// EnvPrefix prefixes every environment variable the service reads.
const EnvPrefix = "SETTINGSDB"

// Config aggregates configuration for the application.
type Config struct {
	Cache   CacheConfig   `mapstructure:"cache"`
	Backend BackendConfig `mapstructure:"backend"`
}

// CacheConfig tunes the per-table row caches.
type CacheConfig struct {
	// TTL bounds how long a cached row is served. Zero keeps rows until
	// they are invalidated or evicted.
	TTL time.Duration `mapstructure:"ttl"`
	// Capacity bounds the number of rows cached per table. Zero is
	// unbounded.
	Capacity uint64 `mapstructure:"capacity"`
	// SingleFlight coalesces concurrent misses on the same key.
	SingleFlight bool `mapstructure:"singleflight"`
}

// BackendConfig selects the database holding the settings tables.
type BackendConfig struct {
	// Driver is "postgres" or "sqlite".
	Driver string `mapstructure:"driver"`
	// SQLitePath is the database file used by the sqlite driver.
	SQLitePath string `mapstructure:"sqlite_path"`
	// Bootstrap creates the settings tables and their default rows when
	// they are missing. Only the sqlite driver honours it.
	Bootstrap bool `mapstructure:"bootstrap"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	return &Config{
		Cache: CacheConfig{
			Capacity: 100_000,
		},
		Backend: BackendConfig{
			Driver:     "postgres",
			SQLitePath: "settings.db",
		},
	}
}

// Options converts c into handler options.
func (c CacheConfig) Options() []settingsdb.Option {
	var opts []settingsdb.Option
	if c.TTL > 0 {
		opts = append(opts, settingsdb.WithTTL(c.TTL))
	}
	if c.Capacity > 0 {
		opts = append(opts, settingsdb.WithCapacity(c.Capacity))
	}
	if c.SingleFlight {
		opts = append(opts, settingsdb.WithSingleFlight())
	}
	return opts
}

// Load reads configuration from files and environment variables.
// Environment variables use the prefix "SETTINGSDB" and the dot character
// in keys is replaced by an underscore. For example, "cache.ttl" becomes
// "SETTINGSDB_CACHE_TTL".
func Load() (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)
	_ = v.ReadInConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	cfg.Backend.Driver = strings.ToLower(strings.TrimSpace(cfg.Backend.Driver))
	return cfg, nil
}

// bindEnvs registers all keys within cfg so that viper will look up
// corresponding environment variables when unmarshalling.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(parts, tag)
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}
