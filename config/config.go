// Package config loads the runtime's own settings — executor tick
// duration, the default task budget, the middleware transport address,
// and the KV store path — into a struct pointer fed by composable
// Feeders, rather than one monolithic parser.
package config

import (
	"fmt"
	"os"
	"reflect"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// RuntimeConfig is the runtime's own top-level configuration section.
// Additional application-specific sections are fed separately by the
// caller using the same Feeders against their own structs.
type RuntimeConfig struct {
	TickDuration         time.Duration `toml:"tick_duration" yaml:"tick_duration" env:"TICK_DURATION"`
	DefaultTaskBudget    time.Duration `toml:"default_task_budget" yaml:"default_task_budget" env:"DEFAULT_TASK_BUDGET"`
	MiddlewareAddress    string        `toml:"middleware_address" yaml:"middleware_address" env:"MIDDLEWARE_ADDRESS"`
	IntrospectionAddress string        `toml:"introspection_address" yaml:"introspection_address" env:"INTROSPECTION_ADDRESS"`
	KVStorePath          string        `toml:"kv_store_path" yaml:"kv_store_path" env:"KV_STORE_PATH"`
	KVStoreSyncOnWrite   bool          `toml:"kv_store_sync_on_write" yaml:"kv_store_sync_on_write" env:"KV_STORE_SYNC_ON_WRITE"`
}

// Default returns the runtime's built-in defaults, applied before any
// Feeder runs.
func Default() RuntimeConfig {
	return RuntimeConfig{
		TickDuration:         10 * time.Millisecond,
		DefaultTaskBudget:    8 * time.Millisecond,
		MiddlewareAddress:    "",
		IntrospectionAddress: "",
		KVStorePath:          "",
		KVStoreSyncOnWrite:   false,
	}
}

// Feeder populates a struct pointer from some source. Feeders are applied
// in order, each overriding fields the previous one set, giving a layered
// TOML-then-YAML-then-env precedence.
type Feeder interface {
	Feed(target any) error
}

// Load applies defaults then every feeder in order, returning the final
// RuntimeConfig.
func Load(feeders ...Feeder) (RuntimeConfig, error) {
	cfg := Default()
	for _, f := range feeders {
		if err := f.Feed(&cfg); err != nil {
			return cfg, fmt.Errorf("config: %w", err)
		}
	}
	return cfg, nil
}

// TomlFeeder reads the primary config file using BurntSushi/toml.
type TomlFeeder struct {
	Path string
}

func (f TomlFeeder) Feed(target any) error {
	if f.Path == "" {
		return nil
	}
	if _, err := os.Stat(f.Path); os.IsNotExist(err) {
		return nil
	}
	_, err := toml.DecodeFile(f.Path, target)
	return err
}

// YamlFeeder reads an optional overlay file using gopkg.in/yaml.v3.
type YamlFeeder struct {
	Path string
}

func (f YamlFeeder) Feed(target any) error {
	if f.Path == "" {
		return nil
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, target)
}

// EnvFeeder overrides struct fields from environment variables named by
// their `env` tag, coercing string values with spf13/cast the way
// TICK_DURATION=10ms becomes a time.Duration field.
type EnvFeeder struct {
	Prefix string
}

func (f EnvFeeder) Feed(target any) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("env feeder: target must be a pointer to struct")
	}
	elem := v.Elem()
	t := elem.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("env")
		if tag == "" {
			continue
		}
		key := f.Prefix + tag
		raw, ok := os.LookupEnv(key)
		if !ok {
			continue
		}
		if err := setFieldFromEnv(elem.Field(i), raw); err != nil {
			return fmt.Errorf("env feeder: %s: %w", key, err)
		}
	}
	return nil
}

func setFieldFromEnv(field reflect.Value, raw string) error {
	if field.Type() == reflect.TypeOf(time.Duration(0)) {
		d, err := cast.ToDurationE(raw)
		if err != nil {
			return err
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		s, err := cast.ToStringE(raw)
		if err != nil {
			return err
		}
		field.SetString(s)
	case reflect.Bool:
		b, err := cast.ToBoolE(raw)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := cast.ToInt64E(raw)
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := cast.ToInt64E(raw)
		if err != nil {
			return err
		}
		field.SetUint(uint64(n))
	case reflect.Float32, reflect.Float64:
		n, err := cast.ToFloat64E(raw)
		if err != nil {
			return err
		}
		field.SetFloat(n)
	default:
		return fmt.Errorf("unsupported field kind %s", field.Kind())
	}
	return nil
}

// Diff describes one field that changed between two RuntimeConfig values,
// for logging what a hot-reload actually changed instead of just that it
// happened.
type Diff struct {
	Field string
	Old   string
	New   string
}

// DiffRuntimeConfig compares two configs field by field.
func DiffRuntimeConfig(old, updated RuntimeConfig) []Diff {
	var diffs []Diff
	ov, nv := reflect.ValueOf(old), reflect.ValueOf(updated)
	t := ov.Type()
	for i := 0; i < t.NumField(); i++ {
		of, nf := ov.Field(i), nv.Field(i)
		if !reflect.DeepEqual(of.Interface(), nf.Interface()) {
			diffs = append(diffs, Diff{
				Field: t.Field(i).Name,
				Old:   fmt.Sprint(of.Interface()),
				New:   fmt.Sprint(nf.Interface()),
			})
		}
	}
	return diffs
}
