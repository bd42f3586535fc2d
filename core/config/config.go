package config

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	dotenvOnce sync.Once

	cacheMu sync.Mutex
	cache   = map[reflect.Type]any{}
)

// Load populates cfg's fields from the environment using struct `env` tags,
// caching the result by cfg's pointed-to type so repeated calls for the same
// configuration struct return the first-loaded value instead of re-reading
// the environment. A .env file in the working directory, if present, is
// loaded into the process environment once, before the first Load call.
func Load(cfg any) error {
	dotenvOnce.Do(func() {
		_ = godotenv.Load() // no .env file is not an error
	})

	v := reflect.ValueOf(cfg)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return fmt.Errorf("config: Load requires a non-nil pointer, got %T", cfg)
	}
	typ := v.Elem().Type()

	cacheMu.Lock()
	if cached, ok := cache[typ]; ok {
		cacheMu.Unlock()
		v.Elem().Set(reflect.ValueOf(cached).Elem())
		return nil
	}
	cacheMu.Unlock()

	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", typ, err)
	}

	cached := reflect.New(typ)
	cached.Elem().Set(v.Elem())

	cacheMu.Lock()
	cache[typ] = cached.Interface()
	cacheMu.Unlock()

	return nil
}

// MustLoad calls Load and panics if it returns an error, for use during
// application startup where an invalid configuration should halt the
// process immediately with a clear message.
func MustLoad(cfg any) {
	if err := Load(cfg); err != nil {
		panic(err)
	}
}
