package transport

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"

	"firestige.xyz/posebridge/internal/core"
)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register makes a transport factory available under kind.
func Register(kind string, f Factory) error {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		return fmt.Errorf("transport kind must not be empty")
	}
	if _, exists := factories[kind]; exists {
		return fmt.Errorf("transport '%s' already registered", kind)
	}
	factories[kind] = f
	return nil
}

// MustRegister is Register for package init functions.
func MustRegister(kind string, f Factory) {
	if err := Register(kind, f); err != nil {
		panic(err)
	}
}

// Lookup returns the factory registered under kind.
func Lookup(kind string) (Factory, error) {
	mu.RLock()
	f, exists := factories[kind]
	mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: '%s' (registered: %v)", core.ErrUnknownTransport, kind, Kinds())
	}
	return f, nil
}

// New builds the Dialer registered under kind.
func New(kind string, options map[string]any) (Dialer, error) {
	f, err := Lookup(kind)
	if err != nil {
		return nil, err
	}
	d, err := f(options)
	if err != nil {
		return nil, fmt.Errorf("transport '%s': %w", kind, err)
	}
	return d, nil
}

// Kinds lists registered transport kinds in sorted order.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()

	kinds := make([]string, 0, len(factories))
	for k := range factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// DecodeOptions decodes untyped options into the struct pointed to by out.
// Strings are accepted for numbers, booleans and durations ("5s"); unknown
// keys are rejected so typos surface at startup.
func DecodeOptions(options map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(options); err != nil {
		return fmt.Errorf("%w: %v", core.ErrConfigInvalid, err)
	}
	return nil
}

// DurationOrDefault returns def when d is not positive.
func DurationOrDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
