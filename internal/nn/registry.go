package nn

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
)

var (
	ErrActivationExists   = errors.New("activation already registered")
	ErrActivationNotFound = errors.New("activation not found")
)

// Activation transforms a layer's pre-activation vector in place. Vector-wide
// functions such as softmax need the whole layer, so activations are not
// applied entry by entry.
type Activation func(values []float32)

var activationRegistry = struct {
	mu sync.RWMutex
	m  map[string]Activation
}{
	m: make(map[string]Activation),
}

func init() {
	MustRegisterActivation("identity", func([]float32) {})
	MustRegisterActivation("relu", elementwise(func(x float64) float64 {
		if x < 0 {
			return 0
		}
		return x
	}))
	MustRegisterActivation("tanh", elementwise(math.Tanh))
	MustRegisterActivation("sigmoid", elementwise(func(x float64) float64 {
		return 1.0 / (1.0 + math.Exp(-x))
	}))
	MustRegisterActivation("softmax", softmax)
}

func RegisterActivation(name string, fn Activation) error {
	if name == "" {
		return errors.New("activation name is required")
	}
	if fn == nil {
		return errors.New("activation function is required")
	}

	activationRegistry.mu.Lock()
	defer activationRegistry.mu.Unlock()

	if _, exists := activationRegistry.m[name]; exists {
		return fmt.Errorf("%w: %s", ErrActivationExists, name)
	}
	activationRegistry.m[name] = fn
	return nil
}

func MustRegisterActivation(name string, fn Activation) {
	if err := RegisterActivation(name, fn); err != nil {
		panic(err)
	}
}

// GetActivation resolves a registered activation. An empty name is identity.
func GetActivation(name string) (Activation, error) {
	if name == "" {
		name = "identity"
	}
	activationRegistry.mu.RLock()
	defer activationRegistry.mu.RUnlock()

	fn, ok := activationRegistry.m[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrActivationNotFound, name)
	}
	return fn, nil
}

func ListActivations() []string {
	activationRegistry.mu.RLock()
	defer activationRegistry.mu.RUnlock()

	names := make([]string, 0, len(activationRegistry.m))
	for name := range activationRegistry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func elementwise(fn func(float64) float64) Activation {
	return func(values []float32) {
		for i, v := range values {
			values[i] = float32(fn(float64(v)))
		}
	}
}

func softmax(values []float32) {
	if len(values) == 0 {
		return
	}
	peak := values[0]
	for _, v := range values[1:] {
		if v > peak {
			peak = v
		}
	}
	sum := 0.0
	for i, v := range values {
		e := math.Exp(float64(v - peak))
		values[i] = float32(e)
		sum += e
	}
	for i := range values {
		values[i] = float32(float64(values[i]) / sum)
	}
}
