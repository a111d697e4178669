package billing

import (
	"errors"
	"sort"
	"strings"
	"sync"
)

// GatewayKey is the composite "{provider}.{method}" registry key.
type GatewayKey string

// NewGatewayKey builds the registry key of a provider/method pair.
func NewGatewayKey(provider Provider, method Method) GatewayKey {
	return GatewayKey(string(provider) + "." + string(method))
}

// GatewayFactory builds a gateway from the shared configuration.
type GatewayFactory func(cfg GatewayConfig) (Gateway, error)

// DefaultGatewayFactories is the table of gateways shipped with the service.
func DefaultGatewayFactories() map[GatewayKey]GatewayFactory {
	return map[GatewayKey]GatewayFactory{
		NewGatewayKey(ProviderPayMongo, MethodCard):    payMongoFactory(MethodCard, []string{"card"}),
		NewGatewayKey(ProviderPayMongo, MethodGCash):   payMongoFactory(MethodGCash, []string{"gcash"}),
		NewGatewayKey(ProviderPayMongo, MethodWebhook): payMongoFactory(MethodWebhook, nil),
	}
}

func payMongoFactory(method Method, methodTypes []string) GatewayFactory {
	return func(cfg GatewayConfig) (Gateway, error) {
		g, err := NewPayMongoGateway(cfg.PayMongo, method, methodTypes, cfg.Metrics)
		if err != nil {
			return nil, err
		}
		return g, nil
	}
}

// Registry resolves provider/method pairs to gateways. Built gateways are
// cached; they hold only read-only configuration and are safe to share.
type Registry struct {
	cfg GatewayConfig

	mu        sync.RWMutex
	factories map[GatewayKey]GatewayFactory
	gateways  map[GatewayKey]Gateway
}

// NewRegistry copies factories into a new registry.
func NewRegistry(cfg GatewayConfig, factories map[GatewayKey]GatewayFactory) *Registry {
	r := &Registry{
		cfg:       cfg,
		factories: make(map[GatewayKey]GatewayFactory, len(factories)),
		gateways:  make(map[GatewayKey]Gateway),
	}
	for k, f := range factories {
		r.factories[k] = f
	}
	return r
}

// Register adds or replaces the factory for key.
func (r *Registry) Register(key GatewayKey, factory GatewayFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[key] = factory
	delete(r.gateways, key)
}

// Keys lists the registered keys in sorted order.
func (r *Registry) Keys() []GatewayKey {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]GatewayKey, 0, len(r.factories))
	for k := range r.factories {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Resolve returns the gateway registered for provider and method.
func (r *Registry) Resolve(provider Provider, method Method) (Gateway, error) {
	key := NewGatewayKey(provider, method)

	r.mu.RLock()
	gw, cached := r.gateways[key]
	factory, registered := r.factories[key]
	r.mu.RUnlock()

	if cached {
		return gw, nil
	}
	if !registered {
		return nil, &UnknownGatewayError{Provider: string(provider), Method: string(method)}
	}
	if factory == nil {
		return nil, &GatewayConfigurationError{Key: key, Err: errors.New("no factory")}
	}

	gw, err := factory(r.cfg)
	if err != nil {
		return nil, &GatewayConfigurationError{Key: key, Err: err}
	}
	if gw == nil {
		return nil, &GatewayConfigurationError{Key: key, Err: errors.New("factory returned no gateway")}
	}

	r.mu.Lock()
	if existing, ok := r.gateways[key]; ok {
		gw = existing
	} else {
		r.gateways[key] = gw
	}
	r.mu.Unlock()
	return gw, nil
}

// Preload builds every registered gateway so missing credentials surface at
// startup instead of on the first checkout.
func (r *Registry) Preload() error {
	for _, key := range r.Keys() {
		provider, method, _ := strings.Cut(string(key), ".")
		if _, err := r.Resolve(Provider(provider), Method(method)); err != nil {
			return err
		}
	}
	return nil
}
