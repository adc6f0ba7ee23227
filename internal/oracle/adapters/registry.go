package adapters

import (
	"strings"

	"github.com/smallbiznis/subscriber/internal/oracle/domain"
)

type Registry struct {
	factories map[string]domain.AdapterFactory
}

func NewRegistry(factories ...domain.AdapterFactory) *Registry {
	registry := &Registry{factories: map[string]domain.AdapterFactory{}}
	for _, factory := range factories {
		if factory == nil {
			continue
		}
		kind := strings.ToLower(strings.TrimSpace(factory.Kind()))
		if kind == "" {
			continue
		}
		registry.factories[kind] = factory
	}
	return registry
}

func (r *Registry) KindExists(kind string) bool {
	if r == nil {
		return false
	}
	_, ok := r.factories[strings.ToLower(strings.TrimSpace(kind))]
	return ok
}

func (r *Registry) NewFeed(cfg domain.FeedConfig) (domain.Feed, error) {
	if r == nil {
		return nil, domain.ErrKindNotFound
	}
	factory, ok := r.factories[strings.ToLower(strings.TrimSpace(cfg.Kind))]
	if !ok {
		return nil, domain.ErrKindNotFound
	}
	return factory.NewFeed(cfg)
}
