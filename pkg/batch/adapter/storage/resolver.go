package storage

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/fx"

	coreAdapter "github.com/tigerroll/stationcast/pkg/batch/core/adapter"
	coreConfig "github.com/tigerroll/stationcast/pkg/batch/core/config"
	"github.com/tigerroll/stationcast/pkg/batch/support/util/logger"
)

// ConnectionResolver dispatches a connection name to the provider registered for its configured type.
type ConnectionResolver struct {
	providers map[string]StorageProvider
	cfg       *coreConfig.Config
}

// NewConnectionResolver indexes providers by Type.
func NewConnectionResolver(providers []StorageProvider, cfg *coreConfig.Config) *ConnectionResolver {
	byType := make(map[string]StorageProvider, len(providers))
	for _, p := range providers {
		byType[p.Type()] = p
	}
	return &ConnectionResolver{providers: byType, cfg: cfg}
}

// ResolveConnection implements coreAdapter.ResourceConnectionResolver.
func (r *ConnectionResolver) ResolveConnection(ctx context.Context, name string) (coreAdapter.ResourceConnection, error) {
	return r.ResolveStorageConnection(ctx, name)
}

// ResolveStorageConnection looks up adapter.storage.<name>.type and asks that provider for the connection.
func (r *ConnectionResolver) ResolveStorageConnection(ctx context.Context, name string) (StorageConnection, error) {
	var typed struct {
		Type string `yaml:"type"`
	}
	if err := r.cfg.DecodeAdapterConfig("storage", name, &typed); err != nil {
		return nil, err
	}
	provider, ok := r.providers[typed.Type]
	if !ok {
		return nil, fmt.Errorf("no storage provider registered for type '%s' (connection '%s')", typed.Type, name)
	}
	logger.Debugf("Resolving storage connection '%s' through '%s' provider.", name, typed.Type)
	return provider.GetConnection(name)
}

// CloseAll closes the connections of every provider.
func (r *ConnectionResolver) CloseAll() error {
	var result error
	for _, p := range r.providers {
		if err := p.CloseAll(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result
}

var _ StorageConnectionResolver = (*ConnectionResolver)(nil)

// NewConnectionResolverProvider builds the resolver and closes all connections on stop.
func NewConnectionResolverProvider(lc fx.Lifecycle, providers []StorageProvider, cfg *coreConfig.Config) StorageConnectionResolver {
	r := NewConnectionResolver(providers, cfg)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return r.CloseAll()
		},
	})
	return r
}

// Module provides the StorageConnectionResolver over the storage provider group.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewConnectionResolverProvider,
		fx.ParamTags(``, StorageProviderGroup, ``),
	)),
)
