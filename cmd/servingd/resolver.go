package main

import (
	"fmt"
	"io"

	"servingd/internal/config"
	"servingd/internal/manager"
	"servingd/internal/registry"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// buildResolver returns the artifact resolver selected by cfg and a closer
// for any resource it holds.
func buildResolver(cfg config.Config) (manager.ArtifactResolver, io.Closer, error) {
	switch cfg.Resolver {
	case config.ResolverMLflow:
		return &registry.MLflowResolver{
			Bin:         cfg.MLflow.Bin,
			EnvManager:  cfg.MLflow.EnvManager,
			TrackingURI: cfg.MLflow.TrackingURI,
			Workers:     cfg.MLflow.Workers,
			ExtraArgs:   cfg.MLflow.ExtraArgs,
		}, nopCloser{}, nil
	case config.ResolverCatalog:
		c, err := registry.LoadCatalog(cfg.CatalogPath)
		if err != nil {
			return nil, nil, err
		}
		return c, nopCloser{}, nil
	case config.ResolverSQLite:
		c, err := registry.OpenSQLiteCatalog(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return c, c, nil
	default:
		return nil, nil, fmt.Errorf("unknown resolver %q", cfg.Resolver)
	}
}
