package rpc

import (
	"context"

	"github.com/cuemby/librarian/pkg/errs"
	"github.com/cuemby/librarian/pkg/stores"
)

func opLaunchFileCopy(_ context.Context, d *Dispatcher, _ string, payload map[string]any) (map[string]any, error) {
	fileName, err := requiredString(payload, "file_name")
	if err != nil {
		return nil, err
	}
	connName, err := requiredString(payload, "connection_name")
	if err != nil {
		return nil, err
	}
	remoteStorePath := optionalString(payload, "remote_store_path")
	knownStagingStore := optionalString(payload, "known_staging_store")
	knownStagingSubdir := optionalString(payload, "known_staging_subdir")
	if (knownStagingStore == "") != (knownStagingSubdir == "") {
		return nil, errs.BadRequestf("known_staging_store and known_staging_subdir must be given together")
	}

	if err := d.Replication.LaunchFileCopy(fileName, connName, remoteStorePath, knownStagingStore, knownStagingSubdir); err != nil {
		return nil, err
	}
	return nil, nil
}

func opInitiateOffload(_ context.Context, d *Dispatcher, _ string, payload map[string]any) (map[string]any, error) {
	source, err := requiredString(payload, "source_store")
	if err != nil {
		return nil, err
	}
	dest, err := requiredString(payload, "dest_store")
	if err != nil {
		return nil, err
	}
	outcome, err := d.Offload.InitiateOffload(source, dest)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"result":         outcome.Result,
		"instance_count": outcome.InstanceCount,
	}, nil
}

func opRecommendedStore(ctx context.Context, d *Dispatcher, _ string, payload map[string]any) (map[string]any, error) {
	size, err := requiredFloat64(payload, "file_size")
	if err != nil {
		return nil, err
	}
	candidates, err := d.Catalog.ListStores()
	if err != nil {
		return nil, err
	}
	store, err := stores.Recommend(ctx, candidates, d.LocalStores, d.DFCache, int64(size))
	if err != nil {
		return nil, err
	}
	return map[string]any{"store_name": store.Name}, nil
}
