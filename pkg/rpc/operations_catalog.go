package rpc

import (
	"context"

	"github.com/cuemby/librarian/pkg/catalog"
	"github.com/cuemby/librarian/pkg/types"
)

func opCreateFileEvent(_ context.Context, d *Dispatcher, _ string, payload map[string]any) (map[string]any, error) {
	name, err := requiredString(payload, "file_name")
	if err != nil {
		return nil, err
	}
	eventType, err := requiredString(payload, "type")
	if err != nil {
		return nil, err
	}
	eventPayload, err := requiredMap(payload, "payload")
	if err != nil {
		return nil, err
	}
	if err := d.Catalog.CreateFileEvent(name, eventType, eventPayload); err != nil {
		return nil, err
	}
	return nil, nil
}

func opLocateFileInstance(_ context.Context, d *Dispatcher, _ string, payload map[string]any) (map[string]any, error) {
	name, err := requiredString(payload, "file_name")
	if err != nil {
		return nil, err
	}
	inst, err := d.Catalog.LocateFileInstance(name)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"store_id":        inst.StoreID,
		"parent_dirs":     inst.ParentDirs,
		"name":            inst.Name,
		"deletion_policy": string(inst.DeletionPolicy),
	}, nil
}

func opSetOneFileDeletionPolicy(_ context.Context, d *Dispatcher, _ string, payload map[string]any) (map[string]any, error) {
	name, err := requiredString(payload, "file_name")
	if err != nil {
		return nil, err
	}
	policyStr, err := requiredString(payload, "deletion_policy")
	if err != nil {
		return nil, err
	}
	policy := types.DeletionPolicy(policyStr)
	if policy != types.DeletionAllowed && policy != types.DeletionDisallowed {
		return nil, errBadDeletionPolicy(policyStr)
	}
	restrict, err := optionalStoreIDPtr(d, payload, "restrict_to_store")
	if err != nil {
		return nil, err
	}
	if err := d.Catalog.SetOneFileDeletionPolicy(name, policy, restrict); err != nil {
		return nil, err
	}
	return nil, nil
}

func opDeleteFileInstances(_ context.Context, d *Dispatcher, _ string, payload map[string]any) (map[string]any, error) {
	name, err := requiredString(payload, "file_name")
	if err != nil {
		return nil, err
	}
	mode, err := deletionModeFromPayload(payload)
	if err != nil {
		return nil, err
	}
	restrict, err := optionalStoreIDPtr(d, payload, "restrict_to_store")
	if err != nil {
		return nil, err
	}
	affected, err := d.Catalog.DeleteInstances(name, mode, restrict)
	if err != nil {
		return nil, err
	}
	return map[string]any{"instances_affected": len(affected)}, nil
}

func opDeleteFileInstancesMatchingQuery(_ context.Context, d *Dispatcher, _ string, payload map[string]any) (map[string]any, error) {
	search, err := requiredString(payload, "query")
	if err != nil {
		return nil, err
	}
	mode, err := deletionModeFromPayload(payload)
	if err != nil {
		return nil, err
	}
	restrict, err := optionalStoreIDPtr(d, payload, "restrict_to_store")
	if err != nil {
		return nil, err
	}

	names, err := d.Search.FileNames(search)
	if err != nil {
		return nil, err
	}

	total := 0
	for _, name := range names {
		affected, err := d.Catalog.DeleteInstances(name, mode, restrict)
		if err != nil {
			continue // matching query may include files with nothing deletable
		}
		total += len(affected)
	}
	return map[string]any{"instances_affected": total}, nil
}

func opRegisterInstances(_ context.Context, d *Dispatcher, source string, payload map[string]any) (map[string]any, error) {
	storeName, err := requiredString(payload, "store_name")
	if err != nil {
		return nil, err
	}
	store, err := d.Catalog.GetStoreByName(storeName)
	if err != nil {
		return nil, err
	}

	filesRaw, err := requiredMap(payload, "file_info")
	if err != nil {
		return nil, err
	}
	fileInfo := make(map[string]catalog.FileStat, len(filesRaw))
	for path, v := range filesRaw {
		info, ok := v.(map[string]any)
		if !ok {
			return nil, errBadFileInfo(path)
		}
		size, err := requiredFloat64(info, "size")
		if err != nil {
			return nil, err
		}
		fileInfo[path] = catalog.FileStat{
			Size:   int64(size),
			Digest: optionalString(info, "md5"),
			Type:   optionalString(info, "type"),
		}
	}

	if err := d.Catalog.RegisterInstances(store.ID, source, d.ObsidMode, fileInfo); err != nil {
		return nil, err
	}
	if d.Replication != nil {
		d.Replication.QueueCheck()
	}
	return map[string]any{"num_registered": len(fileInfo)}, nil
}

func opCreateFileRecord(_ context.Context, d *Dispatcher, source string, payload map[string]any) (map[string]any, error) {
	name, err := requiredString(payload, "file_name")
	if err != nil {
		return nil, err
	}
	size, err := requiredFloat64(payload, "size")
	if err != nil {
		return nil, err
	}

	f := types.File{
		Name:   name,
		Type:   optionalString(payload, "type"),
		Source: source,
		Size:   int64(size),
		Digest: optionalString(payload, "md5"),
	}
	if obsid, ok := payload["obsid"]; ok && obsid != nil {
		v, err := toFloat64("obsid", obsid)
		if err != nil {
			return nil, err
		}
		id := int64(v)
		f.Obsid = &id
	}
	if err := d.Catalog.CreateFileRecord(f); err != nil {
		return nil, err
	}
	return nil, nil
}

func opGatherFileRecord(_ context.Context, d *Dispatcher, _ string, payload map[string]any) (map[string]any, error) {
	name, err := requiredString(payload, "file_name")
	if err != nil {
		return nil, err
	}
	rec, err := d.Catalog.GatherFileRecord(name)
	if err != nil {
		return nil, err
	}
	return map[string]any{"rec_info": recInfoToPayload(rec)}, nil
}

func opCreateOrUpdateObservation(_ context.Context, d *Dispatcher, _ string, payload map[string]any) (map[string]any, error) {
	obsid, err := requiredInt64(payload, "obsid")
	if err != nil {
		return nil, err
	}
	startJD, err := requiredFloat64(payload, "start_time_jd")
	if err != nil {
		return nil, err
	}
	obs := types.Observation{Obsid: obsid, StartJD: startJD}
	if stopJD, err := optionalFloat64Ptr(payload, "stop_time_jd"); err != nil {
		return nil, err
	} else {
		obs.StopJD = stopJD
	}
	if lst, err := optionalFloat64Ptr(payload, "start_lst_hr"); err != nil {
		return nil, err
	} else {
		obs.StartLSTHr = lst
	}
	if err := d.Catalog.CreateOrUpdateObservation(obs); err != nil {
		return nil, err
	}
	return nil, nil
}

func opAssignObservingSessions(_ context.Context, d *Dispatcher, _ string, payload map[string]any) (map[string]any, error) {
	minStartJD, err := optionalFloat64Ptr(payload, "minimum_start_jd")
	if err != nil {
		return nil, err
	}
	maxStartJD, err := optionalFloat64Ptr(payload, "maximum_start_jd")
	if err != nil {
		return nil, err
	}
	created, err := d.Catalog.AssignObservingSessions(minStartJD, maxStartJD)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(created))
	for i, s := range created {
		ids[i] = s.ID
	}
	return map[string]any{"new_sessions": ids}, nil
}
