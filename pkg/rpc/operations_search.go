package rpc

import (
	"context"

	"github.com/cuemby/librarian/pkg/errs"
)

// Wire output_format constants. Each selects both the search.Engine query
// it runs and the shape of the "results" array it returns.
const (
	outputStageFiles      = "stage-the-files-json"
	outputSessionListing  = "session-listing-json"
	outputFileListing     = "file-listing-json"
	outputInstanceListing = "instance-listing-json"
	outputObsListing      = "obs-listing-json"
)

func opSearch(_ context.Context, d *Dispatcher, source string, payload map[string]any) (map[string]any, error) {
	rawSearch, err := requiredString(payload, "search")
	if err != nil {
		return nil, err
	}
	outputFormat, err := requiredString(payload, "output_format")
	if err != nil {
		return nil, err
	}

	switch outputFormat {
	case outputStageFiles:
		dest, err := requiredString(payload, "stage_dest")
		if err != nil {
			return nil, err
		}
		owningUser := optionalString(payload, "stage_user")
		if owningUser == "" {
			owningUser = source
		}
		result, err := d.Staging.LaunchStage(owningUser, rawSearch, dest)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"destination": result.Dest,
			"n_instances": result.InstanceCount,
			"n_bytes":     result.TotalBytes,
		}, nil

	case outputSessionListing:
		sessions, err := d.Search.Sessions(rawSearch)
		if err != nil {
			return nil, err
		}
		out := make([]map[string]any, len(sessions))
		for i, s := range sessions {
			out[i] = map[string]any{"id": s.ID, "start_time_jd": s.StartJD, "stop_time_jd": s.StopJD}
		}
		return map[string]any{"results": out}, nil

	case outputFileListing:
		files, err := d.Search.Files(rawSearch)
		if err != nil {
			return nil, err
		}
		out := make([]map[string]any, len(files))
		for i, f := range files {
			entry := map[string]any{
				"name":        f.Name,
				"type":        f.Type,
				"source":      f.Source,
				"size":        f.Size,
				"md5":         f.Digest,
				"create_time": f.CreateTime,
			}
			if f.Obsid != nil {
				entry["obsid"] = *f.Obsid
			}
			out[i] = entry
		}
		return map[string]any{"results": out}, nil

	case outputInstanceListing:
		pairs, err := d.Search.InstancesWithStores(rawSearch)
		if err != nil {
			return nil, err
		}
		out := make([]map[string]any, len(pairs))
		for i, p := range pairs {
			out[i] = map[string]any{
				"file_name":       p.Instance.Name,
				"parent_dirs":     p.Instance.ParentDirs,
				"deletion_policy": string(p.Instance.DeletionPolicy),
				"store_name":      p.Store.Name,
				"size":            p.File.Size,
			}
		}
		return map[string]any{"results": out}, nil

	case outputObsListing:
		obs, err := d.Search.Observations(rawSearch)
		if err != nil {
			return nil, err
		}
		out := make([]map[string]any, len(obs))
		for i, o := range obs {
			entry := map[string]any{"obsid": o.Obsid, "start_time_jd": o.StartJD}
			if o.StopJD != nil {
				entry["stop_time_jd"] = *o.StopJD
			}
			if o.SessionID != nil {
				entry["session_id"] = *o.SessionID
			}
			out[i] = entry
		}
		return map[string]any{"results": out}, nil

	default:
		return nil, errs.BadRequestf("unrecognized output_format %q", outputFormat)
	}
}
