package search

import (
	"github.com/cuemby/librarian/pkg/types"
)

// Catalog is the subset of *catalog.Catalog the search engine needs.
// Declaring it here (rather than importing pkg/catalog directly) keeps
// pkg/search free of a dependency cycle and testable against a fake.
type Catalog interface {
	ListFiles() ([]types.File, error)
	NumInstances(name string) (int, error)
	GetObservation(obsid int64) (types.Observation, error)
	ListObservations() ([]types.Observation, error)
	ListSessions() ([]types.ObservingSession, error)
	GetSession(id int64) (types.ObservingSession, error)
	HasEvent(fileName, eventType string) (bool, error)
	ListInstances() ([]types.FileInstance, error)
	GetFile(name string) (types.File, error)
	GetStore(id int64) (types.Store, error)
}

// Engine evaluates compiled searches against a Catalog's current state.
// Every query re-reads the catalog and re-evaluates the predicate; there
// is no persistent index. Catalogs are small enough (tens of thousands of
// files) that a full scan per query holds up fine.
type Engine struct {
	cat Catalog
}

func NewEngine(cat Catalog) *Engine {
	return &Engine{cat: cat}
}

// InstanceStorePair is one row of an instances-stores query result: a
// FileInstance left-outer-joined against its File and Store.
type InstanceStorePair struct {
	Instance types.FileInstance
	File     types.File
	Store    types.Store
}

// Files returns every File matching raw.
func (e *Engine) Files(raw string) ([]types.File, error) {
	pred, err := Compile(SchemaFile, raw)
	if err != nil {
		return nil, err
	}
	files, err := e.cat.ListFiles()
	if err != nil {
		return nil, err
	}

	var out []types.File
	for _, f := range files {
		rec, err := e.fileRecordFor(f)
		if err != nil {
			return nil, err
		}
		ok, err := pred(rec)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, f)
		}
	}
	return out, nil
}

// FileNames returns the names of every File matching raw.
func (e *Engine) FileNames(raw string) ([]string, error) {
	files, err := e.Files(raw)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	return names, nil
}

// Observations returns every Observation matching raw.
func (e *Engine) Observations(raw string) ([]types.Observation, error) {
	pred, err := Compile(SchemaObservation, raw)
	if err != nil {
		return nil, err
	}
	obs, err := e.cat.ListObservations()
	if err != nil {
		return nil, err
	}
	files, err := e.cat.ListFiles()
	if err != nil {
		return nil, err
	}
	numFiles, totalSize := observationTotals(files)

	var out []types.Observation
	for _, o := range obs {
		rec := observationRecord(o, numFiles[o.Obsid], totalSize[o.Obsid])
		ok, err := pred(rec)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, o)
		}
	}
	return out, nil
}

// Sessions returns every ObservingSession matching raw.
func (e *Engine) Sessions(raw string) ([]types.ObservingSession, error) {
	pred, err := Compile(SchemaSession, raw)
	if err != nil {
		return nil, err
	}
	sessions, err := e.cat.ListSessions()
	if err != nil {
		return nil, err
	}
	obs, err := e.cat.ListObservations()
	if err != nil {
		return nil, err
	}
	files, err := e.cat.ListFiles()
	if err != nil {
		return nil, err
	}

	obsBySession := map[int64][]types.Observation{}
	for _, o := range obs {
		if o.SessionID != nil {
			obsBySession[*o.SessionID] = append(obsBySession[*o.SessionID], o)
		}
	}
	filesByObsid := map[int64][]types.File{}
	for _, f := range files {
		if f.Obsid != nil {
			filesByObsid[*f.Obsid] = append(filesByObsid[*f.Obsid], f)
		}
	}

	var out []types.ObservingSession
	for _, s := range sessions {
		sessObs := obsBySession[s.ID]
		numFiles := 0
		for _, o := range sessObs {
			numFiles += len(filesByObsid[o.Obsid])
		}
		hasEvent := func(eventType string) (bool, error) {
			for _, o := range sessObs {
				for _, f := range filesByObsid[o.Obsid] {
					has, err := e.cat.HasEvent(f.Name, eventType)
					if err != nil {
						return false, err
					}
					if has {
						return true, nil
					}
				}
			}
			return false, nil
		}
		rec := sessionRecord(s, len(sessObs), numFiles, hasEvent)
		ok, err := pred(rec)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// Instances returns every FileInstance whose File matches raw (a File
// search), mirroring query_type="instances".
func (e *Engine) Instances(raw string) ([]types.FileInstance, error) {
	pairs, err := e.instancesMatching(raw)
	if err != nil {
		return nil, err
	}
	out := make([]types.FileInstance, len(pairs))
	for i, p := range pairs {
		out[i] = p.Instance
	}
	return out, nil
}

// InstancesWithStores is Instances joined against each instance's Store,
// mirroring query_type="instances-stores".
func (e *Engine) InstancesWithStores(raw string) ([]InstanceStorePair, error) {
	return e.instancesMatching(raw)
}

func (e *Engine) instancesMatching(raw string) ([]InstanceStorePair, error) {
	pred, err := Compile(SchemaFile, raw)
	if err != nil {
		return nil, err
	}
	instances, err := e.cat.ListInstances()
	if err != nil {
		return nil, err
	}

	var out []InstanceStorePair
	for _, inst := range instances {
		f, err := e.cat.GetFile(inst.Name)
		if err != nil {
			continue // dangling instance reference; skip rather than fail the whole query
		}
		rec, err := e.fileRecordFor(f)
		if err != nil {
			return nil, err
		}
		ok, err := pred(rec)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		pair := InstanceStorePair{Instance: inst, File: f}
		if store, err := e.cat.GetStore(inst.StoreID); err == nil {
			pair.Store = store
		}
		out = append(out, pair)
	}
	return out, nil
}

func (e *Engine) fileRecordFor(f types.File) (*Record, error) {
	numInstances, err := e.cat.NumInstances(f.Name)
	if err != nil {
		return nil, err
	}

	var obsRec *Record
	if f.Obsid != nil {
		if obs, err := e.cat.GetObservation(*f.Obsid); err == nil {
			files, err := e.cat.ListFiles()
			if err != nil {
				return nil, err
			}
			numFiles, totalSize := observationTotals(files)
			obsRec = observationRecord(obs, numFiles[obs.Obsid], totalSize[obs.Obsid])
		}
	}

	return fileRecord(f, numInstances, obsRec), nil
}

func observationTotals(files []types.File) (numFiles map[int64]int, totalSize map[int64]int64) {
	numFiles = map[int64]int{}
	totalSize = map[int64]int64{}
	for _, f := range files {
		if f.Obsid == nil {
			continue
		}
		numFiles[*f.Obsid]++
		totalSize[*f.Obsid] += f.Size
	}
	return numFiles, totalSize
}
