package search

import (
	"fmt"

	"github.com/cuemby/librarian/pkg/errs"
	"github.com/cuemby/librarian/pkg/types"
)

// fakeCatalog is an in-memory stand-in for *catalog.Catalog, just enough
// to exercise the search engine without a bbolt-backed catalog.
type fakeCatalog struct {
	files      map[string]types.File
	obs        map[int64]types.Observation
	sessions   map[int64]types.ObservingSession
	instances  []types.FileInstance
	stores     map[int64]types.Store
	events     map[string]map[string]bool // file name -> event type -> present
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		files:    map[string]types.File{},
		obs:      map[int64]types.Observation{},
		sessions: map[int64]types.ObservingSession{},
		stores:   map[int64]types.Store{},
		events:   map[string]map[string]bool{},
	}
}

func (f *fakeCatalog) ListFiles() ([]types.File, error) {
	var out []types.File
	for _, v := range f.files {
		out = append(out, v)
	}
	return out, nil
}

func (f *fakeCatalog) NumInstances(name string) (int, error) {
	n := 0
	for _, inst := range f.instances {
		if inst.Name == name {
			n++
		}
	}
	return n, nil
}

func (f *fakeCatalog) GetObservation(obsid int64) (types.Observation, error) {
	o, ok := f.obs[obsid]
	if !ok {
		return types.Observation{}, errs.NotFoundf("observation %d not found", obsid)
	}
	return o, nil
}

func (f *fakeCatalog) ListObservations() ([]types.Observation, error) {
	var out []types.Observation
	for _, v := range f.obs {
		out = append(out, v)
	}
	return out, nil
}

func (f *fakeCatalog) ListSessions() ([]types.ObservingSession, error) {
	var out []types.ObservingSession
	for _, v := range f.sessions {
		out = append(out, v)
	}
	return out, nil
}

func (f *fakeCatalog) GetSession(id int64) (types.ObservingSession, error) {
	s, ok := f.sessions[id]
	if !ok {
		return types.ObservingSession{}, errs.NotFoundf("session %d not found", id)
	}
	return s, nil
}

func (f *fakeCatalog) HasEvent(fileName, eventType string) (bool, error) {
	return f.events[fileName][eventType], nil
}

func (f *fakeCatalog) ListInstances() ([]types.FileInstance, error) {
	return f.instances, nil
}

func (f *fakeCatalog) GetFile(name string) (types.File, error) {
	file, ok := f.files[name]
	if !ok {
		return types.File{}, errs.NotFoundf("file %q not found", name)
	}
	return file, nil
}

func (f *fakeCatalog) GetStore(id int64) (types.Store, error) {
	s, ok := f.stores[id]
	if !ok {
		return types.Store{}, errs.NotFoundf("store %d not found", id)
	}
	return s, nil
}

func (f *fakeCatalog) addFile(name, source string, size int64, obsid *int64) {
	f.files[name] = types.File{Name: name, Type: "uvh5", Source: source, Size: size, Obsid: obsid}
}

func (f *fakeCatalog) addEvent(fileName, eventType string) {
	if f.events[fileName] == nil {
		f.events[fileName] = map[string]bool{}
	}
	f.events[fileName][eventType] = true
}

func ptr(v int64) *int64 { return &v }

func floatPtr(v float64) *float64 { return &v }

func mustEngine(fc *fakeCatalog) *Engine {
	return NewEngine(fc)
}

func nameSet(names []string) map[string]bool {
	out := map[string]bool{}
	for _, n := range names {
		out[n] = true
	}
	return out
}

func fileNameSet(files []types.File) map[string]bool {
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	return nameSet(names)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("%v", err)
}
