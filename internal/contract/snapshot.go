package contract

import (
	"encoding/json"
	"os"

	"github.com/PentesterFlow/OpenContract/internal/errors"
	"github.com/PentesterFlow/OpenContract/internal/output"
	"github.com/PentesterFlow/OpenContract/internal/state"
)

// Marshal returns the snapshot as indented JSON. Equal snapshots marshal to
// identical bytes.
func (s *Snapshot) Marshal() ([]byte, error) {
	return output.MarshalJSON(s)
}

// Save writes the snapshot to path atomically.
func (s *Snapshot) Save(path string) error {
	data, err := s.Marshal()
	if err != nil {
		return err
	}
	return output.WriteFileAtomic(path, data)
}

// Parse decodes a snapshot. Malformed input is fatal.
func Parse(data []byte, source string) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.NewFatalError("load", source, "malformed contract", err)
	}
	if s.Endpoints == nil {
		s.Endpoints = make([]Endpoint, 0)
	}
	return &s, nil
}

// Load reads a snapshot from path. A missing or malformed file is fatal.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Categorize(err, "load", path)
	}
	return Parse(data, path)
}

// Index maps each key to its endpoint.
func (s *Snapshot) Index() map[Key]*Endpoint {
	idx := make(map[Key]*Endpoint, len(s.Endpoints))
	for i := range s.Endpoints {
		ep := &s.Endpoints[i]
		if _, exists := idx[ep.Key()]; !exists {
			idx[ep.Key()] = ep
		}
	}
	return idx
}

// Keys returns the endpoint keys ordered by path, then method.
func (s *Snapshot) Keys() []Key {
	keys := make([]Key, 0, len(s.Endpoints))
	for i := range s.Endpoints {
		keys = append(keys, s.Endpoints[i].Key())
	}
	state.SortKeys(keys)
	return keys
}

// KeySet returns the endpoint keys as a set.
func (s *Snapshot) KeySet() *state.KeySet {
	set := state.NewKeySet(len(s.Endpoints))
	for i := range s.Endpoints {
		set.Add(s.Endpoints[i].Key())
	}
	return set
}

// Modules returns the distinct module names in first-seen order.
func (s *Snapshot) Modules() []string {
	seen := make(map[string]bool)
	var mods []string
	for _, ep := range s.Endpoints {
		if !seen[ep.Module] {
			seen[ep.Module] = true
			mods = append(mods, ep.Module)
		}
	}
	return mods
}

// EndpointsByModule groups endpoints by module.
func (s *Snapshot) EndpointsByModule() map[string][]Endpoint {
	groups := make(map[string][]Endpoint)
	for _, ep := range s.Endpoints {
		groups[ep.Module] = append(groups[ep.Module], ep)
	}
	return groups
}

// Projection returns the endpoint's canonical JSON without provenance.
// Two endpoints with equal projections describe the same contract.
func Projection(e Endpoint) ([]byte, error) {
	e.Provenance = nil
	return json.Marshal(e)
}
