package store

import "sync"

// memKV is an in-memory kvClient used by tests. It is not a runtime
// substitute: a missing store is a fatal configuration error, never silently
// downgraded.
type memKV struct {
	mu   sync.RWMutex
	sets map[string]map[string]map[string]interface{}
}

func newMemKV() *memKV {
	return &memKV{sets: map[string]map[string]map[string]interface{}{}}
}

func (m *memKV) get(set, key string) (map[string]interface{}, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bins, ok := m.sets[set][key]
	if !ok {
		return nil, false, nil
	}
	return copyBins(bins), true, nil
}

func (m *memKV) put(set, key string, bins map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sets[set] == nil {
		m.sets[set] = map[string]map[string]interface{}{}
	}
	m.sets[set][key] = copyBins(bins)
	return nil
}

func (m *memKV) del(set, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sets[set], key)
	return nil
}

func (m *memKV) scan(set string) ([]map[string]interface{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	records := []map[string]interface{}{}
	for _, bins := range m.sets[set] {
		records = append(records, copyBins(bins))
	}
	return records, nil
}

func (m *memKV) ping() error { return nil }

func (m *memKV) close() {}

func copyBins(bins map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(bins))
	for k, v := range bins {
		out[k] = v
	}
	return out
}
