package store

import (
	aero "github.com/aerospike/aerospike-client-go/v7"
	"github.com/aerospike/aerospike-client-go/v7/types"
	"github.com/pkg/errors"
)

// kvClient is the minimal (set, key)-addressed contract the store logic
// needs: point get/put/delete and a full-set scan. Backed by Aerospike in
// production and by an in-memory map in tests.
type kvClient interface {
	get(set, key string) (map[string]interface{}, bool, error)
	put(set, key string, bins map[string]interface{}) error
	del(set, key string) error
	scan(set string) ([]map[string]interface{}, error)
	ping() error
	close()
}

type aerospikeKV struct {
	client    *aero.Client
	namespace string
}

func newAerospikeKV(host string, port int, namespace string) (*aerospikeKV, error) {
	client, err := aero.NewClient(host, port)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to aerospike at %s:%d", host, port)
	}
	return &aerospikeKV{client: client, namespace: namespace}, nil
}

func (a *aerospikeKV) get(set, key string) (map[string]interface{}, bool, error) {
	k, err := aero.NewKey(a.namespace, set, key)
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to build key")
	}

	rec, aerr := a.client.Get(nil, k)
	if aerr != nil {
		if aerr.Matches(types.KEY_NOT_FOUND_ERROR) {
			return nil, false, nil
		}
		return nil, false, errors.Wrapf(aerr, "failed to get %s/%s", set, key)
	}
	return rec.Bins, true, nil
}

func (a *aerospikeKV) put(set, key string, bins map[string]interface{}) error {
	k, err := aero.NewKey(a.namespace, set, key)
	if err != nil {
		return errors.Wrap(err, "failed to build key")
	}
	if aerr := a.client.Put(nil, k, aero.BinMap(bins)); aerr != nil {
		return errors.Wrapf(aerr, "failed to put %s/%s", set, key)
	}
	return nil
}

func (a *aerospikeKV) del(set, key string) error {
	k, err := aero.NewKey(a.namespace, set, key)
	if err != nil {
		return errors.Wrap(err, "failed to build key")
	}
	if _, aerr := a.client.Delete(nil, k); aerr != nil {
		return errors.Wrapf(aerr, "failed to delete %s/%s", set, key)
	}
	return nil
}

// scan reads the whole set. Filtering happens client-side; no server-side
// query language is assumed.
func (a *aerospikeKV) scan(set string) ([]map[string]interface{}, error) {
	rs, aerr := a.client.ScanAll(nil, a.namespace, set)
	if aerr != nil {
		return nil, errors.Wrapf(aerr, "failed to scan set %s", set)
	}

	records := []map[string]interface{}{}
	for res := range rs.Results() {
		if res.Err != nil {
			return nil, errors.Wrapf(res.Err, "scan of set %s failed mid-stream", set)
		}
		records = append(records, res.Record.Bins)
	}
	return records, nil
}

func (a *aerospikeKV) ping() error {
	if !a.client.IsConnected() {
		return errors.New("aerospike client not connected")
	}
	return nil
}

func (a *aerospikeKV) close() {
	a.client.Close()
}
