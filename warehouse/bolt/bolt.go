// Package bolt persists warehouse charts and machine snapshots in a
// BoltDB file.
package bolt

import (
	"context"
	"encoding/json"
	"time"

	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"

	"github.com/rabe42/state-machines/chart"
	"github.com/rabe42/state-machines/warehouse"
)

var (
	chartsBucket   = []byte("charts")
	machinesBucket = []byte("machines")
)

// Store implements warehouse.Store on a BoltDB file.
//
// A nil *Store is a no-op, so callers don't have to guard every call
// when persistence is off.
type Store struct {
	Debug bool

	filename string
	db       *bolt.DB
}

// NewStore makes a Store for the given file.  Call Open before use.
func NewStore(filename string) *Store {
	return &Store{
		filename: filename,
	}
}

// Open opens the file and makes sure the buckets exist.
func (s *Store) Open(ctx context.Context) error {
	opts := &bolt.Options{
		Timeout: time.Second,
	}
	db, err := bolt.Open(s.filename, 0644, opts)
	if err != nil {
		return err
	}
	s.db = db
	return s.db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(chartsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(machinesBucket)
		return err
	})
}

// Close closes the file.
func (s *Store) Close(ctx context.Context) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) logf(format string, args ...interface{}) {
	if s == nil {
		return
	}
	if s.Debug {
		log.Debugf("bolt "+format, args...)
	}
}

// SaveChart writes a chart definition.
func (s *Store) SaveChart(ctx context.Context, def *chart.Node) error {
	if s == nil || s.db == nil {
		return nil
	}
	js, err := json.Marshal(def)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(chartsBucket).Put([]byte(def.Id), js)
	})
}

// RemoveChart deletes a chart definition.
func (s *Store) RemoveChart(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(chartsBucket).Delete([]byte(id))
	})
}

// LoadCharts reads every stored chart definition.
func (s *Store) LoadCharts(ctx context.Context) ([]*chart.Node, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	defs := make([]*chart.Node, 0, 16)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(chartsBucket).Cursor()
		for id, bs := c.First(); id != nil; id, bs = c.Next() {
			var n chart.Node
			if err := json.Unmarshal(bs, &n); err != nil {
				return err
			}
			defs = append(defs, &n)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logf("LoadCharts found %d charts", len(defs))
	return defs, nil
}

// WriteMachines persists machine snapshots.  Entries with Deleted set
// are removed instead.
func (s *Store) WriteMachines(ctx context.Context, mss []*warehouse.MachineState) error {
	if s == nil || s.db == nil {
		return nil
	}
	if 0 == len(mss) {
		return nil
	}

	vals := make(map[string][]byte, len(mss))
	for _, ms := range mss {
		if ms.Deleted {
			vals[ms.Id] = nil
			continue
		}
		// The id is the key, so drop it from the value.
		c := *ms
		c.Id = ""
		js, err := json.Marshal(&c)
		if err != nil {
			return err
		}
		vals[ms.Id] = js
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(machinesBucket)
		for id, bs := range vals {
			var (
				key = []byte(id)
				err error
			)
			if bs == nil {
				err = b.Delete(key)
			} else {
				err = b.Put(key, bs)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadMachines reads every stored machine snapshot.
func (s *Store) LoadMachines(ctx context.Context) ([]*warehouse.MachineState, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	mss := make([]*warehouse.MachineState, 0, 32)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(machinesBucket).Cursor()
		for id, bs := c.First(); id != nil; id, bs = c.Next() {
			var ms warehouse.MachineState
			if err := json.Unmarshal(bs, &ms); err != nil {
				return err
			}
			ms.Id = string(id)
			mss = append(mss, &ms)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logf("LoadMachines found %d machines", len(mss))
	return mss, nil
}
