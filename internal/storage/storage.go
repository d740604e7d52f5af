// Package storage keeps named dataset splits in a BoltDB catalog so the
// featurizer can be fitted and applied without re-reading the source CSVs.
//
// Each table is stored under the key "<name>/<split>" as a JSON record of its
// columns. Numeric cells are stored as strings so NaN and infinities survive
// the round trip.
package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"ml-wrappers/internal/dataset"

	"go.etcd.io/bbolt"
)

const (
	datasetsBucket = "datasets" // Bucket name for stored tables
	dbFile         = "datasets.db"
	keySeparator   = "/"
)

var (
	ErrNotFound    = errors.New("storage: dataset not found")
	ErrInvalidName = errors.New("storage: invalid dataset name")
)

// Store is a dataset catalog backed by BoltDB.
type Store struct {
	db *bbolt.DB
}

// Entry describes a stored split.
type Entry struct {
	Name     string    `json:"name"`
	Split    string    `json:"split"`
	Rows     int       `json:"rows"`
	Columns  []string  `json:"columns"`
	StoredAt time.Time `json:"stored_at"`
}

type tableRecord struct {
	Entry
	Data []columnRecord `json:"data"`
}

type columnRecord struct {
	Name    string      `json:"name"`
	Kind    string      `json:"kind"`
	Floats  []string    `json:"floats,omitempty"`
	Times   []time.Time `json:"times,omitempty"`
	Strings []string    `json:"strings,omitempty"`
}

// New opens (or creates) the catalog in dataPath.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, dbFile)

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(datasetsBucket)); err != nil {
			return fmt.Errorf("create datasets bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database. Closing twice is a no-op.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func key(name, split string) ([]byte, error) {
	if name == "" || split == "" || strings.Contains(name, keySeparator) || strings.Contains(split, keySeparator) {
		return nil, fmt.Errorf("%w: %q/%q", ErrInvalidName, name, split)
	}
	return []byte(name + keySeparator + split), nil
}

// PutTable stores t as split of dataset name, replacing any previous version.
func (s *Store) PutTable(name, split string, t *dataset.Table) error {
	k, err := key(name, split)
	if err != nil {
		return err
	}

	rows, _ := t.Dims()
	rec := tableRecord{
		Entry: Entry{
			Name:     name,
			Split:    split,
			Rows:     rows,
			Columns:  t.Names(),
			StoredAt: time.Now().UTC(),
		},
	}
	for _, c := range t.Columns() {
		rec.Data = append(rec.Data, encodeColumn(c))
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal table %s: %w", k, err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(datasetsBucket)).Put(k, data)
	})
}

// GetTable loads split of dataset name.
func (s *Store) GetTable(name, split string) (*dataset.Table, error) {
	k, err := key(name, split)
	if err != nil {
		return nil, err
	}

	var rec tableRecord
	err = s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(datasetsBucket)).Get(k)
		if v == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, k)
		}
		return json.Unmarshal(v, &rec)
	})
	if err != nil {
		return nil, err
	}

	cols := make([]dataset.Column, 0, len(rec.Data))
	for _, cr := range rec.Data {
		c, err := decodeColumn(cr)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", k, err)
		}
		cols = append(cols, c)
	}
	return dataset.NewTable(cols...)
}

// ListDatasets returns the stored splits, optionally restricted to dataset
// name, ordered by key.
func (s *Store) ListDatasets(name string) ([]Entry, error) {
	var prefix []byte
	if name != "" {
		prefix = []byte(name + keySeparator)
	}

	var entries []Entry
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(datasetsBucket)).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var rec struct{ Entry }
			if err := json.Unmarshal(v, &rec); err != nil {
				continue // Skip malformed records
			}
			entries = append(entries, rec.Entry)
		}
		return nil
	})
	return entries, err
}

// DeleteDataset removes every split of dataset name and reports how many were
// removed.
func (s *Store) DeleteDataset(name string) (int, error) {
	if name == "" || strings.Contains(name, keySeparator) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	prefix := []byte(name + keySeparator)

	removed := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(datasetsBucket))
		var keys [][]byte
		c := b.Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	return removed, err
}

// Names returns the distinct dataset names in the catalog.
func (s *Store) Names() ([]string, error) {
	entries, err := s.ListDatasets("")
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var names []string
	for _, e := range entries {
		if !seen[e.Name] {
			seen[e.Name] = true
			names = append(names, e.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func encodeColumn(c *dataset.Column) columnRecord {
	cr := columnRecord{Name: c.Name, Kind: c.Kind.String()}
	switch c.Kind {
	case dataset.Numeric:
		cr.Floats = make([]string, len(c.Floats))
		for i, v := range c.Floats {
			cr.Floats[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
	case dataset.Datetime:
		cr.Times = c.Times
	case dataset.String:
		cr.Strings = c.Strings
	}
	return cr
}

func decodeColumn(cr columnRecord) (dataset.Column, error) {
	kind, err := dataset.ParseColumnKind(cr.Kind)
	if err != nil {
		return dataset.Column{}, err
	}
	switch kind {
	case dataset.Datetime:
		times := make([]time.Time, len(cr.Times))
		for i, t := range cr.Times {
			// The zero instant marks a missing timestamp; keep it exactly zero.
			if !t.IsZero() {
				times[i] = t
			}
		}
		return dataset.DatetimeColumn(cr.Name, times...), nil
	case dataset.String:
		return dataset.StringColumn(cr.Name, append([]string{}, cr.Strings...)...), nil
	default:
		floats := make([]float64, len(cr.Floats))
		for i, s := range cr.Floats {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return dataset.Column{}, fmt.Errorf("column %q row %d: %w", cr.Name, i, err)
			}
			floats[i] = v
		}
		return dataset.NumericColumn(cr.Name, floats...), nil
	}
}
