// Package history persists a record of completed downloads, so that re-running the tool
// against the same URLs can skip work already done.
package history

import (
	"encoding/json"
	"time"

	"go.etcd.io/bbolt"
)

var buckets = struct {
	Metadata  []byte
	Downloads []byte
}{
	Metadata:  []byte("__metadata__"),
	Downloads: []byte("downloads"),
}

var metadataKeys = struct {
	Version []byte
}{
	Version: []byte("version"),
}

const currentVersion = 1

// Record is one completed download, keyed by its source URL.
type Record struct {
	URL          string    `json:"url"`
	Resolver     string    `json:"resolver"`
	Title        string    `json:"title"`
	Path         string    `json:"path"`
	DownloadedAt time.Time `json:"downloaded_at"`
}

type DB struct {
	db *bbolt.DB
}

func Open(path string) (*DB, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		metadata, err := tx.CreateBucketIfNotExists(buckets.Metadata)
		if err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(buckets.Downloads); err != nil {
			return err
		}

		var version int
		if versionBytes := metadata.Get(metadataKeys.Version); versionBytes != nil {
			if err := json.Unmarshal(versionBytes, &version); err != nil {
				return err
			}
		}

		versionBytes, err := json.Marshal(currentVersion)
		if err != nil {
			return err
		}
		return metadata.Put(metadataKeys.Version, versionBytes)
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &DB{db}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) Put(record Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return d.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(buckets.Downloads).Put([]byte(record.URL), data)
	})
}

// Get returns the record for a URL, or (nil, nil) when the URL was never downloaded.
func (d *DB) Get(url string) (*Record, error) {
	var record *Record
	err := d.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(buckets.Downloads).Get([]byte(url))
		if data == nil {
			return nil
		}
		record = &Record{}
		return json.Unmarshal(data, record)
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (d *DB) List() ([]Record, error) {
	var records []Record
	err := d.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(buckets.Downloads).ForEach(func(k, v []byte) error {
			var record Record
			if err := json.Unmarshal(v, &record); err != nil {
				return err
			}
			records = append(records, record)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (d *DB) Delete(url string) error {
	return d.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(buckets.Downloads).Delete([]byte(url))
	})
}
