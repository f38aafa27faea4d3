package events

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pixperk/escrowd/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var bucketEvents = []byte("events")

var ErrArchiveClosed = errors.New("archive closed")

// Archive stores events in a bolt bucket keyed by big-endian sequence, so a
// cursor walks them in commit order.
type Archive struct {
	db *bolt.DB
}

func OpenArchive(dataDir string) (*Archive, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, err
	}

	db, err := bolt.Open(filepath.Join(dataDir, "events.db"), 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open event archive: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketEvents)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Archive{db: db}, nil
}

func (a *Archive) Publish(_ context.Context, events []types.Event) error {
	if a.db == nil {
		return ErrArchiveClosed
	}

	return a.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketEvents)
		for _, ev := range events {
			data, err := json.Marshal(ev)
			if err != nil {
				return err
			}
			if err := b.Put(seqKey(ev.Seq), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Range returns up to limit events with Seq >= from. limit <= 0 means all.
func (a *Archive) Range(from uint64, limit int) ([]types.Event, error) {
	if a.db == nil {
		return nil, ErrArchiveClosed
	}

	var out []types.Event
	err := a.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketEvents).Cursor()
		for k, v := c.Seek(seqKey(from)); k != nil; k, v = c.Next() {
			if limit > 0 && len(out) >= limit {
				break
			}
			var ev types.Event
			if err := json.Unmarshal(v, &ev); err != nil {
				return fmt.Errorf("decode event %d: %w", binary.BigEndian.Uint64(k), err)
			}
			out = append(out, ev)
		}
		return nil
	})
	return out, err
}

// LastSeq is the highest archived sequence, 0 when empty.
func (a *Archive) LastSeq() (uint64, error) {
	if a.db == nil {
		return 0, ErrArchiveClosed
	}

	var seq uint64
	err := a.db.View(func(tx *bolt.Tx) error {
		if k, _ := tx.Bucket(bucketEvents).Cursor().Last(); k != nil {
			seq = binary.BigEndian.Uint64(k)
		}
		return nil
	})
	return seq, err
}

func (a *Archive) Close() error {
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}

func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}
