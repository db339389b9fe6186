package store

import (
	"encoding/binary"
	"encoding/json"

	bolt "go.etcd.io/bbolt"

	. "src.picosh.dev/pkg/store/storedefs"
)

const bucketLogin = "login"

func init() {
	initDB["initialize login table"] = func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketLogin))
		return err
	}
}

// AddLogin records a login attempt and returns its sequence number.
func (s *dbStore) AddLogin(l Login) (int, error) {
	v, err := json.Marshal(l)
	if err != nil {
		return 0, err
	}
	var seq uint64
	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketLogin))
		seq, err = b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put(marshalSeq(seq), v)
	})
	return int(seq), err
}

// Login queries the login with the given sequence number.
func (s *dbStore) Login(seq int) (Login, error) {
	var l Login
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucketLogin)).Get(marshalSeq(uint64(seq)))
		if v == nil {
			return ErrNoMatchingLogin
		}
		return unmarshalLogin(marshalSeq(uint64(seq)), v, &l)
	})
	return l, err
}

// Logins returns up to n of the most recent logins, newest first.
func (s *dbStore) Logins(n int) ([]Login, error) {
	var logins []Login
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(bucketLogin)).Cursor()
		for k, v := c.Last(); k != nil && (n <= 0 || len(logins) < n); k, v = c.Prev() {
			var l Login
			if err := unmarshalLogin(k, v, &l); err != nil {
				logger.Warn("skipping corrupt login record", "seq", unmarshalSeq(k), "err", err)
				continue
			}
			logins = append(logins, l)
		}
		return nil
	})
	return logins, err
}

func unmarshalLogin(k, v []byte, l *Login) error {
	if err := json.Unmarshal(v, l); err != nil {
		return err
	}
	l.Seq = int(unmarshalSeq(k))
	return nil
}

func marshalSeq(seq uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, seq)
	return b
}

func unmarshalSeq(key []byte) uint64 {
	return binary.BigEndian.Uint64(key)
}
