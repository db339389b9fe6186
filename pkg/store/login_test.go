package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	bolt "go.etcd.io/bbolt"

	. "src.picosh.dev/pkg/store/storedefs"
	"src.picosh.dev/pkg/testutil"
)

var logins = []Login{
	{Time: time.Unix(100, 0).UTC(), Remote: "10.0.0.2:5000", Session: "a", Outcome: Accepted},
	{Time: time.Unix(200, 0).UTC(), Remote: "10.0.0.3:5001", Session: "b", Outcome: Rejected},
	{Time: time.Unix(300, 0).UTC(), Remote: "10.0.0.4:5002", Session: "c", Outcome: NoHandshake},
}

func TestLogins(t *testing.T) {
	st := MustTempStore(t)
	for i, l := range logins {
		seq, err := st.AddLogin(l)
		if err != nil {
			t.Fatal(err)
		}
		if seq != i+1 {
			t.Errorf("AddLogin -> seq %d, want %d", seq, i+1)
		}
	}

	got, err := st.Logins(2)
	if err != nil {
		t.Fatal(err)
	}
	want := []Login{withSeq(logins[2], 3), withSeq(logins[1], 2)}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Logins(2) (-want +got):\n%s", diff)
	}

	all, _ := st.Logins(0)
	if len(all) != 3 || all[2].Seq != 1 {
		t.Errorf("Logins(0) = %v", all)
	}

	l, err := st.Login(2)
	if err != nil || l.Remote != "10.0.0.3:5001" || l.Seq != 2 {
		t.Errorf("Login(2) -> %v, %v", l, err)
	}
	if _, err := st.Login(9); !errors.Is(err, ErrNoMatchingLogin) {
		t.Errorf("Login(9) -> %v, want ErrNoMatchingLogin", err)
	}
}

func withSeq(l Login, seq int) Login {
	l.Seq = seq
	return l
}

func TestLogins_Empty(t *testing.T) {
	st := MustTempStore(t)
	got, err := st.Logins(5)
	if len(got) != 0 || err != nil {
		t.Errorf("got (%v, %v)", got, err)
	}
}

func TestLogins_PersistAcrossOpen(t *testing.T) {
	path := filepath.Join(testutil.TempDir(t), "db")
	st, err := NewStore(path)
	if err != nil {
		t.Fatal(err)
	}
	st.AddLogin(logins[0])
	st.Close()

	st, err = NewStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	got, _ := st.Logins(0)
	if len(got) != 1 || got[0].Session != "a" {
		t.Errorf("got %v", got)
	}
}

func TestLogins_SkipsCorruptRecords(t *testing.T) {
	path := filepath.Join(testutil.TempDir(t), "db")
	db, err := bolt.Open(path, 0644, nil)
	if err != nil {
		t.Fatal(err)
	}
	st, err := NewStoreFromDB(db)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	st.AddLogin(logins[0])
	db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketLogin)).Put(marshalSeq(2), []byte("{not json"))
	})
	got, err := st.Logins(0)
	if err != nil || len(got) != 1 || got[0].Seq != 1 {
		t.Errorf("got (%v, %v)", got, err)
	}
}

func TestNewStore_Locked(t *testing.T) {
	testutil.Set(t, &openTimeout, 10*time.Millisecond)
	path := filepath.Join(testutil.TempDir(t), "db")
	st, err := NewStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	if _, err := NewStore(path); err == nil {
		t.Errorf("opening a locked store succeeded")
	}
}
