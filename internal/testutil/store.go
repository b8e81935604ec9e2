package testutil

import (
	"context"
	"os"
	"path/filepath"

	"github.com/andrebq/cgitauth/credstore"
)

type (
	TestLog interface {
		Fatal(...interface{})
		Log(...interface{})
	}
)

// AcquireStore creates an initialized credential store in a temp dir. The
// returned function closes the store and removes the directory.
func AcquireStore(ctx context.Context, t TestLog, name string) (*credstore.Store, func()) {
	dir, err := os.MkdirTemp("", "cgitauth-tests")
	if err != nil {
		t.Fatal(err)
	}
	abspath := filepath.Join(dir, name+".db")
	store, err := credstore.Open(ctx, abspath, true)
	if err != nil {
		t.Fatal(err)
	}
	err = store.Init(ctx)
	if err != nil {
		t.Fatal(err)
	}
	return store, func() {
		err := store.Close()
		if err != nil {
			t.Log("unable to close store", err)
		}
		err = os.RemoveAll(dir)
		if err != nil {
			t.Log("unable to cleanup temp dir", dir)
		}
	}
}
