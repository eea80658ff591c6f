package diyredis

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sparsebitd/sparsebitd/bitset"
)

func TestRdbSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	srv := MakeServer()
	srv.RdbDir = dir
	srv.RdbFilename = "dump.rdb"

	h := bitset.New()
	for i := uint64(0); i < 20000; i++ {
		_, err := h.Insert(i)
		assert.NoError(t, err)
	}
	srv.dbs[0].valueDB.Store("myset", h)
	srv.dbs[0].valueDB.Store("greeting", "hello")

	assert.NoError(t, srv.SaveRdb())
	assert.FileExists(t, filepath.Join(dir, "dump.rdb"))

	loaded := MakeServer()
	loaded.RdbDir = dir
	loaded.RdbFilename = "dump.rdb"
	assert.NoError(t, loaded.LoadRdb())

	v, ok := loaded.dbs[0].valueDB.Load("myset")
	assert.True(t, ok)
	loadedHandle, isHandle := v.(*bitset.Handle)
	assert.True(t, isHandle)
	assert.Equal(t, 20000, loadedHandle.Count())
	contains42, err := loadedHandle.Contains(42)
	assert.NoError(t, err)
	assert.True(t, contains42)

	greeting, ok := loaded.dbs[0].valueDB.Load("greeting")
	assert.True(t, ok)
	assert.Equal(t, "hello", greeting)
}

func TestRdbLoadMissingFileIsNoop(t *testing.T) {
	srv := MakeServer()
	srv.RdbDir = t.TempDir()
	srv.RdbFilename = "does-not-exist.rdb"
	assert.NoError(t, srv.LoadRdb())
}
