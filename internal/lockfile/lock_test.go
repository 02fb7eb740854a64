package lockfile

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	release, err := Lock(path)
	require.NoError(t, err)
	assert.FileExists(t, path+".lock")

	_, err = TryLock(path)
	assert.ErrorIs(t, err, ErrLockBusy)

	require.NoError(t, release())

	release, err = TryLock(path)
	require.NoError(t, err)
	require.NoError(t, release())
}

func TestLockSerializesWriters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "counter")
	require.NoError(t, os.WriteFile(path, []byte("0"), 0600))

	const workers, rounds = 4, 25
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				release, err := Lock(path)
				if !assert.NoError(t, err) {
					return
				}
				data, _ := os.ReadFile(path)
				n, _ := strconv.Atoi(strings.TrimSpace(string(data)))
				_ = os.WriteFile(path, []byte(strconv.Itoa(n+1)), 0600)
				assert.NoError(t, release())
			}
		}()
	}
	wg.Wait()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(workers*rounds), string(data))
}

func TestLockMissingDirectory(t *testing.T) {
	_, err := Lock(filepath.Join(t.TempDir(), "missing", "config.yaml"))
	assert.Error(t, err)
}
