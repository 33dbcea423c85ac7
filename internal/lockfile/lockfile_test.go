package lockfile_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/sorreltree/datalocker/internal/layout"
	"github.com/sorreltree/datalocker/internal/lockfile"
)

const testURL = "https://example.com/feed"

// fakeTable is a ProcessTable with a fixed set of live worker pids.
type fakeTable struct {
	workers    map[int]bool
	terminated []int
}

func (f *fakeTable) IsWorker(pid int) bool { return f.workers[pid] }
func (f *fakeTable) Terminate(pid int)     { f.terminated = append(f.terminated, pid) }

func newManager(t *testing.T, root string, pid int, table lockfile.ProcessTable) *lockfile.Manager {
	t.Helper()
	if table == nil {
		table = &fakeTable{workers: map[int]bool{}}
	}
	return lockfile.New(layout.New(root), pid, table, clock.New(), zaptest.NewLogger(t))
}

func lockPath(t *testing.T, root string) string {
	t.Helper()
	p, err := layout.New(root).LockPath(testURL)
	require.NoError(t, err)
	return p
}

func TestAcquireCreatesLock(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	m := newManager(t, root, 1234, nil)

	ok, err := m.Acquire(testURL)
	require.NoError(t, err)
	assert.True(t, ok)

	data, err := os.ReadFile(lockPath(t, root))
	require.NoError(t, err)
	assert.Equal(t, "1234\n", string(data))
}

func TestAcquireContentionWithLiveWorker(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	table := &fakeTable{workers: map[int]bool{1111: true}}

	first := newManager(t, root, 1111, nil)
	ok, err := first.Acquire(testURL)
	require.NoError(t, err)
	require.True(t, ok)

	second := newManager(t, root, 2222, table)
	ok, err = second.Acquire(testURL)
	require.NoError(t, err)
	assert.False(t, ok, "fresh lock held by a live worker must not be reclaimed")
	assert.Empty(t, table.terminated)
}

func TestAcquireReclaimsDeadOwner(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	first := newManager(t, root, 1111, nil)
	ok, err := first.Acquire(testURL)
	require.NoError(t, err)
	require.True(t, ok)

	// Owner pid 1111 is not in the table: treated as dead even though
	// the lock is fresh.
	table := &fakeTable{workers: map[int]bool{}}
	second := newManager(t, root, 2222, table)
	ok, err = second.Acquire(testURL)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []int{1111}, table.terminated)

	data, err := os.ReadFile(lockPath(t, root))
	require.NoError(t, err)
	assert.Equal(t, "2222\n", string(data))
}

func TestAcquireReclaimsStaleLiveOwner(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	table := &fakeTable{workers: map[int]bool{1111: true}}

	first := newManager(t, root, 1111, nil)
	ok, err := first.Acquire(testURL)
	require.NoError(t, err)
	require.True(t, ok)

	// Age the lock past the staleness threshold.
	old := time.Now().Add(-lockfile.StaleAfter - time.Minute)
	require.NoError(t, os.Chtimes(lockPath(t, root), old, old))

	second := newManager(t, root, 2222, table)
	ok, err = second.Acquire(testURL)
	require.NoError(t, err)
	assert.True(t, ok, "a lock past the staleness threshold is reclaimable even from a live owner")
	assert.Equal(t, []int{1111}, table.terminated)
}

func TestReleaseOnlyByOwner(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	owner := newManager(t, root, 1111, nil)
	ok, err := owner.Acquire(testURL)
	require.NoError(t, err)
	require.True(t, ok)

	other := newManager(t, root, 2222, nil)
	require.NoError(t, other.Release(testURL))

	data, err := os.ReadFile(lockPath(t, root))
	require.NoError(t, err, "lock must survive a release by a non-owner")
	assert.Equal(t, "1111\n", string(data))

	require.NoError(t, owner.Release(testURL))
	_, err = os.Stat(lockPath(t, root))
	assert.True(t, os.IsNotExist(err))
}

func TestReleaseMissingLockIsNoop(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	m := newManager(t, root, 1111, nil)
	require.NoError(t, m.Release(testURL))
}

func TestAcquireRejectsCorruptLock(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	p := lockPath(t, root)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte("not-a-pid\n"), 0o644))

	m := newManager(t, root, 1234, nil)
	_, err := m.Acquire(testURL)
	assert.Error(t, err)
}

func TestOSTableDoesNotRecognizeSelf(t *testing.T) {
	t.Parallel()

	// The test binary's name will not contain "datalocker", so our own
	// live pid must not be treated as a worker.
	table := lockfile.NewOSTable("datalocker")
	assert.False(t, table.IsWorker(os.Getpid()))
	assert.False(t, table.IsWorker(1<<30), "absurd pid should not be a worker")
}
