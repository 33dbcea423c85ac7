// Package lockfile implements advisory per-source locking for
// independent invocations sharing one storage root. A lock is a file
// holding the owner's process id; a lock whose owner is gone, or which
// is older than the staleness threshold, may be reclaimed by anyone.
//
// This is crash-tolerant batch locking, not a transactional lock: two
// processes racing on lock creation can both win. That is acceptable
// for a low-frequency scheduled job.
package lockfile

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/sorreltree/datalocker/internal/layout"
)

// StaleAfter is how old a lock file must be before a live owner is
// presumed wedged and the lock becomes reclaimable.
const StaleAfter = 3 * time.Minute

// ProcessTable reports on the operating system's process table. It is
// an interface so tests can substitute a fake.
type ProcessTable interface {
	// IsWorker reports whether pid is alive and its command identifies
	// it as an instance of this tool.
	IsWorker(pid int) bool
	// Terminate asks pid to stop. Best effort; "no such process" is
	// not an error.
	Terminate(pid int)
}

// Manager acquires and releases per-source locks.
type Manager struct {
	layout layout.Layout
	pid    int
	procs  ProcessTable
	clock  clock.Clock
	log    *zap.Logger
}

// New returns a Manager that locks on behalf of pid.
func New(l layout.Layout, pid int, procs ProcessTable, clk clock.Clock, log *zap.Logger) *Manager {
	return &Manager{layout: l, pid: pid, procs: procs, clock: clk, log: log}
}

// Acquire attempts to take the lock for a source. It returns false when
// another live worker holds a fresh lock; stale or orphaned locks are
// reclaimed. I/O failures are returned, never swallowed.
func (m *Manager) Acquire(rawURL string) (bool, error) {
	lockPath, err := m.layout.LockPath(rawURL)
	if err != nil {
		return false, err
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return false, fmt.Errorf("create source directory: %w", err)
	}

	info, err := os.Stat(lockPath)
	if os.IsNotExist(err) {
		if err := m.write(lockPath); err != nil {
			return false, err
		}
		m.log.Debug("lock acquired",
			zap.String("url", rawURL), zap.Int("pid", m.pid))
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat lock file: %w", err)
	}

	owner, err := readOwner(lockPath)
	if err != nil {
		return false, err
	}

	age := m.clock.Now().Sub(info.ModTime())
	if m.procs.IsWorker(owner) && age < StaleAfter {
		m.log.Debug("lock held by live worker",
			zap.String("url", rawURL), zap.Int("owner", owner),
			zap.Duration("age", age))
		return false, nil
	}

	// Owner is dead or the lock has gone stale. Nudge the presumed
	// owner, then take over.
	m.procs.Terminate(owner)
	m.log.Info("reclaiming stale lock",
		zap.String("url", rawURL), zap.Int("owner", owner),
		zap.Duration("age", age))
	if err := m.write(lockPath); err != nil {
		return false, err
	}
	return true, nil
}

// Release removes the lock for a source if this process owns it. A
// missing lock or a lock owned by someone else is logged and left
// alone; only the owner may remove its lock.
func (m *Manager) Release(rawURL string) error {
	lockPath, err := m.layout.LockPath(rawURL)
	if err != nil {
		return err
	}
	owner, err := readOwner(lockPath)
	if os.IsNotExist(err) {
		m.log.Debug("lock already gone", zap.String("url", rawURL))
		return nil
	}
	if err != nil {
		return err
	}
	if owner != m.pid {
		m.log.Warn("refusing to release another worker's lock",
			zap.String("url", rawURL), zap.Int("owner", owner),
			zap.Int("pid", m.pid))
		return nil
	}
	if err := os.Remove(lockPath); err != nil {
		return fmt.Errorf("remove lock file: %w", err)
	}
	m.log.Debug("lock released",
		zap.String("url", rawURL), zap.Int("pid", m.pid))
	return nil
}

func (m *Manager) write(lockPath string) error {
	data := []byte(strconv.Itoa(m.pid) + "\n")
	if err := os.WriteFile(lockPath, data, 0o644); err != nil {
		return fmt.Errorf("write lock file: %w", err)
	}
	return nil
}

func readOwner(lockPath string) (int, error) {
	data, err := os.ReadFile(lockPath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, err
		}
		return 0, fmt.Errorf("read lock file: %w", err)
	}
	pid, err := strconv.Atoi(string(bytes.TrimSpace(data)))
	if err != nil {
		return 0, fmt.Errorf("lock file %s: bad owner pid: %w", lockPath, err)
	}
	return pid, nil
}
