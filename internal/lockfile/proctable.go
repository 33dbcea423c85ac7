package lockfile

import (
	"strings"

	"github.com/shirou/gopsutil/v4/process"
)

// OSTable is the ProcessTable backed by the host's real process table.
type OSTable struct {
	tool string
}

// NewOSTable returns an OSTable that recognizes processes whose command
// name contains tool.
func NewOSTable(tool string) *OSTable {
	return &OSTable{tool: tool}
}

// IsWorker reports whether pid is running and looks like another
// instance of this tool.
func (t *OSTable) IsWorker(pid int) bool {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return false
	}
	name, err := p.Name()
	if err != nil {
		return false
	}
	return strings.Contains(name, t.tool)
}

// Terminate sends the process a termination signal. Failures, including
// the process no longer existing, are ignored.
func (t *OSTable) Terminate(pid int) {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return
	}
	_ = p.Terminate()
}
