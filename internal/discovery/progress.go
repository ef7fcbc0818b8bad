package discovery

import "sync"

// Run states reported by the progress tracker
const (
	RunStatusIdle     = "idle"
	RunStatusRunning  = "running"
	RunStatusComplete = "complete"
	RunStatusError    = "error"
)

// Snapshot is a point-in-time copy of run progress, safe to hand to
// any number of concurrent observers
type Snapshot struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	Percent    int    `json:"percent"`
	CurrentVM  string `json:"current_vm,omitempty"`
	TotalVMs   int    `json:"total_vms"`
	ScannedVMs int    `json:"scanned_vms"`
	ErrorVMs   int    `json:"error_vms"`
	SkippedVMs int    `json:"skipped_vms"`
}

// Progress is the one piece of state shared between scan workers and
// observers. Workers mutate it through short critical sections;
// observers read value copies and never block a writer for long.
type Progress struct {
	mu   sync.Mutex
	snap Snapshot
	done int
}

func NewProgress() *Progress {
	return &Progress{snap: Snapshot{Status: RunStatusIdle}}
}

// Begin resets the tracker for a new run
func (p *Progress) Begin(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap = Snapshot{
		Status:   RunStatusRunning,
		Message:  "discovery started",
		TotalVMs: total,
	}
	p.done = 0
}

// StartVM records which VM a worker just picked up. With several
// workers running the field holds whichever started most recently.
func (p *Progress) StartVM(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.CurrentVM = name
	p.snap.Message = "scanning " + name
}

// FinishVM folds one finished VM into the counters
func (p *Progress) FinishVM(scanned, failed, skipped bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done++
	if scanned {
		p.snap.ScannedVMs++
	}
	if failed {
		p.snap.ErrorVMs++
	}
	if skipped {
		p.snap.SkippedVMs++
	}
	if p.snap.TotalVMs > 0 {
		p.snap.Percent = p.done * 100 / p.snap.TotalVMs
	}
}

// Complete marks the run finished
func (p *Progress) Complete(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.Status = RunStatusComplete
	p.snap.Message = message
	p.snap.Percent = 100
	p.snap.CurrentVM = ""
}

// Fail marks the run failed before completion
func (p *Progress) Fail(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.Status = RunStatusError
	p.snap.Message = message
	p.snap.CurrentVM = ""
}

// Snapshot returns a value copy of the current progress
func (p *Progress) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap
}
