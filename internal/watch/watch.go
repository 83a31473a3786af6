// Package watch observes run directories for collaborator artifacts and
// turns them into bus messages: result.json becomes task_complete or
// task_failed, judgment.json becomes quality_gate_failed on a FAIL.
package watch

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/kawanishi0117/agent-company-sub000/internal/bus"
	"github.com/kawanishi0117/agent-company-sub000/internal/errkind"
	"github.com/kawanishi0117/agent-company-sub000/pkg/models"
)

// Resolver maps a run id to the worker and sub-task it was issued for.
// The manager registers each assignment's run id; the watcher uses the
// mapping to address messages.
type Resolver interface {
	ResolveRun(runID string) (workerID, subTaskID string, ok bool)
}

// Watcher converts run artifacts into bus messages for the manager.
type Watcher struct {
	bus       *bus.Bus
	root      string
	managerID string
	resolver  Resolver

	mu   sync.Mutex
	seen map[string]bool
	fw   *fsnotify.Watcher
	wg   sync.WaitGroup
}

// New creates a watcher over <root>/runtime/runs.
func New(b *bus.Bus, root, managerID string, resolver Resolver) *Watcher {
	return &Watcher{
		bus:       b,
		root:      root,
		managerID: managerID,
		resolver:  resolver,
		seen:      make(map[string]bool),
	}
}

// runsDir returns the watched directory.
func (w *Watcher) runsDir() string {
	return filepath.Join(w.root, "runtime", "runs")
}

// Start begins watching. New run directories are added as they appear;
// existing artifacts are processed once at startup.
func (w *Watcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errkind.Wrap(errkind.CommunicationError, err)
	}
	w.fw = fw

	dir := w.runsDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		fw.Close()
		return err
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return errkind.Wrap(errkind.CommunicationError, err)
	}

	// Pick up runs that already exist.
	if entries, err := os.ReadDir(dir); err == nil {
		for _, e := range entries {
			if e.IsDir() {
				runDir := filepath.Join(dir, e.Name())
				_ = fw.Add(runDir)
				w.scanRunDir(runDir)
			}
		}
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer fw.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-fw.Events:
				if !ok {
					return
				}
				w.handleEvent(event)
			case _, ok := <-fw.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return nil
}

// Wait blocks until the watch loop has exited.
func (w *Watcher) Wait() {
	w.wg.Wait()
}

// handleEvent reacts to one filesystem event.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			// A new run directory appeared.
			if filepath.Dir(event.Name) == w.runsDir() {
				_ = w.fw.Add(event.Name)
			}
			return
		}
	}
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
		return
	}

	switch filepath.Base(event.Name) {
	case "result.json":
		w.processResult(event.Name)
	case "judgment.json":
		w.processJudgment(event.Name)
	}
}

// scanRunDir processes artifacts already present in a run directory.
func (w *Watcher) scanRunDir(dir string) {
	for _, name := range []string{"result.json", "judgment.json"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			if name == "result.json" {
				w.processResult(path)
			} else {
				w.processJudgment(path)
			}
		}
	}
}

// markSeen returns false if the artifact was already dispatched.
func (w *Watcher) markSeen(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.seen[key] {
		return false
	}
	w.seen[key] = true
	return true
}

// processResult publishes task_complete or task_failed for a finished run.
func (w *Watcher) processResult(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	var result models.RunResult
	if err := json.Unmarshal(data, &result); err != nil {
		return
	}
	if result.Status == "running" {
		return
	}
	if !w.markSeen(path + ":" + result.Status) {
		return
	}

	workerID, subTaskID, ok := w.resolveRun(result.RunID, result.TicketID)
	if !ok {
		return
	}

	payload := bus.TaskResultPayload{
		SubTaskID: subTaskID,
		WorkerID:  workerID,
		Artifacts: result.Artifacts,
	}
	msgType := bus.TypeTaskComplete
	if result.Status != "success" {
		msgType = bus.TypeTaskFailed
		payload.Error = &models.TaskError{
			Code:        "UNKNOWN",
			Message:     strings.Join(result.Logs, "; "),
			Recoverable: true,
		}
	}

	msg, err := bus.New(msgType, workerID, w.managerID, result.RunID, payload)
	if err != nil {
		return
	}
	_ = w.bus.Publish(msg)
}

// processJudgment publishes quality_gate_failed for a failing judgment.
func (w *Watcher) processJudgment(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	var judgment models.Judgment
	if err := json.Unmarshal(data, &judgment); err != nil {
		return
	}
	if judgment.Passed() {
		return
	}
	if !w.markSeen(path + ":" + judgment.Status) {
		return
	}

	workerID, subTaskID, ok := w.resolveRun(judgment.RunID, "")
	if !ok {
		return
	}

	msg, err := bus.New(bus.TypeQualityGateFailed, QualityAuthoritySender, w.managerID, judgment.RunID, bus.QualityGatePayload{
		SubTaskID: subTaskID,
		WorkerID:  workerID,
		RunID:     judgment.RunID,
		Checks:    judgment.Checks,
		Reasons:   judgment.Reasons,
	})
	if err != nil {
		return
	}
	_ = w.bus.Publish(msg)
}

// QualityAuthoritySender is the from-address used for judgment messages.
const QualityAuthoritySender = "quality_authority"

// resolveRun maps a run to its worker and sub-task, falling back to the
// ticket id from the artifact when no resolver is wired.
func (w *Watcher) resolveRun(runID, ticketID string) (string, string, bool) {
	if w.resolver != nil {
		if workerID, subTaskID, ok := w.resolver.ResolveRun(runID); ok {
			return workerID, subTaskID, true
		}
	}
	if ticketID != "" {
		return "", ticketID, true
	}
	return "", "", false
}
