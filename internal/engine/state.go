package engine

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Xilinx-CNS/sfptpd-sub004/internal/logging"
)

// saveState writes each binding's persistent state record to
// <dir>/<name>.state (spec §6: "under a state directory ... for each
// sync-instance write a freeform text record on each save-state tick").
// It writes to a temporary file and renames into place so a reader never
// observes a half-written record.
func (e *Engine) saveState(dir string) error {
	e.mu.Lock()
	bindings := append([]*Binding(nil), e.bindings...)
	e.mu.Unlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("engine: save_state: %w", err)
	}

	var firstErr error
	for _, b := range bindings {
		if err := e.writeStateFile(dir, b); err != nil {
			e.logger.Log(logging.LevelWarning, "save_state failed",
				logging.F("instance", b.Name), logging.F("error", err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (e *Engine) writeStateFile(dir string, b *Binding) error {
	final := filepath.Join(dir, b.Name+".state")
	tmp := final + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("engine: create %s: %w", tmp, err)
	}
	if err := e.instanceSaveState(b.Instance, f); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("engine: save_state %s: %w", b.Name, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("engine: close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("engine: rename %s: %w", tmp, err)
	}
	return nil
}
