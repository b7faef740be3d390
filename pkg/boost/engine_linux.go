//go:build linux

package boost

import (
	"github.com/clrkwllms/stalld/pkg/config"
	"github.com/clrkwllms/stalld/pkg/model"
)

// New builds an Engine wired to the real scheduling-attribute syscalls.
func New(cfg *config.Config, method model.Method) *Engine {
	return newEngine(cfg, method, saveAttrs, restoreAttrs, applyDeadline, setFixedPriority)
}
