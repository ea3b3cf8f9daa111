// Package ui renders CLI output: ingestion progress, document selection,
// and styled text. Interactive components are used only on a TTY.
package ui

import (
	"context"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/Aman-CERP/docrag/internal/async"
)

// Renderer displays ingestion task progress.
type Renderer interface {
	// Start initializes the renderer.
	Start(ctx context.Context) error
	// Update shows the latest state of a task.
	Update(task async.TaskSnapshot)
	// Complete shows the final summary and ends rendering.
	Complete(summary Summary)
	// Stop releases the terminal.
	Stop() error
}

// Summary is shown when every task has finished.
type Summary struct {
	Completed int
	Failed    int
	Files     int
	Chunks    int
}

// Config configures a renderer.
type Config struct {
	Output     io.Writer
	ForcePlain bool
	NoColor    bool
}

// NewRenderer returns a progress-bar renderer on an interactive terminal and
// a line-per-change renderer otherwise.
func NewRenderer(cfg Config) Renderer {
	if cfg.ForcePlain || !IsTTY(cfg.Output) || DetectCI() {
		return NewPlainRenderer(cfg)
	}
	return NewTUIRenderer(cfg)
}

// IsTTY reports whether w is a terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// IsInteractive reports whether both stdin and stdout are terminals.
func IsInteractive() bool {
	return IsTTY(os.Stdout) && isatty.IsTerminal(os.Stdin.Fd())
}

// DetectNoColor reports whether NO_COLOR is set.
func DetectNoColor() bool {
	_, ok := os.LookupEnv("NO_COLOR")
	return ok
}

// DetectCI reports whether the process runs under a CI system.
func DetectCI() bool {
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"} {
		if _, ok := os.LookupEnv(v); ok {
			return true
		}
	}
	return false
}
