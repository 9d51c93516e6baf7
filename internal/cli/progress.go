package cli

import (
	"fmt"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/codescribe-dev/codescribe/internal/orchestrator"
)

// CLIProgressReporter renders task completion as a progress bar.
type CLIProgressReporter struct {
	quiet bool

	mu     sync.Mutex
	bar    *progressbar.ProgressBar
	counts map[orchestrator.Status]int
}

// NewCLIProgressReporter creates a progress reporter. With quiet set it
// still counts, but renders nothing.
func NewCLIProgressReporter(quiet bool) *CLIProgressReporter {
	return &CLIProgressReporter{
		quiet:  quiet,
		counts: make(map[orchestrator.Status]int),
	}
}

func (c *CLIProgressReporter) Start(total int) {
	if c.quiet {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.bar = progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Generating documentation"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("tasks/s"),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)
}

func (c *CLIProgressReporter) Advance(taskID string, status orchestrator.Status) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.counts[status]++
	if c.bar != nil {
		c.bar.Add(1)
	}
}

func (c *CLIProgressReporter) Finish() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.bar != nil {
		c.bar.Finish()
	}
}
