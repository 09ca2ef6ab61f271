package progress

import (
	"io"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"mediabatch/internal/model"
)

// Dashboard renders a live batch view on a terminal. It satisfies
// batch.Observer; all methods are safe from worker goroutines.
type Dashboard struct {
	program *tea.Program
	done    chan struct{}
	once    sync.Once
	err     error
}

// New builds a dashboard writing to out. onInterrupt runs when the operator
// presses ctrl+c, since the terminal is in raw mode while the view is up.
func New(title string, workers int, in io.Reader, out io.Writer, onInterrupt func()) *Dashboard {
	m := NewModel(title, workers, onInterrupt)
	opts := []tea.ProgramOption{tea.WithOutput(out)}
	if in != nil {
		opts = append(opts, tea.WithInput(in))
	} else {
		opts = append(opts, tea.WithInput(nil))
	}
	return &Dashboard{
		program: tea.NewProgram(m, opts...),
		done:    make(chan struct{}),
	}
}

func (d *Dashboard) Start() {
	go func() {
		defer close(d.done)
		_, d.err = d.program.Run()
	}()
}

// Stop asks the view to quit and waits for the final frame.
func (d *Dashboard) Stop() error {
	d.once.Do(func() {
		d.program.Send(stopMsg{})
		<-d.done
	})
	return d.err
}

func (d *Dashboard) Queued(queued, skipped int) {
	d.program.Send(queuedMsg{queued: queued, skipped: skipped})
}

func (d *Dashboard) ItemStarted(workerID int, item model.MediaItem) {
	d.program.Send(startedMsg{workerID: workerID, itemID: item.ID, at: time.Now()})
}

func (d *Dashboard) ItemFinished(workerID int, outcome model.ItemOutcome) {
	d.program.Send(finishedMsg{workerID: workerID, outcome: outcome})
}

// ItemStatus updates the phase line of a worker's current item.
func (d *Dashboard) ItemStatus(workerID int, itemID, phase string, percent float64) {
	d.program.Send(statusMsg{workerID: workerID, itemID: itemID, phase: phase, percent: percent})
}
