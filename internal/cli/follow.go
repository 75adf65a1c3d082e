package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/persons/internal/core"
)

// operationError reports an operation that did not complete.
type operationError struct {
	res *core.OperationResult
}

func (e *operationError) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.res.Kind, e.res.Phase, e.res.Error)
	if e.res.Code != "" {
		msg += " (code " + e.res.Code + ")"
	}
	return msg
}

func (e *operationError) Is(target error) bool {
	return target == core.ErrCancelled && e.res.Phase == core.PhaseCancelled
}

// follow renders the progress of operation id on out until it finishes.
// SIGINT or SIGTERM cancels the operation; follow still waits for it to stop.
func follow(ctx context.Context, svc *core.Service, id string, out io.Writer) (*core.OperationResult, error) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	statusCh, err := svc.SubscribeProgress(id)
	if err != nil {
		return nil, err
	}

	bar := &progressLine{out: out, percent: -1}
	interrupted := ctx.Done()
loop:
	for {
		select {
		case st, ok := <-statusCh:
			if !ok {
				break loop
			}
			bar.update(st)
		case <-interrupted:
			fmt.Fprintln(out, "\ncancelling...")
			svc.Cancel(id)
			interrupted = nil
		}
	}
	bar.finish()

	res, err := svc.Result(context.Background(), id)
	if err != nil {
		return nil, err
	}
	if res.Phase != core.PhaseComplete {
		return res, &operationError{res: res}
	}
	return res, nil
}

// progressLine redraws a single status line whenever the percentage changes.
type progressLine struct {
	out     io.Writer
	percent int
	drawn   bool
}

func (p *progressLine) update(st core.OperationStatus) {
	pct := st.Progress.Percent()
	if pct == p.percent {
		return
	}
	p.percent = pct
	p.drawn = true
	fmt.Fprintf(p.out, "\r%-12s %3d%%  %d/%d", st.Kind, pct, st.Progress.Processed, st.Progress.Total)
}

func (p *progressLine) finish() {
	if p.drawn {
		fmt.Fprintln(p.out)
	}
}
