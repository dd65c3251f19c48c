package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"

	"github.com/JakeFAU/weather-harvester/internal/harvest"
)

// Markup conventions of the source page.
const (
	dateInputSelector   = `input[type="date"]`
	submitSelector      = `input[value="Get Weather"]`
	resultTitleSelector = `h2.block_title`
)

// tableScript collects the header labels and body cell markup of the
// results table.
const tableScript = `(() => {
	const columns = Array.from(document.querySelectorAll('.wwo-tabular .col.text-white'))
		.map((cell) => cell.textContent.trim().toLowerCase());
	const cells = Array.from(document.querySelectorAll('.wwo-tabular .col:not(.text-white)'))
		.map((cell) => cell.innerHTML.trim());
	return { columns, cells };
})()`

type tableSnapshot struct {
	Columns []string `json:"columns"`
	Cells   []string `json:"cells"`
}

// chromePage implements pageDriver on a chromedp tab.
type chromePage struct {
	tabCtx    context.Context
	cancelTab context.CancelFunc
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, chromedp.Navigate(url))
}

func (p *chromePage) WaitForm(ctx context.Context) error {
	return p.run(ctx, chromedp.WaitReady(dateInputSelector, chromedp.ByQuery))
}

func (p *chromePage) Submit(ctx context.Context, date string) error {
	return p.run(ctx,
		chromedp.SetValue(dateInputSelector, date, chromedp.ByQuery),
		chromedp.Click(submitSelector, chromedp.ByQuery),
	)
}

func (p *chromePage) ResultTitle(ctx context.Context) (string, error) {
	var title string
	err := p.run(ctx,
		chromedp.WaitReady(resultTitleSelector, chromedp.ByQuery),
		chromedp.TextContent(resultTitleSelector, &title, chromedp.ByQuery),
	)
	return title, err
}

func (p *chromePage) ReadTable(ctx context.Context) (harvest.RawTable, error) {
	var snapshot tableSnapshot
	if err := p.run(ctx, chromedp.Evaluate(tableScript, &snapshot)); err != nil {
		return harvest.RawTable{}, err
	}
	return harvest.RawTable{Columns: snapshot.Columns, Cells: snapshot.Cells}, nil
}

// Close closes the tab and waits for chromedp to release it.
func (p *chromePage) Close() error {
	defer p.cancelTab()
	if err := chromedp.Cancel(p.tabCtx); err != nil {
		return fmt.Errorf("close tab: %w", err)
	}
	return nil
}

// run executes actions on the tab, bounded by ctx's deadline and
// cancellation. Canceling the derived context aborts the actions without
// closing the tab.
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.tabCtx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stopForward := forwardCancel(ctx, cancel)
	defer stopForward()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		return fmt.Errorf("chromedp run: %w", err)
	}
	return nil
}

// forwardCancel calls cancel once parent is done. The returned stop func
// waits for the forwarder to exit, so cancel is never called after stop
// returns.
func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() {
		close(done)
		<-exited
	}
}
