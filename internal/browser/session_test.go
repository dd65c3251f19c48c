package browser

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/weather-harvester/internal/harvest"
)

type fakePage struct {
	mu          sync.Mutex
	navigateErr error
	formErr     error
	submitErr   error
	titles      []string
	titleErr    error
	table       harvest.RawTable
	tableErr    error

	navigatedURL string
	submitted    string
	titleReads   int
	tableReads   int
	closed       int
}

func (p *fakePage) Navigate(_ context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navigatedURL = url
	return p.navigateErr
}

func (p *fakePage) WaitForm(ctx context.Context) error {
	if p.formErr != nil {
		<-ctx.Done()
		return errors.Join(p.formErr, ctx.Err())
	}
	return nil
}

func (p *fakePage) Submit(_ context.Context, date string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.submitted = date
	return p.submitErr
}

// ResultTitle returns the scripted titles in order, repeating the last one.
func (p *fakePage) ResultTitle(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.titleReads++
	if p.titleErr != nil {
		return "", p.titleErr
	}
	idx := p.titleReads - 1
	if idx >= len(p.titles) {
		idx = len(p.titles) - 1
	}
	if idx < 0 {
		return "", errors.New("no title")
	}
	return p.titles[idx], nil
}

func (p *fakePage) ReadTable(context.Context) (harvest.RawTable, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tableReads++
	return p.table, p.tableErr
}

func (p *fakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed++
	return nil
}

func testController(cfg Config) (*controller, *[]time.Duration) {
	c := newController(cfg, zap.NewNop())
	var sleeps []time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return ctx.Err()
	}
	return c, &sleeps
}

var june15 = harvest.CalendarTarget{Month: 6, Day: 15}

func sampleTable() harvest.RawTable {
	return harvest.RawTable{
		Columns: []string{"year", "max"},
		Cells:   []string{"2016", "9 °c"},
	}
}

func TestControllerHappyPath(t *testing.T) {
	t.Parallel()

	c, sleeps := testController(Config{SourceURL: "https://weather.test/history"})
	page := &fakePage{
		titles: []string{"Yeovilton Weather on 15th June 2021"},
		table:  sampleTable(),
	}
	raw, err := c.fetch(context.Background(), june15, page)
	require.NoError(t, err)
	assert.Equal(t, sampleTable(), raw)
	assert.Equal(t, "https://weather.test/history", page.navigatedURL)
	assert.Equal(t, "2021-06-15", page.submitted)
	assert.Equal(t, 1, page.titleReads)
	assert.Empty(t, *sleeps)
	assert.Equal(t, 1, page.closed)
}

func TestControllerPollsUntilTitleMatches(t *testing.T) {
	t.Parallel()

	c, sleeps := testController(Config{PollInterval: time.Second, PollMaxAttempts: 10})
	page := &fakePage{
		titles: []string{
			"Weather on 14th June 2021",
			"Weather on 14th June 2021",
			"Weather on 15th May 2021",
			"Weather on 15th June 2021",
		},
		table: sampleTable(),
	}
	_, err := c.fetch(context.Background(), june15, page)
	require.NoError(t, err)
	assert.Equal(t, 4, page.titleReads)
	assert.Equal(t, 1, page.tableReads)
	assert.Equal(t, []time.Duration{time.Second, time.Second, time.Second}, *sleeps)
}

func TestControllerPollCeilingIsTimeout(t *testing.T) {
	t.Parallel()

	c, sleeps := testController(Config{PollInterval: time.Second, PollMaxAttempts: 5})
	page := &fakePage{titles: []string{"Weather on 14th June 2021"}}
	_, err := c.fetch(context.Background(), june15, page)

	var timeoutErr *harvest.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, harvest.StagePoll, timeoutErr.Stage)
	assert.Equal(t, june15, timeoutErr.Target)
	assert.ErrorIs(t, err, errTitleNotSettled)
	assert.Contains(t, err.Error(), "14th June")
	assert.Equal(t, 5, page.titleReads)
	assert.Len(t, *sleeps, 4)
	assert.Equal(t, 0, page.tableReads)
	assert.Equal(t, 1, page.closed)
}

func TestControllerTitleErrorsKeepPolling(t *testing.T) {
	t.Parallel()

	c, _ := testController(Config{PollMaxAttempts: 3})
	page := &fakePage{titleErr: errors.New("no node")}
	_, err := c.fetch(context.Background(), june15, page)
	require.True(t, harvest.IsTimeout(err))
	assert.Equal(t, 3, page.titleReads)
}

func TestControllerNavigationError(t *testing.T) {
	t.Parallel()

	c, _ := testController(Config{SourceURL: "https://weather.test"})
	page := &fakePage{navigateErr: errors.New("net::ERR_NAME_NOT_RESOLVED")}
	_, err := c.fetch(context.Background(), june15, page)

	var navErr *harvest.NavigationError
	require.ErrorAs(t, err, &navErr)
	assert.Equal(t, "https://weather.test", navErr.URL)
	var dayErr *harvest.DayError
	require.ErrorAs(t, err, &dayErr)
	assert.Equal(t, june15, dayErr.Target)
	assert.Equal(t, 1, page.closed)
}

func TestControllerFormTimeout(t *testing.T) {
	t.Parallel()

	c, _ := testController(Config{FormTimeout: 10 * time.Millisecond})
	page := &fakePage{formErr: errors.New("waiting for selector")}
	_, err := c.fetch(context.Background(), june15, page)

	var timeoutErr *harvest.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, harvest.StageForm, timeoutErr.Stage)
	assert.Contains(t, err.Error(), "06-15")
	assert.Contains(t, err.Error(), dateInputSelector)
	assert.Empty(t, page.submitted)
	assert.Equal(t, 1, page.closed)
}

func TestControllerSubmitAndTableErrorsClosePage(t *testing.T) {
	t.Parallel()

	c, _ := testController(Config{})
	submitFail := &fakePage{submitErr: errors.New("click failed")}
	_, err := c.fetch(context.Background(), june15, submitFail)
	require.ErrorContains(t, err, "submit query")
	assert.Equal(t, 1, submitFail.closed)

	tableFail := &fakePage{titles: []string{"15th June"}, tableErr: errors.New("evaluate failed")}
	_, err = c.fetch(context.Background(), june15, tableFail)
	require.ErrorContains(t, err, "read results table")
	assert.Equal(t, 1, tableFail.closed)
}

func TestControllerCanceledWhilePolling(t *testing.T) {
	t.Parallel()

	c := newController(Config{PollInterval: time.Hour, PollMaxAttempts: 100}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	page := &fakePage{titles: []string{"14th June"}}
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := c.fetch(ctx, june15, page)
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, harvest.IsTimeout(err))
	assert.Equal(t, 1, page.closed)
}

func TestParseResultTitle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		title string
		day   int
		month time.Month
		ok    bool
	}{
		{"Yeovilton Historical Weather on 15th June 2021", 15, time.June, true},
		{"01st May", 1, time.May, true},
		{"2nd july", 2, time.July, true},
		{"23rd September", 23, time.September, true},
		{"Historical weather", 0, 0, false},
		{"15th Juin", 0, 0, false},
	}
	for _, tt := range tests {
		day, month, ok := parseResultTitle(tt.title)
		assert.Equal(t, tt.ok, ok, tt.title)
		assert.Equal(t, tt.day, day, tt.title)
		assert.Equal(t, tt.month, month, tt.title)
	}

	assert.True(t, titleShows("15th June", june15))
	assert.False(t, titleShows("14th June", june15))
	assert.False(t, titleShows("15th May", june15))
}

func TestConfigDefaultsAndValidation(t *testing.T) {
	t.Parallel()

	cfg := Config{}.withDefaults()
	assert.Equal(t, DefaultSourceURL, cfg.SourceURL)
	assert.Equal(t, harvest.ReferenceYear, cfg.ReferenceYear)
	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.Equal(t, 60, cfg.PollMaxAttempts)
	assert.Equal(t, time.Minute, Config{}.PollCeiling())

	require.Error(t, Config{MaxTabs: -1}.Validate())
	require.Error(t, Config{NavigationQPS: -1}.Validate())
	require.Error(t, Config{BreakerFailures: -1}.Validate())
	require.NoError(t, Config{}.Validate())
}
