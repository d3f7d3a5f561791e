// Package panel ties the run configuration, request builder, transport and
// result reconciler into one backtest panel session.
//
// The panel owns two records: the editable RunConfig and the displayed
// View. Edits replace the RunConfig; a successful run replaces the View
// wholesale; a failed run leaves the View alone and sets a notice. At most
// one submission is in flight per panel.
package panel

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/newthinker/dispersion/internal/core"
	"github.com/newthinker/dispersion/internal/logger"
	"github.com/newthinker/dispersion/internal/metrics"
	"github.com/newthinker/dispersion/internal/request"
	"github.com/newthinker/dispersion/internal/result"
	"github.com/newthinker/dispersion/internal/runconfig"
	"github.com/newthinker/dispersion/internal/transport"
	"github.com/newthinker/dispersion/internal/weights"
	"go.uber.org/zap"
)

// DefaultTimeout bounds a submission when Options.Timeout is unset.
const DefaultTimeout = 60 * time.Second

// NoticePrefix starts every failure notification.
const NoticePrefix = "Error fetching data: "

// Recorder receives submission metrics. *metrics.Registry implements it.
type Recorder interface {
	RecordSubmission(mode, status string, duration float64)
	SetSubmissionInFlight(inFlight bool)
	RecordResultField(field string, usable bool)
}

// Options configures a Panel.
type Options struct {
	Mode     request.Mode
	Defaults []weights.Weight
	Initial  runconfig.RunConfig
	Timeout  time.Duration
	Locale   string

	Metrics Recorder
	Logger  *zap.Logger
	// NewRunID generates submission ids. Defaults to uuid.NewString.
	NewRunID func() string
}

// State is a copy of the panel's current state.
type State struct {
	Mode     request.Mode
	Config   runconfig.RunConfig
	View     result.View
	InFlight bool
	// Notice is the last failure message, cleared when a new run starts.
	Notice string
	// RunID identifies the running or most recent submission.
	RunID string
	// LastRun is when the displayed result arrived; zero before any.
	LastRun time.Time
}

// Panel is one backtest panel session.
type Panel struct {
	builder  request.Builder
	doer     transport.Doer
	defaults []weights.Weight
	timeout  time.Duration
	locale   string
	metrics  Recorder
	logger   *zap.Logger
	newRunID func() string

	mu    sync.Mutex
	state State
}

// New creates a panel that sends requests through doer.
func New(doer transport.Doer, opts Options) (*Panel, error) {
	if opts.Defaults == nil {
		opts.Defaults = weights.Defaults()
	}
	builder, err := request.For(opts.Mode, opts.Defaults)
	if err != nil {
		return nil, err
	}
	if opts.Initial == (runconfig.RunConfig{}) {
		opts.Initial = runconfig.Defaults()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.NewRunID == nil {
		opts.NewRunID = uuid.NewString
	}

	return &Panel{
		builder:  builder,
		doer:     doer,
		defaults: opts.Defaults,
		timeout:  opts.Timeout,
		locale:   opts.Locale,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		newRunID: opts.NewRunID,
		state: State{
			Mode:   opts.Mode,
			Config: opts.Initial,
			View:   result.Empty(opts.Defaults),
		},
	}, nil
}

// Snapshot returns a copy of the current state.
func (p *Panel) Snapshot() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Edit applies a raw input value to the named field. Edits are accepted
// while a run is in flight; the running request already holds its copy.
func (p *Panel) Edit(field, raw string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	cfg, err := p.state.Config.Apply(field, raw)
	if err != nil {
		return err
	}
	p.state.Config = cfg
	return nil
}

// Submit runs one backtest and blocks until it resolves. It returns
// ErrSubmissionInFlight without calling the service when another run is
// in flight.
func (p *Panel) Submit(ctx context.Context) error {
	run, err := p.begin()
	if err != nil {
		return err
	}
	return p.execute(ctx, run)
}

// SubmitAsync starts a backtest in the background and returns its run id.
// The in-flight check happens before it returns.
func (p *Panel) SubmitAsync(ctx context.Context) (string, error) {
	run, err := p.begin()
	if err != nil {
		return "", err
	}
	go p.execute(ctx, run)
	return run.id, nil
}

type pendingRun struct {
	id     string
	config runconfig.RunConfig
	log    *zap.Logger
}

func (p *Panel) begin() (pendingRun, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	mode := string(p.builder.Mode())
	if p.state.InFlight {
		p.record(func(m Recorder) { m.RecordSubmission(mode, metrics.StatusRejected, 0) })
		p.logger.Debug("submission rejected, run in flight", zap.String("run_id", p.state.RunID))
		return pendingRun{}, core.WrapError(core.ErrSubmissionInFlight, nil)
	}

	run := pendingRun{
		id:     p.newRunID(),
		config: p.state.Config,
	}
	run.log = logger.ForRun(p.logger, run.id, mode)

	p.state.InFlight = true
	p.state.RunID = run.id
	p.state.Notice = ""
	p.record(func(m Recorder) { m.SetSubmissionInFlight(true) })
	return run, nil
}

func (p *Panel) execute(ctx context.Context, run pendingRun) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	mode := string(p.builder.Mode())
	req := p.builder.Build(run.config)
	run.log.Info("submitting backtest",
		zap.String("method", req.Method),
		zap.String("start", run.config.Start),
		zap.String("end", run.config.End),
	)

	start := time.Now()
	res, err := p.fetch(ctx, req, run.id)
	elapsed := time.Since(start)

	if err != nil {
		p.fail(run, err, elapsed)
		return err
	}

	for _, key := range result.KnownKeys {
		if present, usable := res.Usable(key); present {
			p.record(func(m Recorder) { m.RecordResultField(key, usable) })
		}
	}

	opts := result.Options{Locale: p.locale}
	if p.builder.Mode().UsesSymbols() {
		opts.Symbols = run.config.Symbols
	}
	view := result.Reconcile(res, p.defaults, opts)

	p.mu.Lock()
	p.state.View = view
	p.state.InFlight = false
	p.state.LastRun = time.Now()
	p.mu.Unlock()

	p.record(func(m Recorder) {
		m.SetSubmissionInFlight(false)
		m.RecordSubmission(mode, metrics.StatusSuccess, elapsed.Seconds())
	})
	run.log.Info("backtest completed",
		zap.Duration("duration", elapsed),
		zap.String("weights_source", string(view.WeightsSource)),
		zap.Bool("has_pnl", view.HasPnL),
		zap.Strings("fields", res.Keys()),
	)
	return nil
}

// fetch performs the transport call and decodes the body. A non-object
// body is treated like a transport failure.
func (p *Panel) fetch(ctx context.Context, req request.Request, runID string) (*result.Result, error) {
	data, err := p.doer.Do(ctx, req, runID)
	if err != nil {
		return nil, err
	}
	return result.Decode(data)
}

func (p *Panel) fail(run pendingRun, err error, elapsed time.Duration) {
	p.mu.Lock()
	p.state.InFlight = false
	p.state.Notice = Notice(err)
	p.mu.Unlock()

	status := statusFor(err)
	p.record(func(m Recorder) {
		m.SetSubmissionInFlight(false)
		m.RecordSubmission(string(p.builder.Mode()), status, elapsed.Seconds())
	})
	run.log.Warn("backtest failed",
		zap.String("status", status),
		zap.Duration("duration", elapsed),
		zap.Error(err),
	)
}

func (p *Panel) record(fn func(Recorder)) {
	if p.metrics != nil {
		fn(p.metrics)
	}
}

// Notice is the user-facing message for a failed submission. It names
// the failure class only; details go to the log.
func Notice(err error) string {
	var coreErr *core.Error
	if errors.As(err, &coreErr) {
		return NoticePrefix + coreErr.Message
	}
	return NoticePrefix + err.Error()
}

func statusFor(err error) string {
	switch {
	case errors.Is(err, core.ErrTransportTimeout), errors.Is(err, context.DeadlineExceeded):
		return metrics.StatusTimeout
	case errors.Is(err, core.ErrMalformedResponse):
		return metrics.StatusMalformed
	default:
		return metrics.StatusFailed
	}
}
