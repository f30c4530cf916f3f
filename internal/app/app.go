// Package app composes the timer, scheduler and list stores behind a single
// goroutine that runs every command and every periodic timer tick.
package app

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/hpungsan/tempo/internal/config"
	"github.com/hpungsan/tempo/internal/db"
	"github.com/hpungsan/tempo/internal/lists"
	"github.com/hpungsan/tempo/internal/ops"
	"github.com/hpungsan/tempo/internal/persist"
	"github.com/hpungsan/tempo/internal/schedule"
	"github.com/hpungsan/tempo/internal/timer"
)

// ErrClosed is returned by Do once the command loop has stopped.
var ErrClosed = stderrors.New("app: closed")

type request struct {
	fn   func(ctx context.Context) error
	done chan error
}

// App owns the three stores. Store methods must only be called from functions
// passed to Do, which run on the command loop.
type App struct {
	Timer    *timer.Engine
	Schedule *schedule.Scheduler
	Lists    *lists.Store

	cfg     *config.Config
	writer  *persist.Writer
	db      *sql.DB
	sqlite  *persist.SQLiteBackend
	lock    *persist.Lock
	baseDir string

	requests  chan request
	tickEvery time.Duration
	now       func() time.Time

	cancel  context.CancelFunc
	stopped chan struct{}
	once    sync.Once
}

// New builds an App over writer. Nothing is loaded and the loop is not started.
func New(cfg *config.Config, writer *persist.Writer) *App {
	return &App{
		Timer:     timer.New(writer, cfg.WorkMinutes, cfg.BreakMinutes),
		Schedule:  schedule.New(writer),
		Lists:     lists.New(writer),
		cfg:       cfg,
		writer:    writer,
		requests:  make(chan request),
		tickEvery: time.Duration(cfg.TickIntervalMS) * time.Millisecond,
		now:       time.Now,
		stopped:   make(chan struct{}),
	}
}

// Open locks baseDir, opens the configured snapshot store under it, restores
// every store and starts the command loop. Snapshots that fail to load are
// logged and the affected store starts empty. If another process already holds
// baseDir, Open fails with a CONFLICT error.
func Open(ctx context.Context, cfg *config.Config, baseDir string) (_ *App, err error) {
	if err := db.EnsureDirs(baseDir); err != nil {
		return nil, err
	}
	lock, err := persist.AcquireLock(baseDir)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			lock.Release()
		}
	}()

	var (
		backend  persist.Backend
		database *sql.DB
		sqlite   *persist.SQLiteBackend
	)
	switch cfg.Backend {
	case config.BackendFile:
		fb, err := persist.NewFileBackend(filepath.Join(baseDir, "state"))
		if err != nil {
			return nil, err
		}
		backend = fb
	default:
		database, err = db.Init(baseDir)
		if err != nil {
			return nil, err
		}
		db.ConfigurePool(database, cfg)
		sqlite = persist.NewSQLiteBackend(database)
		backend = sqlite
	}

	a := New(cfg, persist.NewWriter(backend, nil))
	a.db = database
	a.sqlite = sqlite
	a.lock = lock
	a.baseDir = baseDir
	if err := a.Load(ctx); err != nil {
		log.Printf("tempo: %v", err)
	}
	a.Start()
	return a, nil
}

// Load restores every store from its snapshot. Each failure is kept and
// returned together; stores that loaded cleanly keep their state.
func (a *App) Load(ctx context.Context) error {
	var errs []error
	if err := a.Timer.Load(ctx); err != nil {
		errs = append(errs, fmt.Errorf("load timer: %w", err))
	}
	if err := a.Schedule.Load(ctx); err != nil {
		errs = append(errs, fmt.Errorf("load events: %w", err))
	}
	if err := a.Lists.Load(ctx); err != nil {
		errs = append(errs, fmt.Errorf("load lists: %w", err))
	}
	return stderrors.Join(errs...)
}

// Start runs the command loop in a new goroutine until Close.
func (a *App) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	go func() {
		defer close(a.stopped)
		a.Run(ctx)
	}()
}

// Run executes submitted commands and ticks the timer every tick interval until
// ctx is done. It is the only goroutine that touches the stores.
func (a *App) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.tickEvery)
	defer ticker.Stop()

	// Catch up on time that passed while nothing was ticking.
	a.Timer.Tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-a.requests:
			req.done <- req.fn(ctx)
		case <-ticker.C:
			a.Timer.Tick(ctx)
		}
	}
}

// Do runs fn on the command loop and returns its error. It waits for the loop
// to accept fn and then for fn to finish, giving up if ctx is done first.
func (a *App) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	req := request{fn: fn, done: make(chan error, 1)}
	select {
	case a.requests <- req:
	case <-a.stopped:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush waits until every snapshot saved so far has been written.
func (a *App) Flush(ctx context.Context) error {
	return a.writer.Flush(ctx)
}

// Config returns the configuration the App was built with.
func (a *App) Config() *config.Config {
	return a.cfg
}

// Close stops the command loop, writes pending snapshots and closes the store.
func (a *App) Close(ctx context.Context) error {
	var err error
	a.once.Do(func() {
		if a.cancel != nil {
			a.cancel()
			select {
			case <-a.stopped:
			case <-ctx.Done():
				err = ctx.Err()
				return
			}
		}
		if werr := a.writer.Close(ctx); werr != nil {
			err = werr
		}
		if a.db != nil {
			if derr := a.db.Close(); derr != nil && err == nil {
				err = derr
			}
		}
		if lerr := a.lock.Release(); lerr != nil && err == nil {
			err = lerr
		}
	})
	return err
}

func (a *App) stores() ops.Stores {
	return ops.Stores{Lists: a.Lists, Schedule: a.Schedule}
}
