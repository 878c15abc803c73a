// Package core hosts contract instances: it registers code, keeps balances,
// routes instantiate, execute, query and migrate calls, and dispatches the
// messages handlers return. Every top-level call runs against a staged cache
// of the database and either commits as a whole or leaves no trace.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"countingchain/core/contract"
	"countingchain/core/events"
	"countingchain/core/state"
	"countingchain/core/types"
	"countingchain/crypto"
	"countingchain/observability"
	telemetry "countingchain/observability/otel"
	"countingchain/storage"
)

// DefaultMaxCallDepth bounds nested contract calls when Config leaves it zero.
const DefaultMaxCallDepth = 16

// Config controls an App.
type Config struct {
	ChainID      string
	Prefix       crypto.AddressPrefix
	MaxCallDepth int
	Logger       *slog.Logger
	Emitter      events.Emitter
}

// Result summarises a committed top-level call.
type Result struct {
	CallID string
	Height uint64
	Events []*types.Event
	Data   []byte
}

// Attr returns the first value of key across the wasm events of the result.
func (r *Result) Attr(key string) (string, bool) {
	if r == nil {
		return "", false
	}
	for _, evt := range r.Events {
		if evt.Type != EventTypeWasm {
			continue
		}
		if v, ok := evt.Attr(key); ok {
			return v, true
		}
	}
	return "", false
}

// App is the in-process contract host. Calls are serialised.
type App struct {
	mu       sync.Mutex
	db       storage.Database
	cfg      Config
	codes    []contract.Contract
	logger   *slog.Logger
	emitter  events.Emitter
	metrics  *observability.HostMetricsRegistry
	outcomes *observability.ContractMetricsRegistry
	tracer   trace.Tracer
}

// NewApp opens a host over db, stamping or checking the schema version.
func NewApp(db storage.Database, cfg Config) (*App, error) {
	if db == nil {
		return nil, fmt.Errorf("core: database required")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = crypto.DefaultPrefix
	}
	if cfg.ChainID == "" {
		cfg.ChainID = "counting-local"
	}
	if cfg.MaxCallDepth <= 0 {
		cfg.MaxCallDepth = DefaultMaxCallDepth
	}
	if err := state.EnsureStateVersion(state.NewManager(db)); err != nil {
		return nil, err
	}
	app := &App{
		db:       db,
		cfg:      cfg,
		logger:   cfg.Logger,
		emitter:  cfg.Emitter,
		metrics:  observability.HostMetrics(),
		outcomes: observability.ContractMetrics(),
		tracer:   telemetry.Tracer(),
	}
	if app.logger == nil {
		app.logger = slog.Default()
	}
	if app.emitter == nil {
		app.emitter = events.NoopEmitter{}
	}
	return app, nil
}

// ChainID returns the configured chain id.
func (a *App) ChainID() string { return a.cfg.ChainID }

// Prefix returns the bech32 prefix of identities on this host.
func (a *App) Prefix() crypto.AddressPrefix { return a.cfg.Prefix }

// Height returns the number of committed top-level calls.
func (a *App) Height() (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.height(state.NewManager(a.db))
}

func (a *App) height(m *state.Manager) (uint64, error) {
	var h uint64
	if _, err := m.KVGet(heightKey, &h); err != nil {
		return 0, err
	}
	return h, nil
}

// InitBalance credits coins to addr outside of any contract call. It is the
// genesis mint.
func (a *App) InitBalance(addr crypto.Address, coins types.Coins) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	cache := storage.NewCacheDB(a.db)
	if err := (bank{state: state.NewManager(cache)}).mint(addr.String(), coins); err != nil {
		cache.Discard()
		return err
	}
	if err := cache.Commit(); err != nil {
		cache.Discard()
		return err
	}
	return nil
}

// AllBalances returns every non-zero balance held by addr.
func (a *App) AllBalances(addr crypto.Address) (types.Coins, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return state.NewManager(a.db).Balances(addr.String())
}

// ContractStateDigest hashes the private store of one instance.
func (a *App) ContractStateDigest(addr crypto.Address) ([32]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return storage.Digest(a.db, contractStorePrefix(addr.String()))
}

// StateDigest hashes the whole host database.
func (a *App) StateDigest() ([32]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return storage.Digest(a.db, nil)
}

// Instantiate creates an instance of codeID. Funds move from sender to the new
// contract before its handler runs. A zero admin disables migration.
func (a *App) Instantiate(ctx context.Context, codeID uint64, sender crypto.Address, msg []byte, funds types.Coins, label string, admin crypto.Address) (crypto.Address, *Result, error) {
	var created crypto.Address
	res, err := a.run(ctx, "instantiate", "", sender, func(tx *txContext) error {
		addr, err := tx.instantiate(codeID, sender, msg, funds, label, admin)
		created = addr
		return err
	})
	if err != nil {
		return crypto.Address{}, nil, err
	}
	return created, res, nil
}

// Execute calls the execute entry point of contractAddr.
func (a *App) Execute(ctx context.Context, sender, contractAddr crypto.Address, msg []byte, funds types.Coins) (*Result, error) {
	return a.run(ctx, "execute", contractAddr.String(), sender, func(tx *txContext) error {
		return tx.execute(0, sender, contractAddr, msg, funds)
	})
}

// Migrate switches contractAddr to newCodeID and runs the new code's migrate
// entry point. Only the instance admin may call it.
func (a *App) Migrate(ctx context.Context, sender, contractAddr crypto.Address, newCodeID uint64, msg []byte) (*Result, error) {
	return a.run(ctx, "migrate", contractAddr.String(), sender, func(tx *txContext) error {
		return tx.migrate(sender, contractAddr, newCodeID, msg)
	})
}

// Query runs the read-only query entry point. Writes attempted by the handler
// fail with storage.ErrReadOnly.
func (a *App) Query(ctx context.Context, contractAddr crypto.Address, msg []byte) ([]byte, error) {
	_, span := a.tracer.Start(ctx, "host.query", trace.WithAttributes(
		attribute.String("contract", contractAddr.String())))
	defer span.End()
	start := time.Now()

	a.mu.Lock()
	defer a.mu.Unlock()

	data, err := a.query(contractAddr, msg)
	a.metrics.ObserveCall("query", err, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	return data, nil
}

func (a *App) query(contractAddr crypto.Address, msg []byte) ([]byte, error) {
	root := state.NewManager(a.db)
	info, err := loadContractInfo(root, contractAddr.String())
	if err != nil {
		return nil, err
	}
	code, err := a.code(info.CodeID)
	if err != nil {
		return nil, err
	}
	height, err := a.height(root)
	if err != nil {
		return nil, err
	}
	store := storage.ReadOnly(storage.NewPrefixDB(a.db, contractStorePrefix(contractAddr.String())))
	deps := contract.Deps{State: state.NewManager(store), Querier: balanceQuerier{state: root}}
	env := contract.Env{ChainID: a.cfg.ChainID, BlockHeight: height, Contract: contractAddr}
	data, err := code.Query(deps, env, msg)
	if err != nil {
		return nil, &ContractError{Contract: contractAddr.String(), Err: err}
	}
	return data, nil
}

// run executes fn inside a staged cache and commits only when it succeeds.
func (a *App) run(ctx context.Context, operation, contractAddr string, sender crypto.Address, fn func(*txContext) error) (*Result, error) {
	callID := uuid.NewString()
	_, span := a.tracer.Start(ctx, "host."+operation, trace.WithAttributes(
		attribute.String("call.id", callID),
		attribute.String("contract", contractAddr),
		attribute.String("sender", sender.String()),
	))
	defer span.End()
	start := time.Now()

	a.mu.Lock()
	defer a.mu.Unlock()

	cache := storage.NewCacheDB(a.db)
	tx := &txContext{app: a, db: cache, root: state.NewManager(cache), outcomes: a.outcomes.Begin()}
	committed, err := a.height(tx.root)
	if err == nil {
		tx.height = committed + 1
		err = fn(tx)
	}
	if err == nil {
		err = tx.root.KVPut(heightKey, tx.height)
	}
	if err == nil {
		err = cache.Commit()
	}
	if err != nil {
		cache.Discard()
		tx.outcomes.Drop()
	} else {
		tx.outcomes.Apply()
	}

	a.metrics.ObserveCall(operation, err, time.Since(start))
	// A failed call never advances the chain, so it reports the last
	// committed height.
	completed := events.CallCompleted{
		CallID:    callID,
		Height:    committed,
		Operation: operation,
		Contract:  contractAddr,
		Sender:    sender.String(),
	}
	if contractAddr == "" && tx.created != "" {
		completed.Contract = tx.created
	}
	logger := a.logger.With(
		slog.String("call_id", callID),
		slog.String("operation", operation),
		slog.String("contract", completed.Contract),
		slog.String("sender", completed.Sender),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		completed.Err = err.Error()
		logger.Warn("host: call failed", slog.Any("error", err))
		a.emit(completed)
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	completed.Height = tx.height
	completed.Events = tx.events
	logger.Info("host: call committed", slog.Uint64("height", tx.height), slog.Int("events", len(tx.events)))
	a.emit(completed)
	return &Result{CallID: callID, Height: tx.height, Events: tx.events, Data: tx.data}, nil
}

func (a *App) emit(evt events.CallCompleted) {
	observability.Events().RecordEmitted(evt.EventType())
	a.emitter.Emit(evt)
}

// IsContractError reports whether err came from contract code rather than the
// host.
func IsContractError(err error) bool {
	var ce *ContractError
	return errors.As(err, &ce)
}
