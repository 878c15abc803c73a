// Package node assembles a persistent contract host from configuration: it
// opens the configured storage backend, registers the shipped contract codes
// in a fixed order and hands back a ready core.App.
package node

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"countingchain/config"
	"countingchain/core"
	"countingchain/core/contract"
	"countingchain/core/events"
	"countingchain/native/counting"
	"countingchain/native/counting/legacy"
	"countingchain/storage"
)

// Code ids are assigned by registration order, which never changes, so ids
// persisted in ContractInfo stay valid across restarts.
const (
	CodeV010    uint64 = 1
	CodeV020    uint64 = 2
	CodeCurrent uint64 = 3
)

// Node owns the host database and the App built over it.
type Node struct {
	DB  storage.Database
	App *core.App
}

// Open opens the state database under cfg.DataDir and builds the host.
func Open(cfg *config.Config, logger *slog.Logger, emitter events.Emitter) (*Node, error) {
	db, err := OpenDatabase(cfg.DataDir, cfg.StorageBackend, "state")
	if err != nil {
		return nil, err
	}
	app, err := core.NewApp(db, core.Config{
		ChainID:      cfg.ChainID,
		Prefix:       cfg.Prefix(),
		MaxCallDepth: cfg.MaxCallDepth,
		Logger:       logger,
		Emitter:      emitter,
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := RegisterCodes(app); err != nil {
		db.Close()
		return nil, err
	}
	return &Node{DB: db, App: app}, nil
}

// OpenDatabase opens (or creates) the named database under dataDir with the
// given backend.
func OpenDatabase(dataDir, backend, name string) (storage.Database, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("node: create data dir: %w", err)
	}
	switch strings.ToLower(backend) {
	case "", config.BackendLevelDB:
		return storage.NewLevelDB(filepath.Join(dataDir, name))
	case config.BackendBolt:
		return storage.NewBoltDB(filepath.Join(dataDir, name+".bolt"))
	default:
		return nil, fmt.Errorf("node: unknown storage backend %q", backend)
	}
}

// RegisterCodes stores the legacy and current counting codes and checks they
// received their well-known ids.
func RegisterCodes(app *core.App) error {
	for _, want := range []struct {
		id   uint64
		code contract.Contract
	}{
		{CodeV010, legacy.V010()},
		{CodeV020, legacy.V020()},
		{CodeCurrent, counting.New()},
	} {
		if got := app.StoreCode(want.code); got != want.id {
			return fmt.Errorf("node: code %s registered as %d, expected %d", want.code.Version(), got, want.id)
		}
	}
	return nil
}

// ResolveCode maps "current", a version such as "0.2.0" or "v0.2.0", or a
// numeric id to a registered code id.
func ResolveCode(app *core.App, ref string) (uint64, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" || ref == "current" {
		return CodeCurrent, nil
	}
	version := strings.TrimPrefix(ref, "v")
	for _, info := range app.Codes() {
		if info.Version == version {
			return info.CodeID, nil
		}
	}
	id, err := strconv.ParseUint(ref, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", core.ErrCodeNotFound, ref)
	}
	for _, info := range app.Codes() {
		if info.CodeID == id {
			return id, nil
		}
	}
	return 0, fmt.Errorf("%w: %d", core.ErrCodeNotFound, id)
}

// Close releases the database.
func (n *Node) Close() {
	if n != nil && n.DB != nil {
		n.DB.Close()
	}
}
