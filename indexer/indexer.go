// Package indexer persists host call history in a SQL database so that it
// can be listed by contract without replaying state.
package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"countingchain/core/events"
	"countingchain/core/types"
)

// DefaultLimit bounds list queries that pass no limit.
const DefaultLimit = 100

const contractAddressAttr = "_contract_address"

// Open connects to dsn. postgres:// and postgresql:// URLs select Postgres;
// anything else is handed to SQLite.
func Open(dsn string) (*gorm.DB, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("indexer: dsn required")
	}
	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("indexer: open: %w", err)
	}
	return db, nil
}

// Indexer records CallCompleted events. It implements events.Emitter.
type Indexer struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time
}

// New migrates the schema and returns an indexer writing to db.
func New(db *gorm.DB, log *slog.Logger) (*Indexer, error) {
	if db == nil {
		return nil, errors.New("indexer: database required")
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("indexer: migrate: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Indexer{db: db, logger: log, now: time.Now}, nil
}

// Emit implements events.Emitter. Persistence failures are logged, never
// propagated to the host.
func (i *Indexer) Emit(evt events.Event) {
	call, ok := evt.(events.CallCompleted)
	if !ok {
		return
	}
	if err := i.Record(context.Background(), call); err != nil {
		i.logger.Error("indexer: record call failed",
			slog.String("call_id", call.CallID),
			slog.Any("error", err))
	}
}

type attributeJSON struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Record stores call and its events in one transaction.
func (i *Indexer) Record(ctx context.Context, call events.CallCompleted) error {
	now := i.now().UTC()
	record := CallRecord{
		ID:        uuid.New(),
		CallID:    call.CallID,
		Height:    call.Height,
		Operation: call.Operation,
		Contract:  call.Contract,
		Sender:    call.Sender,
		Error:     call.Err,
		CreatedAt: now,
	}
	for pos, evt := range call.Events {
		encoded, err := encodeAttributes(evt)
		if err != nil {
			return err
		}
		contract := call.Contract
		if addr, ok := evt.Attr(contractAddressAttr); ok {
			contract = addr
		}
		record.Events = append(record.Events, EventRecord{
			ID:         uuid.New(),
			Position:   pos,
			Height:     call.Height,
			Type:       evt.Type,
			Contract:   contract,
			Attributes: encoded,
			CreatedAt:  now,
		})
	}
	return i.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&record).Error
	})
}

func encodeAttributes(evt *types.Event) (string, error) {
	attrs := make([]attributeJSON, 0, len(evt.Attributes))
	for _, a := range evt.Attributes {
		attrs = append(attrs, attributeJSON{Key: a.Key, Value: a.Value})
	}
	data, err := json.Marshal(attrs)
	if err != nil {
		return "", fmt.Errorf("indexer: encode attributes: %w", err)
	}
	return string(data), nil
}

// DecodeAttributes restores the ordered attributes of a stored event.
func (e EventRecord) DecodeAttributes() ([]types.Attribute, error) {
	var attrs []attributeJSON
	if err := json.Unmarshal([]byte(e.Attributes), &attrs); err != nil {
		return nil, err
	}
	out := make([]types.Attribute, len(attrs))
	for idx, a := range attrs {
		out[idx] = types.Attribute{Key: a.Key, Value: a.Value}
	}
	return out, nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > DefaultLimit {
		return DefaultLimit
	}
	return limit
}

// CallsByContract returns the most recent calls that targeted contract,
// newest first, with their events.
func (i *Indexer) CallsByContract(ctx context.Context, contract string, limit int) ([]CallRecord, error) {
	var calls []CallRecord
	err := i.db.WithContext(ctx).
		Preload("Events", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("contract = ?", contract).
		Order("height DESC").Order("created_at DESC").
		Limit(clampLimit(limit)).
		Find(&calls).Error
	return calls, err
}

// EventsByContract returns events attributed to contract, newest first.
// Events emitted by nested calls are attributed to the contract that emitted
// them, not the top-level target.
func (i *Indexer) EventsByContract(ctx context.Context, contract string, limit int) ([]EventRecord, error) {
	var out []EventRecord
	err := i.db.WithContext(ctx).
		Where("contract = ?", contract).
		Order("height DESC").Order("position DESC").
		Limit(clampLimit(limit)).
		Find(&out).Error
	return out, err
}

// FailedCalls returns calls that rolled back, newest first.
func (i *Indexer) FailedCalls(ctx context.Context, limit int) ([]CallRecord, error) {
	var calls []CallRecord
	err := i.db.WithContext(ctx).
		Where("error <> ''").
		Order("created_at DESC").
		Limit(clampLimit(limit)).
		Find(&calls).Error
	return calls, err
}
