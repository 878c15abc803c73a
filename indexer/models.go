package indexer

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CallRecord stores one top-level host call.
type CallRecord struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CallID    string    `gorm:"size:64;uniqueIndex"`
	Height    uint64    `gorm:"index"`
	Operation string    `gorm:"size:32;index"`
	Contract  string    `gorm:"size:128;index"`
	Sender    string    `gorm:"size:128;index"`
	Error     string
	CreatedAt time.Time
	Events    []EventRecord `gorm:"foreignKey:CallRecordID"`
}

// Succeeded reports whether the call committed.
func (c CallRecord) Succeeded() bool { return c.Error == "" }

// EventRecord stores one event of a committed call. Attributes are kept as a
// JSON array of key/value pairs to preserve order.
type EventRecord struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	CallRecordID uuid.UUID `gorm:"type:uuid;index"`
	Position     int
	Height       uint64 `gorm:"index"`
	Type         string `gorm:"size:64;index"`
	Contract     string `gorm:"size:128;index"`
	Attributes   string
	CreatedAt    time.Time
}

// AutoMigrate performs all schema migrations for the indexer.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&CallRecord{}, &EventRecord{})
}
