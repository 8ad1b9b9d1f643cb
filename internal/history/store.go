package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"atelier-ai/internal/catalog"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrForbidden = errors.New("record belongs to another requester")
)

// Record is one completed generation attempt, failed ones included: the
// history doubles as the audit log. Append-only; rows are only ever removed
// by their owner.
type Record struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	RequesterID   *uuid.UUID     `gorm:"type:uuid;index" json:"requester_id,omitempty"`
	GarmentRefs   datatypes.JSON `json:"garment_refs"`
	FacetSnapshot datatypes.JSON `json:"facet_snapshot"`
	Prompt        string         `json:"prompt"`
	Status        string         `gorm:"index" json:"status"`
	ImageRef      string         `json:"image_ref,omitempty"`
	Description   string         `json:"description,omitempty"`
	ErrorKind     string         `json:"error_kind,omitempty"`
	Diagnostic    string         `json:"-"`
	CreatedAt     time.Time      `gorm:"index" json:"created_at"`
}

func (Record) TableName() string { return "generation_records" }

// SetGarmentRefs / SetFacetSnapshot marshal the derived artifacts into the
// JSON columns.
func (r *Record) SetGarmentRefs(refs []string) error {
	raw, err := json.Marshal(refs)
	if err != nil {
		return err
	}
	r.GarmentRefs = datatypes.JSON(raw)
	return nil
}

func (r *Record) SetFacetSnapshot(snapshot map[catalog.Category]catalog.Facet) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	r.FacetSnapshot = datatypes.JSON(raw)
	return nil
}

func (r *Record) GetGarmentRefs() ([]string, error) {
	var refs []string
	if len(r.GarmentRefs) == 0 {
		return nil, nil
	}
	if err := json.Unmarshal(r.GarmentRefs, &refs); err != nil {
		return nil, err
	}
	return refs, nil
}

func (r *Record) GetFacetSnapshot() (map[catalog.Category]catalog.Facet, error) {
	out := make(map[catalog.Category]catalog.Facet)
	if len(r.FacetSnapshot) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(r.FacetSnapshot, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type Order string

const (
	OrderNewest Order = "newest"
	OrderOldest Order = "oldest"
)

func ParseOrder(value string) Order {
	if strings.EqualFold(strings.TrimSpace(value), string(OrderOldest)) {
		return OrderOldest
	}
	return OrderNewest
}

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type StoreOptions struct {
	DB     *gorm.DB
	Logger *slog.Logger
}

type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewStore(opts StoreOptions) (*Store, error) {
	if opts.DB == nil {
		return nil, errors.New("history: db is nil")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if err := opts.DB.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("history: migrate: %w", err)
	}

	return &Store{db: opts.DB, logger: logger}, nil
}

func (s *Store) Append(ctx context.Context, rec *Record) (uuid.UUID, error) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return uuid.Nil, fmt.Errorf("append record: %w", err)
	}
	return rec.ID, nil
}

// List returns the requester's records in time order. The limit is clamped
// defensively regardless of what the caller asks for.
func (s *Store) List(ctx context.Context, requesterID uuid.UUID, limit int, order Order) ([]Record, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	sort := "created_at DESC"
	if order == OrderOldest {
		sort = "created_at ASC"
	}

	var records []Record
	err := s.db.WithContext(ctx).
		Where("requester_id = ?", requesterID).
		Order(sort).
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return records, nil
}

// Remove deletes one record after verifying ownership. A record owned by a
// different requester (or by nobody) is Forbidden, never silently deleted.
func (s *Store) Remove(ctx context.Context, requesterID uuid.UUID, recordID uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec Record
		err := tx.First(&rec, "id = ?", recordID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("load record: %w", err)
		}

		if rec.RequesterID == nil || *rec.RequesterID != requesterID {
			return ErrForbidden
		}

		if err := tx.Delete(&Record{}, "id = ?", recordID).Error; err != nil {
			return fmt.Errorf("delete record: %w", err)
		}
		return nil
	})
}
