package services

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"

	"github.com/bip/backend/internal/models"
	"github.com/bip/backend/internal/storage"
)

// FlagCatalog is the active flag taxonomy, loaded once and never mutated.
// Its version is the schema migration version that produced the rows.
type FlagCatalog struct {
	version int64
	flags   []models.FlagType
	byCode  map[string]models.FlagType
	byID    map[int64]models.FlagType
}

// LoadFlagCatalog reads the active flag types.
func LoadFlagCatalog(ctx context.Context, db *sqlx.DB) (*FlagCatalog, error) {
	var flags []models.FlagType
	err := db.SelectContext(ctx, &flags, `
		SELECT id, code, display_name, description, category, severity, sentiment, is_active
		FROM flag_types
		WHERE is_active = 1`)
	if err != nil {
		return nil, fmt.Errorf("failed to load flag types: %w", err)
	}
	version, err := storage.SchemaVersion(ctx, db)
	if err != nil {
		return nil, err
	}
	return NewFlagCatalog(version, flags), nil
}

// NewFlagCatalog builds a catalog from already loaded rows.
func NewFlagCatalog(version int64, flags []models.FlagType) *FlagCatalog {
	flags = slices.Clone(flags)
	return &FlagCatalog{
		version: version,
		flags:   flags,
		byCode:  lo.KeyBy(flags, func(f models.FlagType) string { return f.Code }),
		byID:    lo.KeyBy(flags, func(f models.FlagType) int64 { return f.ID }),
	}
}

func (c *FlagCatalog) Version() int64 { return c.version }

// Resolve finds the flag named by ref that applies to category.
func (c *FlagCatalog) Resolve(ref models.FlagRef, category models.FlagCategory) (models.FlagType, error) {
	var (
		f  models.FlagType
		ok bool
	)
	if ref.ID != 0 {
		f, ok = c.byID[ref.ID]
	} else {
		f, ok = c.byCode[strings.ToUpper(strings.TrimSpace(ref.Code))]
	}
	if !ok || !f.AppliesTo(category) {
		return models.FlagType{}, ErrInvalidFlag
	}
	return f, nil
}

var severityRank = map[models.Severity]int{
	models.SeverityCritical: 0,
	models.SeverityHigh:     1,
	models.SeverityMedium:   2,
	models.SeverityLow:      3,
}

// List returns the flags usable for category. Message flags are ordered by
// severity, user flags list positive ones first, BOTH groups by category.
func (c *FlagCatalog) List(category models.FlagCategory) []models.FlagType {
	out := lo.Filter(c.flags, func(f models.FlagType, _ int) bool {
		return f.AppliesTo(category)
	})

	slices.SortStableFunc(out, func(a, b models.FlagType) int {
		switch category {
		case models.CategoryMessage:
			if d := cmp.Compare(severityRank[a.Severity], severityRank[b.Severity]); d != 0 {
				return d
			}
		case models.CategoryUser:
			pa, pb := a.Sentiment != models.SentimentPositive, b.Sentiment != models.SentimentPositive
			if pa != pb {
				if !pa {
					return -1
				}
				return 1
			}
		default:
			if d := cmp.Compare(a.Category, b.Category); d != 0 {
				return d
			}
		}
		return cmp.Compare(a.DisplayName, b.DisplayName)
	})
	return out
}

// ValidCategory reports whether c names a flag category.
func ValidCategory(c models.FlagCategory) bool {
	return c == models.CategoryMessage || c == models.CategoryUser || c == models.CategoryBoth
}
