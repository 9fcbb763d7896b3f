// Package cache mirrors the watershed, gauge and facility records fetched
// from upstream APIs into the relational store. Rows are keyed by their
// natural identifiers and overwritten on every fetch; the upstream API stays
// the source of truth.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/headwatersai/headwaters-backend/internal/epa"
	"github.com/headwatersai/headwaters-backend/internal/observability"
	"github.com/headwatersai/headwaters-backend/internal/upstream"
	"github.com/headwatersai/headwaters-backend/internal/usgs"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// batchSize caps the rows per INSERT statement.
const batchSize = 500

var ErrNotFound = errors.New("not cached")

type Store struct {
	db      *gorm.DB
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewStore wires a Store. metrics may be nil.
func NewStore(d *gorm.DB, metrics *observability.Metrics, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		db:      d,
		clock:   clockwork.NewRealClock(),
		logger:  logger.With("component", "cache"),
		metrics: metrics,
	}
}

// SetClock replaces the clock used for cached_at stamps.
func (s *Store) SetClock(c clockwork.Clock) {
	s.clock = c
}

// upsert writes rows in batches inside one transaction. On a key conflict
// every non-key column is overwritten.
func upsert[T any](ctx context.Context, s *Store, table, key string, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	start := time.Now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: key}},
			UpdateAll: true,
		}).CreateInBatches(&rows, batchSize).Error
	})
	if err != nil {
		return fmt.Errorf("upsert %s: %w", table, err)
	}

	if s.metrics != nil {
		s.metrics.CacheUpserts.WithLabelValues(table).Add(float64(len(rows)))
	}
	upstream.LogUpsert(ctx, s.logger, table, len(rows), time.Since(start))
	return nil
}

// UpsertWatershed stores w together with its upstream HUC-12 list.
func (s *Store) UpsertWatershed(ctx context.Context, w *usgs.Watershed, upstreamHUC12s []string) error {
	if upstreamHUC12s == nil {
		upstreamHUC12s = []string{}
	}
	row := Watershed{
		HUC12:          w.HUC12,
		HUC10:          w.HUC10,
		HUC8:           w.HUC8,
		HUC6:           w.HUC6,
		HUC4:           w.HUC4,
		HUC2:           w.HUC2,
		Name:           w.Name,
		AreaSqKm:       w.AreaSqKm,
		States:         w.States,
		CentroidLat:    w.CentroidLat,
		CentroidLng:    w.CentroidLng,
		Boundary:       string(w.Boundary),
		UpstreamHUC12s: upstreamHUC12s,
		CachedAt:       s.clock.Now().UTC(),
	}
	return upsert(ctx, s, "watersheds", "huc12", []Watershed{row})
}

func (s *Store) UpsertGauges(ctx context.Context, gauges []usgs.Gauge) error {
	now := s.clock.Now().UTC()
	rows := make([]StreamGauge, 0, len(gauges))
	for _, g := range gauges {
		rows = append(rows, StreamGauge{
			SiteID:           g.SiteID,
			SiteName:         g.SiteName,
			Latitude:         g.Latitude,
			Longitude:        g.Longitude,
			StateCode:        g.StateCode,
			CountyName:       g.CountyName,
			DrainageAreaSqMi: g.DrainageAreaSqMi,
			DatumElevationFt: g.DatumElevationFt,
			SiteType:         g.SiteType,
			Active:           true,
			CachedAt:         now,
		})
	}
	return upsert(ctx, s, "stream_gauges", "site_id", dedupe(rows, func(r StreamGauge) string { return r.SiteID }))
}

func (s *Store) UpsertReadings(ctx context.Context, readings []usgs.Reading) error {
	now := s.clock.Now().UTC()
	rows := make([]GaugeReading, 0, len(readings))
	for _, r := range readings {
		rows = append(rows, GaugeReading{
			ID:               r.ID(),
			SiteID:           r.SiteID,
			Timestamp:        r.Timestamp,
			DischargeCfs:     r.DischargeCfs,
			GageHeightFt:     r.GageHeightFt,
			WaterTempCelsius: r.WaterTempCelsius,
			CachedAt:         now,
		})
	}
	return upsert(ctx, s, "gauge_readings", "id", dedupe(rows, func(r GaugeReading) string { return r.ID }))
}

func (s *Store) UpsertFacilities(ctx context.Context, facilities []epa.Facility) error {
	now := s.clock.Now().UTC()
	rows := make([]Facility, 0, len(facilities))
	for _, f := range facilities {
		if f.RegistryID == "" {
			continue
		}
		rows = append(rows, Facility{
			RegistryID:           f.RegistryID,
			FacilityName:         f.FacilityName,
			Latitude:             f.Latitude,
			Longitude:            f.Longitude,
			StreetAddress:        f.StreetAddress,
			City:                 f.City,
			StateCode:            f.StateCode,
			ZipCode:              f.ZipCode,
			FacilityType:         f.FacilityType,
			NAICSCodes:           f.NAICSCodes,
			SICCodes:             f.SICCodes,
			NPDESPermitIDs:       f.NPDESPermitIDs,
			IsMajorDischarger:    f.IsMajorDischarger,
			ComplianceStatus:     f.ComplianceStatus,
			LastInspectionDate:   f.LastInspectionDate,
			ViolationsLast3Years: f.ViolationsLast3Years,
			CachedAt:             now,
		})
	}
	return upsert(ctx, s, "facilities", "registry_id", dedupe(rows, func(r Facility) string { return r.RegistryID }))
}

// dedupe keeps the last row per key. Postgres rejects a single INSERT ... ON
// CONFLICT that touches the same key twice.
func dedupe[T any](rows []T, key func(T) string) []T {
	idx := make(map[string]int, len(rows))
	out := rows[:0]
	for _, r := range rows {
		k := key(r)
		if i, ok := idx[k]; ok {
			out[i] = r
			continue
		}
		idx[k] = len(out)
		out = append(out, r)
	}
	return out
}

func (s *Store) GetWatershed(ctx context.Context, huc12 string) (*Watershed, error) {
	var w Watershed
	return first(s.db.WithContext(ctx).Where("huc12 = ?", huc12), &w)
}

func (s *Store) GetGauge(ctx context.Context, siteID string) (*StreamGauge, error) {
	var g StreamGauge
	return first(s.db.WithContext(ctx).Where("site_id = ?", siteID), &g)
}

func (s *Store) GetFacility(ctx context.Context, registryID string) (*Facility, error) {
	var f Facility
	return first(s.db.WithContext(ctx).Where("registry_id = ?", registryID), &f)
}

// LatestReadings returns the newest cached reading for each of siteIDs that
// has one, keyed by site.
func (s *Store) LatestReadings(ctx context.Context, siteIDs []string) (map[string]GaugeReading, error) {
	out := make(map[string]GaugeReading, len(siteIDs))
	for len(siteIDs) > 0 {
		chunk := siteIDs[:min(len(siteIDs), batchSize)]
		siteIDs = siteIDs[len(chunk):]

		var rows []GaugeReading
		err := s.db.WithContext(ctx).
			Where("site_id IN ?", chunk).
			Order("observed_at ASC").
			Find(&rows).Error
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			out[r.SiteID] = r
		}
	}
	return out, nil
}

// StaleWatersheds lists watersheds cached before cutoff, oldest first.
func (s *Store) StaleWatersheds(ctx context.Context, cutoff time.Time, limit int) ([]Watershed, error) {
	var out []Watershed
	q := s.db.WithContext(ctx).Where("cached_at < ?", cutoff).Order("cached_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func first[T any](q *gorm.DB, dst *T) (*T, error) {
	if err := q.First(dst).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return dst, nil
}
