package gateway

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"stop-importer/feature/stops/model"

	"github.com/paulmach/orb"
	"gorm.io/gorm"
)

// Importance tables known to Nominatim. Newer installations carry
// wikimedia_importance, older ones wikipedia_article; both share the
// (language, title, importance) columns we touch.
const (
	tableWikimedia = "wikimedia_importance"
	tableWikipedia = "wikipedia_article"
)

// Nominatim implements Gateway against a Nominatim placex schema.
// All statements are raw SQL; hstore values are assembled in SQL from
// flattened key/value arrays so no driver-level hstore codec is needed.
type Nominatim struct {
	db *gorm.DB

	// importanceTable is detected lazily on first use.
	importanceTable string
}

// NewNominatim returns a Gateway over the given database handle.
func NewNominatim(db *gorm.DB) *Nominatim {
	return &Nominatim{db: db}
}

// FindNative looks up a native object and reports whether it has a name.
func (g *Nominatim) FindNative(ctx context.Context, key model.NativeObjectKey) (*NativeObject, error) {
	row := g.db.WithContext(ctx).Raw(
		`SELECT name IS NOT NULL FROM placex WHERE osm_type = ? AND osm_id = ?`,
		string(key.Kind), key.ID,
	).Row()

	var hasName bool
	if err := row.Scan(&hasName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to look up %s%d: %w", key.Kind, key.ID, err)
	}

	return &NativeObject{Key: key, HasName: hasName}, nil
}

// TagNative merges the IFOPT tag into the object's extratags. The wikipedia
// cross-reference is only written when the slot is empty or already holds one
// of our derived titles; a foreign wikipedia tag is never overwritten. Unless
// invalidate forces it, indexed_status is only bumped when the stored IFOPT
// actually changed, which keeps repeated runs from triggering reindexing
// storms.
func (g *Nominatim) TagNative(ctx context.Context, key model.NativeObjectKey, ifopt, wikipedia string, invalidate bool) (TagResult, error) {
	q := `UPDATE placex
	         SET extratags = coalesce(extratags, ''::hstore)
	                         || hstore('ref:IFOPT', ?)
	                         || CASE WHEN ? = ''
	                                  OR (exist(extratags, 'wikipedia')
	                                      AND extratags -> 'wikipedia' NOT LIKE 'de:IFOPT\_%')
	                                 THEN ''::hstore
	                                 ELSE hstore('wikipedia', ?) END,`

	args := []any{ifopt, wikipedia, wikipedia}
	if invalidate {
		q += ` indexed_status = 2`
	} else {
		q += ` indexed_status = CASE WHEN extratags -> 'ref:IFOPT' = ? THEN indexed_status ELSE 2 END`
		args = append(args, ifopt)
	}
	q += ` WHERE osm_type = ? AND osm_id = ?
	       RETURNING name IS NOT NULL`
	args = append(args, string(key.Kind), key.ID)

	row := g.db.WithContext(ctx).Raw(q, args...).Row()

	var hadName bool
	if err := row.Scan(&hadName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TagResult{}, nil
		}
		return TagResult{}, fmt.Errorf("failed to tag %s%d: %w", key.Kind, key.ID, err)
	}

	return TagResult{Found: true, HadName: hadName}, nil
}

// BackfillName sets the object's name map and marks it for reindexing.
func (g *Nominatim) BackfillName(ctx context.Context, key model.NativeObjectKey, names map[string]string) error {
	expr, args := hstoreExpr(names)
	args = append(args, string(key.Kind), key.ID)

	tx := g.db.WithContext(ctx).Exec(
		`UPDATE placex SET name = `+expr+`, indexed_status = 2 WHERE osm_type = ? AND osm_id = ?`,
		args...,
	)
	if tx.Error != nil {
		return fmt.Errorf("failed to backfill name of %s%d: %w", key.Kind, key.ID, tx.Error)
	}
	return nil
}

// SyntheticIndex lists all synthetic stops as IFOPT -> synthetic id.
func (g *Nominatim) SyntheticIndex(ctx context.Context) (map[string]int64, error) {
	rows, err := g.db.WithContext(ctx).Raw(
		`SELECT osm_id, extratags -> 'ref:IFOPT'
		   FROM placex
		  WHERE osm_type = 'N' AND osm_id >= ? AND exist(extratags, 'ref:IFOPT')`,
		model.MinSyntheticID,
	).Rows()
	if err != nil {
		return nil, fmt.Errorf("failed to list synthetic stops: %w", err)
	}
	defer rows.Close()

	index := make(map[string]int64)
	for rows.Next() {
		var id int64
		var ifopt string
		if err := rows.Scan(&id, &ifopt); err != nil {
			return nil, fmt.Errorf("failed to scan synthetic stop: %w", err)
		}
		index[ifopt] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list synthetic stops: %w", err)
	}

	return index, nil
}

// GetSynthetic loads one synthetic stop. The hstore columns come back as
// JSON via hstore_to_json and are decoded into plain maps.
func (g *Nominatim) GetSynthetic(ctx context.Context, id int64) (*model.SyntheticRecord, error) {
	row := g.db.WithContext(ctx).Raw(
		`SELECT hstore_to_json(coalesce(name, ''::hstore)),
		        hstore_to_json(coalesce(address, ''::hstore)),
		        hstore_to_json(coalesce(extratags, ''::hstore)),
		        ST_X(geometry), ST_Y(geometry)
		   FROM placex
		  WHERE osm_type = 'N' AND osm_id = ?`,
		id,
	).Row()

	var nameJSON, addrJSON, tagsJSON []byte
	var lon, lat float64
	if err := row.Scan(&nameJSON, &addrJSON, &tagsJSON, &lon, &lat); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load synthetic stop %d: %w", id, err)
	}

	rec := &model.SyntheticRecord{ID: id, Location: orb.Point{lon, lat}}
	for _, col := range []struct {
		raw  []byte
		dest *map[string]string
	}{
		{nameJSON, &rec.Names},
		{addrJSON, &rec.Address},
		{tagsJSON, &rec.Tags},
	} {
		if err := json.Unmarshal(col.raw, col.dest); err != nil {
			return nil, fmt.Errorf("failed to decode synthetic stop %d: %w", id, err)
		}
	}

	return rec, nil
}

// InsertSynthetic creates a synthetic stop as an artificial node of type
// public_transport=stop.
func (g *Nominatim) InsertSynthetic(ctx context.Context, rec model.SyntheticRecord) error {
	nameExpr, nameArgs := hstoreExpr(rec.Names)
	addrExpr, addrArgs := hstoreExpr(rec.Address)
	tagsExpr, tagsArgs := hstoreExpr(rec.Tags)

	args := []any{rec.ID}
	args = append(args, nameArgs...)
	args = append(args, addrArgs...)
	args = append(args, tagsArgs...)
	args = append(args, rec.Location.Lon(), rec.Location.Lat())

	tx := g.db.WithContext(ctx).Exec(
		`INSERT INTO placex (place_id, osm_type, osm_id, class, type, name, address, extratags, geometry)
		 VALUES (nextval('seq_place'), 'N', ?, 'public_transport', 'stop', `+
			nameExpr+`, `+addrExpr+`, `+tagsExpr+`, ST_SetSRID(ST_MakePoint(?, ?), 4326))`,
		args...,
	)
	if tx.Error != nil {
		return fmt.Errorf("failed to insert synthetic stop %d: %w", rec.ID, tx.Error)
	}
	return nil
}

// UpdateSynthetic overwrites a synthetic stop in place and marks it for
// reindexing. The engine only calls this when something actually changed.
func (g *Nominatim) UpdateSynthetic(ctx context.Context, rec model.SyntheticRecord) error {
	nameExpr, nameArgs := hstoreExpr(rec.Names)
	addrExpr, addrArgs := hstoreExpr(rec.Address)
	tagsExpr, tagsArgs := hstoreExpr(rec.Tags)

	var args []any
	args = append(args, nameArgs...)
	args = append(args, addrArgs...)
	args = append(args, tagsArgs...)
	args = append(args, rec.Location.Lon(), rec.Location.Lat(), rec.ID)

	tx := g.db.WithContext(ctx).Exec(
		`UPDATE placex
		    SET name = `+nameExpr+`, address = `+addrExpr+`, extratags = `+tagsExpr+`,
		        geometry = ST_SetSRID(ST_MakePoint(?, ?), 4326),
		        indexed_status = 2
		  WHERE osm_type = 'N' AND osm_id = ?`,
		args...,
	)
	if tx.Error != nil {
		return fmt.Errorf("failed to update synthetic stop %d: %w", rec.ID, tx.Error)
	}
	return nil
}

// DeleteSynthetic removes the given synthetic stops in one batch.
func (g *Nominatim) DeleteSynthetic(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	tx := g.db.WithContext(ctx).Exec(
		`DELETE FROM placex WHERE osm_type = 'N' AND osm_id IN ?`, ids,
	)
	if tx.Error != nil {
		return fmt.Errorf("failed to delete synthetic stops: %w", tx.Error)
	}
	return nil
}

// ReadImportance returns the stored score for a title.
func (g *Nominatim) ReadImportance(ctx context.Context, title string) (float64, bool, error) {
	table, err := g.resolveImportanceTable(ctx)
	if err != nil {
		return 0, false, err
	}

	row := g.db.WithContext(ctx).Raw(
		fmt.Sprintf(`SELECT importance FROM %s WHERE title = ?`, table), title,
	).Row()

	var score float64
	if err := row.Scan(&score); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to read importance of %q: %w", title, err)
	}

	return score, true, nil
}

// UpsertImportance writes the score for a title, updating the existing row
// or inserting a new one.
func (g *Nominatim) UpsertImportance(ctx context.Context, title string, score float64) error {
	table, err := g.resolveImportanceTable(ctx)
	if err != nil {
		return err
	}

	tx := g.db.WithContext(ctx).Exec(
		fmt.Sprintf(`UPDATE %s SET importance = ? WHERE title = ?`, table), score, title,
	)
	if tx.Error != nil {
		return fmt.Errorf("failed to update importance of %q: %w", title, tx.Error)
	}
	if tx.RowsAffected > 0 {
		return nil
	}

	tx = g.db.WithContext(ctx).Exec(
		fmt.Sprintf(`INSERT INTO %s (language, title, importance) VALUES ('de', ?, ?)`, table),
		title, score,
	)
	if tx.Error != nil {
		return fmt.Errorf("failed to insert importance of %q: %w", title, tx.Error)
	}
	return nil
}

// resolveImportanceTable detects which importance table the installation
// carries. The result is cached for the lifetime of the gateway.
func (g *Nominatim) resolveImportanceTable(ctx context.Context) (string, error) {
	if g.importanceTable != "" {
		return g.importanceTable, nil
	}

	row := g.db.WithContext(ctx).Raw(
		`SELECT count(*) FROM pg_tables WHERE tablename = ?`, tableWikimedia,
	).Row()

	var count int
	if err := row.Scan(&count); err != nil {
		return "", fmt.Errorf("failed to detect importance table: %w", err)
	}

	if count > 0 {
		g.importanceTable = tableWikimedia
	} else {
		g.importanceTable = tableWikipedia
	}
	return g.importanceTable, nil
}

// hstoreExpr renders a map as an hstore(...) SQL expression with one
// placeholder per key and value. Keys are sorted so generated SQL is
// deterministic. An empty map renders as the empty hstore.
func hstoreExpr(m map[string]string) (string, []any) {
	if len(m) == 0 {
		return `''::hstore`, nil
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	placeholders := make([]string, 0, len(m)*2)
	args := make([]any, 0, len(m)*2)
	for _, k := range keys {
		placeholders = append(placeholders, "?", "?")
		args = append(args, k, m[k])
	}

	return `hstore(ARRAY[` + strings.Join(placeholders, ", ") + `]::text[])`, args
}
