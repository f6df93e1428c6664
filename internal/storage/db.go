package storage

import (
	"database/sql"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"palletdesk/internal"
)

// DB persists whole session snapshots. It subscribes to nothing: callers
// save after committed mutations and load for a bulk replace into the
// registries.
type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS orders (
  orderId TEXT PRIMARY KEY,
  customer TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'Pending',
  transporter TEXT,
  parcelNo TEXT,
  deliveryDate TEXT,
  weightKg REAL NOT NULL DEFAULT 0,
  deletedAt TEXT
);

CREATE TABLE IF NOT EXISTS line_items (
  seq INTEGER PRIMARY KEY,
  position TEXT NOT NULL DEFAULT '',
  positionIdent TEXT NOT NULL DEFAULT '',
  barCodeNumber TEXT NOT NULL DEFAULT '',
  positionDetail TEXT NOT NULL DEFAULT '',
  identNumber TEXT NOT NULL DEFAULT '',
  detail TEXT NOT NULL DEFAULT '',
  type TEXT NOT NULL DEFAULT '',
  weight REAL NOT NULL DEFAULT 0,
  unit TEXT NOT NULL DEFAULT 'Kg',
  qty REAL NOT NULL DEFAULT 1,
  palletNumber TEXT NOT NULL DEFAULT '',
  workNumber TEXT NOT NULL DEFAULT '',
  sealNumber TEXT NOT NULL DEFAULT '',
  containerNumber TEXT NOT NULL DEFAULT '',
  orderId TEXT NOT NULL DEFAULT '',
  lineWeightKg REAL NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_line_items_pallet ON line_items(palletNumber);

CREATE TABLE IF NOT EXISTS pallet_meta (
  palletId TEXT PRIMARY KEY,
  status TEXT NOT NULL DEFAULT 'Open',
  transporter TEXT,
  createdAt TEXT NOT NULL,
  updatedAt TEXT NOT NULL,
  maxWeightKg REAL
);
`

	_, err := d.conn.Exec(schema)
	return err
}

// SaveSnapshot replaces the stored session with the given one, atomically.
// Line-item order is preserved through the seq column so insertion order
// (which the split algorithm depends on) survives a restore.
func (d *DB) SaveSnapshot(snap internal.Snapshot) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"orders", "line_items", "pallet_meta"} {
		if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
			return err
		}
	}

	orderStmt, err := tx.Prepare(`
INSERT INTO orders (orderId, customer, status, transporter, parcelNo, deliveryDate, weightKg, deletedAt)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer orderStmt.Close()
	for _, o := range snap.Orders {
		if _, err := orderStmt.Exec(o.OrderID, o.Customer, string(o.Status), o.Transporter, o.ParcelNo, o.DeliveryDate, o.WeightKg, o.DeletedAt); err != nil {
			return err
		}
	}

	rowStmt, err := tx.Prepare(`
INSERT INTO line_items (
  seq, position, positionIdent, barCodeNumber, positionDetail, identNumber,
  detail, type, weight, unit, qty,
  palletNumber, workNumber, sealNumber, containerNumber, orderId, lineWeightKg
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer rowStmt.Close()
	for i, r := range snap.Rows {
		if _, err := rowStmt.Exec(
			i, r.Position, r.PositionIdent, r.BarCodeNumber, r.PositionDetail, r.IdentNumber,
			r.Detail, r.Type, r.Weight, r.Unit, r.QTY,
			r.PalletNumber, r.WorkNumber, r.SealNumber, r.ContainerNumber, r.OrderID, r.LineWeightKg,
		); err != nil {
			return err
		}
	}

	metaStmt, err := tx.Prepare(`
INSERT INTO pallet_meta (palletId, status, transporter, createdAt, updatedAt, maxWeightKg)
VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer metaStmt.Close()
	for id, m := range snap.Meta {
		if _, err := metaStmt.Exec(id, string(m.Status), m.Transporter, m.CreatedAt, m.UpdatedAt, m.MaxWeightKg); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// LoadSnapshot reads the stored session back as plain records.
func (d *DB) LoadSnapshot() (internal.Snapshot, error) {
	snap := internal.Snapshot{Meta: map[string]internal.PalletMeta{}}

	orderRows, err := d.conn.Query(`
SELECT orderId, customer, status, transporter, parcelNo, deliveryDate, weightKg, deletedAt
FROM orders ORDER BY rowid`)
	if err != nil {
		return snap, err
	}
	defer orderRows.Close()
	for orderRows.Next() {
		var o internal.Order
		var status string
		if err := orderRows.Scan(&o.OrderID, &o.Customer, &status, &o.Transporter, &o.ParcelNo, &o.DeliveryDate, &o.WeightKg, &o.DeletedAt); err != nil {
			return snap, err
		}
		o.Status = internal.OrderStatus(status)
		snap.Orders = append(snap.Orders, o)
	}
	if err := orderRows.Err(); err != nil {
		return snap, err
	}

	lineRows, err := d.conn.Query(`
SELECT position, positionIdent, barCodeNumber, positionDetail, identNumber,
       detail, type, weight, unit, qty,
       palletNumber, workNumber, sealNumber, containerNumber, orderId, lineWeightKg
FROM line_items ORDER BY seq`)
	if err != nil {
		return snap, err
	}
	defer lineRows.Close()
	for lineRows.Next() {
		var r internal.LineItem
		if err := lineRows.Scan(
			&r.Position, &r.PositionIdent, &r.BarCodeNumber, &r.PositionDetail, &r.IdentNumber,
			&r.Detail, &r.Type, &r.Weight, &r.Unit, &r.QTY,
			&r.PalletNumber, &r.WorkNumber, &r.SealNumber, &r.ContainerNumber, &r.OrderID, &r.LineWeightKg,
		); err != nil {
			return snap, err
		}
		snap.Rows = append(snap.Rows, r)
	}
	if err := lineRows.Err(); err != nil {
		return snap, err
	}

	metaRows, err := d.conn.Query(`
SELECT palletId, status, transporter, createdAt, updatedAt, maxWeightKg FROM pallet_meta`)
	if err != nil {
		return snap, err
	}
	defer metaRows.Close()
	for metaRows.Next() {
		var id, status string
		var m internal.PalletMeta
		if err := metaRows.Scan(&id, &status, &m.Transporter, &m.CreatedAt, &m.UpdatedAt, &m.MaxWeightKg); err != nil {
			return snap, err
		}
		m.Status = internal.PalletStatus(status)
		snap.Meta[id] = m
	}
	return snap, metaRows.Err()
}
