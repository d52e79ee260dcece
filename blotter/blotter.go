package blotter

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type Status string

const (
	StatusRejected Status = "rejected"
	StatusPosted   Status = "posted"
	StatusFilled   Status = "filled"
	StatusFailed   Status = "failed"
)

//Entry records one step of a fill request's life. Amounts and price are integer strings in
//smallest units.
type Entry struct {
	ID          string
	Time        time.Time
	Channel     string
	RequestID   string
	Type        string
	Status      Status
	Reason      string
	TakerAmount string
	MakerAmount string
	Price       string
	TxHash      string
	HedgeID     string
}

//Store keeps the blotter in SQLite.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open sqlite")
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "failed to set pragma %s", pragma)
		}
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS blotter (
			id TEXT PRIMARY KEY,
			ts INTEGER NOT NULL,
			channel TEXT NOT NULL,
			request_id TEXT NOT NULL,
			type TEXT NOT NULL,
			status TEXT NOT NULL,
			reason TEXT NOT NULL,
			taker_amount TEXT NOT NULL,
			maker_amount TEXT NOT NULL,
			price TEXT NOT NULL,
			tx_hash TEXT NOT NULL,
			hedge_id TEXT NOT NULL
		);
	`)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to create blotter table")
	}
	if _, err := db.Exec("CREATE INDEX IF NOT EXISTS blotter_channel_ts ON blotter (channel, ts);"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to create blotter index")
	}
	return &Store{db: db}, nil
}

//Append stores e, assigning an id and time when missing.
func (s *Store) Append(ctx context.Context, e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO blotter (id, ts, channel, request_id, type, status, reason, taker_amount, maker_amount, price, tx_hash, hedge_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Time.UnixMilli(), e.Channel, e.RequestID, e.Type, string(e.Status), e.Reason,
		e.TakerAmount, e.MakerAmount, e.Price, e.TxHash, e.HedgeID,
	)
	if err != nil {
		return e, errors.Wrap(err, "failed to insert blotter entry")
	}
	return e, nil
}

//List returns the entries of channel oldest first; an empty channel lists everything.
func (s *Store) List(ctx context.Context, channel string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, ts, channel, request_id, type, status, reason, taker_amount, maker_amount, price, tx_hash, hedge_id
		FROM blotter WHERE (? = '' OR channel = ?) ORDER BY ts, rowid LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, channel, channel, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query blotter")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var ts int64
		var status string
		if err := rows.Scan(&e.ID, &ts, &e.Channel, &e.RequestID, &e.Type, &status, &e.Reason,
			&e.TakerAmount, &e.MakerAmount, &e.Price, &e.TxHash, &e.HedgeID); err != nil {
			return nil, errors.Wrap(err, "failed to scan blotter entry")
		}
		e.Time = time.UnixMilli(ts)
		e.Status = Status(status)
		entries = append(entries, e)
	}
	return entries, errors.Wrap(rows.Err(), "failed to read blotter")
}

func (s *Store) Close() error {
	return s.db.Close()
}
