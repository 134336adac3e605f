package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// SessionRecordStore persists sealed console session records in the
// session_records table. It satisfies session.Persister and session.Purger.
type SessionRecordStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSessionRecordStore(db *sql.DB) *SessionRecordStore {
	return &SessionRecordStore{db: db, now: time.Now}
}

func (s *SessionRecordStore) Load(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	var expiresAt int64
	err := s.db.QueryRowContext(ctx, `SELECT data, expires_at FROM session_records WHERE record_key=?`, key).Scan(&data, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if expiresAt > 0 && expiresAt <= s.now().Unix() {
		_ = s.Delete(ctx, key)
		return nil, nil
	}
	return data, nil
}

func (s *SessionRecordStore) Save(ctx context.Context, key string, data []byte, expiresAt time.Time) error {
	var exp int64
	if !expiresAt.IsZero() {
		exp = expiresAt.Unix()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_records(record_key, data, expires_at, updated_at) VALUES(?,?,?,?)
		ON CONFLICT(record_key) DO UPDATE SET data=excluded.data, expires_at=excluded.expires_at, updated_at=excluded.updated_at`,
		key, data, exp, s.now().Unix())
	return err
}

func (s *SessionRecordStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM session_records WHERE record_key=?`, key)
	return err
}

func (s *SessionRecordStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM session_records WHERE expires_at > 0 AND expires_at <= ?`, now.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SessionRecordStore) Ping(ctx context.Context) error {
	return Ping(ctx, s.db)
}
