package database

import (
	"github.com/thinkscotty/newsroom/internal/models"
)

// CreateSession inserts a new session record.
func (db *DB) CreateSession(sess *models.Session) error {
	result, err := db.conn.Exec(
		`INSERT INTO sessions (token, expires_at) VALUES (?, datetime(?))`,
		sess.Token, sess.ExpiresAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return err
	}
	sess.ID, err = result.LastInsertId()
	return err
}

// GetSession retrieves a non-expired session by token.
func (db *DB) GetSession(token string) (models.Session, error) {
	var sess models.Session
	var expiresAt, createdAt string
	err := db.conn.QueryRow(
		`SELECT id, token, visited, expires_at, created_at
		 FROM sessions
		 WHERE token = ? AND expires_at > datetime('now')`,
		token,
	).Scan(&sess.ID, &sess.Token, &sess.Visited, &expiresAt, &createdAt)
	if err != nil {
		return sess, err
	}
	sess.ExpiresAt, _ = parseTime(expiresAt)
	sess.CreatedAt, _ = parseTime(createdAt)
	return sess, nil
}

// MarkSessionVisited flags the session as counted and reports whether this
// call was the one that flipped it.
func (db *DB) MarkSessionVisited(token string) (bool, error) {
	result, err := db.conn.Exec(`UPDATE sessions SET visited = 1 WHERE token = ? AND visited = 0`, token)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n == 1, err
}

// DeleteSession removes a specific session (for logout).
func (db *DB) DeleteSession(token string) error {
	_, err := db.conn.Exec(`DELETE FROM sessions WHERE token = ?`, token)
	return err
}

// DeleteExpiredSessions removes all sessions past their expiry.
func (db *DB) DeleteExpiredSessions() (int64, error) {
	result, err := db.conn.Exec(`DELETE FROM sessions WHERE expires_at <= datetime('now')`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
