package database

import (
	"database/sql"
	"time"
)

const actionColumns = `id, run_id, timestamp, action, path, file_name, object_type, size,
	       failure_kind, error_message`

const verdictColumns = `id, run_id, timestamp, path, encoding, verdict, size, error_message`

// GetRecentActions returns the N most recent reap actions
func (d *HistoryDB) GetRecentActions(limit int) ([]ActionRecord, error) {
	return d.queryActions(`
	SELECT `+actionColumns+`
	FROM actions
	ORDER BY timestamp DESC, id DESC
	LIMIT ?
	`, limit)
}

// GetActionsByRun returns every action of one run in the order recorded
func (d *HistoryDB) GetActionsByRun(runID string) ([]ActionRecord, error) {
	return d.queryActions(`
	SELECT `+actionColumns+`
	FROM actions
	WHERE run_id = ?
	ORDER BY id ASC
	`, runID)
}

// GetActionsByAction returns actions filtered by action type
func (d *HistoryDB) GetActionsByAction(action string, limit int) ([]ActionRecord, error) {
	return d.queryActions(`
	SELECT `+actionColumns+`
	FROM actions
	WHERE action = ?
	ORDER BY timestamp DESC, id DESC
	LIMIT ?
	`, action, limit)
}

// GetActionsByPath returns actions whose path matches a LIKE pattern
func (d *HistoryDB) GetActionsByPath(pathPattern string, limit int) ([]ActionRecord, error) {
	return d.queryActions(`
	SELECT `+actionColumns+`
	FROM actions
	WHERE path LIKE ?
	ORDER BY timestamp DESC, id DESC
	LIMIT ?
	`, pathPattern, limit)
}

// GetRecentVerdicts returns the N most recent file verdicts
func (d *HistoryDB) GetRecentVerdicts(limit int) ([]VerdictRecord, error) {
	return d.queryVerdicts(`
	SELECT `+verdictColumns+`
	FROM verdicts
	ORDER BY timestamp DESC, id DESC
	LIMIT ?
	`, limit)
}

// GetVerdictsByRun returns every verdict of one run in the order recorded
func (d *HistoryDB) GetVerdictsByRun(runID string) ([]VerdictRecord, error) {
	return d.queryVerdicts(`
	SELECT `+verdictColumns+`
	FROM verdicts
	WHERE run_id = ?
	ORDER BY id ASC
	`, runID)
}

// GetTotalSpaceFreed returns total bytes deleted in a time range
func (d *HistoryDB) GetTotalSpaceFreed(start, end time.Time) (int64, error) {
	var total int64
	err := d.db.QueryRow(`
	SELECT COALESCE(SUM(size), 0)
	FROM actions
	WHERE action = 'DELETE' AND timestamp BETWEEN ? AND ?
	`, start, end).Scan(&total)
	return total, err
}

// HistoryStats holds aggregated statistics
type HistoryStats struct {
	TotalDeleted    int
	TotalSkipped    int
	TotalErrors     int
	TotalSpaceFreed int64
	ByFailureKind   map[string]int
	ByEncoding      map[string]int
	ByVerdict       map[string]int
	StartDate       time.Time
	EndDate         time.Time
}

// GetHistoryStats returns statistics for the last days
func (d *HistoryDB) GetHistoryStats(days int) (*HistoryStats, error) {
	now := time.Now()
	since := now.AddDate(0, 0, -days)

	stats := &HistoryStats{
		StartDate: since,
		EndDate:   now,
	}

	err := d.db.QueryRow(`
		SELECT
			COUNT(CASE WHEN action = 'DELETE' THEN 1 END),
			COUNT(CASE WHEN action = 'SKIP' THEN 1 END),
			COUNT(CASE WHEN action = 'ERROR' THEN 1 END)
		FROM actions
		WHERE timestamp >= ?
	`, since).Scan(&stats.TotalDeleted, &stats.TotalSkipped, &stats.TotalErrors)
	if err != nil {
		return nil, err
	}

	stats.TotalSpaceFreed, err = d.GetTotalSpaceFreed(since, now)
	if err != nil {
		return nil, err
	}

	stats.ByFailureKind, err = d.countBy(`
		SELECT failure_kind, COUNT(*) FROM actions
		WHERE action = 'ERROR' AND failure_kind IS NOT NULL AND timestamp >= ?
		GROUP BY failure_kind`, since)
	if err != nil {
		return nil, err
	}

	stats.ByEncoding, err = d.countBy(`
		SELECT encoding, COUNT(*) FROM verdicts
		WHERE timestamp >= ?
		GROUP BY encoding`, since)
	if err != nil {
		return nil, err
	}

	stats.ByVerdict, err = d.countBy(`
		SELECT verdict, COUNT(*) FROM verdicts
		WHERE timestamp >= ?
		GROUP BY verdict`, since)
	if err != nil {
		return nil, err
	}

	return stats, nil
}

// DeleteOldRecords removes records older than specified days from both tables
func (d *HistoryDB) DeleteOldRecords(olderThanDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -olderThanDays)

	var total int64
	for _, table := range []string{"actions", "verdicts"} {
		result, err := d.db.Exec("DELETE FROM "+table+" WHERE timestamp < ?", cutoff)
		if err != nil {
			return total, err
		}
		n, err := result.RowsAffected()
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (d *HistoryDB) countBy(query string, args ...interface{}) (map[string]int, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return nil, err
		}
		counts[key] = count
	}
	return counts, rows.Err()
}

func (d *HistoryDB) queryActions(query string, args ...interface{}) ([]ActionRecord, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []ActionRecord
	for rows.Next() {
		var r ActionRecord
		var fileName, kind, errMsg sql.NullString

		err := rows.Scan(
			&r.ID, &r.RunID, &r.Timestamp, &r.Action, &r.Path, &fileName,
			&r.ObjectType, &r.Size, &kind, &errMsg,
		)
		if err != nil {
			return nil, err
		}
		r.FileName = fileName.String
		r.FailureKind = kind.String
		r.ErrorMessage = errMsg.String

		records = append(records, r)
	}

	return records, rows.Err()
}

func (d *HistoryDB) queryVerdicts(query string, args ...interface{}) ([]VerdictRecord, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []VerdictRecord
	for rows.Next() {
		var r VerdictRecord
		var errMsg sql.NullString

		if err := rows.Scan(
			&r.ID, &r.RunID, &r.Timestamp, &r.Path, &r.Encoding, &r.Verdict, &r.Size, &errMsg,
		); err != nil {
			return nil, err
		}
		r.ErrorMessage = errMsg.String

		records = append(records, r)
	}

	return records, rows.Err()
}
