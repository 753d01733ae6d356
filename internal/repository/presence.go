package repository

import (
	"context"
	"fmt"
	"time"

	"tableflow/internal/common/db"
	"tableflow/internal/domain"
)

type Presence struct {
	conn *db.Conn
}

func NewPresence(conn *db.Conn) *Presence { return &Presence{conn: conn} }

func (r *Presence) SetOnline(ctx context.Context, staffID, name string) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO staff_presence (staff_id, name, online, last_seen)
		VALUES ($1,$2,true,now())
		ON CONFLICT (staff_id) DO UPDATE SET
			name = EXCLUDED.name,
			online = true,
			last_seen = now()`,
		staffID, name)
	if err != nil {
		return fmt.Errorf("set online: %w", err)
	}
	return nil
}

func (r *Presence) SetOffline(ctx context.Context, staffID string) error {
	_, err := r.conn.Exec(ctx, `
		UPDATE staff_presence SET online=false, last_seen=now() WHERE staff_id=$1`, staffID)
	if err != nil {
		return fmt.Errorf("set offline: %w", err)
	}
	return nil
}

func (r *Presence) Heartbeat(ctx context.Context, staffID string) error {
	_, err := r.conn.Exec(ctx, `
		UPDATE staff_presence SET last_seen=now() WHERE staff_id=$1 AND online`, staffID)
	if err != nil {
		return fmt.Errorf("heartbeat: %w", err)
	}
	return nil
}

func (r *Presence) Online(ctx context.Context) ([]domain.StaffPresence, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT staff_id, name, online, last_seen FROM staff_presence WHERE online ORDER BY staff_id`)
	if err != nil {
		return nil, fmt.Errorf("list online: %w", err)
	}
	defer rows.Close()

	var out []domain.StaffPresence
	for rows.Next() {
		var p domain.StaffPresence
		if err := rows.Scan(&p.StaffID, &p.Name, &p.Online, &p.LastSeen); err != nil {
			return nil, fmt.Errorf("scan presence: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SweepStale flips rows whose heartbeat went silent, covering sessions that
// died without sending an explicit offline.
func (r *Presence) SweepStale(ctx context.Context, olderThan time.Duration) (int, error) {
	tag, err := r.conn.Exec(ctx, `
		UPDATE staff_presence SET online=false
		WHERE online AND last_seen < now() - $1::interval`,
		fmt.Sprintf("%d seconds", int(olderThan.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("sweep stale: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
