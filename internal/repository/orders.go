package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"tableflow/internal/common/db"
	"tableflow/internal/domain"
)

// liveTableConstraint is the partial unique index guarding "one live dine-in
// order per table". It turns the check-then-create race into a database
// conflict the resolver can recover from.
const liveTableConstraint = "orders_live_table_uniq"

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Orders struct {
	conn *db.Conn
}

func NewOrders(conn *db.Conn) *Orders { return &Orders{conn: conn} }

const orderColumns = `id, table_no, order_type, status, is_priority,
	assigned_chef_id, assigned_chef_name, paid, total, created_at, updated_at`

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	var chefID, chefName *string
	err := row.Scan(&o.ID, &o.TableNo, &o.Type, &o.Status, &o.IsPriority,
		&chefID, &chefName, &o.Paid, &o.Total, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan order: %w", err)
	}
	if chefID != nil {
		o.AssignedChef = &domain.ChefRef{ID: *chefID}
		if chefName != nil {
			o.AssignedChef.Name = *chefName
		}
	}
	return &o, nil
}

func loadLines(ctx context.Context, q querier, o *domain.Order) error {
	rows, err := q.Query(ctx, `
		SELECT batch, product_ref, title, price, qty, added_at
		FROM order_lines WHERE order_id=$1
		ORDER BY batch, id`, o.ID)
	if err != nil {
		return fmt.Errorf("load lines: %w", err)
	}
	defer rows.Close()

	var batches []domain.AddonBatch
	lastBatch := -1
	for rows.Next() {
		var batch int
		var l domain.OrderLine
		var addedAt time.Time
		if err := rows.Scan(&batch, &l.ProductRef, &l.Title, &l.Price, &l.Qty, &addedAt); err != nil {
			return fmt.Errorf("scan line: %w", err)
		}
		if batch == 0 {
			o.Items = append(o.Items, l)
			continue
		}
		if batch != lastBatch {
			batches = append(batches, domain.AddonBatch{AddedAt: addedAt})
			lastBatch = batch
		}
		b := &batches[len(batches)-1]
		b.Items = append(b.Items, l)
	}
	o.AddOns = batches
	return rows.Err()
}

func (r *Orders) getTx(ctx context.Context, q querier, id string) (*domain.Order, error) {
	o, err := scanOrder(q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
	if err != nil {
		return nil, err
	}
	if err := loadLines(ctx, q, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *Orders) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.getTx(ctx, r.conn, id)
}

// SubmitCart is the merge-or-create transaction. A live dine-in order for
// the table is locked and extended with a new addon batch; otherwise a new
// pending order is inserted. Two concurrent submissions for one table
// serialize on either the row lock or the partial unique index, so duplicate
// live orders cannot be created; the loser of the index race retries once as
// an attach.
func (r *Orders) SubmitCart(ctx context.Context, o *domain.Order) (*domain.Order, bool, error) {
	for attempt := 0; attempt < 2; attempt++ {
		out, created, err := r.submitCartOnce(ctx, o)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == liveTableConstraint {
			continue
		}
		return out, created, err
	}
	return nil, false, domain.ErrConflict
}

func (r *Orders) submitCartOnce(ctx context.Context, o *domain.Order) (*domain.Order, bool, error) {
	tx, err := r.conn.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if o.Type == domain.TypeDineIn {
		var existingID string
		err := tx.QueryRow(ctx, `
			SELECT id FROM orders
			WHERE table_no=$1 AND order_type=$2 AND status <> $3
			FOR UPDATE`,
			o.TableNo, domain.TypeDineIn, domain.StatusServed).Scan(&existingID)
		switch {
		case err == nil:
			out, err := r.appendBatch(ctx, tx, existingID, o.Items)
			if err != nil {
				return nil, false, err
			}
			return out, false, tx.Commit(ctx)
		case !errors.Is(err, pgx.ErrNoRows):
			return nil, false, fmt.Errorf("lookup live order: %w", err)
		}
	} else if o.TableNo == 0 {
		// Takeaway orders get a synthetic slot from a dedicated sequence so
		// concurrent takeaways never collide with each other or real tables.
		if err := tx.QueryRow(ctx, `SELECT nextval('takeaway_slot_seq')`).Scan(&o.TableNo); err != nil {
			return nil, false, fmt.Errorf("takeaway slot: %w", err)
		}
	}

	o.ID = uuid.NewString()
	o.Status = domain.StatusPending
	o.Total = o.ComputeTotal()
	row := tx.QueryRow(ctx, `
		INSERT INTO orders (id, table_no, order_type, status, is_priority, paid, total, created_at, updated_at)
		VALUES ($1,$2,$3,$4,false,false,$5,now(),now())
		RETURNING `+orderColumns,
		o.ID, o.TableNo, o.Type, o.Status, o.Total)
	out, err := scanOrder(row)
	if err != nil {
		return nil, false, err
	}
	if err := insertLines(ctx, tx, o.ID, 0, o.Items); err != nil {
		return nil, false, err
	}
	out.Items = o.Items
	return out, true, tx.Commit(ctx)
}

func (r *Orders) appendBatch(ctx context.Context, tx pgx.Tx, orderID string, items []domain.OrderLine) (*domain.Order, error) {
	var nextBatch int
	if err := tx.QueryRow(ctx, `
		SELECT COALESCE(MAX(batch),0)+1 FROM order_lines WHERE order_id=$1`, orderID).Scan(&nextBatch); err != nil {
		return nil, fmt.Errorf("next batch: %w", err)
	}
	if err := insertLines(ctx, tx, orderID, nextBatch, items); err != nil {
		return nil, err
	}
	// Total is re-derived from the lines, never incremented blindly.
	if _, err := tx.Exec(ctx, `
		UPDATE orders SET
			total = (SELECT SUM(price*qty) FROM order_lines WHERE order_id=$1),
			updated_at = now()
		WHERE id=$1`, orderID); err != nil {
		return nil, fmt.Errorf("recompute total: %w", err)
	}
	return r.getTx(ctx, tx, orderID)
}

func insertLines(ctx context.Context, tx pgx.Tx, orderID string, batch int, items []domain.OrderLine) error {
	for _, l := range items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_lines (order_id, batch, product_ref, title, price, qty, added_at)
			VALUES ($1,$2,$3,$4,$5,$6,now())`,
			orderID, batch, l.ProductRef, l.Title, l.Price, l.Qty); err != nil {
			return fmt.Errorf("insert line %s: %w", l.ProductRef, err)
		}
	}
	return nil
}

// Claim moves pending -> making and records the chef, but only if nobody got
// there first. The condition rides in the UPDATE itself; losing the race is
// reported as ErrConflict, not a validation failure.
func (r *Orders) Claim(ctx context.Context, id string, chef domain.Principal) (*domain.Order, error) {
	tag, err := r.conn.Exec(ctx, `
		UPDATE orders SET status=$2, assigned_chef_id=$3, assigned_chef_name=$4, updated_at=now()
		WHERE id=$1 AND status=$5 AND assigned_chef_id IS NULL`,
		id, domain.StatusMaking, chef.ID, chef.Name, domain.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("claim: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, domain.ErrConflict
	}
	return r.GetByID(ctx, id)
}

// Unclaim is the explicit release: making -> pending, chef cleared.
func (r *Orders) Unclaim(ctx context.Context, id string) (*domain.Order, error) {
	tag, err := r.conn.Exec(ctx, `
		UPDATE orders SET status=$2, assigned_chef_id=NULL, assigned_chef_name=NULL, updated_at=now()
		WHERE id=$1 AND status=$3`,
		id, domain.StatusPending, domain.StatusMaking)
	if err != nil {
		return nil, fmt.Errorf("unclaim: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, domain.ErrInvalidState
	}
	return r.GetByID(ctx, id)
}

// AdvanceStatus applies from -> to as a compare-and-set. A zero-row update
// against an existing order means the status moved underneath the caller.
func (r *Orders) AdvanceStatus(ctx context.Context, id string, from, to domain.OrderStatus) (*domain.Order, error) {
	query := `UPDATE orders SET status=$2, updated_at=now() WHERE id=$1 AND status=$3`
	if to == domain.StatusServed {
		// The chef record ends with preparation; the orders_chef_status
		// check rejects a served row that still carries one.
		query = `UPDATE orders SET status=$2, assigned_chef_id=NULL, assigned_chef_name=NULL, updated_at=now()
			WHERE id=$1 AND status=$3`
	}
	tag, err := r.conn.Exec(ctx, query, id, to, from)
	if err != nil {
		return nil, fmt.Errorf("advance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, domain.ErrConflict
	}
	return r.GetByID(ctx, id)
}

func (r *Orders) SetPriority(ctx context.Context, id string, priority bool) (*domain.Order, error) {
	tag, err := r.conn.Exec(ctx, `
		UPDATE orders SET is_priority=$2, updated_at=now()
		WHERE id=$1 AND status IN ($3,$4)`,
		id, priority, domain.StatusPending, domain.StatusMaking)
	if err != nil {
		return nil, fmt.Errorf("set priority: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, domain.ErrInvalidState
	}
	return r.GetByID(ctx, id)
}

// Close is the administrative shortcut: served + paid in one step, from any
// status. Always permitted.
func (r *Orders) Close(ctx context.Context, id string) (*domain.Order, error) {
	tag, err := r.conn.Exec(ctx, `
		UPDATE orders SET status=$2, paid=true, assigned_chef_id=NULL, assigned_chef_name=NULL, updated_at=now()
		WHERE id=$1`,
		id, domain.StatusServed)
	if err != nil {
		return nil, fmt.Errorf("close: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, domain.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *Orders) MarkPaid(ctx context.Context, id string) (*domain.Order, error) {
	tag, err := r.conn.Exec(ctx, `
		UPDATE orders SET paid=true, updated_at=now() WHERE id=$1`, id)
	if err != nil {
		return nil, fmt.Errorf("mark paid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, domain.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *Orders) list(ctx context.Context, where string, args ...any) ([]domain.Order, error) {
	rows, err := r.conn.Query(ctx, `SELECT `+orderColumns+` FROM orders `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if err := loadLines(ctx, r.conn, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ListLive is the waiter/admin board: everything not settled yet, including
// served-but-unpaid tables awaiting payment.
func (r *Orders) ListLive(ctx context.Context) ([]domain.Order, error) {
	return r.list(ctx, `WHERE status <> $1 OR NOT paid ORDER BY created_at DESC`, domain.StatusServed)
}

// ListKitchen is the kitchen board: only orders still being prepared.
func (r *Orders) ListKitchen(ctx context.Context) ([]domain.Order, error) {
	return r.list(ctx, `WHERE status IN ($1,$2,$3) ORDER BY created_at DESC`,
		domain.StatusPending, domain.StatusMaking, domain.StatusReady)
}

func (r *Orders) ListHistory(ctx context.Context, limit, offset int) ([]domain.Order, error) {
	return r.list(ctx, `WHERE status = $1 AND paid ORDER BY updated_at DESC LIMIT $2 OFFSET $3`,
		domain.StatusServed, limit, offset)
}
