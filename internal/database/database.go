package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"leadinbox/internal/migrations"
	"leadinbox/internal/models"
	"leadinbox/internal/security"

	_ "github.com/mattn/go-sqlite3"
)

// Database is the single durable store: tenants with their webhook tokens,
// deduplicated clients, and requests with status and chat-mirror bookkeeping.
type Database struct {
	db  *sql.DB
	enc *encryptor
}

func New(dbPath string) (*Database, error) {
	if err := security.ValidateFilePath(dbPath); err != nil {
		return nil, fmt.Errorf("invalid database path: %w", err)
	}

	enc, err := NewEncryptor()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize encryption: %w", err)
	}

	file, err := os.OpenFile(dbPath, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create database file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close database file: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_foreign_keys=on&_loc=UTC")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		closeAndJoin(db, &err, "failed to ping database")
		return nil, err
	}

	schema, err := migrations.GetInitialSchema()
	if err != nil {
		closeAndJoin(db, &err, "failed to read schema")
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		closeAndJoin(db, &err, "failed to initialize schema")
		return nil, err
	}

	return &Database{db: db, enc: enc}, nil
}

func closeAndJoin(db *sql.DB, err *error, msg string) {
	if closeErr := db.Close(); closeErr != nil {
		*err = fmt.Errorf("%s: %w (close error: %v)", msg, *err, closeErr)
		return
	}
	*err = fmt.Errorf("%s: %w", msg, *err)
}

func (d *Database) Close() error {
	return d.db.Close()
}

// Tenant operations

// CreateTenant inserts a tenant with its token. A duplicate token surfaces
// as ErrTokenExists so the caller can retry with a fresh random value. The
// token is stored with lookup encryption when encryption is enabled.
func (d *Database) CreateTenant(ctx context.Context, chatID int64, token string) (*models.Tenant, error) {
	now := time.Now().UTC()

	storedToken, err := d.enc.EncryptForLookupIfEnabled(token)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt token: %w", err)
	}

	res, err := d.db.ExecContext(ctx,
		`INSERT INTO tenants (chat_id, token, created_at) VALUES (?, ?, ?)`,
		chatID, storedToken, now,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: tenants.token") {
			return nil, ErrTokenExists
		}
		return nil, fmt.Errorf("failed to create tenant: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant id: %w", err)
	}

	return &models.Tenant{ID: id, ChatID: chatID, Token: token, CreatedAt: now}, nil
}

// GetTenantByToken returns (nil, nil) when no tenant owns the token.
func (d *Database) GetTenantByToken(ctx context.Context, token string) (*models.Tenant, error) {
	lookupToken, err := d.enc.EncryptForLookupIfEnabled(token)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt token for lookup: %w", err)
	}
	return d.scanTenant(d.db.QueryRowContext(ctx,
		`SELECT id, chat_id, token, created_at FROM tenants WHERE token = ?`, lookupToken))
}

// GetTenantByChatID returns (nil, nil) when the chat has no tenant yet.
func (d *Database) GetTenantByChatID(ctx context.Context, chatID int64) (*models.Tenant, error) {
	return d.scanTenant(d.db.QueryRowContext(ctx,
		`SELECT id, chat_id, token, created_at FROM tenants WHERE chat_id = ?`, chatID))
}

func (d *Database) scanTenant(row *sql.Row) (*models.Tenant, error) {
	tenant := &models.Tenant{}
	err := row.Scan(&tenant.ID, &tenant.ChatID, &tenant.Token, &tenant.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}

	tenant.Token, err = d.enc.DecryptIfEnabled(tenant.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt token: %w", err)
	}
	return tenant, nil
}

// Client operations

// UpsertClientByPhone deduplicates clients by phone within a tenant. Returns
// nil when neither name nor phone is present, or the matched/created client
// id otherwise. A later name for a known phone fills in a missing one.
func (d *Database) UpsertClientByPhone(ctx context.Context, tenantID int64, name, phone string) (*int64, error) {
	if name == "" && phone == "" {
		return nil, nil
	}

	// Phone is stored with lookup encryption so equality matching keeps
	// working; the name only ever needs decryption, not matching.
	storedPhone, err := d.enc.EncryptForLookupIfEnabled(phone)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt phone: %w", err)
	}
	storedName, err := d.enc.EncryptIfEnabled(name)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt name: %w", err)
	}

	if phone != "" {
		var id int64
		err := d.db.QueryRowContext(ctx,
			`SELECT id FROM clients WHERE tenant_id = ? AND phone = ? ORDER BY id DESC LIMIT 1`,
			tenantID, storedPhone,
		).Scan(&id)
		if err == nil {
			if name != "" {
				_, err = d.db.ExecContext(ctx,
					`UPDATE clients SET name = ? WHERE id = ? AND name = ''`, storedName, id)
				if err != nil {
					return nil, fmt.Errorf("failed to update client name: %w", err)
				}
			}
			return &id, nil
		}
		if err != sql.ErrNoRows {
			return nil, fmt.Errorf("failed to look up client: %w", err)
		}
	}

	res, err := d.db.ExecContext(ctx,
		`INSERT INTO clients (tenant_id, name, phone, created_at) VALUES (?, ?, ?, ?)`,
		tenantID, storedName, storedPhone, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get client id: %w", err)
	}
	return &id, nil
}

// Request operations

const requestColumns = `id, tenant_id, client_id, source, name, phone, text, payload,
	status, chat_id, message_id, mirrored_status, notify_state, notify_attempts,
	next_attempt_at, created_at, updated_at`

// InsertRequest persists a new request in status new and returns it with its
// assigned id and timestamps.
func (d *Database) InsertRequest(ctx context.Context, req *models.Request) (*models.Request, error) {
	now := time.Now().UTC()

	res, err := d.db.ExecContext(ctx, `
		INSERT INTO requests (
			tenant_id, client_id, source, name, phone, text, payload,
			status, chat_id, notify_state, notify_attempts, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		req.TenantID, req.ClientID, req.Source, req.Name, req.Phone, req.Text, req.Payload,
		models.StatusNew, req.ChatID, models.NotifyStatePending, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert request: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get request id: %w", err)
	}

	stored := *req
	stored.ID = id
	stored.Status = models.StatusNew
	stored.NotifyState = models.NotifyStatePending
	stored.CreatedAt = now
	stored.UpdatedAt = now
	return &stored, nil
}

// GetRequest returns (nil, nil) when the request does not exist or belongs
// to a different tenant. Tenant scoping happens here, not in callers.
func (d *Database) GetRequest(ctx context.Context, tenantID, requestID int64) (*models.Request, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM requests WHERE id = ? AND tenant_id = ?`,
		requestID, tenantID)
	return scanRequest(row)
}

// UpdateRequestStatus atomically moves a request from one status to another.
// The conditional write is the serialization point for concurrent
// transitions: of two racing calls at most one observes rows > 0.
func (d *Database) UpdateRequestStatus(ctx context.Context, requestID int64, from, to models.Status) (bool, error) {
	res, err := d.db.ExecContext(ctx,
		`UPDATE requests SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to, time.Now().UTC(), requestID, from,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update request status: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows > 0, nil
}

// RecordNotifySuccess stores the outcome of a successful send or edit. The
// message handle is only ever written while unset; later calls keep the
// original handle for the life of the request.
func (d *Database) RecordNotifySuccess(ctx context.Context, requestID int64, messageID int64, mirrored models.Status) error {
	res, err := d.db.ExecContext(ctx, `
		UPDATE requests
		SET message_id = COALESCE(message_id, ?),
		    mirrored_status = ?,
		    notify_state = ?,
		    notify_attempts = 0,
		    next_attempt_at = NULL
		WHERE id = ?`,
		messageID, mirrored, models.NotifyStateSent, requestID,
	)
	if err != nil {
		return fmt.Errorf("failed to record notify success: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("no request found with id %d", requestID)
	}
	return nil
}

// RecordNotifyFailure bumps the attempt counter, defers the next attempt to
// retryAt, and marks the request as permanently undelivered once the attempt
// budget is exhausted.
func (d *Database) RecordNotifyFailure(ctx context.Context, requestID int64, maxAttempts int, retryAt time.Time) error {
	_, err := d.db.ExecContext(ctx, `
		UPDATE requests
		SET notify_attempts = notify_attempts + 1,
		    next_attempt_at = ?,
		    notify_state = CASE
		        WHEN notify_attempts + 1 >= ? THEN ?
		        ELSE notify_state
		    END
		WHERE id = ?`,
		retryAt, maxAttempts, models.NotifyStateFailed, requestID,
	)
	if err != nil {
		return fmt.Errorf("failed to record notify failure: %w", err)
	}
	return nil
}

// ListUnmirrored returns requests whose chat message is missing or stale,
// oldest first, skipping those already abandoned and those whose retry delay
// has not elapsed at the given instant.
func (d *Database) ListUnmirrored(ctx context.Context, maxAttempts, limit int, now time.Time) ([]models.Request, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT `+requestColumns+`
		FROM requests
		WHERE notify_state != ?
		  AND notify_attempts < ?
		  AND (message_id IS NULL OR mirrored_status IS NOT status)
		  AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
		ORDER BY id ASC
		LIMIT ?`,
		models.NotifyStateFailed, maxAttempts, now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list unmirrored requests: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanRequests(rows)
}

func scanRequest(row *sql.Row) (*models.Request, error) {
	req := &models.Request{}
	var mirrored sql.NullString

	err := row.Scan(
		&req.ID, &req.TenantID, &req.ClientID, &req.Source, &req.Name, &req.Phone,
		&req.Text, &req.Payload, &req.Status, &req.ChatID, &req.MessageID,
		&mirrored, &req.NotifyState, &req.NotifyAttempts,
		&req.NextAttemptAt, &req.CreatedAt, &req.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan request: %w", err)
	}

	if mirrored.Valid {
		s := models.Status(mirrored.String)
		req.MirroredStatus = &s
	}
	return req, nil
}

func scanRequests(rows *sql.Rows) ([]models.Request, error) {
	var out []models.Request
	for rows.Next() {
		req := models.Request{}
		var mirrored sql.NullString

		err := rows.Scan(
			&req.ID, &req.TenantID, &req.ClientID, &req.Source, &req.Name, &req.Phone,
			&req.Text, &req.Payload, &req.Status, &req.ChatID, &req.MessageID,
			&mirrored, &req.NotifyState, &req.NotifyAttempts,
			&req.NextAttemptAt, &req.CreatedAt, &req.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		if mirrored.Valid {
			s := models.Status(mirrored.String)
			req.MirroredStatus = &s
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate requests: %w", err)
	}
	return out, nil
}
