// Copyright 2026 The OpenMaint Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/openmaint/openmaint/internal/access"
)

// OverrideRepository implements access.OverrideRepository over the
// user_permission_overrides table. The stored matrix is the nested
// {moduleKey: {actionName: bool}} JSONB shape; no other shape is valid.
type OverrideRepository struct {
	db *DB
}

// NewOverrideRepository creates a new override repository
func NewOverrideRepository(db *DB) *OverrideRepository {
	return &OverrideRepository{db: db}
}

// Get retrieves the override record for a user
func (r *OverrideRepository) Get(ctx context.Context, userID string) (*access.OverrideRecord, error) {
	var (
		record access.OverrideRecord
		raw    []byte
	)

	err := r.db.pool.QueryRow(ctx, `
		SELECT user_id, matrix, version, updated_at
		FROM user_permission_overrides
		WHERE user_id = $1
	`, userID).Scan(&record.UserID, &raw, &record.Version, &record.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, access.ErrOverrideNotFound
		}
		return nil, storeErr("get override", err)
	}

	if err := json.Unmarshal(raw, &record.Matrix); err != nil {
		return nil, fmt.Errorf("failed to decode override matrix for %s: %w", userID, err)
	}

	return &record, nil
}

// Put replaces the stored record wholesale, enforcing the optimistic
// version check. expectedVersion 0 means the caller saw no record at edit
// time, so the insert must not race an existing row.
func (r *OverrideRepository) Put(ctx context.Context, record *access.OverrideRecord, expectedVersion int64) error {
	raw, err := json.Marshal(record.Matrix)
	if err != nil {
		return fmt.Errorf("failed to encode override matrix: %w", err)
	}

	if expectedVersion == 0 {
		result, err := r.db.pool.Exec(ctx, `
			INSERT INTO user_permission_overrides (user_id, matrix, version, updated_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (user_id) DO NOTHING
		`, record.UserID, raw, record.Version, record.UpdatedAt)
		if err != nil {
			return storeErr("insert override", err)
		}
		if result.RowsAffected() == 0 {
			return access.ErrStaleOverride
		}
		return nil
	}

	result, err := r.db.pool.Exec(ctx, `
		UPDATE user_permission_overrides
		SET matrix = $2, version = $3, updated_at = $4
		WHERE user_id = $1 AND version = $5
	`, record.UserID, raw, record.Version, record.UpdatedAt, expectedVersion)
	if err != nil {
		return storeErr("update override", err)
	}
	if result.RowsAffected() == 0 {
		return access.ErrStaleOverride
	}
	return nil
}

// Delete removes the override, subject to the same version check
func (r *OverrideRepository) Delete(ctx context.Context, userID string, expectedVersion int64) error {
	result, err := r.db.pool.Exec(ctx, `
		DELETE FROM user_permission_overrides
		WHERE user_id = $1 AND version = $2
	`, userID, expectedVersion)
	if err != nil {
		return storeErr("delete override", err)
	}
	if result.RowsAffected() == 0 {
		return access.ErrStaleOverride
	}
	return nil
}

// storeErr wraps infrastructure failures so callers can distinguish them
// from permission denials.
func storeErr(op string, err error) error {
	return fmt.Errorf("%w: failed to %s: %v", access.ErrStoreUnavailable, op, err)
}
