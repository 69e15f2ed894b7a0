package sqldb_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/asset-engine/asset"
	"github.com/warp/asset-engine/store/sqldb"
)

// The postgres dialect is checked against sqlmock: placeholders, and the
// mapping of SQLSTATE 23505 onto the asset sentinels.

func setupMockDB(t *testing.T) (*sqldb.Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return sqldb.NewWithDB(db, sqldb.DialectPostgres, nil), mock
}

func TestPostgres_GetAssetUsesDollarPlaceholders(t *testing.T) {
	s, mock := setupMockDB(t)

	mock.ExpectQuery(`SELECT id, facility_id, .* FROM assets WHERE deleted_at IS NULL AND id = \$1`).
		WithArgs("a-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := s.GetAsset(context.Background(), "a-1")
	assert.ErrorIs(t, err, asset.ErrAssetNotFound)
}

func TestPostgres_UniqueViolations(t *testing.T) {
	tests := []struct {
		name       string
		constraint string
		run        func(s *sqldb.Store) error
		want       error
	}{
		{
			name:       "ledger entry already posted",
			constraint: "idx_ledger_asset_period",
			run: func(s *sqldb.Store) error {
				return s.AppendEntry(context.Background(), entry("e-1", "a-1", asset.MustPeriod(2025, 1), "1000"))
			},
			want: asset.ErrAlreadyPosted,
		},
		{
			name:       "asset code",
			constraint: "idx_assets_facility_code",
			run: func(s *sqldb.Store) error {
				return s.CreateAsset(context.Background(), newAsset(t, "a-1", "fac-1", "VEN-001"))
			},
			want: asset.ErrDuplicateAssetCode,
		},
		{
			name:       "serial number",
			constraint: "idx_assets_serial",
			run: func(s *sqldb.Store) error {
				a := newAsset(t, "a-1", "fac-1", "VEN-001")
				a.SerialNumber = ptr("SN-1")
				return s.CreateAsset(context.Background(), a)
			},
			want: asset.ErrDuplicateSerialNumber,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := setupMockDB(t)
			mock.ExpectExec(`INSERT INTO`).
				WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: tt.constraint})

			err := tt.run(s)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestPostgres_SaveAssetConflict(t *testing.T) {
	s, mock := setupMockDB(t)

	mock.ExpectExec(`UPDATE assets SET .* WHERE id = \$\d+ AND version = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM assets WHERE id = \$1`).
		WithArgs("a-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	err := s.SaveAsset(context.Background(), newAsset(t, "a-1", "fac-1", "VEN-001"))
	assert.ErrorIs(t, err, asset.ErrConcurrentModification)
}

func TestPostgres_WithTx(t *testing.T) {
	t.Run("commits", func(t *testing.T) {
		s, mock := setupMockDB(t)
		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO depreciation_runs .* ON CONFLICT \(id\) DO UPDATE`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := s.WithTx(context.Background(), func(tx asset.Store) error {
			return tx.SaveRun(context.Background(), &asset.Run{ID: "r-1", FacilityID: "fac-1", Period: asset.MustPeriod(2025, 1)})
		})
		assert.NoError(t, err)
	})

	t.Run("rolls back on error", func(t *testing.T) {
		s, mock := setupMockDB(t)
		mock.ExpectBegin()
		mock.ExpectRollback()

		boom := errors.New("boom")
		err := s.WithTx(context.Background(), func(asset.Store) error { return boom })
		assert.ErrorIs(t, err, boom)
	})
}
