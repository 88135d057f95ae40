package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/pixelhaven/marketplace/internal/app/domain/asset"
	"github.com/pixelhaven/marketplace/internal/app/domain/plan"
	"github.com/pixelhaven/marketplace/internal/app/storage"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(sqlx.NewDb(db, "postgres")), mock
}

func assetRows(id string, status asset.Status) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "contributor_id", "title", "kind", "status", "rejected_reason", "storage_path", "created_at", "updated_at",
	}).AddRow(id, "contrib-1", "Forest Pack", "image", string(status), nil, "assets/"+id, now, now)
}

func TestTransitionAssetStatusWinner(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()
	at := time.Now()

	mock.ExpectExec(`UPDATE assets`).
		WithArgs("a1", "pending", "approved", nil, at.UTC()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT .+ FROM assets`).
		WithArgs("a1").
		WillReturnRows(assetRows("a1", asset.StatusApproved))

	a, err := store.TransitionAssetStatus(ctx, "a1", asset.StatusPending, asset.StatusApproved, nil, at)
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if a.Status != asset.StatusApproved {
		t.Fatalf("status = %s", a.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestTransitionAssetStatusLostRace(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()
	at := time.Now()

	// zero rows affected, the follow-up read finds the asset already
	// approved by a concurrent moderator
	mock.ExpectExec(`UPDATE assets`).
		WithArgs("a1", "pending", "rejected", "dup", at.UTC()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT .+ FROM assets`).
		WithArgs("a1").
		WillReturnRows(assetRows("a1", asset.StatusApproved))

	reason := "dup"
	a, err := store.TransitionAssetStatus(ctx, "a1", asset.StatusPending, asset.StatusRejected, &reason, at)
	if !errors.Is(err, storage.ErrStatusConflict) {
		t.Fatalf("err = %v, want status conflict", err)
	}
	if a.Status != asset.StatusApproved {
		t.Fatalf("conflict should report current status, got %s", a.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestTransitionAssetStatusMissing(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()
	at := time.Now()

	mock.ExpectExec(`UPDATE assets`).
		WithArgs("ghost", "pending", "approved", nil, at.UTC()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT .+ FROM assets`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.TransitionAssetStatus(ctx, "ghost", asset.StatusPending, asset.StatusApproved, nil, at)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestGetProfileNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT .+ FROM profiles`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.GetProfile(context.Background(), "ghost")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestCreateSubscriptionDuplicate(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO subscriptions`).
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := store.CreateSubscription(context.Background(), plan.Subscription{UserID: "u1", PlanID: "p1"})
	if !errors.Is(err, storage.ErrDuplicate) {
		t.Fatalf("err = %v, want duplicate", err)
	}
}

func TestMarkNotificationReadScopesToUser(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE notifications`).
		WithArgs("n1", "other-user").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.MarkNotificationRead(context.Background(), "other-user", "n1")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestDeleteExpiredSessions(t *testing.T) {
	store, mock := newMockStore(t)
	before := time.Now()

	mock.ExpectExec(`DELETE FROM sessions`).
		WithArgs(before.UTC()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := store.DeleteExpiredSessions(context.Background(), before)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n != 3 {
		t.Fatalf("deleted = %d, want 3", n)
	}
}
