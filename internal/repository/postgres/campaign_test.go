package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/cloudsecnetwork/phishintel/internal/domain"
	"github.com/cloudsecnetwork/phishintel/internal/service/campaign"
)

func TestUpdateStatus_Guarded(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec(`UPDATE campaigns SET status`).
		WithArgs(domain.CampaignOngoing, "camp-1", domain.CampaignDraft).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewCampaignRepo(db)
	err := repo.UpdateStatus(context.Background(), "camp-1", domain.CampaignDraft, domain.CampaignOngoing)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestUpdateStatus_WrongState(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec(`UPDATE campaigns SET status`).
		WithArgs(domain.CampaignArchived, "camp-1", domain.CampaignCompleted).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("camp-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	repo := NewCampaignRepo(db)
	err := repo.UpdateStatus(context.Background(), "camp-1", domain.CampaignCompleted, domain.CampaignArchived)
	if !errors.Is(err, campaign.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestUpdateStatus_Missing(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec(`UPDATE campaigns SET status`).
		WithArgs(domain.CampaignArchived, "ghost", domain.CampaignCompleted).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	repo := NewCampaignRepo(db)
	err := repo.UpdateStatus(context.Background(), "ghost", domain.CampaignCompleted, domain.CampaignArchived)
	if !errors.Is(err, campaign.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCompleteIfOngoing_AlreadyCompletedIsFine(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec(`UPDATE campaigns`).
		WithArgs(domain.CampaignCompleted, "camp-1", domain.CampaignOngoing).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewCampaignRepo(db)
	if err := repo.CompleteIfOngoing(context.Background(), "camp-1"); err != nil {
		t.Fatalf("CompleteIfOngoing must tolerate zero rows, got %v", err)
	}
}

func TestDeleteCascade_Order(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM submissions`).WithArgs("camp-1").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`DELETE FROM email_clicks`).WithArgs("camp-1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE FROM tracking_rows`).WithArgs("camp-1").WillReturnResult(sqlmock.NewResult(0, 10))
	mock.ExpectExec(`DELETE FROM campaigns`).WithArgs("camp-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	repo := NewCampaignRepo(db)
	if err := repo.DeleteCascade(context.Background(), "camp-1"); err != nil {
		t.Fatalf("DeleteCascade: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestDeleteCascade_RollsBackOnError(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM submissions`).WithArgs("camp-1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM email_clicks`).WithArgs("camp-1").
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	repo := NewCampaignRepo(db)
	if err := repo.DeleteCascade(context.Background(), "camp-1"); err == nil {
		t.Fatal("expected error from failed cascade delete")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCounts(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT`).
		WithArgs("camp-1").
		WillReturnRows(sqlmock.NewRows([]string{"total", "sent", "clicks", "subs"}).
			AddRow(25, 20, 12, 4))

	repo := NewCampaignRepo(db)
	c, err := repo.Counts(context.Background(), "camp-1")
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if c.TotalRecipients != 25 || c.SentCount != 20 || c.ClickCount != 12 || c.SubmissionCount != 4 {
		t.Errorf("counts scanned wrong: %+v", c)
	}
}
