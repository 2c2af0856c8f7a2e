package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/motorclub/mailer/internal/domain"
	"github.com/motorclub/mailer/internal/service/campaign"
)

func TestCampaignRepoGet(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewCampaignRepo(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "title", "subject", "content", "status", "created_by",
		"scheduled_at", "sent_at", "sent_count", "created_at", "updated_at",
	}).AddRow("camp-1", "August Newsletter", "News for August", "<p>Hello {{ name }}</p>",
		"draft", "admin", nil, nil, 0, now, now)

	mock.ExpectQuery("SELECT (.+) FROM campaigns").
		WithArgs("camp-1").
		WillReturnRows(rows)

	c, err := repo.Get(context.Background(), "camp-1")
	if err != nil {
		t.Fatalf("get campaign: %v", err)
	}
	if c.Title != "August Newsletter" || c.Status != domain.CampaignDraft {
		t.Fatalf("unexpected campaign: %+v", c)
	}
}

func TestCampaignRepoMarkSending(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewCampaignRepo(db)

	mock.ExpectExec("UPDATE campaigns").
		WithArgs("sending", "camp-1", "draft").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.MarkSending(context.Background(), "camp-1"); err != nil {
		t.Fatalf("mark sending: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCampaignRepoMarkSendingWrongStatus(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewCampaignRepo(db)

	// Guarded update matches nothing, but the campaign exists: the row is
	// simply not a draft anymore.
	mock.ExpectExec("UPDATE campaigns").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("camp-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	err := repo.MarkSending(context.Background(), "camp-1")
	if err != campaign.ErrInvalidState {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestCampaignRepoMarkSendingMissing(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewCampaignRepo(db)

	mock.ExpectExec("UPDATE campaigns").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("camp-404").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	err := repo.MarkSending(context.Background(), "camp-404")
	if err != campaign.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCampaignRepoMarkSent(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewCampaignRepo(db)

	sentAt := time.Now().UTC()
	mock.ExpectExec("UPDATE campaigns").
		WithArgs("sent", sentAt, 42, "camp-1", "sending").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.MarkSent(context.Background(), "camp-1", sentAt, 42); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
}

func TestCampaignRepoListScheduledDue(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewCampaignRepo(db)

	now := time.Now()
	due := now.Add(-time.Hour)
	rows := sqlmock.NewRows([]string{
		"id", "title", "subject", "content", "status", "created_by",
		"scheduled_at", "sent_at", "sent_count", "created_at", "updated_at",
	}).AddRow("camp-1", "Renewal Reminder", "Your membership expires soon", "<p>Renew</p>",
		"draft", "admin", due, nil, 0, now, now)

	mock.ExpectQuery("SELECT (.+) FROM campaigns").
		WithArgs("draft", now).
		WillReturnRows(rows)

	got, err := repo.ListScheduledDue(context.Background(), now)
	if err != nil {
		t.Fatalf("list scheduled: %v", err)
	}
	if len(got) != 1 || got[0].ID != "camp-1" {
		t.Fatalf("unexpected campaigns: %+v", got)
	}
}
