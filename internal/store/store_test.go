package store

import (
	"context"
	"regexp"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/buildsight/rca-cli/api/schemas"
)

const (
	selectSQL = `SELECT events FROM rca_reports WHERE build = $1 AND workflow = $2`
	claimSQL  = `INSERT INTO rca_reports (build, workflow) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	updateSQL = `UPDATE rca_reports SET events = $1 WHERE build = $2 AND workflow = $3`
	insertSQL = `INSERT INTO rca_reports (build, workflow, events) VALUES ($1, $2, $3)`
)

func newTestStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	mock.ExpectPing()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS rca_reports").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	s, err := New(context.Background(), mock, zaptest.NewLogger(t))
	require.NoError(t, err)
	return s, mock
}

func TestGetReport_MissClaimsRow(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(selectSQL)).
		WithArgs("https://zuul/build/1", "react").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(regexp.QuoteMeta(claimSQL)).
		WithArgs("https://zuul/build/1", "react").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	events, err := s.GetReport(context.Background(), "react", "https://zuul/build/1")
	require.NoError(t, err)
	assert.Nil(t, events)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetReport_ClaimedButUnsettled(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(selectSQL)).
		WithArgs("https://zuul/build/1", "react").
		WillReturnRows(pgxmock.NewRows([]string{"events"}).AddRow(nil))

	events, err := s.GetReport(context.Background(), "react", "https://zuul/build/1")
	require.NoError(t, err)
	assert.Nil(t, events)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetReport_Settled(t *testing.T) {
	s, mock := newTestStore(t)

	stored := `[["pipeline started","progress"],["completed","status"]]`
	mock.ExpectQuery(regexp.QuoteMeta(selectSQL)).
		WithArgs("https://zuul/build/1", "react").
		WillReturnRows(pgxmock.NewRows([]string{"events"}).AddRow(&stored))

	events, err := s.GetReport(context.Background(), "react", "https://zuul/build/1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, schemas.EventProgress, events[0].Kind)
	assert.Equal(t, "completed", events[1].Payload)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetReport_CorruptStoredHistory(t *testing.T) {
	s, mock := newTestStore(t)

	stored := `{"not": "a tuple list"}`
	mock.ExpectQuery(regexp.QuoteMeta(selectSQL)).
		WithArgs("https://zuul/build/1", "react").
		WillReturnRows(pgxmock.NewRows([]string{"events"}).AddRow(&stored))

	_, err := s.GetReport(context.Background(), "react", "https://zuul/build/1")
	assert.Error(t, err)
}

func TestSetReport_UpdatesClaimedRow(t *testing.T) {
	s, mock := newTestStore(t)

	events := []schemas.Event{{Kind: schemas.EventStatus, Payload: "completed"}}
	mock.ExpectExec(regexp.QuoteMeta(updateSQL)).
		WithArgs(`[["completed","status"]]`, "https://zuul/build/1", "react").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.SetReport(context.Background(), "react", "https://zuul/build/1", events))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetReport_InsertsUnclaimedRow(t *testing.T) {
	s, mock := newTestStore(t)

	events := []schemas.Event{{Kind: schemas.EventStatus, Payload: "completed"}}
	mock.ExpectExec(regexp.QuoteMeta(updateSQL)).
		WithArgs(`[["completed","status"]]`, "https://zuul/build/1", "react").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectExec(regexp.QuoteMeta(insertSQL)).
		WithArgs("https://zuul/build/1", "react", `[["completed","status"]]`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.SetReport(context.Background(), "react", "https://zuul/build/1", events))
	assert.NoError(t, mock.ExpectationsWereMet())
}
