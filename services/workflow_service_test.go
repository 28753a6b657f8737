package services

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blogem/attest-desk/database"
	"github.com/blogem/attest-desk/models"
	"github.com/blogem/attest-desk/repositories"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupStore(t *testing.T) *database.Store {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "services.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return database.NewStore(db, discardLogger(), clockwork.NewFakeClock())
}

func publishTable(t *testing.T, store *database.Store, table string, rows []models.Row) {
	t.Helper()

	err := store.Publish(context.Background(), database.Publication{
		Tables: []database.TableUpdate{{Def: models.Tables[table], Rows: rows}},
	})
	require.NoError(t, err)
}

func attRow(lineID, month, preparer, approver, division, status string) models.Row {
	return models.Row{
		models.ColLineID:       lineID,
		models.ColMonth:        month,
		models.ColPreparerName: preparer,
		models.ColApproverName: approver,
		models.ColDivision:     division,
		models.ColStatus:       status,
	}
}

func newWorkflowFixture(t *testing.T) (WorkflowService, *database.Store) {
	t.Helper()

	store := setupStore(t)
	scope := NewScopeService(store, repositories.NewDirectoryRepository())
	wf := NewWorkflowService(
		models.DefaultWorkflowStatuses, store, repositories.NewAttestationRepository(), scope, discardLogger())
	return wf, store
}

func TestIsInOwnWorkbasket(t *testing.T) {
	wf, _ := newWorkflowFixture(t)

	in, err := wf.IsInOwnWorkbasket("in-preparation", models.RolePreparer)
	require.NoError(t, err)
	assert.True(t, in)

	// Status values are matched case-insensitively with whitespace trimmed.
	in, err = wf.IsInOwnWorkbasket("  Returned-To-Preparer ", models.RolePreparer)
	require.NoError(t, err)
	assert.True(t, in)

	in, err = wf.IsInOwnWorkbasket("pending-approval", models.RolePreparer)
	require.NoError(t, err)
	assert.False(t, in)

	in, err = wf.IsInOwnWorkbasket("completed", models.RolePreparer)
	require.NoError(t, err)
	assert.False(t, in, "terminal statuses sit in nobody's workbasket")

	_, err = wf.IsInOwnWorkbasket("some-new-status", models.RolePreparer)
	var routing *models.RoutingError
	require.ErrorAs(t, err, &routing)
	assert.Equal(t, "some-new-status", routing.Status)
}

func TestIsInExtendedQueueRankOrder(t *testing.T) {
	wf, _ := newWorkflowFixture(t)

	tests := []struct {
		status  string
		highest models.Role
		want    bool
	}{
		// A preparer sees preparer-owned work but nothing downstream.
		{"new", models.RolePreparer, true},
		{"pending-approval", models.RolePreparer, false},
		{"pending-am-review", models.RolePreparer, false},
		// An approver sees approver-owned work plus upstream preparer work.
		{"in-preparation", models.RoleApprover, true},
		{"pending-approval", models.RoleApprover, true},
		{"pending-am-review", models.RoleApprover, false},
		// AM sees everything still in flight.
		{"new", models.RoleAM, true},
		{"pending-approval", models.RoleAM, true},
		{"pending-am-review", models.RoleAM, true},
		// Terminal work is in flight for nobody.
		{"completed", models.RoleAM, false},
	}

	for _, tc := range tests {
		in, err := wf.IsInExtendedQueue(tc.status, tc.highest)
		require.NoError(t, err)
		assert.Equal(t, tc.want, in, "status %q for role %q", tc.status, tc.highest)
	}

	_, err := wf.IsInExtendedQueue("mystery", models.RoleApprover)
	var routing *models.RoutingError
	assert.ErrorAs(t, err, &routing)
}

func TestLinesNewThisMonth(t *testing.T) {
	wf, _ := newWorkflowFixture(t)

	current := []models.Row{
		attRow("T-1", "2024-11", "Jane Doe", "John Smith", "ops", "new"),
		attRow("T-2", "2024-11", "Jane Doe", "John Smith", "ops", "new"),
		attRow("T-3", "2024-11", "Jane Doe", "John Smith", "ops", "new"),
	}
	previous := []models.Row{
		// Same line with different status and approver still counts as
		// carried over: the delta is on line_id alone.
		attRow("T-1", "2024-10", "Jane Doe", "Someone Else", "ops", "completed"),
		attRow("T-9", "2024-10", "Jane Doe", "John Smith", "ops", "completed"),
	}

	got := wf.LinesNewThisMonth(current, previous)
	if diff := cmp.Diff([]string{"T-2", "T-3"}, got); diff != "" {
		t.Errorf("new lines mismatch (-want +got):\n%s", diff)
	}

	assert.Empty(t, wf.LinesNewThisMonth(previous, previous))
}

func TestRolesOnArePerRecord(t *testing.T) {
	wf, _ := newWorkflowFixture(t)
	jane := &models.Identity{EmployeeID: "E1", FirstName: "Jane", LastName: "Doe"}

	asPreparer := attRow("T-1", "2024-11", "JANE DOE ", "John Smith", "ops", "new")
	asApprover := attRow("T-2", "2024-11", "John Smith", "Jane Doe", "ops", "pending-approval")
	asBoth := attRow("T-3", "2024-11", "Jane Doe", "Jane Doe", "ops", "new")
	asNeither := attRow("T-4", "2024-11", "John Smith", "Ada Lovelace", "ops", "new")

	assert.Equal(t, []models.Role{models.RolePreparer}, wf.RolesOn(jane, asPreparer))
	assert.Equal(t, []models.Role{models.RoleApprover}, wf.RolesOn(jane, asApprover))
	assert.Equal(t, []models.Role{models.RolePreparer, models.RoleApprover}, wf.RolesOn(jane, asBoth))
	assert.Empty(t, wf.RolesOn(jane, asNeither))
	assert.Empty(t, wf.RolesOn(nil, asPreparer))
}

// A caller with four current-month records, two of them pending in their
// own preparer queue, gets exactly those two back.
func TestWorkbasket(t *testing.T) {
	wf, store := newWorkflowFixture(t)
	jane := &models.Identity{EmployeeID: "E1", FirstName: "Jane", LastName: "Doe"}

	publishTable(t, store, models.TableAttestationData, []models.Row{
		attRow("T-1", "2024-11", "Jane Doe", "John Smith", "ops", "in-preparation"),
		attRow("T-2", "2024-11", "Jane Doe", "John Smith", "ops", "returned-to-preparer"),
		attRow("T-3", "2024-11", "Jane Doe", "John Smith", "ops", "pending-approval"),
		attRow("T-4", "2024-11", "Jane Doe", "John Smith", "ops", "completed"),
		// Someone else's work never shows up.
		attRow("T-5", "2024-11", "Ada Lovelace", "John Smith", "ops", "new"),
		// Prior months are out of scope for the queue.
		attRow("T-6", "2024-10", "Jane Doe", "John Smith", "ops", "new"),
	})

	queue, err := wf.Workbasket(context.Background(), jane)
	require.NoError(t, err)

	ids := lineIDs(queue)
	assert.Equal(t, []string{"T-1", "T-2"}, ids)
}

func TestWorkbasketExcludesUnroutableStatus(t *testing.T) {
	wf, store := newWorkflowFixture(t)
	jane := &models.Identity{EmployeeID: "E1", FirstName: "Jane", LastName: "Doe"}

	publishTable(t, store, models.TableAttestationData, []models.Row{
		attRow("T-1", "2024-11", "Jane Doe", "John Smith", "ops", "new"),
		attRow("T-2", "2024-11", "Jane Doe", "John Smith", "ops", "escalated-to-board"),
	})

	queue, err := wf.Workbasket(context.Background(), jane)
	require.NoError(t, err)
	assert.Equal(t, []string{"T-1"}, lineIDs(queue), "unknown status is excluded, never guessed")
}

func TestExtendedQueueUsesHighestRole(t *testing.T) {
	wf, store := newWorkflowFixture(t)
	jane := &models.Identity{EmployeeID: "E1", FirstName: "Jane", LastName: "Doe"}

	// Jane prepares T-1 and approves T-2, so her highest role is approver
	// and the extended queue covers preparer- and approver-owned work she
	// can see.
	publishTable(t, store, models.TableAttestationData, []models.Row{
		attRow("T-1", "2024-11", "Jane Doe", "John Smith", "ops", "in-preparation"),
		attRow("T-2", "2024-11", "John Smith", "Jane Doe", "ops", "pending-approval"),
		attRow("T-3", "2024-11", "Ada Lovelace", "Jane Doe", "ops", "in-preparation"),
		attRow("T-4", "2024-11", "Ada Lovelace", "Jane Doe", "ops", "pending-am-review"),
		attRow("T-5", "2024-11", "Ada Lovelace", "Jane Doe", "ops", "completed"),
	})

	queue, err := wf.ExtendedQueue(context.Background(), jane)
	require.NoError(t, err)
	assert.Equal(t, []string{"T-1", "T-2", "T-3"}, lineIDs(queue))
}

func TestExtendedQueueEmptyForUninvolvedCaller(t *testing.T) {
	wf, store := newWorkflowFixture(t)
	outsider := &models.Identity{EmployeeID: "E9", FirstName: "No", LastName: "Body"}

	publishTable(t, store, models.TableAttestationData, []models.Row{
		attRow("T-1", "2024-11", "Jane Doe", "John Smith", "ops", "new"),
	})

	queue, err := wf.ExtendedQueue(context.Background(), outsider)
	require.NoError(t, err)
	assert.Empty(t, queue)
}

func TestNewLines(t *testing.T) {
	wf, store := newWorkflowFixture(t)
	jane := &models.Identity{EmployeeID: "E1", FirstName: "Jane", LastName: "Doe"}

	publishTable(t, store, models.TableAttestationData, []models.Row{
		attRow("T-1", "2024-11", "Jane Doe", "John Smith", "ops", "new"),
		attRow("T-2", "2024-11", "Jane Doe", "John Smith", "ops", "new"),
		attRow("T-1", "2024-10", "Jane Doe", "John Smith", "ops", "completed"),
		// New this month but not Jane's: invisible to her delta.
		attRow("T-7", "2024-11", "Ada Lovelace", "John Smith", "ops", "new"),
	})

	fresh, err := wf.NewLines(context.Background(), jane)
	require.NoError(t, err)
	assert.Equal(t, []string{"T-2"}, fresh)
}

func TestNewLinesWithoutBaselineMonth(t *testing.T) {
	wf, store := newWorkflowFixture(t)
	jane := &models.Identity{EmployeeID: "E1", FirstName: "Jane", LastName: "Doe"}

	// Only one month present: no baseline to diff against.
	publishTable(t, store, models.TableAttestationData, []models.Row{
		attRow("T-1", "2024-11", "Jane Doe", "John Smith", "ops", "new"),
	})

	_, err := wf.NewLines(context.Background(), jane)
	var insufficient *models.InsufficientHistoryError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "2024-10", insufficient.Month)
}

func lineIDs(rows []models.Row) []string {
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.LineID())
	}
	return ids
}
