package ingest

import (
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TestIngestBulkMeasures runs the pre-joined path and pins the written
// column values: storey and confidence from their columns, the rest into
// aux info.
func TestIngestBulkMeasures(t *testing.T) {
	store, w, mock := newMockHandles(t)
	building := uuid.New()
	input := writeInput(t, "main.csv",
		"building_id,storey,height,accuracy_measure,notes\n"+
			building.String()+",2,5.5,0.8,hello\n")

	mock.ExpectQuery(`SELECT id FROM building WHERE id = ANY`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(building.String()))
	expectMethodFound(mock, uuid.New().String(), "Main methodology")
	expectDatasetFound(mock, uuid.New().String(), "Main methodology output")

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "floor_measure"`).
		WithArgs(sqlmock.AnyArg(), 2, 5.5, nil, nil, 0.8, sqlmock.AnyArg(), nil,
			building.String(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "floor_measure_dataset_association" .*ON CONFLICT DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	opts := DefaultMainMethodOptions()
	opts.Input = input
	report, err := IngestBulkMeasures(opts, store, w, zap.NewNop())
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if got := report.Count("floor measures written"); got != 1 {
		t.Errorf("expected 1 measure written, got %d", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet store expectations: %v", err)
	}
}

// TestIngestBulkMeasuresUnknownBuilding verifies a delivery referencing
// a building the store does not hold aborts before any write.
func TestIngestBulkMeasuresUnknownBuilding(t *testing.T) {
	store, w, mock := newMockHandles(t)
	known, unknown := uuid.New(), uuid.New()
	input := writeInput(t, "main.csv",
		"building_id,storey,height\n"+
			known.String()+",1,2.5\n"+
			unknown.String()+",1,3.1\n")

	mock.ExpectQuery(`SELECT id FROM building WHERE id = ANY`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(known.String()))

	opts := DefaultMainMethodOptions()
	opts.Input = input
	_, err := IngestBulkMeasures(opts, store, w, zap.NewNop())
	if err == nil {
		t.Fatal("expected an unknown-building error")
	}
	if !strings.Contains(err.Error(), unknown.String()) {
		t.Errorf("expected the error to name the missing building, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("nothing may be written after a failed reference check: %v", err)
	}
}

// TestIngestBulkMeasuresBadReference verifies a malformed building
// reference aborts with the record number before touching the store.
func TestIngestBulkMeasuresBadReference(t *testing.T) {
	store, w, mock := newMockHandles(t)
	input := writeInput(t, "main.csv",
		"building_id,storey,height\nnot-a-uuid,1,2.5\n")

	opts := DefaultMainMethodOptions()
	opts.Input = input
	_, err := IngestBulkMeasures(opts, store, w, zap.NewNop())
	if err == nil || !strings.Contains(err.Error(), "record 2") {
		t.Errorf("expected a record-numbered reference error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("no SQL should run for a malformed delivery: %v", err)
	}
}
