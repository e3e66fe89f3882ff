package ingest

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/paulmach/orb"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/floorheights/datamodel/internal/datamodel"
)

// newMockHandles builds a store and a writer over one mocked connection
// so a test can script the exact SQL an ingestion run is allowed to
// issue.
func newMockHandles(t *testing.T) (*datamodel.Store, *datamodel.Writer, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{
		Logger: logger.Discard,
	})
	if err != nil {
		t.Fatalf("open gorm: %v", err)
	}
	store := datamodel.NewStore(gdb, zap.NewNop())
	writer := datamodel.NewWriter(gdb, zap.NewNop(), datamodel.DefaultBatchSize)
	return store, writer, mock
}

func pointValue(t *testing.T, pt orb.Point) interface{} {
	t.Helper()
	v, err := datamodel.NewPoint(pt).Value()
	if err != nil {
		t.Fatalf("encode point: %v", err)
	}
	return v
}

func polygonValue(t *testing.T, poly orb.Polygon) interface{} {
	t.Helper()
	v, err := datamodel.NewPolygon(poly).Value()
	if err != nil {
		t.Fatalf("encode polygon: %v", err)
	}
	return v
}

// expectMethodFound scripts the found branch of the method lookup.
func expectMethodFound(mock sqlmock.Sqlmock, id, name string) {
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "method" WHERE name = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(id, name))
	mock.ExpectCommit()
}

// expectDatasetFound scripts the found branch of the dataset lookup.
func expectDatasetFound(mock sqlmock.Sqlmock, id, name string) {
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "dataset" WHERE name = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(id, name))
	mock.ExpectCommit()
}
