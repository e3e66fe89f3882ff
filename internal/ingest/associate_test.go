package ingest

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"go.uber.org/zap"
)

// TestJoinAddressBuildings runs the join against a scripted store: one
// address already paired, one newly contained, one matching nothing.
// Only the new pair may reach the association table.
func TestJoinAddressBuildings(t *testing.T) {
	store, w, mock := newMockHandles(t)
	building := uuid.New()
	apPaired, apNew, apLost := uuid.New(), uuid.New(), uuid.New()
	outline := orb.Polygon{{{0, 0}, {0, 1}, {1, 1}, {1, 0}, {0, 0}}}
	inside := pointValue(t, orb.Point{0.5, 0.5})
	outside := pointValue(t, orb.Point{5, 5})

	mock.ExpectQuery(`SELECT id, outline FROM building ORDER BY id`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "outline"}).
			AddRow(building.String(), polygonValue(t, outline)))
	mock.ExpectQuery(`SELECT id, gnaf_id, geocode_type, location FROM address_point`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "gnaf_id", "geocode_type", "location"}).
			AddRow(apPaired.String(), "GANSW1", nil, inside).
			AddRow(apNew.String(), "GANSW2", nil, pointValue(t, orb.Point{0.25, 0.75})).
			AddRow(apLost.String(), "GANSW3", nil, outside))
	mock.ExpectQuery(`SELECT \* FROM "address_point_building_association"`).
		WillReturnRows(sqlmock.NewRows([]string{"address_point_id", "building_id"}).
			AddRow(apPaired.String(), building.String()))

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "address_point_building_association" .*ON CONFLICT DO NOTHING`).
		WithArgs(apNew.String(), building.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	report, err := JoinAddressBuildings(DefaultAssociateOptions(), store, w, zap.NewNop())
	if err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if got := report.Count("pairs written"); got != 1 {
		t.Errorf("expected 1 pair written, got %d", got)
	}
	if got := report.Count("duplicate pairs suppressed"); got != 1 {
		t.Errorf("expected 1 duplicate suppressed, got %d", got)
	}
	if got := report.Count("addresses with no building"); got != 1 {
		t.Errorf("expected 1 unmatched address, got %d", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet store expectations: %v", err)
	}
}

// TestJoinAddressBuildingsRepeatRunWritesNothing verifies idempotence:
// when every discoverable pair is already stored, the join issues no
// insert at all.
func TestJoinAddressBuildingsRepeatRunWritesNothing(t *testing.T) {
	store, w, mock := newMockHandles(t)
	building, ap := uuid.New(), uuid.New()
	outline := orb.Polygon{{{0, 0}, {0, 1}, {1, 1}, {1, 0}, {0, 0}}}

	mock.ExpectQuery(`SELECT id, outline FROM building ORDER BY id`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "outline"}).
			AddRow(building.String(), polygonValue(t, outline)))
	mock.ExpectQuery(`SELECT id, gnaf_id, geocode_type, location FROM address_point`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "gnaf_id", "geocode_type", "location"}).
			AddRow(ap.String(), "GANSW1", nil, pointValue(t, orb.Point{0.5, 0.5})))
	mock.ExpectQuery(`SELECT \* FROM "address_point_building_association"`).
		WillReturnRows(sqlmock.NewRows([]string{"address_point_id", "building_id"}).
			AddRow(ap.String(), building.String()))

	report, err := JoinAddressBuildings(DefaultAssociateOptions(), store, w, zap.NewNop())
	if err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if got := report.Count("pairs written"); got != 0 {
		t.Errorf("expected no pairs written on a repeat run, got %d", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet store expectations: %v", err)
	}
}
