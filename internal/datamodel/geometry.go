package datamodel

import (
	"database/sql/driver"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/ewkb"
)

// SRID is the store's spatial reference system: GDA2020 geographic
// (EPSG:7844). Every geometry column carries it and every loader
// normalizes to it before rows reach the store.
const SRID = 7844

// Point wraps orb.Point as a PostGIS geometry(Point,7844) column.
type Point struct {
	orb.Point
}

// NewPoint builds a column value from an orb point.
func NewPoint(p orb.Point) Point {
	return Point{Point: p}
}

func (p Point) Value() (driver.Value, error) {
	return ewkb.Value(p.Point, SRID).Value()
}

func (p *Point) Scan(src interface{}) error {
	var op orb.Point
	if err := ewkb.Scanner(&op).Scan(src); err != nil {
		return fmt.Errorf("scan point: %w", err)
	}
	p.Point = op
	return nil
}

func (Point) GormDataType() string {
	return fmt.Sprintf("geometry(Point,%d)", SRID)
}

// Polygon wraps orb.Polygon as a PostGIS geometry(Polygon,7844) column.
type Polygon struct {
	orb.Polygon
}

func NewPolygon(p orb.Polygon) Polygon {
	return Polygon{Polygon: p}
}

func (p Polygon) Value() (driver.Value, error) {
	return ewkb.Value(p.Polygon, SRID).Value()
}

func (p *Polygon) Scan(src interface{}) error {
	var op orb.Polygon
	if err := ewkb.Scanner(&op).Scan(src); err != nil {
		return fmt.Errorf("scan polygon: %w", err)
	}
	p.Polygon = op
	return nil
}

func (Polygon) GormDataType() string {
	return fmt.Sprintf("geometry(Polygon,%d)", SRID)
}
