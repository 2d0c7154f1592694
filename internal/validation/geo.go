package validation

import (
	"fmt"
	"strings"
	"sync"
)

type Source string

const (
	SourceDevice Source = "device"
	SourceMap    Source = "map"
)

type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Label     string  `json:"label"`
	Source    Source  `json:"source"`
}

// GeoCapture holds the location of one open report form. The device fix taken
// when the form opens is a default; any map click replaces it and the latest
// click always wins.
type GeoCapture struct {
	mu     sync.Mutex
	device *Point
	picked *Point
}

func NewGeoCapture() *GeoCapture {
	return &GeoCapture{}
}

func validCoordinate(lat, lng float64) error {
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude %f out of range", lat)
	}
	if lng < -180 || lng > 180 {
		return fmt.Errorf("longitude %f out of range", lng)
	}
	if lat == 0 && lng == 0 {
		return fmt.Errorf("coordinates are not set")
	}
	return nil
}

func DeriveLabel(lat, lng float64) string {
	return fmt.Sprintf("%.6f, %.6f", lat, lng)
}

func newPoint(lat, lng float64, label string, source Source) *Point {
	label = strings.TrimSpace(label)
	if label == "" {
		label = DeriveLabel(lat, lng)
	}
	return &Point{Latitude: lat, Longitude: lng, Label: label, Source: source}
}

// SetDevice records the geolocation fix. A denied permission simply never
// calls it.
func (g *GeoCapture) SetDevice(lat, lng float64, label string) error {
	if err := validCoordinate(lat, lng); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.device = newPoint(lat, lng, label, SourceDevice)
	return nil
}

// Pick records a map click.
func (g *GeoCapture) Pick(lat, lng float64, label string) error {
	if err := validCoordinate(lat, lng); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.picked = newPoint(lat, lng, label, SourceMap)
	return nil
}

func (g *GeoCapture) Set(source Source, lat, lng float64, label string) error {
	switch source {
	case SourceDevice:
		return g.SetDevice(lat, lng, label)
	case SourceMap, "":
		return g.Pick(lat, lng, label)
	default:
		return fmt.Errorf("unknown location source %q", source)
	}
}

// Resolved returns the coordinate a submit would use.
func (g *GeoCapture) Resolved() (Point, bool) {
	if g == nil {
		return Point{}, false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	switch {
	case g.picked != nil:
		return *g.picked, true
	case g.device != nil:
		return *g.device, true
	default:
		return Point{}, false
	}
}

func (g *GeoCapture) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.device = nil
	g.picked = nil
}
