package views

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"sk3-portal/internal/gateway"
	"sk3-portal/internal/model"
)

type DriverLookup interface {
	DriverByPlate(ctx context.Context, plate string) (*model.Driver, error)
}

// driverCache remembers the driver of each plate number for the lifetime of a
// workspace. A plate the API does not know is remembered as nil.
type driverCache struct {
	lookup DriverLookup
	log    zerolog.Logger

	mu      sync.Mutex
	byPlate map[string]*model.Driver
}

func newDriverCache(lookup DriverLookup, log zerolog.Logger) *driverCache {
	return &driverCache{lookup: lookup, log: log, byPlate: make(map[string]*model.Driver)}
}

func (d *driverCache) get(ctx context.Context, plate string) *model.Driver {
	plate = strings.ToUpper(strings.TrimSpace(plate))
	if plate == "" {
		return nil
	}

	d.mu.Lock()
	driver, ok := d.byPlate[plate]
	d.mu.Unlock()
	if ok {
		return driver
	}

	driver, err := d.lookup.DriverByPlate(ctx, plate)
	if err != nil {
		if gateway.StatusCode(err) != http.StatusNotFound {
			d.log.Debug().Err(err).Str("plate", plate).Msg("driver lookup failed")
			return nil
		}
		driver = nil
	}

	d.mu.Lock()
	d.byPlate[plate] = driver
	d.mu.Unlock()
	return driver
}

// enrich fills in the driver of every complaint that has a plate number.
func (d *driverCache) enrich(ctx context.Context, items []model.Complaint) {
	for i := range items {
		if items[i].Driver != nil {
			continue
		}
		if driver := d.get(ctx, items[i].PlateNumber); driver != nil {
			copied := *driver
			items[i].Driver = &copied
		}
	}
}
