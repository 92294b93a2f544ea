// Package tesla defines the owner-api gateway contract consumed by the
// polling loops. The HTTP implementation lives in infra/tesla.
package tesla

import (
	"context"

	"github.com/teslamon/teslamon/core/model"
)

// API is the set of owner-api operations the poller depends on. The client
// reports each outcome as exactly one typed error from this package; retry
// policy is the caller's responsibility.
type API interface {
	// FetchVehicles lists the vehicles on the account.
	FetchVehicles(ctx context.Context) ([]model.Vehicle, error)
	// FetchVehicleData retrieves the full readable state of one vehicle.
	FetchVehicleData(ctx context.Context, vehicleID int64) (*model.VehicleData, error)
	// Wake asks a sleeping vehicle to come online. Idempotent.
	Wake(ctx context.Context, vehicleID int64) (model.Vehicle, error)
	// WakePoll repeats Wake until the vehicle is online or the attempt
	// ceiling is reached, failing with ErrWakeTimeout.
	WakePoll(ctx context.Context, vehicleID int64) (model.Vehicle, error)
	// RefreshCredential exchanges the refresh token for a new pair.
	RefreshCredential(ctx context.Context) error
}
