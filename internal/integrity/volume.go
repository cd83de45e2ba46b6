package integrity

import (
	"context"

	"github.com/roach88/cfstore/internal/model"
	"github.com/roach88/cfstore/internal/store"
)

// AttachFile records a copy of the file at the location and charges the
// file's size to the location's volume. Attaching twice is a no-op and
// returns false.
func AttachFile(ctx context.Context, tx *store.Tx, fileID, locationID int64) (bool, error) {
	f, err := tx.GetFile(ctx, fileID)
	if err != nil {
		return false, err
	}
	if _, err := tx.GetLocationByID(ctx, locationID); err != nil {
		return false, err
	}
	inserted, err := tx.LinkFileLocation(ctx, fileID, locationID)
	if err != nil || !inserted {
		return false, err
	}
	if err := tx.AdjustLocationVolume(ctx, locationID, f.Size); err != nil {
		return false, err
	}
	return true, nil
}

// DetachFile removes the file's copy at the location and refunds its size.
// Returns false if the file was not attached there.
func DetachFile(ctx context.Context, tx *store.Tx, fileID, locationID int64) (bool, error) {
	f, err := tx.GetFile(ctx, fileID)
	if err != nil {
		return false, err
	}
	removed, err := tx.UnlinkFileLocation(ctx, fileID, locationID)
	if err != nil || !removed {
		return false, err
	}
	if err := tx.AdjustLocationVolume(ctx, locationID, -f.Size); err != nil {
		return false, err
	}
	return true, nil
}

func detachAll(ctx context.Context, tx *store.Tx, f model.File) error {
	locs, err := tx.FileLocations(ctx, f.ID)
	if err != nil {
		return err
	}
	for _, loc := range locs {
		if _, err := DetachFile(ctx, tx, f.ID, loc.ID); err != nil {
			return err
		}
	}
	return nil
}

// VolumeCheck compares a location's recorded volume with the sum of the
// sizes of its attached files.
type VolumeCheck struct {
	Location string `json:"location"`
	Recorded int64  `json:"recorded"`
	Actual   int64  `json:"actual"`
}

// OK reports whether the recorded volume is correct.
func (c VolumeCheck) OK() bool {
	return c.Recorded == c.Actual
}

// VerifyVolumes checks every location.
func VerifyVolumes(ctx context.Context, tx *store.Tx) ([]VolumeCheck, error) {
	locs, err := tx.ListLocations(ctx)
	if err != nil {
		return nil, err
	}
	checks := make([]VolumeCheck, 0, len(locs))
	for _, loc := range locs {
		actual, err := tx.LocationFileSizes(ctx, loc.ID)
		if err != nil {
			return nil, err
		}
		checks = append(checks, VolumeCheck{Location: loc.Name, Recorded: loc.Volume, Actual: actual})
	}
	return checks, nil
}
