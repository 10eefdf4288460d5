package coordinator

import (
	"context"

	"github.com/newthinker/archivist/internal/core"
	"go.uber.org/zap"
)

const operationVerify core.Operation = "verify"

// Report compares an object's tracked status with its physical tier
type Report struct {
	ObjectID   string      `json:"object_id"`
	Backend    string      `json:"backend"`
	Locator    string      `json:"locator"`
	Tracked    core.Status `json:"tracked"`
	Physical   core.Status `json:"physical"`
	Consistent bool        `json:"consistent"`
}

// Verify reads the tracked status and the physical tier of objectID without
// changing either. An inconsistent report is not an error.
func (c *Coordinator) Verify(ctx context.Context, objectID string) (Report, error) {
	req := core.OperationRequest{ObjectID: objectID, Operation: operationVerify}
	rep := Report{ObjectID: objectID, Backend: c.driver.Name()}

	obj, err := c.tracker.GetObject(ctx, objectID)
	if err != nil {
		return rep, c.fail(req, StageFetch, core.WrapError(core.ErrStatusFetchFailed, err))
	}
	rep.Tracked = obj.Status

	// Unarchive locators resolve paths under either root.
	loc, err := c.driver.Locate(obj, core.OperationUnarchive)
	if err != nil {
		return rep, c.fail(req, StageLocate, err)
	}
	rep.Locator = loc.String()

	physical, err := c.driver.Inspect(ctx, loc)
	if err != nil {
		return rep, c.fail(req, StageInspect, err)
	}
	rep.Physical = physical
	rep.Consistent = rep.Tracked == rep.Physical

	if !rep.Consistent {
		c.logger.Warn("tracked status disagrees with storage",
			zap.String("object_id", objectID),
			zap.String("tracked", string(rep.Tracked)),
			zap.String("physical", string(rep.Physical)),
			zap.String("locator", rep.Locator),
		)
	}
	return rep, nil
}
