package stats

import (
	"time"

	"github.com/ether/easysync/lib/db"
	"github.com/ether/easysync/lib/ws"
	"github.com/gofiber/fiber/v2"
)

const healthCheckPadId = "health-check"

type DBChecker struct {
	db db.DataStore
}

func (d DBChecker) Name() string {
	return "database"
}

func (d DBChecker) Check() Check {
	_, err := d.db.DoesPadExist(healthCheckPadId)
	if err != nil {
		return Check{
			Status: StatusFail,
			Output: err.Error(),
		}
	}

	return Check{
		Status:     StatusPass,
		Observed:   "ok",
		ObservedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

type SessionChecker struct {
	sessionStore *ws.SessionStore
}

func (s SessionChecker) Name() string {
	return "sessions"
}

func (s SessionChecker) Check() Check {
	return Check{
		Status:   StatusPass,
		Observed: s.sessionStore.Len(),
	}
}

// Handler reports the health of the service in the format of the RFC health
// check draft.
func Handler(
	version string,
	serviceID string,
	checkers []Checker,
) fiber.Handler {
	return func(c *fiber.Ctx) error {
		resp := HealthResponse{
			Status:    StatusPass,
			Version:   version,
			ServiceID: serviceID,
			Checks:    map[string][]Check{},
		}

		for _, checker := range checkers {
			check := checker.Check()
			resp.Checks[checker.Name()] = []Check{check}
			resp.Status = resp.Status.worst(check.Status)
		}

		if resp.Status == StatusFail {
			return c.Status(fiber.StatusServiceUnavailable).JSON(resp)
		}
		return c.JSON(resp)
	}
}
