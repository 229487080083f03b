package httpapi

import (
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/greensync-weather/internal/registry"
	"github.com/i474232898/greensync-weather/internal/scheduler"
	"github.com/i474232898/greensync-weather/internal/store"
	"github.com/i474232898/greensync-weather/internal/weather"
)

var validate = validator.New()

// SchedulerControl is the subset of the scheduler exposed over HTTP.
type SchedulerControl interface {
	Start() error
	Stop()
	Reset()
	Status() scheduler.Status
}

// Deps are the collaborators the routes need.
type Deps struct {
	Service   *weather.Service
	Registry  *registry.Registry
	Scheduler SchedulerControl
	Targets   []weather.Target
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, d Deps) {
	v1 := app.Group("/api/v1")

	v1.Get("/localities", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"localities": d.Registry.Names()})
	})

	v1.Get("/weather/city/:name", func(c *fiber.Ctx) error {
		loc, err := d.Registry.Lookup(c.Params("name"))
		if err != nil {
			return toFiberError(err)
		}

		payload, err := d.Service.CurrentConditions(c.UserContext(), loc)
		if err != nil {
			return toFiberError(err)
		}
		return c.JSON(fiber.Map{
			"locality": loc,
			"current":  payload,
		})
	})

	v1.Get("/weather/mapped/:name", func(c *fiber.Ctx) error {
		loc, err := d.Registry.Lookup(c.Params("name"))
		if err != nil {
			return toFiberError(err)
		}
		farmID, err := parseFarmID(c, 1)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		reading, err := d.Service.CollectAndStore(c.UserContext(), weather.Target{Locality: loc, FarmID: farmID})
		if err != nil {
			return toFiberError(err)
		}
		return c.JSON(fiber.Map{
			"success": true,
			"data":    reading,
		})
	})

	v1.Get("/weather/mapped", func(c *fiber.Ctx) error {
		type result struct {
			FarmID   int64                     `json:"farmId"`
			Locality string                    `json:"locality"`
			Data     *weather.CanonicalReading `json:"data,omitempty"`
			Error    string                    `json:"error,omitempty"`
		}

		results := make([]result, 0, len(d.Targets))
		for _, t := range d.Targets {
			r := result{FarmID: t.FarmID, Locality: t.Locality.Name}
			reading, err := d.Service.CollectAndStore(c.UserContext(), t)
			if err != nil {
				r.Error = err.Error()
			} else {
				r.Data = &reading
			}
			results = append(results, r)
		}
		return c.JSON(fiber.Map{"results": results})
	})

	v1.Get("/weather/latest", func(c *fiber.Ctx) error {
		farmID, err := parseFarmID(c, 0)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		reading, err := d.Service.GetLatest(c.UserContext(), farmID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no weather data for requested farm")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch weather data")
		}
		return c.JSON(reading)
	})

	v1.Get("/weather/history", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		readings, err := d.Service.GetRange(c.UserContext(), req.FarmID, req.From, req.To)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no weather history for requested range")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch weather history")
		}

		return c.JSON(fiber.Map{
			"farmId":   req.FarmID,
			"from":     req.From,
			"to":       req.To,
			"readings": readings,
		})
	})

	v1.Get("/weather/stats", func(c *fiber.Ctx) error {
		var req statsQuery
		farmID, err := parseFarmID(c, 0)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		req.FarmID = farmID
		req.Period = c.Query("period", "24h")

		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		stats, err := d.Service.GetStats(c.UserContext(), req.FarmID, req.Period)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to compute weather stats")
		}
		return c.JSON(stats)
	})

	sched := v1.Group("/scheduler")

	sched.Get("", func(c *fiber.Ctx) error {
		return c.JSON(d.Scheduler.Status())
	})

	sched.Post("/start", func(c *fiber.Ctx) error {
		if err := d.Scheduler.Start(); err != nil {
			return toFiberError(err)
		}
		return c.JSON(d.Scheduler.Status())
	})

	sched.Post("/stop", func(c *fiber.Ctx) error {
		d.Scheduler.Stop()
		return c.JSON(d.Scheduler.Status())
	})

	sched.Post("/reset", func(c *fiber.Ctx) error {
		d.Scheduler.Reset()
		return c.JSON(d.Scheduler.Status())
	})
}

// toFiberError maps engine errors to HTTP statuses.
func toFiberError(err error) error {
	switch {
	case errors.Is(err, weather.ErrUnknownLocality), errors.Is(err, store.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, weather.ErrBudgetExhausted):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, weather.ErrRateLimited):
		return fiber.NewError(fiber.StatusTooManyRequests, err.Error())
	case errors.Is(err, weather.ErrTimeout):
		return fiber.NewError(fiber.StatusGatewayTimeout, err.Error())
	case errors.Is(err, weather.ErrAuth),
		errors.Is(err, weather.ErrUpstream),
		errors.Is(err, weather.ErrUpstreamFormat),
		errors.Is(err, weather.ErrTransport):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return fiber.NewError(fiber.StatusInternalServerError, err.Error())
}

// parseFarmID reads the farmId query parameter. def is used when the
// parameter is absent; a zero def makes it required.
func parseFarmID(c *fiber.Ctx, def int64) (int64, error) {
	raw := c.Query("farmId")
	if raw == "" {
		if def > 0 {
			return def, nil
		}
		return 0, errors.New("farmId query parameter is required")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("farmId must be a positive integer")
	}
	return id, nil
}

// statsQuery holds query parameters for the stats endpoint.
type statsQuery struct {
	FarmID int64  `validate:"gt=0"`
	Period string `validate:"oneof=24h 7d 30d"`
}

// historyQuery holds query parameters for the history endpoint.
type historyQuery struct {
	FarmID int64     `validate:"gt=0"`
	From   time.Time `validate:"required"`
	To     time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	farmID, err := parseFarmID(c, 0)
	if err != nil {
		return err
	}
	h.FarmID = farmID

	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	h.From = from
	h.To = to
	return nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
