package httpapi

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/jskoda/precip-dashboard/internal/precip"
)

var validate = validator.New()

// RouteOptions carries the ingestion settings used by the manual trigger.
type RouteOptions struct {
	FetchMinOffset int
	FetchMaxOffset int
	IngestTimeout  time.Duration
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *precip.Service, opts RouteOptions) {
	if opts.IngestTimeout <= 0 {
		opts.IngestTimeout = 15 * time.Minute
	}

	v1 := app.Group("/api/v1")

	v1.Get("/stations", func(c *fiber.Ctx) error {
		stations, err := service.Stations(c.Context())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to list stations")
		}
		return c.JSON(fiber.Map{"stations": stations})
	})

	v1.Get("/precipitation/range", func(c *fiber.Ctx) error {
		min, max, err := service.DateRange(c.Context())
		if err != nil {
			if errors.Is(err, precip.ErrNoData) {
				return fiber.NewError(fiber.StatusNotFound, "no precipitation data recorded yet")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read dataset range")
		}
		return c.JSON(fiber.Map{
			"from": precip.DateKey(min),
			"to":   precip.DateKey(max),
		})
	})

	v1.Get("/precipitation/daily", func(c *fiber.Ctx) error {
		var req selectionQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		values, from, to, err := service.DailySeries(c.Context(), req.Stations, req.From, req.To)
		if err != nil {
			return selectionError(err)
		}

		// The echoed range is the effective one after clamping to the
		// recorded dataset bounds.
		return c.JSON(fiber.Map{
			"stations": req.Stations,
			"from":     precip.DateKey(from),
			"to":       precip.DateKey(to),
			"values":   values,
		})
	})

	v1.Get("/precipitation/summary", func(c *fiber.Ctx) error {
		var req selectionQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		agg := precip.Aggregation(c.Query("agg", string(precip.AggSum)))
		switch agg {
		case precip.AggSum, precip.AggMean, precip.AggVar:
		default:
			return fiber.NewError(fiber.StatusBadRequest, "agg must be one of sum, mean, var")
		}

		summaries, from, to, err := service.Summaries(c.Context(), req.Stations, req.From, req.To)
		if err != nil {
			return selectionError(err)
		}

		type summaryRow struct {
			precip.StationSummary
			Value float64 `json:"value"`
		}
		rows := make([]summaryRow, 0, len(summaries))
		for _, s := range summaries {
			rows = append(rows, summaryRow{StationSummary: s, Value: s.Value(agg)})
		}

		return c.JSON(fiber.Map{
			"agg":       agg,
			"from":      precip.DateKey(from),
			"to":        precip.DateKey(to),
			"summaries": rows,
		})
	})

	v1.Post("/ingest/run", func(c *fiber.Ctx) error {
		// Manual trigger; same job the daily schedule runs.
		ctx, cancel := context.WithTimeout(context.Background(), opts.IngestTimeout)
		defer cancel()

		report, err := service.IngestMissing(ctx, opts.FetchMinOffset, opts.FetchMaxOffset)
		if err != nil {
			return fiber.NewError(fiber.StatusBadGateway, err.Error())
		}
		return c.JSON(report)
	})
}

func selectionError(err error) error {
	switch {
	case errors.Is(err, precip.ErrUnknownStation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, precip.ErrNoData):
		return fiber.NewError(fiber.StatusNotFound, "no precipitation data recorded yet")
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "failed to read precipitation data")
	}
}

// selectionQuery holds the station and date-range selection shared by the
// daily and summary endpoints.
type selectionQuery struct {
	Stations []string  `validate:"required,min=1,dive,required"`
	From     time.Time `validate:"required"`
	To       time.Time `validate:"required,gtefield=From"`
}

func (q *selectionQuery) bind(c *fiber.Ctx) error {
	if raw := c.Query("stations"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				q.Stations = append(q.Stations, s)
			}
		}
	}

	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := precip.ParseDate(fromStr)
	if err != nil {
		return err
	}
	to, err := precip.ParseDate(toStr)
	if err != nil {
		return err
	}
	q.From = from
	q.To = to

	return validate.Struct(q)
}
