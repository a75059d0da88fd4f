package httpapi

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/webmet/climate-normals/internal/catalog"
	"github.com/webmet/climate-normals/internal/pipeline"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, cat *catalog.Catalog, pipe *pipeline.Pipeline) {
	v1 := app.Group("/api/v1")

	v1.Get("/stations", func(c *fiber.Ctx) error {
		return c.JSON(cat.All())
	})

	v1.Get("/stations/:id", func(c *fiber.Ctx) error {
		st, ok := cat.ByID(c.Params("id"))
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "no station with that identifier")
		}
		return c.JSON(st)
	})

	v1.Post("/catalog/refresh", func(c *fiber.Ctx) error {
		// A full enumeration walks every month since the archive epoch;
		// this is deliberately synchronous so the caller learns whether
		// the new catalog was persisted.
		ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
		defer cancel()

		if err := cat.Refresh(ctx); err != nil {
			return fiber.NewError(fiber.StatusBadGateway, "catalog refresh failed: "+err.Error())
		}
		return c.JSON(fiber.Map{"stations": cat.Len()})
	})

	v1.Get("/normals", func(c *fiber.Ctx) error {
		req, err := parseNormalsQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		normals, err := pipe.Normals(c.Context(), req.Station, req.From, req.To)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no station with that name")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to compute normals")
		}
		return c.JSON(normals)
	})

	v1.Get("/summary", func(c *fiber.Ctx) error {
		req, err := parseSummaryQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		text, err := pipe.Summary(c.Context(), req.Station, req.Format, req.From, req.To)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no station with that name")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to render summary")
		}
		c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
		return c.SendString(text)
	})
}

// normalsQuery holds query parameters selecting a station and year span.
type normalsQuery struct {
	Station string `validate:"required"`
	From    int    `validate:"omitempty,min=1800"`
	To      int    `validate:"omitempty,gtefield=From"`
}

func parseNormalsQuery(c *fiber.Ctx) (normalsQuery, error) {
	var q normalsQuery
	q.Station = c.Query("station")

	var err error
	if q.From, err = queryInt(c, "from"); err != nil {
		return q, err
	}
	if q.To, err = queryInt(c, "to"); err != nil {
		return q, err
	}

	if err := validate.Struct(q); err != nil {
		return q, err
	}
	return q, nil
}

// summaryQuery adds the output template selector.
type summaryQuery struct {
	normalsQuery
	Format string `validate:"omitempty,oneof=table weatherbox"`
}

func parseSummaryQuery(c *fiber.Ctx) (summaryQuery, error) {
	var q summaryQuery

	nq, err := parseNormalsQuery(c)
	if err != nil {
		return q, err
	}
	q.normalsQuery = nq
	q.Format = c.Query("format", "table")

	if err := validate.Struct(q); err != nil {
		return q, err
	}
	return q, nil
}

func queryInt(c *fiber.Ctx, key string) (int, error) {
	s := c.Query(key)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.New(key + " must be a year")
	}
	return n, nil
}
