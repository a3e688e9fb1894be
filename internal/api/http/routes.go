package httpapi

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-lookup/internal/screen"
	"github.com/i474232898/weather-lookup/internal/session"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, sessions *session.Registry) {
	v1 := app.Group("/api/v1")

	v1.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":   "ok",
			"service":  "weather-lookup",
			"sessions": sessions.Len(),
		})
	})

	v1.Post("/sessions", func(c *fiber.Ctx) error {
		id, ctrl := sessions.Create(c.UserContext())
		return respond(c.Status(fiber.StatusCreated), id, ctrl)
	})

	v1.Get("/sessions/:id", func(c *fiber.Ctx) error {
		ctrl, err := lookupSession(c, sessions)
		if err != nil {
			return err
		}
		return respond(c, c.Params("id"), ctrl)
	})

	v1.Delete("/sessions/:id", func(c *fiber.Ctx) error {
		if err := sessions.Delete(c.Params("id")); err != nil {
			return mapError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	v1.Post("/sessions/:id/search", func(c *fiber.Ctx) error {
		ctrl, err := lookupSession(c, sessions)
		if err != nil {
			return err
		}

		var req searchRequest
		if err := bind(c, &req); err != nil {
			return err
		}
		if _, err := ctrl.Search(c.UserContext(), req.Query); err != nil {
			return mapError(err)
		}
		return respond(c, c.Params("id"), ctrl)
	})

	v1.Post("/sessions/:id/confirm", func(c *fiber.Ctx) error {
		ctrl, err := lookupSession(c, sessions)
		if err != nil {
			return err
		}
		if _, err := ctrl.Confirm(c.UserContext()); err != nil {
			return mapError(err)
		}
		return respond(c, c.Params("id"), ctrl)
	})

	v1.Post("/sessions/:id/location", func(c *fiber.Ctx) error {
		ctrl, err := lookupSession(c, sessions)
		if err != nil {
			return err
		}

		var req locationRequest
		if err := bind(c, &req); err != nil {
			return err
		}
		if _, err := ctrl.LocationGranted(c.UserContext(), *req.Lat, *req.Lon); err != nil {
			return mapError(err)
		}
		return respond(c, c.Params("id"), ctrl)
	})
}

// searchRequest is the body of a search. A blank query restores the
// persisted selection.
type searchRequest struct {
	Query string `json:"query" validate:"max=200"`
}

// locationRequest carries a device coordinate. Pointers make zero a valid,
// present value.
type locationRequest struct {
	Lat *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lon *float64 `json:"lon" validate:"required,gte=-180,lte=180"`
}

// sessionView is the JSON body returned for every session request.
type sessionView struct {
	ID    string `json:"id"`
	Query string `json:"query"`
	screen.DisplayState
}

func bind(c *fiber.Ctx, req interface{}) error {
	if err := c.BodyParser(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}

func lookupSession(c *fiber.Ctx, sessions *session.Registry) (*screen.Controller, error) {
	ctrl, err := sessions.Get(c.Params("id"))
	if err != nil {
		return nil, mapError(err)
	}
	return ctrl, nil
}

func respond(c *fiber.Ctx, id string, ctrl *screen.Controller) error {
	state, err := ctrl.State()
	if err != nil {
		return mapError(err)
	}
	query, err := ctrl.Query()
	if err != nil {
		return mapError(err)
	}
	return c.JSON(sessionView{ID: id, Query: strings.TrimSpace(query), DisplayState: state})
}

func mapError(err error) error {
	switch {
	case errors.Is(err, session.ErrNotFound), errors.Is(err, screen.ErrClosed):
		return fiber.NewError(fiber.StatusNotFound, "session not found")
	case errors.Is(err, screen.ErrNothingToConfirm):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}

// ErrorHandler is the centralized error response for the app.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}
