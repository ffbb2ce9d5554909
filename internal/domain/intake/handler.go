package intake

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/intake/internal/domain/history"
	"github.com/ehr/intake/internal/domain/obstetrics"
	"github.com/ehr/intake/internal/domain/reconcile"
	"github.com/ehr/intake/internal/domain/records"
	"github.com/ehr/intake/internal/domain/section"
	"github.com/ehr/intake/internal/domain/simulation"
	"github.com/ehr/intake/internal/domain/timeline"
	"github.com/ehr/intake/pkg/pagination"
)

type Handler struct {
	registry *Registry
}

func NewHandler(r *Registry) *Handler {
	return &Handler{registry: r}
}

// RegisterRoutes mounts the intake routes on a /patients/:patient_id group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("", h.GetOverview)
	g.GET("/sections/:section", h.GetSection)
	g.PUT("/sections/:section/answer", h.SetAnswer)
	g.POST("/sections/:section/items", h.AddItem)
	g.PUT("/sections/:section/items/:id", h.UpdateItem)
	g.DELETE("/sections/:section/items/:id", h.DeleteItem)
	g.POST("/sections/:section/previous/copy", h.CopyPrevious)
	g.POST("/sections/:section/previous/ignore", h.IgnorePrevious)
	g.POST("/sections/:section/defaults", h.LoadDefaults)
	g.POST("/sections/:section/save", h.Save)
	g.POST("/sections/:section/new-entry", h.NewEntry)
	g.GET("/sections/:section/visits", h.ListVisits)
	g.GET("/sections/:section/visits/:visit_id", h.GetVisit)
	g.PUT("/sections/:section/viewing/:visit_id", h.OpenVisit)
	g.DELETE("/sections/:section/viewing", h.CloseVisit)
	g.GET("/simulation/mode", h.GetMode)
	g.PUT("/simulation/mode", h.SetMode)

	obstetrics.NewHandler(h.obstetricService).RegisterRoutes(g)
}

func (h *Handler) acquire(c echo.Context) (*Session, func(), error) {
	s, release, err := h.registry.Acquire(c.Request().Context(), c.Param("patient_id"))
	if err != nil {
		return nil, nil, httpError(err)
	}
	return s, release, nil
}

func (h *Handler) obstetricService(c echo.Context) (*obstetrics.Service, func(), error) {
	s, release, err := h.acquire(c)
	if err != nil {
		return nil, nil, err
	}
	return s.Obstetric(), release, nil
}

// withSection runs fn on the requested section under the session lock.
func (h *Handler) withSection(c echo.Context, fn func(s *Session, api sectionAPI) error) error {
	s, release, err := h.acquire(c)
	if err != nil {
		return err
	}
	defer release()
	api, err := s.section(c.Param("section"))
	if err != nil {
		return httpError(err)
	}
	return fn(s, api)
}

type overviewResponse struct {
	PatientID string          `json:"patient_id"`
	Mode      simulation.Mode `json:"mode"`
	Sections  map[string]any  `json:"sections"`
}

func (h *Handler) GetOverview(c echo.Context) error {
	s, release, err := h.acquire(c)
	if err != nil {
		return err
	}
	defer release()
	return c.JSON(http.StatusOK, overviewResponse{
		PatientID: s.PatientID(),
		Mode:      s.Mode(),
		Sections:  s.Overview(),
	})
}

func (h *Handler) GetSection(c echo.Context) error {
	return h.withSection(c, func(_ *Session, api sectionAPI) error {
		return c.JSON(http.StatusOK, api.View())
	})
}

type answerRequest struct {
	Answer string `json:"answer"`
}

func (h *Handler) SetAnswer(c echo.Context) error {
	var req answerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := timeline.ParseAnswer(req.Answer)
	if err != nil {
		return httpError(err)
	}
	return h.withSection(c, func(_ *Session, api sectionAPI) error {
		if err := api.SetAnswer(a); err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, api.View())
	})
}

func (h *Handler) AddItem(c echo.Context) error {
	var it history.Item
	if err := c.Bind(&it); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return h.withSection(c, func(s *Session, api sectionAPI) error {
		out, err := s.AddItem(api.Info().Name, &it)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusCreated, out)
	})
}

func (h *Handler) UpdateItem(c echo.Context) error {
	var it history.Item
	if err := c.Bind(&it); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return h.withSection(c, func(s *Session, api sectionAPI) error {
		out, err := s.UpdateItem(api.Info().Name, c.Param("id"), &it)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, out)
	})
}

func (h *Handler) DeleteItem(c echo.Context) error {
	return h.withSection(c, func(s *Session, api sectionAPI) error {
		if err := s.RemoveItem(api.Info().Name, c.Param("id")); err != nil {
			return httpError(err)
		}
		return c.NoContent(http.StatusNoContent)
	})
}

func (h *Handler) CopyPrevious(c echo.Context) error {
	return h.withSection(c, func(_ *Session, api sectionAPI) error {
		if err := api.CopyPrevious(); err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, api.View())
	})
}

func (h *Handler) IgnorePrevious(c echo.Context) error {
	return h.withSection(c, func(_ *Session, api sectionAPI) error {
		if err := api.IgnorePrevious(); err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, api.View())
	})
}

func (h *Handler) LoadDefaults(c echo.Context) error {
	return h.withSection(c, func(_ *Session, api sectionAPI) error {
		if err := api.LoadDefaults(); err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, api.View())
	})
}

func (h *Handler) Save(c echo.Context) error {
	return h.withSection(c, func(_ *Session, api sectionAPI) error {
		snap, err := api.Save(c.Request().Context())
		if err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusCreated, snap)
	})
}

func (h *Handler) NewEntry(c echo.Context) error {
	return h.withSection(c, func(s *Session, api sectionAPI) error {
		if _, err := s.StartNewEntry(api.Info().Name); err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, api.View())
	})
}

func (h *Handler) ListVisits(c echo.Context) error {
	return h.withSection(c, func(_ *Session, api sectionAPI) error {
		page := pagination.Page(api.Visits(), pagination.FromContext(c))
		return c.JSON(http.StatusOK, page.WithLinks(c.Request().URL.Path))
	})
}

func (h *Handler) GetVisit(c echo.Context) error {
	return h.withSection(c, func(_ *Session, api sectionAPI) error {
		v, err := api.Visit(c.Param("visit_id"))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, v)
	})
}

func (h *Handler) OpenVisit(c echo.Context) error {
	return h.withSection(c, func(_ *Session, api sectionAPI) error {
		if _, err := api.ViewVisit(c.Param("visit_id")); err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, api.View())
	})
}

func (h *Handler) CloseVisit(c echo.Context) error {
	return h.withSection(c, func(_ *Session, api sectionAPI) error {
		api.CloseVisit()
		return c.JSON(http.StatusOK, api.View())
	})
}

type modeRequest struct {
	Mode string `json:"mode"`
}

type modeResponse struct {
	Mode simulation.Mode `json:"mode"`
}

func (h *Handler) GetMode(c echo.Context) error {
	s, release, err := h.acquire(c)
	if err != nil {
		return err
	}
	defer release()
	return c.JSON(http.StatusOK, modeResponse{Mode: s.Mode()})
}

func (h *Handler) SetMode(c echo.Context) error {
	var req modeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	mode, err := simulation.ParseMode(req.Mode)
	if err != nil {
		return httpError(err)
	}
	s, release, err := h.acquire(c)
	if err != nil {
		return err
	}
	defer release()
	if err := s.SetMode(mode); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, overviewResponse{
		PatientID: s.PatientID(),
		Mode:      s.Mode(),
		Sections:  s.Overview(),
	})
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrUnknownSection),
		errors.Is(err, records.ErrNotFound),
		errors.Is(err, timeline.ErrSnapshotNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidPatientID),
		errors.Is(err, timeline.ErrInvalidAnswer),
		errors.Is(err, history.ErrInvalidItem),
		errors.Is(err, simulation.ErrUnknownMode):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, records.ErrInvariantViolation),
		errors.Is(err, reconcile.ErrNoPendingData),
		errors.Is(err, section.ErrSaveRefused):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
