package obstetrics

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/intake/internal/domain/records"
)

// Resolver finds the obstetric service for the request's patient. The
// returned release func must be called once the handler is done with it.
type Resolver func(c echo.Context) (svc *Service, release func(), err error)

type Handler struct {
	resolve Resolver
}

func NewHandler(resolve Resolver) *Handler {
	return &Handler{resolve: resolve}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/obstetric/records", h.ListRecords)
	g.GET("/obstetric/records/:id", h.GetRecord)
	g.POST("/obstetric/records", h.CreateRecord)
	g.PUT("/obstetric/records/:id", h.UpdateRecord)
	g.DELETE("/obstetric/records/:id", h.DeleteRecord)
	g.GET("/obstetric/gtpal", h.GetScore)
	g.PUT("/obstetric/gtpal/override", h.SetOverride)
	g.DELETE("/obstetric/gtpal/override", h.ClearOverride)
}

type listResponse struct {
	Records       []*PregnancyRecord `json:"records"`
	CanAddCurrent bool               `json:"can_add_current"`
	Score         ScoreView          `json:"gtpal"`
}

func (h *Handler) ListRecords(c echo.Context) error {
	svc, release, err := h.resolve(c)
	if err != nil {
		return err
	}
	defer release()
	return c.JSON(http.StatusOK, listResponse{
		Records:       svc.Records(),
		CanAddCurrent: svc.CanAddCurrent(),
		Score:         svc.Score(),
	})
}

func (h *Handler) GetRecord(c echo.Context) error {
	svc, release, err := h.resolve(c)
	if err != nil {
		return err
	}
	defer release()
	r, err := svc.GetRecord(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "pregnancy record not found")
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) CreateRecord(c echo.Context) error {
	var r PregnancyRecord
	if err := c.Bind(&r); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	svc, release, err := h.resolve(c)
	if err != nil {
		return err
	}
	defer release()
	out, err := svc.AddRecord(&r)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *Handler) UpdateRecord(c echo.Context) error {
	var r PregnancyRecord
	if err := c.Bind(&r); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	svc, release, err := h.resolve(c)
	if err != nil {
		return err
	}
	defer release()
	out, err := svc.UpdateRecord(c.Param("id"), &r)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) DeleteRecord(c echo.Context) error {
	svc, release, err := h.resolve(c)
	if err != nil {
		return err
	}
	defer release()
	svc.RemoveRecord(c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GetScore(c echo.Context) error {
	svc, release, err := h.resolve(c)
	if err != nil {
		return err
	}
	defer release()
	return c.JSON(http.StatusOK, svc.Score())
}

func (h *Handler) SetOverride(c echo.Context) error {
	var s GTPALScore
	if err := c.Bind(&s); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	svc, release, err := h.resolve(c)
	if err != nil {
		return err
	}
	defer release()
	if err := svc.SetOverride(s); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, svc.Score())
}

func (h *Handler) ClearOverride(c echo.Context) error {
	svc, release, err := h.resolve(c)
	if err != nil {
		return err
	}
	defer release()
	svc.ClearOverride()
	return c.JSON(http.StatusOK, svc.Score())
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidRecord):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, records.ErrInvariantViolation):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, records.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
