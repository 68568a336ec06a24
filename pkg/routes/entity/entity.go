package entity

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/resolution"
)

var validate = validator.New()

// MergeRequest is the body of a merge call
type MergeRequest struct {
	SourceIDs []string            `json:"source_ids" validate:"required,min=1,dive,required"`
	Options   models.MergeOptions `json:"options"`
}

// Register registers entity routes
func Register(g *echo.Group) {
	g.GET("/:sourceId/compatibility/:targetId", GetCompatibility)
	g.POST("/:targetId/merge", MergeEntities)
	g.GET("/:entityId/merges/latest", GetLatestMerge)
}

// RegisterMerges registers merge record routes
func RegisterMerges(g *echo.Group) {
	g.GET("/:mergeId", GetMergeRecord)
}

func service(c echo.Context) (*resolution.Service, error) {
	ctx, svc, err := ectoinject.GetContext[*resolution.Service](c.Request().Context())
	if err != nil || svc == nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "resolution service unavailable")
	}
	c.SetRequest(c.Request().WithContext(ctx))
	return svc, nil
}

// GetCompatibility reports how merging the source into the target would go
func GetCompatibility(c echo.Context) error {
	svc, err := service(c)
	if err != nil {
		return err
	}

	report, err := svc.Analyze(c.Request().Context(), c.Param("sourceId"), c.Param("targetId"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, report)
}

// MergeEntities merges the requested sources into the target
func MergeEntities(c echo.Context) error {
	var req MergeRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "source_ids must list at least one non-empty id")
	}

	svc, err := service(c)
	if err != nil {
		return err
	}

	result, err := svc.Merge(c.Request().Context(), c.Param("targetId"), req.SourceIDs, req.Options)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// GetLatestMerge returns the most recent merge record of an entity
func GetLatestMerge(c echo.Context) error {
	svc, err := service(c)
	if err != nil {
		return err
	}

	record, err := svc.LatestMerge(c.Request().Context(), c.Param("entityId"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, record)
}

// GetMergeRecord returns a merge record by id
func GetMergeRecord(c echo.Context) error {
	svc, err := service(c)
	if err != nil {
		return err
	}

	record, err := svc.MergeRecord(c.Request().Context(), c.Param("mergeId"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, record)
}
