package folder

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/resolution"
)

// Register registers folder routes
func Register(g *echo.Group) {
	g.GET("/:folderId/duplicates", GetDuplicates)
	g.GET("/:folderId/suggestions", GetSuggestions)
}

// floatParam reads an optional float query parameter. Missing means zero.
func floatParam(c echo.Context, name string) (float64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, httperror.NewHTTPErrorf(http.StatusBadRequest, "%s must be a number", name)
	}
	return v, nil
}

func service(c echo.Context) (*resolution.Service, error) {
	ctx := context.SetFolderID(c.Request().Context(), c.Param("folderId"))
	ctx, svc, err := ectoinject.GetContext[*resolution.Service](ctx)
	if err != nil || svc == nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "resolution service unavailable")
	}
	c.SetRequest(c.Request().WithContext(ctx))
	return svc, nil
}

// GetDuplicates clusters likely duplicates in a folder
func GetDuplicates(c echo.Context) error {
	minScore, err := floatParam(c, "min_score")
	if err != nil {
		return err
	}

	svc, err := service(c)
	if err != nil {
		return err
	}

	clusters, err := svc.DetectDuplicates(c.Request().Context(), c.Param("folderId"), minScore)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, clusters)
}

// GetSuggestions ranks merge candidates in a folder
func GetSuggestions(c echo.Context) error {
	minConfidence, err := floatParam(c, "min_confidence")
	if err != nil {
		return err
	}

	svc, err := service(c)
	if err != nil {
		return err
	}

	suggestions, err := svc.Suggest(c.Request().Context(), c.Param("folderId"), minConfidence)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, suggestions)
}
