package host

import (
	"image/png"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/drummonds/pdfsnip/internal/build"
	"github.com/drummonds/pdfsnip/snip"
)

type loadRequest struct {
	URL  string `json:"url"`
	Data string `json:"data"`
}

type loadResponse struct {
	PageCount int     `json:"pageCount"`
	Page      int     `json:"page"`
	Scale     float64 `json:"scale"`
}

type stateResponse struct {
	Page      int     `json:"page"`
	Scale     float64 `json:"scale"`
	Rotation  int     `json:"rotation"`
	PageCount int     `json:"pageCount"`
	Loading   bool    `json:"loading"`
	HasError  bool    `json:"hasError"`
	Error     string  `json:"error,omitempty"`
}

type stateRequest struct {
	Page  int     `json:"page"`
	Scale float64 `json:"scale"`
}

type selectionRequest struct {
	X1            float64 `json:"x1"`
	Y1            float64 `json:"y1"`
	X2            float64 `json:"x2"`
	Y2            float64 `json:"y2"`
	DisplayWidth  float64 `json:"displayWidth"`
	DisplayHeight float64 `json:"displayHeight"`
}

type errorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type aboutResponse struct {
	Version        string  `json:"version"`
	Renderer       string  `json:"renderer"`
	MinScale       float64 `json:"minScale"`
	MaxScale       float64 `json:"maxScale"`
	MaxUploadBytes int64   `json:"maxUploadBytes"`
	CapturePath    string  `json:"capturePath"`
}

// RegisterRoutes adds all of the snipping tool routes to echo
func (serverHandler *ServerHandler) RegisterRoutes() {
	e := serverHandler.Echo
	e.POST("/api/document", serverHandler.LoadDocument)
	e.GET("/api/page", serverHandler.GetPage)
	e.GET("/api/state", serverHandler.GetState)
	e.PUT("/api/state", serverHandler.PutState)
	e.POST("/api/rotate", serverHandler.Rotate)
	e.POST("/api/selection", serverHandler.PutSelection)
	e.DELETE("/api/selection", serverHandler.ClearSelection)
	e.POST("/api/snip", serverHandler.Snip)
	e.GET("/api/health", serverHandler.Health)
	e.GET("/api/about", serverHandler.About)
}

// snipErrorJSON maps a classified subsystem error onto an HTTP response
func snipErrorJSON(c echo.Context, err error) error {
	kind, ok := snip.KindOf(err)
	if !ok {
		return c.JSON(http.StatusInternalServerError, errorResponse{
			Kind: "Internal", Message: "Something went wrong.",
		})
	}

	status := http.StatusInternalServerError
	switch kind {
	case snip.ErrEmptyDocument, snip.ErrInvalidFormat, snip.ErrNoSelection:
		status = http.StatusBadRequest
	case snip.ErrOversizedPayload:
		status = http.StatusRequestEntityTooLarge
	case snip.ErrNotFound:
		status = http.StatusNotFound
	case snip.ErrNetworkFailure, snip.ErrServerError:
		status = http.StatusBadGateway
	}
	return c.JSON(status, errorResponse{Kind: kind.String(), Message: kind.UserMessage()})
}

// LoadDocument loads a new document into the tool. Multipart uploads
// carry a local file pick; a JSON body carries a remote URL or an
// embedded base64 payload.
func (serverHandler *ServerHandler) LoadDocument(c echo.Context) error {
	var source snip.Source

	if file, fileHeader, err := c.Request().FormFile("file"); err == nil {
		defer file.Close()
		body, err := io.ReadAll(file)
		if err != nil {
			Logger.Error("Unable to read uploaded file", "error", err)
			return c.JSON(http.StatusBadRequest, errorResponse{
				Kind: "Upload", Message: "The uploaded file could not be read.",
			})
		}
		source = snip.BytesSource(fileHeader.Filename, fileHeader.Header.Get("Content-Type"), body)
	} else {
		var request loadRequest
		if err := c.Bind(&request); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{
				Kind: "Request", Message: "Supply a file, a url or embedded data.",
			})
		}
		switch {
		case request.URL != "":
			source = snip.URLSource(request.URL)
		case request.Data != "":
			source = snip.DataBlobSource(request.Data)
		default:
			return c.JSON(http.StatusBadRequest, errorResponse{
				Kind: "Request", Message: "Supply a file, a url or embedded data.",
			})
		}
	}

	if err := serverHandler.Snipper.SetSource(c.Request().Context(), source); err != nil {
		return snipErrorJSON(c, err)
	}

	state := serverHandler.Snipper.ViewState()
	return c.JSON(http.StatusOK, loadResponse{
		PageCount: serverHandler.Snipper.PageCount(),
		Page:      state.Page,
		Scale:     state.Scale,
	})
}

// GetPage serves the currently displayed page as PNG, waiting briefly
// for an in-flight render of the current view state to land
func (serverHandler *ServerHandler) GetPage(c echo.Context) error {
	if serverHandler.Snipper.PageCount() == 0 {
		return c.JSON(http.StatusNotFound, errorResponse{
			Kind: "NoDocument", Message: "No document is loaded.",
		})
	}

	raster := serverHandler.waitForCurrentRaster(3 * time.Second)
	if raster == nil {
		return c.JSON(http.StatusServiceUnavailable, errorResponse{
			Kind: "Rendering", Message: "The page is still rendering.",
		})
	}

	c.Response().Header().Set("X-Raster-Width", strconv.Itoa(raster.Width))
	c.Response().Header().Set("X-Raster-Height", strconv.Itoa(raster.Height))
	c.Response().Header().Set("X-Raster-Page", strconv.Itoa(raster.Page))
	c.Response().Header().Set(echo.HeaderContentType, "image/png")
	c.Response().WriteHeader(http.StatusOK)
	return png.Encode(c.Response(), raster.Image)
}

// waitForCurrentRaster polls until the displayed raster matches the
// authoritative view state, or the timeout passes
func (serverHandler *ServerHandler) waitForCurrentRaster(timeout time.Duration) *snip.Raster {
	deadline := time.Now().Add(timeout)
	for {
		state := serverHandler.Snipper.ViewState()
		raster := serverHandler.Snipper.Raster()
		if raster != nil && raster.Page == state.Page && raster.Scale == state.Scale &&
			raster.Rotation == serverHandler.Snipper.Rotation() {
			return raster
		}
		if time.Now().After(deadline) {
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// GetState reports the current view state and the callback mirror
func (serverHandler *ServerHandler) GetState(c echo.Context) error {
	state := serverHandler.Snipper.ViewState()
	loading, hasError, message := serverHandler.status()
	return c.JSON(http.StatusOK, stateResponse{
		Page:      state.Page,
		Scale:     state.Scale,
		Rotation:  serverHandler.Snipper.Rotation(),
		PageCount: serverHandler.Snipper.PageCount(),
		Loading:   loading,
		HasError:  hasError,
		Error:     message,
	})
}

// PutState updates (page, scale). origin=host runs the debounced
// host-props path; anything else is a direct user navigation.
func (serverHandler *ServerHandler) PutState(c echo.Context) error {
	var request stateRequest
	if err := c.Bind(&request); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{
			Kind: "Request", Message: "Body must carry page and scale.",
		})
	}

	next := snip.ViewState{Page: request.Page, Scale: request.Scale}
	if c.QueryParam("origin") == "host" {
		serverHandler.Snipper.SetHostViewState(next)
	} else {
		if next.Page != 0 {
			serverHandler.Snipper.SetPage(next.Page)
		}
		if next.Scale != 0 {
			serverHandler.Snipper.SetScale(next.Scale)
		}
	}
	return serverHandler.GetState(c)
}

// Rotate turns the page a quarter turn clockwise
func (serverHandler *ServerHandler) Rotate(c echo.Context) error {
	serverHandler.Snipper.Rotate()
	return serverHandler.GetState(c)
}

// PutSelection replays a finished drag through the selection tracker.
// Coordinates are in the client's display space; the tracker rescales
// them against the raster's true pixel size.
func (serverHandler *ServerHandler) PutSelection(c echo.Context) error {
	var request selectionRequest
	if err := c.Bind(&request); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{
			Kind: "Request", Message: "Body must carry the drag coordinates.",
		})
	}
	raster := serverHandler.Snipper.Raster()
	if raster == nil {
		return c.JSON(http.StatusNotFound, errorResponse{
			Kind: "NoDocument", Message: "No page is rendered.",
		})
	}

	metrics := snip.DisplayMetrics{
		DisplayWidth:  request.DisplayWidth,
		DisplayHeight: request.DisplayHeight,
		RasterWidth:   raster.Width,
		RasterHeight:  raster.Height,
	}
	serverHandler.Snipper.PointerDown(request.X1, request.Y1, metrics)
	serverHandler.Snipper.PointerMove(request.X2, request.Y2, metrics)
	rect, ok := serverHandler.Snipper.PointerUp(request.X2, request.Y2, metrics)
	if !ok {
		return c.JSON(http.StatusOK, snip.SelectionRect{})
	}
	return c.JSON(http.StatusOK, rect)
}

// ClearSelection drops the active selection
func (serverHandler *ServerHandler) ClearSelection(c echo.Context) error {
	serverHandler.Snipper.SetSelection(snip.SelectionRect{})
	return c.NoContent(http.StatusNoContent)
}

// Snip captures the selected region and returns it as a PNG attachment
func (serverHandler *ServerHandler) Snip(c echo.Context) error {
	artifact, err := serverHandler.Snipper.Snip()
	if err != nil {
		return snipErrorJSON(c, err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		`attachment; filename="`+artifact.SuggestedFileName+`"`)
	return c.Blob(http.StatusOK, "image/png", artifact.ImageData)
}

// Health check endpoint
func (serverHandler *ServerHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "pdfsnip API",
	})
}

// About reports build and configuration details for the about page
func (serverHandler *ServerHandler) About(c echo.Context) error {
	return c.JSON(http.StatusOK, aboutResponse{
		Version:        build.Version,
		Renderer:       serverHandler.ServerConfig.Renderer,
		MinScale:       serverHandler.ServerConfig.MinScale,
		MaxScale:       serverHandler.ServerConfig.MaxScale,
		MaxUploadBytes: serverHandler.ServerConfig.MaxUploadBytes,
		CapturePath:    serverHandler.ServerConfig.CaptureDir,
	})
}
