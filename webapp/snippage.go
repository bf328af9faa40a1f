package webapp

import (
	"encoding/json"
	"fmt"

	"github.com/maxence-charriere/go-app/v10/pkg/app"
)

// SnipPage is the snipping tool: load a PDF, page through it, drag a
// rectangle over the rendered page and download the cropped region.
type SnipPage struct {
	app.Compo

	tool         ToolState
	imageVersion int
	selection    SelectionRect
	hasSelection bool

	dragging   bool
	dragStartX float64
	dragStartY float64
	dragEndX   float64
	dragEndY   float64

	status string
	error  string
}

// OnMount is called when the component is mounted
func (s *SnipPage) OnMount(ctx app.Context) {
	s.refreshState(ctx)
}

// Render renders the snip page
func (s *SnipPage) Render() app.UI {
	return app.Div().
		Class("snip-page").
		Body(
			app.H2().Text("PDF Snipping Tool"),
			s.renderToolbar(),
			s.renderStatus(),
			s.renderViewer(),
		)
}

// renderToolbar renders the upload control and the page/zoom/rotate buttons
func (s *SnipPage) renderToolbar() app.UI {
	hasDocument := s.tool.PageCount > 0

	return app.Div().Class("snip-toolbar").Body(
		app.Input().
			Type("file").
			Accept(".pdf,application/pdf").
			OnChange(s.onFilePicked),
		app.Button().
			Class("btn").
			Disabled(!hasDocument || s.tool.Page <= 1).
			OnClick(s.onPreviousPage).
			Text("< Prev"),
		app.Span().Class("page-indicator").Text(s.pageIndicator()),
		app.Button().
			Class("btn").
			Disabled(!hasDocument || s.tool.Page >= s.tool.PageCount).
			OnClick(s.onNextPage).
			Text("Next >"),
		app.Button().
			Class("btn").
			Disabled(!hasDocument).
			OnClick(s.onZoomOut).
			Text("-"),
		app.Span().Class("zoom-indicator").Text(fmt.Sprintf("%.0f%%", s.tool.Scale*100)),
		app.Button().
			Class("btn").
			Disabled(!hasDocument).
			OnClick(s.onZoomIn).
			Text("+"),
		app.Button().
			Class("btn").
			Disabled(!hasDocument).
			OnClick(s.onRotate).
			Text("Rotate"),
		app.Button().
			Class("btn-primary").
			Disabled(!s.hasSelection).
			OnClick(s.onSnip).
			Text("Snip"),
	)
}

func (s *SnipPage) pageIndicator() string {
	if s.tool.PageCount == 0 {
		return "No document"
	}
	return fmt.Sprintf("Page %d of %d", s.tool.Page, s.tool.PageCount)
}

// renderStatus renders the status/error section
func (s *SnipPage) renderStatus() app.UI {
	if s.error != "" {
		return app.Div().Class("error").Body(
			app.Text("Error: " + s.error),
		)
	}
	if s.tool.Loading {
		return app.Div().Class("loading").Body(
			app.Text("Loading document..."),
		)
	}
	if s.status != "" {
		return app.Div().Class("success").Body(
			app.Text(s.status),
		)
	}
	return app.Div()
}

// renderViewer renders the page image with the drag-selection overlay
func (s *SnipPage) renderViewer() app.UI {
	if s.tool.PageCount == 0 {
		return app.Div().Class("viewer-empty").Body(
			app.P().Text("Choose a PDF file to start snipping."),
		)
	}

	pageURL := BuildAPIURL(fmt.Sprintf("/api/page?v=%d", s.imageVersion))

	return app.Div().
		Class("viewer").
		Style("position", "relative").
		Style("user-select", "none").
		OnMouseDown(s.onPointerDown).
		OnMouseMove(s.onPointerMove).
		OnMouseUp(s.onPointerUp).
		Body(
			app.Img().
				Class("page-image").
				Src(pageURL).
				Draggable(false),
			s.renderSelectionBox(),
		)
}

// renderSelectionBox draws the live drag rectangle in display space
func (s *SnipPage) renderSelectionBox() app.UI {
	if !s.dragging && !s.hasSelection {
		return app.Div()
	}
	x1, y1, x2, y2 := s.dragStartX, s.dragStartY, s.dragEndX, s.dragEndY
	if x2 < x1 {
		x1, x2 = x2, x1
	}
	if y2 < y1 {
		y1, y2 = y2, y1
	}
	return app.Div().
		Class("selection-box").
		Style("position", "absolute").
		Style("left", fmt.Sprintf("%.0fpx", x1)).
		Style("top", fmt.Sprintf("%.0fpx", y1)).
		Style("width", fmt.Sprintf("%.0fpx", x2-x1)).
		Style("height", fmt.Sprintf("%.0fpx", y2-y1)).
		Style("border", "1px dashed #1a73e8").
		Style("background", "rgba(26,115,232,0.15)").
		Style("pointer-events", "none")
}

// pointerPosition resolves a mouse event into viewer-local coordinates
func (s *SnipPage) pointerPosition(e app.Event) (x, y, width, height float64) {
	rect := e.Get("currentTarget").Call("getBoundingClientRect")
	x = e.Get("clientX").Float() - rect.Get("left").Float()
	y = e.Get("clientY").Float() - rect.Get("top").Float()
	return x, y, rect.Get("width").Float(), rect.Get("height").Float()
}

func (s *SnipPage) onPointerDown(ctx app.Context, e app.Event) {
	e.PreventDefault()
	x, y, _, _ := s.pointerPosition(e)
	s.dragging = true
	s.hasSelection = false
	s.dragStartX, s.dragStartY = x, y
	s.dragEndX, s.dragEndY = x, y
}

func (s *SnipPage) onPointerMove(ctx app.Context, e app.Event) {
	if !s.dragging {
		return
	}
	s.dragEndX, s.dragEndY = s.pointerXY(e)
}

func (s *SnipPage) pointerXY(e app.Event) (float64, float64) {
	x, y, _, _ := s.pointerPosition(e)
	return x, y
}

func (s *SnipPage) onPointerUp(ctx app.Context, e app.Event) {
	if !s.dragging {
		return
	}
	s.dragging = false
	x, y, displayWidth, displayHeight := s.pointerPosition(e)
	s.dragEndX, s.dragEndY = x, y

	body := fmt.Sprintf(`{"x1":%f,"y1":%f,"x2":%f,"y2":%f,"displayWidth":%f,"displayHeight":%f}`,
		s.dragStartX, s.dragStartY, x, y, displayWidth, displayHeight)

	s.fetchJSON(ctx, "POST", "/api/selection", body, func(status int, responseBody string) {
		var rect SelectionRect
		if status < 200 || status >= 300 {
			s.error = "Selection failed"
			return
		}
		if err := json.Unmarshal([]byte(responseBody), &rect); err != nil {
			return
		}
		s.selection = rect
		s.hasSelection = rect.Width > 0 && rect.Height > 0
	})
}

// onFilePicked uploads the chosen file to the backend
func (s *SnipPage) onFilePicked(ctx app.Context, e app.Event) {
	files := ctx.JSSrc().Get("files")
	if !files.Truthy() || files.Get("length").Int() == 0 {
		return
	}
	file := files.Index(0)

	s.status = ""
	s.error = ""
	s.hasSelection = false

	formData := app.Window().Get("FormData").New()
	formData.Call("append", "file", file)

	ctx.Async(func() {
		res := app.Window().Call("fetch", BuildAPIURL("/api/document"), map[string]interface{}{
			"method": "POST",
			"body":   formData,
		})
		res.Call("then", app.FuncOf(func(this app.Value, args []app.Value) interface{} {
			if len(args) == 0 {
				return nil
			}
			response := args[0]
			status := response.Get("status").Int()

			response.Call("text").Call("then", app.FuncOf(func(this app.Value, args []app.Value) interface{} {
				if len(args) == 0 {
					return nil
				}
				text := args[0].String()
				ctx.Dispatch(func(ctx app.Context) {
					if status >= 200 && status < 300 {
						s.status = "Document loaded"
						s.imageVersion++
						s.refreshState(ctx)
					} else {
						s.error = apiErrorMessage(text)
					}
				})
				return nil
			}))
			return nil
		})).Call("catch", app.FuncOf(func(this app.Value, args []app.Value) interface{} {
			ctx.Dispatch(func(ctx app.Context) {
				s.error = "Network error: Could not connect to server"
			})
			return nil
		}))
	})
}

func (s *SnipPage) onPreviousPage(ctx app.Context, e app.Event) {
	s.putState(ctx, s.tool.Page-1, s.tool.Scale)
}

func (s *SnipPage) onNextPage(ctx app.Context, e app.Event) {
	s.putState(ctx, s.tool.Page+1, s.tool.Scale)
}

func (s *SnipPage) onZoomIn(ctx app.Context, e app.Event) {
	s.putState(ctx, s.tool.Page, s.tool.Scale+0.25)
}

func (s *SnipPage) onZoomOut(ctx app.Context, e app.Event) {
	s.putState(ctx, s.tool.Page, s.tool.Scale-0.25)
}

func (s *SnipPage) onRotate(ctx app.Context, e app.Event) {
	s.hasSelection = false
	s.fetchJSON(ctx, "POST", "/api/rotate", "", func(status int, body string) {
		s.applyState(body)
		s.imageVersion++
	})
}

// putState navigates or zooms; the backend clamps and clears the selection
func (s *SnipPage) putState(ctx app.Context, page int, scale float64) {
	s.hasSelection = false
	body := fmt.Sprintf(`{"page":%d,"scale":%f}`, page, scale)
	s.fetchJSON(ctx, "PUT", "/api/state", body, func(status int, responseBody string) {
		s.applyState(responseBody)
		s.imageVersion++
	})
}

// refreshState pulls the backend's view of the tool
func (s *SnipPage) refreshState(ctx app.Context) {
	s.fetchJSON(ctx, "GET", "/api/state", "", func(status int, body string) {
		s.applyState(body)
	})
}

func (s *SnipPage) applyState(body string) {
	var state ToolState
	if err := json.Unmarshal([]byte(body), &state); err != nil {
		return
	}
	s.tool = state
	if state.HasError {
		s.error = state.Error
	}
}

// onSnip downloads the captured region
func (s *SnipPage) onSnip(ctx app.Context, e app.Event) {
	ctx.Async(func() {
		res := app.Window().Call("fetch", BuildAPIURL("/api/snip"), map[string]interface{}{
			"method": "POST",
		})
		res.Call("then", app.FuncOf(func(this app.Value, args []app.Value) interface{} {
			if len(args) == 0 {
				return nil
			}
			response := args[0]
			if response.Get("status").Int() != 200 {
				ctx.Dispatch(func(ctx app.Context) {
					s.error = "Snip failed: no selection"
				})
				return nil
			}

			response.Call("blob").Call("then", app.FuncOf(func(this app.Value, args []app.Value) interface{} {
				if len(args) == 0 {
					return nil
				}
				blob := args[0]
				url := app.Window().Get("URL").Call("createObjectURL", blob)
				anchor := app.Window().Get("document").Call("createElement", "a")
				anchor.Set("href", url)
				anchor.Set("download", "")
				anchor.Call("click")
				app.Window().Get("URL").Call("revokeObjectURL", url)
				ctx.Dispatch(func(ctx app.Context) {
					s.status = "Snip downloaded"
				})
				return nil
			}))
			return nil
		}))
	})
}

// fetchJSON runs a small JSON request against the backend and hands the
// response text back on the UI goroutine
func (s *SnipPage) fetchJSON(ctx app.Context, method, path, body string, then func(status int, body string)) {
	options := map[string]interface{}{
		"method": method,
	}
	if body != "" {
		options["headers"] = map[string]interface{}{"Content-Type": "application/json"}
		options["body"] = body
	}

	ctx.Async(func() {
		res := app.Window().Call("fetch", BuildAPIURL(path), options)
		res.Call("then", app.FuncOf(func(this app.Value, args []app.Value) interface{} {
			if len(args) == 0 {
				return nil
			}
			response := args[0]
			status := response.Get("status").Int()
			response.Call("text").Call("then", app.FuncOf(func(this app.Value, args []app.Value) interface{} {
				if len(args) == 0 {
					return nil
				}
				text := args[0].String()
				ctx.Dispatch(func(ctx app.Context) {
					then(status, text)
				})
				return nil
			}))
			return nil
		})).Call("catch", app.FuncOf(func(this app.Value, args []app.Value) interface{} {
			ctx.Dispatch(func(ctx app.Context) {
				s.error = "Network error: Could not connect to server"
			})
			return nil
		}))
	})
}

// apiErrorMessage extracts the message field from a backend error body
func apiErrorMessage(body string) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil || payload.Message == "" {
		return "The document could not be loaded."
	}
	return payload.Message
}
