package webapp

import (
	"encoding/json"
	"fmt"

	"github.com/maxence-charriere/go-app/v10/pkg/app"
)

// AboutInfo represents the about information from the API
type AboutInfo struct {
	Version        string  `json:"version"`
	Renderer       string  `json:"renderer"`
	MinScale       float64 `json:"minScale"`
	MaxScale       float64 `json:"maxScale"`
	MaxUploadBytes int64   `json:"maxUploadBytes"`
	CapturePath    string  `json:"capturePath"`
}

// AboutPage displays information about the application
type AboutPage struct {
	app.Compo
	aboutInfo AboutInfo
	loading   bool
	error     string
}

// OnMount is called when the component is mounted
func (a *AboutPage) OnMount(ctx app.Context) {
	a.loading = true
	a.fetchAboutInfo(ctx)
}

// fetchAboutInfo fetches the about information from the API
func (a *AboutPage) fetchAboutInfo(ctx app.Context) {
	ctx.Async(func() {
		res := app.Window().Call("fetch", BuildAPIURL("/api/about"))

		res.Call("then", app.FuncOf(func(this app.Value, args []app.Value) any {
			if len(args) == 0 {
				return nil
			}
			response := args[0]

			response.Call("json").Call("then", app.FuncOf(func(this app.Value, args []app.Value) any {
				if len(args) == 0 {
					return nil
				}

				jsonData := args[0]
				jsonStr := app.Window().Get("JSON").Call("stringify", jsonData).String()

				ctx.Dispatch(func(ctx app.Context) {
					if err := json.Unmarshal([]byte(jsonStr), &a.aboutInfo); err != nil {
						a.error = fmt.Sprintf("Failed to parse response: %v", err)
					}
					a.loading = false
				})

				return nil
			}))

			return nil
		})).Call("catch", app.FuncOf(func(this app.Value, args []app.Value) any {
			ctx.Dispatch(func(ctx app.Context) {
				a.error = "Network error"
				a.loading = false
			})
			return nil
		}))
	})
}

// Render renders the about page
func (a *AboutPage) Render() app.UI {
	if a.loading {
		return app.Div().Class("about-page").Body(
			app.P().Text("Loading..."),
		)
	}
	if a.error != "" {
		return app.Div().Class("about-page").Body(
			app.Div().Class("error").Text(a.error),
		)
	}

	return app.Div().
		Class("about-page").
		Body(
			app.H2().Text("About pdfsnip"),
			app.P().Text("pdfsnip renders PDF pages in the browser and lets you "+
				"snip rectangular regions of a page as PNG images."),
			app.Table().Class("about-table").Body(
				a.infoRow("Version", a.aboutInfo.Version),
				a.infoRow("Renderer", a.aboutInfo.Renderer),
				a.infoRow("Zoom range", fmt.Sprintf("%.0f%% - %.0f%%",
					a.aboutInfo.MinScale*100, a.aboutInfo.MaxScale*100)),
				a.infoRow("Upload limit", fmt.Sprintf("%d MB",
					a.aboutInfo.MaxUploadBytes/(1024*1024))),
				a.infoRow("Capture folder", a.aboutInfo.CapturePath),
			),
		)
}

func (a *AboutPage) infoRow(label, value string) app.UI {
	return app.Tr().Body(
		app.Th().Text(label),
		app.Td().Text(value),
	)
}
