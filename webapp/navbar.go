package webapp

import (
	"github.com/maxence-charriere/go-app/v10/pkg/app"
)

// NavBar is the top navigation bar
type NavBar struct {
	app.Compo
}

// Render renders the navigation bar
func (n *NavBar) Render() app.UI {
	return app.Nav().
		Class("navbar").
		Body(
			app.Div().Class("navbar-brand").Body(
				app.A().Href("/").Body(
					app.Text("pdfsnip"),
				),
			),
			app.Div().Class("navbar-links").Body(
				app.A().Href("/").Class("nav-link").Text("Snip"),
				app.A().Href("/about").Class("nav-link").Text("About"),
			),
		)
}
