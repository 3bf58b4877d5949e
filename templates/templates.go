package templates

import (
	g "github.com/maragudk/gomponents"
	. "github.com/maragudk/gomponents/html"
)

type LayoutProps struct {
	Title    string
	SiteName string
}

// Layout is the shell for the few pages this API serves directly. Everything
// else is rendered by the SPA; these pages are entered from email links.
func Layout(props LayoutProps, children ...g.Node) g.Node {
	return Doctype(
		HTML(
			Lang("en"),
			Head(
				Meta(Charset("utf-8")),
				Meta(Name("viewport"), Content("width=device-width, initial-scale=1")),
				TitleEl(g.Text(props.Title)),
				StyleEl(g.Raw(`
					body { font-family: system-ui, sans-serif; max-width: 36rem; margin: 4rem auto; padding: 0 1rem; color: #222; }
					h1 { font-size: 1.4rem; }
					input[type=email] { padding: .5rem; width: 100%; max-width: 20rem; }
					button { padding: .5rem 1rem; margin-top: .75rem; cursor: pointer; }
					.muted { color: #666; font-size: .9rem; }
				`)),
			),
			Body(
				Main(
					H1(g.Text(props.SiteName)),
					g.Group(children),
				),
				Footer(
					P(Class("muted"), g.Textf("%s newsletter", props.SiteName)),
				),
			),
		),
	)
}

// UnsubscribeForm asks for the address to remove. Email clients strip list
// links down to plain GETs, so the confirmation happens here.
func UnsubscribeForm(siteName, email string) g.Node {
	return Layout(LayoutProps{Title: "Unsubscribe", SiteName: siteName},
		P(g.Text("Confirm the email address you want to remove from the newsletter.")),
		Form(Method("post"), Action("/api/newsletter/unsubscribe"),
			Input(Type("email"), Name("email"), Required(), Placeholder("you@example.com"), Value(email)),
			Br(),
			Button(Type("submit"), g.Text("Unsubscribe")),
		),
	)
}

// UnsubscribeDone confirms removal. Shown for unknown addresses too, so the
// form can't be used to probe who is subscribed.
func UnsubscribeDone(siteName, email string) g.Node {
	return Layout(LayoutProps{Title: "Unsubscribed", SiteName: siteName},
		P(g.Textf("%s will no longer receive the newsletter.", email)),
		P(Class("muted"), g.Text("Subscribed by mistake? You can sign up again on the site at any time.")),
	)
}
