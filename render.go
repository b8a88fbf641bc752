package unlocknotify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
)

// Renderer turns a task payload into a message. Rendering must not have side effects.
type Renderer interface {
	Render(p Payload) (Message, error)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(p Payload) (Message, error)

// Render implements Renderer.
func (fn RendererFunc) Render(p Payload) (Message, error) {
	return fn(p)
}

// DefaultSiteURL is linked from messages when no site URL is configured.
const DefaultSiteURL = "http://localhost:3000"

type kindTemplates struct {
	subject *texttemplate.Template
	text    *texttemplate.Template
	html    *htmltemplate.Template
}

// TemplateRenderer renders the built-in message templates for every payload kind.
type TemplateRenderer struct {
	siteURL string
	kinds   map[Kind]kindTemplates
}

const (
	entitySubject = `Unlocked: {{.P.Name}}`
	entityText    = `The team {{.P.Name}} is now unlocked in the Time Capsule.

Predict now: {{.SiteURL}}
`
	entityHTML = `<p>The team <strong>{{.P.Name}}</strong> is now unlocked in the Time Capsule.</p><p><a href="{{.SiteURL}}">Predict Now</a></p>`

	regionSubject = `Unlocked: {{.P.Region}}`
	regionText    = `{{.P.UnlockedCount}} {{if eq .P.UnlockedCount 1}}team is{{else}}teams are{{end}} now unlocked in {{.P.Region}}.

Predict now: {{.SiteURL}}
`
	regionHTML = `<p>{{.P.UnlockedCount}} {{if eq .P.UnlockedCount 1}}team is{{else}}teams are{{end}} now unlocked in <strong>{{.P.Region}}</strong>.</p><p><a href="{{.SiteURL}}">Predict Now</a></p>`
)

// NewTemplateRenderer parses the built-in templates. An empty siteURL falls back to DefaultSiteURL.
func NewTemplateRenderer(siteURL string) (*TemplateRenderer, error) {
	siteURL = strings.TrimSpace(siteURL)
	if siteURL == "" {
		siteURL = DefaultSiteURL
	}

	entity, err := parseKind(KindEntityUnlocked, entitySubject, entityText, entityHTML)
	if err != nil {
		return nil, err
	}
	region, err := parseKind(KindRegionUnlocked, regionSubject, regionText, regionHTML)
	if err != nil {
		return nil, err
	}

	return &TemplateRenderer{
		siteURL: siteURL,
		kinds: map[Kind]kindTemplates{
			KindEntityUnlocked: entity,
			KindRegionUnlocked: region,
		},
	}, nil
}

func parseKind(kind Kind, subject, text, html string) (kindTemplates, error) {
	var (
		out kindTemplates
		err error
	)
	if out.subject, err = texttemplate.New(string(kind) + ".subject").Parse(subject); err != nil {
		return out, fmt.Errorf("parse %s subject: %w", kind, err)
	}
	if out.text, err = texttemplate.New(string(kind) + ".text").Parse(text); err != nil {
		return out, fmt.Errorf("parse %s text: %w", kind, err)
	}
	if out.html, err = htmltemplate.New(string(kind) + ".html").Parse(html); err != nil {
		return out, fmt.Errorf("parse %s html: %w", kind, err)
	}

	return out, nil
}

// Render implements Renderer.
func (r *TemplateRenderer) Render(p Payload) (Message, error) {
	if p == nil {
		return Message{}, ErrNilPayload
	}
	tpl, ok := r.kinds[p.Kind()]
	if !ok {
		return Message{}, fmt.Errorf("%w: %q", ErrInvalidKind, p.Kind())
	}

	data := struct {
		P       Payload
		SiteURL string
	}{P: p, SiteURL: r.siteURL}

	var subject, text, html bytes.Buffer
	if err := tpl.subject.Execute(&subject, data); err != nil {
		return Message{}, fmt.Errorf("render subject: %w", err)
	}
	if err := tpl.text.Execute(&text, data); err != nil {
		return Message{}, fmt.Errorf("render text: %w", err)
	}
	if err := tpl.html.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("render html: %w", err)
	}

	return Message{
		Subject: strings.TrimSpace(subject.String()),
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}
