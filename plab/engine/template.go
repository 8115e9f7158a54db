package engine

import (
	"strings"
	"time"

	ports "personalab/plab/engine/ports"
	"personalab/plab/persona"
)

// DefaultTemplateID identifies the built-in universal template seeded into
// every store at initialization.
const DefaultTemplateID = "default"

// DefaultTemplate is the always-available fallback. It is an explicit seed
// value injected at store initialization, not a magic literal inside the
// selection logic.
func DefaultTemplate() ports.Template {
	return ports.Template{
		ID: DefaultTemplateID,
		Pattern: "You are {name}, a {occupation}.\n" +
			"Background: {background}\n" +
			"Daily Routine: {routine}\n" +
			"Personality: {personality}\n" +
			"Skills: {skills}\n\n" +
			"Previous message: {user_message}\n" +
			"Respond naturally as {name}:",
		CreatedAt: time.Unix(0, 0).UTC(),
	}
}

// Render substitutes persona attributes, the user message, and the context
// key into the template's named placeholders. An unknown placeholder yields
// a *RenderError.
func Render(tpl ports.Template, p *persona.Persona, userMessage, contextKey string) (string, error) {
	values := p.Attributes()
	values["user_message"] = userMessage
	values["context"] = contextKey

	var b strings.Builder
	b.Grow(len(tpl.Pattern))

	rest := tpl.Pattern
	for {
		open := strings.IndexByte(rest, '{')
		if open == -1 {
			b.WriteString(rest)
			return b.String(), nil
		}
		length := strings.IndexByte(rest[open:], '}')
		if length == -1 {
			b.WriteString(rest)
			return b.String(), nil
		}

		b.WriteString(rest[:open])
		name := rest[open+1 : open+length]
		value, ok := values[name]
		if !ok {
			return "", &RenderError{TemplateID: tpl.ID, Placeholder: name}
		}
		b.WriteString(value)
		rest = rest[open+length+1:]
	}
}
