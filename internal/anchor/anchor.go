// Package anchor computes the addressable link targets embedded in
// exported documents. Classic anchors are zero-padded counters scoped to
// one window; custom anchors are template expansions carrying a run-global
// counter. The two counter scopes are deliberately independent.
package anchor

import (
	"fmt"
	"strconv"
	"strings"
)

type Style int

const (
	StyleClassic Style = iota
	StyleCustom
	StyleBoth
)

func ParseStyle(s string) (Style, error) {
	switch s {
	case "", "classic":
		return StyleClassic, nil
	case "custom":
		return StyleCustom, nil
	case "both":
		return StyleBoth, nil
	default:
		return 0, fmt.Errorf("unknown anchor style: %q", s)
	}
}

func (s Style) String() string {
	switch s {
	case StyleCustom:
		return "custom"
	case StyleBoth:
		return "both"
	default:
		return "classic"
	}
}

// DefaultTemplate matches the documented custom scheme: one expansion per
// message, globally unique through the trailing {g}.
const DefaultTemplate = "{conv}-{window}-{msg}-{g}"

// Scope identifies the message an anchor points at.
type Scope struct {
	Conv   string
	Window string
	Day    string
	Msg    int // 1-based position within the window
}

// Pair holds the anchor strings for one message. Unused styles leave the
// corresponding field empty. Both values carry the leading "^" sigil.
type Pair struct {
	Classic string
	Custom  string
}

type TemplateError struct {
	Template string
	Var      string
}

func (e *TemplateError) Error() string {
	if e.Var == "" {
		return fmt.Sprintf("anchor template %q: unterminated variable", e.Template)
	}
	return fmt.Sprintf("anchor template %q: unknown variable {%s}", e.Template, e.Var)
}

type segment struct {
	literal string
	varName string
}

// Generator assigns anchors for one export run. Classic counters reset per
// window; the global counter is shared across the whole run and never
// reset. Generators must not be shared between runs.
type Generator struct {
	style    Style
	template []segment
	global   int
	classic  map[string]int
}

func NewGenerator(style Style, template string) (*Generator, error) {
	if template == "" {
		template = DefaultTemplate
	}
	segs, err := compile(template)
	if err != nil {
		return nil, err
	}
	return &Generator{
		style:    style,
		template: segs,
		classic:  make(map[string]int),
	}, nil
}

// Next returns the anchors for the next message in the given scope.
// Classic counters are monotonic with message order within their window.
func (g *Generator) Next(s Scope) Pair {
	var p Pair
	if g.style == StyleClassic || g.style == StyleBoth {
		key := s.Conv + "/" + s.Window
		g.classic[key]++
		p.Classic = fmt.Sprintf("^msg-%06d", g.classic[key])
	}
	if g.style == StyleCustom || g.style == StyleBoth {
		g.global++
		p.Custom = "^" + g.expand(s, g.global)
	}
	return p
}

func (g *Generator) expand(s Scope, global int) string {
	var b strings.Builder
	for _, seg := range g.template {
		if seg.varName == "" {
			b.WriteString(seg.literal)
			continue
		}
		switch seg.varName {
		case "scope":
			b.WriteString(s.Conv + "/" + s.Window)
		case "conv":
			b.WriteString(s.Conv)
		case "window":
			b.WriteString(s.Window)
		case "day":
			b.WriteString(s.Day)
		case "msg":
			b.WriteString(strconv.Itoa(s.Msg))
		case "g":
			b.WriteString(strconv.Itoa(global))
		}
	}
	return b.String()
}

var templateVars = map[string]bool{
	"scope": true, "conv": true, "window": true, "day": true, "msg": true, "g": true,
}

func compile(template string) ([]segment, error) {
	var segs []segment
	rest := template
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			if rest != "" {
				segs = append(segs, segment{literal: rest})
			}
			return segs, nil
		}
		if open > 0 {
			segs = append(segs, segment{literal: rest[:open]})
		}
		close := strings.IndexByte(rest[open:], '}')
		if close < 0 {
			return nil, &TemplateError{Template: template}
		}
		name := rest[open+1 : open+close]
		if !templateVars[name] {
			return nil, &TemplateError{Template: template, Var: name}
		}
		segs = append(segs, segment{varName: name})
		rest = rest[open+close+1:]
	}
}
