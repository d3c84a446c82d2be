// Package policy inspects API Management policy documents for references to
// other configuration entities.
package policy

import (
	"regexp"
	"strings"

	"github.com/beevik/etree"
)

// namedValuePattern matches "{{name}}" placeholders. Named value names cannot
// contain braces.
var namedValuePattern = regexp.MustCompile(`\{\{\s*([^{}\s]+)\s*\}\}`)

// attribute names that point at other entities by id
const (
	backendIDAttr = "backend-id"
	loggerIDAttr  = "logger-id"
)

// References lists the entity keys a policy document mentions, in document order
// and without duplicates.
type References struct {
	NamedValues []string // named value display names
	Backends    []string // backend ids
	Loggers     []string // logger ids
}

// Empty reports whether the document references nothing.
func (r References) Empty() bool {
	return len(r.NamedValues) == 0 && len(r.Backends) == 0 && len(r.Loggers) == 0
}

// Inspect parses a policy document and collects its references. Documents that
// are not well-formed XML (policy expressions occasionally are not) are scanned
// as plain text instead, so a reference is never silently missed.
func Inspect(document string) References {
	var refs References
	if strings.TrimSpace(document) == "" {
		return refs
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromString(document); err != nil || doc.Root() == nil {
		return inspectText(document)
	}

	walk(doc.Root(), func(el *etree.Element) {
		for _, attr := range el.Attr {
			switch attr.Key {
			case backendIDAttr:
				refs.Backends = appendUnique(refs.Backends, strings.TrimSpace(attr.Value))
			case loggerIDAttr:
				refs.Loggers = appendUnique(refs.Loggers, strings.TrimSpace(attr.Value))
			}
			refs.NamedValues = appendNamedValues(refs.NamedValues, attr.Value)
		}
		for _, tok := range el.Child {
			switch t := tok.(type) {
			case *etree.CharData:
				refs.NamedValues = appendNamedValues(refs.NamedValues, t.Data)
			}
		}
	})
	return refs
}

// NamedValues returns the named value names used in any string.
func NamedValues(s string) []string {
	return appendNamedValues(nil, s)
}

func walk(el *etree.Element, fn func(*etree.Element)) {
	fn(el)
	for _, child := range el.ChildElements() {
		walk(child, fn)
	}
}

var attrPattern = regexp.MustCompile(`(backend-id|logger-id)\s*=\s*"([^"]*)"`)

func inspectText(document string) References {
	var refs References
	for _, m := range attrPattern.FindAllStringSubmatch(document, -1) {
		switch m[1] {
		case backendIDAttr:
			refs.Backends = appendUnique(refs.Backends, strings.TrimSpace(m[2]))
		case loggerIDAttr:
			refs.Loggers = appendUnique(refs.Loggers, strings.TrimSpace(m[2]))
		}
	}
	refs.NamedValues = appendNamedValues(nil, document)
	return refs
}

func appendNamedValues(dst []string, s string) []string {
	for _, m := range namedValuePattern.FindAllStringSubmatch(s, -1) {
		dst = appendUnique(dst, m[1])
	}
	return dst
}

func appendUnique(dst []string, v string) []string {
	if v == "" || strings.Contains(v, "{{") {
		return dst
	}
	for _, x := range dst {
		if x == v {
			return dst
		}
	}
	return append(dst, v)
}
