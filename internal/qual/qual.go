// Package qual loads pilot qualification records from the QUAL.xml feed.
//
// The feed is a namespaced tree of employee entries. Nesting below each
// employee varies between exports, so the loader walks the token stream and
// picks up the first occurrence of each field at any depth instead of
// binding a fixed document structure.
package qual

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"crewpair/internal/roster"
)

// Namespace of the qualification feed schema.
const Namespace = "http://www.ad-opt.com/2009/Altitude/data"

// Load parses a qualification feed into pilot records. Duplicate employee
// entries keep the first occurrence so repeated exports stay deterministic.
func Load(r io.Reader) ([]roster.Pilot, error) {
	dec := xml.NewDecoder(r)

	var pilots []roster.Pilot
	seen := make(map[string]struct{})

	var cur *roster.Pilot
	var text *strings.Builder
	var textField *string

	flushText := func() {
		if text != nil && textField != nil && *textField == "" {
			*textField = strings.TrimSpace(text.String())
		}
		text = nil
		textField = nil
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse qualification feed: %w", err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			flushText()
			switch el.Name.Local {
			case "employee":
				cur = &roster.Pilot{}
			case "employee-id":
				if cur != nil {
					text = &strings.Builder{}
					textField = &cur.EmployeeID
				}
			case "primary-seat-qual":
				if cur != nil {
					text = &strings.Builder{}
					textField = &cur.Seat
				}
			case "name":
				if cur != nil && cur.Name == "" {
					text = &strings.Builder{}
					textField = &cur.Name
				}
			case "base":
				if cur != nil && cur.Base == "" {
					cur.Base = refAttr(el)
				}
			case "aircraft":
				if cur != nil && cur.Aircraft == "" {
					cur.Aircraft = refAttr(el)
				}
			}

		case xml.CharData:
			if text != nil {
				text.Write(el)
			}

		case xml.EndElement:
			flushText()
			if el.Name.Local == "employee" && cur != nil {
				id := cur.EmployeeID
				if id != "" {
					if _, dup := seen[id]; !dup {
						seen[id] = struct{}{}
						pilots = append(pilots, *cur)
					}
				}
				cur = nil
			}
		}
	}

	return pilots, nil
}

// refAttr returns the element's ref attribute, the convention the feed uses
// for base and aircraft references.
func refAttr(el xml.StartElement) string {
	for _, a := range el.Attr {
		if a.Name.Local == "ref" {
			return strings.TrimSpace(a.Value)
		}
	}
	return ""
}
