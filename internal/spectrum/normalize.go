package spectrum

import (
	"strings"

	"github.com/beevik/etree"
	"github.com/sirupsen/logrus"
)

// rowTag is the canonical repeating row element tag in vendor responses.
const rowTag = "response"

// Normalize unwraps a vendor response payload into flat rows. It accepts the
// shapes the vendor has been observed to return: a parsed XML element, a raw
// XML string, a map wrapped under a "value" or "_value_1" sentinel key, or a
// list of any of those. The second result reports whether a trailing
// error/warning sentinel row was present, which signals a possibly truncated
// result set.
//
// Unknown or unparseable shapes yield an empty row list and a logged warning;
// vendor responses are untrusted and a bad shape must not abort a sync.
func Normalize(payload any, log *logrus.Logger) ([]Row, bool) {
	rows := normalizeValue(payload, log)
	return stripSentinel(rows, log)
}

func normalizeValue(payload any, log *logrus.Logger) []Row {
	switch v := payload.(type) {
	case nil:
		return nil

	case *etree.Element:
		return rowsFromElement(v)

	case *etree.Document:
		if v.Root() == nil {
			return nil
		}
		return rowsFromElement(v.Root())

	case string:
		doc := etree.NewDocument()
		if err := doc.ReadFromString(v); err != nil || doc.Root() == nil {
			log.Warnf("spectrum normalize: response string is not xml: %v", err)
			return nil
		}
		return rowsFromElement(doc.Root())

	case map[string]any:
		// Wrapped mapping with a sentinel key; unwrap and recurse.
		for _, key := range []string{"value", "_value_1"} {
			if inner, ok := v[key]; ok {
				return normalizeValue(inner, log)
			}
		}
		log.Warnf("spectrum normalize: mapping without value wrapper: %d key(s)", len(v))
		return nil

	case []any:
		var rows []Row
		for _, item := range v {
			rows = append(rows, normalizeValue(item, log)...)
		}
		return rows

	default:
		log.Warnf("spectrum normalize: unrecognized response shape %T", payload)
		return nil
	}
}

// rowsFromElement locates the repeating row elements beneath el and converts
// each to a Row. Canonical rows are tagged "response"; when none are present
// the most common repeating child tag is used instead, which covers vendor
// schema drift.
func rowsFromElement(el *etree.Element) []Row {
	rowEls := el.FindElements(".//" + rowTag)
	if el.Tag == rowTag {
		rowEls = append([]*etree.Element{el}, rowEls...)
	}
	if len(rowEls) == 0 {
		rowEls = mostCommonChildren(el)
	}

	rows := make([]Row, 0, len(rowEls))
	for _, rowEl := range rowEls {
		row := make(Row)
		empty := true
		for _, field := range rowEl.ChildElements() {
			value := strings.TrimSpace(elementText(field))
			row[field.Tag] = value
			if value != "" {
				empty = false
			}
		}
		// Rows with no fields at all, or all fields blank, carry no data.
		if len(row) == 0 || empty {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

// mostCommonChildren walks the tree under el and returns the children of the
// parent whose repeated child tag occurs most often. At least two occurrences
// are required to count as a repeating row set.
func mostCommonChildren(el *etree.Element) []*etree.Element {
	var best []*etree.Element

	var walk func(parent *etree.Element)
	walk = func(parent *etree.Element) {
		counts := make(map[string][]*etree.Element)
		for _, child := range parent.ChildElements() {
			counts[child.Tag] = append(counts[child.Tag], child)
			walk(child)
		}
		for _, group := range counts {
			if len(group) >= 2 && len(group) > len(best) {
				best = group
			}
		}
	}
	walk(el)

	return best
}

// elementText extracts an element's text, unwrapping self-nested single-child
// elements with the same tag. The vendor occasionally double-wraps a value as
// <Job_Number><Job_Number>123</Job_Number></Job_Number>.
func elementText(el *etree.Element) string {
	for {
		children := el.ChildElements()
		if len(children) == 1 && children[0].Tag == el.Tag {
			el = children[0]
			continue
		}
		return el.Text()
	}
}

// stripSentinel removes a trailing error/warning row. That row is a vendor
// signal that the result set may have hit the server-side cap; it is not data.
func stripSentinel(rows []Row, log *logrus.Logger) ([]Row, bool) {
	if len(rows) == 0 {
		return rows, false
	}
	last := rows[len(rows)-1]
	if code := last[FieldErrorCode]; code != "" {
		log.WithFields(logrus.Fields{
			"error_code":        code,
			"error_description": last[FieldErrorDesc],
		}).Warn("spectrum normalize: trailing warning row, result may be truncated")
		return rows[:len(rows)-1], true
	}
	return rows, false
}
