// Package grouper aggregates flat creator-level records into complete
// musical works: one work per ISWC, with all creators combined.
package grouper

import (
	"github.com/allfeat/massload/engine/core"
)

// Group merges flat records into one work per ISWC. Records without an
// iswc value are skipped. The first record seen for a key seeds the
// work's scalar fields; later records only contribute creators. Works
// come back in first-seen key order.
func Group(records []core.Record) []core.Record {
	builders := make(map[string]*workBuilder)
	var order []string

	for _, record := range records {
		iswc, ok := record["iswc"].(string)
		if !ok || iswc == "" {
			continue
		}
		builder, seen := builders[iswc]
		if !seen {
			builder = newWorkBuilder(record)
			builders[iswc] = builder
			order = append(order, iswc)
		}
		builder.addCreator(record)
	}

	works := make([]core.Record, 0, len(order))
	for _, iswc := range order {
		works = append(works, builders[iswc].build())
	}
	return works
}

// workBuilder accumulates creators for one work while grouping. Scalar
// fields are first-wins.
type workBuilder struct {
	iswc           string
	title          string
	creationYear   *int64
	instrumental   *bool
	language       *string
	bpm            *int64
	key            *string
	workType       *string
	opus           *string
	catalogNumber  *string
	numberOfVoices *int64
	creators       []core.Record
}

func newWorkBuilder(record core.Record) *workBuilder {
	title, _ := record["title"].(string)
	iswc, _ := record["iswc"].(string)
	return &workBuilder{
		iswc:           iswc,
		title:          title,
		creationYear:   asInt(record["creationYear"]),
		instrumental:   asBool(record["instrumental"]),
		language:       asStr(record["language"]),
		bpm:            asInt(record["bpm"]),
		key:            asStr(record["key"]),
		workType:       asStr(record["workType"]),
		opus:           asStr(record["opus"]),
		catalogNumber:  asStr(record["catalogNumber"]),
		numberOfVoices: asInt(record["numberOfVoices"]),
		creators:       []core.Record{},
	}
}

// addCreator appends a creator entry when the record carries a role plus
// at least one identifier. The id follows the tagged party-identifier
// format: Ipi, Isni, or Both.
func (b *workBuilder) addCreator(record core.Record) {
	role, hasRole := record["creatorRole"].(string)
	if !hasRole || role == "" {
		return
	}
	ipi := asInt(record["creatorIpi"])
	isni := asStr(record["creatorIsni"])

	var id core.Record
	switch {
	case ipi != nil && isni != nil:
		id = core.Record{"type": "Both", "value": core.Record{"ipi": *ipi, "isni": *isni}}
	case ipi != nil:
		id = core.Record{"type": "Ipi", "value": *ipi}
	case isni != nil:
		id = core.Record{"type": "Isni", "value": *isni}
	default:
		return
	}
	b.creators = append(b.creators, core.Record{"id": id, "role": role})
}

// build renders the work. Optional fields are omitted when absent rather
// than emitted as null; participants is always present, empty for now
// (it holds performers, not creators).
func (b *workBuilder) build() core.Record {
	work := core.Record{
		"iswc":         b.iswc,
		"title":        b.title,
		"creators":     b.creators,
		"participants": []core.Record{},
	}
	if b.creationYear != nil {
		work["creationYear"] = *b.creationYear
	}
	if b.instrumental != nil {
		work["instrumental"] = *b.instrumental
	}
	if b.language != nil {
		work["language"] = *b.language
	}
	if b.bpm != nil {
		work["bpm"] = *b.bpm
	}
	if b.key != nil {
		work["key"] = *b.key
	}
	if b.workType != nil {
		work["workType"] = core.Record{"type": *b.workType}
	}
	if b.opus != nil || b.catalogNumber != nil || b.numberOfVoices != nil {
		classical := core.Record{}
		if b.opus != nil {
			classical["opus"] = *b.opus
		}
		if b.catalogNumber != nil {
			classical["catalogNumber"] = *b.catalogNumber
		}
		if b.numberOfVoices != nil {
			classical["numberOfVoices"] = *b.numberOfVoices
		}
		work["classicalInfo"] = classical
	}
	return work
}

func asInt(v any) *int64 {
	switch n := v.(type) {
	case int64:
		return &n
	case int:
		i := int64(n)
		return &i
	case float64:
		i := int64(n)
		return &i
	default:
		return nil
	}
}

func asStr(v any) *string {
	if s, ok := v.(string); ok {
		return &s
	}
	return nil
}

func asBool(v any) *bool {
	if b, ok := v.(bool); ok {
		return &b
	}
	return nil
}
