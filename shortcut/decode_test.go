package shortcut

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/text/language"
)

func TestDecodeRecordsWrapped(t *testing.T) {
	records, err := decodeRecords([]byte(`{"success":true,"data":[{"id":"a"},{"id":"b"}]}`))
	if err != nil {
		t.Fatalf("decodeRecords: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
}

func TestDecodeRecordsBareArray(t *testing.T) {
	records, err := decodeRecords([]byte(`  [{"id":"a"}]`))
	if err != nil {
		t.Fatalf("decodeRecords: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
}

func TestDecodeRecordsRejectsOtherShapes(t *testing.T) {
	bodies := map[string]string{
		"empty":           ``,
		"not json":        `<html>`,
		"success false":   `{"success":false,"data":[]}`,
		"missing data":    `{"success":true}`,
		"data not array":  `{"success":true,"data":{"id":"a"}}`,
		"string":          `"hello"`,
		"number":          `42`,
		"broken array":    `[{"id":"a"`,
		"success string":  `{"success":"yes","data":[]}`,
		"unrelated field": `{"items":[]}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			_, err := decodeRecords([]byte(body))
			if !errors.Is(err, ErrFormat) {
				t.Fatalf("expected ErrFormat, got %v", err)
			}
		})
	}
}

func TestCleanRecordsDropsInvalidAndTrims(t *testing.T) {
	records, err := decodeRecords([]byte(`[
		{"id":" a ","name":" Hi ","prompt":" Hi there ","group":" g ","order":2},
		{"id":"b","name":"B","prompt":"p","group":"g"},
		{"id":3,"name":"bad id","prompt":"p","group":"g"},
		{"id":"c","name":"no prompt","group":"g"},
		{"id":"d","name":"D","prompt":"p","group":"g","order":"7"},
		null,
		"text"
	]`))
	if err != nil {
		t.Fatalf("decodeRecords: %v", err)
	}

	got := cleanRecords(records)
	want := []Shortcut{
		{ID: "b", Name: "B", Prompt: "p", Group: "g", Order: 0},
		{ID: "d", Name: "D", Prompt: "p", Group: "g", Order: 0},
		{ID: "a", Name: "Hi", Prompt: "Hi there", Group: "g", Order: 2},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("cleanRecords mismatch (-want +got):\n%s", diff)
	}
}

func TestCleanRecordsKeepsRecordsWithOutOfRangeNumbers(t *testing.T) {
	records, err := decodeRecords([]byte(`[
		{"id":"a","name":"A","prompt":"p","group":"g","order":1e400},
		{"id":"b","name":"B","prompt":"p","group":"g","order":1,"meta":{"hits":1e999}},
		{"id":"c","name":"C","prompt":"p","group":"g","order":2},
		{"id":null,"name":"D","prompt":"p","group":"g"}
	]`))
	if err != nil {
		t.Fatalf("decodeRecords: %v", err)
	}

	got := cleanRecords(records)
	want := []Shortcut{
		{ID: "a", Name: "A", Prompt: "p", Group: "g", Order: 0},
		{ID: "b", Name: "B", Prompt: "p", Group: "g", Order: 1},
		{ID: "c", Name: "C", Prompt: "p", Group: "g", Order: 2},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("cleanRecords mismatch (-want +got):\n%s", diff)
	}
}

func TestCleanRecordsStableOrder(t *testing.T) {
	records, _ := decodeRecords([]byte(`[
		{"id":"1","name":"n","prompt":"p","group":"g","order":1},
		{"id":"2","name":"n","prompt":"p","group":"g","order":0},
		{"id":"3","name":"n","prompt":"p","group":"g","order":1},
		{"id":"4","name":"n","prompt":"p","group":"g","order":-1.5},
		{"id":"5","name":"n","prompt":"p","group":"g","order":0}
	]`))

	var ids []string
	for _, s := range cleanRecords(records) {
		ids = append(ids, s.ID)
	}
	if diff := cmp.Diff([]string{"4", "2", "5", "1", "3"}, ids); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestGroupShortcutsQuickReplyFirst(t *testing.T) {
	shortcuts := []Shortcut{
		{ID: "1", Group: "zeta"},
		{ID: "2", Group: "alpha"},
		{ID: "3", Group: QuickReplyGroup},
		{ID: "4", Group: "Beta"},
		{ID: "5", Group: "alpha"},
	}

	groups := groupShortcuts(shortcuts, language.English)

	var names []string
	for _, g := range groups {
		names = append(names, g.Name)
	}
	if diff := cmp.Diff([]string{QuickReplyGroup, "alpha", "Beta", "zeta"}, names); diff != "" {
		t.Fatalf("group order mismatch (-want +got):\n%s", diff)
	}
	if len(groups[1].Shortcuts) != 2 || groups[1].Shortcuts[0].ID != "2" || groups[1].Shortcuts[1].ID != "5" {
		t.Fatalf("alpha group should keep input order, got %+v", groups[1].Shortcuts)
	}
}

func TestGroupShortcutsWithoutQuickReply(t *testing.T) {
	groups := groupShortcuts([]Shortcut{{ID: "1", Group: "b"}, {ID: "2", Group: "a"}}, language.English)
	if len(groups) != 2 || groups[0].Name != "a" || groups[1].Name != "b" {
		t.Fatalf("unexpected groups: %+v", groups)
	}
}

func TestGroupShortcutsEmpty(t *testing.T) {
	if groups := groupShortcuts(nil, language.English); len(groups) != 0 {
		t.Fatalf("expected no groups, got %+v", groups)
	}
}
