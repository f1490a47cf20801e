package view

import (
	"testing"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const testPage = `<!DOCTYPE html>
<html><body>
<div id="shortcutsContainer" class="shortcuts">
  <div id="shortcutTabsContainer" class="shortcuts-tabs" role="tablist"></div>
  <div id="shortcutPanelsContainer" class="shortcuts-panels"></div>
</div>
<textarea id="combinedFeedbackText"></textarea>
</body></html>`

func mustParse(t *testing.T, page string) *Document {
	t.Helper()
	doc, err := ParseString(page)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	return doc
}

func TestParseSelector(t *testing.T) {
	valid := []string{
		"#shortcutsContainer",
		".shortcuts-tab",
		"button.shortcut-button",
		`.shortcut-button[data-shortcut-id="a \"b\""]`,
		"[data-group-index=2]",
		"[id]",
		"#shortcutsContainer .shortcuts-tab",
		"*",
	}
	for _, s := range valid {
		if _, err := parseSelector(s); err != nil {
			t.Errorf("parseSelector(%q): %v", s, err)
		}
	}

	invalid := []string{"", "#", ".", "[", "[x=", `[x="open]`, "a > b", "   "}
	for _, s := range invalid {
		if _, err := parseSelector(s); err == nil {
			t.Errorf("parseSelector(%q) should fail", s)
		}
	}
}

func TestQuery(t *testing.T) {
	doc := mustParse(t, `<div id="root"><p class="a b">one</p><p class="a" data-k="v w">two</p><span class="a">three</span></div>`)

	if el := doc.Query("#root"); el == nil || el.TagName() != "div" {
		t.Fatalf("expected #root div, got %v", el)
	}
	if got := len(doc.QueryAll(".a")); got != 3 {
		t.Fatalf("expected 3 .a elements, got %d", got)
	}
	if got := len(doc.QueryAll("p.a")); got != 2 {
		t.Fatalf("expected 2 p.a elements, got %d", got)
	}
	if el := doc.Query(`[data-k="v w"]`); el == nil || el.Text() != "two" {
		t.Fatalf("attribute selector failed: %v", el)
	}
	if el := doc.Query("#root span"); el == nil || el.Text() != "three" {
		t.Fatalf("descendant selector failed: %v", el)
	}
	if el := doc.Query("#missing"); el != nil {
		t.Fatalf("expected nil for missing id")
	}
	if el := doc.Query("[bad"); el != nil {
		t.Fatalf("expected nil for invalid selector")
	}
}

func TestClosestAndContains(t *testing.T) {
	doc := mustParse(t, `<div id="outer" class="box"><button class="tab"><span id="inner">x</span></button></div>`)
	inner := doc.Query("#inner")

	tab := inner.Closest(".tab")
	if tab == nil || tab.TagName() != "button" {
		t.Fatalf("Closest(.tab) = %v", tab)
	}
	if inner.Closest("#inner") == nil {
		t.Fatal("Closest should match the element itself")
	}
	if inner.Closest(".nope") != nil {
		t.Fatal("Closest should return nil when nothing matches")
	}
	outer := doc.Query("#outer")
	if !outer.Contains(inner) || inner.Contains(outer) {
		t.Fatal("Contains relationship is wrong")
	}
}

func TestDispatchBubbles(t *testing.T) {
	doc := mustParse(t, `<div id="a"><div id="b"><button id="c">go</button></div></div>`)

	var order []string
	doc.Query("#a").AddEventListener("click", func(ev *Event) {
		order = append(order, "a:"+ev.Target.ID()+":"+ev.CurrentTarget.ID())
	})
	doc.Query("#b").AddEventListener("click", func(ev *Event) {
		order = append(order, "b")
	})
	doc.Query("#b").AddEventListener("focus", func(ev *Event) {
		order = append(order, "wrong type")
	})

	doc.Click(doc.Query("#c"))
	if len(order) != 2 || order[0] != "b" || order[1] != "a:c:a" {
		t.Fatalf("unexpected bubbling order: %v", order)
	}
}

func TestStopPropagationAndRemoveListener(t *testing.T) {
	doc := mustParse(t, `<div id="a"><button id="c">go</button></div>`)

	outer := 0
	doc.Query("#a").AddEventListener("click", func(*Event) { outer++ })
	remove := doc.Query("#c").AddEventListener("click", func(ev *Event) { ev.StopPropagation() })

	doc.Click(doc.Query("#c"))
	if outer != 0 {
		t.Fatal("StopPropagation should keep the event from #a")
	}
	remove()
	doc.Click(doc.Query("#c"))
	if outer != 1 {
		t.Fatalf("expected outer listener to run after removal, got %d", outer)
	}
}

func TestSetInnerHTMLReplacesChildrenAndForgetsListeners(t *testing.T) {
	doc := mustParse(t, `<div id="box"><button id="old">old</button></div>`)
	box := doc.Query("#box")

	fired := false
	old := doc.Query("#old")
	old.AddEventListener("click", func(*Event) { fired = true })
	old.Focus()

	if err := box.SetInnerHTML(`<p class="new">new &amp; shiny</p>`); err != nil {
		t.Fatalf("SetInnerHTML: %v", err)
	}
	if doc.Query("#old") != nil {
		t.Fatal("old child should be gone")
	}
	if got := doc.Query(".new").Text(); got != "new & shiny" {
		t.Fatalf("unexpected text %q", got)
	}
	if doc.ActiveElement() != nil {
		t.Fatal("focus should be dropped with the removed element")
	}
	if len(doc.listeners) != 0 {
		t.Fatalf("listeners of removed nodes should be forgotten, have %d", len(doc.listeners))
	}
	doc.Click(old)
	if fired {
		t.Fatal("listener on a detached node must not run")
	}
}

func TestFieldValueSelectionFocus(t *testing.T) {
	doc := mustParse(t, `<textarea id="t">draft</textarea><input id="i" value="x">`)

	ta := doc.Query("#t")
	if ta.Value() != "draft" {
		t.Fatalf("textarea value = %q", ta.Value())
	}
	ta.SetValue("héllo")
	if start, end := ta.Selection(); start != 5 || end != 5 {
		t.Fatalf("SetValue should collapse selection to the end, got %d,%d", start, end)
	}
	ta.SetSelectionRange(-3, 99)
	if start, end := ta.Selection(); start != 0 || end != 5 {
		t.Fatalf("selection should be clamped, got %d,%d", start, end)
	}
	ta.Focus()
	if !ta.Focused() || !doc.ActiveElement().Is(ta) {
		t.Fatal("textarea should be focused")
	}

	in := doc.Query("#i")
	in.SetValue("y")
	if in.Value() != "y" {
		t.Fatalf("input value = %q", in.Value())
	}
	in.Focus()
	if ta.Focused() {
		t.Fatal("focus belongs to one element only")
	}
}

func TestPatchesTargetNearestID(t *testing.T) {
	doc := mustParse(t, `<div id="box"><span class="x">a</span></div><textarea id="t"></textarea>`)
	doc.TakePatches()

	doc.Query(".x").ToggleClass("on", true)
	doc.Query("#box").SetAttr("data-state", "ready")
	ta := doc.Query("#t")
	ta.SetValue("v")
	ta.SetSelectionRange(0, 1)
	ta.Focus()

	patches := doc.TakePatches()
	if len(patches) != 3 {
		t.Fatalf("expected 3 patches, got %d: %+v", len(patches), patches)
	}
	if p := patches[0]; p.Op != "html" || p.ID != "box" || p.HTML != `<span class="x on">a</span>` {
		t.Fatalf("unexpected first patch %+v", p)
	}
	if p := patches[1]; p.Op != "attrs" || p.ID != "box" || p.Attrs["data-state"] != "ready" {
		t.Fatalf("unexpected second patch %+v", p)
	}
	p := patches[2]
	if p.Op != "field" || p.ID != "t" || p.Value == nil || *p.Value != "v" || p.SelectionStart != 0 || p.SelectionEnd != 1 || !p.Focus {
		t.Fatalf("field patches should merge into one, got %+v", p)
	}
	if len(doc.TakePatches()) != 0 {
		t.Fatal("TakePatches should drain the queue")
	}
}

func TestSetAttrUnchangedRecordsNothing(t *testing.T) {
	doc := mustParse(t, `<div id="box" class="a"></div>`)
	box := doc.Query("#box")
	box.SetAttr("class", "a")
	box.ToggleClass("a", true)
	if n := len(doc.TakePatches()); n != 0 {
		t.Fatalf("no-op changes should not be recorded, got %d", n)
	}
}
