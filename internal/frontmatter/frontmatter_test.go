package frontmatter

import "testing"

func TestParse_Basic(t *testing.T) {
	content := "---\nname: Login flow\npriority: P1\ntype: UserStory\nstatus: Not Started\n---\n\nBody text here.\n"

	doc := Parse(content)

	if v, _ := doc.Get("name"); v != "Login flow" {
		t.Errorf("name = %q, want %q", v, "Login flow")
	}
	if v, _ := doc.Get("status"); v != "Not Started" {
		t.Errorf("status = %q, want %q", v, "Not Started")
	}
	if doc.Body != "Body text here.\n" {
		t.Errorf("Body = %q", doc.Body)
	}
}

func TestParse_NoFence(t *testing.T) {
	content := "Just a body, no frontmatter.\n"
	doc := Parse(content)
	if len(doc.Keys) != 0 {
		t.Errorf("expected no keys, got %v", doc.Keys)
	}
	if doc.Body != content {
		t.Errorf("Body = %q, want unchanged content", doc.Body)
	}
}

func TestParse_QuotedValues(t *testing.T) {
	content := `---
name: "Quoted: name"
priority: 'P2'
---
body
`
	doc := Parse(content)
	if v, _ := doc.Get("name"); v != "Quoted: name" {
		t.Errorf("name = %q", v)
	}
	if v, _ := doc.Get("priority"); v != "P2" {
		t.Errorf("priority = %q", v)
	}
}

func TestParse_IgnoresColonlessLines(t *testing.T) {
	content := "---\nname: Foo\nnot a kv line\npriority: P0\n---\nbody\n"
	doc := Parse(content)
	if len(doc.Keys) != 2 {
		t.Errorf("expected 2 keys, got %v", doc.Keys)
	}
}

func TestRoundTrip(t *testing.T) {
	content := "---\nname: Login flow\npriority: P1\ntype: UserStory\nstatus: Not Started\n---\n\nSome body.\n- [ ] AC one\n"

	doc := Parse(content)
	out := Serialize(doc)
	reparsed := Parse(out)

	for _, key := range doc.Keys {
		want, _ := doc.Get(key)
		got, ok := reparsed.Get(key)
		if !ok || got != want {
			t.Errorf("round-trip key %q = %q, want %q", key, got, want)
		}
	}
	if reparsed.Body != doc.Body {
		t.Errorf("round-trip body = %q, want %q", reparsed.Body, doc.Body)
	}
}

func TestUpdateField_OverwritesExisting(t *testing.T) {
	content := "---\nname: Foo\nstatus: Not Started\n---\nbody\n"
	out := UpdateField(content, "status", "In Progress")
	doc := Parse(out)
	if v, _ := doc.Get("status"); v != "In Progress" {
		t.Errorf("status = %q, want %q", v, "In Progress")
	}
	if v, _ := doc.Get("name"); v != "Foo" {
		t.Errorf("name should be preserved, got %q", v)
	}
}

func TestUpdateField_InsertsNew(t *testing.T) {
	content := "---\nname: Foo\n---\nbody\n"
	out := UpdateField(content, "status", "Done")
	doc := Parse(out)
	if v, _ := doc.Get("status"); v != "Done" {
		t.Errorf("status = %q, want %q", v, "Done")
	}
}

func TestSerialize_OmitsEmptyValues(t *testing.T) {
	content := "---\nname: Foo\nmodel: \n---\nbody\n"
	out := Serialize(Parse(content))
	doc := Parse(out)
	if _, ok := doc.Get("model"); ok {
		t.Errorf("empty-valued keys should be omitted from serialization")
	}
	if v, _ := doc.Get("name"); v != "Foo" {
		t.Errorf("name = %q, want Foo", v)
	}
}
