package notification

import "testing"

func TestTemplateEngine_BillCreated(t *testing.T) {
	eng := NewTemplateEngine()
	body, err := eng.Render(TemplateBillCreated, map[string]string{
		"bill_id":      "b-42",
		"final_amount": "70",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "Dear Patient, your bill (ID: b-42) has been generated with a total amount of Rs.70."
	if body != want {
		t.Errorf("body = %q, want %q", body, want)
	}
}

func TestTemplateEngine_RegisterAndRender(t *testing.T) {
	eng := NewTemplateEngine()
	eng.RegisterTemplate(Template{ID: "test-tpl", Name: "Test", Body: "Dear {{name}}, your code is {{code}}."})

	body, err := eng.Render("test-tpl", map[string]string{"name": "Alice", "code": "1234"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body != "Dear Alice, your code is 1234." {
		t.Errorf("body = %q", body)
	}
}

func TestTemplateEngine_MissingKeyLeftAsIs(t *testing.T) {
	eng := NewTemplateEngine()
	body, _ := eng.Render(TemplateBillCreated, map[string]string{"bill_id": "b-1"})
	want := "Dear Patient, your bill (ID: b-1) has been generated with a total amount of Rs.{{final_amount}}."
	if body != want {
		t.Errorf("body = %q, want %q", body, want)
	}
}

func TestTemplateEngine_RenderMissing(t *testing.T) {
	eng := NewTemplateEngine()
	if _, err := eng.Render("nonexistent", nil); err == nil {
		t.Fatal("expected error for missing template, got nil")
	}
}
