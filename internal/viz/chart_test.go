package viz

import (
	"encoding/base64"
	"fmt"
	"testing"

	"github.com/dbgenie/dbgenie/pkg/models"
)

func deptRows() []models.Row {
	return []models.Row{
		{"department": "Engineering", "avg_salary": 98000.0},
		{"department": "Sales", "avg_salary": 74000.0},
		{"department": "HR", "avg_salary": 68000.0},
	}
}

func TestRenderBar(t *testing.T) {
	r := NewRenderer()

	desc, err := r.Render(deptRows(), "bar", "", "", "")
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if desc.Kind != "bar" {
		t.Errorf("Kind = %s, want bar", desc.Kind)
	}
	if desc.XField != "department" || desc.YField != "avg_salary" {
		t.Errorf("axes = %s/%s, want department/avg_salary", desc.XField, desc.YField)
	}
	if desc.Title != "avg_salary by department" {
		t.Errorf("Title = %q", desc.Title)
	}
	png, err := base64.StdEncoding.DecodeString(desc.ImageBase64)
	if err != nil {
		t.Fatalf("image is not valid base64: %v", err)
	}
	if len(png) < 8 || string(png[1:4]) != "PNG" {
		t.Error("decoded image is not a PNG")
	}
}

func TestRenderAutoKind(t *testing.T) {
	r := NewRenderer()

	desc, err := r.Render(deptRows(), "auto", "", "", "")
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if desc.Kind != "bar" {
		t.Errorf("auto over 3 rows picked %s, want bar", desc.Kind)
	}

	var many []models.Row
	for i := 0; i < 24; i++ {
		many = append(many, models.Row{"month": fmt.Sprintf("m%02d", i), "hires": int64(i)})
	}
	desc, err = r.Render(many, "auto", "", "", "")
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if desc.Kind != "line" {
		t.Errorf("auto over 24 rows picked %s, want line", desc.Kind)
	}
}

func TestRenderExplicitAxes(t *testing.T) {
	rows := []models.Row{
		{"name": "Ada", "salary": 98000.0, "age": int64(36)},
		{"name": "Grace", "salary": 102000.0, "age": int64(45)},
	}
	desc, err := NewRenderer().Render(rows, "bar", "Salaries", "name", "salary")
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if desc.XField != "name" || desc.YField != "salary" || desc.Title != "Salaries" {
		t.Errorf("descriptor = %+v", desc)
	}

	if _, err := NewRenderer().Render(rows, "bar", "", "missing", ""); err == nil {
		t.Error("Render() with unknown x column should fail")
	}
}

func TestRenderNumericStringsCountAsValues(t *testing.T) {
	rows := []models.Row{
		{"department": "Engineering", "headcount": "12"},
		{"department": "Sales", "headcount": "7"},
	}
	desc, err := NewRenderer().Render(rows, "pie", "", "", "")
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if desc.YField != "headcount" {
		t.Errorf("YField = %s, want headcount", desc.YField)
	}
}

func TestRenderFailures(t *testing.T) {
	r := NewRenderer()
	if _, err := r.Render(nil, "bar", "", "", ""); err == nil {
		t.Error("Render() with no rows should fail")
	}
	if _, err := r.Render(deptRows(), "scatter3d", "", "", ""); err == nil {
		t.Error("Render() with unknown kind should fail")
	}
	onlyText := []models.Row{{"a": "x", "b": "y"}}
	if _, err := r.Render(onlyText, "bar", "", "", ""); err == nil {
		t.Error("Render() with no numeric column should fail")
	}
}
