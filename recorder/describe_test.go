package recorder

import (
	"strings"
	"testing"
)

func TestDescribeElement(t *testing.T) {
	info, err := DescribeElement(`<button id="save" class="btn btn-primary">Save changes</button>`)
	if err != nil {
		t.Fatal(err)
	}
	if info.Tag != "BUTTON" || info.ID != "save" {
		t.Fatalf("unexpected: %+v", info)
	}
	if len(info.Classes) != 2 || info.Classes[0] != "btn" {
		t.Fatalf("classes: %v", info.Classes)
	}
	if info.Text != "Save changes" {
		t.Fatalf("text: %q", info.Text)
	}
}

func TestDescribeElementTruncatesText(t *testing.T) {
	long := strings.Repeat("a", 300)
	info, err := DescribeElement("<p>" + long + "</p>")
	if err != nil {
		t.Fatal(err)
	}
	if len(info.Text) != maxTextLen {
		t.Fatalf("text len = %d", len(info.Text))
	}
}

func TestPasswordFieldDetection(t *testing.T) {
	info, err := DescribeElement(`<input type="password" id="pw">`)
	if err != nil {
		t.Fatal(err)
	}
	if !info.IsPasswordField() {
		t.Fatal("password input not detected")
	}

	plain, err := DescribeElement(`<input type="text">`)
	if err != nil {
		t.Fatal(err)
	}
	if plain.IsPasswordField() {
		t.Fatal("text input flagged as password")
	}
}

func TestStepTitle(t *testing.T) {
	tests := []struct {
		event string
		el    ElementInfo
		want  string
	}{
		{"click", ElementInfo{Tag: "BUTTON", ID: "save", Text: "Save"}, `Clicked button#save "Save"`},
		{"input", ElementInfo{Tag: "INPUT"}, "Typed into input"},
		{"scroll", ElementInfo{Tag: "PAGE"}, "Scrolled page"},
		{"unknown", ElementInfo{Tag: "DIV"}, "Interacted with div"},
	}
	for _, tt := range tests {
		if got := StepTitle(tt.event, &tt.el); got != tt.want {
			t.Errorf("StepTitle(%q) = %q, want %q", tt.event, got, tt.want)
		}
	}
}

func TestDescribeElementRejectsEmpty(t *testing.T) {
	if _, err := DescribeElement("just text"); err == nil {
		t.Fatal("accepted snippet without an element")
	}
}
