package imagevendor

import (
	"encoding/json"
	"testing"
)

func TestParseSize(t *testing.T) {
	cases := []struct {
		in   string
		w, h int
	}{
		{"1024x1536", 1024, 1536},
		{"1x1", 1, 1},
		{"1024X1536", 0, 0},
		{"1024 x 1536", 0, 0},
		{"1024x", 0, 0},
		{"", 0, 0},
		{"-1x5", 0, 0},
		{"12x34 ", 0, 0},
	}
	for _, tc := range cases {
		w, h := ParseSize(tc.in)
		if w != tc.w || h != tc.h {
			t.Fatalf("ParseSize(%q) = %d,%d want %d,%d", tc.in, w, h, tc.w, tc.h)
		}
	}
}

func TestFlexIntAcceptsNumbersAndStrings(t *testing.T) {
	var v struct {
		A flexInt `json:"a"`
		B flexInt `json:"b"`
		C flexInt `json:"c"`
		D flexInt `json:"d"`
	}
	if err := json.Unmarshal([]byte(`{"a": 42, "b": "7", "c": null, "d": "abc"}`), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !v.A.Valid || v.A.Value != 42 {
		t.Fatalf("unexpected a: %+v", v.A)
	}
	if !v.B.Valid || v.B.Value != 7 {
		t.Fatalf("unexpected b: %+v", v.B)
	}
	if v.C.Valid || v.D.Valid {
		t.Fatalf("expected c and d to be invalid: %+v %+v", v.C, v.D)
	}
}
