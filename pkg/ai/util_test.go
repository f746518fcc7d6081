package ai

import (
	"strings"
	"testing"
)

type fact struct {
	Subject  string `json:"subject"`
	Relation string `json:"relation"`
	Object   string `json:"object"`
}

func TestUnmarshalFlexible_FactArrays(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []fact
	}{
		{
			name:  "valid json array",
			input: `[{"subject":"Al Abrar","relation":"LOCATED_IN","object":"Mediouna"}]`,
			want:  []fact{{"Al Abrar", "LOCATED_IN", "Mediouna"}},
		},
		{
			name:  "unquoted keys and single quotes",
			input: `[{subject:'Appartement F5',relation:'HAS_PRICE',object:'250000'}]`,
			want:  []fact{{"Appartement F5", "HAS_PRICE", "250000"}},
		},
		{
			name:  "trailing commas",
			input: `[{"subject":"Bien","relation":"HAS_EQUIPMENT","object":"Parking",},]`,
			want:  []fact{{"Bien", "HAS_EQUIPMENT", "Parking"}},
		},
		{
			name:  "stringified array",
			input: `"[{\"subject\":\"Bien\",\"relation\":\"HAS_EQUIPMENT\",\"object\":\"Ascenseur\"}]"`,
			want:  []fact{{"Bien", "HAS_EQUIPMENT", "Ascenseur"}},
		},
		{
			name:  "empty array",
			input: `[]`,
			want:  []fact{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got []fact
			if err := UnmarshalFlexible(tc.input, &got); err != nil {
				t.Fatalf("UnmarshalFlexible() error = %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("UnmarshalFlexible() got %d facts, want %d", len(got), len(tc.want))
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("UnmarshalFlexible()[%d] = %+v, want %+v", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestUnmarshalFlexible_DuplicateLeadingBrace(t *testing.T) {
	var got fact
	if err := UnmarshalFlexible("{\n{\n  \"subject\": \"Al Abrar\"\n}\n", &got); err != nil {
		t.Fatalf("UnmarshalFlexible() error = %v", err)
	}
	if got.Subject != "Al Abrar" {
		t.Fatalf("UnmarshalFlexible() got = %+v", got)
	}
}

func TestUnmarshalFlexible_Unrecoverable(t *testing.T) {
	var got []fact
	if err := UnmarshalFlexible("hello", &got); err == nil {
		t.Fatalf("UnmarshalFlexible() expected error for unrecoverable input")
	}
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"```json\n[1]\n```", "[1]"},
		{"```JSON\n[1]\n```", "[1]"},
		{"```\n[]\n```", "[]"},
		{"  [] ", "[]"},
	}
	for _, tc := range tests {
		if got := StripCodeFences(tc.in); got != tc.want {
			t.Errorf("StripCodeFences(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestJSONArraySpan(t *testing.T) {
	got, ok := JSONArraySpan(`Here you go: [{"a":[1]}] hope it helps`)
	if !ok || got != `[{"a":[1]}]` {
		t.Fatalf("JSONArraySpan() = %q, %v", got, ok)
	}
	if _, ok := JSONArraySpan("no array here"); ok {
		t.Fatalf("JSONArraySpan() expected no span")
	}
	if _, ok := JSONArraySpan("] before ["); ok {
		t.Fatalf("JSONArraySpan() expected no span for reversed brackets")
	}
}

func TestSchemaJSON(t *testing.T) {
	s := SchemaJSON(fact{})
	for _, key := range []string{`"subject"`, `"relation"`, `"object"`} {
		if !strings.Contains(s, key) {
			t.Errorf("SchemaJSON() missing %s in %s", key, s)
		}
	}
}
