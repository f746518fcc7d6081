package store

import (
	"errors"
	"reflect"
	"testing"

	"github.com/OFFIS-RIT/graphrag/pkg/common"
)

func TestParseSimilarity(t *testing.T) {
	tests := []struct {
		in      string
		want    Similarity
		wantErr bool
	}{
		{"", SimilarityCosine, false},
		{"cosine", SimilarityCosine, false},
		{"Euclidean", SimilarityEuclidean, false},
		{" dotproduct ", SimilarityDotProduct, false},
		{"manhattan", "", true},
	}
	for _, tt := range tests {
		got, err := ParseSimilarity(tt.in)
		if tt.wantErr {
			if !errors.Is(err, common.ErrConfiguration) {
				t.Errorf("ParseSimilarity(%q) error = %v, want configuration error", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseSimilarity(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestSanitizeIndexName(t *testing.T) {
	tests := map[string]string{
		"chunk_embeddings": "chunk_embeddings",
		"series-2024.v1":   "series_2024_v1",
		"a b`c":            "a_b_c",
		"é":                "_",
	}
	for in, want := range tests {
		if got := SanitizeIndexName(in); got != want {
			t.Errorf("SanitizeIndexName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestInBatches(t *testing.T) {
	var batches [][]int
	err := InBatches([]int{1, 2, 3, 4, 5, 6, 7}, 3, func(batch []int) error {
		batches = append(batches, batch)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	want := [][]int{{1, 2, 3}, {4, 5, 6}, {7}}
	if !reflect.DeepEqual(batches, want) {
		t.Fatalf("InBatches batches = %v, want %v", batches, want)
	}

	calls := 0
	if err := InBatches([]string{"a", "b"}, 0, func(batch []string) error {
		calls++
		if len(batch) != 2 {
			t.Fatalf("InBatches with size 0 got batch %v", batch)
		}
		return nil
	}); err != nil || calls != 1 {
		t.Fatalf("InBatches size 0: calls = %d, err = %v", calls, err)
	}

	if err := InBatches([]int(nil), 2, func([]int) error {
		t.Fatal("InBatches called fn for empty rows")
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	stop := errors.New("stop")
	if err := InBatches([]int{1, 2, 3, 4, 5}, 2, func([]int) error { return stop }); !errors.Is(err, stop) {
		t.Fatalf("InBatches error = %v", err)
	}
}

func TestEntityNames(t *testing.T) {
	got := EntityNames([]string{" Casablanca", "", "Mediouna", "Casablanca ", "  ", "casablanca"})
	want := []string{"Casablanca", "Mediouna", "casablanca"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("EntityNames() = %v, want %v", got, want)
	}
	if EntityNames(nil) != nil {
		t.Fatalf("EntityNames(nil) should be nil")
	}
}
