package tokenizer

import (
	"reflect"
	"testing"
)

func TestTokenize_diacriticsAndCase(t *testing.T) {
	got := Tokenize("Educación Pública")
	want := []string{"educacion", "publica"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokenize() = %v, want %v", got, want)
	}
}

func TestTokenize_stopwordsAndShortTokens(t *testing.T) {
	got := Tokenize("el monto de los viáticos es S/ 320.00")
	for _, tok := range got {
		if tok == "el" || tok == "de" || tok == "los" || tok == "es" {
			t.Errorf("stopword %q should have been dropped, got %v", tok, got)
		}
	}
	for _, tok := range got {
		if len(tok) < MinTokenLength {
			t.Errorf("short token %q should have been dropped", tok)
		}
	}
}

func TestTokenize_punctuationBecomesSpace(t *testing.T) {
	got := Tokenize("directiva-n°001,viaticos")
	want := []string{"directiva", "001", "viaticos"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokenize() = %v, want %v", got, want)
	}
}

func TestTokenize_idempotence(t *testing.T) {
	x := "¿Cuál es el Monto Máximo diario para viáticos NACIONALES?"
	first := Tokenize(x)
	second := Tokenize(Join(first))
	if !reflect.DeepEqual(first, second) {
		t.Errorf("idempotence violated: first=%v second=%v", first, second)
	}
}

func TestTokenize_empty(t *testing.T) {
	if got := Tokenize(""); len(got) != 0 {
		t.Errorf("Tokenize(\"\") = %v, want empty", got)
	}
}
