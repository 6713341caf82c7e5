package embedding

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSimpleTokenizer_Tokenize(t *testing.T) {
	tok := &SimpleTokenizer{}
	ids, attn, types := tok.Tokenize("hello world", 10)
	if len(ids) != 10 || len(attn) != 10 || len(types) != 10 {
		t.Fatalf("lengths = %d/%d/%d", len(ids), len(attn), len(types))
	}
	if ids[0] != clsID || ids[3] != sepID {
		t.Errorf("ids = %v", ids)
	}
	if attn[3] != 1 || attn[4] != 0 {
		t.Errorf("attention = %v", attn)
	}
}

func TestSimpleTokenizer_Truncates(t *testing.T) {
	ids, attn, _ := (&SimpleTokenizer{}).Tokenize(strings.Repeat("word ", 50), 8)
	if len(ids) != 8 || ids[7] != sepID || attn[7] != 1 {
		t.Errorf("ids = %v attention = %v", ids, attn)
	}
}

func testVocab(t *testing.T) string {
	t.Helper()
	tokens := []string{"[PAD]", "[UNK]", "[CLS]", "[SEP]", "work", "permit", "levy", "##s", "em", "##ploy", "##er", ",", "cafe"}
	path := filepath.Join(t.TempDir(), "vocab.txt")
	if err := os.WriteFile(path, []byte(strings.Join(tokens, "\n")+"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestWordPiece_Tokenize(t *testing.T) {
	wp, err := LoadWordPiece(testVocab(t))
	if err != nil {
		t.Fatal(err)
	}
	ids, attn, _ := wp.Tokenize("Employer WORK permits, levy xyz Café", 16)
	// [CLS] em ##ploy ##er work permit ##s , levy [UNK] cafe [SEP]
	want := []int64{2, 8, 9, 10, 4, 5, 7, 11, 6, 1, 12, 3}
	for i, id := range want {
		if ids[i] != id {
			t.Fatalf("ids = %v, want prefix %v", ids, want)
		}
		if attn[i] != 1 {
			t.Errorf("attention[%d] = 0", i)
		}
	}
	for i := len(want); i < 16; i++ {
		if ids[i] != 0 || attn[i] != 0 {
			t.Errorf("position %d should be padding", i)
		}
	}
}

func TestLoadWordPiece_Errors(t *testing.T) {
	if _, err := LoadWordPiece(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := NewWordPiece(map[string]int64{"[CLS]": 0}); err == nil {
		t.Error("expected error for incomplete vocab")
	}
}

func TestHashString(t *testing.T) {
	if HashString("abc") == 0 {
		t.Error("hash should be non-zero")
	}
	if HashString("abc") != HashString("abc") {
		t.Error("hash should be deterministic")
	}
	if HashString(strings.Repeat("z", 1000)) < 0 {
		t.Error("hash should be non-negative")
	}
}
