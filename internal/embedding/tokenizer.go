package embedding

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Tokenizer produces token IDs for BERT-style models (input_ids, attention_mask, token_type_ids).
// Outputs are padded to maxTokens.
type Tokenizer interface {
	Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64)
}

const (
	clsID = 101
	sepID = 102
)

// SimpleTokenizer is a word-split tokenizer with hash-based token IDs. It is used when no
// vocabulary file is available.
type SimpleTokenizer struct{}

// Tokenize splits text into words and produces padded token IDs up to maxTokens.
func (t *SimpleTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	words := SplitWords(strings.ToLower(text))
	ids := make([]int64, 0, len(words))
	for _, word := range words {
		ids = append(ids, int64(1000+HashString(word)%29000))
	}
	return pack(ids, clsID, sepID, maxTokens)
}

// WordPiece is the uncased BERT tokenizer used by MiniLM sentence models.
type WordPiece struct {
	vocab map[string]int64
	cls   int64
	sep   int64
	unk   int64
}

// maxWordChars is the longest word WordPiece will split; longer words become [UNK].
const maxWordChars = 100

// LoadWordPiece reads a vocab.txt file with one token per line; the line number is the token ID.
func LoadWordPiece(path string) (*WordPiece, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	vocab := make(map[string]int64)
	scanner := bufio.NewScanner(f)
	var id int64
	for scanner.Scan() {
		vocab[strings.TrimRight(scanner.Text(), "\r")] = id
		id++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read vocab: %w", err)
	}
	return NewWordPiece(vocab)
}

// NewWordPiece builds a tokenizer from a vocabulary that must contain [CLS], [SEP] and [UNK].
func NewWordPiece(vocab map[string]int64) (*WordPiece, error) {
	w := &WordPiece{vocab: vocab}
	for token, dst := range map[string]*int64{"[CLS]": &w.cls, "[SEP]": &w.sep, "[UNK]": &w.unk} {
		id, ok := vocab[token]
		if !ok {
			return nil, fmt.Errorf("vocab is missing %s", token)
		}
		*dst = id
	}
	return w, nil
}

// Tokenize lower-cases and strips accents, splits on whitespace and punctuation, then
// applies greedy longest-match-first WordPiece.
func (w *WordPiece) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	var ids []int64
	for _, word := range basicTokens(text) {
		ids = append(ids, w.wordPieces(word)...)
		if len(ids) >= maxTokens {
			break
		}
	}
	return pack(ids, w.cls, w.sep, maxTokens)
}

func (w *WordPiece) wordPieces(word string) []int64 {
	runes := []rune(word)
	if len(runes) > maxWordChars {
		return []int64{w.unk}
	}
	var ids []int64
	for start := 0; start < len(runes); {
		end := len(runes)
		var id int64 = -1
		for ; end > start; end-- {
			piece := string(runes[start:end])
			if start > 0 {
				piece = "##" + piece
			}
			if v, ok := w.vocab[piece]; ok {
				id = v
				break
			}
		}
		if id < 0 {
			return []int64{w.unk}
		}
		ids = append(ids, id)
		start = end
	}
	return ids
}

// basicTokens normalizes text the way uncased BERT does and splits it into words and
// single punctuation marks. CJK ideographs become single tokens.
func basicTokens(text string) []string {
	var b strings.Builder
	for _, r := range norm.NFD.String(strings.ToLower(text)) {
		switch {
		case unicode.Is(unicode.Mn, r), r == 0, r == unicode.ReplacementChar, unicode.IsControl(r) && !unicode.IsSpace(r):
			continue
		case unicode.IsPunct(r) || unicode.IsSymbol(r) || unicode.Is(unicode.Han, r):
			b.WriteRune(' ')
			b.WriteRune(r)
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	return strings.Fields(b.String())
}

// pack wraps ids in [CLS] ... [SEP], truncating and padding with zeros to maxTokens.
func pack(ids []int64, cls, sep int64, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	if maxTokens < 2 {
		maxTokens = 256
	}
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)

	if len(ids) > maxTokens-2 {
		ids = ids[:maxTokens-2]
	}
	inputIDs[0] = cls
	copy(inputIDs[1:], ids)
	inputIDs[len(ids)+1] = sep
	for i := 0; i < len(ids)+2; i++ {
		attentionMask[i] = 1
	}
	return inputIDs, attentionMask, tokenTypeIDs
}

// SplitWords splits text on whitespace and returns non-empty words.
func SplitWords(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	return words
}

// HashString returns a deterministic non-negative hash.
func HashString(s string) int {
	h := 0
	for _, c := range s {
		h = 31*h + int(c)
	}
	if h < 0 {
		h = -h
	}
	if h < 0 {
		h = 0
	}
	return h
}
