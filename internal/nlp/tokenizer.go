package nlp

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"
)

const maxWordChars = 100

// WordPiece is an uncased BERT-style tokenizer over a vocab.txt.
type WordPiece struct {
	vocab        map[string]int64
	clsID        int64
	sepID        int64
	padID        int64
	unkID        int64
	continuation string
}

// LoadWordPiece reads one token per line; the line number is the id.
func LoadWordPiece(path string) (*WordPiece, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vocab: %w", err)
	}
	defer f.Close()

	vocab := make(map[string]int64)
	sc := bufio.NewScanner(f)
	var idx int64
	for sc.Scan() {
		tok := strings.TrimSpace(sc.Text())
		if tok == "" {
			continue
		}
		vocab[tok] = idx
		idx++
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan vocab: %w", err)
	}
	return NewWordPiece(vocab), nil
}

// NewWordPiece builds a tokenizer over an in-memory vocab.
func NewWordPiece(vocab map[string]int64) *WordPiece {
	return &WordPiece{
		vocab:        vocab,
		continuation: "##",
		clsID:        vocab["[CLS]"],
		sepID:        vocab["[SEP]"],
		padID:        vocab["[PAD]"],
		unkID:        vocab["[UNK]"],
	}
}

// Encode returns input ids and the attention mask, both exactly seqLen long.
// Long input is truncated keeping [CLS] first and [SEP] last.
func (t *WordPiece) Encode(text string, seqLen int) ([]int64, []int64) {
	if seqLen <= 0 {
		return nil, nil
	}
	ids := make([]int64, 0, seqLen)
	ids = append(ids, t.clsID)
	for _, w := range basicSplit(strings.ToLower(text)) {
		pieces := t.pieces(w)
		if len(ids)+len(pieces) > seqLen-1 {
			pieces = pieces[:max(0, seqLen-1-len(ids))]
		}
		ids = append(ids, pieces...)
		if len(ids) >= seqLen-1 {
			break
		}
	}
	if seqLen > 1 {
		ids = append(ids, t.sepID)
	}

	attn := make([]int64, seqLen)
	for i := range ids {
		attn[i] = 1
	}
	for len(ids) < seqLen {
		ids = append(ids, t.padID)
	}
	return ids, attn
}

// pieces is greedy longest-match-first over the vocab.
func (t *WordPiece) pieces(word string) []int64 {
	if id, ok := t.vocab[word]; ok {
		return []int64{id}
	}
	if len(word) > maxWordChars {
		return []int64{t.unkID}
	}
	var out []int64
	start := 0
	for start < len(word) {
		end := len(word)
		found := false
		for end > start {
			sub := word[start:end]
			if start > 0 {
				sub = t.continuation + sub
			}
			if id, ok := t.vocab[sub]; ok {
				out = append(out, id)
				start = end
				found = true
				break
			}
			end--
		}
		if !found {
			return []int64{t.unkID}
		}
	}
	return out
}

// basicSplit splits on whitespace and isolates punctuation runes.
func basicSplit(text string) []string {
	var out []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			flush()
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			flush()
			out = append(out, string(r))
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return out
}
