package tokens

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const encoding = "cl100k_base"

var (
	once sync.Once
	enc  *tiktoken.Tiktoken
	fail error
)

// Count estimates the token footprint of text using the cl100k_base BPE.
// When the encoding cannot be loaded the estimate degrades to a rough
// chars/4 heuristic rather than failing: token counts are reporting data,
// never a correctness input.
func Count(text string) int {
	once.Do(func() {
		enc, fail = tiktoken.GetEncoding(encoding)
	})
	if fail != nil || enc == nil {
		return len(text) / 4
	}
	return len(enc.Encode(text, nil, nil))
}
