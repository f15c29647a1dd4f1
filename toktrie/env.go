package toktrie

// TokEnv is a tokenizer together with its vocabulary trie.
type TokEnv interface {
	TokTrie() *TokTrie
	Tokenize(b []byte) ([]TokenID, error)
}

// GreedyTokEnv tokenizes by longest prefix over its trie. Real tokenizers
// differ, but every token sequence it produces is valid.
type GreedyTokEnv struct {
	trie *TokTrie
}

func NewGreedyTokEnv(t *TokTrie) *GreedyTokEnv {
	return &GreedyTokEnv{trie: t}
}

func (e *GreedyTokEnv) TokTrie() *TokTrie {
	return e.trie
}

func (e *GreedyTokEnv) Tokenize(b []byte) ([]TokenID, error) {
	return e.trie.Greedy(b)
}

// FromWords builds a trie from plain words followed by named special tokens.
// The last special token, if any, is used as end-of-sequence.
func FromWords(words []string, specials ...string) *TokTrie {
	vocab := make([]TokenInfo, 0, len(words)+len(specials))
	for _, w := range words {
		vocab = append(vocab, TokenInfo{Bytes: []byte(w)})
	}
	eos := NoToken
	for _, name := range specials {
		eos = TokenID(len(vocab))
		vocab = append(vocab, TokenInfo{Special: true, Name: name})
	}
	return New(vocab, eos)
}
