package usecase

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"moltis/internal/domain"
)

// perMessageOverhead approximates the framing tokens a chat-completion API
// charges per message (role, name, and turn delimiters) on top of content,
// matching the accounting most OpenAI-compatible providers use.
const perMessageOverhead = 4

// tiktokenCounter estimates token usage with a cached tiktoken-go encoding.
// Encodings are expensive to build, so one is shared across all counters for
// a given provider/model pair.
type tiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

var (
	encodingCacheMu sync.Mutex
	encodingCache   = map[string]*tiktoken.Tiktoken{}
)

// NewTokenCounter returns a domain.TokenCounter for the given provider and
// model. Providers that expose an OpenAI-compatible tokenizer (openai,
// and any provider speaking the same chat-completion wire shape) get an
// exact tiktoken-go count; anything else falls back to a byte-length
// approximation, since no public BPE tables exist for those vocabularies.
func NewTokenCounter(provider, model string) domain.TokenCounter {
	enc := encodingFor(provider, model)
	if enc == nil {
		return approxTokenCounter{}
	}
	return tiktokenCounter{enc: enc}
}

func encodingFor(provider, model string) *tiktoken.Tiktoken {
	switch provider {
	case "openai", "azure-openai", "azure_openai":
	default:
		return nil
	}

	key := provider + "/" + model
	encodingCacheMu.Lock()
	defer encodingCacheMu.Unlock()
	if enc, ok := encodingCache[key]; ok {
		return enc
	}

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil
		}
	}
	encodingCache[key] = enc
	return enc
}

func (c tiktokenCounter) CountText(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

func (c tiktokenCounter) CountMessages(messages []domain.Message) int {
	total := 0
	for _, m := range messages {
		total += perMessageOverhead
		total += c.CountText(m.Content)
		if m.Name != "" {
			total += c.CountText(m.Name)
		}
		for _, tc := range m.ToolCalls {
			total += c.CountText(tc.Name) + c.CountText(string(tc.Arguments))
		}
	}
	return total
}

// approxTokenCounter estimates tokens as one token per four bytes, the
// common rule-of-thumb ratio for non-BPE-tokenized model families.
type approxTokenCounter struct{}

func (approxTokenCounter) CountText(text string) int {
	return (len(text) + 3) / 4
}

func (c approxTokenCounter) CountMessages(messages []domain.Message) int {
	total := 0
	for _, m := range messages {
		total += perMessageOverhead
		total += c.CountText(m.Content)
		for _, tc := range m.ToolCalls {
			total += c.CountText(tc.Name) + c.CountText(string(tc.Arguments))
		}
	}
	return total
}
