package llm

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"inkwell-ai/internal/domain"
)

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// estimateTokens counts tokens in text using the cl100k_base encoding.
// When the encoding cannot be loaded (e.g. no cached BPE data), it falls
// back to a bytes/4 heuristic, which is close enough for accounting.
func estimateTokens(text string) int {
	encodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			encoding = enc
		}
	})
	if encoding != nil {
		return len(encoding.Encode(text, nil, nil))
	}
	return approxTokens(text)
}

// approxTokens estimates token count as bytes/4, the usual rule of thumb
// for English prose.
func approxTokens(text string) int {
	if text == "" {
		return 0
	}
	n := len(text) / 4
	if n == 0 {
		n = 1
	}
	return n
}

// estimateUsage fills in usage for providers that return zero counts
// (some OpenAI-compatible servers omit usage on streamed responses).
func estimateUsage(req domain.CompletionRequest, content string) domain.Usage {
	var input int
	for _, m := range req.Messages {
		input += estimateTokens(m.Content)
	}
	output := estimateTokens(content)
	return domain.Usage{
		InputTokens:  input,
		OutputTokens: output,
		TotalTokens:  input + output,
	}
}
