package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/insurance-qa/internal/domain/entities"
	"github.com/zatekoja/insurance-qa/internal/domain/providers"
	apperrors "github.com/zatekoja/insurance-qa/pkg/errors"
	"github.com/zatekoja/insurance-qa/pkg/retry"
)

const generationProviderID = "generation"

const generationSystemPrompt = "You are an assistant answering questions about insurance products. " +
	"Answer only from the provided document fragments. Cite the insurer and category " +
	"of the fragments you rely on. If the fragments do not contain the answer, say so."

// GenerationAnswer is the generation stage result.
type GenerationAnswer struct {
	Answer       string
	UsedFallback bool
}

// GenerationService assembles a bounded context window from the top
// candidates and calls the language model through the rate-limited retry
// executor. Provider unavailability and empty retrieval results degrade to
// deterministic templated answers instead of failing.
type GenerationService struct {
	provider          providers.LLMProvider
	executor          *retry.Executor
	contextCharBudget int
}

// NewGenerationService creates the generation stage. provider may be nil
// when the language model is disabled.
func NewGenerationService(provider providers.LLMProvider, executor *retry.Executor, contextCharBudget int) *GenerationService {
	if contextCharBudget <= 0 {
		contextCharBudget = 6000
	}
	return &GenerationService{
		provider:          provider,
		executor:          executor,
		contextCharBudget: contextCharBudget,
	}
}

// Generate produces the answer text for the query given the ranked
// candidates.
func (s *GenerationService) Generate(ctx context.Context, query string, candidates []entities.RetrievalCandidate) entities.Outcome[GenerationAnswer] {
	if strings.TrimSpace(query) == "" {
		return entities.Failed[GenerationAnswer](apperrors.NewValidationError("query must not be empty"))
	}

	if len(candidates) == 0 {
		return entities.Fallback(GenerationAnswer{
			Answer:       noContentAnswer(query),
			UsedFallback: true,
		}, "no matching content")
	}

	if s.provider == nil {
		return entities.Fallback(GenerationAnswer{
			Answer:       templatedAnswer(query, candidates),
			UsedFallback: true,
		}, "generation provider disabled")
	}

	prompt := s.buildPrompt(query, candidates)

	var answer string
	err := s.executor.Execute(ctx, generationProviderID, func(ctx context.Context) error {
		var completeErr error
		answer, completeErr = s.provider.Complete(ctx, generationSystemPrompt, prompt)
		return completeErr
	})
	if err == nil {
		return entities.Success(GenerationAnswer{Answer: answer})
	}

	if apperrors.IsTimeout(err) || apperrors.IsRateLimited(err) {
		return entities.Failed[GenerationAnswer](err)
	}

	log.Warn().Err(err).Msg("generation provider unavailable, using templated answer")
	return entities.Fallback(GenerationAnswer{
		Answer:       templatedAnswer(query, candidates),
		UsedFallback: true,
	}, "generation provider unavailable")
}

// buildPrompt assembles the context block under the character budget,
// dropping or truncating the lowest-ranked candidates first. The budget is
// counted in runes so multibyte text is not cut short.
func (s *GenerationService) buildPrompt(query string, candidates []entities.RetrievalCandidate) string {
	var b strings.Builder
	b.WriteString("Document fragments:\n\n")

	remaining := s.contextCharBudget
	for i, c := range candidates {
		header := fmt.Sprintf("[%d] insurer=%s category=%s similarity=%.2f\n", i+1, c.InsurerID, c.Category, c.Similarity)
		headerLen := utf8.RuneCountInString(header)
		text := c.Text
		textLen := utf8.RuneCountInString(text)
		if headerLen+textLen+2 > remaining {
			available := remaining - headerLen - 2
			if available <= 0 {
				break
			}
			text = truncateRunes(text, available)
			textLen = available
		}
		b.WriteString(header)
		b.WriteString(text)
		b.WriteString("\n\n")
		remaining -= headerLen + textLen + 2
	}

	b.WriteString("Question: ")
	b.WriteString(query)
	return b.String()
}

// templatedAnswer is the deterministic degraded answer used when the
// language model is unavailable but retrieval produced content.
func templatedAnswer(query string, candidates []entities.RetrievalCandidate) string {
	var b strings.Builder
	b.WriteString("The answer generator is currently unavailable. ")
	b.WriteString(fmt.Sprintf("The most relevant document excerpts for %q are:\n", query))
	for i, c := range candidates {
		if i >= 3 {
			break
		}
		b.WriteString(fmt.Sprintf("- [%s, %s] %s\n", c.InsurerID, c.Category, truncateRunes(c.Text, 240)))
	}
	return b.String()
}

// noContentAnswer is the deterministic answer for an empty retrieval result.
func noContentAnswer(query string) string {
	return fmt.Sprintf("No insurance documents matching %q were found. "+
		"Try rephrasing the question or removing category filters.", query)
}

func truncateRunes(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}
