package router

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"fitcoach/internal/config"
	"fitcoach/internal/llm"
)

// Routing targets beyond the coaching domains.
const (
	TargetWelcome = "welcome"
	TargetFinish  = "finish"
)

// greetingMaxRunes bounds the greeting short-circuit: longer messages that
// happen to start with "hola" still carry real intent and must be routed.
const greetingMaxRunes = 50

// Verdict is one routing decision.
type Verdict struct {
	// Target is a domain label, TargetWelcome, or TargetFinish.
	Target string

	// Source records which mechanism produced the verdict: "greeting",
	// "llm", "lexicon", or "hop-cap". Diagnostic only.
	Source string
}

// Supervisor classifies each turn to a routing target. The LLM is the
// primary classifier; every failure mode (timeout, unavailability, label
// outside the allowed set) falls back to the keyword lexicon, so a verdict
// is always produced.
type Supervisor struct {
	client          llm.Client
	hopCap          int
	classifyTimeout time.Duration
	logger          *zap.Logger

	mu  sync.RWMutex
	lex *Lexicon
}

// NewSupervisor creates a supervisor over the given classifier client and
// lexicon. A nil client disables LLM classification and routes on the
// lexicon alone.
func NewSupervisor(client llm.Client, lex *Lexicon, cfg config.RouterConfig, logger *zap.Logger) *Supervisor {
	if lex == nil {
		lex = DefaultLexicon()
	}
	hopCap := cfg.HopCap
	if hopCap <= 0 {
		hopCap = 10
	}
	classifyTimeout, err := time.ParseDuration(cfg.ClassifyTimeout)
	if err != nil || classifyTimeout <= 0 {
		classifyTimeout = 10 * time.Second
	}
	return &Supervisor{
		client:          client,
		hopCap:          hopCap,
		classifyTimeout: classifyTimeout,
		logger:          logger,
		lex:             lex,
	}
}

// HopCap returns the per-turn routing hop limit.
func (s *Supervisor) HopCap() int { return s.hopCap }

// SetLexicon swaps the keyword table. Used by the hot-reload watcher.
func (s *Supervisor) SetLexicon(lex *Lexicon) {
	s.mu.Lock()
	s.lex = lex
	s.mu.Unlock()
}

func (s *Supervisor) lexicon() *Lexicon {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lex
}

// Decide produces the routing verdict for a turn. hop is how many routing
// decisions this turn has already consumed; at the cap the verdict is
// finish, unconditionally, so a misbehaving route cannot loop forever.
func (s *Supervisor) Decide(ctx context.Context, lastTurn string, hop int) Verdict {
	if hop >= s.hopCap {
		s.logger.Warn("hop cap reached, forcing finish", zap.Int("hop", hop))
		return Verdict{Target: TargetFinish, Source: "hop-cap"}
	}
	if strings.TrimSpace(lastTurn) == "" {
		return Verdict{Target: TargetFinish, Source: "empty-turn"}
	}

	lex := s.lexicon()
	if utf8.RuneCountInString(lastTurn) < greetingMaxRunes && lex.IsWelcome(lastTurn) {
		return Verdict{Target: TargetWelcome, Source: "greeting"}
	}

	if s.client != nil {
		if target, ok := s.classify(ctx, lex, lastTurn); ok {
			return Verdict{Target: target, Source: "llm"}
		}
	}

	return Verdict{Target: s.classifyByKeywords(lex, lastTurn), Source: "lexicon"}
}

// classify asks the LLM for a label constrained to the lexicon's domains.
// Any response outside that set is rejected: the model advises, the
// allowed set decides.
func (s *Supervisor) classify(ctx context.Context, lex *Lexicon, lastTurn string) (string, bool) {
	labels := lex.DomainLabels()
	sort.Strings(labels)

	cctx, cancel := context.WithTimeout(ctx, s.classifyTimeout)
	defer cancel()

	system := fmt.Sprintf(
		"You are a message router for a coaching assistant. "+
			"Classify the user message into exactly one of these labels: %s. "+
			"Reply with the label only, nothing else.",
		strings.Join(labels, ", "))

	raw, err := s.client.CompleteWithSystem(cctx, system, lastTurn)
	if err != nil {
		s.logger.Debug("llm classification failed, falling back to lexicon", zap.Error(err))
		return "", false
	}

	label := strings.ToLower(strings.TrimSpace(raw))
	label = strings.Trim(label, `"'.`)
	if _, ok := lex.Domains[label]; !ok {
		s.logger.Debug("llm returned off-label classification, falling back to lexicon",
			zap.String("label", label))
		return "", false
	}
	return label, true
}

// classifyByKeywords is the deterministic fallback: the domain with the
// strictly highest keyword count wins; ties go to the tie-breaker phrase
// table, then to the default domain.
func (s *Supervisor) classifyByKeywords(lex *Lexicon, lastTurn string) string {
	scores := lex.Score(lastTurn)

	best := 0
	for _, n := range scores {
		if n > best {
			best = n
		}
	}
	if best == 0 {
		return lex.Default
	}

	var leaders []string
	for domain, n := range scores {
		if n == best {
			leaders = append(leaders, domain)
		}
	}
	sort.Strings(leaders)

	if len(leaders) == 1 {
		return leaders[0]
	}
	if winner := lex.BreakTie(lastTurn, leaders); winner != "" {
		return winner
	}
	return lex.Default
}
