package healing

import (
	"fmt"
	"regexp"
	"sync"

	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/contracts"
)

// Predictor suggests the strategy most likely to succeed for a given
// failure context. The dispatcher treats it as advisory: an error or an
// unknown suggestion falls through to the default strategy order.
type Predictor interface {
	Suggest(domain contracts.HealingDomain, sig contracts.ErrorSignature) (contracts.StrategyName, error)
}

var (
	timeoutRe = regexp.MustCompile(`(?i)timeout|timed out|deadline`)
	visualRe  = regexp.MustCompile(`(?i)render|layout|element|selector|visual|dom`)
	syntaxRe  = regexp.MustCompile(`(?i)syntaxerror|unexpected token|unexpected end`)
	dbConnRe  = regexp.MustCompile(`(?i)connection refused|econnrefused|sqlstate|database|deadlock`)
)

// Classify maps a raw error message to its coarse signature.
func Classify(errMsg string) contracts.ErrorSignature {
	switch {
	case timeoutRe.MatchString(errMsg):
		return contracts.SignatureTimeout
	case syntaxRe.MatchString(errMsg):
		return contracts.SignatureSyntax
	case visualRe.MatchString(errMsg):
		return contracts.SignatureVisual
	case dbConnRe.MatchString(errMsg):
		return contracts.SignatureDBConn
	default:
		return contracts.SignatureGeneric
	}
}

// HistoryPredictor suggests whichever strategy has historically succeeded
// most often for a (domain, signature) pair.
type HistoryPredictor struct {
	mu        sync.Mutex
	successes map[string]map[contracts.StrategyName]int
}

// NewHistoryPredictor creates an empty predictor.
func NewHistoryPredictor() *HistoryPredictor {
	return &HistoryPredictor{successes: make(map[string]map[contracts.StrategyName]int)}
}

func contextKey(domain contracts.HealingDomain, sig contracts.ErrorSignature) string {
	return fmt.Sprintf("%s/%s", domain, sig)
}

// RecordSuccess feeds the predictor after a strategy heals a failure.
func (p *HistoryPredictor) RecordSuccess(domain contracts.HealingDomain, sig contracts.ErrorSignature, strategy contracts.StrategyName) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := contextKey(domain, sig)
	if p.successes[key] == nil {
		p.successes[key] = make(map[contracts.StrategyName]int)
	}
	p.successes[key][strategy]++
}

// Suggest returns the best-scoring strategy for the context key, or an
// error when no history exists yet.
func (p *HistoryPredictor) Suggest(domain contracts.HealingDomain, sig contracts.ErrorSignature) (contracts.StrategyName, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	scores, ok := p.successes[contextKey(domain, sig)]
	if !ok || len(scores) == 0 {
		return "", fmt.Errorf("no history for %s/%s", domain, sig)
	}
	var best contracts.StrategyName
	bestScore := -1
	for s, n := range scores {
		if n > bestScore || (n == bestScore && s < best) {
			best, bestScore = s, n
		}
	}
	return best, nil
}
