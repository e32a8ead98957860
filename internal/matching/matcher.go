package matching

import (
	"sort"

	"accounter.org/internal/finance"
)

// MatchCandidate is one proposed transaction/document pair. It is never persisted.
type MatchCandidate struct {
	TransactionID    string               `json:"transaction_id"`
	DocumentID       string               `json:"document_id"`
	Confidence       ConfidenceComponents `json:"confidence"`
	Overall          float64              `json:"overall"`
	DateDistanceDays int                  `json:"date_distance_days"`

	candidateID string
}

// Matcher scores a pool of candidates against one anchor.
type Matcher struct {
	scorers      Scorers
	windowMonths int
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithScorers overrides the component heuristics. Nil fields keep the defaults.
func WithScorers(s Scorers) Option {
	return func(m *Matcher) {
		if s.Amount != nil {
			m.scorers.Amount = s.Amount
		}
		if s.Currency != nil {
			m.scorers.Currency = s.Currency
		}
		if s.Business != nil {
			m.scorers.Business = s.Business
		}
		if s.Date != nil {
			m.scorers.Date = s.Date
		}
	}
}

// WithWindowMonths overrides the date window.
func WithWindowMonths(months int) Option {
	return func(m *Matcher) {
		if months > 0 {
			m.windowMonths = months
		}
	}
}

// NewMatcher constructs a Matcher with default scorers and a 12 month window.
func NewMatcher(opts ...Option) *Matcher {
	m := &Matcher{scorers: DefaultScorers(), windowMonths: DefaultWindowMonths}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// WindowMonths returns the configured window.
func (m *Matcher) WindowMonths() int { return m.windowMonths }

// MatchTransaction ranks documents of ownerID against a transaction anchor.
func (m *Matcher) MatchTransaction(anchor finance.Transaction, pool []finance.Document, ownerID string) ([]MatchCandidate, error) {
	if !IsValidTransactionForMatching(anchor) {
		return nil, nil
	}
	anchorSide := transactionSide(anchor)

	var out []MatchCandidate
	for _, doc := range pool {
		if !IsValidDocumentForMatching(doc) || !involves(doc, ownerID) {
			continue
		}
		if !IsWithinDateWindow(doc.Date, anchor.EventDate, m.windowMonths) {
			continue
		}
		days := finance.DaysBetween(doc.Date, anchor.EventDate)
		cand, err := m.score(anchorSide, documentSide(doc, ownerID), days)
		if err != nil {
			return nil, err
		}
		cand.TransactionID = anchor.ID
		cand.DocumentID = doc.ID
		cand.candidateID = doc.ID
		out = append(out, cand)
	}
	rank(out)
	return out, nil
}

// MatchDocument ranks transactions of ownerID against a document anchor.
func (m *Matcher) MatchDocument(anchor finance.Document, pool []finance.Transaction, ownerID string) ([]MatchCandidate, error) {
	if !IsValidDocumentForMatching(anchor) || !involves(anchor, ownerID) {
		return nil, nil
	}
	anchorSide := documentSide(anchor, ownerID)

	var out []MatchCandidate
	for _, tx := range pool {
		if !IsValidTransactionForMatching(tx) || tx.OwnerID != ownerID {
			continue
		}
		if !IsWithinDateWindow(tx.EventDate, anchor.Date, m.windowMonths) {
			continue
		}
		days := finance.DaysBetween(tx.EventDate, anchor.Date)
		cand, err := m.score(anchorSide, transactionSide(tx), days)
		if err != nil {
			return nil, err
		}
		cand.TransactionID = tx.ID
		cand.DocumentID = anchor.ID
		cand.candidateID = tx.ID
		out = append(out, cand)
	}
	rank(out)
	return out, nil
}

// FilterAbove keeps candidates whose overall confidence is at least threshold.
func FilterAbove(cands []MatchCandidate, threshold float64) []MatchCandidate {
	out := make([]MatchCandidate, 0, len(cands))
	for _, c := range cands {
		if c.Overall >= threshold {
			out = append(out, c)
		}
	}
	return out
}

func (m *Matcher) score(anchor, candidate Side, days int) (MatchCandidate, error) {
	comps := Components(
		m.scorers.Amount(anchor, candidate),
		m.scorers.Currency(anchor, candidate),
		m.scorers.Business(anchor, candidate),
		m.scorers.Date(days),
	)
	overall, err := CalculateOverallConfidence(comps)
	if err != nil {
		return MatchCandidate{}, err
	}
	return MatchCandidate{Confidence: comps, Overall: overall, DateDistanceDays: days}, nil
}

func rank(cands []MatchCandidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.Overall != b.Overall {
			return a.Overall > b.Overall
		}
		if a.DateDistanceDays != b.DateDistanceDays {
			return a.DateDistanceDays < b.DateDistanceDays
		}
		return a.candidateID < b.candidateID
	})
}

func involves(d finance.Document, ownerID string) bool {
	return d.CreditorID == ownerID || d.DebtorID == ownerID
}

func transactionSide(t finance.Transaction) Side {
	s := Side{Amount: t.Amount, Currency: t.Currency}
	if t.BusinessID != nil {
		s.BusinessID = *t.BusinessID
	}
	return s
}

func documentSide(d finance.Document, ownerID string) Side {
	isBusinessCreditor := d.CreditorID != ownerID
	return Side{
		Amount:     NormalizeDocumentAmount(*d.TotalAmount, isBusinessCreditor, d.Type),
		Currency:   *d.CurrencyCode,
		BusinessID: d.Counterparty(ownerID),
	}
}
