package converter

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/iati-activity-converter/internal/config"
	"github.com/ginjaninja78/iati-activity-converter/internal/types"
)

// =============================================================================
// TRANSACTION NORMALIZATION
// =============================================================================
//
// For one award the normalizer gathers historical rows (joined by mechanism
// id, filtered to the award's geography) followed by current-period rows
// (matched by award identifier). Each row is classified, then passed through
// a per-type zero gate:
//
//   non-zero amount  -> always emitted, gate closes
//   zero amount      -> emitted only while the gate is open, gate closes
//
// An award therefore carries at most one "0.00" commitment and at most one
// "0.00" disbursement, and a zero never follows a real value of its type.
//
// =============================================================================

// TransactionClass is the IATI transaction-type code of a row.
type TransactionClass int

const (
	ClassOther        TransactionClass = 0
	ClassCommitment   TransactionClass = 2
	ClassDisbursement TransactionClass = 3
)

func (c TransactionClass) String() string {
	switch c {
	case ClassCommitment:
		return "commitment"
	case ClassDisbursement:
		return "disbursement"
	default:
		return "other"
	}
}

// TransactionEntry is one emitted transaction.
type TransactionEntry struct {
	Class      TransactionClass
	Value      decimal.Decimal
	Row        types.Row
	Historical bool
}

// Amount renders the value with two decimals.
func (e TransactionEntry) Amount() string {
	return FormatAmount(e.Value)
}

// TransactionSet is the outcome of normalizing one award.
type TransactionSet struct {
	Entries []TransactionEntry

	// SuppressedZeros counts zero-valued rows dropped by a closed gate.
	SuppressedZeros int

	// SkippedOther counts rows whose type is neither class.
	SkippedOther int
}

// zeroGate admits at most one zero-valued entry, and none after a non-zero one.
type zeroGate struct {
	closed bool
}

// admit reports whether an entry may be emitted and updates the gate.
func (g *zeroGate) admit(zero bool) bool {
	if zero && g.closed {
		return false
	}
	g.closed = true
	return true
}

// Classifier maps transaction-type labels to classes.
type Classifier struct {
	labels map[string]TransactionClass
}

// NewClassifier builds a Classifier from the dataset's label lists.
// Labels match case-insensitively.
func NewClassifier(tt config.TransactionTypes) *Classifier {
	c := &Classifier{labels: make(map[string]TransactionClass)}
	for _, l := range tt.Commitment {
		c.labels[strings.ToLower(strings.TrimSpace(l))] = ClassCommitment
	}
	for _, l := range tt.Disbursement {
		c.labels[strings.ToLower(strings.TrimSpace(l))] = ClassDisbursement
	}
	return c
}

// Classify returns the class of a type label.
func (c *Classifier) Classify(v types.Value) TransactionClass {
	if v.Missing {
		return ClassOther
	}
	return c.labels[strings.ToLower(strings.TrimSpace(v.Text))]
}

// TransactionNormalizer collects the transactions of an award.
type TransactionNormalizer struct {
	classifier *Classifier
	deriver    *KeyDeriver
	mapper     *FieldMapper
	typeColumn string
	valColumn  string

	// current indexes primary rows by award identifier.
	current *JoinIndex

	// historical indexes historical rows by raw mechanism id.
	historical *JoinIndex
}

// NewTransactionNormalizer wires a normalizer over prebuilt indexes.
func NewTransactionNormalizer(ds *config.DatasetConfig, deriver *KeyDeriver, mapper *FieldMapper, current, historical *JoinIndex) *TransactionNormalizer {
	return &TransactionNormalizer{
		classifier: NewClassifier(ds.TransactionTypes),
		deriver:    deriver,
		mapper:     mapper,
		typeColumn: ds.Columns.TransactionType,
		valColumn:  ds.Columns.TransactionValue,
		current:    current,
		historical: historical,
	}
}

// Collect returns the award's transactions: historical first, then current,
// each in row order.
func (n *TransactionNormalizer) Collect(award Keys) TransactionSet {
	var set TransactionSet
	gates := map[TransactionClass]*zeroGate{
		ClassCommitment:   {},
		ClassDisbursement: {},
	}

	for _, row := range n.historical.Lookup(award.Mechanism) {
		if n.deriver.DeriveGeography(row).Code != award.Geo.Code {
			continue
		}
		n.consider(&set, gates, row, true)
	}
	for _, row := range n.current.Lookup(award.Award) {
		n.consider(&set, gates, row, false)
	}
	return set
}

func (n *TransactionNormalizer) consider(set *TransactionSet, gates map[TransactionClass]*zeroGate, row types.Row, historical bool) {
	class := n.classifier.Classify(row.Get(n.typeColumn))
	if class == ClassOther {
		set.SkippedOther++
		return
	}

	// Zero is judged on the written cents so "0.004" counts as "0.00".
	value := n.mapper.Amount(row.Get(n.valColumn)).Round(2)
	if !gates[class].admit(value.IsZero()) {
		set.SuppressedZeros++
		return
	}

	set.Entries = append(set.Entries, TransactionEntry{
		Class:      class,
		Value:      value,
		Row:        row,
		Historical: historical,
	})
}
