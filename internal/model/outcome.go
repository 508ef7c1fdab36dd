package model

import "fmt"

// OutcomeKind is the variant of a FetchOutcome.
type OutcomeKind int

const (
	// OutcomeUnreachable means neither the direct nor the browser fetch
	// could load the page.
	OutcomeUnreachable OutcomeKind = iota

	// OutcomeEmptyOrBlocked means a page was loaded but carried no usable
	// text (challenge page, empty body, too short with no browser tier).
	OutcomeEmptyOrBlocked

	// OutcomeSuccess means the text is usable.
	OutcomeSuccess
)

var outcomeNames = map[OutcomeKind]string{
	OutcomeUnreachable:    "unreachable",
	OutcomeEmptyOrBlocked: "empty_or_blocked",
	OutcomeSuccess:        "success",
}

// String returns the snake_case name of the kind.
func (k OutcomeKind) String() string {
	return enumName(outcomeNames, k)
}

// MarshalText implements encoding.TextMarshaler.
func (k OutcomeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *OutcomeKind) UnmarshalText(text []byte) error {
	return enumParse(outcomeNames, string(text), k)
}

// Strategy identifies which fetch tier produced an outcome.
type Strategy int

const (
	// StrategyNone means no tier produced the outcome (e.g. invalid URL).
	StrategyNone Strategy = iota

	// StrategyDirect is the lightweight HTTP GET.
	StrategyDirect

	// StrategyBrowser is the headless browser render.
	StrategyBrowser
)

var strategyNames = map[Strategy]string{
	StrategyNone:    "none",
	StrategyDirect:  "direct",
	StrategyBrowser: "browser",
}

// String returns the name of the strategy.
func (s Strategy) String() string {
	return enumName(strategyNames, s)
}

// MarshalText implements encoding.TextMarshaler.
func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Strategy) UnmarshalText(text []byte) error {
	return enumParse(strategyNames, string(text), s)
}

// Escalation is the signal that moved a fetch from the direct tier to the
// browser tier.
type Escalation int

const (
	// EscalationNone means the direct tier was terminal.
	EscalationNone Escalation = iota

	// EscalationTransient means HTTP 202 persisted past the retry cap.
	EscalationTransient

	// EscalationHardFailure means a transport error or an unexpected status.
	EscalationHardFailure

	// EscalationChallenge means the 200 body matched a bot-challenge fingerprint.
	EscalationChallenge

	// EscalationTooShort means the 200 body yielded too little visible text.
	EscalationTooShort
)

var escalationNames = map[Escalation]string{
	EscalationNone:        "none",
	EscalationTransient:   "transient_status",
	EscalationHardFailure: "hard_failure",
	EscalationChallenge:   "challenge_detected",
	EscalationTooShort:    "content_too_short",
}

// String returns the snake_case name of the escalation.
func (e Escalation) String() string {
	return enumName(escalationNames, e)
}

// MarshalText implements encoding.TextMarshaler.
func (e Escalation) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *Escalation) UnmarshalText(text []byte) error {
	return enumParse(escalationNames, string(text), e)
}

// FetchOutcome is the terminal result of one escalating fetch.
// It is never partially valid: Text is non-empty only for OutcomeSuccess.
type FetchOutcome struct {
	// Kind is the outcome variant.
	Kind OutcomeKind `json:"kind"`

	// Text is the extracted visible text. Empty unless Kind is OutcomeSuccess.
	Text string `json:"text,omitempty"`

	// Strategy is the tier that produced the terminal outcome.
	Strategy Strategy `json:"strategy"`

	// DirectAttempts counts the direct GETs performed.
	DirectAttempts int `json:"direct_attempts"`

	// Escalation is the signal that ended the direct tier, if any.
	Escalation Escalation `json:"escalation"`

	// Err is the last error seen for non-success outcomes.
	Err error `json:"-"`
}

// Success returns a successful outcome carrying text.
func Success(text string, strategy Strategy) FetchOutcome {
	return FetchOutcome{Kind: OutcomeSuccess, Text: text, Strategy: strategy}
}

// EmptyOrBlocked returns an outcome for a page that loaded without usable text.
func EmptyOrBlocked(strategy Strategy, escalation Escalation) FetchOutcome {
	return FetchOutcome{Kind: OutcomeEmptyOrBlocked, Strategy: strategy, Escalation: escalation}
}

// Unreachable returns an outcome for a page that could not be loaded.
func Unreachable(strategy Strategy, err error) FetchOutcome {
	return FetchOutcome{Kind: OutcomeUnreachable, Strategy: strategy, Err: err}
}

// OK reports whether the outcome carries usable text.
func (o FetchOutcome) OK() bool {
	return o.Kind == OutcomeSuccess
}

// enumName looks up the name of an enum value.
func enumName[T comparable](names map[T]string, v T) string {
	if name, ok := names[v]; ok {
		return name
	}
	return "unknown"
}

// enumParse sets *dst to the value whose name is text.
func enumParse[T comparable](names map[T]string, text string, dst *T) error {
	for v, name := range names {
		if name == text {
			*dst = v
			return nil
		}
	}
	return fmt.Errorf("unknown value %q", text)
}
