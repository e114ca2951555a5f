// Package identity holds the account and agent identifiers used on the bus.
//
// An account is rendered "label.audience" (12345.netology.ru) and an agent,
// one running instance acting on behalf of an account, is rendered
// "label.account" (web.12345.netology.ru). Parsing always splits at the first
// dot, so audiences may themselves contain dots.
package identity

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidID is returned for identifiers that do not follow the dotted form.
var ErrInvalidID = errors.New("invalid identifier")

// AccountID identifies an account within an audience.
type AccountID struct {
	Label    string
	Audience string
}

// ParseAccountID parses "label.audience".
func ParseAccountID(s string) (AccountID, error) {
	label, audience, ok := strings.Cut(s, ".")
	if !ok || label == "" || audience == "" {
		return AccountID{}, fmt.Errorf("%w: account id %q must look like 'label.audience'", ErrInvalidID, s)
	}
	return AccountID{Label: label, Audience: audience}, nil
}

func (a AccountID) String() string {
	return a.Label + "." + a.Audience
}

// IsZero reports whether a is the zero value.
func (a AccountID) IsZero() bool {
	return a.Label == "" && a.Audience == ""
}

func (a AccountID) MarshalText() ([]byte, error) {
	if a.IsZero() {
		return nil, fmt.Errorf("%w: empty account id", ErrInvalidID)
	}
	return []byte(a.String()), nil
}

func (a *AccountID) UnmarshalText(text []byte) error {
	parsed, err := ParseAccountID(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// AgentID identifies a single agent of an account.
type AgentID struct {
	Label   string
	Account AccountID
}

// NewAgentID builds an agent id for the given account.
func NewAgentID(label string, account AccountID) AgentID {
	return AgentID{Label: label, Account: account}
}

// ParseAgentID parses "label.account_label.audience".
func ParseAgentID(s string) (AgentID, error) {
	label, rest, ok := strings.Cut(s, ".")
	if !ok || label == "" {
		return AgentID{}, fmt.Errorf("%w: agent id %q must look like 'label.account_label.audience'", ErrInvalidID, s)
	}
	account, err := ParseAccountID(rest)
	if err != nil {
		return AgentID{}, fmt.Errorf("%w: agent id %q must look like 'label.account_label.audience'", ErrInvalidID, s)
	}
	return AgentID{Label: label, Account: account}, nil
}

// AccountID returns the account the agent acts for.
func (a AgentID) AccountID() AccountID {
	return a.Account
}

func (a AgentID) String() string {
	return a.Label + "." + a.Account.String()
}

// IsZero reports whether a is the zero value.
func (a AgentID) IsZero() bool {
	return a.Label == "" && a.Account.IsZero()
}

func (a AgentID) MarshalText() ([]byte, error) {
	if a.IsZero() {
		return nil, fmt.Errorf("%w: empty agent id", ErrInvalidID)
	}
	return []byte(a.String()), nil
}

func (a *AgentID) UnmarshalText(text []byte) error {
	parsed, err := ParseAgentID(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
