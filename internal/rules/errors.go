package rules

import "errors"

var (
	// ErrRuleNotFound is returned when a device has no stored rule.
	ErrRuleNotFound = errors.New("rules: rule not found")

	// ErrUnknownKind is returned when a rule carries an unrecognized
	// schedule discriminant.
	ErrUnknownKind = errors.New("rules: unknown rule kind")

	// ErrInvalidRule is returned when a rule's schedule payload does not
	// match its declared kind.
	ErrInvalidRule = errors.New("rules: invalid rule")
)
