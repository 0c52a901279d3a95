// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hyperlab Contributors

package auth

import (
	"strings"

	zxcvbn "github.com/nbutton23/zxcvbn-go"
	"github.com/samber/oops"
)

// Strength score bounds. Scores follow the zxcvbn 0-4 scale.
const (
	MaxStrengthScore     = 4
	DefaultMinimumScore  = 3
	userInputAdvice      = "Avoid passwords that contain your username or email."
	dictionaryAdvice     = "Avoid common words and well-known passwords."
	passwordListAdvice   = "This is a commonly used password."
	nameAdvice           = "Names and surnames are easy to guess."
	spatialAdvice        = "Avoid keyboard patterns such as qwerty or asdf."
	repeatAdvice         = "Avoid repeated characters or words."
	sequenceAdvice       = "Avoid sequences such as abc or 123."
	dateAdvice           = "Avoid dates and years associated with you."
	shortPasswordAdvice  = "Add more characters."
	shortPasswordMaxRune = 8
)

// StrengthResult is the outcome of evaluating a candidate password.
type StrengthResult struct {
	Score       int
	Acceptable  bool
	Suggestions []string
}

// StrengthPolicy scores candidate passwords. Implementations must be pure.
type StrengthPolicy interface {
	// Evaluate scores password. userInputs are account attributes such as
	// the username that should count against the password.
	Evaluate(password string, userInputs ...string) StrengthResult
}

// ZxcvbnPolicy accepts passwords whose zxcvbn score reaches MinScore.
type ZxcvbnPolicy struct {
	minScore int
}

// NewZxcvbnPolicy creates a policy with the given minimum score (0-4).
func NewZxcvbnPolicy(minScore int) (*ZxcvbnPolicy, error) {
	if minScore < 0 || minScore > MaxStrengthScore {
		return nil, oops.Code("AUTH_STRENGTH_CONFIG").
			With("min_score", minScore).
			Errorf("minimum strength score must be between 0 and %d", MaxStrengthScore)
	}
	return &ZxcvbnPolicy{minScore: minScore}, nil
}

// MinScore returns the configured threshold.
func (p *ZxcvbnPolicy) MinScore() int {
	return p.minScore
}

// Evaluate implements StrengthPolicy. Suggestions for a rejected password
// come only from the patterns zxcvbn matched, so the list may be empty.
func (p *ZxcvbnPolicy) Evaluate(password string, userInputs ...string) StrengthResult {
	inputs := make([]string, 0, len(userInputs))
	for _, in := range userInputs {
		if in = strings.TrimSpace(in); in != "" {
			inputs = append(inputs, strings.ToLower(in))
			// Local part of an email is a guess on its own.
			if local, _, ok := strings.Cut(in, "@"); ok && local != "" {
				inputs = append(inputs, strings.ToLower(local))
			}
		}
	}

	result := zxcvbn.PasswordStrength(password, inputs)
	res := StrengthResult{
		Score:      result.Score,
		Acceptable: result.Score >= p.minScore,
	}
	if res.Acceptable {
		return res
	}

	var advice suggestionSet
	if len([]rune(password)) < shortPasswordMaxRune {
		advice.add(shortPasswordAdvice)
	}
	for _, m := range result.MatchSequence {
		switch m.Pattern {
		case "dictionary":
			switch strings.ToLower(m.DictionaryName) {
			case "user_inputs", "userinputs":
				advice.add(userInputAdvice)
			case "passwords":
				advice.add(passwordListAdvice)
			case "malenames", "femalenames", "surnames":
				advice.add(nameAdvice)
			default:
				advice.add(dictionaryAdvice)
			}
		case "spatial":
			advice.add(spatialAdvice)
		case "repeat":
			advice.add(repeatAdvice)
		case "sequence":
			advice.add(sequenceAdvice)
		case "date":
			advice.add(dateAdvice)
		}
	}
	res.Suggestions = advice.list()
	return res
}

type suggestionSet struct {
	items []string
	seen  map[string]struct{}
}

// list returns the suggestions in insertion order, never nil.
func (s *suggestionSet) list() []string {
	if s.items == nil {
		return []string{}
	}
	return s.items
}

func (s *suggestionSet) add(msg string) {
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	if _, ok := s.seen[msg]; ok {
		return
	}
	s.seen[msg] = struct{}{}
	s.items = append(s.items, msg)
}

// checkStrength evaluates password and returns a *WeakCredentialError when
// it falls below the policy threshold.
func checkStrength(policy StrengthPolicy, password string, userInputs ...string) error {
	res := policy.Evaluate(password, userInputs...)
	if res.Acceptable {
		return nil
	}
	suggestions := res.Suggestions
	if suggestions == nil {
		suggestions = []string{}
	}
	return oops.Code(CodeWeakCredential).
		With("score", res.Score).
		Wrap(&WeakCredentialError{Score: res.Score, Suggestions: suggestions})
}
