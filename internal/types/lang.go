package types

import (
	"strings"
)

// ResumeLang is the language a resume is written in.
type ResumeLang string

const (
	// LangEN is English, the primary language and the default branch.
	LangEN ResumeLang = "EN"
	// LangPT is Portuguese, the alternate language.
	LangPT ResumeLang = "PT"
)

// SupportedLangs lists every language with prompt templates.
var SupportedLangs = []ResumeLang{LangEN, LangPT}

// ParseResumeLang parses a user-supplied language code.
// Unknown and empty codes are rejected so they never reach a pipeline run.
func ParseResumeLang(s string) (ResumeLang, error) {
	code := ResumeLang(strings.ToUpper(strings.TrimSpace(s)))
	switch code {
	case LangEN, LangPT:
		return code, nil
	case "":
		return "", &ValidationError{Field: "lang", Message: "language is required"}
	default:
		return "", &ValidationError{Field: "lang", Message: "unsupported language: " + s}
	}
}

// Normalize maps a stored language value onto a supported branch.
// Only an exact match of the alternate code selects it; anything else is English.
func (l ResumeLang) Normalize() ResumeLang {
	if l == LangPT {
		return LangPT
	}
	return LangEN
}

// Suffix returns the prompt key suffix for the language.
func (l ResumeLang) Suffix() string {
	switch l.Normalize() {
	case LangPT:
		return "pt"
	case LangEN:
		return "en"
	}
	return "en"
}

func (l ResumeLang) String() string {
	return string(l)
}
