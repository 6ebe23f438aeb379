// Package prompts loads the embedded prompt templates.
//
// Each JSON file maps keys of the form "<base>-<lang>" to a template with {{.Var}}
// placeholders, e.g. "architect-en" in enhance.json. Every base must exist in every
// supported language with the same placeholders; Check enforces that at startup.
package prompts

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"regexp"
	"slices"
	"sort"
	"strings"
	"sync"
)

//go:embed *.json
var promptFiles embed.FS

var placeholderRe = regexp.MustCompile(`\{\{\.(\w+)\}\}`)

var (
	cache   = make(map[string]map[string]string)
	cacheMu sync.RWMutex
)

// Language is implemented by resume language codes that map onto a prompt key suffix.
type Language interface {
	Suffix() string
}

// Get retrieves a prompt by filename and key, e.g. Get("topics.json", "unify-en").
func Get(filename, key string) (string, error) {
	prompts, err := loadFile(filename)
	if err != nil {
		return "", err
	}
	prompt, ok := prompts[key]
	if !ok {
		return "", fmt.Errorf("prompt key %q not found in %s", key, filename)
	}
	return prompt, nil
}

// MustGet is Get for prompts required at initialization; it panics on a missing prompt.
func MustGet(filename, key string) string {
	prompt, err := Get(filename, key)
	if err != nil {
		panic(fmt.Sprintf("failed to load prompt: %v", err))
	}
	return prompt
}

// ForLang retrieves the language-specific variant of a prompt, stored under "<base>-<suffix>".
func ForLang(filename, base string, lang Language) (string, error) {
	return Get(filename, base+"-"+lang.Suffix())
}

// Format substitutes every {{.Key}} placeholder in one pass.
// Values are inserted literally, so placeholder syntax inside user text is never expanded.
// Placeholders without a value are left in place.
func Format(template string, data map[string]string) string {
	if len(data) == 0 {
		return template
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, "{{."+k+"}}", data[k])
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// Placeholders returns the distinct placeholder names of a template, sorted.
func Placeholders(template string) []string {
	var names []string
	for _, m := range placeholderRe.FindAllStringSubmatch(template, -1) {
		if !slices.Contains(names, m[1]) {
			names = append(names, m[1])
		}
	}
	sort.Strings(names)
	return names
}

// List returns the prompt keys of a file, sorted.
func List(filename string) ([]string, error) {
	prompts, err := loadFile(filename)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(prompts))
	for key := range prompts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Check verifies every embedded file: each key carries one of the langs' suffixes, each
// base exists for every lang, and all variants of a base use the same placeholders.
func Check(langs ...Language) error {
	files, err := fs.Glob(promptFiles, "*.json")
	if err != nil {
		return err
	}

	suffixes := make([]string, len(langs))
	for i, l := range langs {
		suffixes[i] = "-" + l.Suffix()
	}

	var problems []string
	for _, file := range files {
		prompts, err := loadFile(file)
		if err != nil {
			return err
		}

		bases := make(map[string]bool)
		for key := range prompts {
			i := slices.IndexFunc(suffixes, func(s string) bool { return strings.HasSuffix(key, s) })
			if i < 0 {
				problems = append(problems, fmt.Sprintf("%s: key %q has no language suffix", file, key))
				continue
			}
			bases[strings.TrimSuffix(key, suffixes[i])] = true
		}

		for base := range bases {
			var want []string
			seen := false
			for _, suffix := range suffixes {
				tmpl, ok := prompts[base+suffix]
				if !ok {
					problems = append(problems, fmt.Sprintf("%s: missing %s%s", file, base, suffix))
					continue
				}
				got := Placeholders(tmpl)
				if !seen {
					want, seen = got, true
					continue
				}
				if !slices.Equal(want, got) {
					problems = append(problems, fmt.Sprintf("%s: %s%s uses %v, expected %v", file, base, suffix, got, want))
				}
			}
		}
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		return fmt.Errorf("prompt check failed:\n  %s", strings.Join(problems, "\n  "))
	}
	return nil
}

// ClearCache clears the parsed-file cache. Useful for testing.
func ClearCache() {
	cacheMu.Lock()
	cache = make(map[string]map[string]string)
	cacheMu.Unlock()
}

func loadFile(filename string) (map[string]string, error) {
	cacheMu.RLock()
	prompts, ok := cache[filename]
	cacheMu.RUnlock()
	if ok {
		return prompts, nil
	}

	data, err := promptFiles.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt file %s: %w", filename, err)
	}
	if err := json.Unmarshal(data, &prompts); err != nil {
		return nil, fmt.Errorf("failed to parse prompt file %s: %w", filename, err)
	}

	cacheMu.Lock()
	cache[filename] = prompts
	cacheMu.Unlock()
	return prompts, nil
}
