package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// MarkerTable maps a language tag to its ordered list of preferred split
// markers, highest priority first. The chunker prefers splitting a file at
// the earliest-listed marker it can find inside the target window.
type MarkerTable map[string][]string

// defaultMarkers covers the languages the extension allow-list admits.
// Markers start with a newline so splits land on declaration boundaries.
var defaultMarkers = MarkerTable{
	"python":     {"\nclass ", "\ndef ", "\nasync def ", "\nif __name__"},
	"javascript": {"\nfunction ", "\nclass ", "\nexport ", "\nconst ", "\nlet ", "\nvar "},
	"typescript": {"\ninterface ", "\ntype ", "\nclass ", "\nfunction ", "\nexport ", "\nconst "},
	"java":       {"\npublic class ", "\nprivate class ", "\nprotected class ", "\npublic static ", "\npublic void ", "\nprivate void "},
	"cpp":        {"\nclass ", "\nstruct ", "\nnamespace ", "\nvoid ", "\nint ", "\n#include"},
	"c":          {"\nstruct ", "\nvoid ", "\nint ", "\n#include", "\n#define"},
	"go":         {"\nfunc ", "\ntype ", "\nvar ", "\nconst ", "\npackage ", "\nimport"},
	"rust":       {"\nfn ", "\nstruct ", "\nimpl ", "\nenum ", "\ntrait ", "\nuse "},
	"php":        {"\nclass ", "\nfunction ", "\npublic function ", "\nprivate function "},
	"ruby":       {"\nclass ", "\ndef ", "\nmodule ", "\nrequire"},
	"csharp":     {"\npublic class ", "\nprivate class ", "\nnamespace ", "\npublic void ", "\nprivate void "},
	"markdown":   {"\n# ", "\n## ", "\n### ", "\n#### "},
	"sql":        {"\nCREATE ", "\nSELECT ", "\nINSERT ", "\nUPDATE ", "\nDELETE ", "\nALTER "},
	"html":       {"\n<div", "\n<section", "\n<article", "\n<header", "\n<footer"},
	"css":        {"\n.", "\n#", "\n@media", "\n@import"},
	"yaml":       {"\n- "},
}

// blankLineFallback is appended to every language's marker list so a
// paragraph break still beats a mid-line hard cut.
const blankLineFallback = "\n\n"

// LoadMarkerTable returns the split-marker tables, merging overrides from
// the YAML file at path when one is configured. Languages present in the
// file replace the built-in list wholesale; absent languages keep defaults.
func LoadMarkerTable(path string) (MarkerTable, error) {
	table := make(MarkerTable, len(defaultMarkers))
	for lang, markers := range defaultMarkers {
		table[lang] = withFallback(markers)
	}

	if path == "" {
		return table, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read marker table %s: %w", path, err)
	}

	var overrides MarkerTable
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parse marker table %s: %w", path, err)
	}
	for lang, markers := range overrides {
		table[lang] = withFallback(markers)
	}
	return table, nil
}

// Markers returns the marker list for a language, or just the blank-line
// fallback for languages without a table entry.
func (t MarkerTable) Markers(language string) []string {
	if markers, ok := t[language]; ok {
		return markers
	}
	return []string{blankLineFallback}
}

func withFallback(markers []string) []string {
	out := make([]string, 0, len(markers)+1)
	out = append(out, markers...)
	for _, m := range out {
		if m == blankLineFallback {
			return out
		}
	}
	return append(out, blankLineFallback)
}
