package graphedit

import "strings"

// Variant names reported in Result.MatchedVariant.
const (
	VariantRaw       = "raw"
	VariantUnescaped = "unescaped"
	VariantEscaped   = "escaped"
)

// Result is the outcome of a successful Apply.
type Result struct {
	Content                        string `json:"-"`
	Replacements                   int    `json:"replacements_count"`
	ReplacementsInJSONStrings      int    `json:"replacements_in_json_strings"`
	ReplacementsOutsideJSONStrings int    `json:"replacements_outside_json_strings"`
	MatchedVariant                 string `json:"matched_variant"`
}

type variant struct {
	label string
	value string
}

// variants lists the candidate forms of oldText in precedence order, without
// duplicates or empty values.
func variants(oldText string) []variant {
	all := []variant{
		{VariantRaw, oldText},
		{VariantUnescaped, strings.ReplaceAll(oldText, `\n`, "\n")},
		{VariantEscaped, strings.ReplaceAll(oldText, "\n", `\n`)},
	}
	seen := make(map[string]bool, len(all))
	out := all[:0]
	for _, v := range all {
		if v.value == "" || seen[v.value] {
			continue
		}
		seen[v.value] = true
		out = append(out, v)
	}
	return out
}

// Apply replaces oldText with newText in content.
//
// The first variant of oldText that occurs in content is used, even when a
// later variant would also match. Without replaceAll the variant must occur
// exactly once; otherwise an ErrAmbiguousMatch error is returned and content
// is left alone. Both texts are used as given; callers that accept pasted
// input should run them through NormalizeEditText first.
func Apply(content, oldText, newText string, replaceAll bool) (*Result, error) {
	if oldText == newText {
		return nil, &EditError{Kind: ErrInvalidInput, Msg: "old and new text must be different"}
	}

	for _, v := range variants(oldText) {
		first := strings.Index(content, v.value)
		if first == -1 {
			continue
		}

		if replaceAll {
			res := replaceAllOccurrences(content, v.value, newText)
			res.MatchedVariant = v.label
			return res, nil
		}

		if last := strings.LastIndex(content, v.value); last != first {
			return nil, &EditError{
				Kind:        ErrAmbiguousMatch,
				Msg:         "old text matches multiple locations; use --replace-all or narrow the match",
				Variant:     v.label,
				Text:        v.value,
				Occurrences: countOverlapping(content, v.value),
			}
		}

		res := &Result{Replacements: 1, MatchedVariant: v.label}
		replacement := newText
		if IsInsideString(content, first) {
			replacement = inStringReplacement(newText)
			res.ReplacementsInJSONStrings = 1
		} else {
			res.ReplacementsOutsideJSONStrings = 1
		}
		res.Content = content[:first] + replacement + content[first+len(v.value):]
		return res, nil
	}

	return nil, &EditError{Kind: ErrNotFound, Msg: "old text not found in workflow graph"}
}

// replaceAllOccurrences replaces every non-overlapping occurrence of search,
// left to right. String-literal context is judged against content as it was
// before any replacement.
func replaceAllOccurrences(content, search, newText string) *Result {
	var (
		b       strings.Builder
		scanner stringScanner
		res     Result
		index   int
	)
	inString := inStringReplacement(newText)

	for {
		rel := strings.Index(content[index:], search)
		if rel == -1 {
			b.WriteString(content[index:])
			break
		}
		match := index + rel

		replacement := newText
		if scanner.advance(content, match) {
			replacement = inString
			res.ReplacementsInJSONStrings++
		} else {
			res.ReplacementsOutsideJSONStrings++
		}

		b.WriteString(content[index:match])
		b.WriteString(replacement)
		index = match + len(search)
	}

	res.Content = b.String()
	res.Replacements = res.ReplacementsInJSONStrings + res.ReplacementsOutsideJSONStrings
	return &res
}

func countOverlapping(content, search string) int {
	n := 0
	for i := 0; ; i++ {
		rel := strings.Index(content[i:], search)
		if rel == -1 {
			return n
		}
		n++
		i += rel
	}
}
