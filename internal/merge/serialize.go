package merge

import "strings"

// Serialize renders a merged module back to source text: docstring, hoisted
// __future__ imports, remaining imports, export list, then declarations in
// planned order.
//
// Whitespace normalization policy: each statement emits its original text
// with trailing whitespace trimmed; consecutive imports sit on adjacent
// lines; class and function definitions get two blank lines of separation;
// everything else gets one; the file ends with exactly one newline.
// Re-serializing a single unmerged module reproduces its input text up to
// this policy.
func Serialize(m *Module) string {
	var sb strings.Builder

	prev := ""
	if m.Docstring != "" {
		sb.WriteString(strings.TrimRight(m.Docstring, " \t\n"))
		prev = "docstring"
	}

	for _, d := range m.Decls {
		if prev != "" {
			sb.WriteString(separator(prev, kindGroup(d)))
		}
		sb.WriteString(strings.TrimRight(d.Source, " \t\n"))
		prev = kindGroup(d)
	}

	sb.WriteString("\n")
	return sb.String()
}

// kindGroup buckets declarations for separator purposes.
func kindGroup(d Declaration) string {
	switch d.Kind {
	case DeclImport:
		return "import"
	case DeclClass, DeclFunction:
		return "def"
	}
	return "simple"
}

func separator(prev, cur string) string {
	if prev == "import" && cur == "import" {
		return "\n"
	}
	if prev == "def" || cur == "def" {
		return "\n\n\n"
	}
	return "\n\n"
}
