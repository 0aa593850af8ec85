package analyzer

import (
	"regexp"
	"strings"

	"github.com/rtk-mem/rtk-mem/internal/artifact"
)

var (
	rustImplForRe    = regexp.MustCompile(`^\s*impl\s+(\w+)\s+for\s+(\w+)`)
	rustStructFldRe  = regexp.MustCompile(`^\s*(?:pub(?:\([\w:]+\))?\s+)?(\w+)\s*:\s*(?:&(?:'\w+\s+)?(?:mut\s+)?)?(\w+)`)
	rustTypeAliasRe  = regexp.MustCompile(`^\s*(?:pub\s+)?type\s+(\w+)\s*=\s*(\w+)`)
	tsExtendsRe      = regexp.MustCompile(`^\s*(?:export\s+)?class\s+(\w+)\s+extends\s+(\w+)`)
	tsImplementsRe   = regexp.MustCompile(`^\s*(?:export\s+)?class\s+(\w+)(?:\s+extends\s+\w+)?\s+implements\s+(\w+)`)
	tsTypeAliasRe    = regexp.MustCompile(`^\s*(?:export\s+)?type\s+(\w+)\s*=\s*(\w+)`)
	pyClassBasesRe   = regexp.MustCompile(`^\s*class\s+(\w+)\s*\(([^)]+)\)\s*:`)
)

var primitiveTypes = map[string]struct{}{
	"bool": {}, "i8": {}, "i16": {}, "i32": {}, "i64": {}, "i128": {}, "u8": {}, "u16": {}, "u32": {},
	"u64": {}, "u128": {}, "f32": {}, "f64": {}, "usize": {}, "isize": {}, "str": {}, "String": {},
	"char": {}, "Vec": {}, "Option": {}, "Result": {}, "Box": {}, "Arc": {}, "Rc": {}, "HashMap": {},
	"HashSet": {}, "BTreeMap": {}, "BTreeSet": {}, "Path": {}, "PathBuf": {}, "string": {}, "number": {},
	"boolean": {}, "any": {}, "void": {}, "int": {}, "float": {}, "None": {}, "object": {},
}

func isPrimitiveType(t string) bool {
	if _, ok := primitiveTypes[t]; ok {
		return true
	}
	return strings.HasPrefix(t, "_")
}

// extractTypeRelations mirrors a line-scanning regex pass per language:
// Rust impl-for / struct-field-containment / type-alias, TypeScript/
// JavaScript extends / implements / type-alias, Python class-base extends,
// Go sources yield no type relations.
func extractTypeRelations(content, lang, filePath string, maxRelations int) []artifact.TypeRelation {
	var relations []artifact.TypeRelation

	var inStruct string
	braceDepth := 0

	appendCapped := func(r artifact.TypeRelation) bool {
		relations = append(relations, r)
		return maxRelations <= 0 || len(relations) < maxRelations
	}

	for _, line := range strings.Split(content, "\n") {
		switch lang {
		case "rust":
			if inStruct != "" {
				braceDepth += strings.Count(line, "{")
				braceDepth -= strings.Count(line, "}")
				if braceDepth <= 0 {
					inStruct = ""
					braceDepth = 0
					continue
				}
				if m := rustStructFldRe.FindStringSubmatch(line); m != nil {
					target := m[2]
					if !isPrimitiveType(target) {
						if !appendCapped(artifact.TypeRelation{
							Source: inStruct, Target: target,
							Relation: artifact.RelationContains, File: filePath,
						}) {
							return relations
						}
					}
				}
				continue
			}

			if m := rustImplForRe.FindStringSubmatch(line); m != nil {
				if !appendCapped(artifact.TypeRelation{
					Source: m[2], Target: m[1],
					Relation: artifact.RelationImplements, File: filePath,
				}) {
					return relations
				}
			}
			if m := rustTypeAliasRe.FindStringSubmatch(line); m != nil {
				target := m[2]
				if !isPrimitiveType(target) {
					if !appendCapped(artifact.TypeRelation{
						Source: m[1], Target: target,
						Relation: artifact.RelationAlias, File: filePath,
					}) {
						return relations
					}
				}
			}
			if strings.Contains(line, "struct ") && strings.Contains(line, "{") {
				if name := rustStructNameFrom(line); name != "" {
					inStruct = name
					braceDepth = strings.Count(line, "{") - strings.Count(line, "}")
					if braceDepth <= 0 {
						inStruct = ""
					}
				}
			}

		case "typescript", "javascript":
			if m := tsExtendsRe.FindStringSubmatch(line); m != nil {
				if !appendCapped(artifact.TypeRelation{
					Source: m[1], Target: m[2],
					Relation: artifact.RelationExtends, File: filePath,
				}) {
					return relations
				}
			}
			if m := tsImplementsRe.FindStringSubmatch(line); m != nil {
				if !appendCapped(artifact.TypeRelation{
					Source: m[1], Target: m[2],
					Relation: artifact.RelationImplements, File: filePath,
				}) {
					return relations
				}
			}
			if m := tsTypeAliasRe.FindStringSubmatch(line); m != nil {
				target := m[2]
				if !isPrimitiveType(target) {
					if !appendCapped(artifact.TypeRelation{
						Source: m[1], Target: target,
						Relation: artifact.RelationAlias, File: filePath,
					}) {
						return relations
					}
				}
			}

		case "python":
			if m := pyClassBasesRe.FindStringSubmatch(line); m != nil {
				className := m[1]
				for _, base := range strings.Split(m[2], ",") {
					base = strings.TrimSpace(base)
					if base == "" || base == "object" || isPrimitiveType(base) {
						continue
					}
					if !appendCapped(artifact.TypeRelation{
						Source: className, Target: base,
						Relation: artifact.RelationExtends, File: filePath,
					}) {
						return relations
					}
				}
			}

		case "go":
			// No Go rules: Go type declarations produce no relations.
		}
	}

	return relations
}

func rustStructNameFrom(line string) string {
	idx := strings.Index(line, "struct ")
	if idx < 0 {
		return ""
	}
	rest := strings.TrimSpace(line[idx+len("struct "):])
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return ""
	}
	return strings.TrimFunc(fields[0], func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_')
	})
}
