package storage

import (
	"context"
	"strings"
)

// FileNameQuery selects documents by file name. Name is matched without
// extension; '*' and '?' are wildcards. Include and Exclude hold extensions
// in ".ext" form, "" stands for files without extension.
type FileNameQuery struct {
	Name    string
	Include []string
	Exclude []string
}

func hasWildcard(s string) bool {
	return strings.ContainsAny(s, "*?")
}

// likePattern translates a wildcard string into a LIKE pattern using '!' as
// escape character.
func likePattern(s string) string {
	r := strings.NewReplacer(
		"!", "!!",
		"_", "!_",
		"%", "!%",
		"?", "_",
		"*", "%",
	)
	return r.Replace(s)
}

func extCondition(exts []string, args *[]any) string {
	wildcard := false
	for _, ext := range exts {
		wildcard = wildcard || hasWildcard(ext)
	}

	if !wildcard {
		for _, ext := range exts {
			*args = append(*args, strings.ToLower(ext))
		}
		return "fn.ext IN (" + placeholders(len(exts)) + ")"
	}

	conds := make([]string, len(exts))
	for i, ext := range exts {
		conds[i] = "fn.ext LIKE ? ESCAPE '!'"
		*args = append(*args, likePattern(strings.ToLower(ext)))
	}
	return "(" + strings.Join(conds, " OR ") + ")"
}

// FindFileNames returns the sorted full paths of all documents whose file
// name matches q. Comparison is case-insensitive.
func (idb *IndexDB) FindFileNames(ctx context.Context, q FileNameQuery) ([]string, error) {
	ctx, cancel := idb.withInterrupt(ctx)
	defer cancel()

	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(`SELECT DISTINCT d.fullpath FROM fileName fn, fileName2doc fn2d, documents d
		WHERE fn2d.docID = d.id AND fn2d.fileNameID = fn.id AND `)

	name := strings.ToLower(q.Name)
	if hasWildcard(name) {
		sb.WriteString("fn.name LIKE ? ESCAPE '!'")
		args = append(args, likePattern(name))
	} else {
		sb.WriteString("fn.name = ?")
		args = append(args, name)
	}

	if len(q.Include) > 0 {
		sb.WriteString(" AND ")
		sb.WriteString(extCondition(q.Include, &args))
	}
	if len(q.Exclude) > 0 {
		sb.WriteString(" AND NOT ")
		sb.WriteString(extCondition(q.Exclude, &args))
	}
	sb.WriteString(" ORDER BY d.fullpath")

	paths, err := queryStrings(ctx, idb.db, sb.String(), args)
	if err != nil {
		return nil, idb.wrapErr("query file names", err)
	}
	return paths, nil
}
