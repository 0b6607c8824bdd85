// Package shell locates ${{ }} expansion markers inside run blocks using a
// real shell parser, so injection findings can distinguish a marker sitting
// in command position from one quoted away inside a string or buried in a
// comment. The interpolation happens before the shell ever runs, so even a
// quoted expansion is injectable; placement only grades severity.
package shell

import (
	"fmt"
	"regexp"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// Placement describes where an expansion lands in the parsed script.
type Placement int

const (
	// PlacementNone means the expansion never reached an executable
	// position, e.g. it only appears inside a comment.
	PlacementNone Placement = iota
	// PlacementQuoted means the expansion sits inside a quoted word.
	PlacementQuoted
	// PlacementUnquoted means the expansion forms part of a bare word or
	// an assignment value.
	PlacementUnquoted
	// PlacementCommand means the expansion forms (part of) the command
	// name itself.
	PlacementCommand
)

func (p Placement) String() string {
	switch p {
	case PlacementQuoted:
		return "quoted"
	case PlacementUnquoted:
		return "unquoted"
	case PlacementCommand:
		return "command"
	}
	return "none"
}

// Expansion is one ${{ ... }} occurrence and its strongest placement.
type Expansion struct {
	// Text is the inner expression text, trimmed.
	Text string
	// Placement is the strongest position any occurrence reached.
	Placement Placement
}

var expansionPattern = regexp.MustCompile(`\$\{\{([^}]*)\}\}`)

const placeholderFormat = "__FORKRISK_EXPR_%d__"

var placeholderPattern = regexp.MustCompile(`__FORKRISK_EXPR_(\d+)__`)

// ClassifyExpansions parses a run block as bash and reports where each
// ${{ }} marker lands. A parse failure returns an error; callers must then
// assume every expansion is reachable.
func ClassifyExpansions(script string) ([]Expansion, error) {
	matches := expansionPattern.FindAllStringSubmatch(script, -1)
	if len(matches) == 0 {
		return nil, nil
	}

	expansions := make([]Expansion, len(matches))
	substituted := script
	for i, m := range matches {
		expansions[i] = Expansion{Text: strings.TrimSpace(m[1])}
		substituted = strings.Replace(substituted, m[0], fmt.Sprintf(placeholderFormat, i), 1)
	}

	parser := syntax.NewParser(syntax.KeepComments(true), syntax.Variant(syntax.LangBash))
	file, err := parser.Parse(strings.NewReader(substituted), "run")
	if err != nil {
		return nil, fmt.Errorf("failed to parse run block: %w", err)
	}

	record := func(text string, p Placement) {
		for _, m := range placeholderPattern.FindAllStringSubmatch(text, -1) {
			var idx int
			fmt.Sscanf(m[1], "%d", &idx)
			if idx < len(expansions) && p > expansions[idx].Placement {
				expansions[idx].Placement = p
			}
		}
	}

	syntax.Walk(file, func(node syntax.Node) bool {
		switch x := node.(type) {
		case *syntax.CallExpr:
			for _, assign := range x.Assigns {
				if assign.Value != nil {
					recordWord(assign.Value, PlacementUnquoted, record)
				}
			}
			for i, word := range x.Args {
				placement := PlacementUnquoted
				if i == 0 {
					placement = PlacementCommand
				}
				recordWord(word, placement, record)
			}
		case *syntax.Comment:
			// Comment text never executes; leave placement at None.
		}
		return true
	})

	return expansions, nil
}

// recordWord classifies the literal parts of one word. Nested command
// substitutions are left to the outer walk, which visits their CallExprs.
func recordWord(word *syntax.Word, bare Placement, record func(string, Placement)) {
	for _, part := range word.Parts {
		switch p := part.(type) {
		case *syntax.Lit:
			record(p.Value, bare)
		case *syntax.SglQuoted:
			record(p.Value, PlacementQuoted)
		case *syntax.DblQuoted:
			for _, inner := range p.Parts {
				if lit, ok := inner.(*syntax.Lit); ok {
					record(lit.Value, PlacementQuoted)
				}
			}
		}
	}
}

// Reachable reports whether the expansion can influence execution at all.
func (e Expansion) Reachable() bool {
	return e.Placement != PlacementNone
}
