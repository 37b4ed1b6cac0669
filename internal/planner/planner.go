package planner

import "github.com/cuemby/slotdb/internal/parser"

// Build runs Lower -> Optimize -> Bind and wraps the result in a Plan.
func Build(stmt parser.Statement, cat Catalog) (*Plan, error) {
	logical, err := Lower(stmt)
	if err != nil {
		return nil, err
	}
	logical = Optimize(logical)
	node, err := Bind(logical, cat)
	if err != nil {
		return nil, err
	}
	return &Plan{Root: node}, nil
}
