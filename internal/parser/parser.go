package parser

import (
	"fmt"
	"strings"

	"github.com/cuemby/slotdb/internal/types"
)

type parser struct {
	tokens []Token
	pos    int
}

// Parse tokenizes and parses a single SQL statement. The dialect rejects
// joins, aliases, and GROUP BY at the surface; an internal NestedLoopJoin
// operator exists for programmatic use only.
func Parse(sql string) (Statement, error) {
	tokens, err := tokenize(sql)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	stmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	p.skip(TokSemicolon)
	if !p.atEOF() {
		return nil, fmt.Errorf("%w: unexpected trailing input at token %d", types.ErrParser, p.pos)
	}
	return stmt, nil
}

func (p *parser) cur() Token  { return p.tokens[p.pos] }
func (p *parser) atEOF() bool { return p.cur().Type == TokEOF }

func (p *parser) advance() Token {
	t := p.tokens[p.pos]
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return t
}

func (p *parser) skip(t TokenType) bool {
	if p.cur().Type == t {
		p.advance()
		return true
	}
	return false
}

func (p *parser) expectKeyword(kw string) error {
	if p.cur().Type == TokKeyword && p.cur().Text == kw {
		p.advance()
		return nil
	}
	return fmt.Errorf("%w: expected keyword %q, got %q", types.ErrParser, kw, p.cur().Text)
}

func (p *parser) isKeyword(kw string) bool {
	return p.cur().Type == TokKeyword && p.cur().Text == kw
}

func (p *parser) expectIdent() (string, error) {
	if p.cur().Type == TokIdent {
		t := p.advance()
		return t.Text, nil
	}
	// Allow type-name-like keywords to act as identifiers is not needed;
	// but some keywords (e.g. "key") collide with common column names in
	// the wild — that is out of scope for this dialect.
	return "", fmt.Errorf("%w: expected identifier, got %q", types.ErrParser, p.cur().Text)
}

func (p *parser) expect(t TokenType, what string) error {
	if p.cur().Type != t {
		return fmt.Errorf("%w: expected %s", types.ErrParser, what)
	}
	p.advance()
	return nil
}

func (p *parser) parseStatement() (Statement, error) {
	switch {
	case p.isKeyword("create"):
		return p.parseCreate()
	case p.isKeyword("drop"):
		return p.parseDrop()
	case p.isKeyword("insert"):
		return p.parseInsert()
	case p.isKeyword("update"):
		return p.parseUpdate()
	case p.isKeyword("delete"):
		return p.parseDelete()
	case p.isKeyword("select"):
		return p.parseSelect()
	case p.isKeyword("explain"):
		return p.parseExplain()
	default:
		return nil, fmt.Errorf("%w: unexpected token %q at start of statement", types.ErrParser, p.cur().Text)
	}
}

func (p *parser) parseCreate() (Statement, error) {
	p.advance() // create
	switch {
	case p.isKeyword("table"):
		p.advance()
		return p.parseCreateTable()
	case p.isKeyword("index"):
		p.advance()
		return p.parseCreateIndex()
	default:
		return nil, fmt.Errorf("%w: expected TABLE or INDEX after CREATE", types.ErrParser)
	}
}

func (p *parser) parseCreateTable() (Statement, error) {
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expect(TokLParen, "("); err != nil {
		return nil, err
	}

	var columns []ColumnDef
	var pk []string
	for {
		if p.isKeyword("primary") {
			p.advance()
			if err := p.expectKeyword("key"); err != nil {
				return nil, err
			}
			if err := p.expect(TokLParen, "("); err != nil {
				return nil, err
			}
			for {
				col, err := p.expectIdent()
				if err != nil {
					return nil, err
				}
				pk = append(pk, col)
				if p.skip(TokComma) {
					continue
				}
				break
			}
			if err := p.expect(TokRParen, ")"); err != nil {
				return nil, err
			}
		} else {
			col, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			typ, err := p.parseSQLType()
			if err != nil {
				return nil, err
			}
			isInlinePK := false
			if p.isKeyword("primary") {
				p.advance()
				if err := p.expectKeyword("key"); err != nil {
					return nil, err
				}
				isInlinePK = true
			}
			columns = append(columns, ColumnDef{Name: col, Type: typ})
			if isInlinePK {
				pk = append(pk, col)
			}
		}
		if p.skip(TokComma) {
			continue
		}
		break
	}
	if err := p.expect(TokRParen, ")"); err != nil {
		return nil, err
	}
	return CreateTable{Table: name, Columns: columns, PrimaryKey: pk}, nil
}

func (p *parser) parseSQLType() (types.SQLType, error) {
	if p.cur().Type != TokKeyword {
		return 0, fmt.Errorf("%w: expected a column type", types.ErrParser)
	}
	switch p.cur().Text {
	case "int", "integer":
		p.advance()
		return types.TypeInt, nil
	case "text", "string", "varchar":
		p.advance()
		return types.TypeText, nil
	case "bool", "boolean":
		p.advance()
		return types.TypeBool, nil
	default:
		return 0, fmt.Errorf("%w: unknown column type %q", types.ErrParser, p.cur().Text)
	}
}

func (p *parser) parseCreateIndex() (Statement, error) {
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("on"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expect(TokLParen, "("); err != nil {
		return nil, err
	}
	col, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expect(TokRParen, ")"); err != nil {
		return nil, err
	}
	return CreateIndex{Name: name, Table: table, Column: col}, nil
}

func (p *parser) parseDrop() (Statement, error) {
	p.advance() // drop
	switch {
	case p.isKeyword("table"):
		p.advance()
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return DropTable{Table: name}, nil
	case p.isKeyword("index"):
		p.advance()
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return DropIndex{Name: name}, nil
	default:
		return nil, fmt.Errorf("%w: expected TABLE or INDEX after DROP", types.ErrParser)
	}
}

func (p *parser) parseInsert() (Statement, error) {
	p.advance() // insert
	if err := p.expectKeyword("into"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("values"); err != nil {
		return nil, err
	}
	if err := p.expect(TokLParen, "("); err != nil {
		return nil, err
	}
	var values []Expr
	for {
		v, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		values = append(values, v)
		if p.skip(TokComma) {
			continue
		}
		break
	}
	if err := p.expect(TokRParen, ")"); err != nil {
		return nil, err
	}
	return Insert{Table: table, Values: values}, nil
}

func (p *parser) parseUpdate() (Statement, error) {
	p.advance() // update
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("set"); err != nil {
		return nil, err
	}
	var assigns []Assignment
	for {
		col, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expect(TokEq, "="); err != nil {
			return nil, err
		}
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		assigns = append(assigns, Assignment{Column: col, Value: val})
		if p.skip(TokComma) {
			continue
		}
		break
	}
	var where Expr
	if p.isKeyword("where") {
		p.advance()
		where, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	return Update{Table: table, Assignments: assigns, Where: where}, nil
}

func (p *parser) parseDelete() (Statement, error) {
	p.advance() // delete
	if err := p.expectKeyword("from"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	var where Expr
	if p.isKeyword("where") {
		p.advance()
		where, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	return Delete{Table: table, Where: where}, nil
}

func (p *parser) parseSelect() (Statement, error) {
	p.advance() // select
	var columns []string
	if p.cur().Type == TokStar {
		p.advance()
		columns = []string{"*"}
	} else {
		for {
			col, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			columns = append(columns, col)
			if p.skip(TokComma) {
				continue
			}
			break
		}
	}
	if err := p.expectKeyword("from"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}

	sel := Select{Columns: columns, Table: table}

	if p.isKeyword("where") {
		p.advance()
		w, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		sel.Where = w
	}
	if p.isKeyword("order") {
		p.advance()
		if err := p.expectKeyword("by"); err != nil {
			return nil, err
		}
		for {
			col, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			desc := false
			if p.isKeyword("asc") {
				p.advance()
			} else if p.isKeyword("desc") {
				p.advance()
				desc = true
			}
			sel.OrderBy = append(sel.OrderBy, OrderKey{Column: col, Desc: desc})
			if p.skip(TokComma) {
				continue
			}
			break
		}
	}
	if p.isKeyword("limit") {
		p.advance()
		n, err := p.expectIntLit()
		if err != nil {
			return nil, err
		}
		sel.Limit = &n
	}
	if p.isKeyword("offset") {
		p.advance()
		n, err := p.expectIntLit()
		if err != nil {
			return nil, err
		}
		sel.Offset = &n
	}
	return sel, nil
}

func (p *parser) parseExplain() (Statement, error) {
	p.advance() // explain
	analyze := false
	if p.isKeyword("analyze") {
		p.advance()
		analyze = true
	}
	stmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	if _, ok := stmt.(Select); !ok {
		return nil, fmt.Errorf("%w: EXPLAIN only supports queries", types.ErrParser)
	}
	return Explain{Analyze: analyze, Stmt: stmt}, nil
}

func (p *parser) expectIntLit() (int64, error) {
	if p.cur().Type != TokIntLit {
		return 0, fmt.Errorf("%w: expected an integer literal", types.ErrParser)
	}
	t := p.advance()
	return t.Int, nil
}

// Expression grammar, lowest to highest precedence: OR, AND, NOT,
// comparison, primary.
func (p *parser) parseExpr() (Expr, error) { return p.parseOr() }

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("or") {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = BinaryExpr{Op: OpOr, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("and") {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = BinaryExpr{Op: OpAnd, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (Expr, error) {
	if p.isKeyword("not") {
		p.advance()
		x, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return NotExpr{X: x}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (Expr, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	var op BinaryOp
	switch p.cur().Type {
	case TokEq:
		op = OpEq
	case TokNe:
		op = OpNe
	case TokLt:
		op = OpLt
	case TokLe:
		op = OpLe
	case TokGt:
		op = OpGt
	case TokGe:
		op = OpGe
	default:
		return left, nil
	}
	p.advance()
	right, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	return BinaryExpr{Op: op, Left: left, Right: right}, nil
}

func (p *parser) parsePrimary() (Expr, error) {
	tok := p.cur()
	switch {
	case tok.Type == TokLParen:
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(TokRParen, ")"); err != nil {
			return nil, err
		}
		return e, nil
	case tok.Type == TokIntLit:
		p.advance()
		return LiteralExpr{Value: types.IntValue(tok.Int)}, nil
	case tok.Type == TokStringLit:
		p.advance()
		return LiteralExpr{Value: types.TextValue(tok.Text)}, nil
	case tok.Type == TokKeyword && tok.Text == "true":
		p.advance()
		return LiteralExpr{Value: types.BoolValue(true)}, nil
	case tok.Type == TokKeyword && tok.Text == "false":
		p.advance()
		return LiteralExpr{Value: types.BoolValue(false)}, nil
	case tok.Type == TokKeyword && tok.Text == "null":
		p.advance()
		return LiteralExpr{Value: types.NullValue()}, nil
	case tok.Type == TokIdent:
		p.advance()
		return ColumnExpr{Name: strings.ToLower(tok.Text)}, nil
	default:
		return nil, fmt.Errorf("%w: unexpected token %q in expression", types.ErrParser, tok.Text)
	}
}
