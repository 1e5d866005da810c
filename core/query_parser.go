package core

import "fmt"

type parser struct {
	toks []token
	pos  int
}

// ParseCommand parses one query-language command.
func ParseCommand(src string) (Command, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	cmd, err := p.parseCommand()
	if err != nil {
		return nil, err
	}
	if !p.atEOF() {
		return nil, p.errorf("unexpected trailing input")
	}
	return cmd, nil
}

func (p *parser) cur() token  { return p.toks[p.pos] }
func (p *parser) atEOF() bool { return p.cur().kind == tokEOF }

func (p *parser) errorf(format string, args ...any) error {
	return &ParseError{Offset: p.cur().offset, Message: fmt.Sprintf(format, args...)}
}

func (p *parser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) expectIdent(kw string) error {
	t := p.cur()
	if t.kind != tokIdent || t.text != kw {
		return p.errorf("expected %q", kw)
	}
	p.advance()
	return nil
}

func (p *parser) expectKind(k tokenKind, what string) (token, error) {
	t := p.cur()
	if t.kind != k {
		return token{}, p.errorf("expected %s", what)
	}
	return p.advance(), nil
}

func (p *parser) peekIdentIs(kw string) bool {
	t := p.cur()
	return t.kind == tokIdent && t.text == kw
}

func (p *parser) parseCommand() (Command, error) {
	switch {
	case p.peekIdentIs("define"):
		return p.parseDefine()
	case p.peekIdentIs("add"):
		return p.parseAdd()
	case p.peekIdentIs("update"):
		return p.parseUpdateConn()
	case p.peekIdentIs("fetch"):
		return p.parseFetch()
	default:
		return nil, p.errorf("expected define, add, update, or fetch")
	}
}

func (p *parser) parseDefine() (Command, error) {
	if err := p.expectIdent("define"); err != nil {
		return nil, err
	}
	if err := p.expectIdent("node"); err != nil {
		return nil, err
	}
	typeName, err := p.expectKind(tokIdent, "type name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKind(tokLParen, "'('"); err != nil {
		return nil, err
	}
	attrs, err := p.parseAttrList()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKind(tokRParen, "')'"); err != nil {
		return nil, err
	}

	var agent AgentPredicate
	if p.peekIdentIs("with") {
		p.advance()
		if err := p.expectIdent("agent"); err != nil {
			return nil, err
		}
		if _, err := p.expectKind(tokLParen, "'('"); err != nil {
			return nil, err
		}
		agent, err = p.parsePredList()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectKind(tokRParen, "')'"); err != nil {
			return nil, err
		}
	}

	return DefineCmd{TypeName: typeName.text, Attrs: attrs, Agent: agent}, nil
}

func (p *parser) parseAttrList() ([]AttrSpec, error) {
	var out []AttrSpec
	for {
		indexed := false
		if p.cur().kind == tokStar {
			indexed = true
			p.advance()
		}
		name, err := p.expectKind(tokIdent, "attribute name")
		if err != nil {
			return nil, err
		}
		out = append(out, AttrSpec{Name: name.text, Indexed: indexed})
		if p.cur().kind == tokComma {
			p.advance()
			continue
		}
		return out, nil
	}
}

func (p *parser) parsePredList() (AgentPredicate, error) {
	out := make(AgentPredicate)
	for {
		name, err := p.expectKind(tokIdent, "attribute name")
		if err != nil {
			return nil, err
		}
		if _, err := p.expectOpText("="); err != nil {
			return nil, err
		}
		value, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		out[name.text] = value
		if p.cur().kind == tokComma {
			p.advance()
			continue
		}
		return out, nil
	}
}

func (p *parser) expectOpText(op string) (token, error) {
	t := p.cur()
	if t.kind != tokOp || t.text != op {
		return token{}, p.errorf("expected %q", op)
	}
	return p.advance(), nil
}

// parseValue accepts a string or integer literal and renders it as a
// string: attribute values are always strings at the storage layer.
func (p *parser) parseValue() (string, error) {
	t := p.cur()
	switch t.kind {
	case tokString, tokInt:
		p.advance()
		return t.text, nil
	default:
		return "", p.errorf("expected a string or integer literal")
	}
}

func (p *parser) parseAdd() (Command, error) {
	p.advance() // 'add'
	switch {
	case p.peekIdentIs("node"):
		return p.parseAddNode()
	case p.peekIdentIs("connection"):
		return p.parseAddConn()
	default:
		return nil, p.errorf("expected node or connection")
	}
}

func (p *parser) parseAddNode() (Command, error) {
	if err := p.expectIdent("node"); err != nil {
		return nil, err
	}
	typeName, err := p.expectKind(tokIdent, "type name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKind(tokLParen, "'('"); err != nil {
		return nil, err
	}
	assigns, err := p.parseAssignList()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKind(tokRParen, "')'"); err != nil {
		return nil, err
	}
	return AddNodeCmd{TypeName: typeName.text, Assigns: assigns}, nil
}

func (p *parser) parseAssignList() ([]Assign, error) {
	var out []Assign
	for {
		name, err := p.expectKind(tokIdent, "attribute name")
		if err != nil {
			return nil, err
		}
		if _, err := p.expectOpText("="); err != nil {
			return nil, err
		}
		value, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		out = append(out, Assign{Name: name.text, Value: value})
		if p.cur().kind == tokComma {
			p.advance()
			continue
		}
		return out, nil
	}
}

func (p *parser) parseAddConn() (Command, error) {
	if err := p.expectIdent("connection"); err != nil {
		return nil, err
	}
	fromType, fromSel, toType, toSel, weight, err := p.parseConnBody()
	if err != nil {
		return nil, err
	}
	return AddConnCmd{FromType: fromType, FromSel: fromSel, ToType: toType, ToSel: toSel, Weight: weight}, nil
}

func (p *parser) parseUpdateConn() (Command, error) {
	if err := p.expectIdent("update"); err != nil {
		return nil, err
	}
	if err := p.expectIdent("connection"); err != nil {
		return nil, err
	}
	fromType, fromSel, toType, toSel, weight, err := p.parseConnBody()
	if err != nil {
		return nil, err
	}
	return UpdConnCmd{FromType: fromType, FromSel: fromSel, ToType: toType, ToSel: toSel, Weight: weight}, nil
}

func (p *parser) parseConnBody() (fromType string, fromSel Selector, toType string, toSel Selector, weight int64, err error) {
	if err = p.expectIdent("from"); err != nil {
		return
	}
	ft, err2 := p.expectKind(tokIdent, "type name")
	if err2 != nil {
		err = err2
		return
	}
	fromType = ft.text
	if _, err2 = p.expectKind(tokLParen, "'('"); err2 != nil {
		err = err2
		return
	}
	fromSel, err2 = p.parseSelector()
	if err2 != nil {
		err = err2
		return
	}
	if _, err2 = p.expectKind(tokRParen, "')'"); err2 != nil {
		err = err2
		return
	}
	if err = p.expectIdent("to"); err != nil {
		return
	}
	tt, err2 := p.expectKind(tokIdent, "type name")
	if err2 != nil {
		err = err2
		return
	}
	toType = tt.text
	if _, err2 = p.expectKind(tokLParen, "'('"); err2 != nil {
		err = err2
		return
	}
	toSel, err2 = p.parseSelector()
	if err2 != nil {
		err = err2
		return
	}
	if _, err2 = p.expectKind(tokRParen, "')'"); err2 != nil {
		err = err2
		return
	}
	if err = p.expectIdent("with"); err != nil {
		return
	}
	if err = p.expectIdent("weight"); err != nil {
		return
	}
	wt, err2 := p.expectKind(tokInt, "integer weight")
	if err2 != nil {
		err = err2
		return
	}
	weight, err2 = parseSignedInt(wt.text)
	if err2 != nil {
		err = err2
	}
	return
}

// parseSelector handles `$id = STRING` or a comma-separated attribute
// comparison list.
func (p *parser) parseSelector() (Selector, error) {
	if p.cur().kind == tokDollarIdent && p.cur().text == "$id" {
		p.advance()
		if _, err := p.expectOpText("="); err != nil {
			return Selector{}, err
		}
		str, err := p.expectKind(tokString, "string literal")
		if err != nil {
			return Selector{}, err
		}
		return Selector{ByID: true, ID: str.text}, nil
	}

	var comps []Comparison
	for {
		name, err := p.expectKind(tokIdent, "attribute name")
		if err != nil {
			return Selector{}, err
		}
		opTok, err := p.expectKind(tokOp, "comparison operator")
		if err != nil {
			return Selector{}, err
		}
		value, err := p.parseValue()
		if err != nil {
			return Selector{}, err
		}
		comps = append(comps, Comparison{Attr: name.text, Op: CompareOp(opTok.text), Value: value})
		if p.cur().kind == tokComma {
			p.advance()
			continue
		}
		return Selector{Attrs: comps}, nil
	}
}

func (p *parser) parseFetch() (Command, error) {
	p.advance() // 'fetch'
	if p.peekIdentIs("connection") {
		p.advance()
		if err := p.expectIdent("chain"); err != nil {
			return nil, err
		}
		return FetchChainCmd{}, nil
	}

	typeName, err := p.expectKind(tokIdent, "type name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKind(tokLParen, "'('"); err != nil {
		return nil, err
	}
	sel, err := p.parseSelector()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKind(tokRParen, "')'"); err != nil {
		return nil, err
	}

	var joins []JoinStep
	for p.peekIdentIs("join") {
		p.advance()
		jType, err := p.expectKind(tokIdent, "type name")
		if err != nil {
			return nil, err
		}
		if _, err := p.expectKind(tokLParen, "'('"); err != nil {
			return nil, err
		}
		pred, err := p.parseWeightPred()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectKind(tokRParen, "')'"); err != nil {
			return nil, err
		}
		joins = append(joins, JoinStep{TypeName: jType.text, Pred: pred})
	}

	return FetchNodeCmd{TypeName: typeName.text, Sel: sel, Joins: joins}, nil
}

func (p *parser) parseWeightPred() (WeightPredicate, error) {
	if p.cur().kind != tokDollarIdent || p.cur().text != "$weight" {
		return WeightPredicate{}, p.errorf("expected $weight")
	}
	p.advance()
	opTok, err := p.expectKind(tokOp, "comparison operator")
	if err != nil {
		return WeightPredicate{}, err
	}
	intTok, err := p.expectKind(tokInt, "integer literal")
	if err != nil {
		return WeightPredicate{}, err
	}
	v, err := parseSignedInt(intTok.text)
	if err != nil {
		return WeightPredicate{}, err
	}
	kind, err := predKindFromOp(CompareOp(opTok.text))
	if err != nil {
		return WeightPredicate{}, err
	}
	return WeightPredicate{Kind: kind, Value: v}, nil
}

func predKindFromOp(op CompareOp) (PredKind, error) {
	switch op {
	case OpEq:
		return PredEq, nil
	case OpLt:
		return PredLt, nil
	case OpLe:
		return PredLe, nil
	case OpGt:
		return PredGt, nil
	case OpGe:
		return PredGe, nil
	default:
		return 0, fmt.Errorf("unknown operator %q", op)
	}
}

func parseSignedInt(s string) (int64, error) {
	neg := false
	i := 0
	if len(s) > 0 && s[0] == '-' {
		neg = true
		i = 1
	}
	if i == len(s) {
		return 0, fmt.Errorf("invalid integer %q", s)
	}
	var n int64
	for ; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, fmt.Errorf("invalid integer %q", s)
		}
		n = n*10 + int64(s[i]-'0')
	}
	if neg {
		n = -n
	}
	return n, nil
}
