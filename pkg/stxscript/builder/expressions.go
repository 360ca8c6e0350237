package builder

import (
	"github.com/sambeau/stxscript/pkg/stxscript/ast"
	perrors "github.com/sambeau/stxscript/pkg/stxscript/errors"
	"github.com/sambeau/stxscript/pkg/stxscript/lexer"
	"github.com/sambeau/stxscript/pkg/stxscript/parsetree"
)

func (b *Builder) assignmentExpression(t *parsetree.Tree, items []item) (item, error) {
	if err := need(t, items, 2, "assignment", "value"); err != nil {
		return nil, err
	}
	operands, err := b.exprs(t, items[:2])
	if err != nil {
		return nil, err
	}
	return nodeItem{&ast.BinaryExpression{
		Token:    at(t, "="),
		Left:     operands[0],
		Operator: "=",
		Right:    operands[1],
	}}, nil
}

func (b *Builder) conditionalExpression(t *parsetree.Tree, items []item) (item, error) {
	if err := need(t, items, 3, "conditional expression", "alternative"); err != nil {
		return nil, err
	}
	parts, err := b.exprs(t, items[:3])
	if err != nil {
		return nil, err
	}
	return nodeItem{&ast.TernaryExpression{
		Token:       at(t, "?"),
		Condition:   parts[0],
		Consequence: parts[1],
		Alternative: parts[2],
	}}, nil
}

// binaryExpression folds `t0 op1 t1 op2 t2 ...` to the left, so
// a - b - c is ((a - b) - c).
func (b *Builder) binaryExpression(t *parsetree.Tree, items []item) (item, error) {
	if len(items) == 0 {
		return nil, missing(t, t.Rule, "operand")
	}
	left, err := b.expr(t, items[0])
	if err != nil {
		return nil, err
	}
	if len(items)%2 == 0 {
		return nil, perrors.NewWithPosition("BUILD-0003", t.Line, t.Column, map[string]any{"Rule": t.Rule})
	}

	for i := 1; i+1 < len(items); i += 2 {
		op, ok := items[i].(tokenItem)
		if !ok {
			return nil, unexpected(t, items[i])
		}
		right, err := b.expr(t, items[i+1])
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpression{Token: op.tok, Left: left, Operator: op.tok.Literal, Right: right}
	}
	return nodeItem{left}, nil
}

// unaryExpression folds a minus sign into a numeric literal.
func (b *Builder) unaryExpression(t *parsetree.Tree, items []item) (item, error) {
	if err := need(t, items, 2, "unary expression", "operand"); err != nil {
		return nil, err
	}
	op, ok := items[0].(tokenItem)
	if !ok {
		return nil, unexpected(t, items[0])
	}
	operand, err := b.expr(t, items[1])
	if err != nil {
		return nil, err
	}

	if op.tok.Type == lexer.MINUS {
		if lit, ok := operand.(*ast.Literal); ok {
			switch v := lit.Value.(type) {
			case int64:
				return nodeItem{&ast.Literal{Token: op.tok, Value: -v}}, nil
			case float64:
				return nodeItem{&ast.Literal{Token: op.tok, Value: -v}}, nil
			}
		}
	}
	return nodeItem{&ast.UnaryExpression{Token: op.tok, Operator: op.tok.Literal, Operand: operand}}, nil
}

// postfixExpression applies call, member, is and as suffixes to the primary
// left to right.
func (b *Builder) postfixExpression(t *parsetree.Tree, items []item) (item, error) {
	if err := need(t, items, 1, "postfix expression", "operand"); err != nil {
		return nil, err
	}
	current, err := b.expr(t, items[0])
	if err != nil {
		return nil, err
	}

	for _, it := range items[1:] {
		switch s := it.(type) {
		case callSuffix:
			current = b.resolveCall(current, s)
		case memberSuffix:
			current = &ast.MemberExpression{Token: s.tok, Object: current, Property: s.property}
		case isSuffix:
			current = &ast.TypeCheck{Token: s.tok, Value: current, Type: s.typ}
		case asSuffix:
			current = &ast.TypeAssertion{Token: s.tok, Value: current, Type: s.typ}
		default:
			return nil, unexpected(t, it)
		}
	}
	return nodeItem{current}, nil
}

// resolveCall picks the call form for callee(args):
//
//	Asset.fn(args)      asset operation
//	Contract.fn(args)   call into another contract
//	some(x), map(l, f), filter(l, f), fold(l, init, f)
//	anything else       plain call
func (b *Builder) resolveCall(callee ast.Expression, s callSuffix) ast.Expression {
	switch c := callee.(type) {
	case *ast.MemberExpression:
		obj, ok := c.Object.(*ast.Identifier)
		if !ok {
			break
		}
		if b.isAsset(obj.Value, c.Property.Value) {
			return &ast.AssetCallExpression{Token: c.Token, Asset: obj, Function: c.Property.Value, Arguments: s.args}
		}
		if isContractName(obj.Value) {
			return &ast.ContractCallExpression{Token: c.Token, Contract: obj, Function: c.Property.Value, Arguments: s.args}
		}
	case *ast.Identifier:
		args := s.args
		switch {
		case c.Value == "some" && len(args) == 1:
			return &ast.OptionalLiteral{Token: c.Token, Value: args[0]}
		case c.Value == "map" && len(args) == 2:
			return &ast.MapExpression{Token: c.Token, List: args[0], Function: args[1]}
		case c.Value == "filter" && len(args) == 2:
			return &ast.FilterExpression{Token: c.Token, List: args[0], Function: args[1]}
		case c.Value == "fold" && len(args) == 3:
			return &ast.FoldExpression{Token: c.Token, List: args[0], Initial: args[1], Function: args[2]}
		}
	}
	return &ast.CallExpression{Token: s.tok, Callee: callee, Arguments: s.args}
}

func (b *Builder) call(t *parsetree.Tree, items []item) (item, error) {
	args, err := b.exprs(t, items)
	if err != nil {
		return nil, err
	}
	return callSuffix{tok: at(t, "("), args: args}, nil
}

func (b *Builder) member(t *parsetree.Tree, items []item) (item, error) {
	if err := need(t, items, 1, "member access", "property"); err != nil {
		return nil, err
	}
	prop, err := asIdent(t, items[0])
	if err != nil {
		return nil, err
	}
	return memberSuffix{tok: at(t, "."), property: prop}, nil
}

func (b *Builder) typeCheck(t *parsetree.Tree, items []item) (item, error) {
	if err := need(t, items, 1, "type check", "type"); err != nil {
		return nil, err
	}
	typ, err := asType(t, items[0])
	if err != nil {
		return nil, err
	}
	return isSuffix{tok: at(t, "is"), typ: typ}, nil
}

func (b *Builder) typeAssertion(t *parsetree.Tree, items []item) (item, error) {
	if err := need(t, items, 1, "type assertion", "type"); err != nil {
		return nil, err
	}
	typ, err := asType(t, items[0])
	if err != nil {
		return nil, err
	}
	return asSuffix{tok: at(t, "as"), typ: typ}, nil
}

func (b *Builder) listLiteral(t *parsetree.Tree, items []item) (item, error) {
	elems, err := b.exprs(t, items)
	if err != nil {
		return nil, err
	}
	return nodeItem{&ast.ListLiteral{Token: at(t, "["), Elements: elems}}, nil
}

// tupleLiteral keeps fields in source order and rejects repeated keys.
func (b *Builder) tupleLiteral(t *parsetree.Tree, items []item) (item, error) {
	tl := &ast.TupleLiteral{Token: at(t, "{"), Fields: make([]*ast.TupleField, 0, len(items))}
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		f, ok := it.(fieldItem)
		if !ok {
			return nil, unexpected(t, it)
		}
		if seen[f.key] {
			return nil, perrors.NewWithPosition("BUILD-0009", t.Line, t.Column, map[string]any{
				"Got":  "duplicate field '" + f.key + "'",
				"Rule": "tuple literal",
			})
		}
		seen[f.key] = true
		tl.Fields = append(tl.Fields, &ast.TupleField{Key: f.key, Value: f.value})
	}
	return nodeItem{tl}, nil
}

func (b *Builder) tupleItem(t *parsetree.Tree, items []item) (item, error) {
	if len(items) < 2 {
		return nil, perrors.NewWithPosition("BUILD-0003", t.Line, t.Column, map[string]any{"Rule": "tuple literal"})
	}
	key, err := fieldKey(t, items[0])
	if err != nil {
		return nil, err
	}
	value, err := b.expr(t, items[1])
	if err != nil {
		return nil, err
	}
	return fieldItem{key: key, value: value}, nil
}

// fieldKey accepts both {name: v} and {"name": v}.
func fieldKey(t *parsetree.Tree, it item) (string, error) {
	if n, ok := it.(nodeItem); ok {
		switch k := n.node.(type) {
		case *ast.Identifier:
			return k.Value, nil
		case *ast.Literal:
			if s, ok := k.Value.(string); ok {
				return s, nil
			}
		}
	}
	return "", unexpected(t, it)
}

func (b *Builder) listComprehension(t *parsetree.Tree, items []item) (item, error) {
	if err := need(t, items, 3, "list comprehension", "iterable"); err != nil {
		return nil, err
	}
	expr, err := b.expr(t, items[0])
	if err != nil {
		return nil, err
	}
	iter, err := asIdent(t, items[1])
	if err != nil {
		return nil, err
	}
	iterable, err := b.expr(t, items[2])
	if err != nil {
		return nil, err
	}

	lc := &ast.ListComprehension{Token: at(t, "["), Expression: expr, Iterator: iter, Iterable: iterable}
	if len(items) > 3 {
		if lc.Condition, err = b.expr(t, items[3]); err != nil {
			return nil, err
		}
	}
	return nodeItem{lc}, nil
}

func (b *Builder) lambdaExpression(t *parsetree.Tree, items []item) (item, error) {
	if err := need(t, items, 2, "lambda", "body"); err != nil {
		return nil, err
	}
	params, ok := items[0].(paramsItem)
	if !ok {
		return nil, unexpected(t, items[0])
	}
	le := &ast.LambdaExpression{Token: at(t, "=>"), Parameters: params.params}

	if blk, err := asBlock(t, items[1]); err == nil {
		le.BodyBlock = blk
		return nodeItem{le}, nil
	}
	body, err := b.expr(t, items[1])
	if err != nil {
		return nil, err
	}
	le.Body = body
	return nodeItem{le}, nil
}

// newExpression yields a newItem; only a @map constant may consume it.
func (b *Builder) newExpression(t *parsetree.Tree, items []item) (item, error) {
	if err := need(t, items, 1, "new expression", "name"); err != nil {
		return nil, err
	}
	name, err := asIdent(t, items[0])
	if err != nil {
		return nil, err
	}
	nw := newItem{tok: at(t, "new"), name: name}
	for _, it := range items[1:] {
		if a, ok := it.(argsItem); ok {
			nw.args = a.args
			continue
		}
		typ, err := asType(t, it)
		if err != nil {
			return nil, err
		}
		nw.typeArgs = append(nw.typeArgs, typ)
	}
	return nw, nil
}

func (b *Builder) literal(t *parsetree.Tree, items []item) (item, error) {
	if err := need(t, items, 1, "literal", "value"); err != nil {
		return nil, err
	}
	if _, err := b.expr(t, items[0]); err != nil {
		return nil, err
	}
	return items[0], nil
}

// Types

func (b *Builder) namedType(t *parsetree.Tree, items []item) (item, error) {
	if err := need(t, items, 1, "type", "name"); err != nil {
		return nil, err
	}
	name, err := asIdent(t, items[0])
	if err != nil {
		return nil, err
	}
	return nodeItem{&ast.NamedType{Token: name.Token, Value: name.Value}}, nil
}

func (b *Builder) listType(t *parsetree.Tree, items []item) (item, error) {
	if err := need(t, items, 1, "list type", "element type"); err != nil {
		return nil, err
	}
	elem, err := asType(t, items[0])
	if err != nil {
		return nil, err
	}
	return nodeItem{&ast.ListType{Token: at(t, "list"), Element: elem}}, nil
}

func (b *Builder) tupleType(t *parsetree.Tree, items []item) (item, error) {
	tt := &ast.TupleType{Token: at(t, "{"), Fields: make([]*ast.TupleTypeField, 0, len(items))}
	for _, it := range items {
		f, ok := it.(typeFieldItem)
		if !ok {
			return nil, unexpected(t, it)
		}
		if _, dup := tt.Get(f.key); dup {
			return nil, perrors.NewWithPosition("BUILD-0009", t.Line, t.Column, map[string]any{
				"Got":  "duplicate field '" + f.key + "'",
				"Rule": "tuple type",
			})
		}
		tt.Fields = append(tt.Fields, &ast.TupleTypeField{Key: f.key, Type: f.typ})
	}
	return nodeItem{tt}, nil
}

func (b *Builder) tupleTypeItem(t *parsetree.Tree, items []item) (item, error) {
	if len(items) < 2 {
		return nil, perrors.NewWithPosition("BUILD-0003", t.Line, t.Column, map[string]any{"Rule": "tuple type"})
	}
	key, err := asIdent(t, items[0])
	if err != nil {
		return nil, err
	}
	typ, err := asType(t, items[1])
	if err != nil {
		return nil, err
	}
	return typeFieldItem{key: key.Value, typ: typ}, nil
}

func (b *Builder) optionalType(t *parsetree.Tree, items []item) (item, error) {
	if err := need(t, items, 1, "optional type", "inner type"); err != nil {
		return nil, err
	}
	inner, err := asType(t, items[0])
	if err != nil {
		return nil, err
	}
	return nodeItem{&ast.OptionalType{Token: at(t, "optional"), Inner: inner}}, nil
}

func (b *Builder) responseType(t *parsetree.Tree, items []item) (item, error) {
	if err := need(t, items, 2, "response type", "error type"); err != nil {
		return nil, err
	}
	ok, err := asType(t, items[0])
	if err != nil {
		return nil, err
	}
	errType, err := asType(t, items[1])
	if err != nil {
		return nil, err
	}
	return nodeItem{&ast.ResponseType{Token: at(t, "response"), Ok: ok, Err: errType}}, nil
}
