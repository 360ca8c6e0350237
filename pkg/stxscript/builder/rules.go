package builder

import (
	"slices"

	"github.com/sambeau/stxscript/pkg/stxscript/ast"
	perrors "github.com/sambeau/stxscript/pkg/stxscript/errors"
	"github.com/sambeau/stxscript/pkg/stxscript/lexer"
	"github.com/sambeau/stxscript/pkg/stxscript/parsetree"
)

// Declarations

func (b *Builder) program(t *parsetree.Tree, items []item) (item, error) {
	prog := &ast.Program{Statements: make([]ast.Statement, 0, len(items))}
	for _, it := range items {
		s, err := b.stmt(t, it)
		if err != nil {
			return nil, err
		}
		prog.Statements = append(prog.Statements, s)
	}
	return nodeItem{prog}, nil
}

// functionDeclaration classifies its unordered items by shape: decorators,
// then the first identifier (name), parameter list, type (return type) and
// block (body).
func (b *Builder) functionDeclaration(t *parsetree.Tree, items []item) (item, error) {
	fd := &ast.FunctionDeclaration{Token: at(t, "function")}
	var params *paramsItem

	for _, it := range items {
		switch v := it.(type) {
		case decoratorItem:
			fd.Decorators = append(fd.Decorators, v.dec)
		case paramsItem:
			if params == nil {
				params = &v
			}
		case nodeItem:
			switch n := v.node.(type) {
			case *ast.Identifier:
				if fd.Name == nil {
					fd.Name = n
				}
			case ast.Type:
				if fd.ReturnType == nil {
					fd.ReturnType = n
				}
			case *ast.Block:
				if fd.Body == nil {
					fd.Body = n
				}
			}
		}
	}

	if fd.Name == nil {
		return nil, perrors.NewWithPosition("BUILD-0001", t.Line, t.Column, map[string]any{"Rule": "function declaration"})
	}
	if fd.Body == nil {
		return nil, missing(t, "function "+fd.Name.Value, "body")
	}
	for _, d := range fd.Decorators {
		if d.Name == "map" || d.Name == "asset" {
			return nil, perrors.NewWithPosition("BUILD-0009", d.Token.Line, d.Token.Column, map[string]any{
				"Got":  "decorator @" + d.Name,
				"Rule": "function " + fd.Name.Value,
			})
		}
	}

	fd.Parameters = []*ast.Parameter{}
	if params != nil {
		fd.Parameters = params.params
	}
	return nodeItem{fd}, nil
}

func (b *Builder) decorator(t *parsetree.Tree, items []item) (item, error) {
	if err := need(t, items, 1, "decorator", "name"); err != nil {
		return nil, err
	}
	tok, ok := items[0].(tokenItem)
	if !ok || tok.tok.Type != lexer.DECORATOR {
		return nil, unexpected(t, items[0])
	}

	name := trimDecorator(tok.tok.Literal)
	if !slices.Contains(perrors.KnownDecorators, name) {
		return nil, perrors.NewUnknownDecorator(name, tok.tok.Line, tok.tok.Column)
	}

	dec := &ast.Decorator{Token: tok.tok, Name: name}
	if len(items) > 1 {
		n, ok := items[1].(nodeItem)
		if !ok {
			return nil, unexpected(t, items[1])
		}
		dec.Argument = n.node
	}
	return decoratorItem{dec}, nil
}

func (b *Builder) parameters(t *parsetree.Tree, items []item) (item, error) {
	params := make([]*ast.Parameter, 0, len(items))
	for _, it := range items {
		n, ok := it.(nodeItem)
		if !ok {
			return nil, unexpected(t, it)
		}
		p, ok := n.node.(*ast.Parameter)
		if !ok {
			return nil, unexpected(t, it)
		}
		params = append(params, p)
	}
	return paramsItem{params}, nil
}

func (b *Builder) parameter(t *parsetree.Tree, items []item) (item, error) {
	if err := need(t, items, 1, "parameter", "name"); err != nil {
		return nil, err
	}
	name, err := asIdent(t, items[0])
	if err != nil {
		return nil, err
	}
	p := &ast.Parameter{Token: name.Token, Name: name}
	if len(items) > 1 {
		if p.Type, err = asType(t, items[1]); err != nil {
			return nil, err
		}
	}
	return nodeItem{p}, nil
}

func (b *Builder) arguments(t *parsetree.Tree, items []item) (item, error) {
	args, err := b.exprs(t, items)
	if err != nil {
		return nil, err
	}
	return argsItem{args}, nil
}

// binding is the shared shape of let and const: decorators, a name, then an
// optional type and an optional value (which may be a `new` item).
type binding struct {
	decorators []*ast.Decorator
	name       *ast.Identifier
	typ        ast.Type
	value      item
}

func (b *Builder) binding(t *parsetree.Tree, items []item, rule string) (*binding, error) {
	bd := &binding{}
	rest := items
	for len(rest) > 0 {
		d, ok := rest[0].(decoratorItem)
		if !ok {
			break
		}
		bd.decorators = append(bd.decorators, d.dec)
		rest = rest[1:]
	}

	if len(rest) == 0 {
		return nil, perrors.NewWithPosition("BUILD-0001", t.Line, t.Column, map[string]any{"Rule": rule})
	}
	name, err := asIdent(t, rest[0])
	if err != nil {
		return nil, err
	}
	bd.name = name

	for _, it := range rest[1:] {
		if n, ok := it.(nodeItem); ok {
			if typ, ok := n.node.(ast.Type); ok && bd.typ == nil && bd.value == nil {
				bd.typ = typ
				continue
			}
		}
		if bd.value != nil {
			return nil, unexpected(t, it)
		}
		bd.value = it
	}
	return bd, nil
}

func (b *Builder) variableDeclaration(t *parsetree.Tree, items []item) (item, error) {
	bd, err := b.binding(t, items, "variable declaration")
	if err != nil {
		return nil, err
	}
	vd := &ast.VariableDeclaration{Token: at(t, "let"), Name: bd.name, Type: bd.typ}
	if bd.value == nil {
		return nil, missing(t, "variable "+bd.name.Value, "value")
	}
	if vd.Value, err = b.expr(t, bd.value); err != nil {
		return nil, err
	}
	return nodeItem{vd}, nil
}

// constantDeclaration resolves the @map duality: a @map constant carries its
// map shape, taken from the decorator argument or from `new Map<K, V>()`.
func (b *Builder) constantDeclaration(t *parsetree.Tree, items []item) (item, error) {
	bd, err := b.binding(t, items, "constant declaration")
	if err != nil {
		return nil, err
	}
	cd := &ast.ConstantDeclaration{
		Token:      at(t, "const"),
		Decorators: bd.decorators,
		Name:       bd.name,
		Type:       bd.typ,
	}

	var mapDec *ast.Decorator
	for _, d := range bd.decorators {
		if d.Name != "map" {
			return nil, perrors.NewWithPosition("BUILD-0009", d.Token.Line, d.Token.Column, map[string]any{
				"Got":  "decorator @" + d.Name,
				"Rule": "constant " + bd.name.Value,
			})
		}
		mapDec = d
	}

	if mapDec == nil {
		if bd.value == nil {
			return nil, missing(t, "constant "+bd.name.Value, "value")
		}
		if cd.Value, err = b.expr(t, bd.value); err != nil {
			return nil, err
		}
		return nodeItem{cd}, nil
	}

	var key, value ast.Type
	if shape, ok := mapDec.Argument.(*ast.TupleType); ok {
		key, _ = shape.Get("key")
		value, _ = shape.Get("value")
	}
	switch v := bd.value.(type) {
	case newItem:
		if (key == nil || value == nil) && len(v.typeArgs) == 2 {
			key, value = v.typeArgs[0], v.typeArgs[1]
		}
	case nil:
	default:
		if cd.Value, err = b.expr(t, v); err != nil {
			return nil, err
		}
	}
	if key == nil || value == nil {
		return nil, perrors.NewWithPosition("BUILD-0007", t.Line, t.Column, map[string]any{"Name": bd.name.Value})
	}

	cd.Map = &ast.MapDeclaration{Token: mapDec.Token, Name: bd.name, KeyType: key, ValueType: value}
	return nodeItem{cd}, nil
}

func (b *Builder) mapDeclaration(t *parsetree.Tree, items []item) (item, error) {
	if err := need(t, items, 3, "map declaration", "name"); err != nil {
		return nil, err
	}
	key, err := asType(t, items[0])
	if err != nil {
		return nil, err
	}
	value, err := asType(t, items[1])
	if err != nil {
		return nil, err
	}
	name, err := asIdent(t, items[2])
	if err != nil {
		return nil, err
	}
	return nodeItem{&ast.MapDeclaration{Token: at(t, "map"), Name: name, KeyType: key, ValueType: value}}, nil
}

func (b *Builder) assetDeclaration(t *parsetree.Tree, items []item) (item, error) {
	ad := &ast.AssetDeclaration{Token: at(t, "class")}
	isAsset := false

	for _, it := range items {
		switch v := it.(type) {
		case decoratorItem:
			if v.dec.Name != "asset" {
				return nil, perrors.NewWithPosition("BUILD-0009", v.dec.Token.Line, v.dec.Token.Column, map[string]any{
					"Got":  "decorator @" + v.dec.Name,
					"Rule": "class declaration",
				})
			}
			isAsset = true
		case nodeItem:
			switch n := v.node.(type) {
			case *ast.Identifier:
				if ad.Name != nil {
					return nil, unexpected(t, it)
				}
				ad.Name = n
			case *ast.Parameter:
				ad.Fields = append(ad.Fields, n)
			default:
				return nil, unexpected(t, it)
			}
		default:
			return nil, unexpected(t, it)
		}
	}

	if ad.Name == nil {
		return nil, perrors.NewWithPosition("BUILD-0001", t.Line, t.Column, map[string]any{"Rule": "class declaration"})
	}
	if !isAsset {
		return nil, perrors.NewWithPosition("BUILD-0006", t.Line, t.Column, map[string]any{"Name": ad.Name.Value})
	}
	return nodeItem{ad}, nil
}

func (b *Builder) assetField(t *parsetree.Tree, items []item) (item, error) {
	if err := need(t, items, 1, "asset field", "name"); err != nil {
		return nil, err
	}
	name, err := asIdent(t, items[0])
	if err != nil {
		return nil, err
	}
	if len(items) < 2 {
		return nil, perrors.NewWithPosition("BUILD-0003", t.Line, t.Column, map[string]any{"Rule": "asset field " + name.Value})
	}
	typ, err := asType(t, items[1])
	if err != nil {
		return nil, err
	}
	return nodeItem{&ast.Parameter{Token: name.Token, Name: name, Type: typ}}, nil
}

func (b *Builder) traitDeclaration(t *parsetree.Tree, items []item) (item, error) {
	if len(items) == 0 {
		return nil, perrors.NewWithPosition("BUILD-0001", t.Line, t.Column, map[string]any{"Rule": "trait declaration"})
	}
	name, err := asIdent(t, items[0])
	if err != nil {
		return nil, err
	}
	td := &ast.TraitDeclaration{Token: at(t, "trait"), Name: name}
	for _, it := range items[1:] {
		n, ok := it.(nodeItem)
		if !ok {
			return nil, unexpected(t, it)
		}
		fd, ok := n.node.(*ast.FunctionDeclaration)
		if !ok {
			return nil, unexpected(t, it)
		}
		td.Functions = append(td.Functions, fd)
	}
	return nodeItem{td}, nil
}

func (b *Builder) functionSignature(t *parsetree.Tree, items []item) (item, error) {
	if err := need(t, items, 3, "function signature", "return type"); err != nil {
		return nil, err
	}
	name, err := asIdent(t, items[0])
	if err != nil {
		return nil, err
	}
	params, ok := items[1].(paramsItem)
	if !ok {
		return nil, unexpected(t, items[1])
	}
	ret, err := asType(t, items[2])
	if err != nil {
		return nil, err
	}
	return nodeItem{&ast.FunctionDeclaration{
		Token:      name.Token,
		Name:       name,
		Parameters: params.params,
		ReturnType: ret,
	}}, nil
}

// Statements

func (b *Builder) expressionStatement(t *parsetree.Tree, items []item) (item, error) {
	if err := need(t, items, 1, "expression statement", "expression"); err != nil {
		return nil, err
	}
	e, err := b.expr(t, items[0])
	if err != nil {
		return nil, err
	}
	return nodeItem{&ast.ExpressionStatement{Token: at(t, e.TokenLiteral()), Expression: e}}, nil
}

// ifStatement reads the items after the condition and consequence pairwise
// as else-if clauses; a trailing unpaired block is the else branch.
func (b *Builder) ifStatement(t *parsetree.Tree, items []item) (item, error) {
	if err := need(t, items, 2, "if statement", "consequence"); err != nil {
		return nil, err
	}
	cond, err := b.expr(t, items[0])
	if err != nil {
		return nil, err
	}
	cons, err := asBlock(t, items[1])
	if err != nil {
		return nil, err
	}
	is := &ast.IfStatement{Token: at(t, "if"), Condition: cond, Consequence: cons}

	rest := items[2:]
	for i := 0; i < len(rest); i += 2 {
		if i+1 < len(rest) {
			c, err := b.expr(t, rest[i])
			if err != nil {
				return nil, err
			}
			blk, err := asBlock(t, rest[i+1])
			if err != nil {
				return nil, err
			}
			is.ElseIfs = append(is.ElseIfs, &ast.ElseIf{Token: at(t, "else"), Condition: c, Consequence: blk})
			continue
		}
		if is.Alternative, err = asBlock(t, rest[i]); err != nil {
			return nil, err
		}
	}
	return nodeItem{is}, nil
}

func (b *Builder) tryCatchStatement(t *parsetree.Tree, items []item) (item, error) {
	if err := need(t, items, 3, "try statement", "catch block"); err != nil {
		return nil, err
	}
	body, err := asBlock(t, items[0])
	if err != nil {
		return nil, err
	}
	errVar, err := asIdent(t, items[1])
	if err != nil {
		return nil, err
	}
	handler, err := asBlock(t, items[2])
	if err != nil {
		return nil, err
	}
	return nodeItem{&ast.TryCatchStatement{Token: at(t, "try"), Body: body, ErrorVar: errVar, Handler: handler}}, nil
}

func (b *Builder) throwStatement(t *parsetree.Tree, items []item) (item, error) {
	if err := need(t, items, 1, "throw statement", "value"); err != nil {
		return nil, err
	}
	e, err := b.expr(t, items[0])
	if err != nil {
		return nil, err
	}
	return nodeItem{&ast.ThrowStatement{Token: at(t, "throw"), Value: e}}, nil
}

func (b *Builder) returnStatement(t *parsetree.Tree, items []item) (item, error) {
	rs := &ast.ReturnStatement{Token: at(t, "return")}
	if len(items) > 0 {
		e, err := b.expr(t, items[0])
		if err != nil {
			return nil, err
		}
		rs.Value = e
	}
	return nodeItem{rs}, nil
}

// importDeclaration takes the module from the last item and the imported
// names from the identifiers before it.
func (b *Builder) importDeclaration(t *parsetree.Tree, items []item) (item, error) {
	if err := need(t, items, 2, "import declaration", "module"); err != nil {
		return nil, err
	}
	last, ok := items[len(items)-1].(nodeItem)
	if !ok {
		return nil, unexpected(t, items[len(items)-1])
	}
	lit, ok := last.node.(*ast.Literal)
	if !ok {
		return nil, unexpected(t, last)
	}
	module, ok := lit.Value.(string)
	if !ok {
		return nil, unexpected(t, last)
	}

	id := &ast.ImportDeclaration{Token: at(t, "import"), Module: module}
	for _, it := range items[:len(items)-1] {
		name, err := asIdent(t, it)
		if err != nil {
			return nil, err
		}
		id.Imports = append(id.Imports, name)
	}
	return nodeItem{id}, nil
}

func (b *Builder) exportDeclaration(t *parsetree.Tree, items []item) (item, error) {
	if err := need(t, items, 1, "export declaration", "declaration"); err != nil {
		return nil, err
	}
	decl, err := b.stmt(t, items[0])
	if err != nil {
		return nil, err
	}
	return nodeItem{&ast.ExportDeclaration{Token: at(t, "export"), Declaration: decl}}, nil
}
