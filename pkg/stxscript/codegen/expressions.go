package codegen

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/sambeau/stxscript/pkg/stxscript/ast"
	perrors "github.com/sambeau/stxscript/pkg/stxscript/errors"
)

// operators maps source binary operators to Clarity functions. != and =
// are rendered separately.
var operators = map[string]string{
	"+":  "+",
	"-":  "-",
	"*":  "*",
	"/":  "/",
	"%":  "mod",
	"<":  "<",
	">":  ">",
	"<=": "<=",
	">=": ">=",
	"==": "is-eq",
	"&&": "and",
	"||": "or",
	"&":  "bit-and",
	"|":  "bit-or",
	"^":  "bit-xor",
	"<<": "bit-shift-left",
	">>": "bit-shift-right",
}

var bitwiseOperators = map[string]bool{
	"&": true, "|": true, "^": true, "<<": true, ">>": true,
}

// keywordMembers are member accesses that name Clarity keywords.
var keywordMembers = map[string]string{
	"tx.sender":       "tx-sender",
	"block.height":    "block-height",
	"contract.caller": "contract-caller",
}

func (g *Generator) expression(e ast.Expression, depth int, sc *scope) (string, error) {
	switch n := e.(type) {
	case *ast.Identifier:
		return n.Value, nil
	case *ast.Literal:
		return literal(n)
	case *ast.PrincipalLiteral:
		return "'" + n.Value, nil
	case *ast.OptionalLiteral:
		if n.Value == nil {
			return "none", nil
		}
		v, err := g.expression(n.Value, depth, sc)
		if err != nil {
			return "", err
		}
		return "(some " + v + ")", nil
	case *ast.ListLiteral:
		elems, err := g.arguments(n.Elements, depth, sc)
		if err != nil {
			return "", err
		}
		return "(list" + elems + ")", nil
	case *ast.TupleLiteral:
		var out strings.Builder
		out.WriteString("(tuple")
		for _, f := range n.Fields {
			v, err := g.expression(f.Value, depth, sc)
			if err != nil {
				return "", err
			}
			out.WriteString(" (" + f.Key + " " + v + ")")
		}
		out.WriteString(")")
		return out.String(), nil
	case *ast.BinaryExpression:
		return g.binary(n, depth, sc)
	case *ast.UnaryExpression:
		operand, err := g.expression(n.Operand, depth, sc)
		if err != nil {
			return "", err
		}
		switch n.Operator {
		case "!":
			return "(not " + operand + ")", nil
		case "-":
			return "(- " + operand + ")", nil
		}
		return "", unknownOperator(n.Operator)
	case *ast.TernaryExpression:
		parts, err := g.expressions(depth, sc, n.Condition, n.Consequence, n.Alternative)
		if err != nil {
			return "", err
		}
		return "(if " + strings.Join(parts, " ") + ")", nil
	case *ast.MemberExpression:
		if obj, ok := n.Object.(*ast.Identifier); ok {
			if kw, ok := keywordMembers[obj.Value+"."+n.Property.Value]; ok {
				return kw, nil
			}
		}
		obj, err := g.expression(n.Object, depth, sc)
		if err != nil {
			return "", err
		}
		return "(get " + n.Property.Value + " " + obj + ")", nil
	case *ast.CallExpression:
		return g.call(n, depth, sc)
	case *ast.ContractCallExpression:
		args, err := g.arguments(n.Arguments, depth, sc)
		if err != nil {
			return "", err
		}
		return "(contract-call? ." + n.Contract.Value + " " + n.Function + args + ")", nil
	case *ast.AssetCallExpression:
		return g.assetCall(n, depth, sc)
	case *ast.MapExpression:
		parts, err := g.expressions(depth, sc, n.Function, n.List)
		if err != nil {
			return "", err
		}
		return "(map " + strings.Join(parts, " ") + ")", nil
	case *ast.FilterExpression:
		parts, err := g.expressions(depth, sc, n.Function, n.List)
		if err != nil {
			return "", err
		}
		return "(filter " + strings.Join(parts, " ") + ")", nil
	case *ast.FoldExpression:
		parts, err := g.expressions(depth, sc, n.List, n.Initial, n.Function)
		if err != nil {
			return "", err
		}
		return "(fold " + strings.Join(parts, " ") + ")", nil
	case *ast.ListComprehension:
		return g.comprehension(n, depth, sc)
	case *ast.LambdaExpression:
		return g.lambda(n, depth, sc)
	case *ast.TypeCheck:
		v, err := g.expression(n.Value, depth, sc)
		if err != nil {
			return "", err
		}
		name, err := g.typeCheckName(n.Type)
		if err != nil {
			return "", err
		}
		return "(is-" + name + " " + v + ")", nil
	case *ast.TypeAssertion:
		return g.typeAssertion(n, depth, sc)
	}
	if e == nil {
		return "", unsupported("missing expression")
	}
	return "", unsupported(kindOf(e))
}

// expressions renders several expressions in order.
func (g *Generator) expressions(depth int, sc *scope, exprs ...ast.Expression) ([]string, error) {
	out := make([]string, len(exprs))
	for i, e := range exprs {
		text, err := g.expression(e, depth, sc)
		if err != nil {
			return nil, err
		}
		out[i] = text
	}
	return out, nil
}

// arguments renders exprs as a space-prefixed list, ready to follow a
// function name.
func (g *Generator) arguments(exprs []ast.Expression, depth int, sc *scope) (string, error) {
	parts, err := g.expressions(depth, sc, exprs...)
	if err != nil {
		return "", err
	}
	if len(parts) == 0 {
		return "", nil
	}
	return " " + strings.Join(parts, " "), nil
}

func literal(l *ast.Literal) (string, error) {
	switch v := l.Value.(type) {
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		s := strconv.FormatFloat(v, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s, nil
	case string:
		return strconv.Quote(v), nil
	case bool:
		return strconv.FormatBool(v), nil
	}
	return "", unsupported("literal")
}

func (g *Generator) binary(be *ast.BinaryExpression, depth int, sc *scope) (string, error) {
	parts, err := g.expressions(depth, sc, be.Left, be.Right)
	if err != nil {
		return "", err
	}
	left, right := parts[0], parts[1]

	switch be.Operator {
	case "=":
		return "(var-set " + left + " " + right + ")", nil
	case "!=":
		return "(not (is-eq " + left + " " + right + "))", nil
	}

	op, ok := operators[be.Operator]
	if !ok {
		return "", unknownOperator(be.Operator)
	}
	if bitwiseOperators[be.Operator] && g.target.LessThan(bitwiseSince) {
		return "", perrors.New("GEN-0002", map[string]any{
			"Operator": be.Operator,
			"Required": bitwiseSince.String(),
			"Target":   g.target.String(),
		}).WithPosition(be.Token.Line, be.Token.Column)
	}
	return "(" + op + " " + left + " " + right + ")", nil
}

// call renders a plain call. A method call on a value, x.isOk(), becomes
// the kebab-cased builtin applied to the value: (is-ok x).
func (g *Generator) call(ce *ast.CallExpression, depth int, sc *scope) (string, error) {
	args, err := g.arguments(ce.Arguments, depth, sc)
	if err != nil {
		return "", err
	}

	switch callee := ce.Callee.(type) {
	case *ast.Identifier:
		return "(" + callee.Value + args + ")", nil
	case *ast.MemberExpression:
		obj, err := g.expression(callee.Object, depth, sc)
		if err != nil {
			return "", err
		}
		return "(" + kebab(callee.Property.Value) + " " + obj + args + ")", nil
	}

	fn, err := g.expression(ce.Callee, depth, sc)
	if err != nil {
		return "", err
	}
	return "(" + fn + args + ")", nil
}

// assetCall renders Asset.fn(args) as (nft-fn? Asset args). mint takes
// (recipient, id) in source order and (id recipient) in Clarity.
func (g *Generator) assetCall(ac *ast.AssetCallExpression, depth int, sc *scope) (string, error) {
	args := ac.Arguments
	if ac.Function == "mint" && len(args) == 2 {
		args = []ast.Expression{args[1], args[0]}
	}
	text, err := g.arguments(args, depth, sc)
	if err != nil {
		return "", err
	}
	return "(nft-" + kebab(ac.Function) + "? " + ac.Asset.Value + text + ")", nil
}

// comprehension desugars [e for x in xs if c] to map over filter. When e
// applies a binary operator to x and one other operand, the mapped function
// is the partial application (op other).
func (g *Generator) comprehension(lc *ast.ListComprehension, depth int, sc *scope) (string, error) {
	iter := lc.Iterator.Value
	iterable, err := g.expression(lc.Iterable, depth, sc)
	if err != nil {
		return "", err
	}
	var elem ast.Type
	if lt, ok := inferType(lc.Iterable, sc).(*ast.ListType); ok {
		elem = lt.Element
	}
	inner := sc.with(iter, elem)

	if lc.Condition == nil {
		body, err := g.expression(lc.Expression, depth, inner)
		if err != nil {
			return "", err
		}
		return "(map (lambda (" + iter + ") " + body + ") " + iterable + ")", nil
	}

	cond, err := g.expression(lc.Condition, depth, inner)
	if err != nil {
		return "", err
	}
	fn, err := g.mapFunction(lc.Expression, iter, depth, inner)
	if err != nil {
		return "", err
	}
	return "(map " + fn + " (filter (lambda (" + iter + ") " + cond + ") " + iterable + "))", nil
}

func (g *Generator) mapFunction(e ast.Expression, iter string, depth int, sc *scope) (string, error) {
	if be, ok := e.(*ast.BinaryExpression); ok {
		if op, ok := operators[be.Operator]; ok && !bitwiseOperators[be.Operator] {
			var other ast.Expression
			switch {
			case isIdent(be.Left, iter) && simpleOperand(be.Right, iter):
				other = be.Right
			case isIdent(be.Right, iter) && simpleOperand(be.Left, iter):
				other = be.Left
			}
			if other != nil {
				text, err := g.expression(other, depth, sc)
				if err != nil {
					return "", err
				}
				return "(" + op + " " + text + ")", nil
			}
		}
	}
	body, err := g.expression(e, depth, sc)
	if err != nil {
		return "", err
	}
	return "(lambda (" + iter + ") " + body + ")", nil
}

func isIdent(e ast.Expression, name string) bool {
	id, ok := e.(*ast.Identifier)
	return ok && id.Value == name
}

// simpleOperand reports whether e is a literal or a name other than iter.
func simpleOperand(e ast.Expression, iter string) bool {
	switch v := e.(type) {
	case *ast.Literal, *ast.PrincipalLiteral:
		return true
	case *ast.Identifier:
		return v.Value != iter
	}
	return false
}

func (g *Generator) lambda(le *ast.LambdaExpression, depth int, sc *scope) (string, error) {
	names := make([]string, len(le.Parameters))
	inner := sc
	for i, p := range le.Parameters {
		names[i] = p.Name.Value
		inner = inner.with(p.Name.Value, p.Type)
	}
	head := "(lambda (" + strings.Join(names, " ") + ")"

	if le.BodyBlock != nil {
		body, err := g.sequence(le.BodyBlock.Statements, depth+1, inner)
		if err != nil {
			return "", err
		}
		return head + "\n" + indent(depth+1) + body + ")", nil
	}
	body, err := g.expression(le.Body, depth, inner)
	if err != nil {
		return "", err
	}
	return head + " " + body + ")", nil
}

// typeAssertion uses the Clarity conversion functions between int and uint
// when the operand's type is known, and a plain as otherwise.
func (g *Generator) typeAssertion(ta *ast.TypeAssertion, depth int, sc *scope) (string, error) {
	v, err := g.expression(ta.Value, depth, sc)
	if err != nil {
		return "", err
	}

	to, from := namedType(ta.Type), namedType(inferType(ta.Value, sc))
	switch {
	case to == "int" && from == "uint":
		return "(to-int " + v + ")", nil
	case to == "uint" && from == "int":
		return "(to-uint " + v + ")", nil
	}

	typ, err := g.typeString(ta.Type)
	if err != nil {
		return "", err
	}
	return "(as " + typ + " " + v + ")", nil
}

// kebab converts a camelCase name to kebab-case: getOwner is get-owner and
// getNFTOwner is get-nft-owner.
func kebab(name string) string {
	runes := []rune(name)
	var sb strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					sb.WriteByte('-')
				}
			}
			sb.WriteRune(unicode.ToLower(r))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func unknownOperator(op string) error {
	return perrors.New("GEN-0003", map[string]any{"Operator": op})
}
