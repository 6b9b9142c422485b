package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// calcFunctions is the complete set of callable functions. Anything not
// listed here is rejected at parse time.
var calcFunctions = map[string]func(float64) float64{
	"sqrt": math.Sqrt,
	"sin":  math.Sin,
	"cos":  math.Cos,
	"tan":  math.Tan,
	"log":  math.Log,
	"exp":  math.Exp,
	"abs":  math.Abs,
}

var calcConstants = map[string]float64{
	"pi": math.Pi,
	"e":  math.E,
}

// CalculatorTool evaluates arithmetic expressions with a hand-written
// recursive-descent parser. Only whitelisted operators, functions and
// constants are recognized; input is never handed to a general-purpose
// evaluator.
type CalculatorTool struct{}

func NewCalculatorTool() *CalculatorTool {
	return &CalculatorTool{}
}

func (t *CalculatorTool) GetName() string {
	return "calculator"
}

func (t *CalculatorTool) GetDescription() string {
	return "Evaluate an arithmetic expression"
}

func (t *CalculatorTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name: "calculator",
		Description: "Evaluate arithmetic expressions. Supports + - * / % ^, parentheses, " +
			"the functions sqrt, sin, cos, tan, log, exp, abs and the constants pi and e.",
		Parameters: []ToolParameter{
			{
				Name:        "expression",
				Type:        "string",
				Description: `The expression to evaluate, e.g. "25 * 8"`,
				Required:    true,
			},
		},
	}
}

type calculatorResult struct {
	Result     float64 `json:"result"`
	Expression string  `json:"expression"`
	Message    string  `json:"message"`
}

func (t *CalculatorTool) Execute(_ context.Context, args map[string]interface{}) (string, error) {
	expr, _ := args["expression"].(string)
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return "", fmt.Errorf("expression parameter is required")
	}

	value, err := evalExpression(expr)
	if err != nil {
		return "", fmt.Errorf("cannot evaluate %q: %w", expr, err)
	}

	formatted := strconv.FormatFloat(value, 'f', -1, 64)
	out, err := json.Marshal(calculatorResult{
		Result:     value,
		Expression: expr,
		Message:    fmt.Sprintf("%s = %s", expr, formatted),
	})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// exprParser walks the expression rune by rune. Grammar:
//
//	expr    = term (('+' | '-') term)*
//	term    = unary (('*' | '/' | '%') unary)*
//	unary   = ('-' | '+') unary | power
//	power   = primary ('^' unary)?          right-associative
//	primary = number | constant | function '(' expr ')' | '(' expr ')'
type exprParser struct {
	input []rune
	pos   int
}

func evalExpression(input string) (float64, error) {
	p := &exprParser{input: []rune(input)}

	value, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	if ch := p.peek(); ch != 0 {
		return 0, fmt.Errorf("unexpected character %q at position %d", ch, p.pos)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("result is not a finite number")
	}
	return value, nil
}

// peek returns the next non-space rune without consuming it, or 0 at
// end of input. Spaces before it are consumed.
func (p *exprParser) peek() rune {
	for p.pos < len(p.input) && unicode.IsSpace(p.input[p.pos]) {
		p.pos++
	}
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

func (p *exprParser) parseExpr() (float64, error) {
	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case '+':
			p.pos++
			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			left += right
		case '-':
			p.pos++
			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			left -= right
		default:
			return left, nil
		}
	}
}

func (p *exprParser) parseTerm() (float64, error) {
	left, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case '*':
			p.pos++
			right, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			left *= right
		case '/':
			p.pos++
			right, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			if right == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			left /= right
		case '%':
			p.pos++
			right, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			if right == 0 {
				return 0, fmt.Errorf("modulo by zero")
			}
			left = math.Mod(left, right)
		default:
			return left, nil
		}
	}
}

func (p *exprParser) parseUnary() (float64, error) {
	switch p.peek() {
	case '-':
		p.pos++
		value, err := p.parseUnary()
		return -value, err
	case '+':
		p.pos++
		return p.parseUnary()
	}
	return p.parsePower()
}

func (p *exprParser) parsePower() (float64, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return 0, err
	}
	if p.peek() == '^' {
		p.pos++
		exp, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		return math.Pow(base, exp), nil
	}
	return base, nil
}

func (p *exprParser) parsePrimary() (float64, error) {
	ch := p.peek()
	switch {
	case ch == '(':
		p.pos++
		value, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		if p.peek() != ')' {
			return 0, fmt.Errorf("missing closing parenthesis")
		}
		p.pos++
		return value, nil
	case unicode.IsDigit(ch) || ch == '.':
		return p.parseNumber()
	case unicode.IsLetter(ch):
		return p.parseIdent()
	case ch == 0:
		return 0, fmt.Errorf("unexpected end of expression")
	default:
		return 0, fmt.Errorf("unexpected character %q at position %d", ch, p.pos)
	}
}

func (p *exprParser) parseNumber() (float64, error) {
	start := p.pos
	for p.pos < len(p.input) && (unicode.IsDigit(p.input[p.pos]) || p.input[p.pos] == '.') {
		p.pos++
	}

	text := string(p.input[start:p.pos])
	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", text)
	}
	return value, nil
}

func (p *exprParser) parseIdent() (float64, error) {
	start := p.pos
	for p.pos < len(p.input) && unicode.IsLetter(p.input[p.pos]) {
		p.pos++
	}
	name := strings.ToLower(string(p.input[start:p.pos]))

	if c, ok := calcConstants[name]; ok {
		return c, nil
	}

	fn, ok := calcFunctions[name]
	if !ok {
		return 0, fmt.Errorf("unknown function or constant %q", name)
	}
	if p.peek() != '(' {
		return 0, fmt.Errorf("function %q requires parentheses", name)
	}
	p.pos++

	arg, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	if p.peek() != ')' {
		return 0, fmt.Errorf("missing closing parenthesis after %q argument", name)
	}
	p.pos++

	value := fn(arg)
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("%s(%s) is undefined", name, strconv.FormatFloat(arg, 'f', -1, 64))
	}
	return value, nil
}
