package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// sqlExpr is a numeric Postgres expression that can also be evaluated in Go,
// so a rendered query can be checked against Distance without a database.
type sqlExpr interface {
	sql() string
	eval(env map[string]float64) float64
}

// ref is a column or placeholder, resolved from env when evaluated.
type ref string

func (r ref) sql() string { return string(r) }
func (r ref) eval(env map[string]float64) float64 { return env[string(r)] }

type num float64

func (n num) sql() string { return strconv.FormatFloat(float64(n), 'f', -1, 64) }
func (n num) eval(map[string]float64) float64 { return float64(n) }

type binop struct {
	op   byte
	l, r sqlExpr
}

func (b binop) sql() string {
	return fmt.Sprintf("(%s %c %s)", b.l.sql(), b.op, b.r.sql())
}

func (b binop) eval(env map[string]float64) float64 {
	l, r := b.l.eval(env), b.r.eval(env)
	switch b.op {
	case '+':
		return l + r
	case '-':
		return l - r
	case '*':
		return l * r
	case '/':
		return l / r
	}
	return math.NaN()
}

func add(l, r sqlExpr) sqlExpr { return binop{'+', l, r} }
func sub(l, r sqlExpr) sqlExpr { return binop{'-', l, r} }
func mul(l, r sqlExpr) sqlExpr { return binop{'*', l, r} }
func div(l, r sqlExpr) sqlExpr { return binop{'/', l, r} }

// sqlFuncs mirrors the Postgres functions the distance formula uses.
var sqlFuncs = map[string]func(x ...float64) float64{
	"RADIANS": func(x ...float64) float64 { return radians(x[0]) },
	"SIN":     func(x ...float64) float64 { return math.Sin(x[0]) },
	"COS":     func(x ...float64) float64 { return math.Cos(x[0]) },
	"SQRT":    func(x ...float64) float64 { return math.Sqrt(x[0]) },
	"POWER":   func(x ...float64) float64 { return math.Pow(x[0], x[1]) },
	"ATAN2":   func(x ...float64) float64 { return math.Atan2(x[0], x[1]) },
	"LEAST": func(x ...float64) float64 {
		m := x[0]
		for _, v := range x[1:] {
			m = math.Min(m, v)
		}
		return m
	},
}

type call struct {
	name string
	args []sqlExpr
}

func fn(name string, args ...sqlExpr) sqlExpr { return call{name, args} }

func (c call) sql() string {
	parts := make([]string, len(c.args))
	for i, a := range c.args {
		parts[i] = a.sql()
	}
	return c.name + "(" + strings.Join(parts, ", ") + ")"
}

func (c call) eval(env map[string]float64) float64 {
	f, ok := sqlFuncs[c.name]
	if !ok {
		return math.NaN()
	}
	vals := make([]float64, len(c.args))
	for i, a := range c.args {
		vals[i] = a.eval(env)
	}
	return f(vals...)
}
