package solver

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	ErrDuplicateConstraint = errors.New("duplicate constraint")
	ErrUnsatisfiable       = errors.New("unsatisfiable required constraint")
	ErrUnbounded           = errors.New("objective is unbounded")
)

// Solver is the capability the layout engine needs from a constraint solver.
type Solver interface {
	NewVariable(name string) *Variable
	AddConstraint(c *Constraint) error
	Value(v *Variable) float64
}

const (
	epsilon       = 1.0e-8
	maxIterations = 10000
)

func nearZero(v float64) bool {
	return math.Abs(v) < epsilon
}

type symbolKind uint8

const (
	invalidSymbol symbolKind = iota
	externalSymbol
	slackSymbol
	errorSymbol
	dummySymbol
)

type symbol struct {
	id   uint64
	kind symbolKind
}

func (s symbol) valid() bool {
	return s.kind != invalidSymbol
}

// restricted symbols are the non-negative ones the simplex may pivot on.
func (s symbol) restricted() bool {
	return s.kind == slackSymbol || s.kind == errorSymbol
}

type tag struct {
	marker symbol
	other  symbol
}

type row struct {
	cells    map[symbol]float64
	constant float64
}

func newRow(constant float64) *row {
	return &row{cells: make(map[symbol]float64), constant: constant}
}

func (r *row) clone() *row {
	c := newRow(r.constant)
	for s, v := range r.cells {
		c.cells[s] = v
	}
	return c
}

func (r *row) insertSymbol(s symbol, coefficient float64) {
	v := r.cells[s] + coefficient
	if nearZero(v) {
		delete(r.cells, s)
		return
	}
	r.cells[s] = v
}

func (r *row) insertRow(o *row, coefficient float64) {
	r.constant += o.constant * coefficient
	for s, v := range o.cells {
		r.insertSymbol(s, v*coefficient)
	}
}

func (r *row) reverseSign() {
	r.constant = -r.constant
	for s, v := range r.cells {
		r.cells[s] = -v
	}
}

// solveFor rewrites the row `0 = constant + ... + c*s` as `s = ...`.
func (r *row) solveFor(s symbol) {
	coefficient := -1.0 / r.cells[s]
	delete(r.cells, s)
	r.constant *= coefficient
	for k, v := range r.cells {
		r.cells[k] = v * coefficient
	}
}

// solveForPair rewrites `lhs = ...` (with rhs inside) as `rhs = ...`.
func (r *row) solveForPair(lhs, rhs symbol) {
	r.insertSymbol(lhs, -1.0)
	r.solveFor(rhs)
}

func (r *row) substitute(s symbol, o *row) {
	if v, ok := r.cells[s]; ok {
		delete(r.cells, s)
		r.insertRow(o, v)
	}
}

// symbols returns the row's symbols ordered by creation so pivoting is deterministic.
func (r *row) symbols() []symbol {
	out := make([]symbol, 0, len(r.cells))
	for s := range r.cells {
		out = append(out, s)
	}
	sortSymbols(out)
	return out
}

func sortSymbols(s []symbol) {
	sort.Slice(s, func(i, j int) bool { return s[i].id < s[j].id })
}

// Simplex is an incremental Cassowary solver. Constraints are added one at a
// time and the tableau is kept optimal after every addition.
type Simplex struct {
	constraints map[*Constraint]tag
	rows        map[symbol]*row
	vars        map[*Variable]symbol
	objective   *row
	artificial  *row
	nextID      uint64
}

func NewSimplex() *Simplex {
	return &Simplex{
		constraints: make(map[*Constraint]tag),
		rows:        make(map[symbol]*row),
		vars:        make(map[*Variable]symbol),
		objective:   newRow(0),
	}
}

func (s *Simplex) NewVariable(name string) *Variable {
	return NewVariable(name)
}

func (s *Simplex) HasConstraint(c *Constraint) bool {
	_, ok := s.constraints[c]
	return ok
}

func (s *Simplex) AddConstraint(c *Constraint) error {
	if s.HasConstraint(c) {
		return ErrDuplicateConstraint
	}

	t := tag{}
	r := s.createRow(c, &t)
	subject := s.chooseSubject(r, t)

	if !subject.valid() && allDummies(r) {
		if !nearZero(r.constant) {
			return fmt.Errorf("%w: %s", ErrUnsatisfiable, c)
		}
		subject = t.marker
	}

	if !subject.valid() {
		ok, err := s.addWithArtificialVariable(r)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnsatisfiable, c)
		}
	} else {
		r.solveFor(subject)
		s.substitute(subject, r)
		s.rows[subject] = r
	}

	s.constraints[c] = t
	return s.optimize(s.objective)
}

// Value reads the current resolved value of v. Unknown variables read as zero.
func (s *Simplex) Value(v *Variable) float64 {
	sym, ok := s.vars[v]
	if !ok {
		return 0
	}
	if r, ok := s.rows[sym]; ok {
		return r.constant
	}
	return 0
}

func (s *Simplex) newSymbol(kind symbolKind) symbol {
	s.nextID++
	return symbol{id: s.nextID, kind: kind}
}

func (s *Simplex) varSymbol(v *Variable) symbol {
	if sym, ok := s.vars[v]; ok {
		return sym
	}
	sym := s.newSymbol(externalSymbol)
	s.vars[v] = sym
	return sym
}

func (s *Simplex) createRow(c *Constraint, t *tag) *row {
	r := newRow(c.expr.Constant)

	for _, term := range c.expr.Terms {
		if nearZero(term.Coefficient) {
			continue
		}
		sym := s.varSymbol(term.Variable)
		if basic, ok := s.rows[sym]; ok {
			r.insertRow(basic, term.Coefficient)
		} else {
			r.insertSymbol(sym, term.Coefficient)
		}
	}

	switch c.op {
	case LessOrEqual, GreaterOrEqual:
		coefficient := 1.0
		if c.op == GreaterOrEqual {
			coefficient = -1.0
		}
		slack := s.newSymbol(slackSymbol)
		t.marker = slack
		r.insertSymbol(slack, coefficient)
		if !c.Required() {
			e := s.newSymbol(errorSymbol)
			t.other = e
			r.insertSymbol(e, -coefficient)
			s.objective.insertSymbol(e, float64(c.strength))
		}
	case Equal:
		if !c.Required() {
			plus := s.newSymbol(errorSymbol)
			minus := s.newSymbol(errorSymbol)
			t.marker = plus
			t.other = minus
			r.insertSymbol(plus, -1.0)
			r.insertSymbol(minus, 1.0)
			s.objective.insertSymbol(plus, float64(c.strength))
			s.objective.insertSymbol(minus, float64(c.strength))
		} else {
			dummy := s.newSymbol(dummySymbol)
			t.marker = dummy
			r.insertSymbol(dummy, 1.0)
		}
	}

	if r.constant < 0 {
		r.reverseSign()
	}
	return r
}

func (s *Simplex) chooseSubject(r *row, t tag) symbol {
	for _, sym := range r.symbols() {
		if sym.kind == externalSymbol {
			return sym
		}
	}
	if t.marker.restricted() && r.cells[t.marker] < 0 {
		return t.marker
	}
	if t.other.restricted() && r.cells[t.other] < 0 {
		return t.other
	}
	return symbol{}
}

func allDummies(r *row) bool {
	for sym := range r.cells {
		if sym.kind != dummySymbol {
			return false
		}
	}
	return true
}

func (s *Simplex) addWithArtificialVariable(r *row) (bool, error) {
	art := s.newSymbol(slackSymbol)
	s.rows[art] = r.clone()
	s.artificial = r.clone()

	if err := s.optimize(s.artificial); err != nil {
		s.artificial = nil
		return false, err
	}
	success := nearZero(s.artificial.constant)
	s.artificial = nil

	if basic, ok := s.rows[art]; ok {
		delete(s.rows, art)
		if len(basic.cells) == 0 {
			return success, nil
		}
		entering := anyPivotableSymbol(basic)
		if !entering.valid() {
			return false, nil
		}
		basic.solveForPair(art, entering)
		s.substitute(entering, basic)
		s.rows[entering] = basic
	}

	for _, basic := range s.rows {
		delete(basic.cells, art)
	}
	delete(s.objective.cells, art)
	return success, nil
}

func anyPivotableSymbol(r *row) symbol {
	for _, sym := range r.symbols() {
		if sym.restricted() {
			return sym
		}
	}
	return symbol{}
}

func (s *Simplex) substitute(sym symbol, r *row) {
	for _, basic := range s.rows {
		basic.substitute(sym, r)
	}
	s.objective.substitute(sym, r)
	if s.artificial != nil {
		s.artificial.substitute(sym, r)
	}
}

func (s *Simplex) optimize(objective *row) error {
	for i := 0; i < maxIterations; i++ {
		entering := enteringSymbol(objective)
		if !entering.valid() {
			return nil
		}
		leaving, ok := s.leavingSymbol(entering)
		if !ok {
			return ErrUnbounded
		}
		r := s.rows[leaving]
		delete(s.rows, leaving)
		r.solveForPair(leaving, entering)
		s.substitute(entering, r)
		s.rows[entering] = r
	}
	return fmt.Errorf("simplex did not converge after %d pivots", maxIterations)
}

func enteringSymbol(objective *row) symbol {
	for _, sym := range objective.symbols() {
		if sym.kind != dummySymbol && objective.cells[sym] < 0 {
			return sym
		}
	}
	return symbol{}
}

func (s *Simplex) leavingSymbol(entering symbol) (symbol, bool) {
	basics := make([]symbol, 0, len(s.rows))
	for sym := range s.rows {
		basics = append(basics, sym)
	}
	sortSymbols(basics)

	ratio := math.MaxFloat64
	var found symbol
	for _, sym := range basics {
		if sym.kind == externalSymbol {
			continue
		}
		r := s.rows[sym]
		coefficient := r.cells[entering]
		if coefficient >= 0 {
			continue
		}
		if candidate := -r.constant / coefficient; candidate < ratio {
			ratio = candidate
			found = sym
		}
	}
	return found, found.valid()
}
