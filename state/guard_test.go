package state

import (
	"math/rand/v2"
	"testing"

	"github.com/HHildenbrandt/remphasis"
)

type fakeModel struct {
	freed       int
	invalidated int
}

func (f *fakeModel) NParams() int     { return 1 }
func (f *fakeModel) IsThreadsafe() bool { return true }
func (f *fakeModel) SpeciationRate(state *any, t float64, pars []float64, tree remphasis.Tree) float64 {
	return 0
}
func (f *fakeModel) NHRate(state *any, t float64, pars []float64, tree remphasis.Tree) float64 {
	return 0
}
func (f *fakeModel) ExtinctionTime(rng *rand.Rand, state *any, tSpec float64, pars []float64, tree remphasis.Tree) float64 {
	return 0
}
func (f *fakeModel) LogLik(state *any, pars []float64, tree remphasis.Tree) float64      { return 0 }
func (f *fakeModel) SamplingProb(state *any, pars []float64, tree remphasis.Tree) float64 { return 0 }
func (f *fakeModel) LowerBound() []float64 { return nil }
func (f *fakeModel) UpperBound() []float64 { return nil }
func (f *fakeModel) FreeState(state *any) {
	f.freed++
	*state = nil
}
func (f *fakeModel) InvalidateState(state *any) { f.invalidated++ }

func TestGuardClosesOnce(t *testing.T) {
	m := &fakeModel{}
	g := New(m)
	g.Close()
	g.Close()
	if m.freed != 1 {
		t.Fatalf("freed %d times, want 1", m.freed)
	}
}

func TestGuardInvalidateNoopAfterClose(t *testing.T) {
	m := &fakeModel{}
	g := New(m)
	g.Close()
	g.Invalidate()
	if m.invalidated != 0 {
		t.Fatalf("invalidated after close: got %d, want 0", m.invalidated)
	}
}

func TestGuardInvalidateBeforeClose(t *testing.T) {
	m := &fakeModel{}
	g := New(m)
	g.Invalidate()
	g.Invalidate()
	if m.invalidated != 2 {
		t.Fatalf("invalidated %d times, want 2", m.invalidated)
	}
}
