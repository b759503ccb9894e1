// Package permruntime implements the fixed runtime interface the
// injector's emitted calls target: the permission-tracking operations a
// woven program invokes directly. An implementation is free to choose
// the concrete representation provided add is idempotent, assert is
// true iff a live add exists, and join/disjoin move permissions as a
// multiset transfer; this one is a bitset over (object id, field index)
// pairs.
package permruntime

import (
	"math/bits"

	"tlog.app/go/tlog/tlwire"
)

// maxFields bounds how many fields any single struct in the program can
// carry; permission entries are keyed by id*maxFields+fieldIndex. 256
// comfortably covers any struct a weaver test or a real gradual-C0
// program defines.
const maxFields = 256

// Fields is a permission object: the set of (object id, field index)
// pairs it currently grants. The zero value is the empty permission set
// and is ready to use without calling InitFields (InitFields exists to
// give the injector's emitted entry code something explicit to call,
// the way a pass pipeline usually has an explicit "zero/init" step
// before accumulation begins).
type Fields struct {
	w  []uint64
	w0 [1]uint64
}

// Counter is the process-lifetime instance counter cell,
// passed by pointer to every precise callee so that precise code can
// mint unique object IDs.
type Counter struct {
	Next int
}

// InitFields zeroes f and resets counter to 0. Called once, in the
// entry method.
func InitFields(f *Fields, counter *Counter) {
	f.w = f.w0[:0]
	for i := range f.w0 {
		f.w0[i] = 0
	}

	f.w = f.w0[:]
	counter.Next = 0
}

func key(objID, fieldIndex int) int {
	return objID*maxFields + fieldIndex
}

// AddFieldAccess records that f grants the permission (objID,
// fieldIndex). Idempotent: adding the same permission twice has no
// additional effect.
func AddFieldAccess(f *Fields, objID, fieldIndex int) {
	f.set(key(objID, fieldIndex))
}

// AddStructAccess allocates a fresh object id from counter, registers
// all nFields of its fields with f, and returns the new id.
func AddStructAccess(f *Fields, counter *Counter, nFields int) int {
	id := counter.Next
	counter.Next++

	for i := 0; i < nFields; i++ {
		AddFieldAccess(f, id, i)
	}

	return id
}

// AssertAcc reports whether f currently grants (objID, fieldIndex).
func AssertAcc(f *Fields, objID, fieldIndex int) bool {
	return f.isSet(key(objID, fieldIndex))
}

// AssertDisjointAcc reports whether f1 and f2 share no permission for
// (objID, fieldIndex) — the separation check the collector's
// permission walk emits between two permissions enumerated at the same
// location.
func AssertDisjointAcc(f1, f2 *Fields, objID, fieldIndex int) bool {
	k := key(objID, fieldIndex)

	return !(f1.isSet(k) && f2.isSet(k))
}

// Join moves every permission out of src into dst, leaving src empty —
// the multiset union this package specifies, with src emptied.
func Join(dst, src *Fields) {
	dst.or(*src)
	src.clear()
}

// Disjoin moves exactly the permissions present in src out of dst,
// leaving src unmodified. It is the call-site-epilogue counterpart to
// Join: a caller disjoins the callee-visible static permissions back out
// of its dynamic object after the call returns.
func Disjoin(dst, src *Fields) {
	dst.andNot(*src)
}

func (f *Fields) set(i int) {
	wi, bi := i/64, i%64
	f.grow(wi)
	f.w[wi] |= 1 << bi
}

func (f Fields) isSet(i int) bool {
	wi, bi := i/64, i%64
	if wi >= len(f.w) {
		return false
	}

	return f.w[wi]&(1<<bi) != 0
}

func (f *Fields) or(x Fields) {
	f.grow(len(x.w) - 1)

	for i, w := range x.w {
		f.w[i] |= w
	}
}

func (f *Fields) andNot(x Fields) {
	for i, w := range x.w {
		if i == len(f.w) {
			break
		}

		f.w[i] &^= w
	}
}

func (f *Fields) clear() {
	for i := range f.w {
		f.w[i] = 0
	}
}

// Size returns the number of permissions currently granted.
func (f Fields) Size() (n int) {
	for _, w := range f.w {
		n += bits.OnesCount64(w)
	}

	return n
}

func (f *Fields) grow(wi int) {
	if f.w == nil {
		f.w = f.w0[:]
	}

	for wi >= len(f.w) {
		f.w = append(f.w, 0)
	}
}

func (f Fields) TlogAppend(b []byte) []byte {
	var e tlwire.Encoder

	if f.w == nil {
		return e.AppendNil(b)
	}

	b = e.AppendTag(b, tlwire.Array, -1)

	for wi, w := range f.w {
		for w != 0 {
			bi := bits.TrailingZeros64(w)
			k := wi*64 + bi
			b = e.AppendFormat(b, "%d_%d", k/maxFields, k%maxFields)
			w &^= 1 << bi
		}
	}

	b = e.AppendBreak(b)

	return b
}
