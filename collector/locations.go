package collector

import (
	"github.com/gvc0/gvweave/ir"
	"github.com/gvc0/gvweave/residual"
)

// locationFor reclassifies a residual check's position into an IR
// Location: given the verifier node a check's context resolved against, and that
// check's Position/ValuePostOfCall/OutsideInvariant tags, compute the IR
// Location the check actually belongs to.
func locationFor(m *ir.Method, trace *residual.MethodTrace, idx *opIndex, entry residual.CheckEntry) (Location, error) {
	if entry.Context == trace.Pre {
		if entry.Position != residual.PosValue {
			return Location{}, UnhandledPositionError{Method: m, Node: entry.Context, Position: entry.Position}
		}

		return Location{Phase: PhaseMethodPre}, nil
	}

	if entry.Context == trace.Post {
		if entry.Position != residual.PosValue {
			return Location{}, UnhandledPositionError{Method: m, Node: entry.Context, Position: entry.Position}
		}

		return Location{Phase: PhaseMethodPost}, nil
	}

	op, ok := idx.byNode[entry.Context]
	if !ok {
		return Location{}, StructuralMismatchError{
			Method: m,
			Reason: "residual check's context node was never indexed by align",
		}
	}

	switch entry.Position {
	case residual.PosValue:
		if _, isInvoke := op.(*ir.Invoke); isInvoke && entry.ValuePostOfCall {
			return Location{Op: op, Phase: PhasePost}, nil
		}

		return Location{Op: op, Phase: PhasePre}, nil

	case residual.PosLoopBefore:
		return Location{Op: op, Phase: PhasePre}, nil

	case residual.PosLoopAfter:
		return Location{Op: op, Phase: PhasePost}, nil

	case residual.PosLoopBegin:
		// Demote invariant-start positions that sit outside the actual
		// invariant tree to PostLoop (a documented verifier quirk).
		if entry.OutsideInvariant {
			return Location{Op: op, Phase: PhasePost}, nil
		}

		return Location{Op: op, Phase: PhaseLoopStart}, nil

	case residual.PosLoopEnd:
		return Location{Op: op, Phase: PhaseLoopEnd}, nil

	default:
		return Location{}, UnhandledPositionError{Method: m, Node: entry.Context, Position: entry.Position}
	}
}
