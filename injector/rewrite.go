package injector

import "github.com/gvc0/gvweave/ir"

// rewriteBody splices sites' preludes/postludes into body, recursing
// into If/While so a Location anywhere in the tree is honoured. Ops
// are mutated in place (If.Then/Else, While.Body) rather than
// rebuilt, so every Location's op pointer stays the identity collector
// recorded it under.
func rewriteBody(body []ir.Op, sites *siteMap) []ir.Op {
	out := make([]ir.Op, 0, len(body))

	for _, op := range body {
		out = append(out, sites.pre[op]...)

		switch x := op.(type) {
		case *ir.If:
			x.Then = rewriteBody(x.Then, sites)
			x.Else = rewriteBody(x.Else, sites)
			out = append(out, x)

		case *ir.While:
			newBody := rewriteBody(x.Body, sites)
			full := make([]ir.Op, 0, len(sites.loopStart[x])+len(newBody)+len(sites.loopEnd[x]))
			full = append(full, sites.loopStart[x]...)
			full = append(full, newBody...)
			full = append(full, sites.loopEnd[x]...)
			x.Body = full
			out = append(out, x)

		default:
			out = append(out, op)
		}

		out = append(out, sites.post[op]...)
	}

	return out
}

// withMethodFraming splices in the method-level condition materialisations
// and checks: MethodPre lands at the very start of body, MethodPost
// lands immediately before every explicit Return and, if the method
// can fall off its end, appended after the last op too.
func withMethodFraming(body []ir.Op, sites *siteMap, hasImplicitReturn bool) []ir.Op {
	body = insertBeforeReturns(body, sites.methodPost)

	out := make([]ir.Op, 0, len(body)+len(sites.methodPre)+len(sites.methodPost))
	out = append(out, sites.methodPre...)
	out = append(out, body...)

	if hasImplicitReturn {
		out = append(out, sites.methodPost...)
	}

	return out
}

func insertBeforeReturns(body []ir.Op, post []ir.Op) []ir.Op {
	if len(post) == 0 {
		return body
	}

	out := make([]ir.Op, 0, len(body))

	for _, op := range body {
		switch x := op.(type) {
		case *ir.Return:
			out = append(out, post...)
			out = append(out, x)

		case *ir.If:
			x.Then = insertBeforeReturns(x.Then, post)
			x.Else = insertBeforeReturns(x.Else, post)
			out = append(out, x)

		case *ir.While:
			x.Body = insertBeforeReturns(x.Body, post)
			out = append(out, x)

		default:
			out = append(out, op)
		}
	}

	return out
}
