package builder

import (
	"fmt"
	"sort"

	"github.com/jstnlef/zebu-vm-sub001/internal/telemetry"
	"github.com/jstnlef/zebu-vm-sub001/ir"
	"github.com/jstnlef/zebu-vm-sub001/vm"
)

// loadError reports the staged entity a Load-time resolution step could not
// process, so a client sees which new_* call it traces back to rather than
// a bare "not found".
type loadError struct {
	step   string
	entity ir.ID
	msg    string
}

func (e *loadError) Error() string {
	return fmt.Sprintf("load: %s: entity #%d: %s", e.step, e.entity, e.msg)
}

// Load commits the staged bundle into the registry in one pass, following
// spec.md §4.7's nine-step load algorithm: (1) synthesize names/tags left
// unnamed by the client, (2) resolve type references (shell-then-link, so
// forward references and Struct/Hybrid self-reference through the tag
// tables resolve regardless of staging order), (3) fill the struct/hybrid
// tag tables, (4) resolve signatures, (5) materialize constants, (6)
// materialize globals, (7) declare functions, (8) build each function
// version's blocks/SSA values/instructions, (9) commit everything into the
// registry under its fixed lock order. If any step fails the registry is
// left untouched, since Commit (step 9) is the only mutating step.
func (b *Builder) Load() error {
	b.checkLive()
	defer func() { b.done = true }()

	localTypes := make(map[ir.ID]*ir.Type, len(b.bundle.types))

	// Step 2a: materialize shells for every staged type (scalar fields
	// only). Struct/Hybrid shells carry only their Tag until step 3 fills
	// the tag table, which is how self-referential and mutually cyclic
	// aggregate types resolve without needing a topological order.
	for id, ts := range b.bundle.types {
		localTypes[id] = &ir.Type{Kind: ts.kind, IntWidth: ts.intWidth, Length: ts.length, Tag: ts.tag}
	}

	lookupType := func(id ir.ID) (*ir.Type, error) {
		if t, ok := localTypes[id]; ok {
			return t, nil
		}
		if t, ok := b.reg.TryGetType(id); ok {
			return t, nil
		}
		return nil, &loadError{step: "resolve type", entity: id, msg: "no such staged or committed type"}
	}

	// Step 2b: link Elem pointers now that every shell exists.
	for id, ts := range b.bundle.types {
		if ts.hasElem {
			elem, err := lookupType(ts.elemID)
			if err != nil {
				return err
			}
			localTypes[id].Elem = elem
		}
	}

	// Step 3: fill struct/hybrid tag tables from the staged bodies.
	for tag, sb := range b.bundle.structBodies {
		fields := make([]ir.StructField, len(sb.fieldTypeIDs))
		for i, tid := range sb.fieldTypeIDs {
			t, err := lookupType(tid)
			if err != nil {
				return err
			}
			fields[i] = ir.StructField{Type: t}
		}
		ir.StructTagMap.Declare(tag)
		if err := ir.StructTagMap.Fill(tag, ir.StructBody{Fields: fields}); err != nil {
			return fmt.Errorf("load: fill struct tag %q: %w", tag, err)
		}
	}
	for tag, hb := range b.bundle.hybridBodies {
		fixed := make([]ir.StructField, len(hb.fixedTypeIDs))
		for i, tid := range hb.fixedTypeIDs {
			t, err := lookupType(tid)
			if err != nil {
				return err
			}
			fixed[i] = ir.StructField{Type: t}
		}
		varT, err := lookupType(hb.varTypeID)
		if err != nil {
			return err
		}
		ir.HybridTagMap.Declare(tag)
		if err := ir.HybridTagMap.Fill(tag, ir.HybridBody{Fixed: fixed, Var: varT}); err != nil {
			return fmt.Errorf("load: fill hybrid tag %q: %w", tag, err)
		}
	}

	// Step 4: resolve signatures, then fix up FuncRef/UFuncPtr type shells'
	// Sig pointers (those types could only carry a bare sigID until now).
	localSigs := make(map[ir.ID]*ir.FuncSig, len(b.bundle.sigs))
	for _, id := range b.bundle.sigOrder {
		ss := b.bundle.sigs[id]
		sig := &ir.FuncSig{MuEntityHeader: ir.NewMuEntityHeader(id), ID_: ir.SignatureID(id)}
		for _, tid := range ss.argTypeIDs {
			t, err := lookupType(tid)
			if err != nil {
				return err
			}
			sig.Args = append(sig.Args, t)
		}
		for _, tid := range ss.retTypeIDs {
			t, err := lookupType(tid)
			if err != nil {
				return err
			}
			sig.Rets = append(sig.Rets, t)
		}
		localSigs[id] = sig
	}
	lookupSig := func(id ir.ID) (*ir.FuncSig, error) {
		if s, ok := localSigs[id]; ok {
			return s, nil
		}
		if s, ok := b.reg.TryGetFuncSig(id); ok {
			return s, nil
		}
		return nil, &loadError{step: "resolve signature", entity: id, msg: "no such staged or committed signature"}
	}
	for id, ts := range b.bundle.types {
		if ts.hasSig {
			sig, err := lookupSig(ts.sigID)
			if err != nil {
				return err
			}
			localTypes[id].Sig = sig
		}
	}

	// Step 5: materialize constants.
	localConsts := make(map[ir.ID]*ir.ConstantDef, len(b.bundle.consts))
	for _, id := range b.bundle.constOrder {
		cs := b.bundle.consts[id]
		t, err := lookupType(cs.typeID)
		if err != nil {
			return err
		}
		localConsts[id] = ir.NewConstantDef(id, t, cs.value)
	}
	lookupConst := func(id ir.ID) (*ir.ConstantDef, error) {
		if c, ok := localConsts[id]; ok {
			return c, nil
		}
		if c, ok := b.reg.TryGetConst(id); ok {
			return c, nil
		}
		return nil, &loadError{step: "resolve constant", entity: id, msg: "no such staged or committed constant"}
	}

	// Step 6: materialize globals.
	localGlobals := make(map[ir.ID]*ir.GlobalCell, len(b.bundle.globals))
	for _, id := range b.bundle.globalOrder {
		gs := b.bundle.globals[id]
		t, err := lookupType(gs.typeID)
		if err != nil {
			return err
		}
		localGlobals[id] = ir.NewGlobalCell(id, t)
	}
	lookupGlobal := func(id ir.ID) (*ir.GlobalCell, error) {
		if g, ok := localGlobals[id]; ok {
			return g, nil
		}
		if g, ok := b.reg.TryGetGlobal(id); ok {
			return g, nil
		}
		return nil, &loadError{step: "resolve global", entity: id, msg: "no such staged or committed global"}
	}

	// Step 7: declare functions.
	localFuncs := make(map[ir.ID]*ir.MuFunction, len(b.bundle.funcs))
	for _, id := range b.bundle.funcOrder {
		fs := b.bundle.funcs[id]
		sig, err := lookupSig(fs.sigID)
		if err != nil {
			return err
		}
		localFuncs[id] = ir.NewFunction(id, sig)
	}

	resolveOperand := func(ref OperandRef) (ir.Value, error) {
		switch ref.kind {
		case refConst:
			c, err := lookupConst(ref.id)
			if err != nil {
				return ir.ValueInvalid, err
			}
			return ir.Value{Kind: ir.ValueKindConstant, Typ: c.Typ, Const: &c.Value}, nil
		case refGlobal:
			g, err := lookupGlobal(ref.id)
			if err != nil {
				return ir.ValueInvalid, err
			}
			return ir.Value{Kind: ir.ValueKindGlobal, Typ: g.Typ, GlobalID: g.ID()}, nil
		default:
			return ir.ValueInvalid, nil // refSSA resolved per-function-version below.
		}
	}

	// Step 8: build each function version's blocks, SSA values, and
	// instructions. OperandRef values tagged refSSA can only be resolved
	// here, against the owning function version's own SSA environment.
	localFuncVers := make(map[ir.ID]*ir.FunctionVersion, len(b.bundle.funcVers))
	for _, fvID := range b.bundle.funcVerOrder {
		fvs := b.bundle.funcVers[fvID]
		fn, ok := localFuncs[fvs.funcID]
		if !ok {
			var err error
			fn, err = func() (*ir.MuFunction, error) {
				if f, ok := b.reg.TryGetFunc(fvs.funcID); ok {
					return f, nil
				}
				return nil, &loadError{step: "resolve function", entity: fvs.funcID, msg: "no such staged or committed function"}
			}()
			if err != nil {
				return err
			}
		}
		fv := ir.NewFunctionVersion(fvID, fvs.funcID, fn.Sig)

		ssaValues := make(map[ir.ID]ir.Value)
		var ssaIDs []ir.ID
		for ssaID, ss := range b.bundle.ssas {
			if ss.funcVerID == fvID {
				ssaIDs = append(ssaIDs, ssaID)
			}
		}
		sort.Slice(ssaIDs, func(i, j int) bool { return ssaIDs[i] < ssaIDs[j] })
		for _, ssaID := range ssaIDs {
			ss := b.bundle.ssas[ssaID]
			t, err := lookupType(ss.typeID)
			if err != nil {
				return err
			}
			valID := fv.AllocateValueID()
			v := ir.Value{Kind: ir.ValueKindSSAVar, Typ: t, SSA: valID}
			fv.Context.DeclareSSAVar(valID, v)
			ssaValues[ssaID] = v
		}

		resolve := func(ref OperandRef) (ir.Value, error) {
			if ref.kind == refSSA {
				v, ok := ssaValues[ref.id]
				if !ok {
					return ir.ValueInvalid, &loadError{step: "resolve SSA operand", entity: ref.id, msg: "not declared in this function version"}
				}
				return v, nil
			}
			return resolveOperand(ref)
		}

		blocks := make(map[ir.ID]*ir.Block, len(fvs.blockOrder))
		var entry ir.ID
		for i, bbID := range fvs.blockOrder {
			bs := b.bundle.bbs[bbID]
			blk := &ir.Block{MuEntityHeader: ir.NewMuEntityHeader(bbID)}
			for _, pid := range bs.paramSSAIDs {
				v, ok := ssaValues[pid]
				if !ok {
					return &loadError{step: "resolve block param", entity: pid, msg: "not declared in this function version"}
				}
				blk.Params = append(blk.Params, v)
			}
			if bs.hasExnArg {
				v, ok := ssaValues[bs.exnArgSSAID]
				if !ok {
					return &loadError{step: "resolve exn arg", entity: bs.exnArgSSAID, msg: "not declared in this function version"}
				}
				blk.ExnArg = &v
			}
			blocks[bbID] = blk
			if i == 0 {
				entry = bbID
			}
		}

		resolveDest := func(dcID ir.ID) (*ir.DestClause, error) {
			dcs, ok := b.bundle.destClauses[dcID]
			if !ok {
				return nil, &loadError{step: "resolve dest clause", entity: dcID, msg: "no such staged dest clause"}
			}
			target, ok := blocks[dcs.targetBBID]
			if !ok {
				return nil, &loadError{step: "resolve dest clause", entity: dcs.targetBBID, msg: "target block not in this function version"}
			}
			args := make([]ir.Value, len(dcs.args))
			for i, a := range dcs.args {
				v, err := resolve(a)
				if err != nil {
					return nil, err
				}
				args[i] = v
			}
			return &ir.DestClause{Target: target, Args: args}, nil
		}

		resolveExc := func(ecID ir.ID) (*ir.DestClause, error) {
			ecs, ok := b.bundle.excClauses[ecID]
			if !ok {
				return nil, &loadError{step: "resolve exc clause", entity: ecID, msg: "no such staged exc clause"}
			}
			target, ok := blocks[ecs.targetBBID]
			if !ok {
				return nil, &loadError{step: "resolve exc clause", entity: ecs.targetBBID, msg: "target block not in this function version"}
			}
			return &ir.DestClause{Target: target}, nil
		}

		for _, bbID := range fvs.blockOrder {
			bs := b.bundle.bbs[bbID]
			blk := blocks[bbID]
			for _, instID := range bs.instOrder {
				is := b.bundle.insts[instID]
				inst := b.instPool.Allocate()
				inst.MuEntityHeader = ir.NewMuEntityHeader(instID)
				inst.SetOpcode(is.opcode)
				inst.BinOp, inst.CmpOp, inst.ConvOp = is.binOp, is.cmpOp, is.convOp
				inst.Order, inst.RMWOp, inst.CommonOp = is.order, is.rmwOp, is.commonOp
				inst.FieldIndex, inst.StructTag = is.fieldIndex, is.structTag
				inst.CalleeFunc, inst.IsAbort = is.calleeFunc, is.isAbort
				if is.hasSig {
					inst.SigID = ir.SignatureID(is.sigID)
				}
				inst.SetBranchProb(is.branchProb)
				inst.SetCaseProbs(is.caseProbs)

				ops := make([]*ir.TreeNode, len(is.operands))
				for i, ref := range is.operands {
					v, err := resolve(ref)
					if err != nil {
						return err
					}
					ops[i] = ir.NewValueTreeNode(v)
				}
				inst.SetOps(ops)

				if len(is.resultSSAIDs) > 0 {
					results := make([]ir.Value, len(is.resultSSAIDs))
					for i, rid := range is.resultSSAIDs {
						v, ok := ssaValues[rid]
						if !ok {
							return &loadError{step: "resolve instruction result", entity: rid, msg: "not declared in this function version"}
						}
						results[i] = v
					}
					inst.SetResults(results...)
				}

				if len(is.destIDs) > 0 {
					dests := make([]*ir.DestClause, len(is.destIDs))
					for i, dcID := range is.destIDs {
						d, err := resolveDest(dcID)
						if err != nil {
							return err
						}
						dests[i] = d
					}
					inst.SetDests(dests...)
				}
				if is.hasExcDest {
					d, err := resolveExc(is.excDestID)
					if err != nil {
						return err
					}
					inst.SetExcDest(d)
				}
				if is.hasKAClause {
					ks, ok := b.bundle.kaClauses[is.kaClauseID]
					if !ok {
						return &loadError{step: "resolve keepalive clause", entity: is.kaClauseID, msg: "no such staged keepalive clause"}
					}
					vals := make([]ir.Value, len(ks.values))
					for i, ref := range ks.values {
						v, err := resolve(ref)
						if err != nil {
							return err
						}
						vals[i] = v
					}
					inst.SetKeepAlive(vals)
				}

				blk.InsertInstruction(inst)
			}
		}

		fv.Content = &ir.FunctionContent{Entry: entry, Blocks: blocks}
		localFuncVers[fvID] = fv
	}

	// Every function version becomes its owning function's current version,
	// in staging order, so a client that calls new_func_ver twice for the
	// same function observes the second as current (spec.md §6
	// "Redefinition").
	for _, fvID := range b.bundle.funcVerOrder {
		fv := localFuncVers[fvID]
		fn, ok := localFuncs[fv.FuncID]
		if !ok {
			continue // owning function was already committed in a prior bundle; the driver re-attaches versions via MuFunction.NewVersion directly.
		}
		fn.NewVersion(fv)
	}

	data := &vm.BundleData{
		Names:    b.bundle.names,
		Types:    localTypes,
		Consts:   localConsts,
		Globals:  localGlobals,
		Sigs:     localSigs,
		Funcs:    localFuncs,
		FuncVers: localFuncVers,
	}
	if err := b.reg.Commit(data); err != nil {
		return err
	}
	telemetry.L().Sugar().Infow("bundle loaded", "stats", b.Stats())
	b.bundle = nil
	return nil
}
